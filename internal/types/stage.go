package types

// LifecycleStage is the unified stage of a deal, reconciled from the two
// legacy stage models plus derived facts. It is the only stage value the
// rest of the system reasons about.
type LifecycleStage string

// Unified lifecycle stage constants, in chain order.
const (
	StageIntakeCreated        LifecycleStage = "intake_created"
	StageDocsRequested        LifecycleStage = "docs_requested"
	StageDocsInProgress       LifecycleStage = "docs_in_progress"
	StageDocsSatisfied        LifecycleStage = "docs_satisfied"
	StageUnderwriteReady      LifecycleStage = "underwrite_ready"
	StageUnderwriteInProgress LifecycleStage = "underwrite_in_progress"
	StageCommitteeReady       LifecycleStage = "committee_ready"
	StageCommitteeDecisioned  LifecycleStage = "committee_decisioned"
	StageClosingInProgress    LifecycleStage = "closing_in_progress"
	StageClosed               LifecycleStage = "closed"
	StageWorkout              LifecycleStage = "workout"
)

// AllStages lists every unified stage in chain order, with workout last.
var AllStages = []LifecycleStage{
	StageIntakeCreated,
	StageDocsRequested,
	StageDocsInProgress,
	StageDocsSatisfied,
	StageUnderwriteReady,
	StageUnderwriteInProgress,
	StageCommitteeReady,
	StageCommitteeDecisioned,
	StageClosingInProgress,
	StageClosed,
	StageWorkout,
}

// StageLabels maps each stage to its human-readable label.
var StageLabels = map[LifecycleStage]string{
	StageIntakeCreated:        "Intake Created",
	StageDocsRequested:        "Documents Requested",
	StageDocsInProgress:       "Documents In Progress",
	StageDocsSatisfied:        "Documents Satisfied",
	StageUnderwriteReady:      "Ready for Underwriting",
	StageUnderwriteInProgress: "Underwriting In Progress",
	StageCommitteeReady:       "Ready for Committee",
	StageCommitteeDecisioned:  "Committee Decisioned",
	StageClosingInProgress:    "Closing In Progress",
	StageClosed:               "Closed",
	StageWorkout:              "Workout",
}

// StageTransitions is the directed transition graph: each stage maps to the
// ordered list of stages a deal may legally advance into. All entries are
// singletons except committee_decisioned, which branches to closing or
// workout. Terminal stages map to empty lists.
var StageTransitions = map[LifecycleStage][]LifecycleStage{
	StageIntakeCreated:        {StageDocsRequested},
	StageDocsRequested:        {StageDocsInProgress},
	StageDocsInProgress:       {StageDocsSatisfied},
	StageDocsSatisfied:        {StageUnderwriteReady},
	StageUnderwriteReady:      {StageUnderwriteInProgress},
	StageUnderwriteInProgress: {StageCommitteeReady},
	StageCommitteeReady:       {StageCommitteeDecisioned},
	StageCommitteeDecisioned:  {StageClosingInProgress, StageWorkout},
	StageClosingInProgress:    {StageClosed},
	StageClosed:               {},
	StageWorkout:              {},
}

// StageReachability maps each stage to the set of stages at-or-beyond it,
// including itself. This is a ceiling semantics, not graph traversal:
// closed and workout are pure terminals (singleton sets), and
// closing_in_progress deliberately excludes workout — a deal that has
// entered closing can no longer divert to workout.
var StageReachability = map[LifecycleStage]map[LifecycleStage]bool{
	StageIntakeCreated:        reachableFrom(0),
	StageDocsRequested:        reachableFrom(1),
	StageDocsInProgress:       reachableFrom(2),
	StageDocsSatisfied:        reachableFrom(3),
	StageUnderwriteReady:      reachableFrom(4),
	StageUnderwriteInProgress: reachableFrom(5),
	StageCommitteeReady:       reachableFrom(6),
	StageCommitteeDecisioned:  reachableFrom(7),
	StageClosingInProgress:    {StageClosingInProgress: true, StageClosed: true},
	StageClosed:               {StageClosed: true},
	StageWorkout:              {StageWorkout: true},
}

// reachableFrom builds the ceiling set for a main-chain stage at the given
// chain index: everything from that index through closed, plus workout
// (the branch stays reachable up to and including committee_decisioned).
func reachableFrom(idx int) map[LifecycleStage]bool {
	set := make(map[LifecycleStage]bool)
	for i := idx; i <= 9; i++ { // through StageClosed
		set[AllStages[i]] = true
	}
	set[StageWorkout] = true
	return set
}

// IsValid checks if the stage value is a known unified stage.
func (s LifecycleStage) IsValid() bool {
	_, ok := StageTransitions[s]
	return ok
}

// Label returns the human-readable label for the stage.
func (s LifecycleStage) Label() string {
	if l, ok := StageLabels[s]; ok {
		return l
	}
	return string(s)
}

// IsTerminal reports whether the stage has no legal outbound transitions.
func (s LifecycleStage) IsTerminal() bool {
	return len(StageTransitions[s]) == 0
}

// RequiresDocuments reports whether document-readiness blockers apply at
// this stage. Documents must be complete from the moment they are requested
// until the committee has the deal.
func (s LifecycleStage) RequiresDocuments() bool {
	switch s {
	case StageDocsRequested, StageDocsInProgress, StageDocsSatisfied,
		StageUnderwriteReady, StageUnderwriteInProgress, StageCommitteeReady:
		return true
	}
	return false
}

// UnderwriteAdjacent reports whether loan-request completeness is gate
// relevant at this stage.
func (s LifecycleStage) UnderwriteAdjacent() bool {
	switch s {
	case StageUnderwriteReady, StageUnderwriteInProgress, StageCommitteeReady:
		return true
	}
	return false
}

// NextStage returns the default next stage in the transition graph (the
// first entry of the allowed list), or "" for terminal stages.
func (s LifecycleStage) NextStage() LifecycleStage {
	next := StageTransitions[s]
	if len(next) == 0 {
		return ""
	}
	return next[0]
}

// CanTransitionTo reports whether target is a legal next stage from s.
func (s LifecycleStage) CanTransitionTo(target LifecycleStage) bool {
	for _, t := range StageTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// AtOrBeyond reports whether s is at or beyond min, per the reachability
// ceiling semantics. The workout branch counts as beyond any stage up to
// committee_decisioned, but not beyond closing_in_progress or closed.
func (s LifecycleStage) AtOrBeyond(min LifecycleStage) bool {
	return StageReachability[min][s]
}

// AtOrBefore reports whether ceiling is still reachable from s.
func (s LifecycleStage) AtOrBefore(ceiling LifecycleStage) bool {
	return StageReachability[s][ceiling]
}

// InternalStage is the legacy internal 5-stage model still carried on the
// deal record. It evolves independently of the borrower-facing model and is
// reconciled into the unified stage during derivation.
type InternalStage string

// Legacy internal stage constants
const (
	InternalIntake       InternalStage = "intake"
	InternalCollecting   InternalStage = "collecting"
	InternalUnderwriting InternalStage = "underwriting"
	InternalReady        InternalStage = "ready"
	InternalWorkout      InternalStage = "workout"
)

// IsValid checks if the internal stage value is valid.
func (s InternalStage) IsValid() bool {
	switch s {
	case InternalIntake, InternalCollecting, InternalUnderwriting, InternalReady, InternalWorkout:
		return true
	}
	return false
}

// internalRank orders the legacy main chain for transition checks.
// Workout is outside the chain and handled separately.
var internalRank = map[InternalStage]int{
	InternalIntake:       0,
	InternalCollecting:   1,
	InternalUnderwriting: 2,
	InternalReady:        3,
}

// CanAdvanceTo reports whether the legacy model allows moving from s to
// target: one step forward along the chain, sideways (same value, a benign
// no-op), or into workout from anywhere on the chain.
func (s InternalStage) CanAdvanceTo(target InternalStage) bool {
	if s == target {
		return true
	}
	if target == InternalWorkout {
		return s != InternalWorkout
	}
	from, okFrom := internalRank[s]
	to, okTo := internalRank[target]
	return okFrom && okTo && to == from+1
}

// BorrowerStage is the legacy borrower-facing 8-stage model shown in the
// borrower portal. Workout has no borrower-facing value; a deal in workout
// keeps its last synced borrower stage.
type BorrowerStage string

// Borrower-facing stage constants
const (
	BorrowerApplicationStarted BorrowerStage = "application_started"
	BorrowerDocsNeeded         BorrowerStage = "docs_needed"
	BorrowerDocsUnderReview    BorrowerStage = "docs_under_review"
	BorrowerUnderwriting       BorrowerStage = "underwriting"
	BorrowerCommitteeReview    BorrowerStage = "committee_review"
	BorrowerDecisioned         BorrowerStage = "decisioned"
	BorrowerClosing            BorrowerStage = "closing"
	BorrowerFunded             BorrowerStage = "funded"
)

// IsValid checks if the borrower stage value is valid.
func (s BorrowerStage) IsValid() bool {
	switch s {
	case BorrowerApplicationStarted, BorrowerDocsNeeded, BorrowerDocsUnderReview,
		BorrowerUnderwriting, BorrowerCommitteeReview, BorrowerDecisioned,
		BorrowerClosing, BorrowerFunded:
		return true
	}
	return false
}

// InternalStageFor maps a unified stage to its legacy internal equivalent.
// Closing and closed have no internal analogue (the borrower-facing model
// owns those); the empty return tells the advancement engine to skip the
// legacy write.
func InternalStageFor(s LifecycleStage) InternalStage {
	switch s {
	case StageIntakeCreated:
		return InternalIntake
	case StageDocsRequested, StageDocsInProgress, StageDocsSatisfied, StageUnderwriteReady:
		return InternalCollecting
	case StageUnderwriteInProgress:
		return InternalUnderwriting
	case StageCommitteeReady, StageCommitteeDecisioned:
		return InternalReady
	case StageWorkout:
		return InternalWorkout
	}
	return ""
}

// BorrowerStageFor maps a unified stage to the borrower-facing value to
// sync. Workout returns "" — the borrower portal never shows workout, so
// the sync is skipped and the last value stands.
func BorrowerStageFor(s LifecycleStage) BorrowerStage {
	switch s {
	case StageIntakeCreated:
		return BorrowerApplicationStarted
	case StageDocsRequested:
		return BorrowerDocsNeeded
	case StageDocsInProgress, StageDocsSatisfied:
		return BorrowerDocsUnderReview
	case StageUnderwriteReady, StageUnderwriteInProgress:
		return BorrowerUnderwriting
	case StageCommitteeReady:
		return BorrowerCommitteeReview
	case StageCommitteeDecisioned:
		return BorrowerDecisioned
	case StageClosingInProgress:
		return BorrowerClosing
	case StageClosed:
		return BorrowerFunded
	}
	return ""
}
