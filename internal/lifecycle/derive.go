// Package lifecycle implements the deal lifecycle engine: derivation of the
// unified stage from the legacy stage models and source records, blocker
// computation, route guards, and the advancement paths.
package lifecycle

import (
	"context"
	"errors"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/crestmark/dealtrack/internal/debug"
	"github.com/crestmark/dealtrack/internal/storage"
	"github.com/crestmark/dealtrack/internal/telemetry"
	"github.com/crestmark/dealtrack/internal/types"
)

const tracerScope = "github.com/crestmark/dealtrack/lifecycle"

// Store is the storage surface the engine depends on. *sqlite.Store and the
// telemetry wrapper both satisfy it; tests substitute a fake.
type Store interface {
	GetDeal(ctx context.Context, id string) (*types.Deal, error)
	GetChecklistItems(ctx context.Context, dealID string) ([]*types.ChecklistItem, error)
	GetLoanRequests(ctx context.Context, dealID string) ([]*types.LoanRequest, error)
	CountSnapshots(ctx context.Context, dealID string) (int, error)
	GetLatestDecision(ctx context.Context, dealID string) (*types.Decision, error)
	CountPacketEvents(ctx context.Context, dealID string) (int, error)
	GetLastAdvancedAt(ctx context.Context, dealID string) (*time.Time, error)
	GetAttestationStatus(ctx context.Context, dealID string, decisionID int64, tenantID string) (bool, error)
	AppendLedgerEvent(ctx context.Context, ev *types.LedgerEvent) error
	UpdateInternalStage(ctx context.Context, id string, target types.InternalStage, actor string) error
	UpsertBorrowerStage(ctx context.Context, id string, target types.BorrowerStage, actor string) error
}

// ReadinessEvaluator computes document readiness for a deal. The engine
// falls back to a local checklist comparison when the evaluator fails; that
// fallback is a soft degradation, never a blocker.
type ReadinessEvaluator interface {
	ComputeReadiness(ctx context.Context, dealID string) (bool, error)
}

// AttestationEvaluator reports whether the post-decision attestation is
// satisfied. Failures default to satisfied: attestation only gates one
// stage, and a fabricated blocker there would strand closing deals.
type AttestationEvaluator interface {
	Status(ctx context.Context, dealID string, decisionID int64, tenantID string) (bool, error)
}

// Engine derives lifecycle state and performs advancements. All reads go
// through the fetch-isolation wrapper; Derive never returns an error and
// never panics.
type Engine struct {
	store     Store
	readiness ReadinessEvaluator
	attest    AttestationEvaluator
	side      *SideChannel
	tracer    trace.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

// WithReadinessEvaluator installs an external document-readiness evaluator.
func WithReadinessEvaluator(r ReadinessEvaluator) Option {
	return func(e *Engine) { e.readiness = r }
}

// WithAttestationEvaluator overrides the default store-backed attestation
// read.
func WithAttestationEvaluator(a AttestationEvaluator) Option {
	return func(e *Engine) { e.attest = a }
}

// WithSideChannel overrides the default best-effort telemetry channel.
func WithSideChannel(s *SideChannel) Option {
	return func(e *Engine) { e.side = s }
}

// New creates a lifecycle engine over the given store.
func New(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		tracer: telemetry.Tracer(tracerScope),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.attest == nil {
		e.attest = storeAttestation{store}
	}
	if e.side == nil {
		e.side = NewSideChannel(store, defaultSideBuffer)
	}
	return e
}

// Close drains and stops the telemetry side channel.
func (e *Engine) Close() {
	e.side.Close()
}

type storeAttestation struct{ store Store }

func (s storeAttestation) Status(ctx context.Context, dealID string, decisionID int64, tenantID string) (bool, error) {
	return s.store.GetAttestationStatus(ctx, dealID, decisionID, tenantID)
}

// Derive returns a complete point-in-time LifecycleState for the deal.
// It never returns an error: a missing deal yields the fixed not-found
// state, degraded reads yield infrastructure blockers, and anything that
// escapes the defensive layers is converted to the internal-error state.
func (e *Engine) Derive(ctx context.Context, dealID string) (state *types.LifecycleState) {
	ctx, span := e.tracer.Start(ctx, "lifecycle.derive",
		trace.WithAttributes(attribute.String("dt.deal.id", dealID)))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			debug.Errorf("derive %s: unexpected panic: %v\n", dealID, r)
			state = internalErrorState(dealID)
		}
	}()

	// The core record is the one read that cannot degrade: without the two
	// legacy stage values there is no stage to derive.
	dealOut := fetchOne(ctx, dealID, "deal", func(ctx context.Context) (*types.Deal, error) {
		d, err := e.store.GetDeal(ctx, dealID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil // absence is the not-found state, not a fetch failure
		}
		return d, err
	})
	if dealOut.failed() || dealOut.value == nil {
		return notFoundState(dealID)
	}
	deal := dealOut.value

	// Independent reads run in parallel; none depends on another and a
	// failure in one leaves the rest intact.
	var (
		checklistOut outcome[[]*types.ChecklistItem]
		requestsOut  outcome[[]*types.LoanRequest]
		snapshotOut  outcome[int]
		decisionOut  outcome[*types.Decision]
		packetOut    outcome[int]
		advancedOut  outcome[*time.Time]
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		checklistOut = fetchOne(gctx, dealID, "checklist", func(ctx context.Context) ([]*types.ChecklistItem, error) {
			return e.store.GetChecklistItems(ctx, dealID)
		})
		return nil
	})
	g.Go(func() error {
		requestsOut = fetchOne(gctx, dealID, "loan_request", func(ctx context.Context) ([]*types.LoanRequest, error) {
			return e.store.GetLoanRequests(ctx, dealID)
		})
		return nil
	})
	g.Go(func() error {
		snapshotOut = fetchOne(gctx, dealID, "snapshot", func(ctx context.Context) (int, error) {
			return e.store.CountSnapshots(ctx, dealID)
		})
		return nil
	})
	g.Go(func() error {
		decisionOut = fetchOne(gctx, dealID, "decision", func(ctx context.Context) (*types.Decision, error) {
			d, err := e.store.GetLatestDecision(ctx, dealID)
			if errors.Is(err, storage.ErrNotFound) {
				return nil, nil // no decision yet is absent data, not a failure
			}
			return d, err
		})
		return nil
	})
	g.Go(func() error {
		packetOut = fetchOne(gctx, dealID, "packet", func(ctx context.Context) (int, error) {
			return e.store.CountPacketEvents(ctx, dealID)
		})
		return nil
	})
	g.Go(func() error {
		advancedOut = fetchOne(gctx, dealID, "events", func(ctx context.Context) (*time.Time, error) {
			return e.store.GetLastAdvancedAt(ctx, dealID)
		})
		return nil
	})
	_ = g.Wait() // fetchOne never returns an error; the group only synchronizes

	var runtime []types.Blocker
	appendRuntime := func(b *types.Blocker) {
		if b != nil {
			runtime = append(runtime, *b)
		}
	}
	appendRuntime(checklistOut.blocker)
	appendRuntime(requestsOut.blocker)
	appendRuntime(snapshotOut.blocker)
	appendRuntime(decisionOut.blocker)
	appendRuntime(packetOut.blocker)
	appendRuntime(advancedOut.blocker)

	requestCount, hasIncomplete := summarizeLoanRequests(requestsOut.value)
	facts := e.deriveFacts(ctx, deal, checklistOut.value, requestCount, snapshotOut.value, decisionOut.value, packetOut.value)

	// Attestation depends on the decision id, so it runs after the batch.
	if facts.DecisionPresent && decisionOut.value != nil {
		satisfied, err := e.attestSatisfied(ctx, dealID, decisionOut.value.ID, deal.TenantID)
		if err != nil {
			debug.Logf("derive %s: attestation read failed, defaulting satisfied: %s\n",
				dealID, debug.RedactErr(err))
			satisfied = true
		}
		facts.AttestationSatisfied = satisfied
	}

	stage := ResolveStage(deal, facts)
	span.SetAttributes(attribute.String("dt.stage", string(stage)))

	blockers := ComputeBlockers(stage, facts, len(checklistOut.value), requestCount, hasIncomplete)
	blockers = append(blockers, runtime...)
	if blockers == nil {
		blockers = []types.Blocker{}
	}

	return &types.LifecycleState{
		DealID:         dealID,
		Stage:          stage,
		LastAdvancedAt: advancedOut.value,
		Blockers:       blockers,
		Derived:        facts,
	}
}

// attestSatisfied wraps the attestation evaluator with panic recovery; the
// evaluator is external code and the never-throws contract applies to it
// too.
func (e *Engine) attestSatisfied(ctx context.Context, dealID string, decisionID int64, tenantID string) (satisfied bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			satisfied, err = true, nil
			debug.Errorf("derive %s: attestation evaluator panicked: %v\n", dealID, r)
		}
	}()
	return e.attest.Status(ctx, dealID, decisionID, tenantID)
}

// deriveFacts computes the full derived-facts record from the fetched
// source records. Every field is recomputed on every call; nothing here is
// cached.
func (e *Engine) deriveFacts(ctx context.Context, deal *types.Deal, items []*types.ChecklistItem, requestCount, snapshotCount int, decision *types.Decision, packetCount int) types.DerivedFacts {
	facts := types.DerivedFacts{
		ChecklistSeeded:         len(items) > 0,
		HasSubmittedLoanRequest: requestCount > 0,
		FinancialSnapshotExists: snapshotCount > 0,
		CommitteePacketReady:    packetCount > 0,
		CommitteeRequired:       deal.CommitteeRequired,
		AttestationSatisfied:    true, // only unsatisfied when a decision exists and says so

		PricingQuoteReady:      deal.PricingQuoteLocked,
		RiskPricingFinalized:   deal.RiskPricingFinalized,
		StructuralPricingReady: deal.StructuralPricingReady,
		HasPricingAssumptions:  deal.HasPricingAssumptions,
		AIPipelineComplete:     deal.AIPipelineComplete,
		SpreadsComplete:        deal.SpreadsComplete,

		UnderwriteStarted: deal.InternalStage == types.InternalUnderwriting ||
			deal.InternalStage == types.InternalReady,
	}

	// A tabled decision leaves the committee still deliberating; only a
	// final outcome counts as decision-present.
	facts.DecisionPresent = decision != nil && decision.Outcome.IsFinal()

	yearSeen := make(map[int]bool)
	for _, item := range items {
		if !item.Required {
			continue
		}
		facts.RequiredDocCount++
		if item.Status.Satisfies() {
			facts.SatisfiedDocCount++
			continue
		}
		facts.MissingDocCount++
		if item.Year != 0 && !yearSeen[item.Year] {
			yearSeen[item.Year] = true
			facts.MissingDocYears = append(facts.MissingDocYears, item.Year)
		}
		if item.StatementKind != "" {
			facts.MissingStatements = append(facts.MissingStatements, item.StatementKind)
		}
		if item.Status == types.ChecklistNeedsReview {
			facts.GatekeeperNeedsReviewCount++
		}
	}

	// Percentage asymmetry is deliberate: no checklist at all reads as 0%,
	// a seeded checklist with zero required items reads as fully received.
	switch {
	case !facts.ChecklistSeeded:
		facts.RequiredDocsReceivedPct = 0
	case facts.RequiredDocCount == 0:
		facts.RequiredDocsReceivedPct = 100
	default:
		facts.RequiredDocsReceivedPct = int(math.Round(
			float64(facts.SatisfiedDocCount) / float64(facts.RequiredDocCount) * 100))
	}
	facts.GatekeeperReadinessPct = facts.RequiredDocsReceivedPct

	facts.DocsReady = e.docsReady(ctx, deal.ID, facts)

	return facts
}

// docsReady asks the external readiness evaluator, falling back to the
// local checklist comparison when the evaluator is absent or fails. The
// fallback is silent degradation by design; it never adds a blocker.
func (e *Engine) docsReady(ctx context.Context, dealID string, facts types.DerivedFacts) (ready bool) {
	local := facts.ChecklistSeeded && facts.MissingDocCount == 0
	if e.readiness == nil {
		return local
	}
	defer func() {
		if r := recover(); r != nil {
			debug.Logf("derive %s: readiness evaluator panicked, using local fallback: %v\n", dealID, r)
			ready = local
		}
	}()
	evaluated, err := e.readiness.ComputeReadiness(ctx, dealID)
	if err != nil {
		debug.Logf("derive %s: readiness evaluator failed, using local fallback: %s\n",
			dealID, debug.RedactErr(err))
		return local
	}
	return evaluated
}

// summarizeLoanRequests reduces the request list to the two values the
// blocker rules need.
func summarizeLoanRequests(reqs []*types.LoanRequest) (count int, hasIncomplete bool) {
	for _, r := range reqs {
		count++
		if !r.Complete {
			hasIncomplete = true
		}
	}
	return count, hasIncomplete
}

// ResolveStage reconciles the two legacy stage values plus derived facts
// into the unified stage. It is pure and exhaustively matched so synthetic
// inputs can exercise it without a database.
//
// Precedence: terminal borrower-facing values first (the borrower portal is
// the only writer that knows about funding), then internal workout, then
// the internal chain refined by derived facts.
func ResolveStage(deal *types.Deal, facts types.DerivedFacts) types.LifecycleStage {
	switch deal.BorrowerStage {
	case types.BorrowerFunded:
		return types.StageClosed
	case types.BorrowerClosing:
		return types.StageClosingInProgress
	}

	switch deal.InternalStage {
	case types.InternalWorkout:
		return types.StageWorkout
	case types.InternalIntake:
		return types.StageIntakeCreated
	case types.InternalCollecting:
		switch {
		case !facts.ChecklistSeeded || facts.RequiredDocsReceivedPct == 0:
			return types.StageDocsRequested
		case facts.DocsReady && facts.FinancialSnapshotExists:
			return types.StageUnderwriteReady
		case facts.DocsReady:
			return types.StageDocsSatisfied
		default:
			return types.StageDocsInProgress
		}
	case types.InternalUnderwriting:
		return types.StageUnderwriteInProgress
	case types.InternalReady:
		if facts.DecisionPresent {
			return types.StageCommitteeDecisioned
		}
		return types.StageCommitteeReady
	}
	return types.StageIntakeCreated
}

// notFoundState is the fixed fallback for a missing or unreadable deal
// record: initial stage, no timestamp, a single deal_not_found blocker.
func notFoundState(dealID string) *types.LifecycleState {
	return &types.LifecycleState{
		DealID: dealID,
		Stage:  types.StageIntakeCreated,
		Blockers: []types.Blocker{{
			Code:    types.BlockerDealNotFound,
			Message: "Deal not found.",
		}},
		Derived: types.DerivedFacts{},
	}
}

// internalErrorState is the outermost safety net for anything that escapes
// the defensive fetch layers.
func internalErrorState(dealID string) *types.LifecycleState {
	return &types.LifecycleState{
		DealID: dealID,
		Stage:  types.StageIntakeCreated,
		Blockers: []types.Blocker{{
			Code:    types.BlockerInternalError,
			Message: "An internal error occurred while deriving deal state.",
		}},
		Derived: types.DerivedFacts{},
	}
}
