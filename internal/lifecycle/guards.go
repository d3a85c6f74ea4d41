package lifecycle

import (
	"fmt"
	"strings"

	"github.com/crestmark/dealtrack/internal/types"
)

// GuardResult is the outcome of a guard check. A failed result carries the
// current stage, the full blocker list, and the redirect target so callers
// can render an explanation and route the user somewhere sensible.
type GuardResult struct {
	OK       bool                 `json:"ok"`
	Stage    types.LifecycleStage `json:"stage"`
	Blockers []types.Blocker      `json:"blockers,omitempty"`
	Redirect string               `json:"redirect,omitempty"`
}

// Explanation renders the human-readable reason for a failed guard: the
// joined blocker messages, or a stage-based fallback when the guard failed
// on stage alone.
func (r GuardResult) Explanation() string {
	if r.OK {
		return ""
	}
	if len(r.Blockers) > 0 {
		msgs := make([]string, len(r.Blockers))
		for i, b := range r.Blockers {
			msgs[i] = b.Message
		}
		return strings.Join(msgs, " ")
	}
	return fmt.Sprintf("This deal is in the %q stage.", r.Stage.Label())
}

func guardFail(state *types.LifecycleState, fallback string) GuardResult {
	return GuardResult{
		Stage:    state.Stage,
		Blockers: state.Blockers,
		Redirect: fallback,
	}
}

// RequireStage passes iff the current stage is literally one of the allowed
// stages.
func RequireStage(state *types.LifecycleState, allowed []types.LifecycleStage, fallback string) GuardResult {
	for _, s := range allowed {
		if state.Stage == s {
			return GuardResult{OK: true, Stage: state.Stage}
		}
	}
	return guardFail(state, fallback)
}

// RequireMinimumStage passes iff the current stage is at or beyond the
// minimum per the reachability ceiling. The workout branch is admitted for
// minimums at or before committee_decisioned and excluded once the minimum
// is closing_in_progress or later.
func RequireMinimumStage(state *types.LifecycleState, min types.LifecycleStage, fallback string) GuardResult {
	if state.Stage.AtOrBeyond(min) {
		return GuardResult{OK: true, Stage: state.Stage}
	}
	return guardFail(state, fallback)
}

// RequireNoBlockers passes iff the blocker list is empty.
func RequireNoBlockers(state *types.LifecycleState, fallback string) GuardResult {
	if len(state.Blockers) == 0 {
		return GuardResult{OK: true, Stage: state.Stage}
	}
	return guardFail(state, fallback)
}

// Page-specific guard presets. Each composes RequireMinimumStage with the
// fixed minimum for that page.

// GuardUnderwritePage gates the underwriting workspace.
func GuardUnderwritePage(state *types.LifecycleState) GuardResult {
	return RequireMinimumStage(state, types.StageUnderwriteReady, "/deals")
}

// GuardCommitteePage gates the committee review page.
func GuardCommitteePage(state *types.LifecycleState) GuardResult {
	return RequireMinimumStage(state, types.StageCommitteeReady, "/deals")
}

// GuardDecisionPage gates the decision-entry page.
func GuardDecisionPage(state *types.LifecycleState) GuardResult {
	return RequireMinimumStage(state, types.StageCommitteeReady, "/deals")
}

// GuardClosingPage gates the closing workspace.
func GuardClosingPage(state *types.LifecycleState) GuardResult {
	return RequireMinimumStage(state, types.StageCommitteeDecisioned, "/deals")
}
