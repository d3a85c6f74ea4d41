package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/crestmark/dealtrack/internal/debug"
	"github.com/crestmark/dealtrack/internal/storage"
	"github.com/crestmark/dealtrack/internal/types"
)

// Advance attempts to move the deal to the next stage in the transition
// graph. It is the only legitimate mutator of unified lifecycle stage.
//
// The durable write is the lifecycle_advanced ledger event; everything
// after it (legacy stage update, borrower-stage sync) is fail-soft. A
// blocked attempt records a best-effort lifecycle_blocked event through the
// side channel and returns both the transition-relevant and full blocker
// lists.
func (e *Engine) Advance(ctx context.Context, dealID, actor string) *types.AdvanceResult {
	ctx, span := e.tracer.Start(ctx, "lifecycle.advance",
		trace.WithAttributes(
			attribute.String("dt.deal.id", dealID),
			attribute.String("dt.actor", actor),
		))
	defer span.End()

	state := e.Derive(ctx, dealID)
	if state.NotFound() {
		return &types.AdvanceResult{
			ErrorCode: types.BlockerDealNotFound,
			State:     state,
		}
	}

	next := state.Stage.NextStage()
	if next == "" {
		return &types.AdvanceResult{
			OK:     true,
			From:   state.Stage,
			Reason: fmt.Sprintf("deal is %s; no further stage to advance into", state.Stage),
			State:  state,
		}
	}
	span.SetAttributes(
		attribute.String("dt.stage.from", string(state.Stage)),
		attribute.String("dt.stage.to", string(next)),
	)

	// Only blockers gating this specific transition block it. Unmapped
	// codes, infrastructure codes included, never block an advance.
	var blocking []types.Blocker
	for _, b := range state.Blockers {
		if b.Code.Gates(next) {
			blocking = append(blocking, b)
		}
	}
	if len(blocking) > 0 {
		e.side.Emit(&types.LedgerEvent{
			DealID:    dealID,
			Kind:      types.EventBlocked,
			Actor:     actor,
			FromStage: state.Stage,
			ToStage:   next,
			Input:     blockerCodesJSON(blocking),
		})
		return &types.AdvanceResult{
			From:        state.Stage,
			To:          next,
			Blocking:    blocking,
			AllBlockers: state.Blockers,
			State:       state,
		}
	}

	// The authoritative write. A failure here fails the whole operation;
	// an advancement without its ledger record never happened.
	if err := e.store.AppendLedgerEvent(ctx, &types.LedgerEvent{
		DealID:    dealID,
		Kind:      types.EventAdvanced,
		Actor:     actor,
		FromStage: state.Stage,
		ToStage:   next,
	}); err != nil {
		debug.Warnf("advance %s: ledger write failed: %s\n", dealID, debug.RedactErr(err))
		return &types.AdvanceResult{
			From:      state.Stage,
			To:        next,
			ErrorCode: types.BlockerInternalError,
			Reason:    "ledger write failed",
			State:     state,
		}
	}
	debug.LogEventWithActor("lifecycle_advanced", dealID, actor,
		fmt.Sprintf("%s -> %s", state.Stage, next))

	e.syncLegacyStages(ctx, dealID, next, actor)

	fresh := e.Derive(ctx, dealID)
	return &types.AdvanceResult{
		OK:       true,
		Advanced: true,
		From:     state.Stage,
		To:       next,
		State:    fresh,
	}
}

// ForceAdvance moves the deal to an explicit target stage, bypassing
// blocker filtering. The ledger event is tagged forced and carries the
// caller's justification and optional audit metadata. Access control is the
// caller's concern.
func (e *Engine) ForceAdvance(ctx context.Context, dealID string, target types.LifecycleStage, actor, reason string, audit *types.AuditMeta) *types.AdvanceResult {
	ctx, span := e.tracer.Start(ctx, "lifecycle.force_advance",
		trace.WithAttributes(
			attribute.String("dt.deal.id", dealID),
			attribute.String("dt.stage.to", string(target)),
			attribute.String("dt.actor", actor),
		))
	defer span.End()

	if !target.IsValid() {
		return &types.AdvanceResult{
			ErrorCode: types.BlockerInternalError,
			Reason:    fmt.Sprintf("unknown target stage %q", target),
		}
	}
	if reason == "" {
		return &types.AdvanceResult{
			ErrorCode: types.BlockerInternalError,
			Reason:    "a justification is required to force-advance",
		}
	}

	state := e.Derive(ctx, dealID)
	if state.NotFound() {
		return &types.AdvanceResult{
			ErrorCode: types.BlockerDealNotFound,
			State:     state,
		}
	}

	if audit == nil {
		audit = &types.AuditMeta{}
	}
	if audit.CorrelationID == "" {
		audit.CorrelationID = uuid.NewString()
	}

	if err := e.store.AppendLedgerEvent(ctx, &types.LedgerEvent{
		DealID:    dealID,
		Kind:      types.EventForceAdvanced,
		Actor:     actor,
		FromStage: state.Stage,
		ToStage:   target,
		Forced:    true,
		Reason:    reason,
		Audit:     audit,
	}); err != nil {
		debug.Warnf("force advance %s: ledger write failed: %s\n", dealID, debug.RedactErr(err))
		return &types.AdvanceResult{
			From:      state.Stage,
			To:        target,
			ErrorCode: types.BlockerInternalError,
			Reason:    "ledger write failed",
			State:     state,
		}
	}
	debug.LogEventWithActor("lifecycle_force_advanced", dealID, actor,
		fmt.Sprintf("%s -> %s (%s)", state.Stage, target, reason))

	e.syncLegacyStages(ctx, dealID, target, actor)

	fresh := e.Derive(ctx, dealID)
	return &types.AdvanceResult{
		OK:       true,
		Advanced: true,
		From:     state.Stage,
		To:       target,
		State:    fresh,
	}
}

// syncLegacyStages propagates a unified-stage move into the two legacy
// models. Both writes are fail-soft: an invalid legacy transition is
// expected and benign (the legacy chain is coarser than the unified one),
// and any other failure is logged without failing the advancement.
func (e *Engine) syncLegacyStages(ctx context.Context, dealID string, to types.LifecycleStage, actor string) {
	if internal := types.InternalStageFor(to); internal != "" {
		err := e.store.UpdateInternalStage(ctx, dealID, internal, actor)
		switch {
		case err == nil:
		case errors.Is(err, storage.ErrInvalidTransition):
			debug.Logf("advance %s: internal stage %s not applicable, skipping\n", dealID, internal)
		default:
			debug.Warnf("advance %s: internal stage sync failed: %s\n", dealID, debug.RedactErr(err))
		}
	}

	// Workout has no borrower-facing value; the portal keeps showing the
	// last synced stage.
	borrower := types.BorrowerStageFor(to)
	if borrower == "" {
		return
	}
	if err := e.store.UpsertBorrowerStage(ctx, dealID, borrower, actor); err != nil {
		debug.Warnf("advance %s: borrower stage sync failed: %s\n", dealID, debug.RedactErr(err))
		return
	}
	e.side.Emit(&types.LedgerEvent{
		DealID:  dealID,
		Kind:    types.EventStatusSynced,
		Actor:   actor,
		ToStage: to,
		Input:   fmt.Sprintf(`{"borrower_stage":%q}`, borrower),
	})
}

// blockerCodesJSON renders the codes of a blocker list as a JSON array for
// the ledger event input column.
func blockerCodesJSON(blockers []types.Blocker) string {
	out := "["
	for i, b := range blockers {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf("%q", b.Code)
	}
	return out + "]"
}
