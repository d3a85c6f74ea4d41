package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/crestmark/dealtrack/internal/storage"
	"github.com/crestmark/dealtrack/internal/types"
)

// dealColumns is the column list scanned by scanDeal, in order.
const dealColumns = `id, tenant_id, borrower_name, internal_stage, borrower_stage,
	committee_required, has_pricing_assumptions, risk_pricing_finalized,
	structural_pricing_ready, pricing_quote_locked, ai_pipeline_complete,
	spreads_complete, created_at, updated_at`

func scanDeal(row *sql.Row) (*types.Deal, error) {
	var d types.Deal
	err := row.Scan(
		&d.ID, &d.TenantID, &d.BorrowerName, &d.InternalStage, &d.BorrowerStage,
		&d.CommitteeRequired, &d.HasPricingAssumptions, &d.RiskPricingFinalized,
		&d.StructuralPricingReady, &d.PricingQuoteLocked, &d.AIPipelineComplete,
		&d.SpreadsComplete, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// CreateDeal inserts a new deal record. Zero-valued stages default to the
// start of each legacy model.
func (s *Store) CreateDeal(ctx context.Context, deal *types.Deal) error {
	if deal.InternalStage == "" {
		deal.InternalStage = types.InternalIntake
	}
	if deal.BorrowerStage == "" {
		deal.BorrowerStage = types.BorrowerApplicationStarted
	}
	if err := deal.Validate(); err != nil {
		return fmt.Errorf("create deal: %w", err)
	}

	now := time.Now().UTC()
	if deal.CreatedAt.IsZero() {
		deal.CreatedAt = now
	}
	deal.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deals (id, tenant_id, borrower_name, internal_stage, borrower_stage,
			committee_required, has_pricing_assumptions, risk_pricing_finalized,
			structural_pricing_ready, pricing_quote_locked, ai_pipeline_complete,
			spreads_complete, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		deal.ID, deal.TenantID, deal.BorrowerName, deal.InternalStage, deal.BorrowerStage,
		deal.CommitteeRequired, deal.HasPricingAssumptions, deal.RiskPricingFinalized,
		deal.StructuralPricingReady, deal.PricingQuoteLocked, deal.AIPipelineComplete,
		deal.SpreadsComplete, deal.CreatedAt, deal.UpdatedAt,
	)
	return wrapDBErrorf(err, "create deal %s", deal.ID)
}

// GetDeal returns one deal by id, or storage.ErrNotFound.
func (s *Store) GetDeal(ctx context.Context, id string) (*types.Deal, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+dealColumns+" FROM deals WHERE id = ?", id)
	deal, err := scanDeal(row)
	if err != nil {
		return nil, wrapDBErrorf(err, "get deal %s", id)
	}
	return deal, nil
}

// dealFlagColumns whitelists the boolean content flags settable via
// SetDealFlag. Flag names are caller input and must never reach SQL text
// unchecked.
var dealFlagColumns = map[string]string{
	"has_pricing_assumptions":  "has_pricing_assumptions",
	"risk_pricing_finalized":   "risk_pricing_finalized",
	"structural_pricing_ready": "structural_pricing_ready",
	"pricing_quote_locked":     "pricing_quote_locked",
	"ai_pipeline_complete":     "ai_pipeline_complete",
	"spreads_complete":         "spreads_complete",
}

// SetDealFlag sets one of the whitelisted content-derived boolean flags.
func (s *Store) SetDealFlag(ctx context.Context, id, flag string, value bool) error {
	col, ok := dealFlagColumns[flag]
	if !ok {
		return fmt.Errorf("set deal flag: unknown flag %q", flag)
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE deals SET "+col+" = ?, updated_at = ? WHERE id = ?",
		value, time.Now().UTC(), id)
	if err != nil {
		return wrapDBErrorf(err, "set deal flag %s on %s", flag, id)
	}
	return requireRow(res, id)
}

// SetCommitteeRequired sets whether this deal must go through committee.
func (s *Store) SetCommitteeRequired(ctx context.Context, id string, required bool) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE deals SET committee_required = ?, updated_at = ? WHERE id = ?",
		required, time.Now().UTC(), id)
	if err != nil {
		return wrapDBErrorf(err, "set committee required on %s", id)
	}
	return requireRow(res, id)
}

// UpdateInternalStage moves the legacy internal stage to target using the
// store's conditional-update semantics: the UPDATE only applies while the
// row still holds the stage we read, so a concurrent writer surfaces as
// ErrInvalidTransition rather than a lost update.
func (s *Store) UpdateInternalStage(ctx context.Context, id string, target types.InternalStage, actor string) error {
	if !target.IsValid() {
		return fmt.Errorf("update internal stage: invalid target %q", target)
	}

	var current types.InternalStage
	err := s.db.QueryRowContext(ctx,
		"SELECT internal_stage FROM deals WHERE id = ?", id).Scan(&current)
	if err != nil {
		return wrapDBErrorf(err, "update internal stage for %s", id)
	}

	if !current.CanAdvanceTo(target) {
		return fmt.Errorf("update internal stage for %s (%s -> %s): %w",
			id, current, target, storage.ErrInvalidTransition)
	}
	if current == target {
		return nil
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE deals SET internal_stage = ?, updated_at = ?
		WHERE id = ? AND internal_stage = ?`,
		target, time.Now().UTC(), id, current)
	if err != nil {
		return wrapDBErrorf(err, "update internal stage for %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapDBError("update internal stage", err)
	}
	if n == 0 {
		return fmt.Errorf("update internal stage for %s: concurrent change: %w",
			id, storage.ErrInvalidTransition)
	}
	return nil
}

// UpsertBorrowerStage writes the borrower-facing stage value. Unlike the
// internal stage there is no transition check; the borrower-facing value
// is a display projection, not a state machine.
func (s *Store) UpsertBorrowerStage(ctx context.Context, id string, target types.BorrowerStage, actor string) error {
	if !target.IsValid() {
		return fmt.Errorf("upsert borrower stage: invalid target %q", target)
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE deals SET borrower_stage = ?, updated_at = ? WHERE id = ?",
		target, time.Now().UTC(), id)
	if err != nil {
		return wrapDBErrorf(err, "upsert borrower stage for %s", id)
	}
	return requireRow(res, id)
}

// requireRow converts a zero-row UPDATE into storage.ErrNotFound.
func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return wrapDBError("rows affected", err)
	}
	if n == 0 {
		return fmt.Errorf("deal %s: %w", id, storage.ErrNotFound)
	}
	return nil
}
