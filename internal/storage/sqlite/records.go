package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/crestmark/dealtrack/internal/storage"
	"github.com/crestmark/dealtrack/internal/types"
)

// CreateLoanRequest records a submitted loan request.
func (s *Store) CreateLoanRequest(ctx context.Context, req *types.LoanRequest) error {
	if req.SubmittedAt.IsZero() {
		req.SubmittedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO loan_requests (deal_id, complete, submitted_at, completed_at)
		VALUES (?, ?, ?, ?)`,
		req.DealID, req.Complete, req.SubmittedAt, req.CompletedAt)
	if err != nil {
		return wrapDBErrorf(err, "create loan request for %s", req.DealID)
	}
	req.ID, err = res.LastInsertId()
	return wrapDBError("create loan request", err)
}

// SetLoanRequestComplete marks a loan request complete.
func (s *Store) SetLoanRequestComplete(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		"UPDATE loan_requests SET complete = 1, completed_at = ? WHERE id = ?", now, id)
	if err != nil {
		return wrapDBErrorf(err, "complete loan request %d", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapDBError("complete loan request", err)
	}
	if n == 0 {
		return fmt.Errorf("loan request %d: %w", id, storage.ErrNotFound)
	}
	return nil
}

// GetLoanRequests returns all loan requests for a deal, oldest first.
func (s *Store) GetLoanRequests(ctx context.Context, dealID string) ([]*types.LoanRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, deal_id, complete, submitted_at, completed_at
		FROM loan_requests WHERE deal_id = ? ORDER BY id`, dealID)
	if err != nil {
		return nil, wrapDBErrorf(err, "get loan requests for %s", dealID)
	}
	defer rows.Close()

	var reqs []*types.LoanRequest
	for rows.Next() {
		var r types.LoanRequest
		if err := rows.Scan(&r.ID, &r.DealID, &r.Complete, &r.SubmittedAt, &r.CompletedAt); err != nil {
			return nil, wrapDBErrorf(err, "scan loan request for %s", dealID)
		}
		reqs = append(reqs, &r)
	}
	return reqs, wrapDBError("get loan requests", rows.Err())
}

// RecordSnapshot stores a financial snapshot payload for a deal.
func (s *Store) RecordSnapshot(ctx context.Context, dealID string, payload string) error {
	if payload == "" {
		payload = "{}"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO financial_snapshots (deal_id, payload, created_at)
		VALUES (?, ?, ?)`, dealID, payload, time.Now().UTC())
	return wrapDBErrorf(err, "record snapshot for %s", dealID)
}

// CountSnapshots returns the number of financial snapshots for a deal.
func (s *Store) CountSnapshots(ctx context.Context, dealID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM financial_snapshots WHERE deal_id = ?", dealID).Scan(&n)
	return n, wrapDBErrorf(err, "count snapshots for %s", dealID)
}

// RecordDecision stores a committee decision.
func (s *Store) RecordDecision(ctx context.Context, decision *types.Decision) error {
	if !decision.Outcome.IsValid() {
		return fmt.Errorf("record decision: invalid outcome %q", decision.Outcome)
	}
	if decision.DecidedAt.IsZero() {
		decision.DecidedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO decisions (deal_id, outcome, decided_by, decided_at)
		VALUES (?, ?, ?, ?)`,
		decision.DealID, decision.Outcome, decision.DecidedBy, decision.DecidedAt)
	if err != nil {
		return wrapDBErrorf(err, "record decision for %s", decision.DealID)
	}
	decision.ID, err = res.LastInsertId()
	return wrapDBError("record decision", err)
}

// GetLatestDecision returns the most recent decision for a deal, or
// storage.ErrNotFound when the committee has not decided.
func (s *Store) GetLatestDecision(ctx context.Context, dealID string) (*types.Decision, error) {
	var d types.Decision
	err := s.db.QueryRowContext(ctx, `
		SELECT id, deal_id, outcome, decided_by, decided_at
		FROM decisions WHERE deal_id = ? ORDER BY decided_at DESC, id DESC LIMIT 1`, dealID).
		Scan(&d.ID, &d.DealID, &d.Outcome, &d.DecidedBy, &d.DecidedAt)
	if err != nil {
		return nil, wrapDBErrorf(err, "get latest decision for %s", dealID)
	}
	return &d, nil
}

// SetAttestation records whether the attestation for a decision is satisfied.
func (s *Store) SetAttestation(ctx context.Context, dealID string, decisionID int64, satisfied bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attestations (deal_id, decision_id, satisfied, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(deal_id, decision_id) DO UPDATE SET satisfied = excluded.satisfied, updated_at = excluded.updated_at`,
		dealID, decisionID, satisfied, time.Now().UTC())
	return wrapDBErrorf(err, "set attestation for %s/%d", dealID, decisionID)
}

// GetAttestationStatus returns whether attestation is satisfied for a
// decision. A decision with no attestation row is unsatisfied, not an error.
func (s *Store) GetAttestationStatus(ctx context.Context, dealID string, decisionID int64, tenantID string) (bool, error) {
	var satisfied bool
	err := s.db.QueryRowContext(ctx, `
		SELECT satisfied FROM attestations WHERE deal_id = ? AND decision_id = ?`,
		dealID, decisionID).Scan(&satisfied)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, wrapDBErrorf(err, "get attestation for %s/%d", dealID, decisionID)
	}
	return satisfied, nil
}

// RecordPacketGenerated appends a packet_generated ledger event. Packet
// readiness is derived by counting these events, never from a mutable flag.
func (s *Store) RecordPacketGenerated(ctx context.Context, dealID, actor string) error {
	return s.AppendLedgerEvent(ctx, &types.LedgerEvent{
		DealID: dealID,
		Kind:   types.EventPacketGenerated,
		Actor:  actor,
	})
}

// CountPacketEvents returns the number of packet_generated events for a deal.
func (s *Store) CountPacketEvents(ctx context.Context, dealID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM ledger_events WHERE deal_id = ? AND kind = ?",
		dealID, types.EventPacketGenerated).Scan(&n)
	return n, wrapDBErrorf(err, "count packet events for %s", dealID)
}
