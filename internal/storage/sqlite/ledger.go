package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/crestmark/dealtrack/internal/types"
)

// AppendLedgerEvent inserts a write-once ledger event. Each call is a new
// row; there is no update path, so concurrent appends cannot conflict.
func (s *Store) AppendLedgerEvent(ctx context.Context, ev *types.LedgerEvent) error {
	if !ev.Kind.IsValid() {
		return fmt.Errorf("append ledger event: invalid kind %q", ev.Kind)
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	var clientIP, userAgent, correlationID string
	if ev.Audit != nil {
		clientIP = ev.Audit.ClientIP
		userAgent = ev.Audit.UserAgent
		correlationID = ev.Audit.CorrelationID
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO ledger_events (deal_id, kind, actor, from_stage, to_stage,
			forced, reason, client_ip, user_agent, correlation_id, input, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.DealID, ev.Kind, ev.Actor, ev.FromStage, ev.ToStage,
		ev.Forced, ev.Reason, clientIP, userAgent, correlationID, ev.Input, ev.CreatedAt)
	if err != nil {
		return wrapDBErrorf(err, "append ledger event %s for %s", ev.Kind, ev.DealID)
	}
	ev.ID, err = res.LastInsertId()
	return wrapDBError("append ledger event", err)
}

// GetLedgerEvents returns the most recent ledger events for a deal, newest
// first. limit <= 0 means no limit.
func (s *Store) GetLedgerEvents(ctx context.Context, dealID string, limit int) ([]*types.LedgerEvent, error) {
	q := `
		SELECT id, deal_id, kind, actor, from_stage, to_stage, forced, reason,
			client_ip, user_agent, correlation_id, input, created_at
		FROM ledger_events WHERE deal_id = ? ORDER BY id DESC`
	args := []interface{}{dealID}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, wrapDBErrorf(err, "get ledger events for %s", dealID)
	}
	defer rows.Close()

	var events []*types.LedgerEvent
	for rows.Next() {
		var ev types.LedgerEvent
		var clientIP, userAgent, correlationID string
		if err := rows.Scan(&ev.ID, &ev.DealID, &ev.Kind, &ev.Actor, &ev.FromStage,
			&ev.ToStage, &ev.Forced, &ev.Reason, &clientIP, &userAgent,
			&correlationID, &ev.Input, &ev.CreatedAt); err != nil {
			return nil, wrapDBErrorf(err, "scan ledger event for %s", dealID)
		}
		if clientIP != "" || userAgent != "" || correlationID != "" {
			ev.Audit = &types.AuditMeta{
				ClientIP:      clientIP,
				UserAgent:     userAgent,
				CorrelationID: correlationID,
			}
		}
		events = append(events, &ev)
	}
	return events, wrapDBError("get ledger events", rows.Err())
}

// GetLastAdvancedAt returns the timestamp of the most recent advancement
// event (normal or forced), or nil when the deal has never advanced.
func (s *Store) GetLastAdvancedAt(ctx context.Context, dealID string) (*time.Time, error) {
	var ts time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT created_at FROM ledger_events
		WHERE deal_id = ? AND kind IN (?, ?)
		ORDER BY id DESC LIMIT 1`,
		dealID, types.EventAdvanced, types.EventForceAdvanced).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapDBErrorf(err, "get last advanced at for %s", dealID)
	}
	return &ts, nil
}
