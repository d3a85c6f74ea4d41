package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/crestmark/dealtrack/internal/storage"
	"github.com/crestmark/dealtrack/internal/types"
)

// SeedChecklist inserts the initial checklist for a deal in one
// transaction. Seeding twice is an error; the checklist is the source of
// truth for document facts and must not be silently re-created.
func (s *Store) SeedChecklist(ctx context.Context, dealID string, items []*types.ChecklistItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapDBError("seed checklist", err)
	}
	defer tx.Rollback()

	var existing int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM checklist_items WHERE deal_id = ?", dealID).Scan(&existing); err != nil {
		return wrapDBErrorf(err, "seed checklist for %s", dealID)
	}
	if existing > 0 {
		return fmt.Errorf("seed checklist for %s: already seeded (%d items)", dealID, existing)
	}

	now := time.Now().UTC()
	for _, item := range items {
		status := item.Status
		if status == "" {
			status = types.ChecklistPending
		}
		if !status.IsValid() {
			return fmt.Errorf("seed checklist for %s: invalid status %q on %s", dealID, status, item.Key)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO checklist_items (deal_id, item_key, required, status, doc_year, statement_kind, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			dealID, item.Key, item.Required, status, item.Year, item.StatementKind, now, now)
		if err != nil {
			return wrapDBErrorf(err, "seed checklist item %s for %s", item.Key, dealID)
		}
	}

	return wrapDBError("seed checklist", tx.Commit())
}

// SetChecklistItemStatus updates the status of a single checklist item.
func (s *Store) SetChecklistItemStatus(ctx context.Context, dealID, key string, status types.ChecklistStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("set checklist status: invalid status %q", status)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE checklist_items SET status = ?, updated_at = ?
		WHERE deal_id = ? AND item_key = ?`,
		status, time.Now().UTC(), dealID, key)
	if err != nil {
		return wrapDBErrorf(err, "set checklist status %s/%s", dealID, key)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapDBError("set checklist status", err)
	}
	if n == 0 {
		return fmt.Errorf("checklist item %s/%s: %w", dealID, key, storage.ErrNotFound)
	}
	return nil
}

// GetChecklistItems returns all checklist items for a deal, in insertion
// order. An unseeded checklist returns an empty slice, not an error.
func (s *Store) GetChecklistItems(ctx context.Context, dealID string) ([]*types.ChecklistItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, deal_id, item_key, required, status, doc_year, statement_kind, created_at, updated_at
		FROM checklist_items WHERE deal_id = ? ORDER BY id`, dealID)
	if err != nil {
		return nil, wrapDBErrorf(err, "get checklist for %s", dealID)
	}
	defer rows.Close()

	var items []*types.ChecklistItem
	for rows.Next() {
		var item types.ChecklistItem
		if err := rows.Scan(&item.ID, &item.DealID, &item.Key, &item.Required,
			&item.Status, &item.Year, &item.StatementKind, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, wrapDBErrorf(err, "scan checklist item for %s", dealID)
		}
		items = append(items, &item)
	}
	return items, wrapDBError("get checklist", rows.Err())
}
