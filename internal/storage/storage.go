// Package storage provides shared types for deal storage.
//
// The concrete storage implementation lives in the sqlite sub-package.
// This package holds the interface and sentinel errors that are referenced
// by both the sqlite implementation and its consumers (internal/lifecycle,
// cmd/dt, etc.).
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/crestmark/dealtrack/internal/types"
)

// ErrNotFound is returned when a requested entity does not exist in the database.
var ErrNotFound = errors.New("not found")

// ErrInvalidTransition is returned when a legacy internal-stage update is
// not a legal move from the current value. Callers on the advancement path
// treat this error as expected and benign.
var ErrInvalidTransition = errors.New("invalid transition")

// ErrNotInitialized is returned when the database has not been initialized.
var ErrNotInitialized = errors.New("database not initialized")

// Storage is the interface satisfied by *sqlite.Store.
// Consumers depend on this interface rather than on the concrete type so
// that alternative implementations (fakes, instrumented wrappers) can be
// substituted.
type Storage interface {
	// Deals
	CreateDeal(ctx context.Context, deal *types.Deal) error
	GetDeal(ctx context.Context, id string) (*types.Deal, error)
	SetDealFlag(ctx context.Context, id, flag string, value bool) error
	SetCommitteeRequired(ctx context.Context, id string, required bool) error

	// Legacy stage models. UpdateInternalStage performs a conditional
	// update and fails with ErrInvalidTransition on an illegal legacy move.
	// UpsertBorrowerStage is the borrower-status write used by the
	// fail-soft sync path.
	UpdateInternalStage(ctx context.Context, id string, target types.InternalStage, actor string) error
	UpsertBorrowerStage(ctx context.Context, id string, target types.BorrowerStage, actor string) error

	// Checklist
	SeedChecklist(ctx context.Context, dealID string, items []*types.ChecklistItem) error
	SetChecklistItemStatus(ctx context.Context, dealID, key string, status types.ChecklistStatus) error
	GetChecklistItems(ctx context.Context, dealID string) ([]*types.ChecklistItem, error)

	// Loan requests
	CreateLoanRequest(ctx context.Context, req *types.LoanRequest) error
	SetLoanRequestComplete(ctx context.Context, id int64) error
	GetLoanRequests(ctx context.Context, dealID string) ([]*types.LoanRequest, error)

	// Financial snapshots
	RecordSnapshot(ctx context.Context, dealID string, payload string) error
	CountSnapshots(ctx context.Context, dealID string) (int, error)

	// Committee decisions and attestations
	RecordDecision(ctx context.Context, decision *types.Decision) error
	GetLatestDecision(ctx context.Context, dealID string) (*types.Decision, error)
	SetAttestation(ctx context.Context, dealID string, decisionID int64, satisfied bool) error
	GetAttestationStatus(ctx context.Context, dealID string, decisionID int64, tenantID string) (bool, error)

	// Committee packets
	RecordPacketGenerated(ctx context.Context, dealID, actor string) error
	CountPacketEvents(ctx context.Context, dealID string) (int, error)

	// Ledger (append-only)
	AppendLedgerEvent(ctx context.Context, ev *types.LedgerEvent) error
	GetLedgerEvents(ctx context.Context, dealID string, limit int) ([]*types.LedgerEvent, error)
	GetLastAdvancedAt(ctx context.Context, dealID string) (*time.Time, error)

	// Lifecycle
	Close() error
}
