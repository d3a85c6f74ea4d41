// Package types defines core data structures for the dealtrack lifecycle engine.
package types

import (
	"fmt"
	"time"
)

// Deal is the core deal record. It carries the two independently-evolving
// legacy stage values plus the content-derived flags written by the
// surrounding pricing and document pipelines.
type Deal struct {
	ID            string        `json:"id"`
	TenantID      string        `json:"tenant_id"`
	BorrowerName  string        `json:"borrower_name"`
	InternalStage InternalStage `json:"internal_stage"`
	BorrowerStage BorrowerStage `json:"borrower_stage"`

	CommitteeRequired bool `json:"committee_required"`

	// Content-derived flags, owned by external pipelines (pricing, OCR).
	HasPricingAssumptions  bool `json:"has_pricing_assumptions"`
	RiskPricingFinalized   bool `json:"risk_pricing_finalized"`
	StructuralPricingReady bool `json:"structural_pricing_ready"`
	PricingQuoteLocked     bool `json:"pricing_quote_locked"`
	AIPipelineComplete     bool `json:"ai_pipeline_complete"`
	SpreadsComplete        bool `json:"spreads_complete"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the deal has valid field values.
func (d *Deal) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("deal id is required")
	}
	if d.TenantID == "" {
		return fmt.Errorf("tenant id is required")
	}
	if !d.InternalStage.IsValid() {
		return fmt.Errorf("invalid internal stage: %s", d.InternalStage)
	}
	if !d.BorrowerStage.IsValid() {
		return fmt.Errorf("invalid borrower stage: %s", d.BorrowerStage)
	}
	return nil
}

// ChecklistStatus is the state of one checklist item.
type ChecklistStatus string

// Checklist item status constants
const (
	ChecklistPending     ChecklistStatus = "pending"
	ChecklistReceived    ChecklistStatus = "received"
	ChecklistNeedsReview ChecklistStatus = "needs_review"
	ChecklistSatisfied   ChecklistStatus = "satisfied"
	ChecklistWaived      ChecklistStatus = "waived"
)

// IsValid checks if the checklist status value is valid.
func (s ChecklistStatus) IsValid() bool {
	switch s {
	case ChecklistPending, ChecklistReceived, ChecklistNeedsReview, ChecklistSatisfied, ChecklistWaived:
		return true
	}
	return false
}

// Satisfies reports whether the item counts toward the satisfied total.
// Waived items count as satisfied: the requirement was dismissed, not met,
// but either way it no longer blocks.
func (s ChecklistStatus) Satisfies() bool {
	return s == ChecklistSatisfied || s == ChecklistWaived
}

// ChecklistItem is one required or optional document on a deal's checklist.
// Year and StatementKind identify financial-statement items so missing-year
// evidence can be reported.
type ChecklistItem struct {
	ID            int64           `json:"id"`
	DealID        string          `json:"deal_id"`
	Key           string          `json:"key"`
	Required      bool            `json:"required"`
	Status        ChecklistStatus `json:"status"`
	Year          int             `json:"year,omitempty"`
	StatementKind string          `json:"statement_kind,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// LoanRequest is the borrower's submitted loan request form.
type LoanRequest struct {
	ID          int64      `json:"id"`
	DealID      string     `json:"deal_id"`
	Complete    bool       `json:"complete"`
	SubmittedAt time.Time  `json:"submitted_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// DecisionOutcome is the committee's final call on a deal.
type DecisionOutcome string

// Decision outcome constants
const (
	DecisionApproved DecisionOutcome = "approved"
	DecisionDeclined DecisionOutcome = "declined"
	DecisionTabled   DecisionOutcome = "tabled"
)

// IsValid checks if the decision outcome value is valid.
func (o DecisionOutcome) IsValid() bool {
	switch o {
	case DecisionApproved, DecisionDeclined, DecisionTabled:
		return true
	}
	return false
}

// IsFinal reports whether the outcome concludes committee review. A tabled
// deal is still awaiting a decision.
func (o DecisionOutcome) IsFinal() bool {
	return o == DecisionApproved || o == DecisionDeclined
}

// Decision is a committee decision record.
type Decision struct {
	ID        int64           `json:"id"`
	DealID    string          `json:"deal_id"`
	Outcome   DecisionOutcome `json:"outcome"`
	DecidedBy string          `json:"decided_by"`
	DecidedAt time.Time       `json:"decided_at"`
}

// EventKind categorizes ledger events.
type EventKind string

// Ledger event kind constants. The advancement path is the only writer of
// EventAdvanced and EventForceAdvanced.
const (
	EventAdvanced        EventKind = "lifecycle_advanced"
	EventForceAdvanced   EventKind = "lifecycle_force_advanced"
	EventBlocked         EventKind = "lifecycle_blocked"
	EventStatusSynced    EventKind = "status_synced"
	EventPacketGenerated EventKind = "packet_generated"
)

// IsValid checks if the event kind value is valid.
func (k EventKind) IsValid() bool {
	switch k {
	case EventAdvanced, EventForceAdvanced, EventBlocked, EventStatusSynced, EventPacketGenerated:
		return true
	}
	return false
}

// AuditMeta carries optional request metadata on forced advancements.
type AuditMeta struct {
	ClientIP      string `json:"client_ip,omitempty"`
	UserAgent     string `json:"user_agent,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// LedgerEvent is a write-once, append-only audit record. Events are never
// mutated or deleted.
type LedgerEvent struct {
	ID        int64          `json:"id"`
	DealID    string         `json:"deal_id"`
	Kind      EventKind      `json:"kind"`
	Actor     string         `json:"actor"`
	FromStage LifecycleStage `json:"from_stage,omitempty"`
	ToStage   LifecycleStage `json:"to_stage,omitempty"`
	Forced    bool           `json:"forced,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Audit     *AuditMeta     `json:"audit,omitempty"`
	Input     string         `json:"input,omitempty"` // JSON payload, event-kind specific
	CreatedAt time.Time      `json:"created_at"`
}

// DerivedFacts is the flat record of facts recomputed from source of truth
// on every derivation call. Nothing here is cached or manually settable.
type DerivedFacts struct {
	ChecklistSeeded         bool  `json:"checklist_seeded"`
	RequiredDocCount        int   `json:"required_doc_count"`
	SatisfiedDocCount       int   `json:"satisfied_doc_count"`
	MissingDocCount         int   `json:"missing_doc_count"`
	DocsReady               bool  `json:"docs_ready"`
	RequiredDocsReceivedPct int   `json:"required_docs_received_pct"`
	MissingDocYears         []int `json:"missing_doc_years,omitempty"`

	GatekeeperReadinessPct     int      `json:"gatekeeper_readiness_pct"`
	GatekeeperNeedsReviewCount int      `json:"gatekeeper_needs_review_count"`
	MissingStatements          []string `json:"missing_statements,omitempty"`

	UnderwriteStarted       bool `json:"underwrite_started"`
	FinancialSnapshotExists bool `json:"financial_snapshot_exists"`
	CommitteePacketReady    bool `json:"committee_packet_ready"`
	DecisionPresent         bool `json:"decision_present"`
	CommitteeRequired       bool `json:"committee_required"`
	AttestationSatisfied    bool `json:"attestation_satisfied"`

	PricingQuoteReady      bool `json:"pricing_quote_ready"`
	RiskPricingFinalized   bool `json:"risk_pricing_finalized"`
	StructuralPricingReady bool `json:"structural_pricing_ready"`
	HasPricingAssumptions  bool `json:"has_pricing_assumptions"`

	AIPipelineComplete bool `json:"ai_pipeline_complete"`
	// SpreadsComplete is informational only. It never gates a transition.
	SpreadsComplete bool `json:"spreads_complete"`

	HasSubmittedLoanRequest bool `json:"has_submitted_loan_request"`
}

// LifecycleState is the aggregate snapshot returned to all callers. It is
// constructed fresh on every derivation call and never persisted; consumers
// treat it as read-only.
type LifecycleState struct {
	DealID         string         `json:"deal_id"`
	Stage          LifecycleStage `json:"stage"`
	LastAdvancedAt *time.Time     `json:"last_advanced_at,omitempty"`
	Blockers       []Blocker      `json:"blockers"`
	Derived        DerivedFacts   `json:"derived"`
}

// HasBlocker reports whether the state carries a blocker with the given code.
func (s *LifecycleState) HasBlocker(code BlockerCode) bool {
	for _, b := range s.Blockers {
		if b.Code == code {
			return true
		}
	}
	return false
}

// NotFound reports whether this is the fixed not-found fallback state.
func (s *LifecycleState) NotFound() bool {
	return s.HasBlocker(BlockerDealNotFound)
}

// AdvanceResult is the outcome of an advancement attempt.
type AdvanceResult struct {
	OK       bool `json:"ok"`
	Advanced bool `json:"advanced"`

	From LifecycleStage `json:"from,omitempty"`
	To   LifecycleStage `json:"to,omitempty"`

	// Reason explains a non-error no-op (terminal stage, nothing to do).
	Reason string `json:"reason,omitempty"`

	// ErrorCode is set for the deal-not-found failure mode.
	ErrorCode BlockerCode `json:"error_code,omitempty"`

	// Blocking holds the transition-relevant subset; AllBlockers the full
	// list at derivation time. Both populated only for blocked results.
	Blocking    []Blocker `json:"blocking,omitempty"`
	AllBlockers []Blocker `json:"all_blockers,omitempty"`

	// State is the freshly re-derived state after the attempt.
	State *LifecycleState `json:"state,omitempty"`
}

// Blocked reports whether the attempt was stopped by business blockers.
func (r *AdvanceResult) Blocked() bool {
	return !r.OK && len(r.Blocking) > 0
}
