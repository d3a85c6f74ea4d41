package types

// BlockerCode identifies a single reason a deal cannot safely advance.
// Codes are globally unique and their meaning is fixed. Business codes are
// produced only by the pure blocker computation; infrastructure codes are
// produced only by the derivation engine's fetch layer.
type BlockerCode string

// Business blocker codes
const (
	BlockerChecklistNotSeeded       BlockerCode = "checklist_not_seeded"
	BlockerLoanRequestMissing       BlockerCode = "loan_request_missing"
	BlockerLoanRequestIncomplete    BlockerCode = "loan_request_incomplete"
	BlockerGatekeeperDocsNeedReview BlockerCode = "gatekeeper_docs_need_review"
	BlockerGatekeeperDocsIncomplete BlockerCode = "gatekeeper_docs_incomplete"
	BlockerPricingAssumptionsNeeded BlockerCode = "pricing_assumptions_required"
	BlockerFinancialSnapshotMissing BlockerCode = "financial_snapshot_missing"
	BlockerRiskPricingNotFinalized  BlockerCode = "risk_pricing_not_finalized"
	BlockerStructuralPricingMissing BlockerCode = "structural_pricing_missing"
	BlockerPricingQuoteMissing      BlockerCode = "pricing_quote_missing"
	BlockerCommitteePacketMissing   BlockerCode = "committee_packet_missing"
	BlockerDecisionMissing          BlockerCode = "decision_missing"
	BlockerAttestationMissing       BlockerCode = "attestation_missing"
)

// Infrastructure blocker codes
const (
	BlockerDealFetchFailed        BlockerCode = "deal_fetch_failed"
	BlockerChecklistFetchFailed   BlockerCode = "checklist_fetch_failed"
	BlockerLoanRequestFetchFailed BlockerCode = "loan_request_fetch_failed"
	BlockerSnapshotFetchFailed    BlockerCode = "snapshot_fetch_failed"
	BlockerDecisionFetchFailed    BlockerCode = "decision_fetch_failed"
	BlockerPacketFetchFailed      BlockerCode = "packet_fetch_failed"
	BlockerEventsFetchFailed      BlockerCode = "events_fetch_failed"
	BlockerSchemaMismatch         BlockerCode = "schema_mismatch"
	BlockerDealNotFound           BlockerCode = "deal_not_found"
	BlockerInternalError          BlockerCode = "internal_error"
)

// IsInfrastructure reports whether the code signals a degraded read, a
// schema defect, a missing deal, or the internal-error safety net, as
// opposed to an actionable business condition.
func (c BlockerCode) IsInfrastructure() bool {
	switch c {
	case BlockerDealFetchFailed, BlockerChecklistFetchFailed, BlockerLoanRequestFetchFailed,
		BlockerSnapshotFetchFailed, BlockerDecisionFetchFailed, BlockerPacketFetchFailed,
		BlockerEventsFetchFailed, BlockerSchemaMismatch, BlockerDealNotFound, BlockerInternalError:
		return true
	}
	return false
}

// FetchFailureCode returns the source-scoped fetch-failure code for a named
// read source, so operators can localize the failing dependency.
func FetchFailureCode(source string) BlockerCode {
	switch source {
	case "deal":
		return BlockerDealFetchFailed
	case "checklist":
		return BlockerChecklistFetchFailed
	case "loan_request":
		return BlockerLoanRequestFetchFailed
	case "snapshot":
		return BlockerSnapshotFetchFailed
	case "decision":
		return BlockerDecisionFetchFailed
	case "packet":
		return BlockerPacketFetchFailed
	case "events":
		return BlockerEventsFetchFailed
	}
	return BlockerInternalError
}

// Blocker is one reason a deal is stuck, with a human message and optional
// structured evidence for rendering.
type Blocker struct {
	Code     BlockerCode            `json:"code"`
	Message  string                 `json:"message"`
	Evidence map[string]interface{} `json:"evidence,omitempty"`
}

// BlockerGates maps each business blocker code to the stage whose entry it
// gates. The advancement engine filters active blockers through this table;
// codes absent from it (including every infrastructure code) never block an
// advance. This is the single source of truth for transition gating — there
// is deliberately no parallel hand-maintained switch.
var BlockerGates = map[BlockerCode]LifecycleStage{
	BlockerChecklistNotSeeded:       StageDocsRequested,
	BlockerLoanRequestMissing:       StageDocsInProgress,
	BlockerLoanRequestIncomplete:    StageUnderwriteInProgress,
	BlockerGatekeeperDocsNeedReview: StageDocsSatisfied,
	BlockerGatekeeperDocsIncomplete: StageDocsSatisfied,
	BlockerPricingAssumptionsNeeded: StageUnderwriteReady,
	BlockerFinancialSnapshotMissing: StageUnderwriteInProgress,
	BlockerRiskPricingNotFinalized:  StageCommitteeReady,
	BlockerStructuralPricingMissing: StageCommitteeReady,
	BlockerPricingQuoteMissing:      StageCommitteeDecisioned,
	BlockerCommitteePacketMissing:   StageCommitteeReady,
	BlockerDecisionMissing:          StageCommitteeDecisioned,
	BlockerAttestationMissing:       StageClosingInProgress,
}

// Gates reports whether this blocker code gates entry into the given stage.
func (c BlockerCode) Gates(target LifecycleStage) bool {
	gated, ok := BlockerGates[c]
	return ok && gated == target
}
