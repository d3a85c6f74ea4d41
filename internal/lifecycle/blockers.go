package lifecycle

import (
	"fmt"

	"github.com/crestmark/dealtrack/internal/types"
)

// ComputeBlockers evaluates the business blocker rules for a deal at the
// given unified stage. It is pure: no I/O, no clock, and deterministic —
// the same inputs always produce the same blockers in the same order.
//
// Rule order is fixed and significant; within the gatekeeper group,
// needs-review is pushed before incomplete. Infrastructure codes
// (*_fetch_failed, schema_mismatch, deal_not_found, internal_error) are
// never produced here; those belong to the derivation engine's fetch layer.
func ComputeBlockers(stage types.LifecycleStage, facts types.DerivedFacts, checklistCount, loanRequestCount int, loanRequestHasIncomplete bool) []types.Blocker {
	var blockers []types.Blocker

	if stage == types.StageIntakeCreated && checklistCount == 0 {
		blockers = append(blockers, types.Blocker{
			Code:    types.BlockerChecklistNotSeeded,
			Message: "The document checklist has not been created for this deal.",
		})
	}

	if stage != types.StageIntakeCreated && !stage.IsTerminal() && loanRequestCount == 0 {
		blockers = append(blockers, types.Blocker{
			Code:    types.BlockerLoanRequestMissing,
			Message: "No loan request has been submitted for this deal.",
		})
	}

	if loanRequestCount > 0 && loanRequestHasIncomplete && stage.UnderwriteAdjacent() {
		blockers = append(blockers, types.Blocker{
			Code:    types.BlockerLoanRequestIncomplete,
			Message: "The loan request form is incomplete.",
		})
	}

	// Gatekeeper document readiness. These fire only at document-requiring
	// stages and only once the content pipeline has produced readiness
	// fields; before that the checklist counts alone are authoritative.
	if stage.RequiresDocuments() && facts.AIPipelineComplete {
		if facts.GatekeeperNeedsReviewCount > 0 {
			blockers = append(blockers, types.Blocker{
				Code:    types.BlockerGatekeeperDocsNeedReview,
				Message: fmt.Sprintf("%d document(s) need manual review.", facts.GatekeeperNeedsReviewCount),
				Evidence: map[string]interface{}{
					"needs_review_count": facts.GatekeeperNeedsReviewCount,
				},
			})
		}
		if facts.GatekeeperReadinessPct < 100 {
			evidence := map[string]interface{}{
				"readiness_pct": facts.GatekeeperReadinessPct,
			}
			if len(facts.MissingDocYears) > 0 {
				evidence["missing_doc_years"] = facts.MissingDocYears
			}
			if len(facts.MissingStatements) > 0 {
				evidence["missing_statements"] = facts.MissingStatements
			}
			blockers = append(blockers, types.Blocker{
				Code:     types.BlockerGatekeeperDocsIncomplete,
				Message:  fmt.Sprintf("Required documents are %d%% complete.", facts.GatekeeperReadinessPct),
				Evidence: evidence,
			})
		}
	}

	if stage == types.StageDocsSatisfied && !facts.HasPricingAssumptions {
		blockers = append(blockers, types.Blocker{
			Code:    types.BlockerPricingAssumptionsNeeded,
			Message: "Pricing assumptions have not been entered.",
		})
	}

	if stage == types.StageUnderwriteReady && !facts.FinancialSnapshotExists {
		blockers = append(blockers, types.Blocker{
			Code:    types.BlockerFinancialSnapshotMissing,
			Message: "No financial snapshot has been generated.",
		})
	}

	if stage == types.StageUnderwriteInProgress {
		if !facts.RiskPricingFinalized {
			blockers = append(blockers, types.Blocker{
				Code:    types.BlockerRiskPricingNotFinalized,
				Message: "Risk pricing has not been finalized.",
			})
		}
		if !facts.StructuralPricingReady {
			blockers = append(blockers, types.Blocker{
				Code:    types.BlockerStructuralPricingMissing,
				Message: "Structural pricing has not been completed.",
			})
		}
	}

	if stage == types.StageCommitteeReady && !facts.PricingQuoteReady {
		blockers = append(blockers, types.Blocker{
			Code:    types.BlockerPricingQuoteMissing,
			Message: "No pricing quote has been locked.",
		})
	}

	if (stage == types.StageUnderwriteInProgress || stage == types.StageCommitteeReady) &&
		!facts.CommitteePacketReady && facts.CommitteeRequired {
		blockers = append(blockers, types.Blocker{
			Code:    types.BlockerCommitteePacketMissing,
			Message: "The committee packet has not been generated.",
		})
	}

	if stage == types.StageCommitteeReady && !facts.DecisionPresent {
		blockers = append(blockers, types.Blocker{
			Code:    types.BlockerDecisionMissing,
			Message: "The committee has not recorded a decision.",
		})
	}

	if stage == types.StageCommitteeDecisioned && !facts.AttestationSatisfied {
		blockers = append(blockers, types.Blocker{
			Code:    types.BlockerAttestationMissing,
			Message: "The post-decision attestation has not been completed.",
		})
	}

	return blockers
}
