package types

import "testing"

func TestBlockerGatesTargetsAreValidStages(t *testing.T) {
	for code, stage := range BlockerGates {
		if !stage.IsValid() {
			t.Errorf("blocker %s gates unknown stage %q", code, stage)
		}
		if code.IsInfrastructure() {
			t.Errorf("infrastructure code %s must not appear in the gate table", code)
		}
	}
}

func TestGates(t *testing.T) {
	if !BlockerChecklistNotSeeded.Gates(StageDocsRequested) {
		t.Error("checklist_not_seeded should gate docs_requested")
	}
	if BlockerChecklistNotSeeded.Gates(StageDocsInProgress) {
		t.Error("checklist_not_seeded should not gate docs_in_progress")
	}
	// Unmapped codes never gate anything.
	if BlockerDealNotFound.Gates(StageDocsRequested) {
		t.Error("deal_not_found should not gate any transition")
	}
	if BlockerSchemaMismatch.Gates(StageClosed) {
		t.Error("schema_mismatch should not gate any transition")
	}
}

func TestFetchFailureCode(t *testing.T) {
	tests := []struct {
		source string
		want   BlockerCode
	}{
		{"deal", BlockerDealFetchFailed},
		{"checklist", BlockerChecklistFetchFailed},
		{"loan_request", BlockerLoanRequestFetchFailed},
		{"snapshot", BlockerSnapshotFetchFailed},
		{"decision", BlockerDecisionFetchFailed},
		{"packet", BlockerPacketFetchFailed},
		{"events", BlockerEventsFetchFailed},
		{"mystery", BlockerInternalError},
	}
	for _, tt := range tests {
		if got := FetchFailureCode(tt.source); got != tt.want {
			t.Errorf("FetchFailureCode(%q) = %s, want %s", tt.source, got, tt.want)
		}
	}
}

func TestChecklistStatusSatisfies(t *testing.T) {
	if !ChecklistSatisfied.Satisfies() || !ChecklistWaived.Satisfies() {
		t.Error("satisfied and waived should both count as satisfied")
	}
	if ChecklistPending.Satisfies() || ChecklistReceived.Satisfies() || ChecklistNeedsReview.Satisfies() {
		t.Error("pending, received and needs_review should not count as satisfied")
	}
}

func TestDecisionOutcomeIsFinal(t *testing.T) {
	if !DecisionApproved.IsFinal() || !DecisionDeclined.IsFinal() {
		t.Error("approved and declined are final outcomes")
	}
	if DecisionTabled.IsFinal() {
		t.Error("tabled is not a final outcome")
	}
}
