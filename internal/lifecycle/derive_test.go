package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/crestmark/dealtrack/internal/storage"
	"github.com/crestmark/dealtrack/internal/types"
)

// fakeStore implements Store in memory with per-source failure and panic
// injection.
type fakeStore struct {
	mu sync.Mutex

	deal         *types.Deal
	items        []*types.ChecklistItem
	requests     []*types.LoanRequest
	snapshots    int
	decision     *types.Decision
	packets      int
	lastAdvanced *time.Time
	attested     map[int64]bool

	failures map[string]error
	panics   map[string]bool

	events []*types.LedgerEvent
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		failures: make(map[string]error),
		panics:   make(map[string]bool),
		attested: make(map[int64]bool),
	}
}

func (f *fakeStore) check(source string) error {
	if f.panics[source] {
		panic("injected panic in " + source)
	}
	return f.failures[source]
}

func (f *fakeStore) GetDeal(ctx context.Context, id string) (*types.Deal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("deal"); err != nil {
		return nil, err
	}
	if f.deal == nil || f.deal.ID != id {
		return nil, fmt.Errorf("deal %s: %w", id, storage.ErrNotFound)
	}
	copy := *f.deal
	return &copy, nil
}

func (f *fakeStore) GetChecklistItems(ctx context.Context, dealID string) ([]*types.ChecklistItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("checklist"); err != nil {
		return nil, err
	}
	return f.items, nil
}

func (f *fakeStore) GetLoanRequests(ctx context.Context, dealID string) ([]*types.LoanRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("loan_request"); err != nil {
		return nil, err
	}
	return f.requests, nil
}

func (f *fakeStore) CountSnapshots(ctx context.Context, dealID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("snapshot"); err != nil {
		return 0, err
	}
	return f.snapshots, nil
}

func (f *fakeStore) GetLatestDecision(ctx context.Context, dealID string) (*types.Decision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("decision"); err != nil {
		return nil, err
	}
	if f.decision == nil {
		return nil, fmt.Errorf("decision for %s: %w", dealID, storage.ErrNotFound)
	}
	return f.decision, nil
}

func (f *fakeStore) CountPacketEvents(ctx context.Context, dealID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("packet"); err != nil {
		return 0, err
	}
	return f.packets, nil
}

func (f *fakeStore) GetLastAdvancedAt(ctx context.Context, dealID string) (*time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("events"); err != nil {
		return nil, err
	}
	return f.lastAdvanced, nil
}

func (f *fakeStore) GetAttestationStatus(ctx context.Context, dealID string, decisionID int64, tenantID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("attestation"); err != nil {
		return false, err
	}
	return f.attested[decisionID], nil
}

func (f *fakeStore) AppendLedgerEvent(ctx context.Context, ev *types.LedgerEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("ledger"); err != nil {
		return err
	}
	ev.ID = int64(len(f.events) + 1)
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeStore) UpdateInternalStage(ctx context.Context, id string, target types.InternalStage, actor string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("internal_stage"); err != nil {
		return err
	}
	if f.deal == nil {
		return storage.ErrNotFound
	}
	if !f.deal.InternalStage.CanAdvanceTo(target) {
		return fmt.Errorf("%s -> %s: %w", f.deal.InternalStage, target, storage.ErrInvalidTransition)
	}
	f.deal.InternalStage = target
	return nil
}

func (f *fakeStore) UpsertBorrowerStage(ctx context.Context, id string, target types.BorrowerStage, actor string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("borrower_stage"); err != nil {
		return err
	}
	if f.deal == nil {
		return storage.ErrNotFound
	}
	f.deal.BorrowerStage = target
	return nil
}

func (f *fakeStore) eventsOfKind(kind types.EventKind) []*types.LedgerEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.LedgerEvent
	for _, ev := range f.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func testDeal(internal types.InternalStage, borrower types.BorrowerStage) *types.Deal {
	return &types.Deal{
		ID:                "deal-1",
		TenantID:          "tenant-1",
		BorrowerName:      "Acme Manufacturing",
		InternalStage:     internal,
		BorrowerStage:     borrower,
		CommitteeRequired: true,
	}
}

func seededItems(status types.ChecklistStatus) []*types.ChecklistItem {
	return []*types.ChecklistItem{
		{DealID: "deal-1", Key: "tax_return_2023", Required: true, Status: status, Year: 2023, StatementKind: "tax_return"},
		{DealID: "deal-1", Key: "bank_statements", Required: true, Status: status},
		{DealID: "deal-1", Key: "site_photos", Required: false, Status: types.ChecklistPending},
	}
}

func TestDeriveNotFound(t *testing.T) {
	store := newFakeStore()
	e := New(store)
	defer e.Close()

	state := e.Derive(context.Background(), "missing")
	if !state.NotFound() {
		t.Fatalf("expected not-found state, got %+v", state)
	}
	if state.Stage != types.StageIntakeCreated {
		t.Errorf("not-found stage = %s, want intake_created", state.Stage)
	}
	if state.LastAdvancedAt != nil {
		t.Error("not-found state should carry no timestamp")
	}
	if len(state.Blockers) != 1 {
		t.Errorf("not-found state should carry exactly one blocker, got %v", state.Blockers)
	}
}

func TestDeriveIntakeChecklistNotSeeded(t *testing.T) {
	store := newFakeStore()
	store.deal = testDeal(types.InternalIntake, types.BorrowerApplicationStarted)
	e := New(store)
	defer e.Close()

	state := e.Derive(context.Background(), "deal-1")
	if state.Stage != types.StageIntakeCreated {
		t.Fatalf("stage = %s, want intake_created", state.Stage)
	}
	if len(state.Blockers) != 1 || state.Blockers[0].Code != types.BlockerChecklistNotSeeded {
		t.Errorf("blockers = %v, want exactly checklist_not_seeded", state.Blockers)
	}
}

func TestDeriveCollectingRefinement(t *testing.T) {
	tests := []struct {
		name      string
		items     []*types.ChecklistItem
		snapshots int
		want      types.LifecycleStage
	}{
		{"unseeded", nil, 0, types.StageDocsRequested},
		{"seeded nothing satisfied", seededItems(types.ChecklistPending), 0, types.StageDocsRequested},
		{"partially satisfied", append(seededItems(types.ChecklistPending),
			&types.ChecklistItem{Key: "extra", Required: true, Status: types.ChecklistSatisfied}), 0, types.StageDocsInProgress},
		{"all satisfied no snapshot", seededItems(types.ChecklistSatisfied), 0, types.StageDocsSatisfied},
		{"all satisfied with snapshot", seededItems(types.ChecklistSatisfied), 1, types.StageUnderwriteReady},
		{"waived counts as satisfied", seededItems(types.ChecklistWaived), 1, types.StageUnderwriteReady},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			store.deal = testDeal(types.InternalCollecting, types.BorrowerDocsNeeded)
			store.items = tt.items
			store.snapshots = tt.snapshots
			store.requests = []*types.LoanRequest{{ID: 1, DealID: "deal-1", Complete: true}}
			e := New(store)
			defer e.Close()

			state := e.Derive(context.Background(), "deal-1")
			if state.Stage != tt.want {
				t.Errorf("stage = %s, want %s", state.Stage, tt.want)
			}
		})
	}
}

func TestDeriveBorrowerTerminalPrecedence(t *testing.T) {
	store := newFakeStore()
	store.deal = testDeal(types.InternalCollecting, types.BorrowerFunded)
	e := New(store)
	defer e.Close()

	state := e.Derive(context.Background(), "deal-1")
	if state.Stage != types.StageClosed {
		t.Errorf("funded borrower stage should win: got %s, want closed", state.Stage)
	}

	store.deal.BorrowerStage = types.BorrowerClosing
	state = e.Derive(context.Background(), "deal-1")
	if state.Stage != types.StageClosingInProgress {
		t.Errorf("closing borrower stage should win: got %s, want closing_in_progress", state.Stage)
	}
}

func TestDeriveReadyRefinesOnDecision(t *testing.T) {
	store := newFakeStore()
	store.deal = testDeal(types.InternalReady, types.BorrowerCommitteeReview)
	store.items = seededItems(types.ChecklistSatisfied)
	store.requests = []*types.LoanRequest{{ID: 1, DealID: "deal-1", Complete: true}}
	e := New(store)
	defer e.Close()

	state := e.Derive(context.Background(), "deal-1")
	if state.Stage != types.StageCommitteeReady {
		t.Fatalf("stage = %s, want committee_ready", state.Stage)
	}

	// A tabled decision leaves the committee still deliberating.
	store.decision = &types.Decision{ID: 1, DealID: "deal-1", Outcome: types.DecisionTabled}
	state = e.Derive(context.Background(), "deal-1")
	if state.Stage != types.StageCommitteeReady {
		t.Errorf("tabled decision: stage = %s, want committee_ready", state.Stage)
	}
	if !state.HasBlocker(types.BlockerDecisionMissing) {
		t.Error("tabled decision should still report decision_missing")
	}

	store.decision = &types.Decision{ID: 2, DealID: "deal-1", Outcome: types.DecisionApproved}
	state = e.Derive(context.Background(), "deal-1")
	if state.Stage != types.StageCommitteeDecisioned {
		t.Errorf("approved decision: stage = %s, want committee_decisioned", state.Stage)
	}
	if !state.HasBlocker(types.BlockerAttestationMissing) {
		t.Error("unattested decision should report attestation_missing")
	}

	store.attested[2] = true
	state = e.Derive(context.Background(), "deal-1")
	if state.HasBlocker(types.BlockerAttestationMissing) {
		t.Error("attested decision should not report attestation_missing")
	}
}

func TestDeriveAttestationFailureDefaultsSatisfied(t *testing.T) {
	store := newFakeStore()
	store.deal = testDeal(types.InternalReady, types.BorrowerCommitteeReview)
	store.items = seededItems(types.ChecklistSatisfied)
	store.requests = []*types.LoanRequest{{ID: 1, DealID: "deal-1", Complete: true}}
	store.decision = &types.Decision{ID: 7, DealID: "deal-1", Outcome: types.DecisionApproved}
	store.failures["attestation"] = errors.New("attestation service down")
	e := New(store)
	defer e.Close()

	state := e.Derive(context.Background(), "deal-1")
	if state.Stage != types.StageCommitteeDecisioned {
		t.Fatalf("stage = %s, want committee_decisioned", state.Stage)
	}
	if state.HasBlocker(types.BlockerAttestationMissing) {
		t.Error("attestation fetch failure must not fabricate a blocker")
	}
}

func TestDeriveEveryFetchFailing(t *testing.T) {
	store := newFakeStore()
	store.deal = testDeal(types.InternalCollecting, types.BorrowerDocsNeeded)
	for _, source := range []string{"checklist", "loan_request", "snapshot", "decision", "packet", "events"} {
		store.failures[source] = errors.New("db is down")
	}
	e := New(store)
	defer e.Close()

	state := e.Derive(context.Background(), "deal-1")
	if state == nil {
		t.Fatal("derive returned nil state")
	}
	want := []types.BlockerCode{
		types.BlockerChecklistFetchFailed,
		types.BlockerLoanRequestFetchFailed,
		types.BlockerSnapshotFetchFailed,
		types.BlockerDecisionFetchFailed,
		types.BlockerPacketFetchFailed,
		types.BlockerEventsFetchFailed,
	}
	for _, code := range want {
		if !state.HasBlocker(code) {
			t.Errorf("expected %s in blockers, got %v", code, state.Blockers)
		}
	}
}

func TestDeriveSchemaMismatchClassification(t *testing.T) {
	store := newFakeStore()
	store.deal = testDeal(types.InternalCollecting, types.BorrowerDocsNeeded)
	store.failures["checklist"] = errors.New("no such column: statement_kind")
	e := New(store)
	defer e.Close()

	state := e.Derive(context.Background(), "deal-1")
	if !state.HasBlocker(types.BlockerSchemaMismatch) {
		t.Errorf("expected schema_mismatch, got %v", state.Blockers)
	}
	if state.HasBlocker(types.BlockerChecklistFetchFailed) {
		t.Error("schema mismatch must not double-report as checklist_fetch_failed")
	}
}

func TestDerivePanickingReadDegrades(t *testing.T) {
	store := newFakeStore()
	store.deal = testDeal(types.InternalCollecting, types.BorrowerDocsNeeded)
	store.panics["snapshot"] = true
	e := New(store)
	defer e.Close()

	state := e.Derive(context.Background(), "deal-1")
	if !state.HasBlocker(types.BlockerSnapshotFetchFailed) {
		t.Errorf("panicking read should degrade to snapshot_fetch_failed, got %v", state.Blockers)
	}
}

func TestDerivePanickingDealReadIsNotFound(t *testing.T) {
	store := newFakeStore()
	store.deal = testDeal(types.InternalIntake, types.BorrowerApplicationStarted)
	store.panics["deal"] = true
	e := New(store)
	defer e.Close()

	state := e.Derive(context.Background(), "deal-1")
	if !state.NotFound() {
		t.Errorf("unreadable core record should yield the not-found state, got %v", state.Blockers)
	}
}

type flakyReadiness struct {
	ready bool
	err   error
	panic bool
}

func (f flakyReadiness) ComputeReadiness(ctx context.Context, dealID string) (bool, error) {
	if f.panic {
		panic("readiness exploded")
	}
	return f.ready, f.err
}

func TestDeriveReadinessEvaluatorFallback(t *testing.T) {
	store := newFakeStore()
	store.deal = testDeal(types.InternalCollecting, types.BorrowerDocsNeeded)
	store.items = seededItems(types.ChecklistSatisfied)
	store.snapshots = 1
	store.requests = []*types.LoanRequest{{ID: 1, DealID: "deal-1", Complete: true}}

	// Evaluator failure falls back to the local comparison, silently.
	e := New(store, WithReadinessEvaluator(flakyReadiness{err: errors.New("readiness down")}))
	state := e.Derive(context.Background(), "deal-1")
	e.Close()
	if state.Stage != types.StageUnderwriteReady {
		t.Errorf("fallback readiness: stage = %s, want underwrite_ready", state.Stage)
	}
	for _, b := range state.Blockers {
		if b.Code.IsInfrastructure() {
			t.Errorf("readiness fallback must not surface a blocker, got %s", b.Code)
		}
	}

	// Evaluator verdict wins over the local comparison when it succeeds.
	e = New(store, WithReadinessEvaluator(flakyReadiness{ready: false}))
	state = e.Derive(context.Background(), "deal-1")
	e.Close()
	if state.Stage != types.StageDocsInProgress {
		t.Errorf("evaluator verdict: stage = %s, want docs_in_progress", state.Stage)
	}

	// A panicking evaluator is also a silent fallback.
	e = New(store, WithReadinessEvaluator(flakyReadiness{panic: true}))
	state = e.Derive(context.Background(), "deal-1")
	e.Close()
	if state.Stage != types.StageUnderwriteReady {
		t.Errorf("panicking evaluator: stage = %s, want underwrite_ready", state.Stage)
	}
}

func TestResolveStagePure(t *testing.T) {
	deal := testDeal(types.InternalUnderwriting, types.BorrowerUnderwriting)
	if got := ResolveStage(deal, types.DerivedFacts{}); got != types.StageUnderwriteInProgress {
		t.Errorf("ResolveStage(underwriting) = %s, want underwrite_in_progress", got)
	}

	deal = testDeal(types.InternalWorkout, types.BorrowerDecisioned)
	if got := ResolveStage(deal, types.DerivedFacts{}); got != types.StageWorkout {
		t.Errorf("ResolveStage(workout) = %s, want workout", got)
	}

	// Borrower terminal beats internal workout.
	deal = testDeal(types.InternalWorkout, types.BorrowerFunded)
	if got := ResolveStage(deal, types.DerivedFacts{}); got != types.StageClosed {
		t.Errorf("ResolveStage(workout+funded) = %s, want closed", got)
	}
}

func TestDerivePctAsymmetry(t *testing.T) {
	store := newFakeStore()
	store.deal = testDeal(types.InternalCollecting, types.BorrowerDocsNeeded)
	e := New(store)
	defer e.Close()

	// No checklist at all reads as 0%.
	state := e.Derive(context.Background(), "deal-1")
	if state.Derived.RequiredDocsReceivedPct != 0 {
		t.Errorf("unseeded pct = %d, want 0", state.Derived.RequiredDocsReceivedPct)
	}

	// Seeded with only optional items reads as fully received.
	store.items = []*types.ChecklistItem{
		{Key: "site_photos", Required: false, Status: types.ChecklistPending},
	}
	state = e.Derive(context.Background(), "deal-1")
	if state.Derived.RequiredDocsReceivedPct != 100 {
		t.Errorf("zero-required pct = %d, want 100", state.Derived.RequiredDocsReceivedPct)
	}

	// Normal case rounds.
	store.items = []*types.ChecklistItem{
		{Key: "a", Required: true, Status: types.ChecklistSatisfied},
		{Key: "b", Required: true, Status: types.ChecklistSatisfied},
		{Key: "c", Required: true, Status: types.ChecklistPending},
	}
	state = e.Derive(context.Background(), "deal-1")
	if state.Derived.RequiredDocsReceivedPct != 67 {
		t.Errorf("2/3 pct = %d, want 67", state.Derived.RequiredDocsReceivedPct)
	}
}

func TestDeriveLoanRequestFact(t *testing.T) {
	store := newFakeStore()
	store.deal = testDeal(types.InternalCollecting, types.BorrowerDocsNeeded)
	store.items = seededItems(types.ChecklistPending)
	e := New(store)
	defer e.Close()

	state := e.Derive(context.Background(), "deal-1")
	if state.Derived.HasSubmittedLoanRequest {
		t.Error("no requests on record, fact should be false")
	}

	store.requests = []*types.LoanRequest{{ID: 1, DealID: "deal-1"}}
	state = e.Derive(context.Background(), "deal-1")
	if !state.Derived.HasSubmittedLoanRequest {
		t.Error("a submitted request should surface in the derived facts")
	}
}

func TestDeriveMissingDocEvidence(t *testing.T) {
	store := newFakeStore()
	store.deal = testDeal(types.InternalCollecting, types.BorrowerDocsNeeded)
	store.deal.AIPipelineComplete = true
	store.items = []*types.ChecklistItem{
		{Key: "tax_2022", Required: true, Status: types.ChecklistPending, Year: 2022, StatementKind: "tax_return"},
		{Key: "tax_2023", Required: true, Status: types.ChecklistSatisfied, Year: 2023, StatementKind: "tax_return"},
		{Key: "pl_2022", Required: true, Status: types.ChecklistNeedsReview, Year: 2022, StatementKind: "profit_loss"},
	}
	store.requests = []*types.LoanRequest{{ID: 1, DealID: "deal-1", Complete: true}}
	e := New(store)
	defer e.Close()

	state := e.Derive(context.Background(), "deal-1")
	facts := state.Derived
	if facts.GatekeeperNeedsReviewCount != 1 {
		t.Errorf("needs review count = %d, want 1", facts.GatekeeperNeedsReviewCount)
	}
	if len(facts.MissingDocYears) != 1 || facts.MissingDocYears[0] != 2022 {
		t.Errorf("missing years = %v, want [2022]", facts.MissingDocYears)
	}
	if len(facts.MissingStatements) != 2 {
		t.Errorf("missing statements = %v, want two entries", facts.MissingStatements)
	}
	if !state.HasBlocker(types.BlockerGatekeeperDocsNeedReview) || !state.HasBlocker(types.BlockerGatekeeperDocsIncomplete) {
		t.Errorf("expected both gatekeeper blockers, got %v", state.Blockers)
	}
}
