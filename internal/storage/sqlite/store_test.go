package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/crestmark/dealtrack/internal/storage"
	"github.com/crestmark/dealtrack/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})
	return s
}

func createTestDeal(t *testing.T, s *Store, id string) *types.Deal {
	t.Helper()
	deal := &types.Deal{ID: id, TenantID: "tenant-1", BorrowerName: "Acme", CommitteeRequired: true}
	if err := s.CreateDeal(context.Background(), deal); err != nil {
		t.Fatalf("creating deal: %v", err)
	}
	return deal
}

func TestCreateAndGetDeal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := createTestDeal(t, s, "deal-1")
	if created.InternalStage != types.InternalIntake {
		t.Errorf("default internal stage = %s, want intake", created.InternalStage)
	}
	if created.BorrowerStage != types.BorrowerApplicationStarted {
		t.Errorf("default borrower stage = %s, want application_started", created.BorrowerStage)
	}

	got, err := s.GetDeal(ctx, "deal-1")
	if err != nil {
		t.Fatalf("getting deal: %v", err)
	}
	if got.ID != "deal-1" || got.TenantID != "tenant-1" || !got.CommitteeRequired {
		t.Errorf("roundtrip mismatch: %+v", got)
	}

	_, err = s.GetDeal(ctx, "nope")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("missing deal error = %v, want ErrNotFound", err)
	}
}

func TestCreateDealValidates(t *testing.T) {
	s := newTestStore(t)
	err := s.CreateDeal(context.Background(), &types.Deal{ID: "", TenantID: "t"})
	if err == nil {
		t.Error("empty deal id should be rejected")
	}
	err = s.CreateDeal(context.Background(), &types.Deal{ID: "d", TenantID: ""})
	if err == nil {
		t.Error("empty tenant id should be rejected")
	}
}

func TestSetDealFlag(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createTestDeal(t, s, "deal-1")

	if err := s.SetDealFlag(ctx, "deal-1", "risk_pricing_finalized", true); err != nil {
		t.Fatalf("setting flag: %v", err)
	}
	got, err := s.GetDeal(ctx, "deal-1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.RiskPricingFinalized {
		t.Error("flag did not persist")
	}

	if err := s.SetDealFlag(ctx, "deal-1", "internal_stage", true); err == nil {
		t.Error("non-whitelisted column should be rejected")
	}
	if err := s.SetDealFlag(ctx, "nope", "risk_pricing_finalized", true); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("missing deal flag error = %v, want ErrNotFound", err)
	}
}

func TestUpdateInternalStage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createTestDeal(t, s, "deal-1")

	if err := s.UpdateInternalStage(ctx, "deal-1", types.InternalCollecting, "alice"); err != nil {
		t.Fatalf("legal step: %v", err)
	}
	got, _ := s.GetDeal(ctx, "deal-1")
	if got.InternalStage != types.InternalCollecting {
		t.Errorf("stage = %s, want collecting", got.InternalStage)
	}

	// Skipping a step is illegal.
	err := s.UpdateInternalStage(ctx, "deal-1", types.InternalReady, "alice")
	if !errors.Is(err, storage.ErrInvalidTransition) {
		t.Errorf("skip error = %v, want ErrInvalidTransition", err)
	}

	// Same value is a benign no-op.
	if err := s.UpdateInternalStage(ctx, "deal-1", types.InternalCollecting, "alice"); err != nil {
		t.Errorf("same-value update should be a no-op, got %v", err)
	}

	// Workout is reachable from anywhere on the chain.
	if err := s.UpdateInternalStage(ctx, "deal-1", types.InternalWorkout, "alice"); err != nil {
		t.Errorf("workout move: %v", err)
	}
	err = s.UpdateInternalStage(ctx, "deal-1", types.InternalReady, "alice")
	if !errors.Is(err, storage.ErrInvalidTransition) {
		t.Errorf("leaving workout error = %v, want ErrInvalidTransition", err)
	}
}

func TestUpsertBorrowerStage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createTestDeal(t, s, "deal-1")

	// The borrower value is a display projection; any valid value lands.
	if err := s.UpsertBorrowerStage(ctx, "deal-1", types.BorrowerFunded, "alice"); err != nil {
		t.Fatalf("borrower upsert: %v", err)
	}
	got, _ := s.GetDeal(ctx, "deal-1")
	if got.BorrowerStage != types.BorrowerFunded {
		t.Errorf("borrower stage = %s, want funded", got.BorrowerStage)
	}

	if err := s.UpsertBorrowerStage(ctx, "deal-1", "teleported", "alice"); err == nil {
		t.Error("invalid borrower stage should be rejected")
	}
}

func TestChecklistSeedAndStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createTestDeal(t, s, "deal-1")

	// Unseeded checklist reads as empty, not as an error.
	items, err := s.GetChecklistItems(ctx, "deal-1")
	if err != nil {
		t.Fatalf("reading unseeded checklist: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("unseeded checklist = %v, want empty", items)
	}

	seed := []*types.ChecklistItem{
		{Key: "tax_return_2023", Required: true, Year: 2023, StatementKind: "tax_return"},
		{Key: "site_photos", Required: false},
	}
	if err := s.SeedChecklist(ctx, "deal-1", seed); err != nil {
		t.Fatalf("seeding: %v", err)
	}
	if err := s.SeedChecklist(ctx, "deal-1", seed); err == nil {
		t.Error("double seed should be rejected")
	}

	items, err = s.GetChecklistItems(ctx, "deal-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("item count = %d, want 2", len(items))
	}
	if items[0].Status != types.ChecklistPending {
		t.Errorf("default status = %s, want pending", items[0].Status)
	}
	if items[0].Year != 2023 || items[0].StatementKind != "tax_return" {
		t.Errorf("statement metadata lost: %+v", items[0])
	}

	if err := s.SetChecklistItemStatus(ctx, "deal-1", "tax_return_2023", types.ChecklistSatisfied); err != nil {
		t.Fatalf("setting status: %v", err)
	}
	items, _ = s.GetChecklistItems(ctx, "deal-1")
	if items[0].Status != types.ChecklistSatisfied {
		t.Errorf("status = %s, want satisfied", items[0].Status)
	}

	err = s.SetChecklistItemStatus(ctx, "deal-1", "nope", types.ChecklistSatisfied)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("missing item error = %v, want ErrNotFound", err)
	}
	if err := s.SetChecklistItemStatus(ctx, "deal-1", "site_photos", "vaporized"); err == nil {
		t.Error("invalid status should be rejected")
	}
}

func TestLoanRequests(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createTestDeal(t, s, "deal-1")

	req := &types.LoanRequest{DealID: "deal-1"}
	if err := s.CreateLoanRequest(ctx, req); err != nil {
		t.Fatalf("creating request: %v", err)
	}
	if req.ID == 0 {
		t.Error("request id should be assigned")
	}

	if err := s.SetLoanRequestComplete(ctx, req.ID); err != nil {
		t.Fatalf("completing request: %v", err)
	}
	reqs, err := s.GetLoanRequests(ctx, "deal-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(reqs) != 1 || !reqs[0].Complete || reqs[0].CompletedAt == nil {
		t.Errorf("completed request = %+v", reqs[0])
	}

	if err := s.SetLoanRequestComplete(ctx, 999); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("missing request error = %v, want ErrNotFound", err)
	}
}

func TestSnapshots(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createTestDeal(t, s, "deal-1")

	n, err := s.CountSnapshots(ctx, "deal-1")
	if err != nil || n != 0 {
		t.Fatalf("initial count = %d (%v), want 0", n, err)
	}
	if err := s.RecordSnapshot(ctx, "deal-1", `{"revenue": 1200000}`); err != nil {
		t.Fatalf("recording snapshot: %v", err)
	}
	if err := s.RecordSnapshot(ctx, "deal-1", ""); err != nil {
		t.Fatalf("recording empty snapshot: %v", err)
	}
	n, _ = s.CountSnapshots(ctx, "deal-1")
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
}

func TestDecisionsAndAttestations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createTestDeal(t, s, "deal-1")

	_, err := s.GetLatestDecision(ctx, "deal-1")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("no decision error = %v, want ErrNotFound", err)
	}

	first := &types.Decision{DealID: "deal-1", Outcome: types.DecisionTabled, DecidedBy: "committee"}
	if err := s.RecordDecision(ctx, first); err != nil {
		t.Fatalf("recording decision: %v", err)
	}
	second := &types.Decision{DealID: "deal-1", Outcome: types.DecisionApproved, DecidedBy: "committee"}
	if err := s.RecordDecision(ctx, second); err != nil {
		t.Fatal(err)
	}

	latest, err := s.GetLatestDecision(ctx, "deal-1")
	if err != nil {
		t.Fatal(err)
	}
	if latest.ID != second.ID || latest.Outcome != types.DecisionApproved {
		t.Errorf("latest decision = %+v, want the approved one", latest)
	}

	if err := s.RecordDecision(ctx, &types.Decision{DealID: "deal-1", Outcome: "maybe"}); err == nil {
		t.Error("invalid outcome should be rejected")
	}

	// No attestation row reads as unsatisfied, not as an error.
	satisfied, err := s.GetAttestationStatus(ctx, "deal-1", second.ID, "tenant-1")
	if err != nil || satisfied {
		t.Errorf("missing attestation = %v (%v), want false, nil", satisfied, err)
	}

	if err := s.SetAttestation(ctx, "deal-1", second.ID, true); err != nil {
		t.Fatalf("setting attestation: %v", err)
	}
	satisfied, _ = s.GetAttestationStatus(ctx, "deal-1", second.ID, "tenant-1")
	if !satisfied {
		t.Error("attestation did not persist")
	}

	// Upsert path flips it back.
	if err := s.SetAttestation(ctx, "deal-1", second.ID, false); err != nil {
		t.Fatal(err)
	}
	satisfied, _ = s.GetAttestationStatus(ctx, "deal-1", second.ID, "tenant-1")
	if satisfied {
		t.Error("attestation upsert did not overwrite")
	}
}

func TestLedger(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createTestDeal(t, s, "deal-1")

	ts, err := s.GetLastAdvancedAt(ctx, "deal-1")
	if err != nil || ts != nil {
		t.Fatalf("never-advanced timestamp = %v (%v), want nil, nil", ts, err)
	}

	events := []*types.LedgerEvent{
		{DealID: "deal-1", Kind: types.EventBlocked, Actor: "alice"},
		{DealID: "deal-1", Kind: types.EventAdvanced, Actor: "alice",
			FromStage: types.StageIntakeCreated, ToStage: types.StageDocsRequested},
		{DealID: "deal-1", Kind: types.EventForceAdvanced, Actor: "root",
			FromStage: types.StageDocsRequested, ToStage: types.StageUnderwriteReady,
			Forced: true, Reason: "expedited review",
			Audit: &types.AuditMeta{ClientIP: "10.0.0.1", CorrelationID: "corr-1"}},
	}
	for _, ev := range events {
		if err := s.AppendLedgerEvent(ctx, ev); err != nil {
			t.Fatalf("appending %s: %v", ev.Kind, err)
		}
		if ev.ID == 0 {
			t.Errorf("event %s did not get an id", ev.Kind)
		}
	}

	if err := s.AppendLedgerEvent(ctx, &types.LedgerEvent{DealID: "deal-1", Kind: "made_up"}); err == nil {
		t.Error("invalid event kind should be rejected")
	}

	got, err := s.GetLedgerEvents(ctx, "deal-1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("event count = %d, want 3", len(got))
	}
	// Newest first.
	if got[0].Kind != types.EventForceAdvanced || got[2].Kind != types.EventBlocked {
		t.Errorf("ordering wrong: %s, %s, %s", got[0].Kind, got[1].Kind, got[2].Kind)
	}
	if got[0].Audit == nil || got[0].Audit.CorrelationID != "corr-1" {
		t.Errorf("audit metadata lost: %+v", got[0].Audit)
	}
	if got[2].Audit != nil {
		t.Error("events without audit metadata should read back nil")
	}

	limited, _ := s.GetLedgerEvents(ctx, "deal-1", 1)
	if len(limited) != 1 {
		t.Errorf("limited count = %d, want 1", len(limited))
	}

	ts, err = s.GetLastAdvancedAt(ctx, "deal-1")
	if err != nil || ts == nil {
		t.Fatalf("advanced timestamp = %v (%v), want non-nil", ts, err)
	}
}

func TestPacketEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createTestDeal(t, s, "deal-1")

	n, err := s.CountPacketEvents(ctx, "deal-1")
	if err != nil || n != 0 {
		t.Fatalf("initial packet count = %d (%v), want 0", n, err)
	}
	if err := s.RecordPacketGenerated(ctx, "deal-1", "alice"); err != nil {
		t.Fatalf("recording packet: %v", err)
	}
	n, _ = s.CountPacketEvents(ctx, "deal-1")
	if n != 1 {
		t.Errorf("packet count = %d, want 1", n)
	}

	// Packet generation rides the ledger, so it shows up there too.
	events, _ := s.GetLedgerEvents(ctx, "deal-1", 0)
	if len(events) != 1 || events[0].Kind != types.EventPacketGenerated {
		t.Errorf("ledger events = %v, want one packet_generated", events)
	}
}

func TestCloseIdempotent(t *testing.T) {
	s, err := New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}
}
