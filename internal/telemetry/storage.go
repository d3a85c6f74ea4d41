package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/crestmark/dealtrack/internal/storage"
	"github.com/crestmark/dealtrack/internal/types"
)

const storageScopeName = "github.com/crestmark/dealtrack/storage"

// InstrumentedStorage wraps storage.Storage with OTel tracing and metrics.
// Every method gets a span and is counted in dt.storage.* metrics.
// Use WrapStorage to create one; it returns the original store unchanged when
// telemetry is disabled.
type InstrumentedStorage struct {
	inner  storage.Storage
	tracer trace.Tracer
	ops    metric.Int64Counter
	dur    metric.Float64Histogram
	errs   metric.Int64Counter
}

// WrapStorage returns s decorated with OTel instrumentation.
// When telemetry is disabled, s is returned as-is with zero overhead.
func WrapStorage(s storage.Storage) storage.Storage {
	if !Enabled() {
		return s
	}
	m := Meter(storageScopeName)
	ops, _ := m.Int64Counter("dt.storage.operations",
		metric.WithDescription("Total storage operations executed"),
	)
	dur, _ := m.Float64Histogram("dt.storage.operation.duration",
		metric.WithDescription("Storage operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("dt.storage.errors",
		metric.WithDescription("Total storage operation errors"),
	)
	return &InstrumentedStorage{
		inner:  s,
		tracer: Tracer(storageScopeName),
		ops:    ops,
		dur:    dur,
		errs:   errs,
	}
}

// op starts a span and records a metric for the named storage operation.
func (s *InstrumentedStorage) op(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	all := append([]attribute.KeyValue{attribute.String("db.operation", name)}, attrs...)
	ctx, span := s.tracer.Start(ctx, "storage."+name,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	s.ops.Add(ctx, 1, metric.WithAttributes(all...))
	return ctx, span, time.Now()
}

// done ends the span, records duration and optional error.
func (s *InstrumentedStorage) done(ctx context.Context, span trace.Span, start time.Time, err error, attrs ...attribute.KeyValue) {
	ms := float64(time.Since(start).Milliseconds())
	s.dur.Record(ctx, ms, metric.WithAttributes(attrs...))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.errs.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	span.End()
}

// ── Deals ───────────────────────────────────────────────────────────────────

func (s *InstrumentedStorage) CreateDeal(ctx context.Context, deal *types.Deal) error {
	attrs := []attribute.KeyValue{attribute.String("dt.deal.id", deal.ID)}
	ctx, span, t := s.op(ctx, "CreateDeal", attrs...)
	err := s.inner.CreateDeal(ctx, deal)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStorage) GetDeal(ctx context.Context, id string) (*types.Deal, error) {
	attrs := []attribute.KeyValue{attribute.String("dt.deal.id", id)}
	ctx, span, t := s.op(ctx, "GetDeal", attrs...)
	v, err := s.inner.GetDeal(ctx, id)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStorage) SetDealFlag(ctx context.Context, id, flag string, value bool) error {
	attrs := []attribute.KeyValue{
		attribute.String("dt.deal.id", id),
		attribute.String("dt.deal.flag", flag),
	}
	ctx, span, t := s.op(ctx, "SetDealFlag", attrs...)
	err := s.inner.SetDealFlag(ctx, id, flag, value)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStorage) SetCommitteeRequired(ctx context.Context, id string, required bool) error {
	attrs := []attribute.KeyValue{attribute.String("dt.deal.id", id)}
	ctx, span, t := s.op(ctx, "SetCommitteeRequired", attrs...)
	err := s.inner.SetCommitteeRequired(ctx, id, required)
	s.done(ctx, span, t, err, attrs...)
	return err
}

// ── Legacy stage models ─────────────────────────────────────────────────────

func (s *InstrumentedStorage) UpdateInternalStage(ctx context.Context, id string, target types.InternalStage, actor string) error {
	attrs := []attribute.KeyValue{
		attribute.String("dt.deal.id", id),
		attribute.String("dt.stage.target", string(target)),
		attribute.String("dt.actor", actor),
	}
	ctx, span, t := s.op(ctx, "UpdateInternalStage", attrs...)
	err := s.inner.UpdateInternalStage(ctx, id, target, actor)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStorage) UpsertBorrowerStage(ctx context.Context, id string, target types.BorrowerStage, actor string) error {
	attrs := []attribute.KeyValue{
		attribute.String("dt.deal.id", id),
		attribute.String("dt.stage.target", string(target)),
		attribute.String("dt.actor", actor),
	}
	ctx, span, t := s.op(ctx, "UpsertBorrowerStage", attrs...)
	err := s.inner.UpsertBorrowerStage(ctx, id, target, actor)
	s.done(ctx, span, t, err, attrs...)
	return err
}

// ── Checklist ───────────────────────────────────────────────────────────────

func (s *InstrumentedStorage) SeedChecklist(ctx context.Context, dealID string, items []*types.ChecklistItem) error {
	attrs := []attribute.KeyValue{
		attribute.String("dt.deal.id", dealID),
		attribute.Int("dt.checklist.count", len(items)),
	}
	ctx, span, t := s.op(ctx, "SeedChecklist", attrs...)
	err := s.inner.SeedChecklist(ctx, dealID, items)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStorage) SetChecklistItemStatus(ctx context.Context, dealID, key string, status types.ChecklistStatus) error {
	attrs := []attribute.KeyValue{
		attribute.String("dt.deal.id", dealID),
		attribute.String("dt.checklist.key", key),
	}
	ctx, span, t := s.op(ctx, "SetChecklistItemStatus", attrs...)
	err := s.inner.SetChecklistItemStatus(ctx, dealID, key, status)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStorage) GetChecklistItems(ctx context.Context, dealID string) ([]*types.ChecklistItem, error) {
	attrs := []attribute.KeyValue{attribute.String("dt.deal.id", dealID)}
	ctx, span, t := s.op(ctx, "GetChecklistItems", attrs...)
	v, err := s.inner.GetChecklistItems(ctx, dealID)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

// ── Loan requests ───────────────────────────────────────────────────────────

func (s *InstrumentedStorage) CreateLoanRequest(ctx context.Context, req *types.LoanRequest) error {
	attrs := []attribute.KeyValue{attribute.String("dt.deal.id", req.DealID)}
	ctx, span, t := s.op(ctx, "CreateLoanRequest", attrs...)
	err := s.inner.CreateLoanRequest(ctx, req)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStorage) SetLoanRequestComplete(ctx context.Context, id int64) error {
	ctx, span, t := s.op(ctx, "SetLoanRequestComplete")
	err := s.inner.SetLoanRequestComplete(ctx, id)
	s.done(ctx, span, t, err)
	return err
}

func (s *InstrumentedStorage) GetLoanRequests(ctx context.Context, dealID string) ([]*types.LoanRequest, error) {
	attrs := []attribute.KeyValue{attribute.String("dt.deal.id", dealID)}
	ctx, span, t := s.op(ctx, "GetLoanRequests", attrs...)
	v, err := s.inner.GetLoanRequests(ctx, dealID)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

// ── Financial snapshots ─────────────────────────────────────────────────────

func (s *InstrumentedStorage) RecordSnapshot(ctx context.Context, dealID string, payload string) error {
	attrs := []attribute.KeyValue{attribute.String("dt.deal.id", dealID)}
	ctx, span, t := s.op(ctx, "RecordSnapshot", attrs...)
	err := s.inner.RecordSnapshot(ctx, dealID, payload)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStorage) CountSnapshots(ctx context.Context, dealID string) (int, error) {
	attrs := []attribute.KeyValue{attribute.String("dt.deal.id", dealID)}
	ctx, span, t := s.op(ctx, "CountSnapshots", attrs...)
	v, err := s.inner.CountSnapshots(ctx, dealID)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

// ── Decisions and attestations ──────────────────────────────────────────────

func (s *InstrumentedStorage) RecordDecision(ctx context.Context, decision *types.Decision) error {
	attrs := []attribute.KeyValue{
		attribute.String("dt.deal.id", decision.DealID),
		attribute.String("dt.decision.outcome", string(decision.Outcome)),
	}
	ctx, span, t := s.op(ctx, "RecordDecision", attrs...)
	err := s.inner.RecordDecision(ctx, decision)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStorage) GetLatestDecision(ctx context.Context, dealID string) (*types.Decision, error) {
	attrs := []attribute.KeyValue{attribute.String("dt.deal.id", dealID)}
	ctx, span, t := s.op(ctx, "GetLatestDecision", attrs...)
	v, err := s.inner.GetLatestDecision(ctx, dealID)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStorage) SetAttestation(ctx context.Context, dealID string, decisionID int64, satisfied bool) error {
	attrs := []attribute.KeyValue{attribute.String("dt.deal.id", dealID)}
	ctx, span, t := s.op(ctx, "SetAttestation", attrs...)
	err := s.inner.SetAttestation(ctx, dealID, decisionID, satisfied)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStorage) GetAttestationStatus(ctx context.Context, dealID string, decisionID int64, tenantID string) (bool, error) {
	attrs := []attribute.KeyValue{attribute.String("dt.deal.id", dealID)}
	ctx, span, t := s.op(ctx, "GetAttestationStatus", attrs...)
	v, err := s.inner.GetAttestationStatus(ctx, dealID, decisionID, tenantID)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

// ── Committee packets ───────────────────────────────────────────────────────

func (s *InstrumentedStorage) RecordPacketGenerated(ctx context.Context, dealID, actor string) error {
	attrs := []attribute.KeyValue{
		attribute.String("dt.deal.id", dealID),
		attribute.String("dt.actor", actor),
	}
	ctx, span, t := s.op(ctx, "RecordPacketGenerated", attrs...)
	err := s.inner.RecordPacketGenerated(ctx, dealID, actor)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStorage) CountPacketEvents(ctx context.Context, dealID string) (int, error) {
	attrs := []attribute.KeyValue{attribute.String("dt.deal.id", dealID)}
	ctx, span, t := s.op(ctx, "CountPacketEvents", attrs...)
	v, err := s.inner.CountPacketEvents(ctx, dealID)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

// ── Ledger ──────────────────────────────────────────────────────────────────

func (s *InstrumentedStorage) AppendLedgerEvent(ctx context.Context, ev *types.LedgerEvent) error {
	attrs := []attribute.KeyValue{
		attribute.String("dt.deal.id", ev.DealID),
		attribute.String("dt.event.kind", string(ev.Kind)),
	}
	ctx, span, t := s.op(ctx, "AppendLedgerEvent", attrs...)
	err := s.inner.AppendLedgerEvent(ctx, ev)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStorage) GetLedgerEvents(ctx context.Context, dealID string, limit int) ([]*types.LedgerEvent, error) {
	attrs := []attribute.KeyValue{attribute.String("dt.deal.id", dealID)}
	ctx, span, t := s.op(ctx, "GetLedgerEvents", attrs...)
	v, err := s.inner.GetLedgerEvents(ctx, dealID, limit)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStorage) GetLastAdvancedAt(ctx context.Context, dealID string) (*time.Time, error) {
	attrs := []attribute.KeyValue{attribute.String("dt.deal.id", dealID)}
	ctx, span, t := s.op(ctx, "GetLastAdvancedAt", attrs...)
	v, err := s.inner.GetLastAdvancedAt(ctx, dealID)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

// ── Lifecycle ───────────────────────────────────────────────────────────────

func (s *InstrumentedStorage) Close() error {
	return s.inner.Close()
}
