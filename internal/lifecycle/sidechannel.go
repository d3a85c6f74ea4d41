package lifecycle

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/crestmark/dealtrack/internal/debug"
	"github.com/crestmark/dealtrack/internal/types"
)

const defaultSideBuffer = 64

// SideChannel is the best-effort telemetry path for ledger events that must
// never block or fail an operation: blocked-attempt records and
// status-synced markers. It is deliberately a separate construct from the
// awaited AppendLedgerEvent call used for durable transition records, so
// the guaranteed write is visibly distinct at every call site.
//
// Events are queued on a bounded channel and written by a single drain
// goroutine. When the queue is full the event is dropped and counted;
// dropped telemetry is acceptable, a stalled advancement is not.
type SideChannel struct {
	store Store
	ch    chan *types.LedgerEvent
	wg    sync.WaitGroup
	once  sync.Once

	// mu guards closed so an Emit racing Close can never send on the
	// closed channel.
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

// NewSideChannel starts a side channel draining into the given store.
func NewSideChannel(store Store, buffer int) *SideChannel {
	if buffer <= 0 {
		buffer = defaultSideBuffer
	}
	s := &SideChannel{
		store: store,
		ch:    make(chan *types.LedgerEvent, buffer),
	}
	s.wg.Add(1)
	go s.drain()
	return s
}

func (s *SideChannel) drain() {
	defer s.wg.Done()
	for ev := range s.ch {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.store.AppendLedgerEvent(ctx, ev); err != nil {
			debug.Logf("side channel: dropped %s event for %s: %s\n",
				ev.Kind, ev.DealID, debug.RedactErr(err))
			s.dropped.Add(1)
		}
		cancel()
	}
}

// Emit queues an event without blocking. A full queue drops the event, and
// so does a channel that has already been closed.
func (s *SideChannel) Emit(ev *types.LedgerEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.dropped.Add(1)
		debug.Logf("side channel: closed, dropped %s event for %s\n", ev.Kind, ev.DealID)
		return
	}
	select {
	case s.ch <- ev:
	default:
		s.dropped.Add(1)
		debug.Logf("side channel: queue full, dropped %s event for %s\n", ev.Kind, ev.DealID)
	}
}

// Dropped returns the number of events lost to queue pressure or write
// failures since the channel started.
func (s *SideChannel) Dropped() int64 {
	return s.dropped.Load()
}

// Close stops accepting events and waits for the queue to drain.
func (s *SideChannel) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
	})
	s.wg.Wait()
}
