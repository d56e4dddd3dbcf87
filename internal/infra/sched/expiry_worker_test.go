//go:build !integration

package sched

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"langtest-practice/internal/infra/logging"
	"langtest-practice/internal/usecase"
)

type mockEnts struct {
	usecase.EntitlementUseCase
	mu      sync.Mutex
	batches []int // results returned per call
	err     error
	calls   int
}

func (m *mockEnts) ExpireLapsed(ctx context.Context, now time.Time, batch int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return 0, m.err
	}
	if len(m.batches) == 0 {
		return 0, nil
	}
	n := m.batches[0]
	m.batches = m.batches[1:]
	return n, nil
}

func TestSweep_DrainsFullBatches(t *testing.T) {
	ents := &mockEnts{batches: []int{sweepBatch, sweepBatch, 7}}
	w := NewExpiryWorker(time.Minute, ents, logging.Nop())

	if got := w.Sweep(context.Background()); got != 2*sweepBatch+7 {
		t.Fatalf("expected %d expired, got %d", 2*sweepBatch+7, got)
	}
	if ents.calls != 3 {
		t.Errorf("expected 3 calls, got %d", ents.calls)
	}
}

func TestSweep_StopsOnError(t *testing.T) {
	ents := &mockEnts{err: errors.New("db down")}
	w := NewExpiryWorker(time.Minute, ents, logging.Nop())

	if got := w.Sweep(context.Background()); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if ents.calls != 1 {
		t.Errorf("expected a single attempt, got %d", ents.calls)
	}
}

func TestRun_TicksUntilCancelled(t *testing.T) {
	ents := &mockEnts{}
	w := NewExpiryWorker(5*time.Millisecond, ents, logging.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	if err := w.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	ents.mu.Lock()
	defer ents.mu.Unlock()
	if ents.calls == 0 {
		t.Error("expected at least one sweep")
	}
}
