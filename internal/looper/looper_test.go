package looper

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type fakeCoordinator struct {
	pending    atomic.Int64
	processing atomic.Int64
	requests   chan string
}

func newFakeCoordinator() *fakeCoordinator {
	return &fakeCoordinator{requests: make(chan string, 8)}
}

func (f *fakeCoordinator) ProcessUserRequestForSession(sessionID, content string) error {
	f.requests <- content
	return nil
}

func (f *fakeCoordinator) PendingMessagesTotal() int    { return int(f.pending.Load()) }
func (f *fakeCoordinator) ActiveProcessingCount() int   { return int(f.processing.Load()) }

func TestStartLoopFailsWhenAlreadyActive(t *testing.T) {
	coord := newFakeCoordinator()
	mgr := NewManager(coord)
	ctx := context.Background()

	cfg := Config{MonitorCadence: 20 * time.Millisecond, IdleThreshold: 10 * time.Millisecond, IdleTicksRequired: 2, Deadline: time.Second}
	if _, err := mgr.StartLoop(ctx, "req-1", "sess-1", "hello", cfg); err != nil {
		t.Fatalf("first start: %v", err)
	}
	if _, err := mgr.StartLoop(ctx, "req-1", "sess-1", "hello again", cfg); err == nil {
		t.Fatal("expected already_active error on duplicate request_id")
	}
}

func TestLoopCompletesOnQuiescence(t *testing.T) {
	coord := newFakeCoordinator()
	mgr := NewManager(coord)
	ctx := context.Background()

	cfg := Config{MonitorCadence: 10 * time.Millisecond, IdleThreshold: 15 * time.Millisecond, IdleTicksRequired: 2, Deadline: 2 * time.Second}
	if _, err := mgr.StartLoop(ctx, "req-2", "sess-2", "hello", cfg); err != nil {
		t.Fatalf("start: %v", err)
	}

	select {
	case result := <-mgr.ResultsStream():
		if result.Status != StatusCompleted {
			t.Fatalf("expected completed, got %v (err=%v)", result.Status, result.Err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for loop completion")
	}

	if _, ok := mgr.GetLoop("req-2"); ok {
		t.Fatal("expected loop to be removed from active map after termination")
	}
}

func TestLoopTerminatesOnCancel(t *testing.T) {
	coord := newFakeCoordinator()
	coord.processing.Store(1) // keep it non-idle so only Cancel can terminate it
	mgr := NewManager(coord)
	ctx := context.Background()

	cfg := Config{MonitorCadence: 10 * time.Millisecond, IdleThreshold: time.Hour, IdleTicksRequired: 1000, Deadline: time.Minute}
	loop, err := mgr.StartLoop(ctx, "req-3", "sess-3", "hello", cfg)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := mgr.CancelLoop(loop.RequestID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	select {
	case result := <-mgr.ResultsStream():
		if result.Status != StatusFailed {
			t.Fatalf("expected failed/cancelled, got %v", result.Status)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for cancellation result")
	}
}

func TestLoopTerminatesOnDeadline(t *testing.T) {
	coord := newFakeCoordinator()
	coord.processing.Store(1)
	mgr := NewManager(coord)
	ctx := context.Background()

	cfg := Config{MonitorCadence: 10 * time.Millisecond, IdleThreshold: time.Hour, IdleTicksRequired: 1000, Deadline: 30 * time.Millisecond}
	if _, err := mgr.StartLoop(ctx, "req-4", "sess-4", "hello", cfg); err != nil {
		t.Fatalf("start: %v", err)
	}

	select {
	case result := <-mgr.ResultsStream():
		if result.Status != StatusTimeout {
			t.Fatalf("expected timeout, got %v", result.Status)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for deadline result")
	}
}
