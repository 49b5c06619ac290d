package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nextlevelbuilder/forgecode/internal/message"
)

type recordingInbox struct {
	mu       sync.Mutex
	received []*message.AgentMessage
	full     bool
}

func (i *recordingInbox) Deliver(m *message.AgentMessage) bool {
	if i.full {
		return false
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.received = append(i.received, m)
	return true
}

func (i *recordingInbox) snapshot() []*message.AgentMessage {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]*message.AgentMessage(nil), i.received...)
}

type recordingUserListener struct {
	mu       sync.Mutex
	received []*message.AgentMessage
}

func (l *recordingUserListener) DeliverToUser(m *message.AgentMessage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.received = append(l.received, m)
}

func (l *recordingUserListener) snapshot() []*message.AgentMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*message.AgentMessage(nil), l.received...)
}

func startRouter(t *testing.T, r *Router) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx)
	return cancel
}

func TestRouterDeliversInOrderPerDestination(t *testing.T) {
	r := NewRouter(16)
	cancel := startRouter(t, r)
	defer cancel()

	inbox := &recordingInbox{}
	r.RegisterInbox(message.AgentCodeEditing, inbox)

	const n = 20
	for i := 0; i < n; i++ {
		m := message.NewMessage(message.AgentSupervisor, message.AgentCodeEditing, "task", "step")
		m.Data = map[string]string{"seq": string(rune('a' + i))}
		if err := r.Submit(m); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}

	deadline := time.After(2 * time.Second)
	for {
		if len(inbox.snapshot()) == n {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for delivery, got %d/%d", len(inbox.snapshot()), n)
		case <-time.After(5 * time.Millisecond):
		}
	}

	got := inbox.snapshot()
	for i, m := range got {
		want := string(rune('a' + i))
		if m.Data["seq"] != want {
			t.Fatalf("order violated at index %d: got %q want %q", i, m.Data["seq"], want)
		}
	}
}

func TestRouterRoutesToUserListener(t *testing.T) {
	r := NewRouter(4)
	cancel := startRouter(t, r)
	defer cancel()

	l := &recordingUserListener{}
	r.RegisterUserListener("session-1", l)

	m := message.NewMessage(message.AgentSupervisor, message.AgentUser, "reply", "done")
	if err := r.Submit(m); err != nil {
		t.Fatalf("submit: %v", err)
	}

	deadline := time.After(time.Second)
	for {
		if len(l.snapshot()) == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for user delivery")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestRouterSubmitReturnsErrorWhenSaturated(t *testing.T) {
	r := NewRouter(1)
	// No Run() goroutine: nothing drains the queue, so the second
	// submit must observe the queue full.
	if err := r.Submit(message.NewMessage(message.AgentSupervisor, message.AgentReact, "t", "c")); err != nil {
		t.Fatalf("first submit should succeed: %v", err)
	}
	if err := r.Submit(message.NewMessage(message.AgentSupervisor, message.AgentReact, "t", "c")); err == nil {
		t.Fatal("expected router_saturated error on second submit")
	}
}

func TestRouterDropsOnInboxSaturation(t *testing.T) {
	r := NewRouter(4)
	cancel := startRouter(t, r)
	defer cancel()

	inbox := &recordingInbox{full: true}
	r.RegisterInbox(message.AgentReact, inbox)

	m := message.NewMessage(message.AgentSupervisor, message.AgentReact, "t", "c")
	if err := r.Submit(m); err != nil {
		t.Fatalf("submit: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if len(inbox.snapshot()) != 0 {
		t.Fatal("expected message to be dropped, not delivered")
	}
}

func TestRouterUnknownTargetDoesNotPanic(t *testing.T) {
	r := NewRouter(4)
	cancel := startRouter(t, r)
	defer cancel()

	m := message.NewMessage(message.AgentSupervisor, message.AgentID("ghost"), "t", "c")
	if err := r.Submit(m); err != nil {
		t.Fatalf("submit: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
}
