// Package bus implements the Message Router (C4): a bounded, FIFO,
// process-wide queue that routes AgentMessages to their destination
// agent's inbox, or to the user listener when to_agent is "user".
//
// Grounded on the teacher's internal/bus package (InboundMessage /
// OutboundMessage / MessageRouter interface), generalized from
// channel-bound chat messages to the AgentMessage routing spec.md §4.4
// describes.
package bus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nextlevelbuilder/forgecode/internal/errs"
	"github.com/nextlevelbuilder/forgecode/internal/message"
)

// Inbox is the narrow interface an Agent exposes to the Router so the
// router never needs to import the agent package (breaks the cyclic
// reference the teacher's cmd/tools/agent triangle has — see
// SPEC_FULL.md §9's reshaping note on cyclic references).
type Inbox interface {
	// Deliver enqueues a message for this agent, non-blocking. It
	// returns false if the inbox is full (the router then drops the
	// message and logs a warning, per the back-pressure policy).
	Deliver(m *message.AgentMessage) bool
}

// UserListener receives messages addressed to the special "user" agent
// id; the Streaming Session Layer registers one per active session.
type UserListener interface {
	DeliverToUser(m *message.AgentMessage)
}

// Router is the central, process-wide FIFO queue. It never inspects or
// modifies message payloads (spec.md §4.4): it only reads ToAgent.
type Router struct {
	queue chan *message.AgentMessage

	mu            sync.RWMutex
	inboxes       map[message.AgentID]Inbox
	userListeners map[string]UserListener // keyed by an opaque listener id (session id)

	done chan struct{}
}

// NewRouter creates a router with the given bounded queue capacity
// (default 1000 per spec.md §5).
func NewRouter(capacity int) *Router {
	if capacity <= 0 {
		capacity = 1000
	}
	r := &Router{
		queue:         make(chan *message.AgentMessage, capacity),
		inboxes:       make(map[message.AgentID]Inbox),
		userListeners: make(map[string]UserListener),
		done:          make(chan struct{}),
	}
	return r
}

// RegisterInbox wires an agent's inbox into the router so future
// Submit calls addressed to that AgentID are delivered to it.
func (r *Router) RegisterInbox(id message.AgentID, inbox Inbox) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inboxes[id] = inbox
}

// UnregisterInbox removes an agent's inbox (used on Coordinator
// shutdown / agent teardown).
func (r *Router) UnregisterInbox(id message.AgentID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inboxes, id)
}

// RegisterUserListener binds a session id to a listener that receives
// every message the router routes to AgentUser.
func (r *Router) RegisterUserListener(sessionID string, l UserListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.userListeners[sessionID] = l
}

// UnregisterUserListener removes a session's user listener.
func (r *Router) UnregisterUserListener(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.userListeners, sessionID)
}

// Submit enqueues a message, non-blocking. Ordering guarantee (P2):
// messages submitted to the same destination are delivered in
// submission order, because they pass through one FIFO channel
// consumed by a single dispatcher goroutine.
func (r *Router) Submit(m *message.AgentMessage) error {
	select {
	case r.queue <- m:
		return nil
	default:
		slog.Warn("router.saturated", "message_id", m.ID, "to_agent", string(m.ToAgent))
		return errs.New(errs.KindRouterSaturated, "router queue is full")
	}
}

// Run starts the single dispatcher loop. It blocks until ctx is
// cancelled or Stop is called.
func (r *Router) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case m := <-r.queue:
			r.dispatch(m)
		}
	}
}

// Stop terminates the dispatcher loop.
func (r *Router) Stop() {
	close(r.done)
}

// Depth reports the number of messages currently queued, used by the
// Coordinator's pending_messages_total counter.
func (r *Router) Depth() int {
	return len(r.queue)
}

func (r *Router) dispatch(m *message.AgentMessage) {
	if m.ToAgent == message.AgentUser {
		r.mu.RLock()
		listeners := make([]UserListener, 0, len(r.userListeners))
		for _, l := range r.userListeners {
			listeners = append(listeners, l)
		}
		r.mu.RUnlock()
		for _, l := range listeners {
			l.DeliverToUser(m)
		}
		return
	}

	r.mu.RLock()
	inbox, ok := r.inboxes[m.ToAgent]
	r.mu.RUnlock()
	if !ok {
		slog.Warn("router.unknown_target", "message_id", m.ID, "to_agent", string(m.ToAgent))
		return
	}
	if !inbox.Deliver(m) {
		slog.Warn("router.inbox_saturated_drop", "message_id", m.ID, "to_agent", string(m.ToAgent))
	}
}
