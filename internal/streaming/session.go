// Package streaming implements the Streaming Session Layer (C7): one
// long-lived per-client session mapping internal router/event-bus
// traffic onto the outward-facing protocol.Frame sequence, and a
// gorilla/websocket-based gateway that upgrades and serves sessions.
//
// Grounded on the teacher's internal/gateway/server.go Client
// registration/event-subscription pattern (registerClient/
// unregisterClient, eventPub.Subscribe keyed by client id), narrowed
// from the teacher's full JSON-RPC MethodRouter surface to the single
// input->frame-stream contract spec.md §4.7/§6.1/§8 scenario 2 name.
package streaming

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nextlevelbuilder/forgecode/internal/bus"
	"github.com/nextlevelbuilder/forgecode/internal/errs"
	"github.com/nextlevelbuilder/forgecode/internal/looper"
	"github.com/nextlevelbuilder/forgecode/internal/message"
	"github.com/nextlevelbuilder/forgecode/pkg/protocol"
)

// progressLadder is the synthetic progress sequence runLoopLifecycle
// emits, one rung per tick, while a loop is running. Real tool_call/
// tool_result/agent_response events are forwarded alongside it and do
// not stop the ladder.
var progressLadder = []int{20, 40, 60, 80, 95}

// Conn is the narrow send-side a StreamingSession writes frames to;
// wsConn (gorilla/websocket) and any test double both satisfy it.
type Conn interface {
	WriteFrame(f protocol.Frame) error
	Close() error
}

// LoopStarter is the narrow looper.Manager surface a session composes.
type LoopStarter interface {
	StartLoop(ctx context.Context, requestID, sessionID, userRequest string, cfg looper.Config) (*looper.AgentLoop, error)
	CancelLoop(requestID string) error
}

// Session is one active client connection: a session id, the
// Conn it streams frames to, and the collaborators (Router user
// listener registration, Loop Manager, EventPublisher subscription)
// that feed it.
type Session struct {
	ID        string
	ProjectID string

	conn   Conn
	router *bus.Router
	loops  LoopStarter
	events bus.EventPublisher

	mu           sync.Mutex
	activeReqID  string
	closed       atomic.Bool
}

// NewSession constructs a Session and subscribes it to the Router's
// user-addressed messages and the EventPublisher's sub-events. Callers
// must call Close when the underlying connection ends.
func NewSession(id, projectID string, conn Conn, router *bus.Router, loops LoopStarter, events bus.EventPublisher) *Session {
	s := &Session{ID: id, ProjectID: projectID, conn: conn, router: router, loops: loops, events: events}
	router.RegisterUserListener(id, s)
	if events != nil {
		events.Subscribe(id, s.onEvent)
	}
	return s
}

// Close tears down the session's subscriptions and the underlying
// connection. Idempotent.
func (s *Session) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.router.UnregisterUserListener(s.ID)
	if s.events != nil {
		s.events.Unsubscribe(s.ID)
	}
	s.conn.Close()
}

// send writes one frame, logging (not panicking) on a write failure —
// a dead connection is the caller's cue to tear the session down, not
// this method's concern.
func (s *Session) send(f protocol.Frame) {
	if err := s.conn.WriteFrame(f); err != nil {
		slog.Warn("streaming.write_failed", "session_id", s.ID, "frame_type", string(f.Type), "error", err.Error())
	}
}

// HandleInput processes one ClientInput: emits message_received,
// registers the request with the Loop Manager, and returns once the
// loop has started. The synthetic progress ladder and the terminal
// frame are sent asynchronously by runLoopLifecycle; HandleInput never
// waits for the loop to finish.
func (s *Session) HandleInput(ctx context.Context, input protocol.ClientInput, requestID string, cfg looper.Config) error {
	if strings.TrimSpace(input.Message) == "" {
		err := errs.New(errs.KindInvalidArguments, "message must not be empty")
		s.send(protocol.NewFrame(protocol.FrameError, s.ID).WithContent(err.Error()).WithStatus(string(looper.StatusFailed)))
		return err
	}

	s.mu.Lock()
	s.activeReqID = requestID
	s.mu.Unlock()

	s.send(protocol.NewFrame(protocol.FrameMessageReceived, s.ID).WithContent(input.Message))
	s.send(protocol.NewFrame(protocol.FrameStatus, s.ID).WithStatus("processing").WithProgress(10))

	loop, err := s.loops.StartLoop(ctx, requestID, s.ID, input.Message, cfg)
	if err != nil {
		s.send(protocol.NewFrame(protocol.FrameError, s.ID).WithContent(err.Error()))
		return err
	}

	go s.runLoopLifecycle(loop)
	return nil
}

// runLoopLifecycle emits the synthetic progress ladder on a short
// cadence while the loop runs, then the exactly-one-of
// completion|cancelled|error terminal frame, followed by
// response_complete{progress:100} on a successful completion only
// (spec.md §4.7).
func (s *Session) runLoopLifecycle(loop *looper.AgentLoop) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	rungIdx := 0
	for {
		select {
		case result := <-loop.Results():
			s.emitTerminal(result)
			return
		case <-ticker.C:
			if rungIdx >= len(progressLadder) {
				continue
			}
			s.send(protocol.NewFrame(protocol.FrameProgress, s.ID).WithProgress(progressLadder[rungIdx]))
			rungIdx++
		}
	}
}

func (s *Session) emitTerminal(result looper.Result) {
	switch result.Status {
	case looper.StatusCompleted:
		s.send(protocol.NewFrame(protocol.FrameCompletion, s.ID).WithStatus(string(result.Status)))
		s.send(protocol.NewFrame(protocol.FrameResponseComplete, s.ID).WithProgress(100))
	case looper.StatusTimeout:
		s.send(protocol.NewFrame(protocol.FrameError, s.ID).WithContent("request timed out").WithStatus(string(result.Status)))
	case looper.StatusFailed:
		if errs.Is(result.Err, errs.KindCancelled) {
			s.send(protocol.NewFrame(protocol.FrameCancelled, s.ID).WithStatus(string(result.Status)))
			return
		}
		content := ""
		if result.Err != nil {
			content = result.Err.Error()
		}
		s.send(protocol.NewFrame(protocol.FrameError, s.ID).WithContent(content).WithStatus(string(result.Status)))
	}
}

// Cancel fires the active request's cancellation, per the cancellation
// endpoint wired to the Loop Manager (spec.md §4.7).
func (s *Session) Cancel() error {
	s.mu.Lock()
	reqID := s.activeReqID
	s.mu.Unlock()
	if reqID == "" {
		return errs.New(errs.KindNotFound, "no active request on this session")
	}
	return s.loops.CancelLoop(reqID)
}

// DeliverToUser implements bus.UserListener. The Router broadcasts
// every AgentUser-addressed message to every registered session, so a
// session must filter on its own session_id, carried in m.Data by
// AgentMessage.Reply's propagation (internal/message).
func (s *Session) DeliverToUser(m *message.AgentMessage) {
	if m.Data["session_id"] != s.ID {
		return
	}
	s.send(protocol.NewFrame(protocol.FrameAgentResponse, s.ID).WithContent(m.Content).WithAgentType(string(m.FromAgent)).WithStatus(string(m.Status)))
}

// onEvent maps a bus.Event published by an in-flight turn (tool_call,
// tool_result, agent_response) onto the matching Frame, filtering on
// this session's own SessionID the same way DeliverToUser does.
func (s *Session) onEvent(event bus.Event) {
	if event.SessionID != s.ID {
		return
	}

	switch event.Name {
	case "tool_call":
		s.send(protocol.NewFrame(protocol.FrameToolCall, s.ID).WithMetadata(toMetadata(event.Payload)))
	case "tool_result":
		s.send(protocol.NewFrame(protocol.FrameToolResult, s.ID).WithMetadata(toMetadata(event.Payload)))
	case "agent_response":
		meta := toMetadata(event.Payload)
		f := protocol.NewFrame(protocol.FrameAgentChunk, s.ID).WithMetadata(meta)
		if text, ok := meta["text"].(string); ok {
			f = f.WithContent(text)
		}
		if agentID, ok := meta["agent_id"].(string); ok {
			f = f.WithAgentType(agentID)
		}
		s.send(f)
	default:
		s.send(protocol.NewFrame(protocol.FrameDebug, s.ID).WithContent(event.Name).WithMetadata(toMetadata(event.Payload)))
	}
}

func toMetadata(payload any) map[string]any {
	switch v := payload.(type) {
	case map[string]string:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = val
		}
		return out
	case map[string]any:
		return v
	default:
		return nil
	}
}
