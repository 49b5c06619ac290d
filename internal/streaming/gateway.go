package streaming

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/forgecode/internal/bus"
	"github.com/nextlevelbuilder/forgecode/internal/looper"
	"github.com/nextlevelbuilder/forgecode/pkg/protocol"
)

// wsConn adapts a *websocket.Conn to the Conn interface, serializing
// concurrent writes the way the teacher's gateway Client does (a
// single connection is not safe for concurrent WriteJSON calls).
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) WriteFrame(f protocol.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(f)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

// Gateway upgrades HTTP connections to WebSocket and runs one Session
// per connection, grounded on the teacher's internal/gateway/server.go
// handleWebSocket/registerClient/unregisterClient lifecycle.
type Gateway struct {
	loops          LoopStarter
	events         bus.EventPublisher
	router         *bus.Router
	upgrader       websocket.Upgrader
	loopCfg        looper.Config
	allowedOrigins []string

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewGateway constructs a Gateway bound to the Loop Manager, Router,
// and EventPublisher every session composes.
func NewGateway(loops LoopStarter, router *bus.Router, events bus.EventPublisher, loopCfg looper.Config, allowedOrigins []string) *Gateway {
	g := &Gateway{
		loops: loops, router: router, events: events,
		loopCfg: loopCfg, allowedOrigins: allowedOrigins,
		sessions: make(map[string]*Session),
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     g.checkOrigin,
	}
	return g
}

// checkOrigin allows all origins when none are configured (dev mode
// and non-browser clients), mirroring the teacher's
// gateway.Server.checkOrigin.
func (g *Gateway) checkOrigin(r *http.Request) bool {
	if len(g.allowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, a := range g.allowedOrigins {
		if origin == a || a == "*" {
			return true
		}
	}
	slog.Warn("streaming.cors_rejected", "origin", origin)
	return false
}

// ServeHTTP upgrades the request to a WebSocket and runs the session
// loop until the connection closes.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("streaming.upgrade_failed", "error", err.Error())
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	projectID := r.URL.Query().Get("project_id")

	session := NewSession(sessionID, projectID, &wsConn{conn: conn}, g.router, g.loops, g.events)
	g.register(session)
	defer g.unregister(session)

	session.send(protocol.NewFrame(protocol.FrameConnection, sessionID).WithStatus("connected"))

	g.readLoop(r.Context(), conn, session)
}

func (g *Gateway) register(s *Session) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions[s.ID] = s
	slog.Info("streaming.session_connected", "session_id", s.ID)
}

func (g *Gateway) unregister(s *Session) {
	g.mu.Lock()
	delete(g.sessions, s.ID)
	g.mu.Unlock()
	s.Close()
	slog.Info("streaming.session_disconnected", "session_id", s.ID)
}

// readLoop reads ClientInput frames off the connection until it closes
// or ctx is cancelled, dispatching each to the session.
func (g *Gateway) readLoop(ctx context.Context, conn *websocket.Conn, session *Session) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var input protocol.ClientInput
		if err := json.Unmarshal(raw, &input); err != nil {
			session.send(protocol.NewFrame(protocol.FrameError, session.ID).WithContent("invalid input: " + err.Error()))
			continue
		}

		if input.Message == "__cancel__" {
			if err := session.Cancel(); err != nil {
				session.send(protocol.NewFrame(protocol.FrameError, session.ID).WithContent(err.Error()))
			}
			continue
		}

		requestID := uuid.NewString()
		if err := session.HandleInput(ctx, input, requestID, g.loopCfg); err != nil {
			slog.Warn("streaming.handle_input_failed", "session_id", session.ID, "error", err.Error())
		}
	}
}
