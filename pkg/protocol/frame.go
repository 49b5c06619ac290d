// Package protocol defines the streaming wire protocol (§6.1): the
// frame shape and closed type vocabulary the Streaming Session Layer
// (C7) speaks to a connected client.
//
// Grounded on the teacher's pkg/protocol/events.go (WebSocket event
// name constants) and methods.go (RPC method name constants),
// narrowed from the teacher's 50+ method multi-tenant management
// surface to exactly the closed frame-type vocabulary spec.md §4.7
// names.
package protocol

import "time"

// ProtocolVersion identifies this build's wire shape, mirroring the
// teacher's pkg/protocol.ProtocolVersion constant.
const ProtocolVersion = 1

// FrameType is the closed set of frame types spec.md §4.7 names.
type FrameType string

const (
	FrameConnection     FrameType = "connection"
	FrameStatus         FrameType = "status"
	FrameProgress       FrameType = "progress"
	FrameAgentResponse  FrameType = "agent_response"
	FrameAgentChunk     FrameType = "agent_chunk"
	FrameToolCall       FrameType = "tool_call"
	FrameToolResult     FrameType = "tool_result"
	FrameMessageReceived FrameType = "message_received"
	FrameResponseComplete FrameType = "response_complete"
	FrameCompletion     FrameType = "completion"
	FrameCancelled      FrameType = "cancelled"
	FrameError          FrameType = "error"
	FrameDebug          FrameType = "debug"
)

// Frame is the JSON object shape spec.md §4.7/§6.1 specifies. Fields
// marked omitempty are optional per-type.
type Frame struct {
	Type      FrameType      `json:"type"`
	Content   string         `json:"content,omitempty"`
	SessionID string         `json:"session_id"`
	ProjectID string         `json:"project_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Status    string         `json:"status,omitempty"`
	Progress  *int           `json:"progress,omitempty"`
	AgentType string         `json:"agent_type,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// ClientInput is the client→server input shape spec.md §6.1 specifies.
type ClientInput struct {
	Message   string    `json:"message"`
	SessionID string    `json:"session_id,omitempty"`
	ProjectID string    `json:"project_id,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

func progressPtr(p int) *int { return &p }

// NewFrame stamps a frame with the current time; timestamp is RFC3339
// UTC per §6.1's field constraint.
func NewFrame(frameType FrameType, sessionID string) Frame {
	return Frame{Type: frameType, SessionID: sessionID, Timestamp: time.Now().UTC()}
}

// WithProgress attaches a progress value in [0,100].
func (f Frame) WithProgress(progress int) Frame {
	f.Progress = progressPtr(progress)
	return f
}

// WithContent attaches a text payload.
func (f Frame) WithContent(content string) Frame {
	f.Content = content
	return f
}

// WithStatus attaches a status label.
func (f Frame) WithStatus(status string) Frame {
	f.Status = status
	return f
}

// WithAgentType attaches the originating agent's type/id.
func (f Frame) WithAgentType(agentType string) Frame {
	f.AgentType = agentType
	return f
}

// WithMetadata attaches arbitrary metadata (e.g. token usage).
func (f Frame) WithMetadata(metadata map[string]any) Frame {
	f.Metadata = metadata
	return f
}
