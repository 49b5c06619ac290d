// Package agentcore implements the Agent (C3): the per-role turn
// executor — prompt assembly, LLM invocation, sequential tool-call
// execution, supervisor-only delegation parsing, and reply emission.
//
// Grounded on the teacher's internal/agent/loop.go Think->Act->Observe
// cycle, generalized from one long-lived conversational loop per
// channel session to one stateless turn per inbox message.
package agentcore

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/nextlevelbuilder/forgecode/internal/bus"
	"github.com/nextlevelbuilder/forgecode/internal/errs"
	"github.com/nextlevelbuilder/forgecode/internal/message"
	"github.com/nextlevelbuilder/forgecode/internal/providers"
	"github.com/nextlevelbuilder/forgecode/internal/tools"
)

// sessionIDKey is the AgentMessage.Data key a Streaming Session stamps
// on the initial user_request message so every reply/delegate/event in
// the resulting turn tree stays attributable back to it.
const sessionIDKey = "session_id"

// Outbox is the narrow interface an Agent uses to hand a message back
// to the Message Router, avoiding an import cycle between agentcore
// and bus (mirrors bus.Inbox's own cycle-avoidance narrowing).
type Outbox interface {
	Submit(m *message.AgentMessage) error
}

// KnownAgents resolves whether a delegation target name is a known
// agent id, per spec.md §4.3 step 4: "Unknown targets are logged and
// ignored."
type KnownAgents interface {
	IsKnown(id message.AgentID) bool
}

// Agent is one specialized role in the orchestration: a system prompt,
// a bounded inbox, and a turn executor bound to the shared
// ProjectContext, LLM client, and tool registry.
type Agent struct {
	ID           message.AgentID
	SystemPrompt string
	IsSupervisor bool
	ToolsEnabled bool

	inbox   chan *message.AgentMessage
	outbox  Outbox
	project *message.ProjectContext
	llm     *providers.Client
	toolReg *tools.Registry
	known   KnownAgents
	events  bus.EventPublisher

	processing atomic.Bool
	stopped    atomic.Bool
}

// Config bundles an Agent's collaborators at construction.
type Config struct {
	ID           message.AgentID
	SystemPrompt string
	IsSupervisor bool
	ToolsEnabled bool
	InboxSize    int
	Outbox       Outbox
	Project      *message.ProjectContext
	LLM          *providers.Client
	Tools        *tools.Registry
	Known        KnownAgents
	Events       bus.EventPublisher
}

// New constructs an Agent with a bounded inbox (default 100, per
// spec.md §5).
func New(cfg Config) *Agent {
	size := cfg.InboxSize
	if size <= 0 {
		size = 100
	}
	return &Agent{
		ID:           cfg.ID,
		SystemPrompt: cfg.SystemPrompt,
		IsSupervisor: cfg.IsSupervisor,
		ToolsEnabled: cfg.ToolsEnabled,
		inbox:        make(chan *message.AgentMessage, size),
		outbox:       cfg.Outbox,
		project:      cfg.Project,
		llm:          cfg.LLM,
		toolReg:      cfg.Tools,
		known:        cfg.Known,
		events:       cfg.Events,
	}
}

// publish forwards an Event to the optional EventPublisher, tagged
// with the session_id carried on incoming.Data (if any). A nil
// EventPublisher or missing session_id is a silent no-op — event
// publishing is a Streaming Session Layer concern the core orchestrator
// functions correctly without (spec.md §4.7's frames are a projection
// of these, never a dependency the turn logic requires).
func (a *Agent) publish(incoming *message.AgentMessage, name string, payload any) {
	if a.events == nil {
		return
	}
	sessionID := incoming.Data[sessionIDKey]
	if sessionID == "" {
		return
	}
	a.events.Publish(bus.Event{SessionID: sessionID, Name: name, Payload: payload})
}

// Deliver implements bus.Inbox: a non-blocking enqueue, returning
// false when the inbox is full (spec.md §4.3: "full-inbox signals
// saturated error" — the Router observes the false return and logs
// accordingly, so Deliver itself need not construct an errs.Error).
func (a *Agent) Deliver(m *message.AgentMessage) bool {
	select {
	case a.inbox <- m:
		return true
	default:
		return false
	}
}

// Receive is the direct-call form of the public contract (spec.md
// §4.3 "receive(message)"), used by callers that hold a reference to
// the Agent directly rather than routing through the bus.
func (a *Agent) Receive(m *message.AgentMessage) error {
	if a.Deliver(m) {
		return nil
	}
	return errs.New(errs.KindInboxSaturated, "agent inbox is full: "+string(a.ID))
}

// SetKnownAgents wires the delegation-target resolver after
// construction, since the full agent set (and therefore the
// Coordinator that implements KnownAgents) is only known once every
// Agent has already been built.
func (a *Agent) SetKnownAgents(k KnownAgents) {
	a.known = k
}

// Processing reports whether a turn is currently executing, for the
// Coordinator's active_processing_count.
func (a *Agent) Processing() bool {
	return a.processing.Load()
}

// InboxDepth reports the number of currently queued messages, for the
// Coordinator's pending_messages_total.
func (a *Agent) InboxDepth() int {
	return len(a.inbox)
}

// Stop sets the stop flag that Run checks before it pulls each
// message. Run finishes the current turn and keeps draining queued
// messages; it does not wake an idle Run that is blocked on an empty
// inbox.
func (a *Agent) Stop() {
	a.stopped.Store(true)
}

// Run is the long-lived consumer loop: pull one message, execute a
// turn, emit the resulting messages to the outbox. It returns when ctx
// is cancelled, or when Stop has been called and the inbox is empty at
// the top of an iteration; a Run already waiting on an empty inbox
// returns only on ctx cancellation or after the next message's turn.
func (a *Agent) Run(ctx context.Context) {
	for {
		if a.stopped.Load() && len(a.inbox) == 0 {
			return
		}
		select {
		case <-ctx.Done():
			return
		case m := <-a.inbox:
			a.runTurn(ctx, m)
		}
	}
}

// runTurn executes the five ordered steps of spec.md §4.3, with
// processing true strictly from entry to exit.
func (a *Agent) runTurn(ctx context.Context, incoming *message.AgentMessage) {
	a.processing.Store(true)
	defer a.processing.Store(false)

	prompt := a.assemblePrompt(incoming)

	req := providers.ChatRequest{Messages: []providers.Message{
		{Role: "system", Content: a.SystemPrompt},
		{Role: "user", Content: prompt},
	}}
	if a.ToolsEnabled && a.toolReg != nil {
		req.Tools = a.toolDefinitions()
	}

	resp, err := a.llm.Generate(ctx, req)
	if err != nil {
		a.emitReply(incoming, message.StatusFailed, "LLM error: "+err.Error())
		return
	}

	if resp.Text == "" && len(resp.ToolCalls) == 0 {
		a.emitReply(incoming, message.StatusFailed, errs.New(errs.KindParse, "llm response had no text and no tool calls").Error())
		return
	}

	a.publish(incoming, "agent_response", map[string]string{"agent_id": string(a.ID), "text": resp.Text})

	body := resp.Text
	if len(resp.ToolCalls) > 0 {
		body += "\n\nTool Execution Results:\n" + a.runToolCalls(ctx, incoming, resp.ToolCalls)
	}

	if a.IsSupervisor {
		a.maybeDelegate(incoming, body)
	}

	a.emitReply(incoming, message.StatusCompleted, body)
}

// assemblePrompt concatenates the system prompt (held separately and
// attached at the request level), a serialized ProjectContext
// snapshot, and the incoming message description. No prior LLM
// conversation is replayed (spec.md §4.3 step 1; §9 open question
// decided in SPEC_FULL.md: stateless by default).
func (a *Agent) assemblePrompt(incoming *message.AgentMessage) string {
	var b strings.Builder

	if a.project != nil {
		snap := a.project.Snapshot()
		b.WriteString("Project: ")
		b.WriteString(snap.Name)
		b.WriteString(" (")
		b.WriteString(snap.Path)
		b.WriteString(")\nPhase: ")
		b.WriteString(snap.Phase)
		b.WriteString("\nActive tasks: ")
		b.WriteString(strings.Join(snap.ActiveTasks, ", "))
		b.WriteString("\nCompleted tasks: ")
		b.WriteString(strings.Join(snap.CompletedTasks, ", "))
		b.WriteString("\n\n")
	}

	b.WriteString("Incoming message:\n")
	b.WriteString("task_type: ")
	b.WriteString(incoming.TaskType)
	b.WriteString("\nfrom_agent: ")
	b.WriteString(string(incoming.FromAgent))
	b.WriteString("\ncontent: ")
	b.WriteString(incoming.Content)
	if len(incoming.Data) > 0 {
		b.WriteString("\ndata:")
		for k, v := range incoming.Data {
			b.WriteString("\n  ")
			b.WriteString(k)
			b.WriteString(": ")
			b.WriteString(v)
		}
	}
	return b.String()
}

func (a *Agent) toolDefinitions() []providers.ToolDefinition {
	specs := a.toolReg.List()
	defs := make([]providers.ToolDefinition, 0, len(specs))
	for _, s := range specs {
		defs = append(defs, providers.ToolDefinition{Name: s.Name, Description: s.Description, Parameters: s.Parameters})
	}
	return defs
}

// runToolCalls executes every ToolCall in emission order, sequentially
// (spec.md §4.3 step 3: "execute them in emission order, sequentially,
// accumulating results... Tools never recurse into the LLM during the
// same turn.") Results are never truncated before being appended.
func (a *Agent) runToolCalls(ctx context.Context, incoming *message.AgentMessage, calls []providers.ToolCall) string {
	var b strings.Builder
	for i, call := range calls {
		if i > 0 {
			b.WriteString("\n")
		}
		a.publish(incoming, "tool_call", map[string]string{"name": call.FunctionName})
		result := a.toolReg.Execute(ctx, tools.Call{Name: call.FunctionName, Arguments: call.Arguments})
		a.publish(incoming, "tool_result", map[string]string{"name": call.FunctionName, "outcome": string(result.Outcome)})
		b.WriteString(call.FunctionName)
		b.WriteString(": ")
		b.WriteString(string(result.Outcome))
		b.WriteString("\n")
		b.WriteString(result.Content)
	}
	return b.String()
}

// maybeDelegate implements spec.md §4.3 step 4: supervisor-only
// delegation parsing. Unknown targets are logged and ignored, never
// propagated as an error.
func (a *Agent) maybeDelegate(incoming *message.AgentMessage, body string) {
	d := ParseDelegation(body)
	if !d.Complete() {
		return
	}

	target := message.AgentID(d.DelegateTo)
	if a.known != nil && !a.known.IsKnown(target) {
		slog.Warn("agentcore.delegation_unknown_target", "from_agent", string(a.ID), "target", d.DelegateTo)
		return
	}

	delegated := incoming.Delegate(a.ID, target, d.Task, d.Instructions)
	if a.project != nil {
		a.project.IntroduceTask(d.Task)
	}
	if a.outbox != nil {
		if err := a.outbox.Submit(delegated); err != nil {
			slog.Warn("agentcore.delegation_submit_failed", "from_agent", string(a.ID), "target", d.DelegateTo, "error", err.Error())
		}
	}
}

// emitReply always sends exactly one response message back to
// from_agent, per spec.md §4.3 step 5 and the "a turn emits at least
// one message" invariant.
func (a *Agent) emitReply(incoming *message.AgentMessage, status message.Status, content string) {
	reply := incoming.Reply(a.ID, status, content)
	if a.outbox == nil {
		return
	}
	if err := a.outbox.Submit(reply); err != nil {
		slog.Warn("agentcore.reply_submit_failed", "from_agent", string(a.ID), "to_agent", string(incoming.FromAgent), "error", err.Error())
	}
}
