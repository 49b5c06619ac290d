// Package coordinator implements the Coordinator (C5): agent set
// construction, the single shared ProjectContext, process_user_request,
// switch_model, and the pending_messages_total/active_processing_count
// counters the Loop Manager's monitor samples.
//
// Grounded on the teacher's internal/gateway/server.go (agents
// *agent.Router field) and internal/sessions/manager.go's narrow
// mutation API, generalized into ProjectContext's
// record_completed_task/set_phase/upsert_file per spec.md §9's
// reshaping note.
package coordinator

import (
	"context"

	"github.com/nextlevelbuilder/forgecode/internal/agentcore"
	"github.com/nextlevelbuilder/forgecode/internal/bus"
	"github.com/nextlevelbuilder/forgecode/internal/message"
	"github.com/nextlevelbuilder/forgecode/internal/providers"
)

// Coordinator is not aware of AgentLoop (spec.md §4.5): it only
// provides the primitives the Loop Manager composes.
type Coordinator struct {
	router  *bus.Router
	agents  map[message.AgentID]*agentcore.Agent
	project *message.ProjectContext
	llm     *providers.Client
}

// New constructs a Coordinator over an already-built agent set, wiring
// each agent's inbox into the router. Every agent must have been built
// with Outbox: coordinator-caller-supplied router (the agents submit
// replies/delegations directly to the same Router instance passed
// here).
func New(router *bus.Router, agents []*agentcore.Agent, project *message.ProjectContext, llm *providers.Client) *Coordinator {
	c := &Coordinator{
		router:  router,
		agents:  make(map[message.AgentID]*agentcore.Agent, len(agents)),
		project: project,
		llm:     llm,
	}
	for _, a := range agents {
		c.agents[a.ID] = a
		router.RegisterInbox(a.ID, a)
	}
	for _, a := range agents {
		a.SetKnownAgents(c)
	}
	return c
}

// IsKnown implements agentcore.KnownAgents: whether id names a
// constructed agent (used by the supervisor's delegation-target
// validation).
func (c *Coordinator) IsKnown(id message.AgentID) bool {
	_, ok := c.agents[id]
	return ok
}

// Project returns the single shared ProjectContext every agent's
// prompt assembly reads.
func (c *Coordinator) Project() *message.ProjectContext {
	return c.project
}

// Run starts the router dispatcher and every agent's consumer loop.
// It blocks until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) {
	go c.router.Run(ctx)
	for _, a := range c.agents {
		go a.Run(ctx)
	}
	<-ctx.Done()
}

// Stop signals every agent to drain and exit, and stops the router.
func (c *Coordinator) Stop() {
	for _, a := range c.agents {
		a.Stop()
	}
	c.router.Stop()
}

// ProcessUserRequest injects one pending message addressed to the
// supervisor, per spec.md §4.5. It carries no session_id, so no
// Streaming Session observes its sub-events; use
// ProcessUserRequestForSession from the streaming layer instead.
func (c *Coordinator) ProcessUserRequest(content string) error {
	return c.ProcessUserRequestForSession("", content)
}

// ProcessUserRequestForSession is ProcessUserRequest with a session_id
// stamped on the initial message's Data, so every reply, delegation,
// and published sub-event in the resulting turn tree (agentcore.Agent's
// Reply/Delegate/publish) stays attributable back to the originating
// Streaming Session (spec.md §4.7, §8 scenario 2's frame-ordering
// requirement).
func (c *Coordinator) ProcessUserRequestForSession(sessionID, content string) error {
	m := message.NewMessage(message.AgentUser, message.AgentSupervisor, "user_request", content)
	if sessionID != "" {
		m.Data = map[string]string{"session_id": sessionID}
	}
	return c.router.Submit(m)
}

// SwitchModel atomically replaces the backend every agent's next
// Generate call observes; in-flight turns finish under the old client
// (spec.md §4.5, §5).
func (c *Coordinator) SwitchModel(provider providers.Name, model string) error {
	return c.llm.Switch(provider, model)
}

// PendingMessagesTotal sums every agent inbox depth plus the router's
// own queue depth, per spec.md §4.5. Agents in this build submit
// replies directly to the router rather than through a separate
// per-agent outbox queue, so the router depth already accounts for
// messages in flight to their destination.
func (c *Coordinator) PendingMessagesTotal() int {
	total := c.router.Depth()
	for _, a := range c.agents {
		total += a.InboxDepth()
	}
	return total
}

// ActiveProcessingCount counts agents currently executing a turn.
func (c *Coordinator) ActiveProcessingCount() int {
	count := 0
	for _, a := range c.agents {
		if a.Processing() {
			count++
		}
	}
	return count
}
