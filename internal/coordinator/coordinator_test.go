package coordinator

import (
	"context"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/nextlevelbuilder/forgecode/internal/agentcore"
	"github.com/nextlevelbuilder/forgecode/internal/bus"
	"github.com/nextlevelbuilder/forgecode/internal/message"
	"github.com/nextlevelbuilder/forgecode/internal/providers"
)

type stubProvider struct {
	text string
}

func (s *stubProvider) Name() providers.Name { return providers.NameLocal }
func (s *stubProvider) DefaultModel() string { return "stub" }
func (s *stubProvider) Generate(ctx context.Context, req providers.ChatRequest) (providers.ChatResponse, error) {
	return providers.ChatResponse{Text: s.text}, nil
}

func newStubClient(t *testing.T, text string) *providers.Client {
	t.Helper()
	p := &stubProvider{text: text}
	client, err := providers.NewClient(map[providers.Name]providers.Provider{providers.NameLocal: p}, nil, rate.NewLimiter(rate.Inf, 1), providers.NameLocal, "stub")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestProcessUserRequestReachesSupervisorAndRepliesToUser(t *testing.T) {
	router := bus.NewRouter(16)
	project := message.NewProjectContext("demo", "/tmp/demo")
	llm := newStubClient(t, "all done")

	supervisor := agentcore.New(agentcore.Config{
		ID: message.AgentSupervisor, IsSupervisor: true,
		Outbox: router, Project: project, LLM: llm,
	})

	coord := New(router, []*agentcore.Agent{supervisor}, project, llm)

	var received []*message.AgentMessage
	done := make(chan struct{}, 1)
	router.RegisterUserListener("session-1", userListenerFunc(func(m *message.AgentMessage) {
		received = append(received, m)
		done <- struct{}{}
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go coord.Run(ctx)

	if err := coord.ProcessUserRequest("build hello world"); err != nil {
		t.Fatalf("process_user_request: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for reply to user")
	}

	if len(received) != 1 || received[0].Status != message.StatusCompleted {
		t.Fatalf("expected one completed reply to user, got %+v", received)
	}
}

type userListenerFunc func(m *message.AgentMessage)

func (f userListenerFunc) DeliverToUser(m *message.AgentMessage) { f(m) }

func TestPendingMessagesTotalAndActiveProcessingCount(t *testing.T) {
	router := bus.NewRouter(16)
	project := message.NewProjectContext("demo", "/tmp/demo")
	llm := newStubClient(t, "ok")

	agent := agentcore.New(agentcore.Config{ID: message.AgentReact, Outbox: router, Project: project, LLM: llm})
	coord := New(router, []*agentcore.Agent{agent}, project, llm)

	if coord.ActiveProcessingCount() != 0 {
		t.Fatalf("expected zero active processing before any turn")
	}
	if coord.PendingMessagesTotal() != 0 {
		t.Fatalf("expected zero pending messages before any submission")
	}
}

func TestIsKnownReflectsConstructedAgentSet(t *testing.T) {
	router := bus.NewRouter(4)
	project := message.NewProjectContext("demo", "/tmp/demo")
	llm := newStubClient(t, "ok")
	agent := agentcore.New(agentcore.Config{ID: message.AgentCodeEditing, Outbox: router, Project: project, LLM: llm})
	coord := New(router, []*agentcore.Agent{agent}, project, llm)

	if !coord.IsKnown(message.AgentCodeEditing) {
		t.Fatal("expected code_editing to be known")
	}
	if coord.IsKnown(message.AgentID("ghost")) {
		t.Fatal("expected unknown agent id to be unknown")
	}
}
