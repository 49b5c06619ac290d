package message

import (
	"encoding/json"
	"testing"
)

// R1: serializing an AgentMessage and re-parsing it yields an equal
// message (all fields preserved).
func TestAgentMessageJSONRoundTrip(t *testing.T) {
	original := NewMessage(AgentSupervisor, AgentCodeEditing, "write_hello", "create hello.txt")
	original.ReplyTo = "parent-id"
	original.Status = StatusInProgress
	original.Data = map[string]string{"session_id": "sess-1"}

	raw, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var round AgentMessage
	if err := json.Unmarshal(raw, &round); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if round.ID != original.ID || round.ReplyTo != original.ReplyTo ||
		round.FromAgent != original.FromAgent || round.ToAgent != original.ToAgent ||
		round.TaskType != original.TaskType || round.Content != original.Content ||
		round.Status != original.Status || !round.CreatedAt.Equal(original.CreatedAt) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", round, original)
	}
	if round.Data["session_id"] != "sess-1" {
		t.Fatalf("expected data to survive round trip, got %+v", round.Data)
	}
}

func TestReplyCarriesForwardDataAndSetsReplyTo(t *testing.T) {
	incoming := NewMessage(AgentSupervisor, AgentCodeEditing, "write_hello", "create hello.txt")
	incoming.Data = map[string]string{"session_id": "sess-1"}

	reply := incoming.Reply(AgentCodeEditing, StatusCompleted, "done")

	if reply.ReplyTo != incoming.ID {
		t.Fatalf("expected reply_to=%s, got %s", incoming.ID, reply.ReplyTo)
	}
	if reply.ToAgent != incoming.FromAgent {
		t.Fatalf("expected reply addressed back to %s, got %s", incoming.FromAgent, reply.ToAgent)
	}
	if reply.Data["session_id"] != "sess-1" {
		t.Fatalf("expected session_id carried forward, got %+v", reply.Data)
	}

	// mutating the reply's data must not affect the incoming message's.
	reply.Data["session_id"] = "mutated"
	if incoming.Data["session_id"] != "sess-1" {
		t.Fatal("expected CloneData to deep-copy, not alias, the source map")
	}
}

func TestDelegateCarriesForwardData(t *testing.T) {
	incoming := NewMessage(AgentUser, AgentSupervisor, "user_request", "build it")
	incoming.Data = map[string]string{"session_id": "sess-2"}

	delegated := incoming.Delegate(AgentSupervisor, AgentCodeEditing, "write_hello", "create hello.txt")

	if delegated.FromAgent != AgentSupervisor || delegated.ToAgent != AgentCodeEditing {
		t.Fatalf("unexpected delegation addressing: %+v", delegated)
	}
	if delegated.Data["session_id"] != "sess-2" {
		t.Fatalf("expected session_id carried forward to delegation, got %+v", delegated.Data)
	}
}

func TestProjectContextTaskLifecycle(t *testing.T) {
	p := NewProjectContext("demo", "/tmp/demo")

	// RecordCompletedTask is a no-op for a task id never introduced.
	p.RecordCompletedTask("ghost")
	snap := p.Snapshot()
	if len(snap.ActiveTasks) != 0 || len(snap.CompletedTasks) != 0 {
		t.Fatalf("expected no tasks recorded, got %+v", snap)
	}

	p.IntroduceTask("task-1")
	snap = p.Snapshot()
	if len(snap.ActiveTasks) != 1 || snap.ActiveTasks[0] != "task-1" {
		t.Fatalf("expected task-1 active, got %+v", snap.ActiveTasks)
	}

	p.RecordCompletedTask("task-1")
	snap = p.Snapshot()
	if len(snap.ActiveTasks) != 0 {
		t.Fatalf("expected task-1 no longer active, got %+v", snap.ActiveTasks)
	}
	if len(snap.CompletedTasks) != 1 || snap.CompletedTasks[0] != "task-1" {
		t.Fatalf("expected task-1 completed, got %+v", snap.CompletedTasks)
	}

	// re-introducing an already-completed task id must not duplicate it
	// into the active set.
	p.IntroduceTask("task-1")
	snap = p.Snapshot()
	if len(snap.ActiveTasks) != 0 {
		t.Fatalf("expected completed task not reintroduced as active, got %+v", snap.ActiveTasks)
	}
}

func TestSnapshotIsolatesCallerFromLiveState(t *testing.T) {
	p := NewProjectContext("demo", "/tmp/demo")
	p.IntroduceTask("task-1")

	snap := p.Snapshot()
	snap.ActiveTasks[0] = "tampered"

	fresh := p.Snapshot()
	if fresh.ActiveTasks[0] != "task-1" {
		t.Fatal("expected Snapshot to return a deep copy, not a live slice")
	}
}
