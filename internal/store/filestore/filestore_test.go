package filestore

import (
	"testing"
	"time"

	"github.com/nextlevelbuilder/forgecode/internal/message"
	"github.com/nextlevelbuilder/forgecode/internal/store"
)

func TestProjectRoundTrip(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	rec := store.ProjectRecord{Name: "demo", Path: "/tmp/demo", Phase: "implementation", UpdatedAt: time.Unix(0, 0).UTC()}
	if err := s.SaveProject(rec); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, ok, err := s.LoadProject("demo")
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got.Phase != "implementation" {
		t.Fatalf("expected phase to round-trip, got %q", got.Phase)
	}

	if _, ok, err := s.LoadProject("missing"); err != nil || ok {
		t.Fatalf("expected missing project to report ok=false, got ok=%v err=%v", ok, err)
	}
}

func TestSaveMessageIsIdempotentByID(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	base := store.MessageRecord{
		ID:        "msg-1",
		SessionID: "sess-1",
		FromAgent: message.AgentUser,
		ToAgent:   message.AgentSupervisor,
		Content:   "first",
	}
	if err := s.SaveMessage(base); err != nil {
		t.Fatalf("save 1: %v", err)
	}
	base.Content = "second"
	if err := s.SaveMessage(base); err != nil {
		t.Fatalf("save 2: %v", err)
	}

	records, err := s.ListMessages("sess-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected exactly one record for a repeated id, got %d", len(records))
	}
	if records[0].Content != "second" {
		t.Fatalf("expected overwritten content, got %q", records[0].Content)
	}
}

func TestListMessagesUnknownSessionReturnsEmpty(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	records, err := s.ListMessages("never-seen")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}

func TestAccumulateTokensSumsAcrossCalls(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if err := s.AccumulateTokens("sess-1", "anthropic_direct", "claude-sonnet-4-5-20250929", 10, 5); err != nil {
		t.Fatalf("accumulate 1: %v", err)
	}
	if err := s.AccumulateTokens("sess-1", "anthropic_direct", "claude-sonnet-4-5-20250929", 7, 3); err != nil {
		t.Fatalf("accumulate 2: %v", err)
	}
	if err := s.AccumulateTokens("sess-1", "google_gemini", "gemini-2.5-pro", 1, 1); err != nil {
		t.Fatalf("accumulate other model: %v", err)
	}

	usage, err := s.GetTokenUsage("sess-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(usage) != 2 {
		t.Fatalf("expected two provider/model rows for sess-1, got %d", len(usage))
	}

	var found bool
	for _, u := range usage {
		if u.Provider == "anthropic_direct" {
			found = true
			if u.InputTokens != 17 || u.OutputTokens != 8 {
				t.Fatalf("expected summed tokens 17/8, got %d/%d", u.InputTokens, u.OutputTokens)
			}
		}
	}
	if !found {
		t.Fatal("expected an anthropic_direct row")
	}
}
