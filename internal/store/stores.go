// Package store pins down the collaborator interfaces spec.md §6.2
// names as out-of-scope for the orchestration core proper
// (ProjectStore, MessageStore, TokenUsageStore): durable projections
// the core never depends on for correctness, only for the ambient
// test-tooling and standalone-run concern of having somewhere to
// persist a run's history.
//
// Grounded on the teacher's internal/store/stores.go (a package of
// narrow store interfaces: SessionStore, BuiltinToolStore, MCPStore,
// ...) and internal/store/session_store.go's SessionData/SessionInfo
// shape, narrowed to the three store interfaces spec.md §6.2 names.
package store

import (
	"time"

	"github.com/nextlevelbuilder/forgecode/internal/message"
)

// ProjectRecord is the durable projection of a message.ProjectContext
// snapshot at a point in time.
type ProjectRecord struct {
	Name           string
	Path           string
	Phase          string
	ActiveTasks    []string
	CompletedTasks []string
	UpdatedAt      time.Time
}

// ProjectStore persists ProjectContext snapshots, keyed by project
// name.
type ProjectStore interface {
	SaveProject(rec ProjectRecord) error
	LoadProject(name string) (ProjectRecord, bool, error)
}

// MessageRecord is the durable projection of one AgentMessage (sender,
// recipient, task type, content, status, provider, model) keyed by the
// message's own id for idempotent writes; token usage is kept in
// TokenUsageRecord, not here.
type MessageRecord struct {
	ID        string
	SessionID string
	FromAgent message.AgentID
	ToAgent   message.AgentID
	TaskType  string
	Content   string
	Status    message.Status
	Provider  string
	Model     string
	CreatedAt time.Time
}

// MessageStore persists AgentMessages idempotently by id: a second
// SaveMessage call with the same ID overwrites rather than duplicates.
type MessageStore interface {
	SaveMessage(rec MessageRecord) error
	ListMessages(sessionID string) ([]MessageRecord, error)
}

// TokenUsageRecord accumulates token counts for one
// session/provider/model tuple.
type TokenUsageRecord struct {
	SessionID    string
	Provider     string
	Model        string
	InputTokens  int
	OutputTokens int
}

// TokenUsageStore accumulates per-session token usage, per spec.md
// §6.2.
type TokenUsageStore interface {
	AccumulateTokens(sessionID, provider, model string, input, output int) error
	GetTokenUsage(sessionID string) ([]TokenUsageRecord, error)
}
