// Package message holds the wire-free, in-memory data model shared by the
// coordinator, router, and agents: AgentMessage and ProjectContext. Neither
// type is ever persisted by the core — only the out-of-scope collaborator
// store records a durable projection of them (see internal/store).
package message

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// AgentID tags the closed set of agent roles this build ships with.
// AgentID stays a plain string rather than a Go enum with a fixed
// method set, so a further role is just another AgentID value; the
// config package has no setting that adds roles.
type AgentID string

const (
	AgentSupervisor   AgentID = "supervisor"
	AgentCodeEditing  AgentID = "code_editing"
	AgentReact        AgentID = "react"
	AgentUser         AgentID = "user" // external caller, never a runtime Agent
)

// Status is the lifecycle state of an AgentMessage.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// AgentMessage is the unit of inter-agent communication. It is never
// persisted by the core; the out-of-scope store records its own
// projection (role, content, provider, model, token usage) keyed by
// the same id for idempotent writes.
type AgentMessage struct {
	ID        string    `json:"id"`
	ReplyTo   string    `json:"reply_to,omitempty"`
	FromAgent AgentID   `json:"from_agent"`
	ToAgent   AgentID   `json:"to_agent"`
	TaskType  string    `json:"task_type"`
	Content   string    `json:"content"`
	Data      map[string]string `json:"data,omitempty"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// NewMessage builds a pending AgentMessage with a fresh id and the
// current monotonic wall clock (per SPEC_FULL.md §9, no constant
// timestamp shortcut is carried over from the source).
func NewMessage(from, to AgentID, taskType, content string) *AgentMessage {
	return &AgentMessage{
		ID:        uuid.NewString(),
		FromAgent: from,
		ToAgent:   to,
		TaskType:  taskType,
		Content:   content,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
}

// Reply builds a response message addressed back to m.FromAgent, with
// reply_to set to m.ID, per the Agent turn contract (step 5). The
// incoming message's Data is carried forward (e.g. session_id) so a
// reply chain stays attributable to the streaming session that
// originated the request.
func (m *AgentMessage) Reply(from AgentID, status Status, content string) *AgentMessage {
	r := NewMessage(from, m.FromAgent, m.TaskType+"_response", content)
	r.ReplyTo = m.ID
	r.Status = status
	r.Data = CloneData(m.Data)
	return r
}

// Delegate builds a pending message addressed to target, carrying
// forward m's Data (session_id) the way Reply does, so a delegated
// sub-task remains attributable to the originating streaming session.
func (m *AgentMessage) Delegate(from, target AgentID, taskType, content string) *AgentMessage {
	d := NewMessage(from, target, taskType, content)
	d.Data = CloneData(m.Data)
	return d
}

// CloneData deep-copies a message's data map.
func CloneData(data map[string]string) map[string]string {
	if len(data) == 0 {
		return nil
	}
	out := make(map[string]string, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}

// FileSnapshot is the last known content of one project-relative file
// path, as observed through upsert_file.
type FileSnapshot struct {
	Path    string
	Content string
}

// ProjectContext is the single shared, mutable piece of state every
// agent's prompt assembly reads. Every mutation goes through the narrow
// API below (record_completed_task, set_phase, upsert_file,
// IntroduceTask) under the context's own lock. Agents hold the same
// *ProjectContext as the Coordinator: they read it through Snapshot,
// and the supervisor's delegation path calls IntroduceTask on it.
type ProjectContext struct {
	mu sync.RWMutex

	name string
	path string
	phase string

	completedTasks []string
	activeTasks    []string

	files map[string]string // relative path -> last known content
}

// NewProjectContext creates an empty context for the named project.
func NewProjectContext(name, path string) *ProjectContext {
	return &ProjectContext{
		name:  name,
		path:  path,
		files: make(map[string]string),
	}
}

// Snapshot is an immutable, deep-copied view of a ProjectContext taken
// for prompt assembly; mutating it never affects the live context.
type Snapshot struct {
	Name           string
	Path           string
	Phase          string
	CompletedTasks []string
	ActiveTasks    []string
	Files          map[string]string
}

// Snapshot takes a deep copy under a shared lock, safe for concurrent
// readers assembling prompts while the Coordinator mutates elsewhere.
func (p *ProjectContext) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	files := make(map[string]string, len(p.files))
	for k, v := range p.files {
		files[k] = v
	}
	return Snapshot{
		Name:           p.name,
		Path:           p.path,
		Phase:          p.phase,
		CompletedTasks: append([]string(nil), p.completedTasks...),
		ActiveTasks:    append([]string(nil), p.activeTasks...),
		Files:          files,
	}
}

// SetPhase updates the current project phase. Coordinator-only.
func (p *ProjectContext) SetPhase(phase string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.phase = phase
}

// RecordCompletedTask moves a task id from active to completed. It is a
// no-op if the task id was never introduced by a message (the
// completed/active invariant in §3 forbids inventing task ids here).
func (p *ProjectContext) RecordCompletedTask(taskID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := indexOf(p.activeTasks, taskID)
	if idx < 0 {
		return
	}
	p.activeTasks = append(p.activeTasks[:idx], p.activeTasks[idx+1:]...)
	if indexOf(p.completedTasks, taskID) < 0 {
		p.completedTasks = append(p.completedTasks, taskID)
	}
}

// IntroduceTask adds a task id to the active set; this is how a task id
// becomes eligible for RecordCompletedTask, preserving the invariant
// that every task id appearing in either set was introduced by some
// message.
func (p *ProjectContext) IntroduceTask(taskID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if indexOf(p.activeTasks, taskID) < 0 && indexOf(p.completedTasks, taskID) < 0 {
		p.activeTasks = append(p.activeTasks, taskID)
	}
}

// UpsertFile records the last known content snapshot for a
// project-relative file path.
func (p *ProjectContext) UpsertFile(relPath, content string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.files[relPath] = content
}

func indexOf(ss []string, s string) int {
	for i, v := range ss {
		if v == s {
			return i
		}
	}
	return -1
}
