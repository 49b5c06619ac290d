// Package looper implements the Loop Manager (C6): a cancellable,
// timeout-bounded AgentLoop per request_id, a monitor goroutine that
// samples the Coordinator's counters on a fixed cadence, and
// quiescence-based completion detection.
//
// Grounded on the teacher's internal/agent/loop.go per-run tracing
// lifecycle (Run's trace create/finish bracket), generalized from "one
// trace per chat run" to "one cancellable, timeout-bounded loop per
// request_id."
package looper

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nextlevelbuilder/forgecode/internal/errs"
)

// Status is the terminal state an AgentLoop ends in.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusTimeout   Status = "timeout"
)

// Coordinator is the narrow interface the Loop Manager composes,
// matching spec.md §4.6's "Coordinator is not aware of AgentLoop; it
// provides the primitives the Loop Manager composes."
type Coordinator interface {
	ProcessUserRequestForSession(sessionID, content string) error
	PendingMessagesTotal() int
	ActiveProcessingCount() int
}

// Result is delivered once, on termination, to the loop's own result
// channel and to the manager's shared results stream.
type Result struct {
	RequestID   string
	Status      Status
	Duration    time.Duration
	CompletedAt time.Time
	Err         error
}

// Config bounds one AgentLoop's timing. Defaults match spec.md §4.6.
type Config struct {
	Deadline         time.Duration // default 20 minutes
	MonitorCadence   time.Duration // T1, default 5s
	IdleThreshold    time.Duration // T2, default 30s
	IdleTicksRequired int          // K, default 6
}

func defaultConfig() Config {
	return Config{
		Deadline:          20 * time.Minute,
		MonitorCadence:    5 * time.Second,
		IdleThreshold:     30 * time.Second,
		IdleTicksRequired: 6,
	}
}

func (c Config) withDefaults() Config {
	d := defaultConfig()
	if c.Deadline > 0 {
		d.Deadline = c.Deadline
	}
	if c.MonitorCadence > 0 {
		d.MonitorCadence = c.MonitorCadence
	}
	if c.IdleThreshold > 0 {
		d.IdleThreshold = c.IdleThreshold
	}
	if c.IdleTicksRequired > 0 {
		d.IdleTicksRequired = c.IdleTicksRequired
	}
	return d
}

// AgentLoop is one bounded, cancellable per-request run.
type AgentLoop struct {
	RequestID string
	StartedAt time.Time

	cancel  context.CancelFunc
	cfg     Config
	results chan Result
	// userCancelled is set by Cancel before calling cancel(), so the
	// monitor can distinguish "cancelled by caller" from "deadline
	// fired" even though both observe ctx.Done() the same way.
	userCancelled atomic.Bool
}

// Cancel fires the loop's cancellation handle with terminal cause
// "cancelled" (spec.md §4.6 termination condition 2).
func (l *AgentLoop) Cancel() {
	l.userCancelled.Store(true)
	l.cancel()
}

// Results returns the loop's own single-result channel, delivered to
// exactly once on termination (mirrors the manager-wide ResultsStream,
// scoped to this loop so a caller tracking one in-flight request
// doesn't have to filter the shared stream by RequestID).
func (l *AgentLoop) Results() <-chan Result {
	return l.results
}

// Manager tracks the active-loop map and the shared results stream.
type Manager struct {
	mu      sync.RWMutex
	active  map[string]*AgentLoop
	results chan Result
	coord   Coordinator
}

// NewManager creates a Loop Manager bound to the given Coordinator.
func NewManager(coord Coordinator) *Manager {
	return &Manager{
		active:  make(map[string]*AgentLoop),
		results: make(chan Result, 64),
		coord:   coord,
	}
}

// ResultsStream returns the manager-wide results channel every
// terminated loop's Result is also delivered to, per spec.md §4.6.
func (m *Manager) ResultsStream() <-chan Result {
	return m.results
}

// StartLoop fails with already_active if request_id is already in the
// active map, per spec.md §4.6.
func (m *Manager) StartLoop(ctx context.Context, requestID, sessionID, userRequest string, cfg Config) (*AgentLoop, error) {
	m.mu.Lock()
	if _, exists := m.active[requestID]; exists {
		m.mu.Unlock()
		return nil, errs.New(errs.KindAlreadyActive, "loop already active for request_id "+requestID)
	}

	cfg = cfg.withDefaults()
	loopCtx, cancel := context.WithTimeout(ctx, cfg.Deadline)
	loop := &AgentLoop{
		RequestID: requestID,
		StartedAt: time.Now(),
		cancel:    cancel,
		cfg:       cfg,
		results:   make(chan Result, 1),
	}
	m.active[requestID] = loop
	m.mu.Unlock()

	if err := m.coord.ProcessUserRequestForSession(sessionID, userRequest); err != nil {
		m.finish(loop, Result{RequestID: requestID, Status: StatusFailed, Err: err, CompletedAt: time.Now(), Duration: time.Since(loop.StartedAt)})
		return loop, nil
	}

	go m.monitor(loopCtx, loop)
	return loop, nil
}

// monitor samples (pending_messages_total, active_processing_count)
// on cadence T1, tracking idle ticks and evaluating the three
// termination conditions in order, per spec.md §4.6.
func (m *Manager) monitor(ctx context.Context, loop *AgentLoop) {
	ticker := time.NewTicker(loop.cfg.MonitorCadence)
	defer ticker.Stop()

	lastActivity := time.Now()
	idleTicks := 0

	for {
		select {
		case <-ctx.Done():
			var result Result
			if loop.userCancelled.Load() {
				result = Result{RequestID: loop.RequestID, Status: StatusFailed, Err: errs.New(errs.KindCancelled, "loop cancelled"), CompletedAt: time.Now(), Duration: time.Since(loop.StartedAt)}
			} else {
				result = Result{RequestID: loop.RequestID, Status: StatusTimeout, Err: errs.New(errs.KindTimeout, "loop deadline exceeded"), CompletedAt: time.Now(), Duration: time.Since(loop.StartedAt)}
			}
			m.finish(loop, result)
			return

		case <-ticker.C:
			pending := m.coord.PendingMessagesTotal()
			processing := m.coord.ActiveProcessingCount()

			if pending != 0 || processing != 0 {
				lastActivity = time.Now()
				idleTicks = 0
				continue
			}

			idleTicks++
			if time.Since(lastActivity) >= loop.cfg.IdleThreshold && idleTicks >= loop.cfg.IdleTicksRequired {
				m.finish(loop, Result{RequestID: loop.RequestID, Status: StatusCompleted, CompletedAt: time.Now(), Duration: time.Since(loop.StartedAt)})
				return
			}
		}
	}
}

func (m *Manager) finish(loop *AgentLoop, result Result) {
	m.mu.Lock()
	delete(m.active, loop.RequestID)
	m.mu.Unlock()

	select {
	case loop.results <- result:
	default:
	}
	select {
	case m.results <- result:
	default:
	}
}

// CancelLoop fires the named loop's cancellation handle.
func (m *Manager) CancelLoop(requestID string) error {
	m.mu.RLock()
	loop, ok := m.active[requestID]
	m.mu.RUnlock()
	if !ok {
		return errs.New(errs.KindNotFound, "no active loop for request_id "+requestID)
	}
	loop.Cancel()
	return nil
}

// GetLoop returns the active loop for request_id, if any.
func (m *Manager) GetLoop(requestID string) (*AgentLoop, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	loop, ok := m.active[requestID]
	return loop, ok
}

// ActiveLoops returns every currently active request_id.
func (m *Manager) ActiveLoops() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.active))
	for id := range m.active {
		ids = append(ids, id)
	}
	return ids
}

// Stop cancels every active loop, per spec.md §4.6.
func (m *Manager) Stop() {
	m.mu.RLock()
	loops := make([]*AgentLoop, 0, len(m.active))
	for _, l := range m.active {
		loops = append(loops, l)
	}
	m.mu.RUnlock()

	for _, l := range loops {
		l.Cancel()
	}
}
