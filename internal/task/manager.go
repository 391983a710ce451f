package task

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"optifolio/internal/db"
	"optifolio/internal/logger"
)

// Status is the lifecycle state of a background task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status can no longer change.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// terminalRetention is how long a finished task stays in memory before the
// sweep in Start drops it. Finished tasks are persisted, so status queries
// fall through to the database afterwards.
const terminalRetention = time.Hour

// Event is delivered to subscribers as a task makes progress.
type Event struct {
	Type     string  `json:"type"` // "progress" or "status"
	Message  string  `json:"message,omitempty"`
	Progress float64 `json:"progress"`
	Status   Status  `json:"status,omitempty"`
}

// Snapshot is a point-in-time copy of a task's state.
type Snapshot struct {
	ID         string     `json:"id"`
	Status     Status     `json:"status"`
	Progress   float64    `json:"progress"`
	Detail     string     `json:"detail"`
	Error      string     `json:"error,omitempty"`
	Result     string     `json:"result,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Store persists finished task records. *db.DB satisfies it.
type Store interface {
	SaveTask(db.TaskRecord) error
}

type task struct {
	snap      Snapshot
	cancel    context.CancelFunc
	listeners map[int]chan Event
	nextSub   int
}

// Manager runs background tasks and fans progress out to subscribers.
// Listener channels are buffered; a slow subscriber drops events rather
// than blocking the task.
type Manager struct {
	mu    sync.Mutex
	tasks map[string]*task
	store Store
}

// NewManager creates a task manager. store may be nil to skip persistence.
func NewManager(store Store) *Manager {
	return &Manager{tasks: make(map[string]*task), store: store}
}

// Job is handed to a task's work function for progress reporting and
// cancellation checks between work units.
type Job struct {
	ctx context.Context
	m   *Manager
	id  string
}

// Context returns the task's context; it is cancelled when the task is.
func (j *Job) Context() context.Context { return j.ctx }

// Cancelled reports whether cancellation has been requested. Work functions
// check it between units of work.
func (j *Job) Cancelled() bool {
	return j.ctx.Err() != nil
}

// Progress records fractional progress and a human-readable message.
func (j *Job) Progress(frac float64, msg string) {
	j.m.mu.Lock()
	t, ok := j.m.tasks[j.id]
	if !ok || t.snap.Status.Terminal() {
		j.m.mu.Unlock()
		return
	}
	t.snap.Progress = frac
	t.snap.Detail = msg
	j.m.broadcastLocked(t, Event{Type: "progress", Message: msg, Progress: frac})
	j.m.mu.Unlock()
}

// Start registers a new task and runs fn on its own goroutine. The returned
// id can be used to query, subscribe to, or cancel the task. fn should
// return the job context's error when it stops due to cancellation.
func (m *Manager) Start(detail string, fn func(*Job) (any, error)) string {
	id := uuid.New().String()
	ctx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	m.expireLocked(time.Now().Add(-terminalRetention))
	t := &task{
		snap: Snapshot{
			ID:        id,
			Status:    StatusPending,
			Detail:    detail,
			CreatedAt: time.Now().UTC(),
		},
		cancel:    cancel,
		listeners: make(map[int]chan Event),
	}
	m.tasks[id] = t
	m.mu.Unlock()
	m.persist(t.snap)

	go m.run(id, ctx, fn)
	return id
}

func (m *Manager) run(id string, ctx context.Context, fn func(*Job) (any, error)) {
	m.mu.Lock()
	t := m.tasks[id]
	now := time.Now().UTC()
	t.snap.Status = StatusRunning
	t.snap.StartedAt = &now
	m.broadcastLocked(t, Event{Type: "status", Status: StatusRunning})
	snap := t.snap
	m.mu.Unlock()
	m.persist(snap)

	result, err := fn(&Job{ctx: ctx, m: m, id: id})

	m.mu.Lock()
	finished := time.Now().UTC()
	t.snap.FinishedAt = &finished
	switch {
	case ctx.Err() != nil:
		t.snap.Status = StatusCancelled
		logger.Warn("TASK", "cancelled "+id)
	case err != nil:
		t.snap.Status = StatusFailed
		t.snap.Error = err.Error()
		logger.Error("TASK", id+": "+err.Error())
	default:
		t.snap.Status = StatusCompleted
		t.snap.Progress = 1
		if result != nil {
			if b, jerr := json.Marshal(result); jerr == nil {
				t.snap.Result = string(b)
			}
		}
	}
	m.broadcastLocked(t, Event{
		Type:     "status",
		Status:   t.snap.Status,
		Progress: t.snap.Progress,
		Message:  t.snap.Error,
	})
	for _, ch := range t.listeners {
		close(ch)
	}
	t.listeners = make(map[int]chan Event)
	snap = t.snap
	m.mu.Unlock()
	m.persist(snap)
}

// Get returns a snapshot of the task. The bool reports existence.
func (m *Manager) Get(id string) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return Snapshot{}, false
	}
	return t.snap, true
}

// Cancel requests cooperative cancellation. It reports whether the task
// exists and was still cancellable.
func (m *Manager) Cancel(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.snap.Status.Terminal() {
		return false
	}
	t.cancel()
	return true
}

// Remove drops a finished task from memory. It reports whether an entry was
// removed; running tasks are kept so cancellation and streaming keep working.
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || !t.snap.Status.Terminal() {
		return false
	}
	delete(m.tasks, id)
	return true
}

// ExpireTerminal removes every terminal task that finished before cutoff and
// returns the number removed.
func (m *Manager) ExpireTerminal(cutoff time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expireLocked(cutoff)
}

func (m *Manager) expireLocked(cutoff time.Time) int {
	n := 0
	for id, t := range m.tasks {
		if t.snap.Status.Terminal() && t.snap.FinishedAt != nil && t.snap.FinishedAt.Before(cutoff) {
			delete(m.tasks, id)
			n++
		}
	}
	return n
}

// Subscribe returns a channel of task events plus an unsubscribe func.
// The channel is closed when the task finishes. For a task already in a
// terminal state the channel carries one status event and is closed.
func (m *Manager) Subscribe(id string) (<-chan Event, func(), bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, nil, false
	}

	ch := make(chan Event, 64)
	if t.snap.Status.Terminal() {
		ch <- Event{Type: "status", Status: t.snap.Status, Progress: t.snap.Progress, Message: t.snap.Error}
		close(ch)
		return ch, func() {}, true
	}

	sub := t.nextSub
	t.nextSub++
	t.listeners[sub] = ch
	unsubscribe := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if ch, ok := t.listeners[sub]; ok {
			delete(t.listeners, sub)
			close(ch)
		}
	}
	return ch, unsubscribe, true
}

// broadcastLocked sends ev to every listener without blocking. Callers hold m.mu.
func (m *Manager) broadcastLocked(t *task, ev Event) {
	for _, ch := range t.listeners {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (m *Manager) persist(snap Snapshot) {
	if m.store == nil {
		return
	}
	rec := db.TaskRecord{
		ID:         snap.ID,
		Status:     string(snap.Status),
		Progress:   snap.Progress,
		Detail:     snap.Detail,
		Error:      snap.Error,
		Result:     snap.Result,
		CreatedAt:  snap.CreatedAt,
		StartedAt:  snap.StartedAt,
		FinishedAt: snap.FinishedAt,
	}
	if err := m.store.SaveTask(rec); err != nil {
		logger.Warn("TASK", "persist "+snap.ID+": "+err.Error())
	}
}
