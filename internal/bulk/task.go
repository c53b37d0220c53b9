package bulk

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pipi20xx/emby-auto-tags/internal/tagging"
	"github.com/pipi20xx/emby-auto-tags/internal/websocket"
)

// Type identifies what a bulk task does to the library.
type Type string

const (
	TypeTag        Type = "tag"
	TypeClearTags  Type = "clear_tags"
	TypeRemoveTags Type = "remove_tags"
)

// Status represents the current state of a task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Scope selects which part of the library a task walks.
type Scope string

const (
	ScopeAll       Scope = "all"
	ScopeFavorites Scope = "favorites"
)

// ParseScope folds a scope string case-insensitively. Empty input
// means the whole library.
func ParseScope(s string) (Scope, bool) {
	switch Scope(s) {
	case "", ScopeAll:
		return ScopeAll, true
	case ScopeFavorites:
		return ScopeFavorites, true
	}
	return "", false
}

// Task is the status record of one bulk run. Per-item failures show up
// in the counters; Error is only set when the run itself died.
type Task struct {
	ID        string       `json:"id"`
	Type      Type         `json:"type"`
	Status    Status       `json:"status"`
	Mode      tagging.Mode `json:"mode,omitempty"`
	Scope     Scope        `json:"scope"`
	Processed int          `json:"processedCount"`
	Updated   int          `json:"updatedCount"`
	Failed    int          `json:"failedCount"`
	StartedAt time.Time    `json:"startedAt"`
	EndedAt   *time.Time   `json:"endedAt,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// Task lifecycle events broadcast to connected clients.
const (
	EventTaskStarted   = "task:started"
	EventTaskUpdate    = "task:update"
	EventTaskCompleted = "task:completed"
	EventTaskFailed    = "task:failed"
)

// table tracks every task for the life of the process. One goroutine
// mutates a given task; snapshots go out as copies so readers never
// see a half-applied update.
type table struct {
	mu    sync.RWMutex
	tasks map[string]*Task
	hub   *websocket.Hub
}

func newTable(hub *websocket.Hub) *table {
	return &table{
		tasks: make(map[string]*Task),
		hub:   hub,
	}
}

func (t *table) create(taskType Type, mode tagging.Mode, scope Scope) Task {
	t.mu.Lock()
	defer t.mu.Unlock()

	task := &Task{
		ID:        uuid.NewString(),
		Type:      taskType,
		Status:    StatusPending,
		Mode:      mode,
		Scope:     scope,
		StartedAt: time.Now().UTC(),
	}
	t.tasks[task.ID] = task
	t.broadcast(EventTaskStarted, task)
	return *task
}

func (t *table) setRunning(id string) {
	t.mutate(id, EventTaskUpdate, func(task *Task) {
		task.Status = StatusRunning
	})
}

// itemProcessed records one finished item; updated means the write
// changed the item's tags.
func (t *table) itemProcessed(id string, updated bool) {
	t.mutate(id, EventTaskUpdate, func(task *Task) {
		task.Processed++
		if updated {
			task.Updated++
		}
	})
}

// itemFailed records one item whose metadata fetch or write failed.
// Failed items still count as processed.
func (t *table) itemFailed(id string) {
	t.mutate(id, EventTaskUpdate, func(task *Task) {
		task.Processed++
		task.Failed++
	})
}

func (t *table) setCompleted(id string) {
	t.mutate(id, EventTaskCompleted, func(task *Task) {
		now := time.Now().UTC()
		task.Status = StatusCompleted
		task.EndedAt = &now
	})
}

func (t *table) setFailed(id, errMsg string) {
	t.mutate(id, EventTaskFailed, func(task *Task) {
		now := time.Now().UTC()
		task.Status = StatusFailed
		task.EndedAt = &now
		task.Error = errMsg
	})
}

func (t *table) get(id string) (Task, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	task, ok := t.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *task, true
}

func (t *table) all() []Task {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]Task, 0, len(t.tasks))
	for _, task := range t.tasks {
		result = append(result, *task)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.After(result[j].StartedAt)
	})
	return result
}

func (t *table) mutate(id, event string, fn func(*Task)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, ok := t.tasks[id]
	if !ok {
		return
	}
	fn(task)
	t.broadcast(event, task)
}

// broadcast is called with the table lock held; the hub hands the
// message off to its own goroutine.
func (t *table) broadcast(event string, task *Task) {
	if t.hub == nil {
		return
	}
	snapshot := *task
	_ = t.hub.Broadcast(event, snapshot)
}
