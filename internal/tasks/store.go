// Package tasks holds the record of the single current background task and a
// bounded history of finished ones, plus the codec and durable mirror used to
// carry the current task across a runtime reload.
package tasks

import (
	"slices"
	"sync"

	"github.com/pscheid92/faredesk/internal/domain"
)

const DefaultHistoryLimit = 20

// Observer receives the full task list (current first) after every change.
type Observer func(tasks []domain.BackgroundTask)

// Store is a synchronous in-memory state container. Every operation is total:
// nothing here can fail or block on I/O.
type Store struct {
	limit int

	mu        sync.Mutex
	current   *domain.BackgroundTask
	history   []domain.BackgroundTask // newest first
	observers map[int]Observer
	nextObs   int
}

func NewStore(historyLimit int) *Store {
	if historyLimit < 1 {
		historyLimit = DefaultHistoryLimit
	}
	return &Store{limit: historyLimit, observers: make(map[int]Observer)}
}

// SetCurrentTask occupies the current slot with task, replacing whatever was there.
func (s *Store) SetCurrentTask(task domain.BackgroundTask) {
	s.mu.Lock()
	s.current = &task
	s.mu.Unlock()
	s.publish()
}

// UpdateTaskStatus changes the current task's status and message. Terminal
// statuses move the task into history. Without a current task it does nothing.
func (s *Store) UpdateTaskStatus(status domain.TaskStatus, message string) {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return
	}
	s.current.Status = status
	s.current.Message = message
	if status.Terminal() {
		s.pushHistoryLocked(*s.current)
		s.current = nil
	}
	s.mu.Unlock()
	s.publish()
}

// ClearCurrentTask empties the current slot without recording history.
func (s *Store) ClearCurrentTask() {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return
	}
	s.current = nil
	s.mu.Unlock()
	s.publish()
}

func (s *Store) CurrentTask() (domain.BackgroundTask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return domain.BackgroundTask{}, false
	}
	return *s.current, true
}

// GetAllTasks returns the current task (if any) followed by history, newest first.
func (s *Store) GetAllTasks() []domain.BackgroundTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// ClearCompletedTasks drops the history. The current task is kept.
func (s *Store) ClearCompletedTasks() {
	s.mu.Lock()
	if len(s.history) == 0 {
		s.mu.Unlock()
		return
	}
	s.history = nil
	s.mu.Unlock()
	s.publish()
}

// Subscribe registers fn for change notifications and returns its cancel func.
// Observers run synchronously on the mutating goroutine.
func (s *Store) Subscribe(fn Observer) func() {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *Store) pushHistoryLocked(task domain.BackgroundTask) {
	s.history = slices.Insert(s.history, 0, task)
	if len(s.history) > s.limit {
		s.history = s.history[:s.limit]
	}
}

func (s *Store) snapshotLocked() []domain.BackgroundTask {
	all := make([]domain.BackgroundTask, 0, len(s.history)+1)
	if s.current != nil {
		all = append(all, *s.current)
	}
	return append(all, s.history...)
}

func (s *Store) publish() {
	s.mu.Lock()
	if len(s.observers) == 0 {
		s.mu.Unlock()
		return
	}
	snapshot := s.snapshotLocked()
	observers := make([]Observer, 0, len(s.observers))
	for _, o := range s.observers {
		observers = append(observers, o)
	}
	s.mu.Unlock()

	for _, o := range observers {
		o(snapshot)
	}
}
