// Package notify is the user notification channel: a FIFO of short-lived
// messages that dismiss themselves after their duration.
package notify

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/faredesk/internal/domain"
	"github.com/pscheid92/faredesk/internal/metrics"
)

var defaultDurations = map[domain.NotificationKind]time.Duration{
	domain.NotifyInfo:    4 * time.Second,
	domain.NotifySuccess: 5 * time.Second,
	domain.NotifyWarning: 6 * time.Second,
	domain.NotifyError:   8 * time.Second,
}

type EventType string

const (
	EventAdded     EventType = "added"
	EventDismissed EventType = "dismissed"
)

type Event struct {
	Type         EventType           `json:"type"`
	Notification domain.Notification `json:"notification"`
}

// Sink implements domain.Notifier.
type Sink struct {
	clock clockwork.Clock

	mu      sync.Mutex
	entries []domain.Notification
	timers  map[string]clockwork.Timer
	subs    map[int]chan Event
	nextSub int
	closed  bool
}

func NewSink(clock clockwork.Clock) *Sink {
	return &Sink{
		clock:  clock,
		timers: make(map[string]clockwork.Timer),
		subs:   make(map[int]chan Event),
	}
}

// Notify queues a message and returns its id. A non-positive duration picks
// the default for kind.
func (s *Sink) Notify(message string, kind domain.NotificationKind, duration time.Duration) string {
	if duration <= 0 {
		duration = defaultDurations[kind]
		if duration == 0 {
			duration = defaultDurations[domain.NotifyInfo]
		}
	}

	n := domain.Notification{
		ID:        uuid.NewString(),
		Message:   message,
		Kind:      kind,
		Duration:  duration,
		CreatedAt: s.clock.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return n.ID
	}

	s.entries = append(s.entries, n)
	s.timers[n.ID] = s.clock.AfterFunc(duration, func() { _ = s.Dismiss(n.ID) })
	s.broadcastLocked(Event{Type: EventAdded, Notification: n})
	metrics.NotificationsTotal.WithLabelValues(string(kind)).Inc()
	return n.ID
}

// Dismiss removes a notification before its duration elapses.
func (s *Sink) Dismiss(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.entries, func(n domain.Notification) bool { return n.ID == id })
	if i < 0 {
		return domain.ErrNotificationGone
	}
	n := s.entries[i]
	s.entries = slices.Delete(s.entries, i, i+1)
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
	s.broadcastLocked(Event{Type: EventDismissed, Notification: n})
	return nil
}

// List returns the visible notifications, oldest first.
func (s *Sink) List() []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.entries)
}

// Subscribe returns a channel of sink events. Slow subscribers miss events
// rather than block the sink.
func (s *Sink) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, max(buffer, 1))

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

// Close stops every dismissal timer and closes all subscriber channels.
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

func (s *Sink) broadcastLocked(ev Event) {
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
