package app

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pscheid92/faredesk/internal/domain"
)

type mockBackend struct {
	executeFn func(ctx context.Context, taskType domain.TaskType, payload json.RawMessage) domain.ExecuteResult
	statusFn  func(ctx context.Context, taskType domain.TaskType) ([]domain.ActiveOperation, error)

	executes atomic.Int32
	statuses atomic.Int32
}

func (m *mockBackend) Execute(ctx context.Context, taskType domain.TaskType, payload json.RawMessage) domain.ExecuteResult {
	m.executes.Add(1)
	if m.executeFn != nil {
		return m.executeFn(ctx, taskType, payload)
	}
	return domain.ExecuteResult{Kind: domain.ExecuteSucceeded}
}

func (m *mockBackend) Status(ctx context.Context, taskType domain.TaskType) ([]domain.ActiveOperation, error) {
	m.statuses.Add(1)
	if m.statusFn != nil {
		return m.statusFn(ctx, taskType)
	}
	return nil, nil
}

type sentNotification struct {
	message string
	kind    domain.NotificationKind
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) Notify(message string, kind domain.NotificationKind, _ time.Duration) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{message: message, kind: kind})
	return "n"
}

func (n *recordingNotifier) all() []sentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]sentNotification, len(n.sent))
	copy(out, n.sent)
	return out
}

func (n *recordingNotifier) count(kind domain.NotificationKind) int {
	c := 0
	for _, s := range n.all() {
		if s.kind == kind {
			c++
		}
	}
	return c
}
