package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pscheid92/faredesk/internal/domain"
)

type mockAuthority struct {
	createFn func(ctx context.Context) domain.Outcome[domain.CreateResult]
	fetchFn  func(ctx context.Context, sessionID string) domain.Outcome[domain.FetchResult]
	clearFn  func(ctx context.Context, sessionID string) domain.Outcome[struct{}]

	creates atomic.Int32
	fetches atomic.Int32
	clears  atomic.Int32

	mu        sync.Mutex
	clearedID string
}

func (m *mockAuthority) Create(ctx context.Context) domain.Outcome[domain.CreateResult] {
	m.creates.Add(1)
	if m.createFn != nil {
		return m.createFn(ctx)
	}
	return domain.Ok(domain.CreateResult{SessionID: "S1", AgencyCode: "OPER_KR"})
}

func (m *mockAuthority) Fetch(ctx context.Context, sessionID string) domain.Outcome[domain.FetchResult] {
	m.fetches.Add(1)
	if m.fetchFn != nil {
		return m.fetchFn(ctx, sessionID)
	}
	return domain.Ok(domain.FetchResult{})
}

func (m *mockAuthority) Clear(ctx context.Context, sessionID string) domain.Outcome[struct{}] {
	m.clears.Add(1)
	m.mu.Lock()
	m.clearedID = sessionID
	m.mu.Unlock()
	if m.clearFn != nil {
		return m.clearFn(ctx, sessionID)
	}
	return domain.Ok(struct{}{})
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

func (n *recordingNotifier) count(kind domain.NotificationKind) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, s := range n.sent {
		if s.kind == kind {
			c++
		}
	}
	return c
}

type countingReloader struct {
	calls atomic.Int32
}

func (r *countingReloader) Reload(string) { r.calls.Add(1) }
