package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	adaptermetrics "github.com/pscheid92/faredesk/internal/adapter/metrics"
	"github.com/pscheid92/faredesk/internal/adapter/memory"
	"github.com/pscheid92/faredesk/internal/app"
	"github.com/pscheid92/faredesk/internal/domain"
	"github.com/pscheid92/faredesk/internal/platform/config"
	"github.com/stretchr/testify/require"
)

type stubAuthority struct{}

func (stubAuthority) Create(context.Context) domain.Outcome[domain.CreateResult] {
	return domain.Ok(domain.CreateResult{SessionID: "S1", AgencyCode: "OPER_KR"})
}

func (stubAuthority) Fetch(context.Context, string) domain.Outcome[domain.FetchResult] {
	return domain.Ok(domain.FetchResult{AgencyCode: "OPER_KR"})
}

func (stubAuthority) Clear(context.Context, string) domain.Outcome[struct{}] {
	return domain.Ok(struct{}{})
}

// blockingBackend holds every execute call until the test ends.
type blockingBackend struct {
	release chan struct{}
}

func (b *blockingBackend) Execute(ctx context.Context, _ domain.TaskType, _ json.RawMessage) domain.ExecuteResult {
	select {
	case <-b.release:
		return domain.ExecuteResult{Kind: domain.ExecuteSucceeded}
	case <-ctx.Done():
		return domain.ExecuteResult{Kind: domain.ExecuteContextDestroyed, Message: ctx.Err().Error()}
	}
}

func (b *blockingBackend) Status(context.Context, domain.TaskType) ([]domain.ActiveOperation, error) {
	return nil, nil
}

type consoleHolder struct {
	current atomic.Pointer[app.Console]
}

func (h *consoleHolder) Current() *app.Console { return h.current.Load() }

type testEnv struct {
	srv     *Server
	holder  *consoleHolder
	console *app.Console
	durable *memory.Store
	clock   *clockwork.FakeClock
}

func newTestEnv(t *testing.T, checks ...HealthCheck) *testEnv {
	t.Helper()
	clock := clockwork.NewFakeClock()
	backend := &blockingBackend{release: make(chan struct{})}
	durable := memory.NewStore()

	console, err := app.NewConsole(context.Background(), app.ConsoleDeps{
		Authority:  stubAuthority{},
		NewBackend: func(domain.SessionSource) (domain.TaskBackend, error) { return backend, nil },
		Durable:    durable,
		Reloader:   domain.ReloaderFunc(func(string) {}),
		Clock:      clock,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		close(backend.release)
		console.Stop()
	})

	holder := &consoleHolder{}
	holder.current.Store(console)

	cfg := &config.Config{Port: "0", APIRateLimit: 1000, APIRateBurst: 1000}
	srv := NewServer(cfg, holder, adaptermetrics.NewRegistry(), checks, clock)
	return &testEnv{srv: srv, holder: holder, console: console, durable: durable, clock: clock}
}

func (e *testEnv) startSession(t *testing.T) {
	t.Helper()
	e.console.Start()
	require.Eventually(t, func() bool { return e.console.Session.SessionID() != "" }, time.Second, time.Millisecond)
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

