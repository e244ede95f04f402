package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/pscheid92/faredesk/internal/app"
	"github.com/pscheid92/faredesk/internal/domain"
	"github.com/pscheid92/faredesk/internal/metrics"
	"github.com/pscheid92/faredesk/internal/platform/correlation"
)

// consoleRuntime owns the live Console and swaps it for a fresh one whenever
// a session manager asks for a hard reload. Readers see nil while a swap is
// in progress.
type consoleRuntime struct {
	deps       app.ConsoleDeps
	newConsole func(context.Context, app.ConsoleDeps) (*app.Console, error)
	current    atomic.Pointer[app.Console]
	reloads    chan string

	mu sync.Mutex // serializes start and stop
}

func newConsoleRuntime(deps app.ConsoleDeps) *consoleRuntime {
	rt := &consoleRuntime{
		deps:       deps,
		newConsole: app.NewConsole,
		reloads:    make(chan string, 1),
	}
	rt.deps.Reloader = domain.ReloaderFunc(rt.Reload)
	return rt
}

// Current implements httpserver.ConsoleProvider.
func (rt *consoleRuntime) Current() *app.Console {
	return rt.current.Load()
}

// Reload queues a rebuild. Requests arriving while one is already queued
// collapse into it.
func (rt *consoleRuntime) Reload(reason string) {
	select {
	case rt.reloads <- reason:
	default:
	}
}

func (rt *consoleRuntime) start(ctx context.Context) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	console, err := rt.newConsole(ctx, rt.deps)
	if err != nil {
		return fmt.Errorf("build console: %w", err)
	}
	console.Start()
	rt.current.Store(console)
	return nil
}

func (rt *consoleRuntime) stop() {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if console := rt.current.Swap(nil); console != nil {
		console.Stop()
	}
}

// run processes reload requests until ctx is done. The returned channel is
// closed once the loop has exited.
func (rt *consoleRuntime) run(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case reason := <-rt.reloads:
				rt.reload(ctx, reason)
			}
		}
	}()
	return done
}

// reload rebuilds the console from ctx. The reload's correlation ID tags
// only the reload's own log lines; the new console must not inherit it.
func (rt *consoleRuntime) reload(ctx context.Context, reason string) {
	logCtx := correlation.WithID(ctx, correlation.NewID())
	slog.WarnContext(logCtx, "Reloading console runtime", "reason", reason)

	rt.stop()
	metrics.RuntimeReloadsTotal.Inc()

	if err := rt.start(ctx); err != nil {
		slog.ErrorContext(logCtx, "Console runtime rebuild failed", "error", err)
		return
	}
	slog.InfoContext(logCtx, "Console runtime rebuilt")
}
