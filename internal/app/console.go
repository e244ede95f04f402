package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/faredesk/internal/domain"
	"github.com/pscheid92/faredesk/internal/notify"
	"github.com/pscheid92/faredesk/internal/session"
	"github.com/pscheid92/faredesk/internal/tasks"
)

// BackendFactory builds the task backend for a runtime; the backend reads
// its session handle from source.
type BackendFactory func(source domain.SessionSource) (domain.TaskBackend, error)

type ConsoleDeps struct {
	Authority    domain.SessionAuthority
	NewBackend   BackendFactory
	Durable      domain.DurableStore
	Reloader     domain.Reloader
	Clock        clockwork.Clock
	TaskTimeout  time.Duration
	PollInterval time.Duration
	HistoryLimit int
}

// Console is one instance of the console runtime.
type Console struct {
	Session       *session.Manager
	Tasks         *tasks.Store
	Notifications *notify.Sink
	Orchestrator  *Orchestrator

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
}

func NewConsole(ctx context.Context, deps ConsoleDeps) (*Console, error) {
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	ctx, cancel := context.WithCancel(ctx)
	sink := notify.NewSink(clock)
	manager := session.NewManager(deps.Authority, sink, deps.Reloader, clock)

	backend, err := deps.NewBackend(manager)
	if err != nil {
		cancel()
		sink.Close()
		return nil, fmt.Errorf("build task backend: %w", err)
	}

	store := tasks.NewStore(deps.HistoryLimit)
	orchestrator := NewOrchestrator(ctx, backend, store, tasks.NewMirror(deps.Durable), sink, clock, OrchestratorConfig{
		TaskTimeout:  deps.TaskTimeout,
		PollInterval: deps.PollInterval,
	})

	return &Console{
		Session:       manager,
		Tasks:         store,
		Notifications: sink,
		Orchestrator:  orchestrator,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

// Start recovers unfinished work and starts the session. A durable store
// failure is logged; the console still comes up without recovery.
func (c *Console) Start() {
	if err := c.Orchestrator.Initialize(c.ctx); err != nil {
		slog.ErrorContext(c.ctx, "Task recovery failed", "error", err)
	}
	go c.Session.Start(c.ctx)
}

// Stop tears the runtime down: timers, monitors, in-flight calls and
// notification subscribers.
func (c *Console) Stop() {
	c.stopOnce.Do(func() {
		c.Session.Stop()
		c.Orchestrator.Shutdown()
		c.Notifications.Close()
		c.cancel()
	})
}
