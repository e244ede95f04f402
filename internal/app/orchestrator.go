package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/faredesk/internal/domain"
	"github.com/pscheid92/faredesk/internal/metrics"
	"github.com/pscheid92/faredesk/internal/platform/correlation"
	"github.com/pscheid92/faredesk/internal/tasks"
)

const (
	DefaultTaskTimeout  = 30 * time.Minute
	DefaultPollInterval = 30 * time.Second

	pollCallTimeout = 20 * time.Second
)

var activeOperationStatuses = map[string]struct{}{
	"running":     {},
	"processing":  {},
	"pending":     {},
	"in_progress": {},
	"active":      {},
	"queued":      {},
}

var taskLabels = map[domain.TaskType]string{
	domain.TaskRegister:       "Route registration",
	domain.TaskSettlement:     "Settlement",
	domain.TaskMockSettlement: "Mock settlement",
	domain.TaskNetworkRebuild: "Network rebuild",
}

type OrchestratorConfig struct {
	TaskTimeout  time.Duration
	PollInterval time.Duration
}

// Orchestrator runs long server-side operations to completion. When the
// execute call dies before the server answers, it switches to polling the
// status endpoint, and it recovers that polling from the durable mirror after
// a runtime reload. It is the only writer of the current-task slot and of the
// mirror.
type Orchestrator struct {
	backend  domain.TaskBackend
	store    *tasks.Store
	mirror   *tasks.Mirror
	notifier domain.Notifier
	monitors *MonitorRegistry
	clock    clockwork.Clock
	timeout  time.Duration

	root   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

func NewOrchestrator(ctx context.Context, backend domain.TaskBackend, store *tasks.Store, mirror *tasks.Mirror, notifier domain.Notifier, clock clockwork.Clock, cfg OrchestratorConfig) *Orchestrator {
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = DefaultTaskTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	root, cancel := context.WithCancel(ctx)
	return &Orchestrator{
		backend:  backend,
		store:    store,
		mirror:   mirror,
		notifier: notifier,
		monitors: NewMonitorRegistry(clock, cfg.PollInterval),
		clock:    clock,
		timeout:  cfg.TaskTimeout,
		root:     root,
		cancel:   cancel,
	}
}

// Run registers a pending task and dispatches the execute call in the
// background. It fails if another task is still pending or processing.
func (o *Orchestrator) Run(ctx context.Context, taskType domain.TaskType, payload json.RawMessage) (domain.BackgroundTask, error) {
	if !taskType.Valid() {
		return domain.BackgroundTask{}, fmt.Errorf("run %q: %w", taskType, domain.ErrUnknownTaskType)
	}

	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return domain.BackgroundTask{}, domain.ErrRuntimeStopped
	}
	if cur, ok := o.store.CurrentTask(); ok && cur.Status.Active() {
		o.mu.Unlock()
		return domain.BackgroundTask{}, fmt.Errorf("run %s while %s is active: %w", taskType, cur.ID, domain.ErrTaskInProgress)
	}

	task := domain.BackgroundTask{
		ID:        o.newTaskID(),
		Type:      taskType,
		Status:    domain.StatusPending,
		StartTime: o.clock.Now(),
		Message:   label(taskType) + " started",
		Data:      payload,
	}
	o.store.SetCurrentTask(task)
	o.wg.Add(1)
	o.mu.Unlock()

	ctx = correlation.WithTaskID(ctx, task.ID)
	// a marker left from an earlier task must not silence this one
	if _, err := o.mirror.ConsumeForceStopped(ctx); err != nil {
		slog.WarnContext(ctx, "Failed to clear force-stop marker", "error", err)
	}
	if err := o.mirror.Save(ctx, task); err != nil {
		slog.WarnContext(ctx, "Failed to mirror task", "error", err)
	}

	metrics.TasksStartedTotal.WithLabelValues(string(taskType)).Inc()
	slog.InfoContext(ctx, "Task dispatched", "task_type", taskType)

	go o.dispatch(task)
	return task, nil
}

func (o *Orchestrator) dispatch(task domain.BackgroundTask) {
	defer o.wg.Done()

	ctx := correlation.WithTaskID(correlation.WithID(o.root, correlation.NewID()), task.ID)
	callCtx, cancel := o.withTimeout(ctx, o.timeout)
	res := o.backend.Execute(callCtx, task.Type, task.Data)
	cancel()

	switch res.Kind {
	case domain.ExecuteSucceeded:
		o.complete(ctx, task, o.consumeForceStop(ctx))

	case domain.ExecuteFailed:
		o.consumeForceStop(ctx)
		if res.Cancelled {
			o.finish(ctx, task.ID, func() { o.store.ClearCurrentTask() })
			metrics.TaskOutcomesTotal.WithLabelValues(string(task.Type), "cancelled").Inc()
			slog.InfoContext(ctx, "Task cancelled by operator", "code", res.Code, "message", res.Message)
			return
		}
		o.finish(ctx, task.ID, func() { o.store.UpdateTaskStatus(domain.StatusError, res.Message) })
		metrics.TaskOutcomesTotal.WithLabelValues(string(task.Type), "error").Inc()
		slog.WarnContext(ctx, "Task failed", "code", res.Code, "message", res.Message)
		o.notifier.Notify(fmt.Sprintf("%s failed: %s", label(task.Type), res.Message), domain.NotifyError, 0)

	case domain.ExecuteContextDestroyed:
		o.handOff(ctx, task, res.Message)
	}
}

// handOff moves a task whose execute call died into processing and starts
// polling for it. If the runtime itself is going away the mirror keeps the
// processing record and the next runtime resumes polling.
func (o *Orchestrator) handOff(ctx context.Context, task domain.BackgroundTask, reason string) {
	task.Status = domain.StatusProcessing
	task.Message = label(task.Type) + " is still running on the server"

	o.mu.Lock()
	if cur, ok := o.store.CurrentTask(); !ok || cur.ID != task.ID {
		o.mu.Unlock()
		return
	}
	o.store.UpdateTaskStatus(task.Status, task.Message)
	o.mu.Unlock()

	if err := o.mirror.Save(context.WithoutCancel(ctx), task); err != nil {
		slog.WarnContext(ctx, "Failed to mirror task", "error", err)
	}
	metrics.TaskOutcomesTotal.WithLabelValues(string(task.Type), "handed_off").Inc()
	slog.InfoContext(ctx, "Execute call ended early, polling for completion", "reason", reason)

	o.startMonitor(task)
}

// startMonitor begins polling for task unless the orchestrator has shut
// down. The stopped check and the start share o.mu with Shutdown, so a
// monitor is either refused or seen by Shutdown's StopAll.
func (o *Orchestrator) startMonitor(task domain.BackgroundTask) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		return
	}
	if !o.monitors.Start(task.ID, func() { o.poll(task) }) {
		slog.Debug("Monitor already running", "task_id", task.ID)
	}
}

func (o *Orchestrator) poll(task domain.BackgroundTask) {
	ctx := correlation.WithTaskID(correlation.WithID(o.root, correlation.NewID()), task.ID)
	callCtx, cancel := o.withTimeout(ctx, pollCallTimeout)
	ops, err := o.backend.Status(callCtx, task.Type)
	cancel()

	if err != nil {
		metrics.TaskPollsTotal.WithLabelValues("error").Inc()
		slog.DebugContext(ctx, "Status poll failed, will retry", "error", err)
		return
	}

	if stillRunning(ops, task) {
		metrics.TaskPollsTotal.WithLabelValues("active").Inc()
		o.mu.Lock()
		if cur, ok := o.store.CurrentTask(); ok && cur.ID == task.ID {
			o.store.UpdateTaskStatus(domain.StatusProcessing,
				fmt.Sprintf("%s is still running (checked %s)", label(task.Type), o.clock.Now().Format(time.TimeOnly)))
		}
		o.mu.Unlock()
		return
	}

	metrics.TaskPollsTotal.WithLabelValues("finished").Inc()
	o.monitors.Stop(task.ID)

	o.complete(ctx, task, o.consumeForceStop(ctx))
}

// consumeForceStop reads and removes the operator's force-stop marker. Every
// terminal path calls it so the marker never outlives its task.
func (o *Orchestrator) consumeForceStop(ctx context.Context) bool {
	forced, err := o.mirror.ConsumeForceStopped(context.WithoutCancel(ctx))
	if err != nil {
		slog.WarnContext(ctx, "Failed to read force-stop marker", "error", err)
	}
	return forced
}

// complete clears a finished task and announces it, unless an operator
// stopped it on purpose.
func (o *Orchestrator) complete(ctx context.Context, task domain.BackgroundTask, forced bool) {
	o.finish(ctx, task.ID, func() { o.store.ClearCurrentTask() })

	if forced {
		metrics.TaskOutcomesTotal.WithLabelValues(string(task.Type), "cancelled").Inc()
		slog.InfoContext(ctx, "Task ended after force stop")
		return
	}
	metrics.TaskOutcomesTotal.WithLabelValues(string(task.Type), "success").Inc()
	slog.InfoContext(ctx, "Task completed")
	o.notifier.Notify(label(task.Type)+" completed", domain.NotifySuccess, 0)
}

// finish applies mutate if id is still the current task and drops the mirror.
func (o *Orchestrator) finish(ctx context.Context, id string, mutate func()) {
	o.mu.Lock()
	if cur, ok := o.store.CurrentTask(); ok && cur.ID == id {
		mutate()
	}
	o.mu.Unlock()

	if err := o.mirror.Clear(context.WithoutCancel(ctx)); err != nil {
		slog.WarnContext(ctx, "Failed to clear task mirror", "error", err)
	}
}

// Initialize restores an unfinished task from the durable mirror and resumes
// polling for it. Finished or unreadable records are discarded.
func (o *Orchestrator) Initialize(ctx context.Context) error {
	task, found, err := o.mirror.Load(ctx)
	if !found {
		return err
	}
	if err != nil {
		slog.WarnContext(ctx, "Discarding unreadable task record", "error", err)
		return o.mirror.Clear(ctx)
	}
	if !task.Status.Active() {
		slog.InfoContext(ctx, "Discarding finished task record", "task_id", task.ID, "status", task.Status)
		return o.mirror.Clear(ctx)
	}

	o.mu.Lock()
	if cur, ok := o.store.CurrentTask(); ok && cur.Status.Active() {
		o.mu.Unlock()
		return nil
	}
	o.store.SetCurrentTask(task)
	o.mu.Unlock()

	slog.InfoContext(correlation.WithTaskID(ctx, task.ID), "Recovered unfinished task", "task_type", task.Type, "status", task.Status)
	o.startMonitor(task)
	return nil
}

// ForceStop records that an operator stopped the running operation, so its
// eventual disappearance from the status report is not announced as success.
func (o *Orchestrator) ForceStop(ctx context.Context) error {
	if err := o.mirror.MarkForceStopped(ctx); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Force stop recorded")
	return nil
}

// StopMonitor ends polling for id. Unknown ids are ignored.
func (o *Orchestrator) StopMonitor(id string) {
	o.monitors.Stop(id)
}

// StopAll ends every poll loop. The current task and its mirror stay as they
// are so a later Initialize can pick polling up again.
func (o *Orchestrator) StopAll() {
	o.monitors.StopAll()
}

func (o *Orchestrator) MonitorActive(id string) bool {
	return o.monitors.Active(id)
}

func (o *Orchestrator) MonitorCount() int {
	return o.monitors.Count()
}

// Shutdown stops polling, aborts in-flight execute calls and waits for their
// goroutines to record the hand-off.
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	o.stopped = true
	o.mu.Unlock()

	o.cancel()
	o.monitors.StopAll()
	o.wg.Wait()
}

// withTimeout is context.WithTimeout on the orchestrator's clock.
func (o *Orchestrator) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	t := o.clock.AfterFunc(d, cancel)
	return ctx, func() {
		t.Stop()
		cancel()
	}
}

func (o *Orchestrator) newTaskID() string {
	u := uuid.New()
	return fmt.Sprintf("task-%d-%x", o.clock.Now().UnixMilli(), u[:3])
}

func stillRunning(ops []domain.ActiveOperation, task domain.BackgroundTask) bool {
	for _, op := range ops {
		if _, ok := activeOperationStatuses[strings.ToLower(op.Status)]; !ok {
			continue
		}
		if op.ID == task.ID || op.Type == "" || op.Type == task.Type {
			return true
		}
	}
	return false
}

func label(t domain.TaskType) string {
	if l, ok := taskLabels[t]; ok {
		return l
	}
	return string(t)
}
