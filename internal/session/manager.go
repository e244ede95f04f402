// Package session owns the authority-issued session: acquiring it, renewing
// it before it lapses, tracking user activity, and escalating to a full
// runtime reload when the authority rejects the handle.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/faredesk/internal/domain"
	"github.com/pscheid92/faredesk/internal/metrics"
	"github.com/pscheid92/faredesk/internal/platform/correlation"
	"github.com/pscheid92/faredesk/internal/platform/timer"
)

type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitializing  State = "initializing"
	StateActive        State = "active"
	StateRefreshing    State = "refreshing"
	StateResetting     State = "resetting"
)

const (
	fallbackDisplayName = "Unverified agency"
	fallbackLevel       = "UNKNOWN"
	hardResetMessage    = "Session expired, reloading…"
)

// refresh triggers, used as metric labels
const (
	triggerTimer    = "timer"
	triggerWatchdog = "watchdog"
	triggerManual   = "manual"
)

// Manager is the session state machine. All methods are safe for concurrent
// use; authority calls are never made while holding the lock.
type Manager struct {
	authority domain.SessionAuthority
	notifier  domain.Notifier
	reloader  domain.Reloader
	clock     clockwork.Clock

	renewal  *timer.Slot
	retry    *timer.Slot
	reset    *timer.Slot
	watchdog *timer.Interval

	mu          sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	record      domain.SessionRecord
	state       State
	inFlight    bool
	initialized bool
	tracking    bool
	resetting   bool
	stopped     bool
	epoch       uint64 // bumped by Clear so in-flight responses from before it are dropped
	startOnce   sync.Once
}

func NewManager(authority domain.SessionAuthority, notifier domain.Notifier, reloader domain.Reloader, clock clockwork.Clock) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		authority: authority,
		notifier:  notifier,
		reloader:  reloader,
		clock:     clock,
		renewal:   timer.NewSlot(clock),
		retry:     timer.NewSlot(clock),
		reset:     timer.NewSlot(clock),
		watchdog:  timer.NewInterval(clock),
		ctx:       ctx,
		cancel:    cancel,
		state:     StateUninitialized,
	}
}

// Start binds the manager to ctx and runs the first Initialize. Subsequent
// calls do nothing.
func (m *Manager) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		m.mu.Lock()
		m.cancel()
		m.ctx, m.cancel = context.WithCancel(ctx)
		m.mu.Unlock()

		m.Initialize(ctx)
	})
}

// Stop cancels every session timer. A hard reset that is already pending is
// dropped as well; the caller is tearing the runtime down anyway.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.stopped = true
	m.cancel()
	m.mu.Unlock()

	m.cancelTimers()
	m.reset.Cancel()
}

// Initialize acquires a new session handle. It is a no-op while another
// initialize or refresh is in flight and once a session is established.
func (m *Manager) Initialize(ctx context.Context) {
	m.mu.Lock()
	if m.inFlight || m.initialized || m.resetting || m.stopped {
		m.mu.Unlock()
		return
	}
	m.inFlight = true
	m.state = StateInitializing
	epoch := m.epoch
	m.mu.Unlock()

	start := m.clock.Now()
	out := m.authority.Create(context.WithoutCancel(ctx))
	observeCall("create", out.Kind, m.clock.Since(start))

	m.mu.Lock()
	if epoch != m.epoch || m.stopped {
		m.mu.Unlock()
		return
	}
	m.inFlight = false

	switch out.Kind {
	case domain.OutcomeOK:
		m.record.SessionID = out.Value.SessionID
		m.applyAgencyLocked(out.Value.AgencyCode)
		m.record.IsActive = true
		m.record.LastActivity = m.clock.Now()
		m.initialized = true
		m.tracking = true
		m.state = StateActive
		m.scheduleRenewalLocked()
		agency := m.record.AgencyCode
		m.mu.Unlock()

		m.watchdog.Start(WatchdogPeriod, m.checkLiveness)
		slog.InfoContext(ctx, "Session established", "agency_code", agency)

	case domain.OutcomeAuthFailure:
		m.mu.Unlock()
		m.hardReset(ctx, "session create rejected: "+out.Message)

	default:
		m.state = StateUninitialized
		m.retry.Schedule(initRetryDelay, func() { m.Initialize(m.runContext()) })
		m.mu.Unlock()

		slog.WarnContext(ctx, "Session create failed, retrying", "error", out.Message, "retry_in", initRetryDelay)
	}
}

// Refresh renews the held session handle with the authority.
func (m *Manager) Refresh(ctx context.Context) {
	m.refresh(ctx, triggerManual)
}

func (m *Manager) refresh(ctx context.Context, trigger string) {
	m.mu.Lock()
	if m.inFlight || m.resetting || m.stopped {
		m.mu.Unlock()
		return
	}
	sessionID := m.record.SessionID
	if sessionID == "" {
		m.mu.Unlock()
		m.hardReset(ctx, "refresh without session handle")
		return
	}
	m.inFlight = true
	m.state = StateRefreshing
	epoch := m.epoch
	m.mu.Unlock()

	metrics.SessionRenewalsTotal.WithLabelValues(trigger).Inc()

	// Callers going away must not read as an authority failure; the
	// transport's own timeout bounds the call.
	start := m.clock.Now()
	out := m.authority.Fetch(context.WithoutCancel(ctx), sessionID)
	observeCall("fetch", out.Kind, m.clock.Since(start))

	m.mu.Lock()
	if epoch != m.epoch || m.stopped {
		m.mu.Unlock()
		return
	}
	m.inFlight = false

	switch out.Kind {
	case domain.OutcomeOK:
		m.applyAgencyLocked(out.Value.AgencyCode)
		m.record.IsActive = true
		m.record.LastActivity = m.clock.Now()
		m.state = StateActive
		m.scheduleRenewalLocked()
		m.mu.Unlock()

		slog.DebugContext(ctx, "Session renewed", "trigger", trigger)

	case domain.OutcomeAuthFailure:
		m.mu.Unlock()
		m.hardReset(ctx, "session fetch rejected: "+out.Message)

	default:
		m.record.IsActive = false
		m.initialized = false
		m.state = StateInitializing
		m.renewal.Cancel()
		m.retry.Schedule(reinitDelay, func() { m.Initialize(m.runContext()) })
		m.mu.Unlock()

		slog.WarnContext(ctx, "Session refresh failed, re-initializing", "error", out.Message, "retry_in", reinitDelay)
	}
}

// Clear resets the record and every timer, then tells the authority to drop
// the handle. The local reset happens regardless of the authority's answer,
// and a later Initialize starts from scratch.
func (m *Manager) Clear(ctx context.Context) {
	m.mu.Lock()
	sessionID := m.record.SessionID
	m.record = domain.SessionRecord{}
	m.epoch++
	m.inFlight = false
	m.initialized = false
	m.tracking = false
	if !m.resetting {
		m.state = StateUninitialized
	}
	m.mu.Unlock()

	m.cancelTimers()

	if sessionID == "" {
		return
	}
	start := m.clock.Now()
	out := m.authority.Clear(ctx, sessionID)
	observeCall("clear", out.Kind, m.clock.Since(start))
	if out.Kind != domain.OutcomeOK {
		slog.InfoContext(ctx, "Session clear not acknowledged", "outcome", out.Kind.String(), "error", out.Message)
	}
}

// RecordActivity marks user activity. It only moves LastActivity; renewal
// stays on its own schedule.
func (m *Manager) RecordActivity(signal domain.ActivitySignal) error {
	if !signal.Valid() {
		return domain.ErrUnknownSignal
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tracking {
		m.record.LastActivity = m.clock.Now()
	}
	return nil
}

// Record returns a copy of the current session record.
func (m *Manager) Record() domain.SessionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.record
	if rec.Agency != nil {
		a := *rec.Agency
		rec.Agency = &a
	}
	if rec.Permissions != nil {
		p := *rec.Permissions
		rec.Permissions = &p
	}
	return rec
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SessionID returns the held handle, or "" when none is held.
func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record.SessionID
}

func (m *Manager) CanAccess(f domain.Feature) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record.Permissions != nil && m.record.Permissions.Allows(f)
}

func (m *Manager) DisplayName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.record.Agency == nil {
		return fallbackDisplayName
	}
	return m.record.Agency.Name
}

func (m *Manager) AgencyLevel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.record.Agency == nil {
		return fallbackLevel
	}
	return string(m.record.Agency.Level)
}

// hardReset schedules the runtime reload. Only the first call per manager
// has any effect.
func (m *Manager) hardReset(ctx context.Context, reason string) {
	m.mu.Lock()
	if m.resetting || m.stopped {
		m.mu.Unlock()
		return
	}
	m.resetting = true
	m.state = StateResetting
	m.reset.Schedule(hardResetDelay, func() { m.reloader.Reload(reason) })
	m.mu.Unlock()

	m.cancelTimers()

	metrics.SessionHardResetsTotal.WithLabelValues(reasonLabel(reason)).Inc()
	slog.WarnContext(ctx, "Session rejected, scheduling reload", "reason", reason, "delay", hardResetDelay)
	m.notifier.Notify(hardResetMessage, domain.NotifyWarning, 0)
}

func (m *Manager) checkLiveness() {
	m.mu.Lock()
	stale := m.clock.Since(m.record.LastActivity) > SessionTTL
	ctx := m.ctx
	m.mu.Unlock()

	if stale {
		ctx = correlation.WithID(ctx, correlation.NewID())
		slog.InfoContext(ctx, "Session idle beyond TTL, forcing refresh")
		m.refresh(ctx, triggerWatchdog)
	}
}

func (m *Manager) scheduleRenewalLocked() {
	delay := renewalDelay(m.record.LastActivity, m.clock.Now(), SessionTTL, RefreshMargin)
	m.renewal.Schedule(delay, func() {
		ctx := correlation.WithID(m.runContext(), correlation.NewID())
		m.refresh(ctx, triggerTimer)
	})
}

// applyAgencyLocked sets the agency code together with its derived agency and
// permissions. An empty code leaves all three untouched.
func (m *Manager) applyAgencyLocked(code string) {
	if code == "" {
		return
	}
	m.record.AgencyCode = code
	m.record.Agency, m.record.Permissions = derive(code)
}

func (m *Manager) cancelTimers() {
	m.renewal.Cancel()
	m.retry.Cancel()
	m.watchdog.Stop()
}

func (m *Manager) runContext() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ctx
}
