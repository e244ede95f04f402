package app

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/faredesk/internal/metrics"
	"github.com/pscheid92/faredesk/internal/platform/timer"
)

// MonitorRegistry keeps at most one poll loop per task id.
type MonitorRegistry struct {
	clock  clockwork.Clock
	period time.Duration

	mu     sync.Mutex
	active map[string]*timer.Interval
}

func NewMonitorRegistry(clock clockwork.Clock, period time.Duration) *MonitorRegistry {
	return &MonitorRegistry{
		clock:  clock,
		period: period,
		active: make(map[string]*timer.Interval),
	}
}

// Start begins polling fn for id every period. It returns false, leaving the
// existing loop alone, when id already has one.
func (r *MonitorRegistry) Start(id string, fn func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.active[id]; ok {
		return false
	}
	iv := timer.NewInterval(r.clock)
	iv.Start(r.period, fn)
	r.active[id] = iv
	metrics.ActiveMonitors.Inc()
	return true
}

// Stop ends the loop for id. Stopping an unknown id does nothing.
func (r *MonitorRegistry) Stop(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if iv, ok := r.active[id]; ok {
		iv.Stop()
		delete(r.active, id)
		metrics.ActiveMonitors.Dec()
	}
}

func (r *MonitorRegistry) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, iv := range r.active {
		iv.Stop()
		delete(r.active, id)
		metrics.ActiveMonitors.Dec()
	}
}

func (r *MonitorRegistry) Active(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[id]
	return ok
}

func (r *MonitorRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}
