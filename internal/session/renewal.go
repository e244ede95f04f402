package session

import "time"

const (
	SessionTTL     = 30 * time.Minute
	RefreshMargin  = 5 * time.Minute
	WatchdogPeriod = 5 * time.Minute

	initRetryDelay = 5 * time.Second
	reinitDelay    = 3 * time.Second
	hardResetDelay = 2 * time.Second
)

// renewalDelay returns how long to wait before renewing a session last active
// at lastActivity. The result is never negative, so a stale or skewed
// timestamp renews immediately instead of producing a runaway timer.
func renewalDelay(lastActivity, now time.Time, ttl, margin time.Duration) time.Duration {
	target := lastActivity.Add(ttl - margin)
	return max(target.Sub(now), 0)
}
