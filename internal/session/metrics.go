package session

import (
	"strings"
	"time"

	"github.com/pscheid92/faredesk/internal/domain"
	"github.com/pscheid92/faredesk/internal/metrics"
)

func observeCall(op string, kind domain.OutcomeKind, elapsed time.Duration) {
	metrics.SessionCallsTotal.WithLabelValues(op, kind.String()).Inc()
	metrics.SessionCallDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// reasonLabel keeps the hard reset metric bounded to the reason prefix.
func reasonLabel(reason string) string {
	if i := strings.IndexByte(reason, ':'); i >= 0 {
		return reason[:i]
	}
	return reason
}
