package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pscheid92/faredesk/internal/metrics"
)

// MetricsTracer records query latency and failures, labelled by the
// statement's leading verb.
type MetricsTracer struct{}

var _ pgx.QueryTracer = (*MetricsTracer)(nil)

type queryStartKey struct{}

type queryStart struct {
	at   time.Time
	verb string
}

func (t *MetricsTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryStartKey{}, queryStart{at: time.Now(), verb: statementVerb(data.SQL)})
}

func (t *MetricsTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	qs, ok := ctx.Value(queryStartKey{}).(queryStart)
	if !ok {
		return
	}

	metrics.DBQueryDuration.WithLabelValues(qs.verb).Observe(time.Since(qs.at).Seconds())
	if data.Err != nil {
		metrics.DBErrorsTotal.WithLabelValues(qs.verb).Inc()
	}
}

// statementVerb keeps the label set small: the first keyword, upper-cased,
// or "unknown" for anything that does not start with a letter.
func statementVerb(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "unknown"
	}
	verb := strings.ToUpper(fields[0])
	for _, r := range verb {
		if r < 'A' || r > 'Z' {
			return "unknown"
		}
	}
	return verb
}
