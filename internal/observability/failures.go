// Package observability provides the failure-reporting sink and the
// Prometheus counters tracking upstream behaviour.
package observability

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// FailureSink accepts structured reports of external failures. Implementations
// must be safe for concurrent use.
type FailureSink interface {
	Record(ctx context.Context, event, reason string, fields map[string]any, level slog.Level)
}

// Metrics holds the Prometheus counters for upstream traffic.
type Metrics struct {
	UpstreamFailures *prometheus.CounterVec // labels: event
	CacheLookups     *prometheus.CounterVec // labels: namespace, result={hit,miss}
}

// NewMetrics creates the counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := newMetrics()
	reg.MustRegister(m.UpstreamFailures, m.CacheLookups)
	return m
}

// NewMetricsForTesting creates unregistered counters so parallel tests do not
// collide on the default registry.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		UpstreamFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "terradart",
			Name:      "upstream_failures_total",
			Help:      "External provider failures by event name.",
		}, []string{"event"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "terradart",
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by namespace and result.",
		}, []string{"namespace", "result"}),
	}
}

// ObserveCacheLookup counts one cache read for the given key namespace.
func (m *Metrics) ObserveCacheLookup(namespace string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(namespace, result).Inc()
}

// LogSink reports failures through slog and increments the failure counter.
type LogSink struct {
	logger  *slog.Logger
	metrics *Metrics
}

// NewLogSink creates a FailureSink backed by logger and metrics. A nil
// metrics disables counting.
func NewLogSink(logger *slog.Logger, metrics *Metrics) *LogSink {
	return &LogSink{logger: logger, metrics: metrics}
}

func (s *LogSink) Record(ctx context.Context, event, reason string, fields map[string]any, level slog.Level) {
	attrs := make([]slog.Attr, 0, len(fields)+2)
	attrs = append(attrs,
		slog.String("event", event),
		slog.String("reason", reason),
	)
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	s.logger.LogAttrs(ctx, level, "external failure", attrs...)

	if s.metrics != nil {
		s.metrics.UpstreamFailures.WithLabelValues(event).Inc()
	}
}

// Nop is a FailureSink that discards everything; handy in tests.
type Nop struct{}

func (Nop) Record(context.Context, string, string, map[string]any, slog.Level) {}
