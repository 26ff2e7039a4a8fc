package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects the pipeline-level Prometheus metrics:
//   - webhook intake outcomes (how events leave the routing algorithm)
//   - classification labels as reported by the classifier service
//   - batch coalescing activity (flushes by trigger, batch sizes)
//   - orchestrator sessions and the MCP tool calls they accumulate
//
// All metrics are registered on the default registry and exposed at /metrics.
type Metrics struct {
	// WebhookEvents counts inbound webhook events by outcome.
	// Labels: outcome (challenge|ignored|no_user|no_links|enqueued|malformed)
	WebhookEvents *prometheus.CounterVec

	// Classifications counts classifier results by label.
	// Labels: label (DECISION|EXPLANATION|QUESTION|GENERAL_CONVERSATION|NONE)
	Classifications *prometheus.CounterVec

	// BatchFlushes counts batch flushes by trigger.
	// Labels: trigger (timer|forced)
	BatchFlushes *prometheus.CounterVec

	// BatchSize observes the number of messages per flushed batch.
	BatchSize prometheus.Histogram

	// SessionDuration observes orchestrator session wall time in seconds.
	SessionDuration prometheus.Histogram

	// ToolCalls counts unique MCP tool calls by server and result.
	// Labels: server_label, status (success|error)
	ToolCalls *prometheus.CounterVec

	// SinkWrites counts analysis-log writes by record kind and result.
	// Labels: kind (classification|analysis), status (ok|error)
	SinkWrites *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics on the default
// registry. Call once at startup.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry registers the metrics on a specific registry.
// Tests use this with a fresh registry per test.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		WebhookEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "infera_webhook_events_total",
				Help: "Inbound webhook events by outcome",
			},
			[]string{"outcome"},
		),
		Classifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "infera_classifications_total",
				Help: "Classifier results by label",
			},
			[]string{"label"},
		),
		BatchFlushes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "infera_batch_flushes_total",
				Help: "Batch flushes by trigger",
			},
			[]string{"trigger"},
		),
		BatchSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "infera_batch_size_messages",
				Help:    "Messages per flushed batch",
				Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34},
			},
		),
		SessionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "infera_orchestrator_session_seconds",
				Help:    "Orchestrator session duration in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
		),
		ToolCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "infera_tool_calls_total",
				Help: "Unique MCP tool calls by server and result",
			},
			[]string{"server_label", "status"},
		),
		SinkWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "infera_sink_writes_total",
				Help: "Analysis-log writes by record kind and result",
			},
			[]string{"kind", "status"},
		),
	}
}
