package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusRecorder exports query metrics to Prometheus.
type PrometheusRecorder struct {
	queriesTotal  *prometheus.CounterVec
	messagesTotal prometheus.Counter
	webhooksTotal prometheus.Counter
	errorsTotal   prometheus.Counter
	queryDuration *prometheus.HistogramVec
}

// NewPrometheusRecorder creates a recorder registered on the default
// registry. Call at most once per process.
func NewPrometheusRecorder() *PrometheusRecorder {
	return &PrometheusRecorder{
		queriesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_queries_total",
				Help: "Total number of completed queries by status",
			},
			[]string{"status"},
		),
		messagesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "relay_agent_messages_total",
				Help: "Total number of agent messages received",
			},
		),
		webhooksTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "relay_webhook_calls_total",
				Help: "Total number of webhook deliveries attempted",
			},
		),
		errorsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "relay_query_errors_total",
				Help: "Total number of errors recorded during queries",
			},
		),
		queryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relay_query_duration_seconds",
				Help:    "Duration of completed queries in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"status"},
		),
	}
}

// ObserveQuery records metrics for one completed query.
func (p *PrometheusRecorder) ObserveQuery(status string, messages, webhooks, errs int, durationSeconds float64) {
	p.queriesTotal.WithLabelValues(status).Inc()
	p.messagesTotal.Add(float64(messages))
	p.webhooksTotal.Add(float64(webhooks))
	p.errorsTotal.Add(float64(errs))
	p.queryDuration.WithLabelValues(status).Observe(durationSeconds)
}
