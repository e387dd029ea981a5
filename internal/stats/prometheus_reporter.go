package stats

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusReporter is the default Reporter, backed by
// github.com/prometheus/client_golang — wired in per SPEC_FULL.md §10 so
// the "statistics reporter is an external collaborator" boundary is
// satisfied by a real metrics library instead of a hand-rolled one.
type PrometheusReporter struct {
	duration *prometheus.HistogramVec
	messages *prometheus.CounterVec
	bytes    *prometheus.CounterVec
}

// NewPrometheusReporter builds a Reporter and registers its collectors
// against reg. Passing a fresh prometheus.NewRegistry() is recommended in
// tests to avoid collisions with the default global registry.
func NewPrometheusReporter(reg prometheus.Registerer) *PrometheusReporter {
	r := &PrometheusReporter{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fieldmux",
			Name:      "action_duration_seconds",
			Help:      "Wall time spent in one action's executeImpl call.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fieldmux",
			Name:      "action_messages_total",
			Help:      "Messages processed by an action.",
		}, []string{"action"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fieldmux",
			Name:      "action_bytes_total",
			Help:      "Payload bytes processed by an action.",
		}, []string{"action"}),
	}
	reg.MustRegister(r.duration, r.messages, r.bytes)
	return r
}

func (r *PrometheusReporter) ObserveDuration(action string, d time.Duration) {
	r.duration.WithLabelValues(action).Observe(d.Seconds())
}

func (r *PrometheusReporter) IncMessages(action string) {
	r.messages.WithLabelValues(action).Inc()
}

func (r *PrometheusReporter) AddBytes(action string, n int) {
	r.bytes.WithLabelValues(action).Add(float64(n))
}
