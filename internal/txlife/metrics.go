package txlife

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records lifecycle activity per operation kind (the key prefix, e.g.
// "mint" for "mint:42"). A nil *Metrics is valid and records nothing.
type Metrics struct {
	submissions *prometheus.CounterVec
	settled     *prometheus.CounterVec
	inflight    *prometheus.GaugeVec
	latency     *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "giftvault_tx_submissions_total",
			Help: "Submission attempts by operation kind and outcome (accepted, rejected, busy).",
		}, []string{"kind", "outcome"}),
		settled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "giftvault_tx_settled_total",
			Help: "Tracked transactions that left the pending state, by kind and result.",
		}, []string{"kind", "result"}),
		inflight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "giftvault_tx_inflight",
			Help: "Operations currently submitting or pending, by kind.",
		}, []string{"kind"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "giftvault_tx_confirmation_seconds",
			Help:    "Time from acceptance to receipt for settled transactions.",
			Buckets: []float64{1, 2, 5, 10, 15, 30, 60, 120, 300},
		}, []string{"kind"}),
	}
	if reg != nil {
		reg.MustRegister(m.submissions, m.settled, m.inflight, m.latency)
	}
	return m
}

func kindOf(key string) string {
	kind, _, _ := strings.Cut(key, ":")
	if kind == "" {
		return "unknown"
	}
	return kind
}

func (m *Metrics) observeSubmission(key, outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(kindOf(key), outcome).Inc()
}

func (m *Metrics) observeSettled(key, result string, since time.Duration) {
	if m == nil {
		return
	}
	m.settled.WithLabelValues(kindOf(key), result).Inc()
	if since > 0 {
		m.latency.WithLabelValues(kindOf(key)).Observe(since.Seconds())
	}
}

func (m *Metrics) addInflight(key string, delta float64) {
	if m == nil {
		return
	}
	m.inflight.WithLabelValues(kindOf(key)).Add(delta)
}
