package syncer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dmitrijs2005/splitsync/internal/client/models"
)

// Metrics counts sync activity. A nil *Metrics records nothing.
type Metrics struct {
	pushes       *prometheus.CounterVec
	applies      *prometheus.CounterVec
	passes       *prometheus.CounterVec
	passDuration prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		pushes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "splitsync",
			Subsystem: "client",
			Name:      "pushes_total",
			Help:      "Entities pushed to the server by type and outcome.",
		}, []string{"entity_type", "outcome"}),
		applies: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "splitsync",
			Subsystem: "client",
			Name:      "applies_total",
			Help:      "Server entities applied locally by type and outcome.",
		}, []string{"entity_type", "outcome"}),
		passes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "splitsync",
			Subsystem: "client",
			Name:      "passes_total",
			Help:      "Sync passes by result.",
		}, []string{"result"}),
		passDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "splitsync",
			Subsystem: "client",
			Name:      "pass_duration_seconds",
			Help:      "Duration of completed sync passes.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) push(t models.EntityType, outcome string) {
	if m == nil {
		return
	}
	m.pushes.WithLabelValues(string(t), outcome).Inc()
}

func (m *Metrics) apply(t models.EntityType, outcome string) {
	if m == nil {
		return
	}
	m.applies.WithLabelValues(string(t), outcome).Inc()
}

func (m *Metrics) pass(result string, seconds float64) {
	if m == nil {
		return
	}
	m.passes.WithLabelValues(result).Inc()
	if seconds > 0 {
		m.passDuration.Observe(seconds)
	}
}
