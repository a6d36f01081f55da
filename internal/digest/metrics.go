package digest

import "github.com/prometheus/client_golang/prometheus"

// Metrics tracks digest cycle activity. Counters are registered by the
// host through the service metrics collector; a nil Metrics disables
// collection.
type Metrics struct {
	CyclesTotal      *prometheus.CounterVec
	ItemsAnalyzed    prometheus.Counter
	DispatchFailures prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		CyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulse_digest_cycles_total",
				Help: "Digest cycles by outcome",
			},
			[]string{"outcome"},
		),
		ItemsAnalyzed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pulse_digest_items_analyzed_total",
				Help: "Candidates run through actionability analysis",
			},
		),
		DispatchFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pulse_digest_dispatch_failures_total",
				Help: "Digest dispatch attempts that failed",
			},
		),
	}
}

func (m *Metrics) cycle(outcome string) {
	if m == nil {
		return
	}
	m.CyclesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) analyzed() {
	if m == nil {
		return
	}
	m.ItemsAnalyzed.Inc()
}

func (m *Metrics) dispatchFailed() {
	if m == nil {
		return
	}
	m.DispatchFailures.Inc()
}
