package research

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for research calls.
type Metrics struct {
	CallsTotal   *prometheus.CounterVec
	CallDuration prometheus.Histogram
}

// NewMetrics registers and returns research metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "regwatch_research_calls_total",
			Help: "Research assistant calls by outcome.",
		}, []string{"outcome"}),
		CallDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "regwatch_research_call_duration_seconds",
			Help:    "Duration of research provider calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8), // 0.5s .. ~64s
		}),
	}

	reg.MustRegister(m.CallsTotal, m.CallDuration)

	return m
}
