package dashboard

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/linnemanlabs/regwatch/internal/feed"
)

// Metrics holds Prometheus metrics for the dashboard controller.
type Metrics struct {
	AggregationsTotal   *prometheus.CounterVec
	AggregationDuration *prometheus.HistogramVec
	RefreshDropped      prometheus.Counter
	Items               *prometheus.GaugeVec
	Sources             prometheus.Gauge
	DiscoveriesTotal    *prometheus.CounterVec
	NotificationsTotal  *prometheus.CounterVec
}

// NewMetrics registers and returns dashboard metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AggregationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "regwatch_aggregations_total",
			Help: "Total aggregation passes by outcome.",
		}, []string{"outcome"}),
		AggregationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "regwatch_aggregation_duration_seconds",
			Help:    "Duration of aggregation passes in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms .. ~25s
		}, []string{"outcome"}),
		RefreshDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "regwatch_refresh_dropped_total",
			Help: "Refresh requests dropped because a pass was already in flight.",
		}),
		Items: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "regwatch_items",
			Help: "Items held from the last successful pass, by tier.",
		}, []string{"tier"}),
		Sources: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "regwatch_sources",
			Help: "Sources in the catalog.",
		}),
		DiscoveriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "regwatch_discoveries_total",
			Help: "Feed discovery attempts by outcome.",
		}, []string{"outcome"}),
		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "regwatch_critical_notifications_total",
			Help: "Critical item notifications by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.AggregationsTotal,
		m.AggregationDuration,
		m.RefreshDropped,
		m.Items,
		m.Sources,
		m.DiscoveriesTotal,
		m.NotificationsTotal,
	)

	return m
}

func (m *Metrics) observeItems(items []feed.Item) {
	if m == nil {
		return
	}
	st := feed.Summarize(items)
	m.Items.WithLabelValues(feed.TierCritical.String()).Set(float64(st.Critical))
	m.Items.WithLabelValues(feed.TierOpportunity.String()).Set(float64(st.Opportunity))
	m.Items.WithLabelValues(feed.TierFYI.String()).Set(float64(st.FYI))
}
