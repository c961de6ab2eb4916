package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "quote_sync"

// Metrics holds the Prometheus collectors recorded by the application services.
type Metrics struct {
	syncRuns       *prometheus.CounterVec
	syncQuotes     *prometheus.CounterVec
	syncDuration   prometheus.Histogram
	quotesAdded    prometheus.Counter
	quotesImported prometheus.Counter
}

// NewMetrics registers the application collectors with reg.
// Pass prometheus.DefaultRegisterer to expose them on /-/metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		syncRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Sync passes by outcome (changed, unchanged, failed).",
		}, []string{"outcome"}),
		syncQuotes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "sync",
			Name:      "quotes_total",
			Help:      "Quotes changed by sync passes, by kind (added, updated).",
		}, []string{"kind"}),
		syncDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "sync",
			Name:      "duration_seconds",
			Help:      "Duration of sync passes.",
			Buckets:   prometheus.DefBuckets,
		}),
		quotesAdded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "quotes_added_total",
			Help:      "Quotes submitted by users.",
		}),
		quotesImported: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "quotes_imported_total",
			Help:      "Quotes added or updated by imports.",
		}),
	}
}

func (m *Metrics) observeSync(outcome string, seconds float64, added, updated int) {
	m.syncRuns.WithLabelValues(outcome).Inc()
	m.syncDuration.Observe(seconds)
	m.syncQuotes.WithLabelValues("added").Add(float64(added))
	m.syncQuotes.WithLabelValues("updated").Add(float64(updated))
}
