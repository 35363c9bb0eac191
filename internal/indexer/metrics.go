package indexer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the indexer's prometheus instruments.
type Metrics struct {
	rebuildsTotal   *prometheus.CounterVec
	rebuildDuration prometheus.Histogram
	rebuildChunks   prometheus.Histogram
	purgesTotal     prometheus.Counter
}

// Rebuild outcomes used as the "outcome" label value.
const (
	outcomeSuccess = "success"
	outcomeFailed  = "failed"
	outcomeStale   = "stale"
)

// NewMetrics registers the indexer metrics on reg. A nil reg registers on
// the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		rebuildsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lessond_index_rebuilds_total",
			Help: "Index rebuilds by outcome (success, failed, stale).",
		}, []string{"outcome"}),
		rebuildDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "lessond_index_rebuild_duration_seconds",
			Help:    "Wall-clock duration of index rebuilds, dominated by sequential embedding calls.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		rebuildChunks: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "lessond_index_rebuild_chunks",
			Help:    "Chunks produced per index rebuild.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		purgesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "lessond_index_purges_total",
			Help: "Index purges triggered by document delete or unpublish.",
		}),
	}
}

func (m *Metrics) observeRebuild(outcome string, chunks int, duration time.Duration) {
	if m == nil {
		return
	}
	m.rebuildsTotal.WithLabelValues(outcome).Inc()
	m.rebuildDuration.Observe(duration.Seconds())
	if outcome == outcomeSuccess {
		m.rebuildChunks.Observe(float64(chunks))
	}
}

func (m *Metrics) observePurge() {
	if m == nil {
		return
	}
	m.purgesTotal.Inc()
}
