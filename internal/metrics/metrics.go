// Package metrics holds the Prometheus metrics of the query languages.
// A nil *Metrics is valid and records nothing, so library users that do
// not export metrics can leave it out.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Search paths
const (
	PathStructured = "structured"
	PathFallback   = "fallback"
	PathFailed     = "failed"
)

// Olea outcomes
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Metrics contains the counters of one process
type Metrics struct {
	searchQueries  *prometheus.CounterVec
	searchDuration prometheus.Histogram
	oleaLines      *prometheus.CounterVec
}

// New registers the metrics with reg. Pass prometheus.DefaultRegisterer
// to expose them on the default handler.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		searchQueries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "iguana",
			Subsystem: "search",
			Name:      "queries_total",
			Help: `The cumulative number of search requests by the path that answered them.

path is "structured" for queries in the query language, "fallback" when the
input was answered by full-text search and "failed" when neither worked.`,
		}, []string{"path"}),
		searchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "iguana",
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      `Time to compile, execute and filter one search request.`,
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
		oleaLines: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "iguana",
			Subsystem: "olea",
			Name:      "lines_total",
			Help: `The cumulative number of quick-add lines.

mode is "create" or "update". outcome is "rejected" for lines that do not
parse and "failed" for lines the repository refused.`,
		}, []string{"mode", "outcome"}),
	}
}

// SearchServed counts a search request answered by path
func (m *Metrics) SearchServed(path string, took time.Duration) {
	if m == nil {
		return
	}
	m.searchQueries.WithLabelValues(path).Inc()
	m.searchDuration.Observe(took.Seconds())
}

// OleaLine counts a quick-add line
func (m *Metrics) OleaLine(mode, outcome string) {
	if m == nil {
		return
	}
	m.oleaLines.WithLabelValues(mode, outcome).Inc()
}
