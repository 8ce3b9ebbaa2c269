package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "longvideo_operations_total",
		Help: "Total number of finished operations, by kind and terminal status",
	}, []string{"kind", "status"})

	SegmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "longvideo_segments_total",
		Help: "Total number of segments attempted, by result",
	}, []string{"result"})

	SegmentStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "longvideo_segment_stage_seconds",
		Help:    "Duration of each stage of a segment generation",
		Buckets: []float64{0.1, 1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	ActiveOperations = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "longvideo_active_operations",
		Help: "Number of operations currently being orchestrated",
	})

	// SQLQueryDuration is labelled by the query's --sql marker, which keeps
	// cardinality bounded by the number of inline queries.
	SQLQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "longvideo_sql_query_seconds",
		Help:    "Duration of archive and credential queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"marker", "method", "result"})
)

// Handler exposes the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
