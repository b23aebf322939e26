package export

import (
	"sync"

	"github.com/bsv-blockchain/utxodump/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusExportWritten  prometheus.Counter
	prometheusExportRetried  prometheus.Counter
	prometheusExportFailed   prometheus.Counter
	prometheusExportDuration prometheus.Histogram
)

var (
	prometheusMetricsInitOnce sync.Once
)

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusExportWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "utxodump",
			Subsystem: "export",
			Name:      "written",
			Help:      "Number of records written to the sink",
		},
	)

	prometheusExportRetried = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "utxodump",
			Subsystem: "export",
			Name:      "retried",
			Help:      "Number of record writes that were retried",
		},
	)

	prometheusExportFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "utxodump",
			Subsystem: "export",
			Name:      "failed",
			Help:      "Number of records that could not be written after all retries",
		},
	)

	prometheusExportDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "utxodump",
			Subsystem: "export",
			Name:      "duration",
			Help:      "Duration of a full export in seconds",
			Buckets:   util.MetricsBucketsSeconds,
		},
	)
}
