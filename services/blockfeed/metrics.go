package blockfeed

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusBlockFeedIndexed     prometheus.Counter
	prometheusBlockFeedDelivered   prometheus.Counter
	prometheusBlockFeedStale       prometheus.Counter
	prometheusBlockFeedUnconnected prometheus.Gauge
)

var (
	prometheusMetricsInitOnce sync.Once
)

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusBlockFeedIndexed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "utxodump",
			Subsystem: "blockfeed",
			Name:      "indexed",
			Help:      "Number of block headers indexed from the block files",
		},
	)

	prometheusBlockFeedDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "utxodump",
			Subsystem: "blockfeed",
			Name:      "delivered",
			Help:      "Number of blocks delivered in height order",
		},
	)

	prometheusBlockFeedStale = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "utxodump",
			Subsystem: "blockfeed",
			Name:      "stale",
			Help:      "Number of blocks skipped because they are not on the chain with the most work",
		},
	)

	prometheusBlockFeedUnconnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "utxodump",
			Subsystem: "blockfeed",
			Name:      "unconnected",
			Help:      "Number of indexed blocks that do not connect to a genesis block",
		},
	)
}
