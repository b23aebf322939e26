package replay

import (
	"sync"

	"github.com/bsv-blockchain/utxodump/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusReplayBlocks             prometheus.Counter
	prometheusReplayTransactions       prometheus.Counter
	prometheusReplayInputs             prometheus.Counter
	prometheusReplayOutputs            prometheus.Counter
	prometheusReplayDuplicateCoinbases prometheus.Counter
	prometheusReplaySetSize            prometheus.Gauge
	prometheusReplayHeight             prometheus.Gauge
	prometheusReplayApplyBlock         prometheus.Histogram
)

var (
	prometheusMetricsInitOnce sync.Once
)

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusReplayBlocks = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "utxodump",
			Subsystem: "replay",
			Name:      "blocks",
			Help:      "Number of blocks applied to the utxo set",
		},
	)

	prometheusReplayTransactions = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "utxodump",
			Subsystem: "replay",
			Name:      "transactions",
			Help:      "Number of transactions applied to the utxo set",
		},
	)

	prometheusReplayInputs = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "utxodump",
			Subsystem: "replay",
			Name:      "inputs",
			Help:      "Number of transaction inputs processed",
		},
	)

	prometheusReplayOutputs = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "utxodump",
			Subsystem: "replay",
			Name:      "outputs",
			Help:      "Number of transaction outputs processed",
		},
	)

	prometheusReplayDuplicateCoinbases = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "utxodump",
			Subsystem: "replay",
			Name:      "duplicate_coinbases",
			Help:      "Number of coinbase outputs that replaced an older coinbase output",
		},
	)

	prometheusReplaySetSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "utxodump",
			Subsystem: "replay",
			Name:      "set_size",
			Help:      "Number of live entries in the utxo set",
		},
	)

	prometheusReplayHeight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "utxodump",
			Subsystem: "replay",
			Name:      "height",
			Help:      "Height of the last applied block",
		},
	)

	prometheusReplayApplyBlock = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "utxodump",
			Subsystem: "replay",
			Name:      "apply_block",
			Help:      "Duration of applying a single block in milliseconds",
			Buckets:   util.MetricsBucketsMilliSeconds,
		},
	)
}
