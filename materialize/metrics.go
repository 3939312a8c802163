package materialize

import "github.com/prometheus/client_golang/prometheus"

const (
	MetricRowsMaterialized    = "rows_materialized_total"
	MetricPartitionFailures   = "partition_failures_total"
	MetricPreppedKeysResolved = "prepped_keys_resolved_total"
)

var CounterRowsMaterialized = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "materializer",
		Name:      MetricRowsMaterialized,
		Help:      "Rows materialized into records across all partitions.",
	},
)

var CounterPartitionFailures = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "materializer",
		Name:      MetricPartitionFailures,
		Help:      "Partitions aborted by a fatal materialization error.",
	},
)

var CounterPreppedKeysResolved = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "materializer",
		Name:      MetricPreppedKeysResolved,
		Help:      "Keys read from reserved fields rather than generated.",
	},
)

func init() {
	prometheus.MustRegister(CounterRowsMaterialized)
	prometheus.MustRegister(CounterPartitionFailures)
	prometheus.MustRegister(CounterPreppedKeysResolved)
}
