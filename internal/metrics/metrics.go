package metrics

import (
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "catalog_replication"

var (
	TablesListed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tables_listed_total",
		Help:      "Table identities listed from source and destination catalogs.",
	})
	TablesProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tables_processed_total",
		Help:      "Tables compared successfully.",
	})
	TablesBlocklisted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tables_blocklisted_total",
		Help:      "Tables skipped by the block-list.",
	})
	TablesFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tables_failed_total",
		Help:      "Tables whose comparison returned an error.",
	})
	Estimates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "table_estimates_total",
		Help:      "Table-level estimates by action.",
	}, []string{"action"})
	PartitionPlaceholders = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "partition_placeholders_total",
		Help:      "check-partition records emitted by table comparison.",
	})
	PreCopyRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "precopy_runs_total",
		Help:      "Partitioned table pre-copy runs by outcome.",
	}, []string{"status"})
	PartitionsResolved = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "partitions_resolved_total",
		Help:      "Partition placeholders resolved by action.",
	}, []string{"action"})
	MergedRecords = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "merged_records_total",
		Help:      "Records written to run results by merge.",
	})
)

// Init registers collectors; call once from main.
func Init() {
	prometheus.MustRegister(
		TablesListed, TablesProcessed, TablesBlocklisted, TablesFailed, Estimates,
		PartitionPlaceholders, PreCopyRuns, PartitionsResolved, MergedRecords,
	)
}

// Serve starts a /metrics server on the given addr (e.g., ":9090"). Non-blocking when run in goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}

// AddrFromEnv returns listen address from METRICS_ADDR or default ":9090".
func AddrFromEnv() string {
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		return v
	}
	return ":9090"
}
