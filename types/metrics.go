package types

// MetricsCollector defines methods for collecting operational metrics.
//
// All methods accept the replica set name for labeling.
// Implementations should be thread-safe as methods may be called concurrently.
//
// Example usage with VictoriaMetrics (via contrib/metrics/vm):
//
//	import vmmetrics "github.com/arloliu/vigil/contrib/metrics/vm"
//
//	collector := vmmetrics.New(vmmetrics.WithPrefix("myapp"))
//	client, _ := vigil.NewHAClient(discovery,
//	    vigil.WithMetrics(collector),
//	)
//
//	// Expose metrics via HTTP
//	http.HandleFunc("/metrics", collector.Handler)
type MetricsCollector interface {
	// ----------------------
	// Discovery
	// ----------------------

	// IncDiscoveryTotal increments the discovery attempts counter.
	IncDiscoveryTotal(replicaSet string)

	// IncDiscoveryError increments the counter of failed discoveries.
	IncDiscoveryError(replicaSet string)

	// ObserveDiscoveryDuration records a discovery duration in seconds.
	ObserveDiscoveryDuration(replicaSet string, seconds float64)

	// IncSentinelError increments the counter of skipped sentinels.
	IncSentinelError(replicaSet, sentinel string)

	// ObserveBackoffDelay records a back-off delay in seconds.
	ObserveBackoffDelay(replicaSet string, seconds float64)

	// ----------------------
	// Failover
	// ----------------------

	// IncFailoverTotal increments the counter of trusted node changes.
	IncFailoverTotal(replicaSet string, reason FailoverReason)

	// ----------------------
	// Commands
	// ----------------------

	// IncCommandTotal increments the counter of commands sent through the proxy.
	IncCommandTotal(replicaSet string)

	// IncCommandError increments the counter of commands that failed.
	IncCommandError(replicaSet string)

	// ObserveCommandDuration records a command duration in seconds.
	ObserveCommandDuration(replicaSet string, seconds float64)

	// IncCommandRetry increments the counter of commands retried on a new node.
	IncCommandRetry(replicaSet string, reason FailoverReason)
}
