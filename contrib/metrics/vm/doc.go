// Package vm provides a VictoriaMetrics-based implementation of the MetricsCollector interface.
//
// This package uses github.com/VictoriaMetrics/metrics for lightweight,
// high-performance Prometheus-compatible metrics collection.
//
// # Basic Usage
//
// Create a collector with default prefix "vigil":
//
//	collector := vm.New()
//	client, _ := vigil.NewHAClient(discovery,
//	    vigil.WithMetrics(collector),
//	)
//
// Pass the same collector to the discovery engine to record sentinel
// health and back-off delays:
//
//	discovery, _ := vigil.NewDiscovery("mymaster",
//	    vigil.WithDiscoveryMetrics(collector),
//	)
//
// # Custom Prefix
//
// Use WithPrefix to customize the metric name prefix:
//
//	collector := vm.New(vm.WithPrefix("myapp"))
//
// This produces metrics like:
//   - myapp_discovery_total{replica_set="mymaster"}
//   - myapp_command_duration_seconds{replica_set="mymaster"}
//
// # Exposing Metrics
//
// Use the Handler method to expose metrics via HTTP:
//
//	http.HandleFunc("/metrics", collector.Handler)
//	http.ListenAndServe(":8080", nil)
//
// Or use WritePrometheus to write metrics to a custom writer:
//
//	collector.WritePrometheus(w)
//
// # Metrics Provided
//
// Discovery:
//   - {prefix}_discovery_total{replica_set} - Counter of discoveries
//   - {prefix}_discovery_errors_total{replica_set} - Counter of failed discoveries
//   - {prefix}_discovery_duration_seconds{replica_set} - Histogram of discovery latencies
//   - {prefix}_sentinel_errors_total{replica_set,sentinel} - Counter of skipped sentinels
//   - {prefix}_backoff_delay_seconds{replica_set} - Histogram of back-off delays
//
// Failover:
//   - {prefix}_failover_total{replica_set,reason} - Counter of trusted node changes
//
// Commands:
//   - {prefix}_command_total{replica_set} - Counter of proxied commands
//   - {prefix}_command_errors_total{replica_set} - Counter of failed commands
//   - {prefix}_command_duration_seconds{replica_set} - Histogram of command latencies
//   - {prefix}_command_retries_total{replica_set,reason} - Counter of retried commands
//
// # Performance Notes
//
// Replica set and sentinel names are only known at runtime, so metrics are
// created on first use and cached by the underlying Set. Use
// WithReplicaSets to pre-create the per-replica-set series at
// initialization so they are exported as zero before the first event.
//
// The metrics are registered with a dedicated Set that is registered
// globally, allowing standard Prometheus scraping.
package vm
