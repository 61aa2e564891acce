package vm

import (
	"io"
	"net/http"
	"strings"

	"github.com/VictoriaMetrics/metrics"

	"github.com/arloliu/vigil/types"
)

// Option configures a Collector.
type Option func(*Collector)

// WithPrefix sets the metric name prefix.
//
// Default: "vigil"
//
// Parameters:
//   - prefix: The prefix to use for all metric names
//
// Returns:
//   - Option: A configuration option
func WithPrefix(prefix string) Option {
	return func(c *Collector) {
		c.prefix = prefix
	}
}

// WithReplicaSets pre-creates the per-replica-set series.
//
// Parameters:
//   - names: Replica set names monitored by the application
//
// Returns:
//   - Option: A configuration option
//
// Example:
//
//	collector := vm.New(vm.WithReplicaSets("sessions", "cache"))
func WithReplicaSets(names ...string) Option {
	return func(c *Collector) {
		c.replicaSets = append(c.replicaSets, names...)
	}
}

// WithMetricsSet sets the metrics set to use.
//
// If provided, the collector will register metrics with this set instead of
// creating a new one. The caller is responsible for exposing this set
// (e.g., via metrics.WritePrometheus or a custom handler).
//
// Parameters:
//   - set: The metrics set to use
//
// Returns:
//   - Option: A configuration option
func WithMetricsSet(set *metrics.Set) Option {
	return func(c *Collector) {
		c.set = set
	}
}

// Collector implements types.MetricsCollector using VictoriaMetrics.
//
// Thread-safe for concurrent use.
type Collector struct {
	set         *metrics.Set
	prefix      string
	replicaSets []string
}

// Compile-time assertion that Collector implements types.MetricsCollector.
var _ types.MetricsCollector = (*Collector)(nil)

// New creates a new VictoriaMetrics-based metrics collector.
//
// The collector creates its own metrics.Set and registers it globally.
//
// Parameters:
//   - opts: Configuration options (e.g., WithPrefix)
//
// Returns:
//   - *Collector: A new metrics collector ready for use
//
// Example:
//
//	collector := vm.New(vm.WithPrefix("myapp"))
//	client, _ := vigil.NewHAClient(discovery,
//	    vigil.WithMetrics(collector),
//	)
func New(opts ...Option) *Collector {
	c := &Collector{
		prefix: "vigil",
	}

	for _, opt := range opts {
		opt(c)
	}

	// If no set is provided, create a new one and register it globally.
	// If a set is provided, we assume the caller manages it.
	if c.set == nil {
		c.set = metrics.NewSet()
		metrics.RegisterSet(c.set)
	}

	for _, name := range c.replicaSets {
		c.initReplicaSet(name)
	}

	return c
}

// initReplicaSet pre-creates the series labelled only by replica set.
func (c *Collector) initReplicaSet(name string) {
	c.counter("discovery_total", name)
	c.counter("discovery_errors_total", name)
	c.histogram("discovery_duration_seconds", name)
	c.histogram("backoff_delay_seconds", name)
	c.counter("command_total", name)
	c.counter("command_errors_total", name)
	c.histogram("command_duration_seconds", name)
}

// Set returns the underlying metrics set.
func (c *Collector) Set() *metrics.Set {
	return c.set
}

// Handler returns an HTTP handler that exposes metrics in Prometheus format.
//
// Example:
//
//	http.HandleFunc("/metrics", collector.Handler)
func (c *Collector) Handler(w http.ResponseWriter, _ *http.Request) {
	c.set.WritePrometheus(w)
}

// WritePrometheus writes all metrics in Prometheus format to the given writer.
//
// Parameters:
//   - w: The writer to write metrics to
func (c *Collector) WritePrometheus(w io.Writer) {
	c.set.WritePrometheus(w)
}

// ----------------------
// Discovery
// ----------------------

// IncDiscoveryTotal increments the discovery counter.
func (c *Collector) IncDiscoveryTotal(replicaSet string) {
	c.counter("discovery_total", replicaSet).Inc()
}

// IncDiscoveryError increments the failed discovery counter.
func (c *Collector) IncDiscoveryError(replicaSet string) {
	c.counter("discovery_errors_total", replicaSet).Inc()
}

// ObserveDiscoveryDuration records a discovery duration in seconds.
func (c *Collector) ObserveDiscoveryDuration(replicaSet string, seconds float64) {
	c.histogram("discovery_duration_seconds", replicaSet).Update(seconds)
}

// IncSentinelError increments the skipped sentinel counter.
func (c *Collector) IncSentinelError(replicaSet, sentinel string) {
	c.counter("sentinel_errors_total", replicaSet, "sentinel", sentinel).Inc()
}

// ObserveBackoffDelay records a back-off delay in seconds.
func (c *Collector) ObserveBackoffDelay(replicaSet string, seconds float64) {
	c.histogram("backoff_delay_seconds", replicaSet).Update(seconds)
}

// ----------------------
// Failover
// ----------------------

// IncFailoverTotal increments the trusted node change counter.
func (c *Collector) IncFailoverTotal(replicaSet string, reason types.FailoverReason) {
	c.counter("failover_total", replicaSet, "reason", string(reason)).Inc()
}

// ----------------------
// Commands
// ----------------------

// IncCommandTotal increments the proxied command counter.
func (c *Collector) IncCommandTotal(replicaSet string) {
	c.counter("command_total", replicaSet).Inc()
}

// IncCommandError increments the failed command counter.
func (c *Collector) IncCommandError(replicaSet string) {
	c.counter("command_errors_total", replicaSet).Inc()
}

// ObserveCommandDuration records a command duration in seconds.
func (c *Collector) ObserveCommandDuration(replicaSet string, seconds float64) {
	c.histogram("command_duration_seconds", replicaSet).Update(seconds)
}

// IncCommandRetry increments the retried command counter.
func (c *Collector) IncCommandRetry(replicaSet string, reason types.FailoverReason) {
	c.counter("command_retries_total", replicaSet, "reason", string(reason)).Inc()
}

func (c *Collector) counter(name, replicaSet string, labels ...string) *metrics.Counter {
	return c.set.GetOrCreateCounter(c.metricName(name, replicaSet, labels...))
}

func (c *Collector) histogram(name, replicaSet string, labels ...string) *metrics.Histogram {
	return c.set.GetOrCreateHistogram(c.metricName(name, replicaSet, labels...))
}

// metricName builds `{prefix}_{name}{replica_set="...",k="v"}`; labels are
// key/value pairs.
func (c *Collector) metricName(name, replicaSet string, labels ...string) string {
	b := make([]byte, 0, len(c.prefix)+len(name)+len(replicaSet)+32)
	b = append(b, c.prefix...)
	b = append(b, '_')
	b = append(b, name...)
	b = append(b, `{replica_set=`...)
	b = appendLabelValue(b, replicaSet)
	for i := 0; i+1 < len(labels); i += 2 {
		b = append(b, ',')
		b = append(b, labels[i]...)
		b = append(b, '=')
		b = appendLabelValue(b, labels[i+1])
	}
	b = append(b, '}')

	return string(b)
}

var labelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

func appendLabelValue(b []byte, v string) []byte {
	b = append(b, '"')
	b = append(b, labelEscaper.Replace(v)...)

	return append(b, '"')
}
