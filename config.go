package vigil

import (
	"github.com/arloliu/vigil/internal/logging"
	"github.com/arloliu/vigil/internal/metrics"
	"github.com/arloliu/vigil/policy"
	"github.com/arloliu/vigil/resp"
	"github.com/arloliu/vigil/types"
)

// DiscoveryConfig holds configuration for a Discovery.
type DiscoveryConfig struct {
	Backoff   BackoffStrategy
	Observer  BackoffObserver
	Sentinels []Node
	Metrics   MetricsCollector
	Logger    types.Logger
}

// DefaultDiscoveryConfig returns a DiscoveryConfig with sensible defaults.
//
// The default back-off makes a single pass over the sentinels.
//
// Returns:
//   - *DiscoveryConfig: Configuration with default settings
func DefaultDiscoveryConfig() *DiscoveryConfig {
	return &DiscoveryConfig{
		Backoff: policy.NewNoBackoff(),
		Metrics: metrics.NewNopMetrics(),
		Logger:  logging.NewNopLogger(),
	}
}

// DiscoveryOption configures a DiscoveryConfig.
type DiscoveryOption func(*DiscoveryConfig)

// WithBackoff sets the back-off strategy pacing discovery passes.
//
// Parameters:
//   - strategy: The back-off strategy (e.g., policy.IncrementalBackoff)
//
// Returns:
//   - DiscoveryOption: Configuration option
func WithBackoff(strategy BackoffStrategy) DiscoveryOption {
	return func(c *DiscoveryConfig) {
		c.Backoff = strategy
	}
}

// WithBackoffObserver sets a callback receiving every back-off delay.
//
// Parameters:
//   - observer: Called before each back-off sleep
//
// Returns:
//   - DiscoveryOption: Configuration option
func WithBackoffObserver(observer BackoffObserver) DiscoveryOption {
	return func(c *DiscoveryConfig) {
		c.Observer = observer
	}
}

// WithSentinels sets the initial, ordered sentinel list.
//
// Parameters:
//   - sentinels: Sentinel handles, probed in this order
//
// Returns:
//   - DiscoveryOption: Configuration option
func WithSentinels(sentinels ...Node) DiscoveryOption {
	return func(c *DiscoveryConfig) {
		c.Sentinels = append(c.Sentinels, sentinels...)
	}
}

// WithSentinelAddrs adds sentinels by address.
//
// Parameters:
//   - opts: Options for the sentinel connections
//   - nodeOpts: Options for the resolved master and slave connections
//   - addrs: Sentinel addresses, probed in this order
//
// Returns:
//   - DiscoveryOption: Configuration option
func WithSentinelAddrs(opts, nodeOpts resp.Options, addrs ...Address) DiscoveryOption {
	return func(c *DiscoveryConfig) {
		for _, addr := range addrs {
			c.Sentinels = append(c.Sentinels, NewSentinel(addr, opts, nodeOpts))
		}
	}
}

// WithDiscoveryMetrics sets the metrics collector for discovery.
//
// Parameters:
//   - collector: The metrics collector implementation
//
// Returns:
//   - DiscoveryOption: Configuration option
func WithDiscoveryMetrics(collector MetricsCollector) DiscoveryOption {
	return func(c *DiscoveryConfig) {
		c.Metrics = collector
	}
}

// WithDiscoveryLogger sets the structured logger for discovery.
//
// Parameters:
//   - logger: The logger implementation
//
// Returns:
//   - DiscoveryOption: Configuration option
func WithDiscoveryLogger(logger types.Logger) DiscoveryOption {
	return func(c *DiscoveryConfig) {
		c.Logger = logger
	}
}

// ClientConfig holds configuration for an HAClient.
type ClientConfig struct {
	Tolerance       Tolerance
	CallStrategy    CallStrategy
	EventSink       EventSink
	SentinelWatcher SentinelWatcher
	SentinelFactory SentinelFactory
	Metrics         MetricsCollector
	Logger          types.Logger
}

// DefaultConfig returns a ClientConfig with sensible defaults.
//
// Defaults:
//   - Tolerance: RequireWritable (never silently downgrade to a slave)
//   - CallStrategy: policy.DirectCall
//
// Returns:
//   - *ClientConfig: Configuration with default settings
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		Tolerance:    RequireWritable,
		CallStrategy: policy.NewDirectCall(),
		Metrics:      metrics.NewNopMetrics(),
		Logger:       logging.NewNopLogger(),
	}
}

// Option configures a ClientConfig.
type Option func(*ClientConfig)

// WithTolerance sets the role tolerance used for discovery.
//
// Parameters:
//   - tolerance: RequireWritable, PreferWritable or ReadOnly
//
// Returns:
//   - Option: Configuration option
func WithTolerance(tolerance Tolerance) Option {
	return func(c *ClientConfig) {
		c.Tolerance = tolerance
	}
}

// WithCallStrategy sets the strategy forwarding commands to the trusted node.
//
// Parameters:
//   - strategy: The call strategy (e.g., policy.TimeoutCall)
//
// Returns:
//   - Option: Configuration option
func WithCallStrategy(strategy CallStrategy) Option {
	return func(c *ClientConfig) {
		c.CallStrategy = strategy
	}
}

// WithEventSink sets the sink receiving failover events.
//
// Parameters:
//   - sink: The event sink (e.g., events.Memory, events.NATS)
//
// Returns:
//   - Option: Configuration option
func WithEventSink(sink EventSink) Option {
	return func(c *ClientConfig) {
		c.EventSink = sink
	}
}

// WithSentinelWatcher makes the client keep the sentinel set of its
// Discovery in sync with a watcher.
//
// Requires the discoverer passed to NewHAClient to be a *Discovery. The
// watch runs until the client is closed.
//
// Parameters:
//   - watcher: The sentinel watcher (e.g., topology.NATS)
//
// Returns:
//   - Option: Configuration option
func WithSentinelWatcher(watcher SentinelWatcher) Option {
	return func(c *ClientConfig) {
		c.SentinelWatcher = watcher
	}
}

// WithSentinelFactory sets how sentinel handles are built from watched
// addresses.
//
// If not set, sentinels are created with resp.DefaultOptions for both the
// sentinel and the node connections.
//
// Parameters:
//   - factory: Builds a sentinel handle for an address
//
// Returns:
//   - Option: Configuration option
func WithSentinelFactory(factory SentinelFactory) Option {
	return func(c *ClientConfig) {
		c.SentinelFactory = factory
	}
}

// WithMetrics sets the metrics collector.
//
// If not set, a no-op collector is used that discards all metrics.
// Use contrib/metrics/vm.New() for VictoriaMetrics integration.
//
// Parameters:
//   - collector: The metrics collector implementation
//
// Returns:
//   - Option: Configuration option
//
// Example:
//
//	import vmmetrics "github.com/arloliu/vigil/contrib/metrics/vm"
//
//	collector := vmmetrics.New(vmmetrics.WithPrefix("myapp"))
//	client, _ := vigil.NewHAClient(discovery,
//	    vigil.WithMetrics(collector),
//	)
func WithMetrics(collector MetricsCollector) Option {
	return func(c *ClientConfig) {
		c.Metrics = collector
	}
}

// WithLogger sets the structured logger.
//
// If not set, a no-op logger is used that discards all messages.
// The logger interface is satisfied by *slog.Logger; use
// contrib/logging/zaplog for zap.
//
// Parameters:
//   - logger: The logger implementation
//
// Returns:
//   - Option: Configuration option
//
// Example:
//
//	client, _ := vigil.NewHAClient(discovery,
//	    vigil.WithLogger(slog.Default()),
//	)
func WithLogger(logger types.Logger) Option {
	return func(c *ClientConfig) {
		c.Logger = logger
	}
}

// DefaultSentinelFactory builds sentinels with resp.DefaultOptions.
func DefaultSentinelFactory(addr Address) Node {
	return NewSentinel(addr, resp.DefaultOptions(), resp.DefaultOptions())
}
