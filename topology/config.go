package topology

import (
	"time"

	"github.com/arloliu/vigil/internal/logging"
	"github.com/arloliu/vigil/types"
)

// SentinelConfig represents the sentinel set stored in NATS KV.
//
// This is the JSON structure that operations teams PUT to the KV store
// when sentinels are added, replaced or decommissioned.
type SentinelConfig struct {
	// ReplicaSet is the replica set the sentinels monitor.
	// Empty applies the list to every watching client.
	ReplicaSet string `json:"replicaSet,omitempty"`

	// Sentinels lists sentinel addresses as "host:port", in probe order.
	Sentinels []string `json:"sentinels"`
}

// Update converts the configuration into a sentinel update.
//
// Returns:
//   - types.SentinelUpdate: The parsed update
//   - error: *types.ConfigError if the list is empty or an address is invalid
func (c *SentinelConfig) Update() (types.SentinelUpdate, error) {
	if len(c.Sentinels) == 0 {
		return types.SentinelUpdate{}, &types.ConfigError{Field: "sentinels", Reason: "should not be empty"}
	}

	addrs := make([]types.Address, 0, len(c.Sentinels))
	for _, s := range c.Sentinels {
		addr, err := types.ParseAddress(s)
		if err != nil {
			return types.SentinelUpdate{}, err
		}
		addrs = append(addrs, addr)
	}

	return types.SentinelUpdate{ReplicaSet: c.ReplicaSet, Sentinels: addrs}, nil
}

// WatcherConfig holds configuration for sentinel watchers.
type WatcherConfig struct {
	// Key is the NATS KV key to watch for the sentinel set.
	// Default: "vigil.topology.sentinels"
	Key string

	// PollInterval is the fallback polling interval if watch fails.
	// Default: 5 seconds
	PollInterval time.Duration

	// InitialFetchTimeout is the timeout for the initial KV fetch.
	// Default: 10 seconds
	InitialFetchTimeout time.Duration

	// Logger receives notices about ignored entries.
	// Default: no-op
	Logger types.Logger
}

// DefaultWatcherConfig returns a WatcherConfig with sensible defaults.
//
// Returns:
//   - WatcherConfig: Default configuration
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		Key:                 "vigil.topology.sentinels",
		PollInterval:        5 * time.Second,
		InitialFetchTimeout: 10 * time.Second,
		Logger:              logging.NewNopLogger(),
	}
}

// WatcherOption configures a sentinel watcher.
type WatcherOption func(*WatcherConfig)

// WithKey sets the NATS KV key to watch.
//
// Parameters:
//   - key: The key name (e.g., "cache.sentinels.mymaster")
//
// Returns:
//   - WatcherOption: Configuration option
func WithKey(key string) WatcherOption {
	return func(c *WatcherConfig) {
		c.Key = key
	}
}

// WithPollInterval sets the fallback polling interval.
//
// If the NATS watch fails or disconnects, the watcher falls back to
// polling at this interval.
//
// Parameters:
//   - d: Polling interval duration
//
// Returns:
//   - WatcherOption: Configuration option
func WithPollInterval(d time.Duration) WatcherOption {
	return func(c *WatcherConfig) {
		c.PollInterval = d
	}
}

// WithInitialFetchTimeout sets the timeout for the initial KV fetch.
//
// Parameters:
//   - d: Timeout duration
//
// Returns:
//   - WatcherOption: Configuration option
func WithInitialFetchTimeout(d time.Duration) WatcherOption {
	return func(c *WatcherConfig) {
		c.InitialFetchTimeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger types.Logger) WatcherOption {
	return func(c *WatcherConfig) {
		c.Logger = logger
	}
}
