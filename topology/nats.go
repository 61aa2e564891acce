package topology

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/vigil"
	"github.com/arloliu/vigil/internal/logging"
	"github.com/arloliu/vigil/types"
)

// NATS monitors a NATS KV bucket for the sentinel set of a replica set.
//
// It watches a configurable key and emits SentinelUpdate events when the
// stored sentinel list changes. Deleting the key or storing invalid JSON
// does not clear the set: clients keep the last known sentinels.
//
// Watch() should be called once per instance. Subsequent calls return the
// same channel. The channel is closed when Close() is called or the context
// is cancelled.
type NATS struct {
	kv     jetstream.KeyValue
	config WatcherConfig

	// Last accepted sentinel set
	current types.SentinelUpdate
	known   bool
	mu      sync.RWMutex

	// Lifecycle
	box          *outbox
	done         chan struct{}
	closed       bool
	watchStarted bool
}

var _ vigil.SentinelWatcher = (*NATS)(nil)

// NewNATS creates a new NATS KV sentinel watcher.
//
// The watcher will begin monitoring the KV bucket when Watch() is called.
//
// Parameters:
//   - kv: A NATS JetStream KeyValue store
//   - opts: Optional configuration options
//
// Returns:
//   - *NATS: A new watcher instance
//   - error: Error if kv is nil
//
// Example:
//
//	nc, _ := nats.Connect("nats://localhost:4222")
//	js, _ := jetstream.New(nc)
//	kv, _ := js.KeyValue(ctx, "vigil-config")
//
//	watcher, _ := topology.NewNATS(kv,
//	    topology.WithKey("sentinels.mymaster"),
//	    topology.WithPollInterval(10*time.Second),
//	)
func NewNATS(kv jetstream.KeyValue, opts ...WatcherOption) (*NATS, error) {
	if kv == nil {
		return nil, errors.New("vigil/topology: KeyValue store is nil")
	}

	config := DefaultWatcherConfig()
	for _, opt := range opts {
		opt(&config)
	}
	config.Logger = logging.OrNop(config.Logger)

	return &NATS{
		kv:      kv,
		config:  config,
		box:     newOutbox(),
		done:    make(chan struct{}),
	}, nil
}

// Watch returns a channel that receives sentinel updates.
//
// The watcher spawns a background goroutine that monitors the NATS KV key.
// The current value, if any, is emitted first.
//
// The channel is closed when Close() is called or the context is cancelled.
// Multiple calls to Watch return the same channel; only the first call's
// context controls the watch lifecycle.
//
// Parameters:
//   - ctx: Context for cancellation (only used on first call)
//
// Returns:
//   - <-chan types.SentinelUpdate: Channel of sentinel set changes
func (n *NATS) Watch(ctx context.Context) <-chan types.SentinelUpdate {
	n.mu.Lock()
	if n.watchStarted {
		n.mu.Unlock()

		return n.box.out
	}
	n.watchStarted = true
	n.mu.Unlock()

	go n.box.forward(ctx, n.done)
	go n.watchLoop(ctx)

	return n.box.out
}

// Close stops the watcher and releases resources.
//
// This method is safe to call multiple times.
func (n *NATS) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil
	}

	n.closed = true
	close(n.done)

	return nil
}

// Current returns the last accepted sentinel set.
//
// This provides a synchronous way to read the set without waiting for
// channel updates. It does not perform a live KV fetch.
//
// Returns:
//   - types.SentinelUpdate: The last accepted set
//   - bool: false if no valid entry was seen yet
func (n *NATS) Current() (types.SentinelUpdate, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	update := n.current
	update.Sentinels = slices.Clone(update.Sentinels)

	return update, n.known
}

// Config returns the watcher configuration.
//
// This method is primarily useful for testing to verify configuration options.
//
// Returns:
//   - WatcherConfig: The current watcher configuration
func (n *NATS) Config() WatcherConfig {
	return n.config
}

// Publish stores a sentinel set under the watched key.
//
// Every watcher of the key, in every process, receives the new set.
//
// Parameters:
//   - ctx: Context for cancellation
//   - config: The sentinel set to store
//
// Returns:
//   - error: *types.ConfigError for an invalid set, or the KV error
func (n *NATS) Publish(ctx context.Context, config SentinelConfig) error {
	if _, err := config.Update(); err != nil {
		return err
	}

	data, err := json.Marshal(config)
	if err != nil {
		return err
	}

	_, err = n.kv.Put(ctx, n.config.Key, data)

	return err
}

// watchLoop is the main watch loop that monitors the NATS KV key.
func (n *NATS) watchLoop(ctx context.Context) {
	// Initial fetch
	n.fetchAndEmit(ctx)

	// Start watching
	watcher, err := n.kv.Watch(ctx, n.config.Key)
	if err != nil {
		n.config.Logger.Warn("sentinel watch failed, polling", "key", n.config.Key, "error", err)
		n.pollLoop(ctx)

		return
	}
	defer func() { _ = watcher.Stop() }()

	for {
		select {
		case <-ctx.Done():
			return
		case <-n.done:
			return
		case entry, ok := <-watcher.Updates():
			if !ok {
				// Watcher channel closed, fall back to polling
				n.pollLoop(ctx)
				return
			}
			if entry == nil {
				// End of initial values
				continue
			}
			n.processEntry(entry)
		}
	}
}

// pollLoop is a fallback polling loop when watch fails.
func (n *NATS) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(n.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-n.done:
			return
		case <-ticker.C:
			n.fetchAndEmit(ctx)
		}
	}
}

// fetchAndEmit fetches the current KV value and emits an update if changed.
func (n *NATS) fetchAndEmit(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, n.config.InitialFetchTimeout)
	defer cancel()

	entry, err := n.kv.Get(fetchCtx, n.config.Key)
	if err != nil {
		// Key doesn't exist or error - keep the last known set
		if !errors.Is(err, jetstream.ErrKeyNotFound) {
			n.config.Logger.Debug("sentinel fetch failed", "key", n.config.Key, "error", err)
		}

		return
	}

	n.processEntry(entry)
}

// processEntry parses a KV entry and emits a sentinel update.
func (n *NATS) processEntry(entry jetstream.KeyValueEntry) {
	if entry.Operation() == jetstream.KeyValueDelete || entry.Operation() == jetstream.KeyValuePurge {
		n.config.Logger.Info("sentinel key deleted, keeping last known set", "key", entry.Key())
		return
	}

	var config SentinelConfig
	if err := json.Unmarshal(entry.Value(), &config); err != nil {
		n.config.Logger.Warn("ignoring invalid sentinel entry", "key", entry.Key(), "error", err)
		return
	}

	update, err := config.Update()
	if err != nil {
		n.config.Logger.Warn("ignoring invalid sentinel entry", "key", entry.Key(), "error", err)
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	// Only emit if the set changed
	if n.known && n.current.ReplicaSet == update.ReplicaSet && slices.Equal(n.current.Sentinels, update.Sentinels) {
		return
	}
	n.current = update
	n.known = true

	n.box.put(update)
}
