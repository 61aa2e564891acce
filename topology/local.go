package topology

import (
	"context"
	"slices"
	"sync"

	"github.com/arloliu/vigil"
	"github.com/arloliu/vigil/types"
)

// Local provides an in-memory sentinel watcher for testing.
//
// Unlike NATS, this implementation allows programmatic control of the
// sentinel set, making it ideal for unit tests and demos.
type Local struct {
	sentinels map[string][]types.Address
	mu        sync.RWMutex

	box          *outbox
	done         chan struct{}
	closed       bool
	watchStarted bool
}

var _ vigil.SentinelWatcher = (*Local)(nil)

// NewLocal creates a new in-memory sentinel watcher.
//
// Returns:
//   - *Local: A new local topology instance
func NewLocal() *Local {
	return &Local{
		sentinels: make(map[string][]types.Address),
		box:       newOutbox(),
		done:      make(chan struct{}),
	}
}

// Watch returns a channel that receives sentinel updates.
//
// Updates are emitted when SetSentinels is called. Only the newest
// undelivered update of each replica set is kept. The channel is closed
// when Close() is called or the context is cancelled.
//
// Multiple calls to Watch return the same channel; only the first call's
// context controls the watch lifecycle.
//
// Parameters:
//   - ctx: Context for cancellation (only used on first call)
//
// Returns:
//   - <-chan types.SentinelUpdate: Channel of sentinel set changes
func (l *Local) Watch(ctx context.Context) <-chan types.SentinelUpdate {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.watchStarted {
		l.watchStarted = true
		go l.box.forward(ctx, l.done)
	}

	return l.box.out
}

// SetSentinels replaces the sentinel set of a replica set.
//
// This method emits a SentinelUpdate if the set changes.
//
// Parameters:
//   - ctx: Context for cancellation. For the local in-memory implementation,
//     this parameter is accepted for symmetry with remote stores but not used.
//   - replicaSet: The replica set name
//   - sentinels: The complete, ordered sentinel list
//
// Returns:
//   - error: *types.ConfigError if the list is empty
func (l *Local) SetSentinels(_ context.Context, replicaSet string, sentinels []types.Address) error {
	if len(sentinels) == 0 {
		return &types.ConfigError{Field: "sentinels", Reason: "should not be empty"}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}

	// Only emit if the set changed
	if slices.Equal(l.sentinels[replicaSet], sentinels) {
		return nil
	}
	l.sentinels[replicaSet] = slices.Clone(sentinels)

	l.box.put(types.SentinelUpdate{ReplicaSet: replicaSet, Sentinels: slices.Clone(sentinels)})

	return nil
}

// Sentinels returns the current sentinel set of a replica set.
//
// Parameters:
//   - replicaSet: The replica set name
//
// Returns:
//   - []types.Address: The sentinel set, or nil if never set
func (l *Local) Sentinels(replicaSet string) []types.Address {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return slices.Clone(l.sentinels[replicaSet])
}

// Close stops the watcher and releases resources.
func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}

	l.closed = true
	close(l.done)

	return nil
}
