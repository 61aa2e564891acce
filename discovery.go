package vigil

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/arloliu/vigil/internal/logging"
	"github.com/arloliu/vigil/internal/metrics"
	"github.com/arloliu/vigil/policy"
	"github.com/arloliu/vigil/types"
)

// Discovery finds the nodes of one replica set through its sentinels.
//
// Sentinels are probed one at a time in configured order, every pass. A
// pass ends as soon as a node of the requested role is found; when every
// sentinel failed, the back-off strategy decides whether to wait and make
// another pass.
//
// Discover calls on one Discovery are serialized because the back-off
// strategy is stateful. The sentinel list may be replaced concurrently; a
// running discovery keeps using the list it started with.
type Discovery struct {
	name     string
	backoff  BackoffStrategy
	observer BackoffObserver
	metrics  MetricsCollector
	logger   types.Logger

	discoverMu sync.Mutex

	mu        sync.RWMutex
	sentinels []Node
}

// Compile-time assertion that Discovery implements Discoverer.
var _ Discoverer = (*Discovery)(nil)

// NewDiscovery creates a Discovery for the named replica set.
//
// Parameters:
//   - name: Replica set name as configured on the sentinels
//   - opts: Optional configuration options
//
// Returns:
//   - *Discovery: A new discovery engine
//   - error: *types.ConfigError if name is empty
//
// Example:
//
//	backoff, _ := policy.NewIncrementalBackoff(100*time.Millisecond, 2, policy.WithMaxAttempts(3))
//	discovery, err := vigil.NewDiscovery("mymaster",
//	    vigil.WithSentinelAddrs(resp.DefaultOptions(), nodeOpts,
//	        vigil.NewAddress("10.0.0.1", 26379),
//	        vigil.NewAddress("10.0.0.2", 26379),
//	    ),
//	    vigil.WithBackoff(backoff),
//	)
func NewDiscovery(name string, opts ...DiscoveryOption) (*Discovery, error) {
	if name == "" {
		return nil, &types.ConfigError{Field: "replicaSet", Reason: "name should not be blank"}
	}

	cfg := DefaultDiscoveryConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Backoff == nil {
		cfg.Backoff = policy.NewNoBackoff()
	}

	return &Discovery{
		name:      name,
		backoff:   cfg.Backoff,
		observer:  cfg.Observer,
		metrics:   metrics.OrNop(cfg.Metrics),
		logger:    logging.OrNop(cfg.Logger),
		sentinels: slices.Clone(cfg.Sentinels),
	}, nil
}

// Name returns the replica set name.
func (d *Discovery) Name() string {
	return d.name
}

// AddSentinel appends a sentinel to the probe order.
func (d *Discovery) AddSentinel(sentinel Node) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.sentinels = append(d.sentinels, sentinel)
}

// SetSentinels replaces the sentinel list wholesale.
//
// Handles that are not part of the new list are closed.
//
// Parameters:
//   - sentinels: The new ordered sentinel list
func (d *Discovery) SetSentinels(sentinels []Node) {
	d.mu.Lock()
	old := d.sentinels
	d.sentinels = slices.Clone(sentinels)
	d.mu.Unlock()

	for _, s := range old {
		if !slices.Contains(sentinels, s) {
			_ = s.Close()
		}
	}
}

// Sentinels returns a snapshot of the sentinel list.
func (d *Discovery) Sentinels() []Node {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return slices.Clone(d.sentinels)
}

// Master discovers the current master.
func (d *Discovery) Master(ctx context.Context) (Node, error) {
	return d.Discover(ctx, RequireWritable)
}

// Slave discovers a healthy slave.
func (d *Discovery) Slave(ctx context.Context) (Node, error) {
	return d.Discover(ctx, ReadOnly)
}

// Node discovers the master, or a slave when no master is reachable.
func (d *Discovery) Node(ctx context.Context) (Node, error) {
	return d.Discover(ctx, PreferWritable)
}

// Discover returns a node of the replica set whose role satisfies tolerance.
//
// The back-off strategy is reset first. Per pass, each sentinel is
// connected and asked for a master (RequireWritable, PreferWritable) or a
// slave (ReadOnly); the resolved node's role is then queried. Unreachable
// sentinels, unresolved addresses, unreachable nodes and role mismatches
// move on to the next sentinel. With PreferWritable a slave is requested
// from the same sentinel before moving on.
//
// Parameters:
//   - ctx: Context for cancellation and deadline, honoured while dialing,
//     waiting for replies and sleeping between passes
//   - tolerance: The accepted roles
//
// Returns:
//   - Node: A matching node; the caller owns it
//   - error: *types.ConfigError without sentinels, *types.DiscoveryError
//     once the back-off strategy gives up, *types.ProtocolError on
//     malformed replies, or the context error
func (d *Discovery) Discover(ctx context.Context, tolerance Tolerance) (Node, error) {
	d.discoverMu.Lock()
	defer d.discoverMu.Unlock()

	// Snapshot under discoverMu: a caller that waited here must use the
	// list as it is now, not one SetSentinels has since replaced and closed.
	sentinels := d.Sentinels()
	if len(sentinels) == 0 {
		return nil, &types.ConfigError{
			Field:  "sentinels",
			Reason: "no sentinels configured for replica set " + d.name,
		}
	}

	start := time.Now()
	d.metrics.IncDiscoveryTotal(d.name)

	node, err := d.discover(ctx, sentinels, tolerance)

	d.metrics.ObserveDiscoveryDuration(d.name, time.Since(start).Seconds())
	if err != nil {
		d.metrics.IncDiscoveryError(d.name)
		return nil, err
	}

	d.logger.Debug("discovered node",
		"replicaSet", d.name,
		"node", node.Address().String(),
		"tolerance", tolerance.String(),
	)

	return node, nil
}

func (d *Discovery) discover(ctx context.Context, sentinels []Node, tolerance Tolerance) (Node, error) {
	d.backoff.Reset()

	passes := 0
	for {
		passes++

		var failures error
		for _, sentinel := range sentinels {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			node, err := d.probe(ctx, sentinel, tolerance)
			if err == nil {
				return node, nil
			}
			if isHardError(ctx, err) {
				return nil, err
			}

			addr := sentinel.Address().String()
			failures = multierr.Append(failures, fmt.Errorf("sentinel %s: %w", addr, err))
			d.metrics.IncSentinelError(d.name, addr)
			d.logger.Debug("skipping sentinel",
				"replicaSet", d.name,
				"sentinel", addr,
				"pass", passes,
				"error", err,
			)
		}

		if !d.backoff.ShouldRetry() {
			d.logger.Warn("all sentinels are unreachable",
				"replicaSet", d.name,
				"tolerance", tolerance.String(),
				"passes", passes,
				"error", failures,
			)

			return nil, &types.DiscoveryError{
				ReplicaSet: d.name,
				Tolerance:  tolerance,
				Passes:     passes,
				Cause:      failures,
			}
		}

		delay := d.backoff.Delay()
		d.metrics.ObserveBackoffDelay(d.name, delay.Seconds())
		if d.observer != nil {
			d.observer(delay)
		}

		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// probe asks one sentinel for a node matching tolerance.
func (d *Discovery) probe(ctx context.Context, sentinel Node, tolerance Tolerance) (Node, error) {
	if err := sentinel.Connect(ctx); err != nil {
		return nil, err
	}

	switch tolerance {
	case RequireWritable:
		return d.resolve(ctx, sentinel.GetMaster, RequireWritable)
	case ReadOnly:
		return d.resolve(ctx, sentinel.GetSlave, ReadOnly)
	case PreferWritable:
		node, masterErr := d.resolve(ctx, sentinel.GetMaster, RequireWritable)
		if masterErr == nil || isHardError(ctx, masterErr) {
			return node, masterErr
		}

		node, slaveErr := d.resolve(ctx, sentinel.GetSlave, ReadOnly)
		if slaveErr == nil || isHardError(ctx, slaveErr) {
			return node, slaveErr
		}

		return nil, multierr.Combine(masterErr, slaveErr)
	default:
		return nil, &types.ConfigError{Field: "tolerance", Reason: "unknown value " + tolerance.String()}
	}
}

// resolve obtains a node from the sentinel and verifies its role.
func (d *Discovery) resolve(
	ctx context.Context,
	lookup func(context.Context, string) (Node, error),
	want Tolerance,
) (Node, error) {
	node, err := lookup(ctx, d.name)
	if err != nil {
		return nil, err
	}

	info, err := node.Role(ctx)
	if err != nil {
		_ = node.Close()
		return nil, err
	}

	if !want.Accepts(info.Role) {
		_ = node.Close()
		return nil, &types.RoleMismatchError{Addr: node.Address(), Want: want, Got: info.Role}
	}

	return node, nil
}

// Follow keeps the sentinel list in sync with a watcher until ctx is
// cancelled or the watch channel is closed.
//
// Updates for another replica set are ignored, as are empty sentinel
// lists. Handles for addresses already present are kept so their
// connections survive the update.
//
// Parameters:
//   - ctx: Context controlling the lifetime of the watch
//   - watcher: Source of sentinel updates
//   - factory: Builds handles for new addresses; nil uses DefaultSentinelFactory
func (d *Discovery) Follow(ctx context.Context, watcher SentinelWatcher, factory SentinelFactory) {
	if factory == nil {
		factory = DefaultSentinelFactory
	}

	updates := watcher.Watch(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			d.apply(update, factory)
		}
	}
}

func (d *Discovery) apply(update SentinelUpdate, factory SentinelFactory) {
	if update.ReplicaSet != "" && update.ReplicaSet != d.name {
		return
	}
	if len(update.Sentinels) == 0 {
		d.logger.Warn("ignoring empty sentinel update", "replicaSet", d.name)
		return
	}

	current := make(map[Address]Node)
	for _, s := range d.Sentinels() {
		current[s.Address()] = s
	}

	next := make([]Node, 0, len(update.Sentinels))
	for _, addr := range update.Sentinels {
		if s, ok := current[addr]; ok {
			next = append(next, s)
			delete(current, addr)

			continue
		}
		next = append(next, factory(addr))
	}

	d.SetSentinels(next)
	d.logger.Info("sentinel set updated",
		"replicaSet", d.name,
		"sentinels", len(next),
	)
}

// isHardError reports errors that end discovery immediately: malformed
// replies, cancellation and invalid configuration.
func isHardError(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}

	return errors.Is(err, types.ErrProtocol) || errors.Is(err, types.ErrConfiguration)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
