package vigil

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/arloliu/vigil/internal/logging"
	"github.com/arloliu/vigil/internal/metrics"
	"github.com/arloliu/vigil/policy"
	"github.com/arloliu/vigil/resp"
	"github.com/arloliu/vigil/types"
)

// publishTimeout bounds delivery of one failover event to the sink.
const publishTimeout = 2 * time.Second

// HAClient proxies commands to the node of a replica set it currently trusts.
//
// The trusted node is discovered lazily on the first command. When a
// command fails because the node turned read-only, the client rediscovers
// the master and retries once. When the node becomes unreachable, the
// client either propagates the failure (RequireWritable) or falls back to a
// slave and retries once.
//
// HAClient is safe for concurrent use. Concurrent callers share one trusted
// node; a failure seen by several callers at once may trigger duplicate
// discoveries, of which the first one to finish wins.
type HAClient struct {
	discoverer Discoverer
	config     *ClientConfig
	replicaSet string

	mu            sync.Mutex
	node          Node
	nodeTolerance Tolerance
	lastAddr      Address
	nextReason    FailoverReason

	closed      atomic.Bool
	watchCancel context.CancelFunc
	watchWG     sync.WaitGroup
}

// NewHAClient creates a new high-availability client.
//
// No network activity happens until the first command.
//
// Parameters:
//   - discoverer: Finds nodes of the replica set, usually a *Discovery
//   - opts: Optional configuration options
//
// Returns:
//   - *HAClient: A new client
//   - error: types.ErrNilDiscoverer if discoverer is nil, *types.ConfigError
//     for an unknown tolerance or a sentinel watcher without a *Discovery
func NewHAClient(discoverer Discoverer, opts ...Option) (*HAClient, error) {
	if discoverer == nil {
		return nil, types.ErrNilDiscoverer
	}

	config := DefaultConfig()
	for _, opt := range opts {
		opt(config)
	}

	// Ensure metrics and logger are never nil
	config.Metrics = metrics.OrNop(config.Metrics)
	config.Logger = logging.OrNop(config.Logger)

	if config.CallStrategy == nil {
		config.CallStrategy = policy.NewDirectCall()
	}

	switch config.Tolerance {
	case RequireWritable, PreferWritable, ReadOnly:
	default:
		return nil, &types.ConfigError{Field: "tolerance", Reason: "unknown value " + config.Tolerance.String()}
	}

	client := &HAClient{
		discoverer: discoverer,
		config:     config,
		replicaSet: discoverer.Name(),
		nextReason: ReasonInitial,
	}

	if config.SentinelWatcher != nil {
		discovery, ok := discoverer.(*Discovery)
		if !ok {
			return nil, &types.ConfigError{Field: "sentinelWatcher", Reason: "requires a *vigil.Discovery discoverer"}
		}

		ctx, cancel := context.WithCancel(context.Background())
		client.watchCancel = cancel
		client.watchWG.Go(func() {
			discovery.Follow(ctx, config.SentinelWatcher, config.SentinelFactory)
		})
	}

	return client, nil
}

// ReplicaSet returns the replica set name.
func (c *HAClient) ReplicaSet() string {
	return c.replicaSet
}

// Tolerance returns the configured role tolerance.
func (c *HAClient) Tolerance() Tolerance {
	return c.config.Tolerance
}

// Do sends a command to the trusted node.
//
// Flow:
//  1. Without a trusted node, discover one with the configured tolerance.
//  2. Forward the command through the call strategy.
//  3. On a READONLY error, discard the node, discover a master and retry once.
//  4. On a connection failure, discard the node. With RequireWritable the
//     failure is returned; otherwise discover a slave and retry once.
//
// Any other error, including other error replies, is returned unchanged.
//
// Parameters:
//   - ctx: Context for cancellation and deadline
//   - name: Command name
//   - args: Command arguments
//
// Returns:
//   - resp.Reply: The reply of the node that executed the command
//   - error: ErrClientClosed, discovery errors, or the command error
func (c *HAClient) Do(ctx context.Context, name string, args ...any) (resp.Reply, error) {
	if c.closed.Load() {
		return resp.Reply{}, types.ErrClientClosed
	}

	start := time.Now()
	c.config.Metrics.IncCommandTotal(c.replicaSet)

	reply, err := c.do(ctx, name, args...)

	c.config.Metrics.ObserveCommandDuration(c.replicaSet, time.Since(start).Seconds())
	if err != nil {
		c.config.Metrics.IncCommandError(c.replicaSet)
	}

	return reply, err
}

func (c *HAClient) do(ctx context.Context, name string, args ...any) (resp.Reply, error) {
	node, err := c.trustedNode(ctx)
	if err != nil {
		return resp.Reply{}, err
	}

	reply, err := c.config.CallStrategy.Call(ctx, node, name, args...)
	if err == nil {
		return reply, nil
	}

	switch {
	case errors.Is(err, types.ErrReadOnly):
		c.discard(node, ReasonReadOnly)
		c.config.Metrics.IncCommandRetry(c.replicaSet, ReasonReadOnly)

		next, derr := c.rediscover(ctx, RequireWritable, ReasonReadOnly)
		if derr != nil {
			return resp.Reply{}, derr
		}

		return c.config.CallStrategy.Call(ctx, next, name, args...)

	case errors.Is(err, types.ErrConnection):
		c.discard(node, ReasonConnection)
		if c.config.Tolerance == RequireWritable || ctx.Err() != nil {
			return resp.Reply{}, err
		}
		c.config.Metrics.IncCommandRetry(c.replicaSet, ReasonConnection)

		next, derr := c.rediscover(ctx, ReadOnly, ReasonConnection)
		if derr != nil {
			return resp.Reply{}, derr
		}

		return c.config.CallStrategy.Call(ctx, next, name, args...)

	default:
		return reply, err
	}
}

// trustedNode returns the trusted node, discovering one if needed.
func (c *HAClient) trustedNode(ctx context.Context) (Node, error) {
	c.mu.Lock()
	node, reason := c.node, c.nextReason
	c.mu.Unlock()

	if node != nil {
		return node, nil
	}

	return c.rediscover(ctx, c.config.Tolerance, reason)
}

// rediscover discovers a node and installs it as the trusted node.
func (c *HAClient) rediscover(ctx context.Context, tolerance Tolerance, reason FailoverReason) (Node, error) {
	node, err := c.discoverer.Discover(ctx, tolerance)
	if err != nil {
		return nil, err
	}

	return c.trust(ctx, node, tolerance, reason)
}

// trust installs node unless a concurrent discovery already installed a
// node satisfying the same requirement, in which case that one is used.
func (c *HAClient) trust(ctx context.Context, node Node, tolerance Tolerance, reason FailoverReason) (Node, error) {
	c.mu.Lock()

	if c.closed.Load() {
		c.mu.Unlock()
		_ = node.Close()

		return nil, types.ErrClientClosed
	}

	if current := c.node; current != nil {
		if current == node {
			c.mu.Unlock()
			return node, nil
		}
		if c.nodeTolerance == tolerance || c.nodeTolerance == RequireWritable {
			c.mu.Unlock()
			_ = node.Close()

			return current, nil
		}
		// The installed node is weaker than required; replace it.
		c.lastAddr = current.Address()
		_ = current.Close()
	}

	from := c.lastAddr
	c.node = node
	c.nodeTolerance = tolerance
	c.lastAddr = node.Address()
	c.nextReason = ReasonInitial
	c.mu.Unlock()

	c.config.Metrics.IncFailoverTotal(c.replicaSet, reason)
	c.announce(ctx, types.FailoverEvent{
		ID:         uuid.NewString(),
		ReplicaSet: c.replicaSet,
		From:       from,
		To:         node.Address(),
		Reason:     reason,
		Tolerance:  tolerance,
		Timestamp:  time.Now(),
	})

	return node, nil
}

// discard clears the trusted node if it is still node, and closes it.
func (c *HAClient) discard(node Node, reason FailoverReason) {
	c.mu.Lock()
	if c.node != node {
		c.mu.Unlock()
		return
	}
	c.node = nil
	c.nextReason = reason
	c.mu.Unlock()

	_ = node.Close()
}

func (c *HAClient) announce(ctx context.Context, event FailoverEvent) {
	keyvals := []any{
		"replicaSet", event.ReplicaSet,
		"reason", string(event.Reason),
		"from", event.From.String(),
		"to", event.To.String(),
		"tolerance", event.Tolerance.String(),
	}
	if event.Reason == ReasonInitial {
		c.config.Logger.Info("trusting node", keyvals...)
	} else {
		c.config.Logger.Warn("failing over", keyvals...)
	}

	if c.config.EventSink == nil {
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := c.config.EventSink.Publish(pubCtx, event); err != nil {
		c.config.Logger.Error("failed to publish failover event",
			"replicaSet", event.ReplicaSet,
			"event", event.ID,
			"error", err,
		)
	}
}

// Node returns the trusted node, or nil before the first discovery and
// after a failure discarded it.
func (c *HAClient) Node() Node {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.node
}

// Invalidate discards the trusted node so the next command rediscovers.
func (c *HAClient) Invalidate() {
	c.mu.Lock()
	node := c.node
	c.mu.Unlock()

	if node != nil {
		c.discard(node, ReasonInitial)
	}
}

// Close stops the sentinel watch and closes the trusted node.
//
// Commands issued after Close return ErrClientClosed. Close is idempotent.
func (c *HAClient) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	if c.watchCancel != nil {
		c.watchCancel()
		c.watchWG.Wait()
	}

	c.mu.Lock()
	node := c.node
	c.node = nil
	c.mu.Unlock()

	if node != nil {
		return node.Close()
	}

	return nil
}

// ----------------------
// Convenience commands
// ----------------------

// Get returns the value of key.
//
// Returns:
//   - string: The value
//   - bool: false when the key does not exist
//   - error: Command or discovery errors
func (c *HAClient) Get(ctx context.Context, key string) (string, bool, error) {
	reply, err := c.Do(ctx, "GET", key)
	if err != nil {
		return "", false, err
	}

	value, ok := reply.Text()

	return value, ok, nil
}

// Set stores value under key. A positive ttl sets a millisecond expiry.
func (c *HAClient) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	args := []any{key, value}
	if ttl > 0 {
		args = append(args, "PX", ttl.Milliseconds())
	}

	reply, err := c.Do(ctx, "SET", args...)
	if err != nil {
		return err
	}
	if !reply.OK() {
		return &types.ProtocolError{Reason: "unexpected SET reply " + reply.String()}
	}

	return nil
}

// Del deletes keys and returns how many existed.
func (c *HAClient) Del(ctx context.Context, keys ...string) (int64, error) {
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}

	reply, err := c.Do(ctx, "DEL", args...)
	if err != nil {
		return 0, err
	}

	return reply.Int64()
}

// Select switches the database of the trusted node's connection.
//
// The selection does not survive a failover; configure
// resp.Options.Database to select a database on every connection.
func (c *HAClient) Select(ctx context.Context, db int) error {
	_, err := c.Do(ctx, "SELECT", db)

	return err
}

// Ping checks the trusted node.
func (c *HAClient) Ping(ctx context.Context) error {
	reply, err := c.Do(ctx, "PING")
	if err != nil {
		return err
	}
	if !reply.OK() {
		return &types.ProtocolError{Reason: "unexpected PING reply " + reply.String()}
	}

	return nil
}
