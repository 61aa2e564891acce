package vigil

import (
	"context"
	"time"

	"github.com/arloliu/vigil/resp"
)

// Node is a handle to one server or sentinel.
//
// A Node owns exactly one connection. Commands the library does not model
// are forwarded verbatim through Execute.
//
// Implementations MUST be safe for concurrent use from multiple goroutines.
// The high-availability client shares its trusted node between callers.
type Node interface {
	resp.Executor

	// Address returns the node address.
	Address() Address

	// Connect opens the connection if needed. Idempotent.
	//
	// Returns:
	//   - error: A ConnectionError on socket faults
	Connect(ctx context.Context) error

	// IsConnected reports whether the connection is open.
	IsConnected() bool

	// Close drops the connection.
	Close() error

	// Role queries the node role with ROLE. The result is never cached.
	//
	// Returns:
	//   - RoleInfo: The parsed role reply
	//   - error: ErrCommandUnsupported on servers without ROLE
	Role(ctx context.Context) (RoleInfo, error)

	// IsMaster reports whether the node currently is a master.
	IsMaster(ctx context.Context) (bool, error)

	// IsSlave reports whether the node currently is a slave.
	IsSlave(ctx context.Context) (bool, error)

	// IsSentinel reports whether the node is a sentinel.
	IsSentinel(ctx context.Context) (bool, error)

	// GetMaster asks a sentinel for the master of a replica set.
	//
	// Parameters:
	//   - ctx: Context for cancellation and deadline
	//   - replicaSet: The replica set name
	//
	// Returns:
	//   - Node: A new, unconnected handle for the master
	//   - error: A SentinelError when the sentinel cannot name a master
	GetMaster(ctx context.Context, replicaSet string) (Node, error)

	// GetSlave asks a sentinel for a healthy slave of a replica set.
	//
	// Parameters:
	//   - ctx: Context for cancellation and deadline
	//   - replicaSet: The replica set name
	//
	// Returns:
	//   - Node: A new, unconnected handle for the slave
	//   - error: A SentinelError when the sentinel cannot name a slave
	GetSlave(ctx context.Context, replicaSet string) (Node, error)
}

// BackoffStrategy paces discovery passes.
//
// Implementations are stateful and need not be safe for concurrent use;
// Discovery serializes its calls. See the policy package for implementations.
type BackoffStrategy interface {
	// Reset restores the initial state. Called at the start of every discovery.
	Reset()

	// Delay returns the wait before the next pass and advances the state.
	Delay() time.Duration

	// ShouldRetry reports whether another pass is allowed. No side effects.
	ShouldRetry() bool
}

// BackoffObserver receives every back-off delay before discovery sleeps.
//
// It is informational only and cannot alter the discovery flow.
type BackoffObserver func(delay time.Duration)

// CallStrategy forwards a command to the trusted node.
//
// Returning an error matching ErrReadOnly or ErrConnection makes the client
// rediscover and retry once. Implementations MUST be safe for concurrent use.
type CallStrategy interface {
	// Call executes the command on target.
	Call(ctx context.Context, target resp.Executor, name string, args ...any) (resp.Reply, error)
}

// Discoverer finds a node of a replica set matching a role tolerance.
//
// Implementations MUST be safe for concurrent use from multiple goroutines.
type Discoverer interface {
	// Name returns the replica set name.
	Name() string

	// Discover returns a node whose role satisfies tolerance.
	//
	// Parameters:
	//   - ctx: Context for cancellation and deadline
	//   - tolerance: The accepted roles
	//
	// Returns:
	//   - Node: A matching node, possibly not yet connected
	//   - error: ErrConfiguration, ErrAllSentinelsUnreachable, ErrProtocol
	//     or a context error
	Discover(ctx context.Context, tolerance Tolerance) (Node, error)
}

// SentinelWatcher streams sentinel set changes.
//
// Implementations include topology.Local (in-memory) and topology.NATS (NATS KV backed).
type SentinelWatcher interface {
	// Watch returns a channel that receives sentinel updates.
	//
	// The channel is closed when ctx is cancelled.
	//
	// Parameters:
	//   - ctx: Context for cancellation
	//
	// Returns:
	//   - <-chan SentinelUpdate: Channel of sentinel set changes
	Watch(ctx context.Context) <-chan SentinelUpdate
}

// SentinelFactory builds a sentinel handle for an address received from a
// SentinelWatcher.
type SentinelFactory func(addr Address) Node

// EventSink receives failover events from the high-availability client.
//
// Publishing is best effort: errors are logged and never fail a command.
// Implementations include events.Memory and events.NATS.
type EventSink interface {
	// Publish records one failover event.
	Publish(ctx context.Context, event FailoverEvent) error
}
