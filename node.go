package vigil

import (
	"context"
	"errors"

	"github.com/arloliu/vigil/resp"
	"github.com/arloliu/vigil/types"
)

// RedisNode is the Node implementation backed by a resp.Conn.
//
// A RedisNode created with NewSentinel additionally carries the connection
// options used for the data nodes it resolves.
type RedisNode struct {
	conn     *resp.Conn
	nodeOpts resp.Options
}

// Compile-time assertion that RedisNode implements Node.
var _ Node = (*RedisNode)(nil)

// NewNode creates a handle for a data node (master or slave).
//
// Parameters:
//   - addr: Node address
//   - opts: Connection options (password, database, timeouts)
//
// Returns:
//   - *RedisNode: A new, unconnected handle
func NewNode(addr Address, opts resp.Options) *RedisNode {
	return &RedisNode{conn: resp.NewConn(addr, opts), nodeOpts: opts}
}

// NewSentinel creates a handle for a sentinel.
//
// Parameters:
//   - addr: Sentinel address
//   - sentinelOpts: Options for the sentinel connection
//   - nodeOpts: Options for the master and slave handles it resolves
//
// Returns:
//   - *RedisNode: A new, unconnected handle
func NewSentinel(addr Address, sentinelOpts, nodeOpts resp.Options) *RedisNode {
	return &RedisNode{conn: resp.NewConn(addr, sentinelOpts), nodeOpts: nodeOpts}
}

// Address returns the node address.
func (n *RedisNode) Address() Address {
	return n.conn.Addr()
}

// Connect opens the connection if needed.
func (n *RedisNode) Connect(ctx context.Context) error {
	return n.conn.Connect(ctx)
}

// IsConnected reports whether the connection is open.
func (n *RedisNode) IsConnected() bool {
	return n.conn.IsConnected()
}

// Close drops the connection. The next command reconnects.
func (n *RedisNode) Close() error {
	return n.conn.Close()
}

// Execute forwards a command verbatim.
func (n *RedisNode) Execute(ctx context.Context, name string, args ...any) (resp.Reply, error) {
	return n.conn.Execute(ctx, name, args...)
}

// Role queries ROLE.
func (n *RedisNode) Role(ctx context.Context) (RoleInfo, error) {
	return n.conn.Role(ctx)
}

// IsMaster reports whether ROLE answers "master".
func (n *RedisNode) IsMaster(ctx context.Context) (bool, error) {
	return n.hasRole(ctx, RoleMaster)
}

// IsSlave reports whether ROLE answers "slave".
func (n *RedisNode) IsSlave(ctx context.Context) (bool, error) {
	return n.hasRole(ctx, RoleSlave)
}

// IsSentinel reports whether ROLE answers "sentinel".
func (n *RedisNode) IsSentinel(ctx context.Context) (bool, error) {
	return n.hasRole(ctx, RoleSentinel)
}

func (n *RedisNode) hasRole(ctx context.Context, role Role) (bool, error) {
	info, err := n.conn.Role(ctx)
	if err != nil {
		return false, err
	}

	return info.Role == role, nil
}

// GetMaster resolves the master of replicaSet through this sentinel.
//
// Parameters:
//   - ctx: Context for cancellation and deadline
//   - replicaSet: The replica set name
//
// Returns:
//   - Node: A new, unconnected handle built with the node options
//   - error: *types.SentinelError when unresolved, connection or protocol errors
func (n *RedisNode) GetMaster(ctx context.Context, replicaSet string) (Node, error) {
	addr, ok, err := n.conn.SentinelGetMaster(ctx, replicaSet)
	if err != nil {
		return nil, n.sentinelErr(replicaSet, err)
	}
	if !ok {
		return nil, &types.SentinelError{Addr: n.Address(), ReplicaSet: replicaSet, Reason: "master unknown"}
	}

	return NewNode(addr, n.nodeOpts), nil
}

// GetSlave resolves a healthy slave of replicaSet through this sentinel.
//
// The first slave in sentinel order whose flags mark it neither down nor
// disconnected is chosen.
//
// Parameters:
//   - ctx: Context for cancellation and deadline
//   - replicaSet: The replica set name
//
// Returns:
//   - Node: A new, unconnected handle built with the node options
//   - error: *types.SentinelError when no usable slave is known, connection
//     or protocol errors
func (n *RedisNode) GetSlave(ctx context.Context, replicaSet string) (Node, error) {
	slaves, err := n.conn.SentinelSlaves(ctx, replicaSet)
	if err != nil {
		return nil, n.sentinelErr(replicaSet, err)
	}

	for _, slave := range slaves {
		if !slave.Healthy() {
			continue
		}
		if addr, ok := slave.Address(); ok {
			return NewNode(addr, n.nodeOpts), nil
		}
	}

	return nil, &types.SentinelError{Addr: n.Address(), ReplicaSet: replicaSet, Reason: "no healthy slave"}
}

// sentinelErr reports command error replies (unknown master name, NOAUTH)
// as an unavailable sentinel; other errors pass through.
func (n *RedisNode) sentinelErr(replicaSet string, err error) error {
	var cmdErr *types.CommandError
	if errors.As(err, &cmdErr) {
		return &types.SentinelError{Addr: n.Address(), ReplicaSet: replicaSet, Reason: "error reply", Cause: err}
	}

	return err
}
