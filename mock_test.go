package vigil

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/arloliu/vigil/resp"
	"github.com/arloliu/vigil/types"
)

// mockNode implements Node for testing without a network.
//
// As a sentinel it hands out master and slave; as a data node it answers
// Role with role and Execute with execFn.
type mockNode struct {
	addr       Address
	role       Role
	roleErr    error
	connectErr error

	master    *mockNode
	masterErr error
	slave     *mockNode
	slaveErr  error

	execFn    func(name string, args ...any) (resp.Reply, error)
	connectFn func(ctx context.Context) error

	connects    atomic.Int32
	masterCalls atomic.Int32
	slaveCalls  atomic.Int32
	roleCalls   atomic.Int32
	closes      atomic.Int32

	mu       sync.Mutex
	executed []string
}

// Compile-time assertion.
var _ Node = (*mockNode)(nil)

func newMockSentinel(port int) *mockNode {
	return &mockNode{addr: NewAddress("10.0.0.1", port), role: RoleSentinel}
}

func newMockMaster(port int) *mockNode {
	return &mockNode{addr: NewAddress("10.0.1.1", port), role: RoleMaster}
}

func newMockSlave(port int) *mockNode {
	return &mockNode{addr: NewAddress("10.0.2.1", port), role: RoleSlave}
}

func (m *mockNode) Address() Address {
	return m.addr
}

func (m *mockNode) Connect(ctx context.Context) error {
	m.connects.Add(1)

	if m.connectFn != nil {
		if err := m.connectFn(ctx); err != nil {
			return err
		}
	}

	return m.connectErr
}

func (m *mockNode) IsConnected() bool {
	return m.connectErr == nil
}

func (m *mockNode) Close() error {
	m.closes.Add(1)

	return nil
}

func (m *mockNode) Execute(ctx context.Context, name string, args ...any) (resp.Reply, error) {
	if err := ctx.Err(); err != nil {
		return resp.Reply{}, err
	}

	m.mu.Lock()
	m.executed = append(m.executed, name)
	m.mu.Unlock()

	if m.execFn != nil {
		return m.execFn(name, args...)
	}

	return resp.StatusReply("OK"), nil
}

func (m *mockNode) Role(_ context.Context) (RoleInfo, error) {
	m.roleCalls.Add(1)

	if m.roleErr != nil {
		return RoleInfo{}, m.roleErr
	}

	return RoleInfo{Role: m.role}, nil
}

func (m *mockNode) IsMaster(ctx context.Context) (bool, error) {
	info, err := m.Role(ctx)

	return info.Role == RoleMaster, err
}

func (m *mockNode) IsSlave(ctx context.Context) (bool, error) {
	info, err := m.Role(ctx)

	return info.Role == RoleSlave, err
}

func (m *mockNode) IsSentinel(ctx context.Context) (bool, error) {
	info, err := m.Role(ctx)

	return info.Role == RoleSentinel, err
}

func (m *mockNode) GetMaster(_ context.Context, replicaSet string) (Node, error) {
	m.masterCalls.Add(1)

	if m.masterErr != nil {
		return nil, m.masterErr
	}
	if m.master == nil {
		return nil, &types.SentinelError{Addr: m.addr, ReplicaSet: replicaSet, Reason: "master unknown"}
	}

	return m.master, nil
}

func (m *mockNode) GetSlave(_ context.Context, replicaSet string) (Node, error) {
	m.slaveCalls.Add(1)

	if m.slaveErr != nil {
		return nil, m.slaveErr
	}
	if m.slave == nil {
		return nil, &types.SentinelError{Addr: m.addr, ReplicaSet: replicaSet, Reason: "no healthy slave"}
	}

	return m.slave, nil
}

func (m *mockNode) Executed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string(nil), m.executed...)
}

// mockDiscoverer implements Discoverer by handing out nodes per tolerance.
type mockDiscoverer struct {
	mu    sync.Mutex
	nodes map[Tolerance][]Node
	err   error
	calls []Tolerance
}

// Compile-time assertion.
var _ Discoverer = (*mockDiscoverer)(nil)

func newMockDiscoverer() *mockDiscoverer {
	return &mockDiscoverer{nodes: make(map[Tolerance][]Node)}
}

// push queues a node returned by the next Discover call for tolerance.
func (d *mockDiscoverer) push(tolerance Tolerance, node Node) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nodes[tolerance] = append(d.nodes[tolerance], node)
}

func (d *mockDiscoverer) Name() string {
	return "mymaster"
}

func (d *mockDiscoverer) Discover(_ context.Context, tolerance Tolerance) (Node, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls = append(d.calls, tolerance)
	if d.err != nil {
		return nil, d.err
	}

	queue := d.nodes[tolerance]
	if len(queue) == 0 {
		return nil, &types.DiscoveryError{ReplicaSet: "mymaster", Tolerance: tolerance, Passes: 1}
	}
	node := queue[0]
	if len(queue) > 1 {
		d.nodes[tolerance] = queue[1:]
	}

	return node, nil
}

func (d *mockDiscoverer) Calls() []Tolerance {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]Tolerance(nil), d.calls...)
}

// mockWatcher implements SentinelWatcher over a channel.
type mockWatcher struct {
	updates chan SentinelUpdate
}

func newMockWatcher() *mockWatcher {
	return &mockWatcher{updates: make(chan SentinelUpdate, 8)}
}

func (w *mockWatcher) Watch(_ context.Context) <-chan SentinelUpdate {
	return w.updates
}

// mockSink implements EventSink and records events.
type mockSink struct {
	mu     sync.Mutex
	events []FailoverEvent
	err    error
}

func (s *mockSink) Publish(_ context.Context, event FailoverEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event)

	return s.err
}

func (s *mockSink) Events() []FailoverEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]FailoverEvent(nil), s.events...)
}

// readOnlyReply fails writes the way a demoted master does.
func readOnlyReply(name string, _ ...any) (resp.Reply, error) {
	if name == "SET" || name == "DEL" {
		return resp.Reply{}, &types.CommandError{Message: "READONLY You can't write against a read only replica."}
	}

	return resp.BulkReply([]byte("value")), nil
}

// connectionFailure fails every command with a connection error.
func connectionFailure(addr Address) func(string, ...any) (resp.Reply, error) {
	return func(string, ...any) (resp.Reply, error) {
		return resp.Reply{}, &types.ConnectionError{Addr: addr, Op: "read", Cause: io.ErrUnexpectedEOF}
	}
}
