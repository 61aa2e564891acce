package testutil

import (
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/redcon"

	"github.com/arloliu/vigil/types"
)

// Handler answers one command on a FakeServer. Args excludes the command name.
type Handler func(conn redcon.Conn, args []string)

// FakeServer is an in-process server speaking the wire protocol, built on redcon.
//
// Commands are dispatched to handlers registered with Handle. Unregistered
// commands get an "ERR unknown command" reply. Every received command is
// recorded for assertions.
type FakeServer struct {
	ln   net.Listener
	addr types.Address

	mu       sync.Mutex
	handlers map[string]Handler
	commands [][]string
	conns    map[redcon.Conn]struct{}
	closed   bool
}

// StartFakeServer starts a FakeServer on a random loopback port.
//
// The server answers PING with PONG. It is closed automatically when the
// test completes.
//
// Parameters:
//   - t: The testing context
//
// Returns:
//   - *FakeServer: A running server
func StartFakeServer(t testing.TB) *FakeServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err, "failed to listen")

	tcpAddr := ln.Addr().(*net.TCPAddr)
	s := &FakeServer{
		ln:       ln,
		addr:     types.NewAddress("127.0.0.1", tcpAddr.Port),
		handlers: make(map[string]Handler),
		conns:    make(map[redcon.Conn]struct{}),
	}
	s.Handle("PING", func(conn redcon.Conn, _ []string) {
		conn.WriteString("PONG")
	})

	go func() {
		_ = redcon.Serve(ln, s.serve, s.accept, s.closedConn)
	}()

	t.Cleanup(s.Close)

	return s
}

// Addr returns the server address.
func (s *FakeServer) Addr() types.Address {
	return s.addr
}

// Handle registers a handler for a command (case-insensitive).
func (s *FakeServer) Handle(command string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handlers[strings.ToUpper(command)] = h
}

// Commands returns a copy of every command received so far.
func (s *FakeServer) Commands() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([][]string, len(s.commands))
	copy(out, s.commands)

	return out
}

// CommandCount returns how many times a command was received.
func (s *FakeServer) CommandCount(command string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, cmd := range s.commands {
		if strings.EqualFold(cmd[0], command) {
			n++
		}
	}

	return n
}

// DropConnections closes every open client connection, simulating a
// network failure. The listener keeps accepting new connections.
func (s *FakeServer) DropConnections() {
	s.mu.Lock()
	conns := make([]redcon.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		_ = c.NetConn().Close()
	}
}

// Close stops the server and closes every connection.
func (s *FakeServer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	_ = s.ln.Close()
	s.DropConnections()
}

func (s *FakeServer) accept(conn redcon.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}

	return true
}

func (s *FakeServer) closedConn(conn redcon.Conn, _ error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.conns, conn)
}

func (s *FakeServer) serve(conn redcon.Conn, cmd redcon.Command) {
	args := make([]string, len(cmd.Args))
	for i, a := range cmd.Args {
		args[i] = string(a)
	}

	s.mu.Lock()
	s.commands = append(s.commands, args)
	h, ok := s.handlers[strings.ToUpper(args[0])]
	s.mu.Unlock()

	if !ok {
		conn.WriteError("ERR unknown command '" + args[0] + "'")
		return
	}

	h(conn, args[1:])
}

// FakeNode is a FakeServer that behaves like a data node with a given role.
//
// It implements ROLE, GET, SET, DEL, SELECT and AUTH on an in-memory map.
// Writes on a slave are rejected with a READONLY error.
type FakeNode struct {
	*FakeServer

	mu       sync.Mutex
	role     types.Role
	master   types.Address
	data     map[string]string
	password string
}

// StartFakeMaster starts a FakeNode reporting the master role.
func StartFakeMaster(t testing.TB) *FakeNode {
	t.Helper()

	return startFakeNode(t, types.RoleMaster, types.Address{})
}

// StartFakeSlave starts a FakeNode reporting the slave role of master.
func StartFakeSlave(t testing.TB, master types.Address) *FakeNode {
	t.Helper()

	return startFakeNode(t, types.RoleSlave, master)
}

func startFakeNode(t testing.TB, role types.Role, master types.Address) *FakeNode {
	t.Helper()

	n := &FakeNode{
		FakeServer: StartFakeServer(t),
		role:       role,
		master:     master,
		data:       make(map[string]string),
	}

	n.Handle("ROLE", n.handleRole)
	n.Handle("GET", n.handleGet)
	n.Handle("SET", n.handleSet)
	n.Handle("DEL", n.handleDel)
	n.Handle("SELECT", func(conn redcon.Conn, args []string) {
		if len(args) != 1 {
			conn.WriteError("ERR wrong number of arguments for 'select' command")
			return
		}
		if _, err := strconv.Atoi(args[0]); err != nil {
			conn.WriteError("ERR value is not an integer or out of range")
			return
		}
		conn.WriteString("OK")
	})
	n.Handle("AUTH", n.handleAuth)

	return n
}

// SetRole changes the reported role, e.g. to simulate a demotion.
func (n *FakeNode) SetRole(role types.Role, master types.Address) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.role = role
	n.master = master
}

// RequirePassword makes AUTH mandatory with the given password.
func (n *FakeNode) RequirePassword(password string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.password = password
}

// Value returns a stored value.
func (n *FakeNode) Value(key string) (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	v, ok := n.data[key]

	return v, ok
}

func (n *FakeNode) handleRole(conn redcon.Conn, _ []string) {
	n.mu.Lock()
	role, master := n.role, n.master
	n.mu.Unlock()

	switch role {
	case types.RoleMaster:
		conn.WriteArray(3)
		conn.WriteBulkString("master")
		conn.WriteInt64(1024)
		conn.WriteArray(0)
	case types.RoleSlave:
		conn.WriteArray(5)
		conn.WriteBulkString("slave")
		conn.WriteBulkString(master.Host)
		conn.WriteInt(master.Port)
		conn.WriteBulkString("connected")
		conn.WriteInt64(1024)
	default:
		conn.WriteArray(2)
		conn.WriteBulkString(string(role))
		conn.WriteArray(0)
	}
}

func (n *FakeNode) handleGet(conn redcon.Conn, args []string) {
	if len(args) != 1 {
		conn.WriteError("ERR wrong number of arguments for 'get' command")
		return
	}

	if v, ok := n.Value(args[0]); ok {
		conn.WriteBulkString(v)
		return
	}
	conn.WriteNull()
}

func (n *FakeNode) handleSet(conn redcon.Conn, args []string) {
	if len(args) < 2 {
		conn.WriteError("ERR wrong number of arguments for 'set' command")
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.role != types.RoleMaster {
		conn.WriteError("READONLY You can't write against a read only replica.")
		return
	}
	n.data[args[0]] = args[1]
	conn.WriteString("OK")
}

func (n *FakeNode) handleDel(conn redcon.Conn, args []string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.role != types.RoleMaster {
		conn.WriteError("READONLY You can't write against a read only replica.")
		return
	}

	deleted := 0
	for _, k := range args {
		if _, ok := n.data[k]; ok {
			delete(n.data, k)
			deleted++
		}
	}
	conn.WriteInt(deleted)
}

func (n *FakeNode) handleAuth(conn redcon.Conn, args []string) {
	n.mu.Lock()
	password := n.password
	n.mu.Unlock()

	if len(args) == 0 || args[len(args)-1] != password {
		conn.WriteError("WRONGPASS invalid username-password pair or user is disabled.")
		return
	}
	conn.WriteString("OK")
}

// FakeSentinel is a FakeServer answering the sentinel inspection commands
// for one replica set.
type FakeSentinel struct {
	*FakeServer

	mu     sync.Mutex
	set    string
	master types.Address
	slaves []types.ReplicaInfo
}

// StartFakeSentinel starts a sentinel that reports master for set.
//
// A zero master address makes the sentinel answer with a null reply, as a
// sentinel that does not know the master would.
func StartFakeSentinel(t testing.TB, set string, master types.Address) *FakeSentinel {
	t.Helper()

	s := &FakeSentinel{
		FakeServer: StartFakeServer(t),
		set:        set,
		master:     master,
	}

	s.Handle("ROLE", func(conn redcon.Conn, _ []string) {
		conn.WriteArray(2)
		conn.WriteBulkString("sentinel")
		conn.WriteArray(1)
		conn.WriteBulkString(s.set)
	})
	s.Handle("SENTINEL", s.handleSentinel)

	return s
}

// SetMaster changes the reported master address.
func (s *FakeSentinel) SetMaster(master types.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.master = master
}

// AddSlave adds a slave to the "SENTINEL slaves" reply.
//
// Parameters:
//   - addr: Slave address
//   - flags: Sentinel flags, e.g. "slave" or "slave,s_down"
func (s *FakeSentinel) AddSlave(addr types.Address, flags string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.slaves = append(s.slaves, types.ReplicaInfo{
		"name":  addr.String(),
		"ip":    addr.Host,
		"port":  strconv.Itoa(addr.Port),
		"flags": flags,
	})
}

func (s *FakeSentinel) handleSentinel(conn redcon.Conn, args []string) {
	if len(args) < 2 {
		conn.WriteError("ERR wrong number of arguments for 'sentinel' command")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if args[1] != s.set {
		if strings.EqualFold(args[0], "get-master-addr-by-name") {
			conn.WriteNull()
			return
		}
		conn.WriteError("ERR No such master with that name")
		return
	}

	switch strings.ToLower(args[0]) {
	case "get-master-addr-by-name":
		if s.master.IsZero() {
			conn.WriteNull()
			return
		}
		conn.WriteArray(2)
		conn.WriteBulkString(s.master.Host)
		conn.WriteBulkString(strconv.Itoa(s.master.Port))
	case "slaves", "replicas":
		conn.WriteArray(len(s.slaves))
		for _, slave := range s.slaves {
			keys := []string{"name", "ip", "port", "flags"}
			conn.WriteArray(len(keys) * 2)
			for _, k := range keys {
				conn.WriteBulkString(k)
				conn.WriteBulkString(slave[k])
			}
		}
	default:
		conn.WriteError("ERR Unknown sentinel subcommand '" + args[0] + "'")
	}
}
