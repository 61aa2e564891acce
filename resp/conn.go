package resp

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/arloliu/vigil/types"
)

// Options configures a Conn.
type Options struct {
	// Username for ACL authentication. Optional; when empty AUTH is sent
	// with the password only.
	Username string

	// Password sent with AUTH after connecting. No AUTH when empty.
	Password string

	// Database selected with SELECT after connecting. 0 sends no SELECT.
	Database int

	// DialTimeout bounds connection establishment.
	// Default: 5s
	DialTimeout time.Duration

	// ReadTimeout bounds waiting for a reply. 0 means no timeout beyond
	// the context deadline.
	ReadTimeout time.Duration

	// WriteTimeout bounds writing a command. 0 means no timeout beyond
	// the context deadline.
	WriteTimeout time.Duration
}

// DefaultOptions returns Options with sensible defaults.
//
// Returns:
//   - Options: Default options
func DefaultOptions() Options {
	return Options{
		DialTimeout: 5 * time.Second,
	}
}

// Executor sends one command and returns its reply.
//
// Implemented by *Conn and by every vigil node handle.
type Executor interface {
	Execute(ctx context.Context, name string, args ...any) (Reply, error)
}

var _ Executor = (*Conn)(nil)

// Conn is a lazily established connection to one server or sentinel.
//
// A Conn is safe for concurrent use; each request/response pair holds the
// connection exclusively, so commands from different goroutines never
// interleave on the wire.
type Conn struct {
	addr types.Address
	opts Options

	mu      sync.Mutex
	netConn net.Conn
	reader  *Reader
	wbuf    []byte
}

// NewConn creates an unconnected Conn.
//
// Parameters:
//   - addr: Server address
//   - opts: Connection options
//
// Returns:
//   - *Conn: A new connection; no network activity happens until Connect or Execute
func NewConn(addr types.Address, opts Options) *Conn {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = DefaultOptions().DialTimeout
	}

	return &Conn{addr: addr, opts: opts}
}

// Addr returns the server address.
func (c *Conn) Addr() types.Address {
	return c.addr
}

// Options returns the connection options.
func (c *Conn) Options() Options {
	return c.opts
}

// Connect opens the connection if it is not open yet.
//
// After dialing, AUTH is sent if a password is configured and SELECT if a
// non-zero database is configured. Calling Connect on an open connection
// is a no-op.
//
// Parameters:
//   - ctx: Context for cancellation and deadline
//
// Returns:
//   - error: *types.ConnectionError on socket faults, *types.CommandError
//     if AUTH or SELECT is rejected
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.connectLocked(ctx)
}

// IsConnected reports whether the connection is open.
func (c *Conn) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.netConn != nil
}

// Close closes the connection. The next command reconnects.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closeLocked()
}

// Execute sends one command and decodes its reply.
//
// The connection is established first if needed. Arguments are encoded as
// described in AppendCommand.
//
// Parameters:
//   - ctx: Context for cancellation and deadline
//   - name: Command name
//   - args: Command arguments
//
// Returns:
//   - Reply: The decoded reply
//   - error: *types.ConnectionError, *types.ProtocolError, or
//     *types.CommandError for an error reply
func (c *Conn) Execute(ctx context.Context, name string, args ...any) (Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connectLocked(ctx); err != nil {
		return Reply{}, err
	}

	reply, err := c.roundTripLocked(ctx, name, args...)
	if err != nil {
		return Reply{}, err
	}

	if reply.Kind == KindError {
		return Reply{}, reply.Err()
	}

	return reply, nil
}

func (c *Conn) connectLocked(ctx context.Context) error {
	if c.netConn != nil {
		return nil
	}

	dialer := net.Dialer{Timeout: c.opts.DialTimeout}
	nc, err := dialer.DialContext(ctx, "tcp", c.addr.String())
	if err != nil {
		return &types.ConnectionError{Addr: c.addr, Op: "dial", Cause: err}
	}

	c.netConn = nc
	c.reader = NewReader(bufio.NewReader(nc))

	if c.opts.Password != "" {
		args := []any{c.opts.Password}
		if c.opts.Username != "" {
			args = []any{c.opts.Username, c.opts.Password}
		}
		if err := c.handshakeLocked(ctx, "AUTH", args...); err != nil {
			return err
		}
	}

	if c.opts.Database > 0 {
		if err := c.handshakeLocked(ctx, "SELECT", c.opts.Database); err != nil {
			return err
		}
	}

	return nil
}

func (c *Conn) handshakeLocked(ctx context.Context, name string, args ...any) error {
	reply, err := c.roundTripLocked(ctx, name, args...)
	if err == nil {
		err = reply.Err()
	}
	if err != nil {
		_ = c.closeLocked()
		return err
	}

	return nil
}

// roundTripLocked writes one command and reads one reply. Any failure other
// than an error reply drops the connection.
func (c *Conn) roundTripLocked(ctx context.Context, name string, args ...any) (Reply, error) {
	buf, err := AppendCommand(c.wbuf[:0], name, args...)
	if err != nil {
		return Reply{}, err
	}
	c.wbuf = buf

	nc := c.netConn
	stop := context.AfterFunc(ctx, func() {
		// Unblock pending I/O when the context is cancelled.
		_ = nc.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	if err := nc.SetWriteDeadline(deadline(ctx, c.opts.WriteTimeout)); err != nil {
		return Reply{}, c.fail(ctx, "write", err)
	}
	if _, err := nc.Write(buf); err != nil {
		return Reply{}, c.fail(ctx, "write", err)
	}

	if err := nc.SetReadDeadline(deadline(ctx, c.opts.ReadTimeout)); err != nil {
		return Reply{}, c.fail(ctx, "read", err)
	}
	reply, err := c.reader.ReadReply()
	if err != nil {
		var protoErr *types.ProtocolError
		if errors.As(err, &protoErr) {
			_ = c.closeLocked()
			return Reply{}, err
		}

		return Reply{}, c.fail(ctx, "read", err)
	}

	return reply, nil
}

func (c *Conn) fail(ctx context.Context, op string, err error) error {
	_ = c.closeLocked()

	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}

	return &types.ConnectionError{Addr: c.addr, Op: op, Cause: err}
}

func (c *Conn) closeLocked() error {
	if c.netConn == nil {
		return nil
	}

	err := c.netConn.Close()
	c.netConn = nil
	c.reader = nil

	return err
}

// deadline returns the earlier of the context deadline and now+timeout.
// The zero time means no deadline.
func deadline(ctx context.Context, timeout time.Duration) time.Time {
	var d time.Time
	if timeout > 0 {
		d = time.Now().Add(timeout)
	}
	if ctxDeadline, ok := ctx.Deadline(); ok && (d.IsZero() || ctxDeadline.Before(d)) {
		d = ctxDeadline
	}

	return d
}
