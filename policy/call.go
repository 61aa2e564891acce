package policy

import (
	"context"
	"time"

	"github.com/arloliu/vigil/resp"
)

// DirectCall forwards every command unchanged to the target node.
type DirectCall struct{}

// NewDirectCall creates a new DirectCall strategy.
//
// Returns:
//   - *DirectCall: The default call strategy
func NewDirectCall() *DirectCall {
	return &DirectCall{}
}

// Call executes the command on target.
func (*DirectCall) Call(ctx context.Context, target resp.Executor, name string, args ...any) (resp.Reply, error) {
	return target.Execute(ctx, name, args...)
}

// CallFunc adapts an ordinary function to the call strategy contract.
//
// The function may inspect the command or reply and return an error
// matching types.ErrReadOnly or types.ErrConnection to make the client
// redirect the call, e.g. to refuse writes on a node it considers stale.
//
// Example:
//
//	strategy := policy.CallFunc(func(ctx context.Context, target resp.Executor, name string, args ...any) (resp.Reply, error) {
//	    start := time.Now()
//	    reply, err := target.Execute(ctx, name, args...)
//	    log.Printf("%s took %s", name, time.Since(start))
//	    return reply, err
//	})
type CallFunc func(ctx context.Context, target resp.Executor, name string, args ...any) (resp.Reply, error)

// Call invokes f.
func (f CallFunc) Call(ctx context.Context, target resp.Executor, name string, args ...any) (resp.Reply, error) {
	return f(ctx, target, name, args...)
}

// Caller is the contract shared by the call strategies in this package.
type Caller interface {
	Call(ctx context.Context, target resp.Executor, name string, args ...any) (resp.Reply, error)
}

// TimeoutCall bounds every command with a deadline before delegating.
//
// A deadline already on the context wins when it is earlier. Expiry
// surfaces as a connection error, so the client treats a hung node like an
// unreachable one.
type TimeoutCall struct {
	timeout time.Duration
	next    Caller
}

// NewTimeoutCall creates a new TimeoutCall strategy.
//
// Parameters:
//   - timeout: Deadline applied to each command; 0 disables it
//   - next: Strategy to delegate to; nil means DirectCall
//
// Returns:
//   - *TimeoutCall: A new strategy
func NewTimeoutCall(timeout time.Duration, next Caller) *TimeoutCall {
	if next == nil {
		next = NewDirectCall()
	}

	return &TimeoutCall{timeout: timeout, next: next}
}

// Call executes the command with the configured deadline.
func (c *TimeoutCall) Call(ctx context.Context, target resp.Executor, name string, args ...any) (resp.Reply, error) {
	if c.timeout <= 0 {
		return c.next.Call(ctx, target, name, args...)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return c.next.Call(ctx, target, name, args...)
}

var (
	_ Caller = (*DirectCall)(nil)
	_ Caller = CallFunc(nil)
	_ Caller = (*TimeoutCall)(nil)
)
