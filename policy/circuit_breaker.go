package policy

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/arloliu/vigil/internal/logging"
	"github.com/arloliu/vigil/resp"
	"github.com/arloliu/vigil/types"
)

// ErrCircuitOpen is the cause carried by the connection error a
// CircuitBreakerCall returns when it trips.
var ErrCircuitOpen = errors.New("vigil/policy: circuit breaker open")

// transientPrefixes are error reply codes that indicate a node which is up
// but not serving: loading its dataset, blocked by a script, or a replica
// that lost its master link.
var transientPrefixes = map[string]bool{
	"LOADING":    true,
	"BUSY":       true,
	"MASTERDOWN": true,
	"TRYAGAIN":   true,
}

// CircuitBreakerCall turns a degraded node into a failover.
//
// It counts consecutive failures on the node it forwards to. A failure is
// a transient error reply (LOADING, BUSY, MASTERDOWN, TRYAGAIN) or, when an
// absolute maximum is set, a reply slower than that maximum. Once the
// threshold is reached the breaker opens with a types.ConnectionError
// wrapping ErrCircuitOpen, so the client drops the node and rediscovers.
// Any successful fast reply resets the count.
//
// A transient error reply opens the breaker on the call that saw it. A slow
// reply has already been applied by the node, so it is returned as is and
// the next call on the same node fails without being forwarded.
//
// Counters follow the most recent target; a new target starts from zero.
//
// Example:
//
//	breaker := policy.NewCircuitBreakerCall(
//	    policy.WithThreshold(3),
//	    policy.WithLatencyAbsoluteMax(250*time.Millisecond),
//	)
//	client, _ := vigil.NewHAClient(discovery, vigil.WithCallStrategy(breaker))
type CircuitBreakerCall struct {
	threshold    int
	resetTimeout time.Duration
	absoluteMax  time.Duration
	next         Caller
	logger       types.Logger

	mu          sync.Mutex
	target      resp.Executor
	failures    int
	lastFailure time.Time
	trips       int
	tripped     resp.Executor
}

// CircuitBreakerOption configures a CircuitBreakerCall.
type CircuitBreakerOption func(*CircuitBreakerCall)

// WithThreshold sets the number of consecutive failures before tripping.
//
// Default: 3
//
// Parameters:
//   - n: Number of failures required
//
// Returns:
//   - CircuitBreakerOption: Configuration option
func WithThreshold(n int) CircuitBreakerOption {
	return func(c *CircuitBreakerCall) {
		c.threshold = n
	}
}

// WithResetTimeout sets the quiet period after which the failure count
// starts over.
//
// Default: 30s
func WithResetTimeout(d time.Duration) CircuitBreakerOption {
	return func(c *CircuitBreakerCall) {
		c.resetTimeout = d
	}
}

// WithLatencyAbsoluteMax treats successful replies slower than d as soft
// failures. 0 disables latency tracking.
//
// Default: 0
func WithLatencyAbsoluteMax(d time.Duration) CircuitBreakerOption {
	return func(c *CircuitBreakerCall) {
		c.absoluteMax = d
	}
}

// WithNext sets the strategy the breaker delegates to.
//
// Default: DirectCall
func WithNext(next Caller) CircuitBreakerOption {
	return func(c *CircuitBreakerCall) {
		c.next = next
	}
}

// WithCircuitBreakerLogger sets the logger for trip messages.
func WithCircuitBreakerLogger(l types.Logger) CircuitBreakerOption {
	return func(c *CircuitBreakerCall) {
		c.logger = l
	}
}

// NewCircuitBreakerCall creates a new CircuitBreakerCall.
//
// Defaults: threshold=3, resetTimeout=30s, no latency tracking.
//
// Parameters:
//   - opts: Optional configuration options
//
// Returns:
//   - *CircuitBreakerCall: A new call strategy
func NewCircuitBreakerCall(opts ...CircuitBreakerOption) *CircuitBreakerCall {
	c := &CircuitBreakerCall{
		threshold:    3,
		resetTimeout: 30 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.threshold < 1 {
		c.threshold = 1
	}
	if c.next == nil {
		c.next = NewDirectCall()
	}
	c.logger = logging.OrNop(c.logger)

	return c
}

// Call forwards the command and records the outcome.
func (c *CircuitBreakerCall) Call(ctx context.Context, target resp.Executor, name string, args ...any) (resp.Reply, error) {
	if c.open(target) {
		return resp.Reply{}, c.openError(target, nil)
	}

	start := time.Now()
	reply, err := c.next.Call(ctx, target, name, args...)
	elapsed := time.Since(start)

	healthy := true
	var cause error
	switch {
	case err != nil && isTransientReply(err):
		healthy = false
		cause = err
	case err != nil:
		// Connection failures and READONLY are handled by the client; other
		// error replies say nothing about node health.
		return reply, err
	case c.absoluteMax > 0 && elapsed > c.absoluteMax:
		healthy = false
	}

	if !c.observe(target, healthy) {
		return reply, err
	}

	c.logger.Warn("circuit breaker tripped",
		"addr", addressOf(target),
		"threshold", c.threshold,
		"command", name,
		"elapsed", elapsed,
	)

	if cause == nil {
		// The slow command ran; deliver it and refuse the next one.
		c.mu.Lock()
		c.tripped = target
		c.mu.Unlock()

		return reply, nil
	}

	return resp.Reply{}, c.openError(target, cause)
}

// open reports whether target was tripped by a slow reply and clears the
// mark. A mark for any other target is stale and dropped.
func (c *CircuitBreakerCall) open(target resp.Executor) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tripped == nil {
		return false
	}

	hit := c.tripped == target
	c.tripped = nil

	return hit
}

func (c *CircuitBreakerCall) openError(target resp.Executor, cause error) error {
	return &types.ConnectionError{
		Addr:  addressOf(target),
		Op:    "circuit",
		Cause: errors.Join(ErrCircuitOpen, cause),
	}
}

// observe records one outcome and reports whether the breaker tripped.
func (c *CircuitBreakerCall) observe(target resp.Executor, ok bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if c.target != target {
		c.target = target
		c.failures = 0
		c.lastFailure = time.Time{}
	}

	if ok {
		c.failures = 0
		c.lastFailure = time.Time{}

		return false
	}

	if !c.lastFailure.IsZero() && now.Sub(c.lastFailure) > c.resetTimeout {
		c.failures = 0
	}
	c.failures++
	c.lastFailure = now

	if c.failures < c.threshold {
		return false
	}

	c.failures = 0
	c.lastFailure = time.Time{}
	c.trips++

	return true
}

// Failures returns the consecutive failure count on the current target.
func (c *CircuitBreakerCall) Failures() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.failures
}

// Trips returns how many times the breaker has tripped.
func (c *CircuitBreakerCall) Trips() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.trips
}

// Threshold returns the configured failure threshold.
func (c *CircuitBreakerCall) Threshold() int {
	return c.threshold
}

// AbsoluteMax returns the configured latency threshold.
func (c *CircuitBreakerCall) AbsoluteMax() time.Duration {
	return c.absoluteMax
}

func isTransientReply(err error) bool {
	var cmdErr *types.CommandError
	if !errors.As(err, &cmdErr) {
		return false
	}

	return transientPrefixes[cmdErr.Prefix()]
}

func addressOf(target resp.Executor) types.Address {
	if n, ok := target.(interface{ Address() types.Address }); ok {
		return n.Address()
	}
	if n, ok := target.(interface{ Addr() types.Address }); ok {
		return n.Addr()
	}

	return types.Address{}
}

var _ Caller = (*CircuitBreakerCall)(nil)
