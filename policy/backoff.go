package policy

import (
	"math"
	"strconv"
	"time"

	"github.com/arloliu/vigil/types"
)

// NoBackoff gives up after the first pass over the sentinels.
//
// Delay always returns 0 and ShouldRetry always returns false.
type NoBackoff struct{}

// NewNoBackoff creates a new NoBackoff strategy.
//
// Returns:
//   - *NoBackoff: A strategy that never retries
func NewNoBackoff() *NoBackoff {
	return &NoBackoff{}
}

// Reset is a no-op.
func (*NoBackoff) Reset() {}

// Delay returns 0.
func (*NoBackoff) Delay() time.Duration { return 0 }

// ShouldRetry returns false.
func (*NoBackoff) ShouldRetry() bool { return false }

// IncrementalBackoff grows the delay geometrically between discovery passes.
//
// The first Delay returns the initial delay; every call multiplies the next
// delay by the multiplier and counts one attempt. Without WithMaxAttempts
// the strategy retries forever, so a zero multiplier or a small initial
// delay can make discovery spin; pair it with a bounded context or a cap.
//
// Not safe for concurrent use. Discovery serializes its calls.
type IncrementalBackoff struct {
	initial    time.Duration
	multiplier float64
	maxDelay   time.Duration
	// maxAttempts < 0 means unbounded.
	maxAttempts int

	next     float64
	attempts int
}

// IncrementalBackoffOption configures an IncrementalBackoff strategy.
type IncrementalBackoffOption func(*IncrementalBackoff)

// WithMaxAttempts caps the number of retries.
//
// ShouldRetry reports true while fewer than n delays were taken. With n = 0
// discovery makes a single pass.
//
// Parameters:
//   - n: Maximum number of retries; negative means unbounded
//
// Returns:
//   - IncrementalBackoffOption: Configuration option
func WithMaxAttempts(n int) IncrementalBackoffOption {
	return func(b *IncrementalBackoff) {
		b.maxAttempts = n
	}
}

// WithMaxDelay clamps every returned delay to d.
//
// Parameters:
//   - d: Upper bound of a single delay; 0 disables the clamp
//
// Returns:
//   - IncrementalBackoffOption: Configuration option
func WithMaxDelay(d time.Duration) IncrementalBackoffOption {
	return func(b *IncrementalBackoff) {
		b.maxDelay = d
	}
}

// NewIncrementalBackoff creates a new IncrementalBackoff strategy.
//
// Parameters:
//   - initial: Delay before the second pass
//   - multiplier: Factor applied to the delay after every pass
//   - opts: Optional configuration options
//
// Returns:
//   - *IncrementalBackoff: A new strategy, already reset
//   - error: *types.ConfigError if initial or multiplier is negative, or
//     the max delay is negative
func NewIncrementalBackoff(initial time.Duration, multiplier float64, opts ...IncrementalBackoffOption) (*IncrementalBackoff, error) {
	if initial < 0 {
		return nil, &types.ConfigError{Field: "backoff.initial", Reason: "cannot be negative, got " + initial.String()}
	}
	if multiplier < 0 || math.IsNaN(multiplier) {
		return nil, &types.ConfigError{
			Field:  "backoff.multiplier",
			Reason: "cannot be negative, got " + strconv.FormatFloat(multiplier, 'g', -1, 64),
		}
	}

	b := &IncrementalBackoff{
		initial:     initial,
		multiplier:  multiplier,
		maxAttempts: -1,
	}

	for _, opt := range opts {
		opt(b)
	}

	if b.maxDelay < 0 {
		return nil, &types.ConfigError{Field: "backoff.maxDelay", Reason: "cannot be negative, got " + b.maxDelay.String()}
	}

	b.Reset()

	return b, nil
}

// Reset restores the initial delay and clears the attempt counter.
func (b *IncrementalBackoff) Reset() {
	b.next = float64(b.initial)
	b.attempts = 0
}

// Delay returns the current delay and advances to the next one.
//
// Returns:
//   - time.Duration: The delay to wait before the next pass
func (b *IncrementalBackoff) Delay() time.Duration {
	current := b.next
	b.next *= b.multiplier
	b.attempts++

	d := time.Duration(math.MaxInt64)
	if current < float64(math.MaxInt64) {
		d = time.Duration(current)
	}
	if b.maxDelay > 0 && d > b.maxDelay {
		d = b.maxDelay
	}

	return d
}

// ShouldRetry reports whether another pass is allowed. It has no side effects.
func (b *IncrementalBackoff) ShouldRetry() bool {
	if b.maxAttempts < 0 {
		return true
	}

	return b.attempts < b.maxAttempts
}

// Attempts returns the number of delays taken since the last Reset.
func (b *IncrementalBackoff) Attempts() int {
	return b.attempts
}
