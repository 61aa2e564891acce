package events

import (
	"context"
	"errors"
	"sync"

	"github.com/arloliu/vigil"
	"github.com/arloliu/vigil/types"
)

// ErrSinkClosed is returned by Publish after Close.
var ErrSinkClosed = errors.New("vigil/events: sink is closed")

// Memory keeps the most recent failover events in a bounded in-memory buffer.
//
// When the buffer is full, the oldest event is dropped.
//
// # Durability Warning
//
// Events are LOST on process restart. Use Memory for:
//   - Development and testing
//   - Exposing recent failovers on a debug endpoint
//
// For an audit trail across processes, use NATS with JetStream persistence.
type Memory struct {
	mu       sync.Mutex
	buf      []types.FailoverEvent
	head     int // index of the oldest event
	size     int
	capacity int
	dropped  uint64
	closed   bool
}

var _ vigil.EventSink = (*Memory)(nil)

// MemoryOption configures a Memory sink.
type MemoryOption func(*Memory)

// WithCapacity sets the maximum number of retained events.
//
// Parameters:
//   - n: Buffer capacity (default: 1000); values below 1 are ignored
//
// Returns:
//   - MemoryOption: Configuration option
func WithCapacity(n int) MemoryOption {
	return func(m *Memory) {
		if n > 0 {
			m.capacity = n
		}
	}
}

// NewMemory creates a new in-memory event sink.
//
// Parameters:
//   - opts: Optional configuration options
//
// Returns:
//   - *Memory: A new memory sink
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{capacity: 1000}
	for _, opt := range opts {
		opt(m)
	}
	m.buf = make([]types.FailoverEvent, m.capacity)

	return m
}

// Publish records an event, dropping the oldest one if the buffer is full.
//
// Returns:
//   - error: ErrSinkClosed after Close, otherwise nil
func (m *Memory) Publish(_ context.Context, event types.FailoverEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrSinkClosed
	}

	if m.size == m.capacity {
		m.buf[m.head] = event
		m.head = (m.head + 1) % m.capacity
		m.dropped++

		return nil
	}

	m.buf[(m.head+m.size)%m.capacity] = event
	m.size++

	return nil
}

// Events returns a snapshot of the retained events, oldest first.
func (m *Memory) Events() []types.FailoverEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]types.FailoverEvent, m.size)
	for i := range m.size {
		out[i] = m.buf[(m.head+i)%m.capacity]
	}

	return out
}

// Last returns the most recent event.
//
// Returns:
//   - types.FailoverEvent: The newest event
//   - bool: false if no event was recorded
func (m *Memory) Last() (types.FailoverEvent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.size == 0 {
		return types.FailoverEvent{}, false
	}

	return m.buf[(m.head+m.size-1)%m.capacity], true
}

// Len returns the number of retained events.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.size
}

// Dropped returns how many events were evicted to make room.
func (m *Memory) Dropped() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.dropped
}

// Close marks the sink as closed. Retained events stay readable.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true

	return nil
}
