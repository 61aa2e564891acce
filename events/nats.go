package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/vigil"
	"github.com/arloliu/vigil/types"
)

// NATSConfig configures the NATS JetStream event sink.
type NATSConfig struct {
	// StreamName is the JetStream stream name for storing failover events.
	// Default: "vigil-failover"
	StreamName string

	// SubjectPrefix is the prefix for subjects. Events are published to
	// "{SubjectPrefix}.{replicaSet}" (e.g., "vigil.failover.mymaster").
	// Default: "vigil.failover"
	SubjectPrefix string

	// MaxAge is the maximum age of events in the stream.
	// Default: 7 days
	MaxAge time.Duration

	// MaxMsgs is the maximum number of events in the stream.
	// Default: 100,000
	MaxMsgs int64

	// Replicas is the number of stream replicas (for fault tolerance).
	// Default: 1 (use 3 for production clusters)
	Replicas int

	// PublishTimeout is the timeout for publishing events.
	// Default: 5 seconds
	PublishTimeout time.Duration
}

// DefaultNATSConfig returns the default configuration.
//
// Returns:
//   - NATSConfig: Default configuration with reasonable defaults
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		StreamName:     "vigil-failover",
		SubjectPrefix:  "vigil.failover",
		MaxAge:         7 * 24 * time.Hour,
		MaxMsgs:        100_000,
		Replicas:       1,
		PublishTimeout: 5 * time.Second,
	}
}

// NATS publishes failover events to a NATS JetStream stream.
//
// Unlike Memory, events persisted to JetStream survive process restarts
// and are visible to every process sharing the stream, which makes the
// stream an audit trail of failovers across a fleet.
type NATS struct {
	js     jetstream.JetStream
	stream jetstream.Stream
	config NATSConfig
	closed bool
	mu     sync.RWMutex
}

var _ vigil.EventSink = (*NATS)(nil)

// NATSOption configures a NATS sink.
type NATSOption func(*NATSConfig)

// WithStreamName sets the JetStream stream name.
//
// Parameters:
//   - name: Stream name
//
// Returns:
//   - NATSOption: Configuration option
func WithStreamName(name string) NATSOption {
	return func(c *NATSConfig) {
		c.StreamName = name
	}
}

// WithSubjectPrefix sets the subject prefix for failover events.
//
// Parameters:
//   - prefix: Subject prefix
//
// Returns:
//   - NATSOption: Configuration option
func WithSubjectPrefix(prefix string) NATSOption {
	return func(c *NATSConfig) {
		c.SubjectPrefix = prefix
	}
}

// WithMaxAge sets the maximum age of events in the stream.
func WithMaxAge(d time.Duration) NATSOption {
	return func(c *NATSConfig) {
		c.MaxAge = d
	}
}

// WithMaxMsgs sets the maximum number of events in the stream.
func WithMaxMsgs(n int64) NATSOption {
	return func(c *NATSConfig) {
		c.MaxMsgs = n
	}
}

// WithReplicas sets the number of stream replicas.
func WithReplicas(n int) NATSOption {
	return func(c *NATSConfig) {
		c.Replicas = n
	}
}

// WithPublishTimeout sets the timeout for publishing events.
func WithPublishTimeout(d time.Duration) NATSOption {
	return func(c *NATSConfig) {
		c.PublishTimeout = d
	}
}

// NewNATS creates a new NATS JetStream event sink.
//
// This function creates or updates a JetStream stream for storing failover
// events. The caller is responsible for creating the JetStream context from
// their NATS connection.
//
// Parameters:
//   - js: A JetStream context (created via jetstream.New(conn))
//   - opts: Optional configuration options
//
// Returns:
//   - *NATS: A new NATS sink
//   - error: Error if stream creation fails
//
// Example:
//
//	nc, _ := nats.Connect("nats://localhost:4222")
//	js, _ := jetstream.New(nc)
//	sink, _ := events.NewNATS(js)
//
//	client, _ := vigil.NewHAClient(discovery, vigil.WithEventSink(sink))
func NewNATS(js jetstream.JetStream, opts ...NATSOption) (*NATS, error) {
	if js == nil {
		return nil, errors.New("vigil/events: JetStream context is nil")
	}

	config := DefaultNATSConfig()
	for _, opt := range opts {
		opt(&config)
	}

	// Create or update the stream
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	streamConfig := jetstream.StreamConfig{
		Name:        config.StreamName,
		Description: "Vigil failover events",
		Subjects:    []string{config.SubjectPrefix + ".*"}, // {prefix}.{replicaSet}
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      config.MaxAge,
		MaxMsgs:     config.MaxMsgs,
		Replicas:    config.Replicas,
		Storage:     jetstream.FileStorage,
		Discard:     jetstream.DiscardOld,
	}

	stream, err := js.CreateOrUpdateStream(ctx, streamConfig)
	if err != nil {
		return nil, fmt.Errorf("vigil/events: failed to create/update stream: %w", err)
	}

	return &NATS{
		js:     js,
		stream: stream,
		config: config,
	}, nil
}

// Publish appends a failover event to the stream.
//
// The event is published with subject "{prefix}.{replicaSet}".
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - event: The event to publish
//
// Returns:
//   - error: nil on success, error on encode or publish failure
func (n *NATS) Publish(ctx context.Context, event types.FailoverEvent) error {
	n.mu.RLock()
	if n.closed {
		n.mu.RUnlock()

		return ErrSinkClosed
	}
	n.mu.RUnlock()

	data, err := Encode(event)
	if err != nil {
		return fmt.Errorf("vigil/events: failed to encode event: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, n.config.PublishTimeout)
	defer cancel()

	if _, err := n.js.Publish(pubCtx, n.Subject(event.ReplicaSet), data); err != nil {
		return fmt.Errorf("vigil/events: failed to publish event: %w", err)
	}

	return nil
}

// Subject returns the subject events of a replica set are published to.
//
// Characters with a meaning in subjects ('.', '*', '>' and whitespace) are
// replaced by '_' so a replica set always maps to a single token.
func (n *NATS) Subject(replicaSet string) string {
	token := strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, replicaSet)
	if token == "" {
		token = "_"
	}

	return n.config.SubjectPrefix + "." + token
}

// Fetch reads up to batchSize events through a durable consumer.
//
// Each consumer name keeps its own position, so several readers (an audit
// log, an alerting hook) can follow the stream independently. Fetched
// events are acknowledged; malformed messages are terminated.
//
// Parameters:
//   - ctx: Context for cancellation
//   - consumer: Durable consumer name
//   - batchSize: Maximum number of events to fetch
//
// Returns:
//   - []types.FailoverEvent: Events in publish order, possibly empty
//   - error: Error if the consumer cannot be created or the fetch fails
func (n *NATS) Fetch(ctx context.Context, consumer string, batchSize int) ([]types.FailoverEvent, error) {
	n.mu.RLock()
	if n.closed {
		n.mu.RUnlock()

		return nil, ErrSinkClosed
	}
	n.mu.RUnlock()

	cons, err := n.stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          consumer,
		Durable:       consumer,
		FilterSubject: n.config.SubjectPrefix + ".*",
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("vigil/events: failed to create consumer: %w", err)
	}

	msgs, err := cons.Fetch(batchSize, jetstream.FetchMaxWait(time.Second))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, jetstream.ErrNoMessages) {
			return nil, nil // No events available
		}

		return nil, fmt.Errorf("vigil/events: failed to fetch events: %w", err)
	}

	result := make([]types.FailoverEvent, 0, batchSize)
	for msg := range msgs.Messages() {
		event, err := Decode(msg.Data())
		if err != nil {
			// Redelivery would fail the same way
			_ = msg.Term()

			continue
		}

		result = append(result, event)
		_ = msg.Ack()
	}

	if err := msgs.Error(); err != nil {
		if !errors.Is(err, jetstream.ErrNoMessages) {
			return result, fmt.Errorf("vigil/events: error during event fetch: %w", err)
		}
	}

	return result, nil
}

// Count returns the number of events in the stream.
func (n *NATS) Count(ctx context.Context) (uint64, error) {
	info, err := n.stream.Info(ctx)
	if err != nil {
		return 0, fmt.Errorf("vigil/events: failed to get stream info: %w", err)
	}

	return info.State.Msgs, nil
}

// Close closes the sink.
//
// Note: This does NOT close the NATS connection - that is the caller's responsibility.
func (n *NATS) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.closed = true

	return nil
}

// StreamName returns the JetStream stream name.
func (n *NATS) StreamName() string {
	return n.config.StreamName
}
