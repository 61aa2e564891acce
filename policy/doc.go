// Package policy provides back-off and call strategies for the vigil
// high-availability client.
//
// # Back-off Strategies
//
// A back-off strategy decides whether discovery makes another pass over the
// sentinels after every sentinel failed, and how long to wait before it:
//
//	type BackoffStrategy interface {
//	    Reset()
//	    Delay() time.Duration
//	    ShouldRetry() bool
//	}
//
// Available strategies:
//
//   - [NoBackoff]: A single pass, no waiting (default)
//   - [IncrementalBackoff]: Geometrically growing delays, optionally capped
//
// Example:
//
//	backoff, _ := policy.NewIncrementalBackoff(100*time.Millisecond, 2,
//	    policy.WithMaxAttempts(5),
//	    policy.WithMaxDelay(2*time.Second),
//	)
//	discovery, _ := vigil.NewDiscovery("mymaster",
//	    vigil.WithBackoff(backoff),
//	)
//
// # Call Strategies
//
// A call strategy forwards a command to the node trusted by the client.
// Returning an error that matches types.ErrReadOnly or types.ErrConnection
// makes the client rediscover and retry once.
//
// Available strategies:
//
//   - [DirectCall]: Forwards the command unchanged (default)
//   - [CallFunc]: Adapts a function, for instrumentation or custom guards
//   - [TimeoutCall]: Bounds every command with a deadline
//   - [CircuitBreakerCall]: Fails over away from a node that keeps answering
//     LOADING/BUSY/MASTERDOWN or replies too slowly
//
// Example:
//
//	client, _ := vigil.NewHAClient(discovery,
//	    vigil.WithCallStrategy(policy.NewTimeoutCall(500*time.Millisecond, nil)),
//	)
package policy
