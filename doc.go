// Package vigil provides a sentinel-aware high-availability client for
// replicated key-value stores speaking the Redis wire protocol.
//
// A replica set has one writable master and any number of read-only slaves.
// Sentinels monitor the set, promote a slave when the master fails and
// answer queries about the current topology. Vigil asks the sentinels which
// node to talk to and follows role changes transparently.
//
// # Key Features
//
//   - Discovery: Ordered, fault-tolerant probing of sentinels with role verification
//   - Back-off: Pluggable retry policy between discovery passes
//   - HA Proxy: Commands follow a failover with a single transparent retry
//   - Role Tolerance: Require a master, prefer one, or read from slaves only
//   - Dynamic Sentinels: Sentinel sets can be updated at runtime from NATS
//   - Failover Events: Role changes are published to a memory buffer or NATS JetStream
//
// # Basic Usage
//
//	backoff, _ := policy.NewIncrementalBackoff(100*time.Millisecond, 2,
//	    policy.WithMaxAttempts(5),
//	)
//
//	discovery, err := vigil.NewDiscovery("mymaster",
//	    vigil.WithSentinelAddrs(resp.DefaultOptions(), resp.DefaultOptions(),
//	        vigil.NewAddress("10.0.0.1", 26379),
//	        vigil.NewAddress("10.0.0.2", 26379),
//	        vigil.NewAddress("10.0.0.3", 26379),
//	    ),
//	    vigil.WithBackoff(backoff),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	client, err := vigil.NewHAClient(discovery)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Set(ctx, "greeting", "hello", 0)
//
// # Failover Behavior
//
// The client trusts one node at a time and discovers it lazily:
//
//   - READONLY reply: the master was demoted. The client discovers the new
//     master and retries the command once.
//   - Connection failure: the node is gone. With RequireWritable the error
//     is returned, because a write may or may not have been applied. With
//     PreferWritable or ReadOnly the client discovers a slave and retries once.
//   - Any other error reply is returned unchanged.
//
// # Error Handling
//
// Vigil uses standard Go errors. Sentinel errors classify failures and
// carrier types hold the details:
//
//	node, err := discovery.Master(ctx)
//	if err != nil {
//	    var discErr *types.DiscoveryError
//	    if errors.As(err, &discErr) {
//	        log.Printf("gave up after %d passes", discErr.Passes)
//	        for _, failure := range discErr.Failures() {
//	            log.Printf("  %v", failure)
//	        }
//	    }
//	}
//
// # Sentinel Errors
//
//   - types.ErrConfiguration: Invalid configuration (no sentinels, blank name)
//   - types.ErrConnection: A node or sentinel could not be reached
//   - types.ErrSentinelUnavailable: A sentinel could not resolve the node
//   - types.ErrRoleMismatch: A resolved node reported an unexpected role
//   - types.ErrReadOnly: A write was rejected by a read-only node
//   - types.ErrProtocol: The server sent a malformed reply
//   - types.ErrAllSentinelsUnreachable: Discovery gave up
//   - types.ErrClientClosed: Operation attempted on a closed client
//
// # Thread Safety
//
// HAClient and Discovery are safe for concurrent use. Discover calls on one
// Discovery are serialized; a single connection handle serializes the
// commands sent over it.
//
// # Observability
//
// Both Discovery and HAClient accept a structured logger and a metrics
// collector. See contrib/logging/zaplog and contrib/metrics/vm.
package vigil
