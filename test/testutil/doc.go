// Package testutil provides test servers and helpers for vigil testing.
//
// # Fake Servers
//
// The package runs in-process servers speaking the wire protocol, built on
// redcon, so clients can be exercised over real TCP connections:
//
//   - [FakeServer]: A bare server with per-command handlers
//   - [FakeNode]: A data node reporting the master or slave role
//   - [FakeSentinel]: A sentinel answering for one replica set
//
// # Usage
//
//	master := testutil.StartFakeMaster(t)
//	sentinel := testutil.StartFakeSentinel(t, "mymaster", master.Addr())
//
//	discovery, _ := vigil.NewDiscovery("mymaster",
//	    vigil.WithSentinelAddrs(resp.DefaultOptions(), resp.DefaultOptions(), sentinel.Addr()),
//	)
//
// # Other Helpers
//
//   - [TestMetricsCollector]: Records every metric call for assertions
//   - [StartEmbeddedNATS]: Starts an embedded NATS server with JetStream
//   - [CreateKV]: Creates a JetStream KV bucket
//   - [StartRedis]: Starts a Redis container for integration tests
package testutil
