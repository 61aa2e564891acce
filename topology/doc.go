// Package topology provides sentinel set monitoring for dynamic discovery.
//
// Vigil can use a NATS Key-Value store to broadcast the sentinel set of a
// replica set to all connected clients. This lets operations teams add,
// replace or decommission sentinels without restarting applications.
//
// # Overview
//
// The topology package provides implementations of the
// [vigil.SentinelWatcher] interface. A watcher emits [types.SentinelUpdate]
// events carrying the complete, ordered sentinel list; the client's
// Discovery replaces its sentinel set wholesale on every update.
//
// # NATS Topology
//
// [NATS] watches a NATS KV bucket for the sentinel set:
//
//	nc, _ := nats.Connect("nats://localhost:4222")
//	js, _ := jetstream.New(nc)
//	kv, _ := js.KeyValue(ctx, "vigil-config")
//
//	watcher, _ := topology.NewNATS(kv,
//	    topology.WithKey("sentinels.mymaster"), // custom key
//	)
//
//	client, _ := vigil.NewHAClient(discovery,
//	    vigil.WithSentinelWatcher(watcher),
//	)
//
// # Sentinel Configuration Format
//
// The NATS KV value is a JSON object listing sentinels in probe order:
//
//	{
//	    "replicaSet": "mymaster",
//	    "sentinels": ["10.0.0.1:26379", "10.0.0.2:26379"]
//	}
//
// An empty replicaSet applies the list to every client watching the key.
//
// # Lifecycle
//
// Deleting the key, storing an empty list or storing invalid JSON does not
// clear the sentinel set. Clients keep the last known set, because a client
// without sentinels cannot discover anything.
//
// # Local Topology
//
// [Local] provides an in-memory implementation for testing:
//
//	local := topology.NewLocal()
//	_ = local.SetSentinels(ctx, "mymaster", []types.Address{
//	    types.NewAddress("10.0.0.1", 26379),
//	})
package topology
