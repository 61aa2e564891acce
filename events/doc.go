// Package events provides failover event sinks.
//
// An HAClient publishes a [types.FailoverEvent] every time the node it
// trusts changes: on the first discovery, after a READONLY reply and after
// a connection failure. Sinks are best-effort: a failing sink is logged and
// never fails the command that triggered the failover.
//
// # Memory Sink
//
// [Memory] keeps the most recent events in a bounded buffer:
//
//	sink := events.NewMemory(events.WithCapacity(100))
//	client, _ := vigil.NewHAClient(discovery, vigil.WithEventSink(sink))
//
//	for _, e := range sink.Events() {
//	    log.Printf("%s: %s -> %s (%s)", e.ReplicaSet, e.From, e.To, e.Reason)
//	}
//
// # NATS Sink
//
// [NATS] appends events to a JetStream stream, one subject per replica set:
//
//	nc, _ := nats.Connect("nats://localhost:4222")
//	js, _ := jetstream.New(nc)
//	sink, _ := events.NewNATS(js, events.WithSubjectPrefix("prod.failover"))
//
// Events are MessagePack maps. Use [Decode] to read them from any consumer,
// or [NATS.Fetch] for a durable reader.
package events
