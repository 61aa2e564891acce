package events

import (
	"time"

	"github.com/tinylib/msgp/msgp"

	"github.com/arloliu/vigil/types"
)

// failoverMessage is the MessagePack wire format of a failover event.
//
// Encoded as a map so fields can be added without breaking older readers;
// unknown keys are skipped on decode.
type failoverMessage struct {
	ID         string `msg:"id"`
	ReplicaSet string `msg:"replica_set"`
	From       string `msg:"from"`
	To         string `msg:"to"`
	Reason     string `msg:"reason"`
	Tolerance  int    `msg:"tolerance"`
	Timestamp  int64  `msg:"timestamp"`
}

var (
	_ msgp.Marshaler   = (*failoverMessage)(nil)
	_ msgp.Unmarshaler = (*failoverMessage)(nil)
	_ msgp.Sizer       = (*failoverMessage)(nil)
)

const failoverMessageFields = 7

func newFailoverMessage(event types.FailoverEvent) failoverMessage {
	msg := failoverMessage{
		ID:         event.ID,
		ReplicaSet: event.ReplicaSet,
		Reason:     string(event.Reason),
		Tolerance:  int(event.Tolerance),
		Timestamp:  event.Timestamp.UnixNano(),
	}
	if !event.From.IsZero() {
		msg.From = event.From.String()
	}
	if !event.To.IsZero() {
		msg.To = event.To.String()
	}

	return msg
}

// event converts the message back. Addresses that fail to parse are left zero.
func (m *failoverMessage) event() types.FailoverEvent {
	event := types.FailoverEvent{
		ID:         m.ID,
		ReplicaSet: m.ReplicaSet,
		Reason:     types.FailoverReason(m.Reason),
		Tolerance:  types.Tolerance(m.Tolerance),
		Timestamp:  time.Unix(0, m.Timestamp),
	}
	if m.From != "" {
		event.From, _ = types.ParseAddress(m.From)
	}
	if m.To != "" {
		event.To, _ = types.ParseAddress(m.To)
	}

	return event
}

// MarshalMsg implements msgp.Marshaler.
func (m *failoverMessage) MarshalMsg(b []byte) ([]byte, error) {
	o := msgp.Require(b, m.Msgsize())
	o = msgp.AppendMapHeader(o, failoverMessageFields)

	o = msgp.AppendString(o, "id")
	if u, ok := ParseUUID(m.ID); ok {
		var err error
		if o, err = msgp.AppendExtension(o, &u); err != nil {
			return b, msgp.WrapError(err, "ID")
		}
	} else {
		o = msgp.AppendString(o, m.ID)
	}

	o = msgp.AppendString(o, "replica_set")
	o = msgp.AppendString(o, m.ReplicaSet)
	o = msgp.AppendString(o, "from")
	o = msgp.AppendString(o, m.From)
	o = msgp.AppendString(o, "to")
	o = msgp.AppendString(o, m.To)
	o = msgp.AppendString(o, "reason")
	o = msgp.AppendString(o, m.Reason)
	o = msgp.AppendString(o, "tolerance")
	o = msgp.AppendInt(o, m.Tolerance)
	o = msgp.AppendString(o, "timestamp")
	o = msgp.AppendInt64(o, m.Timestamp)

	return o, nil
}

// UnmarshalMsg implements msgp.Unmarshaler.
func (m *failoverMessage) UnmarshalMsg(bts []byte) ([]byte, error) {
	sz, bts, err := msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		return bts, err
	}

	for range sz {
		var field []byte
		field, bts, err = msgp.ReadMapKeyZC(bts)
		if err != nil {
			return bts, err
		}

		switch msgp.UnsafeString(field) {
		case "id":
			if msgp.NextType(bts) == msgp.ExtensionType {
				var u UUID
				bts, err = msgp.ReadExtensionBytes(bts, &u)
				m.ID = u.String()
			} else {
				m.ID, bts, err = msgp.ReadStringBytes(bts)
			}
		case "replica_set":
			m.ReplicaSet, bts, err = msgp.ReadStringBytes(bts)
		case "from":
			m.From, bts, err = msgp.ReadStringBytes(bts)
		case "to":
			m.To, bts, err = msgp.ReadStringBytes(bts)
		case "reason":
			m.Reason, bts, err = msgp.ReadStringBytes(bts)
		case "tolerance":
			m.Tolerance, bts, err = msgp.ReadIntBytes(bts)
		case "timestamp":
			m.Timestamp, bts, err = msgp.ReadInt64Bytes(bts)
		default:
			bts, err = msgp.Skip(bts)
		}
		if err != nil {
			return bts, msgp.WrapError(err, string(field))
		}
	}

	return bts, nil
}

// Msgsize returns an upper bound of the encoded size.
func (m *failoverMessage) Msgsize() int {
	return msgp.MapHeaderSize +
		3 + msgp.StringPrefixSize + len(m.ID) +
		12 + msgp.StringPrefixSize + len(m.ReplicaSet) +
		5 + msgp.StringPrefixSize + len(m.From) +
		3 + msgp.StringPrefixSize + len(m.To) +
		7 + msgp.StringPrefixSize + len(m.Reason) +
		10 + msgp.IntSize +
		10 + msgp.Int64Size
}

// Encode serializes a failover event to MessagePack.
//
// Parameters:
//   - event: The event to encode
//
// Returns:
//   - []byte: The encoded message
//   - error: Encoding errors
func Encode(event types.FailoverEvent) ([]byte, error) {
	msg := newFailoverMessage(event)

	return msg.MarshalMsg(nil)
}

// Decode parses a failover event published by NATS.Publish.
//
// Parameters:
//   - data: The message payload
//
// Returns:
//   - types.FailoverEvent: The decoded event
//   - error: msgp errors for malformed payloads
func Decode(data []byte) (types.FailoverEvent, error) {
	var msg failoverMessage
	if _, err := msg.UnmarshalMsg(data); err != nil {
		return types.FailoverEvent{}, err
	}

	return msg.event(), nil
}
