package resp

import (
	"strconv"
	"strings"

	"github.com/arloliu/vigil/types"
)

// Kind identifies the type of a Reply.
type Kind uint8

// Reply kinds, one per type byte of the protocol.
const (
	KindStatus  Kind = iota + 1 // '+'
	KindError                   // '-'
	KindInteger                 // ':'
	KindBulk                    // '$'
	KindArray                   // '*'
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindStatus:
		return "status"
	case KindError:
		return "error"
	case KindInteger:
		return "integer"
	case KindBulk:
		return "bulk"
	case KindArray:
		return "array"
	default:
		return "invalid"
	}
}

// Reply is one decoded protocol reply.
//
// Only the fields relevant to Kind are set:
//   - KindStatus, KindError, KindInteger: Str holds the line payload
//   - KindBulk: Bulk holds the bytes, Null marks "$-1"
//   - KindArray: Array holds the elements, Null marks "*-1"
type Reply struct {
	Kind  Kind
	Str   string
	Bulk  []byte
	Array []Reply
	Null  bool
}

// StatusReply creates a status reply.
func StatusReply(s string) Reply { return Reply{Kind: KindStatus, Str: s} }

// ErrorReply creates an error reply.
func ErrorReply(msg string) Reply { return Reply{Kind: KindError, Str: msg} }

// IntegerReply creates an integer reply from its decimal text.
func IntegerReply(s string) Reply { return Reply{Kind: KindInteger, Str: s} }

// BulkReply creates a bulk reply.
func BulkReply(b []byte) Reply { return Reply{Kind: KindBulk, Bulk: b} }

// NullBulkReply creates a null bulk reply.
func NullBulkReply() Reply { return Reply{Kind: KindBulk, Null: true} }

// ArrayReply creates an array reply.
func ArrayReply(elems ...Reply) Reply {
	if elems == nil {
		elems = []Reply{}
	}

	return Reply{Kind: KindArray, Array: elems}
}

// NullArrayReply creates a null array reply.
func NullArrayReply() Reply { return Reply{Kind: KindArray, Null: true} }

// IsNull reports whether the reply is a null bulk or null array.
func (r Reply) IsNull() bool {
	return r.Null
}

// OK reports whether the reply is a status reply. Status replies are
// truthy; the text ("OK", "PONG", ...) is kept in Str.
func (r Reply) OK() bool {
	return r.Kind == KindStatus
}

// Err returns the error carried by an error reply, or nil.
func (r Reply) Err() error {
	if r.Kind != KindError {
		return nil
	}

	return &types.CommandError{Message: r.Str}
}

// Text returns the reply as a string.
//
// Status, error, integer and non-null bulk replies have a text form.
func (r Reply) Text() (string, bool) {
	switch r.Kind {
	case KindStatus, KindError, KindInteger:
		return r.Str, true
	case KindBulk:
		if r.Null {
			return "", false
		}

		return string(r.Bulk), true
	default:
		return "", false
	}
}

// Int64 parses an integer or numeric bulk reply.
func (r Reply) Int64() (int64, error) {
	s, ok := r.Text()
	if !ok {
		return 0, &types.ProtocolError{Reason: "expected integer, got " + r.Kind.String()}
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, &types.ProtocolError{Reason: "invalid integer " + strconv.Quote(s)}
	}

	return n, nil
}

// Len returns the number of elements of an array reply.
func (r Reply) Len() int {
	return len(r.Array)
}

// Strings returns the text of every element of an array reply.
//
// Null elements become empty strings.
func (r Reply) Strings() ([]string, error) {
	if r.Kind != KindArray {
		return nil, &types.ProtocolError{Reason: "expected array, got " + r.Kind.String()}
	}

	out := make([]string, len(r.Array))
	for i, elem := range r.Array {
		s, ok := elem.Text()
		if !ok && !elem.Null {
			return nil, &types.ProtocolError{Reason: "array element " + strconv.Itoa(i) + " is " + elem.Kind.String()}
		}
		out[i] = s
	}

	return out, nil
}

// String renders the reply for logs and test failures.
func (r Reply) String() string {
	var b strings.Builder
	r.format(&b)

	return b.String()
}

func (r Reply) format(b *strings.Builder) {
	switch r.Kind {
	case KindStatus:
		b.WriteString("+" + r.Str)
	case KindError:
		b.WriteString("-" + r.Str)
	case KindInteger:
		b.WriteString(":" + r.Str)
	case KindBulk:
		if r.Null {
			b.WriteString("(nil)")
			return
		}
		b.WriteString(strconv.Quote(string(r.Bulk)))
	case KindArray:
		if r.Null {
			b.WriteString("(nil array)")
			return
		}
		b.WriteByte('[')
		for i, elem := range r.Array {
			if i > 0 {
				b.WriteString(", ")
			}
			elem.format(b)
		}
		b.WriteByte(']')
	default:
		b.WriteString("(invalid)")
	}
}
