package resp

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/tidwall/redcon"

	"github.com/arloliu/vigil/types"
)

const (
	// maxBulkLen matches the server's proto-max-bulk-len default.
	maxBulkLen = 512 * 1024 * 1024
	// maxArrayLen bounds the preallocation of array replies.
	maxArrayLen = 1 << 24
)

// AppendCommand appends the wire encoding of a command to buf.
//
// The command name and every argument are sent as bulk strings inside one
// array of 1+len(args) elements.
//
// Supported argument types: string, []byte, all integer types, float32,
// float64, bool (encoded as 1/0), time.Duration (milliseconds) and
// fmt.Stringer.
//
// Parameters:
//   - buf: Destination buffer (may be nil)
//   - name: Command name
//   - args: Command arguments
//
// Returns:
//   - []byte: The extended buffer
//   - error: ProtocolError for an unsupported argument type
func AppendCommand(buf []byte, name string, args ...any) ([]byte, error) {
	buf = redcon.AppendArray(buf, 1+len(args))
	buf = redcon.AppendBulkString(buf, name)

	for i, arg := range args {
		var err error
		buf, err = appendArg(buf, arg)
		if err != nil {
			return nil, &types.ProtocolError{Reason: fmt.Sprintf("argument %d of %s: %v", i, name, err)}
		}
	}

	return buf, nil
}

func appendArg(buf []byte, arg any) ([]byte, error) {
	switch v := arg.(type) {
	case string:
		return redcon.AppendBulkString(buf, v), nil
	case []byte:
		return redcon.AppendBulk(buf, v), nil
	case int:
		return redcon.AppendBulkInt(buf, int64(v)), nil
	case int8:
		return redcon.AppendBulkInt(buf, int64(v)), nil
	case int16:
		return redcon.AppendBulkInt(buf, int64(v)), nil
	case int32:
		return redcon.AppendBulkInt(buf, int64(v)), nil
	case int64:
		return redcon.AppendBulkInt(buf, v), nil
	case uint:
		return redcon.AppendBulkUint(buf, uint64(v)), nil
	case uint8:
		return redcon.AppendBulkUint(buf, uint64(v)), nil
	case uint16:
		return redcon.AppendBulkUint(buf, uint64(v)), nil
	case uint32:
		return redcon.AppendBulkUint(buf, uint64(v)), nil
	case uint64:
		return redcon.AppendBulkUint(buf, v), nil
	case float32:
		return redcon.AppendBulkString(buf, strconv.FormatFloat(float64(v), 'f', -1, 32)), nil
	case float64:
		return redcon.AppendBulkFloat(buf, v), nil
	case bool:
		if v {
			return redcon.AppendBulkString(buf, "1"), nil
		}
		return redcon.AppendBulkString(buf, "0"), nil
	case time.Duration:
		return redcon.AppendBulkInt(buf, v.Milliseconds()), nil
	case fmt.Stringer:
		return redcon.AppendBulkString(buf, v.String()), nil
	case nil:
		return nil, fmt.Errorf("nil argument")
	default:
		return nil, fmt.Errorf("unsupported type %T", arg)
	}
}

// Reader decodes replies from a buffered stream.
type Reader struct {
	br *bufio.Reader
}

// NewReader creates a Reader on top of r.
//
// If r is already a *bufio.Reader it is used as is.
func NewReader(r io.Reader) *Reader {
	if br, ok := r.(*bufio.Reader); ok {
		return &Reader{br: br}
	}

	return &Reader{br: bufio.NewReader(r)}
}

// ReadReply decodes exactly one reply, recursing into arrays.
//
// Returns:
//   - Reply: The decoded reply; error replies are returned as KindError
//   - error: an io error from the stream (io.EOF, io.ErrUnexpectedEOF,
//     net errors) or a *types.ProtocolError for malformed framing
func (r *Reader) ReadReply() (Reply, error) {
	line, err := r.readLine()
	if err != nil {
		return Reply{}, err
	}

	if len(line) == 0 {
		return Reply{}, &types.ProtocolError{Reason: "empty reply line"}
	}

	payload := string(line[1:])
	switch line[0] {
	case '+':
		return StatusReply(payload), nil
	case '-':
		return ErrorReply(payload), nil
	case ':':
		if _, err := strconv.ParseInt(payload, 10, 64); err != nil {
			return Reply{}, &types.ProtocolError{Reason: "invalid integer reply " + strconv.Quote(payload)}
		}

		return IntegerReply(payload), nil
	case '$':
		return r.readBulk(payload)
	case '*':
		return r.readArray(payload)
	default:
		return Reply{}, &types.ProtocolError{Reason: fmt.Sprintf("unknown reply type byte %q", line[0])}
	}
}

func (r *Reader) readBulk(header string) (Reply, error) {
	n, err := parseLength(header, maxBulkLen)
	if err != nil {
		return Reply{}, err
	}
	if n < 0 {
		return NullBulkReply(), nil
	}

	data := make([]byte, n+2)
	if _, err := io.ReadFull(r.br, data); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}

		return Reply{}, err
	}

	if data[n] != '\r' || data[n+1] != '\n' {
		return Reply{}, &types.ProtocolError{Reason: "bulk reply of " + strconv.Itoa(n) + " bytes not terminated by CRLF"}
	}

	return BulkReply(data[:n:n]), nil
}

func (r *Reader) readArray(header string) (Reply, error) {
	n, err := parseLength(header, maxArrayLen)
	if err != nil {
		return Reply{}, err
	}
	if n < 0 {
		return NullArrayReply(), nil
	}

	elems := make([]Reply, 0, n)
	for range n {
		elem, err := r.ReadReply()
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}

			return Reply{}, err
		}
		elems = append(elems, elem)
	}

	return ArrayReply(elems...), nil
}

// readLine reads one CRLF terminated line without the terminator.
func (r *Reader) readLine() ([]byte, error) {
	line, err := r.br.ReadSlice('\n')
	if err == bufio.ErrBufferFull {
		// Long status or error lines do not fit the buffer; assemble them.
		buf := append([]byte(nil), line...)
		for err == bufio.ErrBufferFull {
			line, err = r.br.ReadSlice('\n')
			buf = append(buf, line...)
		}
		line = buf
	}
	if err != nil {
		if err == io.EOF && len(line) > 0 {
			err = io.ErrUnexpectedEOF
		}

		return nil, err
	}

	if len(line) < 2 || line[len(line)-2] != '\r' {
		return nil, &types.ProtocolError{Reason: "line not terminated by CRLF"}
	}

	return line[:len(line)-2], nil
}

func parseLength(s string, limit int) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &types.ProtocolError{Reason: "invalid length " + strconv.Quote(s)}
	}
	if n < -1 || n > limit {
		return 0, &types.ProtocolError{Reason: "length out of range: " + s}
	}

	return n, nil
}
