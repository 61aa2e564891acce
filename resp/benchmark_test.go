package resp

import (
	"bytes"
	"strings"
	"testing"

	"github.com/arloliu/vigil/test/testutil"
)

// =============================================================================
// Codec Benchmarks
// =============================================================================

func BenchmarkAppendCommand(b *testing.B) {
	value := []byte(strings.Repeat("v", 256))
	buf := make([]byte, 0, 512)

	b.ReportAllocs()
	for b.Loop() {
		var err error
		buf, err = AppendCommand(buf[:0], "SET", "user:1000", value, 3600)
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkReadReply(b *testing.B) {
	benchmarks := []struct {
		name  string
		input string
	}{
		{"Status", "+OK\r\n"},
		{"Bulk", "$256\r\n" + strings.Repeat("v", 256) + "\r\n"},
		{"Array", "*3\r\n$6\r\nmaster\r\n:1024\r\n*0\r\n"},
	}

	for _, bm := range benchmarks {
		b.Run(bm.name, func(b *testing.B) {
			data := []byte(bm.input)
			rd := bytes.NewReader(data)

			b.ReportAllocs()
			for b.Loop() {
				rd.Reset(data)
				if _, err := NewReader(rd).ReadReply(); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// =============================================================================
// Round-trip Benchmarks
// =============================================================================

func BenchmarkConn_Execute(b *testing.B) {
	master := testutil.StartFakeMaster(b)
	conn := NewConn(master.Addr(), DefaultOptions())
	defer conn.Close()

	ctx := b.Context()
	if _, err := conn.Execute(ctx, "SET", "k", "v"); err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	for b.Loop() {
		if _, err := conn.Execute(ctx, "GET", "k"); err != nil {
			b.Fatal(err)
		}
	}
}
