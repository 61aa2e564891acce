// Package resp implements the wire protocol client used by vigil.
//
// A Conn owns one TCP connection to a server or sentinel. The connection is
// opened lazily, authenticated and switched to the configured database, and
// then used to send commands framed as arrays of bulk strings:
//
//	*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n
//
// Replies are decoded recursively into a Reply, a tagged union that mirrors
// the wire framing exactly (status, error, integer, bulk, array; bulk and
// array may be null). Integers are kept as decimal text so 64-bit values
// never lose precision.
//
// # Sentinel Inspection
//
// Conn also exposes the commands the discovery engine interprets:
//
//	addr, ok, err := conn.SentinelGetMaster(ctx, "mymaster")
//	slaves, err := conn.SentinelSlaves(ctx, "mymaster")
//	role, err := conn.Role(ctx)
//
// Any other command goes through Execute and is not validated.
//
// # Errors
//
// Socket faults are reported as *types.ConnectionError, malformed framing as
// *types.ProtocolError and error replies as *types.CommandError. After a
// socket fault or a framing error the connection is dropped and the next
// call reconnects.
package resp
