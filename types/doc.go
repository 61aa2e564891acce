// Package types provides shared types and error definitions for the vigil library.
//
// This is a leaf package with zero vigil imports to prevent import cycles.
// All packages in vigil can safely import this package.
//
// # Types
//
// Address identifies a node, Role is a node's replication role and Tolerance
// is what a caller is willing to accept:
//
//	const (
//	    RequireWritable Tolerance = iota // master only
//	    PreferWritable                   // master, else slave
//	    ReadOnly                         // slave only
//	)
//
// # Errors
//
// Sentinel errors classify every failure the library reports:
//
//   - ErrConfiguration: invalid configuration, never retried
//   - ErrConnection: socket-level fault
//   - ErrSentinelUnavailable: sentinel answered without an address
//   - ErrRoleMismatch: reached node has the wrong role
//   - ErrReadOnly: write rejected by a non-master
//   - ErrProtocol: malformed framing
//   - ErrAllSentinelsUnreachable: discovery budget exhausted
//
// Concrete error types (ConnectionError, SentinelError, CommandError, ...)
// carry details and unwrap to their sentinel:
//
//	var connErr *types.ConnectionError
//	if errors.As(err, &connErr) {
//	    log.Printf("node %s failed during %s", connErr.Addr, connErr.Op)
//	}
package types
