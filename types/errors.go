package types

import (
	"errors"
	"strconv"
	"strings"

	"go.uber.org/multierr"
)

// Sentinel errors for the failure classes of the library.
//
// Every concrete error type below matches exactly one of these through
// errors.Is, so callers can classify failures without type assertions.
var (
	// ErrConfiguration indicates invalid configuration: empty replica set
	// name, no sentinels, or a negative back-off parameter. Never retried.
	ErrConfiguration = errors.New("vigil: configuration error")

	// ErrConnection indicates a socket-level fault (dial, DNS, timeout,
	// read/write failure, EOF mid-frame).
	ErrConnection = errors.New("vigil: connection failure")

	// ErrSentinelUnavailable indicates a sentinel answered but could not
	// resolve an address for the requested role.
	ErrSentinelUnavailable = errors.New("vigil: sentinel could not resolve node")

	// ErrRoleMismatch indicates the reached node does not have the requested role.
	ErrRoleMismatch = errors.New("vigil: node role mismatch")

	// ErrReadOnly indicates a write was rejected because the node is not,
	// or is no longer, a master.
	ErrReadOnly = errors.New("vigil: write rejected by read-only node")

	// ErrProtocol indicates malformed framing on the wire. Not retried.
	ErrProtocol = errors.New("vigil: protocol error")

	// ErrAllSentinelsUnreachable indicates the discovery retry budget is
	// exhausted without finding a node of the requested role.
	ErrAllSentinelsUnreachable = errors.New("vigil: all sentinels are unreachable")

	// ErrCommandUnsupported indicates the server does not support ROLE
	// (servers older than 2.8).
	ErrCommandUnsupported = errors.New("vigil: ROLE command not supported by server")

	// ErrClientClosed indicates an operation was attempted on a closed client.
	ErrClientClosed = errors.New("vigil: client is closed")

	// ErrNilDiscoverer indicates that a nil discoverer was provided.
	ErrNilDiscoverer = errors.New("vigil: discoverer cannot be nil")
)

// ConfigError describes an invalid configuration value.
type ConfigError struct {
	// Field names the offending setting.
	Field string

	// Reason describes what is wrong with it.
	Reason string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "vigil: invalid " + e.Field + ": " + e.Reason
}

// Unwrap returns ErrConfiguration for errors.Is compatibility.
func (e *ConfigError) Unwrap() error {
	return ErrConfiguration
}

// ConnectionError wraps a socket-level fault on a specific node.
type ConnectionError struct {
	// Addr is the node address.
	Addr Address

	// Op is the failed operation ("dial", "write", "read").
	Op string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	msg := "vigil: " + e.Op + " " + e.Addr.String() + " failed"
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}

	return msg
}

// Unwrap returns ErrConnection and the cause for errors.Is/As compatibility.
func (e *ConnectionError) Unwrap() []error {
	return []error{ErrConnection, e.Cause}
}

// SentinelError reports a sentinel that could not resolve a node address.
type SentinelError struct {
	// Addr is the sentinel address.
	Addr Address

	// ReplicaSet is the replica set that was asked for.
	ReplicaSet string

	// Reason describes why resolution failed.
	Reason string

	// Cause is an optional underlying error (e.g. a command error reply).
	Cause error
}

// Error implements the error interface.
func (e *SentinelError) Error() string {
	msg := "vigil: sentinel " + e.Addr.String() + " cannot resolve " + strconv.Quote(e.ReplicaSet) + ": " + e.Reason
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}

	return msg
}

// Unwrap returns ErrSentinelUnavailable and the cause.
func (e *SentinelError) Unwrap() []error {
	return []error{ErrSentinelUnavailable, e.Cause}
}

// RoleMismatchError reports a node whose role does not satisfy the request.
type RoleMismatchError struct {
	Addr Address
	Want Tolerance
	Got  Role
}

// Error implements the error interface.
func (e *RoleMismatchError) Error() string {
	return "vigil: node " + e.Addr.String() + " has role " + e.Got.String() + ", want " + e.Want.String()
}

// Unwrap returns ErrRoleMismatch.
func (e *RoleMismatchError) Unwrap() error {
	return ErrRoleMismatch
}

// CommandError is an error reply ("-...") returned by the server.
//
// Replies whose message starts with READONLY also match ErrReadOnly.
type CommandError struct {
	// Message is the reply text without the leading '-'.
	Message string
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	return "vigil: server error: " + e.Message
}

// Is reports whether the command error matches target.
func (e *CommandError) Is(target error) bool {
	return target == ErrReadOnly && e.IsReadOnly()
}

// Prefix returns the error code, the first word of the message ("ERR", "READONLY", ...).
func (e *CommandError) Prefix() string {
	prefix, _, _ := strings.Cut(e.Message, " ")
	return prefix
}

// IsReadOnly reports whether the server rejected a write because it is a replica.
func (e *CommandError) IsReadOnly() bool {
	return e.Prefix() == "READONLY"
}

// ProtocolError reports malformed framing.
type ProtocolError struct {
	// Reason describes the violation.
	Reason string
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	return "vigil: protocol error: " + e.Reason
}

// Unwrap returns ErrProtocol.
func (e *ProtocolError) Unwrap() error {
	return ErrProtocol
}

// DiscoveryError is returned when discovery exhausts its retry budget.
type DiscoveryError struct {
	// ReplicaSet is the replica set being discovered.
	ReplicaSet string

	// Tolerance is the requested tolerance.
	Tolerance Tolerance

	// Passes is the number of complete passes over the sentinel list.
	Passes int

	// Cause aggregates the per-sentinel failures of the last pass.
	Cause error
}

// Error implements the error interface.
func (e *DiscoveryError) Error() string {
	msg := "vigil: all sentinels are unreachable for " + strconv.Quote(e.ReplicaSet) +
		" (" + e.Tolerance.String() + ", " + strconv.Itoa(e.Passes) + " passes)"
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}

	return msg
}

// Unwrap returns ErrAllSentinelsUnreachable.
//
// The per-sentinel failures are not part of the chain: a terminal
// discovery failure must not match ErrConnection or any other class the
// discovery loop absorbs. Use Failures to inspect them.
func (e *DiscoveryError) Unwrap() error {
	return ErrAllSentinelsUnreachable
}

// Failures returns the per-sentinel failures of the last pass, in the
// order the sentinels were tried. It returns nil when there is no cause.
func (e *DiscoveryError) Failures() []error {
	return multierr.Errors(e.Cause)
}

// IsTransient reports whether err belongs to a failure class the discovery
// loop absorbs by moving on to the next sentinel.
func IsTransient(err error) bool {
	return errors.Is(err, ErrConnection) ||
		errors.Is(err, ErrSentinelUnavailable) ||
		errors.Is(err, ErrRoleMismatch) ||
		errors.Is(err, ErrCommandUnsupported)
}
