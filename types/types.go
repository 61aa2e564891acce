// Package types provides shared types and errors for the vigil library.
//
// This is a "leaf" package with no imports from other vigil packages,
// allowing it to be imported by any package without causing import cycles.
package types

import (
	"net"
	"strconv"
	"strings"
	"time"
)

// Address identifies a node by host and port.
//
// Address values are immutable and comparable, so they can be used as map keys.
type Address struct {
	Host string
	Port int
}

// NewAddress creates an Address from a host and port.
func NewAddress(host string, port int) Address {
	return Address{Host: host, Port: port}
}

// ParseAddress parses a "host:port" string into an Address.
//
// IPv6 hosts must be bracketed ("[::1]:6379").
//
// Parameters:
//   - s: The address string
//
// Returns:
//   - Address: The parsed address
//   - error: ErrConfiguration if the string is not a valid host:port pair
func ParseAddress(s string) (Address, error) {
	host, portStr, err := net.SplitHostPort(strings.TrimSpace(s))
	if err != nil {
		return Address{}, &ConfigError{Field: "address", Reason: err.Error()}
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return Address{}, &ConfigError{Field: "address", Reason: "invalid port " + strconv.Quote(portStr)}
	}

	if host == "" {
		return Address{}, &ConfigError{Field: "address", Reason: "empty host"}
	}

	return Address{Host: host, Port: port}, nil
}

// String returns the "host:port" form of the address.
func (a Address) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool {
	return a.Host == "" && a.Port == 0
}

// Role is the replication role reported by a node.
type Role string

// Roles reported by the ROLE command.
const (
	RoleUnknown  Role = ""
	RoleMaster   Role = "master"
	RoleSlave    Role = "slave"
	RoleSentinel Role = "sentinel"
)

// String returns the string representation of the Role.
func (r Role) String() string {
	if r == RoleUnknown {
		return "unknown"
	}

	return string(r)
}

// ParseRole normalizes a ROLE reply tag.
//
// "replica" is accepted as a synonym for "slave".
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "master":
		return RoleMaster
	case "slave", "replica":
		return RoleSlave
	case "sentinel":
		return RoleSentinel
	default:
		return RoleUnknown
	}
}

// Tolerance describes which node roles a caller accepts.
type Tolerance int

const (
	// RequireWritable only accepts a master.
	RequireWritable Tolerance = iota
	// PreferWritable asks for a master first and accepts a slave when the
	// master cannot be reached through a sentinel.
	PreferWritable
	// ReadOnly only accepts a slave.
	ReadOnly
)

// String returns the string representation of the Tolerance.
func (t Tolerance) String() string {
	switch t {
	case RequireWritable:
		return "require-writable"
	case PreferWritable:
		return "prefer-writable"
	case ReadOnly:
		return "read-only"
	default:
		return "tolerance(" + strconv.Itoa(int(t)) + ")"
	}
}

// ParseTolerance parses the string form produced by Tolerance.String.
//
// Returns:
//   - Tolerance: The parsed tolerance
//   - error: ErrConfiguration if the value is not recognized
func ParseTolerance(s string) (Tolerance, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "require-writable", "master", "":
		return RequireWritable, nil
	case "prefer-writable", "any":
		return PreferWritable, nil
	case "read-only", "slave", "replica":
		return ReadOnly, nil
	default:
		return RequireWritable, &ConfigError{Field: "tolerance", Reason: "unknown value " + strconv.Quote(s)}
	}
}

// Accepts reports whether a node with the given role satisfies the tolerance.
func (t Tolerance) Accepts(role Role) bool {
	switch t {
	case RequireWritable:
		return role == RoleMaster
	case PreferWritable:
		return role == RoleMaster || role == RoleSlave
	case ReadOnly:
		return role == RoleSlave
	default:
		return false
	}
}

// RoleInfo is the parsed reply of the ROLE command.
type RoleInfo struct {
	// Role is the node's current role.
	Role Role

	// ReplicationOffset is the master offset (masters) or the processed
	// offset (slaves).
	ReplicationOffset int64

	// MasterAddr is the master a slave replicates from. Slaves only.
	MasterAddr Address

	// LinkState is the replication link state ("connected", "connecting",
	// "sync", ...). Slaves only.
	LinkState string

	// Replicas lists connected replicas. Masters only.
	Replicas []Address

	// MonitoredMasters lists the replica set names watched by a sentinel.
	MonitoredMasters []string
}

// ReplicaInfo describes one slave as reported by "SENTINEL slaves".
//
// Sentinel replies with a flat list of field/value pairs per slave; the
// pairs are kept verbatim.
type ReplicaInfo map[string]string

// Address returns the slave's announced address.
func (r ReplicaInfo) Address() (Address, bool) {
	host := r["ip"]
	port, err := strconv.Atoi(r["port"])
	if host == "" || err != nil || port <= 0 {
		return Address{}, false
	}

	return Address{Host: host, Port: port}, true
}

// Flags returns the comma separated flags field split into its parts.
func (r ReplicaInfo) Flags() []string {
	raw := r["flags"]
	if raw == "" {
		return nil
	}

	return strings.Split(raw, ",")
}

// Healthy reports whether sentinel considers the slave usable.
//
// A slave flagged s_down, o_down or disconnected is not healthy.
func (r ReplicaInfo) Healthy() bool {
	for _, f := range r.Flags() {
		switch f {
		case "s_down", "o_down", "disconnected":
			return false
		}
	}

	return true
}

// FailoverReason explains why the trusted node changed.
type FailoverReason string

// Failover reasons.
const (
	ReasonInitial    FailoverReason = "initial"
	ReasonReadOnly   FailoverReason = "read-only"
	ReasonConnection FailoverReason = "connection"
)

// FailoverEvent records a change of the node trusted by a high-availability client.
type FailoverEvent struct {
	// ID uniquely identifies the event.
	ID string

	// ReplicaSet is the name of the monitored replica set.
	ReplicaSet string

	// From is the previously trusted node. Zero for the initial discovery.
	From Address

	// To is the newly trusted node.
	To Address

	// Reason is why the change happened.
	Reason FailoverReason

	// Tolerance is the tolerance the new node was discovered with.
	Tolerance Tolerance

	// Timestamp is when the new node was trusted.
	Timestamp time.Time
}

// SentinelUpdate carries a new sentinel set for a replica set.
type SentinelUpdate struct {
	// ReplicaSet is the replica set the sentinels monitor. Empty matches any.
	ReplicaSet string

	// Sentinels is the complete, ordered sentinel list. It replaces the
	// previous list wholesale.
	Sentinels []Address
}
