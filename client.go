package vigil

import "github.com/arloliu/vigil/types"

// Type aliases for convenience - re-export from types package.
type (
	Address          = types.Address
	Role             = types.Role
	RoleInfo         = types.RoleInfo
	ReplicaInfo      = types.ReplicaInfo
	Tolerance        = types.Tolerance
	FailoverEvent    = types.FailoverEvent
	FailoverReason   = types.FailoverReason
	SentinelUpdate   = types.SentinelUpdate
	Logger           = types.Logger
	MetricsCollector = types.MetricsCollector
)

// Re-export role constants for convenience.
const (
	RoleUnknown  = types.RoleUnknown
	RoleMaster   = types.RoleMaster
	RoleSlave    = types.RoleSlave
	RoleSentinel = types.RoleSentinel
)

// Re-export tolerance constants for convenience.
const (
	RequireWritable = types.RequireWritable
	PreferWritable  = types.PreferWritable
	ReadOnly        = types.ReadOnly
)

// Re-export failover reasons for convenience.
const (
	ReasonInitial    = types.ReasonInitial
	ReasonReadOnly   = types.ReasonReadOnly
	ReasonConnection = types.ReasonConnection
)

// Re-export sentinel errors for convenience.
var (
	ErrConfiguration           = types.ErrConfiguration
	ErrConnection              = types.ErrConnection
	ErrSentinelUnavailable     = types.ErrSentinelUnavailable
	ErrRoleMismatch            = types.ErrRoleMismatch
	ErrReadOnly                = types.ErrReadOnly
	ErrProtocol                = types.ErrProtocol
	ErrAllSentinelsUnreachable = types.ErrAllSentinelsUnreachable
	ErrCommandUnsupported      = types.ErrCommandUnsupported
	ErrClientClosed            = types.ErrClientClosed
	ErrNilDiscoverer           = types.ErrNilDiscoverer
)

// NewAddress creates an Address. See types.NewAddress.
func NewAddress(host string, port int) Address {
	return types.NewAddress(host, port)
}

// ParseAddress parses "host:port". See types.ParseAddress.
func ParseAddress(s string) (Address, error) {
	return types.ParseAddress(s)
}
