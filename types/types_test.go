package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Address
		wantErr bool
	}{
		{name: "ipv4", input: "10.0.0.1:26379", want: Address{Host: "10.0.0.1", Port: 26379}},
		{name: "hostname", input: " redis-0.redis:6379 ", want: Address{Host: "redis-0.redis", Port: 6379}},
		{name: "ipv6", input: "[::1]:6379", want: Address{Host: "::1", Port: 6379}},
		{name: "missing port", input: "localhost", wantErr: true},
		{name: "bad port", input: "localhost:abc", wantErr: true},
		{name: "port out of range", input: "localhost:70000", wantErr: true},
		{name: "empty host", input: ":6379", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAddress(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrConfiguration)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestAddressString(t *testing.T) {
	assert.Equal(t, "10.0.0.1:6379", NewAddress("10.0.0.1", 6379).String())
	assert.Equal(t, "[::1]:6379", NewAddress("::1", 6379).String())
	assert.True(t, Address{}.IsZero())
	assert.False(t, NewAddress("a", 1).IsZero())
}

func TestParseRole(t *testing.T) {
	assert.Equal(t, RoleMaster, ParseRole("master"))
	assert.Equal(t, RoleSlave, ParseRole("slave"))
	assert.Equal(t, RoleSlave, ParseRole("replica"))
	assert.Equal(t, RoleSentinel, ParseRole("SENTINEL"))
	assert.Equal(t, RoleUnknown, ParseRole("leader"))
	assert.Equal(t, "unknown", RoleUnknown.String())
}

func TestToleranceAccepts(t *testing.T) {
	tests := []struct {
		tolerance Tolerance
		role      Role
		want      bool
	}{
		{RequireWritable, RoleMaster, true},
		{RequireWritable, RoleSlave, false},
		{PreferWritable, RoleMaster, true},
		{PreferWritable, RoleSlave, true},
		{PreferWritable, RoleSentinel, false},
		{ReadOnly, RoleSlave, true},
		{ReadOnly, RoleMaster, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.tolerance, tt.role), func(t *testing.T) {
			require.Equal(t, tt.want, tt.tolerance.Accepts(tt.role))
		})
	}
}

func TestParseTolerance(t *testing.T) {
	for _, tol := range []Tolerance{RequireWritable, PreferWritable, ReadOnly} {
		got, err := ParseTolerance(tol.String())
		require.NoError(t, err)
		require.Equal(t, tol, got)
	}

	_, err := ParseTolerance("whatever")
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestReplicaInfo(t *testing.T) {
	info := ReplicaInfo{"ip": "10.0.0.3", "port": "6380", "flags": "slave"}
	addr, ok := info.Address()
	require.True(t, ok)
	require.Equal(t, NewAddress("10.0.0.3", 6380), addr)
	require.True(t, info.Healthy())

	down := ReplicaInfo{"ip": "10.0.0.4", "port": "6380", "flags": "slave,s_down,disconnected"}
	require.Equal(t, []string{"slave", "s_down", "disconnected"}, down.Flags())
	require.False(t, down.Healthy())

	_, ok = ReplicaInfo{"ip": "10.0.0.5"}.Address()
	require.False(t, ok)
}

func TestConnectionError(t *testing.T) {
	cause := errors.New("connection refused")
	err := &ConnectionError{Addr: NewAddress("10.0.0.1", 6379), Op: "dial", Cause: cause}

	assert.Contains(t, err.Error(), "dial 10.0.0.1:6379 failed")
	assert.Contains(t, err.Error(), "connection refused")
	assert.ErrorIs(t, err, ErrConnection)
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsTransient(err))
}

func TestCommandErrorReadOnly(t *testing.T) {
	readOnly := &CommandError{Message: "READONLY You can't write against a read only replica."}
	require.ErrorIs(t, readOnly, ErrReadOnly)
	require.Equal(t, "READONLY", readOnly.Prefix())

	generic := &CommandError{Message: "ERR unknown command 'FOO'"}
	require.NotErrorIs(t, generic, ErrReadOnly)
	require.Equal(t, "ERR", generic.Prefix())
	require.False(t, IsTransient(generic))

	// Wrapping keeps the classification.
	require.ErrorIs(t, fmt.Errorf("set failed: %w", readOnly), ErrReadOnly)
}

func TestDiscoveryError(t *testing.T) {
	cause := &SentinelError{Addr: NewAddress("s1", 26379), ReplicaSet: "mymaster", Reason: "master unknown"}
	err := &DiscoveryError{ReplicaSet: "mymaster", Tolerance: RequireWritable, Passes: 3, Cause: cause}

	assert.Contains(t, err.Error(), `"mymaster"`)
	assert.Contains(t, err.Error(), "3 passes")
	assert.ErrorIs(t, err, ErrAllSentinelsUnreachable)
	assert.NotErrorIs(t, err, ErrSentinelUnavailable)
	assert.Equal(t, []error{cause}, err.Failures())
	assert.False(t, IsTransient(&DiscoveryError{ReplicaSet: "x"}))
	assert.Nil(t, (&DiscoveryError{ReplicaSet: "x"}).Failures())
}

func TestDiscoveryError_ConnectionCauseStaysTerminal(t *testing.T) {
	s1 := &ConnectionError{Addr: NewAddress("s1", 26379), Op: "dial", Cause: errors.New("connection refused")}
	s2 := &SentinelError{Addr: NewAddress("s2", 26379), ReplicaSet: "mymaster", Reason: "master unknown"}
	err := &DiscoveryError{
		ReplicaSet: "mymaster",
		Tolerance:  RequireWritable,
		Passes:     1,
		Cause:      multierr.Combine(s1, s2),
	}

	require.ErrorIs(t, err, ErrAllSentinelsUnreachable)
	assert.NotErrorIs(t, err, ErrConnection)
	assert.NotErrorIs(t, err, ErrSentinelUnavailable)
	assert.False(t, IsTransient(err))
	assert.False(t, IsTransient(fmt.Errorf("discover: %w", err)))
	assert.Contains(t, err.Error(), "connection refused")

	failures := err.Failures()
	require.Len(t, failures, 2)
	assert.ErrorIs(t, failures[0], ErrConnection)
	assert.ErrorIs(t, failures[1], ErrSentinelUnavailable)
}

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		msg  string
	}{
		{name: "configuration", err: ErrConfiguration, msg: "configuration error"},
		{name: "connection", err: ErrConnection, msg: "connection failure"},
		{name: "sentinel", err: ErrSentinelUnavailable, msg: "sentinel could not resolve"},
		{name: "role", err: ErrRoleMismatch, msg: "role mismatch"},
		{name: "read only", err: ErrReadOnly, msg: "read-only"},
		{name: "protocol", err: ErrProtocol, msg: "protocol error"},
		{name: "unreachable", err: ErrAllSentinelsUnreachable, msg: "unreachable"},
		{name: "closed", err: ErrClientClosed, msg: "closed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Contains(t, tt.err.Error(), tt.msg)
			require.Contains(t, tt.err.Error(), "vigil:")
		})
	}
}

func TestTypedErrorsUnwrap(t *testing.T) {
	require.ErrorIs(t, &ConfigError{Field: "name", Reason: "empty"}, ErrConfiguration)
	require.ErrorIs(t, &ProtocolError{Reason: "bad byte"}, ErrProtocol)
	require.ErrorIs(t, &RoleMismatchError{Want: RequireWritable, Got: RoleSlave}, ErrRoleMismatch)
	require.True(t, IsTransient(&RoleMismatchError{}))
	require.True(t, IsTransient(ErrCommandUnsupported))
}
