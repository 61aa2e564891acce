package resp

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/arloliu/vigil/types"
)

// SentinelGetMaster asks a sentinel for the current master of a replica set.
//
// Sends "SENTINEL get-master-addr-by-name <set>". Only a two element
// (ip, port) reply counts as success; any other reply means the sentinel
// does not know the master, which is reported as ok == false rather than
// an error.
//
// Parameters:
//   - ctx: Context for cancellation and deadline
//   - set: Replica set name
//
// Returns:
//   - types.Address: The master address when ok is true
//   - bool: Whether the sentinel knows the master
//   - error: Connection, protocol or command errors
func (c *Conn) SentinelGetMaster(ctx context.Context, set string) (types.Address, bool, error) {
	reply, err := c.Execute(ctx, "SENTINEL", "get-master-addr-by-name", set)
	if err != nil {
		return types.Address{}, false, err
	}

	if reply.Kind != KindArray || reply.Null || reply.Len() != 2 {
		return types.Address{}, false, nil
	}

	host, ok := reply.Array[0].Text()
	if !ok || host == "" {
		return types.Address{}, false, nil
	}

	port, err := reply.Array[1].Int64()
	if err != nil || port <= 0 {
		return types.Address{}, false, nil
	}

	return types.NewAddress(host, int(port)), true, nil
}

// SentinelSlaves lists the slaves of a replica set known to a sentinel.
//
// Sends "SENTINEL slaves <set>" and reshapes each flat field/value array
// into a ReplicaInfo. A null or non-array reply yields an empty list.
//
// Parameters:
//   - ctx: Context for cancellation and deadline
//   - set: Replica set name
//
// Returns:
//   - []types.ReplicaInfo: One entry per slave, in sentinel order
//   - error: Connection, protocol or command errors
func (c *Conn) SentinelSlaves(ctx context.Context, set string) ([]types.ReplicaInfo, error) {
	reply, err := c.Execute(ctx, "SENTINEL", "slaves", set)
	if err != nil {
		return nil, err
	}

	return pairsList(reply)
}

// SentinelSentinels lists the other sentinels monitoring a replica set.
//
// Sends "SENTINEL sentinels <set>"; the reply has the same shape as
// SentinelSlaves.
//
// Parameters:
//   - ctx: Context for cancellation and deadline
//   - set: Replica set name
//
// Returns:
//   - []types.ReplicaInfo: One entry per peer sentinel
//   - error: Connection, protocol or command errors
func (c *Conn) SentinelSentinels(ctx context.Context, set string) ([]types.ReplicaInfo, error) {
	reply, err := c.Execute(ctx, "SENTINEL", "sentinels", set)
	if err != nil {
		return nil, err
	}

	return pairsList(reply)
}

// Role queries the node's replication role with ROLE.
//
// Servers without ROLE (before 2.8) either reject the command or reply
// with something other than an array; both are reported as
// types.ErrCommandUnsupported.
//
// Parameters:
//   - ctx: Context for cancellation and deadline
//
// Returns:
//   - types.RoleInfo: The parsed role reply
//   - error: types.ErrCommandUnsupported, connection or protocol errors
func (c *Conn) Role(ctx context.Context) (types.RoleInfo, error) {
	reply, err := c.Execute(ctx, "ROLE")
	if err != nil {
		var cmdErr *types.CommandError
		if errors.As(err, &cmdErr) && strings.Contains(strings.ToLower(cmdErr.Message), "unknown command") {
			return types.RoleInfo{}, types.ErrCommandUnsupported
		}

		return types.RoleInfo{}, err
	}

	return ParseRole(reply)
}

// Info runs INFO and parses the "field:value" lines.
//
// Section headers ("# Replication") and blank lines are skipped.
//
// Parameters:
//   - ctx: Context for cancellation and deadline
//   - section: Optional section name ("replication", "server", ...)
//
// Returns:
//   - map[string]string: Parsed fields
//   - error: Connection, protocol or command errors
func (c *Conn) Info(ctx context.Context, section string) (map[string]string, error) {
	args := []any{}
	if section != "" {
		args = append(args, section)
	}

	reply, err := c.Execute(ctx, "INFO", args...)
	if err != nil {
		return nil, err
	}

	text, ok := reply.Text()
	if !ok {
		return nil, &types.ProtocolError{Reason: "INFO returned " + reply.Kind.String()}
	}

	return ParseInfo(text), nil
}

// Ping sends PING and checks for a status reply.
func (c *Conn) Ping(ctx context.Context) error {
	reply, err := c.Execute(ctx, "PING")
	if err != nil {
		return err
	}
	if !reply.OK() {
		return &types.ProtocolError{Reason: "unexpected PING reply " + reply.String()}
	}

	return nil
}

// ParseRole converts a ROLE reply into a RoleInfo.
//
// Reply shapes:
//
//	master:   ["master", offset, [[ip, port, offset], ...]]
//	slave:    ["slave", master-ip, master-port, state, offset]
//	sentinel: ["sentinel", [master-name, ...]]
//
// Missing trailing fields are tolerated.
func ParseRole(reply Reply) (types.RoleInfo, error) {
	if reply.Kind != KindArray || reply.Null || reply.Len() == 0 {
		return types.RoleInfo{}, types.ErrCommandUnsupported
	}

	tag, ok := reply.Array[0].Text()
	if !ok {
		return types.RoleInfo{}, &types.ProtocolError{Reason: "ROLE reply without role name"}
	}

	info := types.RoleInfo{Role: types.ParseRole(tag)}
	elems := reply.Array[1:]

	switch info.Role {
	case types.RoleMaster:
		if len(elems) > 0 {
			info.ReplicationOffset, _ = elems[0].Int64()
		}
		if len(elems) > 1 {
			for _, replica := range elems[1].Array {
				fields, err := replica.Strings()
				if err != nil || len(fields) < 2 {
					continue
				}
				if port, err := strconv.Atoi(fields[1]); err == nil {
					info.Replicas = append(info.Replicas, types.NewAddress(fields[0], port))
				}
			}
		}
	case types.RoleSlave:
		fields := make([]string, len(elems))
		for i, elem := range elems {
			fields[i], _ = elem.Text()
		}
		if len(fields) > 1 {
			if port, err := strconv.Atoi(fields[1]); err == nil {
				info.MasterAddr = types.NewAddress(fields[0], port)
			}
		}
		if len(fields) > 2 {
			info.LinkState = fields[2]
		}
		if len(fields) > 3 {
			info.ReplicationOffset, _ = strconv.ParseInt(fields[3], 10, 64)
		}
	case types.RoleSentinel:
		if len(elems) > 0 {
			info.MonitoredMasters, _ = elems[0].Strings()
		}
	}

	return info, nil
}

// ParseInfo parses the text of an INFO reply.
func ParseInfo(text string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		out[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	return out
}

// pairsList reshapes an array of flat field/value arrays.
func pairsList(reply Reply) ([]types.ReplicaInfo, error) {
	if reply.Kind != KindArray || reply.Null {
		return nil, nil
	}

	out := make([]types.ReplicaInfo, 0, reply.Len())
	for _, entry := range reply.Array {
		fields, err := entry.Strings()
		if err != nil {
			return nil, err
		}

		info := make(types.ReplicaInfo, len(fields)/2)
		for i := 0; i+1 < len(fields); i += 2 {
			info[fields[i]] = fields[i+1]
		}
		out = append(out, info)
	}

	return out, nil
}
