//go:build integration

package integration_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/vigil/resp"
	"github.com/arloliu/vigil/test/testutil"
	"github.com/arloliu/vigil/types"
)

// replicaPair is a master and a slave replicating from it.
type replicaPair struct {
	master *testutil.RedisContainer
	slave  *testutil.RedisContainer
}

// startReplicaPair starts two Redis containers and makes the second a
// replica of the first.
func startReplicaPair(t *testing.T) *replicaPair {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if os.Getenv("SKIP_INTEGRATION_TESTS") == "1" {
		t.Skip("skipping integration test (SKIP_INTEGRATION_TESTS=1)")
	}

	ctx := t.Context()

	master, err := testutil.StartRedis(ctx, t, nil)
	require.NoError(t, err)

	slave, err := testutil.StartRedis(ctx, t, nil)
	require.NoError(t, err)

	replicaOf(t, slave.Addr, master.Internal)
	waitForRole(t, slave.Addr, types.RoleSlave)

	return &replicaPair{master: master, slave: slave}
}

// command runs one command on a fresh connection.
func command(t *testing.T, addr types.Address, name string, args ...any) resp.Reply {
	t.Helper()

	conn := resp.NewConn(addr, resp.DefaultOptions())
	defer conn.Close()

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	reply, err := conn.Execute(ctx, name, args...)
	require.NoError(t, err, "%s on %s", name, addr)

	return reply
}

// replicaOf points node at master; a zero master promotes node.
func replicaOf(t *testing.T, node, master types.Address) {
	t.Helper()

	if master.IsZero() {
		command(t, node, "REPLICAOF", "NO", "ONE")
		return
	}
	command(t, node, "REPLICAOF", master.Host, master.Port)
}

// waitForRole polls ROLE until the node reports role.
func waitForRole(t *testing.T, addr types.Address, role types.Role) {
	t.Helper()

	require.Eventually(t, func() bool {
		conn := resp.NewConn(addr, resp.DefaultOptions())
		defer conn.Close()

		info, err := conn.Role(t.Context())
		return err == nil && info.Role == role
	}, 30*time.Second, 200*time.Millisecond, "%s never reported role %s", addr, role)
}
