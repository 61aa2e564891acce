package testutil

import (
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/arloliu/vigil/types"
)

// RedisContainer wraps a Redis server running in a test container.
type RedisContainer struct {
	Container testcontainers.Container

	// Addr is the host-mapped address reachable from the test process.
	Addr types.Address

	// Internal is the address other containers on the bridge network use.
	Internal types.Address
}

// RedisOptions configures the Redis container.
type RedisOptions struct {
	// Image is the Redis image to use. Defaults to "redis:7.4-alpine".
	Image string

	// StartupTimeout bounds waiting for the server to accept connections.
	// Defaults to 60s.
	StartupTimeout time.Duration
}

// DefaultRedisOptions returns default options for a Redis container.
func DefaultRedisOptions() RedisOptions {
	return RedisOptions{
		Image:          "redis:7.4-alpine",
		StartupTimeout: 60 * time.Second,
	}
}

// StartRedis starts a standalone Redis container.
//
// The container is terminated automatically when the test completes.
//
// Parameters:
//   - ctx: Context for container operations
//   - t: Testing context for cleanup registration
//   - opts: Optional configuration (nil uses defaults)
//
// Returns:
//   - *RedisContainer: Container with connection details
//   - error: Error if the container fails to start
func StartRedis(ctx context.Context, t *testing.T, opts *RedisOptions) (*RedisContainer, error) {
	t.Helper()

	if opts == nil {
		defaultOpts := DefaultRedisOptions()
		opts = &defaultOpts
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        opts.Image,
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(opts.StartupTimeout),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start Redis container: %w", err)
	}

	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate Redis container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	mapped, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		return nil, fmt.Errorf("failed to get mapped port: %w", err)
	}

	port, err := strconv.Atoi(mapped.Port())
	if err != nil {
		return nil, fmt.Errorf("invalid mapped port %q: %w", mapped.Port(), err)
	}

	ip, err := container.ContainerIP(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container IP: %w", err)
	}

	return &RedisContainer{
		Container: container,
		Addr:      types.NewAddress(host, port),
		Internal:  types.NewAddress(ip, 6379),
	}, nil
}
