package vigil

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/arloliu/vigil/policy"
	"github.com/arloliu/vigil/resp"
	"github.com/arloliu/vigil/test/testutil"
	"github.com/arloliu/vigil/types"
)

func TestNewHAClient(t *testing.T) {
	t.Run("nil discoverer", func(t *testing.T) {
		client, err := NewHAClient(nil)
		require.Nil(t, client)
		require.ErrorIs(t, err, ErrNilDiscoverer)
	})

	t.Run("unknown tolerance", func(t *testing.T) {
		_, err := NewHAClient(newMockDiscoverer(), WithTolerance(Tolerance(42)))
		require.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("watcher requires Discovery", func(t *testing.T) {
		_, err := NewHAClient(newMockDiscoverer(), WithSentinelWatcher(newMockWatcher()))

		var cfgErr *types.ConfigError
		require.ErrorAs(t, err, &cfgErr)
		require.Equal(t, "sentinelWatcher", cfgErr.Field)
	})

	t.Run("defaults", func(t *testing.T) {
		disc := newMockDiscoverer()
		client, err := NewHAClient(disc)
		require.NoError(t, err)
		defer client.Close()

		require.Equal(t, "mymaster", client.ReplicaSet())
		require.Equal(t, RequireWritable, client.Tolerance())
		require.Nil(t, client.Node())
		require.Empty(t, disc.Calls(), "construction must not discover")
	})
}

func TestHAClient_LazyDiscovery(t *testing.T) {
	master := newMockMaster(6379)
	disc := newMockDiscoverer()
	disc.push(RequireWritable, master)
	sink := &mockSink{}

	client, err := NewHAClient(disc, WithEventSink(sink))
	require.NoError(t, err)
	defer client.Close()

	for range 3 {
		_, err := client.Do(t.Context(), "PING")
		require.NoError(t, err)
	}

	require.Equal(t, []Tolerance{RequireWritable}, disc.Calls())
	require.Equal(t, []string{"PING", "PING", "PING"}, master.Executed())
	require.Same(t, master, client.Node())

	events := sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, ReasonInitial, events[0].Reason)
	assert.True(t, events[0].From.IsZero())
	assert.Equal(t, master.addr, events[0].To)
	assert.Equal(t, "mymaster", events[0].ReplicaSet)
	assert.NotEmpty(t, events[0].ID)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestHAClient_ReadOnlyRetry(t *testing.T) {
	demoted := newMockMaster(6379)
	demoted.execFn = readOnlyReply
	promoted := newMockMaster(6380)

	disc := newMockDiscoverer()
	disc.push(RequireWritable, demoted)
	disc.push(RequireWritable, promoted)

	sink := &mockSink{}
	collector := testutil.NewTestMetricsCollector()
	client, err := NewHAClient(disc, WithEventSink(sink), WithMetrics(collector))
	require.NoError(t, err)
	defer client.Close()

	reply, err := client.Do(t.Context(), "SET", "k", "v")
	require.NoError(t, err)
	require.True(t, reply.OK())

	require.Equal(t, []string{"SET"}, demoted.Executed())
	require.Equal(t, []string{"SET"}, promoted.Executed())
	require.Equal(t, []Tolerance{RequireWritable, RequireWritable}, disc.Calls())
	require.Equal(t, int32(1), demoted.closes.Load())
	require.Same(t, promoted, client.Node())

	events := sink.Events()
	require.Len(t, events, 2)
	assert.Equal(t, ReasonReadOnly, events[1].Reason)
	assert.Equal(t, demoted.addr, events[1].From)
	assert.Equal(t, promoted.addr, events[1].To)
	assert.Equal(t, RequireWritable, events[1].Tolerance)

	require.Equal(t, int64(1), collector.GetCommandRetries("mymaster", ReasonReadOnly))
	require.Equal(t, int64(1), collector.GetFailovers("mymaster", ReasonReadOnly))
	require.Equal(t, int64(1), collector.GetCommandTotal("mymaster"))
	require.Equal(t, int64(0), collector.GetCommandErrors("mymaster"))
}

func TestHAClient_ReadOnlyRetriesOnce(t *testing.T) {
	first := newMockMaster(6379)
	first.execFn = readOnlyReply
	second := newMockMaster(6380)
	second.execFn = readOnlyReply

	disc := newMockDiscoverer()
	disc.push(RequireWritable, first)
	disc.push(RequireWritable, second)

	collector := testutil.NewTestMetricsCollector()
	client, err := NewHAClient(disc, WithMetrics(collector))
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Do(t.Context(), "SET", "k", "v")
	require.ErrorIs(t, err, ErrReadOnly)

	require.Len(t, first.Executed(), 1)
	require.Len(t, second.Executed(), 1, "exactly one retry")
	require.Equal(t, int64(1), collector.GetCommandErrors("mymaster"))
}

func TestHAClient_ConnectionFailure(t *testing.T) {
	t.Run("require writable propagates", func(t *testing.T) {
		lost := newMockMaster(6379)
		lost.execFn = connectionFailure(lost.addr)
		replacement := newMockMaster(6380)

		disc := newMockDiscoverer()
		disc.push(RequireWritable, lost)
		disc.push(RequireWritable, replacement)
		sink := &mockSink{}

		client, err := NewHAClient(disc, WithEventSink(sink))
		require.NoError(t, err)
		defer client.Close()

		_, err = client.Do(t.Context(), "SET", "k", "v")
		require.ErrorIs(t, err, ErrConnection)
		require.Equal(t, []Tolerance{RequireWritable}, disc.Calls(), "no rediscovery before propagating")
		require.Nil(t, client.Node())
		require.Equal(t, int32(1), lost.closes.Load())

		// The next command rediscovers.
		_, err = client.Do(t.Context(), "SET", "k", "v")
		require.NoError(t, err)
		require.Same(t, replacement, client.Node())

		events := sink.Events()
		require.Len(t, events, 2)
		assert.Equal(t, ReasonConnection, events[1].Reason)
		assert.Equal(t, lost.addr, events[1].From)
	})

	t.Run("prefer writable falls back to slave", func(t *testing.T) {
		lost := newMockMaster(6379)
		lost.execFn = connectionFailure(lost.addr)
		slave := newMockSlave(6380)

		disc := newMockDiscoverer()
		disc.push(PreferWritable, lost)
		disc.push(ReadOnly, slave)
		sink := &mockSink{}
		collector := testutil.NewTestMetricsCollector()

		client, err := NewHAClient(disc,
			WithTolerance(PreferWritable),
			WithEventSink(sink),
			WithMetrics(collector),
		)
		require.NoError(t, err)
		defer client.Close()

		_, err = client.Do(t.Context(), "GET", "k")
		require.NoError(t, err)

		require.Equal(t, []Tolerance{PreferWritable, ReadOnly}, disc.Calls())
		require.Equal(t, []string{"GET"}, slave.Executed())
		require.Same(t, slave, client.Node())
		require.Equal(t, int64(1), collector.GetCommandRetries("mymaster", ReasonConnection))

		events := sink.Events()
		require.Len(t, events, 2)
		assert.Equal(t, ReasonConnection, events[1].Reason)
		assert.Equal(t, ReadOnly, events[1].Tolerance)
	})

	t.Run("read only rediscovers slave", func(t *testing.T) {
		lost := newMockSlave(6380)
		lost.execFn = connectionFailure(lost.addr)
		other := newMockSlave(6381)

		disc := newMockDiscoverer()
		disc.push(ReadOnly, lost)
		disc.push(ReadOnly, other)

		client, err := NewHAClient(disc, WithTolerance(ReadOnly))
		require.NoError(t, err)
		defer client.Close()

		_, err = client.Do(t.Context(), "GET", "k")
		require.NoError(t, err)
		require.Equal(t, []Tolerance{ReadOnly, ReadOnly}, disc.Calls())
	})

	t.Run("retry failure propagates", func(t *testing.T) {
		lost := newMockMaster(6379)
		lost.execFn = connectionFailure(lost.addr)
		alsoLost := newMockSlave(6380)
		alsoLost.execFn = connectionFailure(alsoLost.addr)

		disc := newMockDiscoverer()
		disc.push(PreferWritable, lost)
		disc.push(ReadOnly, alsoLost)

		client, err := NewHAClient(disc, WithTolerance(PreferWritable))
		require.NoError(t, err)
		defer client.Close()

		_, err = client.Do(t.Context(), "GET", "k")
		require.ErrorIs(t, err, ErrConnection)
		require.Len(t, alsoLost.Executed(), 1)
	})
}

func TestHAClient_ErrorReplyPassesThrough(t *testing.T) {
	master := newMockMaster(6379)
	master.execFn = func(string, ...any) (resp.Reply, error) {
		return resp.Reply{}, &types.CommandError{Message: "WRONGTYPE Operation against a key holding the wrong kind of value"}
	}

	disc := newMockDiscoverer()
	disc.push(RequireWritable, master)

	client, err := NewHAClient(disc)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Do(t.Context(), "GET", "k")

	var cmdErr *types.CommandError
	require.ErrorAs(t, err, &cmdErr)
	require.Equal(t, "WRONGTYPE", cmdErr.Prefix())
	require.Len(t, disc.Calls(), 1)
	require.Same(t, master, client.Node(), "error replies keep the trusted node")
}

func TestHAClient_DiscoveryFailure(t *testing.T) {
	disc := newMockDiscoverer()
	disc.err = &types.DiscoveryError{ReplicaSet: "mymaster", Passes: 3}

	collector := testutil.NewTestMetricsCollector()
	client, err := NewHAClient(disc, WithMetrics(collector))
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Do(t.Context(), "GET", "k")
	require.ErrorIs(t, err, ErrAllSentinelsUnreachable)
	require.Nil(t, client.Node())
	require.Equal(t, int64(1), collector.GetCommandErrors("mymaster"))
}

func TestHAClient_SinkErrorIsNotFatal(t *testing.T) {
	disc := newMockDiscoverer()
	disc.push(RequireWritable, newMockMaster(6379))
	sink := &mockSink{err: errors.New("sink unavailable")}

	client, err := NewHAClient(disc, WithEventSink(sink))
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Do(t.Context(), "PING")
	require.NoError(t, err)
	require.Len(t, sink.Events(), 1)
}

func TestHAClient_CallStrategy(t *testing.T) {
	master := newMockMaster(6379)
	disc := newMockDiscoverer()
	disc.push(RequireWritable, master)

	var calls int
	strategy := policy.CallFunc(func(ctx context.Context, target resp.Executor, name string, args ...any) (resp.Reply, error) {
		calls++
		return target.Execute(ctx, name, args...)
	})

	client, err := NewHAClient(disc, WithCallStrategy(strategy))
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Do(t.Context(), "PING")
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestHAClient_CircuitBreakerKeepsSlowReply(t *testing.T) {
	var applied int
	slow := newMockMaster(6379)
	slow.execFn = func(string, ...any) (resp.Reply, error) {
		time.Sleep(20 * time.Millisecond)
		applied++

		return resp.IntegerReply(strconv.Itoa(applied)), nil
	}
	replacement := newMockMaster(6380)
	replacement.execFn = func(string, ...any) (resp.Reply, error) {
		return resp.IntegerReply("2"), nil
	}

	disc := newMockDiscoverer()
	disc.push(RequireWritable, slow)
	disc.push(RequireWritable, replacement)

	breaker := policy.NewCircuitBreakerCall(
		policy.WithThreshold(1),
		policy.WithLatencyAbsoluteMax(5*time.Millisecond),
	)
	client, err := NewHAClient(disc, WithTolerance(RequireWritable), WithCallStrategy(breaker))
	require.NoError(t, err)
	defer client.Close()

	reply, err := client.Do(t.Context(), "INCR", "counter")
	require.NoError(t, err, "the slow INCR was applied and its reply is delivered")
	n, err := reply.Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, breaker.Trips())

	_, err = client.Do(t.Context(), "INCR", "counter")
	require.ErrorIs(t, err, ErrConnection)
	require.ErrorIs(t, err, policy.ErrCircuitOpen)
	assert.Equal(t, 1, applied, "the open breaker does not forward")
	assert.Equal(t, []string{"INCR"}, slow.Executed())
	assert.Nil(t, client.Node())

	reply, err = client.Do(t.Context(), "INCR", "counter")
	require.NoError(t, err)
	n, err = reply.Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Same(t, replacement, client.Node())
	assert.Equal(t, 1, applied)
}

func TestHAClient_Invalidate(t *testing.T) {
	first := newMockMaster(6379)
	second := newMockMaster(6380)

	disc := newMockDiscoverer()
	disc.push(RequireWritable, first)
	disc.push(RequireWritable, second)

	client, err := NewHAClient(disc)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Do(t.Context(), "PING")
	require.NoError(t, err)

	client.Invalidate()
	require.Nil(t, client.Node())
	require.Equal(t, int32(1), first.closes.Load())

	_, err = client.Do(t.Context(), "PING")
	require.NoError(t, err)
	require.Same(t, second, client.Node())
}

func TestHAClient_Close(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	master := newMockMaster(6379)
	disc := newMockDiscoverer()
	disc.push(RequireWritable, master)

	client, err := NewHAClient(disc)
	require.NoError(t, err)

	_, err = client.Do(t.Context(), "PING")
	require.NoError(t, err)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close(), "Close is idempotent")
	require.Equal(t, int32(1), master.closes.Load())
	require.Nil(t, client.Node())

	_, err = client.Do(t.Context(), "PING")
	require.ErrorIs(t, err, ErrClientClosed)
}

func TestHAClient_ConcurrentFailover(t *testing.T) {
	demoted := newMockMaster(6379)
	demoted.execFn = readOnlyReply
	promoted := newMockMaster(6380)

	disc := newMockDiscoverer()
	disc.push(RequireWritable, demoted)
	disc.push(RequireWritable, promoted)
	sink := &mockSink{}

	client, err := NewHAClient(disc, WithEventSink(sink))
	require.NoError(t, err)
	defer client.Close()

	// Reads succeed on the demoted master and install it.
	_, err = client.Do(t.Context(), "GET", "k")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for range 16 {
		wg.Go(func() {
			_, err := client.Do(t.Context(), "SET", "k", "v")
			errs <- err
		})
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	require.Same(t, promoted, client.Node())
	require.Equal(t, int32(1), demoted.closes.Load())
	require.Len(t, sink.Events(), 2, "one failover despite concurrent failures")
}

func TestHAClient_SentinelWatcher(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s1 := newMockSentinel(26379)
	d, err := NewDiscovery("mymaster", WithSentinels(s1))
	require.NoError(t, err)

	watcher := newMockWatcher()
	factory := func(addr Address) Node {
		return &mockNode{addr: addr, role: RoleSentinel}
	}

	client, err := NewHAClient(d, WithSentinelWatcher(watcher), WithSentinelFactory(factory))
	require.NoError(t, err)

	added := NewAddress("10.0.0.9", 26379)
	watcher.updates <- SentinelUpdate{ReplicaSet: "mymaster", Sentinels: []Address{added}}

	require.Eventually(t, func() bool {
		sentinels := d.Sentinels()
		return len(sentinels) == 1 && sentinels[0].Address() == added
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, client.Close())
}

func TestHAClient_FakeCluster(t *testing.T) {
	master := testutil.StartFakeMaster(t)
	slave := testutil.StartFakeSlave(t, master.Addr())
	sentinel := testutil.StartFakeSentinel(t, "mymaster", master.Addr())
	sentinel.AddSlave(slave.Addr(), "slave")

	d, err := NewDiscovery("mymaster",
		WithSentinelAddrs(testOptions(), testOptions(), sentinel.Addr()),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		for _, s := range d.Sentinels() {
			_ = s.Close()
		}
	})

	sink := &mockSink{}
	client, err := NewHAClient(d, WithTolerance(PreferWritable), WithEventSink(sink))
	require.NoError(t, err)
	defer client.Close()

	ctx := t.Context()

	t.Run("commands", func(t *testing.T) {
		require.NoError(t, client.Ping(ctx))
		require.NoError(t, client.Set(ctx, "greeting", "hello", 0))
		require.NoError(t, client.Set(ctx, "session", "abc", time.Minute))

		v, ok, err := client.Get(ctx, "greeting")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "hello", v)

		_, ok, err = client.Get(ctx, "missing")
		require.NoError(t, err)
		require.False(t, ok)

		n, err := client.Del(ctx, "greeting", "missing")
		require.NoError(t, err)
		require.Equal(t, int64(1), n)

		require.NoError(t, client.Select(ctx, 0))
	})

	promoted := testutil.StartFakeMaster(t)

	t.Run("promotion", func(t *testing.T) {
		master.SetRole(RoleSlave, promoted.Addr())
		sentinel.SetMaster(promoted.Addr())

		require.NoError(t, client.Set(ctx, "k", "v", 0))

		v, ok := promoted.Value("k")
		require.True(t, ok)
		require.Equal(t, "v", v)
		require.Equal(t, promoted.Addr(), client.Node().Address())

		events := sink.Events()
		require.Len(t, events, 2)
		assert.Equal(t, ReasonReadOnly, events[1].Reason)
		assert.Equal(t, master.Addr(), events[1].From)
		assert.Equal(t, promoted.Addr(), events[1].To)
	})

	t.Run("master lost", func(t *testing.T) {
		promoted.Close()

		// Reads fall back to the slave, which has not replicated "k".
		_, ok, err := client.Get(ctx, "k")
		require.NoError(t, err)
		require.False(t, ok)
		require.Equal(t, slave.Addr(), client.Node().Address())

		events := sink.Events()
		require.Len(t, events, 3)
		assert.Equal(t, ReasonConnection, events[2].Reason)
		assert.Equal(t, ReadOnly, events[2].Tolerance)
	})
}
