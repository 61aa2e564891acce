package topology_test

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/vigil"
	"github.com/arloliu/vigil/test/testutil"
	"github.com/arloliu/vigil/topology"
	"github.com/arloliu/vigil/types"
)

const sentinelKey = "vigil.topology.sentinels"

// createTestKV creates a test KV bucket.
func createTestKV(t *testing.T, js jetstream.JetStream, bucket string) jetstream.KeyValue {
	t.Helper()

	return testutil.CreateKV(t, js, bucket)
}

// nextUpdate waits for one sentinel update.
func nextUpdate(t *testing.T, updates <-chan types.SentinelUpdate) types.SentinelUpdate {
	t.Helper()

	select {
	case update, ok := <-updates:
		require.True(t, ok, "updates channel closed")
		return update
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for sentinel update")
		return types.SentinelUpdate{}
	}
}

// expectNoUpdate fails if an update arrives within a short window.
func expectNoUpdate(t *testing.T, updates <-chan types.SentinelUpdate) {
	t.Helper()

	select {
	case update := <-updates:
		t.Fatalf("unexpected update: %+v", update)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestNewNATSNilKV(t *testing.T) {
	_, err := topology.NewNATS(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KeyValue store is nil")
}

func TestNewNATSDefaults(t *testing.T) {
	js := testutil.StartEmbeddedNATS(t)
	kv := createTestKV(t, js, "test-defaults")

	watcher, err := topology.NewNATS(kv)
	require.NoError(t, err)
	defer watcher.Close()

	assert.Equal(t, sentinelKey, watcher.Config().Key)
	assert.Equal(t, 5*time.Second, watcher.Config().PollInterval)
	assert.Equal(t, 10*time.Second, watcher.Config().InitialFetchTimeout)
	assert.NotNil(t, watcher.Config().Logger)
}

func TestNewNATSOptions(t *testing.T) {
	js := testutil.StartEmbeddedNATS(t)
	kv := createTestKV(t, js, "test-options")

	watcher, err := topology.NewNATS(kv,
		topology.WithKey("custom.sentinels"),
		topology.WithPollInterval(10*time.Second),
		topology.WithInitialFetchTimeout(30*time.Second),
	)
	require.NoError(t, err)
	defer watcher.Close()

	assert.Equal(t, "custom.sentinels", watcher.Config().Key)
	assert.Equal(t, 10*time.Second, watcher.Config().PollInterval)
	assert.Equal(t, 30*time.Second, watcher.Config().InitialFetchTimeout)
}

func TestNATSSentinelUpdate(t *testing.T) {
	js := testutil.StartEmbeddedNATS(t)
	kv := createTestKV(t, js, "test-update")

	watcher, err := topology.NewNATS(kv)
	require.NoError(t, err)
	defer watcher.Close()

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	updates := watcher.Watch(ctx)

	_, known := watcher.Current()
	assert.False(t, known)

	_, err = kv.Put(ctx, sentinelKey, []byte(`{"replicaSet":"mymaster","sentinels":["10.0.0.1:26379","10.0.0.2:26380"]}`))
	require.NoError(t, err)

	update := nextUpdate(t, updates)
	assert.Equal(t, "mymaster", update.ReplicaSet)
	assert.Equal(t, []types.Address{
		types.NewAddress("10.0.0.1", 26379),
		types.NewAddress("10.0.0.2", 26380),
	}, update.Sentinels)

	current, known := watcher.Current()
	assert.True(t, known)
	assert.Equal(t, update, current)
}

func TestNATSInitialValue(t *testing.T) {
	js := testutil.StartEmbeddedNATS(t)
	kv := createTestKV(t, js, "test-initial")

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	// Pre-set before watching
	_, err := kv.Put(ctx, sentinelKey, []byte(`{"sentinels":["10.0.0.1:26379"]}`))
	require.NoError(t, err)

	watcher, err := topology.NewNATS(kv)
	require.NoError(t, err)
	defer watcher.Close()

	updates := watcher.Watch(ctx)

	update := nextUpdate(t, updates)
	assert.Empty(t, update.ReplicaSet)
	assert.Equal(t, []types.Address{types.NewAddress("10.0.0.1", 26379)}, update.Sentinels)

	// The watch replays the same value; it must not be emitted twice.
	expectNoUpdate(t, updates)
}

func TestNATSDeleteKeepsLastSet(t *testing.T) {
	js := testutil.StartEmbeddedNATS(t)
	kv := createTestKV(t, js, "test-delete")

	watcher, err := topology.NewNATS(kv)
	require.NoError(t, err)
	defer watcher.Close()

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	updates := watcher.Watch(ctx)

	_, err = kv.Put(ctx, sentinelKey, []byte(`{"sentinels":["10.0.0.1:26379"]}`))
	require.NoError(t, err)
	nextUpdate(t, updates)

	require.NoError(t, kv.Delete(ctx, sentinelKey))
	expectNoUpdate(t, updates)

	current, known := watcher.Current()
	assert.True(t, known)
	assert.Len(t, current.Sentinels, 1)
}

func TestNATSInvalidEntries(t *testing.T) {
	js := testutil.StartEmbeddedNATS(t)
	kv := createTestKV(t, js, "test-invalid")

	watcher, err := topology.NewNATS(kv)
	require.NoError(t, err)
	defer watcher.Close()

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	updates := watcher.Watch(ctx)

	for _, value := range []string{
		`{not json`,
		`{"sentinels":[]}`,
		`{"sentinels":["10.0.0.1"]}`,
	} {
		_, err = kv.Put(ctx, sentinelKey, []byte(value))
		require.NoError(t, err)
	}
	expectNoUpdate(t, updates)

	// A valid entry still goes through afterwards.
	_, err = kv.Put(ctx, sentinelKey, []byte(`{"sentinels":["10.0.0.1:26379"]}`))
	require.NoError(t, err)
	update := nextUpdate(t, updates)
	assert.Len(t, update.Sentinels, 1)
}

func TestNATSPublish(t *testing.T) {
	js := testutil.StartEmbeddedNATS(t)
	kv := createTestKV(t, js, "test-publish")

	watcher, err := topology.NewNATS(kv)
	require.NoError(t, err)
	defer watcher.Close()

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	updates := watcher.Watch(ctx)

	err = watcher.Publish(ctx, topology.SentinelConfig{Sentinels: nil})
	require.ErrorIs(t, err, types.ErrConfiguration)

	err = watcher.Publish(ctx, topology.SentinelConfig{
		ReplicaSet: "mymaster",
		Sentinels:  []string{"10.0.0.3:26379"},
	})
	require.NoError(t, err)

	update := nextUpdate(t, updates)
	assert.Equal(t, []types.Address{types.NewAddress("10.0.0.3", 26379)}, update.Sentinels)
}

func TestNATSCloseClosesChannel(t *testing.T) {
	js := testutil.StartEmbeddedNATS(t)
	kv := createTestKV(t, js, "test-close")

	watcher, err := topology.NewNATS(kv)
	require.NoError(t, err)

	updates := watcher.Watch(t.Context())
	require.Equal(t, updates, watcher.Watch(t.Context()))

	require.NoError(t, watcher.Close())
	require.NoError(t, watcher.Close())

	select {
	case _, ok := <-updates:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed")
	}
}

func TestNATSDrivesDiscovery(t *testing.T) {
	js := testutil.StartEmbeddedNATS(t)
	kv := createTestKV(t, js, "test-discovery")

	watcher, err := topology.NewNATS(kv)
	require.NoError(t, err)
	defer watcher.Close()

	master := testutil.StartFakeMaster(t)
	sentinel := testutil.StartFakeSentinel(t, "mymaster", master.Addr())

	// Start with a sentinel that no longer exists.
	stale := testutil.StartFakeServer(t)
	staleAddr := stale.Addr()
	stale.Close()

	discovery, err := vigil.NewDiscovery("mymaster",
		vigil.WithSentinels(vigil.DefaultSentinelFactory(staleAddr)),
	)
	require.NoError(t, err)

	client, err := vigil.NewHAClient(discovery, vigil.WithSentinelWatcher(watcher))
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	err = watcher.Publish(ctx, topology.SentinelConfig{
		ReplicaSet: "mymaster",
		Sentinels:  []string{sentinel.Addr().String()},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		sentinels := discovery.Sentinels()
		return len(sentinels) == 1 && sentinels[0].Address() == sentinel.Addr()
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, client.Set(ctx, "k", "v", 0))
	v, ok := master.Value("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
}
