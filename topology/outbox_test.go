package topology

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/vigil/types"
)

func setUpdate(replicaSet string, port int) types.SentinelUpdate {
	return types.SentinelUpdate{
		ReplicaSet: replicaSet,
		Sentinels:  []types.Address{types.NewAddress("10.0.0.1", port)},
	}
}

func TestOutboxKeepsOnePendingUpdatePerSet(t *testing.T) {
	box := newOutbox()

	box.put(setUpdate("a", 1))
	box.put(setUpdate("b", 1))
	box.put(setUpdate("a", 2))
	box.put(setUpdate("c", 1))
	box.put(setUpdate("b", 2))

	var got []types.SentinelUpdate
	for {
		u, ok := box.next()
		if !ok {
			break
		}
		got = append(got, u)
	}

	// Replacements keep the position of the first pending update.
	require.Equal(t, []types.SentinelUpdate{setUpdate("a", 2), setUpdate("b", 2), setUpdate("c", 1)}, got)
}

func TestOutboxForward(t *testing.T) {
	box := newOutbox()
	done := make(chan struct{})
	go box.forward(t.Context(), done)

	box.put(setUpdate("a", 1))
	select {
	case u := <-box.out:
		assert.Equal(t, setUpdate("a", 1), u)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for update")
	}

	close(done)
	select {
	case _, ok := <-box.out:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
}
