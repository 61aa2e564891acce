package topology

import (
	"context"
	"sync"

	"github.com/arloliu/vigil/types"
)

// outbox feeds sentinel updates to a watch channel without blocking the
// producer.
//
// Each update carries a complete set, so only the newest undelivered update
// of a replica set matters. The outbox keeps exactly one pending update per
// replica set; a newer update replaces it in place and keeps its position.
// Updates for different replica sets never displace each other.
type outbox struct {
	out  chan types.SentinelUpdate
	wake chan struct{}

	mu      sync.Mutex
	order   []string
	pending map[string]types.SentinelUpdate
}

func newOutbox() *outbox {
	return &outbox{
		out:     make(chan types.SentinelUpdate),
		wake:    make(chan struct{}, 1),
		pending: make(map[string]types.SentinelUpdate),
	}
}

// put queues update, replacing any undelivered update of the same replica set.
func (o *outbox) put(update types.SentinelUpdate) {
	o.mu.Lock()
	if _, ok := o.pending[update.ReplicaSet]; !ok {
		o.order = append(o.order, update.ReplicaSet)
	}
	o.pending[update.ReplicaSet] = update
	o.mu.Unlock()

	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// next removes and returns the oldest pending update.
func (o *outbox) next() (types.SentinelUpdate, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.order) == 0 {
		return types.SentinelUpdate{}, false
	}

	replicaSet := o.order[0]
	o.order = o.order[1:]
	update := o.pending[replicaSet]
	delete(o.pending, replicaSet)

	return update, true
}

// forward delivers pending updates until ctx is cancelled or done is
// closed, then closes the output channel.
func (o *outbox) forward(ctx context.Context, done <-chan struct{}) {
	defer close(o.out)

	for {
		update, ok := o.next()
		if !ok {
			select {
			case <-o.wake:
				continue
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}

		select {
		case o.out <- update:
		case <-ctx.Done():
			return
		case <-done:
			return
		}
	}
}
