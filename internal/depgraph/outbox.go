package depgraph

import (
	"context"
	"sync"
)

type pendingChange struct {
	seq       uint64
	ctx       context.Context
	observers []Observer
	change    Change
}

// outbox hands committed changes to observers in commit order. push runs
// under the graph write lock, so sequence numbers follow the order in which
// mutations were applied; flush runs after the lock is released.
type outbox struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    []pendingChange
	pushed   uint64
	done     uint64
	draining bool
}

func (o *outbox) push(ctx context.Context, observers []Observer, c Change) uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pushed++
	o.queue = append(o.queue, pendingChange{seq: o.pushed, ctx: ctx, observers: observers, change: c})
	return o.pushed
}

// flush returns once change seq and everything before it has been delivered.
// One caller drains at a time; the rest wait and take over if their change
// is still queued when the drainer stops.
func (o *outbox) flush(seq uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cond == nil {
		o.cond = sync.NewCond(&o.mu)
	}
	for o.done < seq {
		if o.draining {
			o.cond.Wait()
			continue
		}
		o.draining = true
		for o.done < seq && len(o.queue) > 0 {
			p := o.queue[0]
			o.queue = o.queue[1:]
			o.mu.Unlock()
			for _, obs := range p.observers {
				obs.DependencyChanged(p.ctx, p.change)
			}
			o.mu.Lock()
			o.done = p.seq
		}
		o.draining = false
		o.cond.Broadcast()
	}
}
