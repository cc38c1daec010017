package core

import (
	"sync/atomic"

	"github.com/najoast/troupe/future"
	"github.com/najoast/troupe/scheduler"
)

// PoisonPill stops the receiving actor once it reaches the head of the user
// queue. It never reaches a behavior.
type PoisonPill struct{}

// Terminated is delivered to every watcher of an actor, exactly once, after
// the actor stopped.
type Terminated struct {
	Ref Ref
}

// DeadLetter wraps a message that could not be delivered.
type DeadLetter struct {
	Message   any
	Sender    Ref
	Recipient Ref
}

// System lane messages. They are handled before the behavior stack and
// never seen by user code.
type (
	stopSignal struct{}

	watchReq struct {
		watcher *cell
	}

	unwatchReq struct {
		watcher *cell
	}

	childStopped struct {
		child *cell
	}

	// resolveReq walks the tree one cell at a time. idx is the next segment
	// to look up below the cell currently holding the request.
	resolveReq struct {
		segments []string
		idx      int
		result   *future.Future[Ref]
		timeout  *scheduler.Task

		// parkedAt is set while the request waits in a cell for a child
		parkedAt atomic.Pointer[parking]
	}

	parking struct {
		cell *cell
		name string
	}
)

func (r *resolveReq) settle(ref Ref) {
	if r.result.Complete(ref) && r.timeout != nil {
		r.timeout.Cancel()
	}
}

func (r *resolveReq) done() bool {
	return r.result.Settled()
}

// unpark removes a settled request from the cell it was parked in.
func (r *resolveReq) unpark() {
	p := r.parkedAt.Swap(nil)
	if p == nil {
		return
	}
	c, name := p.cell, p.name
	c.mu.Lock()
	defer c.mu.Unlock()
	reqs := c.parked[name]
	for i, other := range reqs {
		if other == r {
			reqs = append(reqs[:i], reqs[i+1:]...)
			break
		}
	}
	if len(reqs) == 0 {
		delete(c.parked, name)
	} else {
		c.parked[name] = reqs
	}
}
