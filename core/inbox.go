package core

import (
	"sync"
	"time"

	"github.com/LukaGiorgadze/gonull"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/najoast/troupe/future"
)

// Inbox lets code outside the actor tree receive messages. It is backed by
// an actor under the temp scope whose ref can be handed to other actors as
// a sender or a watcher.
type Inbox struct {
	sys *System
	ref Ref

	mu      sync.Mutex
	queue   []Envelope
	waiters []*future.Future[Envelope]
	closed  bool
}

// NewInbox creates an inbox.
func (s *System) NewInbox() (*Inbox, error) {
	in := &Inbox{sys: s}
	ref, err := s.tempRoot.spawn("inbox-"+uuid.NewString(), &inboxActor{inbox: in})
	if err != nil {
		return nil, err
	}
	in.ref = ref
	return in, nil
}

// Self returns the ref other actors send to.
func (in *Inbox) Self() Ref {
	return in.ref
}

// Send tells target with the inbox as sender, so replies come back here.
func (in *Inbox) Send(target Ref, msg any) {
	in.sys.Send(target, msg, in.ref)
}

// Watch subscribes the inbox to target's Terminated notification.
func (in *Inbox) Watch(target Ref) {
	in.sys.Watch(target, in.ref)
}

// Len returns the number of messages waiting to be received.
func (in *Inbox) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.queue)
}

// Receive blocks until a message arrives or timeout elapses. The result is
// empty on timeout or after Close. A non-positive timeout waits until a
// message arrives or the inbox is closed.
func (in *Inbox) Receive(timeout time.Duration) gonull.Nullable[Envelope] {
	in.mu.Lock()
	if len(in.queue) > 0 {
		env := in.queue[0]
		in.queue[0] = Envelope{}
		in.queue = in.queue[1:]
		in.mu.Unlock()
		return gonull.NewNullable(env)
	}
	if in.closed {
		in.mu.Unlock()
		return gonull.Nullable[Envelope]{}
	}
	waiter := future.New[Envelope]()
	in.waiters = append(in.waiters, waiter)
	in.mu.Unlock()

	if timeout > 0 {
		task, err := in.sys.sched.After(timeout, func() {
			waiter.Fail(ErrTimeout)
		})
		if err != nil {
			waiter.Fail(err)
		} else {
			defer task.Cancel()
		}
	}

	env, err := waiter.Get()
	if err != nil {
		return gonull.Nullable[Envelope]{}
	}
	return gonull.NewNullable(env)
}

// Close stops the backing actor and releases blocked receivers.
func (in *Inbox) Close() {
	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		return
	}
	in.closed = true
	waiters := in.waiters
	in.waiters = nil
	in.mu.Unlock()

	for _, w := range waiters {
		w.Fail(errors.Wrap(ErrShutdown, "inbox closed"))
	}
	in.ref.Stop()
}

// deliver hands env to the oldest live waiter, or queues it.
func (in *Inbox) deliver(env Envelope) {
	in.mu.Lock()
	defer in.mu.Unlock()

	for len(in.waiters) > 0 {
		w := in.waiters[0]
		in.waiters[0] = nil
		in.waiters = in.waiters[1:]
		if w.Complete(env) {
			return
		}
	}
	in.queue = append(in.queue, env)
}

type inboxActor struct {
	inbox *Inbox
}

func (a *inboxActor) Receive(ctx *Context, _ any) error {
	a.inbox.deliver(ctx.Envelope())
	return nil
}

func (a *inboxActor) PostStop(*Context) {
	a.inbox.Close()
}
