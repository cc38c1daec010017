package core

import (
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"

	"github.com/najoast/troupe/address"
	"github.com/najoast/troupe/dispatch"
	"github.com/najoast/troupe/logging"
	"github.com/najoast/troupe/mailbox"
)

// cell is the runtime side of an actor: mailbox, behavior stack, children,
// watchers and lifecycle state.
//
// Fields in the second block are only touched by the goroutine that owns
// the mailbox's scheduled flag (or by the creating goroutine before start).
// children, parked and closing are guarded by mu because roots are mutated
// from arbitrary goroutines.
type cell struct {
	sys       *System
	path      address.Address
	id        string
	name      string
	parent    *cell
	actor     Actor
	box       *mailbox.Mailbox[Envelope]
	exec      atomic.Pointer[execSlot]
	state     atomic.Int32
	processed atomic.Uint64
	createdAt time.Time
	done      chan struct{}

	ctx       *Context
	behaviors []Behavior
	watchers  map[*cell]struct{}
	fault     *HandlerFault

	mu       sync.Mutex
	children map[string]*cell
	parked   map[string][]*resolveReq
	closing  bool
}

type execSlot struct {
	dispatch.Executor
}

func newCell(sys *System, parent *cell, path address.Address, actor Actor, exec dispatch.Executor) *cell {
	c := &cell{
		sys:       sys,
		path:      path,
		id:        path.String(),
		name:      path.Name(),
		parent:    parent,
		actor:     actor,
		box:       mailbox.New[Envelope](),
		createdAt: time.Now(),
		done:      make(chan struct{}),
		behaviors: []Behavior{actor.Receive},
		children:  make(map[string]*cell),
	}
	c.ctx = &Context{cell: c}
	c.exec.Store(&execSlot{exec})
	return c
}

func (c *cell) ref() Ref {
	return Ref{cell: c}
}

func (c *cell) lifecycle() ActorState {
	return ActorState(c.state.Load())
}

func (c *cell) executor() dispatch.Executor {
	return c.exec.Load().Executor
}

// TrySchedule implements dispatch.Runnable.
func (c *cell) TrySchedule() bool { return c.box.TrySchedule() }

// Unschedule implements dispatch.Runnable.
func (c *cell) Unschedule() { c.box.Unschedule() }

// HasMessages implements dispatch.Runnable.
func (c *cell) HasMessages() bool { return c.box.HasMessages() }

// Run implements dispatch.Runnable. It handles up to throughput messages,
// system lane first.
func (c *cell) Run(throughput int) bool {
	for i := 0; i < throughput; i++ {
		env, lane, ok := c.box.Pop()
		if !ok {
			return false
		}
		if lane == mailbox.LaneSystem {
			c.handleSystem(env.Message)
		} else {
			c.handleUser(env)
		}
	}
	return c.box.HasMessages()
}

func (c *cell) send(env Envelope) {
	c.box.Push(env)
	c.schedule()
}

func (c *cell) sendSystem(msg any) {
	c.box.PushSystem(Envelope{Message: msg})
	c.schedule()
}

// schedule hands the cell to its executor. Cells that have not started keep
// their messages until start.
func (c *cell) schedule() {
	if c.lifecycle() == ActorStateCreated {
		return
	}
	if err := c.executor().Execute(c); err != nil && logging.Debug {
		c.sys.log.Debug("executor rejected actor", "actor", c.id, "error", err)
	}
}

// spawn creates a child of c. PreStart runs on the calling goroutine.
func (c *cell) spawn(name string, actor Actor, opts ...SpawnOption) (Ref, error) {
	if actor == nil {
		return Ref{}, ErrNilActor
	}

	var o SpawnOptions
	for _, opt := range opts {
		opt(&o)
	}

	if name == "" {
		name = "$" + uuid.NewString()
	} else if !address.ValidName(name) {
		return Ref{}, errors.Wrapf(ErrInvalidName, "%q", name)
	}

	exec, err := c.sys.executorFor(o.Executor)
	if err != nil {
		return Ref{}, err
	}

	child := newCell(c.sys, c, c.path.Child(name), actor, exec)
	if err := c.addChild(child); err != nil {
		return Ref{}, err
	}

	exec.Attach(child)

	if err := child.preStart(); err != nil {
		child.abort()
		c.sys.log.Error("actor failed to start", "actor", child.id, "error", err)
		return Ref{}, errors.Wrapf(ErrInitFailed, "%s: %v", child.id, err)
	}

	child.start()
	return child.ref(), nil
}

func (c *cell) addChild(child *cell) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closing || c.lifecycle() >= ActorStateStopping {
		return errors.Wrapf(ErrShutdown, "cannot create %s", child.id)
	}
	if _, exists := c.children[child.name]; exists {
		c.sys.log.Warn("actor name collision", "parent", c.id, "name", child.name)
		return errors.Wrapf(ErrNameCollision, "%s", child.id)
	}
	c.children[child.name] = child
	return nil
}

func (c *cell) preStart() (err error) {
	ps, ok := c.actor.(PreStarter)
	if !ok {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = &HandlerFault{Path: c.path, Panic: r, Stack: debug.Stack()}
		}
	}()
	return ps.PreStart(c.ctx)
}

func (c *cell) start() {
	c.state.Store(int32(ActorStateStarted))
	c.sys.register(c)
	if c.parent != nil {
		c.parent.resumeParked(c)
	}
	if logging.Debug {
		c.sys.log.Debug("actor started", "actor", c.id, "executor", c.executor().Name())
	}
	if c.box.HasMessages() {
		c.schedule()
	}
}

// abort unwinds a child whose PreStart failed. Anything already queued for
// it, including parked resolutions, is drained as for a stopped actor.
func (c *cell) abort() {
	c.state.Store(int32(ActorStateStopped))
	c.box.Close()

	exec := c.executor()
	c.exec.Store(&execSlot{c.sys.executors.Default()})
	exec.Detach(c)

	p := c.parent
	p.mu.Lock()
	if p.children[c.name] == c {
		delete(p.children, c.name)
	}
	p.mu.Unlock()
	p.sendSystem(childStopped{child: c})

	close(c.done)
	c.schedule()
}

func (c *cell) handleUser(env Envelope) {
	if _, ok := env.Message.(PoisonPill); ok {
		c.beginStop()
		return
	}
	if c.lifecycle() != ActorStateStarted {
		c.sys.deadLetter(env, c.ref())
		return
	}

	c.processed.Add(1)
	c.sys.processed.Add(1)

	c.ctx.env = env
	fault := c.invoke(env)
	c.ctx.env = Envelope{}

	if fault != nil {
		c.fail(fault)
	}
}

func (c *cell) invoke(env Envelope) (fault *HandlerFault) {
	defer func() {
		if r := recover(); r != nil {
			fault = &HandlerFault{Path: c.path, Message: env.Message, Panic: r, Stack: debug.Stack()}
		}
	}()

	behavior := c.behaviors[len(c.behaviors)-1]
	if err := behavior(c.ctx, env.Message); err != nil {
		return &HandlerFault{Path: c.path, Message: env.Message, Cause: err}
	}
	return nil
}

func (c *cell) fail(fault *HandlerFault) {
	c.fault = fault
	args := []any{"actor", c.id, "message", TypeName(fault.Message)}
	if fault.Panic != nil {
		args = append(args, "panic", fault.Panic, "stack", string(fault.Stack))
	} else {
		args = append(args, "error", fault.Cause)
	}
	c.sys.log.Error("actor fault, stopping", args...)
	c.beginStop()
}

func (c *cell) handleSystem(msg any) {
	switch m := msg.(type) {
	case stopSignal:
		c.beginStop()
	case watchReq:
		c.addWatcher(m.watcher)
	case unwatchReq:
		delete(c.watchers, m.watcher)
	case childStopped:
		c.removeChild(m.child)
	case *resolveReq:
		c.resolve(m)
	default:
		c.sys.log.Warn("unknown system message", "actor", c.id, "message", TypeName(msg))
	}
}

func (c *cell) addWatcher(w *cell) {
	if w == nil || w == c {
		return
	}
	if c.lifecycle() == ActorStateStopped {
		self := c.ref()
		w.send(Envelope{Message: Terminated{Ref: self}, Sender: self})
		return
	}
	if c.watchers == nil {
		c.watchers = make(map[*cell]struct{})
	}
	c.watchers[w] = struct{}{}
}

// beginStop moves a started cell to stopping and cascades to its children.
func (c *cell) beginStop() {
	if !c.state.CompareAndSwap(int32(ActorStateStarted), int32(ActorStateStopping)) {
		return
	}

	c.mu.Lock()
	c.closing = true
	kids := maps.Values(c.children)
	parked := c.parked
	c.parked = nil
	c.mu.Unlock()

	for _, reqs := range parked {
		for _, r := range reqs {
			r.settle(Ref{})
		}
	}

	if logging.Debug {
		c.sys.log.Debug("actor stopping", "actor", c.id, "children", len(kids))
	}

	if len(kids) == 0 {
		c.finishStop()
		return
	}
	for _, k := range kids {
		k.sendSystem(stopSignal{})
	}
}

func (c *cell) removeChild(child *cell) {
	c.mu.Lock()
	if c.children[child.name] == child {
		delete(c.children, child.name)
	}
	empty := len(c.children) == 0
	c.mu.Unlock()

	if empty && c.lifecycle() == ActorStateStopping {
		c.finishStop()
	}
}

// finishStop runs once every child is gone.
func (c *cell) finishStop() {
	if ps, ok := c.actor.(PostStopper); ok {
		c.postStop(ps)
	}

	c.state.Store(int32(ActorStateStopped))
	c.box.Close()

	self := c.ref()
	for w := range c.watchers {
		w.send(Envelope{Message: Terminated{Ref: self}, Sender: self})
	}
	c.watchers = nil

	c.sys.unregister(c)

	exec := c.executor()
	c.exec.Store(&execSlot{c.sys.executors.Default()})
	exec.Detach(c)

	if c.parent != nil {
		c.parent.sendSystem(childStopped{child: c})
	}

	if logging.Debug {
		c.sys.log.Debug("actor stopped", "actor", c.id, "processed", c.processed.Load())
	}
	close(c.done)
}

func (c *cell) postStop(ps PostStopper) {
	defer func() {
		if r := recover(); r != nil {
			c.sys.log.Error("actor panicked in PostStop",
				"actor", c.id, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	c.ctx.env = Envelope{}
	ps.PostStop(c.ctx)
}

// resolve advances a find request by one segment, parking it when the next
// child does not exist yet.
func (c *cell) resolve(req *resolveReq) {
	if req.done() {
		return
	}
	if c.lifecycle() == ActorStateStopped {
		req.settle(Ref{})
		return
	}
	if req.idx == len(req.segments) {
		req.settle(c.ref())
		return
	}

	name := req.segments[req.idx]

	c.mu.Lock()
	child, ok := c.children[name]
	if !ok {
		if c.closing {
			c.mu.Unlock()
			req.settle(Ref{})
			return
		}
		if req.done() {
			c.mu.Unlock()
			return
		}
		if c.parked == nil {
			c.parked = make(map[string][]*resolveReq)
		}
		c.parked[name] = append(pending(c.parked[name]), req)
		req.parkedAt.Store(&parking{cell: c, name: name})
		c.mu.Unlock()

		// the timeout may have fired before parkedAt was visible to it
		if req.done() {
			req.unpark()
		}
		return
	}
	c.mu.Unlock()

	req.idx++
	child.sendSystem(req)
}

// resumeParked forwards requests that were waiting for child to appear.
func (c *cell) resumeParked(child *cell) {
	c.mu.Lock()
	reqs := c.parked[child.name]
	delete(c.parked, child.name)
	c.mu.Unlock()

	for _, r := range reqs {
		r.parkedAt.Store(nil)
		if r.done() {
			continue
		}
		r.idx++
		child.sendSystem(r)
	}
}

func (c *cell) child(name string) (*cell, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k, ok := c.children[name]
	return k, ok
}

func (c *cell) childRefs() []Ref {
	c.mu.Lock()
	kids := maps.Values(c.children)
	c.mu.Unlock()

	refs := make([]Ref, 0, len(kids))
	for _, k := range kids {
		refs = append(refs, k.ref())
	}
	return refs
}

func (c *cell) stats() ActorStats {
	c.mu.Lock()
	children := len(c.children)
	c.mu.Unlock()

	return ActorStats{
		Path:              c.id,
		State:             c.lifecycle(),
		MessagesProcessed: c.processed.Load(),
		MailboxSize:       c.box.Len(),
		Children:          children,
		Executor:          c.executor().Name(),
		CreatedAt:         c.createdAt,
	}
}

// pending drops requests that already settled, usually by timeout.
func pending(reqs []*resolveReq) []*resolveReq {
	kept := reqs[:0]
	for _, r := range reqs {
		if !r.done() {
			kept = append(kept, r)
		}
	}
	return kept
}
