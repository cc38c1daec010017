package core

import (
	"time"

	"github.com/najoast/troupe/logging"
	"github.com/najoast/troupe/scheduler"
)

// Context is handed to behaviors, PreStart and PostStop. It is only valid
// on the goroutine currently running the actor and must not be retained.
type Context struct {
	cell *cell
	env  Envelope
}

// Self returns the ref of the running actor.
func (c *Context) Self() Ref {
	return c.cell.ref()
}

// Parent returns the ref of the parent. Roots return the empty ref.
func (c *Context) Parent() Ref {
	if c.cell.parent == nil {
		return Ref{}
	}
	return c.cell.parent.ref()
}

// Sender returns who sent the message being handled, or the dead-letters
// actor when there is none.
func (c *Context) Sender() Ref {
	if c.env.Sender.IsEmpty() {
		return c.cell.sys.DeadLetters()
	}
	return c.env.Sender
}

// Message returns the payload being handled.
func (c *Context) Message() any {
	return c.env.Message
}

// Envelope returns the message being handled with its raw sender.
func (c *Context) Envelope() Envelope {
	return c.env
}

// System returns the owning actor system.
func (c *Context) System() *System {
	return c.cell.sys
}

// Log returns the system logger.
func (c *Context) Log() *logging.Logger {
	return c.cell.sys.log
}

// ActorOf creates a child. The child's PreStart has completed when ActorOf
// returns. An empty name generates a unique one.
func (c *Context) ActorOf(name string, actor Actor, opts ...SpawnOption) (Ref, error) {
	return c.cell.spawn(name, actor, opts...)
}

// Child returns the live child with the given name.
func (c *Context) Child(name string) (Ref, bool) {
	k, ok := c.cell.child(name)
	if !ok {
		return Ref{}, false
	}
	return k.ref(), true
}

// Children returns the current children, in no particular order.
func (c *Context) Children() []Ref {
	return c.cell.childRefs()
}

// Tell sends msg to target with the running actor as sender.
func (c *Context) Tell(target Ref, msg any) {
	target.TellFrom(msg, c.Self())
}

// Reply sends msg back to the sender of the current message.
func (c *Context) Reply(msg any) {
	c.Sender().TellFrom(msg, c.Self())
}

// Forward re-sends the current message to target, keeping the original
// sender.
func (c *Context) Forward(target Ref) {
	target.TellFrom(c.env.Message, c.env.Sender)
}

// Stop enqueues a PoisonPill for the running actor. Messages already queued
// ahead of it are still handled.
func (c *Context) Stop() {
	c.Self().Stop()
}

// Become replaces the active behavior from the next message on.
func (c *Context) Become(b Behavior) {
	c.cell.behaviors[len(c.cell.behaviors)-1] = b
}

// BecomeStacked pushes b on top of the behavior stack.
func (c *Context) BecomeStacked(b Behavior) {
	c.cell.behaviors = append(c.cell.behaviors, b)
}

// Unbecome pops the active behavior. The initial behavior is never popped.
func (c *Context) Unbecome() {
	n := len(c.cell.behaviors)
	if n == 1 {
		c.cell.sys.log.Warn("unbecome with a single behavior left", "actor", c.cell.id)
		return
	}
	c.cell.behaviors[n-1] = nil
	c.cell.behaviors = c.cell.behaviors[:n-1]
}

// BehaviorDepth returns the size of the behavior stack.
func (c *Context) BehaviorDepth() int {
	return len(c.cell.behaviors)
}

// Watch subscribes the running actor to target's Terminated notification.
func (c *Context) Watch(target Ref) {
	c.cell.sys.Watch(target, c.Self())
}

// Unwatch cancels a previous Watch.
func (c *Context) Unwatch(target Ref) {
	c.cell.sys.Unwatch(target, c.Self())
}

// ScheduleOnce delivers msg to target after delay, with the running actor
// as sender.
func (c *Context) ScheduleOnce(delay time.Duration, target Ref, msg any) (*scheduler.Task, error) {
	return c.cell.sys.ScheduleOnce(delay, target, msg, c.Self())
}
