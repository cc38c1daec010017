package core

// Behavior handles one message. Returning an error is a fault that stops
// the actor.
type Behavior func(ctx *Context, msg any) error

// Actor is implemented by user code. Receive is the initial behavior.
type Actor interface {
	Receive(ctx *Context, msg any) error
}

// PreStarter is implemented by actors that need to initialise before the
// first message. It runs on the goroutine that creates the actor, and a
// failure aborts the creation.
type PreStarter interface {
	PreStart(ctx *Context) error
}

// PostStopper is implemented by actors that release resources when they
// stop. It runs after every child has stopped.
type PostStopper interface {
	PostStop(ctx *Context)
}

// ActorFunc adapts a function to the Actor interface.
type ActorFunc func(ctx *Context, msg any) error

// Receive implements Actor.
func (f ActorFunc) Receive(ctx *Context, msg any) error {
	return f(ctx, msg)
}
