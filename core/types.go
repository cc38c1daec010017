package core

import (
	"time"
)

// Envelope carries a payload and the ref of whoever sent it.
type Envelope struct {
	// Message is the payload
	Message any

	// Sender is empty for messages sent from outside any actor
	Sender Ref
}

// ActorState represents the lifecycle stage of an actor.
type ActorState int32

const (
	// ActorStateCreated means PreStart has not completed yet
	ActorStateCreated ActorState = iota

	// ActorStateStarted means the actor is processing messages
	ActorStateStarted

	// ActorStateStopping means the actor is waiting for its children to stop
	ActorStateStopping

	// ActorStateStopped means PostStop ran and watchers were notified
	ActorStateStopped
)

// String returns the string representation of ActorState.
func (s ActorState) String() string {
	switch s {
	case ActorStateCreated:
		return "created"
	case ActorStateStarted:
		return "started"
	case ActorStateStopping:
		return "stopping"
	case ActorStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// SpawnOptions configures a new actor.
type SpawnOptions struct {
	// Executor names the execution context. Empty selects the system default.
	Executor string
}

// SpawnOption mutates SpawnOptions.
type SpawnOption func(*SpawnOptions)

// WithExecutor runs the actor on the named execution context.
func WithExecutor(name string) SpawnOption {
	return func(o *SpawnOptions) {
		o.Executor = name
	}
}

// ActorStats contains runtime statistics for an actor.
type ActorStats struct {
	// Path of the actor
	Path string

	// Current state
	State ActorState

	// Total messages handed to a behavior
	MessagesProcessed uint64

	// Messages currently queued
	MailboxSize int

	// Number of live children
	Children int

	// Execution context name
	Executor string

	// Time when the actor was created
	CreatedAt time.Time
}

// SystemStats summarises a running system.
type SystemStats struct {
	// Name of the system
	Name string

	// Actors currently registered in the path index
	Actors int

	// Messages routed to dead letters
	DeadLetters uint64

	// Messages handed to a behavior across all actors
	MessagesProcessed uint64

	// Uptime since NewSystem
	Uptime time.Duration
}
