package core

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/najoast/troupe/address"
)

// Actor lifecycle errors
var (
	ErrNameCollision   = errors.New("actor name already taken")
	ErrInvalidName     = errors.New("invalid actor name")
	ErrShutdown        = errors.New("actor is stopping")
	ErrInitFailed      = errors.New("actor failed to start")
	ErrUnknownExecutor = errors.New("unknown executor")
)

// Messaging errors
var (
	ErrTimeout    = errors.New("timed out")
	ErrDeadLetter = errors.New("message sent to dead letters")
	ErrNilActor   = errors.New("nil actor")
)

// HandlerFault is the error recorded when a behavior returns an error or
// panics. The cell that raised it is stopped.
type HandlerFault struct {
	Path    address.Address
	Message any
	Cause   error
	Panic   any
	Stack   []byte
}

func (f *HandlerFault) Error() string {
	if f.Panic != nil {
		return fmt.Sprintf("actor %s panicked handling %s: %v", f.Path, TypeName(f.Message), f.Panic)
	}
	return fmt.Sprintf("actor %s failed handling %s: %v", f.Path, TypeName(f.Message), f.Cause)
}

func (f *HandlerFault) Unwrap() error {
	return f.Cause
}
