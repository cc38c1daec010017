package core

import (
	"github.com/najoast/troupe/address"
)

// Ref is a handle on an actor. The zero value is the empty ref: its path is
// the zero address and sends to it are dropped, counted as dead letters
// when the sender is known.
//
// A Ref does not keep the actor running. Once the actor stopped, messages
// sent through the Ref are drained to dead letters.
type Ref struct {
	cell *cell
}

// IsEmpty reports whether r refers to no actor.
func (r Ref) IsEmpty() bool {
	return r.cell == nil
}

// Path returns the address of the actor.
func (r Ref) Path() address.Address {
	if r.cell == nil {
		return address.Address{}
	}
	return r.cell.path
}

// String renders the address.
func (r Ref) String() string {
	if r.cell == nil {
		return "<empty>"
	}
	return r.cell.path.String()
}

// Equal reports whether both refs designate the same actor incarnation.
func (r Ref) Equal(other Ref) bool {
	return r.cell == other.cell
}

// State returns the lifecycle stage. The empty ref reports stopped.
func (r Ref) State() ActorState {
	if r.cell == nil {
		return ActorStateStopped
	}
	return r.cell.lifecycle()
}

// IsAlive reports whether the actor has not stopped yet.
func (r Ref) IsAlive() bool {
	return r.State() != ActorStateStopped
}

// Tell sends msg without a sender.
func (r Ref) Tell(msg any) {
	r.TellFrom(msg, Ref{})
}

// TellFrom sends msg on behalf of sender.
func (r Ref) TellFrom(msg any, sender Ref) {
	if r.cell == nil {
		if sender.cell != nil {
			sender.cell.sys.deadLetter(Envelope{Message: msg, Sender: sender}, r)
		}
		return
	}
	r.cell.send(Envelope{Message: msg, Sender: sender})
}

// Stop enqueues a PoisonPill. Messages already queued are handled first.
func (r Ref) Stop() {
	r.Tell(PoisonPill{})
}

// Done is closed once the actor reached the stopped state. The empty ref
// returns a closed channel.
func (r Ref) Done() <-chan struct{} {
	if r.cell == nil {
		return closedChan
	}
	return r.cell.done
}

// Stats returns a snapshot of the actor's counters.
func (r Ref) Stats() ActorStats {
	if r.cell == nil {
		return ActorStats{State: ActorStateStopped}
	}
	return r.cell.stats()
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()
