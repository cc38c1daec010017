package core

import (
	"time"

	"github.com/pkg/errors"

	"github.com/najoast/troupe/future"
	"github.com/najoast/troupe/scheduler"
)

// Ask sends msg to target from a temporary actor and returns a future for
// the first reply. The future fails with ErrTimeout when no reply arrives
// in time, and with ErrShutdown when the system stops first. The temporary
// actor stops once the future settles.
func (s *System) Ask(target Ref, msg any, timeout time.Duration) *future.Future[Envelope] {
	f := future.New[Envelope]()
	if target.IsEmpty() {
		f.Fail(errors.Wrap(ErrDeadLetter, "ask to empty ref"))
		return f
	}
	if timeout <= 0 {
		timeout = s.settings.AskTimeout
	}

	r := &responder{result: f}
	ref, err := s.tempRoot.spawn("", r)
	if err != nil {
		f.Fail(err)
		return f
	}

	task, err := s.sched.After(timeout, func() {
		if f.Fail(errors.Wrapf(ErrTimeout, "ask %s after %s", target, timeout)) {
			ref.Stop()
		}
	})
	if err != nil {
		f.Fail(err)
		ref.Stop()
		return f
	}
	r.timeout = task

	target.TellFrom(msg, ref)
	return f
}

// AskAs is Ask followed by a blocking wait and a type assertion on the reply.
func AskAs[T any](s *System, target Ref, msg any, timeout time.Duration) (T, error) {
	var zero T
	env, err := s.Ask(target, msg, timeout).Get()
	if err != nil {
		return zero, err
	}
	v, ok := env.Message.(T)
	if !ok {
		return zero, errors.Errorf("ask %s: unexpected reply %s", target, TypeName(env.Message))
	}
	return v, nil
}

// responder captures exactly one reply.
type responder struct {
	result  *future.Future[Envelope]
	timeout *scheduler.Task
}

func (r *responder) Receive(ctx *Context, msg any) error {
	if r.result.Complete(ctx.Envelope()) && r.timeout != nil {
		r.timeout.Cancel()
	}
	ctx.Stop()
	return nil
}

// PostStop fails a future that is still waiting, which happens when the
// system shuts down before a reply or the timeout.
func (r *responder) PostStop(*Context) {
	if r.result.Fail(errors.Wrap(ErrShutdown, "ask responder stopped")) && r.timeout != nil {
		r.timeout.Cancel()
	}
}
