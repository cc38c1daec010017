// Package future provides a single-assignment result cell.
//
// A Future is settled at most once. Concurrent settlors race on an atomic
// guard and only the first one wins; every later attempt reports false.
package future

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrCancelled settles a future that was abandoned by its producer.
var ErrCancelled = errors.New("future cancelled")

// Future holds a value of type T or an error once settled.
type Future[T any] struct {
	settled atomic.Bool
	done    chan struct{}
	value   T
	err     error
}

// New returns an unsettled Future.
func New[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Completed returns a Future already settled with v.
func Completed[T any](v T) *Future[T] {
	f := New[T]()
	f.Complete(v)
	return f
}

// Complete settles the future with v. It returns false if the future was
// already settled.
func (f *Future[T]) Complete(v T) bool {
	if !f.settled.CompareAndSwap(false, true) {
		return false
	}
	f.value = v
	close(f.done)
	return true
}

// Fail settles the future with err.
func (f *Future[T]) Fail(err error) bool {
	if err == nil {
		err = ErrCancelled
	}
	if !f.settled.CompareAndSwap(false, true) {
		return false
	}
	f.err = err
	close(f.done)
	return true
}

// Settled reports whether Complete or Fail already won.
func (f *Future[T]) Settled() bool {
	return f.settled.Load()
}

// Done is closed once the result is readable.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Get blocks until the future is settled.
func (f *Future[T]) Get() (T, error) {
	<-f.done
	return f.value, f.err
}

// Await blocks until the future is settled or ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Wait is Await with a relative deadline. A non-positive timeout waits
// forever.
func (f *Future[T]) Wait(timeout time.Duration) (T, error) {
	if timeout <= 0 {
		return f.Get()
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return f.Await(ctx)
}

// Result returns the settled value without blocking. ok is false while the
// future is pending.
func (f *Future[T]) Result() (v T, err error, ok bool) {
	select {
	case <-f.done:
		return f.value, f.err, true
	default:
		return v, nil, false
	}
}
