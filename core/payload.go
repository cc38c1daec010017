package core

import (
	"reflect"
)

// As extracts a payload of type T.
func As[T any](msg any) (T, bool) {
	v, ok := msg.(T)
	return v, ok
}

// AsOr extracts a payload of type T, or returns def.
func AsOr[T any](msg any, def T) T {
	if v, ok := msg.(T); ok {
		return v
	}
	return def
}

// Case is one arm of Match. It reports whether it accepted the message.
type Case func(msg any) (bool, error)

// On builds a Case for payloads of type T.
func On[T any](fn func(T) error) Case {
	return func(msg any) (bool, error) {
		v, ok := msg.(T)
		if !ok {
			return false, nil
		}
		return true, fn(v)
	}
}

// Default builds a Case that accepts anything. Put it last.
func Default(fn func(msg any) error) Case {
	return func(msg any) (bool, error) {
		return true, fn(msg)
	}
}

// Match tries cases in order and runs the first one whose type fits. It
// returns false when no case accepted msg.
//
//	handled, err := core.Match(msg,
//		core.On(func(p Ping) error { ... }),
//		core.On(func(s string) error { ... }),
//		core.Default(func(any) error { return nil }),
//	)
func Match(msg any, cases ...Case) (bool, error) {
	for _, c := range cases {
		if ok, err := c(msg); ok {
			return true, err
		}
	}
	return false, nil
}

// TypeName renders the dynamic type of a payload for logs.
func TypeName(msg any) string {
	if msg == nil {
		return "<nil>"
	}
	return reflect.TypeOf(msg).String()
}
