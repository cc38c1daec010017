// Package address implements hierarchical actor addresses.
//
// An absolute address renders as
//
//	actor://<system>/<scope>/<segment>/<segment>...
//
// while a bare string such as "parent/child" is a relative address whose
// resolution against a base is left to the actor system.
package address

import (
	"errors"
	"fmt"
	"strings"
)

// Scheme is the reserved URI scheme of absolute addresses.
const Scheme = "actor"

const schemeSep = "://"

// Scope partitions the top-level namespace of an actor system.
type Scope uint8

const (
	// ScopeUnknown is used by relative addresses and unrecognised scope tokens
	ScopeUnknown Scope = iota

	// ScopeSystem holds runtime-internal actors
	ScopeSystem

	// ScopeUser holds application actors
	ScopeUser
)

// String returns the scope token used in rendered addresses.
func (s Scope) String() string {
	switch s {
	case ScopeSystem:
		return "system"
	case ScopeUser:
		return "user"
	default:
		return "unknown"
	}
}

// ParseScope decodes a scope token. Unrecognised tokens decode to ScopeUnknown.
func ParseScope(token string) Scope {
	switch token {
	case "system":
		return ScopeSystem
	case "user":
		return ScopeUser
	default:
		return ScopeUnknown
	}
}

// ErrMalformed is wrapped by every ParseError.
var ErrMalformed = errors.New("malformed actor address")

// ParseError describes why an input string is not a valid address.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s %q: %s", ErrMalformed, e.Input, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return ErrMalformed
}

// Address is an immutable actor address. The zero value is an empty
// relative address.
type Address struct {
	system   string
	scope    Scope
	segments []string
	absolute bool
}

// New builds an absolute address. Empty segments are dropped.
func New(system string, scope Scope, segments ...string) Address {
	return Address{
		system:   system,
		scope:    scope,
		segments: compact(segments),
		absolute: true,
	}
}

// Relative builds a relative address out of path segments.
func Relative(segments ...string) Address {
	return Address{segments: compact(segments)}
}

// Parse decodes s into an Address. On failure the returned Address is the
// zero value.
func Parse(s string) (Address, error) {
	idx := strings.Index(s, schemeSep)
	if idx < 0 {
		segments := split(s)
		if len(segments) == 0 {
			return Address{}, &ParseError{Input: s, Reason: "empty path"}
		}
		return Address{segments: segments}, nil
	}

	if idx == 0 {
		return Address{}, &ParseError{Input: s, Reason: "missing scheme"}
	}
	if scheme := s[:idx]; scheme != Scheme {
		return Address{}, &ParseError{Input: s, Reason: fmt.Sprintf("unsupported scheme %q", scheme)}
	}

	rest := s[idx+len(schemeSep):]
	if rest == "" || rest[0] == '/' {
		return Address{}, &ParseError{Input: s, Reason: "missing system name"}
	}

	parts := split(rest)
	switch len(parts) {
	case 1:
		return Address{}, &ParseError{Input: s, Reason: "missing scope"}
	case 2:
		return Address{}, &ParseError{Input: s, Reason: "no path segments after scope"}
	}

	return Address{
		system:   parts[0],
		scope:    ParseScope(parts[1]),
		segments: parts[2:],
		absolute: true,
	}, nil
}

// MustParse is like Parse but panics on malformed input.
func MustParse(s string) Address {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// System returns the actor system name; empty for relative addresses.
func (a Address) System() string {
	return a.system
}

// Scope returns the address scope.
func (a Address) Scope() Scope {
	return a.scope
}

// IsAbsolute reports whether the address carries a system name and scope.
func (a Address) IsAbsolute() bool {
	return a.absolute
}

// IsZero reports whether a is the zero Address.
func (a Address) IsZero() bool {
	return !a.absolute && len(a.segments) == 0
}

// Segments returns a copy of the path segments.
func (a Address) Segments() []string {
	out := make([]string, len(a.segments))
	copy(out, a.segments)
	return out
}

// Depth returns the number of path segments.
func (a Address) Depth() int {
	return len(a.segments)
}

// Name returns the last path segment.
func (a Address) Name() string {
	if len(a.segments) == 0 {
		return ""
	}
	return a.segments[len(a.segments)-1]
}

// Child returns the address of a child named name.
func (a Address) Child(name string) Address {
	segments := make([]string, 0, len(a.segments)+1)
	segments = append(segments, a.segments...)
	segments = append(segments, compact([]string{name})...)
	return Address{system: a.system, scope: a.scope, segments: segments, absolute: a.absolute}
}

// Parent returns the address one level up. The parent of a single-segment
// address is the zero Address.
func (a Address) Parent() Address {
	if len(a.segments) <= 1 {
		return Address{}
	}
	return Address{
		system:   a.system,
		scope:    a.scope,
		segments: a.segments[:len(a.segments)-1 : len(a.segments)-1],
		absolute: a.absolute,
	}
}

// Join appends the segments of rel to a.
func (a Address) Join(rel Address) Address {
	segments := make([]string, 0, len(a.segments)+len(rel.segments))
	segments = append(segments, a.segments...)
	segments = append(segments, rel.segments...)
	return Address{system: a.system, scope: a.scope, segments: segments, absolute: a.absolute}
}

// String renders the address.
func (a Address) String() string {
	var b strings.Builder
	if a.absolute {
		b.WriteString(Scheme)
		b.WriteString(schemeSep)
		b.WriteString(a.system)
		b.WriteByte('/')
		b.WriteString(a.scope.String())
		for _, s := range a.segments {
			b.WriteByte('/')
			b.WriteString(s)
		}
		return b.String()
	}
	return strings.Join(a.segments, "/")
}

// Equal reports structural equality.
func (a Address) Equal(other Address) bool {
	return Matches(a, other)
}

// Matches reports whether a and b are structurally equal.
func Matches(a, b Address) bool {
	if a.absolute != b.absolute || a.system != b.system || a.scope != b.scope {
		return false
	}
	if len(a.segments) != len(b.segments) {
		return false
	}
	for i := range a.segments {
		if a.segments[i] != b.segments[i] {
			return false
		}
	}
	return true
}

// ValidName reports whether name can be used as a single path segment.
func ValidName(name string) bool {
	return name != "" && !strings.ContainsAny(name, "/ ") && !strings.Contains(name, schemeSep)
}

func split(s string) []string {
	return compact(strings.Split(s, "/"))
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
