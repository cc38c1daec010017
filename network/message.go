// Package network provides TCP I/O as actors. A manager at
// actor://<system>/system/io-tcp accepts Bind and Connect commands; every
// listening socket and every connection is an ordinary actor that reports
// to a handler actor.
package network

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/najoast/troupe/core"
)

// Network errors
var (
	ErrFrameTooLarge    = errors.New("frame too large")
	ErrConnectionClosed = errors.New("connection closed")
	ErrNoHandler        = errors.New("command has no handler")
	ErrManagerNotFound  = errors.New("tcp manager not running")
)

// Commands sent to the manager

// Bind asks the manager to listen on Address. The sender receives Bound or
// CommandFailed. Accepted connections are announced to Handler.
type Bind struct {
	Handler core.Ref
	Address string
	Options *Options
}

// Connect asks the manager to dial Address. Handler receives Connected or
// CommandFailed, and then the connection's events.
type Connect struct {
	Handler core.Ref
	Address string
	Timeout time.Duration
	Options *Options
}

// Commands sent to a listener

// Unbind closes the listening socket along with every connection accepted
// through it. The sender receives Unbound.
type Unbind struct{}

// Commands sent to a connection

// Write sends Data to the peer. When Ack is set it is replied to the sender
// once the bytes are written.
type Write struct {
	Data []byte
	Ack  any
}

// Close shuts the connection down. The handler gets Closed.
type Close struct{}

// Register moves a connection's events to another handler.
type Register struct {
	Handler core.Ref
}

// Events

// Bound confirms a Bind. Addr is the resolved local address.
type Bound struct {
	Listener core.Ref
	Addr     net.Addr
}

// Unbound confirms an Unbind, or reports a listener that stopped on its own.
type Unbound struct {
	Listener core.Ref
}

// Connected announces a new connection, inbound or outbound.
type Connected struct {
	Conn   core.Ref
	Remote net.Addr
	Local  net.Addr
}

// Received carries bytes read from the peer: one frame when framing is on,
// one read otherwise.
type Received struct {
	Conn core.Ref
	Data []byte
}

// Closed is the last event of a connection. Err is nil for an orderly close
// from either side.
type Closed struct {
	Conn core.Ref
	Err  error
}

// CommandFailed reports a command that could not be carried out.
type CommandFailed struct {
	Command any
	Err     error
}

func (f CommandFailed) Error() string {
	return fmt.Sprintf("%s failed: %v", core.TypeName(f.Command), f.Err)
}

// Unwrap returns the cause
func (f CommandFailed) Unwrap() error {
	return f.Err
}

// internal messages

type accepted struct {
	conn net.Conn
}

type acceptFailed struct {
	err error
}

type dialed struct {
	cmd    Connect
	sender core.Ref
	conn   net.Conn
	err    error
}

type received struct {
	data []byte
}

type readFailed struct {
	err error
}
