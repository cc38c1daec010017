package network

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/najoast/troupe/core"
)

// connection owns one socket. A read goroutine feeds frames to the actor,
// writes happen on the actor itself so they keep the order of Write
// commands.
type connection struct {
	conn    net.Conn
	handler core.Ref
	codec   Codec
	opts    Options

	closing atomic.Bool
	cause   error

	bytesRead    int64
	bytesWritten int64
	framesRead   int64
	framesSent   int64
}

func newConnection(conn net.Conn, handler core.Ref, opts Options) *connection {
	return &connection{
		conn:    conn,
		handler: handler,
		codec:   opts.codec(),
		opts:    opts,
	}
}

func (c *connection) PreStart(ctx *core.Context) error {
	ctx.Watch(c.handler)

	self := ctx.Self()
	go c.readLoop(self)
	return nil
}

func (c *connection) readLoop(self core.Ref) {
	r := bufio.NewReaderSize(c.conn, c.opts.bufferSize())
	for {
		if c.opts.ReadTimeout > 0 {
			c.conn.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
		}
		data, err := c.codec.ReadFrame(r)
		if err != nil {
			if !c.closing.Load() {
				self.Tell(readFailed{err: err})
			}
			return
		}
		self.Tell(received{data: data})
	}
}

func (c *connection) Receive(ctx *core.Context, msg any) error {
	switch msg := msg.(type) {
	case received:
		c.framesRead++
		c.bytesRead += int64(len(msg.data))
		ctx.Tell(c.handler, Received{Conn: ctx.Self(), Data: msg.data})

	case readFailed:
		if !errors.Is(msg.err, io.EOF) {
			c.cause = msg.err
		}
		ctx.Stop()

	case Write:
		if err := c.write(msg.Data); err != nil {
			ctx.Reply(CommandFailed{Command: msg, Err: err})
			c.cause = err
			ctx.Stop()
			return nil
		}
		if msg.Ack != nil {
			ctx.Reply(msg.Ack)
		}

	case Close:
		ctx.Stop()

	case Register:
		if msg.Handler.IsEmpty() {
			ctx.Reply(CommandFailed{Command: msg, Err: ErrNoHandler})
			return nil
		}
		ctx.Unwatch(c.handler)
		c.handler = msg.Handler
		ctx.Watch(c.handler)

	case core.Terminated:
		if msg.Ref.Equal(c.handler) {
			ctx.Stop()
		}
	}
	return nil
}

func (c *connection) write(data []byte) error {
	if c.closing.Load() {
		return ErrConnectionClosed
	}
	if c.opts.WriteTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
			return err
		}
	}
	if err := c.codec.WriteFrame(c.conn, data); err != nil {
		return err
	}
	c.framesSent++
	c.bytesWritten += int64(len(data))
	return nil
}

func (c *connection) PostStop(ctx *core.Context) {
	c.closing.Store(true)
	c.conn.Close()

	if c.cause != nil {
		ctx.Log().Debug("tcp connection failed", "remote", c.conn.RemoteAddr().String(), "error", c.cause)
	}
	ctx.Log().Debug("tcp connection closed",
		"remote", c.conn.RemoteAddr().String(),
		"bytes_read", c.bytesRead, "bytes_written", c.bytesWritten,
		"frames_read", c.framesRead, "frames_sent", c.framesSent)
	ctx.Tell(c.handler, Closed{Conn: ctx.Self(), Err: c.cause})
}
