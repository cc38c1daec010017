package network

import (
	"net"
	"sync/atomic"

	"github.com/najoast/troupe/core"
)

// listener owns one listening socket. An accept goroutine hands every new
// socket to the actor, which wraps it in a connection child and announces it
// to the handler.
type listener struct {
	ln      net.Listener
	handler core.Ref
	opts    Options

	closing  atomic.Bool
	accepted int64
}

func (l *listener) PreStart(ctx *core.Context) error {
	ctx.Watch(l.handler)

	self := ctx.Self()
	go l.acceptLoop(self)
	return nil
}

func (l *listener) acceptLoop(self core.Ref) {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if !l.closing.Load() {
				self.Tell(acceptFailed{err: err})
			}
			return
		}
		if l.closing.Load() {
			conn.Close()
			return
		}
		self.Tell(accepted{conn: conn})
	}
}

func (l *listener) Receive(ctx *core.Context, msg any) error {
	switch msg := msg.(type) {
	case accepted:
		l.accept(ctx, msg.conn)

	case acceptFailed:
		ctx.Log().Error("tcp accept failed", "addr", l.ln.Addr().String(), "error", msg.err)
		ctx.Tell(l.handler, Unbound{Listener: ctx.Self()})
		ctx.Stop()

	case Unbind:
		l.close()
		ctx.Reply(Unbound{Listener: ctx.Self()})
		ctx.Stop()

	case core.Terminated:
		if msg.Ref.Equal(l.handler) {
			ctx.Stop()
		}
	}
	return nil
}

func (l *listener) accept(ctx *core.Context, conn net.Conn) {
	if l.closing.Load() {
		conn.Close()
		return
	}

	ref, err := spawnConnection(ctx, conn, l.handler, l.opts)
	if err != nil {
		ctx.Log().Warn("tcp connection rejected", "remote", conn.RemoteAddr().String(), "error", err)
		conn.Close()
		return
	}
	l.accepted++

	ctx.Tell(l.handler, Connected{
		Conn:   ref,
		Remote: conn.RemoteAddr(),
		Local:  conn.LocalAddr(),
	})
}

func (l *listener) close() {
	if l.closing.CompareAndSwap(false, true) {
		l.ln.Close()
	}
}

// PostStop runs after every accepted connection has stopped
func (l *listener) PostStop(ctx *core.Context) {
	l.close()
	ctx.Log().Info("tcp listener closed", "addr", l.ln.Addr().String(), "accepted", l.accepted)
}
