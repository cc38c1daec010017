package network

import (
	"net"

	"github.com/google/uuid"

	"github.com/najoast/troupe/address"
	"github.com/najoast/troupe/core"
)

// ManagerName is the manager's name under the system scope
const ManagerName = "io-tcp"

// ManagerAddress returns where the manager of system lives
func ManagerAddress(system string) address.Address {
	return address.New(system, address.ScopeSystem, ManagerName)
}

// Start creates the TCP manager of sys. opts are the defaults for commands
// that carry none.
func Start(sys *core.System, opts Options) (core.Ref, error) {
	return sys.SystemActorOf(ManagerName, &manager{opts: opts})
}

// Manager returns the running TCP manager of sys
func Manager(sys *core.System) (core.Ref, error) {
	ref, ok := sys.Lookup(ManagerAddress(sys.Name()).String())
	if !ok {
		return core.Ref{}, ErrManagerNotFound
	}
	return ref, nil
}

// manager owns every listener and every outbound connection as children,
// so stopping it closes all sockets.
type manager struct {
	opts Options
}

func (m *manager) Receive(ctx *core.Context, msg any) error {
	switch msg := msg.(type) {
	case Bind:
		m.bind(ctx, msg)
	case Connect:
		m.connect(ctx, msg)
	case dialed:
		m.dialed(ctx, msg)
	}
	return nil
}

func (m *manager) options(o *Options) Options {
	if o != nil {
		return *o
	}
	return m.opts
}

func (m *manager) bind(ctx *core.Context, cmd Bind) {
	if cmd.Handler.IsEmpty() {
		ctx.Reply(CommandFailed{Command: cmd, Err: ErrNoHandler})
		return
	}

	ln, err := net.Listen("tcp", cmd.Address)
	if err != nil {
		ctx.Reply(CommandFailed{Command: cmd, Err: err})
		return
	}

	opts := m.options(cmd.Options)
	l := &listener{ln: ln, handler: cmd.Handler, opts: opts}
	ref, err := ctx.ActorOf("listener-"+uuid.NewString(), l, spawnOptions(opts)...)
	if err != nil {
		ln.Close()
		ctx.Reply(CommandFailed{Command: cmd, Err: err})
		return
	}

	ctx.Log().Info("tcp listener bound", "addr", ln.Addr().String(), "listener", ref.String())
	ctx.Reply(Bound{Listener: ref, Addr: ln.Addr()})
}

// connect dials off the actor goroutine and reports back with dialed
func (m *manager) connect(ctx *core.Context, cmd Connect) {
	if cmd.Handler.IsEmpty() {
		ctx.Reply(CommandFailed{Command: cmd, Err: ErrNoHandler})
		return
	}

	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	opts := m.options(cmd.Options)
	self, sender := ctx.Self(), ctx.Sender()

	go func() {
		dialer := &net.Dialer{Timeout: timeout, KeepAlive: opts.KeepAlive}
		conn, err := dialer.Dial("tcp", cmd.Address)
		if err == nil && !self.IsAlive() {
			conn.Close()
			return
		}
		self.Tell(dialed{cmd: cmd, sender: sender, conn: conn, err: err})
	}()
}

func (m *manager) dialed(ctx *core.Context, msg dialed) {
	if msg.err != nil {
		ctx.Tell(msg.cmd.Handler, CommandFailed{Command: msg.cmd, Err: msg.err})
		return
	}

	opts := m.options(msg.cmd.Options)
	ref, err := spawnConnection(ctx, msg.conn, msg.cmd.Handler, opts)
	if err != nil {
		msg.conn.Close()
		ctx.Tell(msg.cmd.Handler, CommandFailed{Command: msg.cmd, Err: err})
		return
	}

	ctx.Log().Debug("tcp connection established", "remote", msg.conn.RemoteAddr().String(), "conn", ref.String())
	ctx.Tell(msg.cmd.Handler, Connected{
		Conn:   ref,
		Remote: msg.conn.RemoteAddr(),
		Local:  msg.conn.LocalAddr(),
	})
}

func spawnOptions(opts Options) []core.SpawnOption {
	if opts.Executor == "" {
		return nil
	}
	return []core.SpawnOption{core.WithExecutor(opts.Executor)}
}

func spawnConnection(ctx *core.Context, conn net.Conn, handler core.Ref, opts Options) (core.Ref, error) {
	if tcp, ok := conn.(*net.TCPConn); ok && opts.KeepAlive >= 0 {
		period := opts.KeepAlive
		if period == 0 {
			period = DefaultKeepAlive
		}
		tcp.SetKeepAlive(true)
		tcp.SetKeepAlivePeriod(period)
	}
	c := newConnection(conn, handler, opts)
	return ctx.ActorOf("conn-"+uuid.NewString(), c, spawnOptions(opts)...)
}
