package core

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/pkg/errors"

	"github.com/najoast/troupe/address"
	"github.com/najoast/troupe/dispatch"
	"github.com/najoast/troupe/future"
	"github.com/najoast/troupe/logging"
	"github.com/najoast/troupe/scheduler"
)

// Well-known names under the system scope.
const (
	DeadLettersName = "deadLetters"
	TempName        = "temp"
)

// Default timeouts used when callers pass a non-positive duration.
const (
	DefaultAskTimeout  = 5 * time.Second
	DefaultFindTimeout = 5 * time.Second
)

// Settings holds the values a system reads once at construction.
type Settings struct {
	// DefaultExecutor is the name of the shared pool
	DefaultExecutor string

	// Executors lists the named execution contexts
	Executors []dispatch.Spec

	// AskTimeout applies to Ask calls without an explicit timeout
	AskTimeout time.Duration

	// FindTimeout applies to Find calls without an explicit timeout
	FindTimeout time.Duration
}

// Option configures NewSystem.
type Option func(*System)

// WithLogger sets the system logger. The default discards everything.
func WithLogger(l *logging.Logger) Option {
	return func(s *System) {
		if l != nil {
			s.log = l
		}
	}
}

// WithSettings replaces the settings.
func WithSettings(settings Settings) Option {
	return func(s *System) {
		s.settings = settings
	}
}

// WithExecutors adds execution context definitions.
func WithExecutors(specs ...dispatch.Spec) Option {
	return func(s *System) {
		s.settings.Executors = append(s.settings.Executors, specs...)
	}
}

// WithScheduler shares an existing scheduler. The system will not stop it.
func WithScheduler(sched *scheduler.Scheduler) Option {
	return func(s *System) {
		s.sched = sched
	}
}

// System owns the actor tree, the execution contexts and the scheduler.
type System struct {
	name      string
	log       *logging.Logger
	settings  Settings
	executors *dispatch.Registry
	sched     *scheduler.Scheduler
	ownSched  bool

	index cmap.ConcurrentMap[string, *cell]

	userRoot    *cell
	systemRoot  *cell
	tempRoot    *cell
	deadLetters *cell

	deadLetterCount atomic.Uint64
	processed       atomic.Uint64
	startedAt       time.Time

	shutdownOnce sync.Once
	shutdownErr  error
}

// NewSystem creates and starts a system named name.
func NewSystem(name string, opts ...Option) (*System, error) {
	if !address.ValidName(name) {
		return nil, errors.Wrapf(ErrInvalidName, "system name %q", name)
	}

	s := &System{
		name: name,
		log:  logging.Discard(),
		settings: Settings{
			DefaultExecutor: dispatch.DefaultName,
			AskTimeout:      DefaultAskTimeout,
			FindTimeout:     DefaultFindTimeout,
		},
		index:     cmap.New[*cell](),
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.settings.AskTimeout <= 0 {
		s.settings.AskTimeout = DefaultAskTimeout
	}
	if s.settings.FindTimeout <= 0 {
		s.settings.FindTimeout = DefaultFindTimeout
	}

	executors, err := dispatch.NewRegistry(s.settings.Executors, s.settings.DefaultExecutor, s.log.Logger)
	if err != nil {
		return nil, errors.Wrap(err, "build executors")
	}
	s.executors = executors

	if s.sched == nil {
		s.sched = scheduler.New(s.log.Logger)
		s.ownSched = true
	}

	guardian := ActorFunc(func(*Context, any) error { return nil })
	def := executors.Default()

	s.userRoot = newCell(s, nil, address.New(name, address.ScopeUser), guardian, def)
	s.systemRoot = newCell(s, nil, address.New(name, address.ScopeSystem), guardian, def)
	s.userRoot.start()
	s.systemRoot.start()

	dl, err := s.systemRoot.spawn(DeadLettersName, &deadLetterActor{count: &s.deadLetterCount})
	if err != nil {
		return nil, err
	}
	s.deadLetters = dl.cell

	temp, err := s.systemRoot.spawn(TempName, guardian)
	if err != nil {
		return nil, err
	}
	s.tempRoot = temp.cell

	s.log.Info("actor system started",
		"system", name,
		"executors", executors.Names())
	return s, nil
}

// Name returns the system name.
func (s *System) Name() string {
	return s.name
}

// Log returns the system logger.
func (s *System) Log() *logging.Logger {
	return s.log
}

// Settings returns the settings in effect.
func (s *System) Settings() Settings {
	return s.settings
}

// Scheduler returns the timer used for timeouts and delayed sends.
func (s *System) Scheduler() *scheduler.Scheduler {
	return s.sched
}

// Executors returns the execution context registry.
func (s *System) Executors() *dispatch.Registry {
	return s.executors
}

// ActorOf creates a top-level actor under the user scope.
func (s *System) ActorOf(name string, actor Actor, opts ...SpawnOption) (Ref, error) {
	return s.userRoot.spawn(name, actor, opts...)
}

// SystemActorOf creates a top-level actor under the system scope.
func (s *System) SystemActorOf(name string, actor Actor, opts ...SpawnOption) (Ref, error) {
	return s.systemRoot.spawn(name, actor, opts...)
}

// UserRoot returns the guardian of the user scope.
func (s *System) UserRoot() Ref {
	return s.userRoot.ref()
}

// SystemRoot returns the guardian of the system scope.
func (s *System) SystemRoot() Ref {
	return s.systemRoot.ref()
}

// DeadLetters returns the sink for undeliverable messages.
func (s *System) DeadLetters() Ref {
	return s.deadLetters.ref()
}

// Send is the primitive every tell reduces to.
func (s *System) Send(target Ref, msg any, sender Ref) {
	if target.IsEmpty() {
		s.deadLetter(Envelope{Message: msg, Sender: sender}, target)
		return
	}
	target.TellFrom(msg, sender)
}

// Find resolves path by walking the tree from the matching root, one actor
// at a time. The future completes with the empty ref when nothing answers
// at that path before timeout. It fails only when path does not parse.
func (s *System) Find(path string, timeout time.Duration) *future.Future[Ref] {
	addr, err := address.Parse(path)
	if err != nil {
		f := future.New[Ref]()
		f.Fail(err)
		return f
	}
	return s.FindAddress(addr, timeout)
}

// FindAddress is Find for an already parsed address. Relative addresses and
// the unknown scope resolve under the user root.
func (s *System) FindAddress(addr address.Address, timeout time.Duration) *future.Future[Ref] {
	if addr.IsAbsolute() && addr.System() != s.name {
		return future.Completed(Ref{})
	}

	root := s.userRoot
	if addr.IsAbsolute() && addr.Scope() == address.ScopeSystem {
		root = s.systemRoot
	}

	if timeout <= 0 {
		timeout = s.settings.FindTimeout
	}

	f := future.New[Ref]()
	req := &resolveReq{segments: addr.Segments(), result: f}
	task, err := s.sched.After(timeout, func() {
		f.Complete(Ref{})
		req.unpark()
	})
	if err != nil {
		f.Complete(Ref{})
		return f
	}
	req.timeout = task

	root.sendSystem(req)
	return f
}

// Lookup returns a started actor by absolute path without going through the
// tree. It only sees actors registered at the time of the call.
func (s *System) Lookup(path string) (Ref, bool) {
	addr, err := address.Parse(path)
	if err != nil {
		return Ref{}, false
	}
	if !addr.IsAbsolute() {
		addr = address.New(s.name, address.ScopeUser).Join(addr)
	}
	c, ok := s.index.Get(addr.String())
	if !ok {
		return Ref{}, false
	}
	return c.ref(), true
}

// Actors lists the paths of registered actors, sorted.
func (s *System) Actors() []string {
	paths := s.index.Keys()
	sort.Strings(paths)
	return paths
}

// Watch makes watcher receive Terminated once watched stops. Watching an
// actor that already stopped delivers Terminated right away.
func (s *System) Watch(watched, watcher Ref) {
	if watcher.IsEmpty() {
		return
	}
	if watched.IsEmpty() {
		watcher.Tell(Terminated{Ref: watched})
		return
	}
	watched.cell.sendSystem(watchReq{watcher: watcher.cell})
}

// Unwatch cancels a Watch. A Terminated already queued is still delivered.
func (s *System) Unwatch(watched, watcher Ref) {
	if watched.IsEmpty() || watcher.IsEmpty() {
		return
	}
	watched.cell.sendSystem(unwatchReq{watcher: watcher.cell})
}

// Stop asks target to stop after the messages already queued.
func (s *System) Stop(target Ref) {
	target.Stop()
}

// ScheduleOnce delivers msg to target after delay.
func (s *System) ScheduleOnce(delay time.Duration, target Ref, msg any, sender Ref) (*scheduler.Task, error) {
	return s.sched.After(delay, func() {
		s.Send(target, msg, sender)
	})
}

// Stats returns system-wide counters.
func (s *System) Stats() SystemStats {
	return SystemStats{
		Name:              s.name,
		Actors:            s.index.Count(),
		DeadLetters:       s.deadLetterCount.Load(),
		MessagesProcessed: s.processed.Load(),
		Uptime:            time.Since(s.startedAt),
	}
}

// Done is closed once the whole tree has stopped.
func (s *System) Done() <-chan struct{} {
	return s.systemRoot.done
}

// Shutdown stops the user tree, then the system tree, then the scheduler
// and the executors. It blocks until everything stopped or ctx is done.
func (s *System) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.shutdownErr = s.shutdown(ctx)
	})
	return s.shutdownErr
}

func (s *System) shutdown(ctx context.Context) error {
	s.log.Info("actor system shutting down", "system", s.name, "actors", s.index.Count())

	for _, root := range []*cell{s.userRoot, s.systemRoot} {
		root.sendSystem(stopSignal{})
		select {
		case <-root.done:
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "waiting for %s", root.id)
		}
	}

	if s.ownSched {
		s.sched.Stop()
	}

	if err := s.executors.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "stop executors")
	}

	s.log.Info("actor system stopped",
		"system", s.name,
		"processed", s.processed.Load(),
		"dead_letters", s.deadLetterCount.Load())
	return nil
}

func (s *System) executorFor(name string) (dispatch.Executor, error) {
	if name == "" {
		return s.executors.Default(), nil
	}
	e, ok := s.executors.Get(name)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownExecutor, "%q", name)
	}
	return e, nil
}

func (s *System) register(c *cell) {
	s.index.Set(c.id, c)
}

func (s *System) unregister(c *cell) {
	s.index.RemoveCb(c.id, func(_ string, v *cell, exists bool) bool {
		return exists && v == c
	})
}

// deadLetter records a message that reached no live actor.
func (s *System) deadLetter(env Envelope, recipient Ref) {
	dl := s.deadLetters
	if _, nested := env.Message.(DeadLetter); nested || dl == nil || dl.lifecycle() != ActorStateStarted {
		s.deadLetterCount.Add(1)
		if logging.Debug {
			s.log.Debug("dead letter dropped",
				"recipient", recipient.String(),
				"message", TypeName(env.Message))
		}
		return
	}
	dl.send(Envelope{
		Message: DeadLetter{Message: env.Message, Sender: env.Sender, Recipient: recipient},
		Sender:  env.Sender,
	})
}

// deadLetterActor counts whatever reaches it.
type deadLetterActor struct {
	count *atomic.Uint64
}

func (a *deadLetterActor) Receive(ctx *Context, msg any) error {
	a.count.Add(1)
	if logging.Debug {
		if dl, ok := msg.(DeadLetter); ok {
			ctx.Log().Debug("dead letter",
				"recipient", dl.Recipient.String(),
				"sender", dl.Sender.String(),
				"message", TypeName(dl.Message))
		} else {
			ctx.Log().Debug("dead letter", "sender", ctx.Envelope().Sender.String(), "message", TypeName(msg))
		}
	}
	return nil
}
