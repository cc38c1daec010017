package bootstrap

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/najoast/troupe/config"
	"github.com/najoast/troupe/core"
	"github.com/najoast/troupe/logging"
	"github.com/najoast/troupe/network"
)

// Built-in service names
const (
	ServiceActorSystem   = "actor-system"
	ServiceTCP           = "io-tcp"
	ServiceConfigWatcher = "config-watcher"
)

// HandlerFactory creates the actor that receives connections accepted on
// the configured TCP address
type HandlerFactory func(sys *core.System) (core.Ref, error)

// Option configures New
type Option func(*Application)

// WithConfigFile loads configuration from path and watches it for changes
func WithConfigFile(path string) Option {
	return func(app *Application) { app.configFile = path }
}

// WithConfig uses cfg as is. It is validated but no file is read.
func WithConfig(cfg *config.Config) Option {
	return func(app *Application) { app.cfg = cfg }
}

// WithLoader replaces the default configuration loader
func WithLoader(loader *config.Loader) Option {
	return func(app *Application) { app.loader = loader }
}

// WithLogger replaces the logger built from the log section
func WithLogger(log *logging.Logger) Option {
	return func(app *Application) { app.log = log }
}

// WithTCPHandler binds io.tcp.address:port at start and hands accepted
// connections to the actor built by factory
func WithTCPHandler(factory HandlerFactory) Option {
	return func(app *Application) { app.tcpHandler = factory }
}

// WithService registers an extra service. It starts after the actor system.
func WithService(service Service, deps ...string) Option {
	return func(app *Application) {
		app.extra = append(app.extra, extraService{service: service, deps: deps})
	}
}

type extraService struct {
	service Service
	deps    []string
}

// Application owns the configuration, the logger, the actor system and the
// services around it
type Application struct {
	configFile string
	cfg        *config.Config
	cfgMu      sync.RWMutex
	loader     *config.Loader

	log       *logging.Logger
	logCloser io.Closer

	tcpHandler HandlerFactory
	extra      []extraService

	lifecycle *DefaultLifecycleManager
	system    *systemService
	tcp       *tcpService

	mutex   sync.Mutex
	running bool
	signals chan os.Signal
}

// New loads the configuration, builds the logger and registers the
// built-in services. Nothing is started until Start or Run.
func New(opts ...Option) (*Application, error) {
	app := &Application{
		loader:  config.NewLoader(),
		signals: make(chan os.Signal, 1),
	}
	for _, opt := range opts {
		opt(app)
	}

	if err := app.loadConfig(); err != nil {
		return nil, &ApplicationError{Operation: "configure", Err: err}
	}

	if app.log == nil {
		log, closer, err := logging.Open(app.cfg.Log.Level, app.cfg.Log.Format, app.cfg.Log.Output)
		if err != nil {
			return nil, &ApplicationError{Operation: "configure", Err: err}
		}
		app.log, app.logCloser = log.With("app", app.cfg.App.Name), closer
	}

	app.lifecycle = NewLifecycleManager(app.log.Logger)
	if app.cfg.Actor.ShutdownTimeout > 0 {
		app.lifecycle.SetTimeout(app.cfg.Actor.ShutdownTimeout)
	}
	if err := app.registerServices(); err != nil {
		app.closeLog()
		return nil, err
	}
	return app, nil
}

func (app *Application) loadConfig() error {
	switch {
	case app.cfg != nil:
		return app.cfg.Validate()
	case app.configFile != "":
		cfg, err := app.loader.Load(app.configFile)
		if err != nil {
			return err
		}
		app.cfg = cfg
	default:
		cfg, err := app.loader.AutoLoad()
		if err != nil {
			return err
		}
		app.cfg = cfg
	}
	return nil
}

func (app *Application) registerServices() error {
	app.system = &systemService{app: app}
	if err := app.lifecycle.Register(ServiceActorSystem, app.system); err != nil {
		return err
	}

	if app.cfg.EnableIO() {
		app.tcp = &tcpService{app: app}
		if err := app.lifecycle.Register(ServiceTCP, app.tcp, ServiceActorSystem); err != nil {
			return err
		}
	}

	if app.configFile != "" {
		if err := app.lifecycle.Register(ServiceConfigWatcher, &watcherService{app: app}); err != nil {
			return err
		}
	}

	for _, e := range app.extra {
		deps := append([]string{ServiceActorSystem}, e.deps...)
		if err := app.lifecycle.Register(e.service.Name(), e.service, deps...); err != nil {
			return err
		}
	}
	return nil
}

// Config returns the current configuration, including hot reloads
func (app *Application) Config() *config.Config {
	app.cfgMu.RLock()
	defer app.cfgMu.RUnlock()
	return app.cfg
}

// Logger returns the application logger
func (app *Application) Logger() *logging.Logger {
	return app.log
}

// System returns the actor system, nil before Start
func (app *Application) System() *core.System {
	return app.system.get()
}

// TCPAddr returns the bound TCP address, nil when nothing was bound
func (app *Application) TCPAddr() net.Addr {
	if app.tcp == nil {
		return nil
	}
	return app.tcp.addr
}

// Lifecycle returns the service manager
func (app *Application) Lifecycle() LifecycleManager {
	return app.lifecycle
}

// Start starts every service in dependency order
func (app *Application) Start(ctx context.Context) error {
	app.mutex.Lock()
	defer app.mutex.Unlock()

	if app.running {
		return fmt.Errorf("application is already running")
	}
	if err := app.lifecycle.Start(ctx); err != nil {
		return err
	}
	app.running = true
	cfg := app.Config()
	app.log.Info("application started",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment.String(),
		"services", app.lifecycle.Services())
	return nil
}

// Run starts the application and blocks until SIGINT, SIGTERM, the actor
// system stopping on its own, or ctx is cancelled. It then shuts down.
func (app *Application) Run(ctx context.Context) error {
	if err := app.Start(ctx); err != nil {
		return err
	}

	signal.Notify(app.signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(app.signals)

	select {
	case sig := <-app.signals:
		app.log.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		app.log.Info("context cancelled, shutting down")
	case <-app.System().Done():
		app.log.Warn("actor system stopped, shutting down")
	}

	timeout := app.Config().Actor.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return app.Shutdown(shutdownCtx)
}

// Shutdown stops every service in reverse order and releases the log output
func (app *Application) Shutdown(ctx context.Context) error {
	app.mutex.Lock()
	defer app.mutex.Unlock()

	if !app.running {
		return nil
	}
	app.running = false

	err := app.lifecycle.Stop(ctx)
	app.log.Info("application stopped")
	app.closeLog()
	return err
}

func (app *Application) closeLog() {
	if app.logCloser != nil {
		app.logCloser.Close()
		app.logCloser = nil
	}
}

// systemService runs the actor system
type systemService struct {
	app *Application

	mu  sync.RWMutex
	sys *core.System
}

func (s *systemService) Name() string { return ServiceActorSystem }

func (s *systemService) get() *core.System {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sys
}

func (s *systemService) Start(ctx context.Context) error {
	cfg := s.app.Config()
	sys, err := core.NewSystem(cfg.App.Name,
		core.WithLogger(s.app.log),
		core.WithSettings(core.Settings{
			DefaultExecutor: cfg.Actor.DefaultExecutor,
			Executors:       cfg.ExecutionContexts(),
			AskTimeout:      cfg.Actor.AskTimeout,
			FindTimeout:     cfg.Actor.FindTimeout,
		}),
	)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.sys = sys
	s.mu.Unlock()
	return nil
}

func (s *systemService) Stop(ctx context.Context) error {
	sys := s.get()
	if sys == nil {
		return nil
	}
	return sys.Shutdown(ctx)
}

func (s *systemService) Health(ctx context.Context) (HealthStatus, error) {
	sys := s.get()
	if sys == nil {
		return HealthStatus{State: HealthUnknown, Message: "actor system not started"}, nil
	}

	select {
	case <-sys.Done():
		return HealthStatus{State: HealthStopped, Message: "actor system stopped"}, nil
	default:
	}

	stats := sys.Stats()
	return HealthStatus{
		State:   HealthHealthy,
		Message: "actor system running",
		Data: map[string]interface{}{
			"actors":             stats.Actors,
			"dead_letters":       stats.DeadLetters,
			"messages_processed": stats.MessagesProcessed,
			"uptime":             stats.Uptime.String(),
		},
	}, nil
}

// tcpService starts the TCP manager and, with a handler factory, binds the
// configured address
type tcpService struct {
	app *Application

	manager  core.Ref
	listener core.Ref
	addr     net.Addr
}

func (s *tcpService) Name() string { return ServiceTCP }

func (s *tcpService) options(tcp config.TCPConfig) network.Options {
	opts := network.DefaultOptions()
	opts.BufferSize = tcp.BufferSize
	opts.Framed = tcp.Framed
	opts.ReadTimeout = tcp.ReadTimeout
	opts.WriteTimeout = tcp.WriteTimeout
	return opts
}

func (s *tcpService) Start(ctx context.Context) error {
	sys := s.app.System()
	cfg := s.app.Config()

	mgr, err := network.Start(sys, s.options(cfg.IO.TCP))
	if err != nil {
		return err
	}
	s.manager = mgr

	if s.app.tcpHandler == nil {
		return nil
	}
	handler, err := s.app.tcpHandler(sys)
	if err != nil {
		return fmt.Errorf("create tcp handler: %w", err)
	}

	addr := net.JoinHostPort(cfg.IO.TCP.Address, strconv.Itoa(cfg.IO.TCP.Port))
	timeout := cfg.Actor.AskTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	env, err := sys.Ask(mgr, network.Bind{Handler: handler, Address: addr}, timeout).Get()
	if err != nil {
		return fmt.Errorf("bind %s: %w", addr, err)
	}

	switch reply := env.Message.(type) {
	case network.Bound:
		s.listener, s.addr = reply.Listener, reply.Addr
		return nil
	case network.CommandFailed:
		return reply
	default:
		return fmt.Errorf("bind %s: unexpected reply %s", addr, core.TypeName(reply))
	}
}

func (s *tcpService) Stop(ctx context.Context) error {
	if s.manager.IsEmpty() {
		return nil
	}
	s.manager.Stop()
	select {
	case <-s.manager.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *tcpService) Health(ctx context.Context) (HealthStatus, error) {
	if s.manager.IsEmpty() {
		return HealthStatus{State: HealthUnknown, Message: "tcp manager not started"}, nil
	}
	if !s.manager.IsAlive() {
		return HealthStatus{State: HealthStopped, Message: "tcp manager stopped"}, nil
	}

	data := map[string]interface{}{"manager": s.manager.String()}
	if s.addr != nil {
		data["address"] = s.addr.String()
		data["connections"] = s.listener.Stats().Children
	}
	return HealthStatus{State: HealthHealthy, Message: "tcp manager running", Data: data}, nil
}

// watcherService reloads the configuration file and applies the new log
// level to the running logger
type watcherService struct {
	app     *Application
	watcher *config.Watcher
}

func (s *watcherService) Name() string { return ServiceConfigWatcher }

func (s *watcherService) Start(ctx context.Context) error {
	watcher, err := config.NewWatcher(s.app.configFile, s.app.loader, config.WithWatchLogger(s.app.log.Logger))
	if err != nil {
		return err
	}
	watcher.OnConfigChange(s.app.applyConfig)
	if err := watcher.Start(); err != nil {
		watcher.Stop()
		return err
	}
	s.watcher = watcher
	return nil
}

func (s *watcherService) Stop(ctx context.Context) error {
	if s.watcher == nil {
		return nil
	}
	return s.watcher.Stop()
}

func (s *watcherService) Health(ctx context.Context) (HealthStatus, error) {
	if s.watcher == nil {
		return HealthStatus{State: HealthUnknown, Message: "watcher not started"}, nil
	}
	return HealthStatus{State: HealthHealthy, Message: "watching " + s.app.configFile}, nil
}

// applyConfig stores a reloaded configuration. Only the log level takes
// effect on a running application.
func (app *Application) applyConfig(old, cfg *config.Config) {
	app.cfgMu.Lock()
	app.cfg = cfg
	app.cfgMu.Unlock()

	if old.LogLevel() != cfg.LogLevel() {
		app.log.SetLevel(cfg.LogLevel())
		app.log.Info("log level changed", "from", old.LogLevel().String(), "to", cfg.LogLevel().String())
	}
}
