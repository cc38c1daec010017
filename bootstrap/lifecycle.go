package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultLifecycleManager implements the LifecycleManager interface
type DefaultLifecycleManager struct {
	// services holds all registered services
	services map[string]Service

	// dependencies tracks service dependencies
	dependencies map[string][]string

	// startOrder tracks the order services were started
	startOrder []string

	// levels holds each service's depth in the dependency graph
	levels map[string]int

	log *slog.Logger

	// mutex protects concurrent access
	mutex sync.RWMutex

	started  bool
	stopping bool

	// eventChan for broadcasting lifecycle events
	eventChan chan LifecycleEvent

	// listeners for lifecycle events
	listeners []func(LifecycleEvent)

	// timeout for service operations
	timeout time.Duration
}

// NewLifecycleManager creates a new lifecycle manager
func NewLifecycleManager(log *slog.Logger) *DefaultLifecycleManager {
	if log == nil {
		log = slog.Default()
	}
	return &DefaultLifecycleManager{
		services:     make(map[string]Service),
		dependencies: make(map[string][]string),
		log:          log,
		eventChan:    make(chan LifecycleEvent, 100),
		timeout:      30 * time.Second,
	}
}

// Register registers a service with the lifecycle manager
func (lm *DefaultLifecycleManager) Register(name string, service Service, deps ...string) error {
	if name == "" {
		return fmt.Errorf("service name cannot be empty")
	}
	if service == nil {
		return fmt.Errorf("service cannot be nil")
	}

	lm.mutex.Lock()
	defer lm.mutex.Unlock()

	if lm.started {
		return fmt.Errorf("cannot register service %s: lifecycle manager already started", name)
	}
	if _, exists := lm.services[name]; exists {
		return fmt.Errorf("service %s is already registered", name)
	}

	lm.services[name] = service
	lm.dependencies[name] = deps

	lm.broadcastEvent(LifecycleEvent{
		Type:    EventServiceRegistered,
		Service: name,
		Data:    map[string]interface{}{"dependencies": deps},
	})
	return nil
}

// Start starts all services in dependency order. When one fails, the
// services already started are stopped again.
func (lm *DefaultLifecycleManager) Start(ctx context.Context) error {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()

	if lm.started {
		return fmt.Errorf("lifecycle manager already started")
	}

	startOrder, levels, err := lm.calculateStartOrder()
	if err != nil {
		return &ApplicationError{Operation: "start", Err: err}
	}
	lm.levels = levels

	lm.broadcastEvent(LifecycleEvent{
		Type: EventLifecycleStarting,
		Data: map[string]interface{}{"order": startOrder},
	})

	for _, name := range startOrder {
		service := lm.services[name]
		lm.broadcastEvent(LifecycleEvent{Type: EventServiceStarting, Service: name})

		startCtx, cancel := context.WithTimeout(ctx, lm.timeout)
		err := service.Start(startCtx)
		cancel()

		if err != nil {
			lm.broadcastEvent(LifecycleEvent{Type: EventServiceStartFail, Service: name, Error: err})
			lm.log.Error("service failed to start", "service", name, "error", err)

			if rbErr := lm.stopStarted(ctx); rbErr != nil {
				lm.log.Error("rollback after failed start", "error", rbErr)
			}
			return &ApplicationError{Operation: "start", Service: name, Err: err}
		}

		lm.startOrder = append(lm.startOrder, name)
		lm.broadcastEvent(LifecycleEvent{Type: EventServiceStarted, Service: name})
		lm.log.Debug("service started", "service", name)
	}

	lm.started = true
	lm.broadcastEvent(LifecycleEvent{Type: EventLifecycleStarted})
	return nil
}

// Stop stops all services in reverse dependency order. Services at the same
// depth have no dependency on each other and stop concurrently.
func (lm *DefaultLifecycleManager) Stop(ctx context.Context) error {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()

	if !lm.started {
		return nil
	}
	if lm.stopping {
		return fmt.Errorf("lifecycle manager already stopping")
	}
	lm.stopping = true

	lm.broadcastEvent(LifecycleEvent{Type: EventLifecycleStopping})
	err := lm.stopStarted(ctx)

	lm.started = false
	lm.stopping = false
	lm.broadcastEvent(LifecycleEvent{Type: EventLifecycleStopped})
	return err
}

// stopStarted stops everything in startOrder, deepest level first
func (lm *DefaultLifecycleManager) stopStarted(ctx context.Context) error {
	byLevel := make(map[int][]string)
	maxLevel := 0
	for _, name := range lm.startOrder {
		level := lm.levels[name]
		byLevel[level] = append(byLevel[level], name)
		if level > maxLevel {
			maxLevel = level
		}
	}

	var firstErr error
	for level := maxLevel; level >= 0; level-- {
		var g errgroup.Group
		for _, name := range byLevel[level] {
			name := name
			g.Go(func() error { return lm.stopService(ctx, name) })
		}
		if err := g.Wait(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	lm.startOrder = nil
	return firstErr
}

func (lm *DefaultLifecycleManager) stopService(ctx context.Context, name string) error {
	lm.broadcastEvent(LifecycleEvent{Type: EventServiceStopping, Service: name})

	stopCtx, cancel := context.WithTimeout(ctx, lm.timeout)
	defer cancel()

	if err := lm.services[name].Stop(stopCtx); err != nil {
		lm.broadcastEvent(LifecycleEvent{Type: EventServiceStopFail, Service: name, Error: err})
		lm.log.Error("service failed to stop", "service", name, "error", err)
		return &ApplicationError{Operation: "stop", Service: name, Err: err}
	}

	lm.broadcastEvent(LifecycleEvent{Type: EventServiceStopped, Service: name})
	lm.log.Debug("service stopped", "service", name)
	return nil
}

// Health returns the health status of all services
func (lm *DefaultLifecycleManager) Health(ctx context.Context) (map[string]HealthStatus, error) {
	lm.mutex.RLock()
	defer lm.mutex.RUnlock()

	health := make(map[string]HealthStatus)
	for name, service := range lm.services {
		healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		status, err := service.Health(healthCtx)
		cancel()

		if err != nil {
			status = HealthStatus{State: HealthUnhealthy, Message: err.Error()}
		}
		if status.LastCheck.IsZero() {
			status.LastCheck = time.Now()
		}
		health[name] = status
	}
	return health, nil
}

// Services returns all registered service names
func (lm *DefaultLifecycleManager) Services() []string {
	lm.mutex.RLock()
	defer lm.mutex.RUnlock()

	names := make([]string, 0, len(lm.services))
	for name := range lm.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Events returns a channel for lifecycle events
func (lm *DefaultLifecycleManager) Events() <-chan LifecycleEvent {
	return lm.eventChan
}

// AddListener adds a lifecycle event listener. Listeners run on the
// goroutine that raised the event and must not call back into the manager.
func (lm *DefaultLifecycleManager) AddListener(listener func(LifecycleEvent)) {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()
	lm.listeners = append(lm.listeners, listener)
}

// calculateStartOrder sorts services topologically (Kahn's algorithm, ties
// broken by name) and assigns each its depth in the dependency graph
func (lm *DefaultLifecycleManager) calculateStartOrder() ([]string, map[string]int, error) {
	inDegree := make(map[string]int)
	graph := make(map[string][]string)
	for service := range lm.services {
		inDegree[service] = 0
	}

	for service, deps := range lm.dependencies {
		for _, dep := range deps {
			if _, exists := lm.services[dep]; !exists {
				return nil, nil, fmt.Errorf("dependency %s of service %s is not registered", dep, service)
			}
			graph[dep] = append(graph[dep], service)
			inDegree[service]++
		}
	}

	var queue []string
	for service, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, service)
		}
	}
	sort.Strings(queue)

	levels := make(map[string]int)
	var result []string
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		result = append(result, current)

		dependents := graph[current]
		sort.Strings(dependents)
		for _, dependent := range dependents {
			if levels[current]+1 > levels[dependent] {
				levels[dependent] = levels[current] + 1
			}
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(result) != len(lm.services) {
		return nil, nil, fmt.Errorf("circular dependency detected")
	}
	return result, levels, nil
}

// broadcastEvent is called with lm.mutex held
func (lm *DefaultLifecycleManager) broadcastEvent(event LifecycleEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case lm.eventChan <- event:
	default:
	}

	for _, listener := range lm.listeners {
		func(l func(LifecycleEvent)) {
			defer func() {
				if r := recover(); r != nil {
					lm.log.Error("lifecycle listener panicked", "event", event.Type, "panic", r)
				}
			}()
			l(event)
		}(listener)
	}
}

// SetTimeout sets the timeout for service operations
func (lm *DefaultLifecycleManager) SetTimeout(timeout time.Duration) {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()
	lm.timeout = timeout
}

// IsStarted returns true if the lifecycle manager has been started
func (lm *DefaultLifecycleManager) IsStarted() bool {
	lm.mutex.RLock()
	defer lm.mutex.RUnlock()
	return lm.started
}

// GetService returns a registered service by name
func (lm *DefaultLifecycleManager) GetService(name string) (Service, bool) {
	lm.mutex.RLock()
	defer lm.mutex.RUnlock()
	service, exists := lm.services[name]
	return service, exists
}
