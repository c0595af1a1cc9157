// Package engine implements the daemon's composition root: it owns the
// handler registry, event queue, and scheduler, ticks the world, and wires
// per-connection filter chains (including the login state machine) onto
// streams.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/mues-io/muesd/errs"
	"github.com/mues-io/muesd/event"
	"github.com/mues-io/muesd/iface"
	"github.com/mues-io/muesd/login"
	"github.com/mues-io/muesd/queue"
	"github.com/mues-io/muesd/registry"
	"github.com/mues-io/muesd/scheduler"
	"github.com/mues-io/muesd/stream"
)

// State is the Engine's lifecycle state.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateShuttingDown
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting_down"
	default:
		return "unknown"
	}
}

// Config is everything the Engine needs at construction. It is the plain
// runtime counterpart of internal/config's viper-backed EngineConfig.
type Config struct {
	TickInterval time.Duration
	Queue        queue.Config
	Log          iface.LogSink

	AuthProvider iface.AuthProvider
	UserStore    iface.UserStore

	LoginMaxTries    int
	LoginTimeout     time.Duration
	LoginRateLimiter *login.LoginRateLimiter
}

// Engine is the composition root. It implements dispatch.Dispatcher so the
// queue, scheduler, and every stream's filters can hand it consequence
// events without importing it directly.
type Engine struct {
	cfg Config
	log iface.LogSink

	registry  *registry.Registry
	queue     *queue.EventQueue
	scheduler *scheduler.Scheduler

	mu        sync.Mutex
	state     State
	tick      int64
	startTime time.Time
	sessions  map[string]*stream.Stream

	stopTick chan struct{}
	tickDone chan struct{}
}

// New constructs an Engine in the Stopped state. Its queue and scheduler
// are created but not started until Start is called.
func New(cfg Config) *Engine {
	if cfg.Log == nil {
		cfg.Log = iface.NopLogSink{}
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}

	e := &Engine{
		cfg:      cfg,
		log:      cfg.Log,
		registry: registry.New(),
		sessions: make(map[string]*stream.Stream),
	}
	e.queue = queue.New(cfg.Queue, cfg.Log)
	e.scheduler = scheduler.New(e)
	return e
}

// Dispatch implements dispatch.Dispatcher: every consequence event from a
// handler, a worker, a scheduled entry, or a stream's filters passes
// through here on its way back into the queue. Events are refused with
// errs.ErrRefused while the Engine is not Running.
func (e *Engine) Dispatch(_ context.Context, events ...*event.Event) error {
	e.mu.Lock()
	running := e.state == StateRunning
	e.mu.Unlock()
	if !running {
		return errs.ErrRefused
	}
	return e.queue.Enqueue(events...)
}

// Registry exposes the HandlerRegistry so callers can subscribe handlers
// before or after Start.
func (e *Engine) Registry() *registry.Registry { return e.registry }

// Scheduler exposes the Scheduler for callers that need to schedule
// one-off or repeating events directly (e.g. per-connection filters).
func (e *Engine) Scheduler() *scheduler.Scheduler { return e.scheduler }

// Start transitions Stopped -> Starting -> Running: registers the engine's
// own default handlers, starts the queue and its worker pool, and launches
// the tick loop.
func (e *Engine) Start() error {
	e.mu.Lock()
	if e.state != StateStopped {
		e.mu.Unlock()
		return errs.ErrAlreadyRunning
	}
	e.state = StateStarting
	e.stopTick = make(chan struct{})
	e.tickDone = make(chan struct{})
	e.mu.Unlock()

	e.registerDefaultHandlers()

	if err := e.queue.Start(e.registry, e); err != nil {
		e.mu.Lock()
		e.state = StateStopped
		e.mu.Unlock()
		return err
	}

	e.mu.Lock()
	e.state = StateRunning
	e.startTime = time.Now()
	e.mu.Unlock()

	go e.tickLoop()
	return nil
}

// Stop transitions Running -> ShuttingDown -> Stopped: stops the tick
// loop, drains the queue within timeout, and shuts down every open
// session's stream. Idempotent.
func (e *Engine) Stop(timeout time.Duration) bool {
	e.mu.Lock()
	if e.state != StateRunning {
		e.mu.Unlock()
		return true
	}
	e.state = StateShuttingDown
	stopTick := e.stopTick
	tickDone := e.tickDone
	e.mu.Unlock()

	close(stopTick)
	<-tickDone

	clean := e.queue.Shutdown(timeout)

	e.mu.Lock()
	sessions := e.sessions
	e.sessions = make(map[string]*stream.Stream)
	e.state = StateStopped
	e.mu.Unlock()

	for _, s := range sessions {
		s.Shutdown()
	}
	return clean
}

// State reports the Engine's current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Snapshot is a point-in-time status report, for the CLI's status command.
type Snapshot struct {
	State      State
	Tick       int64
	Uptime     time.Duration
	Sessions   int
	QueueStats queue.Stats
	Scheduled  int
}

// Snapshot reports the Engine's current status.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	state, tick, startTime, sessions := e.state, e.tick, e.startTime, len(e.sessions)
	e.mu.Unlock()

	var uptime time.Duration
	if state == StateRunning || state == StateShuttingDown {
		uptime = time.Since(startTime)
	}
	return Snapshot{
		State:      state,
		Tick:       tick,
		Uptime:     uptime,
		Sessions:   sessions,
		QueueStats: e.queue.Stats(),
		Scheduled:  e.scheduler.Pending(),
	}
}

func (e *Engine) registerDefaultHandlers() {
	e.registry.Subscribe(event.KindAuthenticationRequest, authRequestHandler{provider: e.cfg.AuthProvider, log: e.log})
	e.registry.Subscribe(event.KindLoginSessionFailure, login.SessionFailureHandler{Log: e.log})
	e.registry.Subscribe(event.KindUserLogin, userLoginHandler{engine: e})
}
