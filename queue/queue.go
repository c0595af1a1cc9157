// Package queue implements the EventQueue: a prioritized FIFO with an
// elastic worker pool. It generalizes a per-signal worker goroutine
// pattern into a single shared min-heap serving every event kind, since
// cross-kind priority ordering rules out per-kind channels.
package queue

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/mues-io/muesd/dispatch"
	"github.com/mues-io/muesd/errs"
	"github.com/mues-io/muesd/event"
	"github.com/mues-io/muesd/iface"
	"github.com/mues-io/muesd/registry"
)

type state int

const (
	stateStopped state = iota
	stateRunning
	stateShuttingDown
)

// EventQueue accepts events from any producer and dispatches them in
// priority order to every handler registered along an event's kind path.
type EventQueue struct {
	cfg Config
	log iface.LogSink

	mu   sync.Mutex
	cond *sync.Cond

	state     state
	forceStop bool

	pending eventHeap
	urgent  []*event.Event

	workers      map[uint64]struct{}
	idleSet      map[uint64]bool
	idleOrder    []uint64
	nextWorkerID uint64

	wg             sync.WaitGroup
	supervisorDone chan struct{}

	registry   *registry.Registry
	dispatcher dispatch.Dispatcher

	startMu sync.Mutex
	started bool
}

// New creates an EventQueue in the Stopped state.
func New(cfg Config, log iface.LogSink) *EventQueue {
	if log == nil {
		log = iface.NopLogSink{}
	}
	q := &EventQueue{
		cfg:       cfg.WithDefaults(),
		log:       log,
		workers:   make(map[uint64]struct{}),
		idleSet:   make(map[uint64]bool),
		state:     stateStopped,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Start spawns a supervisor and MinWorkers workers, then returns. Idempotent
// while running; returns errs.ErrAlreadyRunning if called twice without an
// intervening Shutdown.
func (q *EventQueue) Start(reg *registry.Registry, dispatcher dispatch.Dispatcher) error {
	q.startMu.Lock()
	defer q.startMu.Unlock()
	if q.started {
		return errs.ErrAlreadyRunning
	}

	q.mu.Lock()
	q.registry = reg
	q.dispatcher = dispatcher
	q.state = stateRunning
	q.forceStop = false
	q.supervisorDone = make(chan struct{})
	for i := 0; i < q.cfg.MinWorkers; i++ {
		q.spawnWorkerLocked()
	}
	q.mu.Unlock()

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.supervise()
	}()

	q.started = true
	return nil
}

// Enqueue appends events in arrival order. Returns errs.ErrRefused if the
// queue is shutting down or stopped. Never blocks beyond a brief mutex
// acquisition.
func (q *EventQueue) Enqueue(events ...*event.Event) error {
	if len(events) == 0 {
		return nil
	}
	q.mu.Lock()
	if q.state != stateRunning {
		q.mu.Unlock()
		return errs.ErrRefused
	}
	for _, e := range events {
		heap.Push(&q.pending, e)
	}
	q.mu.Unlock()
	q.cond.Broadcast()
	return nil
}

// PriorityEnqueue inserts at the head, bypassing normal priority order.
// Reserved for the supervisor's shutdown signals.
func (q *EventQueue) PriorityEnqueue(events ...*event.Event) error {
	if len(events) == 0 {
		return nil
	}
	q.mu.Lock()
	q.urgent = append(q.urgent, events...)
	q.mu.Unlock()
	q.cond.Broadcast()
	return nil
}

// Shutdown stops accepting new events and lets workers drain in-flight and
// queued work. If timeout elapses first, remaining workers are forcibly
// terminated and any events still queued are discarded. Returns whether the
// drain completed cleanly. Idempotent.
func (q *EventQueue) Shutdown(timeout time.Duration) bool {
	q.mu.Lock()
	if q.state == stateShuttingDown || q.state == stateStopped {
		clean := !q.forceStop
		q.mu.Unlock()
		return clean
	}
	q.state = stateShuttingDown
	// The shutdown signals go into the pending heap at the lowest precedence,
	// behind every event already queued, so workers drain those first.
	n := len(q.workers)
	for i := 0; i < n; i++ {
		heap.Push(&q.pending, event.New(event.KindThreadShutdown, nil, event.WithPriority(event.PriMax)))
	}
	q.mu.Unlock()
	q.cond.Broadcast()
	close(q.supervisorDone)

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.mu.Lock()
		q.state = stateStopped
		q.mu.Unlock()
		q.startMu.Lock()
		q.started = false
		q.startMu.Unlock()
		return true
	case <-time.After(timeout):
		q.mu.Lock()
		q.forceStop = true
		q.pending = nil
		q.urgent = nil
		q.mu.Unlock()
		q.cond.Broadcast()
		<-done
		q.mu.Lock()
		q.state = stateStopped
		q.mu.Unlock()
		q.startMu.Lock()
		q.started = false
		q.startMu.Unlock()
		return false
	}
}

// Stats reports the current pool size and pending depth, for the CLI's
// status command.
type Stats struct {
	Workers int
	Idle    int
	Pending int
}

func (q *EventQueue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Workers: len(q.workers),
		Idle:    len(q.idleSet),
		Pending: q.pending.Len() + len(q.urgent),
	}
}

func (q *EventQueue) spawnWorkerLocked() {
	q.nextWorkerID++
	id := q.nextWorkerID
	q.workers[id] = struct{}{}
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.workerLoop(id)
	}()
}

func (q *EventQueue) markIdleLocked(id uint64) {
	if !q.idleSet[id] {
		q.idleSet[id] = true
		q.idleOrder = append(q.idleOrder, id)
	}
}

func (q *EventQueue) markBusyLocked(id uint64) {
	if q.idleSet[id] {
		delete(q.idleSet, id)
		for i, v := range q.idleOrder {
			if v == id {
				q.idleOrder = append(q.idleOrder[:i], q.idleOrder[i+1:]...)
				break
			}
		}
	}
}

func (q *EventQueue) retireWorkerLocked(id uint64) {
	delete(q.workers, id)
	delete(q.idleSet, id)
	for i, v := range q.idleOrder {
		if v == id {
			q.idleOrder = append(q.idleOrder[:i], q.idleOrder[i+1:]...)
			break
		}
	}
}

// leastRecentlyIdleLocked returns the id of the worker that has been idle
// the longest, or 0 if none are idle.
func (q *EventQueue) leastRecentlyIdleLocked() (uint64, bool) {
	if len(q.idleOrder) == 0 {
		return 0, false
	}
	return q.idleOrder[0], true
}

// waitForEvent blocks the calling worker until an event is available or the
// queue is forcibly stopped. It moves the worker between the idle and busy
// rosters.
func (q *EventQueue) waitForEvent(id uint64) (*event.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.markIdleLocked(id)
	for len(q.urgent) == 0 && q.pending.Len() == 0 {
		if q.forceStop {
			q.retireWorkerLocked(id)
			return nil, false
		}
		q.cond.Wait()
	}
	q.markBusyLocked(id)

	if q.forceStop {
		q.retireWorkerLocked(id)
		return nil, false
	}

	if len(q.urgent) > 0 {
		e := q.urgent[0]
		q.urgent = q.urgent[1:]
		return e, true
	}
	e := heap.Pop(&q.pending).(*event.Event)
	return e, true
}

// context used for the fire-and-forget consequence dispatches queue workers
// issue; it carries no request-scoped data of its own since the originating
// event's context is not retained across the handler boundary.
var background = context.Background
