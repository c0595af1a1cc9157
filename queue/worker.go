package queue

import (
	"time"

	"github.com/mues-io/muesd/event"
	"github.com/mues-io/muesd/iface"
	"github.com/mues-io/muesd/registry"
)

// workerLoop is a single worker goroutine: dequeue, dispatch to every
// matching handler, route consequences back through the Engine. Exits on a
// KindThreadShutdown signal or a forced stop.
func (q *EventQueue) workerLoop(id uint64) {
	for {
		e, ok := q.waitForEvent(id)
		if !ok {
			return
		}
		if e.Kind().Tag() == event.KindThreadShutdown.Tag() {
			q.mu.Lock()
			q.retireWorkerLocked(id)
			q.mu.Unlock()
			return
		}
		q.process(e)
	}
}

func (q *EventQueue) process(e *event.Event) {
	handlers := q.registry.HandlersFor(e.Kind())
	if len(handlers) == 0 {
		q.log.Log(iface.SeverityDebug, "no handler registered for event kind", iface.F("kind", e.Kind().Tag()))
		notice := event.New(event.KindNoHandler, e)
		_ = q.dispatcher.Dispatch(background(), notice)
		return
	}

	var consequences []*event.Event
	for _, h := range handlers {
		consequences = append(consequences, q.safeInvoke(h, e)...)
	}
	if len(consequences) == 0 {
		return
	}

	filtered := make([]*event.Event, 0, len(consequences))
	for _, c := range consequences {
		if c == nil {
			q.log.Log(iface.SeverityWarn, "handler returned a nil consequence event; dropped")
			continue
		}
		if c == e {
			q.log.Log(iface.SeverityWarn, "handler returned its own triggering event; substituting RecursionError",
				iface.F("kind", e.Kind().Tag()))
			filtered = append(filtered, event.New(event.KindRecursionError, e))
			continue
		}
		filtered = append(filtered, c)
	}
	if len(filtered) > 0 {
		_ = q.dispatcher.Dispatch(background(), filtered...)
	}
}

// safeInvoke calls h.Handle(e), converting any panic into a single
// UntrappedException consequence instead of letting it escape the worker.
func (q *EventQueue) safeInvoke(h registry.Handler, e *event.Event) (result []*event.Event) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Log(iface.SeverityError, "handler panicked", iface.F("recovered", r), iface.F("kind", e.Kind().Tag()))
			result = []*event.Event{event.New(event.KindUntrappedException, r, event.WithPriority(event.DefaultPriority))}
		}
	}()
	return h.Handle(e)
}

// supervise runs the worker-pool supervision loop, once per
// SupervisorThreshold until Shutdown closes supervisorDone.
func (q *EventQueue) supervise() {
	ticker := time.NewTicker(q.cfg.SupervisorThreshold)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			q.superviseOnce()
		case <-q.supervisorDone:
			return
		}
	}
}

func (q *EventQueue) superviseOnce() {
	q.mu.Lock()
	defer q.mu.Unlock()

	pending := q.pending.Len() + len(q.urgent)
	idle := len(q.idleSet)
	total := len(q.workers)

	switch {
	case pending > 0 && idle > 0:
		q.cond.Broadcast()
	case idle == 0 && pending > 0 && total < q.cfg.MaxWorkers:
		q.spawnWorkerLocked()
	case idle > 0 && pending == 0 && total > q.cfg.MinWorkers:
		if _, ok := q.leastRecentlyIdleLocked(); ok {
			q.urgent = append(q.urgent, event.New(event.KindThreadShutdown, nil, event.WithPriority(event.PriMin)))
			q.cond.Broadcast()
		}
	}

	for total := len(q.workers); total < q.cfg.MinWorkers; total++ {
		q.spawnWorkerLocked()
	}
}
