// Package stream implements the per-connection bidirectional filter
// pipeline. It generalizes a per-signal worker goroutine idiom — one
// goroutine per registered signal, parked on a condition variable until
// woken — to a per-connection worker that drains two buffers through an
// ordered filter chain instead of invoking a flat listener list.
package stream

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mues-io/muesd/dispatch"
	"github.com/mues-io/muesd/event"
	"github.com/mues-io/muesd/iface"
)

// nopDispatcher discards every event. Used as the default when a Stream is
// built without a Dispatcher, so sentinel filters always have something to
// call.
type nopDispatcher struct{}

func (nopDispatcher) Dispatch(context.Context, ...*event.Event) error { return nil }

type streamState int

const (
	stateRunning streamState = iota
	stateShutdown
)

// filterEntry pairs a Filter with the sequence number it was added under,
// so filters sharing a SortKey keep stable relative ordering regardless of
// which direction they're iterated in.
type filterEntry struct {
	filter Filter
	seq    int
}

// Stream is an IOEventStream: a per-connection, bidirectional pipeline of
// Filters. Input flows from the connection toward DefaultInputFilter in
// ascending SortKey order; output flows from the engine toward
// DefaultOutputFilter in descending SortKey order. A single worker
// goroutine serves both directions, woken by Notify.
type Stream struct {
	log        iface.LogSink
	dispatcher dispatch.Dispatcher

	mu      sync.RWMutex
	filters []filterEntry
	nextSeq int

	defaultIn  *DefaultInputFilter
	defaultOut *DefaultOutputFilter

	notifyMu   sync.Mutex
	notifyCond *sync.Cond
	pendingIn  bool
	pendingOut bool
	paused     bool
	state      streamState

	bufMu        sync.Mutex
	inputBuffer  []*event.Event
	outputBuffer []*event.Event

	workerExited chan struct{}
}

// New creates a Stream with its two non-removable sentinel filters already
// installed, and starts its worker goroutine. dispatcher receives the
// log-only events the sentinels synthesize when input or output goes
// unhandled; a nil dispatcher discards them.
func New(log iface.LogSink, dispatcher dispatch.Dispatcher) *Stream {
	if log == nil {
		log = iface.NopLogSink{}
	}
	if dispatcher == nil {
		dispatcher = nopDispatcher{}
	}
	s := &Stream{
		log:          log,
		dispatcher:   dispatcher,
		workerExited: make(chan struct{}),
	}
	s.notifyCond = sync.NewCond(&s.notifyMu)
	s.defaultIn = newDefaultInputFilter(log, dispatcher)
	s.defaultOut = newDefaultOutputFilter(log, dispatcher)
	s.filters = []filterEntry{
		{filter: s.defaultOut, seq: 0},
		{filter: s.defaultIn, seq: 1},
	}
	s.nextSeq = 2
	go s.run()
	return s
}

// PushInput enqueues events for the next input cycle and wakes the worker.
func (s *Stream) PushInput(events ...*event.Event) {
	if len(events) == 0 {
		return
	}
	s.bufMu.Lock()
	s.inputBuffer = append(s.inputBuffer, events...)
	s.bufMu.Unlock()
	s.Notify(DirectionInput)
}

// PushOutput enqueues events for the next output cycle and wakes the
// worker.
func (s *Stream) PushOutput(events ...*event.Event) {
	if len(events) == 0 {
		return
	}
	s.bufMu.Lock()
	s.outputBuffer = append(s.outputBuffer, events...)
	s.bufMu.Unlock()
	s.Notify(DirectionOutput)
}

// Notify marks the stream as having pending work in the given direction.
// While paused, the flag is recorded but the worker is not woken; Unpause
// picks it up.
func (s *Stream) Notify(direction Direction) {
	s.notifyMu.Lock()
	if direction == DirectionInput {
		s.pendingIn = true
	} else {
		s.pendingOut = true
	}
	paused := s.paused
	s.notifyMu.Unlock()
	if !paused {
		s.notifyCond.Signal()
	}
}

// Pause stops the worker from starting new cycles, without losing whatever
// pending_in/pending_out state has already accumulated.
func (s *Stream) Pause() {
	s.notifyMu.Lock()
	s.paused = true
	s.notifyMu.Unlock()
}

// Unpause resumes cycling, immediately processing any work that
// accumulated while paused.
func (s *Stream) Unpause() {
	s.notifyMu.Lock()
	s.paused = false
	s.notifyMu.Unlock()
	s.notifyCond.Broadcast()
}

// AddFilters inserts new filters into the pipeline, deduplicated by
// identity, and calls each one's Start hook.
func (s *Stream) AddFilters(filters ...Filter) {
	if len(filters) == 0 {
		return
	}
	s.mu.Lock()
	var added []Filter
	for _, f := range filters {
		if f == nil || s.containsLocked(f) {
			continue
		}
		s.filters = append(s.filters, filterEntry{filter: f, seq: s.nextSeq})
		s.nextSeq++
		added = append(added, f)
	}
	s.mu.Unlock()
	for _, f := range added {
		f.Start(s)
	}
}

func (s *Stream) containsLocked(f Filter) bool {
	for _, fe := range s.filters {
		if fe.filter == f {
			return true
		}
	}
	return false
}

// RemoveFilters removes the given filters (sentinels are never removed,
// and are silently skipped), calls their Stop hook, and returns the
// queued-input events they were holding so the caller can decide how to
// route them. Their queued-output events go straight into the output
// buffer for the next output cycle.
func (s *Stream) RemoveFilters(filters ...Filter) []*event.Event {
	if len(filters) == 0 {
		return nil
	}
	want := make(map[Filter]struct{}, len(filters))
	for _, f := range filters {
		if f == nil || f == Filter(s.defaultIn) || f == Filter(s.defaultOut) {
			continue
		}
		want[f] = struct{}{}
	}
	if len(want) == 0 {
		return nil
	}

	s.mu.Lock()
	var kept []filterEntry
	var removed []Filter
	for _, fe := range s.filters {
		if _, ok := want[fe.filter]; ok {
			removed = append(removed, fe.filter)
			continue
		}
		kept = append(kept, fe)
	}
	s.filters = kept
	s.mu.Unlock()

	var consequences []*event.Event
	var queuedOut []*event.Event
	for _, f := range removed {
		consequences = append(consequences, f.QueuedInput()...)
		queuedOut = append(queuedOut, f.QueuedOutput()...)
		f.Stop(s)
	}
	if len(queuedOut) > 0 {
		s.bufMu.Lock()
		s.outputBuffer = append(s.outputBuffer, queuedOut...)
		s.bufMu.Unlock()
		s.markPendingOutput()
	}
	return consequences
}

// removeFilter physically removes f from the filter chain and calls its
// Stop hook. Used mid-cycle when a filter's HandleInput/HandleOutput
// signals it is done.
func (s *Stream) removeFilter(f Filter) {
	s.mu.Lock()
	var kept []filterEntry
	for _, fe := range s.filters {
		if fe.filter == f {
			continue
		}
		kept = append(kept, fe)
	}
	s.filters = kept
	s.mu.Unlock()
	f.Stop(s)
}

// ascending returns a snapshot of filters ordered for the input cycle:
// SortKey ascending, ties broken by insertion order.
func (s *Stream) ascending() []Filter {
	return s.ordered(func(a, b filterEntry) bool {
		if a.filter.SortKey() != b.filter.SortKey() {
			return a.filter.SortKey() < b.filter.SortKey()
		}
		return a.seq < b.seq
	})
}

// descending returns a snapshot of filters ordered for the output cycle:
// SortKey descending, ties still broken by ascending insertion order.
func (s *Stream) descending() []Filter {
	return s.ordered(func(a, b filterEntry) bool {
		if a.filter.SortKey() != b.filter.SortKey() {
			return a.filter.SortKey() > b.filter.SortKey()
		}
		return a.seq < b.seq
	})
}

func (s *Stream) ordered(less func(a, b filterEntry) bool) []Filter {
	s.mu.RLock()
	snapshot := make([]filterEntry, len(s.filters))
	copy(snapshot, s.filters)
	s.mu.RUnlock()

	sort.SliceStable(snapshot, func(i, j int) bool { return less(snapshot[i], snapshot[j]) })
	out := make([]Filter, len(snapshot))
	for i, fe := range snapshot {
		out[i] = fe.filter
	}
	return out
}

// markPendingOutput is used internally when a mid-cycle filter removal
// redirects queued output into the output buffer — it must guarantee an
// output cycle eventually runs even if nothing else calls Notify.
func (s *Stream) markPendingOutput() {
	s.notifyMu.Lock()
	s.pendingOut = true
	paused := s.paused
	s.notifyMu.Unlock()
	if !paused {
		s.notifyCond.Signal()
	}
}

// Shutdown removes every non-sentinel filter (calling Stop on each),
// unpauses, and stops the worker goroutine. It waits briefly for the
// worker to exit; Go cannot forcibly kill a goroutine blocked inside a
// filter, so a worker stuck in a misbehaving Filter call will leak until
// that call returns.
func (s *Stream) Shutdown() {
	s.mu.Lock()
	var kept []filterEntry
	var stopped []Filter
	for _, fe := range s.filters {
		if fe.filter == Filter(s.defaultIn) || fe.filter == Filter(s.defaultOut) {
			kept = append(kept, fe)
			continue
		}
		stopped = append(stopped, fe.filter)
	}
	s.filters = kept
	s.mu.Unlock()
	for _, f := range stopped {
		f.Stop(s)
	}

	s.notifyMu.Lock()
	s.state = stateShutdown
	s.paused = false
	s.notifyMu.Unlock()
	s.notifyCond.Broadcast()

	select {
	case <-s.workerExited:
	case <-time.After(2 * time.Second):
		s.log.Log(iface.SeverityWarn, "stream worker did not exit within shutdown grace period")
	}
}

func (s *Stream) run() {
	for {
		s.notifyMu.Lock()
		for s.state == stateRunning && (s.paused || (!s.pendingIn && !s.pendingOut)) {
			s.notifyCond.Wait()
		}
		if s.state == stateShutdown {
			s.notifyMu.Unlock()
			close(s.workerExited)
			return
		}
		gotIn, gotOut := s.pendingIn, s.pendingOut
		s.pendingIn, s.pendingOut = false, false
		s.notifyMu.Unlock()

		if gotIn {
			s.runInputCycle()
		}
		if gotOut {
			s.runOutputCycle()
		}
	}
}
