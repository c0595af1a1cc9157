package stream

import (
	"context"
	"math"
	"sync"

	"github.com/mues-io/muesd/dispatch"
	"github.com/mues-io/muesd/event"
	"github.com/mues-io/muesd/iface"
)

// Direction distinguishes the two halves of a stream's bidirectional
// pipeline.
type Direction int

const (
	DirectionInput Direction = iota
	DirectionOutput
)

// Filter is a single stage of a stream's bidirectional pipeline. A nil
// return from HandleInput/HandleOutput, or Finished() being true once that
// call returns, tells the stream to remove the filter right away, before
// the cycle moves on to the next filter.
type Filter interface {
	HandleInput(s *Stream, events []*event.Event) []*event.Event
	HandleOutput(s *Stream, events []*event.Event) []*event.Event
	Start(s *Stream)
	Stop(s *Stream)
	SortKey() int
	Finished() bool
	QueuedInput() []*event.Event
	QueuedOutput() []*event.Event
}

// BaseFilter provides the bookkeeping every Filter needs — sort key,
// finished flag, deferred queues — so concrete filters only implement
// HandleInput/HandleOutput (and Start/Stop when they need lifecycle hooks).
type BaseFilter struct {
	sortKey int

	mu        sync.Mutex
	finished  bool
	queuedIn  []*event.Event
	queuedOut []*event.Event
}

// NewBaseFilter returns a BaseFilter with the given placement key.
func NewBaseFilter(sortKey int) BaseFilter {
	return BaseFilter{sortKey: sortKey}
}

func (b *BaseFilter) SortKey() int { return b.sortKey }

func (b *BaseFilter) Finished() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.finished
}

// MarkFinished tells the stream to remove this filter the next time one of
// its HandleInput/HandleOutput calls returns.
func (b *BaseFilter) MarkFinished() {
	b.mu.Lock()
	b.finished = true
	b.mu.Unlock()
}

// QueueInput defers events for injection as the next filter's input at the
// point in the pipeline this filter occupies.
func (b *BaseFilter) QueueInput(events ...*event.Event) {
	b.mu.Lock()
	b.queuedIn = append(b.queuedIn, events...)
	b.mu.Unlock()
}

// QueueOutput defers events for injection into the stream's output buffer.
func (b *BaseFilter) QueueOutput(events ...*event.Event) {
	b.mu.Lock()
	b.queuedOut = append(b.queuedOut, events...)
	b.mu.Unlock()
}

// QueuedInput drains and returns events queued via QueueInput.
func (b *BaseFilter) QueuedInput() []*event.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.queuedIn
	b.queuedIn = nil
	return out
}

// QueuedOutput drains and returns events queued via QueueOutput.
func (b *BaseFilter) QueuedOutput() []*event.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.queuedOut
	b.queuedOut = nil
	return out
}

// Start and Stop default to no-ops; embedders override what they need.
func (b *BaseFilter) Start(*Stream) {}
func (b *BaseFilter) Stop(*Stream)  {}

// sentinelSortKeys place the default filters at the far ends of every
// cycle's iteration order, regardless of what ordinary filters do:
// DefaultInputFilter always runs last during the (ascending) input cycle,
// DefaultOutputFilter always runs last during the (descending) output
// cycle.
const (
	inputSentinelSortKey  = math.MaxInt32
	outputSentinelSortKey = math.MinInt32
)

// DefaultInputFilter is the non-removable tail of the input pipeline. Any
// event that reaches it is unhandled input: logged, recorded, and
// synthesized as a log-only KindUnhandledInput event dispatched back
// through the owning Engine.
type DefaultInputFilter struct {
	BaseFilter
	log        iface.LogSink
	dispatcher dispatch.Dispatcher

	mu      sync.Mutex
	history []*event.Event
}

func newDefaultInputFilter(log iface.LogSink, dispatcher dispatch.Dispatcher) *DefaultInputFilter {
	return &DefaultInputFilter{BaseFilter: NewBaseFilter(inputSentinelSortKey), log: log, dispatcher: dispatcher}
}

func (f *DefaultInputFilter) HandleInput(_ *Stream, events []*event.Event) []*event.Event {
	for _, e := range events {
		f.log.Log(iface.SeverityWarn, "unhandled input reached default filter", iface.F("kind", e.Kind().Tag()))
		f.record(e)
		notice := event.New(event.KindUnhandledInput, e)
		if err := f.dispatcher.Dispatch(context.Background(), notice); err != nil {
			f.log.Log(iface.SeverityWarn, "unhandled-input notice refused", iface.F("error", err.Error()))
		}
	}
	return []*event.Event{}
}

func (f *DefaultInputFilter) HandleOutput(_ *Stream, events []*event.Event) []*event.Event {
	return events
}

func (f *DefaultInputFilter) record(e *event.Event) {
	const maxHistory = 64
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = append(f.history, e)
	if len(f.history) > maxHistory {
		f.history = f.history[len(f.history)-maxHistory:]
	}
}

// History returns the most recently unhandled input events, bounded.
func (f *DefaultInputFilter) History() []*event.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*event.Event, len(f.history))
	copy(out, f.history)
	return out
}

// DefaultOutputFilter is the non-removable tail of the output pipeline. It
// discards every output event that reaches it, recording a bounded history
// for introspection and dispatching a log-only KindUnhandledOutput event
// for each one.
type DefaultOutputFilter struct {
	BaseFilter
	log        iface.LogSink
	dispatcher dispatch.Dispatcher

	mu      sync.Mutex
	history []*event.Event
}

func newDefaultOutputFilter(log iface.LogSink, dispatcher dispatch.Dispatcher) *DefaultOutputFilter {
	return &DefaultOutputFilter{BaseFilter: NewBaseFilter(outputSentinelSortKey), log: log, dispatcher: dispatcher}
}

func (f *DefaultOutputFilter) HandleInput(_ *Stream, events []*event.Event) []*event.Event {
	return events
}

func (f *DefaultOutputFilter) HandleOutput(_ *Stream, events []*event.Event) []*event.Event {
	const maxHistory = 64
	f.mu.Lock()
	f.history = append(f.history, events...)
	if len(f.history) > maxHistory {
		f.history = f.history[len(f.history)-maxHistory:]
	}
	f.mu.Unlock()

	for _, e := range events {
		f.log.Log(iface.SeverityWarn, "output reached default filter undelivered", iface.F("kind", e.Kind().Tag()))
		notice := event.New(event.KindUnhandledOutput, e)
		if err := f.dispatcher.Dispatch(context.Background(), notice); err != nil {
			f.log.Log(iface.SeverityWarn, "unhandled-output notice refused", iface.F("error", err.Error()))
		}
	}
	return []*event.Event{}
}

// History returns the most recently discarded output events, bounded.
func (f *DefaultOutputFilter) History() []*event.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*event.Event, len(f.history))
	copy(out, f.history)
	return out
}
