package stream

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mues-io/muesd/event"
)

// capturingDispatcher records every event handed to it, so tests can assert
// a sentinel filter actually dispatched the log-only notice it claims to.
type capturingDispatcher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (d *capturingDispatcher) Dispatch(_ context.Context, events ...*event.Event) error {
	d.mu.Lock()
	d.events = append(d.events, events...)
	d.mu.Unlock()
	return nil
}

func (d *capturingDispatcher) all() []*event.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*event.Event, len(d.events))
	copy(out, d.events)
	return out
}

// passthroughFilter forwards everything unchanged, recording what it saw.
type passthroughFilter struct {
	BaseFilter
	seen chan *event.Event
}

func newPassthrough(sortKey int) *passthroughFilter {
	return &passthroughFilter{BaseFilter: NewBaseFilter(sortKey), seen: make(chan *event.Event, 16)}
}

func (f *passthroughFilter) HandleInput(_ *Stream, events []*event.Event) []*event.Event {
	for _, e := range events {
		f.seen <- e
	}
	return events
}

func (f *passthroughFilter) HandleOutput(_ *Stream, events []*event.Event) []*event.Event {
	return events
}

func drain(t *testing.T, ch chan *event.Event, want *event.Event) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("got %v, want %v", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event to reach filter")
	}
}

func TestInputFlowsThroughFiltersInAscendingSortKeyOrder(t *testing.T) {
	s := New(nil, nil)
	defer s.Shutdown()

	first := newPassthrough(10)
	second := newPassthrough(20)
	s.AddFilters(first, second)

	kind := event.NewKind("test.stream.order")
	e := event.New(kind, nil)
	s.PushInput(e)

	drain(t, first.seen, e)
	drain(t, second.seen, e)
}

// removingFilter returns nil from HandleInput the first time it is called,
// which tells the stream to remove it.
type removingFilter struct {
	BaseFilter
	called chan struct{}
}

func newRemovingFilter(sortKey int) *removingFilter {
	return &removingFilter{BaseFilter: NewBaseFilter(sortKey), called: make(chan struct{}, 1)}
}

func (f *removingFilter) HandleInput(_ *Stream, events []*event.Event) []*event.Event {
	f.called <- struct{}{}
	f.QueueInput(events...)
	return nil
}

func (f *removingFilter) HandleOutput(_ *Stream, events []*event.Event) []*event.Event {
	return events
}

func TestFilterRemovalSubstitutesQueuedInputForNextFilter(t *testing.T) {
	s := New(nil, nil)
	defer s.Shutdown()

	removing := newRemovingFilter(10)
	tail := newPassthrough(20)
	s.AddFilters(removing, tail)

	kind := event.NewKind("test.stream.removal")
	e := event.New(kind, nil)
	s.PushInput(e)

	select {
	case <-removing.called:
	case <-time.After(2 * time.Second):
		t.Fatal("removing filter was never invoked")
	}
	drain(t, tail.seen, e)

	s.mu.RLock()
	for _, fe := range s.filters {
		if fe.filter == Filter(removing) {
			s.mu.RUnlock()
			t.Fatal("removed filter is still in the chain")
		}
	}
	s.mu.RUnlock()
}

func TestUnhandledInputReachesDefaultInputFilter(t *testing.T) {
	disp := &capturingDispatcher{}
	s := New(nil, disp)
	defer s.Shutdown()

	kind := event.NewKind("test.stream.unhandled")
	e := event.New(kind, nil)
	s.PushInput(e)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		hist := s.defaultIn.History()
		for _, h := range hist {
			if h == e {
				for _, d := range disp.all() {
					if d.Kind().Tag() == event.KindUnhandledInput.Tag() && d.Payload() == e {
						return
					}
				}
				t.Fatal("event reached DefaultInputFilter but no KindUnhandledInput notice was dispatched")
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("event never reached DefaultInputFilter")
}

func TestOutputDiscardedByDefaultOutputFilterWhenNoFiltersRegistered(t *testing.T) {
	disp := &capturingDispatcher{}
	s := New(nil, disp)
	defer s.Shutdown()

	kind := event.NewKind("test.stream.output")
	e := event.New(kind, nil)
	s.PushOutput(e)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		hist := s.defaultOut.History()
		for _, h := range hist {
			if h == e {
				for _, d := range disp.all() {
					if d.Kind().Tag() == event.KindUnhandledOutput.Tag() && d.Payload() == e {
						return
					}
				}
				t.Fatal("event reached DefaultOutputFilter but no KindUnhandledOutput notice was dispatched")
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("event never reached DefaultOutputFilter")
}

func TestPauseDefersProcessingUntilUnpause(t *testing.T) {
	s := New(nil, nil)
	defer s.Shutdown()

	tail := newPassthrough(10)
	s.AddFilters(tail)
	s.Pause()

	kind := event.NewKind("test.stream.pause")
	e := event.New(kind, nil)
	s.PushInput(e)

	select {
	case <-tail.seen:
		t.Fatal("filter saw event while stream was paused")
	case <-time.After(200 * time.Millisecond):
	}

	s.Unpause()
	drain(t, tail.seen, e)
}

func TestSentinelFiltersCannotBeRemoved(t *testing.T) {
	s := New(nil, nil)
	defer s.Shutdown()

	removed := s.RemoveFilters(s.defaultIn, s.defaultOut)
	if len(removed) != 0 {
		t.Fatalf("expected no consequence events, got %v", removed)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.filters) != 2 {
		t.Fatalf("expected sentinels to remain, got %d filters", len(s.filters))
	}
}
