// Package scheduler implements absolute-time, tick-offset, and repeating
// event scheduling. It has no analogue in an on-demand-only dispatch
// model; it's built on the same single-mutex-guarded-collection style
// used elsewhere in this module, applied here to three entry kinds.
package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mues-io/muesd/dispatch"
	"github.com/mues-io/muesd/event"
)

type entryKind int

const (
	kindAtTime entryKind = iota
	kindAtTick
	kindRepeating
)

// scheduledEntry is one of three variants: AtTime, AtTick, or Repeating.
type scheduledEntry struct {
	kind     entryKind
	events   []*event.Event
	fireTime time.Time // kindAtTime
	fireTick int64     // kindAtTick, kindRepeating (next_tick)
	interval int64     // kindRepeating only
}

// Scheduler schedules events by absolute time, by tick offset, or on a
// repeating tick interval, and hands due events back to the Engine once per
// tick via DrainDue. All operations are serialized by a single mutex.
type Scheduler struct {
	mu          sync.Mutex
	currentTick int64
	entries     []*scheduledEntry
	dispatcher  dispatch.Dispatcher
}

// New creates a Scheduler that dispatches immediate (already-due) events
// through dispatcher.
func New(dispatcher dispatch.Dispatcher) *Scheduler {
	return &Scheduler{dispatcher: dispatcher}
}

// ScheduleAt fires events once at wall time >= t. If t has already passed,
// events are dispatched immediately instead of being queued.
func (s *Scheduler) ScheduleAt(t time.Time, events ...*event.Event) error {
	if len(events) == 0 {
		return nil
	}
	s.mu.Lock()
	if !t.After(time.Now()) {
		s.mu.Unlock()
		return s.dispatcher.Dispatch(context.Background(), events...)
	}
	s.entries = append(s.entries, &scheduledEntry{kind: kindAtTime, events: events, fireTime: t})
	s.mu.Unlock()
	return nil
}

// ScheduleInTicks fires events after n ticks. n == 0 dispatches immediately;
// n > 0 fires once at current_tick+n; n < 0 fires every |n| ticks starting
// at current_tick+|n|.
func (s *Scheduler) ScheduleInTicks(n int64, events ...*event.Event) error {
	if len(events) == 0 {
		return nil
	}
	s.mu.Lock()
	switch {
	case n == 0:
		s.mu.Unlock()
		return s.dispatcher.Dispatch(context.Background(), events...)
	case n > 0:
		s.entries = append(s.entries, &scheduledEntry{
			kind: kindAtTick, events: events, fireTick: s.currentTick + n,
		})
		s.mu.Unlock()
	default:
		interval := -n
		s.entries = append(s.entries, &scheduledEntry{
			kind: kindRepeating, events: events, fireTick: s.currentTick + interval, interval: interval,
		})
		s.mu.Unlock()
	}
	return nil
}

// Cancel removes every entry whose event list contains any of the given
// events and returns the flattened set of events that were removed.
// Cancelling is atomic with respect to an already-dispatched event: once an
// entry's events have been drained into the queue by DrainDue, Cancel can no
// longer recall them. Passing no events cancels every scheduled entry.
func (s *Scheduler) Cancel(events ...*event.Event) []*event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(events) == 0 {
		removed := s.entries
		s.entries = nil
		var out []*event.Event
		for _, e := range removed {
			out = append(out, e.events...)
		}
		return out
	}

	want := make(map[*event.Event]struct{}, len(events))
	for _, e := range events {
		want[e] = struct{}{}
	}

	var kept []*scheduledEntry
	var removedEvents []*event.Event
	for _, entry := range s.entries {
		match := false
		for _, e := range entry.events {
			if _, ok := want[e]; ok {
				match = true
				break
			}
		}
		if match {
			removedEvents = append(removedEvents, entry.events...)
		} else {
			kept = append(kept, entry)
		}
	}
	s.entries = kept
	return removedEvents
}

// DrainDue is invoked once per tick by the Engine. It returns and removes
// every entry due at currentTick/currentTime, re-scheduling repeating
// entries with their updated next_tick. Within the returned slice, timed
// entries precede ticked entries precede repeating entries, each group
// ascending by its own due key; events within one entry preserve their
// relative order.
func (s *Scheduler) DrainDue(currentTick int64, currentTime time.Time) []*event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentTick = currentTick

	var timedDue, tickedDue, repeatingDue, kept []*scheduledEntry
	for _, e := range s.entries {
		switch e.kind {
		case kindAtTime:
			if !e.fireTime.After(currentTime) {
				timedDue = append(timedDue, e)
			} else {
				kept = append(kept, e)
			}
		case kindAtTick:
			if e.fireTick <= currentTick {
				tickedDue = append(tickedDue, e)
			} else {
				kept = append(kept, e)
			}
		case kindRepeating:
			if e.fireTick <= currentTick {
				repeatingDue = append(repeatingDue, e)
				kept = append(kept, &scheduledEntry{
					kind: kindRepeating, events: e.events,
					fireTick: e.fireTick + e.interval, interval: e.interval,
				})
			} else {
				kept = append(kept, e)
			}
		}
	}
	s.entries = kept

	sort.SliceStable(timedDue, func(i, j int) bool { return timedDue[i].fireTime.Before(timedDue[j].fireTime) })
	sort.SliceStable(tickedDue, func(i, j int) bool { return tickedDue[i].fireTick < tickedDue[j].fireTick })
	sort.SliceStable(repeatingDue, func(i, j int) bool { return repeatingDue[i].fireTick < repeatingDue[j].fireTick })

	var out []*event.Event
	for _, e := range timedDue {
		out = append(out, e.events...)
	}
	for _, e := range tickedDue {
		out = append(out, e.events...)
	}
	for _, e := range repeatingDue {
		out = append(out, e.events...)
	}
	return out
}

// Pending reports how many entries remain scheduled, for the CLI's status
// command.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
