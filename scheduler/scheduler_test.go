package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/mues-io/muesd/event"
)

type recordingDispatcher struct {
	dispatched [][]*event.Event
}

func (r *recordingDispatcher) Dispatch(_ context.Context, events ...*event.Event) error {
	r.dispatched = append(r.dispatched, events)
	return nil
}

func TestRepeatingScheduleFiresEveryInterval(t *testing.T) {
	d := &recordingDispatcher{}
	s := New(d)

	kind := event.NewKind("test.tick.repeat")
	e := event.New(kind, nil)

	if err := s.ScheduleInTicks(-5, e); err != nil {
		t.Fatalf("ScheduleInTicks: %v", err)
	}

	var firedAt []int64
	for tick := int64(0); tick <= 20; tick++ {
		due := s.DrainDue(tick, time.Now())
		if len(due) > 0 {
			firedAt = append(firedAt, tick)
		}
	}

	want := []int64{5, 10, 15, 20}
	if len(firedAt) != len(want) {
		t.Fatalf("fired at %v, want %v", firedAt, want)
	}
	for i := range want {
		if firedAt[i] != want[i] {
			t.Fatalf("fired at %v, want %v", firedAt, want)
		}
	}
}

func TestScheduleThenCancelProducesNoDispatch(t *testing.T) {
	d := &recordingDispatcher{}
	s := New(d)

	kind := event.NewKind("test.cancel")
	e := event.New(kind, nil)

	if err := s.ScheduleInTicks(3, e); err != nil {
		t.Fatalf("ScheduleInTicks: %v", err)
	}
	removed := s.Cancel(e)
	if len(removed) != 1 || removed[0] != e {
		t.Fatalf("Cancel returned %v, want [%v]", removed, e)
	}

	for tick := int64(0); tick <= 10; tick++ {
		due := s.DrainDue(tick, time.Now())
		if len(due) != 0 {
			t.Fatalf("event fired after cancel at tick %d", tick)
		}
	}
}

func TestScheduleAtPastTimeDispatchesImmediately(t *testing.T) {
	d := &recordingDispatcher{}
	s := New(d)

	kind := event.NewKind("test.past")
	e := event.New(kind, nil)

	if err := s.ScheduleAt(time.Now().Add(-time.Second), e); err != nil {
		t.Fatalf("ScheduleAt: %v", err)
	}
	if len(d.dispatched) != 1 {
		t.Fatalf("expected immediate dispatch, got %d calls", len(d.dispatched))
	}
}

func TestScheduleInTicksZeroDispatchesImmediately(t *testing.T) {
	d := &recordingDispatcher{}
	s := New(d)

	kind := event.NewKind("test.zero")
	e := event.New(kind, nil)

	if err := s.ScheduleInTicks(0, e); err != nil {
		t.Fatalf("ScheduleInTicks: %v", err)
	}
	if len(d.dispatched) != 1 {
		t.Fatalf("expected immediate dispatch, got %d calls", len(d.dispatched))
	}
}

func TestDrainDueOrdering(t *testing.T) {
	d := &recordingDispatcher{}
	s := New(d)

	timedKind := event.NewKind("test.order.timed")
	tickedKind := event.NewKind("test.order.ticked")

	timedEvt := event.New(timedKind, nil)
	tickedEvt := event.New(tickedKind, nil)

	now := time.Now()
	if err := s.ScheduleAt(now.Add(10*time.Millisecond), timedEvt); err != nil {
		t.Fatal(err)
	}
	if err := s.ScheduleInTicks(1, tickedEvt); err != nil {
		t.Fatal(err)
	}

	due := s.DrainDue(1, now.Add(time.Second))
	if len(due) != 2 {
		t.Fatalf("expected 2 due events, got %d", len(due))
	}
	if due[0] != timedEvt || due[1] != tickedEvt {
		t.Fatalf("expected timed entries before ticked entries")
	}
}
