package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mues-io/muesd/errs"
	"github.com/mues-io/muesd/event"
	"github.com/mues-io/muesd/registry"
)

// loopbackDispatcher re-enqueues consequence events onto the same queue,
// standing in for the Engine in isolation tests.
type loopbackDispatcher struct {
	q *EventQueue
}

func (d loopbackDispatcher) Dispatch(_ context.Context, events ...*event.Event) error {
	return d.q.Enqueue(events...)
}

func newTestQueue(t *testing.T, reg *registry.Registry, cfg Config) *EventQueue {
	t.Helper()
	q := New(cfg, nil)
	if err := q.Start(reg, loopbackDispatcher{q: q}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { q.Shutdown(time.Second) })
	return q
}

func TestPriorityRespectedAcrossThreeEvents(t *testing.T) {
	reg := registry.New()
	var (
		mu    sync.Mutex
		order []string
	)
	done := make(chan struct{})
	var count int
	kind := event.NewKind("test.priority")
	reg.Subscribe(kind, registry.HandlerFunc(func(e *event.Event) []*event.Event {
		mu.Lock()
		order = append(order, e.Payload().(string))
		count++
		if count == 3 {
			close(done)
		}
		mu.Unlock()
		return nil
	}))

	q := newTestQueue(t, reg, Config{MinWorkers: 1, MaxWorkers: 1})

	e1 := event.New(kind, "E1", event.WithPriority(32))
	e2 := event.New(kind, "E2", event.WithPriority(16))
	e3 := event.New(kind, "E3", event.WithPriority(32))
	if err := q.Enqueue(e1, e2, e3); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatch")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"E2", "E1", "E3"}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}
}

func TestConsequenceEventIsRedispatched(t *testing.T) {
	reg := registry.New()
	hello := event.NewKind("test.hello")
	echo := event.NewKind("test.echo")

	echoInvocations := make(chan struct{}, 10)
	reg.Subscribe(echo, registry.HandlerFunc(func(e *event.Event) []*event.Event {
		echoInvocations <- struct{}{}
		return nil
	}))
	reg.Subscribe(hello, registry.HandlerFunc(func(e *event.Event) []*event.Event {
		return []*event.Event{event.New(echo, nil)}
	}))

	q := newTestQueue(t, reg, Config{MinWorkers: 1, MaxWorkers: 2})
	if err := q.Enqueue(event.New(hello, nil)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	select {
	case <-echoInvocations:
	case <-time.After(2 * time.Second):
		t.Fatal("echo handler never invoked")
	}

	select {
	case <-echoInvocations:
		t.Fatal("echo handler invoked more than once")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSelfRecursionIsTrapped(t *testing.T) {
	reg := registry.New()
	evil := event.NewKind("test.evil")
	recursionErrors := make(chan *event.Event, 10)
	var invocations int
	var mu sync.Mutex

	reg.Subscribe(event.KindRecursionError, registry.HandlerFunc(func(e *event.Event) []*event.Event {
		recursionErrors <- e
		return nil
	}))

	q := newTestQueue(t, reg, Config{MinWorkers: 1, MaxWorkers: 1})

	var selfEvent *event.Event
	reg.Subscribe(evil, registry.HandlerFunc(func(e *event.Event) []*event.Event {
		mu.Lock()
		invocations++
		mu.Unlock()
		return []*event.Event{selfEvent}
	}))
	selfEvent = event.New(evil, nil)

	if err := q.Enqueue(selfEvent); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	select {
	case <-recursionErrors:
	case <-time.After(2 * time.Second):
		t.Fatal("RecursionError never dispatched")
	}

	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if invocations != 1 {
		t.Fatalf("evil handler invoked %d times, want 1", invocations)
	}
}

func TestStartTwiceFails(t *testing.T) {
	reg := registry.New()
	q := New(Config{MinWorkers: 1, MaxWorkers: 1}, nil)
	if err := q.Start(reg, loopbackDispatcher{q: q}); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	defer q.Shutdown(time.Second)

	if err := q.Start(reg, loopbackDispatcher{q: q}); err != errs.ErrAlreadyRunning {
		t.Fatalf("second Start: got %v, want ErrAlreadyRunning", err)
	}
}

func TestShutdownIsIdempotentAndRefusesNewEvents(t *testing.T) {
	reg := registry.New()
	q := New(Config{MinWorkers: 1, MaxWorkers: 1}, nil)
	if err := q.Start(reg, loopbackDispatcher{q: q}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if clean := q.Shutdown(time.Second); !clean {
		t.Fatal("expected clean shutdown")
	}
	if clean := q.Shutdown(time.Second); !clean {
		t.Fatal("expected idempotent clean shutdown")
	}

	kind := event.NewKind("test.after.shutdown")
	if err := q.Enqueue(event.New(kind, nil)); err != errs.ErrRefused {
		t.Fatalf("Enqueue after shutdown: got %v, want ErrRefused", err)
	}
}

func TestWorkerPoolStaysWithinBounds(t *testing.T) {
	reg := registry.New()
	kind := event.NewKind("test.bounds")
	block := make(chan struct{})
	var inFlight int
	var mu sync.Mutex
	reg.Subscribe(kind, registry.HandlerFunc(func(e *event.Event) []*event.Event {
		mu.Lock()
		inFlight++
		mu.Unlock()
		<-block
		return nil
	}))

	q := newTestQueue(t, reg, Config{MinWorkers: 1, MaxWorkers: 3, SupervisorThreshold: 20 * time.Millisecond})

	for i := 0; i < 10; i++ {
		_ = q.Enqueue(event.New(kind, i))
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		stats := q.Stats()
		if stats.Workers >= 1 && stats.Workers <= 3 {
			if stats.Workers == 3 {
				break
			}
		} else {
			t.Fatalf("worker count %d out of bounds [1,3]", stats.Workers)
		}
		time.Sleep(10 * time.Millisecond)
	}
	close(block)
}
