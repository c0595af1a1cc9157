package engine

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/mues-io/muesd/errs"
	"github.com/mues-io/muesd/event"
	"github.com/mues-io/muesd/iface"
	"github.com/mues-io/muesd/login"
	"github.com/mues-io/muesd/queue"
)

type stubAuthProvider struct {
	username, password string
}

func (p stubAuthProvider) Authenticate(_ context.Context, req iface.AuthenticationRequest) {
	if req.Username == p.username && req.Password == p.password {
		req.Success(iface.User{ID: "u1", Name: req.Username})
		return
	}
	req.Failure(iface.FailureInvalidCredentials)
}

func newTestEngine(t *testing.T, auth iface.AuthProvider) *Engine {
	t.Helper()
	e := New(Config{
		TickInterval: 20 * time.Millisecond,
		Queue:        queue.Config{MinWorkers: 1, MaxWorkers: 2, SupervisorThreshold: 1},
		AuthProvider: auth,
		LoginMaxTries: 3,
		LoginTimeout:  time.Minute,
	})
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { e.Stop(time.Second) })
	return e
}

func TestEngineLifecycleTransitions(t *testing.T) {
	e := newTestEngine(t, stubAuthProvider{})
	if got := e.State(); got != StateRunning {
		t.Fatalf("state = %v, want running", got)
	}
	if err := e.Start(); err != errs.ErrAlreadyRunning {
		t.Fatalf("second Start = %v, want already-running", err)
	}
}

func TestEngineRefusesDispatchWhenStopped(t *testing.T) {
	e := New(Config{Queue: queue.Config{MinWorkers: 1, MaxWorkers: 1}})
	err := e.Dispatch(context.Background(), event.New(event.KindTick, nil))
	if err == nil {
		t.Fatal("expected Dispatch to fail before Start")
	}
}

func TestEngineTickLoopDrainsScheduler(t *testing.T) {
	e := newTestEngine(t, stubAuthProvider{})
	fired := make(chan struct{}, 1)
	e.Registry().Subscribe(event.NewKind("test.scheduled"), recordHandler{fired})

	if err := e.Scheduler().ScheduleInTicks(1, event.New(event.NewKind("test.scheduled"), nil)); err != nil {
		t.Fatalf("ScheduleInTicks: %v", err)
	}

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled event never fired through the tick loop")
	}
}

type recordHandler struct{ ch chan struct{} }

func (h recordHandler) Handle(*event.Event) []*event.Event {
	select {
	case h.ch <- struct{}{}:
	default:
	}
	return nil
}

type loopbackConn struct {
	r    io.Reader
	out  *discardWriter
	done chan struct{}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func (c *loopbackConn) Read(p []byte) (int, error)  { return c.r.Read(p) }
func (c *loopbackConn) Write(p []byte) (int, error) { return c.out.Write(p) }
func (c *loopbackConn) Close() error {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	return nil
}

func TestHandleConnectionDrivesLoginToSuccess(t *testing.T) {
	e := newTestEngine(t, stubAuthProvider{username: "ged", password: "testing"})

	successCh := make(chan struct{}, 1)
	e.Registry().Subscribe(event.KindUserLogin, recordHandler{successCh})

	r, w := io.Pipe()
	conn := &loopbackConn{r: r, out: &discardWriter{}, done: make(chan struct{})}
	defer w.Close()

	go func() {
		io.WriteString(w, "ged\n")
		io.WriteString(w, "testing\n")
	}()

	e.handleConnection(context.Background(), conn, iface.RemoteInfo{Host: "127.0.0.1"}, ConnectionDefaults{
		LoginMaxTries: 3,
		LoginTimeout:  time.Minute,
		RateLimiter:   login.NewLoginRateLimiter(map[time.Duration]int{time.Second: 1000}),
	})

	select {
	case <-successCh:
	case <-time.After(2 * time.Second):
		t.Fatal("UserLogin never observed")
	}
}
