package engine

import (
	"bufio"
	"context"
	"time"

	"github.com/mues-io/muesd/event"
	"github.com/mues-io/muesd/iface"
	"github.com/mues-io/muesd/internal/adapters/output"
	"github.com/mues-io/muesd/login"
	"github.com/mues-io/muesd/stream"
)

// ConnectionDefaults configures per-connection filter wiring, separate from
// Config because it has nothing to do with the kernel itself.
type ConnectionDefaults struct {
	LoginMaxTries int
	LoginTimeout  time.Duration
	RateLimiter   *login.LoginRateLimiter
}

// Serve accepts connections from listener until ctx is cancelled, wiring
// each one into its own Stream with a LoginFilter and an output sink
// filter. This is the Engine's only path for turning a raw connection into
// a session: every byte a client sends or receives passes through the
// filter pipeline built here.
func (e *Engine) Serve(ctx context.Context, listener iface.Listener, defaults ConnectionDefaults) error {
	for {
		conn, remote, err := listener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			e.log.Log(iface.SeverityWarn, "accept failed", iface.F("error", err.Error()))
			continue
		}
		e.handleConnection(ctx, conn, remote, defaults)
	}
}

func (e *Engine) handleConnection(ctx context.Context, conn connCloser, remote iface.RemoteInfo, defaults ConnectionDefaults) {
	s := stream.New(e.log, e)

	sink := output.NewWriterSink(conn)
	sinkFilter := output.NewFilter(sink, e.log)

	lf := login.New(login.Config{
		RemoteHost:  remote.Host,
		MaxTries:    defaults.LoginMaxTries,
		Timeout:     defaults.LoginTimeout,
		RateLimiter: defaults.RateLimiter,
		Scheduler:   e.scheduler,
		Dispatcher:  e,
	})

	s.AddFilters(sinkFilter, lf)

	if err := e.Dispatch(ctx, event.New(event.KindConnectionOpened, remote)); err != nil {
		e.log.Log(iface.SeverityWarn, "connection-opened dispatch refused", iface.F("remote_host", remote.Host))
	}

	go e.readPump(s, conn)
}

// connCloser is the io.ReadWriteCloser surface handleConnection needs: the
// output sink writes to it, readPump reads and closes it. Declared here so
// tests can supply a fake without pulling in net.Conn.
type connCloser interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// readPump turns a connection's byte stream into line-delimited input
// events, one per line read, until the connection closes. It never writes
// to conn: output travels the filter pipeline to the sink filter instead.
func (e *Engine) readPump(s *stream.Stream, conn connCloser) {
	defer conn.Close()
	defer s.Shutdown()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		s.PushInput(event.New(event.KindInputLine, scanner.Text()))
	}
}
