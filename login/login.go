package login

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/mues-io/muesd/dispatch"
	"github.com/mues-io/muesd/event"
	"github.com/mues-io/muesd/iface"
	"github.com/mues-io/muesd/scheduler"
	"github.com/mues-io/muesd/stream"
)

// SortKey places a LoginFilter early in the input direction (it must see
// raw input before any application filter does) and, symmetrically, late
// in the output direction (it must suppress everything else's output
// before it reaches the wire).
const SortKey = 10

type loginState int

const (
	stateAwaitingUsername loginState = iota
	stateAwaitingPassword
	stateAwaitingAuthResponse
	stateDone
)

var usernamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]+$`)

func isPrintablePassword(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

// SessionFailure is the payload of a KindLoginSessionFailure event,
// carrying enough context for SessionFailureHandler to clean up the
// filter and stream it came from.
type SessionFailure struct {
	Stream     *stream.Stream
	Filter     *LoginFilter
	RemoteHost string
	Reason     string
}

// LoginSuccess is the payload of a KindUserLogin event.
type LoginSuccess struct {
	User   iface.User
	Stream *stream.Stream
}

// Config configures a LoginFilter.
type Config struct {
	RemoteHost  string
	MaxTries    int
	Timeout     time.Duration
	RateLimiter *LoginRateLimiter
	Scheduler   *scheduler.Scheduler
	Dispatcher  dispatch.Dispatcher
}

// LoginFilter intercepts all input and suppresses all output on a stream
// until authentication succeeds or its attempt budget is exhausted.
type LoginFilter struct {
	stream.BaseFilter

	remoteHost  string
	maxTries    int
	timeout     time.Duration
	rateLimiter *LoginRateLimiter
	scheduler   *scheduler.Scheduler
	dispatcher  dispatch.Dispatcher

	mu                 sync.Mutex
	state              loginState
	attempts           int
	username           string
	queuedWhileAuthing []*event.Event
	timeoutEvent       *event.Event
}

// New constructs a LoginFilter. It must be added to a Stream via
// AddFilters before it does anything: the banner, prompt, and timeout are
// all scheduled from Start.
func New(cfg Config) *LoginFilter {
	return &LoginFilter{
		BaseFilter:  stream.NewBaseFilter(SortKey),
		remoteHost:  cfg.RemoteHost,
		maxTries:    cfg.MaxTries,
		timeout:     cfg.Timeout,
		rateLimiter: cfg.RateLimiter,
		scheduler:   cfg.Scheduler,
		dispatcher:  cfg.Dispatcher,
	}
}

// Start emits the banner and username prompt and schedules the login
// timeout. This is deferred here rather than done on construction because
// only once the filter is attached does it have the Stream it needs to
// build the timeout event's payload.
func (f *LoginFilter) Start(s *stream.Stream) {
	f.mu.Lock()
	f.timeoutEvent = event.New(event.KindLoginSessionFailure, &SessionFailure{
		Stream: s, Filter: f, RemoteHost: f.remoteHost, Reason: "timeout",
	})
	f.mu.Unlock()
	if f.scheduler != nil && f.timeout > 0 {
		_ = f.scheduler.ScheduleAt(time.Now().Add(f.timeout), f.timeoutEvent)
	}
	f.QueueOutput(bannerEvent(), promptEvent(usernamePrompt))
	s.Notify(stream.DirectionOutput)
}

func (f *LoginFilter) HandleInput(s *stream.Stream, events []*event.Event) []*event.Event {
	if len(events) == 0 {
		return []*event.Event{}
	}
	// Several lines can arrive in one cycle; each one advances the state
	// machine in turn.
	if len(events) > 1 {
		out := []*event.Event{}
		for _, e := range events {
			out = append(out, f.HandleInput(s, []*event.Event{e})...)
		}
		return out
	}

	f.mu.Lock()
	state := f.state
	f.mu.Unlock()

	switch state {
	case stateDone:
		return events

	case stateAwaitingAuthResponse:
		f.mu.Lock()
		f.queuedWhileAuthing = append(f.queuedWhileAuthing, events...)
		f.mu.Unlock()
		return []*event.Event{}

	case stateAwaitingUsername:
		candidate := sanitizeLine(events[0])
		if !usernamePattern.MatchString(candidate) {
			f.QueueOutput(promptEvent(usernamePrompt))
			s.Notify(stream.DirectionOutput)
			return []*event.Event{}
		}
		f.mu.Lock()
		f.username = candidate
		f.state = stateAwaitingPassword
		f.mu.Unlock()
		f.QueueOutput(promptEvent(passwordPrompt))
		s.Notify(stream.DirectionOutput)
		return []*event.Event{}

	case stateAwaitingPassword:
		candidate := sanitizeLine(events[0])
		if !isPrintablePassword(candidate) {
			f.onFailure(s, iface.FailureInvalidCredentials)
			return []*event.Event{}
		}
		if _, ok := f.rateLimiter.Allow(f.remoteHost); !ok {
			f.onFailure(s, iface.FailureRateLimited)
			return []*event.Event{}
		}

		f.mu.Lock()
		f.state = stateAwaitingAuthResponse
		username := f.username
		f.mu.Unlock()

		req := iface.AuthenticationRequest{
			Username:   username,
			Password:   candidate,
			RemoteHost: f.remoteHost,
			Success:    func(u iface.User) { f.onSuccess(s, u) },
			Failure:    func(reason iface.FailureReason) { f.onFailure(s, reason) },
		}
		_ = f.dispatcher.Dispatch(context.Background(), event.New(event.KindAuthenticationRequest, req))
		return []*event.Event{}
	}
	return events
}

func (f *LoginFilter) HandleOutput(_ *stream.Stream, events []*event.Event) []*event.Event {
	f.mu.Lock()
	done := f.state == stateDone
	f.mu.Unlock()
	if done {
		return events
	}
	// Intercepts every event passing through at this point in the output
	// chain, replacing it with whatever this filter itself has queued.
	queued := f.QueuedOutput()
	if queued == nil {
		queued = []*event.Event{}
	}
	return queued
}

func (f *LoginFilter) onSuccess(s *stream.Stream, u iface.User) {
	if f.scheduler != nil {
		f.mu.Lock()
		te := f.timeoutEvent
		f.mu.Unlock()
		f.scheduler.Cancel(te)
	}

	s.Pause()
	f.mu.Lock()
	queued := f.queuedWhileAuthing
	f.queuedWhileAuthing = nil
	f.state = stateDone
	f.mu.Unlock()
	f.QueueInput(queued...)
	f.MarkFinished()
	consequences := s.RemoveFilters(f)
	s.PushInput(consequences...)
	s.Unpause()

	_ = f.dispatcher.Dispatch(context.Background(), event.New(event.KindUserLogin, &LoginSuccess{User: u, Stream: s}))
}

func (f *LoginFilter) onFailure(s *stream.Stream, _ iface.FailureReason) {
	f.mu.Lock()
	f.attempts++
	attempts := f.attempts
	f.mu.Unlock()

	if f.maxTries > 0 && attempts >= f.maxTries {
		_ = f.dispatcher.Dispatch(context.Background(), event.New(event.KindLoginSessionFailure, &SessionFailure{
			Stream: s, Filter: f, RemoteHost: f.remoteHost, Reason: "max_tries_exceeded",
		}))
		return
	}

	f.mu.Lock()
	f.state = stateAwaitingUsername
	f.username = ""
	f.mu.Unlock()
	f.QueueOutput(authFailureEvent(), promptEvent(usernamePrompt))
	s.Notify(stream.DirectionOutput)
}

func sanitizeLine(e *event.Event) string {
	raw, _ := e.Payload().(string)
	return strings.TrimRight(raw, "\r\n")
}
