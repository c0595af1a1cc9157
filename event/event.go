// Package event defines the immutable unit of work that flows through the
// dispatch kernel, the IO pipeline, and the scheduler.
package event

import (
	"sync/atomic"
	"time"
)

// Priority bounds: lower value dispatches first.
const (
	PriMin          = 1
	PriMax          = 64
	DefaultPriority = 32
)

var seq uint64

// Event is immutable after construction. Priority is clamped to
// [PriMin, PriMax] at construction; creation time is set at construction.
type Event struct {
	kind      Kind
	createdAt time.Time
	seq       uint64
	priority  int
	payload   any
}

// Option configures an Event at construction time.
type Option func(*options)

type options struct {
	priority int
}

// WithPriority overrides the default priority (32). Values outside
// [PriMin, PriMax] are clamped.
func WithPriority(p int) Option {
	return func(o *options) { o.priority = p }
}

// New constructs an Event of the given kind carrying payload.
func New(kind Kind, payload any, opts ...Option) *Event {
	o := options{priority: DefaultPriority}
	for _, opt := range opts {
		opt(&o)
	}
	p := o.priority
	if p < PriMin {
		p = PriMin
	}
	if p > PriMax {
		p = PriMax
	}
	return &Event{
		kind:      kind,
		createdAt: time.Now(),
		seq:       atomic.AddUint64(&seq, 1),
		priority:  p,
		payload:   payload,
	}
}

func (e *Event) Kind() Kind          { return e.kind }
func (e *Event) KindPath() []Kind    { return e.kind.Path() }
func (e *Event) CreatedAt() time.Time { return e.createdAt }
func (e *Event) Priority() int       { return e.priority }
func (e *Event) Payload() any        { return e.payload }

// Seq is the monotonic construction-order tiebreaker used when priority and
// creation time are equal (their resolution is coarser than Go can emit
// events at). It is assigned by New, not when the event is enqueued.
func (e *Event) Seq() uint64 { return e.seq }

// Less reports whether a sorts before b under the ordering from spec §3:
// lower priority value first, then earlier creation time, then construction
// order (Seq).
func Less(a, b *Event) bool {
	if a.priority != b.priority {
		return a.priority < b.priority
	}
	if !a.createdAt.Equal(b.createdAt) {
		return a.createdAt.Before(b.createdAt)
	}
	return a.seq < b.seq
}
