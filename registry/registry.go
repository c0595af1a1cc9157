// Package registry implements the per-kind handler registry: a map from
// signal to listener slice, with dynamic subscription via a closable
// handle, generalized from a flat signal space to a kind-path hierarchy.
package registry

import (
	"reflect"
	"sync"

	"github.com/mues-io/muesd/event"
)

// Handler is invoked once per matching event; it returns zero or more
// consequence events.
type Handler interface {
	Handle(e *event.Event) []*event.Event
}

// HandlerFunc adapts a plain function to the Handler interface, mirroring
// http.HandlerFunc.
type HandlerFunc func(e *event.Event) []*event.Event

func (f HandlerFunc) Handle(e *event.Event) []*event.Event { return f(e) }

type entry struct {
	id      uint64
	handler Handler
}

// Registry is the per-kind handler registry. Subscription changes take the
// write lock; lookups (far more frequent) take the read lock.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string][]*entry
	nextID   uint64
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{handlers: make(map[string][]*entry)}
}

// Subscription represents an active handler subscription. Close removes it.
type Subscription struct {
	registry *Registry
	tag      string
	id       uint64
}

// Close unregisters the handler, preventing future invocations.
func (s *Subscription) Close() {
	s.registry.unsubscribe(s.tag, s.id)
}

// Subscribe registers h for events of kind (and, via HandlersFor, any of
// kind's descendants). Returns a Subscription that can be closed to
// unregister.
func (r *Registry) Subscribe(kind event.Kind, h Handler) *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	tag := kind.Tag()

	// Ensure an empty set exists for a brand new kind.
	if _, ok := r.handlers[tag]; !ok {
		r.handlers[tag] = nil
	}
	r.handlers[tag] = append(r.handlers[tag], &entry{id: id, handler: h})

	return &Subscription{registry: r, tag: tag, id: id}
}

func (r *Registry) unsubscribe(tag string, id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.handlers[tag]
	for i, e := range list {
		if e.id == id {
			r.handlers[tag] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// identity returns a comparable key for a Handler, so func-backed handlers
// (not comparable via ==) can still be deduplicated by identity.
func identity(h Handler) any {
	rv := reflect.ValueOf(h)
	if rv.Kind() == reflect.Func {
		return rv.Pointer()
	}
	return h
}

// HandlersFor returns the handlers matching kind's full ancestry, walked
// most-specific to least-specific, de-duplicated by identity while
// preserving first occurrence.
func (r *Registry) HandlersFor(kind event.Kind) []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	path := kind.Path()
	seen := make(map[any]struct{})
	var out []Handler
	for _, k := range path {
		for _, e := range r.handlers[k.Tag()] {
			id := identity(e.handler)
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, e.handler)
		}
	}
	return out
}

// HasAny reports whether kind's ancestry has at least one registered
// handler, without allocating the concatenated slice HandlersFor builds.
func (r *Registry) HasAny(kind event.Kind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, k := range kind.Path() {
		if len(r.handlers[k.Tag()]) > 0 {
			return true
		}
	}
	return false
}
