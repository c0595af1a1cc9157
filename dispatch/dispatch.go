// Package dispatch defines the narrow interface queue workers, the
// scheduler, and the login filter use to hand events back to the Engine,
// without importing the engine package itself (which would be a cycle:
// Engine owns a queue and a scheduler).
package dispatch

import (
	"context"

	"github.com/mues-io/muesd/event"
)

// Dispatcher accepts events for (re-)enqueueing. The Engine is the only
// production implementation; consequence events always flow back through
// it rather than being pushed directly onto a queue, so the Engine is the
// single point that can refuse events once it has left the Running state.
type Dispatcher interface {
	Dispatch(ctx context.Context, events ...*event.Event) error
}
