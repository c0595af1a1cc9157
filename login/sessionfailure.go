package login

import (
	"github.com/mues-io/muesd/event"
	"github.com/mues-io/muesd/iface"
	"github.com/mues-io/muesd/registry"
)

// SessionFailureHandler is the single handler, registered once on the
// shared HandlerRegistry, that tears down a LoginFilter when its session
// ends in failure — whether by exhausted attempts (dispatched inline from
// LoginFilter.onFailure) or by the scheduled timeout (dispatched by the
// Scheduler once the deadline passes). Centralizing this here means the
// two failure paths can't drift apart.
type SessionFailureHandler struct {
	Log iface.LogSink
}

func (h SessionFailureHandler) Handle(e *event.Event) []*event.Event {
	sf, ok := e.Payload().(*SessionFailure)
	if !ok || sf == nil || sf.Filter == nil || sf.Stream == nil {
		return nil
	}

	log := h.Log
	if log == nil {
		log = iface.NopLogSink{}
	}
	log.Log(iface.SeverityInfo, "login session failed", iface.F("remote_host", sf.RemoteHost), iface.F("reason", sf.Reason))

	sf.Filter.mu.Lock()
	sf.Filter.state = stateDone
	sf.Filter.mu.Unlock()
	sf.Filter.MarkFinished()

	sf.Stream.RemoveFilters(sf.Filter)
	sf.Stream.PushOutput(terseTerminationEvent())
	return nil
}

var _ registry.Handler = SessionFailureHandler{}
