package engine

import (
	"context"

	"github.com/mues-io/muesd/event"
	"github.com/mues-io/muesd/iface"
	"github.com/mues-io/muesd/login"
	"github.com/mues-io/muesd/registry"
)

// authRequestHandler bridges an event.KindAuthenticationRequest dispatched
// by a LoginFilter to the Engine's configured iface.AuthProvider. Routing
// the call through a registered handler (rather than LoginFilter calling
// the provider directly) keeps LoginFilter ignorant of how credentials are
// actually checked, matching the narrow-interface boundary iface draws.
type authRequestHandler struct {
	provider iface.AuthProvider
	log      iface.LogSink
}

func (h authRequestHandler) Handle(e *event.Event) []*event.Event {
	req, ok := e.Payload().(iface.AuthenticationRequest)
	if !ok {
		return nil
	}
	if h.provider == nil {
		req.Failure(iface.FailureInvalidCredentials)
		return nil
	}
	h.provider.Authenticate(context.Background(), req)
	return nil
}

var _ registry.Handler = authRequestHandler{}

// userLoginHandler moves a stream into the Engine's session table once its
// LoginFilter has reported success.
type userLoginHandler struct {
	engine *Engine
}

func (h userLoginHandler) Handle(e *event.Event) []*event.Event {
	ls, ok := e.Payload().(*login.LoginSuccess)
	if !ok || ls == nil {
		return nil
	}
	h.engine.mu.Lock()
	h.engine.sessions[ls.User.ID] = ls.Stream
	h.engine.mu.Unlock()
	return nil
}

var _ registry.Handler = userLoginHandler{}
