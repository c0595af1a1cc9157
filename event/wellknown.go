package event

// Well-known kinds used by the dispatch kernel, the IO pipeline, and the
// login state machine. Application kinds are declared the same way, via
// NewKind / NewChildKind, and are free to attach their own hierarchy.
var (
	// KindThreadShutdown is an internal signal telling a queue worker to
	// exit. It is never routed through the HandlerRegistry.
	KindThreadShutdown = NewKind("system.thread_shutdown")

	// KindUntrappedException wraps a handler panic.
	KindUntrappedException = NewKind("system.untrapped_exception")

	// KindRecursionError replaces a handler consequence that was identical
	// to the event that produced it.
	KindRecursionError = NewKind("system.recursion_error")

	// KindNoHandler is synthesized when an event's whole kind path has no
	// registered handler.
	KindNoHandler = NewKind("system.no_handler")

	// KindUnhandledInput is raised when an event reaches the default input
	// sentinel filter.
	KindUnhandledInput = NewKind("system.unhandled_input")

	// KindUnhandledOutput is raised when an event reaches the default
	// output sentinel filter.
	KindUnhandledOutput = NewKind("system.unhandled_output")

	// KindTick is emitted by the Engine's main loop once per tick.
	KindTick = NewKind("engine.tick")

	// KindConnectionOpened is dispatched by the Engine when it accepts a
	// new client connection from a Listener.
	KindConnectionOpened = NewKind("io.connection_opened")

	// KindAuthenticationRequest is synthesized by LoginFilter once a
	// candidate username and password have been collected.
	KindAuthenticationRequest = NewKind("auth.authentication_request")

	// KindUserLogin is dispatched once a LoginFilter's AuthProvider
	// succeeds.
	KindUserLogin = NewKind("auth.user_login")

	// KindLoginSessionFailure is dispatched when a login session is
	// abandoned: attempts exhausted, or the login timeout elapsed.
	KindLoginSessionFailure = NewKind("auth.login_session_failure")

	// KindOutputText carries a rendered line of text traveling through a
	// stream's output pipeline toward an OutputSink.
	KindOutputText = NewKind("io.output_text")

	// KindInputLine carries one line of raw text read from a connection,
	// before any filter has interpreted it.
	KindInputLine = NewKind("io.input_line")
)
