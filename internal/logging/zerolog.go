// Package logging implements iface.LogSink on top of rs/zerolog, adapting
// a narrow logging interface onto the library.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/mues-io/muesd/iface"
)

// ZerologSink adapts a zerolog.Logger to iface.LogSink. zerolog.Logger is
// already safe for concurrent use, satisfying LogSink's thread-safety
// requirement for free.
type ZerologSink struct {
	logger zerolog.Logger
}

// New builds a ZerologSink writing JSON lines to w.
func New(w io.Writer) *ZerologSink {
	if w == nil {
		w = os.Stderr
	}
	return &ZerologSink{logger: zerolog.New(w).With().Timestamp().Logger()}
}

// NewConsole builds a ZerologSink writing zerolog's human-readable console
// format to w, for interactive use (`start` picks it when log.format is
// "console").
func NewConsole(w io.Writer) *ZerologSink {
	if w == nil {
		w = os.Stderr
	}
	return &ZerologSink{logger: zerolog.New(zerolog.ConsoleWriter{Out: w}).With().Timestamp().Logger()}
}

// Log implements iface.LogSink.
func (s *ZerologSink) Log(severity iface.Severity, message string, fields ...iface.Field) {
	ev := s.logger.WithLevel(toZerologLevel(severity))
	for _, f := range fields {
		ev = ev.Interface(f.Key, f.Value)
	}
	ev.Msg(message)
}

func toZerologLevel(s iface.Severity) zerolog.Level {
	switch s {
	case iface.SeverityDebug:
		return zerolog.DebugLevel
	case iface.SeverityInfo, iface.SeverityNotice:
		return zerolog.InfoLevel
	case iface.SeverityWarn:
		return zerolog.WarnLevel
	case iface.SeverityError, iface.SeverityCrit, iface.SeverityFatal:
		// zerolog's FatalLevel carries a done-callback that calls os.Exit(1)
		// once Msg() runs, even when reached via WithLevel rather than
		// Logger.Fatal() directly. The core never exits the process itself
		// on a log call; only the CLI decides whether to exit, after
		// observing the severity through normal control flow.
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

var _ iface.LogSink = (*ZerologSink)(nil)
