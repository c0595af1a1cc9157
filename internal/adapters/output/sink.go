// Package output adapts a stream's output pipeline onto a concrete
// destination: a WriterSink renders text to an io.Writer, and Filter is the
// stream.Filter that drains KindOutputText events into one.
package output

import "io"

// WriterSink is the reference iface.OutputSink: it writes rendered text
// straight to an io.Writer, a thin adapter over whatever io.Writer the
// caller supplies (a net.Conn, a websocket.Conn wrapper, a buffer in
// tests).
type WriterSink struct {
	w io.Writer
}

// NewWriterSink wraps w as an iface.OutputSink.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Write implements iface.OutputSink.
func (s *WriterSink) Write(rendered string) error {
	_, err := io.WriteString(s.w, rendered)
	return err
}
