package stream

import "github.com/mues-io/muesd/iface"

// runInputCycle drains input_buffer and walks it through every filter in
// ascending SortKey order. A filter that returns nil, or whose Finished()
// is now true, is removed: its QueuedInput() events replace the running
// event list for the next filter, and its QueuedOutput() events are
// redirected into output_buffer for the next output cycle. Otherwise the
// filter's return value becomes the next filter's input.
func (s *Stream) runInputCycle() {
	s.bufMu.Lock()
	events := s.inputBuffer
	s.inputBuffer = nil
	s.bufMu.Unlock()

	for _, f := range s.ascending() {
		result := f.HandleInput(s, events)
		if result == nil || f.Finished() {
			queuedIn := f.QueuedInput()
			queuedOut := f.QueuedOutput()
			s.removeFilter(f)
			if len(queuedOut) > 0 {
				s.bufMu.Lock()
				s.outputBuffer = append(s.outputBuffer, queuedOut...)
				s.bufMu.Unlock()
				s.markPendingOutput()
			}
			events = queuedIn
			continue
		}
		events = result
	}

	if len(events) > 0 {
		for _, e := range events {
			s.log.Log(iface.SeverityWarn, "unhandled input survived the full pipeline", iface.F("kind", e.Kind().Tag()))
		}
	}
}

// runOutputCycle drains output_buffer and walks it through every filter in
// descending SortKey order, mirroring runInputCycle.
func (s *Stream) runOutputCycle() {
	s.bufMu.Lock()
	events := s.outputBuffer
	s.outputBuffer = nil
	s.bufMu.Unlock()

	for _, f := range s.descending() {
		result := f.HandleOutput(s, events)
		if result == nil || f.Finished() {
			queuedIn := f.QueuedInput()
			queuedOut := f.QueuedOutput()
			s.removeFilter(f)
			if len(queuedIn) > 0 {
				s.bufMu.Lock()
				s.inputBuffer = append(s.inputBuffer, queuedIn...)
				s.bufMu.Unlock()
				s.notifyMu.Lock()
				s.pendingIn = true
				paused := s.paused
				s.notifyMu.Unlock()
				if !paused {
					s.notifyCond.Signal()
				}
			}
			events = queuedOut
			continue
		}
		events = result
	}
}
