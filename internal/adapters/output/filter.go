package output

import (
	"github.com/mues-io/muesd/event"
	"github.com/mues-io/muesd/iface"
	"github.com/mues-io/muesd/stream"
)

// SortKey places Filter just ahead of the stream's DefaultOutputFilter:
// every other filter has had a chance to produce or suppress output by the
// time an event reaches here, so anything still alive is meant for the
// wire.
const SortKey = -1000

// Filter drains KindOutputText events to an iface.OutputSink. It is the
// last thing in the output pipeline that does anything with an event
// before the default sentinel would otherwise just log it as unhandled.
type Filter struct {
	stream.BaseFilter
	sink iface.OutputSink
	log  iface.LogSink
}

// NewFilter constructs an output Filter writing to sink.
func NewFilter(sink iface.OutputSink, log iface.LogSink) *Filter {
	if log == nil {
		log = iface.NopLogSink{}
	}
	return &Filter{
		BaseFilter: stream.NewBaseFilter(SortKey),
		sink:       sink,
		log:        log,
	}
}

// HandleInput passes input through untouched; this filter only acts on the
// output direction.
func (f *Filter) HandleInput(_ *stream.Stream, events []*event.Event) []*event.Event {
	return events
}

// HandleOutput writes every KindOutputText event's payload to the sink and
// consumes it. Events of any other kind pass through, in case a future
// filter wants to render something other than plain text before the
// sentinel sees it.
func (f *Filter) HandleOutput(_ *stream.Stream, events []*event.Event) []*event.Event {
	var passthrough []*event.Event
	for _, e := range events {
		text, ok := e.Payload().(string)
		if !ok || e.Kind().Tag() != event.KindOutputText.Tag() {
			passthrough = append(passthrough, e)
			continue
		}
		if err := f.sink.Write(text); err != nil {
			f.log.Log(iface.SeverityWarn, "output sink write failed", iface.F("error", err.Error()))
		}
	}
	if passthrough == nil {
		passthrough = []*event.Event{}
	}
	return passthrough
}

var _ stream.Filter = (*Filter)(nil)
