package engine

import (
	"time"

	"github.com/mues-io/muesd/event"
	"github.com/mues-io/muesd/iface"
)

// tickLoop is the Engine's single main-loop thread: it ticks at
// cfg.TickInterval, draining the scheduler synchronously each tick and
// enqueuing whatever falls due. The scheduler itself never blocks or runs
// its own goroutine; DrainDue is only ever called from here.
func (e *Engine) tickLoop() {
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.advanceTick()
		case <-e.stopTick:
			close(e.tickDone)
			return
		}
	}
}

func (e *Engine) advanceTick() {
	e.mu.Lock()
	e.tick++
	tick := e.tick
	e.mu.Unlock()

	due := e.scheduler.DrainDue(tick, time.Now())
	due = append(due, event.New(event.KindTick, tick))

	if err := e.queue.Enqueue(due...); err != nil {
		e.log.Log(iface.SeverityWarn, "tick enqueue refused", iface.F("tick", tick), iface.F("error", err.Error()))
	}
}
