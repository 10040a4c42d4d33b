package trace

import (
	"strconv"
	"sync"
	"time"
)

// Heartbeat emits a session-scoped event every interval. Heartbeats that
// keep arriving after a plugin span begins, with no matching end, point at
// a plugin that does not return.
type Heartbeat struct {
	tracer Tracer
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

// StartHeartbeat returns nil when tracing is disabled or interval is not
// positive. Stop is nil-safe.
func StartHeartbeat(tracer Tracer, interval time.Duration) *Heartbeat {
	if tracer == nil || !tracer.Enabled() || interval <= 0 {
		return nil
	}
	h := &Heartbeat{
		tracer: tracer,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go h.loop(time.NewTicker(interval))
	return h
}

func (h *Heartbeat) loop(ticker *time.Ticker) {
	defer close(h.done)
	defer ticker.Stop()

	for beat := 1; ; beat++ {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			ev := newEvent(KindHeartbeat, ScopeSession, "heartbeat")
			ev.Detail = "#" + strconv.Itoa(beat)
			h.tracer.Emit(ev)
		}
	}
}

// Stop ends the heartbeat and waits for its goroutine to exit.
func (h *Heartbeat) Stop() {
	if h == nil {
		return
	}
	h.once.Do(func() { close(h.stop) })
	<-h.done
}
