package trace

import (
	"context"
	"sync/atomic"
	"time"
)

var (
	seqCounter  atomic.Uint64
	spanCounter atomic.Uint64
)

func newEvent(kind Kind, scope Scope, name string) *Event {
	return &Event{
		Time:  time.Now(),
		Seq:   seqCounter.Add(1),
		Kind:  kind,
		Scope: scope,
		Name:  name,
	}
}

// Span is an open begin/end pair. A disabled span has ID 0 and every method
// is a no-op on it.
type Span struct {
	tracer  Tracer
	id      uint64
	parent  uint64
	scope   Scope
	name    string
	started time.Time
	extra   map[string]string
}

func (s *Span) live() bool {
	return s != nil && s.id != 0 && s.tracer.Enabled()
}

// Begin opens a span under parent (0 for a root) if t records scope.
func Begin(t Tracer, scope Scope, name string, parent uint64) *Span {
	if t == nil || !t.Enabled() || !t.Level().ShouldEmit(scope) {
		return &Span{tracer: Nop}
	}
	ev := newEvent(KindSpanBegin, scope, name)
	ev.SpanID = spanCounter.Add(1)
	ev.ParentID = parent
	t.Emit(ev)
	return &Span{
		tracer:  t,
		id:      ev.SpanID,
		parent:  parent,
		scope:   scope,
		name:    name,
		started: ev.Time,
	}
}

// End emits the end event carrying detail and the accumulated extras, and
// returns how long the span was open.
func (s *Span) End(detail string) time.Duration {
	if !s.live() {
		return 0
	}
	ev := newEvent(KindSpanEnd, s.scope, s.name)
	ev.SpanID = s.id
	ev.ParentID = s.parent
	ev.Detail = detail
	ev.Extra = s.extra
	s.tracer.Emit(ev)
	return ev.Time.Sub(s.started)
}

// WithExtra records a key-value pair for the end event.
func (s *Span) WithExtra(key, value string) *Span {
	if !s.live() {
		return s
	}
	if s.extra == nil {
		s.extra = make(map[string]string, 2)
	}
	s.extra[key] = value
	return s
}

func (s *Span) ID() uint64 {
	if s == nil {
		return 0
	}
	return s.id
}

// Point emits an instant event under the active span of ctx.
func Point(ctx context.Context, scope Scope, name, detail string) {
	t := FromContext(ctx)
	if !t.Enabled() || !t.Level().ShouldEmit(scope) {
		return
	}
	ev := newEvent(KindPoint, scope, name)
	ev.ParentID = CurrentSpan(ctx).SpanID
	ev.Detail = detail
	t.Emit(ev)
}
