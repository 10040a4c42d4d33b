package trace

import "time"

// Kind represents the type of trace event.
type Kind uint8

const (
	KindSpanBegin Kind = iota + 1 // span start
	KindSpanEnd                   // span end
	KindPoint                     // instant event
	KindHeartbeat                 // periodic liveness signal
)

func (k Kind) String() string {
	switch k {
	case KindSpanBegin:
		return "begin"
	case KindSpanEnd:
		return "end"
	case KindPoint:
		return "point"
	case KindHeartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

// Scope is the granularity of an event. Lower values are coarser.
type Scope uint8

const (
	ScopeSession Scope = iota + 1 // one CLI invocation
	ScopeChain                    // one chain run over one file
	ScopePlugin                   // one plugin invocation
	ScopeHost                     // serialization and host-side steps
)

func (s Scope) String() string {
	switch s {
	case ScopeSession:
		return "session"
	case ScopeChain:
		return "chain"
	case ScopePlugin:
		return "plugin"
	case ScopeHost:
		return "host"
	default:
		return "unknown"
	}
}

// Event is a single trace record.
type Event struct {
	Time     time.Time
	Seq      uint64 // global, monotonic
	Kind     Kind
	Scope    Scope
	SpanID   uint64
	ParentID uint64 // 0 for roots
	Name     string // e.g. "chain", "plugin:strip-console"
	Detail   string
	Extra    map[string]string
}
