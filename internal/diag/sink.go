package diag

// Sink receives issues from producers.
type Sink interface {
	Emit(issue Issue)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Issue)

func (f SinkFunc) Emit(issue Issue) { f(issue) }

// NopSink discards every issue.
type NopSink struct{}

func (NopSink) Emit(Issue) {}

// MultiSink forwards each issue to every non-nil sink in order.
type MultiSink []Sink

func (m MultiSink) Emit(issue Issue) {
	for _, s := range m {
		if s != nil {
			s.Emit(issue)
		}
	}
}
