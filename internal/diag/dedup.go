package diag

import "sync"

// DedupSink wraps another Sink and suppresses issues identical to one it
// already forwarded.
type DedupSink struct {
	mu   sync.Mutex
	next Sink
	seen map[Issue]struct{}
}

// NewDedupSink returns a Sink that filters out duplicates while forwarding
// unique issues to next.
func NewDedupSink(next Sink) *DedupSink {
	return &DedupSink{
		next: next,
		seen: make(map[Issue]struct{}),
	}
}

func (s *DedupSink) Emit(issue Issue) {
	if s == nil {
		return
	}
	s.mu.Lock()
	if _, ok := s.seen[issue]; ok {
		s.mu.Unlock()
		return
	}
	s.seen[issue] = struct{}{}
	s.mu.Unlock()
	if s.next != nil {
		s.next.Emit(issue)
	}
}
