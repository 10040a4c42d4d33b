package source

import (
	"fmt"
)

// Span is a half-open byte range [Start, End) inside one file.
type Span struct {
	File  FileID  `msgpack:"file" json:"file"`
	Start BytePos `msgpack:"start" json:"start"`
	End   BytePos `msgpack:"end" json:"end"`
}

// DummySpan is the span carried by synthesized nodes.
var DummySpan = Span{}

func (s Span) Empty() bool {
	return s.Start == s.End
}

func (s Span) Len() uint32 {
	return uint32(s.End - s.Start)
}

func (s Span) String() string {
	return fmt.Sprintf("%d:%d-%d", s.File, s.Start, s.End)
}

// Contains reports whether pos lies inside the span.
func (s Span) Contains(pos BytePos) bool {
	return pos >= s.Start && pos < s.End
}

func (s Span) Cover(other Span) Span {
	if s.File != other.File {
		return s
	}
	if other.Start < s.Start {
		s.Start = other.Start
	}
	if other.End > s.End {
		s.End = other.End
	}
	return s
}
