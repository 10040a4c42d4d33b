package comments

import (
	"slices"

	"plugchain/internal/source"
)

// SingleThreaded is an unsynchronized comment store owned by one transform
// call. The zero value is not usable; use NewSingleThreaded or MaybeBridge.
type SingleThreaded struct {
	leading  map[source.BytePos][]Comment
	trailing map[source.BytePos][]Comment
}

// NewSingleThreaded wraps the given maps without copying them.
func NewSingleThreaded(leading, trailing map[source.BytePos][]Comment) *SingleThreaded {
	if leading == nil {
		leading = make(map[source.BytePos][]Comment)
	}
	if trailing == nil {
		trailing = make(map[source.BytePos][]Comment)
	}
	return &SingleThreaded{leading: leading, trailing: trailing}
}

func (s *SingleThreaded) Leading(pos source.BytePos) []Comment  { return s.leading[pos] }
func (s *SingleThreaded) Trailing(pos source.BytePos) []Comment { return s.trailing[pos] }

func (s *SingleThreaded) HasLeading(pos source.BytePos) bool  { return len(s.leading[pos]) > 0 }
func (s *SingleThreaded) HasTrailing(pos source.BytePos) bool { return len(s.trailing[pos]) > 0 }

func (s *SingleThreaded) AddLeading(pos source.BytePos, c Comment) {
	s.leading[pos] = append(s.leading[pos], c)
}

func (s *SingleThreaded) AddTrailing(pos source.BytePos, c Comment) {
	s.trailing[pos] = append(s.trailing[pos], c)
}

// TakeLeading removes and returns the leading comments at pos.
func (s *SingleThreaded) TakeLeading(pos source.BytePos) []Comment {
	cs := s.leading[pos]
	delete(s.leading, pos)
	return cs
}

// TakeTrailing removes and returns the trailing comments at pos.
func (s *SingleThreaded) TakeTrailing(pos source.BytePos) []Comment {
	cs := s.trailing[pos]
	delete(s.trailing, pos)
	return cs
}

// LeadingPositions returns the positions with leading comments, sorted.
func (s *SingleThreaded) LeadingPositions() []source.BytePos {
	return sortedKeys(s.leading)
}

// TrailingPositions returns the positions with trailing comments, sorted.
func (s *SingleThreaded) TrailingPositions() []source.BytePos {
	return sortedKeys(s.trailing)
}

func sortedKeys(m map[source.BytePos][]Comment) []source.BytePos {
	keys := make([]source.BytePos, 0, len(m))
	for pos := range m {
		keys = append(keys, pos)
	}
	slices.Sort(keys)
	return keys
}
