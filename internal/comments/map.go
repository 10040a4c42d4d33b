package comments

import (
	"slices"
	"sync"

	"plugchain/internal/source"
)

// Map is a concurrent-safe multimap from position to comments.
type Map struct {
	mu    sync.RWMutex
	items map[source.BytePos][]Comment
}

// NewMap creates an empty Map.
func NewMap() *Map {
	return &Map{items: make(map[source.BytePos][]Comment)}
}

// Add appends comments at pos.
func (m *Map) Add(pos source.BytePos, cs ...Comment) {
	if len(cs) == 0 {
		return
	}
	m.mu.Lock()
	m.items[pos] = append(m.items[pos], cs...)
	m.mu.Unlock()
}

// Get returns a copy of the comments at pos.
func (m *Map) Get(pos source.BytePos) []Comment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.items[pos])
}

// Has reports whether any comment is stored at pos.
func (m *Map) Has(pos source.BytePos) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items[pos]) > 0
}

// Len returns the number of positions that carry comments.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// IsEmpty reports whether the map holds no entries. A nil Map is empty.
func (m *Map) IsEmpty() bool {
	return m.Len() == 0
}

// Range calls fn for every entry in ascending position order, stopping
// early when fn returns false. fn receives copies.
func (m *Map) Range(fn func(pos source.BytePos, cs []Comment) bool) {
	if m == nil {
		return
	}
	m.mu.RLock()
	keys := make([]source.BytePos, 0, len(m.items))
	for pos := range m.items {
		keys = append(keys, pos)
	}
	m.mu.RUnlock()
	slices.Sort(keys)

	for _, pos := range keys {
		if !fn(pos, m.Get(pos)) {
			return
		}
	}
}

// snapshot copies every entry while holding the read lock once.
func (m *Map) snapshot() map[source.BytePos][]Comment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[source.BytePos][]Comment, len(m.items))
	for pos, cs := range m.items {
		out[pos] = slices.Clone(cs)
	}
	return out
}

// Comments is the host's leading/trailing comment storage for one file.
type Comments struct {
	Leading  *Map
	Trailing *Map
}

// New creates an empty Comments pair.
func New() *Comments {
	return &Comments{Leading: NewMap(), Trailing: NewMap()}
}

func (c *Comments) AddLeading(pos source.BytePos, cs ...Comment) { c.Leading.Add(pos, cs...) }

func (c *Comments) AddTrailing(pos source.BytePos, cs ...Comment) { c.Trailing.Add(pos, cs...) }
