package diag

import (
	"slices"
	"sort"
	"sync"
)

// Bag collects issues up to a fixed capacity.
type Bag struct {
	mu    sync.Mutex
	items []Issue
	max   int
}

func NewBag(max int) *Bag {
	return &Bag{
		items: make([]Issue, 0, min(max, 64)),
		max:   max,
	}
}

// Add stores an issue unless the bag is full. It reports whether the issue
// was stored.
func (b *Bag) Add(issue Issue) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.items) >= b.max {
		return false
	}
	b.items = append(b.items, issue)
	return true
}

// Emit implements Sink.
func (b *Bag) Emit(issue Issue) { b.Add(issue) }

func (b *Bag) Cap() int {
	return b.max
}

// HasErrors reports whether any issue has Severity >= SevError.
func (b *Bag) HasErrors() bool {
	return b.any(SevError)
}

// HasWarnings reports whether any issue has Severity >= SevWarning.
func (b *Bag) HasWarnings() bool {
	return b.any(SevWarning)
}

func (b *Bag) any(sev Severity) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.items {
		if b.items[i].Severity >= sev {
			return true
		}
	}
	return false
}

func (b *Bag) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Items returns a copy of the collected issues.
func (b *Bag) Items() []Issue {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.items)
}

// Merge appends the issues of other, growing the capacity if needed.
func (b *Bag) Merge(other *Bag) {
	items := other.Items()
	b.mu.Lock()
	defer b.mu.Unlock()
	if total := len(b.items) + len(items); total > b.max {
		b.max = total
	}
	b.items = append(b.items, items...)
}

// Sort orders issues by context, severity (desc), category and title.
func (b *Bag) Sort() {
	b.mu.Lock()
	defer b.mu.Unlock()
	sort.SliceStable(b.items, func(i, j int) bool {
		di, dj := b.items[i], b.items[j]
		if di.Context != dj.Context {
			return di.Context < dj.Context
		}
		if di.Severity != dj.Severity {
			return di.Severity > dj.Severity
		}
		if di.Category != dj.Category {
			return di.Category < dj.Category
		}
		return di.Title < dj.Title
	})
}

// Dedup drops issues identical to an earlier one.
func (b *Bag) Dedup() {
	b.mu.Lock()
	defer b.mu.Unlock()
	seen := make(map[Issue]struct{}, len(b.items))
	out := make([]Issue, 0, len(b.items))
	for _, it := range b.items {
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	b.items = out
}
