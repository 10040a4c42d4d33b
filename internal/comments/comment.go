package comments

import "plugchain/internal/source"

// Kind distinguishes line comments from block comments.
type Kind uint8

const (
	Line Kind = iota
	Block
)

func (k Kind) String() string {
	switch k {
	case Line:
		return "line"
	case Block:
		return "block"
	}
	return "unknown"
}

// Comment is one comment as written in the source, without delimiters.
type Comment struct {
	Kind Kind        `msgpack:"kind" json:"kind"`
	Span source.Span `msgpack:"span" json:"span"`
	Text string      `msgpack:"text" json:"text"`
}
