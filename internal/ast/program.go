package ast

import "plugchain/internal/source"

// ProgramKind distinguishes ES modules from classic scripts.
type ProgramKind uint8

const (
	ProgramModule ProgramKind = iota
	ProgramScript
)

func (k ProgramKind) String() string {
	switch k {
	case ProgramModule:
		return "module"
	case ProgramScript:
		return "script"
	}
	return "unknown"
}

// Program is the parsed representation of one source file.
type Program struct {
	Kind    ProgramKind `msgpack:"kind" json:"kind"`
	Span    source.Span `msgpack:"span" json:"span"`
	Shebang string      `msgpack:"shebang,omitempty" json:"shebang,omitempty"`
	Body    []Node      `msgpack:"body" json:"body"`
}

// Dummy returns the empty module left behind by Take.
func Dummy() Program {
	return Program{Kind: ProgramModule, Span: source.DummySpan}
}

// IsDummy reports whether p is indistinguishable from Dummy().
func (p *Program) IsDummy() bool {
	return p.Kind == ProgramModule && p.Span == source.DummySpan && p.Shebang == "" && len(p.Body) == 0
}

// Take moves the program out of p and leaves a dummy module in its place,
// so the program can be consumed exactly once.
func Take(p *Program) Program {
	out := *p
	*p = Dummy()
	return out
}
