package ast

type (
	// Mark identifies a hygiene mark created by the resolver.
	Mark uint32
	// SyntaxContext is the hygiene context attached to identifiers.
	SyntaxContext uint32
)

const (
	NoMark        Mark          = 0
	EmptyCtxt     SyntaxContext = 0
	unresolvedBit SyntaxContext = 1 << 31
)

func (m Mark) IsValid() bool { return m != NoMark }

// Unresolved returns the context identifiers receive when they resolve to
// no binding under mark.
func (m Mark) Unresolved() SyntaxContext {
	return SyntaxContext(m) | unresolvedBit
}

// IsUnresolved reports whether ctxt was produced by Mark.Unresolved.
func (c SyntaxContext) IsUnresolved() bool {
	return c&unresolvedBit != 0
}
