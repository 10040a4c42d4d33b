package ast

import "plugchain/internal/source"

// NodeKind names the syntactic category of a Node.
type NodeKind string

const (
	KindExprStmt   NodeKind = "ExprStmt"
	KindVarDecl    NodeKind = "VarDecl"
	KindFnDecl     NodeKind = "FnDecl"
	KindImportDecl NodeKind = "ImportDecl"
	KindExportDecl NodeKind = "ExportDecl"
	KindBlock      NodeKind = "Block"
	KindCall       NodeKind = "Call"
	KindMember     NodeKind = "Member"
	KindIdent      NodeKind = "Ident"
	KindStr        NodeKind = "Str"
	KindNum        NodeKind = "Num"
	KindBool       NodeKind = "Bool"
	KindNull       NodeKind = "Null"
	KindInvalid    NodeKind = "Invalid"
)

// Node is a generic syntax tree node. Sym holds identifier names, Value the
// raw text of literals.
type Node struct {
	Kind     NodeKind      `msgpack:"k" json:"kind"`
	Span     source.Span   `msgpack:"s" json:"span"`
	Ctxt     SyntaxContext `msgpack:"c,omitempty" json:"ctxt,omitempty"`
	Sym      string        `msgpack:"y,omitempty" json:"sym,omitempty"`
	Value    string        `msgpack:"v,omitempty" json:"value,omitempty"`
	Children []Node        `msgpack:"n,omitempty" json:"children,omitempty"`
}

// Ident builds an identifier node.
func Ident(sym string, sp source.Span) Node {
	return Node{Kind: KindIdent, Span: sp, Sym: sym}
}

// Str builds a string literal node.
func Str(value string, sp source.Span) Node {
	return Node{Kind: KindStr, Span: sp, Value: value}
}
