package ast

// Visit is called for every node in pre-order. Returning false skips the
// node's children.
type Visit func(n *Node) bool

// Walk traverses the program body in pre-order.
func (p *Program) Walk(fn Visit) {
	for i := range p.Body {
		walkNode(&p.Body[i], fn)
	}
}

func walkNode(n *Node, fn Visit) {
	if !fn(n) {
		return
	}
	for i := range n.Children {
		walkNode(&n.Children[i], fn)
	}
}

// FindSym returns the first node (pre-order) whose Sym equals sym.
func (p *Program) FindSym(sym string) *Node {
	var found *Node
	p.Walk(func(n *Node) bool {
		if found != nil {
			return false
		}
		if n.Sym == sym {
			found = n
			return false
		}
		return true
	})
	return found
}

// Count returns the number of nodes in the program.
func (p *Program) Count() int {
	total := 0
	p.Walk(func(*Node) bool {
		total++
		return true
	})
	return total
}
