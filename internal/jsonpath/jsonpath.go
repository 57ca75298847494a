package jsonpath

import (
	"jsonkv/internal/jsonvalue"
	"jsonkv/internal/stack"
)

// Path is a compiled path expression. It is immutable once compiled
// and may be evaluated repeatedly against different trees.
type Path struct {
	expr string
	segs []segment
}

// Compile parses a path expression. It fails with ErrSyntax or
// ErrNotSupported; evaluation of a compiled Path never fails.
func Compile(expr string) (*Path, error) {
	segs, err := compile(expr)
	if err != nil {
		return nil, err
	}
	return &Path{expr: expr, segs: segs}, nil
}

// MustCompile is Compile for expressions known to be valid, such as
// literals in tests.
func MustCompile(expr string) *Path {
	p, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the source expression.
func (p *Path) String() string { return p.expr }

// IsRoot reports whether the expression addresses only the document
// root ("$").
func (p *Path) IsRoot() bool { return len(p.segs) == 0 }

// SplitLast splits a path whose final step is a single plain member
// access into its prefix and that member name. Mutating operations
// use it to create a missing object member.
func (p *Path) SplitLast() (*Path, string, bool) {
	if len(p.segs) == 0 {
		return nil, "", false
	}
	last := p.segs[len(p.segs)-1]
	if last.deep || len(last.sels) != 1 {
		return nil, "", false
	}
	name, ok := last.sels[0].(nameSel)
	if !ok {
		return nil, "", false
	}
	prefix := &Path{expr: p.expr, segs: p.segs[:len(p.segs)-1]}
	return prefix, string(name), true
}

// Evaluate resolves the path against root, returning matched nodes in
// deterministic pre-order. A miss at any step yields no matches, not
// an error; "$" yields the root itself.
func (p *Path) Evaluate(root *jsonvalue.Value) []*jsonvalue.Value {
	current := []*jsonvalue.Value{root}

	for _, seg := range p.segs {
		var next []*jsonvalue.Value
		for _, node := range current {
			if seg.deep {
				for _, d := range preorder(node) {
					next = applySelectors(seg.sels, d, next)
				}
			} else {
				next = applySelectors(seg.sels, node, next)
			}
		}
		if len(next) == 0 {
			return nil
		}
		current = next
	}

	return current
}

// First returns the first match, or nil when the path misses.
func (p *Path) First(root *jsonvalue.Value) *jsonvalue.Value {
	matches := p.Evaluate(root)
	if len(matches) == 0 {
		return nil
	}
	return matches[0]
}

func applySelectors(sels []selector, node *jsonvalue.Value, out []*jsonvalue.Value) []*jsonvalue.Value {
	for _, sel := range sels {
		out = sel.selectChildren(node, out)
	}
	return out
}

// preorder lists node and all of its descendants, shallowest first.
func preorder(node *jsonvalue.Value) []*jsonvalue.Value {
	out := make([]*jsonvalue.Value, 0, 8)
	pending := stack.NewWithCapacity[*jsonvalue.Value](8)
	pending.Push(node)

	for !pending.IsEmpty() {
		current, _ := pending.Pop()
		out = append(out, current)

		// Children are pushed in reverse so they pop in document order.
		switch current.Type() {
		case jsonvalue.TypeObject:
			keys := current.Keys()
			for i := len(keys) - 1; i >= 0; i-- {
				child, _ := current.Field(keys[i])
				pending.Push(child)
			}
		case jsonvalue.TypeArray:
			elems := current.Elems()
			for i := len(elems) - 1; i >= 0; i-- {
				pending.Push(elems[i])
			}
		}
	}

	return out
}
