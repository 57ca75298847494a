// Package document binds a jsonvalue tree to a keyspace entry and
// provides path-addressed reads and updates over it. Reads produce
// MatchSets of weak references that are invalidated, via a generation
// counter, by any structural mutation of the document.
package document

import (
	"jsonkv/internal/jsonpath"
	"jsonkv/internal/jsonvalue"
)

// Document is one keyspace entry's JSON value tree plus its binding
// metadata. A document exclusively owns its tree; the only sanctioned
// way to change the tree is through the mutation methods, each of
// which advances the generation counter.
type Document struct {
	key  string
	root *jsonvalue.Value
	gen  uint64
}

// New binds a parsed tree to a key name.
func New(key string, root *jsonvalue.Value) *Document {
	return &Document{key: key, root: root}
}

// FromJSON parses text and binds the resulting tree to a key name.
func FromJSON(key string, data []byte) (*Document, error) {
	root, err := jsonvalue.Parse(data)
	if err != nil {
		return nil, err
	}
	return New(key, root), nil
}

// Key returns the keyspace entry name this document is bound to.
func (d *Document) Key() string { return d.key }

// Root returns the root node of the owned tree.
func (d *Document) Root() *jsonvalue.Value { return d.root }

// Generation returns the mutation counter. Match sets snapshot it and
// refuse dereferences once it moves on.
func (d *Document) Generation() uint64 { return d.gen }

// JSON serializes the whole document.
func (d *Document) JSON() string { return d.root.JSON() }

// touch invalidates all outstanding match sets.
func (d *Document) touch() { d.gen++ }

// Invalidate advances the generation without changing the tree.
// The key binding layer calls it when a document is destroyed or
// evicted, so match sets obtained before the destruction fail with
// ErrStaleReference instead of reading a dead tree.
func (d *Document) Invalidate() { d.touch() }

// Eval resolves a compiled path against the document root. A path
// with zero matches yields an empty, valid MatchSet.
func (d *Document) Eval(p *jsonpath.Path) *MatchSet {
	return &MatchSet{
		doc:   d,
		gen:   d.gen,
		nodes: p.Evaluate(d.root),
	}
}

// EvalString compiles and resolves a path expression in one call.
func (d *Document) EvalString(expr string) (*MatchSet, error) {
	p, err := jsonpath.Compile(expr)
	if err != nil {
		return nil, err
	}
	return d.Eval(p), nil
}
