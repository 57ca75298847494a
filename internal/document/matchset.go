package document

import "jsonkv/internal/jsonvalue"

// MatchSet is the ordered result of evaluating one path against one
// document. Entries are weak references: they do not extend the tree's
// lifetime and become invalid as soon as the document is mutated.
type MatchSet struct {
	doc   *Document
	gen   uint64
	nodes []*jsonvalue.Value
}

// Len returns the total match count, known up front because the set
// is materialized rather than streamed.
func (m *MatchSet) Len() int { return len(m.nodes) }

// At dereferences the match at position i.
func (m *MatchSet) At(i int) (*jsonvalue.Value, error) {
	if m.doc.gen != m.gen {
		return nil, ErrStaleReference
	}
	if i < 0 || i >= len(m.nodes) {
		return nil, ErrIndexOutOfRange
	}
	return m.nodes[i], nil
}

// Iterator starts a fresh single-pass traversal over the set.
func (m *MatchSet) Iterator() *Iterator {
	return &Iterator{ms: m}
}

type iterState uint8

const (
	stateFresh iterState = iota
	stateAdvancing
	stateExhausted
	stateReleased
)

// Iterator walks a MatchSet sequentially and by position. It is not
// restartable: once exhausted, a new evaluation is required.
type Iterator struct {
	ms    *MatchSet
	pos   int
	state iterState
}

// Next advances the cursor and returns the next match. It returns
// ErrEndOfSequence once the set is consumed and keeps returning it on
// subsequent calls.
func (it *Iterator) Next() (*jsonvalue.Value, error) {
	switch it.state {
	case stateReleased:
		return nil, ErrUseAfterRelease
	case stateExhausted:
		return nil, ErrEndOfSequence
	}

	it.state = stateAdvancing
	node, err := it.ms.At(it.pos)
	if err != nil {
		if err == ErrIndexOutOfRange {
			it.state = stateExhausted
			return nil, ErrEndOfSequence
		}
		return nil, err
	}

	it.pos++
	if it.pos == it.ms.Len() {
		it.state = stateExhausted
	}
	return node, nil
}

// Len returns the total match count regardless of cursor position.
func (it *Iterator) Len() (int, error) {
	if it.state == stateReleased {
		return 0, ErrUseAfterRelease
	}
	return it.ms.Len(), nil
}

// At returns the match at position i without moving the cursor.
func (it *Iterator) At(i int) (*jsonvalue.Value, error) {
	if it.state == stateReleased {
		return nil, ErrUseAfterRelease
	}
	return it.ms.At(i)
}

// Release invalidates the iterator from any state. Every later
// operation fails with ErrUseAfterRelease.
func (it *Iterator) Release() {
	it.state = stateReleased
	it.ms = nil
}
