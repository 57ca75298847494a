package document

import (
	"errors"
	"math"

	"jsonkv/internal/jsonpath"
	"jsonkv/internal/jsonvalue"
)

// ErrNotANumber is returned by the numeric update operations when the
// operand itself is not an Integer or Double value.
var ErrNotANumber = errors.New("document: operand is not a number")

// location identifies where a node hangs in its parent. A nil parent
// means the node is the document root.
type location struct {
	parent *jsonvalue.Value
	key    string
	index  int
}

// locate finds the parent link of target by walking the tree and
// comparing node identity. Mutations re-locate after every structural
// change instead of caching, since removals shift sibling indexes.
func (d *Document) locate(target *jsonvalue.Value) (location, bool) {
	if target == d.root {
		return location{}, true
	}
	return locateIn(d.root, target)
}

func locateIn(node, target *jsonvalue.Value) (location, bool) {
	switch node.Type() {
	case jsonvalue.TypeObject:
		for _, k := range node.Keys() {
			child, _ := node.Field(k)
			if child == target {
				return location{parent: node, key: k}, true
			}
			if loc, ok := locateIn(child, target); ok {
				return loc, true
			}
		}
	case jsonvalue.TypeArray:
		for i, child := range node.Elems() {
			if child == target {
				return location{parent: node, index: i}, true
			}
			if loc, ok := locateIn(child, target); ok {
				return loc, true
			}
		}
	}
	return location{}, false
}

// replace swaps target for repl at its location. The variant tag of a
// node never changes; a value update is always a node swap.
func (d *Document) replace(target, repl *jsonvalue.Value) bool {
	loc, ok := d.locate(target)
	if !ok {
		return false
	}
	if loc.parent == nil {
		d.root = repl
		return true
	}
	if loc.parent.Type() == jsonvalue.TypeObject {
		return loc.parent.SetField(loc.key, repl)
	}
	return loc.parent.SetIndex(loc.index, repl)
}

// Set replaces every node matched by p with a copy of v. When the
// path matches nothing but its final step is a plain member access,
// the member is created on every object matched by the path prefix.
// It returns the number of nodes written.
func (d *Document) Set(p *jsonpath.Path, v *jsonvalue.Value) int {
	matches := p.Evaluate(d.root)

	count := 0
	for _, m := range matches {
		if d.replace(m, v.Clone()) {
			count++
		}
	}

	if count == 0 {
		if prefix, name, ok := p.SplitLast(); ok {
			for _, parent := range prefix.Evaluate(d.root) {
				if parent.SetField(name, v.Clone()) {
					count++
				}
			}
		}
	}

	if count > 0 {
		d.touch()
	}
	return count
}

// Delete removes every node matched by p and returns the removal
// count. The path is evaluated once and the captured nodes are removed
// by identity, so removals that shift sibling indexes cannot drag
// unmatched elements in. Deleting the root empties the document to
// null; the key binding layer turns a root delete into a key delete
// instead.
func (d *Document) Delete(p *jsonpath.Path) int {
	matches := p.Evaluate(d.root)

	count := 0
	for _, target := range matches {
		loc, ok := d.locate(target)
		if !ok {
			// Already detached, an earlier removal took an ancestor.
			continue
		}
		switch {
		case loc.parent == nil:
			d.root = jsonvalue.NewNull()
		case loc.parent.Type() == jsonvalue.TypeObject:
			loc.parent.DeleteField(loc.key)
		default:
			loc.parent.Remove(loc.index)
		}
		count++
	}

	if count > 0 {
		d.touch()
	}
	return count
}

// NumIncrBy adds delta to every numeric node matched by p. Integer
// plus Integer stays Integer unless the sum overflows int64, which
// promotes to Double; any Double operand produces a Double. The
// result slice parallels the matches, with nil for non-numeric nodes.
func (d *Document) NumIncrBy(p *jsonpath.Path, delta *jsonvalue.Value) ([]*jsonvalue.Value, error) {
	return d.numOp(p, delta, func(a, b int64) (int64, bool) {
		sum := a + b
		if (a > 0 && b > 0 && sum < 0) || (a < 0 && b < 0 && sum >= 0) {
			return 0, false
		}
		return sum, true
	}, func(a, b float64) float64 { return a + b })
}

// NumMultBy multiplies every numeric node matched by p by the factor,
// with the same promotion rules as NumIncrBy.
func (d *Document) NumMultBy(p *jsonpath.Path, factor *jsonvalue.Value) ([]*jsonvalue.Value, error) {
	return d.numOp(p, factor, func(a, b int64) (int64, bool) {
		if a == 0 || b == 0 {
			return 0, true
		}
		product := a * b
		if product/b != a {
			return 0, false
		}
		return product, true
	}, func(a, b float64) float64 { return a * b })
}

// NumPowBy raises every numeric node matched by p to the given
// exponent. Integer bases with a non-negative Integer exponent stay
// Integer unless the power overflows int64; a negative or Double
// exponent produces a Double.
func (d *Document) NumPowBy(p *jsonpath.Path, exponent *jsonvalue.Value) ([]*jsonvalue.Value, error) {
	return d.numOp(p, exponent, intPow, math.Pow)
}

func intPow(base, exp int64) (int64, bool) {
	if exp < 0 {
		return 0, false
	}
	result := int64(1)
	for ; exp > 0; exp-- {
		if base != 0 && result != 0 && (result*base)/base != result {
			return 0, false
		}
		result *= base
	}
	return result, true
}

func (d *Document) numOp(p *jsonpath.Path, operand *jsonvalue.Value, intOp func(a, b int64) (int64, bool), dblOp func(a, b float64) float64) ([]*jsonvalue.Value, error) {
	opInt, operandIsInt := operand.AsInt()
	opDbl, operandIsDbl := operand.AsDouble()
	if !operandIsInt && !operandIsDbl {
		return nil, ErrNotANumber
	}

	matches := p.Evaluate(d.root)
	results := make([]*jsonvalue.Value, len(matches))
	changed := false

	for i, m := range matches {
		var repl *jsonvalue.Value
		if cur, ok := m.AsInt(); ok && operandIsInt {
			if out, fits := intOp(cur, opInt); fits {
				repl = jsonvalue.NewInt(out)
			} else {
				repl = jsonvalue.NewDouble(dblOp(float64(cur), float64(opInt)))
			}
		} else {
			cur, ok := numericOf(m)
			if !ok {
				continue
			}
			operandF := opDbl
			if operandIsInt {
				operandF = float64(opInt)
			}
			out := dblOp(cur, operandF)
			if math.IsNaN(out) || math.IsInf(out, 0) {
				continue
			}
			repl = jsonvalue.NewDouble(out)
		}

		if d.replace(m, repl) {
			results[i] = repl
			changed = true
		}
	}

	if changed {
		d.touch()
	}
	return results, nil
}

func numericOf(v *jsonvalue.Value) (float64, bool) {
	if i, ok := v.AsInt(); ok {
		return float64(i), true
	}
	return v.AsDouble()
}

// Toggle flips every Boolean node matched by p, returning the new
// nodes (nil for non-boolean matches).
func (d *Document) Toggle(p *jsonpath.Path) []*jsonvalue.Value {
	matches := p.Evaluate(d.root)
	results := make([]*jsonvalue.Value, len(matches))
	changed := false

	for i, m := range matches {
		b, ok := m.AsBool()
		if !ok {
			continue
		}
		repl := jsonvalue.NewBool(!b)
		if d.replace(m, repl) {
			results[i] = repl
			changed = true
		}
	}

	if changed {
		d.touch()
	}
	return results
}

// StrAppend concatenates s onto every String node matched by p and
// returns the new byte lengths (-1 for non-string matches).
func (d *Document) StrAppend(p *jsonpath.Path, s string) []int {
	matches := p.Evaluate(d.root)
	results := lengths(len(matches))
	changed := false

	for i, m := range matches {
		cur, ok := m.AsString()
		if !ok {
			continue
		}
		repl := jsonvalue.NewString(cur + s)
		if d.replace(m, repl) {
			results[i] = len(cur) + len(s)
			changed = true
		}
	}

	if changed {
		d.touch()
	}
	return results
}

// StrLen returns the byte length of every String node matched by p
// (-1 for non-string matches). It does not mutate the document.
func (d *Document) StrLen(p *jsonpath.Path) []int {
	matches := p.Evaluate(d.root)
	results := lengths(len(matches))
	for i, m := range matches {
		if s, ok := m.AsString(); ok {
			results[i] = len(s)
		}
	}
	return results
}

// ArrAppend appends copies of vals to every Array node matched by p
// and returns the new lengths (-1 for non-array matches).
func (d *Document) ArrAppend(p *jsonpath.Path, vals ...*jsonvalue.Value) []int {
	matches := p.Evaluate(d.root)
	results := lengths(len(matches))
	changed := false

	for i, m := range matches {
		if m.Type() != jsonvalue.TypeArray {
			continue
		}
		for _, v := range vals {
			m.Append(v.Clone())
		}
		n, _ := m.Len()
		results[i] = n
		changed = true
	}

	if changed {
		d.touch()
	}
	return results
}

// ArrInsert places copies of vals before position idx (negative
// counts from the end) in every Array node matched by p, returning
// the new lengths (-1 when the match is not an array or idx is out of
// range).
func (d *Document) ArrInsert(p *jsonpath.Path, idx int, vals ...*jsonvalue.Value) []int {
	matches := p.Evaluate(d.root)
	results := lengths(len(matches))
	changed := false

	for i, m := range matches {
		n, ok := m.Len()
		if !ok || m.Type() != jsonvalue.TypeArray {
			continue
		}
		at := idx
		if at < 0 {
			at += n
		}
		if at < 0 || at > n {
			continue
		}
		copies := make([]*jsonvalue.Value, len(vals))
		for j, v := range vals {
			copies[j] = v.Clone()
		}
		m.Insert(at, copies...)
		results[i] = n + len(vals)
		changed = true
	}

	if changed {
		d.touch()
	}
	return results
}

// ArrLen returns the element count of every Array node matched by p
// (-1 for non-array matches).
func (d *Document) ArrLen(p *jsonpath.Path) []int {
	matches := p.Evaluate(d.root)
	results := lengths(len(matches))
	for i, m := range matches {
		if m.Type() == jsonvalue.TypeArray {
			results[i], _ = m.Len()
		}
	}
	return results
}

// ArrPop removes and returns the element at idx (negative counts from
// the end) from every Array node matched by p. The result slice holds
// nil for non-array or empty-array matches.
func (d *Document) ArrPop(p *jsonpath.Path, idx int) []*jsonvalue.Value {
	matches := p.Evaluate(d.root)
	results := make([]*jsonvalue.Value, len(matches))
	changed := false

	for i, m := range matches {
		n, ok := m.Len()
		if !ok || m.Type() != jsonvalue.TypeArray || n == 0 {
			continue
		}
		at := idx
		if at < 0 {
			at += n
		}
		if at < 0 {
			at = 0
		}
		if at >= n {
			at = n - 1
		}
		if popped, ok := m.Remove(at); ok {
			results[i] = popped
			changed = true
		}
	}

	if changed {
		d.touch()
	}
	return results
}

// ArrTrim keeps only elements [start, stop] (inclusive, clamped) of
// every Array node matched by p, returning the new lengths.
func (d *Document) ArrTrim(p *jsonpath.Path, start, stop int) []int {
	matches := p.Evaluate(d.root)
	results := lengths(len(matches))
	changed := false

	for i, m := range matches {
		n, ok := m.Len()
		if !ok || m.Type() != jsonvalue.TypeArray {
			continue
		}
		from, to := start, stop
		if from < 0 {
			from += n
		}
		if to < 0 {
			to += n
		}
		if kept, ok := m.Trim(from, to); ok {
			results[i] = kept
			changed = true
		}
	}

	if changed {
		d.touch()
	}
	return results
}

// ArrIndex searches every Array node matched by p for the first
// element equal to needle within [start, stop) (stop 0 means the end)
// and returns its position, or -1 when absent or the match is not an
// array. It does not mutate the document.
func (d *Document) ArrIndex(p *jsonpath.Path, needle *jsonvalue.Value, start, stop int) []int {
	matches := p.Evaluate(d.root)
	results := lengths(len(matches))

	for i, m := range matches {
		n, ok := m.Len()
		if !ok || m.Type() != jsonvalue.TypeArray {
			continue
		}
		from, to := start, stop
		if from < 0 {
			from += n
		}
		if from < 0 {
			from = 0
		}
		if to <= 0 {
			to += n
		}
		if to > n {
			to = n
		}
		for j := from; j < to; j++ {
			elem, _ := m.Index(j)
			if jsonvalue.Equal(elem, needle) {
				results[i] = j
				break
			}
		}
	}
	return results
}

// ObjKeys returns the member names, in insertion order, of every
// Object node matched by p (nil for non-object matches).
func (d *Document) ObjKeys(p *jsonpath.Path) [][]string {
	matches := p.Evaluate(d.root)
	results := make([][]string, len(matches))
	for i, m := range matches {
		if m.Type() != jsonvalue.TypeObject {
			continue
		}
		keys := m.Keys()
		out := make([]string, len(keys))
		copy(out, keys)
		results[i] = out
	}
	return results
}

// ObjLen returns the member count of every Object node matched by p
// (-1 for non-object matches).
func (d *Document) ObjLen(p *jsonpath.Path) []int {
	matches := p.Evaluate(d.root)
	results := lengths(len(matches))
	for i, m := range matches {
		if m.Type() == jsonvalue.TypeObject {
			results[i], _ = m.Len()
		}
	}
	return results
}

// Clear empties every container and zeroes every numeric node matched
// by p, returning the number of nodes cleared.
func (d *Document) Clear(p *jsonpath.Path) int {
	matches := p.Evaluate(d.root)
	count := 0

	for _, m := range matches {
		switch m.Type() {
		case jsonvalue.TypeObject:
			for _, k := range append([]string(nil), m.Keys()...) {
				m.DeleteField(k)
			}
			count++
		case jsonvalue.TypeArray:
			m.Trim(0, -1)
			count++
		case jsonvalue.TypeInteger:
			if d.replace(m, jsonvalue.NewInt(0)) {
				count++
			}
		case jsonvalue.TypeDouble:
			if d.replace(m, jsonvalue.NewDouble(0)) {
				count++
			}
		}
	}

	if count > 0 {
		d.touch()
	}
	return count
}

// TypeOf returns the type name of every node matched by p. It does
// not mutate the document.
func (d *Document) TypeOf(p *jsonpath.Path) []string {
	matches := p.Evaluate(d.root)
	results := make([]string, len(matches))
	for i, m := range matches {
		results[i] = m.Type().String()
	}
	return results
}

func lengths(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = -1
	}
	return out
}
