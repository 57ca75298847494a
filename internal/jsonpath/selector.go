package jsonpath

import "jsonkv/internal/jsonvalue"

// selector picks children of a node. Implementations append the
// selected children to out in document order (object insertion order,
// array index order) and report no error: a miss contributes nothing.
type selector interface {
	selectChildren(node *jsonvalue.Value, out []*jsonvalue.Value) []*jsonvalue.Value
}

type (
	nameSel     string
	wildcardSel struct{}
	indexSel    int
)

type sliceSel struct {
	start, end, step int
	hasStart, hasEnd bool
}

type filterSel struct {
	path   []string
	exists bool // existence check like [?(@.isbn)]
	cmp    comparison
}

func (n nameSel) selectChildren(node *jsonvalue.Value, out []*jsonvalue.Value) []*jsonvalue.Value {
	if child, ok := node.Field(string(n)); ok {
		out = append(out, child)
	}
	return out
}

func (wildcardSel) selectChildren(node *jsonvalue.Value, out []*jsonvalue.Value) []*jsonvalue.Value {
	switch node.Type() {
	case jsonvalue.TypeObject:
		for _, k := range node.Keys() {
			child, _ := node.Field(k)
			out = append(out, child)
		}
	case jsonvalue.TypeArray:
		out = append(out, node.Elems()...)
	}
	return out
}

func (i indexSel) selectChildren(node *jsonvalue.Value, out []*jsonvalue.Value) []*jsonvalue.Value {
	n, ok := node.Len()
	if !ok || node.Type() != jsonvalue.TypeArray {
		return out
	}
	idx := int(i)
	if idx < 0 {
		idx += n
	}
	if child, ok := node.Index(idx); ok {
		out = append(out, child)
	}
	return out
}

func (s sliceSel) selectChildren(node *jsonvalue.Value, out []*jsonvalue.Value) []*jsonvalue.Value {
	if node.Type() != jsonvalue.TypeArray {
		return out
	}
	elems := node.Elems()
	n := len(elems)

	norm := func(x int) int {
		if x < 0 {
			x += n
		}
		return x
	}

	if s.step > 0 {
		start, end := 0, n
		if s.hasStart {
			start = max(norm(s.start), 0)
		}
		if s.hasEnd {
			end = min(norm(s.end), n)
		}
		for i := start; i < end; i += s.step {
			out = append(out, elems[i])
		}
		return out
	}

	start, end := n-1, -1
	if s.hasStart {
		start = min(norm(s.start), n-1)
	}
	if s.hasEnd {
		end = max(norm(s.end), -1)
	}
	for i := start; i > end; i += s.step {
		if i >= 0 && i < n {
			out = append(out, elems[i])
		}
	}
	return out
}

func (f filterSel) selectChildren(node *jsonvalue.Value, out []*jsonvalue.Value) []*jsonvalue.Value {
	switch node.Type() {
	case jsonvalue.TypeArray:
		for _, child := range node.Elems() {
			if f.match(child) {
				out = append(out, child)
			}
		}
	case jsonvalue.TypeObject:
		for _, k := range node.Keys() {
			child, _ := node.Field(k)
			if f.match(child) {
				out = append(out, child)
			}
		}
	}
	return out
}

// match evaluates the predicate against one candidate child. Any
// failure to resolve the @-path or to compare types makes the
// predicate false, never an error.
func (f filterSel) match(candidate *jsonvalue.Value) bool {
	target := f.extractTarget(candidate)

	if f.exists {
		return target != nil
	}
	if target == nil {
		return false
	}

	return f.evaluateComparison(target)
}

// extractTarget walks the @.path member chain from the candidate.
func (f filterSel) extractTarget(candidate *jsonvalue.Value) *jsonvalue.Value {
	current := candidate
	for _, p := range f.path {
		child, ok := current.Field(p)
		if !ok {
			return nil
		}
		current = child
	}
	return current
}

func (f filterSel) evaluateComparison(target *jsonvalue.Value) bool {
	switch f.cmp.kind {
	case litNum:
		return f.evaluateNumericComparison(target)
	case litStr:
		return f.evaluateStringComparison(target)
	case litBool:
		return f.evaluateBoolComparison(target)
	case litNull:
		return f.evaluateNullComparison(target)
	case litRegex:
		return f.evaluateRegexComparison(target)
	case litArray:
		return f.evaluateArrayComparison(target)
	}
	return false
}

// numericValue widens both Integer and Double nodes for predicate
// comparison. This coercion is deliberate and local to filters; the
// typed accessor layer stays strict.
func numericValue(v *jsonvalue.Value) (float64, bool) {
	if i, ok := v.AsInt(); ok {
		return float64(i), true
	}
	return v.AsDouble()
}

func (f filterSel) evaluateNumericComparison(target *jsonvalue.Value) bool {
	v, ok := numericValue(target)
	if !ok {
		return false
	}

	switch f.cmp.op {
	case "==":
		return v == f.cmp.num
	case "!=":
		return v != f.cmp.num
	case "<":
		return v < f.cmp.num
	case "<=":
		return v <= f.cmp.num
	case ">":
		return v > f.cmp.num
	case ">=":
		return v >= f.cmp.num
	}
	return false
}

func (f filterSel) evaluateStringComparison(target *jsonvalue.Value) bool {
	s, ok := target.AsString()
	if !ok {
		return false
	}

	switch f.cmp.op {
	case "==":
		return s == f.cmp.str
	case "!=":
		return s != f.cmp.str
	}
	return false
}

func (f filterSel) evaluateBoolComparison(target *jsonvalue.Value) bool {
	b, ok := target.AsBool()
	if !ok {
		return false
	}

	switch f.cmp.op {
	case "==":
		return b == f.cmp.boolv
	case "!=":
		return b != f.cmp.boolv
	}
	return false
}

func (f filterSel) evaluateNullComparison(target *jsonvalue.Value) bool {
	isNull := target.Type() == jsonvalue.TypeNull

	switch f.cmp.op {
	case "==":
		return isNull
	case "!=":
		return !isNull
	}
	return false
}

func (f filterSel) evaluateRegexComparison(target *jsonvalue.Value) bool {
	s, ok := target.AsString()
	if !ok {
		return false
	}

	m := f.cmp.regex.MatchString(s)
	switch f.cmp.op {
	case "=~":
		return m
	case "!~":
		return !m
	}
	return false
}

func (f filterSel) evaluateArrayComparison(target *jsonvalue.Value) bool {
	found := false
	for _, item := range f.cmp.arr {
		if literalEquals(target, item) {
			found = true
			break
		}
	}

	switch f.cmp.op {
	case "in":
		return found
	case "nin":
		return !found
	}
	return false
}

// literalEquals compares a node against a parsed filter literal.
func literalEquals(target *jsonvalue.Value, lit any) bool {
	switch want := lit.(type) {
	case float64:
		v, ok := numericValue(target)
		return ok && v == want
	case string:
		s, ok := target.AsString()
		return ok && s == want
	case bool:
		b, ok := target.AsBool()
		return ok && b == want
	case nil:
		return target.Type() == jsonvalue.TypeNull
	default:
		return false
	}
}
