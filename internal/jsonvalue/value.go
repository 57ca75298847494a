// Package jsonvalue provides the in-memory tree representation of a
// parsed JSON document: tagged-union nodes, typed accessors, and
// RFC 8259 serialization.
package jsonvalue

// Type identifies the variant of a Value node. The tag is fixed at
// construction and never changes for the lifetime of the node.
type Type uint8

const (
	TypeString Type = iota
	TypeInteger
	TypeDouble
	TypeBoolean
	TypeObject
	TypeArray
	TypeNull
)

// String returns the lowercase type name used in command replies.
func (t Type) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInteger:
		return "integer"
	case TypeDouble:
		return "number"
	case TypeBoolean:
		return "boolean"
	case TypeObject:
		return "object"
	case TypeArray:
		return "array"
	case TypeNull:
		return "null"
	default:
		return "unknown"
	}
}

// Value is a single node of a JSON document tree. Container children
// are exclusively owned by their parent: a child appears in exactly
// one container and the tree contains no cycles.
type Value struct {
	typ Type

	str    string
	intv   int64
	dbl    float64
	boolv  bool
	keys   []string          // object insertion order
	fields map[string]*Value // object members
	elems  []*Value          // array elements
}

func NewString(s string) *Value  { return &Value{typ: TypeString, str: s} }
func NewInt(i int64) *Value      { return &Value{typ: TypeInteger, intv: i} }
func NewDouble(f float64) *Value { return &Value{typ: TypeDouble, dbl: f} }
func NewBool(b bool) *Value      { return &Value{typ: TypeBoolean, boolv: b} }
func NewNull() *Value            { return &Value{typ: TypeNull} }

func NewObject() *Value {
	return &Value{typ: TypeObject, fields: make(map[string]*Value)}
}

func NewArray(elems ...*Value) *Value {
	return &Value{typ: TypeArray, elems: elems}
}

// Type returns the variant tag.
func (v *Value) Type() Type { return v.typ }

// AsString returns the string payload. It succeeds only for String
// nodes; there is no implicit conversion from other variants.
func (v *Value) AsString() (string, bool) {
	if v.typ != TypeString {
		return "", false
	}
	return v.str, true
}

// AsInt returns the integer payload. A Double node never satisfies
// AsInt, even when its value is integral.
func (v *Value) AsInt() (int64, bool) {
	if v.typ != TypeInteger {
		return 0, false
	}
	return v.intv, true
}

// AsDouble returns the float payload. An Integer node is not widened.
func (v *Value) AsDouble() (float64, bool) {
	if v.typ != TypeDouble {
		return 0, false
	}
	return v.dbl, true
}

// AsBool returns the boolean payload.
func (v *Value) AsBool() (bool, bool) {
	if v.typ != TypeBoolean {
		return false, false
	}
	return v.boolv, true
}

// Len returns the child count of an Object or Array node.
func (v *Value) Len() (int, bool) {
	switch v.typ {
	case TypeObject:
		return len(v.keys), true
	case TypeArray:
		return len(v.elems), true
	default:
		return 0, false
	}
}

// Index returns the array element at position i.
func (v *Value) Index(i int) (*Value, bool) {
	if v.typ != TypeArray || i < 0 || i >= len(v.elems) {
		return nil, false
	}
	return v.elems[i], true
}

// Field returns the object member named key.
func (v *Value) Field(key string) (*Value, bool) {
	if v.typ != TypeObject {
		return nil, false
	}
	child, ok := v.fields[key]
	return child, ok
}

// Keys returns the object member names in insertion order. The
// returned slice is shared with the node and must not be modified.
func (v *Value) Keys() []string {
	if v.typ != TypeObject {
		return nil
	}
	return v.keys
}

// Elems returns the array elements. The returned slice is shared
// with the node and must not be modified.
func (v *Value) Elems() []*Value {
	if v.typ != TypeArray {
		return nil
	}
	return v.elems
}

// SetField inserts or replaces an object member. A replaced member
// keeps its original position; a new member is appended.
func (v *Value) SetField(key string, child *Value) bool {
	if v.typ != TypeObject {
		return false
	}
	if _, exists := v.fields[key]; !exists {
		v.keys = append(v.keys, key)
	}
	v.fields[key] = child
	return true
}

// DeleteField removes an object member. It reports whether the member
// existed.
func (v *Value) DeleteField(key string) bool {
	if v.typ != TypeObject {
		return false
	}
	if _, exists := v.fields[key]; !exists {
		return false
	}
	delete(v.fields, key)
	for i, k := range v.keys {
		if k == key {
			v.keys = append(v.keys[:i], v.keys[i+1:]...)
			break
		}
	}
	return true
}

// Append adds elements to the end of an array node.
func (v *Value) Append(children ...*Value) bool {
	if v.typ != TypeArray {
		return false
	}
	v.elems = append(v.elems, children...)
	return true
}

// Insert places elements before position i of an array node.
func (v *Value) Insert(i int, children ...*Value) bool {
	if v.typ != TypeArray || i < 0 || i > len(v.elems) {
		return false
	}
	v.elems = append(v.elems[:i], append(children, v.elems[i:]...)...)
	return true
}

// SetIndex replaces the array element at position i.
func (v *Value) SetIndex(i int, child *Value) bool {
	if v.typ != TypeArray || i < 0 || i >= len(v.elems) {
		return false
	}
	v.elems[i] = child
	return true
}

// Remove deletes the array element at position i and returns it.
func (v *Value) Remove(i int) (*Value, bool) {
	if v.typ != TypeArray || i < 0 || i >= len(v.elems) {
		return nil, false
	}
	removed := v.elems[i]
	v.elems = append(v.elems[:i], v.elems[i+1:]...)
	return removed, true
}

// Trim keeps only the array elements in [start, stop] (inclusive,
// clamped). It returns the new length.
func (v *Value) Trim(start, stop int) (int, bool) {
	if v.typ != TypeArray {
		return 0, false
	}
	n := len(v.elems)
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || n == 0 {
		v.elems = v.elems[:0]
		return 0, true
	}
	v.elems = append(v.elems[:0], v.elems[start:stop+1]...)
	return len(v.elems), true
}

// Clone returns a deep copy of the subtree rooted at v.
func (v *Value) Clone() *Value {
	switch v.typ {
	case TypeObject:
		out := NewObject()
		for _, k := range v.keys {
			out.SetField(k, v.fields[k].Clone())
		}
		return out
	case TypeArray:
		out := NewArray()
		out.elems = make([]*Value, len(v.elems))
		for i, e := range v.elems {
			out.elems[i] = e.Clone()
		}
		return out
	default:
		clone := *v
		return &clone
	}
}

// Equal reports deep semantic equality. Integer and Double nodes are
// distinct variants and never compare equal to each other.
func Equal(a, b *Value) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.typ != b.typ {
		return false
	}
	switch a.typ {
	case TypeString:
		return a.str == b.str
	case TypeInteger:
		return a.intv == b.intv
	case TypeDouble:
		return a.dbl == b.dbl
	case TypeBoolean:
		return a.boolv == b.boolv
	case TypeNull:
		return true
	case TypeObject:
		if len(a.keys) != len(b.keys) {
			return false
		}
		for _, k := range a.keys {
			bc, ok := b.fields[k]
			if !ok || !Equal(a.fields[k], bc) {
				return false
			}
		}
		return true
	case TypeArray:
		if len(a.elems) != len(b.elems) {
			return false
		}
		for i := range a.elems {
			if !Equal(a.elems[i], b.elems[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
