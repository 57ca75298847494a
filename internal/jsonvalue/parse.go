package jsonvalue

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"jsonkv/internal/stack"
)

// ParseError describes a malformed JSON input. Position is the byte
// offset at which parsing failed.
type ParseError struct {
	Position int64
	Reason   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("json parse error at offset %d: %s", e.Position, e.Reason)
}

// frame tracks one open container while tokens are consumed.
type frame struct {
	container *Value
	key       string // pending object key
	hasKey    bool
}

// Parse builds a value tree from JSON text. Duplicate object keys
// follow last-write-wins; integer literals outside the int64 range
// are represented as Double.
func Parse(data []byte) (*Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	frames := stack.New[frame]()
	var root *Value

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			// Token reports plain EOF even inside an unclosed container.
			if !frames.IsEmpty() {
				return nil, &ParseError{Position: dec.InputOffset(), Reason: "unexpected end of input"}
			}
			if root == nil {
				return nil, &ParseError{Position: dec.InputOffset(), Reason: "empty input"}
			}
			return root, nil
		}
		if err != nil {
			return nil, parseError(dec, err)
		}

		if root != nil && frames.IsEmpty() {
			return nil, &ParseError{Position: dec.InputOffset(), Reason: "trailing data after top-level value"}
		}

		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{', '[':
				var container *Value
				if d == '{' {
					container = NewObject()
				} else {
					container = NewArray()
				}
				attach(frames, container, &root)
				frames.Push(frame{container: container})
			case '}', ']':
				frames.Pop()
			}
			continue
		}

		top := frames.PeekRef()
		if top != nil && top.container.Type() == TypeObject && !top.hasKey {
			key, ok := tok.(string)
			if !ok {
				return nil, &ParseError{Position: dec.InputOffset(), Reason: "object key is not a string"}
			}
			top.key = key
			top.hasKey = true
			continue
		}

		scalar, err := scalarValue(tok)
		if err != nil {
			return nil, parseError(dec, err)
		}
		attach(frames, scalar, &root)
	}
}

// attach places a finished value into the enclosing container, or
// makes it the document root when no container is open.
func attach(frames *stack.Stack[frame], v *Value, root **Value) {
	top := frames.PeekRef()
	if top == nil {
		*root = v
		return
	}
	if top.container.Type() == TypeObject {
		top.container.SetField(top.key, v)
		top.hasKey = false
		return
	}
	top.container.Append(v)
}

func scalarValue(tok json.Token) (*Value, error) {
	switch t := tok.(type) {
	case string:
		return NewString(t), nil
	case bool:
		return NewBool(t), nil
	case nil:
		return NewNull(), nil
	case json.Number:
		return numberValue(t)
	default:
		return nil, fmt.Errorf("unexpected token %v", tok)
	}
}

// numberValue keeps the Integer/Double distinction of the literal: a
// literal without fraction or exponent is Integer unless it overflows
// int64, in which case it degrades to Double.
func numberValue(n json.Number) (*Value, error) {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return NewInt(i), nil
		}
	}
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("invalid number literal %q", s)
	}
	return NewDouble(f), nil
}

func parseError(dec *json.Decoder, err error) error {
	var syn *json.SyntaxError
	if errors.As(err, &syn) {
		return &ParseError{Position: syn.Offset, Reason: syn.Error()}
	}
	return &ParseError{Position: dec.InputOffset(), Reason: err.Error()}
}
