package jsonvalue

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

const hexDigits = "0123456789abcdef"

// JSON returns the RFC 8259 text of the subtree rooted at v. The
// returned buffer is owned by the caller. Object key insertion order
// is preserved; no whitespace is emitted.
func (v *Value) JSON() string {
	return string(v.AppendJSON(nil))
}

// AppendJSON appends the serialized subtree to dst and returns the
// extended buffer.
func (v *Value) AppendJSON(dst []byte) []byte {
	switch v.typ {
	case TypeString:
		return appendQuoted(dst, v.str)
	case TypeInteger:
		return strconv.AppendInt(dst, v.intv, 10)
	case TypeDouble:
		return appendDouble(dst, v.dbl)
	case TypeBoolean:
		return strconv.AppendBool(dst, v.boolv)
	case TypeNull:
		return append(dst, "null"...)
	case TypeObject:
		dst = append(dst, '{')
		for i, k := range v.keys {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = appendQuoted(dst, k)
			dst = append(dst, ':')
			dst = v.fields[k].AppendJSON(dst)
		}
		return append(dst, '}')
	case TypeArray:
		dst = append(dst, '[')
		for i, e := range v.elems {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = e.AppendJSON(dst)
		}
		return append(dst, ']')
	default:
		return append(dst, "null"...)
	}
}

// appendDouble emits the shortest float form that still parses back
// as a Double: integral values keep an explicit ".0" so the variant
// survives a round trip.
func appendDouble(dst []byte, f float64) []byte {
	out := strconv.AppendFloat(dst, f, 'g', -1, 64)
	if !strings.ContainsAny(string(out[len(dst):]), ".eE") {
		out = append(out, '.', '0')
	}
	return out
}

// appendQuoted writes a JSON string literal. Valid UTF-8 passes
// through; control characters and invalid bytes are escaped.
func appendQuoted(dst []byte, s string) []byte {
	dst = append(dst, '"')
	for i := 0; i < len(s); {
		b := s[i]
		if b < utf8.RuneSelf {
			switch {
			case b == '"':
				dst = append(dst, '\\', '"')
			case b == '\\':
				dst = append(dst, '\\', '\\')
			case b == '\n':
				dst = append(dst, '\\', 'n')
			case b == '\r':
				dst = append(dst, '\\', 'r')
			case b == '\t':
				dst = append(dst, '\\', 't')
			case b < 0x20:
				dst = append(dst, '\\', 'u', '0', '0', hexDigits[b>>4], hexDigits[b&0xf])
			default:
				dst = append(dst, b)
			}
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			dst = append(dst, '\\', 'u', 'f', 'f', 'f', 'd')
			i++
			continue
		}
		dst = append(dst, s[i:i+size]...)
		i += size
	}
	return append(dst, '"')
}
