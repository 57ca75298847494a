package jsonpath

import "errors"

var (
	// ErrSyntax indicates a path expression syntax error during compilation.
	ErrSyntax = errors.New("jsonpath: syntax error")

	// ErrNotSupported indicates a path expression uses a feature outside
	// the supported grammar.
	ErrNotSupported = errors.New("jsonpath: unsupported expression")
)
