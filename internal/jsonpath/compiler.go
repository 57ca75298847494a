package jsonpath

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	litNum litKind = iota + 1
	litStr
	litBool
	litNull
	litRegex
	litArray
)

var filterRe = regexp.MustCompile(`^@((?:\.[-\w]+)+)?\s*(==|!=|<=|>=|<|>|=~|!~|in|nin)?\s*(.*)$`)

type litKind uint8

// segment is one compiled path step: a set of alternative selectors,
// applied either to direct children or, when deep is set, to the
// children of every descendant-or-self node.
type segment struct {
	deep bool
	sels []selector
}

type comparison struct {
	op    string
	kind  litKind
	num   float64
	str   string
	boolv bool
	regex *regexp.Regexp
	arr   []any // elements are float64, string, bool or nil
}

func compile(expr string) ([]segment, error) {
	if err := validateExpression(expr); err != nil {
		return nil, err
	}

	if expr == "$" {
		return []segment{}, nil
	}

	i := 1 // current parsing index in expr, after '$'
	var segs []segment

	for i < len(expr) {
		seg, newIndex, err := parseSegment(expr, i)
		if err != nil {
			return nil, err
		}
		segs = append(segs, seg)
		i = newIndex
	}

	if len(segs) == 0 {
		return nil, fmt.Errorf("%w: expression parsed to no segments but was not '$'", ErrSyntax)
	}
	return segs, nil
}

func validateExpression(expr string) error {
	if expr == "" {
		return fmt.Errorf("%w: expression cannot be empty", ErrSyntax)
	}
	if expr[0] != '$' || (len(expr) > 1 && expr[1] != '.' && expr[1] != '[') {
		return fmt.Errorf("%w: expression must start with '$', '$.', or '$['", ErrSyntax)
	}
	return nil
}

func parseSegment(expr string, i int) (segment, int, error) {
	if i >= len(expr) {
		return segment{}, i, fmt.Errorf("%w: unexpected end of expression", ErrSyntax)
	}

	if expr[i] == '.' {
		return parseDotSegment(expr, i)
	}
	if expr[i] == '[' {
		return parseBracketSegment(expr, i)
	}

	return segment{}, i, fmt.Errorf("%w: unexpected token '%c' at position %d, expected '.' or '['", ErrSyntax, expr[i], i)
}

func parseDotSegment(expr string, i int) (segment, int, error) {
	seg := segment{}

	if i+1 < len(expr) && expr[i+1] == '.' { // descendant '..'
		seg.deep = true
		i += 2
	} else { // child '.'
		i++
	}

	if i >= len(expr) { // path cannot end with '.' or '..'
		return segment{}, i, fmt.Errorf("%w: path segment cannot end with '.' or '..'", ErrSyntax)
	}

	// A descendant segment may continue with a bracket selector, e.g. '..[0]'.
	if seg.deep && expr[i] == '[' {
		bracket, newIndex, err := parseBracketSegment(expr, i)
		if err != nil {
			return segment{}, i, err
		}
		seg.sels = bracket.sels
		return seg, newIndex, nil
	}

	if expr[i] == '*' { // wildcard
		seg.sels = append(seg.sels, wildcardSel{})
		i++
	} else { // name selector
		name, newIndex, err := parseName(expr, i)
		if err != nil {
			return segment{}, i, err
		}
		seg.sels = append(seg.sels, nameSel(name))
		i = newIndex
	}

	return seg, i, nil
}

func parseName(expr string, i int) (string, int, error) {
	start := i
	for i < len(expr) && idRune(expr[i]) {
		i++
	}
	if start == i { // name cannot be empty
		return "", i, fmt.Errorf("%w: name selector cannot be empty after '.'", ErrSyntax)
	}
	return expr[start:i], i, nil
}

func parseBracketSegment(expr string, i int) (segment, int, error) {
	i++ // consume '['
	if i >= len(expr) {
		return segment{}, i, fmt.Errorf("%w: unterminated bracket selector, missing ']'", ErrSyntax)
	}

	// Filter expression [?(...)]
	if i+1 < len(expr) && expr[i] == '?' && expr[i+1] == '(' {
		return parseFilterSegment(expr, i)
	}

	// Union / slice / index / quoted names
	return parseUnionSegment(expr, i)
}

func parseFilterSegment(expr string, i int) (segment, int, error) {
	tempEnd := findMatchingBracket(expr, i-1)
	if tempEnd == -1 {
		return segment{}, i, fmt.Errorf("%w: unterminated filter expression, missing ']' for '[?(...)'", ErrSyntax)
	}

	fullContent := expr[i:tempEnd]
	i = tempEnd + 1

	if !strings.HasPrefix(fullContent, "?(") || !strings.HasSuffix(fullContent, ")") {
		return segment{}, i, fmt.Errorf("%w: malformed filter structure, expected '[?(<expression>)]' but got '[%s]'", ErrSyntax, fullContent)
	}
	if len(fullContent) < 4 { // Smallest valid is "?()"
		return segment{}, i, fmt.Errorf("%w: filter expression body is too short in '[%s]'", ErrSyntax, fullContent)
	}

	inside := fullContent[2 : len(fullContent)-1] // Extract content between "?(" and ")"
	fs, err := parseFilter(strings.TrimSpace(inside))
	if err != nil {
		return segment{}, i, fmt.Errorf("parsing filter body '%s': %w", inside, err)
	}

	seg := segment{}
	seg.sels = append(seg.sels, fs)
	return seg, i, nil
}

func parseUnionSegment(expr string, i int) (segment, int, error) {
	// Quoted names may contain ']' and ',', so the closing bracket and
	// the union separators are both found with quote-aware scans.
	end := findMatchingBracket(expr, i-1)
	if end == -1 {
		return segment{}, i, fmt.Errorf("%w: unterminated bracket selector, missing ']' for content starting at '%s'", ErrSyntax, expr[i:])
	}

	contentInBracket := expr[i:end]
	i = end + 1

	if strings.TrimSpace(contentInBracket) == "" {
		return segment{}, i, fmt.Errorf("%w: empty bracket selector '[]'", ErrSyntax)
	}

	parts := splitUnionParts(contentInBracket)

	seg := segment{}
	for _, part := range parts {
		selector, err := parseUnionPart(part)
		if err != nil {
			return segment{}, i, err
		}
		seg.sels = append(seg.sels, selector)
	}

	if len(seg.sels) == 0 {
		return segment{}, i, fmt.Errorf("%w: no valid selectors found in bracket content: '[%s]'", ErrSyntax, contentInBracket)
	}

	return seg, i, nil
}

func parseUnionPart(part string) (selector, error) {
	p := strings.TrimSpace(part)
	if p == "" {
		return nil, fmt.Errorf("%w: empty part in union selector", ErrSyntax)
	}

	if p == "*" { // wildcard
		return wildcardSel{}, nil
	}

	if isQuotedName(p) {
		return nameSel(p[1 : len(p)-1]), nil
	}

	if strings.Contains(p, ":") {
		return parseSlice(p)
	}

	if idx, err := strconv.Atoi(p); err == nil {
		// Negative indexes count from the end of the array.
		return indexSel(idx), nil
	}

	return nil, fmt.Errorf("%w: invalid content '%s' in bracket selector", ErrSyntax, p)
}

// splitUnionParts splits bracket content by commas outside quotes.
// Empty parts are kept so '[0,,1]' still fails in parseUnionPart.
func splitUnionParts(content string) []string {
	var parts []string
	start := 0
	inQuote := byte(0)

	for i := 0; i < len(content); i++ {
		c := content[i]
		switch {
		case i > 0 && content[i-1] == '\\':
		case inQuote == 0 && (c == '\'' || c == '"'):
			inQuote = c
		case inQuote == c:
			inQuote = 0
		case inQuote == 0 && c == ',':
			parts = append(parts, content[start:i])
			start = i + 1
		}
	}

	return append(parts, content[start:])
}

func isQuotedName(s string) bool {
	return (len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'') ||
		(len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"')
}

func parseSlice(p string) (selector, error) {
	sliceBounds := strings.Split(p, ":")
	if len(sliceBounds) > 3 {
		return nil, fmt.Errorf("%w: too many colons in slice '%s'", ErrSyntax, p)
	}

	s := sliceSel{step: 1}

	if err := parseSliceBound(&s.start, &s.hasStart, sliceBounds[0], "start", p); err != nil {
		return nil, err
	}

	if len(sliceBounds) > 1 {
		if err := parseSliceBound(&s.end, &s.hasEnd, sliceBounds[1], "end", p); err != nil {
			return nil, err
		}
	}

	if len(sliceBounds) == 3 {
		var hasStep bool
		if err := parseSliceBound(&s.step, &hasStep, sliceBounds[2], "step", p); err != nil {
			return nil, err
		}
		if s.step == 0 {
			return nil, fmt.Errorf("%w: slice step cannot be zero in '%s'", ErrSyntax, p)
		}
	}

	return s, nil
}

func parseSliceBound(target *int, present *bool, valueStr, boundType, fullSlice string) error {
	trimmed := strings.TrimSpace(valueStr)
	if trimmed == "" {
		return nil
	}

	v, err := strconv.Atoi(trimmed)
	if err != nil {
		return fmt.Errorf("%w: slice %s '%s' in '%s' is not a number", ErrSyntax, boundType, trimmed, fullSlice)
	}

	*target = v
	*present = true
	return nil
}

// findMatchingBracket finds the matching closing bracket for an opening bracket at position start.
func findMatchingBracket(expr string, start int) int {
	if start >= len(expr) || expr[start] != '[' {
		return -1
	}

	bracketDepth := 0
	inSingleQuote := false
	inDoubleQuote := false

	for i := start; i < len(expr); i++ {
		c := expr[i]

		// Handle escape sequences in quoted strings
		if i > 0 && expr[i-1] == '\\' {
			continue
		}

		// Handle quoted strings
		if c == '\'' && !inDoubleQuote {
			inSingleQuote = !inSingleQuote
			continue
		}
		if c == '"' && !inSingleQuote {
			inDoubleQuote = !inDoubleQuote
			continue
		}

		// Skip bracket tracking inside quoted strings
		if inSingleQuote || inDoubleQuote {
			continue
		}

		switch c {
		case '[':
			bracketDepth++
		case ']':
			bracketDepth--
			if bracketDepth == 0 {
				return i
			}
		}
	}

	return -1
}

// idRune checks if a byte is valid for unquoted names after '.'.
func idRune(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9') || b == '_' || b == '-'
}

// parseFilter compiles a single atomic comparison filter expression.
func parseFilter(s string) (filterSel, error) {
	s = strings.TrimSpace(s)
	m := filterRe.FindStringSubmatch(s)
	if m == nil {
		return filterSel{}, fmt.Errorf("%w: filter expression '%s' must be like '@.path <op> <literal>' or '@.path'", ErrNotSupported, s)
	}

	path, op, literal := m[1], m[2], m[3]
	if path == "" {
		return filterSel{}, fmt.Errorf("%w: filter expression '%s' must have a path starting with @", ErrSyntax, s)
	}

	fs := filterSel{path: strings.Split(path[1:], ".")}

	if op == "" {
		fs.exists = true
		return fs, nil
	}

	cmp, err := parseComparison(op, strings.TrimSpace(literal))
	if err != nil {
		return filterSel{}, err
	}

	fs.cmp = cmp
	return fs, nil
}

func parseComparison(op, literal string) (comparison, error) {
	if op == "in" || op == "nin" {
		return parseArrayComparison(op, literal)
	}

	if f, err := strconv.ParseFloat(literal, 64); err == nil {
		return parseNumericComparison(op, f, literal)
	}

	if cmp, ok := parseKeywordComparison(op, literal); ok {
		return cmp, nil
	}

	if cmp, ok := parseStringComparison(op, literal); ok {
		return cmp, nil
	}

	if cmp, err := parseRegexComparison(op, literal); err == nil {
		return cmp, nil
	}

	return comparison{}, fmt.Errorf("%w: unsupported literal format '%s'", ErrNotSupported, literal)
}

func parseNumericComparison(op string, value float64, literal string) (comparison, error) {
	switch op {
	case "==", "!=", "<", "<=", ">", ">=":
		return comparison{op: op, num: value, kind: litNum}, nil
	default:
		return comparison{}, fmt.Errorf("%w: operator '%s' not valid for numeric literal '%s'", ErrNotSupported, op, literal)
	}
}

// parseKeywordComparison handles the true/false/null literals.
func parseKeywordComparison(op, literal string) (comparison, bool) {
	if op != "==" && op != "!=" {
		return comparison{}, false
	}

	switch literal {
	case "true":
		return comparison{op: op, boolv: true, kind: litBool}, true
	case "false":
		return comparison{op: op, boolv: false, kind: litBool}, true
	case "null":
		return comparison{op: op, kind: litNull}, true
	default:
		return comparison{}, false
	}
}

func parseStringComparison(op, literal string) (comparison, bool) {
	isSingleQuoted := len(literal) >= 2 && literal[0] == '\'' && literal[len(literal)-1] == '\''
	isDoubleQuoted := len(literal) >= 2 && literal[0] == '"' && literal[len(literal)-1] == '"'

	if !isSingleQuoted && !isDoubleQuoted {
		return comparison{}, false
	}

	switch op {
	case "==", "!=":
		return comparison{op: op, str: literal[1 : len(literal)-1], kind: litStr}, true
	default:
		return comparison{}, false
	}
}

func parseRegexComparison(op, literal string) (comparison, error) {
	if len(literal) < 2 || literal[0] != '/' {
		return comparison{}, fmt.Errorf("not a regex literal")
	}

	lastSlash := strings.LastIndexByte(literal[1:], '/')
	if lastSlash == -1 {
		return comparison{}, fmt.Errorf("unterminated regex literal")
	}

	lastSlash++ // Adjust for the offset
	pat := literal[1:lastSlash]
	flags := literal[lastSlash+1:]

	if op != "=~" && op != "!~" {
		return comparison{}, fmt.Errorf("%w: operator '%s' not valid for regex literal %s", ErrNotSupported, op, literal)
	}

	goFlags, err := processRegexFlags(flags, literal)
	if err != nil {
		return comparison{}, err
	}

	fullPattern := pat
	if goFlags != "" {
		fullPattern = "(?" + goFlags + ")" + pat
	}

	re, err := regexp.Compile(fullPattern)
	if err != nil {
		return comparison{}, fmt.Errorf("compiling regex literal %s: %w", literal, err)
	}

	return comparison{op: op, regex: re, kind: litRegex}, nil
}

func parseArrayComparison(op, literal string) (comparison, error) {
	if !strings.HasPrefix(literal, "[") || !strings.HasSuffix(literal, "]") {
		return comparison{}, fmt.Errorf("%w: array literal '%s' must be enclosed in square brackets", ErrSyntax, literal)
	}

	content := strings.TrimSpace(literal[1 : len(literal)-1])
	if content == "" {
		return comparison{op: op, arr: []any{}, kind: litArray}, nil
	}

	var arr []any
	for _, part := range splitArrayElements(content) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		value, err := parseArrayElement(part)
		if err != nil {
			return comparison{}, fmt.Errorf("parsing array element '%s': %w", part, err)
		}
		arr = append(arr, value)
	}

	return comparison{op: op, arr: arr, kind: litArray}, nil
}

// splitArrayElements splits array content by commas, respecting quoted strings.
func splitArrayElements(content string) []string {
	var parts []string
	var current strings.Builder
	inQuotes := false
	quoteChar := byte(0)

	for i := 0; i < len(content); i++ {
		c := content[i]
		switch {
		case !inQuotes && (c == '\'' || c == '"'):
			inQuotes = true
			quoteChar = c
			current.WriteByte(c)
		case inQuotes && c == quoteChar:
			if !(i > 0 && content[i-1] == '\\') {
				inQuotes = false
			}
			current.WriteByte(c)
		case !inQuotes && c == ',':
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
		default:
			current.WriteByte(c)
		}
	}

	if current.Len() > 0 {
		parts = append(parts, current.String())
	}

	return parts
}

func parseArrayElement(element string) (any, error) {
	if f, err := strconv.ParseFloat(element, 64); err == nil {
		return f, nil
	}

	if element == "true" {
		return true, nil
	}
	if element == "false" {
		return false, nil
	}
	if element == "null" {
		return nil, nil
	}

	if len(element) >= 2 {
		if (element[0] == '\'' && element[len(element)-1] == '\'') ||
			(element[0] == '"' && element[len(element)-1] == '"') {
			return element[1 : len(element)-1], nil
		}
	}

	return nil, fmt.Errorf("unsupported array element format: %s", element)
}

func processRegexFlags(flags, literal string) (string, error) {
	var goFlags string

	for _, flag := range []string{"s", "i", "m"} {
		if strings.Contains(flags, flag) {
			goFlags += flag
		}
	}

	for _, fchar := range flags {
		if fchar != 's' && fchar != 'i' && fchar != 'm' {
			return "", fmt.Errorf("%w: unsupported regex flag '%c' in %s", ErrNotSupported, fchar, literal)
		}
	}

	return goFlags, nil
}
