// Package jsonpath compiles path expressions and evaluates them
// against a jsonvalue tree, producing matched nodes in deterministic
// pre-order.
//
// Supported steps:
//   - Child `.name` / `['name']` and descendant `..name` segments
//   - Array index `[n]` and `[-n]` (negative counts from the end)
//   - Wildcard `.*` / `[*]`, slices `[start:end:step]`, unions `[a,b]`
//   - Filters `[?(@.field <op> <literal>)]` and existence `[?(@.field)]`
//     where <op> is ==  !=  <  <=  >  >=  =~  !~  in  nin and
//     <literal> is a number, 'string', true/false, null, /regex/flags,
//     or [v1,v2,...]
//
// A malformed expression is rejected at compile time with ErrSyntax
// or ErrNotSupported. Evaluation itself never fails: steps that
// address a missing member, an out-of-range index, or the wrong
// container type simply contribute no matches.
package jsonpath
