// Package query implements a Salsa-style incremental computation substrate:
// a memoizing database with automatic dependency tracking and revision-based
// invalidation. Style and layout are both expressed as queries over it.
package query

import "fmt"

// Revision is a monotonically increasing counter. Every input mutation
// (set_input / invalidate_input) advances it by exactly one.
type Revision uint64

// Key identifies a single memoized entry: the query type's name plus an
// opaque per-call-site key (usually a dom.NodeKey, sometimes a sentinel for
// singleton inputs like the viewport or the stylesheet rules-epoch).
type Key struct {
	Query string
	Arg   any
}

func (k Key) String() string {
	return fmt.Sprintf("%s(%v)", k.Query, k.Arg)
}

// NewKey builds a Key for the given query type and argument.
func NewKey(query string, arg any) Key {
	return Key{Query: query, Arg: arg}
}

// CycleError is returned when a query's execution re-enters itself,
// directly or transitively. Fatal for that top-level query call only; the
// database remains usable afterwards.
type CycleError struct {
	Path []Key
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("query cycle detected: %v", e.Path)
}
