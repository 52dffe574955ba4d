// Package dom is the authoritative model of the mutating DOM tree (L0 in
// the engine's layering). It owns no style or layout state; it only applies
// DomMutation events and exposes the resulting relations as input queries
// on a shared *query.Database, the way the teacher's pkg/html owns the
// *html.Node tree and nothing else.
package dom

// NodeKey is an opaque, stable identifier for a DOM node. Keys are handed
// out by Database.NewKey and are never reused, even after the node they
// named is removed.
type NodeKey int64

// RootKey identifies the document root. It is reserved and never returned
// by NewKey.
const RootKey NodeKey = 1

// NodeType discriminates the DomNode variant.
type NodeType int

const (
	DocumentNode NodeType = iota
	ElementNode
	TextNode
)

func (t NodeType) String() string {
	switch t {
	case DocumentNode:
		return "document"
	case ElementNode:
		return "element"
	case TextNode:
		return "text"
	default:
		return "unknown"
	}
}
