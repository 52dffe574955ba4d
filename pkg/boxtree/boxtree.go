// Package boxtree implements box generation and anonymous-block synthesis
// (L3): given the DOM and computed styles, it derives each node's box kind
// and formatting-context participation, per spec.md §4.5. It has no
// teacher equivalent — `iansmith-louis14`'s layout package folds box
// generation directly into its block/inline walkers rather than
// separating it into its own pass — so this package is grounded on
// spec.md's own rules, expressed the way the teacher expresses a
// recursive tree transform: ordinary recursive functions over a
// *query.Context, not a visitor-pattern class hierarchy.
package boxtree

import (
	"corebrowser/pkg/dom"
	"corebrowser/pkg/query"
	"corebrowser/pkg/style"
)

// Kind classifies a Node's participation in layout.
type Kind int

const (
	KindBlock Kind = iota
	KindInline
	KindInlineBlock
	KindText
	KindFlexContainer
	KindInlineFlexContainer
	KindGridContainer
	KindInlineGridContainer
	KindAnonymousBlock
)

// Node is one normalized box: either a real DOM element/text node, or an
// anonymous block synthesized to wrap a run of inline content next to
// block siblings (no Key; HasKey is false).
type Node struct {
	Key         dom.NodeKey
	HasKey      bool
	Kind        Kind
	Style       style.ComputedStyle
	Text        string
	Children    []*Node
	OutOfFlow   []*Node // absolute/fixed/float descendants claimed by this box as their containing block
	FloatSide   string  // "left", "right", or "" if this box itself isn't floated
	IsOutOfFlow bool     // true if this box itself is absolute/fixed/floated
}

func isBlockLevel(k Kind) bool {
	switch k {
	case KindBlock, KindFlexContainer, KindGridContainer, KindAnonymousBlock:
		return true
	}
	return false
}

func classify(display string, blockify bool) Kind {
	switch display {
	case style.DisplayBlock:
		return KindBlock
	case style.DisplayInline:
		if blockify {
			return KindBlock
		}
		return KindInline
	case style.DisplayInlineBlock:
		if blockify {
			return KindBlock
		}
		return KindInlineBlock
	case style.DisplayFlex:
		return KindFlexContainer
	case style.DisplayInlineFlex:
		if blockify {
			return KindFlexContainer
		}
		return KindInlineFlexContainer
	case style.DisplayGrid:
		return KindGridContainer
	case style.DisplayInlineGrid:
		if blockify {
			return KindGridContainer
		}
		return KindInlineGridContainer
	default:
		if blockify {
			return KindBlock
		}
		return KindInline
	}
}

func isPositioned(st style.ComputedStyle) bool {
	return st.Position() != style.PositionStatic
}

// Build walks the DOM from root and produces the normalized box tree: a
// single root Node (display:none at the root degenerates to a bare
// KindBlock node with no children, never nil, so callers always have a
// containing block to lay out into).
func Build(ctx *query.Context, root dom.NodeKey) (*Node, error) {
	nodes, oof, err := buildNode(ctx, root, style.ComputedStyle{}, true, true)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return &Node{Key: root, HasKey: true, Kind: KindBlock}, nil
	}
	n := nodes[0]
	n.OutOfFlow = append(n.OutOfFlow, oof...)
	return n, nil
}

// buildNode builds the box(es) for one DOM node. It returns a slice
// because `display: contents` produces zero boxes of its own and splices
// its children directly into the caller's flow, and `display: none`
// produces zero boxes at all. oof carries out-of-flow descendants that
// haven't yet found a containing block to attach to.
func buildNode(ctx *query.Context, key dom.NodeKey, parentStyle style.ComputedStyle, blockify, isRoot bool) (nodes []*Node, oof []*Node, err error) {
	typ, ok := dom.Type(ctx, key)
	if !ok {
		return nil, nil, nil
	}
	if typ == dom.TextNode {
		text, _ := dom.Text(ctx, key)
		return []*Node{{Key: key, HasKey: true, Kind: KindText, Style: parentStyle, Text: text}}, nil, nil
	}
	if typ != dom.ElementNode {
		return nil, nil, nil
	}

	st, err := style.Compute(ctx, key, parentStyle)
	if err != nil {
		return nil, nil, err
	}
	if st.Display() == style.DisplayNone {
		return nil, nil, nil
	}

	childKeys, _ := dom.Children(ctx, key)

	if st.Display() == style.DisplayContents {
		var normal, childOOF []*Node
		for _, ck := range childKeys {
			n, o, cerr := buildNode(ctx, ck, st, blockify, false)
			if cerr != nil {
				return nil, nil, cerr
			}
			normal = append(normal, n...)
			childOOF = append(childOOF, o...)
		}
		return normal, childOOF, nil
	}

	isFloated := st.Float() != "none"
	isOOF := isFloated || st.IsOutOfFlow()
	kind := classify(st.Display(), blockify || isOOF)

	childBlockify := kind == KindFlexContainer || kind == KindGridContainer

	var children []*Node
	var pendingOOF []*Node
	for _, ck := range childKeys {
		n, o, cerr := buildNode(ctx, ck, st, childBlockify, false)
		if cerr != nil {
			return nil, nil, cerr
		}
		children = append(children, n...)
		pendingOOF = append(pendingOOF, o...)
	}
	children = wrapAnonymousBlocks(children, kind)

	node := &Node{Key: key, HasKey: true, Kind: kind, Style: st, Children: children, IsOutOfFlow: isOOF}
	if isFloated {
		node.FloatSide = st.Float()
	}

	// A positioned box, the root (initial containing block), or an
	// out-of-flow box itself (floats/abs-pos establish an independent
	// formatting context per spec.md §4.5) claims pending out-of-flow
	// descendants as its own containing block.
	if isPositioned(st) || isRoot || isOOF {
		node.OutOfFlow = append(node.OutOfFlow, pendingOOF...)
		pendingOOF = nil
	}

	if isOOF {
		return nil, append(pendingOOF, node), nil
	}
	return []*Node{node}, pendingOOF, nil
}

// wrapAnonymousBlocks groups a contiguous run of inline-level children
// adjacent to any block-level child into an anonymous block, per
// spec.md §4.5. Pure-inline-only containers, and anything that isn't a
// block container to begin with (flex/grid items are never wrapped;
// flex/grid layout treats every in-flow child as an item regardless of
// its own display), skip this step entirely.
func wrapAnonymousBlocks(children []*Node, containerKind Kind) []*Node {
	if containerKind != KindBlock && containerKind != KindAnonymousBlock {
		return children
	}
	hasBlock := false
	for _, c := range children {
		if isBlockLevel(c.Kind) {
			hasBlock = true
			break
		}
	}
	if !hasBlock {
		return children
	}

	var out []*Node
	var run []*Node
	flush := func() {
		if len(run) == 0 {
			return
		}
		out = append(out, &Node{Kind: KindAnonymousBlock, Children: run})
		run = nil
	}
	for _, c := range children {
		if isBlockLevel(c.Kind) {
			flush()
			out = append(out, c)
		} else {
			run = append(run, c)
		}
	}
	flush()
	return out
}

// IsInlineLevel reports whether a box participates as inline-level
// content within its containing block's inline formatting context.
func IsInlineLevel(k Kind) bool {
	switch k {
	case KindInline, KindInlineBlock, KindText, KindInlineFlexContainer, KindInlineGridContainer:
		return true
	}
	return false
}
