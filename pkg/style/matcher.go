package style

import (
	"strings"

	"corebrowser/pkg/dom"
	"corebrowser/pkg/query"
)

// matchesCompound tests a single compound selector part (no combinators)
// against one node, reading only the DOM relations it needs so the
// dependency set stays minimal.
func matchesCompound(ctx *query.Context, key dom.NodeKey, part SelectorPart) bool {
	typ, ok := dom.Type(ctx, key)
	if !ok || typ != dom.ElementNode {
		return false
	}
	if part.Element != "" && part.Element != "*" {
		tag, _ := dom.Tag(ctx, key)
		if !strings.EqualFold(tag, part.Element) {
			return false
		}
	}
	if part.ID != "" {
		id, _ := dom.Id(ctx, key)
		if id != part.ID {
			return false
		}
	}
	if len(part.Classes) > 0 {
		have, _ := dom.Classes(ctx, key)
		for _, want := range part.Classes {
			if !containsClass(have, want) {
				return false
			}
		}
	}
	if len(part.Attributes) > 0 {
		attrs, _ := dom.Attributes(ctx, key)
		for _, a := range part.Attributes {
			if !matchAttribute(attrs, a) {
				return false
			}
		}
	}
	for _, pc := range part.PseudoClass {
		if !matchPseudoClass(ctx, key, pc) {
			return false
		}
	}
	return true
}

func containsClass(have []string, want string) bool {
	for _, c := range have {
		if c == want {
			return true
		}
	}
	return false
}

func matchAttribute(attrs map[string]string, a AttributeSelector) bool {
	v, ok := attrs[a.Name]
	if a.Operator == "" {
		return ok
	}
	if !ok {
		return false
	}
	switch a.Operator {
	case "=":
		return v == a.Value
	case "~=":
		for _, tok := range strings.Fields(v) {
			if tok == a.Value {
				return true
			}
		}
		return false
	case "^=":
		return strings.HasPrefix(v, a.Value)
	case "$=":
		return strings.HasSuffix(v, a.Value)
	case "*=":
		return strings.Contains(v, a.Value)
	case "|=":
		return v == a.Value || strings.HasPrefix(v, a.Value+"-")
	default:
		return false
	}
}

func matchPseudoClass(ctx *query.Context, key dom.NodeKey, pc string) bool {
	switch pc {
	case "root":
		parent, ok := dom.Parent(ctx, key)
		return ok && parent == dom.RootKey
	case "first-child":
		return siblingIndex(ctx, key) == 0
	case "last-child":
		idx := siblingIndex(ctx, key)
		sibs := siblings(ctx, key)
		return idx >= 0 && idx == len(sibs)-1
	default:
		// Dynamic pseudo-classes (:hover, :focus, :active) never match in a
		// static document substrate; unknown structural ones fail closed.
		return false
	}
}

func siblings(ctx *query.Context, key dom.NodeKey) []dom.NodeKey {
	parent, ok := dom.Parent(ctx, key)
	if !ok {
		return nil
	}
	children, _ := dom.Children(ctx, parent)
	return children
}

func siblingIndex(ctx *query.Context, key dom.NodeKey) int {
	for i, c := range siblings(ctx, key) {
		if c == key {
			return i
		}
	}
	return -1
}

// Matches walks a selector's compound parts right-to-left against key,
// honoring each combinator: Descendant searches ancestors, Child checks
// the immediate parent, AdjacentSibling/GeneralSibling check preceding
// siblings.
func Matches(ctx *query.Context, key dom.NodeKey, sel Selector) bool {
	if len(sel.Parts) == 0 {
		return false
	}
	last := len(sel.Parts) - 1
	if !matchesCompound(ctx, key, sel.Parts[last]) {
		return false
	}
	cur := key
	for i := last - 1; i >= 0; i-- {
		comb := sel.Combinators[i]
		part := sel.Parts[i]
		switch comb {
		case Child:
			parent, ok := dom.Parent(ctx, cur)
			if !ok || !matchesCompound(ctx, parent, part) {
				return false
			}
			cur = parent
		case Descendant:
			found := false
			anc := cur
			for {
				parent, ok := dom.Parent(ctx, anc)
				if !ok {
					break
				}
				if matchesCompound(ctx, parent, part) {
					cur = parent
					found = true
					break
				}
				anc = parent
			}
			if !found {
				return false
			}
		case AdjacentSibling:
			sibs := siblings(ctx, cur)
			idx := siblingIndex(ctx, cur)
			if idx <= 0 || idx-1 >= len(sibs) {
				return false
			}
			prev := sibs[idx-1]
			if !matchesCompound(ctx, prev, part) {
				return false
			}
			cur = prev
		case GeneralSibling:
			sibs := siblings(ctx, cur)
			idx := siblingIndex(ctx, cur)
			found := false
			for i := idx - 1; i >= 0; i-- {
				if matchesCompound(ctx, sibs[i], part) {
					cur = sibs[i]
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

// FindMatching returns every candidate rule (shortlisted via idx) whose
// full selector matches key, the entry point the cascade calls per node.
func FindMatching(ctx *query.Context, key dom.NodeKey, idx *RuleIndex) []MatchedRule {
	tag, _ := dom.Tag(ctx, key)
	id, _ := dom.Id(ctx, key)
	classes, _ := dom.Classes(ctx, key)
	var out []MatchedRule
	for _, cand := range idx.Candidates(tag, id, classes) {
		if Matches(ctx, key, cand.Rule.Selector) {
			out = append(out, cand)
		}
	}
	return out
}
