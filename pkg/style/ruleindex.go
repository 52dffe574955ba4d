package style

// MatchedRule pairs a rule with its resolved specificity and the
// stylesheet origin it came from, the unit the cascade actually sorts.
type MatchedRule struct {
	Rule        Rule
	Origin      Origin
	Specificity Specificity
}

// RuleIndex buckets a stylesheet's rules by the rightmost compound
// selector's id, classes, and tag so FindMatching only has to re-check
// candidates that could possibly match a given node, instead of every rule
// in the sheet. Grounded on the teacher's matcher.go/cascade.go split,
// generalized into one O(1)-shortlist structure instead of the teacher's
// linear re-scan of every rule per node.
type RuleIndex struct {
	byID        map[string][]indexedRule
	byClass     map[string][]indexedRule
	byTag       map[string][]indexedRule
	universal   []indexedRule
}

type indexedRule struct {
	rule   Rule
	origin Origin
}

// BuildRuleIndex indexes every rule across all given stylesheets.
func BuildRuleIndex(sheets []Stylesheet) *RuleIndex {
	idx := &RuleIndex{
		byID:    make(map[string][]indexedRule),
		byClass: make(map[string][]indexedRule),
		byTag:   make(map[string][]indexedRule),
	}
	for _, sheet := range sheets {
		for _, rule := range sheet.Rules {
			ir := indexedRule{rule: rule, origin: sheet.Origin}
			idx.index(ir)
		}
	}
	return idx
}

func (idx *RuleIndex) index(ir indexedRule) {
	if len(ir.rule.Selector.Parts) == 0 {
		return
	}
	key := ir.rule.Selector.Parts[len(ir.rule.Selector.Parts)-1]
	switch {
	case key.ID != "":
		idx.byID[key.ID] = append(idx.byID[key.ID], ir)
	case len(key.Classes) > 0:
		for _, c := range key.Classes {
			idx.byClass[c] = append(idx.byClass[c], ir)
		}
	case key.Element != "" && key.Element != "*":
		idx.byTag[key.Element] = append(idx.byTag[key.Element], ir)
	default:
		idx.universal = append(idx.universal, ir)
	}
}

// Candidates returns every rule whose rightmost compound selector could
// possibly match a node with the given tag, id, and classes. The caller
// (FindMatching in matcher.go, via Matches) still has to verify the full selector, including
// any combinators to the left.
func (idx *RuleIndex) Candidates(tag, id string, classes []string) []MatchedRule {
	type seenKey struct {
		origin Origin
		order  int
	}
	seen := make(map[seenKey]bool)
	var out []MatchedRule
	add := func(irs []indexedRule) {
		for _, ir := range irs {
			k := seenKey{origin: ir.origin, order: ir.rule.SourceOrder}
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, MatchedRule{Rule: ir.rule, Origin: ir.origin, Specificity: ir.rule.Selector.Compute()})
		}
	}
	if id != "" {
		add(idx.byID[id])
	}
	for _, c := range classes {
		add(idx.byClass[c])
	}
	add(idx.byTag[tag])
	add(idx.universal)
	return out
}
