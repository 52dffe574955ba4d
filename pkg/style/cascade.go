package style

import (
	"sort"
	"strings"

	"corebrowser/pkg/dom"
	"corebrowser/pkg/query"
)

const computedStyleQuery = "style.Computed"

const maxVarDepth = 16

// priority is the four-part cascade sort key: (important-origin-rank,
// specificity, source order). Built per spec.md §4.4's cascade order:
// UA-important > User-important > Author-important > Author-normal >
// User-normal > UA-normal — the pinned Open Question #1 only leaves
// user-vs-author *important* ordering open; UA-important's top position
// is normative.
type priority struct {
	rank        int
	specificity Specificity
	sourceOrder int
}

func (p priority) less(o priority) bool {
	if p.rank != o.rank {
		return p.rank < o.rank
	}
	if p.specificity != o.specificity {
		return p.specificity.Less(o.specificity)
	}
	return p.sourceOrder < o.sourceOrder
}

func originRank(origin Origin, important bool) int {
	if important {
		switch origin {
		case UserAgent:
			return 5
		case User:
			return 4
		case Author:
			return 3
		}
	}
	switch origin {
	case UserAgent:
		return 0
	case User:
		return 1
	case Author:
		return 2
	}
	return 0
}

// maxSpecificity outranks every selector-derived Specificity; an inline
// style="" declaration is treated as an author rule whose selector has
// this specificity, per CSS2.1 §6.4.3, rather than as a separate origin.
var maxSpecificity = Specificity{IDs: 1 << 20}

// Compute returns key's fully cascaded style, given its parent's already
// computed style (the caller — box generation, walking top-down — must
// pass the correct parent; the document root passes a zero ComputedStyle
// which initialValues fills in as if it were the initial containing block).
func Compute(ctx *query.Context, key dom.NodeKey, parent ComputedStyle) (ComputedStyle, error) {
	return query.Query(ctx, computedStyleQuery, key, func(c *query.Context) (ComputedStyle, error) {
		idx := getRuleIndex(c)
		matched := FindMatching(c, key, idx)

		type applied struct {
			decl Declaration
			pri  priority
		}
		var entries []applied
		for _, m := range matched {
			for _, d := range m.Rule.Declarations {
				entries = append(entries, applied{
					decl: d,
					pri:  priority{rank: originRank(m.Origin, d.Important), specificity: m.Specificity, sourceOrder: m.Rule.SourceOrder},
				})
			}
		}

		if raw, ok := dom.Attribute(c, key, "style"); ok && raw != "" {
			for _, d := range parseInlineStyle(raw) {
				entries = append(entries, applied{
					decl: d,
					pri:  priority{rank: originRank(Author, d.Important), specificity: maxSpecificity, sourceOrder: 0},
				})
			}
		}

		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].pri.less(entries[j].pri)
		})

		raw := make(map[string]string, len(entries))
		for _, e := range entries {
			raw[e.decl.Property] = e.decl.Value
		}
		resolveCustomProperties(raw)

		out := newComputedStyle()
		for prop, init := range initialValues {
			out.props[prop] = init
		}
		for prop := range inheritableProperties {
			if v, ok := parent.props[prop]; ok {
				out.props[prop] = v
			}
		}
		for prop, v := range raw {
			out.props[prop] = v
		}
		return out, nil
	})
}

// resolveCustomProperties substitutes var(--name[, fallback]) references
// in place, bounded to maxVarDepth nested substitutions so a cyclic
// custom-property chain can't loop forever.
func resolveCustomProperties(props map[string]string) {
	for name, v := range props {
		if strings.Contains(v, "var(") {
			props[name] = substituteVar(v, props, 0)
		}
	}
}

func substituteVar(v string, props map[string]string, depth int) string {
	if depth >= maxVarDepth {
		return v
	}
	for {
		start := strings.Index(v, "var(")
		if start < 0 {
			return v
		}
		end := strings.Index(v[start:], ")")
		if end < 0 {
			return v
		}
		end += start
		inner := v[start+4 : end]
		name, fallback, hasFallback := strings.Cut(inner, ",")
		name = strings.TrimSpace(name)
		var repl string
		if val, ok := props[name]; ok {
			repl = substituteVar(val, props, depth+1)
		} else if hasFallback {
			repl = strings.TrimSpace(fallback)
		}
		v = v[:start] + repl + v[end+1:]
	}
}

// parseInlineStyle parses a style="..." attribute value into declarations,
// the one place this package accepts raw CSS text rather than pre-parsed
// structures — an inline attribute has no selector of its own to parse, so
// there's no grammar to externalize. Grounded on the teacher's
// pkg/css/style.go ParseInlineStyle.
func parseInlineStyle(raw string) []Declaration {
	var out []Declaration
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		important := false
		if strings.HasSuffix(value, "!important") {
			important = true
			value = strings.TrimSpace(strings.TrimSuffix(value, "!important"))
		}
		out = append(out, Declaration{Property: name, Value: value, Important: important})
	}
	return out
}
