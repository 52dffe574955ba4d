package style

import (
	"sync"

	"corebrowser/pkg/query"
)

const (
	ruleIndexInput = "style.RuleIndex"
	viewportInput  = "style.Viewport"
)

type sentinel struct{ name string }

var (
	ruleIndexKey = sentinel{"ruleIndex"}
	viewportKey  = sentinel{"viewport"}
)

// Viewport is the layout viewport's size, the one piece of external state
// (besides the DOM and stylesheets) layout depends on: it sizes the initial
// containing block. ParseLength does not resolve vw/vh units, and the
// cascade does not read the viewport.
type Viewport struct {
	WidthPx, HeightPx float64
}

// Registry holds the stylesheets currently in effect and exposes a
// rebuilt RuleIndex as an input query every time they change. Replace
// swaps the author stylesheet wholesale (a full re-parse from an
// embedder); Append adds more author rules to the existing set (an
// incremental <style> insertion) without disturbing UA/User sheets.
type Registry struct {
	q *query.Database

	mu     sync.Mutex
	ua     Stylesheet
	user   Stylesheet
	author Stylesheet
	next   int
}

// NewRegistry creates an empty registry and seeds the RuleIndex input with
// an empty index so a fresh engine's first style query has something to read.
func NewRegistry(q *query.Database) *Registry {
	r := &Registry{q: q}
	r.rebuild()
	return r
}

// SetUserAgentStylesheet installs the engine's default UA rules.
func (r *Registry) SetUserAgentStylesheet(sheet Stylesheet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sheet.Origin = UserAgent
	r.ua = sheet
	r.rebuildLocked()
}

// Replace swaps out all author-origin rules for sheet.
func (r *Registry) Replace(sheet Stylesheet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sheet.Origin = Author
	for i := range sheet.Rules {
		sheet.Rules[i].SourceOrder = r.next
		r.next++
	}
	r.author = sheet
	r.rebuildLocked()
}

// Append adds more author rules after the existing ones.
func (r *Registry) Append(sheet Stylesheet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rule := range sheet.Rules {
		rule.SourceOrder = r.next
		r.next++
		r.author.Rules = append(r.author.Rules, rule)
	}
	r.author.Origin = Author
	r.rebuildLocked()
}

func (r *Registry) rebuild() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rebuildLocked()
}

func (r *Registry) rebuildLocked() {
	idx := BuildRuleIndex([]Stylesheet{r.ua, r.user, r.author})
	query.SetInput(r.q, ruleIndexInput, ruleIndexKey, idx)
}

// SetViewport records the current viewport size as an input query.
func SetViewport(q *query.Database, vp Viewport) {
	query.SetInput(q, viewportInput, viewportKey, vp)
}

// GetViewport reads the current viewport, recording it as a dependency.
func GetViewport(ctx *query.Context) Viewport {
	vp, ok := query.GetInputRecorded[Viewport](ctx, viewportInput, viewportKey)
	if !ok {
		return Viewport{WidthPx: 0, HeightPx: 0}
	}
	return vp
}

func getRuleIndex(ctx *query.Context) *RuleIndex {
	idx, ok := query.GetInputRecorded[*RuleIndex](ctx, ruleIndexInput, ruleIndexKey)
	if !ok {
		return &RuleIndex{byID: map[string][]indexedRule{}, byClass: map[string][]indexedRule{}, byTag: map[string][]indexedRule{}}
	}
	return idx
}
