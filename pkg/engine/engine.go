// Package engine is the glue spec.md §6 implies but never names a package
// for: the value an embedder owns that wires pkg/dom, pkg/style,
// pkg/boxtree, pkg/layout, and pkg/paint together behind the query
// substrate's memoization, and exposes the two entry points an embedder
// actually calls — apply a batch of DOM mutations, then ask for a
// DisplayList. Grounded on the teacher's Renderer (pkg/render/render.go),
// generalized from a struct that owns a *gg.Context and paints immediately
// into one that owns a *query.Database and returns a displayable list,
// since this module's L5 is a builder rather than a direct-to-canvas pass.
package engine

import (
	"runtime"
	"sync"

	"go.uber.org/zap"

	"corebrowser/pkg/boxtree"
	"corebrowser/pkg/dom"
	"corebrowser/pkg/layout"
	"corebrowser/pkg/paint"
	"corebrowser/pkg/query"
	"corebrowser/pkg/style"
)

const (
	boxTreeQuery = "engine.BoxTree"
	layoutQuery  = "engine.Layout"
)

// Engine owns the shared query database and the DOM/style state that sits
// in front of it, and caches the registered font/baseline provider used by
// every layout pass. It is safe for concurrent use: the query database is
// itself concurrency-safe, and the provider is set once, early, per
// spec.md §6's "registered once ... second call is a documented no-op".
type Engine struct {
	DB     *query.Database
	Dom    *dom.Database
	Styles *style.Registry
	Log    *zap.Logger

	mu           sync.Mutex
	provider     layout.BaselineProvider
	measurer     layout.Measurer
	providerSet  bool
	dirty        *dirtyTracker
	generation   uint64
}

// New creates an engine with a fresh query database, DOM, and style
// registry. A nil logger falls back to zap.NewNop(), matching the rest of
// this module's convention.
func New(log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	db := query.NewDatabase(log)
	return &Engine{
		DB:       db,
		Dom:      dom.NewDatabase(db),
		Styles:   style.NewRegistry(db),
		Log:      log,
		provider: layout.DefaultProvider,
		dirty:    newDirtyTracker(),
	}
}

// SetBaselineProvider registers the font/inline-baseline collaborator used
// by every subsequent layout pass (text.MetricsProvider, typically). Per
// spec.md §6, this is meant to be called once, early, by the embedder; a
// second call is a documented no-op rather than an error, since swapping
// fonts mid-session without invalidating every cached layout result would
// silently desync measured text from painted text.
func (e *Engine) SetBaselineProvider(provider layout.BaselineProvider, measurer layout.Measurer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.providerSet {
		e.Log.Warn("engine: SetBaselineProvider called more than once, ignoring")
		return
	}
	e.provider = provider
	e.measurer = measurer
	e.providerSet = true
}

func (e *Engine) providers() (layout.BaselineProvider, layout.Measurer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.provider, e.measurer
}

// SetViewport records the viewport size as a query input, invalidating
// every cached layout that read it.
func (e *Engine) SetViewport(widthPx, heightPx float64) {
	style.SetViewport(e.DB, style.Viewport{WidthPx: widthPx, HeightPx: heightPx})
}

// Apply applies a batch of DOM mutations and marks one node per mutation
// structure-dirty — the parent for an insertion, the node itself for an
// attribute change or a removal; ancestors are not marked — per the
// dirty-bit state machine in spec.md §4.6. Mutation application itself
// already invalidates the exact dom.* input queries it touches (see
// dom.Database.Apply); the dirty tracker on top of that is purely a
// scheduling aid for ComputeLayoutIncremental, not a correctness
// mechanism — a full Reflow would give the same answer without it.
func (e *Engine) Apply(mutations []dom.Mutation) error {
	err := e.Dom.ApplyBatch(mutations)
	for _, m := range mutations {
		e.dirty.markStructureDirty(mutationKey(m))
	}
	return err
}

func mutationKey(m dom.Mutation) dom.NodeKey {
	switch mm := m.(type) {
	case dom.InsertElement:
		return mm.Parent
	case dom.InsertText:
		return mm.Parent
	case dom.SetAttribute:
		return mm.Key
	case dom.RemoveNode:
		return mm.Key
	default:
		return dom.RootKey
	}
}

// BoxTree returns root's normalized box tree, memoized as a query so that a
// reflow whose DOM/style dependencies didn't change returns the cached
// tree without re-walking the DOM. Grounded on boxtree.Build; wrapping it
// in query.Query here (rather than inside pkg/boxtree itself) keeps
// pkg/boxtree a pure function of (ctx, root) with no opinion about
// memoization policy, matching this module's layering: memoization is the
// substrate's job, not any one layer's.
func (e *Engine) BoxTree(ctx *query.Context, root dom.NodeKey) (*boxtree.Node, error) {
	return query.Query(ctx, boxTreeQuery, root, func(c *query.Context) (*boxtree.Node, error) {
		return boxtree.Build(c, root)
	})
}

// Layout lays out root's box tree against the current viewport, memoized
// the same way as BoxTree. It is the full, non-incremental reflow path;
// ComputeLayoutIncremental (see Reflow) is the scheduling-aware sibling
// used once an engine has dirty-bit information to exploit.
func (e *Engine) Layout(ctx *query.Context, root dom.NodeKey) (layout.LayoutResult, error) {
	provider, measurer := e.providers()
	return query.Query(ctx, layoutQuery, root, func(c *query.Context) (layout.LayoutResult, error) {
		tree, err := e.BoxTree(c, root)
		if err != nil {
			return layout.LayoutResult{}, err
		}
		vp := style.GetViewport(c)
		w, h := layout.FromFloat(vp.WidthPx), layout.FromFloat(vp.HeightPx)
		return layout.ComputeLayout(c, provider, measurer, tree, w, h), nil
	})
}

// Paint computes layout and builds its display list in one call, stamping
// the returned list with a monotonically increasing generation number a
// consumer can diff against the previous call's to implement partial
// repaint, per spec.md §4.7.
func (e *Engine) Paint(ctx *query.Context, root dom.NodeKey) (*paint.DisplayList, error) {
	result, err := e.Layout(ctx, root)
	if err != nil {
		return nil, err
	}
	tree, err := e.BoxTree(ctx, root)
	if err != nil {
		return nil, err
	}
	styles := collectStyles(tree)
	styleOf := func(key dom.NodeKey) (style.ComputedStyle, bool) {
		st, ok := styles[key]
		return st, ok
	}

	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	vp := style.GetViewport(ctx)
	canvas := paint.CanvasBackground{
		Rect:  layout.Rect{Width: layout.FromFloat(vp.WidthPx), Height: layout.FromFloat(vp.HeightPx)},
		Color: canvasBackgroundColor(ctx, tree),
	}
	return paint.Build(result.Fragment, styleOf, gen, canvas), nil
}

// canvasBackgroundColor resolves CSS 2.1 §14.2 canvas-background
// propagation: body's background-color if set and non-transparent, else
// html's, else opaque white — the order DESIGN.md pins, grounded on the
// teacher's Renderer.drawCanvasBackground (pkg/render/render.go), adapted
// from walking a *layout.Box slice by TagName to walking the boxtree by
// dom.Tag since this module's Node carries a dom.NodeKey, not a tag string,
// on the box itself.
func canvasBackgroundColor(ctx *query.Context, tree *boxtree.Node) string {
	var html, body *boxtree.Node
	var find func(n *boxtree.Node)
	find = func(n *boxtree.Node) {
		if n == nil || html != nil && body != nil {
			return
		}
		if n.HasKey {
			switch tag, _ := dom.Tag(ctx, n.Key); tag {
			case "html":
				if html == nil {
					html = n
				}
			case "body":
				if body == nil {
					body = n
				}
			}
		}
		for _, c := range n.Children {
			find(c)
		}
	}
	find(tree)

	if body != nil {
		if bg, ok := body.Style.Get("background-color"); ok && bg != "" && bg != "transparent" {
			return bg
		}
	}
	if html != nil {
		if bg, ok := html.Style.Get("background-color"); ok && bg != "" && bg != "transparent" {
			return bg
		}
	}
	return "white"
}

// Reflow is the incremental entry point: it drains the dirty tracker's
// layout-dirty nodes (with no filtering of nodes whose ancestors are also
// dirty; see drainIndependentRoots) and lays them out concurrently via
// layout.ComputeLayoutIncremental, bounded by runtime.GOMAXPROCS(0), as the
// scheduling fan-out spec.md §5 describes, then runs one Layout/Paint pass
// to assemble the authoritative display list.
//
// Scoped simplification: the Layout query below is still keyed by the
// whole document root rather than per-subtree, so the concurrently
// computed DirtySubtree results aren't themselves the cached values —
// Layout recomputes top-down, relying on query.Query's own dependency-walk
// early cutoff (pkg/query's verified_at/computed_at machinery) to skip
// re-deriving any clean sub-computation it encounters along the way. The
// parallel pass here exists to honor spec.md §5's concurrent-fan-out
// requirement and warms BoxTree/style.Compute's per-node caches before the
// sequential pass reads them; a per-subtree layout cache keyed below the
// document root would let it replace that sequential pass outright, which
// is future work, not a correctness gap in what's implemented.
// A dirty tracker with nothing queued degenerates to exactly a full Paint.
func (e *Engine) Reflow(ctx *query.Context, root dom.NodeKey) (*paint.DisplayList, error) {
	dirtyRoots := e.dirty.drainIndependentRoots()
	if len(dirtyRoots) > 0 {
		provider, measurer := e.providers()
		vp := style.GetViewport(ctx)
		viewport := layout.Rect{Width: layout.FromFloat(vp.WidthPx), Height: layout.FromFloat(vp.HeightPx)}

		subtrees := make([]layout.DirtySubtree, 0, len(dirtyRoots))
		for _, key := range dirtyRoots {
			tree, err := e.BoxTree(ctx, key)
			if err != nil {
				continue
			}
			subtrees = append(subtrees, layout.DirtySubtree{
				Tree:       tree,
				Constraint: layout.ConstraintSpace{AvailableInlineSize: viewport.Width, AvailableBlockSize: viewport.Height},
				FontSizePx: 16,
				IsRoot:     key == root,
				Viewport:   viewport,
			})
		}
		if _, err := layout.ComputeLayoutIncremental(ctx, provider, measurer, subtrees, runtime.GOMAXPROCS(0)); err != nil {
			return nil, err
		}
		for _, key := range dirtyRoots {
			e.dirty.markClean(key)
		}
	}
	return e.Paint(ctx, root)
}

func collectStyles(tree *boxtree.Node) map[dom.NodeKey]style.ComputedStyle {
	out := make(map[dom.NodeKey]style.ComputedStyle)
	var walk func(n *boxtree.Node)
	walk = func(n *boxtree.Node) {
		if n == nil {
			return
		}
		if n.HasKey {
			out[n.Key] = n.Style
		}
		for _, c := range n.Children {
			walk(c)
		}
		for _, o := range n.OutOfFlow {
			walk(o)
		}
	}
	walk(tree)
	return out
}
