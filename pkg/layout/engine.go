package layout

import (
	"corebrowser/pkg/boxtree"
	"corebrowser/pkg/query"
)

// Ctx bundles everything a layout pass threads down through every box:
// the query.Context recording dependencies for the surrounding memoized
// query (see pkg/engine, which wraps ComputeLayout as a query.Query[T]),
// the registered baseline provider, and the viewport rect used as the
// containing block for position:fixed descendants. Grounded on the
// teacher's LayoutEngine struct in layout/types.go, generalized from a
// stateful struct holding the whole stylesheet/viewport to a lightweight
// value threaded explicitly per call, matching this codebase's preference
// for explicit *query.Context threading over package-level state.
type Ctx struct {
	Q        *query.Context
	Provider BaselineProvider
	Measurer Measurer // optional; nil falls back to the heuristic glyph-advance estimate
	Viewport Rect
}

// ComputeLayout lays out a box tree against a viewport of the given size,
// starting a new block formatting context rooted at (0, 0). This is the
// single-shot entry point; pkg/engine wraps it as a memoized query keyed by
// the document root, so any change to its dependencies re-runs the whole pass.
func ComputeLayout(ctx *query.Context, provider BaselineProvider, measurer Measurer, tree *boxtree.Node, viewportWidth, viewportHeight Pixels) LayoutResult {
	if provider == nil {
		provider = DefaultProvider
	}
	viewport := Rect{X: 0, Y: 0, Width: viewportWidth, Height: viewportHeight}
	lc := &Ctx{Q: ctx, Provider: provider, Measurer: measurer, Viewport: viewport}
	cs := ConstraintSpace{AvailableInlineSize: viewportWidth, AvailableBlockSize: viewportHeight}
	return LayoutBox(lc, tree, Point{}, cs, 16, true)
}
