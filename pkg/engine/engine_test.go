package engine

import (
	"testing"

	"corebrowser/pkg/dom"
	"corebrowser/pkg/layout"
	"corebrowser/pkg/paint"
	"corebrowser/pkg/query"
	"corebrowser/pkg/style"
)

func newTestEngine() *Engine {
	e := New(nil)
	e.Styles.SetUserAgentStylesheet(style.Stylesheet{Rules: []style.Rule{
		{Selector: style.Selector{Parts: []style.SelectorPart{{Element: "div"}}},
			Declarations: []style.Declaration{{Property: "display", Value: "block"}}},
		{Selector: style.Selector{Parts: []style.SelectorPart{{Element: "span"}}},
			Declarations: []style.Declaration{{Property: "display", Value: "inline"}}},
	}})
	e.SetViewport(320, 240)
	return e
}

func insertDiv(t *testing.T, e *Engine, parent dom.NodeKey) dom.NodeKey {
	t.Helper()
	key := e.Dom.NewKey()
	if err := e.Apply([]dom.Mutation{dom.InsertElement{Key: key, Parent: parent, Tag: "div"}}); err != nil {
		t.Fatalf("Apply insert: %v", err)
	}
	return key
}

func TestPaintProducesNonEmptyDisplayList(t *testing.T) {
	e := newTestEngine()
	root := insertDiv(t, e, dom.RootKey)
	insertDiv(t, e, root)

	qctx := query.NewContext(e.DB)
	list, err := e.Paint(qctx, root)
	if err != nil {
		t.Fatalf("Paint: %v", err)
	}
	if list == nil {
		t.Fatal("expected a non-nil display list")
	}
	if list.Generation == 0 {
		t.Fatalf("expected a positive generation number, got %d", list.Generation)
	}
}

func TestPaintGenerationIncreasesAcrossCalls(t *testing.T) {
	e := newTestEngine()
	root := insertDiv(t, e, dom.RootKey)

	qctx := query.NewContext(e.DB)
	first, err := e.Paint(qctx, root)
	if err != nil {
		t.Fatalf("Paint: %v", err)
	}
	second, err := e.Paint(qctx, root)
	if err != nil {
		t.Fatalf("Paint: %v", err)
	}
	if second.Generation <= first.Generation {
		t.Fatalf("expected generation to increase, got %d then %d", first.Generation, second.Generation)
	}
}

func TestSetBaselineProviderSecondCallIsNoOp(t *testing.T) {
	e := New(nil)
	defaultProvider, _ := e.providers()

	e.SetBaselineProvider(stubProvider{}, stubProvider{})
	provider1, measurer1 := e.providers()
	if provider1 == defaultProvider {
		t.Fatalf("expected the first SetBaselineProvider call to take effect")
	}

	e.SetBaselineProvider(stubProvider{sentinel: true}, stubProvider{sentinel: true})
	provider2, measurer2 := e.providers()
	if provider2 != provider1 || measurer2 != measurer1 {
		t.Fatalf("expected a second SetBaselineProvider call to be ignored, got a different provider")
	}
}

func TestApplyMarksStructureDirty(t *testing.T) {
	e := newTestEngine()
	root := insertDiv(t, e, dom.RootKey)
	insertDiv(t, e, root)

	// mutationKey resolves an InsertElement to its *parent*, since that's
	// the node whose children changed.
	if e.dirty.get(root) != StructureDirty {
		t.Fatalf("expected Apply to mark the mutated parent (root, which just gained a child) structure-dirty, got %v", e.dirty.get(root))
	}
}

func TestReflowMatchesFreshPaint(t *testing.T) {
	e := newTestEngine()
	root := insertDiv(t, e, dom.RootKey)
	insertDiv(t, e, root)

	qctx := query.NewContext(e.DB)
	reflowed, err := e.Reflow(qctx, root)
	if err != nil {
		t.Fatalf("Reflow: %v", err)
	}
	painted, err := e.Paint(qctx, root)
	if err != nil {
		t.Fatalf("Paint: %v", err)
	}
	if len(reflowed.Items) == 0 {
		t.Fatal("expected Reflow to produce display items")
	}
	if samePaintShape(reflowed, painted) == false {
		t.Fatalf("expected Reflow's display list to match a subsequent fresh Paint in shape, got %d vs %d items", len(reflowed.Items), len(painted.Items))
	}
}

func samePaintShape(a, b *paint.DisplayList) bool {
	if len(a.Items) != len(b.Items) {
		return false
	}
	for i := range a.Items {
		if a.Items[i].Kind != b.Items[i].Kind {
			return false
		}
	}
	return true
}

type stubProvider struct{ sentinel bool }

func (stubProvider) Baselines(_ *query.Context, _ dom.NodeKey, _ style.ComputedStyle, fontSizePx float64) (layout.Pixels, layout.Pixels, bool) {
	b := layout.FromFloat(fontSizePx * 0.8)
	return b, b, true
}

func (stubProvider) MeasureWidth(_ *query.Context, text string, _ style.ComputedStyle, fontSizePx float64) layout.Pixels {
	return layout.FromFloat(float64(len(text)) * fontSizePx * 0.5)
}
