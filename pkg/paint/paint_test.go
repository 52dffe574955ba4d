package paint

import (
	"testing"

	"corebrowser/pkg/dom"
	"corebrowser/pkg/layout"
	"corebrowser/pkg/query"
	"corebrowser/pkg/style"
)

// styleFixture computes real style.ComputedStyle values off a tiny
// dom.Database + style.Registry pipeline (the same way pkg/style's own
// tests do), so paint tests exercise genuine cascade output rather than
// hand-built structs poking at ComputedStyle's unexported fields.
type styleFixture struct {
	q   *query.Database
	d   *dom.Database
	ctx *query.Context
}

func newStyleFixture(t *testing.T, rules ...style.Rule) *styleFixture {
	t.Helper()
	q := query.NewDatabase(nil)
	d := dom.NewDatabase(q)
	reg := style.NewRegistry(q)
	reg.Replace(style.Stylesheet{Rules: rules})
	return &styleFixture{q: q, d: d, ctx: query.NewContext(q)}
}

func (f *styleFixture) node(t *testing.T, tag string) dom.NodeKey {
	t.Helper()
	key := f.d.NewKey()
	if err := f.d.Apply(dom.InsertElement{Key: key, Parent: dom.RootKey, Tag: tag}); err != nil {
		t.Fatalf("insert %s: %v", tag, err)
	}
	return key
}

func (f *styleFixture) compute(t *testing.T, key dom.NodeKey) style.ComputedStyle {
	t.Helper()
	cs, err := style.Compute(f.ctx, key, style.ComputedStyle{})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	return cs
}

func decl(prop, val string) style.Declaration { return style.Declaration{Property: prop, Value: val} }

func ruleFor(tag string, decls ...style.Declaration) style.Rule {
	return style.Rule{Selector: style.Selector{Parts: []style.SelectorPart{{Element: tag}}}, Declarations: decls}
}

func TestBuildEmitsBackgroundRectAndBorders(t *testing.T) {
	f := newStyleFixture(t, ruleFor("box",
		decl("background-color", "red"),
		decl("border-style", "solid"),
		decl("border-top-width", "2px"),
	))
	n := f.node(t, "box")
	cs := f.compute(t, n)

	frag := &layout.Fragment{
		Node: n, HasNode: true, Kind: layout.FragmentBlock,
		Rect: layout.Rect{X: 0, Y: 0, Width: layout.FromFloat(100), Height: layout.FromFloat(50)},
	}
	styleOf := func(k dom.NodeKey) (style.ComputedStyle, bool) {
		if k == n {
			return cs, true
		}
		return style.ComputedStyle{}, false
	}

	dl := Build(frag, styleOf, 1, CanvasBackground{})
	var sawFill, sawBorder bool
	for _, item := range dl.Items {
		if item.Kind == RectFill && item.Color == "red" {
			sawFill = true
		}
		if item.Kind == BorderEdge {
			sawBorder = true
		}
	}
	if !sawFill {
		t.Fatalf("expected a RectFill for background-color, got %+v", dl.Items)
	}
	if !sawBorder {
		t.Fatalf("expected a BorderEdge for the top border, got %+v", dl.Items)
	}
}

func TestBuildOrdersChildrenByStackingContext(t *testing.T) {
	f := newStyleFixture(t, ruleFor("item", decl("background-color", "blue")))
	back := f.node(t, "item")
	middle := f.node(t, "item")
	front := f.node(t, "item")
	csBack := f.compute(t, back)
	csMiddle := f.compute(t, middle)
	csFront := f.compute(t, front)

	styleOf := func(k dom.NodeKey) (style.ComputedStyle, bool) {
		switch k {
		case back:
			return csBack, true
		case middle:
			return csMiddle, true
		case front:
			return csFront, true
		}
		return style.ComputedStyle{}, false
	}

	mkFrag := func(node dom.NodeKey, zIndex int, hasZ bool) *layout.Fragment {
		return &layout.Fragment{Node: node, HasNode: true, Kind: layout.FragmentBlock, ZIndex: zIndex, HasZIndex: hasZ}
	}
	root := &layout.Fragment{
		Kind: layout.FragmentBlock,
		Children: []*layout.Fragment{
			mkFrag(front, 5, true),
			mkFrag(back, -3, true),
			mkFrag(middle, 0, false),
		},
	}

	dl := Build(root, styleOf, 1, CanvasBackground{})
	var order []dom.NodeKey
	for _, item := range dl.Items {
		if item.Kind == RectFill {
			order = append(order, item.Node)
		}
	}
	if len(order) != 3 {
		t.Fatalf("expected 3 fills, got %d: %+v", len(order), order)
	}
	if order[0] != back || order[1] != middle || order[2] != front {
		t.Fatalf("expected negative, then normal, then positive z-index paint order, got %+v", order)
	}
}

func TestBuildSkipsTransparentBackground(t *testing.T) {
	f := newStyleFixture(t, ruleFor("box", decl("background-color", "transparent")))
	n := f.node(t, "box")
	cs := f.compute(t, n)
	styleOf := func(k dom.NodeKey) (style.ComputedStyle, bool) { return cs, true }

	frag := &layout.Fragment{Node: n, HasNode: true, Kind: layout.FragmentBlock}
	dl := Build(frag, styleOf, 1, CanvasBackground{})
	for _, item := range dl.Items {
		if item.Kind == RectFill {
			t.Fatalf("expected no RectFill for a transparent background, got %+v", item)
		}
	}
}

func TestBuildEmitsTextRun(t *testing.T) {
	frag := &layout.Fragment{
		Kind: layout.FragmentText, Text: "hello", Baseline: layout.FromFloat(12),
		Rect: layout.Rect{Width: layout.FromFloat(30), Height: layout.FromFloat(14)},
	}
	styleOf := func(dom.NodeKey) (style.ComputedStyle, bool) { return style.ComputedStyle{}, false }

	dl := Build(frag, styleOf, 1, CanvasBackground{})
	if len(dl.Items) != 1 || dl.Items[0].Kind != TextRun || dl.Items[0].Text != "hello" {
		t.Fatalf("expected a single TextRun item carrying the fragment's text, got %+v", dl.Items)
	}
}

func TestBuildEmitsCanvasBackgroundAsFirstItem(t *testing.T) {
	styleOf := func(dom.NodeKey) (style.ComputedStyle, bool) { return style.ComputedStyle{}, false }
	canvas := CanvasBackground{Rect: layout.Rect{Width: layout.FromFloat(320), Height: layout.FromFloat(240)}, Color: "white"}

	dl := Build(&layout.Fragment{Kind: layout.FragmentBlock}, styleOf, 1, canvas)
	if len(dl.Items) == 0 || dl.Items[0].Kind != RectFill || dl.Items[0].Color != "white" {
		t.Fatalf("expected the canvas background to be the first display item, got %+v", dl.Items)
	}
	if dl.Items[0].Rect != canvas.Rect {
		t.Fatalf("expected the canvas item's rect to be the viewport rect, got %v", dl.Items[0].Rect)
	}
}

func TestBuildEmitsNoCanvasItemWhenColorIsEmpty(t *testing.T) {
	styleOf := func(dom.NodeKey) (style.ComputedStyle, bool) { return style.ComputedStyle{}, false }
	dl := Build(&layout.Fragment{Kind: layout.FragmentBlock}, styleOf, 1, CanvasBackground{})
	for _, item := range dl.Items {
		if item.Kind == RectFill {
			t.Fatalf("expected no canvas RectFill when CanvasBackground.Color is empty, got %+v", item)
		}
	}
}

func TestDisplayListGenerationIsCarriedThrough(t *testing.T) {
	styleOf := func(dom.NodeKey) (style.ComputedStyle, bool) { return style.ComputedStyle{}, false }
	dl1 := Build(&layout.Fragment{Kind: layout.FragmentBlock}, styleOf, 7, CanvasBackground{})
	dl2 := Build(&layout.Fragment{Kind: layout.FragmentBlock}, styleOf, 8, CanvasBackground{})
	if dl1.Generation != 7 || dl2.Generation != 8 {
		t.Fatalf("expected Generation to pass through unchanged, got %d and %d", dl1.Generation, dl2.Generation)
	}
	if dl2.Generation <= dl1.Generation {
		t.Fatalf("expected monotonically increasing generations across builds, got %d then %d", dl1.Generation, dl2.Generation)
	}
}
