package layout

import (
	"testing"

	"corebrowser/pkg/boxtree"
	"corebrowser/pkg/dom"
	"corebrowser/pkg/query"
	"corebrowser/pkg/style"
)

type testDoc struct {
	q   *query.Database
	d   *dom.Database
	reg *style.Registry
}

func newTestDoc(rules []style.Rule) *testDoc {
	q := query.NewDatabase(nil)
	d := dom.NewDatabase(q)
	reg := style.NewRegistry(q)
	reg.Replace(style.Stylesheet{Rules: rules})
	return &testDoc{q: q, d: d, reg: reg}
}

func (td *testDoc) insertBlock(t *testing.T, parent dom.NodeKey, tag string) dom.NodeKey {
	t.Helper()
	key := td.d.NewKey()
	if err := td.d.Apply(dom.InsertElement{Key: key, Parent: parent, Index: 1 << 30, Tag: tag}); err != nil {
		t.Fatalf("insert %s: %v", tag, err)
	}
	return key
}

func (td *testDoc) layout(t *testing.T, root dom.NodeKey, viewportW, viewportH float64) LayoutResult {
	t.Helper()
	ctx := query.NewContext(td.q)
	tree, err := boxtree.Build(ctx, root)
	if err != nil {
		t.Fatalf("boxtree.Build: %v", err)
	}
	return ComputeLayout(ctx, nil, nil, tree, FromFloat(viewportW), FromFloat(viewportH))
}

func rule(tag string, decls ...style.Declaration) style.Rule {
	return style.Rule{Selector: style.Selector{Parts: []style.SelectorPart{{Element: tag}}}, Declarations: decls}
}

func decl(prop, val string) style.Declaration { return style.Declaration{Property: prop, Value: val} }

func TestBlockMarginCollapseBetweenSiblings(t *testing.T) {
	td := newTestDoc([]style.Rule{
		rule("root", decl("display", "block")),
		rule("box", decl("display", "block"), decl("margin-top", "20px"), decl("margin-bottom", "20px"), decl("height", "10px")),
	})
	root := td.d.NewKey()
	must(t, td.d.Apply(dom.InsertElement{Key: root, Parent: dom.RootKey, Tag: "root"}))
	a := td.insertBlock(t, root, "box")
	b := td.insertBlock(t, root, "box")
	_ = a
	_ = b

	result := td.layout(t, root, 400, 400)
	if len(result.Fragment.Children) != 2 {
		t.Fatalf("expected 2 child fragments, got %d", len(result.Fragment.Children))
	}
	first, second := result.Fragment.Children[0], result.Fragment.Children[1]
	// Each box is 10px tall with 20px margin top/bottom; collapsed between
	// siblings the gap should be max(20,20)=20px, not 40px.
	gap := second.Rect.Y - first.Rect.Bottom()
	if gap != FromFloat(20) {
		t.Fatalf("expected collapsed 20px gap between siblings, got %v", gap.Float())
	}
}

func TestFlexRowDistributesGrow(t *testing.T) {
	td := newTestDoc([]style.Rule{
		rule("root", decl("display", "block")),
		rule("flexbox", decl("display", "flex")),
		rule("item", decl("flex-grow", "1"), decl("width", "0px")),
	})
	root := td.d.NewKey()
	must(t, td.d.Apply(dom.InsertElement{Key: root, Parent: dom.RootKey, Tag: "root"}))
	flexbox := td.insertBlock(t, root, "flexbox")
	item1 := td.insertBlock(t, flexbox, "item")
	item2 := td.insertBlock(t, flexbox, "item")
	_ = item1
	_ = item2

	result := td.layout(t, root, 400, 400)
	flexFrag := result.Fragment.Children[0]
	if len(flexFrag.Children) != 2 {
		t.Fatalf("expected 2 flex items, got %d", len(flexFrag.Children))
	}
	w1 := flexFrag.Children[0].Rect.Width
	w2 := flexFrag.Children[1].Rect.Width
	if w1 != w2 {
		t.Fatalf("expected equal growth split, got %v vs %v", w1.Float(), w2.Float())
	}
	total := w1 + w2
	if diff := flexFrag.Rect.Width - total; diff < 0 || diff > FromFloat(1) {
		t.Fatalf("expected items to fill container width %v, got total %v", flexFrag.Rect.Width.Float(), total.Float())
	}
}

func TestGridTracksWithGap(t *testing.T) {
	td := newTestDoc([]style.Rule{
		rule("root", decl("display", "block")),
		rule("grid", decl("display", "grid"), decl("grid-template-columns", "1fr 1fr"), decl("column-gap", "10px")),
		rule("cell", decl("height", "20px")),
	})
	root := td.d.NewKey()
	must(t, td.d.Apply(dom.InsertElement{Key: root, Parent: dom.RootKey, Tag: "root"}))
	grid := td.insertBlock(t, root, "grid")
	c1 := td.insertBlock(t, grid, "cell")
	c2 := td.insertBlock(t, grid, "cell")
	_ = c1
	_ = c2

	result := td.layout(t, root, 420, 400)
	gridFrag := result.Fragment.Children[0]
	if len(gridFrag.Children) != 2 {
		t.Fatalf("expected 2 grid cells, got %d", len(gridFrag.Children))
	}
	left, right := gridFrag.Children[0], gridFrag.Children[1]
	if left.Rect.X >= right.Rect.X {
		t.Fatalf("expected left cell before right cell, got %v / %v", left.Rect.X.Float(), right.Rect.X.Float())
	}
	gap := right.Rect.X - left.Rect.Right()
	if gap != FromFloat(10) {
		t.Fatalf("expected 10px column gap, got %v", gap.Float())
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
