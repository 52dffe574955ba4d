package boxtree

import (
	"testing"

	"corebrowser/pkg/dom"
	"corebrowser/pkg/query"
	"corebrowser/pkg/style"
)

func setup(t *testing.T) (*query.Database, *dom.Database, *style.Registry) {
	t.Helper()
	q := query.NewDatabase(nil)
	d := dom.NewDatabase(q)
	reg := style.NewRegistry(q)
	return q, d, reg
}

func ruleFor(tag string, decls ...style.Declaration) style.Rule {
	return style.Rule{
		Selector:     style.Selector{Parts: []style.SelectorPart{{Element: tag}}},
		Declarations: decls,
	}
}

func display(v string) style.Declaration { return style.Declaration{Property: "display", Value: v} }

func TestBuildWrapsInlineRunsNextToBlockSiblings(t *testing.T) {
	q, d, reg := setup(t)
	reg.Replace(style.Stylesheet{Rules: []style.Rule{
		ruleFor("div", display("block")),
		ruleFor("span", display("inline")),
	}})

	div := d.NewKey()
	span1 := d.NewKey()
	text1 := d.NewKey()
	innerDiv := d.NewKey()
	span2 := d.NewKey()
	text2 := d.NewKey()

	must(t, d.Apply(dom.InsertElement{Key: div, Parent: dom.RootKey, Tag: "div"}))
	must(t, d.Apply(dom.InsertElement{Key: span1, Parent: div, Index: 0, Tag: "span"}))
	must(t, d.Apply(dom.InsertText{Key: text1, Parent: span1, Text: "hello"}))
	must(t, d.Apply(dom.InsertElement{Key: innerDiv, Parent: div, Index: 1, Tag: "div"}))
	must(t, d.Apply(dom.InsertElement{Key: span2, Parent: div, Index: 2, Tag: "span"}))
	must(t, d.Apply(dom.InsertText{Key: text2, Parent: span2, Text: "world"}))

	ctx := query.NewContext(q)
	tree, err := Build(ctx, div)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if tree.Kind != KindBlock {
		t.Fatalf("expected root div to be KindBlock, got %v", tree.Kind)
	}
	if len(tree.Children) != 3 {
		t.Fatalf("expected 3 children (anon block, inner div, anon block), got %d", len(tree.Children))
	}
	if tree.Children[0].Kind != KindAnonymousBlock {
		t.Fatalf("expected first child anonymous, got %v", tree.Children[0].Kind)
	}
	if tree.Children[1].Kind != KindBlock || tree.Children[1].Key != innerDiv {
		t.Fatalf("expected second child to be the inner div, got %+v", tree.Children[1])
	}
	if tree.Children[2].Kind != KindAnonymousBlock {
		t.Fatalf("expected third child anonymous, got %v", tree.Children[2].Kind)
	}
}

func TestBuildNoWrappingForPureInlineContainer(t *testing.T) {
	q, d, reg := setup(t)
	reg.Replace(style.Stylesheet{Rules: []style.Rule{
		ruleFor("div", display("block")),
		ruleFor("span", display("inline")),
	}})

	div := d.NewKey()
	span := d.NewKey()
	must(t, d.Apply(dom.InsertElement{Key: div, Parent: dom.RootKey, Tag: "div"}))
	must(t, d.Apply(dom.InsertElement{Key: span, Parent: div, Index: 0, Tag: "span"}))

	ctx := query.NewContext(q)
	tree, err := Build(ctx, div)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(tree.Children) != 1 || tree.Children[0].Kind != KindInline {
		t.Fatalf("expected the lone inline child untouched, got %+v", tree.Children)
	}
}

func TestBuildDisplayNoneProducesNoBox(t *testing.T) {
	q, d, reg := setup(t)
	reg.Replace(style.Stylesheet{Rules: []style.Rule{
		ruleFor("div", display("block")),
		ruleFor("hidden", display("none")),
	}})

	div := d.NewKey()
	hidden := d.NewKey()
	must(t, d.Apply(dom.InsertElement{Key: div, Parent: dom.RootKey, Tag: "div"}))
	must(t, d.Apply(dom.InsertElement{Key: hidden, Parent: div, Index: 0, Tag: "hidden"}))

	ctx := query.NewContext(q)
	tree, err := Build(ctx, div)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(tree.Children) != 0 {
		t.Fatalf("expected display:none child to produce no box, got %+v", tree.Children)
	}
}

func TestBuildClaimsAbsoluteDescendantAtPositionedAncestor(t *testing.T) {
	q, d, reg := setup(t)
	reg.Replace(style.Stylesheet{Rules: []style.Rule{
		ruleFor("div", display("block")),
		ruleFor("wrap", display("block"), style.Declaration{Property: "position", Value: "relative"}),
		ruleFor("abs", display("block"), style.Declaration{Property: "position", Value: "absolute"}),
	}})

	root := d.NewKey()
	wrap := d.NewKey()
	abs := d.NewKey()
	must(t, d.Apply(dom.InsertElement{Key: root, Parent: dom.RootKey, Tag: "div"}))
	must(t, d.Apply(dom.InsertElement{Key: wrap, Parent: root, Index: 0, Tag: "wrap"}))
	must(t, d.Apply(dom.InsertElement{Key: abs, Parent: wrap, Index: 0, Tag: "abs"}))

	ctx := query.NewContext(q)
	tree, err := Build(ctx, root)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(tree.Children) != 1 {
		t.Fatalf("expected one in-flow child (wrap), got %d", len(tree.Children))
	}
	wrapNode := tree.Children[0]
	if len(wrapNode.Children) != 0 {
		t.Fatalf("expected the absolute descendant not to appear in wrap's normal children, got %d", len(wrapNode.Children))
	}
	if len(wrapNode.OutOfFlow) != 1 || wrapNode.OutOfFlow[0].Key != abs {
		t.Fatalf("expected wrap (the nearest positioned ancestor) to claim the absolute box, got %+v", wrapNode.OutOfFlow)
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
