package style

import (
	"testing"

	"corebrowser/pkg/dom"
	"corebrowser/pkg/query"
)

func TestMatchesRootPseudoClass(t *testing.T) {
	q := query.NewDatabase(nil)
	d := dom.NewDatabase(q)
	root := d.NewKey()
	child := d.NewKey()
	if err := d.Apply(dom.InsertElement{Key: root, Parent: dom.RootKey, Tag: "html"}); err != nil {
		t.Fatalf("insert root: %v", err)
	}
	if err := d.Apply(dom.InsertElement{Key: child, Parent: root, Tag: "body"}); err != nil {
		t.Fatalf("insert child: %v", err)
	}

	ctx := query.NewContext(q)
	sel := Selector{Parts: []SelectorPart{{PseudoClass: []string{"root"}}}}
	if !Matches(ctx, root, sel) {
		t.Fatal("expected :root to match the element whose parent is the document root")
	}
	if Matches(ctx, child, sel) {
		t.Fatal("expected :root not to match a non-root element")
	}
}

func TestMatchesFirstAndLastChild(t *testing.T) {
	q := query.NewDatabase(nil)
	d := dom.NewDatabase(q)
	parent := d.NewKey()
	if err := d.Apply(dom.InsertElement{Key: parent, Parent: dom.RootKey, Tag: "ul"}); err != nil {
		t.Fatalf("insert parent: %v", err)
	}
	first := d.NewKey()
	middle := d.NewKey()
	last := d.NewKey()
	if err := d.Apply(dom.InsertElement{Key: first, Parent: parent, Index: 0, Tag: "li"}); err != nil {
		t.Fatalf("insert first: %v", err)
	}
	if err := d.Apply(dom.InsertElement{Key: middle, Parent: parent, Index: 1, Tag: "li"}); err != nil {
		t.Fatalf("insert middle: %v", err)
	}
	if err := d.Apply(dom.InsertElement{Key: last, Parent: parent, Index: 2, Tag: "li"}); err != nil {
		t.Fatalf("insert last: %v", err)
	}

	ctx := query.NewContext(q)
	firstSel := Selector{Parts: []SelectorPart{{PseudoClass: []string{"first-child"}}}}
	lastSel := Selector{Parts: []SelectorPart{{PseudoClass: []string{"last-child"}}}}

	if !Matches(ctx, first, firstSel) || Matches(ctx, middle, firstSel) || Matches(ctx, last, firstSel) {
		t.Fatal("expected :first-child to match only the first sibling")
	}
	if !Matches(ctx, last, lastSel) || Matches(ctx, middle, lastSel) || Matches(ctx, first, lastSel) {
		t.Fatal("expected :last-child to match only the last sibling")
	}
}
