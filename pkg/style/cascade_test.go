package style

import (
	"testing"

	"corebrowser/pkg/dom"
	"corebrowser/pkg/query"
)

func sheet(origin Origin, rules ...Rule) Stylesheet {
	for i := range rules {
		rules[i].SourceOrder = i
	}
	return Stylesheet{Origin: origin, Rules: rules}
}

func rule(selRaw, element, id string, classes []string, decls ...Declaration) Rule {
	return Rule{
		Selector:     Selector{Raw: selRaw, Parts: []SelectorPart{{Element: element, ID: id, Classes: classes}}},
		Declarations: decls,
	}
}

func setupDoc(t *testing.T) (*query.Database, *dom.Database, dom.NodeKey) {
	t.Helper()
	q := query.NewDatabase(nil)
	d := dom.NewDatabase(q)
	key := d.NewKey()
	if err := d.Apply(dom.InsertElement{Key: key, Parent: dom.RootKey, Tag: "p", Attributes: map[string]string{"id": "hero", "class": "a b"}}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	return q, d, key
}

func TestCascadeSourceOrderTieBreak(t *testing.T) {
	q, _, key := setupDoc(t)
	reg := NewRegistry(q)
	reg.Replace(sheet(Author,
		rule("p", "p", "", nil, Declaration{Property: "color", Value: "red"}),
		rule("p", "p", "", nil, Declaration{Property: "color", Value: "blue"}),
	))

	ctx := query.NewContext(q)
	cs, err := Compute(ctx, key, newComputedStyle())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, _ := cs.Get("color"); got != "blue" {
		t.Fatalf("expected later same-specificity rule (blue) to win, got %q", got)
	}
}

func TestCascadeSpecificityBeatsSourceOrder(t *testing.T) {
	q, _, key := setupDoc(t)
	reg := NewRegistry(q)
	reg.Replace(sheet(Author,
		rule("#hero", "", "hero", nil, Declaration{Property: "color", Value: "green"}),
		rule("p", "p", "", nil, Declaration{Property: "color", Value: "blue"}),
	))

	ctx := query.NewContext(q)
	cs, _ := Compute(ctx, key, newComputedStyle())
	if got, _ := cs.Get("color"); got != "green" {
		t.Fatalf("expected id selector to win over later tag selector, got %q", got)
	}
}

func TestCascadeUserImportantBeatsAuthorImportant(t *testing.T) {
	q, _, key := setupDoc(t)
	reg := NewRegistry(q)
	reg.Replace(sheet(Author, rule("p", "p", "", nil, Declaration{Property: "color", Value: "red", Important: true})))
	reg.user = sheet(User, rule("p", "p", "", nil, Declaration{Property: "color", Value: "purple", Important: true}))
	reg.rebuild()

	ctx := query.NewContext(q)
	cs, _ := Compute(ctx, key, newComputedStyle())
	if got, _ := cs.Get("color"); got != "purple" {
		t.Fatalf("expected user !important to beat author !important, got %q", got)
	}
}

func TestCascadeUAImportantBeatsEverything(t *testing.T) {
	q, _, key := setupDoc(t)
	reg := NewRegistry(q)
	reg.ua = sheet(UserAgent, rule("p", "p", "", nil, Declaration{Property: "color", Value: "black", Important: true}))
	reg.Replace(sheet(Author, rule("#hero", "", "hero", nil, Declaration{Property: "color", Value: "green", Important: true})))
	reg.user = sheet(User, rule("p", "p", "", nil, Declaration{Property: "color", Value: "purple", Important: true}))
	reg.rebuild()

	ctx := query.NewContext(q)
	cs, _ := Compute(ctx, key, newComputedStyle())
	if got, _ := cs.Get("color"); got != "black" {
		t.Fatalf("expected UA !important to beat both user and author !important, got %q", got)
	}
}

func TestCascadeAuthorNormalBeatsUserNormal(t *testing.T) {
	q, _, key := setupDoc(t)
	reg := NewRegistry(q)
	reg.Replace(sheet(Author, rule("p", "p", "", nil, Declaration{Property: "color", Value: "red"})))
	reg.user = sheet(User, rule("p", "p", "", nil, Declaration{Property: "color", Value: "purple"}))
	reg.rebuild()

	ctx := query.NewContext(q)
	cs, _ := Compute(ctx, key, newComputedStyle())
	if got, _ := cs.Get("color"); got != "red" {
		t.Fatalf("expected author normal to beat user normal, got %q", got)
	}
}

func TestInlineStyleBeatsAuthorStylesheet(t *testing.T) {
	q, d, key := setupDoc(t)
	reg := NewRegistry(q)
	reg.Replace(sheet(Author, rule("#hero", "", "hero", nil, Declaration{Property: "color", Value: "green"})))
	d.Apply(dom.SetAttribute{Key: key, Name: "style", Value: "color: orange;"})

	ctx := query.NewContext(q)
	cs, _ := Compute(ctx, key, newComputedStyle())
	if got, _ := cs.Get("color"); got != "orange" {
		t.Fatalf("expected inline style to win, got %q", got)
	}
}

func TestInheritancePropagatesAndDefaultsInitialOtherwise(t *testing.T) {
	q, d, key := setupDoc(t)
	ctx := query.NewContext(q)
	parent, _ := Compute(ctx, dom.RootKey, newComputedStyle())
	parent.props["color"] = "teal"
	parent.props["display"] = "block"

	cs, _ := Compute(ctx, key, parent)
	if got, _ := cs.Get("color"); got != "teal" {
		t.Fatalf("expected inherited color, got %q", got)
	}
	if got, _ := cs.Get("display"); got != "inline" {
		t.Fatalf("display is not inheritable, expected initial value inline, got %q", got)
	}
	_ = d
}

func TestCustomPropertySubstitutionAndFallback(t *testing.T) {
	q, _, key := setupDoc(t)
	reg := NewRegistry(q)
	reg.Replace(sheet(Author, rule("p", "p", "", nil,
		Declaration{Property: "--brand", Value: "crimson"},
		Declaration{Property: "color", Value: "var(--brand)"},
		Declaration{Property: "background-color", Value: "var(--missing, beige)"},
	)))

	ctx := query.NewContext(q)
	cs, _ := Compute(ctx, key, newComputedStyle())
	if got, _ := cs.Get("color"); got != "crimson" {
		t.Fatalf("expected var() substitution, got %q", got)
	}
	if got, _ := cs.Get("background-color"); got != "beige" {
		t.Fatalf("expected fallback value, got %q", got)
	}
}

func TestAppendingUnrelatedRuleKeepsComputedStyle(t *testing.T) {
	q, _, key := setupDoc(t)
	reg := NewRegistry(q)
	reg.Replace(sheet(Author, rule("p", "p", "", nil, Declaration{Property: "color", Value: "red"})))

	ctx1 := query.NewContext(q)
	cs1, _ := Compute(ctx1, key, newComputedStyle())
	rev1, _ := cs1.Get("color")

	// Append a rule that doesn't affect this node's match set, bumping the
	// rules epoch without changing the node's cascade result.
	reg.Append(sheet(Author, rule("span", "span", "", nil, Declaration{Property: "color", Value: "black"})))

	ctx2 := query.NewContext(q)
	cs2, _ := Compute(ctx2, key, newComputedStyle())
	rev2, _ := cs2.Get("color")
	if rev1 != rev2 {
		t.Fatalf("expected unaffected node's color to remain %q, got %q", rev1, rev2)
	}
}
