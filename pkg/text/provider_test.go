package text

import (
	"testing"

	"go.uber.org/zap/zaptest"

	"corebrowser/pkg/dom"
	"corebrowser/pkg/layout"
	"corebrowser/pkg/query"
	"corebrowser/pkg/style"
)

func computedStyle(t *testing.T, decls ...style.Declaration) style.ComputedStyle {
	t.Helper()
	q := query.NewDatabase(nil)
	d := dom.NewDatabase(q)
	key := d.NewKey()
	if err := d.Apply(dom.InsertElement{Key: key, Parent: dom.RootKey, Tag: "x"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	reg := style.NewRegistry(q)
	reg.Replace(style.Stylesheet{Rules: []style.Rule{
		{Selector: style.Selector{Parts: []style.SelectorPart{{Element: "x"}}}, Declarations: decls},
	}})
	ctx := query.NewContext(q)
	cs, err := style.Compute(ctx, key, style.ComputedStyle{})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	return cs
}

// No real font file is fetchable in this sandbox, so these tests exercise
// the documented fallback path (gg.LoadFontFace failing) rather than real
// glyph measurement, which text.MetricsProvider is explicitly designed to
// degrade into without an error.

func TestMeasureWidthFallsBackWhenFontLoadFails(t *testing.T) {
	p := NewMetricsProvider(FontSet{Regular: "/nonexistent/regular.ttf"}, zaptest.NewLogger(t))
	cs := computedStyle(t)

	w := p.MeasureWidth(nil, "hello", cs, 16)
	want := layout.FromFloat(float64(len([]rune("hello"))) * 16 * 0.55)
	if w != want {
		t.Fatalf("expected heuristic fallback width %v, got %v", want, w)
	}
}

func TestMeasureWidthTreatsWhitespaceOnlyRunAsASingleSpace(t *testing.T) {
	p := NewMetricsProvider(FontSet{Regular: "/nonexistent/regular.ttf"}, zaptest.NewLogger(t))
	cs := computedStyle(t)

	w := p.MeasureWidth(nil, "   ", cs, 16)
	want := layout.FromFloat(16 * 0.55)
	if w != want {
		t.Fatalf("expected a whitespace-only run to measure as a single space, got %v want %v", w, want)
	}
}

func TestMeasureWidthEmptyStringStaysEmpty(t *testing.T) {
	p := NewMetricsProvider(FontSet{Regular: "/nonexistent/regular.ttf"}, zaptest.NewLogger(t))
	cs := computedStyle(t)

	w := p.MeasureWidth(nil, "", cs, 16)
	if w != 0 {
		t.Fatalf("expected an empty string to measure to zero width, got %v", w)
	}
}

func TestBaselinesFallsBackWhenFontLoadFails(t *testing.T) {
	p := NewMetricsProvider(FontSet{Regular: "/nonexistent/regular.ttf"}, zaptest.NewLogger(t))
	cs := computedStyle(t)

	_, _, ok := p.Baselines(nil, 0, cs, 16)
	if ok {
		t.Fatal("expected Baselines to report ok=false when the font can't be loaded")
	}
}

func TestFontPathSelectsBoldFont(t *testing.T) {
	p := &MetricsProvider{Fonts: FontSet{Regular: "regular.ttf", Bold: "bold.ttf"}}

	regular := computedStyle(t, style.Declaration{Property: "font-weight", Value: "normal"})
	bold := computedStyle(t, style.Declaration{Property: "font-weight", Value: "bold"})

	if got := p.fontPath(regular); got != "regular.ttf" {
		t.Fatalf("expected normal weight to select the regular font, got %q", got)
	}
	if got := p.fontPath(bold); got != "bold.ttf" {
		t.Fatalf("expected a bold weight to select the bold font, got %q", got)
	}
}

func TestFontPathFallsBackToRegularWhenNoBoldRegistered(t *testing.T) {
	p := &MetricsProvider{Fonts: FontSet{Regular: "regular.ttf"}}
	bold := computedStyle(t, style.Declaration{Property: "font-weight", Value: "bold"})

	if got := p.fontPath(bold); got != "regular.ttf" {
		t.Fatalf("expected a missing bold font to fall back to regular, got %q", got)
	}
}
