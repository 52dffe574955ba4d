package layout

import (
	"strconv"
	"strings"

	"corebrowser/pkg/dom"
	"corebrowser/pkg/query"
	"corebrowser/pkg/style"
)

// BaselineProvider is the font/inline-baseline provider trait from
// spec.md §6: given a node and its computed style, return its first and
// last baseline offsets (measured down from the content box's top edge)
// in CSS pixels, or ok=false if the node contributes no inline baseline
// (e.g. it has no text and isn't a replaced element).
type BaselineProvider interface {
	Baselines(ctx *query.Context, key dom.NodeKey, st style.ComputedStyle, fontSizePx float64) (first, last Pixels, ok bool)
}

// defaultProvider is the fallback used when no richer provider has been
// registered: font metrics plus a default line-height, per spec.md §6.
// It approximates font-metric ascent as 80% of the font size (a common
// rough ratio for common typefaces absent real font metrics) rather than
// measuring glyphs, which is exactly the gap a registered text.MetricsProvider
// (gg-backed real font measurement) fills in.
type defaultProvider struct{}

func (defaultProvider) Baselines(_ *query.Context, _ dom.NodeKey, st style.ComputedStyle, fontSizePx float64) (Pixels, Pixels, bool) {
	lh := lineHeightPx(st, fontSizePx)
	ascent := fontSizePx * 0.8
	baseline := (lh-fontSizePx)/2 + ascent
	return FromFloat(baseline), FromFloat(baseline), true
}

// DefaultProvider is the process-wide fallback baseline provider.
var DefaultProvider BaselineProvider = defaultProvider{}

// Measurer is the companion trait to BaselineProvider: real glyph-advance
// text measurement, supplied by text.MetricsProvider (backed by
// github.com/fogleman/gg) when registered. Kept as a separate one-method
// interface rather than folded into BaselineProvider so a caller that only
// needs baselines — or only needs widths — can satisfy just the one it has.
type Measurer interface {
	MeasureWidth(ctx *query.Context, text string, st style.ComputedStyle, fontSizePx float64) Pixels
}

func lineHeightPx(st style.ComputedStyle, fontSizePx float64) float64 {
	v, ok := st.Get("line-height")
	if !ok || v == "normal" {
		return fontSizePx * 1.2
	}
	hasUnit := strings.HasSuffix(v, "px") || strings.HasSuffix(v, "em") ||
		strings.HasSuffix(v, "rem") || strings.HasSuffix(v, "%")
	if hasUnit {
		if px, ok := style.ParseLength(v, fontSizePx); ok {
			return px
		}
		return fontSizePx * 1.2
	}
	// A bare number is a multiplier of the element's own font size, not a
	// resolved pixel length.
	if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
		return f * fontSizePx
	}
	return fontSizePx * 1.2
}
