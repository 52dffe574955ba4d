package layout

import (
	"strconv"
	"strings"

	"corebrowser/pkg/style"
)

// BoxMetrics is a node's resolved box model for one layout pass: margin,
// padding, border edges in fixed-point pixels, and its own content-box
// size where the cascade's declared width/height are definite.
type BoxMetrics struct {
	Margin, Padding, Border Edge

	AutoMarginLeft, AutoMarginRight, AutoMarginTop, AutoMarginBottom bool

	ContentWidth    Pixels
	HasContentWidth bool
	ContentHeight   Pixels
	HasContentHeight bool

	MinWidth  Pixels
	HasMinWidth bool
	MaxWidth  Pixels
	HasMaxWidth bool
	MinHeight Pixels
	HasMinHeight bool
	MaxHeight Pixels
	HasMaxHeight bool

	BorderBox bool // box-sizing: border-box
}

func resolveLen(raw string, fontSizePx float64, percentBase Pixels, percentBaseDefinite bool) (Pixels, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "auto" {
		return 0, false
	}
	if strings.HasSuffix(raw, "%") {
		if !percentBaseDefinite {
			return 0, false
		}
		pct, err := strconv.ParseFloat(strings.TrimSuffix(raw, "%"), 64)
		if err != nil {
			return 0, false
		}
		return Pixels(float64(percentBase) * pct / 100), true
	}
	f, ok := style.ParseLength(raw, fontSizePx)
	if !ok {
		return 0, false
	}
	return FromFloat(f), true
}

func edgeFromStyle(e style.BoxEdge, fontSizePx float64, percentBase Pixels, percentBaseDefinite bool) Edge {
	resolve := func(v float64, isPct bool) Pixels {
		if isPct {
			if !percentBaseDefinite {
				return 0
			}
			return Pixels(float64(percentBase) * v / 100)
		}
		return FromFloat(v)
	}
	return Edge{
		Top:    resolve(e.Top, e.PercentTop),
		Right:  resolve(e.Right, e.PercentRight),
		Bottom: resolve(e.Bottom, e.PercentBottom),
		Left:   resolve(e.Left, e.PercentLeft),
	}
}

// ResolveMetrics computes a node's box model given the containing block's
// inline size (always definite) and block size (definite only if the
// containing block's own height was definite — percentage heights that
// lack a definite containing-block height resolve as auto, per spec.md
// §4.6's block formatting context rules).
func ResolveMetrics(st style.ComputedStyle, fontSizePx float64, containingInline Pixels, containingBlockHeight Pixels, containingBlockHeightDefinite bool) BoxMetrics {
	// Percentages on margin/padding (including the vertical sides) always
	// resolve against the containing block's inline size, a CSS quirk
	// carried from the teacher's css.BoxEdge percentage handling.
	rawMargin := st.Margin(fontSizePx)
	rawPadding := st.Padding(fontSizePx)
	rawBorder := st.BorderWidth(fontSizePx)

	m := BoxMetrics{
		Margin:  edgeFromStyle(rawMargin, fontSizePx, containingInline, true),
		Padding: edgeFromStyle(rawPadding, fontSizePx, containingInline, true),
		Border:  edgeFromStyle(rawBorder, fontSizePx, containingInline, true),
	}

	if v, ok := st.Get("margin-left"); ok && strings.TrimSpace(v) == "auto" {
		m.AutoMarginLeft = true
	}
	if v, ok := st.Get("margin-right"); ok && strings.TrimSpace(v) == "auto" {
		m.AutoMarginRight = true
	}
	if v, ok := st.Get("margin-top"); ok && strings.TrimSpace(v) == "auto" {
		m.AutoMarginTop = true
	}
	if v, ok := st.Get("margin-bottom"); ok && strings.TrimSpace(v) == "auto" {
		m.AutoMarginBottom = true
	}

	m.BorderBox = st.GetOr("box-sizing", "content-box") == "border-box"

	if w, ok := st.Get("width"); ok {
		if px, isDef := resolveLen(w, fontSizePx, containingInline, true); isDef {
			if m.BorderBox {
				px -= m.Padding.Horizontal() + m.Border.Horizontal()
				if px < 0 {
					px = 0
				}
			}
			m.ContentWidth, m.HasContentWidth = px, true
		}
	}
	if h, ok := st.Get("height"); ok {
		if px, isDef := resolveLen(h, fontSizePx, containingBlockHeight, containingBlockHeightDefinite); isDef {
			if m.BorderBox {
				px -= m.Padding.Vertical() + m.Border.Vertical()
				if px < 0 {
					px = 0
				}
			}
			m.ContentHeight, m.HasContentHeight = px, true
		}
	}
	if v, ok := st.Get("min-width"); ok {
		if px, isDef := resolveLen(v, fontSizePx, containingInline, true); isDef {
			m.MinWidth, m.HasMinWidth = px, true
		}
	}
	if v, ok := st.Get("max-width"); ok {
		if px, isDef := resolveLen(v, fontSizePx, containingInline, true); isDef {
			m.MaxWidth, m.HasMaxWidth = px, true
		}
	}
	if v, ok := st.Get("min-height"); ok {
		if px, isDef := resolveLen(v, fontSizePx, containingBlockHeight, containingBlockHeightDefinite); isDef {
			m.MinHeight, m.HasMinHeight = px, true
		}
	}
	if v, ok := st.Get("max-height"); ok {
		if px, isDef := resolveLen(v, fontSizePx, containingBlockHeight, containingBlockHeightDefinite); isDef {
			m.MaxHeight, m.HasMaxHeight = px, true
		}
	}
	return m
}

func (m BoxMetrics) ClampWidth(w Pixels) Pixels {
	if m.HasMinWidth {
		w = maxP(w, m.MinWidth)
	}
	if m.HasMaxWidth {
		w = minP(w, m.MaxWidth)
	}
	if w < 0 {
		w = 0
	}
	return w
}

func (m BoxMetrics) ClampHeight(h Pixels) Pixels {
	if m.HasMinHeight {
		h = maxP(h, m.MinHeight)
	}
	if m.HasMaxHeight {
		h = minP(h, m.MaxHeight)
	}
	if h < 0 {
		h = 0
	}
	return h
}

// EstablishesBFC reports whether a box with this style and out-of-flow
// status roots a new block formatting context, per spec.md §4.6.
func EstablishesBFC(st style.ComputedStyle, isRoot bool) bool {
	if isRoot {
		return true
	}
	if st.GetOr("overflow", "visible") != "visible" {
		return true
	}
	if st.Float() != "none" {
		return true
	}
	if st.IsOutOfFlow() {
		return true
	}
	if st.GetOr("display", "") == "flow-root" {
		return true
	}
	return false
}
