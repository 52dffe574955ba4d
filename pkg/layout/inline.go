package layout

import (
	"strings"

	"corebrowser/pkg/boxtree"
)

// inlineFormattingResult is the output of one inline formatting context
// pass: the assembled line-box fragments, the total content height they
// consumed, and the block's reported baseline (its last line's baseline,
// per spec.md §4.6's "last baseline" rule for inline content).
type inlineFormattingResult struct {
	lineFragments []*Fragment
	height        Pixels
	lastBaseline  Pixels
	hasBaseline   bool
}

// inlineToken is one unit of inline content already measured and ready to
// place on a line: either a run of text or an atomic inline-level box
// (inline-block, inline-flex, inline-grid) laid out in isolation and
// shifted into place afterward.
type inlineToken struct {
	isText  bool
	text    string
	width   Pixels
	ascent  Pixels // baseline offset measured down from this token's own top edge
	height  Pixels
	frag    *Fragment // pre-built fragment for atomic tokens, nil for text
}

// layoutInlineFormattingContext assembles children — already known to be
// entirely inline-level, per boxtree's normalization guarantee — into line
// boxes wrapped at cs.AvailableInlineSize (float exclusions shift where a
// line's tokens are placed and aligned, but do not narrow the width a line
// breaks at), aligning every token on a line to a
// shared baseline. Grounded on spec.md §4.6's inline formatting context
// description; the teacher has no equivalent pass (its text package
// measures and wraps in one step inside layout_text.go) so the split
// between flatten/break/align here follows spec.md's own three-part
// description rather than a teacher file.
func layoutInlineFormattingContext(lc *Ctx, children []*boxtree.Node, origin Point, cs ConstraintSpace, fontSizePx float64) inlineFormattingResult {
	var tokens []inlineToken
	for _, c := range children {
		tokens = append(tokens, flattenInline(lc, c, fontSizePx, cs)...)
	}
	trimEdgeSpace(&tokens)
	if len(tokens) == 0 {
		return inlineFormattingResult{}
	}

	lines := breakLines(tokens, cs)

	var lineFragments []*Fragment
	var cursorY Pixels
	var lastBaseline Pixels
	for _, line := range lines {
		lineHeight, baseline := lineMetrics(line)

		leftEdge, rightEdge := origin.X, origin.X+cs.AvailableInlineSize
		if cs.Exclusions != nil {
			l, r := cs.Exclusions.AvailableAt(origin.Y+cursorY, cs.AvailableInlineSize)
			leftEdge, rightEdge = origin.X+l, origin.X+r
		}

		var cursorX Pixels = leftEdge
		var lineWidth Pixels
		tokenFrags := make([]*Fragment, 0, len(line))
		for _, t := range line {
			x := cursorX
			y := origin.Y + cursorY + (baseline - t.ascent)
			if t.isText {
				tokenFrags = append(tokenFrags, &Fragment{Kind: FragmentText, Rect: Rect{X: x, Y: y, Width: t.width, Height: t.height}, Text: t.text})
			} else if t.frag != nil {
				tokenFrags = append(tokenFrags, shiftFragment(t.frag, x, y))
			}
			cursorX += t.width
			lineWidth += t.width
		}
		alignLine(tokenFrags, cs.TextAlign, leftEdge, rightEdge, lineWidth)

		lineFragments = append(lineFragments, &Fragment{
			Kind:        FragmentLineBox,
			Rect:        Rect{X: origin.X, Y: origin.Y + cursorY, Width: cs.AvailableInlineSize, Height: lineHeight},
			Children:    tokenFrags,
			Baseline:    baseline,
			HasBaseline: true,
		})
		lastBaseline = cursorY + baseline
		cursorY += lineHeight
	}

	return inlineFormattingResult{lineFragments: lineFragments, height: cursorY, lastBaseline: lastBaseline, hasBaseline: true}
}

func flattenInline(lc *Ctx, n *boxtree.Node, parentFontSizePx float64, cs ConstraintSpace) []inlineToken {
	fontSizePx := effectiveFontSize(n, parentFontSizePx)
	switch n.Kind {
	case boxtree.KindText:
		return textTokens(lc, n, fontSizePx)
	case boxtree.KindInline:
		var out []inlineToken
		for _, c := range n.Children {
			out = append(out, flattenInline(lc, c, fontSizePx, cs)...)
		}
		return out
	default: // inline-block, inline-flex, inline-grid: atomic inline-level boxes
		result := LayoutBox(lc, n, Point{}, cs, parentFontSizePx, false)
		ascent := result.BlockSize
		if result.HasBaseline {
			ascent = result.Baseline
		}
		return []inlineToken{{isText: false, width: result.InlineSize, height: result.BlockSize, ascent: ascent, frag: result.Fragment}}
	}
}

func textTokens(lc *Ctx, n *boxtree.Node, fontSizePx float64) []inlineToken {
	words := strings.Fields(n.Text)
	if len(words) == 0 {
		return nil
	}
	ascent, height := resolveTextMetrics(lc, n, fontSizePx)
	spaceWidth := measureWord(lc, n, " ", fontSizePx)
	out := make([]inlineToken, 0, len(words)*2-1)
	for i, w := range words {
		if i > 0 {
			out = append(out, inlineToken{isText: true, text: " ", width: spaceWidth, ascent: ascent, height: height})
		}
		out = append(out, inlineToken{isText: true, text: w, width: measureWord(lc, n, w, fontSizePx), ascent: ascent, height: height})
	}
	return out
}

// measureWord prefers the registered Measurer (real glyph advances via
// text.MetricsProvider) and falls back to a rough average-character-width
// heuristic when none is registered, per spec.md §6.
func measureWord(lc *Ctx, n *boxtree.Node, s string, fontSizePx float64) Pixels {
	if lc != nil && lc.Measurer != nil && n.HasKey {
		return lc.Measurer.MeasureWidth(lc.Q, s, n.Style, fontSizePx)
	}
	return measureText(s, fontSizePx)
}

// measureText is a stand-in glyph-advance heuristic for the common case
// where no real text-shaping collaborator is registered: spec.md §6 treats
// font shaping as an external concern (text.MetricsProvider, backed by
// github.com/fogleman/gg, supplies real advances when present); this keeps
// line-breaking numerically stable without one.
func measureText(s string, fontSizePx float64) Pixels {
	return FromFloat(float64(len([]rune(s))) * fontSizePx * 0.55)
}

// resolveTextMetrics asks the registered BaselineProvider for a text
// node's ascent/line-height (real font metrics when text.MetricsProvider
// is registered, spec.md §6's 80%-of-font-size heuristic otherwise); a
// text node that has no provider-reported baseline (ok=false) still needs
// a line-box height, so it falls back to the same heuristic directly.
func resolveTextMetrics(lc *Ctx, n *boxtree.Node, fontSizePx float64) (ascent, height Pixels) {
	if lc != nil && lc.Provider != nil && n.HasKey {
		if first, _, ok := lc.Provider.Baselines(lc.Q, n.Key, n.Style, fontSizePx); ok {
			lh := lineHeightPx(n.Style, fontSizePx)
			return first, FromFloat(lh)
		}
	}
	return textLineMetrics(fontSizePx)
}

func textLineMetrics(fontSizePx float64) (ascent, height Pixels) {
	lh := fontSizePx * 1.2
	a := fontSizePx * 0.8
	baseline := (lh-fontSizePx)/2 + a
	return FromFloat(baseline), FromFloat(lh)
}

func trimEdgeSpace(tokens *[]inlineToken) {
	t := *tokens
	for len(t) > 0 && t[0].isText && t[0].text == " " {
		t = t[1:]
	}
	for len(t) > 0 && t[len(t)-1].isText && t[len(t)-1].text == " " {
		t = t[:len(t)-1]
	}
	*tokens = t
}

func breakLines(tokens []inlineToken, cs ConstraintSpace) [][]inlineToken {
	var lines [][]inlineToken
	var current []inlineToken
	var width Pixels
	for _, t := range tokens {
		if len(current) == 0 && t.isText && t.text == " " {
			continue
		}
		if !cs.NoWrap && len(current) > 0 && width+t.width > cs.AvailableInlineSize {
			lines = append(lines, trimTrailingSpace(current))
			current = nil
			width = 0
			if t.isText && t.text == " " {
				continue
			}
		}
		current = append(current, t)
		width += t.width
	}
	if len(current) > 0 {
		lines = append(lines, trimTrailingSpace(current))
	}
	return lines
}

func trimTrailingSpace(line []inlineToken) []inlineToken {
	for len(line) > 0 && line[len(line)-1].isText && line[len(line)-1].text == " " {
		line = line[:len(line)-1]
	}
	return line
}

func lineMetrics(line []inlineToken) (height, baseline Pixels) {
	var above, below Pixels
	for _, t := range line {
		if t.ascent > above {
			above = t.ascent
		}
		if d := t.height - t.ascent; d > below {
			below = d
		}
	}
	return above + below, above
}

func alignLine(frags []*Fragment, align string, leftEdge, rightEdge, lineWidth Pixels) {
	var shift Pixels
	switch align {
	case "right":
		shift = rightEdge - leftEdge - lineWidth
	case "center":
		shift = (rightEdge - leftEdge - lineWidth) / 2
	default:
		return
	}
	if shift <= 0 {
		return
	}
	for i, f := range frags {
		frags[i] = translateFragment(f, shift, 0)
	}
}
