package layout

import (
	"corebrowser/pkg/boxtree"
)

// LayoutBox dispatches to the formatting context matching n's box kind
// and returns the positioned LayoutResult (size, baseline, margin strut,
// fragment) for the box whose BORDER-box top-left is origin — margins are
// never folded into a box's own origin; the caller (the block-stacking
// loop below, or the top-level entry point for the root) is responsible
// for spacing siblings apart by their collapsed margins, which is what
// lets margins collapse across a sibling boundary without the box in the
// middle ever materializing the uncollapsed sum. Grounded on the
// teacher's pkg/layout dispatch in layout_main.go, generalized from a
// mutable *Box tree to an immutable Fragment tree keyed by dom.NodeKey.
func LayoutBox(lc *Ctx, n *boxtree.Node, origin Point, cs ConstraintSpace, parentFontSizePx float64, isRoot bool) LayoutResult {
	switch n.Kind {
	case boxtree.KindFlexContainer, boxtree.KindInlineFlexContainer:
		return layoutFlexContainer(lc, n, origin, cs, parentFontSizePx, isRoot)
	case boxtree.KindGridContainer, boxtree.KindInlineGridContainer:
		return layoutGridContainer(lc, n, origin, cs, parentFontSizePx, isRoot)
	default:
		return layoutBlockContainer(lc, n, origin, cs, parentFontSizePx, isRoot)
	}
}

func effectiveFontSize(n *boxtree.Node, parentFontSizePx float64) float64 {
	if !n.HasKey {
		return parentFontSizePx
	}
	return n.Style.FontSizePx(parentFontSizePx)
}

func resolveMetricsFor(n *boxtree.Node, fontSizePx float64, cs ConstraintSpace) BoxMetrics {
	if !n.HasKey {
		return BoxMetrics{}
	}
	return ResolveMetrics(n.Style, fontSizePx, cs.AvailableInlineSize, cs.AvailableBlockSize, cs.AvailableBlockSize < MaxPixels)
}

// shouldCollapse reports whether n participates in normal sibling margin
// collapsing at all, per spec.md §4.6 and the teacher's margins.go
// shouldCollapseMargins: floated, out-of-flow, and non-visible-overflow
// boxes never collapse (each already roots its own box independent of
// the vertical flow).
func shouldCollapse(n *boxtree.Node) bool {
	if !n.HasKey {
		return true
	}
	if n.Style.Float() != "none" || n.Style.IsOutOfFlow() {
		return false
	}
	if n.Style.GetOr("overflow", "visible") != "visible" {
		return false
	}
	return true
}

// layoutBlockContainer lays out a block/anonymous-block box: resolves its
// own box model, then either runs the inline formatting context (if every
// child is inline-level, per boxtree's normalization guarantee) or stacks
// block-level children vertically with margin collapsing (spec.md §4.6).
func layoutBlockContainer(lc *Ctx, n *boxtree.Node, origin Point, cs ConstraintSpace, parentFontSizePx float64, isRoot bool) LayoutResult {
	fontSizePx := effectiveFontSize(n, parentFontSizePx)
	metrics := resolveMetricsFor(n, fontSizePx, cs)

	contentWidth := resolveAutoWidth(metrics, cs.AvailableInlineSize)
	contentWidth = metrics.ClampWidth(contentWidth)

	leftMargin, rightMargin := metrics.Margin.Left, metrics.Margin.Right
	if metrics.AutoMarginLeft || metrics.AutoMarginRight {
		free := cs.AvailableInlineSize - contentWidth - metrics.Padding.Horizontal() - metrics.Border.Horizontal() - leftMargin - rightMargin
		switch {
		case metrics.AutoMarginLeft && metrics.AutoMarginRight:
			half := free / 2
			leftMargin += half
			rightMargin += free - half
		case metrics.AutoMarginLeft:
			leftMargin += free
		case metrics.AutoMarginRight:
			rightMargin += free
		}
	}

	contentOrigin := Point{
		X: origin.X + leftMargin + metrics.Border.Left + metrics.Padding.Left,
		Y: origin.Y + metrics.Border.Top + metrics.Padding.Top,
	}

	establishesBFC := isRoot || (n.HasKey && EstablishesBFC(n.Style, false))
	childCS := cs.WithInlineSize(contentWidth).WithBlockSize(MaxPixels)
	if establishesBFC {
		childCS.BFCOffset = contentOrigin
		childCS.Exclusions = &ExclusionSpace{}
	}

	var childFragments []*Fragment
	var contentHeight Pixels
	var lastBaseline Pixels
	hasBaseline := false
	var trailingStrut MarginStrut

	if len(n.Children) > 0 && boxtree.IsInlineLevel(n.Children[0].Kind) {
		inlineCS := childCS
		inlineCS.TextAlign = containerTextAlign(n)
		inlineResult := layoutInlineFormattingContext(lc, n.Children, contentOrigin, inlineCS, fontSizePx)
		childFragments = inlineResult.lineFragments
		contentHeight = inlineResult.height
		lastBaseline = inlineResult.lastBaseline
		hasBaseline = inlineResult.hasBaseline
	} else {
		var cursorY Pixels
		var strut MarginStrut
		for _, child := range n.Children {
			if child.IsOutOfFlow {
				continue
			}
			childFontSize := effectiveFontSize(child, fontSizePx)
			childMetrics := resolveMetricsFor(child, childFontSize, childCS)

			if shouldCollapse(child) {
				strut = strut.Include(childMetrics.Margin.Top)
				cursorY += strut.Collapsed()
				strut = MarginStrut{}
			} else {
				cursorY += strut.Collapsed()
				strut = MarginStrut{}
				cursorY += childMetrics.Margin.Top
			}

			childOrigin := Point{X: contentOrigin.X, Y: contentOrigin.Y + cursorY}
			result := LayoutBox(lc, child, childOrigin, childCS, fontSizePx, false)
			if result.Fragment != nil {
				childFragments = append(childFragments, result.Fragment)
			}
			cursorY += result.BlockSize

			if shouldCollapse(child) {
				strut = result.EndMarginStrut
			} else {
				cursorY += childMetrics.Margin.Bottom
				strut = MarginStrut{}
			}
			lastBaseline = result.Baseline
			hasBaseline = result.HasBaseline
		}
		cursorY += strut.Collapsed()
		trailingStrut = MarginStrut{}
		contentHeight = cursorY
	}

	if metrics.HasContentHeight {
		contentHeight = metrics.ContentHeight
	}
	contentHeight = metrics.ClampHeight(contentHeight)

	borderBoxRect := Rect{
		X:      origin.X + leftMargin,
		Y:      origin.Y,
		Width:  metrics.Border.Left + metrics.Padding.Left + contentWidth + metrics.Padding.Right + metrics.Border.Right,
		Height: metrics.Border.Top + metrics.Padding.Top + contentHeight + metrics.Padding.Bottom + metrics.Border.Bottom,
	}

	placeOutOfFlowChildren(lc, n, contentOrigin, Rect{X: contentOrigin.X, Y: contentOrigin.Y, Width: contentWidth, Height: contentHeight}, childCS, fontSizePx, &childFragments)

	frag := &Fragment{Kind: FragmentBlock, Rect: borderBoxRect, Children: childFragments, Baseline: lastBaseline, HasBaseline: hasBaseline}
	if n.HasKey {
		frag.Node, frag.HasNode = n.Key, true
		if z, ok := n.Style.ZIndex(); ok {
			frag.ZIndex, frag.HasZIndex = z, true
		}
		frag.Opaque = n.Style.CreatesStackingContext()
	}

	endStrut := trailingStrut.Include(metrics.Margin.Bottom)
	return LayoutResult{
		InlineSize:     borderBoxRect.Width,
		BlockSize:      borderBoxRect.Height,
		Baseline:       lastBaseline,
		HasBaseline:    hasBaseline,
		EndMarginStrut: endStrut,
		EstablishesBFC: establishesBFC,
		Fragment:       frag,
	}
}

// containerTextAlign finds the text-align value that should govern an
// inline formatting context rooted at n. Anonymous blocks carry no style
// of their own, but text-align is inheritable (properties.go's
// inheritableProperties), so any real-element child already carries the
// correct inherited value through the cascade regardless of the anonymous
// wrapping boxtree introduced afterward.
func containerTextAlign(n *boxtree.Node) string {
	if n.HasKey {
		return n.Style.GetOr("text-align", "left")
	}
	if len(n.Children) > 0 {
		return findInlineTextAlign(n.Children[0])
	}
	return "left"
}

func findInlineTextAlign(n *boxtree.Node) string {
	if n.HasKey {
		return n.Style.GetOr("text-align", "left")
	}
	for _, c := range n.Children {
		return findInlineTextAlign(c)
	}
	return "left"
}

func resolveAutoWidth(metrics BoxMetrics, available Pixels) Pixels {
	if metrics.HasContentWidth {
		return metrics.ContentWidth
	}
	w := available - metrics.Margin.Horizontal() - metrics.Border.Horizontal() - metrics.Padding.Horizontal()
	if w < 0 {
		w = 0
	}
	return w
}
