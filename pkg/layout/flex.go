package layout

import (
	"sort"
	"strconv"
	"strings"

	"corebrowser/pkg/boxtree"
	"corebrowser/pkg/style"
)

// flexItem is one flex container child's working state during the
// resolve-flexible-lengths pass, grounded on the teacher's FlexItem type
// in layout/types.go and the algorithm in layout/layout_flex.go, adapted
// from float64 Box fields to the fixed-point Pixels/Fragment types and
// from a two-pass (intrinsic layout, then flex-basis assignment) model to
// a single trial layout whose outer box is resized in place once the main
// size is resolved — children inside a flex item are not reflowed to the
// item's final resolved size, a scoped simplification of the teacher's
// algorithm kept for time budget.
type flexItem struct {
	node        *boxtree.Node
	result      LayoutResult
	grow        float64
	shrink      float64
	order       int
	flexBasis   Pixels
	hypothetical Pixels
	minMain     Pixels
	hasMinMain  bool
	maxMain     Pixels
	hasMaxMain  bool
	mainSize    Pixels
	crossSize   Pixels
	autoMarginMainStart, autoMarginMainEnd   bool
	autoMarginCrossStart, autoMarginCrossEnd bool
	margin      Edge
}

func parseFloatOr(s string, def float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return def
	}
	return f
}

func parseIntOr(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}

// layoutFlexContainer implements CSS Flexbox single-/multi-line main-axis
// distribution per spec.md §4.6, grounded on the teacher's layoutFlex.
func layoutFlexContainer(lc *Ctx, n *boxtree.Node, origin Point, cs ConstraintSpace, parentFontSizePx float64, isRoot bool) LayoutResult {
	fontSizePx := effectiveFontSize(n, parentFontSizePx)
	metrics := resolveMetricsFor(n, fontSizePx, cs)

	contentWidth := resolveAutoWidth(metrics, cs.AvailableInlineSize)
	contentWidth = metrics.ClampWidth(contentWidth)

	contentOrigin := Point{
		X: origin.X + metrics.Margin.Left + metrics.Border.Left + metrics.Padding.Left,
		Y: origin.Y + metrics.Border.Top + metrics.Padding.Top,
	}

	st := n.Style
	direction := st.GetOr("flex-direction", "row")
	wrap := st.GetOr("flex-wrap", "nowrap")
	justify := st.GetOr("justify-content", "flex-start")
	alignItemsDefault := st.GetOr("align-items", "stretch")
	isRow := direction == "row" || direction == "row-reverse"
	isReverse := direction == "row-reverse" || direction == "column-reverse"

	rowGap := FromFloat(parseFloatOr(st.GetOr("row-gap", "0"), 0))
	colGap := FromFloat(parseFloatOr(st.GetOr("column-gap", "0"), 0))
	var mainGap, crossGap Pixels
	if isRow {
		mainGap, crossGap = colGap, rowGap
	} else {
		mainGap, crossGap = rowGap, colGap
	}

	var mainSizeAvail Pixels
	mainDefinite := true
	if isRow {
		mainSizeAvail = contentWidth
	} else if metrics.HasContentHeight {
		mainSizeAvail = metrics.ContentHeight
	} else {
		mainSizeAvail = MaxPixels
		mainDefinite = false
	}

	childCS := ConstraintSpace{AvailableInlineSize: contentWidth, AvailableBlockSize: MaxPixels}

	var items []*flexItem
	for _, c := range n.Children {
		if c.IsOutOfFlow {
			continue
		}
		childFontSize := effectiveFontSize(c, fontSizePx)
		childMetrics := resolveMetricsFor(c, childFontSize, childCS)
		trial := LayoutBox(lc, c, Point{}, childCS, fontSizePx, false)

		item := &flexItem{
			node:   c,
			result: trial,
			grow:   0,
			shrink: 1,
			margin: childMetrics.Margin,
		}
		if c.HasKey {
			item.grow = parseFloatOr(c.Style.GetOr("flex-grow", "0"), 0)
			item.shrink = parseFloatOr(c.Style.GetOr("flex-shrink", "1"), 1)
			item.order = parseIntOr(c.Style.GetOr("order", "0"), 0)
			item.autoMarginMainStart, item.autoMarginMainEnd, item.autoMarginCrossStart, item.autoMarginCrossEnd = autoMarginFlags(c.Style, isRow)
		}

		basisRaw := "auto"
		if c.HasKey {
			basisRaw = c.Style.GetOr("flex-basis", "auto")
		}
		switch {
		case basisRaw == "auto":
			if isRow {
				if w, ok := styleLength(c, "width", childFontSize); ok {
					item.flexBasis = w
				} else {
					item.flexBasis = trial.InlineSize
				}
			} else {
				if h, ok := styleLength(c, "height", childFontSize); ok {
					item.flexBasis = h
				} else {
					item.flexBasis = trial.BlockSize
				}
			}
		case strings.HasSuffix(basisRaw, "%"):
			pct := parseFloatOr(strings.TrimSuffix(basisRaw, "%"), 0)
			if mainDefinite {
				item.flexBasis = Pixels(float64(mainSizeAvail) * pct / 100)
			}
		default:
			if f, ok := style.ParseLength(basisRaw, childFontSize); ok {
				item.flexBasis = FromFloat(f)
			} else {
				item.flexBasis = trial.InlineSize
			}
		}

		if isRow {
			item.minMain, item.hasMinMain = childMetrics.MinWidth, childMetrics.HasMinWidth
			item.maxMain, item.hasMaxMain = childMetrics.MaxWidth, childMetrics.HasMaxWidth
		} else {
			item.minMain, item.hasMinMain = childMetrics.MinHeight, childMetrics.HasMinHeight
			item.maxMain, item.hasMaxMain = childMetrics.MaxHeight, childMetrics.HasMaxHeight
		}

		item.hypothetical = item.flexBasis
		if item.hasMinMain {
			item.hypothetical = maxP(item.hypothetical, item.minMain)
		}
		if item.hypothetical < 0 {
			item.hypothetical = 0
		}
		items = append(items, item)
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].order < items[j].order })

	lines := collectFlexLines(items, mainSizeAvail, mainGap, wrap != "nowrap" && mainDefinite)
	for _, line := range lines {
		resolveFlexibleLengths(line, mainSizeAvail, mainGap, mainDefinite)
	}

	// Cross sizes per item and per line.
	for _, line := range lines {
		for _, item := range line {
			if isRow {
				item.crossSize = item.result.BlockSize
			} else {
				item.crossSize = item.result.InlineSize
			}
		}
	}
	lineCross := make([]Pixels, len(lines))
	for i, line := range lines {
		var mx Pixels
		for _, item := range line {
			if c := item.crossSize + item.margin.Top + item.margin.Bottom; c > mx {
				mx = c
			}
		}
		lineCross[i] = mx
	}

	// align-items: stretch — absorb the line's cross size when the item has
	// no explicit cross-axis size.
	for li, line := range lines {
		for _, item := range line {
			align := resolveFlexAlign(alignItemsDefault, item.node)
			if align != "stretch" {
				continue
			}
			axis := "height"
			if !isRow {
				axis = "width"
			}
			if _, explicit := styleLength(item.node, axis, fontSizePx); explicit {
				continue
			}
			item.crossSize = lineCross[li] - item.margin.Top - item.margin.Bottom
			if item.crossSize < 0 {
				item.crossSize = 0
			}
		}
	}

	// Main-axis positions: justify-content.
	var mainPositions [][]Pixels
	for _, line := range lines {
		mainPositions = append(mainPositions, justifyMainAxis(line, mainSizeAvail, mainGap, justify))
	}

	// Assemble fragments.
	var childFragments []*Fragment
	var crossCursor Pixels
	for li, line := range lines {
		for ii, item := range line {
			mainPos := mainPositions[li][ii]
			align := resolveFlexAlign(alignItemsDefault, item.node)
			crossPos := crossCursor
			switch {
			case item.autoMarginCrossStart && item.autoMarginCrossEnd:
				free := lineCross[li] - item.crossSize - item.margin.Top - item.margin.Bottom
				if free < 0 {
					free = 0
				}
				crossPos += free / 2
			case align == "flex-end":
				crossPos += lineCross[li] - item.crossSize - item.margin.Top - item.margin.Bottom
			case align == "center":
				crossPos += (lineCross[li] - item.crossSize - item.margin.Top - item.margin.Bottom) / 2
			}
			crossPos += item.margin.Top

			var x, y Pixels
			if isRow {
				x, y = mainPos, crossPos
			} else {
				x, y = crossPos, mainPos
			}
			resized := resizeFragmentMain(item.result.Fragment, isRow, item.mainSize, item.crossSize)
			shifted := shiftFragment(resized, contentOrigin.X+x, contentOrigin.Y+y)
			if shifted != nil {
				childFragments = append(childFragments, shifted)
			}
		}
		crossCursor += lineCross[li]
		if li < len(lines)-1 {
			crossCursor += crossGap
		}
	}
	if isReverse {
		childFragments = reverseMainAxis(childFragments, isRow, mainSizeAvail, mainDefinite, contentOrigin)
	}

	contentHeight := crossCursor
	if isRow {
		if metrics.HasContentHeight {
			contentHeight = metrics.ContentHeight
		}
	} else {
		contentHeight = crossCursor
		if metrics.HasContentHeight {
			contentHeight = metrics.ContentHeight
		}
	}
	if isRow {
		contentHeight = metrics.ClampHeight(contentHeight)
	}

	borderBoxRect := Rect{
		X:      origin.X + metrics.Margin.Left,
		Y:      origin.Y,
		Width:  metrics.Border.Left + metrics.Padding.Left + contentWidth + metrics.Padding.Right + metrics.Border.Right,
		Height: metrics.Border.Top + metrics.Padding.Top + contentHeight + metrics.Padding.Bottom + metrics.Border.Bottom,
	}

	placeOutOfFlowChildren(lc, n, contentOrigin, Rect{X: contentOrigin.X, Y: contentOrigin.Y, Width: contentWidth, Height: contentHeight}, childCS, fontSizePx, &childFragments)

	frag := &Fragment{Kind: FragmentFlexContainer, Rect: borderBoxRect, Children: childFragments}
	if n.HasKey {
		frag.Node, frag.HasNode = n.Key, true
		if z, ok := n.Style.ZIndex(); ok {
			frag.ZIndex, frag.HasZIndex = z, true
		}
		frag.Opaque = n.Style.CreatesStackingContext()
	}

	return LayoutResult{
		InlineSize:     borderBoxRect.Width,
		BlockSize:      borderBoxRect.Height,
		EndMarginStrut: MarginStrut{}.Include(metrics.Margin.Bottom),
		EstablishesBFC: true,
		Fragment:       frag,
	}
}

func styleLength(n *boxtree.Node, prop string, fontSizePx float64) (Pixels, bool) {
	if !n.HasKey {
		return 0, false
	}
	v, ok := n.Style.Get(prop)
	if !ok || strings.TrimSpace(v) == "auto" || strings.HasSuffix(v, "%") {
		return 0, false
	}
	f, ok := style.ParseLength(v, fontSizePx)
	if !ok {
		return 0, false
	}
	return FromFloat(f), true
}

func autoMarginFlags(st style.ComputedStyle, isRow bool) (mainStart, mainEnd, crossStart, crossEnd bool) {
	isAuto := func(prop string) bool { return strings.TrimSpace(st.GetOr(prop, "")) == "auto" }
	if isRow {
		return isAuto("margin-left"), isAuto("margin-right"), isAuto("margin-top"), isAuto("margin-bottom")
	}
	return isAuto("margin-top"), isAuto("margin-bottom"), isAuto("margin-left"), isAuto("margin-right")
}

func resolveFlexAlign(containerDefault string, n *boxtree.Node) string {
	if n != nil && n.HasKey {
		if v := n.Style.GetOr("align-self", "auto"); v != "auto" {
			return v
		}
	}
	return containerDefault
}

func collectFlexLines(items []*flexItem, mainSize, mainGap Pixels, wrapEnabled bool) [][]*flexItem {
	if !wrapEnabled || len(items) == 0 {
		return [][]*flexItem{items}
	}
	var lines [][]*flexItem
	var current []*flexItem
	var lineMain Pixels
	for _, item := range items {
		outer := item.hypothetical + item.margin.Top + item.margin.Bottom
		gap := Pixels(0)
		if len(current) > 0 {
			gap = mainGap
		}
		if lineMain+gap+outer > mainSize && len(current) > 0 {
			lines = append(lines, current)
			current = nil
			lineMain = 0
			gap = 0
		}
		current = append(current, item)
		lineMain += gap + outer
	}
	if len(current) > 0 {
		lines = append(lines, current)
	}
	return lines
}

// resolveFlexibleLengths implements CSS Flexbox §9.7's iterative grow/shrink
// resolution, grounded on the teacher's resolveFlexibleLengths.
func resolveFlexibleLengths(line []*flexItem, available, mainGap Pixels, mainDefinite bool) {
	if len(line) == 0 {
		return
	}
	if !mainDefinite {
		for _, item := range line {
			item.mainSize = item.hypothetical
		}
		return
	}
	totalGaps := mainGap * Pixels(len(line)-1)
	effectiveAvailable := available - totalGaps

	var sumHypothetical Pixels
	for _, item := range line {
		sumHypothetical += item.hypothetical + item.margin.Top + item.margin.Bottom
	}
	growing := sumHypothetical < effectiveAvailable

	target := make([]Pixels, len(line))
	frozen := make([]bool, len(line))
	for i, item := range line {
		target[i] = item.hypothetical
		if growing && item.grow == 0 {
			frozen[i] = true
		} else if !growing && item.shrink == 0 {
			frozen[i] = true
		}
	}

	for iter := 0; iter < 8; iter++ {
		allFrozen := true
		for _, f := range frozen {
			if !f {
				allFrozen = false
				break
			}
		}
		if allFrozen {
			break
		}

		// Frozen items count at their target size, unfrozen ones at their
		// flex base size.
		var used Pixels
		for i, item := range line {
			size := item.flexBasis
			if frozen[i] {
				size = target[i]
			}
			used += size + item.margin.Top + item.margin.Bottom
		}
		free := effectiveAvailable - used

		if growing {
			var totalGrow float64
			for i, item := range line {
				if !frozen[i] {
					totalGrow += item.grow
				}
			}
			if totalGrow > 0 {
				for i, item := range line {
					if !frozen[i] {
						target[i] = item.flexBasis + Pixels(float64(free)*(item.grow/totalGrow))
					}
				}
			}
		} else {
			var totalScaled float64
			for i, item := range line {
				if !frozen[i] {
					totalScaled += item.shrink * float64(item.flexBasis)
				}
			}
			if totalScaled > 0 {
				for i, item := range line {
					if !frozen[i] {
						scaled := item.shrink * float64(item.flexBasis) / totalScaled
						target[i] = item.flexBasis + Pixels(float64(free)*scaled)
					}
				}
			}
		}

		var violation Pixels
		diff := make([]Pixels, len(line))
		for i, item := range line {
			if frozen[i] {
				continue
			}
			clamped := target[i]
			if item.hasMinMain {
				clamped = maxP(clamped, item.minMain)
			}
			if item.hasMaxMain {
				clamped = minP(clamped, item.maxMain)
			}
			if clamped < 0 {
				clamped = 0
			}
			diff[i] = clamped - target[i]
			violation += diff[i]
			target[i] = clamped
		}
		// CSS Flexbox §9.7 step 4: a zero total violation freezes every item;
		// a positive one freezes the items raised to their minimum, a negative
		// one the items lowered to their maximum. The rest share the remaining
		// free space again on the next iteration.
		for i := range frozen {
			if violation == 0 || (violation > 0 && diff[i] > 0) || (violation < 0 && diff[i] < 0) {
				frozen[i] = true
			}
		}
	}

	for i, item := range line {
		item.mainSize = target[i]
	}
}

func justifyMainAxis(line []*flexItem, mainSize, mainGap Pixels, justify string) []Pixels {
	var total Pixels
	for i, item := range line {
		total += item.mainSize + item.margin.Top + item.margin.Bottom
		if i > 0 {
			total += mainGap
		}
	}
	free := mainSize - total
	autoCount := 0
	for _, item := range line {
		if item.autoMarginMainStart {
			autoCount++
		}
		if item.autoMarginMainEnd {
			autoCount++
		}
	}
	// Auto margins absorb all positive free space before justify-content
	// sees any; each auto-margin slot gets an equal share, floored to the
	// fixed-point grid.
	var autoSlot Pixels
	if autoCount > 0 && free > 0 {
		autoSlot = FloorToGrid(free.Float() / float64(autoCount))
		free = 0
	}

	var offset, spacing Pixels
	n := len(line)
	switch justify {
	case "flex-end":
		if free > 0 {
			offset = free
		}
	case "center":
		if free > 0 {
			offset = free / 2
		}
	case "space-between":
		if free > 0 && n > 1 {
			spacing = free / Pixels(n-1)
		}
	case "space-around":
		if free > 0 && n > 0 {
			spacing = free / Pixels(n)
			offset = spacing / 2
		}
	case "space-evenly":
		if free > 0 && n > 0 {
			spacing = free / Pixels(n+1)
			offset = spacing
		}
	}

	positions := make([]Pixels, n)
	cursor := offset
	for i, item := range line {
		if item.autoMarginMainStart {
			cursor += autoSlot
		}
		positions[i] = cursor
		cursor += item.mainSize + item.margin.Top + item.margin.Bottom + spacing
		if item.autoMarginMainEnd {
			cursor += autoSlot
		}
		if i < n-1 {
			cursor += mainGap
		}
	}
	return positions
}

// resizeFragmentMain overrides a trial fragment's outer box-size in place
// (see flexItem's doc comment on why this stands in for a second, fully
// reflowed layout pass).
func resizeFragmentMain(frag *Fragment, isRow bool, mainSize, crossSize Pixels) *Fragment {
	if frag == nil {
		return nil
	}
	out := *frag
	if isRow {
		if mainSize > 0 {
			out.Rect.Width = mainSize
		}
		if crossSize > 0 {
			out.Rect.Height = crossSize
		}
	} else {
		if crossSize > 0 {
			out.Rect.Width = crossSize
		}
		if mainSize > 0 {
			out.Rect.Height = mainSize
		}
	}
	return &out
}

func reverseMainAxis(frags []*Fragment, isRow bool, mainSize Pixels, mainDefinite bool, contentOrigin Point) []*Fragment {
	if !mainDefinite || len(frags) == 0 {
		return frags
	}
	out := make([]*Fragment, len(frags))
	for i, f := range frags {
		if f == nil {
			continue
		}
		if isRow {
			newX := contentOrigin.X + mainSize - (f.Rect.X - contentOrigin.X) - f.Rect.Width
			out[i] = translateFragment(f, newX-f.Rect.X, 0)
		} else {
			newY := contentOrigin.Y + mainSize - (f.Rect.Y - contentOrigin.Y) - f.Rect.Height
			out[i] = translateFragment(f, 0, newY-f.Rect.Y)
		}
	}
	return out
}
