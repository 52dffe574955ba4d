package layout

import (
	"strconv"
	"strings"

	"corebrowser/pkg/boxtree"
	"corebrowser/pkg/style"
)

// gridTrackSpec is one parsed grid-template-columns/rows entry: either a
// fixed length or an `fr` flex factor. `minmax()` and named lines are not
// supported — spec.md §4.6 narrows grid to track sizes and gaps. The
// template is split on whitespace and any token that is not an `fr` value,
// `auto` or a length becomes 1fr, logged nowhere since grid parsing has no
// diagnostic channel of its own; `minmax(a, b)` written with a space after
// the comma therefore yields two 1fr tracks.
type gridTrackSpec struct {
	fixed    Pixels
	hasFixed bool
	fr       float64
}

func parseGridTracks(raw string, fontSizePx float64) []gridTrackSpec {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	fields := strings.Fields(raw)
	specs := make([]gridTrackSpec, 0, len(fields))
	for _, f := range fields {
		specs = append(specs, parseGridTrack(f, fontSizePx))
	}
	return specs
}

func parseGridTrack(tok string, fontSizePx float64) gridTrackSpec {
	if strings.HasSuffix(tok, "fr") {
		f, err := strconv.ParseFloat(strings.TrimSuffix(tok, "fr"), 64)
		if err == nil {
			return gridTrackSpec{fr: f}
		}
	}
	if tok == "auto" {
		return gridTrackSpec{fr: 1}
	}
	if px, ok := style.ParseLength(tok, fontSizePx); ok {
		return gridTrackSpec{fixed: FromFloat(px), hasFixed: true}
	}
	return gridTrackSpec{fr: 1}
}

// resolveGridTracks turns parsed specs into concrete track sizes: fixed
// tracks keep their length, fr tracks split whatever's left over (clamped
// to zero if the fixed tracks already overflow available space). When
// available is indefinite, fr tracks fall back to zero width/height — the
// caller is expected to size the axis from content in that case instead.
func resolveGridTracks(specs []gridTrackSpec, available Pixels, gap Pixels, availableDefinite bool) []Pixels {
	if len(specs) == 0 {
		return nil
	}
	var fixedTotal Pixels
	var frTotal float64
	for _, s := range specs {
		if s.hasFixed {
			fixedTotal += s.fixed
		} else {
			frTotal += s.fr
		}
	}
	gapTotal := gap * Pixels(len(specs)-1)
	free := available - fixedTotal - gapTotal
	if free < 0 {
		free = 0
	}
	sizes := make([]Pixels, len(specs))
	for i, s := range specs {
		switch {
		case s.hasFixed:
			sizes[i] = s.fixed
		case !availableDefinite || frTotal == 0:
			sizes[i] = 0
		default:
			sizes[i] = Pixels(float64(free) * s.fr / frTotal)
		}
	}
	return sizes
}

// gridLine is a parsed `grid-column`/`grid-row` declaration: 1-indexed
// start line and the span width (default 1, auto-placed).
type gridLine struct {
	start int
	span  int
	auto  bool
}

func parseGridLine(raw string) gridLine {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "auto" {
		return gridLine{auto: true, span: 1}
	}
	parts := strings.Split(raw, "/")
	start, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || start < 1 {
		return gridLine{auto: true, span: 1}
	}
	if len(parts) < 2 {
		return gridLine{start: start - 1, span: 1}
	}
	endRaw := strings.TrimSpace(parts[1])
	if strings.HasPrefix(endRaw, "span") {
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(endRaw, "span")))
		if err != nil || n < 1 {
			n = 1
		}
		return gridLine{start: start - 1, span: n}
	}
	end, err := strconv.Atoi(endRaw)
	if err != nil || end <= start {
		return gridLine{start: start - 1, span: 1}
	}
	return gridLine{start: start - 1, span: end - start}
}

type gridCell struct {
	row, col       int
	rowSpan, colSpan int
	result         LayoutResult
	justify, align string
}

// layoutGridContainer implements a scoped CSS Grid: explicit track lists
// (fixed lengths and `fr` flex factors), gaps, row-major auto-placement,
// and per-item justify/align-self, grounded on the teacher's
// layoutGridContainer in layout/grid.go — generalized from the teacher's
// single definite-width-only track resolution to also distribute `fr`
// tracks, and from its mutable *Box tree to the Fragment tree. Subgrid,
// named grid lines/areas, and grid auto-flow: column are not implemented,
// per spec.md §4.6's explicit narrowing of grid's scope.
func layoutGridContainer(lc *Ctx, n *boxtree.Node, origin Point, cs ConstraintSpace, parentFontSizePx float64, isRoot bool) LayoutResult {
	fontSizePx := effectiveFontSize(n, parentFontSizePx)
	metrics := resolveMetricsFor(n, fontSizePx, cs)

	contentWidth := resolveAutoWidth(metrics, cs.AvailableInlineSize)
	contentWidth = metrics.ClampWidth(contentWidth)

	contentOrigin := Point{
		X: origin.X + metrics.Margin.Left + metrics.Border.Left + metrics.Padding.Left,
		Y: origin.Y + metrics.Border.Top + metrics.Padding.Top,
	}

	st := n.Style
	colGap := FromFloat(parseFloatOr(st.GetOr("column-gap", "0"), 0))
	rowGap := FromFloat(parseFloatOr(st.GetOr("row-gap", "0"), 0))
	justifyItemsDefault := st.GetOr("justify-items", "stretch")
	alignItemsDefault := st.GetOr("align-items", "stretch")

	colSpecs := parseGridTracks(st.GetOr("grid-template-columns", ""), fontSizePx)
	if len(colSpecs) == 0 {
		colSpecs = []gridTrackSpec{{fr: 1}}
	}
	colSizes := resolveGridTracks(colSpecs, contentWidth, colGap, true)

	rowSpecs := parseGridTracks(st.GetOr("grid-template-rows", ""), fontSizePx)
	var rowSizes []Pixels
	explicitRows := len(rowSpecs) > 0
	if explicitRows {
		rowAvail := contentWidth // placeholder; replaced below if height definite
		if metrics.HasContentHeight {
			rowAvail = metrics.ContentHeight
		}
		rowSizes = resolveGridTracks(rowSpecs, rowAvail, rowGap, metrics.HasContentHeight)
	}

	childCS := ConstraintSpace{AvailableBlockSize: MaxPixels}

	var cells []*gridCell
	autoRow, autoCol := 0, 0
	for _, c := range n.Children {
		if c.IsOutOfFlow {
			continue
		}
		colLine := gridLine{auto: true, span: 1}
		rowLine := gridLine{auto: true, span: 1}
		if c.HasKey {
			if v, ok := c.Style.Get("grid-column"); ok {
				colLine = parseGridLine(v)
			}
			if v, ok := c.Style.Get("grid-row"); ok {
				rowLine = parseGridLine(v)
			}
		}
		col, colSpan := colLine.start, colLine.span
		if colLine.auto {
			col, colSpan = autoCol, 1
		}
		row, rowSpan := rowLine.start, rowLine.span
		if rowLine.auto {
			row, rowSpan = autoRow, 1
		}

		cellWidth := trackSpan(colSizes, col, colSpan, colGap)
		childCS.AvailableInlineSize = cellWidth
		childFontSize := effectiveFontSize(c, fontSizePx)
		result := LayoutBox(lc, c, Point{}, childCS, childFontSize, false)

		justify := justifyItemsDefault
		align := alignItemsDefault
		if c.HasKey {
			if v := c.Style.GetOr("justify-self", "auto"); v != "auto" {
				justify = v
			}
			if v := c.Style.GetOr("align-self", "auto"); v != "auto" {
				align = v
			}
		}
		cells = append(cells, &gridCell{row: row, col: col, rowSpan: rowSpan, colSpan: colSpan, result: result, justify: justify, align: align})

		if rowLine.auto {
			autoCol = col + colSpan
			if autoCol >= len(colSizes) {
				autoCol = 0
				autoRow++
			}
		}
	}

	if !explicitRows {
		maxRow := 0
		for _, cell := range cells {
			if r := cell.row + cell.rowSpan; r > maxRow {
				maxRow = r
			}
		}
		rowSizes = make([]Pixels, maxRow)
		for _, cell := range cells {
			h := cell.result.BlockSize
			for r := cell.row; r < cell.row+cell.rowSpan && r < maxRow; r++ {
				if h > rowSizes[r] {
					rowSizes[r] = h
				}
			}
		}
	}

	colOffsets := trackOffsets(colSizes, colGap)
	rowOffsets := trackOffsets(rowSizes, rowGap)

	var childFragments []*Fragment
	for _, cell := range cells {
		cellWidth := trackSpan(colSizes, cell.col, cell.colSpan, colGap)
		cellHeight := trackSpan(rowSizes, cell.row, cell.rowSpan, rowGap)

		var cellX, cellY Pixels
		if cell.col < len(colOffsets) {
			cellX = colOffsets[cell.col]
		}
		if cell.row < len(rowOffsets) {
			cellY = rowOffsets[cell.row]
		}

		var offsetX, offsetY Pixels
		if cell.result.InlineSize < cellWidth {
			switch cell.justify {
			case "center":
				offsetX = (cellWidth - cell.result.InlineSize) / 2
			case "end":
				offsetX = cellWidth - cell.result.InlineSize
			}
		}
		if cell.result.BlockSize < cellHeight {
			switch cell.align {
			case "center":
				offsetY = (cellHeight - cell.result.BlockSize) / 2
			case "end", "flex-end":
				offsetY = cellHeight - cell.result.BlockSize
			}
		}

		shifted := shiftFragment(cell.result.Fragment, contentOrigin.X+cellX+offsetX, contentOrigin.Y+cellY+offsetY)
		if shifted != nil {
			childFragments = append(childFragments, shifted)
		}
	}

	var contentHeight Pixels
	for i, h := range rowSizes {
		contentHeight += h
		if i > 0 {
			contentHeight += rowGap
		}
	}
	if metrics.HasContentHeight {
		contentHeight = metrics.ContentHeight
	}
	contentHeight = metrics.ClampHeight(contentHeight)

	borderBoxRect := Rect{
		X:      origin.X + metrics.Margin.Left,
		Y:      origin.Y,
		Width:  metrics.Border.Left + metrics.Padding.Left + contentWidth + metrics.Padding.Right + metrics.Border.Right,
		Height: metrics.Border.Top + metrics.Padding.Top + contentHeight + metrics.Padding.Bottom + metrics.Border.Bottom,
	}

	placeOutOfFlowChildren(lc, n, contentOrigin, Rect{X: contentOrigin.X, Y: contentOrigin.Y, Width: contentWidth, Height: contentHeight}, childCS, fontSizePx, &childFragments)

	frag := &Fragment{Kind: FragmentGridContainer, Rect: borderBoxRect, Children: childFragments}
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

func trackSpan(sizes []Pixels, start, span int, gap Pixels) Pixels {
	var total Pixels
	for i := 0; i < span && start+i < len(sizes); i++ {
		if i > 0 {
			total += gap
		}
		total += sizes[start+i]
	}
	return total
}

func trackOffsets(sizes []Pixels, gap Pixels) []Pixels {
	offsets := make([]Pixels, len(sizes))
	var cursor Pixels
	for i, s := range sizes {
		offsets[i] = cursor
		cursor += s + gap
	}
	return offsets
}
