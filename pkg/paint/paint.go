// Package paint implements the display-list builder (L5): it walks the
// Fragment tree layout produces and emits a flat, ordered sequence of
// paint primitives per spec.md §4.7. It has no teacher equivalent as a
// separate pass — the teacher's pkg/render paints directly onto a
// github.com/fogleman/gg canvas inside one recursive function
// (paintStackingContext in render.go) — so this package keeps the
// teacher's stacking-context walk order and z-index partitioning, but
// produces a declarative DisplayItem list instead of calling gg
// immediately; cmd/render is the thing that turns the list into pixels
// (or, for the demo, into a text dump).
package paint

import (
	"sort"

	"corebrowser/pkg/dom"
	"corebrowser/pkg/layout"
	"corebrowser/pkg/style"
)

// DisplayItemKind discriminates one paint primitive, per spec.md §4: "rect-fill,
// border, text-run, push/pop clip, push/pop opacity, push/pop transform,
// push/pop stacking-context."
type DisplayItemKind int

const (
	RectFill DisplayItemKind = iota
	BorderEdge
	TextRun
	PushClip
	PopClip
	PushOpacity
	PopOpacity
	PushTransform
	PopTransform
	PushStackingContext
	PopStackingContext
)

// DisplayItem is one paint primitive. Only the fields relevant to Kind are
// populated; the rest are left zero.
type DisplayItem struct {
	Kind DisplayItemKind

	Node    dom.NodeKey
	HasNode bool

	Rect layout.Rect

	Color   string // CSS color string, resolved by the style cascade
	Opacity float64

	Text     string
	Baseline layout.Pixels

	Transform string // raw CSS transform function string, unparsed (no 2D/3D matrix math in this pass)
}

// DisplayList is the flat output of one display-list build: the items in
// paint order, plus a monotonically increasing Generation a consumer can
// diff against the previous build to implement partial repaint.
type DisplayList struct {
	Items      []DisplayItem
	Generation uint64
}

// CanvasBackground is the resolved CSS 2.1 §14.2 canvas-clear color, per
// the pinned Open Question in DESIGN.md: body's background-color if set
// and non-transparent, else html's, else opaque white. Color == "" means
// the caller found nothing to propagate and Build emits no canvas item at
// all (an empty root fragment, for instance).
type CanvasBackground struct {
	Rect  layout.Rect
	Color string
}

// Build walks frag (and its children) in document/stacking order and
// appends display items to a new DisplayList at the given generation
// number. styleOf resolves a fragment's originating node back to the
// ComputedStyle used to paint it (background-color, border-color, color,
// etc.) — layout.Fragment doesn't carry style itself, only geometry, so
// the caller (pkg/engine) supplies the lookup. canvas is painted as the
// very first item, beneath everything else, matching the teacher's
// drawCanvasBackground running before any stacking-context walk.
func Build(root *layout.Fragment, styleOf func(dom.NodeKey) (style.ComputedStyle, bool), generation uint64, canvas CanvasBackground) *DisplayList {
	dl := &DisplayList{Generation: generation}
	if canvas.Color != "" {
		dl.Items = append(dl.Items, DisplayItem{Kind: RectFill, Rect: canvas.Rect, Color: canvas.Color})
	}
	if root != nil {
		paintFragment(dl, root, styleOf)
	}
	// The one place fixed-point lengths become whole CSS pixels: every
	// item's rect and baseline is rounded to the nearest integer pixel.
	snap := func(p layout.Pixels) layout.Pixels { return layout.FromFloat(float64(p.Round())) }
	for i := range dl.Items {
		it := &dl.Items[i]
		it.Rect.X, it.Rect.Y = snap(it.Rect.X), snap(it.Rect.Y)
		it.Rect.Width, it.Rect.Height = snap(it.Rect.Width), snap(it.Rect.Height)
		it.Baseline = snap(it.Baseline)
	}
	return dl
}

func paintFragment(dl *DisplayList, frag *layout.Fragment, styleOf func(dom.NodeKey) (style.ComputedStyle, bool)) {
	var st style.ComputedStyle
	var hasStyle bool
	if frag.HasNode {
		st, hasStyle = styleOf(frag.Node)
	}

	pushedOpacity, pushedTransform, pushedClip, pushedStacking := false, false, false, false

	if hasStyle {
		if frag.Opaque {
			dl.Items = append(dl.Items, DisplayItem{Kind: PushStackingContext, Node: frag.Node, HasNode: true, Rect: frag.Rect})
			pushedStacking = true
		}
		if op := st.Opacity(); op < 1 {
			dl.Items = append(dl.Items, DisplayItem{Kind: PushOpacity, Opacity: op})
			pushedOpacity = true
		}
		if t := st.GetOr("transform", "none"); t != "none" {
			dl.Items = append(dl.Items, DisplayItem{Kind: PushTransform, Transform: t})
			pushedTransform = true
		}
		if st.GetOr("overflow", "visible") != "visible" {
			dl.Items = append(dl.Items, DisplayItem{Kind: PushClip, Rect: frag.Rect})
			pushedClip = true
		}

		if bg, ok := st.Get("background-color"); ok && bg != "" && bg != "transparent" {
			dl.Items = append(dl.Items, DisplayItem{Kind: RectFill, Node: frag.Node, HasNode: true, Rect: frag.Rect, Color: bg})
		}
		emitBorders(dl, frag, st)
	}

	if frag.Kind == layout.FragmentText {
		dl.Items = append(dl.Items, DisplayItem{
			Kind: TextRun, Node: frag.Node, HasNode: frag.HasNode, Rect: frag.Rect,
			Text: frag.Text, Baseline: frag.Baseline,
		})
	}

	paintChildrenInStackingOrder(dl, frag, styleOf)

	if pushedClip {
		dl.Items = append(dl.Items, DisplayItem{Kind: PopClip})
	}
	if pushedTransform {
		dl.Items = append(dl.Items, DisplayItem{Kind: PopTransform})
	}
	if pushedOpacity {
		dl.Items = append(dl.Items, DisplayItem{Kind: PopOpacity})
	}
	if pushedStacking {
		dl.Items = append(dl.Items, DisplayItem{Kind: PopStackingContext})
	}
}

// paintChildrenInStackingOrder implements CSS 2.1 Appendix E / spec.md
// §4.7's ordering: negative z-index children before the rest, then the
// children with no z-index or z-index 0 in document order, then positive
// z-index children — stably, so same-z-index children keep their document
// order.
func paintChildrenInStackingOrder(dl *DisplayList, frag *layout.Fragment, styleOf func(dom.NodeKey) (style.ComputedStyle, bool)) {
	children := frag.Children
	negative := make([]*layout.Fragment, 0)
	normal := make([]*layout.Fragment, 0)
	positive := make([]*layout.Fragment, 0)
	for _, c := range children {
		switch {
		case c.HasZIndex && c.ZIndex < 0:
			negative = append(negative, c)
		case c.HasZIndex && c.ZIndex > 0:
			positive = append(positive, c)
		default:
			normal = append(normal, c)
		}
	}
	sort.SliceStable(negative, func(i, j int) bool { return negative[i].ZIndex < negative[j].ZIndex })
	sort.SliceStable(positive, func(i, j int) bool { return positive[i].ZIndex < positive[j].ZIndex })

	for _, c := range negative {
		paintFragment(dl, c, styleOf)
	}
	for _, c := range normal {
		paintFragment(dl, c, styleOf)
	}
	for _, c := range positive {
		paintFragment(dl, c, styleOf)
	}
}

func emitBorders(dl *DisplayList, frag *layout.Fragment, st style.ComputedStyle) {
	fontSizePx := st.FontSizePx(16)
	widths := st.BorderWidth(fontSizePx)
	edges := []struct {
		width float64
		pct   bool
		name  string
		color string
	}{
		{widths.Top, widths.PercentTop, "top", st.GetOr("border-top-color", "")},
		{widths.Right, widths.PercentRight, "right", st.GetOr("border-right-color", "")},
		{widths.Bottom, widths.PercentBottom, "bottom", st.GetOr("border-bottom-color", "")},
		{widths.Left, widths.PercentLeft, "left", st.GetOr("border-left-color", "")},
	}
	styleName := st.GetOr("border-style", "none")
	if styleName == "none" {
		return
	}
	for _, e := range edges {
		if e.pct || e.width <= 0 {
			continue
		}
		dl.Items = append(dl.Items, DisplayItem{
			Kind: BorderEdge, Node: frag.Node, HasNode: frag.HasNode,
			Rect:  borderEdgeRect(frag.Rect, e.name, layout.FromFloat(e.width)),
			Color: e.color,
		})
	}
}

func borderEdgeRect(box layout.Rect, side string, width layout.Pixels) layout.Rect {
	switch side {
	case "top":
		return layout.Rect{X: box.X, Y: box.Y, Width: box.Width, Height: width}
	case "bottom":
		return layout.Rect{X: box.X, Y: box.Bottom() - width, Width: box.Width, Height: width}
	case "left":
		return layout.Rect{X: box.X, Y: box.Y, Width: width, Height: box.Height}
	default: // right
		return layout.Rect{X: box.Right() - width, Y: box.Y, Width: width, Height: box.Height}
	}
}
