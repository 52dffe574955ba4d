package style

import (
	"strconv"
	"strings"
)

// ComputedStyle is the output of the cascade for one node: every property
// that was declared, inherited, or defaulted, fully resolved except for
// percentages (which layout resolves against a containing block) and
// custom properties (substituted before this point, see resolveCustomProperties).
// Grounded on the teacher's pkg/css/style.go Style type, generalized from
// wrapping a live *html.Node to being a plain immutable value keyed by
// dom.NodeKey at the cascade layer.
type ComputedStyle struct {
	props map[string]string
}

func newComputedStyle() ComputedStyle {
	return ComputedStyle{props: make(map[string]string)}
}

// Get returns a property's raw resolved value.
func (s ComputedStyle) Get(name string) (string, bool) {
	v, ok := s.props[name]
	return v, ok
}

// GetOr returns a property's value or def if unset.
func (s ComputedStyle) GetOr(name, def string) string {
	if v, ok := s.props[name]; ok {
		return v
	}
	return def
}

// Equal implements query.Equatable so the cascade query participates in
// early cutoff: a node whose computed style is byte-identical to its
// previous computation doesn't force its layout dependents to re-run.
func (s ComputedStyle) Equal(other any) bool {
	o, ok := other.(ComputedStyle)
	if !ok || len(s.props) != len(o.props) {
		return false
	}
	for k, v := range s.props {
		if o.props[k] != v {
			return false
		}
	}
	return true
}

// Display values.
const (
	DisplayBlock      = "block"
	DisplayInline     = "inline"
	DisplayInlineBlock = "inline-block"
	DisplayFlex       = "flex"
	DisplayInlineFlex = "inline-flex"
	DisplayGrid       = "grid"
	DisplayInlineGrid = "inline-grid"
	DisplayNone       = "none"
	DisplayContents   = "contents"
)

func (s ComputedStyle) Display() string {
	return s.GetOr("display", DisplayInline)
}

// Position values.
const (
	PositionStatic   = "static"
	PositionRelative = "relative"
	PositionAbsolute = "absolute"
	PositionFixed    = "fixed"
	PositionSticky   = "sticky"
)

func (s ComputedStyle) Position() string {
	return s.GetOr("position", PositionStatic)
}

func (s ComputedStyle) IsOutOfFlow() bool {
	p := s.Position()
	return p == PositionAbsolute || p == PositionFixed
}

func (s ComputedStyle) Float() string {
	return s.GetOr("float", "none")
}

// BoxEdge holds four resolved side lengths in CSS pixels (percentages are
// returned as Percent, resolved by layout against the containing block).
type BoxEdge struct {
	Top, Right, Bottom, Left float64
	PercentTop, PercentRight, PercentBottom, PercentLeft bool
}

func (s ComputedStyle) boxEdge(prefix string, fontSizePx float64) BoxEdge {
	key := func(side string) string {
		if prefix == "border" {
			return "border-" + side + "-width"
		}
		return prefix + "-" + side
	}
	get := func(side string) (float64, bool) {
		v, ok := s.props[key(side)]
		if !ok {
			return 0, false
		}
		return ParseLength(v, fontSizePx)
	}
	pct := func(side string) bool {
		v := s.props[key(side)]
		return strings.HasSuffix(v, "%")
	}
	top, _ := get("top")
	right, _ := get("right")
	bottom, _ := get("bottom")
	left, _ := get("left")
	return BoxEdge{
		Top: top, Right: right, Bottom: bottom, Left: left,
		PercentTop: pct("top"), PercentRight: pct("right"),
		PercentBottom: pct("bottom"), PercentLeft: pct("left"),
	}
}

func (s ComputedStyle) Margin(fontSizePx float64) BoxEdge  { return s.boxEdge("margin", fontSizePx) }
func (s ComputedStyle) Padding(fontSizePx float64) BoxEdge { return s.boxEdge("padding", fontSizePx) }
func (s ComputedStyle) BorderWidth(fontSizePx float64) BoxEdge {
	return s.boxEdge("border", fontSizePx)
}

func (s ComputedStyle) FontSizePx(parentFontSizePx float64) float64 {
	v := s.GetOr("font-size", "16px")
	if px, ok := ParseLength(v, parentFontSizePx); ok {
		return px
	}
	return parentFontSizePx
}

func (s ComputedStyle) ZIndex() (int, bool) {
	v, ok := s.props["z-index"]
	if !ok || v == "auto" {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return n, true
}

func (s ComputedStyle) Opacity() float64 {
	v, ok := s.props["opacity"]
	if !ok {
		return 1
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 1
	}
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func (s ComputedStyle) CreatesStackingContext() bool {
	if s.IsOutOfFlow() || s.Position() == PositionRelative || s.Position() == PositionSticky {
		if _, ok := s.ZIndex(); ok {
			return true
		}
	}
	if s.Opacity() < 1 {
		return true
	}
	if t := s.GetOr("transform", "none"); t != "none" {
		return true
	}
	return false
}

// ParseLength resolves a CSS length string to pixels. fontSizePx is the
// node's own resolved font size, needed for "em"; percentages are left
// unresolved (ok=false) since they depend on a containing block layout
// doesn't have yet at cascade time.
func ParseLength(v string, fontSizePx float64) (float64, bool) {
	v = strings.TrimSpace(v)
	switch {
	case strings.HasSuffix(v, "px"):
		f, err := strconv.ParseFloat(strings.TrimSuffix(v, "px"), 64)
		return f, err == nil
	case strings.HasSuffix(v, "rem"):
		f, err := strconv.ParseFloat(strings.TrimSuffix(v, "rem"), 64)
		return f * 16, err == nil
	case strings.HasSuffix(v, "em"):
		f, err := strconv.ParseFloat(strings.TrimSuffix(v, "em"), 64)
		return f * fontSizePx, err == nil
	case strings.HasSuffix(v, "%"):
		return 0, false
	case v == "0":
		return 0, true
	case v == "auto" || v == "":
		return 0, false
	default:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
}

// inheritableProperties lists properties that, absent an explicit
// declaration on a node, copy down from the parent's computed value
// instead of resetting to the property's initial value. Grounded on the
// teacher's pkg/css/cascade.go inheritableProperties table.
var inheritableProperties = map[string]bool{
	"color":           true,
	"font-size":       true,
	"font-weight":     true,
	"font-style":      true,
	"font-family":     true,
	"line-height":     true,
	"text-align":      true,
	"visibility":      true,
	"list-style-type": true,
	"cursor":          true,
}

// initialValues gives the CSS-spec initial value for properties this
// engine resolves at the style layer (layout-only properties like
// flex-grow default inside pkg/layout instead).
var initialValues = map[string]string{
	"display":       "inline",
	"position":      "static",
	"float":         "none",
	"color":         "#000000",
	"font-size":     "16px",
	"font-weight":   "normal",
	"text-align":    "left",
	"z-index":       "auto",
	"opacity":       "1",
	"transform":     "none",
	"overflow":      "visible",
	"visibility":    "visible",
	"margin-top":    "0", "margin-right": "0", "margin-bottom": "0", "margin-left": "0",
	"padding-top": "0", "padding-right": "0", "padding-bottom": "0", "padding-left": "0",
	"border-top-width": "0", "border-right-width": "0", "border-bottom-width": "0", "border-left-width": "0",
}
