// Package layout implements the constraint-space driven layout engine
// (L4): block flow with margin collapsing, inline line boxes, flex
// main/cross-axis distribution, and grid track sizing, producing a
// Fragment tree from the box tree pkg/boxtree builds. Grounded on the
// teacher's pkg/layout (types.go, layout_block.go, layout_flex.go,
// grid.go, margins.go, absolute_positioning.go), generalized from a
// *Box pointer tree keyed by *html.Node to an immutable Fragment tree
// keyed by dom.NodeKey, and from bare float64 lengths to the 1/64px
// fixed-point Pixels type pinned in SPEC_FULL.md §3.
package layout

import (
	"math"

	"corebrowser/pkg/dom"
)

// Pixels is a length in 1/64 CSS pixel fixed-point units, the single
// sub-pixel representation this engine uses internally per the Open
// Question pinned in spec.md §9. Conversion to integer CSS pixels only
// happens at paint.Build, which rounds every display item's rect and
// text-run baseline rather than flooring or truncating.
type Pixels int64

const pixelScale = 64

// FromFloat converts a float64 CSS-pixel length to fixed point.
func FromFloat(f float64) Pixels {
	if math.IsNaN(f) {
		return 0
	}
	return Pixels(math.Round(f * pixelScale))
}

// Float returns the length as a float64 in CSS pixels.
func (p Pixels) Float() float64 { return float64(p) / pixelScale }

// Round returns the length rounded to the nearest integer CSS pixel.
func (p Pixels) Round() int64 { return int64(math.Round(p.Float())) }

// FloorToGrid converts a float64 CSS-pixel length to fixed point like
// FromFloat, but floors onto the 1/64 px grid instead of rounding. Flex
// uses it to quantize the per-slot auto-margin share in justifyMainAxis.
func FloorToGrid(f float64) Pixels {
	return Pixels(math.Floor(f * pixelScale))
}

func maxP(a, b Pixels) Pixels {
	if a > b {
		return a
	}
	return b
}

func minP(a, b Pixels) Pixels {
	if a < b {
		return a
	}
	return b
}

func clampP(v, lo, hi Pixels, hasHi bool) Pixels {
	if v < lo {
		v = lo
	}
	if hasHi && v > hi {
		v = hi
	}
	return v
}

// Point is a 2D position in fixed-point CSS pixels.
type Point struct{ X, Y Pixels }

// Rect is an axis-aligned box in fixed-point CSS pixels.
type Rect struct {
	X, Y, Width, Height Pixels
}

func (r Rect) Right() Pixels  { return r.X + r.Width }
func (r Rect) Bottom() Pixels { return r.Y + r.Height }

// Edge holds four resolved side lengths (margin, padding, or border-width).
type Edge struct {
	Top, Right, Bottom, Left Pixels
}

func (e Edge) Horizontal() Pixels { return e.Left + e.Right }
func (e Edge) Vertical() Pixels   { return e.Top + e.Bottom }

// Exclusion is a float's footprint within a block formatting context,
// recorded so inline layout can narrow line boxes around it.
type Exclusion struct {
	Rect Rect
	Side string // "left" or "right"
}

// ExclusionSpace is the immutable set of floats in effect for a BFC.
// Add returns a new ExclusionSpace rather than mutating the receiver, so
// a constraint space handed to one subtree can't leak float state into a
// sibling that never saw it.
type ExclusionSpace struct {
	exclusions []Exclusion
}

func (es *ExclusionSpace) Add(e Exclusion) *ExclusionSpace {
	next := make([]Exclusion, 0, len(es.exclusions)+1)
	next = append(next, es.exclusions...)
	next = append(next, e)
	return &ExclusionSpace{exclusions: next}
}

// AvailableAt returns the [left, right) inline extent still open at
// block-axis offset y within available inline size inlineSize, after
// narrowing around every exclusion whose rect spans y.
func (es *ExclusionSpace) AvailableAt(y, inlineSize Pixels) (left, right Pixels) {
	left, right = 0, inlineSize
	if es == nil {
		return
	}
	for _, ex := range es.exclusions {
		if y < ex.Rect.Y || y >= ex.Rect.Bottom() {
			continue
		}
		if ex.Side == "left" {
			left = maxP(left, ex.Rect.Right())
		} else {
			right = minP(right, ex.Rect.X)
		}
	}
	return
}

// ConstraintSpace packages the inputs passed from parent to child during
// layout: available sizes, the block formatting context's origin, and the
// floats currently in effect within it. Immutable; children derive new
// spaces via With* helpers rather than mutating the parent's.
type ConstraintSpace struct {
	AvailableInlineSize Pixels
	AvailableBlockSize  Pixels // may be "indefinite" (MaxPixels) for auto height
	BFCOffset           Point
	Exclusions          *ExclusionSpace
	TextAlign           string
	NoWrap              bool
}

// MaxPixels stands in for an indefinite available block size.
const MaxPixels Pixels = math.MaxInt64 / 2

func (cs ConstraintSpace) WithInlineSize(size Pixels) ConstraintSpace {
	cs.AvailableInlineSize = size
	return cs
}

func (cs ConstraintSpace) WithBlockSize(size Pixels) ConstraintSpace {
	cs.AvailableBlockSize = size
	return cs
}

// MarginStrut is the accumulated positive-max/negative-min margin carried
// across an adjoining-margin boundary (spec.md glossary). Collapsed()
// yields the single collapsed gap per the margin-collapse identity in
// spec.md §8: max(0, positive_max) + min(0, negative_min).
type MarginStrut struct {
	PositiveMax Pixels
	NegativeMin Pixels
}

func (s MarginStrut) Include(margin Pixels) MarginStrut {
	if margin >= 0 {
		s.PositiveMax = maxP(s.PositiveMax, margin)
	} else {
		s.NegativeMin = minP(s.NegativeMin, margin)
	}
	return s
}

func (s MarginStrut) Collapsed() Pixels {
	return maxP(0, s.PositiveMax) + minP(0, s.NegativeMin)
}

func (s MarginStrut) IsEmpty() bool {
	return s.PositiveMax == 0 && s.NegativeMin == 0
}

// LayoutResult is the upward-flowing output of laying out one child within
// its parent's constraint space: the size it settled on, its baselines for
// inline participation, the margin strut still open at its trailing edge,
// and whether it established its own block formatting context.
type LayoutResult struct {
	InlineSize     Pixels
	BlockSize      Pixels
	Baseline       Pixels
	HasBaseline    bool
	EndMarginStrut MarginStrut
	EstablishesBFC bool
	Fragment       *Fragment
}

// FragmentKind discriminates a Fragment's generating box type, used by
// pkg/paint to decide what display items to emit.
type FragmentKind int

const (
	FragmentBlock FragmentKind = iota
	FragmentInline
	FragmentText
	FragmentLineBox
	FragmentFlexContainer
	FragmentGridContainer
	FragmentAnonymousBlock
)

// Fragment is the positioned output of layout for one box: spec.md's
// Fragment/LayoutRect. Rect is a top-level-relative coordinate once the
// enclosing layout pass returns; flex and grid items, atomic inlines,
// out-of-flow boxes and aligned line content are laid out first and then
// moved into place with shiftFragment/translateFragment.
type Fragment struct {
	Node        dom.NodeKey
	HasNode     bool // false for anonymous boxes and synthesized line boxes
	Kind        FragmentKind
	Rect        Rect
	Baseline    Pixels
	HasBaseline bool
	Text        string
	Children    []*Fragment
	ZIndex      int
	HasZIndex   bool
	Opaque      bool // true if this fragment establishes a stacking context
}

// MinMaxSizes is the intrinsic content-based sizing pair from CSS Sizing
// Level 3: the narrowest size without overflow (MinContent) and the
// preferred size without wrapping (MaxContent).
type MinMaxSizes struct {
	MinContent Pixels
	MaxContent Pixels
}
