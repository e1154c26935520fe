// internal/layout/layout.go
package layout

import "math"

// -- Constants and Configuration --

const (
	// DefaultOverscan is the number of extra rows materialized on each side of
	// the visible window. It is bounded independently of the dataset size.
	DefaultOverscan = 5
	// DefaultRowHeight is used when neither a fixed height nor an estimator is configured.
	DefaultRowHeight = 32.0
)

// -- Core Structures --

// Axis represents the direction an offset search runs along.
type Axis int

const (
	// Horizontal is the column axis (scrollLeft / containerWidth).
	Horizontal Axis = iota
	// Vertical is the row axis (scrollTop / containerHeight).
	Vertical
)

// String implements fmt.Stringer.
func (a Axis) String() string {
	if a == Horizontal {
		return "horizontal"
	}
	return "vertical"
}

// Viewport is the scroll position and container size of the grid body.
// It is mutated only by scroll and resize events.
type Viewport struct {
	ScrollTop       float64
	ScrollLeft      float64
	ContainerHeight float64
	ContainerWidth  float64
}

// GetMainStart is an axis-agnostic helper for the scroll offset.
func (v Viewport) GetMainStart(axis Axis) float64 {
	if axis == Horizontal {
		return v.ScrollLeft
	}
	return v.ScrollTop
}

// GetMainSize is an axis-agnostic helper for the container extent.
func (v Viewport) GetMainSize(axis Axis) float64 {
	if axis == Horizontal {
		return v.ContainerWidth
	}
	return v.ContainerHeight
}

// SetMainStart is an axis-agnostic setter for the scroll offset.
func (v *Viewport) SetMainStart(axis Axis, pos float64) {
	if axis == Horizontal {
		v.ScrollLeft = pos
	} else {
		v.ScrollTop = pos
	}
}

// Clamp returns a copy of the viewport with its offsets clamped into the
// scrollable extent. Container sizes below zero become zero. Out-of-range
// input is never an error.
func (v Viewport) Clamp(totalHeight, totalWidth float64) Viewport {
	v.ContainerHeight = clampNonNegative(v.ContainerHeight)
	v.ContainerWidth = clampNonNegative(v.ContainerWidth)
	v.ScrollTop = clampf(v.ScrollTop, 0, MaxScroll(totalHeight, v.ContainerHeight))
	v.ScrollLeft = clampf(v.ScrollLeft, 0, MaxScroll(totalWidth, v.ContainerWidth))
	return v
}

// MaxScroll returns the maximum valid scroll offset for a content extent.
func MaxScroll(total, container float64) float64 {
	m := total - container
	if m < 0 {
		return 0
	}
	return m
}

// Range is an inclusive index window over the derived view.
// Empty is the explicit signal for a zero-length view; Start and End are
// meaningless when it is set.
type Range struct {
	Start int
	End   int
	Empty bool
}

// EmptyRange is returned whenever the derived view has no rows.
var EmptyRange = Range{Empty: true}

// Len returns the number of indices in the range.
func (r Range) Len() int {
	if r.Empty {
		return 0
	}
	return r.End - r.Start + 1
}

// Contains reports whether idx falls inside the range.
func (r Range) Contains(idx int) bool {
	return !r.Empty && idx >= r.Start && idx <= r.End
}

// -- Helpers --

func clampf(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampNonNegative(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}

func clampi(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
