// internal/layout/sizes.go
package layout

import (
	"math"
	"sort"
)

// SizeModel exposes per-item extents and cumulative offsets along one axis.
// Offsets are monotonically non-decreasing and Offset(0) is always 0.
type SizeModel interface {
	// Len returns the number of items.
	Len() int
	// Size returns the extent of item i.
	Size(i int) float64
	// Offset returns the start position of item i. Offset(Len()) is the total size.
	Offset(i int) float64
	// TotalSize returns the sum of all extents.
	TotalSize() float64
	// IndexAt returns the item containing pos, clamped into [0, Len()-1].
	// It returns -1 when the model is empty.
	IndexAt(pos float64) int
}

// -- Fixed Sizes --

// FixedSizes is the O(1) model where every row shares one height.
type FixedSizes struct {
	Count  int
	Height float64
}

// NewFixedSizes builds a fixed model. Non-positive heights fall back to DefaultRowHeight.
func NewFixedSizes(count int, height float64) FixedSizes {
	if height <= 0 || math.IsNaN(height) || math.IsInf(height, 0) {
		height = DefaultRowHeight
	}
	if count < 0 {
		count = 0
	}
	return FixedSizes{Count: count, Height: height}
}

func (f FixedSizes) Len() int             { return f.Count }
func (f FixedSizes) Size(int) float64     { return f.Height }
func (f FixedSizes) TotalSize() float64   { return float64(f.Count) * f.Height }
func (f FixedSizes) Offset(i int) float64 { return float64(clampi(i, 0, f.Count)) * f.Height }

func (f FixedSizes) IndexAt(pos float64) int {
	if f.Count == 0 {
		return -1
	}
	if f.Height <= 0 {
		return 0
	}
	return clampi(int(math.Floor(pos/f.Height)), 0, f.Count-1)
}

// -- Variable Sizes --

// VariableSizes keeps a size per item plus a cumulative offset array
// (offsets[0] = 0, offsets[i+1] = offsets[i] + sizes[i]).
// Sizes start as estimates and are replaced by measurements as rows render.
type VariableSizes struct {
	sizes    []float64
	measured []bool
	offsets  []float64
}

// NewVariableSizes builds the offset array from an estimator. The estimator is
// called once per index; negative or NaN estimates are treated as zero.
func NewVariableSizes(count int, estimate func(i int) float64) *VariableSizes {
	if estimate == nil {
		return NewVariableSizesFrom(count, nil)
	}
	return NewVariableSizesFrom(count, func(i int) (float64, bool) { return estimate(i), false })
}

// NewVariableSizesFrom is NewVariableSizes for callers that already hold real
// measurements for some items, such as sizes retained across a re-sort. The
// source reports each size and whether it was measured.
func NewVariableSizesFrom(count int, source func(i int) (size float64, measured bool)) *VariableSizes {
	if count < 0 {
		count = 0
	}
	v := &VariableSizes{
		sizes:    make([]float64, count),
		measured: make([]bool, count),
		offsets:  make([]float64, count+1),
	}
	for i := 0; i < count; i++ {
		s := DefaultRowHeight
		if source != nil {
			var m bool
			s, m = source(i)
			s = clampNonNegative(s)
			v.measured[i] = m
		}
		v.sizes[i] = s
		v.offsets[i+1] = v.offsets[i] + s
	}
	return v
}

func (v *VariableSizes) Len() int { return len(v.sizes) }

func (v *VariableSizes) Size(i int) float64 {
	if i < 0 || i >= len(v.sizes) {
		return 0
	}
	return v.sizes[i]
}

func (v *VariableSizes) Offset(i int) float64 {
	return v.offsets[clampi(i, 0, len(v.sizes))]
}

func (v *VariableSizes) TotalSize() float64 { return v.offsets[len(v.sizes)] }

// IsMeasured reports whether item i holds a real measurement rather than an estimate.
func (v *VariableSizes) IsMeasured(i int) bool {
	return i >= 0 && i < len(v.measured) && v.measured[i]
}

// IndexAt binary-searches for the item whose [offset, offset+size) span holds pos.
func (v *VariableSizes) IndexAt(pos float64) int {
	n := len(v.sizes)
	if n == 0 {
		return -1
	}
	// First item whose end edge lies beyond pos.
	i := sort.Search(n, func(i int) bool { return v.offsets[i+1] > pos })
	return clampi(i, 0, n-1)
}

// Measure records the real size of item i. When it differs from the stored
// value only the offsets after i are shifted; nothing before i is touched.
// It returns the delta applied to the total size.
func (v *VariableSizes) Measure(i int, size float64) float64 {
	if i < 0 || i >= len(v.sizes) {
		return 0
	}
	size = clampNonNegative(size)
	v.measured[i] = true
	delta := size - v.sizes[i]
	if delta == 0 {
		return 0
	}
	v.sizes[i] = size
	for j := i + 1; j < len(v.offsets); j++ {
		v.offsets[j] += delta
	}
	return delta
}
