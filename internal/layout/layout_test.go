// internal/layout/layout_test.go
package layout_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/vgrid/internal/layout"
)

// -- Test Helpers --

// assertValidRange checks the range invariant for a non-empty model.
func assertValidRange(t *testing.T, r layout.Range, n int) {
	t.Helper()
	require.False(t, r.Empty, "non-empty model must not produce an empty range")
	assert.GreaterOrEqual(t, r.Start, 0)
	assert.LessOrEqual(t, r.Start, r.End)
	assert.Less(t, r.End, n)
}

// -- Fixed Mode --

func TestVisibleRange_Fixed(t *testing.T) {
	t.Run("thousand rows scrolled one page", func(t *testing.T) {
		sizes := layout.NewFixedSizes(1000, 40)
		vp := layout.Viewport{ScrollTop: 400, ContainerHeight: 400}

		r := layout.VisibleRange(vp, sizes, 5)

		assert.Equal(t, 5, r.Start)
		assert.Equal(t, 25, r.End)
		assert.Equal(t, 21, r.Len())
	})

	t.Run("top of list clamps overscan at zero", func(t *testing.T) {
		sizes := layout.NewFixedSizes(1000, 40)
		r := layout.VisibleRange(layout.Viewport{ContainerHeight: 400}, sizes, 5)
		assert.Equal(t, 0, r.Start)
		assert.Equal(t, 15, r.End)
	})

	t.Run("bottom of list clamps at last index", func(t *testing.T) {
		sizes := layout.NewFixedSizes(1000, 40)
		vp := layout.Viewport{ScrollTop: sizes.TotalSize() - 400, ContainerHeight: 400}
		r := layout.VisibleRange(vp, sizes, 5)
		assert.Equal(t, 985, r.Start)
		assert.Equal(t, 999, r.End)
	})

	t.Run("negative scroll is clamped, not rejected", func(t *testing.T) {
		sizes := layout.NewFixedSizes(10, 40)
		r := layout.VisibleRange(layout.Viewport{ScrollTop: -500, ContainerHeight: 80}, sizes, 0)
		assert.Equal(t, layout.Range{Start: 0, End: 2}, r)
	})

	t.Run("negative overscan is treated as zero", func(t *testing.T) {
		sizes := layout.NewFixedSizes(100, 10)
		r := layout.VisibleRange(layout.Viewport{ScrollTop: 100, ContainerHeight: 50}, sizes, -3)
		assert.Equal(t, layout.Range{Start: 10, End: 15}, r)
	})

	t.Run("zero height falls back to the default row height", func(t *testing.T) {
		sizes := layout.NewFixedSizes(3, 0)
		assert.Equal(t, layout.DefaultRowHeight, sizes.Height)
	})
}

func TestVisibleRange_Empty(t *testing.T) {
	r := layout.VisibleRange(layout.Viewport{ContainerHeight: 400}, layout.NewFixedSizes(0, 40), 5)
	assert.True(t, r.Empty)
	assert.Equal(t, 0, r.Len())
	assert.False(t, r.Contains(0))

	v := layout.NewVariableSizes(0, nil)
	assert.Equal(t, layout.EmptyRange, layout.VisibleRange(layout.Viewport{ContainerHeight: 10}, v, 2))
	assert.Equal(t, -1, v.IndexAt(0))
}

// TestVisibleRange_Validity sweeps every reachable scroll offset.
func TestVisibleRange_Validity(t *testing.T) {
	const n = 257
	const container = 333.0
	models := map[string]layout.SizeModel{
		"fixed": layout.NewFixedSizes(n, 17),
		"variable": layout.NewVariableSizes(n, func(i int) float64 {
			return float64(5 + (i*7)%40)
		}),
	}

	for name, sizes := range models {
		t.Run(name, func(t *testing.T) {
			maxScroll := layout.MaxScroll(sizes.TotalSize(), container)
			for top := 0.0; top <= maxScroll; top += 3.5 {
				r := layout.VisibleRange(layout.Viewport{ScrollTop: top, ContainerHeight: container}, sizes, layout.DefaultOverscan)
				assertValidRange(t, r, n)
			}
		})
	}
}

// -- Variable Mode --

func TestVariableSizes_Offsets(t *testing.T) {
	v := layout.NewVariableSizes(4, func(i int) float64 { return []float64{10, 20, 30, 40}[i] })

	assert.Equal(t, 0.0, v.Offset(0), "offset[0] must be zero")
	assert.Equal(t, 10.0, v.Offset(1))
	assert.Equal(t, 30.0, v.Offset(2))
	assert.Equal(t, 60.0, v.Offset(3))
	assert.Equal(t, 100.0, v.TotalSize())
	assert.Equal(t, 100.0, v.Offset(4))
	assert.Equal(t, 100.0, v.Offset(99), "out-of-range offsets clamp to the total")

	t.Run("IndexAt finds the containing row", func(t *testing.T) {
		assert.Equal(t, 0, v.IndexAt(0))
		assert.Equal(t, 0, v.IndexAt(9.99))
		assert.Equal(t, 1, v.IndexAt(10))
		assert.Equal(t, 2, v.IndexAt(59))
		assert.Equal(t, 3, v.IndexAt(60))
		assert.Equal(t, 3, v.IndexAt(1e9))
		assert.Equal(t, 0, v.IndexAt(-4))
	})

	t.Run("negative estimates are treated as zero", func(t *testing.T) {
		z := layout.NewVariableSizes(2, func(int) float64 { return -5 })
		assert.Equal(t, 0.0, z.TotalSize())
	})
}

func TestVariableSizes_MeasureShiftsOnlyTail(t *testing.T) {
	v := layout.NewVariableSizes(5, func(int) float64 { return 10 })
	before := []float64{v.Offset(0), v.Offset(1), v.Offset(2)}

	delta := v.Measure(2, 25)

	assert.Equal(t, 15.0, delta)
	assert.True(t, v.IsMeasured(2))
	assert.False(t, v.IsMeasured(1))
	assert.Equal(t, before, []float64{v.Offset(0), v.Offset(1), v.Offset(2)}, "offsets up to the measured row stay put")
	assert.Equal(t, 45.0, v.Offset(3))
	assert.Equal(t, 55.0, v.Offset(4))
	assert.Equal(t, 65.0, v.TotalSize())

	t.Run("identical measurement is a no-op", func(t *testing.T) {
		assert.Zero(t, v.Measure(2, 25))
		assert.Equal(t, 65.0, v.TotalSize())
	})

	t.Run("out of range index is ignored", func(t *testing.T) {
		assert.Zero(t, v.Measure(17, 99))
		assert.Zero(t, v.Measure(-1, 99))
	})

	t.Run("offsets stay monotonic after shrinking", func(t *testing.T) {
		v.Measure(0, 0)
		for i := 0; i < v.Len(); i++ {
			assert.LessOrEqual(t, v.Offset(i), v.Offset(i+1))
		}
	})
}

func TestVisibleRange_Variable(t *testing.T) {
	// Rows: 0:[0,50) 1:[50,60) 2:[60,160) 3:[160,170) 4:[170,220) ...
	v := layout.NewVariableSizes(20, func(i int) float64 {
		if i%2 == 0 {
			return 50 + float64(i%4)*25
		}
		return 10
	})

	r := layout.VisibleRange(layout.Viewport{ScrollTop: 55, ContainerHeight: 110}, v, 0)
	assert.Equal(t, 1, r.Start, "row 1 holds scrollTop 55")
	assert.Equal(t, 3, r.End, "row 3 starts at 160 which is inside the 165 bottom edge")

	r = layout.VisibleRange(layout.Viewport{ScrollTop: 55, ContainerHeight: 110}, v, 2)
	assert.Equal(t, 0, r.Start)
	assert.Equal(t, 5, r.End)
}

// -- Viewport Helpers --

func TestViewport_Clamp(t *testing.T) {
	vp := layout.Viewport{ScrollTop: -20, ScrollLeft: 5000, ContainerHeight: 100, ContainerWidth: -1}
	got := vp.Clamp(1000, 300)

	assert.Equal(t, 0.0, got.ScrollTop)
	assert.Equal(t, 300.0, got.ScrollLeft)
	assert.Equal(t, 0.0, got.ContainerWidth)

	got = layout.Viewport{ScrollTop: 2000, ContainerHeight: 100}.Clamp(1000, 0)
	assert.Equal(t, 900.0, got.ScrollTop)

	got = layout.Viewport{ScrollTop: 50, ContainerHeight: 500}.Clamp(100, 0)
	assert.Equal(t, 0.0, got.ScrollTop, "content shorter than the container never scrolls")
}

func TestViewport_AxisHelpers(t *testing.T) {
	vp := layout.Viewport{ScrollTop: 1, ScrollLeft: 2, ContainerHeight: 3, ContainerWidth: 4}
	assert.Equal(t, 2.0, vp.GetMainStart(layout.Horizontal))
	assert.Equal(t, 1.0, vp.GetMainStart(layout.Vertical))
	assert.Equal(t, 4.0, vp.GetMainSize(layout.Horizontal))
	assert.Equal(t, 3.0, vp.GetMainSize(layout.Vertical))

	vp.SetMainStart(layout.Horizontal, 9)
	assert.Equal(t, 9.0, vp.ScrollLeft)
	assert.Equal(t, "vertical", layout.Vertical.String())
}

func TestScrollToIndex(t *testing.T) {
	sizes := layout.NewFixedSizes(100, 20)

	assert.Equal(t, 100.0, layout.ScrollToIndex(7, 100, 60, sizes), "row 7 at [140,160) is already visible")
	assert.Equal(t, 40.0, layout.ScrollToIndex(2, 100, 60, sizes), "rows above align to their top edge")
	assert.Equal(t, 200.0, layout.ScrollToIndex(12, 100, 60, sizes), "rows below align to their bottom edge")
	assert.Equal(t, 100.0, layout.ScrollToIndex(500, 100, 60, sizes), "unknown rows leave the offset unchanged")
}

func TestNewVariableSizesFrom_RetainsMeasured(t *testing.T) {
	v := layout.NewVariableSizesFrom(3, func(i int) (float64, bool) {
		if i == 1 {
			return 90, true
		}
		return 30, false
	})
	assert.True(t, v.IsMeasured(1))
	assert.False(t, v.IsMeasured(0))
	assert.Equal(t, 150.0, v.TotalSize())
	assert.Equal(t, 120.0, v.Offset(2))
}
