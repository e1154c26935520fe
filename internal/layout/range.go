// internal/layout/range.go
package layout

import "math"

// VisibleRange maps a viewport onto the inclusive index range that should be
// materialized, padded by overscan rows on both sides.
//
// Fixed models use the closed form
//
//	start = max(0, floor(scrollTop/rowHeight) - overscan)
//	end   = min(len-1, ceil((scrollTop+containerHeight)/rowHeight) + overscan)
//
// and run in O(1). Any other model binary-searches the cumulative offsets for
// the row holding scrollTop and walks forward until the container is covered.
//
// For a non-empty model the result always satisfies 0 <= Start <= End < Len().
// An empty model yields EmptyRange.
func VisibleRange(vp Viewport, sizes SizeModel, overscan int) Range {
	n := sizes.Len()
	if n == 0 {
		return EmptyRange
	}
	if overscan < 0 {
		overscan = 0
	}
	total := sizes.TotalSize()
	top := math.Min(clampNonNegative(vp.ScrollTop), total)
	height := math.Min(clampNonNegative(vp.ContainerHeight), total)

	var start, end int
	if fixed, ok := sizes.(FixedSizes); ok && fixed.Height > 0 {
		start = int(math.Floor(top/fixed.Height)) - overscan
		end = int(math.Ceil((top+height)/fixed.Height)) + overscan
	} else {
		first := sizes.IndexAt(top)
		last := first
		bottom := top + height
		for last < n-1 && sizes.Offset(last+1) < bottom {
			last++
		}
		start = first - overscan
		end = last + overscan
	}

	start = clampi(start, 0, n-1)
	end = clampi(end, start, n-1)
	return Range{Start: start, End: end}
}

// ScrollToIndex returns the scroll offset needed to bring item idx fully into
// view. If the item is already visible the current offset is returned unchanged.
func ScrollToIndex(idx int, current, containerSize float64, sizes SizeModel) float64 {
	if idx < 0 || idx >= sizes.Len() {
		return current
	}

	itemTop := sizes.Offset(idx)
	itemBottom := itemTop + sizes.Size(idx)

	// Item above the visible area: align its top edge.
	if itemTop < current {
		return itemTop
	}
	// Item below the visible area: align its bottom edge.
	if itemBottom > current+containerSize {
		return clampf(itemBottom-containerSize, 0, MaxScroll(sizes.TotalSize(), containerSize))
	}
	return current
}
