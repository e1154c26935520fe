// internal/layout/range_fuzz_test.go
//go:build go1.18
// +build go1.18

package layout

import (
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
)

// fuzzViewport is populated by the structured fuzz consumer.
type fuzzViewport struct {
	Sizes     []uint8
	ScrollTop uint16
	Height    uint16
	Overscan  uint8
	Measure   []uint8
}

// FuzzVisibleRange_Structured checks the range invariant for arbitrary size
// lists, measurements and scroll positions.
func FuzzVisibleRange_Structured(f *testing.F) {
	f.Add([]byte{4, 10, 20, 30, 40, 0, 50, 0, 100, 2})
	f.Fuzz(func(t *testing.T, data []byte) {
		in := fuzzViewport{}
		if err := fuzz.NewConsumer(data).GenerateStruct(&in); err != nil {
			return
		}

		sizes := NewVariableSizes(len(in.Sizes), func(i int) float64 { return float64(in.Sizes[i]) })
		for i, m := range in.Measure {
			sizes.Measure(i%max(1, len(in.Sizes)), float64(m))
		}

		for i := 0; i < sizes.Len(); i++ {
			if sizes.Offset(i) > sizes.Offset(i+1) {
				t.Fatalf("offsets not monotonic at %d: %v > %v", i, sizes.Offset(i), sizes.Offset(i+1))
			}
		}

		vp := Viewport{ScrollTop: float64(in.ScrollTop), ContainerHeight: float64(in.Height)}
		r := VisibleRange(vp, sizes, int(in.Overscan))
		if sizes.Len() == 0 {
			if !r.Empty {
				t.Fatalf("expected empty range, got %+v", r)
			}
			return
		}
		if r.Empty || r.Start < 0 || r.Start > r.End || r.End >= sizes.Len() {
			t.Fatalf("invalid range %+v for %d rows", r, sizes.Len())
		}
	})
}
