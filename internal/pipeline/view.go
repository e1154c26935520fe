// internal/pipeline/view.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/vgrid/internal/columns"
)

// ErrComputeFailed wraps a panic raised by caller code (a custom comparator)
// while a view was being derived.
var ErrComputeFailed = errors.New("view computation failed")

// ColumnSet resolves column definitions by key. *columns.Model and
// columns.Set satisfy it; background computations get a columns.Set.
type ColumnSet[T any] interface {
	Lookup(key string) (columns.Column[T], bool)
}

// View is the derived, ordered subset of the raw dataset.
type View[T any] struct {
	Rows []T
	// Source maps each view position to its index in the raw dataset.
	Source []int
	// AccessorFaults counts accessor calls that panicked and were read as nil.
	AccessorFaults int
}

// Len returns the number of rows in the view.
func (v View[T]) Len() int { return len(v.Rows) }

// Options tunes how a view is computed.
type Options struct {
	// ChunkSize enables a parallel filter pass over datasets larger than one
	// chunk. Zero keeps the pass sequential.
	ChunkSize int
	// Parallelism bounds the number of concurrent chunks. Zero uses GOMAXPROCS.
	Parallelism int
}

// ComputeView derives the view with a background context and sequential filtering.
func ComputeView[T any](raw []T, cols ColumnSet[T], filters FilterState, sort SortState) (View[T], error) {
	return ComputeViewContext(context.Background(), raw, cols, filters, sort, Options{})
}

type boundFilter[T any] struct {
	accessor func(T) any
	filter   Filter
}

type boundSort[T any] struct {
	accessor func(T) any
	compare  func(a, b any) int
	desc     bool
}

// ComputeViewContext filters raw (all active filters must pass) and then
// orders the survivors by the sort keys. Ties under every key keep their
// relative raw order, so the result is deterministic and recomputing it
// with the same inputs yields the same view. raw is never mutated.
func ComputeViewContext[T any](ctx context.Context, raw []T, cols ColumnSet[T], filters FilterState, sort SortState, opts Options) (view View[T], err error) {
	active := filters.ActiveOnly()
	bf := make([]boundFilter[T], 0, len(active))
	for _, key := range active.Keys() {
		col, ok := cols.Lookup(key)
		if !ok {
			return View[T]{}, fmt.Errorf("filter on %q: %w", key, columns.ErrUnknownColumn)
		}
		bf = append(bf, boundFilter[T]{accessor: col.Accessor, filter: active[key]})
	}

	keys := sort.Normalize()
	bs := make([]boundSort[T], 0, len(keys))
	for _, k := range keys {
		col, ok := cols.Lookup(k.Column)
		if !ok {
			return View[T]{}, fmt.Errorf("sort on %q: %w", k.Column, columns.ErrUnknownColumn)
		}
		c := col.Compare
		if c == nil {
			c = CompareValues
		}
		bs = append(bs, boundSort[T]{accessor: col.Accessor, compare: c, desc: k.Direction == Desc})
	}

	var faults atomic.Int64
	kept, err := filterIndices(ctx, raw, bf, &faults, opts)
	if err != nil {
		return View[T]{}, err
	}

	if len(bs) > 0 {
		if err := sortIndices(ctx, raw, kept, bs, &faults); err != nil {
			return View[T]{}, err
		}
	}

	view = View[T]{
		Rows:           make([]T, len(kept)),
		Source:         kept,
		AccessorFaults: int(faults.Load()),
	}
	for i, src := range kept {
		view.Rows[i] = raw[src]
	}
	return view, nil
}

// Access evaluates an accessor, reading a panic or a missing accessor as nil.
// ok is false only when the accessor panicked.
func Access[T any](fn func(T) any, row T) (v any, ok bool) {
	if fn == nil {
		return nil, true
	}
	defer func() {
		if r := recover(); r != nil {
			v, ok = nil, false
		}
	}()
	return fn(row), true
}

func access[T any](fn func(T) any, row T, faults *atomic.Int64) any {
	v, ok := Access(fn, row)
	if !ok {
		faults.Add(1)
	}
	return v
}

func matchRow[T any](row T, bf []boundFilter[T], faults *atomic.Int64) bool {
	for _, f := range bf {
		if !f.filter.Match(access(f.accessor, row, faults)) {
			return false
		}
	}
	return true
}

// cancelCheckEvery bounds how many rows are scanned between context checks.
const cancelCheckEvery = 4096

func filterRange[T any](ctx context.Context, raw []T, lo, hi int, bf []boundFilter[T], faults *atomic.Int64) ([]int, error) {
	out := make([]int, 0, hi-lo)
	for i := lo; i < hi; i++ {
		if (i-lo)%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if matchRow(raw[i], bf, faults) {
			out = append(out, i)
		}
	}
	return out, nil
}

// filterIndices returns the raw indices passing every filter, in raw order.
// Large inputs are split into chunks evaluated concurrently; the chunks are
// concatenated in order so the result does not depend on scheduling.
func filterIndices[T any](ctx context.Context, raw []T, bf []boundFilter[T], faults *atomic.Int64, opts Options) ([]int, error) {
	n := len(raw)
	if len(bf) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all, nil
	}
	if opts.ChunkSize <= 0 || n <= opts.ChunkSize {
		return filterRange(ctx, raw, 0, n, bf, faults)
	}

	chunks := (n + opts.ChunkSize - 1) / opts.ChunkSize
	parts := make([][]int, chunks)
	limit := opts.Parallelism
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for c := 0; c < chunks; c++ {
		lo := c * opts.ChunkSize
		hi := min(lo+opts.ChunkSize, n)
		g.Go(func() error {
			part, err := filterRange(gctx, raw, lo, hi, bf, faults)
			if err != nil {
				return err
			}
			parts[c] = part
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	// errgroup cancels gctx on success too, so report the caller's state.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slices.Concat(parts...), nil
}

// decorated pairs a raw index with its precomputed sort values.
type decorated struct {
	idx  int
	vals []any
}

// sortIndices orders kept in place. Sort values are read once per row into a
// decorated slice before sorting. The raw index is the final tiebreak, which
// makes the order total and therefore stable with respect to source order.
func sortIndices[T any](ctx context.Context, raw []T, kept []int, bs []boundSort[T], faults *atomic.Int64) (err error) {
	rows := make([]decorated, len(kept))
	for n, idx := range kept {
		if n%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		vals := make([]any, len(bs))
		for k, s := range bs {
			vals[k] = access(s.accessor, raw[idx], faults)
		}
		rows[n] = decorated{idx: idx, vals: vals}
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: comparator panic: %v", ErrComputeFailed, r)
		}
	}()
	slices.SortFunc(rows, func(a, b decorated) int {
		for k, s := range bs {
			c := s.compare(a.vals[k], b.vals[k])
			if s.desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return a.idx - b.idx
	})
	for n, r := range rows {
		kept[n] = r.idx
	}
	return ctx.Err()
}
