package engine

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/vgrid/internal/columns"
	"github.com/xkilldash9x/vgrid/internal/layout"
	"github.com/xkilldash9x/vgrid/internal/pipeline"
	"github.com/xkilldash9x/vgrid/internal/scroll"
	"github.com/xkilldash9x/vgrid/internal/selection"
	"github.com/xkilldash9x/vgrid/internal/worker"
)

// Grid is the engine state object. It is mutated only by the goroutine that
// drives it (the host's UI loop or a Loop); it holds no locks. Background
// computations communicate back exclusively through the worker's result
// channel, drained by Frame and Settle.
type Grid[T any, K comparable] struct {
	id     string
	opts   Options[T, K]
	logger *zap.Logger

	cols    *columns.Model[T]
	resizer *columns.Resizer[T]

	raw      []T
	rawKeys  []K
	keyIndex map[K]int

	view     pipeline.View[T]
	viewKeys []K
	status   ViewStatus
	sizes    layout.SizeModel
	measured map[K]float64

	vp layout.Viewport

	sort     pipeline.SortState
	filters  pipeline.FilterState // applied
	draft    pipeline.FilterState // applied plus pending edits
	debounce *pipeline.Debouncer[pipeline.FilterState]

	sel *selection.Set[K]

	hsync       *scroll.Sync
	scrollQueue scroll.Throttle[scrollOffset]
	pointerMove scroll.Throttle[float64]

	worker     *worker.ViewWorker[T]
	gen        uint64 // latest issued view generation
	pendingGen uint64 // generation awaited from the worker, 0 if none

	dirty     bool
	scrollLog rate.Sometimes
	renderLog rate.Sometimes
}

// New validates the options and computes the initial view. Configuration
// errors are reported here rather than at first render.
func New[T any, K comparable](opts Options[T, K]) (*Grid[T, K], error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid grid configuration: %w", err)
	}
	opts.withDefaults()

	cols, err := columns.NewModel(opts.Columns)
	if err != nil {
		return nil, fmt.Errorf("invalid grid configuration: %w", err)
	}

	id := uuid.NewString()
	g := &Grid[T, K]{
		id:        id,
		opts:      opts,
		logger:    opts.Logger.Named("engine").With(zap.String("grid_id", id)),
		cols:      cols,
		resizer:   columns.NewResizer(cols),
		measured:  make(map[K]float64),
		filters:   pipeline.FilterState{},
		draft:     pipeline.FilterState{},
		debounce:  pipeline.NewDebouncer[pipeline.FilterState](opts.FilterDebounce),
		sel:       selection.New[K](),
		hsync:     scroll.NewSync(opts.Header, opts.Body),
		vp:        layout.Viewport{ContainerHeight: max(opts.Height, 0), ContainerWidth: max(opts.Width, 0)},
		sizes:     layout.NewFixedSizes(0, opts.RowHeight),
		scrollLog: rate.Sometimes{Interval: time.Second},
		renderLog: rate.Sometimes{First: 3, Interval: 5 * time.Second},
	}
	g.worker = worker.New[T](g.logger)

	if err := g.loadData(opts.Data); err != nil {
		g.worker.Stop()
		return nil, err
	}
	g.logger.Debug("Grid initialized.",
		zap.Int("rows", len(g.raw)),
		zap.Int("columns", cols.Len()),
		zap.Bool("variable_rows", opts.RowHeightFunc != nil),
		zap.Int("overscan", opts.Overscan))
	g.recompute("init")
	return g, nil
}

// ID returns the unique instance identifier used in logs.
func (g *Grid[T, K]) ID() string { return g.id }

// Close cancels background work. The grid must not be used afterwards.
func (g *Grid[T, K]) Close() {
	g.worker.Stop()
}

// -- Data --

// loadData indexes identities. Identities must be unique within the dataset.
func (g *Grid[T, K]) loadData(data []T) error {
	keys := make([]K, len(data))
	index := make(map[K]int, len(data))
	for i, row := range data {
		k := g.opts.Key(row)
		if prev, dup := index[k]; dup {
			return fmt.Errorf("rows %d and %d share key %v: %w", prev, i, k, ErrDuplicateRowKey)
		}
		index[k] = i
		keys[i] = k
	}
	g.raw, g.rawKeys, g.keyIndex = data, keys, index
	return nil
}

// SetData replaces the raw dataset and recomputes the view synchronously (or
// hands it to the worker for large datasets). Selected and measured rows that
// no longer exist are dropped; everything else carries over by identity.
func (g *Grid[T, K]) SetData(data []T) error {
	if err := g.loadData(data); err != nil {
		return err
	}
	for k := range g.measured {
		if _, ok := g.keyIndex[k]; !ok {
			delete(g.measured, k)
		}
	}
	if g.sel.Retain(g.hasKey) {
		g.emitSelection()
	}
	g.recompute("data")
	return nil
}

func (g *Grid[T, K]) hasKey(k K) bool {
	_, ok := g.keyIndex[k]
	return ok
}

// Raw returns the raw dataset as given.
func (g *Grid[T, K]) Raw() []T { return g.raw }

// View returns the current derived view.
func (g *Grid[T, K]) View() pipeline.View[T] { return g.view }

// Status returns the status of the last applied computation.
func (g *Grid[T, K]) Status() ViewStatus { return g.status }

// Pending reports whether a debounced filter or a background view is outstanding.
func (g *Grid[T, K]) Pending() bool {
	_, debouncing := g.debounce.Pending()
	return debouncing || g.pendingGen != 0
}

// Generation returns the latest issued view generation.
func (g *Grid[T, K]) Generation() uint64 { return g.gen }

// -- Computation --

func (g *Grid[T, K]) useBackground() bool {
	return g.opts.BackgroundThreshold > 0 && len(g.raw) >= g.opts.BackgroundThreshold
}

// recompute issues a new generation and derives the view for it. Any older
// computation still running is superseded.
func (g *Grid[T, K]) recompute(reason string) {
	g.gen++
	gen := g.gen

	filters, sortState := g.filters, g.sort
	if g.opts.ManualFilter {
		filters = nil
	}
	if g.opts.ManualSort {
		sortState = nil
	}
	popts := pipeline.Options{ChunkSize: g.opts.ParallelChunk}

	if g.useBackground() {
		g.pendingGen = gen
		err := g.worker.Submit(worker.Job[T]{
			Generation: gen,
			Raw:        g.raw,
			Columns:    g.cols.Snapshot(),
			Filters:    filters,
			Sort:       sortState,
			Options:    popts,
		})
		if err != nil {
			g.pendingGen = 0
			g.applyView(gen, pipeline.View[T]{}, err, true, 0)
			return
		}
		g.logger.Debug("View computation submitted to worker.", zap.String("reason", reason), zap.Uint64("generation", gen))
		return
	}

	if g.pendingGen != 0 {
		g.worker.Cancel()
		g.pendingGen = 0
	}
	start := time.Now()
	view, err := pipeline.ComputeViewContext(context.Background(), g.raw, g.cols, filters, sortState, popts)
	g.applyView(gen, view, err, false, time.Since(start))
}

// applyResult applies a worker result if it is still the latest generation.
func (g *Grid[T, K]) applyResult(res worker.Result[T]) {
	if res.Generation != g.gen {
		g.logger.Debug("Discarding stale background view.", zap.Uint64("generation", res.Generation), zap.Uint64("latest", g.gen))
		return
	}
	g.pendingGen = 0
	g.applyView(res.Generation, res.View, res.Err, true, res.Elapsed)
}

func (g *Grid[T, K]) applyView(gen uint64, view pipeline.View[T], err error, background bool, elapsed time.Duration) {
	update := ViewUpdate{Generation: gen, Total: len(g.raw), Background: background, Elapsed: elapsed}
	if err != nil {
		g.logger.Error("View computation failed.", zap.Uint64("generation", gen), zap.Error(err))
		g.status = ViewFailed
		update.Status, update.Err, update.Rows = ViewFailed, err, g.view.Len()
		g.notifyView(update)
		return
	}
	if view.AccessorFaults > 0 {
		g.logger.Warn("Column accessors failed; values read as empty.", zap.Int("faults", view.AccessorFaults))
	}

	g.view = view
	g.viewKeys = make([]K, len(view.Source))
	for i, src := range view.Source {
		g.viewKeys[i] = g.rawKeys[src]
	}

	if g.opts.PruneOnFilter {
		visible := make(map[K]struct{}, len(g.viewKeys))
		for _, k := range g.viewKeys {
			visible[k] = struct{}{}
		}
		if g.sel.Retain(func(k K) bool { _, ok := visible[k]; return ok }) {
			g.emitSelection()
		}
	}

	g.rebuildSizes()
	g.clampViewport()
	g.dirty = true

	g.status = ViewReady
	if view.Len() == 0 {
		g.status = ViewEmpty
	}
	update.Status, update.Rows = g.status, view.Len()
	g.logger.Debug("View applied.",
		zap.Uint64("generation", gen),
		zap.Int("rows", view.Len()),
		zap.Bool("background", background),
		zap.Duration("elapsed", elapsed))
	g.notifyView(update)
}

// rebuildSizes derives the size model for the current view. Measurements
// are looked up by identity, so they survive a re-sort or filter change.
func (g *Grid[T, K]) rebuildSizes() {
	n := g.view.Len()
	if g.opts.RowHeightFunc == nil {
		g.sizes = layout.NewFixedSizes(n, g.opts.RowHeight)
		return
	}
	g.sizes = layout.NewVariableSizesFrom(n, func(i int) (float64, bool) {
		if s, ok := g.measured[g.viewKeys[i]]; ok {
			return s, true
		}
		return g.estimate(g.view.Rows[i], i), false
	})
}

func (g *Grid[T, K]) estimate(row T, i int) (h float64) {
	defer func() {
		if r := recover(); r != nil {
			h = g.opts.RowHeight
		}
	}()
	return g.opts.RowHeightFunc(row, i)
}

// Measure records the real size of the row at view index i, as reported by
// the host's measurement primitive. Only the offsets after i move. It reports
// whether the layout changed; fixed-size grids ignore measurements.
func (g *Grid[T, K]) Measure(i int, size float64) bool {
	vs, ok := g.sizes.(*layout.VariableSizes)
	if !ok || i < 0 || i >= g.view.Len() {
		return false
	}
	g.measured[g.viewKeys[i]] = size
	if vs.Measure(i, size) == 0 {
		return false
	}
	g.clampViewport()
	g.dirty = true
	return true
}

// Sizes exposes the current size model.
func (g *Grid[T, K]) Sizes() layout.SizeModel { return g.sizes }

// -- Sorting --

// ToggleSort cycles a column through none, asc and desc, as a header click
// does. With multi the column is added to the existing keys. Sorting is
// applied immediately.
func (g *Grid[T, K]) ToggleSort(key string, multi bool) error {
	col, ok := g.cols.Lookup(key)
	if !ok {
		return fmt.Errorf("sort %q: %w", key, columns.ErrUnknownColumn)
	}
	if !col.Sortable {
		return fmt.Errorf("sort %q: %w", key, ErrNotSortable)
	}
	var dir pipeline.Direction
	g.sort, dir = pipeline.ToggleSort(g.sort, key, multi)
	if g.opts.OnSort != nil {
		g.opts.OnSort(key, dir)
	}
	if !g.opts.ManualSort {
		g.recompute("sort")
	}
	return nil
}

// SetSort replaces the sort state.
func (g *Grid[T, K]) SetSort(state pipeline.SortState) error {
	state = state.Normalize()
	for _, k := range state {
		col, ok := g.cols.Lookup(k.Column)
		if !ok {
			return fmt.Errorf("sort %q: %w", k.Column, columns.ErrUnknownColumn)
		}
		if !col.Sortable {
			return fmt.Errorf("sort %q: %w", k.Column, ErrNotSortable)
		}
	}
	g.sort = state
	if g.opts.OnSort != nil {
		for _, k := range state {
			g.opts.OnSort(k.Column, k.Direction)
		}
	}
	if !g.opts.ManualSort {
		g.recompute("sort")
	}
	return nil
}

// Sort returns the current sort state.
func (g *Grid[T, K]) Sort() pipeline.SortState { return slices.Clone(g.sort) }

// -- Filtering --

func (g *Grid[T, K]) checkFilterable(key string) error {
	col, ok := g.cols.Lookup(key)
	if !ok {
		return fmt.Errorf("filter %q: %w", key, columns.ErrUnknownColumn)
	}
	if !col.Filterable {
		return fmt.Errorf("filter %q: %w", key, ErrNotFilterable)
	}
	return nil
}

// SetFilter records a filter edit (typically a keystroke). It is applied
// once the input has been quiet for the debounce delay; each edit supersedes
// the previous pending one. An inactive filter clears the column.
func (g *Grid[T, K]) SetFilter(now time.Time, key string, f pipeline.Filter) error {
	if err := g.checkFilterable(key); err != nil {
		return err
	}
	g.draft = g.draft.With(key, f)
	if g.debounce.Delay() == 0 {
		g.debounce.Cancel()
		g.applyFilters(g.draft)
		return nil
	}
	gen := g.debounce.Schedule(now, g.draft)
	g.logger.Debug("Filter scheduled.", zap.String("column", key), zap.Uint64("debounce_generation", gen))
	return nil
}

// ApplyFilters replaces the whole filter state immediately, discarding any
// pending edit.
func (g *Grid[T, K]) ApplyFilters(fs pipeline.FilterState) error {
	fs = fs.ActiveOnly()
	for key := range fs {
		if err := g.checkFilterable(key); err != nil {
			return err
		}
	}
	g.debounce.Cancel()
	g.draft = fs
	g.applyFilters(fs)
	return nil
}

// ClearFilters drops every filter immediately.
func (g *Grid[T, K]) ClearFilters() {
	g.debounce.Cancel()
	g.draft = pipeline.FilterState{}
	g.applyFilters(g.draft)
}

func (g *Grid[T, K]) applyFilters(fs pipeline.FilterState) {
	g.filters = fs.ActiveOnly()
	if g.opts.OnFilter != nil {
		g.opts.OnFilter(g.filters)
	}
	if !g.opts.ManualFilter {
		g.recompute("filter")
	}
}

// Filters returns the applied filter state.
func (g *Grid[T, K]) Filters() pipeline.FilterState { return g.filters.ActiveOnly() }

// DraftFilters returns the filter state including edits still debouncing.
func (g *Grid[T, K]) DraftFilters() pipeline.FilterState { return g.draft.ActiveOnly() }

// -- Selection --

// ToggleSelect flips the selection of the row with identity id.
func (g *Grid[T, K]) ToggleSelect(id K) (bool, error) {
	if !g.hasKey(id) {
		return false, fmt.Errorf("select %v: %w", id, ErrUnknownRow)
	}
	selected := g.sel.Toggle(id)
	g.emitSelection()
	return selected, nil
}

// SelectAll selects every row of the current derived view. Rows hidden by a
// filter are left as they are.
func (g *Grid[T, K]) SelectAll() {
	if g.sel.SelectAll(g.viewKeys) {
		g.emitSelection()
	}
}

// ClearSelection deselects everything.
func (g *Grid[T, K]) ClearSelection() {
	if g.sel.Clear() {
		g.emitSelection()
	}
}

// IsSelected reports whether id is selected, regardless of its position or
// visibility in the view.
func (g *Grid[T, K]) IsSelected(id K) bool { return g.sel.IsSelected(id) }

// SelectedRows returns the selected rows in raw dataset order, including
// rows currently hidden by a filter.
func (g *Grid[T, K]) SelectedRows() []T {
	ids := g.sel.IDs()
	idx := make([]int, 0, len(ids))
	for _, id := range ids {
		if i, ok := g.keyIndex[id]; ok {
			idx = append(idx, i)
		}
	}
	slices.Sort(idx)
	rows := make([]T, len(idx))
	for n, i := range idx {
		rows[n] = g.raw[i]
	}
	return rows
}

func (g *Grid[T, K]) emitSelection() {
	g.dirty = true
	if g.opts.OnRowSelect != nil {
		g.opts.OnRowSelect(g.SelectedRows())
	}
}

// -- Scrolling --

// scrollOffset is a queued body scroll. Only the offsets are queued so that
// container changes made before the next frame are kept.
type scrollOffset struct {
	top, left float64
}

// ScrollTo queues a body scroll event. Events are coalesced and applied on
// the next Frame.
func (g *Grid[T, K]) ScrollTo(scrollTop, scrollLeft float64) {
	g.scrollQueue.Push(scrollOffset{top: scrollTop, left: scrollLeft})
}

// ScrollToIndex queues the minimal scroll that brings view row i fully into view.
func (g *Grid[T, K]) ScrollToIndex(i int) {
	base := scrollOffset{top: g.vp.ScrollTop, left: g.vp.ScrollLeft}
	if queued, ok := g.scrollQueue.Take(); ok {
		base = queued
	}
	top := layout.ScrollToIndex(i, base.top, g.vp.ContainerHeight, g.sizes)
	g.ScrollTo(top, base.left)
}

// HeaderScrolled handles a scroll event raised by the header element.
func (g *Grid[T, K]) HeaderScrolled(scrollLeft float64) {
	g.boundHeader()
	if g.hsync.HeaderScrolled(scrollLeft) {
		g.setViewport(layout.Viewport{
			ScrollTop:       g.vp.ScrollTop,
			ScrollLeft:      g.hsync.Left(),
			ContainerHeight: g.vp.ContainerHeight,
			ContainerWidth:  g.vp.ContainerWidth,
		})
	}
}

func (g *Grid[T, K]) boundHeader() {
	g.hsync.SetLimit(layout.MaxScroll(g.cols.TotalWidth(), g.vp.ContainerWidth))
}

// Resize applies a container size change immediately.
func (g *Grid[T, K]) Resize(height, width float64) {
	vp := g.vp
	vp.ContainerHeight, vp.ContainerWidth = max(height, 0), max(width, 0)
	g.setViewport(vp)
}

// Viewport returns the applied viewport.
func (g *Grid[T, K]) Viewport() layout.Viewport { return g.vp }

func (g *Grid[T, K]) applyScroll(off scrollOffset) {
	vp := g.vp
	vp.ScrollTop, vp.ScrollLeft = off.top, off.left
	if g.setViewport(vp) {
		g.boundHeader()
		g.hsync.BodyScrolled(g.vp.ScrollLeft)
		g.scrollLog.Do(func() {
			g.logger.Debug("Scroll applied.",
				zap.Float64("scroll_top", g.vp.ScrollTop),
				zap.Float64("scroll_left", g.vp.ScrollLeft),
				zap.Int("coalesced_total", g.scrollQueue.Coalesced()))
		})
	}
}

// setViewport clamps and stores vp, reporting whether the scroll offsets moved.
func (g *Grid[T, K]) setViewport(vp layout.Viewport) bool {
	vp = vp.Clamp(g.sizes.TotalSize(), g.cols.TotalWidth())
	moved := vp.ScrollTop != g.vp.ScrollTop || vp.ScrollLeft != g.vp.ScrollLeft
	if vp != g.vp {
		g.dirty = true
	}
	g.vp = vp
	if moved && g.opts.OnScroll != nil {
		g.opts.OnScroll(vp.ScrollTop, vp.ScrollLeft)
	}
	return moved
}

func (g *Grid[T, K]) clampViewport() { g.setViewport(g.vp) }

// -- Column Resizing --

// PointerDown starts a resize gesture on the handle of column key.
func (g *Grid[T, K]) PointerDown(key string, pointerX float64) error {
	return g.resizer.PointerDown(key, pointerX)
}

// PointerMove queues a pointer move. Moves are coalesced to one per frame.
func (g *Grid[T, K]) PointerMove(pointerX float64) {
	if g.resizer.Phase() == columns.Resizing {
		g.pointerMove.Push(pointerX)
	}
}

// PointerUp commits the resize. Without an active gesture it does nothing.
func (g *Grid[T, K]) PointerUp(pointerX float64) (string, float64, bool) {
	g.pointerMove.Take()
	key, width, ok := g.resizer.PointerUp(pointerX)
	if ok {
		g.logger.Debug("Column resized.", zap.String("column", key), zap.Float64("width", width))
		g.clampViewport()
		g.dirty = true
	}
	return key, width, ok
}

// Resizing returns the active resize gesture, or nil.
func (g *Grid[T, K]) Resizing() *columns.ResizeState { return g.resizer.State() }

// Columns returns the ordered columns with committed widths.
func (g *Grid[T, K]) Columns() []columns.Column[T] { return g.cols.Columns() }

// MoveColumn reorders a column.
func (g *Grid[T, K]) MoveColumn(key string, to int) error {
	if err := g.cols.Move(key, to); err != nil {
		return err
	}
	g.dirty = true
	return nil
}

// -- Frame Loop --

// Frame runs once per animation frame: it applies the latest coalesced scroll
// and pointer events, releases a due debounced filter and applies any
// finished background view. It reports whether the window needs repainting.
func (g *Grid[T, K]) Frame(now time.Time) bool {
	if off, ok := g.scrollQueue.Take(); ok {
		g.applyScroll(off)
	}
	if x, ok := g.pointerMove.Take(); ok {
		if _, moved := g.resizer.PointerMove(x); moved {
			g.dirty = true
		}
	}
	if fs, gen, ok := g.debounce.Due(now); ok {
		g.logger.Debug("Debounced filter released.", zap.Uint64("debounce_generation", gen))
		g.applyFilters(fs)
	}
	g.drainResults()

	dirty := g.dirty
	g.dirty = false
	return dirty
}

func (g *Grid[T, K]) drainResults() {
	for {
		select {
		case res := <-g.worker.Results():
			g.applyResult(res)
		default:
			return
		}
	}
}

// Settle flushes queued events and pending debounced filters, then blocks
// until the latest background view has been applied.
func (g *Grid[T, K]) Settle(ctx context.Context) error {
	for {
		if off, ok := g.scrollQueue.Take(); ok {
			g.applyScroll(off)
		}
		if x, ok := g.pointerMove.Take(); ok {
			g.resizer.PointerMove(x)
		}
		if fs, _, ok := g.debounce.Flush(); ok {
			g.applyFilters(fs)
		}
		if g.pendingGen == 0 {
			return nil
		}
		select {
		case res := <-g.worker.Results():
			g.applyResult(res)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (g *Grid[T, K]) notifyView(u ViewUpdate) {
	if g.opts.OnView != nil {
		g.opts.OnView(u)
	}
}
