package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/vgrid/api/schemas"
	"github.com/xkilldash9x/vgrid/internal/pipeline"
)

// DefaultFrameInterval approximates a 60 Hz animation frame.
const DefaultFrameInterval = 16 * time.Millisecond

// Loop is the event dispatcher. It owns a Grid and is the only goroutine
// touching it: host events arrive on a channel and frames are ticked on an
// interval, so grid state never needs locking.
type Loop[T any, K comparable] struct {
	grid     *Grid[T, K]
	logger   *zap.Logger
	parseKey func(string) (K, error)
	interval time.Duration
	onRender func(Window[T, K])
	onError  func(schemas.Event, error)

	virtual bool
	now     time.Time
}

// LoopOption is a function that configures a Loop.
type LoopOption[T any, K comparable] func(*Loop[T, K])

// WithFrameInterval sets the frame tick for Run.
func WithFrameInterval[T any, K comparable](d time.Duration) LoopOption[T, K] {
	return func(l *Loop[T, K]) {
		if d > 0 {
			l.interval = d
		}
	}
}

// WithRender registers the callback invoked for render events.
func WithRender[T any, K comparable](fn func(Window[T, K])) LoopOption[T, K] {
	return func(l *Loop[T, K]) {
		l.onRender = fn
	}
}

// WithErrorHandler registers the callback invoked when an event is rejected.
func WithErrorHandler[T any, K comparable](fn func(schemas.Event, error)) LoopOption[T, K] {
	return func(l *Loop[T, K]) {
		l.onError = fn
	}
}

// WithVirtualClock makes the loop's clock start at start and advance only
// through wait events, which keeps replays deterministic.
func WithVirtualClock[T any, K comparable](start time.Time) LoopOption[T, K] {
	return func(l *Loop[T, K]) {
		l.virtual = true
		l.now = start
	}
}

// NewLoop binds a dispatcher to grid. parseKey converts the textual row ids
// used by events into grid identities.
func NewLoop[T any, K comparable](grid *Grid[T, K], parseKey func(string) (K, error), opts ...LoopOption[T, K]) *Loop[T, K] {
	l := &Loop[T, K]{
		grid:     grid,
		logger:   grid.logger.Named("loop"),
		parseKey: parseKey,
		interval: DefaultFrameInterval,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Now returns the loop's current time.
func (l *Loop[T, K]) Now() time.Time {
	if l.virtual {
		return l.now
	}
	return time.Now()
}

// Run dispatches events and ticks frames until ctx is cancelled or events is
// closed. On close, outstanding work is settled and a final frame is run.
func (l *Loop[T, K]) Run(ctx context.Context, events <-chan schemas.Event) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.logger.Debug("Event loop started.", zap.Duration("frame_interval", l.interval))
	for {
		select {
		case <-ctx.Done():
			l.logger.Debug("Event loop cancelled.", zap.Error(ctx.Err()))
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				if err := l.grid.Settle(ctx); err != nil {
					return err
				}
				l.grid.Frame(l.Now())
				l.logger.Debug("Event stream closed, loop exiting.")
				return nil
			}
			if err := l.Dispatch(ctx, ev); err != nil {
				l.reject(ev, err)
			}
		case <-ticker.C:
			l.grid.Frame(l.Now())
		}
	}
}

func (l *Loop[T, K]) reject(ev schemas.Event, err error) {
	l.logger.Warn("Event rejected.", zap.String("type", string(ev.Type)), zap.Error(err))
	if l.onError != nil {
		l.onError(ev, err)
	}
}

// Dispatch applies a single event to the grid. It is exported so that
// replays can drive the grid synchronously without Run.
func (l *Loop[T, K]) Dispatch(ctx context.Context, ev schemas.Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	g := l.grid
	switch ev.Type {
	case schemas.EventScroll:
		g.ScrollTo(ev.ScrollTop, ev.ScrollLeft)
	case schemas.EventHeaderScroll:
		g.HeaderScrolled(ev.ScrollLeft)
	case schemas.EventResizeViewport:
		g.Resize(ev.Height, ev.Width)
	case schemas.EventScrollToIndex:
		g.ScrollToIndex(ev.Index)
	case schemas.EventSort:
		return g.ToggleSort(ev.Column, ev.Multi)
	case schemas.EventFilter:
		return g.SetFilter(l.Now(), ev.Column, pipeline.ParseFilter(ev.Value))
	case schemas.EventClearFilters:
		g.ClearFilters()
	case schemas.EventSelect:
		id, err := l.parseKey(ev.ID)
		if err != nil {
			return fmt.Errorf("select %q: %w", ev.ID, err)
		}
		_, err = g.ToggleSelect(id)
		return err
	case schemas.EventSelectAll:
		g.SelectAll()
	case schemas.EventClearSelection:
		g.ClearSelection()
	case schemas.EventPointerDown:
		return g.PointerDown(ev.Column, ev.X)
	case schemas.EventPointerMove:
		g.PointerMove(ev.X)
	case schemas.EventPointerUp:
		g.PointerUp(ev.X)
	case schemas.EventMeasure:
		g.Measure(ev.Index, ev.Size)
	case schemas.EventWait:
		return l.wait(ctx, time.Duration(ev.DelayMS)*time.Millisecond)
	case schemas.EventSettle:
		return g.Settle(ctx)
	case schemas.EventRender:
		g.Frame(l.Now())
		if l.onRender != nil {
			l.onRender(g.Window())
		}
	}
	return nil
}

// wait lets d elapse. A virtual clock jumps forward and runs one frame; a
// real clock sleeps while still ticking frames.
func (l *Loop[T, K]) wait(ctx context.Context, d time.Duration) error {
	if l.virtual {
		l.now = l.now.Add(d)
		l.grid.Frame(l.now)
		return nil
	}
	deadline := time.NewTimer(d)
	defer deadline.Stop()
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			l.grid.Frame(time.Now())
			return nil
		case now := <-ticker.C:
			l.grid.Frame(now)
		}
	}
}

// Snapshot converts a window into its wire form. keyString renders identities.
func Snapshot[T any, K comparable](w Window[T, K], keyString func(K) string) *schemas.WindowSnapshot {
	snap := &schemas.WindowSnapshot{
		Start:       w.RowRange.Start,
		End:         w.RowRange.End,
		Empty:       w.RowRange.Empty,
		ScrollTop:   w.Viewport.ScrollTop,
		ScrollLeft:  w.Viewport.ScrollLeft,
		TotalHeight: w.TotalHeight,
		TotalWidth:  w.TotalWidth,
		Status:      string(w.Status),
		Pending:     w.Pending,
		ViewRows:    w.ViewRows,
		RawRows:     w.RawRows,
		Columns:     make([]schemas.ColumnSnapshot, len(w.Columns)),
		Rows:        make([]schemas.RowSnapshot, len(w.Rows)),
	}
	for i, c := range w.Columns {
		snap.Columns[i] = schemas.ColumnSnapshot{
			Key: c.Key, Title: c.Title, X: c.X, Width: c.Width, Sort: string(c.Sort), Filter: c.Filter,
		}
	}
	for i, r := range w.Rows {
		rs := schemas.RowSnapshot{
			Index:    r.Index,
			ID:       keyString(r.Key),
			Top:      r.Top,
			Height:   r.Height,
			Selected: r.Selected,
			Cells:    make([]string, len(r.Cells)),
		}
		for c, cell := range r.Cells {
			rs.Cells[c] = cell.Text
			if cell.Err != nil {
				if rs.CellErrors == nil {
					rs.CellErrors = make([]string, len(r.Cells))
				}
				rs.CellErrors[c] = cell.Err.Error()
			}
		}
		snap.Rows[i] = rs
	}
	return snap
}
