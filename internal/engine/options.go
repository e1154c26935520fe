package engine

import (
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/vgrid/internal/columns"
	"github.com/xkilldash9x/vgrid/internal/layout"
	"github.com/xkilldash9x/vgrid/internal/pipeline"
	"github.com/xkilldash9x/vgrid/internal/scroll"
)

// DefaultBackgroundThreshold is the raw row count from which views are
// computed off the event loop.
const DefaultBackgroundThreshold = 20_000

var (
	// ErrMissingKeyFunc is returned when no identity function is configured.
	ErrMissingKeyFunc = errors.New("row key function is required")
	// ErrInvalidRowHeight is returned for a negative or non-finite row height.
	ErrInvalidRowHeight = errors.New("row height must be a positive finite number")
	// ErrDuplicateRowKey is returned when two rows share an identity.
	ErrDuplicateRowKey = errors.New("duplicate row key")
	// ErrUnknownRow is returned for selection operations naming an identity
	// that is not in the dataset.
	ErrUnknownRow = errors.New("unknown row")
	// ErrNotSortable is returned when sorting a column declared unsortable.
	ErrNotSortable = errors.New("column is not sortable")
	// ErrNotFilterable is returned when filtering a column declared unfilterable.
	ErrNotFilterable = errors.New("column is not filterable")
	// ErrCellRender wraps a panic raised by a column's render callback.
	ErrCellRender = errors.New("cell render failed")
)

// KeyFunc extracts the stable identity of a row.
type KeyFunc[T any, K comparable] func(row T) K

// ViewStatus tags a view notification.
type ViewStatus string

const (
	ViewReady  ViewStatus = "ready"
	ViewEmpty  ViewStatus = "empty"
	ViewFailed ViewStatus = "failed"
)

// ViewUpdate is delivered through OnView whenever a computation finishes.
// A failed update leaves the previous view in place.
type ViewUpdate struct {
	Status     ViewStatus
	Generation uint64
	Rows       int // rows in the derived view
	Total      int // rows in the raw dataset
	Background bool
	Elapsed    time.Duration
	Err        error
}

// Hooks are the outward notifications. All are optional and always invoked on
// the goroutine that drives the grid.
type Hooks[T any] struct {
	OnSort      func(columnKey string, direction pipeline.Direction)
	OnFilter    func(filters pipeline.FilterState)
	OnRowSelect func(selected []T)
	OnScroll    func(scrollTop, scrollLeft float64)
	OnView      func(update ViewUpdate)
}

// Options configures a Grid.
type Options[T any, K comparable] struct {
	Data    []T
	Columns []columns.Column[T]
	Key     KeyFunc[T, K]

	// Height and Width size the viewport.
	Height float64
	Width  float64

	// RowHeight selects fixed-size mode. When RowHeightFunc is set the grid
	// runs in variable-size mode and RowHeight only backs failed estimates.
	RowHeight     float64
	RowHeightFunc func(row T, index int) float64

	// Overscan is the number of extra rows on each side of the window.
	// Zero takes layout.DefaultOverscan; a negative value disables overscan.
	Overscan int

	// FilterDebounce delays filter application. Zero takes the default; a
	// negative value applies filters immediately.
	FilterDebounce time.Duration

	// BackgroundThreshold is the raw row count from which views are computed
	// on a worker goroutine. Zero takes the default; negative keeps every
	// computation on the calling goroutine.
	BackgroundThreshold int
	// ParallelChunk enables the chunked parallel filter pass.
	ParallelChunk int

	// PruneOnFilter drops selected rows that a filter hides.
	PruneOnFilter bool
	// ManualSort and ManualFilter emit hooks without reordering or filtering
	// locally, for sources that apply them server side.
	ManualSort   bool
	ManualFilter bool

	// Header and Body are the host scroll elements kept in horizontal sync.
	Header scroll.Target
	Body   scroll.Target

	Hooks[T]

	Logger *zap.Logger
}

func (o *Options[T, K]) validate() error {
	if o.Key == nil {
		return ErrMissingKeyFunc
	}
	if o.RowHeight < 0 || math.IsNaN(o.RowHeight) || math.IsInf(o.RowHeight, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidRowHeight, o.RowHeight)
	}
	return columns.Validate(o.Columns)
}

func (o *Options[T, K]) withDefaults() {
	if o.RowHeight == 0 {
		o.RowHeight = layout.DefaultRowHeight
	}
	switch {
	case o.Overscan == 0:
		o.Overscan = layout.DefaultOverscan
	case o.Overscan < 0:
		o.Overscan = 0
	}
	switch {
	case o.FilterDebounce == 0:
		o.FilterDebounce = pipeline.DefaultFilterDebounce
	case o.FilterDebounce < 0:
		o.FilterDebounce = 0
	}
	if o.BackgroundThreshold == 0 {
		o.BackgroundThreshold = DefaultBackgroundThreshold
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}
