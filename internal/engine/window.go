package engine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/vgrid/internal/columns"
	"github.com/xkilldash9x/vgrid/internal/layout"
	"github.com/xkilldash9x/vgrid/internal/pipeline"
)

// ErrorPlaceholder replaces the text of a cell whose render callback panicked.
const ErrorPlaceholder = "#ERR"

// Cell is one materialized (row, column) pair.
type Cell struct {
	Column string
	Value  any
	Text   string
	// Err is set when the column's render callback failed; Text then holds
	// ErrorPlaceholder.
	Err error
}

// WindowColumn describes a materialized column.
type WindowColumn struct {
	Key       string
	Title     string
	X         float64
	Width     float64
	Sort      pipeline.Direction
	Filter    string
	Resizing  bool
	Sortable  bool
	Filtering bool
}

// WindowRow is one materialized row of the derived view.
type WindowRow[T any, K comparable] struct {
	Index    int // position in the derived view
	Key      K
	Row      T
	Top      float64
	Height   float64
	Measured bool
	Selected bool
	Cells    []Cell
}

// Window is everything a host needs to paint one frame: the visible rows and
// columns with overscan, their positions and the inner container extent.
type Window[T any, K comparable] struct {
	Viewport    layout.Viewport
	RowRange    layout.Range
	ColumnRange layout.Range
	TotalHeight float64
	TotalWidth  float64
	Columns     []WindowColumn
	Rows        []WindowRow[T, K]
	Status      ViewStatus
	Pending     bool
	// ViewRows and RawRows count the derived view and the raw data.
	ViewRows int
	RawRows  int
}

// Empty reports whether the derived view has no rows.
func (w Window[T, K]) Empty() bool { return w.RowRange.Empty }

// Window materializes the current frame. Only rows in the visible range (plus
// overscan) and horizontally visible columns are rendered.
func (g *Grid[T, K]) Window() Window[T, K] {
	rows := layout.VisibleRange(g.vp, g.sizes, g.opts.Overscan)
	active := g.resizer.State()
	colRange := g.cols.VisibleColumns(g.vp)
	if active != nil {
		colRange = g.cols.VisibleColumnsPreview(g.vp, active.ActiveColumnKey, active.PreviewWidth)
	}

	win := Window[T, K]{
		Viewport:    g.vp,
		RowRange:    rows,
		ColumnRange: colRange,
		TotalHeight: g.sizes.TotalSize(),
		TotalWidth:  g.cols.TotalWidth(),
		Status:      g.status,
		Pending:     g.Pending(),
		ViewRows:    g.view.Len(),
		RawRows:     len(g.raw),
	}

	activeIdx, delta := -1, 0.0
	if active != nil {
		activeIdx = g.cols.IndexOf(active.ActiveColumnKey)
		committed, _ := g.cols.Width(active.ActiveColumnKey)
		delta = active.PreviewWidth - committed
		win.TotalWidth += delta
	}

	var visibleCols []columns.Column[T]
	if !colRange.Empty {
		for i := colRange.Start; i <= colRange.End; i++ {
			col := g.cols.At(i)
			x := g.cols.Offset(i)
			if activeIdx >= 0 && i > activeIdx {
				x += delta
			}
			wc := WindowColumn{
				Key:       col.Key,
				Title:     col.Title,
				X:         x,
				Width:     g.resizer.EffectiveWidth(col.Key),
				Sort:      g.sort.DirectionOf(col.Key),
				Resizing:  i == activeIdx,
				Sortable:  col.Sortable,
				Filtering: g.filters[col.Key] != nil,
			}
			if f := g.filters[col.Key]; f != nil {
				wc.Filter = f.String()
			}
			win.Columns = append(win.Columns, wc)
			visibleCols = append(visibleCols, col)
		}
	}

	if rows.Empty {
		return win
	}
	variable, _ := g.sizes.(*layout.VariableSizes)
	win.Rows = make([]WindowRow[T, K], 0, rows.Len())
	for i := rows.Start; i <= rows.End; i++ {
		row := g.view.Rows[i]
		key := g.viewKeys[i]
		wr := WindowRow[T, K]{
			Index:    i,
			Key:      key,
			Row:      row,
			Top:      g.sizes.Offset(i),
			Height:   g.sizes.Size(i),
			Measured: variable != nil && variable.IsMeasured(i),
			Selected: g.sel.IsSelected(key),
			Cells:    make([]Cell, len(visibleCols)),
		}
		for c, col := range visibleCols {
			wr.Cells[c] = g.renderCell(col, row, i)
		}
		win.Rows = append(win.Rows, wr)
	}
	return win
}

// renderCell isolates a failing render callback to its own cell.
func (g *Grid[T, K]) renderCell(col columns.Column[T], row T, index int) (cell Cell) {
	value, _ := pipeline.Access(col.Accessor, row)
	cell = Cell{Column: col.Key, Value: value}
	if col.Render == nil {
		cell.Text = pipeline.Text(value)
		return cell
	}
	defer func() {
		if r := recover(); r != nil {
			cell.Text = ErrorPlaceholder
			cell.Err = fmt.Errorf("%w: column %q row %d: %v", ErrCellRender, col.Key, index, r)
			g.renderLog.Do(func() {
				g.logger.Warn("Cell render callback panicked.", zap.Error(cell.Err))
			})
		}
	}()
	cell.Text = col.Render(value, row, index)
	return cell
}
