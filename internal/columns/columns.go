// internal/columns/columns.go
package columns

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/xkilldash9x/vgrid/internal/layout"
)

// DefaultWidth is applied to columns declared without a width.
const DefaultWidth = 120.0

var (
	// ErrMissingColumnKey is returned when a column is declared without a key.
	ErrMissingColumnKey = errors.New("column key is required")
	// ErrDuplicateColumnKey is returned when two columns share a key.
	ErrDuplicateColumnKey = errors.New("duplicate column key")
	// ErrUnknownColumn is returned for operations naming a key the model does not hold.
	ErrUnknownColumn = errors.New("unknown column")
)

// Column defines one grid column over rows of type T.
type Column[T any] struct {
	Key        string
	Title      string
	Width      float64
	MinWidth   float64
	MaxWidth   float64 // 0 means unbounded
	Sortable   bool
	Filterable bool

	// Accessor extracts the cell value from a row. A nil accessor yields nil values.
	Accessor func(row T) any
	// Render formats a visible cell. Nil falls back to the engine's default formatting.
	Render func(value any, row T, index int) string
	// Compare overrides the type-aware value ordering for sorting. It returns <0, 0 or >0.
	Compare func(a, b any) int
}

// clampWidth bounds w into [MinWidth, MaxWidth].
func (c Column[T]) clampWidth(w float64) float64 {
	if math.IsNaN(w) {
		w = c.MinWidth
	}
	if w < c.MinWidth {
		w = c.MinWidth
	}
	if c.MaxWidth > 0 && w > c.MaxWidth {
		w = c.MaxWidth
	}
	if w < 0 {
		w = 0
	}
	return w
}

// Validate checks a column set for configuration errors. It is called at
// setup so bad definitions are reported before the first render.
func Validate[T any](cols []Column[T]) error {
	seen := make(map[string]int, len(cols))
	for i, c := range cols {
		if c.Key == "" {
			return fmt.Errorf("column %d (%q): %w", i, c.Title, ErrMissingColumnKey)
		}
		if prev, dup := seen[c.Key]; dup {
			return fmt.Errorf("column %d and %d share key %q: %w", prev, i, c.Key, ErrDuplicateColumnKey)
		}
		if c.MaxWidth > 0 && c.MinWidth > c.MaxWidth {
			return fmt.Errorf("column %q: min width %.0f exceeds max width %.0f", c.Key, c.MinWidth, c.MaxWidth)
		}
		seen[c.Key] = i
	}
	return nil
}

// Model holds the ordered columns and their committed widths.
// Total width is a derived value recomputed on every commit.
type Model[T any] struct {
	cols    []Column[T]
	index   map[string]int
	offsets []float64 // offsets[i] is the left edge of column i; offsets[len] is the total
}

// NewModel validates the definitions and builds the model. Widths are clamped
// into each column's bounds; a zero width takes DefaultWidth.
func NewModel[T any](cols []Column[T]) (*Model[T], error) {
	if err := Validate(cols); err != nil {
		return nil, err
	}
	m := &Model[T]{cols: make([]Column[T], len(cols))}
	copy(m.cols, cols)
	for i := range m.cols {
		w := m.cols[i].Width
		if w == 0 {
			w = DefaultWidth
		}
		m.cols[i].Width = m.cols[i].clampWidth(w)
	}
	m.reindex()
	return m, nil
}

// reindex rebuilds the key lookup and the cumulative offsets.
func (m *Model[T]) reindex() {
	m.index = make(map[string]int, len(m.cols))
	m.offsets = make([]float64, len(m.cols)+1)
	for i, c := range m.cols {
		m.index[c.Key] = i
		m.offsets[i+1] = m.offsets[i] + c.Width
	}
}

// Len returns the column count.
func (m *Model[T]) Len() int { return len(m.cols) }

// Columns returns a copy of the ordered columns with committed widths.
func (m *Model[T]) Columns() []Column[T] {
	out := make([]Column[T], len(m.cols))
	copy(out, m.cols)
	return out
}

// Set is an immutable key lookup over a snapshot of the columns. Unlike the
// Model it may be read from other goroutines while the Model keeps changing.
type Set[T any] map[string]Column[T]

// Lookup returns the column with the given key.
func (s Set[T]) Lookup(key string) (Column[T], bool) {
	c, ok := s[key]
	return c, ok
}

// Snapshot copies the current columns into a Set.
func (m *Model[T]) Snapshot() Set[T] {
	s := make(Set[T], len(m.cols))
	for _, c := range m.cols {
		s[c.Key] = c
	}
	return s
}

// At returns the column at position i.
func (m *Model[T]) At(i int) Column[T] { return m.cols[i] }

// Lookup returns the column with the given key.
func (m *Model[T]) Lookup(key string) (Column[T], bool) {
	i, ok := m.index[key]
	if !ok {
		return Column[T]{}, false
	}
	return m.cols[i], true
}

// IndexOf returns the position of key, or -1.
func (m *Model[T]) IndexOf(key string) int {
	if i, ok := m.index[key]; ok {
		return i
	}
	return -1
}

// Width returns the committed width of key.
func (m *Model[T]) Width(key string) (float64, bool) {
	i, ok := m.index[key]
	if !ok {
		return 0, false
	}
	return m.cols[i].Width, true
}

// SetWidth commits a width for key, clamped into the column's bounds.
// It returns the committed value.
func (m *Model[T]) SetWidth(key string, w float64) (float64, error) {
	i, ok := m.index[key]
	if !ok {
		return 0, fmt.Errorf("set width %q: %w", key, ErrUnknownColumn)
	}
	m.cols[i].Width = m.cols[i].clampWidth(w)
	m.reindex()
	return m.cols[i].Width, nil
}

// TotalWidth is the sum of all committed widths; it sizes the scrollable inner container.
func (m *Model[T]) TotalWidth() float64 { return m.offsets[len(m.cols)] }

// Offset returns the left edge of column i.
func (m *Model[T]) Offset(i int) float64 {
	if i < 0 {
		return 0
	}
	if i > len(m.cols) {
		i = len(m.cols)
	}
	return m.offsets[i]
}

// Move reorders a column to position to (clamped into range).
func (m *Model[T]) Move(key string, to int) error {
	from, ok := m.index[key]
	if !ok {
		return fmt.Errorf("move %q: %w", key, ErrUnknownColumn)
	}
	if to < 0 {
		to = 0
	}
	if to >= len(m.cols) {
		to = len(m.cols) - 1
	}
	if from == to {
		return nil
	}
	col := m.cols[from]
	m.cols = slices.Insert(slices.Delete(m.cols, from, from+1), to, col)
	m.reindex()
	return nil
}

// VisibleColumns returns the inclusive column range intersecting the
// horizontal viewport. It uses the same offset search as row windowing.
func (m *Model[T]) VisibleColumns(vp layout.Viewport) layout.Range {
	return m.visible(vp, func(i int) float64 { return m.offsets[i] })
}

// VisibleColumnsPreview windows the columns as if key were w wide. It serves
// a resize drag whose width is not committed yet.
func (m *Model[T]) VisibleColumnsPreview(vp layout.Viewport, key string, w float64) layout.Range {
	idx, ok := m.index[key]
	if !ok {
		return m.VisibleColumns(vp)
	}
	delta := w - m.cols[idx].Width
	return m.visible(vp, func(i int) float64 {
		if i > idx {
			return m.offsets[i] + delta
		}
		return m.offsets[i]
	})
}

// visible searches the column edges given by offset, where offset(i) is the
// left edge of column i and offset(len) the right edge of the last one.
func (m *Model[T]) visible(vp layout.Viewport, offset func(int) float64) layout.Range {
	n := len(m.cols)
	if n == 0 {
		return layout.EmptyRange
	}
	left := vp.GetMainStart(layout.Horizontal)
	right := left + vp.GetMainSize(layout.Horizontal)

	first := sort.Search(n, func(i int) bool { return offset(i+1) > left })
	if first >= n {
		first = n - 1
	}
	last := first
	for last < n-1 && offset(last+1) < right {
		last++
	}
	return layout.Range{Start: first, End: last}
}
