// internal/columns/columns_test.go
package columns

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/vgrid/internal/layout"
)

type person struct {
	ID   int
	Name string
}

func testColumns() []Column[person] {
	return []Column[person]{
		{Key: "id", Title: "ID", Width: 60, MinWidth: 40},
		{Key: "name", Title: "Name", Width: 200, MinWidth: 80, MaxWidth: 400},
		{Key: "email", Title: "Email"},
	}
}

// -- Validation Tests --

func TestValidate(t *testing.T) {
	t.Run("valid definitions", func(t *testing.T) {
		assert.NoError(t, Validate(testColumns()))
	})

	t.Run("missing key", func(t *testing.T) {
		cols := append(testColumns(), Column[person]{Title: "Anonymous"})
		err := Validate(cols)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMissingColumnKey)
		assert.Contains(t, err.Error(), "Anonymous")
	})

	t.Run("duplicate key", func(t *testing.T) {
		cols := append(testColumns(), Column[person]{Key: "name"})
		_, err := NewModel(cols)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDuplicateColumnKey)
	})

	t.Run("inverted bounds", func(t *testing.T) {
		err := Validate([]Column[person]{{Key: "x", MinWidth: 100, MaxWidth: 50}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exceeds max width")
	})
}

// -- Model Tests --

func TestNewModel_WidthsAndTotal(t *testing.T) {
	m, err := NewModel(testColumns())
	require.NoError(t, err)

	w, ok := m.Width("email")
	require.True(t, ok)
	assert.Equal(t, DefaultWidth, w, "zero width takes the default")
	assert.Equal(t, 60+200+DefaultWidth, m.TotalWidth())
	assert.Equal(t, 60.0, m.Offset(1))
	assert.Equal(t, 260.0, m.Offset(2))
	assert.Equal(t, m.TotalWidth(), m.Offset(99))

	t.Run("initial widths are clamped", func(t *testing.T) {
		m, err := NewModel([]Column[person]{{Key: "a", Width: 10, MinWidth: 30}, {Key: "b", Width: 900, MaxWidth: 300}})
		require.NoError(t, err)
		assert.Equal(t, 330.0, m.TotalWidth())
	})
}

func TestModel_SetWidthAndMove(t *testing.T) {
	m, err := NewModel(testColumns())
	require.NoError(t, err)

	got, err := m.SetWidth("name", 1000)
	require.NoError(t, err)
	assert.Equal(t, 400.0, got)
	assert.Equal(t, 60+400+DefaultWidth, m.TotalWidth())

	_, err = m.SetWidth("nope", 10)
	assert.ErrorIs(t, err, ErrUnknownColumn)

	require.NoError(t, m.Move("email", 0))
	assert.Equal(t, 0, m.IndexOf("email"))
	assert.Equal(t, 1, m.IndexOf("id"))
	assert.Equal(t, 2, m.IndexOf("name"))
	assert.Equal(t, DefaultWidth, m.Offset(1))

	require.NoError(t, m.Move("email", 50))
	assert.Equal(t, 2, m.IndexOf("email"), "target index is clamped")
	assert.ErrorIs(t, m.Move("missing", 0), ErrUnknownColumn)
	assert.Equal(t, -1, m.IndexOf("missing"))
}

func TestModel_VisibleColumns(t *testing.T) {
	m, err := NewModel([]Column[person]{
		{Key: "a", Width: 100}, {Key: "b", Width: 100}, {Key: "c", Width: 100}, {Key: "d", Width: 100},
	})
	require.NoError(t, err)

	r := m.VisibleColumns(layout.Viewport{ScrollLeft: 150, ContainerWidth: 120})
	assert.Equal(t, layout.Range{Start: 1, End: 2}, r)

	r = m.VisibleColumns(layout.Viewport{ScrollLeft: 0, ContainerWidth: 1000})
	assert.Equal(t, layout.Range{Start: 0, End: 3}, r)

	r = m.VisibleColumns(layout.Viewport{ScrollLeft: 5000, ContainerWidth: 10})
	assert.Equal(t, layout.Range{Start: 3, End: 3}, r)

	empty, err := NewModel[person](nil)
	require.NoError(t, err)
	assert.True(t, empty.VisibleColumns(layout.Viewport{ContainerWidth: 10}).Empty)
}

func TestModel_VisibleColumnsPreview(t *testing.T) {
	m, err := NewModel([]Column[person]{
		{Key: "a", Width: 100}, {Key: "b", Width: 100}, {Key: "c", Width: 100}, {Key: "d", Width: 100},
	})
	require.NoError(t, err)
	vp := layout.Viewport{ContainerWidth: 250}

	assert.Equal(t, layout.Range{Start: 0, End: 2}, m.VisibleColumns(vp))
	assert.Equal(t, layout.Range{Start: 0, End: 3}, m.VisibleColumnsPreview(vp, "a", 20), "shrinking a pulls d into view")
	assert.Equal(t, layout.Range{Start: 0, End: 0}, m.VisibleColumnsPreview(vp, "a", 300), "widening a pushes the rest out")
	assert.Equal(t, m.VisibleColumns(vp), m.VisibleColumnsPreview(vp, "nope", 20))
	assert.Equal(t, 400.0, m.TotalWidth(), "previews do not commit")
}

func TestModel_SnapshotIsDetached(t *testing.T) {
	m, err := NewModel(testColumns())
	require.NoError(t, err)
	snap := m.Snapshot()

	_, err = m.SetWidth("name", 300)
	require.NoError(t, err)
	require.NoError(t, m.Move("email", 0))

	col, ok := snap.Lookup("name")
	require.True(t, ok)
	assert.Equal(t, 200.0, col.Width, "snapshot keeps the width it was taken with")
	_, ok = snap.Lookup("missing")
	assert.False(t, ok)
	assert.Len(t, snap, 3)
}

// -- Resize State Machine Tests --

func TestResizer_Lifecycle(t *testing.T) {
	m, err := NewModel(testColumns())
	require.NoError(t, err)
	r := NewResizer(m)

	assert.Equal(t, Idle, r.Phase())
	assert.Nil(t, r.State())

	require.NoError(t, r.PointerDown("name", 500))
	assert.Equal(t, Resizing, r.Phase())
	assert.Equal(t, &ResizeState{ActiveColumnKey: "name", StartPointerX: 500, StartWidth: 200, PreviewWidth: 200}, r.State())

	w, ok := r.PointerMove(550)
	require.True(t, ok)
	assert.Equal(t, 250.0, w)
	assert.Equal(t, 250.0, r.EffectiveWidth("name"))
	committed, _ := m.Width("name")
	assert.Equal(t, 200.0, committed, "moves do not commit")

	key, final, ok := r.PointerUp(530)
	require.True(t, ok)
	assert.Equal(t, "name", key)
	assert.Equal(t, 230.0, final)
	assert.Equal(t, Idle, r.Phase())
	assert.Equal(t, 60+230+DefaultWidth, m.TotalWidth(), "total width is recomputed on commit")
}

func TestResizer_ClampsToMinWidth(t *testing.T) {
	m, err := NewModel(testColumns())
	require.NoError(t, err)
	r := NewResizer(m)

	require.NoError(t, r.PointerDown("name", 300))
	w, _ := r.PointerMove(-1000)
	assert.Equal(t, 80.0, w)

	_, final, ok := r.PointerUp(-2000)
	require.True(t, ok)
	assert.Equal(t, 80.0, final, "width below minWidth commits as minWidth")

	require.NoError(t, r.PointerDown("name", 0))
	_, final, _ = r.PointerUp(10_000)
	assert.Equal(t, 400.0, final, "width above maxWidth commits as maxWidth")
}

func TestResizer_TransitionsWithoutGesture(t *testing.T) {
	m, err := NewModel(testColumns())
	require.NoError(t, err)
	r := NewResizer(m)

	_, ok := r.PointerMove(10)
	assert.False(t, ok, "move without pointer-down is ignored")

	_, _, ok = r.PointerUp(10)
	assert.False(t, ok, "pointer-up without pointer-down is a no-op")
	assert.Equal(t, 60+200+DefaultWidth, m.TotalWidth())

	assert.ErrorIs(t, r.PointerDown("ghost", 0), ErrUnknownColumn)
	assert.Equal(t, Idle, r.Phase())

	require.NoError(t, r.PointerDown("id", 0))
	r.PointerMove(100)
	r.Cancel()
	assert.Equal(t, Idle, r.Phase())
	w, _ := m.Width("id")
	assert.Equal(t, 60.0, w, "cancel discards the preview")
	assert.Equal(t, "idle", r.Phase().String())
}
