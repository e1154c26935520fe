// internal/columns/resize.go
package columns

import "fmt"

// ResizePhase is the state of the column resize machine.
type ResizePhase int

const (
	// Idle means no resize gesture is in progress.
	Idle ResizePhase = iota
	// Resizing means a pointer is down on a column's resize handle.
	Resizing
)

func (p ResizePhase) String() string {
	if p == Resizing {
		return "resizing"
	}
	return "idle"
}

// ResizeState is the data held while a resize gesture is active.
type ResizeState struct {
	ActiveColumnKey string
	StartPointerX   float64
	StartWidth      float64
	// PreviewWidth is the clamped width from the latest pointer move; it is not
	// committed to the model until pointer-up.
	PreviewWidth float64
}

// Resizer drives the Idle -> Resizing -> Idle machine for one column model.
type Resizer[T any] struct {
	model *Model[T]
	state *ResizeState // nil while Idle
}

// NewResizer binds a resize machine to a model.
func NewResizer[T any](model *Model[T]) *Resizer[T] {
	return &Resizer[T]{model: model}
}

// Phase returns the current machine state.
func (r *Resizer[T]) Phase() ResizePhase {
	if r.state == nil {
		return Idle
	}
	return Resizing
}

// State returns a copy of the active gesture, or nil while Idle.
func (r *Resizer[T]) State() *ResizeState {
	if r.state == nil {
		return nil
	}
	s := *r.state
	return &s
}

// PointerDown starts a gesture on the resize handle of key. A pointer-down
// while already resizing restarts the gesture on the new column.
func (r *Resizer[T]) PointerDown(key string, pointerX float64) error {
	w, ok := r.model.Width(key)
	if !ok {
		return fmt.Errorf("resize %q: %w", key, ErrUnknownColumn)
	}
	r.state = &ResizeState{
		ActiveColumnKey: key,
		StartPointerX:   pointerX,
		StartWidth:      w,
		PreviewWidth:    w,
	}
	return nil
}

// PointerMove updates the preview width to
// clamp(startWidth + (pointerX - startPointerX), minWidth, maxWidth).
// It returns the preview width and false when no gesture is active.
func (r *Resizer[T]) PointerMove(pointerX float64) (float64, bool) {
	if r.state == nil {
		return 0, false
	}
	col, ok := r.model.Lookup(r.state.ActiveColumnKey)
	if !ok {
		// Column disappeared mid-gesture (definitions replaced); abandon it.
		r.state = nil
		return 0, false
	}
	r.state.PreviewWidth = col.clampWidth(r.state.StartWidth + (pointerX - r.state.StartPointerX))
	return r.state.PreviewWidth, true
}

// PointerUp commits the final width and returns to Idle. Without a preceding
// pointer-down it is a no-op and reports false.
func (r *Resizer[T]) PointerUp(pointerX float64) (key string, width float64, committed bool) {
	if r.state == nil {
		return "", 0, false
	}
	if _, ok := r.PointerMove(pointerX); !ok {
		return "", 0, false
	}
	key = r.state.ActiveColumnKey
	width, err := r.model.SetWidth(key, r.state.PreviewWidth)
	r.state = nil
	if err != nil {
		return "", 0, false
	}
	return key, width, true
}

// Cancel abandons the gesture without committing.
func (r *Resizer[T]) Cancel() {
	r.state = nil
}

// EffectiveWidth returns the width to draw for key: the preview width while
// that column is being resized, otherwise the committed width.
func (r *Resizer[T]) EffectiveWidth(key string) float64 {
	if r.state != nil && r.state.ActiveColumnKey == key {
		return r.state.PreviewWidth
	}
	w, _ := r.model.Width(key)
	return w
}
