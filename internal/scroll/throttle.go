// internal/scroll/throttle.go
package scroll

// Throttle coalesces a burst of high-frequency events (scroll, pointer-move)
// so that only the latest value is applied, at most once per frame.
type Throttle[V any] struct {
	latest    V
	pending   bool
	coalesced int
}

// Push records v, replacing any value not yet taken.
func (t *Throttle[V]) Push(v V) {
	if t.pending {
		t.coalesced++
	}
	t.latest = v
	t.pending = true
}

// Take returns the latest value once. It is called from the frame tick.
func (t *Throttle[V]) Take() (V, bool) {
	if !t.pending {
		var zero V
		return zero, false
	}
	t.pending = false
	return t.latest, true
}

// Pending reports whether a value is waiting for the next frame.
func (t *Throttle[V]) Pending() bool { return t.pending }

// Coalesced returns how many pushed values were superseded before a frame.
func (t *Throttle[V]) Coalesced() int { return t.coalesced }
