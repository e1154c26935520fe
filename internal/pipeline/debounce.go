// internal/pipeline/debounce.go
package pipeline

import "time"

// DefaultFilterDebounce is the quiet period applied to filter input.
const DefaultFilterDebounce = 300 * time.Millisecond

// Debouncer holds the latest scheduled value until the input has been quiet
// for the configured delay. It owns no timers: the caller passes the current
// time and polls Due once per frame, so it is safe to drive from a single
// event loop. Every Schedule bumps a generation so superseded values can be
// recognised even after they were released.
type Debouncer[V any] struct {
	delay   time.Duration
	gen     uint64
	pending bool
	due     time.Time
	value   V
}

// NewDebouncer builds a debouncer. A non-positive delay releases values on the
// next poll.
func NewDebouncer[V any](delay time.Duration) *Debouncer[V] {
	if delay < 0 {
		delay = 0
	}
	return &Debouncer[V]{delay: delay}
}

// Delay returns the configured quiet period.
func (d *Debouncer[V]) Delay() time.Duration { return d.delay }

// Schedule replaces any pending value and restarts the quiet period.
// It returns the generation assigned to v.
func (d *Debouncer[V]) Schedule(now time.Time, v V) uint64 {
	d.gen++
	d.pending = true
	d.due = now.Add(d.delay)
	d.value = v
	return d.gen
}

// Due releases the pending value once its deadline has passed.
func (d *Debouncer[V]) Due(now time.Time) (V, uint64, bool) {
	if !d.pending || now.Before(d.due) {
		var zero V
		return zero, 0, false
	}
	return d.release()
}

// Flush releases the pending value immediately, if any.
func (d *Debouncer[V]) Flush() (V, uint64, bool) {
	if !d.pending {
		var zero V
		return zero, 0, false
	}
	return d.release()
}

func (d *Debouncer[V]) release() (V, uint64, bool) {
	v := d.value
	var zero V
	d.value = zero
	d.pending = false
	return v, d.gen, true
}

// Cancel drops the pending value and invalidates its generation.
func (d *Debouncer[V]) Cancel() {
	d.gen++
	d.pending = false
	var zero V
	d.value = zero
}

// Pending reports whether a value is waiting, and its deadline.
func (d *Debouncer[V]) Pending() (time.Time, bool) { return d.due, d.pending }

// Generation returns the generation of the most recent Schedule or Cancel.
func (d *Debouncer[V]) Generation() uint64 { return d.gen }

// IsCurrent reports whether gen is still the latest generation.
func (d *Debouncer[V]) IsCurrent(gen uint64) bool { return gen == d.gen }
