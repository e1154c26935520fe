// internal/scroll/sync.go
package scroll

import "math"

// Target is a host element whose horizontal scroll position can be written.
// Writing usually makes the host fire a scroll event of its own, which the
// Sync recognises and ignores.
type Target interface {
	SetScrollLeft(left float64)
}

// Sync keeps a fixed header in horizontal lock-step with the body.
type Sync struct {
	header Target
	body   Target

	// Last programmatic writes, pending their echo event.
	headerWrite *float64
	bodyWrite   *float64

	left float64

	// limit is the largest valid offset once bounded is set.
	limit   float64
	bounded bool
}

// NewSync binds the two scrolling elements. body may be nil when the header
// is never scrolled by the user.
func NewSync(header, body Target) *Sync {
	return &Sync{header: header, body: body}
}

// SetLimit bounds accepted offsets to [0, limit]. Offsets past the end of the
// content are clamped before they are stored or written.
func (s *Sync) SetLimit(limit float64) {
	s.limit, s.bounded = sanitize(limit), true
}

// Left returns the last synchronized scroll offset.
func (s *Sync) Left() float64 { return s.left }

// BodyScrolled handles a scroll event from the body. It writes the offset to
// the header and reports whether the event was a genuine scroll (false for
// the echo of a write made by HeaderScrolled).
func (s *Sync) BodyScrolled(left float64) bool {
	left = sanitize(left)
	if consumeEcho(&s.bodyWrite, left) {
		return false
	}
	left = s.bound(left)
	s.left = left
	s.write(s.header, &s.headerWrite, left)
	return true
}

// HeaderScrolled handles a scroll event from the header. The echo of the
// write made by BodyScrolled is swallowed; a genuine header scroll is
// propagated back to the body. A header scrolled past the limit is pulled
// back to it so header and body agree.
func (s *Sync) HeaderScrolled(left float64) bool {
	raw := sanitize(left)
	if consumeEcho(&s.headerWrite, raw) {
		return false
	}
	left = s.bound(raw)
	s.left = left
	s.write(s.body, &s.bodyWrite, left)
	if left != raw {
		s.write(s.header, &s.headerWrite, left)
	}
	return true
}

func (s *Sync) bound(left float64) float64 {
	if s.bounded && left > s.limit {
		return s.limit
	}
	return left
}

func (s *Sync) write(t Target, guard **float64, left float64) {
	if t == nil {
		return
	}
	v := left
	*guard = &v
	t.SetScrollLeft(left)
}

// consumeEcho clears the guard and reports whether left is the value last
// written programmatically. A different value means the user scrolled in the
// meantime, so the guard is dropped and the event is treated as genuine.
func consumeEcho(guard **float64, left float64) bool {
	if *guard == nil {
		return false
	}
	echo := **guard == left
	*guard = nil
	return echo
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}
