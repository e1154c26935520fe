package schemas

import "fmt"

// -- Event Schemas --

// EventType identifies an inbound host event.
type EventType string

const (
	EventScroll         EventType = "scroll"
	EventHeaderScroll   EventType = "header_scroll"
	EventResizeViewport EventType = "viewport"
	EventScrollToIndex  EventType = "scroll_to"
	EventSort           EventType = "sort"
	EventFilter         EventType = "filter"
	EventClearFilters   EventType = "clear_filters"
	EventSelect         EventType = "select"
	EventSelectAll      EventType = "select_all"
	EventClearSelection EventType = "clear_selection"
	EventPointerDown    EventType = "pointer_down"
	EventPointerMove    EventType = "pointer_move"
	EventPointerUp      EventType = "pointer_up"
	EventMeasure        EventType = "measure"
	EventWait           EventType = "wait"
	EventSettle         EventType = "settle"
	EventRender         EventType = "render"
)

// Event is one host interaction, as read from a replay script or produced by
// a live host. Only the fields relevant to the type are set.
type Event struct {
	Type EventType `json:"type"`

	ScrollTop  float64 `json:"scroll_top,omitempty"`
	ScrollLeft float64 `json:"scroll_left,omitempty"`
	Height     float64 `json:"height,omitempty"`
	Width      float64 `json:"width,omitempty"`

	Column string `json:"column,omitempty"`
	Value  string `json:"value,omitempty"`
	Multi  bool   `json:"multi,omitempty"`
	ID     string `json:"id,omitempty"`

	X     float64 `json:"x,omitempty"`
	Index int     `json:"index,omitempty"`
	Size  float64 `json:"size,omitempty"`

	// DelayMS advances the clock for wait events.
	DelayMS int64 `json:"delay_ms,omitempty"`
}

// Validate checks that the fields required by the event type are present.
func (e Event) Validate() error {
	switch e.Type {
	case EventScroll, EventHeaderScroll, EventClearFilters, EventSelectAll, EventClearSelection,
		EventPointerMove, EventPointerUp, EventSettle, EventRender, EventResizeViewport:
		return nil
	case EventSort, EventFilter, EventPointerDown:
		if e.Column == "" {
			return fmt.Errorf("%s event requires a column", e.Type)
		}
		return nil
	case EventSelect:
		if e.ID == "" {
			return fmt.Errorf("%s event requires an id", e.Type)
		}
		return nil
	case EventScrollToIndex, EventMeasure:
		if e.Index < 0 {
			return fmt.Errorf("%s event has negative index %d", e.Type, e.Index)
		}
		return nil
	case EventWait:
		if e.DelayMS < 0 {
			return fmt.Errorf("wait event has negative delay %d", e.DelayMS)
		}
		return nil
	case "":
		return fmt.Errorf("event type is required")
	}
	return fmt.Errorf("unknown event type %q", e.Type)
}
