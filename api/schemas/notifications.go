package schemas

import "time"

// -- Notification Schemas --

// NotificationType identifies an outbound engine notification.
type NotificationType string

const (
	NotifySort   NotificationType = "sort"
	NotifyFilter NotificationType = "filter"
	NotifySelect NotificationType = "select"
	NotifyScroll NotificationType = "scroll"
	NotifyView   NotificationType = "view"
	NotifyWindow NotificationType = "window"
	NotifyError  NotificationType = "error"
)

// Notification is the serialized form of an engine hook invocation.
type Notification struct {
	Seq       int              `json:"seq"`
	Type      NotificationType `json:"type"`
	Timestamp time.Time        `json:"timestamp"`

	Column    string            `json:"column,omitempty"`
	Direction string            `json:"direction,omitempty"`
	Filters   map[string]string `json:"filters,omitempty"`
	Selected  []string          `json:"selected,omitempty"`

	ScrollTop  float64 `json:"scroll_top,omitempty"`
	ScrollLeft float64 `json:"scroll_left,omitempty"`

	Status     string `json:"status,omitempty"`
	Generation uint64 `json:"generation,omitempty"`
	Rows       int    `json:"rows,omitempty"`
	Total      int    `json:"total,omitempty"`
	Background bool   `json:"background,omitempty"`
	Error      string `json:"error,omitempty"`

	Window *WindowSnapshot `json:"window,omitempty"`
}

// WindowSnapshot is a rendered frame.
type WindowSnapshot struct {
	Start       int              `json:"start"`
	End         int              `json:"end"`
	Empty       bool             `json:"empty"`
	ScrollTop   float64          `json:"scroll_top"`
	ScrollLeft  float64          `json:"scroll_left"`
	TotalHeight float64          `json:"total_height"`
	TotalWidth  float64          `json:"total_width"`
	Status      string           `json:"status,omitempty"`
	Pending     bool             `json:"pending,omitempty"`
	ViewRows    int              `json:"view_rows"`
	RawRows     int              `json:"raw_rows"`
	Columns     []ColumnSnapshot `json:"columns"`
	Rows        []RowSnapshot    `json:"rows"`
}

// ColumnSnapshot describes a rendered column header.
type ColumnSnapshot struct {
	Key    string  `json:"key"`
	Title  string  `json:"title"`
	X      float64 `json:"x"`
	Width  float64 `json:"width"`
	Sort   string  `json:"sort,omitempty"`
	Filter string  `json:"filter,omitempty"`
}

// RowSnapshot describes a rendered row.
type RowSnapshot struct {
	Index    int      `json:"index"`
	ID       string   `json:"id"`
	Top      float64  `json:"top"`
	Height   float64  `json:"height"`
	Selected bool     `json:"selected,omitempty"`
	Cells    []string `json:"cells"`
	// CellErrors holds the render error per cell, empty where rendering succeeded.
	CellErrors []string `json:"cell_errors,omitempty"`
}
