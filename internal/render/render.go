// Package render presents window snapshots as terminal tables or JSON.
package render

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/mattn/go-runewidth"

	"github.com/xkilldash9x/vgrid/api/schemas"
)

// Format selects an output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

const (
	defaultPixelsPerCell = 8.0
	minCellWidth         = 3
	ellipsis             = "…"
	selectedMarker       = "*"
)

// Options tunes the text table.
type Options struct {
	// PixelsPerCell converts grid pixel widths into terminal cells.
	PixelsPerCell float64
	// Footer appends a status line under the table.
	Footer bool
}

func (o Options) cellWidth(px float64) int {
	ppc := o.PixelsPerCell
	if ppc <= 0 {
		ppc = defaultPixelsPerCell
	}
	return max(minCellWidth, int(math.Round(px/ppc)))
}

// Write renders snap in the requested format.
func Write(w io.Writer, snap *schemas.WindowSnapshot, format Format, opts Options) error {
	if format == FormatJSON {
		return JSON(w, snap)
	}
	return Text(w, snap, opts)
}

// JSON writes snap as a single indented JSON document.
func JSON(w io.Writer, snap *schemas.WindowSnapshot) error {
	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

// Text writes snap as a fixed-width table. Column widths come from the grid's
// pixel widths, and cells that do not fit are truncated with an ellipsis.
// Selected rows are marked in the leading gutter.
func Text(w io.Writer, snap *schemas.WindowSnapshot, opts Options) error {
	bw := bufio.NewWriter(w)

	widths := make([]int, len(snap.Columns))
	for i, c := range snap.Columns {
		widths[i] = opts.cellWidth(c.Width)
	}

	header := make([]string, len(snap.Columns))
	for i, c := range snap.Columns {
		header[i] = HeaderLabel(c)
	}
	writeLine(bw, " ", header, widths)

	rule := make([]string, len(widths))
	for i, n := range widths {
		rule[i] = strings.Repeat("-", n)
	}
	writeLine(bw, " ", rule, widths)

	if len(snap.Rows) == 0 {
		fmt.Fprintln(bw, "  (no rows)")
	}
	for _, r := range snap.Rows {
		gutter := " "
		if r.Selected {
			gutter = selectedMarker
		}
		writeLine(bw, gutter, r.Cells, widths)
	}

	if opts.Footer {
		fmt.Fprintln(bw, Footer(snap))
	}
	return bw.Flush()
}

// HeaderLabel decorates a column title with its sort direction and filter.
func HeaderLabel(c schemas.ColumnSnapshot) string {
	label := c.Title
	if label == "" {
		label = c.Key
	}
	switch c.Sort {
	case "asc":
		label += " ▲"
	case "desc":
		label += " ▼"
	}
	if c.Filter != "" {
		label += " [" + c.Filter + "]"
	}
	return label
}

// Footer summarizes the window position.
func Footer(snap *schemas.WindowSnapshot) string {
	var sb strings.Builder
	if snap.Empty || len(snap.Rows) == 0 {
		fmt.Fprintf(&sb, "rows 0 of %d", snap.ViewRows)
	} else {
		fmt.Fprintf(&sb, "rows %d-%d of %d", snap.Start+1, snap.End+1, snap.ViewRows)
	}
	if snap.RawRows != snap.ViewRows {
		fmt.Fprintf(&sb, " (%d total)", snap.RawRows)
	}
	fmt.Fprintf(&sb, "  scroll %g,%g", snap.ScrollTop, snap.ScrollLeft)
	if snap.Status != "" && snap.Status != "ready" {
		sb.WriteString("  " + snap.Status)
	}
	if snap.Pending {
		sb.WriteString("  updating")
	}
	return sb.String()
}

func writeLine(w io.Writer, gutter string, cells []string, widths []int) {
	var sb strings.Builder
	sb.WriteString(gutter)
	for i, n := range widths {
		sb.WriteByte(' ')
		var cell string
		if i < len(cells) {
			cell = cells[i]
		}
		sb.WriteString(Fit(cell, n))
	}
	fmt.Fprintln(w, strings.TrimRight(sb.String(), " "))
}

// Fit pads or truncates s to exactly width terminal cells. Newlines and tabs
// are flattened so a cell never breaks the table.
func Fit(s string, width int) string {
	s = strings.NewReplacer("\n", " ", "\r", " ", "\t", " ").Replace(s)
	if runewidth.StringWidth(s) > width {
		s = runewidth.Truncate(s, width, ellipsis)
	}
	return runewidth.FillRight(s, width)
}
