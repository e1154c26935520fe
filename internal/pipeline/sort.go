// internal/pipeline/sort.go
package pipeline

import (
	"fmt"
	"slices"
	"strings"
)

// Direction is the sort order of one key.
type Direction string

const (
	// None means the column is not part of the sort.
	None Direction = ""
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection accepts "asc", "desc" (any case) and "" for none.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return None, nil
	case "asc", "ascending":
		return Asc, nil
	case "desc", "descending":
		return Desc, nil
	}
	return None, fmt.Errorf("invalid sort direction %q", s)
}

// SortKey is one entry of a multi-column sort.
type SortKey struct {
	Column    string    `json:"column"`
	Direction Direction `json:"direction"`
}

// SortState is the ordered list of sort keys. Earlier keys take precedence;
// later keys only break ties. An empty state preserves source order.
type SortState []SortKey

// DirectionOf returns the direction for column, or None.
func (s SortState) DirectionOf(column string) Direction {
	for _, k := range s {
		if k.Column == column {
			return k.Direction
		}
	}
	return None
}

// Normalize drops keys without a direction and repeated columns, keeping the
// first occurrence.
func (s SortState) Normalize() SortState {
	out := make(SortState, 0, len(s))
	seen := make(map[string]bool, len(s))
	for _, k := range s {
		if k.Direction == None || seen[k.Column] {
			continue
		}
		seen[k.Column] = true
		out = append(out, k)
	}
	return out
}

// ToggleSort advances column through none -> asc -> desc -> none. With multi
// the other keys are kept (a new key is appended); otherwise the column
// becomes the only key. It returns the new state and the column's direction.
func ToggleSort(state SortState, column string, multi bool) (SortState, Direction) {
	next := Asc
	switch state.DirectionOf(column) {
	case Asc:
		next = Desc
	case Desc:
		next = None
	}

	if !multi {
		if next == None {
			return SortState{}, None
		}
		return SortState{{Column: column, Direction: next}}, next
	}

	out := slices.Clone(state.Normalize())
	i := slices.IndexFunc(out, func(k SortKey) bool { return k.Column == column })
	switch {
	case i < 0:
		out = append(out, SortKey{Column: column, Direction: next})
	case next == None:
		out = slices.Delete(out, i, i+1)
	default:
		out[i].Direction = next
	}
	return out, next
}

// String renders the state as "a:asc,b:desc".
func (s SortState) String() string {
	parts := make([]string, 0, len(s))
	for _, k := range s {
		parts = append(parts, k.Column+":"+string(k.Direction))
	}
	return strings.Join(parts, ",")
}

// ParseSortState reads the "a:asc,b:desc" form. A missing direction means asc.
func ParseSortState(expr string) (SortState, error) {
	var out SortState
	for part := range strings.SplitSeq(expr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		col, dir, found := strings.Cut(part, ":")
		d := Asc
		if found {
			var err error
			if d, err = ParseDirection(dir); err != nil {
				return nil, err
			}
		}
		out = append(out, SortKey{Column: strings.TrimSpace(col), Direction: d})
	}
	return out.Normalize(), nil
}
