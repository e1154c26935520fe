// internal/pipeline/filter.go
package pipeline

import (
	"maps"
	"slices"
	"strings"
)

// Filter is a per-column predicate over accessor values.
type Filter interface {
	// Match reports whether a cell value passes. A nil value (including one
	// produced by a failing accessor) must never match.
	Match(v any) bool
	// Active reports whether the filter constrains anything. Inactive filters
	// are dropped before the pipeline runs.
	Active() bool
	// String describes the filter for logs and notifications.
	String() string
}

// FilterState maps column keys to their filter. Filters combine with AND.
type FilterState map[string]Filter

// ActiveOnly returns a copy without inactive or nil filters.
func (fs FilterState) ActiveOnly() FilterState {
	out := make(FilterState, len(fs))
	for k, f := range fs {
		if f != nil && f.Active() {
			out[k] = f
		}
	}
	return out
}

// IsEmpty reports whether no active filter remains.
func (fs FilterState) IsEmpty() bool {
	for _, f := range fs {
		if f != nil && f.Active() {
			return false
		}
	}
	return true
}

// With returns a copy with key set to f. An inactive f clears the key.
func (fs FilterState) With(key string, f Filter) FilterState {
	out := maps.Clone(fs)
	if out == nil {
		out = FilterState{}
	}
	if f == nil || !f.Active() {
		delete(out, key)
		return out
	}
	out[key] = f
	return out
}

// Keys returns the active keys in sorted order.
func (fs FilterState) Keys() []string {
	return slices.Sorted(maps.Keys(fs.ActiveOnly()))
}

// Describe flattens the active filters into key -> description, for outward
// notifications.
func (fs FilterState) Describe() map[string]string {
	out := make(map[string]string, len(fs))
	for k, f := range fs.ActiveOnly() {
		out[k] = f.String()
	}
	return out
}

// -- Filter Kinds --

type containsFilter struct {
	raw    string
	needle string
}

// Contains matches values whose text form contains s, case-insensitively.
// An empty s is inactive.
func Contains(s string) Filter {
	return containsFilter{raw: s, needle: strings.ToLower(s)}
}

func (f containsFilter) Active() bool   { return f.needle != "" }
func (f containsFilter) String() string { return f.raw }
func (f containsFilter) Match(v any) bool {
	if v == nil {
		return false
	}
	return strings.Contains(strings.ToLower(Text(v)), f.needle)
}

type equalsFilter struct{ want any }

// Equals matches values that compare equal to want under CompareValues.
func Equals(want any) Filter { return equalsFilter{want: want} }

func (f equalsFilter) Active() bool   { return f.want != nil }
func (f equalsFilter) String() string { return "=" + Text(f.want) }
func (f equalsFilter) Match(v any) bool {
	return v != nil && CompareValues(v, f.want) == 0
}

// RangeFilter matches values inside [Min, Max]. A nil bound is open.
type RangeFilter struct {
	Min any
	Max any
}

// Between builds an inclusive range filter.
func Between(min, max any) Filter { return RangeFilter{Min: min, Max: max} }

func (f RangeFilter) Active() bool { return f.Min != nil || f.Max != nil }
func (f RangeFilter) String() string {
	return "[" + Text(f.Min) + ".." + Text(f.Max) + "]"
}
func (f RangeFilter) Match(v any) bool {
	if v == nil {
		return false
	}
	if f.Min != nil && CompareValues(v, f.Min) < 0 {
		return false
	}
	if f.Max != nil && CompareValues(v, f.Max) > 0 {
		return false
	}
	return true
}

type oneOfFilter struct{ values []any }

// OneOf matches values equal to any of the candidates.
func OneOf(values ...any) Filter { return oneOfFilter{values: values} }

func (f oneOfFilter) Active() bool { return len(f.values) > 0 }
func (f oneOfFilter) String() string {
	parts := make([]string, len(f.values))
	for i, v := range f.values {
		parts[i] = Text(v)
	}
	return "in(" + strings.Join(parts, ",") + ")"
}
func (f oneOfFilter) Match(v any) bool {
	if v == nil {
		return false
	}
	for _, c := range f.values {
		if CompareValues(v, c) == 0 {
			return true
		}
	}
	return false
}

type predicateFilter struct {
	name string
	fn   func(v any) bool
}

// Predicate wraps a caller function. A panicking predicate counts as no match.
func Predicate(name string, fn func(v any) bool) Filter {
	return predicateFilter{name: name, fn: fn}
}

func (f predicateFilter) Active() bool   { return f.fn != nil }
func (f predicateFilter) String() string { return f.name }
func (f predicateFilter) Match(v any) (ok bool) {
	if v == nil {
		return false
	}
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return f.fn(v)
}

// ParseFilter turns the textual form used by the CLI and event scripts into a
// filter: "=x" is Equals, "a..b" is an inclusive range (numbers when both
// sides parse), anything else is Contains.
func ParseFilter(expr string) Filter {
	switch {
	case strings.HasPrefix(expr, "="):
		return Equals(ParseScalar(strings.TrimPrefix(expr, "=")))
	case strings.Contains(expr, ".."):
		lo, hi, _ := strings.Cut(expr, "..")
		var min, max any
		if lo != "" {
			min = ParseScalar(lo)
		}
		if hi != "" {
			max = ParseScalar(hi)
		}
		return Between(min, max)
	default:
		return Contains(expr)
	}
}
