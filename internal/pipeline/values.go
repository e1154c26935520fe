// internal/pipeline/values.go
package pipeline

import (
	"cmp"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// value ranks order heterogeneous cell values: nil sorts smallest, then
// booleans, numbers, timestamps, strings and finally anything else.
const (
	rankNil = iota
	rankBool
	rankNumber
	rankTime
	rankString
	rankOther
)

func rankOf(v any) int {
	switch v.(type) {
	case nil:
		return rankNil
	case bool:
		return rankBool
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return rankNumber
	case time.Time:
		return rankTime
	case string:
		return rankString
	default:
		return rankOther
	}
}

// asFloat converts any numeric kind to float64.
func asFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	case float64:
		return n
	}
	return math.NaN()
}

// asInt64 reports the exact integer value for signed kinds.
func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

// CompareValues is the default type-aware ordering used for sorting and for
// range filters. It returns <0, 0 or >0. Values of different kinds compare by
// kind rank, so nil (including failed accessors) is always smallest.
func CompareValues(a, b any) int {
	ra, rb := rankOf(a), rankOf(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch ra {
	case rankNil:
		return 0
	case rankBool:
		ab, bb := a.(bool), b.(bool)
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		default:
			return 1
		}
	case rankNumber:
		if ai, ok := asInt64(a); ok {
			if bi, ok := asInt64(b); ok {
				return cmp.Compare(ai, bi)
			}
		}
		return cmp.Compare(asFloat(a), asFloat(b))
	case rankTime:
		return a.(time.Time).Compare(b.(time.Time))
	case rankString:
		return compareStrings(a.(string), b.(string))
	default:
		return compareStrings(fmt.Sprint(a), fmt.Sprint(b))
	}
}

// compareStrings orders case-insensitively and breaks ties on the exact bytes
// so the order stays total.
func compareStrings(a, b string) int {
	if c := strings.Compare(strings.ToLower(a), strings.ToLower(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

// ParseScalar interprets user-typed text as a bool, integer, float or
// RFC 3339 timestamp, falling back to the trimmed string.
func ParseScalar(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if b, err := strconv.ParseBool(s); err == nil && (s == "true" || s == "false") {
		return b
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return f
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return s
}

// Text renders a cell value as plain text. It is used both for substring
// filtering and as the default cell formatter.
func Text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case time.Time:
		return x.Format(time.RFC3339)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
