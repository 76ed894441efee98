package frame

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ToInt64 converts any Go integer to int64.
func ToInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint:
		return int64(x), true //nolint:gosec // display-only conversion
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		return int64(x), true //nolint:gosec // display-only conversion
	default:
		return 0, false
	}
}

// ToFloat64 converts any Go number to float64.
func ToFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	if i, ok := ToInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}

// FormatValue renders a cell for text output. Nil renders as "null".
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case time.Time:
		if typeOf(x) == Date {
			return x.Format(time.DateOnly)
		}
		return x.Format(time.DateTime)
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = FormatValue(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case fmt.Stringer:
		return x.String()
	}
	if i, ok := ToInt64(v); ok {
		return strconv.FormatInt(i, 10)
	}
	return fmt.Sprint(v)
}
