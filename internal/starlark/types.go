// Package starlark runs scripting commands: Starlark source executed against
// the persistent binding table, returning the value of the last expression.
package starlark

import (
	"fmt"
	"time"

	"github.com/leapstack-labs/quantdb/pkg/frame"
	"go.starlark.net/starlark"
)

// GoToStarlark converts a Go value to a Starlark value.
// Supported types: nil, string, bool, Go integers and floats, complex128,
// time.Time, []string, []int64, []any, map[string]any and *frame.Frame.
func GoToStarlark(v any) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case starlark.Value:
		return val, nil

	case string:
		return starlark.String(val), nil

	case bool:
		return starlark.Bool(val), nil

	case float64:
		return starlark.Float(val), nil

	case float32:
		return starlark.Float(val), nil

	case complex128:
		return Complex(val), nil

	case time.Time:
		return starlark.String(frame.FormatValue(val)), nil

	case *frame.Frame:
		return NewFrame(val), nil

	case []string:
		return stringList(val), nil

	case []int64:
		list := make([]starlark.Value, len(val))
		for i, n := range val {
			list[i] = starlark.MakeInt64(n)
		}
		return starlark.NewList(list), nil

	case []any:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			sv, err := GoToStarlark(item)
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			list[i] = sv
		}
		return starlark.NewList(list), nil

	case map[string]any:
		dict := starlark.NewDict(len(val))
		for k, v := range val {
			sv, err := GoToStarlark(v)
			if err != nil {
				return nil, fmt.Errorf("dict key %q: %w", k, err)
			}
			if err := dict.SetKey(starlark.String(k), sv); err != nil {
				return nil, fmt.Errorf("dict setkey %q: %w", k, err)
			}
		}
		return dict, nil
	}

	if i, ok := frame.ToInt64(v); ok {
		return starlark.MakeInt64(i), nil
	}
	return nil, fmt.Errorf("unsupported type: %T", v)
}

// ToGo converts a Starlark value back to a Go value.
// Returns: string, int64, float64, bool, complex128, []any, map[string]any,
// *frame.Frame, or nil. Values with no Go counterpart become their string form.
func ToGo(v starlark.Value) (any, error) {
	switch val := v.(type) {
	case nil, starlark.NoneType:
		return nil, nil

	case starlark.String:
		return string(val), nil

	case starlark.Int:
		i64, ok := val.Int64()
		if !ok {
			// Fallback for very large integers - convert to string
			return val.String(), nil
		}
		return i64, nil

	case starlark.Float:
		return float64(val), nil

	case starlark.Bool:
		return bool(val), nil

	case Complex:
		return complex128(val), nil

	case frame.Framer:
		return val.Frame()

	case *ArrowTable:
		return frame.FromArrow(val.Record())

	case *starlark.Dict:
		result := make(map[string]any)
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string, got %s", item[0].Type())
			}
			gv, err := ToGo(item[1])
			if err != nil {
				return nil, fmt.Errorf("dict key %q: %w", key, err)
			}
			result[string(key)] = gv
		}
		return result, nil

	case starlark.Iterable:
		// list, tuple, set and range
		var result []any
		iter := val.Iterate()
		defer iter.Done()
		var item starlark.Value
		for i := 0; iter.Next(&item); i++ {
			gv, err := ToGo(item)
			if err != nil {
				return nil, fmt.Errorf("%s index %d: %w", val.Type(), i, err)
			}
			result = append(result, gv)
		}
		if result == nil {
			result = []any{}
		}
		return result, nil

	default:
		return val.String(), nil
	}
}
