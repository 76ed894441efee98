package normalize

import (
	"fmt"
	"sort"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/leapstack-labs/quantdb/internal/starlark"
	"github.com/leapstack-labs/quantdb/pkg/frame"
	sl "go.starlark.net/starlark"
)

// Normalize converts v into a frame. It never fails: values that cannot be
// converted produce a one-row "unrecognised" frame holding their type name.
func Normalize(v any) *frame.Frame {
	k := Classify(v)
	switch k {
	case KindTabular:
		if f, err := v.(frame.Framer).Frame(); err == nil && f != nil {
			return f
		}
	case KindBool, KindInt, KindFloat, KindStr:
		return single(k, cell(v))
	case KindComplex:
		return single(k, formatComplex(v))
	case KindList, KindRange, KindSet:
		return perElement(k, elements(v))
	case KindTuple:
		return single(k, elements(v))
	case KindDict:
		return fromDict(v)
	case KindRelation:
		if f, err := v.(*starlark.Relation).Frame(); err == nil {
			return f
		}
	case KindArrow:
		if f, ok := Tabular(v); ok {
			return f
		}
	case KindNone:
		return frame.Empty(k.Column())
	case KindUnrecognised:
	}
	return single(KindUnrecognised, TypeName(v))
}

// Materialize runs lazy values so their errors reach the caller rather
// than being folded into the fallback frame.
func Materialize(v any) (any, error) {
	if rel, ok := v.(*starlark.Relation); ok {
		f, err := rel.Frame()
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	return v, nil
}

// Tabular returns the frame held by a tabular binding: a frame or an Arrow
// table. Lazy relations are not tabular.
func Tabular(v any) (*frame.Frame, bool) {
	var (
		f   *frame.Frame
		err error
	)
	switch x := v.(type) {
	case *starlark.Relation:
		return nil, false
	case *starlark.ArrowTable:
		f, err = frame.FromArrow(x.Record())
	case arrow.Record:
		f, err = frame.FromArrow(x)
	case frame.Framer:
		f, err = x.Frame()
	default:
		return nil, false
	}
	if err != nil || f == nil {
		return nil, false
	}
	return f, true
}

// TypeName returns the runtime type identity of v.
func TypeName(v any) string {
	if sv, ok := v.(sl.Value); ok {
		return sv.Type()
	}
	return fmt.Sprintf("%T", v)
}

func single(k Kind, value any) *frame.Frame {
	return frame.MustNew(frame.NewColumn(k.Column(), value))
}

func perElement(k Kind, values []any) *frame.Frame {
	return frame.MustNew(frame.NewColumn(k.Column(), values...))
}

// cell converts a scalar or nested value to the Go form frames carry.
func cell(v any) any {
	sv, ok := v.(sl.Value)
	if !ok {
		if i, ok := frame.ToInt64(v); ok {
			return i
		}
		if f, ok := v.(float32); ok {
			return float64(f)
		}
		return v
	}
	if b, ok := sv.(sl.Bytes); ok {
		return string(b)
	}
	if c, ok := sv.(starlark.Complex); ok {
		return starlark.FormatComplex(complex128(c))
	}
	g, err := starlark.ToGo(sv)
	if err != nil {
		return sv.String()
	}
	return g
}

func formatComplex(v any) string {
	switch c := v.(type) {
	case complex64:
		return starlark.FormatComplex(complex128(c))
	case complex128:
		return starlark.FormatComplex(c)
	case starlark.Complex:
		return starlark.FormatComplex(complex128(c))
	}
	return fmt.Sprint(v)
}

func elements(v any) []any {
	var out []any
	switch x := v.(type) {
	case []any:
		for _, e := range x {
			out = append(out, cell(e))
		}
	case []int64:
		for _, e := range x {
			out = append(out, e)
		}
	case []float64:
		for _, e := range x {
			out = append(out, e)
		}
	case []string:
		for _, e := range x {
			out = append(out, e)
		}
	case sl.Iterable:
		iter := x.Iterate()
		defer iter.Done()
		var e sl.Value
		for iter.Next(&e) {
			out = append(out, cell(e))
		}
	}
	if out == nil {
		out = []any{}
	}
	return out
}

func fromDict(v any) *frame.Frame {
	var cols []*frame.Column
	switch d := v.(type) {
	case *sl.Dict:
		for _, item := range d.Items() {
			name, ok := sl.AsString(item[0])
			if !ok {
				name = item[0].String()
			}
			cols = append(cols, frame.NewColumn(name, cell(item[1])))
		}
	case map[string]any:
		keys := make([]string, 0, len(d))
		for k := range d {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			cols = append(cols, frame.NewColumn(k, cell(d[k])))
		}
	}
	f, err := frame.New(cols...)
	if err != nil {
		// duplicate rendered keys, e.g. {1: .., "1": ..}
		return single(KindUnrecognised, TypeName(v))
	}
	return f
}
