// Package normalize turns any engine result into a frame.
package normalize

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/leapstack-labs/quantdb/internal/starlark"
	"github.com/leapstack-labs/quantdb/pkg/frame"
	sl "go.starlark.net/starlark"
)

// Kind is the semantic category of a raw result value. The order of the
// constants is the order in which categories are tested.
type Kind int

// Kinds.
const (
	KindTabular Kind = iota
	KindBool
	KindInt
	KindFloat
	KindComplex
	KindStr
	KindList
	KindTuple
	KindRange
	KindDict
	KindSet
	KindRelation
	KindArrow
	KindNone
	KindUnrecognised
)

// column names of the single-column shapes
var kindColumns = map[Kind]string{
	KindBool:         "bool",
	KindInt:          "int",
	KindFloat:        "float",
	KindComplex:      "complex",
	KindStr:          "str",
	KindList:         "list",
	KindTuple:        "tuple",
	KindRange:        "range",
	KindSet:          "set",
	KindNone:         "None",
	KindUnrecognised: "unrecognised",
}

var kindNames = map[Kind]string{
	KindTabular:  "tabular",
	KindDict:     "dict",
	KindRelation: "relation",
	KindArrow:    "arrow",
}

func (k Kind) String() string {
	if s, ok := kindColumns[k]; ok {
		return s
	}
	return kindNames[k]
}

// Column returns the column name used for single-column results of kind k.
func (k Kind) Column() string {
	return kindColumns[k]
}

// Classify maps v onto its kind. Both Starlark values and plain Go values
// are accepted.
func Classify(v any) Kind {
	switch x := v.(type) {
	case nil, sl.NoneType:
		return KindNone
	case *starlark.Relation:
		return KindRelation
	case *starlark.ArrowTable, arrow.Record:
		return KindArrow
	case frame.Framer:
		return KindTabular
	case bool, sl.Bool:
		return KindBool
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, sl.Int:
		return KindInt
	case float32, float64, sl.Float:
		return KindFloat
	case complex64, complex128, starlark.Complex:
		return KindComplex
	case string, sl.String, sl.Bytes:
		return KindStr
	case []any, []int64, []float64, []string, *sl.List:
		return KindList
	case sl.Tuple:
		return KindTuple
	case map[string]any, *sl.Dict:
		return KindDict
	case *sl.Set:
		return KindSet
	case sl.Value:
		if x.Type() == "range" {
			return KindRange
		}
	}
	return KindUnrecognised
}
