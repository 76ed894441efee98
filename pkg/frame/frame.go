// Package frame defines the canonical tabular value every engine result is
// normalized into: an ordered set of named, typed columns stored column-major.
package frame

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DataType is the semantic type of a column.
type DataType int

// Column data types.
const (
	Null DataType = iota
	Bool
	Int64
	Float64
	String
	Date
	Time
	Datetime
	List
	Object
)

var dataTypeNames = map[DataType]string{
	Null:     "null",
	Bool:     "bool",
	Int64:    "i64",
	Float64:  "f64",
	String:   "str",
	Date:     "date",
	Time:     "time",
	Datetime: "datetime",
	List:     "list",
	Object:   "object",
}

func (t DataType) String() string {
	if s, ok := dataTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("DataType(%d)", int(t))
}

// IsNumeric reports whether values of this type are numbers.
func (t DataType) IsNumeric() bool {
	return t == Int64 || t == Float64
}

// IsTemporal reports whether values of this type are dates or times.
func (t DataType) IsTemporal() bool {
	return t == Date || t == Time || t == Datetime
}

// IsNested reports whether values of this type hold sequences.
func (t DataType) IsNested() bool {
	return t == List
}

// DashType returns the semantic tag web clients use to format a column:
// number, DateOnly, Time, Date, numarray or string.
func (t DataType) DashType() string {
	switch t {
	case Int64, Float64:
		return "number"
	case Date:
		return "DateOnly"
	case Time:
		return "Time"
	case Datetime:
		return "Date"
	case List:
		return "numarray"
	default:
		return "string"
	}
}

// Column is a named, typed sequence of values.
type Column struct {
	Name   string
	Type   DataType
	Values []any
}

// Len returns the number of values in the column.
func (c *Column) Len() int {
	return len(c.Values)
}

// Framer is implemented by values that can present themselves as a frame.
type Framer interface {
	Frame() (*Frame, error)
}

// Frame is an ordered collection of equal-length columns.
type Frame struct {
	columns []*Column
	index   map[string]int
}

// New builds a frame from columns. All columns must have the same length
// and names must be unique.
func New(columns ...*Column) (*Frame, error) {
	f := &Frame{index: make(map[string]int, len(columns))}
	for i, c := range columns {
		if c == nil {
			return nil, fmt.Errorf("column %d is nil", i)
		}
		if _, dup := f.index[c.Name]; dup {
			return nil, fmt.Errorf("duplicate column name %q", c.Name)
		}
		if i > 0 && c.Len() != columns[0].Len() {
			return nil, fmt.Errorf("column %q has %d values, expected %d", c.Name, c.Len(), columns[0].Len())
		}
		f.index[c.Name] = i
		f.columns = append(f.columns, c)
	}
	return f, nil
}

// MustNew is like New but panics on error. Intended for literals in tests
// and seed data.
func MustNew(columns ...*Column) *Frame {
	f, err := New(columns...)
	if err != nil {
		panic(err)
	}
	return f
}

// NewColumn builds a column and infers its type from the values.
func NewColumn(name string, values ...any) *Column {
	return &Column{Name: name, Type: InferType(values), Values: values}
}

// FromMap builds a frame from a name→values map. Column order follows keys
// when given, otherwise names are sorted.
func FromMap(data map[string][]any, keys ...string) (*Frame, error) {
	if len(keys) == 0 {
		for k := range data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
	}
	cols := make([]*Column, 0, len(keys))
	for _, k := range keys {
		vals, ok := data[k]
		if !ok {
			return nil, fmt.Errorf("missing column %q", k)
		}
		cols = append(cols, NewColumn(k, vals...))
	}
	return New(cols...)
}

// Empty returns a zero-row frame with the given column names, all typed Null.
func Empty(names ...string) *Frame {
	cols := make([]*Column, len(names))
	for i, n := range names {
		cols[i] = &Column{Name: n, Type: Null}
	}
	return MustNew(cols...)
}

// Height returns the number of rows.
func (f *Frame) Height() int {
	if f == nil || len(f.columns) == 0 {
		return 0
	}
	return f.columns[0].Len()
}

// Width returns the number of columns.
func (f *Frame) Width() int {
	if f == nil {
		return 0
	}
	return len(f.columns)
}

// Names returns the column names in order.
func (f *Frame) Names() []string {
	if f == nil {
		return nil
	}
	names := make([]string, len(f.columns))
	for i, c := range f.columns {
		names[i] = c.Name
	}
	return names
}

// Columns returns the columns in order.
func (f *Frame) Columns() []*Column {
	if f == nil {
		return nil
	}
	return f.columns
}

// Column looks up a column by name.
func (f *Frame) Column(name string) (*Column, bool) {
	if f == nil {
		return nil, false
	}
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.columns[i], true
}

// Row returns the i-th row as a slice in column order.
func (f *Frame) Row(i int) []any {
	row := make([]any, len(f.columns))
	for j, c := range f.columns {
		row[j] = c.Values[i]
	}
	return row
}

// Rows returns every row in column order.
func (f *Frame) Rows() [][]any {
	rows := make([][]any, f.Height())
	for i := range rows {
		rows[i] = f.Row(i)
	}
	return rows
}

// Frame implements Framer.
func (f *Frame) Frame() (*Frame, error) {
	return f, nil
}

// String renders a short description, e.g. "frame[3x2](a i64, b str)".
func (f *Frame) String() string {
	parts := make([]string, 0, f.Width())
	for _, c := range f.Columns() {
		parts = append(parts, c.Name+" "+c.Type.String())
	}
	return fmt.Sprintf("frame[%dx%d](%s)", f.Height(), f.Width(), strings.Join(parts, ", "))
}

// InferType picks the narrowest type that covers every non-nil value.
// Mixed ints and floats widen to Float64; anything else mixed is Object.
func InferType(values []any) DataType {
	t := Null
	for _, v := range values {
		vt := typeOf(v)
		switch {
		case vt == Null || vt == t:
		case t == Null:
			t = vt
		case t.IsNumeric() && vt.IsNumeric():
			t = Float64
		default:
			return Object
		}
	}
	return t
}

func typeOf(v any) DataType {
	switch x := v.(type) {
	case nil:
		return Null
	case bool:
		return Bool
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return Int64
	case float32, float64:
		return Float64
	case string:
		return String
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return Date
		}
		return Datetime
	case time.Duration:
		return Time
	case []any, []int64, []float64, []string:
		return List
	default:
		return Object
	}
}
