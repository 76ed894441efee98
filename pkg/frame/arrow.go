package frame

import (
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// FromArrow copies an Arrow record into a frame.
func FromArrow(rec arrow.Record) (*Frame, error) {
	if rec == nil {
		return nil, fmt.Errorf("nil arrow record")
	}
	n := int(rec.NumRows())
	cols := make([]*Column, rec.NumCols())
	for j := range cols {
		arr := rec.Column(j)
		vals := make([]any, n)
		for i := 0; i < n; i++ {
			vals[i] = arrowValue(arr, i)
		}
		cols[j] = &Column{Name: rec.ColumnName(j), Type: arrowType(arr.DataType()), Values: vals}
	}
	return New(cols...)
}

func arrowType(dt arrow.DataType) DataType {
	switch dt.ID() {
	case arrow.NULL:
		return Null
	case arrow.BOOL:
		return Bool
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return Int64
	case arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64:
		return Float64
	case arrow.STRING, arrow.LARGE_STRING:
		return String
	case arrow.DATE32, arrow.DATE64:
		return Date
	case arrow.TIME32, arrow.TIME64:
		return Time
	case arrow.TIMESTAMP:
		return Datetime
	case arrow.LIST, arrow.LARGE_LIST, arrow.FIXED_SIZE_LIST:
		return List
	default:
		return Object
	}
}

func arrowValue(arr arrow.Array, i int) any {
	if arr.IsNull(i) {
		return nil
	}
	switch a := arr.(type) {
	case *array.Boolean:
		return a.Value(i)
	case *array.Int8:
		return int64(a.Value(i))
	case *array.Int16:
		return int64(a.Value(i))
	case *array.Int32:
		return int64(a.Value(i))
	case *array.Int64:
		return a.Value(i)
	case *array.Uint32:
		return int64(a.Value(i))
	case *array.Float32:
		return float64(a.Value(i))
	case *array.Float64:
		return a.Value(i)
	case *array.String:
		return a.Value(i)
	case *array.LargeString:
		return a.Value(i)
	case *array.Date32:
		return a.Value(i).ToTime()
	case *array.Date64:
		return a.Value(i).ToTime()
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return a.Value(i).ToTime(unit)
	case *array.List:
		start, end := a.ValueOffsets(i)
		child := a.ListValues()
		out := make([]any, 0, end-start)
		for k := int(start); k < int(end); k++ {
			out = append(out, arrowValue(child, k))
		}
		return out
	default:
		return arr.ValueStr(i)
	}
}

// ToArrow builds an Arrow record from the frame. The caller owns the
// returned record and must Release it.
func (f *Frame) ToArrow(mem memory.Allocator) (arrow.Record, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	fields := make([]arrow.Field, f.Width())
	for j, c := range f.Columns() {
		fields[j] = arrow.Field{Name: c.Name, Type: toArrowType(c.Type), Nullable: true}
	}
	b := array.NewRecordBuilder(mem, arrow.NewSchema(fields, nil))
	defer b.Release()

	for j, c := range f.Columns() {
		if err := appendColumn(b.Field(j), c); err != nil {
			return nil, fmt.Errorf("column %q: %w", c.Name, err)
		}
	}
	return b.NewRecord(), nil
}

func toArrowType(t DataType) arrow.DataType {
	switch t {
	case Bool:
		return arrow.FixedWidthTypes.Boolean
	case Int64:
		return arrow.PrimitiveTypes.Int64
	case Float64:
		return arrow.PrimitiveTypes.Float64
	case Date:
		return arrow.FixedWidthTypes.Date32
	case Datetime:
		return &arrow.TimestampType{Unit: arrow.Microsecond}
	case Null:
		return arrow.Null
	default:
		return arrow.BinaryTypes.String
	}
}

func appendColumn(fb array.Builder, c *Column) error {
	for _, v := range c.Values {
		if v == nil {
			fb.AppendNull()
			continue
		}
		switch b := fb.(type) {
		case *array.BooleanBuilder:
			x, ok := v.(bool)
			if !ok {
				return fmt.Errorf("expected bool, got %T", v)
			}
			b.Append(x)
		case *array.Int64Builder:
			x, ok := ToInt64(v)
			if !ok {
				return fmt.Errorf("expected integer, got %T", v)
			}
			b.Append(x)
		case *array.Float64Builder:
			x, ok := ToFloat64(v)
			if !ok {
				return fmt.Errorf("expected number, got %T", v)
			}
			b.Append(x)
		case *array.Date32Builder:
			x, ok := v.(time.Time)
			if !ok {
				return fmt.Errorf("expected date, got %T", v)
			}
			b.Append(arrow.Date32FromTime(x))
		case *array.TimestampBuilder:
			x, ok := v.(time.Time)
			if !ok {
				return fmt.Errorf("expected timestamp, got %T", v)
			}
			b.Append(arrow.Timestamp(x.UnixMicro()))
		case *array.StringBuilder:
			b.Append(FormatValue(v))
		default:
			return fmt.Errorf("unsupported arrow builder %T", fb)
		}
	}
	return nil
}
