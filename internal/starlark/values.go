package starlark

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/leapstack-labs/quantdb/pkg/frame"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Complex is a complex number. Starlark has no native complex type; scripts
// build one with complex(re, im).
type Complex complex128

var (
	_ starlark.Value     = Complex(0)
	_ starlark.HasAttrs  = Complex(0)
	_ starlark.HasBinary = Complex(0)
)

// FormatComplex renders c the way a Python REPL would: "(6+7j)", or "7j"
// when the real part is zero.
func FormatComplex(c complex128) string {
	re, im := real(c), imag(c)
	ims := strconv.FormatFloat(im, 'g', -1, 64)
	if re == 0 && !math.Signbit(re) {
		return ims + "j"
	}
	sign := "+"
	if im < 0 || math.Signbit(im) {
		sign = "-"
		ims = strconv.FormatFloat(-im, 'g', -1, 64)
	}
	return "(" + strconv.FormatFloat(re, 'g', -1, 64) + sign + ims + "j)"
}

func (c Complex) String() string        { return FormatComplex(complex128(c)) }
func (c Complex) Type() string          { return "complex" }
func (c Complex) Freeze()               {}
func (c Complex) Truth() starlark.Bool  { return c != 0 }
func (c Complex) AttrNames() []string   { return []string{"imag", "real"} }
func (c Complex) Hash() (uint32, error) { return starlark.Float(real(c)).Hash() }

func (c Complex) Attr(name string) (starlark.Value, error) {
	switch name {
	case "real":
		return starlark.Float(real(c)), nil
	case "imag":
		return starlark.Float(imag(c)), nil
	}
	return nil, nil
}

// Binary implements +, - and * against numbers and other complex values.
func (c Complex) Binary(op syntax.Token, y starlark.Value, side starlark.Side) (starlark.Value, error) {
	other, ok := toComplex(y)
	if !ok {
		return nil, nil
	}
	x := complex128(c)
	if side == starlark.Right {
		x, other = other, x
	}
	switch op {
	case syntax.PLUS:
		return Complex(x + other), nil
	case syntax.MINUS:
		return Complex(x - other), nil
	case syntax.STAR:
		return Complex(x * other), nil
	}
	return nil, nil
}

func toComplex(v starlark.Value) (complex128, bool) {
	switch x := v.(type) {
	case Complex:
		return complex128(x), true
	case starlark.Float:
		return complex(float64(x), 0), true
	case starlark.Int:
		f, _ := starlark.AsFloat(x)
		return complex(f, 0), true
	}
	return 0, false
}

// Frame exposes a frame.Frame to scripts.
type Frame struct {
	f *frame.Frame
}

var (
	_ starlark.Value    = (*Frame)(nil)
	_ starlark.HasAttrs = (*Frame)(nil)
	_ starlark.Mapping  = (*Frame)(nil)
	_ frame.Framer      = (*Frame)(nil)
)

// NewFrame wraps f.
func NewFrame(f *frame.Frame) *Frame { return &Frame{f: f} }

// Frame implements frame.Framer.
func (v *Frame) Frame() (*frame.Frame, error) { return v.f, nil }

func (v *Frame) String() string       { return v.f.String() }
func (v *Frame) Type() string         { return "frame" }
func (v *Frame) Freeze()              {}
func (v *Frame) Truth() starlark.Bool { return v.f.Height() > 0 }

func (v *Frame) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable type: frame")
}

func (v *Frame) AttrNames() []string {
	return []string{"column", "columns", "dtypes", "height", "rows", "shape", "width"}
}

func (v *Frame) Attr(name string) (starlark.Value, error) {
	switch name {
	case "columns":
		return stringList(v.f.Names()), nil
	case "dtypes":
		types := make([]string, v.f.Width())
		for i, c := range v.f.Columns() {
			types[i] = c.Type.String()
		}
		return stringList(types), nil
	case "height":
		return starlark.MakeInt(v.f.Height()), nil
	case "width":
		return starlark.MakeInt(v.f.Width()), nil
	case "shape":
		return starlark.Tuple{starlark.MakeInt(v.f.Height()), starlark.MakeInt(v.f.Width())}, nil
	case "rows":
		return starlark.NewBuiltin("rows", v.rows), nil
	case "column":
		return starlark.NewBuiltin("column", v.column), nil
	}
	return nil, nil
}

// Get implements f["name"].
func (v *Frame) Get(k starlark.Value) (starlark.Value, bool, error) {
	name, ok := starlark.AsString(k)
	if !ok {
		return nil, false, fmt.Errorf("frame index must be a column name, got %s", k.Type())
	}
	col, ok := v.f.Column(name)
	if !ok {
		return nil, false, nil
	}
	list, err := GoToStarlark(col.Values)
	if err != nil {
		return nil, false, err
	}
	return list, true, nil
}

func (v *Frame) column(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &name); err != nil {
		return nil, err
	}
	list, found, err := v.Get(starlark.String(name))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%s: no column %q", b.Name(), name)
	}
	return list, nil
}

func (v *Frame) rows(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	rows := v.f.Rows()
	out := make([]starlark.Value, len(rows))
	for i, r := range rows {
		elems := make(starlark.Tuple, len(r))
		for j, cell := range r {
			sv, err := GoToStarlark(cell)
			if err != nil {
				return nil, err
			}
			elems[j] = sv
		}
		out[i] = elems
	}
	return starlark.NewList(out), nil
}

// ArrowTable exposes an Arrow record to scripts. It is the alternate frame
// representation and is registered with the SQL engines like a Frame.
type ArrowTable struct {
	rec arrow.Record
}

var (
	_ starlark.Value    = (*ArrowTable)(nil)
	_ starlark.HasAttrs = (*ArrowTable)(nil)
)

// NewArrowTable wraps rec. The table takes over the caller's reference.
func NewArrowTable(rec arrow.Record) *ArrowTable { return &ArrowTable{rec: rec} }

// Record returns the underlying record.
func (v *ArrowTable) Record() arrow.Record { return v.rec }

func (v *ArrowTable) String() string {
	return fmt.Sprintf("arrow.Table[%dx%d]", v.rec.NumRows(), v.rec.NumCols())
}
func (v *ArrowTable) Type() string         { return "arrow.Table" }
func (v *ArrowTable) Freeze()              {}
func (v *ArrowTable) Truth() starlark.Bool { return v.rec.NumRows() > 0 }

func (v *ArrowTable) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable type: arrow.Table")
}

func (v *ArrowTable) AttrNames() []string {
	return []string{"column_names", "num_columns", "num_rows", "to_frame"}
}

func (v *ArrowTable) Attr(name string) (starlark.Value, error) {
	switch name {
	case "num_rows":
		return starlark.MakeInt64(v.rec.NumRows()), nil
	case "num_columns":
		return starlark.MakeInt64(v.rec.NumCols()), nil
	case "column_names":
		names := make([]string, v.rec.NumCols())
		for i := range names {
			names[i] = v.rec.ColumnName(i)
		}
		return stringList(names), nil
	case "to_frame":
		return starlark.NewBuiltin("to_frame", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
				return nil, err
			}
			f, err := frame.FromArrow(v.rec)
			if err != nil {
				return nil, err
			}
			return NewFrame(f), nil
		}), nil
	}
	return nil, nil
}

// Relation is the lazy result of duckdb.sql(query). The query runs when the
// relation is materialized, either by .frame() or by result normalization.
type Relation struct {
	ctx    context.Context
	query  string
	runner SQLRunner
}

var (
	_ starlark.Value    = (*Relation)(nil)
	_ starlark.HasAttrs = (*Relation)(nil)
	_ frame.Framer      = (*Relation)(nil)
)

// Query returns the SQL text of the relation.
func (r *Relation) Query() string { return r.query }

// Frame runs the query and returns its result.
func (r *Relation) Frame() (*frame.Frame, error) {
	f, err := r.runner.QueryFrame(r.ctx, r.query)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return frame.Empty(), nil
	}
	return f, nil
}

func (r *Relation) String() string        { return "<relation " + strconv.Quote(r.query) + ">" }
func (r *Relation) Type() string          { return "relation" }
func (r *Relation) Freeze()               {}
func (r *Relation) Truth() starlark.Bool  { return true }
func (r *Relation) Hash() (uint32, error) { return starlark.String(r.query).Hash() }
func (r *Relation) AttrNames() []string   { return []string{"columns", "frame", "sql"} }

func (r *Relation) Attr(name string) (starlark.Value, error) {
	switch name {
	case "sql":
		return starlark.String(r.query), nil
	case "columns":
		f, err := r.Frame()
		if err != nil {
			return nil, err
		}
		return stringList(f.Names()), nil
	case "frame":
		return starlark.NewBuiltin("frame", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
				return nil, err
			}
			f, err := r.Frame()
			if err != nil {
				return nil, err
			}
			return NewFrame(f), nil
		}), nil
	}
	return nil, nil
}

func stringList(ss []string) *starlark.List {
	vals := make([]starlark.Value, len(ss))
	for i, s := range ss {
		vals[i] = starlark.String(s)
	}
	return starlark.NewList(vals)
}
