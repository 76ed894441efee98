package starlark

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/leapstack-labs/quantdb/pkg/adapter"
	"github.com/leapstack-labs/quantdb/pkg/frame"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// SQLRunner is the relational engine as seen from scripts.
type SQLRunner interface {
	Exec(ctx context.Context, sql string) error
	QueryFrame(ctx context.Context, sql string) (*frame.Frame, error)
}

// Session is the processor handle exposed to scripts as qdb, pdb and pythondb.
type Session interface {
	SetLang(name string) error
	Lang() string
	Prompt() string
	Config() map[string]any
}

// HandleNames are the global names the session handle is bound to.
var HandleNames = []string{"qdb", "pdb", "pythondb"}

// DuckDBModule returns the duckdb module. duckdb.sql(q) returns a lazy
// relation for queries and executes any other statement immediately.
func DuckDBModule(runner SQLRunner) *starlarkstruct.Module {
	sql := starlark.NewBuiltin("sql", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var query string
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &query); err != nil {
			return nil, err
		}
		ctx := threadContext(thread)
		if !adapter.IsQuery(query) {
			if err := runner.Exec(ctx, query); err != nil {
				return nil, fmt.Errorf("%s: %w", b.Name(), err)
			}
			return starlark.None, nil
		}
		return &Relation{ctx: ctx, query: query, runner: runner}, nil
	})
	return &starlarkstruct.Module{
		Name:    "duckdb",
		Members: starlark.StringDict{"sql": sql, "query": sql},
	}
}

// SessionModule returns the processor handle module.
func SessionModule(name string, s Session) *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: name,
		Members: starlark.StringDict{
			"setlang": starlark.NewBuiltin("setlang", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
				var lang string
				if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &lang); err != nil {
					return nil, err
				}
				if err := s.SetLang(lang); err != nil {
					return nil, err
				}
				return starlark.None, nil
			}),
			"getlang": noArgs("getlang", func() (starlark.Value, error) {
				return starlark.String(s.Lang()), nil
			}),
			"getps1": noArgs("getps1", func() (starlark.Value, error) {
				return starlark.String(s.Prompt()), nil
			}),
			"getconfig": noArgs("getconfig", func() (starlark.Value, error) {
				return GoToStarlark(s.Config())
			}),
		},
	}
}

func noArgs(name string, fn func() (starlark.Value, error)) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
			return nil, err
		}
		return fn()
	})
}

// frameBuiltin implements frame({"a": [1, 2]}) and frame(a=[1, 2]).
func frameBuiltin(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	f, err := frameFromArgs(b.Name(), args, kwargs)
	if err != nil {
		return nil, err
	}
	return NewFrame(f), nil
}

// arrowTableBuiltin implements arrow_table({"a": [1, 2]}).
func arrowTableBuiltin(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	f, err := frameFromArgs(b.Name(), args, kwargs)
	if err != nil {
		return nil, err
	}
	rec, err := f.ToArrow(memory.DefaultAllocator)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return NewArrowTable(rec), nil
}

func frameFromArgs(fn string, args starlark.Tuple, kwargs []starlark.Tuple) (*frame.Frame, error) {
	var pairs []starlark.Tuple
	switch {
	case len(args) == 1 && len(kwargs) == 0:
		d, ok := args[0].(*starlark.Dict)
		if !ok {
			return nil, fmt.Errorf("%s: expected dict, got %s", fn, args[0].Type())
		}
		pairs = d.Items()
	case len(args) == 0:
		pairs = kwargs
	default:
		return nil, fmt.Errorf("%s: expected a single dict or keyword arguments", fn)
	}

	cols := make([]*frame.Column, 0, len(pairs))
	for _, kv := range pairs {
		name, ok := starlark.AsString(kv[0])
		if !ok {
			return nil, fmt.Errorf("%s: column name must be a string, got %s", fn, kv[0].Type())
		}
		gv, err := ToGo(kv[1])
		if err != nil {
			return nil, fmt.Errorf("%s: column %q: %w", fn, name, err)
		}
		vals, ok := gv.([]any)
		if !ok {
			vals = []any{gv}
		}
		cols = append(cols, frame.NewColumn(name, vals...))
	}
	f, err := frame.New(cols...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fn, err)
	}
	return f, nil
}

// complexBuiltin implements complex(re, im).
func complexBuiltin(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var re, im starlark.Value = starlark.Float(0), starlark.Float(0)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "real?", &re, "imag?", &im); err != nil {
		return nil, err
	}
	r, ok := starlark.AsFloat(re)
	if !ok {
		return nil, fmt.Errorf("%s: real must be a number, got %s", b.Name(), re.Type())
	}
	i, ok := starlark.AsFloat(im)
	if !ok {
		return nil, fmt.Errorf("%s: imag must be a number, got %s", b.Name(), im.Type())
	}
	return Complex(complex(r, i)), nil
}

// Builtins returns the globals every script sees.
func Builtins(runner SQLRunner, session Session) starlark.StringDict {
	globals := starlark.StringDict{
		"frame":       starlark.NewBuiltin("frame", frameBuiltin),
		"arrow_table": starlark.NewBuiltin("arrow_table", arrowTableBuiltin),
		"complex":     starlark.NewBuiltin("complex", complexBuiltin),
	}
	if runner != nil {
		globals["duckdb"] = DuckDBModule(runner)
	}
	if session != nil {
		for _, name := range HandleNames {
			globals[name] = SessionModule(name, session)
		}
	}
	return globals
}
