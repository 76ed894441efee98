package starlark

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/leapstack-labs/quantdb/internal/binding"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// fileOptions enables the Python-like dialect scripts are written in.
var fileOptions = &syntax.FileOptions{
	Set:               true,
	While:             true,
	TopLevelControl:   true,
	GlobalReassign:    true,
	LoadBindsGlobally: true,
	Recursion:         true,
}

// ScriptError is a parse or runtime failure in a script.
type ScriptError struct {
	Source  string
	Message string
	Err     error
}

func (e *ScriptError) Error() string {
	return e.Message
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}

func newScriptError(src string, err error) *ScriptError {
	msg := err.Error()
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		msg = evalErr.Backtrace()
	}
	return &ScriptError{Source: src, Message: msg, Err: err}
}

// Config configures an Engine.
type Config struct {
	// SQL backs the duckdb module. Nil leaves the module out.
	SQL SQLRunner
	// Session backs the qdb/pdb/pythondb handles. Nil leaves them out.
	Session Session
	// Output receives print() output.
	Output io.Writer
	Logger *slog.Logger
}

// Engine executes scripts against a binding table.
type Engine struct {
	pool     *ThreadPool
	builtins starlark.StringDict
	modules  map[string]starlark.StringDict
	logger   *slog.Logger
}

// New creates a scripting engine.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	e := &Engine{
		builtins: Builtins(cfg.SQL, cfg.Session),
		modules:  make(map[string]starlark.StringDict),
		logger:   logger,
	}
	if cfg.SQL != nil {
		e.modules["duckdb"] = DuckDBModule(cfg.SQL).Members
	}
	e.pool = NewThreadPool(0, cfg.Output, e.load)
	return e
}

func (e *Engine) load(module string) (starlark.StringDict, error) {
	m, ok := e.modules[module]
	if !ok {
		return nil, fmt.Errorf("no module named %q", module)
	}
	return m, nil
}

// Install binds the engine's builtins into t. Existing bindings with the
// same names are overwritten.
func (e *Engine) Install(t *binding.Table) {
	for name, v := range e.builtins {
		t.Set(name, v)
	}
}

// ExecWithReturn runs code against the bindings in t and returns the value
// of its final expression. When the last statement is an expression it is
// evaluated after the preceding statements; when it is an assignment its
// target is evaluated. Otherwise the result is nil.
//
// Bindings created before a failure are kept.
func (e *Engine) ExecWithReturn(ctx context.Context, code string, t *binding.Table) (starlark.Value, error) {
	f, err := fileOptions.Parse("<stdin>", code, 0)
	if err != nil {
		return nil, newScriptError(code, err)
	}

	trailing, dropLast := e.trailingExpr(code, f)
	if dropLast {
		f.Stmts = f.Stmts[:len(f.Stmts)-1]
	}

	thread := e.pool.Get(ctx, "<stdin>")
	defer e.pool.Put(thread)

	globals := t.Snapshot()
	if len(f.Stmts) > 0 {
		err := starlark.ExecREPLChunk(f, thread, globals)
		t.Commit(globals)
		if err != nil {
			return nil, newScriptError(code, err)
		}
	}
	if trailing == nil {
		return nil, nil
	}

	v, err := starlark.EvalExprOptions(fileOptions, thread, trailing, globals)
	if err != nil {
		return nil, newScriptError(code, err)
	}
	e.logger.Debug("script evaluated", slog.String("type", v.Type()))
	return v, nil
}

// trailingExpr picks the expression whose value a script returns. It comes
// from a second parse so that it carries no resolver state from f.
func (e *Engine) trailingExpr(code string, f *syntax.File) (syntax.Expr, bool) {
	if len(f.Stmts) == 0 {
		return nil, false
	}
	switch f.Stmts[len(f.Stmts)-1].(type) {
	case *syntax.ExprStmt, *syntax.AssignStmt:
	default:
		return nil, false
	}

	fresh, err := fileOptions.Parse("<stdin>", code, 0)
	if err != nil {
		return nil, false
	}
	switch stmt := fresh.Stmts[len(fresh.Stmts)-1].(type) {
	case *syntax.ExprStmt:
		return stmt.X, true
	case *syntax.AssignStmt:
		return stmt.LHS, false
	}
	return nil, false
}
