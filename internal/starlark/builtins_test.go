package starlark

import (
	"context"
	"errors"
	"testing"

	"github.com/leapstack-labs/quantdb/pkg/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

type fakeRunner struct {
	execs   []string
	queries []string
	result  *frame.Frame
	err     error
}

func (r *fakeRunner) Exec(_ context.Context, sql string) error {
	r.execs = append(r.execs, sql)
	return r.err
}

func (r *fakeRunner) QueryFrame(_ context.Context, sql string) (*frame.Frame, error) {
	r.queries = append(r.queries, sql)
	return r.result, r.err
}

type fakeSession struct {
	lang string
}

func (s *fakeSession) SetLang(name string) error {
	if name == "bad" {
		return errors.New("invalid language")
	}
	s.lang = name
	return nil
}
func (s *fakeSession) Lang() string           { return s.lang }
func (s *fakeSession) Prompt() string         { return s.lang + ">" }
func (s *fakeSession) Config() map[string]any { return map[string]any{"lang": s.lang} }

func evalBuiltin(t *testing.T, globals starlark.StringDict, expr string) (starlark.Value, error) {
	t.Helper()
	thread := NewThreadPool(1, nil, nil).Get(context.Background(), "test")
	return starlark.EvalOptions(fileOptions, thread, "test", expr, globals)
}

func TestFrameBuiltin(t *testing.T) {
	globals := Builtins(nil, nil)

	v, err := evalBuiltin(t, globals, `frame({"a": [1, 2], "b": ["x", "y"]})`)
	require.NoError(t, err)
	f, err := v.(*Frame).Frame()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, f.Names())
	assert.Equal(t, 2, f.Height())

	v, err = evalBuiltin(t, globals, `frame(a=[1, 2, 3]).height`)
	require.NoError(t, err)
	assert.Equal(t, starlark.MakeInt(3), v)

	_, err = evalBuiltin(t, globals, `frame({"a": [1], "b": [1, 2]})`)
	assert.Error(t, err)

	_, err = evalBuiltin(t, globals, `frame([1, 2])`)
	assert.Error(t, err)
}

func TestFrameValue_Attrs(t *testing.T) {
	globals := Builtins(nil, nil)

	v, err := evalBuiltin(t, globals, `frame({"a": [1, 2]})["a"]`)
	require.NoError(t, err)
	assert.Equal(t, "[1, 2]", v.String())

	v, err = evalBuiltin(t, globals, `frame({"a": [1, 2]}).rows()`)
	require.NoError(t, err)
	assert.Equal(t, "[(1,), (2,)]", v.String())

	v, err = evalBuiltin(t, globals, `frame({"a": [1, 2]}).shape`)
	require.NoError(t, err)
	assert.Equal(t, "(2, 1)", v.String())

	_, err = evalBuiltin(t, globals, `frame({"a": [1]}).column("zz")`)
	assert.Error(t, err)
}

func TestArrowTableBuiltin(t *testing.T) {
	globals := Builtins(nil, nil)

	v, err := evalBuiltin(t, globals, `arrow_table({"a": [1, 2], "b": [33, 41]})`)
	require.NoError(t, err)
	tbl, ok := v.(*ArrowTable)
	require.True(t, ok)
	assert.EqualValues(t, 2, tbl.Record().NumRows())

	v, err = evalBuiltin(t, globals, `arrow_table({"a": [1]}).to_frame().columns`)
	require.NoError(t, err)
	assert.Equal(t, `["a"]`, v.String())
}

func TestComplexBuiltin(t *testing.T) {
	globals := Builtins(nil, nil)

	tests := []struct {
		expr string
		want string
	}{
		{"complex(6, 7)", "(6+7j)"},
		{"complex(0, 2)", "2j"},
		{"complex(1.5, -2)", "(1.5-2j)"},
		{"complex(1, 1) + 1", "(2+1j)"},
		{"complex(6, 7).imag", "7.0"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			v, err := evalBuiltin(t, globals, tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.String())
		})
	}

	_, err := evalBuiltin(t, globals, `complex("a", 1)`)
	assert.Error(t, err)
}

func TestDuckDBModule(t *testing.T) {
	runner := &fakeRunner{result: frame.MustNew(frame.NewColumn("i", int64(42)))}
	globals := Builtins(runner, nil)

	v, err := evalBuiltin(t, globals, `duckdb.sql("SELECT 42 AS i")`)
	require.NoError(t, err)
	rel, ok := v.(*Relation)
	require.True(t, ok)
	assert.Empty(t, runner.queries, "relation must be lazy")

	f, err := rel.Frame()
	require.NoError(t, err)
	assert.Equal(t, []any{int64(42)}, f.Row(0))

	v, err = evalBuiltin(t, globals, `duckdb.sql("CREATE TABLE t (a INT)")`)
	require.NoError(t, err)
	assert.Equal(t, starlark.None, v)
	assert.Equal(t, []string{"CREATE TABLE t (a INT)"}, runner.execs)
}

func TestSessionModule(t *testing.T) {
	session := &fakeSession{lang: "py"}
	globals := Builtins(nil, session)

	_, err := evalBuiltin(t, globals, `qdb.setlang("dk")`)
	require.NoError(t, err)
	assert.Equal(t, "dk", session.lang)

	v, err := evalBuiltin(t, globals, `pdb.getlang()`)
	require.NoError(t, err)
	assert.Equal(t, `"dk"`, v.String())

	v, err = evalBuiltin(t, globals, `pythondb.getps1()`)
	require.NoError(t, err)
	assert.Equal(t, `"dk>"`, v.String())

	v, err = evalBuiltin(t, globals, `qdb.getconfig()["lang"]`)
	require.NoError(t, err)
	assert.Equal(t, `"dk"`, v.String())

	_, err = evalBuiltin(t, globals, `qdb.setlang("bad")`)
	assert.Error(t, err)
}
