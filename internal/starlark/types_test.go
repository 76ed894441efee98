package starlark

import (
	"testing"

	"github.com/leapstack-labs/quantdb/pkg/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

func TestGoToStarlark(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		wantStr string
		wantErr bool
	}{
		{name: "string", input: "hello", wantStr: `"hello"`},
		{name: "int", input: 42, wantStr: "42"},
		{name: "int32", input: int32(7), wantStr: "7"},
		{name: "int64", input: int64(123456789), wantStr: "123456789"},
		{name: "float64", input: 3.14, wantStr: "3.14"},
		{name: "bool true", input: true, wantStr: "True"},
		{name: "nil", input: nil, wantStr: "None"},
		{name: "complex", input: complex(6, 7), wantStr: "(6+7j)"},
		{name: "string slice", input: []string{"a", "b"}, wantStr: `["a", "b"]`},
		{name: "int64 slice", input: []int64{1, 2}, wantStr: "[1, 2]"},
		{name: "any slice", input: []any{"x", 1, true}, wantStr: `["x", 1, True]`},
		{name: "map", input: map[string]any{"key": "value"}, wantStr: `{"key": "value"}`},
		{name: "unsupported", input: struct{}{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GoToStarlark(tt.input)
			if tt.wantErr {
				assert.Error(t, err, "expected error")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStr, got.String())
		})
	}
}

func TestGoToStarlark_Frame(t *testing.T) {
	f := frame.MustNew(frame.NewColumn("a", int64(1)))
	v, err := GoToStarlark(f)
	require.NoError(t, err)
	assert.Equal(t, "frame", v.Type())
}

func TestToGo(t *testing.T) {
	set := starlark.NewSet(2)
	require.NoError(t, set.Insert(starlark.MakeInt(3)))
	require.NoError(t, set.Insert(starlark.MakeInt(1)))

	dict := starlark.NewDict(1)
	require.NoError(t, dict.SetKey(starlark.String("k"), starlark.MakeInt(1)))

	tests := []struct {
		name  string
		input starlark.Value
		want  any
	}{
		{"none", starlark.None, nil},
		{"string", starlark.String("s"), "s"},
		{"int", starlark.MakeInt(5), int64(5)},
		{"float", starlark.Float(1.5), 1.5},
		{"bool", starlark.True, true},
		{"complex", Complex(complex(1, 2)), complex(1, 2)},
		{"list", starlark.NewList([]starlark.Value{starlark.MakeInt(1)}), []any{int64(1)}},
		{"tuple", starlark.Tuple{starlark.String("a")}, []any{"a"}},
		{"empty list", starlark.NewList(nil), []any{}},
		{"set keeps insertion order", set, []any{int64(3), int64(1)}},
		{"dict", dict, map[string]any{"k": int64(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToGo(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToGo_DictNonStringKey(t *testing.T) {
	dict := starlark.NewDict(1)
	require.NoError(t, dict.SetKey(starlark.MakeInt(1), starlark.None))
	_, err := ToGo(dict)
	assert.Error(t, err)
}
