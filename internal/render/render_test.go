package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/leapstack-labs/quantdb/pkg/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sample() *frame.Frame {
	return frame.MustNew(
		frame.NewColumn("sym", "A", "B,C"),
		frame.NewColumn("px", 1.5, nil),
		frame.NewColumn("day", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)),
	)
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"text", FormatTable, false},
		{"MD", FormatMarkdown, false},
		{"csv", FormatCSV, false},
		{"xls", FormatTSV, false},
		{"yml", FormatYAML, false},
		{"json", FormatJSON, false},
		{"html", FormatHTML, false},
		{"pdf", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sample(), FormatTable))
	out := buf.String()
	assert.Contains(t, out, "shape: (2, 3)")
	assert.Contains(t, out, "SYM")
	assert.Contains(t, out, "F64")
	assert.Contains(t, out, "2024-03-01")
	assert.Contains(t, out, "null")
}

func TestTable_NoColumns(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, frame.Empty(), FormatTable))
	assert.Equal(t, "shape: (0, 0)\n", buf.String())

	buf.Reset()
	require.NoError(t, Render(&buf, nil, FormatMarkdown))
	assert.Equal(t, "(0 columns)\n", buf.String())
}

func TestMarkdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Markdown(&buf, sample()))
	assert.Contains(t, strings.ToLower(buf.String()), "| sym | px | day |")
}

func TestHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, HTML(&buf, sample()))
	out := buf.String()
	assert.Contains(t, out, "shape: (2, 3)")
	assert.Contains(t, out, `<table class="dataframe">`)
	assert.Contains(t, out, "<td>A</td>")
}

func TestCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, CSV(&buf, sample()))
	assert.Equal(t, "sym,px,day\nA,1.5,2024-03-01\n\"B,C\",,2024-03-02\n", buf.String())

	buf.Reset()
	require.NoError(t, TSV(&buf, sample()))
	assert.Equal(t, "sym\tpx\tday\nA\t1.5\t2024-03-01\nB,C\t\t2024-03-02\n", buf.String())
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	f := frame.MustNew(
		frame.NewColumn("b", int64(33), int64(41)),
		frame.NewColumn("a", "x", "y"),
	)
	require.NoError(t, JSON(&buf, f))

	// Row fields keep column order.
	assert.Contains(t, buf.String(), `{"b":33,"a":"x"}`)

	var got struct {
		Tbl struct {
			Data  []map[string]any  `json:"data"`
			Types map[string]string `json:"types"`
		} `json:"tbl"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Len(t, got.Tbl.Data, 2)
	assert.Equal(t, map[string]string{"a": "string", "b": "number"}, got.Tbl.Types)
}

func TestJSON_DashTypes(t *testing.T) {
	var buf bytes.Buffer
	f := frame.MustNew(frame.NewColumn("day", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, JSON(&buf, f))
	assert.Contains(t, buf.String(), `"types":{"day":"DateOnly"}`)
	assert.Contains(t, buf.String(), `"day":"2024-03-01"`)
}

func TestYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, YAML(&buf, sample()))

	var got []map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0]["sym"])
	assert.Equal(t, 1.5, got[0]["px"])
	assert.Nil(t, got[1]["px"])
}

func TestRender_UnknownFormat(t *testing.T) {
	assert.Error(t, Render(&bytes.Buffer{}, sample(), Format("pdf")))
}
