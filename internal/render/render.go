// Package render writes frames in the output formats used by the console,
// the CLI and the HTTP server.
package render

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/quantdb/pkg/frame"
	"gopkg.in/yaml.v3"
)

// Format names an output format.
type Format string

// Output formats.
const (
	FormatTable    Format = "table"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatCSV      Format = "csv"
	FormatTSV      Format = "tsv"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
)

// Formats lists every supported format.
var Formats = []Format{FormatTable, FormatMarkdown, FormatHTML, FormatCSV, FormatTSV, FormatJSON, FormatYAML}

// ParseFormat resolves a format name. "md" and "text" are accepted as
// aliases; an empty name means table.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "table", "text":
		return FormatTable, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	case "csv":
		return FormatCSV, nil
	case "tsv", "xls":
		return FormatTSV, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown output format %q (available: %v)", name, Formats)
}

// Render writes f to w in the given format.
func Render(w io.Writer, f *frame.Frame, format Format) error {
	if f == nil {
		f = frame.Empty()
	}
	switch format {
	case FormatTable, "":
		return Table(w, f)
	case FormatMarkdown:
		return Markdown(w, f)
	case FormatHTML:
		return HTML(w, f)
	case FormatCSV:
		return CSV(w, f)
	case FormatTSV:
		return TSV(w, f)
	case FormatJSON:
		return JSON(w, f)
	case FormatYAML:
		return YAML(w, f)
	}
	return fmt.Errorf("unknown output format %q", format)
}

func newWriter(f *frame.Frame) table.Writer {
	t := table.NewWriter()
	header := make(table.Row, f.Width())
	for i, name := range f.Names() {
		header[i] = name
	}
	t.AppendHeader(header)
	for i := 0; i < f.Height(); i++ {
		row := f.Row(i)
		out := make(table.Row, len(row))
		for j, v := range row {
			out[j] = frame.FormatValue(v)
		}
		t.AppendRow(out)
	}
	return t
}

// Table writes a boxed text table headed by the frame's shape and
// column types.
func Table(w io.Writer, f *frame.Frame) error {
	_, _ = fmt.Fprintf(w, "shape: (%d, %d)\n", f.Height(), f.Width())
	if f.Width() == 0 {
		return nil
	}
	t := newWriter(f)
	t.SetStyle(table.StyleLight)
	types := make(table.Row, f.Width())
	for i, c := range f.Columns() {
		types[i] = c.Type.String()
	}
	t.AppendHeader(types)
	t.SetOutputMirror(w)
	t.Render()
	return nil
}

// Markdown writes a GitHub-flavored markdown table.
func Markdown(w io.Writer, f *frame.Frame) error {
	if f.Width() == 0 {
		_, _ = fmt.Fprintln(w, "(0 columns)")
		return nil
	}
	_, err := fmt.Fprintln(w, newWriter(f).RenderMarkdown())
	return err
}

// HTML writes an HTML table preceded by the frame's shape.
func HTML(w io.Writer, f *frame.Frame) error {
	_, _ = fmt.Fprintf(w, "<small>shape: (%d, %d)</small>\n", f.Height(), f.Width())
	if f.Width() == 0 {
		return nil
	}
	t := newWriter(f)
	t.Style().HTML.CSSClass = "dataframe"
	_, err := fmt.Fprintln(w, t.RenderHTML())
	return err
}

// CSV writes comma-separated values with a header line.
func CSV(w io.Writer, f *frame.Frame) error {
	return delimited(w, f, ',')
}

// TSV writes tab-separated values with a header line. Spreadsheet
// exports use it.
func TSV(w io.Writer, f *frame.Frame) error {
	return delimited(w, f, '\t')
}

func delimited(w io.Writer, f *frame.Frame, comma rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = comma
	if err := cw.Write(f.Names()); err != nil {
		return err
	}
	record := make([]string, f.Width())
	for i := 0; i < f.Height(); i++ {
		for j, v := range f.Row(i) {
			if v == nil {
				record[j] = ""
				continue
			}
			record[j] = frame.FormatValue(v)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// row is a frame row that marshals its fields in column order.
type row struct {
	names  []string
	values []any
}

func (r row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range r.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(jsonValue(r.values[i]))
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// jsonValue keeps numbers, booleans and lists native and renders
// everything else with the frame formatting rules.
func jsonValue(v any) any {
	switch x := v.(type) {
	case nil, bool, int64, float64, string:
		return x
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = jsonValue(e)
		}
		return out
	}
	if i, ok := frame.ToInt64(v); ok {
		return i
	}
	return frame.FormatValue(v)
}

type tableJSON struct {
	Tbl struct {
		Data  []row             `json:"data"`
		Types map[string]string `json:"types"`
	} `json:"tbl"`
}

// JSON writes {"tbl":{"data":[rows...],"types":{column: tag}}} where rows
// are objects and tags are the dashboard type names.
func JSON(w io.Writer, f *frame.Frame) error {
	var out tableJSON
	names := f.Names()
	out.Tbl.Data = make([]row, f.Height())
	for i := range out.Tbl.Data {
		out.Tbl.Data[i] = row{names: names, values: f.Row(i)}
	}
	out.Tbl.Types = make(map[string]string, f.Width())
	for _, c := range f.Columns() {
		out.Tbl.Types[c.Name] = c.Type.DashType()
	}
	return json.NewEncoder(w).Encode(out)
}

// YAML writes the frame as a list of column-ordered mappings.
func YAML(w io.Writer, f *frame.Frame) error {
	doc := &yaml.Node{Kind: yaml.SequenceNode}
	for i := 0; i < f.Height(); i++ {
		m := &yaml.Node{Kind: yaml.MappingNode}
		for j, v := range f.Row(i) {
			key := &yaml.Node{Kind: yaml.ScalarNode, Value: f.Names()[j]}
			val := &yaml.Node{}
			if err := val.Encode(jsonValue(v)); err != nil {
				return fmt.Errorf("failed to encode %s: %w", f.Names()[j], err)
			}
			m.Content = append(m.Content, key, val)
		}
		doc.Content = append(doc.Content, m)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
