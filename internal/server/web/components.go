package web

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
	"github.com/leapstack-labs/quantdb/internal/render"
	"github.com/leapstack-labs/quantdb/pkg/frame"
)

// resultsView renders a query result, or its error, into the #results
// element of the query console.
func resultsView(query string, f *frame.Frame, err error) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		if _, werr := fmt.Fprintf(w, `<div id="results" data-query="%s">`, templ.EscapeString(query)); werr != nil {
			return werr
		}
		if err != nil {
			if _, werr := fmt.Fprintf(w, `<pre class="error">%s</pre>`, templ.EscapeString(err.Error())); werr != nil {
				return werr
			}
		} else if rerr := render.HTML(w, f); rerr != nil {
			return rerr
		}
		_, werr := io.WriteString(w, "</div>")
		return werr
	})
}

// tablesView renders the relational engine's table list into #tables.
func tablesView(tables []string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<ul id="tables">`); err != nil {
			return err
		}
		for _, t := range tables {
			if _, err := fmt.Fprintf(w, `<li data-query="%s">%s</li>`,
				templ.EscapeString(tableQuery(t)), templ.EscapeString(t)); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, "</ul>")
		return err
	})
}
