package mysql

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	gomysql "github.com/go-mysql-org/go-mysql/mysql"
	"github.com/go-mysql-org/go-mysql/server"
	"github.com/leapstack-labs/quantdb/pkg/frame"
)

// DatabaseName is the single database advertised to clients.
const DatabaseName = "quantdb"

// serverVariables answers SELECT @@var from client bootstrap code.
var serverVariables = map[string]any{
	"version_comment":          "quantdb",
	"version":                  "8.0.0-quantdb",
	"max_allowed_packet":       int64(67108864),
	"auto_increment_increment": int64(1),
	"tx_isolation":             "REPEATABLE-READ",
	"transaction_isolation":    "REPEATABLE-READ",
	"lower_case_table_names":   int64(0),
}

var limitSuffix = regexp.MustCompile(`(?i)\s+limit\s+\d+\s*;?\s*$`)

// Handler implements the go-mysql server.Handler for one connection.
type Handler struct {
	server.EmptyHandler

	ctx     context.Context
	session *Session
	db      string
	logger  *slog.Logger
}

// NewHandler creates a connection handler.
func NewHandler(ctx context.Context, session *Session, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{ctx: ctx, session: session, db: DatabaseName, logger: logger}
}

// UseDB accepts any database name.
func (h *Handler) UseDB(dbName string) error {
	h.db = dbName
	return nil
}

// HandleQuery answers client bootstrap statements locally and sends
// everything else to the processor.
func (h *Handler) HandleQuery(query string) (*gomysql.Result, error) {
	if res, ok, err := h.local(query); ok {
		return res, err
	}

	rows, names, err := h.session.Query(h.ctx, query, query, nil)
	if err != nil {
		h.logger.Debug("mysql query failed", "query", query, "error", err)
		return nil, err
	}
	if len(names) == 0 {
		return nil, nil
	}
	return buildResult(names, rows)
}

// HandleFieldList answers COM_FIELD_LIST from the session schema.
func (h *Handler) HandleFieldList(table string, _ string) ([]*gomysql.Field, error) {
	cols, ok := h.session.Schema()[table]
	if !ok {
		return nil, gomysql.NewError(gomysql.ER_NO_SUCH_TABLE, fmt.Sprintf("Table '%s.%s' doesn't exist", h.db, table))
	}
	names := make([]string, 0, len(cols))
	for name := range cols {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]*gomysql.Field, len(names))
	for i, name := range names {
		typ := uint8(gomysql.MYSQL_TYPE_VAR_STRING)
		if cols[name] == "INT" {
			typ = gomysql.MYSQL_TYPE_LONGLONG
		}
		fields[i] = &gomysql.Field{
			Name:    []byte(name),
			OrgName: []byte(name),
			Table:   []byte(table),
			Schema:  []byte(h.db),
			Type:    typ,
		}
	}
	return fields, nil
}

// local handles SET, SELECT @@var and SHOW DATABASES/TABLES.
func (h *Handler) local(query string) (*gomysql.Result, bool, error) {
	q := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(query), ";"))
	lower := strings.ToLower(q)

	switch {
	case strings.HasPrefix(lower, "set "):
		return nil, true, nil
	case strings.HasPrefix(lower, "select @@"):
		res, err := selectVariables(q)
		return res, true, err
	case lower == "show databases":
		res, err := buildResult([]string{"Database"}, [][]any{{DatabaseName}})
		return res, true, err
	case lower == "show tables":
		tables := make([]string, 0)
		for t := range h.session.Schema() {
			tables = append(tables, t)
		}
		sort.Strings(tables)
		rows := make([][]any, len(tables))
		for i, t := range tables {
			rows[i] = []any{t}
		}
		res, err := buildResult([]string{"Tables_in_" + h.db}, rows)
		return res, true, err
	}
	return nil, false, nil
}

// selectVariables answers "SELECT @@a, @@session.b [LIMIT n]".
func selectVariables(q string) (*gomysql.Result, error) {
	list := limitSuffix.ReplaceAllString(q[len("select "):], "")
	var names []string
	var row []any
	for _, expr := range strings.Split(list, ",") {
		expr = strings.TrimSpace(expr)
		name := expr
		if i := strings.Index(strings.ToLower(expr), " as "); i >= 0 {
			name = strings.TrimSpace(expr[i+4:])
			expr = strings.TrimSpace(expr[:i])
		}
		key := strings.ToLower(strings.TrimPrefix(expr, "@@"))
		key = strings.TrimPrefix(strings.TrimPrefix(key, "session."), "global.")
		v, ok := serverVariables[key]
		if !ok {
			v = ""
		}
		names = append(names, name)
		row = append(row, v)
	}
	return buildResult(names, [][]any{row})
}

// buildResult builds a text resultset. Columns holding nulls or values
// outside the wire's native kinds are sent as text so that every row
// of a column has the same wire type.
func buildResult(names []string, rows [][]any) (*gomysql.Result, error) {
	out := make([][]any, len(rows))
	for i := range rows {
		out[i] = make([]any, len(names))
	}
	for j := range names {
		asText := false
		for _, r := range rows {
			if !nativeValue(r[j]) {
				asText = true
				break
			}
		}
		for i, r := range rows {
			v := r[j]
			switch {
			case asText:
				v = frame.FormatValue(v)
			case v == true:
				v = int64(1)
			case v == false:
				v = int64(0)
			}
			out[i][j] = v
		}
	}

	rs, err := gomysql.BuildSimpleTextResultset(names, out)
	if err != nil {
		return nil, fmt.Errorf("failed to build resultset: %w", err)
	}
	return &gomysql.Result{Resultset: rs}, nil
}

func nativeValue(v any) bool {
	switch v.(type) {
	case int64, float64, string, bool:
		return true
	}
	return false
}
