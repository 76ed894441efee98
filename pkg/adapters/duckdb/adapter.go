// Package duckdb provides the relational engine: a persistent DuckDB
// connection that answers dk> queries and stores tabular bindings as tables.
package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/leapstack-labs/quantdb/pkg/adapter"
	"github.com/leapstack-labs/quantdb/pkg/frame"
	"github.com/marcboeker/go-duckdb"
)

// Adapter implements adapter.Adapter for DuckDB.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new DuckDB adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger}}
}

// Connect opens DuckDB. An empty path or ":memory:" opens an in-memory
// database. The pool is limited to one connection so that session state
// such as temporary tables and SET options persists across queries.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	params, err := parseParams(cfg.Params)
	if err != nil {
		return err
	}

	path := cfg.Path
	if path == ":memory:" {
		path = ""
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	setup := params.setupStatements()
	for _, stmt := range setup {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to apply duckdb setting %q: %w", stmt, err)
		}
	}

	a.DB = db
	a.Cfg = cfg
	a.Logger.Debug("duckdb connected", slog.String("path", cfg.Path), slog.Int("setup_statements", len(setup)))
	return nil
}

// Register creates or replaces table name and fills it through the DuckDB
// appender.
func (a *Adapter) Register(ctx context.Context, name string, f *frame.Frame) error {
	if a.DB == nil {
		return fmt.Errorf("database connection not established")
	}
	if f.Width() == 0 {
		return fmt.Errorf("cannot register %s: frame has no columns", name)
	}

	conn, err := a.DB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire duckdb connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	create := "CREATE OR REPLACE " + strings.TrimPrefix(adapter.CreateTableSQL(name, f, columnTypes{}), "CREATE ")
	if _, err := conn.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("failed to create table %s: %w", name, err)
	}

	err = conn.Raw(func(dc any) error {
		app, err := duckdb.NewAppenderFromConn(dc.(driver.Conn), "", name)
		if err != nil {
			return fmt.Errorf("failed to create appender: %w", err)
		}
		cols := f.Columns()
		row := make([]driver.Value, len(cols))
		for i := 0; i < f.Height(); i++ {
			for j, c := range cols {
				row[j] = columnTypes{}.Value(c.Type, c.Values[i])
			}
			if err := app.AppendRow(row...); err != nil {
				_ = app.Close()
				return fmt.Errorf("failed to append row %d: %w", i, err)
			}
		}
		return app.Close()
	})
	if err != nil {
		return fmt.Errorf("failed to register %s: %w", name, err)
	}

	a.Logger.Debug("registered frame", slog.String("table", name), slog.Int("rows", f.Height()))
	return nil
}

// ListTables returns the tables and views visible to SHOW TABLES.
func (a *Adapter) ListTables(ctx context.Context) ([]string, error) {
	f, err := a.QueryFrame(ctx, "SHOW TABLES")
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	names := make([]string, 0, f.Height())
	if f.Width() > 0 {
		for _, v := range f.Columns()[0].Values {
			names = append(names, frame.FormatValue(v))
		}
	}
	sort.Strings(names)
	return names, nil
}

// LoadFile loads a CSV, Parquet or JSON file into a table.
// DuckDB infers the schema from the file.
func (a *Adapter) LoadFile(ctx context.Context, tableName string, filePath string) error {
	if a.DB == nil {
		return fmt.Errorf("database connection not established")
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	var reader string
	switch strings.ToLower(filepath.Ext(absPath)) {
	case ".csv", ".tsv":
		reader = "read_csv_auto"
	case ".parquet":
		reader = "read_parquet"
	case ".json", ".ndjson":
		reader = "read_json_auto"
	default:
		return fmt.Errorf("unsupported data file %s", filePath)
	}

	query := fmt.Sprintf(
		"CREATE OR REPLACE TABLE %s AS SELECT * FROM %s(%s)",
		adapter.QuoteIdent(tableName), reader, quoteLiteral(absPath),
	)
	if err := a.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to load %s: %w", filePath, err)
	}
	return nil
}

// columnTypes maps frame columns onto DuckDB storage.
type columnTypes struct{}

func (columnTypes) ColumnType(t frame.DataType) string {
	switch t {
	case frame.Bool:
		return "BOOLEAN"
	case frame.Int64:
		return "BIGINT"
	case frame.Float64:
		return "DOUBLE"
	case frame.Date:
		return "DATE"
	case frame.Datetime:
		return "TIMESTAMP"
	case frame.Time:
		return "TIME"
	default:
		return "VARCHAR"
	}
}

func (columnTypes) Value(t frame.DataType, v any) any {
	if v == nil {
		return nil
	}
	switch t {
	case frame.Int64:
		if i, ok := frame.ToInt64(v); ok {
			return i
		}
	case frame.Float64:
		if f, ok := frame.ToFloat64(v); ok {
			return f
		}
	case frame.Bool, frame.Date, frame.Datetime:
		return v
	case frame.Time:
		switch x := v.(type) {
		case time.Time:
			return x
		case time.Duration:
			return time.Time{}.Add(x)
		}
	}
	return frame.FormatValue(v)
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
