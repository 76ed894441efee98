// Package sqlite provides the frame-query engine: a private in-memory SQLite
// database holding a snapshot of the tabular bindings, answering pl> queries.
// Snapshots are built with adapter.NewSnapshot under the type "sqlite".
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"

	"github.com/leapstack-labs/quantdb/pkg/adapter"
	"github.com/leapstack-labs/quantdb/pkg/frame"

	_ "modernc.org/sqlite" // sqlite driver
)

// Adapter implements adapter.Adapter on an in-memory SQLite database.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new SQLite adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger}}
}

// Connect opens the database. Every in-memory SQLite connection is a
// separate database, so the pool is limited to a single connection.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	a.DB = db
	a.Cfg = cfg
	return nil
}

// Register replaces table name with the contents of f.
func (a *Adapter) Register(ctx context.Context, name string, f *frame.Frame) error {
	return a.LoadFrame(ctx, name, f, columnTypes{})
}

// ListTables returns the user tables.
func (a *Adapter) ListTables(ctx context.Context) ([]string, error) {
	f, err := a.QueryFrame(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'")
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	names := make([]string, 0, f.Height())
	for _, row := range f.Rows() {
		names = append(names, frame.FormatValue(row[0]))
	}
	sort.Strings(names)
	return names, nil
}

// columnTypes maps frame columns onto SQLite storage classes. Declared
// type names are chosen so that scanning maps them back to the same
// frame types.
type columnTypes struct{}

func (columnTypes) ColumnType(t frame.DataType) string {
	switch t {
	case frame.Bool:
		return "BOOLEAN"
	case frame.Int64:
		return "INTEGER"
	case frame.Float64:
		return "REAL"
	case frame.Date:
		return "DATE"
	case frame.Datetime:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

func (columnTypes) Value(t frame.DataType, v any) any {
	if v == nil {
		return nil
	}
	switch t {
	case frame.Bool, frame.Date, frame.Datetime:
		return v
	case frame.Int64:
		if i, ok := frame.ToInt64(v); ok {
			return i
		}
	case frame.Float64:
		if f, ok := frame.ToFloat64(v); ok {
			return f
		}
	}
	if s, ok := v.(string); ok {
		return s
	}
	return frame.FormatValue(v)
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
