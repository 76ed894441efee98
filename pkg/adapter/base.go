package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/leapstack-labs/quantdb/pkg/frame"
)

// BaseSQLAdapter provides common database/sql functionality for adapters.
// Embed this struct in concrete adapter implementations to get standard
// Close, Exec, QueryFrame and LoadFrame implementations.
type BaseSQLAdapter struct {
	DB     *sql.DB
	Cfg    Config
	Logger *slog.Logger
}

// Close closes the database connection.
func (b *BaseSQLAdapter) Close() error {
	if b.DB != nil {
		if b.Logger != nil {
			b.Logger.Debug("closing database connection", slog.String("type", b.Cfg.Type))
		}
		return b.DB.Close()
	}
	return nil
}

// Exec executes a SQL statement that doesn't return rows.
func (b *BaseSQLAdapter) Exec(ctx context.Context, sqlStr string) error {
	if b.DB == nil {
		return fmt.Errorf("database connection not established")
	}
	_, err := b.DB.ExecContext(ctx, sqlStr)
	if err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// QueryFrame executes a SQL statement and collects the result into a frame.
// Statements that are not queries run through Exec and return a nil frame.
func (b *BaseSQLAdapter) QueryFrame(ctx context.Context, sqlStr string) (*frame.Frame, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	if !IsQuery(sqlStr) {
		return nil, b.Exec(ctx, sqlStr)
	}
	rows, err := b.DB.QueryContext(ctx, sqlStr)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return ScanFrame(rows)
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.DB != nil
}

// TypeMapper adapts frame columns to a particular database.
type TypeMapper interface {
	// ColumnType returns the SQL type used to store t.
	ColumnType(t frame.DataType) string
	// Value converts a cell to a driver-acceptable value.
	Value(t frame.DataType, v any) any
}

// LoadFrame replaces table name with the rows of f inside one transaction.
func (b *BaseSQLAdapter) LoadFrame(ctx context.Context, name string, f *frame.Frame, types TypeMapper) error {
	if b.DB == nil {
		return fmt.Errorf("database connection not established")
	}
	if f.Width() == 0 {
		return fmt.Errorf("cannot load %s: frame has no columns", name)
	}

	tx, err := b.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+QuoteIdent(name)); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, CreateTableSQL(name, f, types)); err != nil {
		return fmt.Errorf("failed to create table %s: %w", name, err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", f.Width()), ", ")
	//nolint:gosec // identifiers are quoted
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", QuoteIdent(name), placeholders))
	if err != nil {
		return fmt.Errorf("failed to prepare insert into %s: %w", name, err)
	}
	defer func() { _ = stmt.Close() }()

	cols := f.Columns()
	args := make([]any, len(cols))
	for i := 0; i < f.Height(); i++ {
		for j, c := range cols {
			args[j] = types.Value(c.Type, c.Values[i])
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert row %d into %s: %w", i, name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit load of %s: %w", name, err)
	}
	if b.Logger != nil {
		b.Logger.Debug("loaded frame", slog.String("table", name), slog.Int("rows", f.Height()))
	}
	return nil
}

// CreateTableSQL builds the CREATE TABLE statement for f.
func CreateTableSQL(name string, f *frame.Frame, types TypeMapper) string {
	defs := make([]string, f.Width())
	for i, c := range f.Columns() {
		defs[i] = QuoteIdent(c.Name) + " " + types.ColumnType(c.Type)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", QuoteIdent(name), strings.Join(defs, ", "))
}

// QuoteIdent quotes a SQL identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// queryPrefixes start statements that produce a result set.
var queryPrefixes = []string{
	"SELECT", "WITH", "FROM", "VALUES", "TABLE", "SHOW", "DESCRIBE",
	"SUMMARIZE", "PRAGMA", "EXPLAIN", "(",
}

// IsQuery reports whether sql yields rows.
func IsQuery(sql string) bool {
	head := strings.ToUpper(strings.TrimSpace(sql))
	for _, p := range queryPrefixes {
		if strings.HasPrefix(head, p) {
			return true
		}
	}
	return false
}

// ScanFrame reads every row into a frame. Column types come from the
// driver's type names and fall back to inference from the values.
// A result with no columns returns a nil frame.
func ScanFrame(rows *sql.Rows) (*frame.Frame, error) {
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read column types: %w", err)
	}
	if len(colTypes) == 0 {
		return nil, rows.Err()
	}

	cols := make([]*frame.Column, len(colTypes))
	for i, ct := range colTypes {
		cols[i] = &frame.Column{Name: ct.Name(), Values: []any{}}
	}

	dest := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range dest {
		ptrs[i] = &dest[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range dest {
			cols[i].Values = append(cols[i].Values, scannedValue(v))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	for i, ct := range colTypes {
		t, ok := DataTypeFor(ct.DatabaseTypeName())
		if !ok {
			t = frame.InferType(cols[i].Values)
		}
		cols[i].Type = t
		if t == frame.Bool {
			for j, v := range cols[i].Values {
				if n, ok := v.(int64); ok {
					cols[i].Values[j] = n != 0
				}
			}
		}
	}
	return frame.New(cols...)
}

// DataTypeFor maps a database type name onto a frame type.
func DataTypeFor(dbType string) (frame.DataType, bool) {
	name := strings.ToUpper(dbType)
	switch {
	case name == "":
		return frame.Null, false
	case strings.HasSuffix(name, "[]") || strings.HasPrefix(name, "LIST"):
		return frame.List, true
	case name == "BOOLEAN" || name == "BOOL":
		return frame.Bool, true
	case name == "INTERVAL":
		return frame.Object, true
	case strings.Contains(name, "INT"):
		return frame.Int64, true
	case name == "DOUBLE" || name == "FLOAT" || name == "REAL" ||
		strings.HasPrefix(name, "DECIMAL") || strings.HasPrefix(name, "NUMERIC"):
		return frame.Float64, true
	case name == "VARCHAR" || name == "TEXT" || strings.HasPrefix(name, "CHAR") || name == "UUID":
		return frame.String, true
	case name == "DATE":
		return frame.Date, true
	case strings.HasPrefix(name, "TIMESTAMP") || name == "DATETIME":
		return frame.Datetime, true
	case strings.HasPrefix(name, "TIME"):
		return frame.Time, true
	}
	return frame.Null, false
}

// scannedValue normalizes driver values to the set frames carry.
func scannedValue(v any) any {
	switch x := v.(type) {
	case nil, bool, int64, float64, string, time.Time:
		return x
	case []byte:
		return string(x)
	case float32:
		return float64(x)
	case *big.Int:
		if x.IsInt64() {
			return x.Int64()
		}
		return x.String()
	case interface{ Float64() float64 }:
		return x.Float64()
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = scannedValue(e)
		}
		return out
	}
	if i, ok := frame.ToInt64(v); ok {
		return i
	}
	return fmt.Sprint(v)
}
