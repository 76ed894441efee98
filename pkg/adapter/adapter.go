// Package adapter defines the SQL engine contract shared by the relational
// engine and the frame-query engine, plus a database/sql base implementation.
//
// Concrete engines live in pkg/adapters/ subdirectories and register
// themselves by name from an init function.
package adapter

import (
	"context"

	"github.com/leapstack-labs/quantdb/pkg/frame"
)

// Config holds configuration for opening an engine.
type Config struct {
	// Type selects the registered engine ("duckdb", "sqlite").
	Type string
	// Path is the database file. Empty means in-memory.
	Path string
	// Params holds engine-specific settings decoded by the engine.
	Params map[string]any
}

// Adapter is a SQL engine that stores frames as tables and answers queries
// with frames.
type Adapter interface {
	// Connect opens the database described by cfg.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the database and releases resources.
	Close() error

	// Exec executes a statement that doesn't return rows.
	Exec(ctx context.Context, sql string) error

	// QueryFrame executes a statement and collects its rows into a frame.
	// A statement that yields no columns returns a nil frame.
	QueryFrame(ctx context.Context, sql string) (*frame.Frame, error)

	// Register creates or replaces table name with the contents of f.
	Register(ctx context.Context, name string, f *frame.Frame) error

	// ListTables returns the names of the user tables, sorted.
	ListTables(ctx context.Context) ([]string, error)
}
