// Package mysql exposes the query processor over the MySQL wire protocol
// so that SQL clients and BI tools can send tagged commands.
package mysql

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/quantdb/pkg/frame"
)

// Processor is the query processor as seen by MySQL sessions.
type Processor interface {
	Query(ctx context.Context, command string) (*frame.Frame, error)
}

// Session runs client statements through the processor.
type Session struct {
	proc   Processor
	logger *slog.Logger
}

// NewSession creates a session over proc.
func NewSession(proc Processor, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Session{proc: proc, logger: logger}
}

// Query runs sqlText and returns its rows and column names. expression is
// the statement as the client framed it and attrs are the client's query
// attributes; both are logged only.
func (s *Session) Query(ctx context.Context, expression, sqlText string, attrs map[string]string) ([][]any, []string, error) {
	s.logger.Debug("mysql query", "expression", expression, "attrs", len(attrs))
	f, err := s.proc.Query(ctx, sqlText)
	if err != nil {
		return nil, nil, err
	}
	return f.Rows(), f.Names(), nil
}

// Schema describes the tables advertised to clients that ask for column
// lists.
func (s *Session) Schema() map[string]map[string]string {
	return map[string]map[string]string{
		"table": {
			"col1": "TEXT",
			"col2": "INT",
		},
	}
}
