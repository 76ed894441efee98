// Package engine provides the query processor: it routes tagged commands
// to the scripting, relational, frame-query and demo engines, keeps the
// engines' views of the binding table in step, and normalizes results.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/leapstack-labs/quantdb/internal/binding"
	"github.com/leapstack-labs/quantdb/internal/normalize"
	"github.com/leapstack-labs/quantdb/internal/router"
	"github.com/leapstack-labs/quantdb/internal/starlark"
	"github.com/leapstack-labs/quantdb/pkg/adapter"
	"github.com/leapstack-labs/quantdb/pkg/frame"

	// Register the relational and frame-query engines.
	_ "github.com/leapstack-labs/quantdb/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/quantdb/pkg/adapters/sqlite"
)

// Config holds processor configuration.
type Config struct {
	// Database is the DuckDB file. Empty opens an in-memory database.
	Database string
	// DuckDB holds engine params (extensions, settings, secrets).
	DuckDB map[string]any
	// Lang is the initial session language. Empty means py.
	Lang string
	// Output receives script print() output. Nil discards it.
	Output io.Writer
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
	// Quit is called by the demo engine's exit command. Defaults to os.Exit(0).
	Quit func()
}

// fileLoader is implemented by engines that can ingest data files.
type fileLoader interface {
	LoadFile(ctx context.Context, tableName, path string) error
}

// Processor is the single query-processing instance shared by every
// front end.
type Processor struct {
	// mu serializes command execution together with the synchronization
	// that follows it.
	mu sync.Mutex

	langMu sync.RWMutex
	lang   router.Lang

	cfg      Config
	logger   *slog.Logger
	quit     func()
	bindings *binding.Table
	script   *starlark.Engine
	duck     adapter.Adapter
	// frames is the frame-query snapshot, replaced at every sync.
	frames adapter.Adapter
	// registered holds the DuckDB tables created from bindings.
	registered map[string]bool
}

// New opens the relational engine, seeds the binding table and runs the
// initial synchronization.
func New(ctx context.Context, cfg Config) (*Processor, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	lang := router.Python
	if cfg.Lang != "" {
		l, err := router.ParseLang(cfg.Lang)
		if err != nil {
			return nil, err
		}
		lang = l
	}

	quit := cfg.Quit
	if quit == nil {
		quit = func() { os.Exit(0) }
	}

	logger.Debug("initializing processor", "database", cfg.Database, "lang", string(lang))

	dbConfig := adapter.Config{Type: "duckdb", Path: cfg.Database, Params: cfg.DuckDB}
	duck, err := adapter.NewAdapter(dbConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create database adapter: %w", err)
	}
	if err := duck.Connect(ctx, dbConfig); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	p := &Processor{
		lang:     lang,
		cfg:      cfg,
		logger:   logger,
		quit:     quit,
		bindings: binding.NewTable(),
		duck:     duck,
	}
	p.script = starlark.New(starlark.Config{
		SQL:     duck,
		Session: handle{p: p},
		Output:  cfg.Output,
		Logger:  logger,
	})
	p.script.Install(p.bindings)

	if err := p.seed(); err != nil {
		_ = duck.Close()
		return nil, err
	}
	if err := p.sync(ctx); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("failed initial sync: %w", err)
	}
	return p, nil
}

// seed binds the sample frames plx and pdx.
func (p *Processor) seed() error {
	sample := frame.MustNew(
		frame.NewColumn("a", int64(1), int64(2)),
		frame.NewColumn("b", int64(33), int64(41)),
	)
	rec, err := sample.ToArrow(memory.DefaultAllocator)
	if err != nil {
		return fmt.Errorf("failed to build arrow sample: %w", err)
	}
	p.bindings.Set("plx", starlark.NewFrame(sample))
	p.bindings.Set("pdx", starlark.NewArrowTable(rec))
	return nil
}

// QueryRaw routes command to its engine and returns the engine's value
// unchanged. An empty command returns nil.
func (p *Processor) QueryRaw(ctx context.Context, command string) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dispatch(ctx, command)
}

// Query runs command and normalizes the result into a frame. Lazy
// relations are resolved first so that their errors reach the caller.
func (p *Processor) Query(ctx context.Context, command string) (*frame.Frame, error) {
	p.mu.Lock()
	v, err := p.dispatch(ctx, command)
	if err == nil {
		v, err = normalize.Materialize(v)
	}
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return normalize.Normalize(v), nil
}

func (p *Processor) dispatch(ctx context.Context, command string) (any, error) {
	r, err := router.Route(command, p.Lang())
	if err != nil {
		p.logger.Warn("unrecognized command", "command", command)
		return nil, err
	}
	if r.Empty {
		return nil, nil
	}
	return p.run(ctx, r.Lang, r.Body)
}

// run executes an untagged body on the engine for lang.
func (p *Processor) run(ctx context.Context, lang router.Lang, body string) (any, error) {
	p.logger.Debug("executing", "lang", string(lang), "body", body)

	switch lang {
	case router.Python:
		v, err := p.script.ExecWithReturn(ctx, body, p.bindings)
		// Statements before a failure may have bound frames.
		if syncErr := p.sync(ctx); syncErr != nil {
			if err != nil {
				return nil, errors.Join(err, syncErr)
			}
			return nil, fmt.Errorf("failed to synchronize bindings: %w", syncErr)
		}
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, nil
		}
		return v, nil
	case router.DuckDB:
		return nullable(p.duck.QueryFrame(ctx, body))
	case router.Polars:
		return nullable(p.frames.QueryFrame(ctx, body))
	case router.Q:
		v, err := evalDemo(body)
		if errors.Is(err, ErrQuit) {
			p.logger.Info("quit requested")
			p.quit()
		}
		return v, err
	}
	return nil, fmt.Errorf("%w: %s", router.ErrInvalidLanguage, lang)
}

// nullable turns a nil frame into an untyped nil so callers can test the
// result against nil.
func nullable(f *frame.Frame, err error) (any, error) {
	if err != nil || f == nil {
		return nil, err
	}
	return f, nil
}

// LoadFiles runs each file on the engine its extension selects: .sql on
// the relational engine, .py and .star as scripts, data files as DuckDB
// tables named after the file. Other files run in the current language.
// The session language is left unchanged.
func (p *Processor) LoadFiles(ctx context.Context, paths []string) error {
	for _, path := range paths {
		if err := p.loadFile(ctx, path); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

func (p *Processor) loadFile(ctx context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".csv", ".tsv", ".parquet", ".json", ".ndjson":
		loader, ok := p.duck.(fileLoader)
		if !ok {
			return fmt.Errorf("engine cannot load %s files", ext)
		}
		table := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		p.logger.Debug("loading data file", "table", table, "path", path)
		return loader.LoadFile(ctx, table, path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	lang := p.Lang()
	switch ext {
	case ".sql":
		lang = router.DuckDB
	case ".py", ".star":
		lang = router.Python
	}
	p.logger.Debug("running file", "path", path, "lang", string(lang))
	_, err = p.run(ctx, lang, string(content))
	return err
}

// Tables lists the relational engine's tables.
func (p *Processor) Tables(ctx context.Context) ([]string, error) {
	return p.duck.ListTables(ctx)
}

// Bindings returns the names currently bound in the scripting engine.
func (p *Processor) Bindings() []string {
	return p.bindings.Names()
}

// Close releases both SQL engines.
func (p *Processor) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.frames != nil {
		errs = append(errs, p.frames.Close())
		p.frames = nil
	}
	if p.duck != nil {
		errs = append(errs, p.duck.Close())
	}
	return errors.Join(errs...)
}
