package engine

// sync.go - cross-engine binding synchronization

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/leapstack-labs/quantdb/internal/normalize"
	"github.com/leapstack-labs/quantdb/pkg/adapter"
	"github.com/leapstack-labs/quantdb/pkg/frame"
	"go.starlark.net/starlark"
)

// sync makes every tabular binding visible to the SQL engines. Each one is
// registered in DuckDB under its binding name, tables registered by an
// earlier pass whose binding is gone or no longer tabular are dropped, and
// a new frame-query snapshot is built from all of them and swapped in. On
// a snapshot failure the previous snapshot stays in place. Callers hold
// p.mu.
func (p *Processor) sync(ctx context.Context) error {
	frames := make(map[string]*frame.Frame)
	p.bindings.Each(func(name string, v starlark.Value) {
		f, ok := normalize.Tabular(v)
		if !ok {
			return
		}
		if f.Width() == 0 {
			p.logger.Debug("skipping frame without columns", "name", name)
			return
		}
		frames[name] = f
	})

	names := make([]string, 0, len(frames))
	for name := range frames {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	registered := make(map[string]bool, len(names))
	for _, name := range names {
		if err := p.duck.Register(ctx, name, frames[name]); err != nil {
			errs = append(errs, fmt.Errorf("failed to register %s: %w", name, err))
			registered[name] = p.registered[name]
			continue
		}
		registered[name] = true
	}

	var stale []string
	for name := range p.registered {
		if _, ok := frames[name]; !ok {
			stale = append(stale, name)
		}
	}
	sort.Strings(stale)
	for _, name := range stale {
		if err := p.duck.Exec(ctx, "DROP TABLE IF EXISTS "+adapter.QuoteIdent(name)); err != nil {
			errs = append(errs, fmt.Errorf("failed to drop %s: %w", name, err))
			registered[name] = true
			continue
		}
		p.logger.Debug("dropped unbound table", "name", name)
	}
	p.registered = registered

	snap, err := adapter.NewSnapshot(ctx, adapter.Config{Type: "sqlite"}, frames, p.logger)
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to build frame snapshot: %w", err))
		return errors.Join(errs...)
	}

	old := p.frames
	p.frames = snap
	if old != nil {
		if err := old.Close(); err != nil {
			p.logger.Warn("failed to close previous snapshot", "error", err)
		}
	}

	p.logger.Debug("bindings synchronized", "tables", len(names))
	return errors.Join(errs...)
}
