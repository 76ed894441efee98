package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/leapstack-labs/quantdb/pkg/frame"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]func(*slog.Logger) Adapter)
)

// Register adds an adapter factory to the registry.
// Called by adapter implementations in their init() functions.
func Register(name string, factory func(*slog.Logger) Adapter) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Get retrieves an adapter factory by name.
func Get(name string) (func(*slog.Logger) Adapter, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// NewAdapter creates a new adapter instance based on config type.
// The logger parameter is passed to the adapter constructor (nil uses discard logger).
func NewAdapter(cfg Config, logger *slog.Logger) (Adapter, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("adapter type not specified")
	}

	factory, ok := Get(cfg.Type)
	if !ok {
		return nil, &UnknownAdapterError{
			Type:      cfg.Type,
			Available: ListAdapters(),
		}
	}
	return factory(logger), nil
}

// ListAdapters returns all registered adapter names (sorted).
func ListAdapters() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewSnapshot opens a fresh engine of cfg.Type and registers every frame
// as a table named after its key, in name order. The snapshot is not
// modified afterwards; callers build a new one when the frames change.
func NewSnapshot(ctx context.Context, cfg Config, frames map[string]*frame.Frame, logger *slog.Logger) (Adapter, error) {
	a, err := NewAdapter(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := a.Connect(ctx, cfg); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(frames))
	for name := range frames {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := a.Register(ctx, name, frames[name]); err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("failed to snapshot %s: %w", name, err)
		}
	}
	return a, nil
}

// UnknownAdapterError is returned when an unknown adapter type is requested.
type UnknownAdapterError struct {
	Type      string
	Available []string
}

func (e *UnknownAdapterError) Error() string {
	return fmt.Sprintf("unknown engine type %q (available: %v)", e.Type, e.Available)
}
