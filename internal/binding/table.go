// Package binding holds the named values shared between the scripting engine
// and the SQL engines for the lifetime of a processor.
package binding

import (
	"sort"
	"sync"

	"go.starlark.net/starlark"
)

// Table is the binding table. Scripts run against a copy taken with
// Snapshot and publish their assignments with Commit, so readers never
// see a dict that a script is writing.
type Table struct {
	mu      sync.RWMutex
	globals starlark.StringDict
}

// NewTable creates an empty binding table.
func NewTable() *Table {
	return &Table{globals: make(starlark.StringDict)}
}

// Snapshot returns a copy of the globals.
func (t *Table) Snapshot() starlark.StringDict {
	t.mu.RLock()
	defer t.mu.RUnlock()
	globals := make(starlark.StringDict, len(t.globals))
	for k, v := range t.globals {
		globals[k] = v
	}
	return globals
}

// Commit replaces the globals with a dict obtained from Snapshot. The
// caller must not write globals afterwards.
func (t *Table) Commit(globals starlark.StringDict) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.globals = globals
}

// Get returns the value bound to name.
func (t *Table) Get(name string) (starlark.Value, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.globals[name]
	return v, ok
}

// Set binds name to v, overwriting any previous binding.
func (t *Table) Set(name string, v starlark.Value) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.globals[name] = v
}

// Names returns the bound names in sorted order.
func (t *Table) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.globals.Keys()
}

// Each calls fn for every binding in name order.
func (t *Table) Each(fn func(name string, v starlark.Value)) {
	t.mu.RLock()
	names := make([]string, 0, len(t.globals))
	for k := range t.globals {
		names = append(names, k)
	}
	sort.Strings(names)
	snapshot := make([]starlark.Value, len(names))
	for i, k := range names {
		snapshot[i] = t.globals[k]
	}
	t.mu.RUnlock()

	for i, k := range names {
		fn(k, snapshot[i])
	}
}

// Len returns the number of bindings.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.globals)
}
