package starlark

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.starlark.net/starlark"
)

const contextKey = "context"

// Loader resolves load() module names.
type Loader func(module string) (starlark.StringDict, error)

// ThreadPool manages a pool of Starlark threads. Threads created by the
// pool print to out and resolve load() through loader.
type ThreadPool struct {
	mu      sync.Mutex
	threads []*starlark.Thread
	maxSize int
	out     io.Writer
	loader  Loader
}

// NewThreadPool creates a new thread pool with the specified maximum size.
// A nil out discards print output; a nil loader rejects every load().
func NewThreadPool(maxSize int, out io.Writer, loader Loader) *ThreadPool {
	if maxSize <= 0 {
		maxSize = 4 // default pool size
	}
	if out == nil {
		out = io.Discard
	}
	return &ThreadPool{
		threads: make([]*starlark.Thread, 0, maxSize),
		maxSize: maxSize,
		out:     out,
		loader:  loader,
	}
}

// Get retrieves a thread from the pool or creates a new one and binds ctx
// to it. The thread name is used for error reporting.
func (p *ThreadPool) Get(ctx context.Context, name string) *starlark.Thread {
	p.mu.Lock()
	defer p.mu.Unlock()

	var thread *starlark.Thread
	if n := len(p.threads); n > 0 {
		thread = p.threads[n-1]
		p.threads = p.threads[:n-1]
		thread.Name = name
	} else {
		thread = &starlark.Thread{
			Name: name,
			Print: func(_ *starlark.Thread, msg string) {
				_, _ = fmt.Fprintln(p.out, msg)
			},
			Load: func(_ *starlark.Thread, module string) (starlark.StringDict, error) {
				if p.loader == nil {
					return nil, fmt.Errorf("cannot load %s: no modules available", module)
				}
				return p.loader(module)
			},
		}
	}
	thread.SetLocal(contextKey, ctx)
	return thread
}

// Put returns a thread to the pool for reuse.
// If the pool is full, the thread is discarded.
func (p *ThreadPool) Put(thread *starlark.Thread) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.threads) < p.maxSize {
		// Clear any state that might leak between uses
		thread.Name = ""
		thread.SetLocal(contextKey, nil)
		p.threads = append(p.threads, thread)
	}
}

// Size returns the current number of threads in the pool.
func (p *ThreadPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.threads)
}

// threadContext returns the context bound by ThreadPool.Get.
func threadContext(thread *starlark.Thread) context.Context {
	if thread != nil {
		if ctx, ok := thread.Local(contextKey).(context.Context); ok && ctx != nil {
			return ctx
		}
	}
	return context.Background()
}
