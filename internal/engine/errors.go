package engine

import "errors"

var (
	// ErrNotImplemented is returned by the demo engine for input outside
	// its vocabulary.
	ErrNotImplemented = errors.New("not implemented")

	// ErrQuit is returned after the demo engine's exit command ran the
	// processor's quit hook.
	ErrQuit = errors.New("quit requested")
)
