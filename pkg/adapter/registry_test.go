package adapter

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/leapstack-labs/quantdb/pkg/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnknownAdapterError_Error(t *testing.T) {
	err := &UnknownAdapterError{
		Type:      "fake_db",
		Available: []string{"duckdb", "sqlite"},
	}

	msg := err.Error()
	assert.Contains(t, msg, "fake_db", "error should mention the unknown type")
	assert.Contains(t, msg, "sqlite", "error should list available engines")
}

func TestRegister(t *testing.T) {
	Register("test_adapter_internal", func(_ *slog.Logger) Adapter { return nil })

	assert.Contains(t, ListAdapters(), "test_adapter_internal")

	factory, ok := Get("test_adapter_internal")
	assert.True(t, ok)
	assert.NotNil(t, factory)
}

func TestNewAdapter(t *testing.T) {
	_, err := NewAdapter(Config{Type: ""}, nil)
	require.Error(t, err)
	assert.Equal(t, "adapter type not specified", err.Error())

	_, err = NewAdapter(Config{Type: "does_not_exist"}, nil)
	var unknown *UnknownAdapterError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "does_not_exist", unknown.Type)
}

// recordingAdapter keeps the names registered on it.
type recordingAdapter struct {
	registered []string
	failOn     string
	closed     bool
}

func (r *recordingAdapter) Connect(context.Context, Config) error { return nil }
func (r *recordingAdapter) Close() error                         { r.closed = true; return nil }
func (r *recordingAdapter) Exec(context.Context, string) error   { return nil }
func (r *recordingAdapter) QueryFrame(context.Context, string) (*frame.Frame, error) {
	return nil, nil
}
func (r *recordingAdapter) ListTables(context.Context) ([]string, error) { return r.registered, nil }
func (r *recordingAdapter) Register(_ context.Context, name string, _ *frame.Frame) error {
	if name == r.failOn {
		return errors.New("register failed")
	}
	r.registered = append(r.registered, name)
	return nil
}

func TestNewSnapshot(t *testing.T) {
	ctx := context.Background()
	frames := map[string]*frame.Frame{
		"b": frame.MustNew(frame.NewColumn("x", int64(1))),
		"a": frame.MustNew(frame.NewColumn("y", "s")),
	}

	rec := &recordingAdapter{}
	Register("test_snapshot", func(_ *slog.Logger) Adapter { return rec })

	snap, err := NewSnapshot(ctx, Config{Type: "test_snapshot"}, frames, nil)
	require.NoError(t, err)
	assert.Same(t, rec, snap)
	assert.Equal(t, []string{"a", "b"}, rec.registered)

	failing := &recordingAdapter{failOn: "b"}
	Register("test_snapshot_failing", func(_ *slog.Logger) Adapter { return failing })
	_, err = NewSnapshot(ctx, Config{Type: "test_snapshot_failing"}, frames, nil)
	assert.ErrorContains(t, err, "failed to snapshot b")
	assert.True(t, failing.closed)

	_, err = NewSnapshot(ctx, Config{Type: "does_not_exist"}, frames, nil)
	var unknown *UnknownAdapterError
	assert.ErrorAs(t, err, &unknown)
}
