package logging

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// newObservedLogger returns a Logger whose output is captured for assertions.
func newObservedLogger(level zapcore.Level) (Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return NewLoggerFromCore(core), logs
}

func TestNewLogger_JSONFormat(t *testing.T) {
	l, err := NewLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestNewLogger_ConsoleFormat(t *testing.T) {
	l, err := NewLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestNewLogger_DefaultsApplied(t *testing.T) {
	// Empty config must still produce a working logger.
	l, err := NewLogger(LogConfig{})
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestLogger_EmitsFields(t *testing.T) {
	l, logs := newObservedLogger(zapcore.DebugLevel)

	l.Info("substance enriched",
		String("substance_key", "ivosidenib"),
		Int("sources_ok", 3),
		Bool("cached", false),
		Duration("elapsed", 250*time.Millisecond),
	)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "substance enriched", entry.Message)

	fields := entry.ContextMap()
	assert.Equal(t, "ivosidenib", fields["substance_key"])
	assert.Equal(t, int64(3), fields["sources_ok"])
	assert.Equal(t, false, fields["cached"])
}

func TestLogger_LevelFiltering(t *testing.T) {
	l, logs := newObservedLogger(zapcore.WarnLevel)

	l.Debug("dropped")
	l.Info("dropped too")
	l.Warn("kept")
	l.Error("kept too")

	assert.Equal(t, 2, logs.Len())
}

func TestLogger_With(t *testing.T) {
	l, logs := newObservedLogger(zapcore.DebugLevel)

	child := l.With(String("document_id", "abc123"))
	child.Info("first")
	child.Info("second")
	l.Info("parent untouched")

	require.Equal(t, 3, logs.Len())
	assert.Equal(t, "abc123", logs.All()[0].ContextMap()["document_id"])
	assert.Equal(t, "abc123", logs.All()[1].ContextMap()["document_id"])
	assert.NotContains(t, logs.All()[2].ContextMap(), "document_id")
}

func TestLogger_Named(t *testing.T) {
	l, logs := newObservedLogger(zapcore.DebugLevel)

	l.Named("enrichment").Info("hello")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "enrichment", logs.All()[0].LoggerName)
}

func TestErr_Field(t *testing.T) {
	assert.Equal(t, "error", Err(errors.New("boom")).Key)
	assert.Equal(t, "boom", Err(errors.New("boom")).Value)
	assert.Equal(t, "<nil>", Err(nil).Value)
}

func TestNopLogger_DoesNothing(t *testing.T) {
	l := NewNopLogger()
	assert.NotPanics(t, func() {
		l.Debug("x")
		l.Info("x", String("k", "v"))
		l.With(String("a", "b")).Named("n").Error("x")
	})
}

func TestDefault_SetAndGet(t *testing.T) {
	orig := Default()
	t.Cleanup(func() { SetDefault(orig) })

	l, logs := newObservedLogger(zapcore.InfoLevel)
	SetDefault(l)
	Default().Info("via default")

	assert.Equal(t, 1, logs.Len())

	// nil is ignored.
	SetDefault(nil)
	assert.Equal(t, l, Default())
}
