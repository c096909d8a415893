package logging

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

// newTestLogger creates a logger writing to an in-memory buffer so tests can
// assert on the emitted JSON.
func newTestLogger(t *testing.T) (Logger, *zaptest.Buffer) {
	t.Helper()
	buf := &zaptest.Buffer{}
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderConfig)
	core := zapcore.NewCore(encoder, buf, zapcore.DebugLevel)
	return &zapLogger{z: zap.New(core)}, buf
}

func TestNewLogger_JSONFormat(t *testing.T) {
	l, err := NewLogger(LogConfig{Level: "info", Format: "json", Output: "stdout"})
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestNewLogger_ConsoleFormat(t *testing.T) {
	l, err := NewLogger(LogConfig{Level: "debug", Format: "console", Output: "stdout"})
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestNewLogger_DefaultsWhenEmpty(t *testing.T) {
	l, err := NewLogger(LogConfig{})
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestNopLogger_AllMethodsNoOp(t *testing.T) {
	l := NewNopLogger()
	assert.NotPanics(t, func() {
		l.Debug("msg")
		l.Info("msg")
		l.Warn("msg")
		l.Error("msg")
	})
}

func TestNopLogger_WithReturnsSelf(t *testing.T) {
	l := NewNopLogger()
	assert.Equal(t, l, l.With(String("k", "v")))
	assert.Equal(t, l, l.Named("child"))
}

func TestZapLogger_LevelsWriteLog(t *testing.T) {
	l, buf := newTestLogger(t)

	l.Debug("debug msg")
	l.Info("info msg")
	l.Warn("warn msg")
	l.Error("error msg")

	out := buf.String()
	assert.Contains(t, out, "debug msg")
	assert.Contains(t, out, `"level":"info"`)
	assert.Contains(t, out, "warn msg")
	assert.Contains(t, out, `"level":"error"`)
}

func TestZapLogger_WithAddsFields(t *testing.T) {
	l, buf := newTestLogger(t)
	l.With(String("cell_key", "parent_51.53_-0.05")).Info("cache hit")
	assert.Contains(t, buf.String(), `"cell_key":"parent_51.53_-0.05"`)
}

func TestZapLogger_NamedAddsLoggerName(t *testing.T) {
	l, buf := newTestLogger(t)
	l.Named("heatmap").Info("scan complete")
	assert.Contains(t, buf.String(), `"logger":"heatmap"`)
}

func TestFieldConstructors(t *testing.T) {
	l, buf := newTestLogger(t)
	l.Info("typed fields",
		String("s", "v"),
		Int("i", 7),
		Int64("i64", 9),
		Float64("f", 24.4),
		Bool("b", true),
		Duration("d", 250*time.Millisecond),
		Err(errors.New("boom")),
		Any("a", []int{1, 2}),
	)

	out := buf.String()
	assert.Contains(t, out, `"i":7`)
	assert.Contains(t, out, `"f":24.4`)
	assert.Contains(t, out, `"b":true`)
	assert.Contains(t, out, `"error":"boom"`)
}

func TestErr_NilError(t *testing.T) {
	f := Err(nil)
	assert.Equal(t, "error", f.Key)
	assert.Equal(t, "<nil>", f.Value)
}

func TestNewLogger_CallerAndStacktrace(t *testing.T) {
	l, err := NewLogger(LogConfig{
		Level:            "info",
		Format:           "json",
		Output:           "stdout",
		EnableCaller:     true,
		EnableStacktrace: true,
	})
	require.NoError(t, err)
	assert.NotNil(t, l)
}
