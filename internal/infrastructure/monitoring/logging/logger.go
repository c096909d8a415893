// Package logging provides the structured logger used across the backend,
// backed by uber-go/zap.  Components receive the Logger interface so tests
// can substitute a no-op or buffer-backed implementation.
package logging

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig mirrors the log section of the application configuration.  Its
// field set matches config.LogConfig exactly so callers can convert between
// the two with a plain struct conversion.
type LogConfig struct {
	// Level is the minimum level to emit: debug, info, warn or error.
	Level string
	// Format selects the encoder: "json" (default), or "console"/"text"
	// for a human-readable layout.
	Format string
	// Output is the destination path; "stdout" and "stderr" are recognized
	// in addition to file paths.  Defaults to stdout.
	Output string
	// EnableCaller annotates entries with the caller's file and line.
	EnableCaller bool
	// EnableStacktrace attaches stack traces to error-level entries.
	EnableStacktrace bool
}

// Logger is the logging facade handed to every component.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	// With returns a child logger that includes the given fields on every
	// entry it emits.
	With(fields ...Field) Logger
	// Named returns a child logger with the given name segment appended,
	// e.g. Named("heatmap") tags entries with logger=heatmap.
	Named(name string) Logger
}

// NewLogger builds a zap-backed Logger from cfg.  Zero-value fields fall back
// to info level, JSON encoding and stdout.
func NewLogger(cfg LogConfig) (Logger, error) {
	level := parseLevel(cfg.Level)

	encoding := "json"
	if cfg.Format == "console" || cfg.Format == "text" {
		encoding = "console"
	}

	output := cfg.Output
	if output == "" {
		output = "stdout"
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if encoding == "console" {
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	zapCfg := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Encoding:          encoding,
		EncoderConfig:     encoderCfg,
		OutputPaths:       []string{output},
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     !cfg.EnableCaller,
		DisableStacktrace: !cfg.EnableStacktrace,
	}

	// Skip one frame so the caller annotation points at the call site, not
	// at this wrapper.
	z, err := zapCfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}
	return &zapLogger{z: z}, nil
}

func parseLevel(s string) zapcore.Level {
	switch s {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

type zapLogger struct {
	z *zap.Logger
}

func (l *zapLogger) Debug(msg string, fields ...Field) { l.z.Debug(msg, toZapFields(fields)...) }
func (l *zapLogger) Info(msg string, fields ...Field)  { l.z.Info(msg, toZapFields(fields)...) }
func (l *zapLogger) Warn(msg string, fields ...Field)  { l.z.Warn(msg, toZapFields(fields)...) }
func (l *zapLogger) Error(msg string, fields ...Field) { l.z.Error(msg, toZapFields(fields)...) }
func (l *zapLogger) Fatal(msg string, fields ...Field) { l.z.Fatal(msg, toZapFields(fields)...) }

func (l *zapLogger) With(fields ...Field) Logger {
	return &zapLogger{z: l.z.With(toZapFields(fields)...)}
}

func (l *zapLogger) Named(name string) Logger {
	return &zapLogger{z: l.z.Named(name)}
}

func toZapFields(fields []Field) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		switch v := f.Value.(type) {
		case string:
			out = append(out, zap.String(f.Key, v))
		case int:
			out = append(out, zap.Int(f.Key, v))
		case int64:
			out = append(out, zap.Int64(f.Key, v))
		case float64:
			out = append(out, zap.Float64(f.Key, v))
		case bool:
			out = append(out, zap.Bool(f.Key, v))
		case time.Duration:
			out = append(out, zap.Duration(f.Key, v))
		case error:
			out = append(out, zap.NamedError(f.Key, v))
		default:
			out = append(out, zap.Any(f.Key, v))
		}
	}
	return out
}

// nopLogger discards everything.  With and Named return the receiver so
// chained calls stay allocation-free.
type nopLogger struct{}

// NewNopLogger returns a Logger that drops all entries.  Intended for tests
// and for components constructed before configuration is available.
func NewNopLogger() Logger { return nopLogger{} }

func (nopLogger) Debug(string, ...Field) {}
func (nopLogger) Info(string, ...Field)  {}
func (nopLogger) Warn(string, ...Field)  {}
func (nopLogger) Error(string, ...Field) {}
func (nopLogger) Fatal(string, ...Field) {}

func (n nopLogger) With(...Field) Logger { return n }
func (n nopLogger) Named(string) Logger  { return n }
