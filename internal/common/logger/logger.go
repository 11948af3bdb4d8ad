package logger

import (
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger writes one JSON line per action:
// {"level","timestamp","message","service","hostname","action",...fields}.
type Logger struct{ z *zap.Logger }

func New(service, level string) *Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.DisableStacktrace = true
	cfg.Sampling = nil
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	z, err := cfg.Build()
	if err != nil {
		z = zap.NewExample()
	}
	return FromZap(z, service)
}

// FromZap wraps an existing zap logger, e.g. one built on an observer core.
func FromZap(z *zap.Logger, service string) *Logger {
	return &Logger{z: z.With(zap.String("service", service), zap.String("hostname", hostname()))}
}

func Nop() *Logger { return &Logger{z: zap.NewNop()} }

func (l *Logger) Info(action string, fields map[string]any)  { l.z.Info(action, zapFields(action, fields)...) }
func (l *Logger) Debug(action string, fields map[string]any) { l.z.Debug(action, zapFields(action, fields)...) }
func (l *Logger) Warn(action string, fields map[string]any)  { l.z.Warn(action, zapFields(action, fields)...) }

func (l *Logger) Error(action string, err error, fields map[string]any) {
	fs := zapFields(action, fields)
	if err != nil {
		fs = append(fs, zap.Error(err), zap.String("error_type", fmt.Sprintf("%T", err)))
	}
	l.z.Error(action, fs...)
}

func (l *Logger) Sync() { _ = l.z.Sync() }

func zapFields(action string, fields map[string]any) []zap.Field {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]zap.Field, 0, len(keys)+1)
	out = append(out, zap.String("action", action))
	for _, k := range keys {
		out = append(out, zap.Any(k, fields[k]))
	}
	return out
}

func hostname() string { h, _ := os.Hostname(); return h }
