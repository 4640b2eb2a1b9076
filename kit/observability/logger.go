package observability

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a thin key/value facade over zap so call sites stay free of
// zap.Field constructors.
type Logger struct {
	s *zap.SugaredLogger
}

// NewLogger returns a JSON info-level logger, or a no-op one if zap fails to build.
func NewLogger() *Logger {
	lg, err := NewLoggerWithConfig("info", "json")
	if err != nil {
		return NewNopLogger()
	}
	return lg
}

// NewLoggerWithConfig builds a logger for level (debug, info, warn, error)
// and format (json or console).
func NewLoggerWithConfig(level, format string) (*Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}

	var cfg zap.Config
	switch strings.ToLower(format) {
	case "", "json":
		cfg = zap.NewProductionConfig()
	case "console":
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("log format %q: want json or console", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	z, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return &Logger{s: z.Sugar()}, nil
}

// NewLoggerFromZap wraps an existing zap logger, e.g. an observer core in tests.
func NewLoggerFromZap(z *zap.Logger) *Logger {
	return &Logger{s: z.Sugar()}
}

func NewNopLogger() *Logger {
	return &Logger{s: zap.NewNop().Sugar()}
}

func (lg *Logger) Debug(msg string, kv ...any) {
	lg.s.Debugw(msg, kv...)
}

func (lg *Logger) Info(msg string, kv ...any) {
	lg.s.Infow(msg, kv...)
}

func (lg *Logger) Warn(msg string, kv ...any) {
	lg.s.Warnw(msg, kv...)
}

func (lg *Logger) Error(msg string, kv ...any) {
	lg.s.Errorw(msg, kv...)
}

// With returns a child logger that always carries kv.
func (lg *Logger) With(kv ...any) *Logger {
	return &Logger{s: lg.s.With(kv...)}
}

func (lg *Logger) Sync() error {
	return lg.s.Sync()
}
