package log

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logger used across commhub. Key/value pairs follow
// the logr convention.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(err error, msg string, keysAndValues ...any)

	// WithName appends name to the logger name, e.g. "dispatch".
	WithName(name string) Logger
	// WithValues returns a logger that adds keysAndValues to every entry.
	WithValues(keysAndValues ...any) Logger

	// Logr adapts the logger for libraries that expect a logr.Logger.
	Logr() logr.Logger

	Sync() error
}

var _ Logger = (*zapLogger)(nil)

type zapLogger struct {
	z *zap.Logger
}

// NewLogger builds a zap-backed Logger. The level is fixed for the lifetime
// of the returned logger; only the global logger can be adjusted by SetLevel.
func NewLogger(opts *Options) Logger {
	return newLogger(opts, zap.NewAtomicLevelAt(parseLevel(opts)))
}

func newLogger(opts *Options, level zap.AtomicLevel) Logger {
	if opts == nil {
		opts = NewOptions()
	}

	cfg := zap.Config{
		Level:            level,
		DisableCaller:    opts.DisableCaller,
		Encoding:         opts.Format,
		EncoderConfig:    encoderConfig(opts),
		OutputPaths:      orDefault(opts.OutputPaths, "stdout"),
		ErrorOutputPaths: orDefault(opts.ErrorOutputPaths, "stderr"),
	}
	z, err := cfg.Build(zap.AddCallerSkip(opts.CallerSkip), zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		panic(fmt.Sprintf("failed to build zap logger: %v", err))
	}
	if opts.Name != "" {
		z = z.Named(opts.Name)
	}
	return &zapLogger{z: z}
}

func orDefault(paths []string, def string) []string {
	if len(paths) == 0 {
		return []string{def}
	}
	return paths
}

// encoderConfig renders durations in milliseconds.
func encoderConfig(opts *Options) zapcore.EncoderConfig {
	cfg := zapcore.EncoderConfig{
		MessageKey:     "message",
		LevelKey:       "level",
		TimeKey:        "timestamp",
		NameKey:        "logger",
		CallerKey:      "caller",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
	}
	if opts.Format == "console" && opts.EnableColor {
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return cfg
}

func parseLevel(opts *Options) zapcore.Level {
	var lvl zapcore.Level
	if opts == nil || lvl.UnmarshalText([]byte(opts.Level)) != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

func (l *zapLogger) Debug(msg string, keysAndValues ...any) {
	l.z.Debug(msg, toFields(keysAndValues...)...)
}

func (l *zapLogger) Info(msg string, keysAndValues ...any) {
	l.z.Info(msg, toFields(keysAndValues...)...)
}

func (l *zapLogger) Warn(msg string, keysAndValues ...any) {
	l.z.Warn(msg, toFields(keysAndValues...)...)
}

func (l *zapLogger) Error(err error, msg string, keysAndValues ...any) {
	fields := toFields(keysAndValues...)
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	l.z.Error(msg, fields...)
}

func (l *zapLogger) WithName(name string) Logger {
	return &zapLogger{z: l.z.Named(name)}
}

func (l *zapLogger) WithValues(keysAndValues ...any) Logger {
	return &zapLogger{z: l.z.With(toFields(keysAndValues...)...)}
}

func (l *zapLogger) Logr() logr.Logger { return zapr.NewLogger(l.z) }
func (l *zapLogger) Sync() error       { return l.z.Sync() }

var (
	once  sync.Once
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

	std = NewNopLogger()
)

// Init replaces the global no-op logger. Only the first call takes effect.
func Init(opts *Options) {
	once.Do(func() {
		level.SetLevel(parseLevel(opts))
		std = newLogger(opts, level)
	})
}

// SetLevel changes the level of the global logger while it is running.
func SetLevel(text string) error {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(text)); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	level.SetLevel(lvl)
	return nil
}

// Level reports the current level of the global logger.
func Level() string { return level.Level().String() }

func Std() Logger { return std }

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() Logger {
	return &zapLogger{z: zap.NewNop()}
}

func Debug(msg string, keysAndValues ...any)            { std.Debug(msg, keysAndValues...) }
func Info(msg string, keysAndValues ...any)             { std.Info(msg, keysAndValues...) }
func Warn(msg string, keysAndValues ...any)             { std.Warn(msg, keysAndValues...) }
func Error(err error, msg string, keysAndValues ...any) { std.Error(err, msg, keysAndValues...) }
func WithName(name string) Logger                       { return std.WithName(name) }
func WithValues(keysAndValues ...any) Logger            { return std.WithValues(keysAndValues...) }
func Logr() logr.Logger                                 { return std.Logr() }
func Sync() error                                       { return std.Sync() }

type contextKey struct{}

// NewContext returns a copy of ctx carrying logger.
func NewContext(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger stored in ctx, or the global logger.
func FromContext(ctx context.Context) Logger {
	if ctx != nil {
		if l, ok := ctx.Value(contextKey{}).(Logger); ok {
			return l
		}
	}
	return std
}
