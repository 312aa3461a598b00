package log

import (
	"context"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Logger struct {
	zl    *zap.Logger
	level zap.AtomicLevel

	mu    sync.RWMutex
	hooks []Hook
}

// New builds a zap backed logger from cfg. Unknown levels fall back to info.
func New(cfg Config) *Logger {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if lvl, err := zapcore.ParseLevel(strings.ToLower(cfg.Level)); err == nil {
		level.SetLevel(lvl)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "time"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.Encoding == "console" {
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, newWriteSyncer(cfg), level)

	opts := []zap.Option{zap.AddCaller(), zap.AddCallerSkip(2)}
	if cfg.IncludeStacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	zl := zap.New(core, opts...)
	if cfg.Name != "" {
		zl = zl.Named(cfg.Name)
	}

	return &Logger{zl: zl, level: level}
}

func newWriteSyncer(cfg Config) zapcore.WriteSyncer {
	if cfg.Output != "file" || cfg.File.Path == "" {
		return zapcore.Lock(os.Stdout)
	}

	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.File.Path,
		MaxSize:    cfg.File.MaxSize,
		MaxAge:     cfg.File.MaxAge,
		MaxBackups: cfg.File.MaxBackups,
		LocalTime:  cfg.File.LocalTime,
		Compress:   cfg.File.Compress,
	})
}

func (l *Logger) AddHook(hook Hook) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.hooks = append(l.hooks, hook)
}

func (l *Logger) applyHooks(ctx context.Context, msg string, fields []Field) []Field {
	l.mu.RLock()
	hooks := l.hooks
	l.mu.RUnlock()

	for _, hook := range hooks {
		fields = hook.Apply(ctx, msg, fields...)
	}

	return fields
}

func (l *Logger) log(ctx context.Context, lvl zapcore.Level, msg string, fields []Field) {
	if !l.level.Enabled(lvl) {
		return
	}

	if ce := l.zl.Check(lvl, msg); ce != nil {
		ce.Write(l.applyHooks(ctx, msg, fields)...)
	}
}

func (l *Logger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.DebugLevel, msg, fields)
}

func (l *Logger) Info(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.InfoLevel, msg, fields)
}

func (l *Logger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.WarnLevel, msg, fields)
}

func (l *Logger) Error(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.ErrorLevel, msg, fields)
}

func (l *Logger) DebugEnabled() bool {
	return l.level.Enabled(zapcore.DebugLevel)
}

// Zap exposes the underlying logger for libraries that want one.
func (l *Logger) Zap() *zap.Logger {
	return l.zl
}

func (l *Logger) Sync() error {
	return l.zl.Sync()
}

func newWithCore(core zapcore.Core, level zap.AtomicLevel) *Logger {
	return &Logger{zl: zap.New(core), level: level}
}
