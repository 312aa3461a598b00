package log

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
)

var globalLogger atomic.Pointer[Logger]

func init() {
	cfg := DefaultConfig()
	cfg.Encoding = "console"
	globalLogger.Store(New(cfg))
}

func SetGlobalConfig(cfg Config) {
	globalLogger.Store(New(cfg))
}

func SetGlobalLogger(logger *Logger) {
	globalLogger.Store(logger)
}

func GetGlobalLogger() *Logger {
	return globalLogger.Load()
}

func Debug(ctx context.Context, msg string, fields ...Field) {
	GetGlobalLogger().Debug(ctx, msg, fields...)
}

func Info(ctx context.Context, msg string, fields ...Field) {
	GetGlobalLogger().Info(ctx, msg, fields...)
}

func Warn(ctx context.Context, msg string, fields ...Field) {
	GetGlobalLogger().Warn(ctx, msg, fields...)
}

func Error(ctx context.Context, msg string, fields ...Field) {
	GetGlobalLogger().Error(ctx, msg, fields...)
}

func DebugEnabled(_ context.Context) bool {
	return GetGlobalLogger().DebugEnabled()
}

func Fatalf(ctx context.Context, format string, args ...any) {
	GetGlobalLogger().Error(ctx, fmt.Sprintf(format, args...))
	_ = GetGlobalLogger().Sync()

	os.Exit(1)
}
