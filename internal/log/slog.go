package log

import (
	"context"
	"log/slog"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// AsSlog adapts the logger for libraries that only accept a *slog.Logger.
func (l *Logger) AsSlog() *slog.Logger {
	return slog.New(&slogHandler{logger: l})
}

type slogHandler struct {
	logger *Logger
	fields []Field
	group  string
}

func (h *slogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.logger.level.Enabled(zapLevel(level))
}

func (h *slogHandler) Handle(ctx context.Context, rec slog.Record) error {
	fields := make([]Field, 0, len(h.fields)+rec.NumAttrs())
	fields = append(fields, h.fields...)

	rec.Attrs(func(attr slog.Attr) bool {
		fields = append(fields, h.field(attr))
		return true
	})

	h.logger.log(ctx, zapLevel(rec.Level), rec.Message, fields)

	return nil
}

func (h *slogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &slogHandler{logger: h.logger, group: h.group}
	next.fields = append(next.fields, h.fields...)

	for _, attr := range attrs {
		next.fields = append(next.fields, h.field(attr))
	}

	return next
}

func (h *slogHandler) WithGroup(name string) slog.Handler {
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}

	return &slogHandler{logger: h.logger, fields: h.fields, group: group}
}

func (h *slogHandler) field(attr slog.Attr) Field {
	key := attr.Key
	if h.group != "" {
		key = h.group + "." + key
	}

	return zap.Any(key, attr.Value.Resolve().Any())
}

func zapLevel(level slog.Level) zapcore.Level {
	switch {
	case level >= slog.LevelError:
		return zapcore.ErrorLevel
	case level >= slog.LevelWarn:
		return zapcore.WarnLevel
	case level >= slog.LevelInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}
