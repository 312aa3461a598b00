package log

import "context"

// Hook enriches an entry with fields derived from the context.
type Hook interface {
	Apply(ctx context.Context, msg string, fields ...Field) []Field
}

type HookFunc func(ctx context.Context, msg string, fields ...Field) []Field

func (f HookFunc) Apply(ctx context.Context, msg string, fields ...Field) []Field {
	return f(ctx, msg, fields...)
}
