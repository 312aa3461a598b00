package tracing

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/looplj/quotahub/internal/contexts"
)

type Config struct {
	RequestHeader string `conf:"request_header" yaml:"request_header" json:"request_header"`
}

// GenerateRequestID generates a request id, formatted as qh-{{uuid}}.
func GenerateRequestID() string {
	return fmt.Sprintf("qh-%s", uuid.New().String())
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return contexts.WithRequestID(ctx, requestID)
}

func GetRequestID(ctx context.Context) (string, bool) {
	return contexts.GetRequestID(ctx)
}

func WithOperationName(ctx context.Context, name string) context.Context {
	return contexts.WithOperationName(ctx, name)
}

func GetOperationName(ctx context.Context) (string, bool) {
	return contexts.GetOperationName(ctx)
}
