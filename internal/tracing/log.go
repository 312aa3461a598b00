package tracing

import (
	"context"

	"github.com/looplj/quotahub/internal/contexts"
	"github.com/looplj/quotahub/internal/log"
)

func SetupLogger(logger *log.Logger) {
	logger.AddHook(log.HookFunc(TraceFieldsHooks))
}

// TraceFieldsHooks adds the request id, operation and checker id found in ctx to log entries.
func TraceFieldsHooks(ctx context.Context, msg string, fields ...log.Field) []log.Field {
	if ctx == nil {
		return fields
	}

	if requestID, ok := GetRequestID(ctx); ok {
		fields = append(fields, log.String("request_id", requestID))
	}

	if operationName, ok := GetOperationName(ctx); ok {
		fields = append(fields, log.String("operation_name", operationName))
	}

	if checkerID, ok := contexts.GetCheckerID(ctx); ok {
		fields = append(fields, log.String("checker_id", checkerID))
	}

	return fields
}
