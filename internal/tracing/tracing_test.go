package tracing

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/looplj/quotahub/internal/contexts"
	"github.com/looplj/quotahub/internal/log"
)

func TestGenerateRequestID(t *testing.T) {
	id := GenerateRequestID()
	assert.True(t, strings.HasPrefix(id, "qh-"))
	assert.Len(t, id, len("qh-")+36)
	assert.NotEqual(t, id, GenerateRequestID())
}

func TestTraceFieldsHooks(t *testing.T) {
	fields := TraceFieldsHooks(context.Background(), "msg", log.String("k", "v"))
	assert.Len(t, fields, 1)

	ctx := WithRequestID(context.Background(), "qh-1")
	ctx = WithOperationName(ctx, "POST /admin/quota/checkers/:id/check")
	ctx = contexts.WithCheckerID(ctx, "c1")

	fields = TraceFieldsHooks(ctx, "msg")

	keys := make([]string, 0, len(fields))
	for _, f := range fields {
		keys = append(keys, f.Key)
	}

	assert.Equal(t, []string{"request_id", "operation_name", "checker_id"}, keys)
}
