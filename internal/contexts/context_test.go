package contexts

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestID(t *testing.T) {
	ctx := t.Context()

	_, ok := GetRequestID(ctx)
	assert.False(t, ok)

	ctx = WithRequestID(ctx, "req-1")
	id, ok := GetRequestID(ctx)
	require.True(t, ok)
	assert.Equal(t, "req-1", id)

	// Values share one container.
	same := WithOperationName(ctx, "GET /health")
	assert.Equal(t, ctx, same)

	name, ok := GetOperationName(ctx)
	require.True(t, ok)
	assert.Equal(t, "GET /health", name)
}

func TestCheckerID(t *testing.T) {
	ctx := WithCheckerID(context.Background(), "codex-main")

	id, ok := GetCheckerID(ctx)
	require.True(t, ok)
	assert.Equal(t, "codex-main", id)

	_, ok = GetCheckerID(context.Background())
	assert.False(t, ok)
}

func TestErrors(t *testing.T) {
	AddError(context.Background(), errors.New("dropped"))
	assert.Empty(t, GetErrors(context.Background()))

	ctx := WithRequestID(context.Background(), "req-2")

	var wg sync.WaitGroup
	for range 10 {
		wg.Go(func() {
			AddError(ctx, errors.New("boom"))
		})
	}

	wg.Wait()

	AddError(ctx, nil)
	assert.Len(t, GetErrors(ctx), 10)
}
