package contexts

import (
	"context"
	"sync"
)

// ContextKey defines the context key type.
type ContextKey string

const containerContextKey ContextKey = "context_container"

// contextContainer holds the request scoped values.
type contextContainer struct {
	RequestID     *string
	OperationName *string
	CheckerID     *string
	Errors        []error
	mu            sync.RWMutex
}

func getContainer(ctx context.Context) *contextContainer {
	if container, ok := ctx.Value(containerContextKey).(*contextContainer); ok {
		return container
	}

	return &contextContainer{}
}

// withContainer stores the container in the context if it is not stored yet.
func withContainer(ctx context.Context, container *contextContainer) context.Context {
	if ctx.Value(containerContextKey) == nil {
		return context.WithValue(ctx, containerContextKey, container)
	}

	return ctx
}
