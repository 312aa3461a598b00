package contexts

import (
	"context"
)

// WithRequestID stores the request id in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	container := getContainer(ctx)
	container.mu.Lock()
	container.RequestID = &requestID
	container.mu.Unlock()

	return withContainer(ctx, container)
}

func GetRequestID(ctx context.Context) (string, bool) {
	container := getContainer(ctx)
	container.mu.RLock()
	defer container.mu.RUnlock()

	if container.RequestID != nil {
		return *container.RequestID, true
	}

	return "", false
}

// WithOperationName stores the route being served, e.g. "GET /admin/quota/checkers".
func WithOperationName(ctx context.Context, name string) context.Context {
	container := getContainer(ctx)
	container.mu.Lock()
	container.OperationName = &name
	container.mu.Unlock()

	return withContainer(ctx, container)
}

func GetOperationName(ctx context.Context) (string, bool) {
	container := getContainer(ctx)
	container.mu.RLock()
	defer container.mu.RUnlock()

	if container.OperationName != nil {
		return *container.OperationName, true
	}

	return "", false
}

// WithCheckerID stores the quota checker a request or poll is about.
func WithCheckerID(ctx context.Context, checkerID string) context.Context {
	container := getContainer(ctx)
	container.mu.Lock()
	container.CheckerID = &checkerID
	container.mu.Unlock()

	return withContainer(ctx, container)
}

func GetCheckerID(ctx context.Context) (string, bool) {
	container := getContainer(ctx)
	container.mu.RLock()
	defer container.mu.RUnlock()

	if container.CheckerID != nil {
		return *container.CheckerID, true
	}

	return "", false
}

// AddError records an error for the access log. It is a no-op for contexts without a container.
func AddError(ctx context.Context, err error) {
	if err == nil {
		return
	}

	container, ok := ctx.Value(containerContextKey).(*contextContainer)
	if !ok {
		return
	}

	container.mu.Lock()
	defer container.mu.Unlock()

	container.Errors = append(container.Errors, err)
}

func GetErrors(ctx context.Context) []error {
	container := getContainer(ctx)
	container.mu.RLock()
	defer container.mu.RUnlock()

	return append([]error(nil), container.Errors...)
}
