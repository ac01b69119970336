package types

import "context"

// execCtxKey is used for storing the ExecContext in context.Context.
type execCtxKey struct{}

// WithExecContext stores an ExecContext in the context.
func WithExecContext(ctx context.Context, ec *ExecContext) context.Context {
	if ec == nil {
		return ctx
	}
	return context.WithValue(ctx, execCtxKey{}, ec)
}

// ExecContextFrom extracts the ExecContext from context.
func ExecContextFrom(ctx context.Context) (*ExecContext, bool) {
	ec, ok := ctx.Value(execCtxKey{}).(*ExecContext)
	return ec, ok && ec != nil
}

// EnsureExecContext returns the ExecContext stored in ctx, creating and
// attaching a fresh root context when none is present.
func EnsureExecContext(ctx context.Context) (context.Context, *ExecContext) {
	if ec, ok := ExecContextFrom(ctx); ok {
		return ctx, ec
	}
	ec := NewExecContext()
	return WithExecContext(ctx, ec), ec
}
