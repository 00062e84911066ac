package history

import "context"

const (
	OriginCLI       = "cli"
	OriginAPI       = "api"
	OriginScheduler = "scheduler"
)

type originKey struct{}

// WithOrigin tags executions started under ctx with where they came from.
func WithOrigin(ctx context.Context, origin string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, originKey{}, origin)
}

// OriginFromContext returns the origin stored in ctx, if any.
func OriginFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	origin, _ := ctx.Value(originKey{}).(string)
	return origin
}
