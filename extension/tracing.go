package extension

import (
	"context"

	"github.com/kbukum/extkit/observability"
)

// WithTracing returns a Middleware that wraps every instantiation in an
// OpenTelemetry span named "{serviceName}.extension.instantiate".
func WithTracing(serviceName string) Middleware {
	return func(inner Instantiator) Instantiator {
		return InstantiatorFunc(func(ctx context.Context, key string, params map[string]any) (any, error) {
			desc := observability.InstantiationSpan{Service: serviceName, Extension: key}
			if rec, ok := RecordFromContext(ctx); ok {
				desc.Point = rec.PointKey()
				desc.Singleton = rec.Singleton()
			}
			ctx, span := desc.Start(ctx)
			instance, err := inner.Instantiate(ctx, key, params)
			observability.EndSpan(span, err)
			return instance, err
		})
	}
}
