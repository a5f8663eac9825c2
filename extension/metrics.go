package extension

import (
	"context"
	"time"

	apperrors "github.com/kbukum/extkit/errors"
	"github.com/kbukum/extkit/observability"
)

// WithMetrics returns a Middleware that records instantiation count,
// duration and failures on the given instruments.
func WithMetrics(metrics *observability.Metrics) Middleware {
	return func(inner Instantiator) Instantiator {
		return InstantiatorFunc(func(ctx context.Context, key string, params map[string]any) (any, error) {
			start := time.Now()
			instance, err := inner.Instantiate(ctx, key, params)
			duration := time.Since(start)

			point := ""
			if rec, ok := RecordFromContext(ctx); ok {
				point = rec.PointKey()
			}
			status := "ok"
			if err != nil {
				status = "error"
				metrics.RecordInstantiationError(ctx, key, string(apperrors.CodeOf(err)))
			}
			metrics.RecordInstantiation(ctx, key, point, status, duration)
			return instance, err
		})
	}
}
