package extension

import (
	"context"
	"time"

	"github.com/kbukum/extkit/logger"
)

// WithLogging returns a Middleware that logs every instantiation with its
// duration and outcome.
func WithLogging(log Logger) Middleware {
	return func(inner Instantiator) Instantiator {
		return InstantiatorFunc(func(ctx context.Context, key string, params map[string]any) (any, error) {
			start := time.Now()
			instance, err := inner.Instantiate(ctx, key, params)

			fields := logger.DurationFields("instantiate", time.Since(start))
			fields[logger.FieldExtension] = key
			if rec, ok := RecordFromContext(ctx); ok {
				fields[logger.FieldPoint] = rec.PointKey()
			}
			if err != nil {
				fields[logger.FieldError] = err.Error()
				log.Error("extension instantiate failed", fields)
			} else {
				log.Debug("extension instantiate ok", fields)
			}
			return instance, err
		})
	}
}
