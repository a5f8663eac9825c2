package extension

import (
	"context"

	"github.com/kbukum/extkit/event"
)

// PointReader answers questions about extension point definitions.
type PointReader interface {
	// PointDefined reports whether key resolves to a point definition.
	PointDefined(key string) bool
	// ExtendsBase reports whether the definition has the base point shape.
	ExtendsBase(key string) bool
	// PointPolicy returns the policy attached to the definition.
	PointPolicy(key string) (Policy, bool)
	// CapabilityDefined reports whether a capability is known.
	CapabilityDefined(capability string) bool
}

// ExtensionReader answers questions about implementation definitions.
type ExtensionReader interface {
	// ExtensionDefined reports whether key resolves to an implementation.
	ExtensionDefined(key string) bool
	// Implements reports whether the implementation provides capability.
	Implements(key, capability string) bool
	// Capabilities lists the implementation's capabilities in declaration order.
	Capabilities(key string) []string
	// Annotations lists the points the implementation carries metadata for,
	// in declaration order.
	Annotations(key string) []string
	// ExtensionMetadata returns the metadata block declared for point.
	ExtensionMetadata(key, point string) (Metadata, bool)
}

// MetadataReader is the metadata discovery collaborator.
type MetadataReader interface {
	PointReader
	ExtensionReader
}

// Instantiator constructs an implementation from its key and parameters.
type Instantiator interface {
	Instantiate(ctx context.Context, key string, params map[string]any) (any, error)
}

// InstantiatorFunc adapts a function to Instantiator.
type InstantiatorFunc func(ctx context.Context, key string, params map[string]any) (any, error)

func (f InstantiatorFunc) Instantiate(ctx context.Context, key string, params map[string]any) (any, error) {
	return f(ctx, key, params)
}

// Logger is the logging collaborator. *logger.Logger satisfies it.
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
}

// Notifier receives lifecycle events. *event.Dispatcher satisfies it.
type Notifier interface {
	Dispatch(ctx context.Context, e event.Event) error
}

type recordContextKey struct{}

// ContextWithRecord returns a context carrying the record being instantiated.
func ContextWithRecord(ctx context.Context, rec *Record) context.Context {
	return context.WithValue(ctx, recordContextKey{}, rec)
}

// RecordFromContext returns the record being instantiated, if any.
// Instantiators and middleware can use it to learn the owning point.
func RecordFromContext(ctx context.Context) (*Record, bool) {
	rec, ok := ctx.Value(recordContextKey{}).(*Record)
	return rec, ok && rec != nil
}
