package extension

import (
	"context"
	"slices"
	"sync"

	apperrors "github.com/kbukum/extkit/errors"
	"github.com/kbukum/extkit/logger"
	"github.com/kbukum/extkit/validation"
)

// preloadFunc constructs a preloaded extension right after registration.
type preloadFunc func(ctx context.Context, extension string) error

// Registry is the catalog of registered extensions.
type Registry struct {
	mu           sync.RWMutex
	types        *TypeRegistry
	reader       MetadataReader
	log          Logger
	preload      preloadFunc
	extensions   map[string]*Record
	order        []string
	byPoint      map[string][]string
	byCapability map[string][]string
}

func newRegistry(types *TypeRegistry, reader MetadataReader, log Logger, preload preloadFunc) *Registry {
	return &Registry{
		types:        types,
		reader:       reader,
		log:          log,
		preload:      preload,
		extensions:   make(map[string]*Record),
		byPoint:      make(map[string][]string),
		byCapability: make(map[string][]string),
	}
}

// Register validates extension against point and adds it to the catalog.
// Extensions that are preloaded are constructed before Register returns; if
// that fails the registration is undone and the error returned.
func (r *Registry) Register(ctx context.Context, point, extension string) error {
	rec, err := r.add(point, extension)
	if err != nil {
		return err
	}

	if rec.Preloaded() && r.preload != nil {
		if err := r.preload(ctx, extension); err != nil {
			r.remove(rec)
			r.log.Error("Preloading extension failed, registration rolled back", logger.Fields(
				logger.FieldExtension, extension,
				logger.FieldPoint, point,
				logger.FieldError, err.Error(),
			))
			return err
		}
	}

	r.log.Debug("Registered extension", logger.Fields(
		logger.FieldExtension, extension,
		logger.FieldPoint, point,
		"preloaded", rec.Preloaded(),
	))
	return nil
}

// RegisterDiscovered resolves the point of extension from its capabilities
// or annotations and registers it there.
func (r *Registry) RegisterDiscovered(ctx context.Context, extension string) error {
	policy, err := r.types.ByExtension(extension)
	if err != nil {
		return r.fail("No extension type matches extension", err, "", extension)
	}
	return r.Register(ctx, policy.Key, extension)
}

func (r *Registry) add(point, extension string) (*Record, error) {
	policy, err := r.types.Get(point)
	if err != nil {
		return nil, r.fail("Extension type is not registered", err, point, extension)
	}
	if !r.reader.ExtensionDefined(extension) {
		return nil, r.fail("Extension does not exist", extensionClassMissing(extension), point, extension)
	}
	if policy.HasRequiredCapability() && !r.reader.Implements(extension, policy.RequiredCapability) {
		return nil, r.fail("Extension does not implement the required capability",
			extensionInheritance(extension, point, policy.RequiredCapability), point, extension)
	}
	meta, ok := r.reader.ExtensionMetadata(extension, point)
	if !ok {
		return nil, r.fail("Extension has no metadata for its type",
			extensionAttributeMissing(extension, point), point, extension)
	}
	if existing, ok := r.Get(extension); ok {
		return nil, r.fail("Extension already registered",
			duplicateExtension(extension, existing.PointKey()), point, extension)
	}
	if err := validation.Validate(meta); err != nil {
		appErr := apperrors.Wrap(err).WithDetails(map[string]any{
			DetailExtension: extension,
			DetailPoint:     point,
		})
		return nil, r.fail("Extension metadata is invalid", appErr, point, extension)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-checked under the write lock.
	if existing, ok := r.extensions[extension]; ok {
		return nil, r.fail("Extension already registered",
			duplicateExtension(extension, existing.PointKey()), point, extension)
	}

	rec := newRecord(extension, policy, meta, r.reader.Capabilities(extension))
	r.extensions[extension] = rec
	r.order = append(r.order, extension)
	r.byPoint[point] = append(r.byPoint[point], extension)
	if policy.HasRequiredCapability() {
		r.byCapability[policy.RequiredCapability] = append(r.byCapability[policy.RequiredCapability], extension)
	}
	return rec, nil
}

func (r *Registry) remove(rec *Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := rec.Key()
	delete(r.extensions, key)
	r.order = deleteKey(r.order, key)
	r.byPoint[rec.PointKey()] = deleteKey(r.byPoint[rec.PointKey()], key)
	if len(r.byPoint[rec.PointKey()]) == 0 {
		delete(r.byPoint, rec.PointKey())
	}
	if c := rec.RequiredCapability(); c != "" {
		r.byCapability[c] = deleteKey(r.byCapability[c], key)
		if len(r.byCapability[c]) == 0 {
			delete(r.byCapability, c)
		}
	}
}

func deleteKey(keys []string, key string) []string {
	return slices.DeleteFunc(keys, func(k string) bool { return k == key })
}

func (r *Registry) fail(msg string, err error, point, extension string) error {
	r.log.Error(msg, logger.Fields(
		logger.FieldExtension, extension,
		logger.FieldPoint, point,
		logger.FieldError, err.Error(),
	))
	return err
}

// Has reports whether extension is registered.
func (r *Registry) Has(extension string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.extensions[extension]
	return ok
}

// HasCapability reports whether any extension is registered under capability.
func (r *Registry) HasCapability(capability string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byCapability[capability]) > 0
}

// HasType reports whether any extension is registered against point.
func (r *Registry) HasType(point string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byPoint[point]) > 0
}

// Get returns the record of a registered extension.
func (r *Registry) Get(extension string) (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.extensions[extension]
	return rec, ok
}

// OfCapability returns the extensions registered under capability, in
// registration order.
func (r *Registry) OfCapability(capability string) []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.records(r.byCapability[capability])
}

// OfType returns the extensions registered against point, in registration
// order.
func (r *Registry) OfType(point string) []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.records(r.byPoint[point])
}

// All returns every registered extension in registration order.
func (r *Registry) All() []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.records(r.order)
}

func (r *Registry) records(keys []string) []*Record {
	out := make([]*Record, 0, len(keys))
	for _, k := range keys {
		out = append(out, r.extensions[k])
	}
	return out
}

// InstantiationParameters returns the parameters Get passes to the
// instantiator. Non-singleton and unknown extensions get an empty map.
func (r *Registry) InstantiationParameters(extension string) map[string]any {
	rec, ok := r.Get(extension)
	if !ok {
		return map[string]any{}
	}
	return rec.SingletonParameters()
}

// Keys returns the registered extension keys in registration order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Len returns the number of registered extensions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
