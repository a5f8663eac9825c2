package extension

import (
	"slices"
	"sync"

	"github.com/kbukum/extkit/logger"
)

// TypeRegistry is the catalog of extension points.
type TypeRegistry struct {
	mu           sync.RWMutex
	reader       MetadataReader
	log          Logger
	points       map[string]Policy
	capabilities map[string]string // capability -> point
}

func newTypeRegistry(reader MetadataReader, log Logger) *TypeRegistry {
	return &TypeRegistry{
		reader:       reader,
		log:          log,
		points:       make(map[string]Policy),
		capabilities: make(map[string]string),
	}
}

// Register reads the policy declared for point and adds it to the catalog.
func (r *TypeRegistry) Register(point string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.points[point]; ok {
		return r.fail("Extension type already registered", duplicateType(point), point)
	}
	if !r.reader.PointDefined(point) {
		return r.fail("Extension type does not exist", typeClassMissing(point), point)
	}
	if !r.reader.ExtendsBase(point) {
		return r.fail("Extension type does not extend the base point", typeInheritance(point), point)
	}
	declared, ok := r.reader.PointPolicy(point)
	if !ok {
		return r.fail("Extension type has no policy attached", typeAttributeMissing(point), point)
	}
	policy := NewPolicy(point, declared.Singleton, declared.PreloadAllowed, declared.RequiredCapability)

	if policy.HasRequiredCapability() {
		capability := policy.RequiredCapability
		if !r.reader.CapabilityDefined(capability) {
			return r.fail("Extension type requires an undefined capability", capabilityMissing(point, capability), point)
		}
		if existing, ok := r.capabilities[capability]; ok {
			return r.fail("Capability already bound to another extension type",
				duplicateTypeInterface(capability, point, existing), point)
		}
		r.capabilities[capability] = point
	}
	r.points[point] = policy

	r.log.Debug("Registered extension type", logger.Fields(
		logger.FieldPoint, point,
		"singleton", policy.Singleton,
		"preload_allowed", policy.PreloadAllowed,
		logger.FieldCapability, policy.RequiredCapability,
	))
	return nil
}

func (r *TypeRegistry) fail(msg string, err error, point string) error {
	r.log.Error(msg, logger.Fields(logger.FieldPoint, point, logger.FieldError, err.Error()))
	return err
}

// Has reports whether point is registered.
func (r *TypeRegistry) Has(point string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.points[point]
	return ok
}

// Get returns the policy of a registered point.
func (r *TypeRegistry) Get(point string) (Policy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.points[point]
	if !ok {
		return Policy{}, typeAttributeNotRegistered(point)
	}
	return p, nil
}

// HasCapability reports whether a registered point requires capability.
func (r *TypeRegistry) HasCapability(capability string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.capabilities[capability]
	return ok
}

// ByCapability returns the policy of the point bound to capability.
func (r *TypeRegistry) ByCapability(capability string) (Policy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	point, ok := r.capabilities[capability]
	if !ok {
		return Policy{}, typeInterfaceNotRegistered(capability)
	}
	return r.points[point], nil
}

// ByExtension resolves the point an implementation belongs to. A capability
// bound to a registered point wins over a direct point annotation.
func (r *TypeRegistry) ByExtension(extension string) (Policy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, capability := range r.reader.Capabilities(extension) {
		if point, ok := r.capabilities[capability]; ok {
			return r.points[point], nil
		}
	}
	for _, annotation := range r.reader.Annotations(extension) {
		if p, ok := r.points[annotation]; ok {
			return p, nil
		}
	}
	return Policy{}, noMatchingExtensionType(extension)
}

// Keys returns the registered point keys, sorted.
func (r *TypeRegistry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.points))
	for k := range r.points {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Len returns the number of registered points.
func (r *TypeRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.points)
}
