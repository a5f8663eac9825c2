package metadata

import (
	"fmt"
	"reflect"
	"slices"
	"sync"

	apperrors "github.com/kbukum/extkit/errors"
	"github.com/kbukum/extkit/extension"
	"github.com/kbukum/extkit/validation"
)

// PointSpec declares an extension point.
type PointSpec struct {
	Singleton       bool
	AllowPreloading bool
	// Capability every implementation must provide, if set.
	Capability string
	// Standalone points do not have the base point shape and are rejected
	// by the type registry.
	Standalone bool
}

// Annotation attaches point-specific metadata to an implementation.
type Annotation struct {
	Point    string
	Metadata extension.Metadata
}

// ExtensionSpec declares an implementation.
type ExtensionSpec struct {
	// Prototype is a value of the implementation type, typically a typed nil
	// pointer. It is only inspected for interface-backed capabilities.
	Prototype any
	// Capabilities are declared capability tags. A tag naming an
	// interface-backed capability only counts if Prototype implements it.
	Capabilities []string
	// Annotations in declaration order.
	Annotations []Annotation
}

type extensionEntry struct {
	prototype   reflect.Type
	declared    []string
	annotations []string
	meta         map[string]extension.Metadata
}

// Table is a MetadataReader backed by explicit definitions.
// It is safe for concurrent use.
type Table struct {
	mu           sync.RWMutex
	capabilities map[string]reflect.Type
	capOrder     []string
	points       map[string]PointSpec
	extensions   map[string]*extensionEntry
}

var _ extension.MetadataReader = (*Table)(nil)

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		capabilities: make(map[string]reflect.Type),
		points:       make(map[string]PointSpec),
		extensions:   make(map[string]*extensionEntry),
	}
}

// Capability returns the interface type I for DefineCapability.
func Capability[I any]() reflect.Type {
	return reflect.TypeFor[I]()
}

// DefineCapability declares a capability. iface may be nil for a tag-only
// capability; otherwise it must be an interface type.
func (t *Table) DefineCapability(key string, iface reflect.Type) error {
	if err := validation.New().Required("capability", key).Key("capability", key).Validate(); err != nil {
		return err
	}
	if iface != nil && iface.Kind() != reflect.Interface {
		return apperrors.InvalidInput("capability", fmt.Sprintf("%s is not an interface type", iface))
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.capabilities[key]; ok {
		return apperrors.AlreadyExists("capability").WithDetail("key", key)
	}
	t.capabilities[key] = iface
	t.capOrder = append(t.capOrder, key)
	return nil
}

// DefinePoint declares an extension point.
func (t *Table) DefinePoint(key string, spec PointSpec) error {
	v := validation.New().Required("point", key).Key("point", key)
	v.Key("capability", spec.Capability)
	if err := v.Validate(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.points[key]; ok {
		return apperrors.AlreadyExists("point").WithDetail("key", key)
	}
	t.points[key] = spec
	return nil
}

// DefineExtension declares an implementation.
func (t *Table) DefineExtension(key string, spec ExtensionSpec) error {
	v := validation.New().Required("extension", key).Key("extension", key)
	points := make([]string, 0, len(spec.Annotations))
	for _, a := range spec.Annotations {
		v.Required("annotation.point", a.Point).Key("annotation.point", a.Point)
		points = append(points, a.Point)
	}
	v.Unique("annotation.point", points)
	v.Unique("capabilities", spec.Capabilities)
	if err := v.Validate(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.extensions[key]; ok {
		return apperrors.AlreadyExists("extension").WithDetail("key", key)
	}

	entry := &extensionEntry{
		declared:    slices.Clone(spec.Capabilities),
		annotations: points,
		meta:        make(map[string]extension.Metadata, len(spec.Annotations)),
	}
	if spec.Prototype != nil {
		entry.prototype = reflect.TypeOf(spec.Prototype)
	}
	for _, a := range spec.Annotations {
		entry.meta[a.Point] = a.Metadata
	}
	t.extensions[key] = entry
	return nil
}

// capabilitiesOf returns the declared tags the prototype satisfies followed
// by every other interface-backed capability it implements. It is evaluated
// against the current capability set, so definition order does not matter.
// The caller holds t.mu.
func (t *Table) capabilitiesOf(e *extensionEntry) []string {
	caps := make([]string, 0, len(e.declared))
	for _, key := range e.declared {
		if t.satisfies(e, key) {
			caps = append(caps, key)
		}
	}
	if e.prototype == nil {
		return caps
	}
	for _, key := range t.capOrder {
		if t.capabilities[key] == nil || slices.Contains(caps, key) {
			continue
		}
		if e.prototype.Implements(t.capabilities[key]) {
			caps = append(caps, key)
		}
	}
	return caps
}

// satisfies reports whether e provides capability. Tag-only capabilities
// need a declaration; interface-backed ones need a conforming prototype.
func (t *Table) satisfies(e *extensionEntry, capability string) bool {
	iface := t.capabilities[capability]
	if iface == nil {
		return slices.Contains(e.declared, capability)
	}
	return e.prototype != nil && e.prototype.Implements(iface)
}

func (t *Table) PointDefined(key string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.points[key]
	return ok
}

func (t *Table) ExtendsBase(key string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	spec, ok := t.points[key]
	return ok && !spec.Standalone
}

func (t *Table) PointPolicy(key string) (extension.Policy, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	spec, ok := t.points[key]
	if !ok {
		return extension.Policy{}, false
	}
	return extension.NewPolicy(key, spec.Singleton, spec.AllowPreloading, spec.Capability), true
}

func (t *Table) CapabilityDefined(capability string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.capabilities[capability]
	return ok
}

func (t *Table) ExtensionDefined(key string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.extensions[key]
	return ok
}

func (t *Table) Implements(key, capability string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.extensions[key]
	return ok && t.satisfies(e, capability)
}

func (t *Table) Capabilities(key string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if e, ok := t.extensions[key]; ok {
		return t.capabilitiesOf(e)
	}
	return nil
}

func (t *Table) Annotations(key string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if e, ok := t.extensions[key]; ok {
		return slices.Clone(e.annotations)
	}
	return nil
}

func (t *Table) ExtensionMetadata(key, point string) (extension.Metadata, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.extensions[key]
	if !ok {
		return extension.Metadata{}, false
	}
	m, ok := e.meta[point]
	return m, ok
}

// PointKeys returns the defined point keys, sorted.
func (t *Table) PointKeys() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	keys := make([]string, 0, len(t.points))
	for k := range t.points {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// ExtensionKeys returns the defined implementation keys, sorted.
func (t *Table) ExtensionKeys() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	keys := make([]string, 0, len(t.extensions))
	for k := range t.extensions {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
