package extension

import "maps"

// DefaultVersion is the version recorded for extensions that declare none.
const DefaultVersion = "1.0"

// Policy is the declared behaviour of an extension point.
type Policy struct {
	// Key identifies the point.
	Key string `json:"key"`
	// Singleton points hand out one shared instance per extension.
	Singleton bool `json:"singleton"`
	// PreloadAllowed lets extensions ask to be constructed at registration.
	// It is only ever true for singleton points.
	PreloadAllowed bool `json:"preload_allowed"`
	// RequiredCapability, if set, must be implemented by every extension.
	RequiredCapability string `json:"required_capability,omitempty"`
}

// NewPolicy creates a Policy. Preloading is only allowed for singletons.
func NewPolicy(key string, singleton, allowPreloading bool, capability string) Policy {
	return Policy{
		Key:                key,
		Singleton:          singleton,
		PreloadAllowed:     singleton && allowPreloading,
		RequiredCapability: capability,
	}
}

// HasRequiredCapability reports whether the point constrains its extensions.
func (p Policy) HasRequiredCapability() bool {
	return p.RequiredCapability != ""
}

// Metadata is the point-specific block an implementation declares for
// every point it plugs into.
type Metadata struct {
	Name                string         `json:"name" yaml:"name" mapstructure:"name"`
	Version             string         `json:"version" yaml:"version" mapstructure:"version" validate:"omitempty,semver"`
	Description         string         `json:"description,omitempty" yaml:"description" mapstructure:"description"`
	Dependencies        []string       `json:"dependencies,omitempty" yaml:"dependencies" mapstructure:"dependencies" validate:"dive,required,key"`
	Preloaded           bool           `json:"preloaded" yaml:"preloaded" mapstructure:"preloaded"`
	SingletonParameters map[string]any `json:"singleton_parameters,omitempty" yaml:"singleton_parameters" mapstructure:"singleton_parameters"`
}

// clone returns a deep enough copy that callers cannot mutate registry state.
func (m Metadata) clone() Metadata {
	m.Dependencies = append([]string(nil), m.Dependencies...)
	m.SingletonParameters = maps.Clone(m.SingletonParameters)
	return m
}

// Record is a registered extension. Records are immutable; every accessor
// returns a copy.
type Record struct {
	key          string
	policy       Policy
	meta         Metadata
	capabilities []string
}

func newRecord(key string, policy Policy, meta Metadata, capabilities []string) *Record {
	meta = meta.clone()
	if meta.Version == "" {
		meta.Version = DefaultVersion
	}
	return &Record{
		key:          key,
		policy:       policy,
		meta:         meta,
		capabilities: append([]string(nil), capabilities...),
	}
}

// Key returns the implementation key.
func (r *Record) Key() string { return r.key }

// PointKey returns the key of the owning extension point.
func (r *Record) PointKey() string { return r.policy.Key }

// Policy returns the owning point's policy.
func (r *Record) Policy() Policy { return r.policy }

func (r *Record) Name() string        { return r.meta.Name }
func (r *Record) Version() string     { return r.meta.Version }
func (r *Record) Description() string { return r.meta.Description }

// Dependencies returns the declared dependency keys in declaration order.
func (r *Record) Dependencies() []string {
	return append([]string(nil), r.meta.Dependencies...)
}

// Singleton reports whether the owning point is a singleton point.
func (r *Record) Singleton() bool { return r.policy.Singleton }

// Preloaded is true only when the point allows preloading and the
// extension asks for it.
func (r *Record) Preloaded() bool {
	return r.policy.PreloadAllowed && r.meta.Preloaded
}

// SingletonParameters returns the construction parameters used by Get.
// It is empty for non-singleton points.
func (r *Record) SingletonParameters() map[string]any {
	if !r.policy.Singleton || len(r.meta.SingletonParameters) == 0 {
		return map[string]any{}
	}
	return maps.Clone(r.meta.SingletonParameters)
}

// RequiredCapability returns the owning point's required capability, if any.
func (r *Record) RequiredCapability() string { return r.policy.RequiredCapability }

// Capabilities returns every capability the implementation provides.
func (r *Record) Capabilities() []string {
	return append([]string(nil), r.capabilities...)
}

// Metadata returns a copy of the declared metadata.
func (r *Record) Metadata() Metadata { return r.meta.clone() }
