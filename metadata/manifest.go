package metadata

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/viper"

	"github.com/kbukum/extkit/extension"
	"github.com/kbukum/extkit/validation"
)

// Manifest is the declarative form of a Table plus the registration plan.
//
//	capabilities:
//	  - key: payment.Gateway
//	points:
//	  - key: payment.gateway
//	    singleton: true
//	    capability: payment.Gateway
//	extensions:
//	  - key: acme.stripe
//	    capabilities: [payment.Gateway]
//	    metadata:
//	      - point: payment.gateway
//	        name: Stripe
//	        version: "2.0"
//
// Keys are matched case-insensitively by the loader, so parameter names in
// singleton_parameters arrive lower-cased.
type Manifest struct {
	Capabilities []CapabilityEntry `yaml:"capabilities" mapstructure:"capabilities" validate:"dive"`
	Points       []PointEntry      `yaml:"points" mapstructure:"points" validate:"dive"`
	Extensions   []ExtensionEntry  `yaml:"extensions" mapstructure:"extensions" validate:"dive"`
}

// CapabilityEntry declares a tag-only capability.
type CapabilityEntry struct {
	Key         string `yaml:"key" mapstructure:"key" validate:"required,key"`
	Description string `yaml:"description" mapstructure:"description"`
}

// PointEntry declares an extension point.
type PointEntry struct {
	Key             string `yaml:"key" mapstructure:"key" validate:"required,key"`
	Singleton       bool   `yaml:"singleton" mapstructure:"singleton"`
	AllowPreloading bool   `yaml:"allow_preloading" mapstructure:"allow_preloading"`
	Capability      string `yaml:"capability" mapstructure:"capability" validate:"omitempty,key"`
}

// ExtensionEntry declares an implementation and how to register it.
type ExtensionEntry struct {
	Key          string          `yaml:"key" mapstructure:"key" validate:"required,key"`
	Point        string          `yaml:"point" mapstructure:"point" validate:"omitempty,key"`
	Capabilities []string        `yaml:"capabilities" mapstructure:"capabilities" validate:"dive,required,key"`
	Metadata     []MetadataEntry `yaml:"metadata" mapstructure:"metadata" validate:"dive"`
}

// MetadataEntry is an annotation in manifest form.
type MetadataEntry struct {
	Point              string `yaml:"point" mapstructure:"point" validate:"required,key"`
	extension.Metadata `yaml:",inline" mapstructure:",squash"`
}

// LoadManifest reads a manifest file. The format follows the extension
// (.yml, .yaml, .json, .toml).
func LoadManifest(path string) (*Manifest, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	return decode(v)
}

// ParseManifest reads a manifest in the given format ("yaml", "json", ...).
func ParseManifest(r io.Reader, format string) (*Manifest, error) {
	v := viper.New()
	v.SetConfigType(format)
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Manifest, error) {
	var m Manifest
	if err := v.Unmarshal(&m); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks field formats and key uniqueness.
func (m *Manifest) Validate() error {
	if err := validation.Validate(m); err != nil {
		return err
	}

	v := validation.New()
	caps := make([]string, 0, len(m.Capabilities))
	for _, c := range m.Capabilities {
		caps = append(caps, c.Key)
	}
	points := make([]string, 0, len(m.Points))
	for _, p := range m.Points {
		points = append(points, p.Key)
	}
	exts := make([]string, 0, len(m.Extensions))
	for _, e := range m.Extensions {
		exts = append(exts, e.Key)
	}
	v.Unique("capabilities", caps).Unique("points", points).Unique("extensions", exts)
	return v.Validate()
}

// Apply defines everything in the manifest on t. Capabilities t already
// knows, for example ones backed by Go interfaces, are left as they are.
// Manifest extensions carry no prototype, so they never satisfy an
// interface-backed capability.
func (m *Manifest) Apply(t *Table) error {
	for _, c := range m.Capabilities {
		if t.CapabilityDefined(c.Key) {
			continue
		}
		if err := t.DefineCapability(c.Key, nil); err != nil {
			return err
		}
	}
	for _, p := range m.Points {
		spec := PointSpec{Singleton: p.Singleton, AllowPreloading: p.AllowPreloading, Capability: p.Capability}
		if err := t.DefinePoint(p.Key, spec); err != nil {
			return err
		}
	}
	for _, e := range m.Extensions {
		spec := ExtensionSpec{Capabilities: e.Capabilities}
		for _, md := range e.Metadata {
			spec.Annotations = append(spec.Annotations, Annotation{Point: md.Point, Metadata: md.Metadata})
		}
		if err := t.DefineExtension(e.Key, spec); err != nil {
			return err
		}
	}
	return nil
}

// Table builds a new Table from the manifest.
func (m *Manifest) Table() (*Table, error) {
	t := NewTable()
	if err := m.Apply(t); err != nil {
		return nil, err
	}
	return t, nil
}

// Registration is one step of the extension phase. An empty Point means the
// point is discovered from the implementation's capabilities and annotations.
type Registration struct {
	Point     string
	Extension string
}

// Plan is the two-phase registration order: every point, then every
// extension, both in manifest order.
type Plan struct {
	Points     []string
	Extensions []Registration
}

// Plan returns the registration plan.
func (m *Manifest) Plan() Plan {
	plan := Plan{
		Points:     make([]string, 0, len(m.Points)),
		Extensions: make([]Registration, 0, len(m.Extensions)),
	}
	for _, p := range m.Points {
		plan.Points = append(plan.Points, p.Key)
	}
	for _, e := range m.Extensions {
		plan.Extensions = append(plan.Extensions, Registration{Point: e.Point, Extension: e.Key})
	}
	return plan
}

// Register runs the plan against store: points first, then extensions.
// It stops at the first failure.
func (p Plan) Register(ctx context.Context, store *extension.Store) error {
	for _, point := range p.Points {
		if err := store.Types().Register(point); err != nil {
			return err
		}
	}
	for _, r := range p.Extensions {
		var err error
		if r.Point == "" {
			err = store.Registry().RegisterDiscovered(ctx, r.Extension)
		} else {
			err = store.Registry().Register(ctx, r.Point, r.Extension)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
