// Package metadata provides an explicit-registration implementation of
// extension.MetadataReader.
//
// Capabilities, points and implementations are declared on a Table, either
// from Go code or from a YAML manifest:
//
//	t := metadata.NewTable()
//	_ = t.DefineCapability("payment.Gateway", metadata.Capability[Gateway]())
//	_ = t.DefinePoint("payment.gateway", metadata.PointSpec{Singleton: true, Capability: "payment.Gateway"})
//	_ = t.DefineExtension("acme.stripe", metadata.ExtensionSpec{
//		Prototype:   (*Stripe)(nil),
//		Annotations: []metadata.Annotation{{Point: "payment.gateway", Metadata: extension.Metadata{Name: "Stripe"}}},
//	})
//
// An implementation's capability set is its declared tags plus every
// interface-backed capability its prototype implements. The set is computed
// once, when the implementation is defined, so define capabilities first.
package metadata
