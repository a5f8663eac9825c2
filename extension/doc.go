// Package extension implements an extension point registry and lifecycle
// manager.
//
// A host declares extension points (named slots such as "payment.gateway")
// with a Policy, registers concrete implementations against them and then
// retrieves instances through a Store. The Store enforces singleton and
// non-singleton access, checks that declared dependencies are registered,
// delegates construction to an Instantiator and announces every new
// instance with an InstantiatedEvent.
//
// Metadata discovery is injected through MetadataReader; the metadata
// package provides a table-driven implementation.
//
// Registration is expected to happen from one goroutine, points first and
// extensions second. After that every read path is safe for concurrent use
// and concurrent Get calls for one singleton construct it at most once.
package extension
