// Package di provides a reflective constructor container that implements
// extension.Instantiator.
//
// Constructors are plain functions registered under an extension key. Their
// signature is checked when they are provided; accepted forms are
//
//	func() T
//	func() (T, error)
//	func(context.Context) T / (T, error)
//	func(map[string]any) T / (T, error)
//	func(context.Context, map[string]any) T / (T, error)
//
// The container never caches: the extension store decides whether an
// instance is shared.
//
//	c := di.NewContainer()
//	_ = c.Provide("acme.stripe", stripe.New)
//	store := extension.New(table, c)
package di
