package extension

// Middleware wraps an Instantiator with cross-cutting behaviour.
type Middleware func(Instantiator) Instantiator

// Chain composes middlewares. The first one is outermost: it runs first on
// the way in and last on the way out.
//
// Chain(a, b, c)(inst) is equivalent to a(b(c(inst))).
func Chain(middlewares ...Middleware) Middleware {
	return func(inner Instantiator) Instantiator {
		for i := len(middlewares) - 1; i >= 0; i-- {
			inner = middlewares[i](inner)
		}
		return inner
	}
}
