package feeds

import (
	"github.com/mub05-dev/monitor-electoral/internal/ports"
)

// Middleware wraps a ResultSource to add cross-cutting functionality.
// This pattern allows composition of features like rate limiting, circuit
// breaking, and metrics collection without modifying the sources.
type Middleware func(ports.ResultSource) ports.ResultSource

// Chain wraps src with the given middleware. The first middleware is the
// outermost, so Chain(src, a, b) calls a, then b, then src.
func Chain(src ports.ResultSource, middleware ...Middleware) ports.ResultSource {
	for i := len(middleware) - 1; i >= 0; i-- {
		src = middleware[i](src)
	}
	return src
}

// wrapped forwards Name to the innermost source so a chain keeps the name
// it is registered under.
type wrapped struct {
	next ports.ResultSource
}

func (w wrapped) Name() string { return w.next.Name() }
