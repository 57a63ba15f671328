package types

// Next advances the enclosing chain by one element.
type Next func() error

// Middleware is the single contract shared by leaf handlers, collaborators
// and routers. Handle may call next zero or more times; not calling it
// short-circuits the chain.
type Middleware interface {
	Handle(ctx *RequestCtx, next Next) error
}

type MiddlewareFunc func(ctx *RequestCtx, next Next) error

func (f MiddlewareFunc) Handle(ctx *RequestCtx, next Next) error {
	return f(ctx, next)
}

// HandlerFunc is a leaf that never continues the chain.
type HandlerFunc func(ctx *RequestCtx) error

func (f HandlerFunc) Handle(ctx *RequestCtx, _ Next) error {
	return f(ctx)
}
