package router

import (
	"net/http"
	"strings"

	"github.com/valyala/fasthttp"

	"github.com/saiset-co/sai-router/types"
)

type Route struct {
	Method      string
	Pattern     string
	Middlewares []types.Middleware
}

// Router holds a base path, global middleware and a route table. It is a
// types.Middleware itself, so a parent can Use or Mount it.
type Router struct {
	basePath    string
	middlewares []types.Middleware
	routes      []*Route
}

func NewRouter() *Router {
	return &Router{
		middlewares: make([]types.Middleware, 0),
		routes:      make([]*Route, 0),
	}
}

func (r *Router) BasePath() string {
	return r.basePath
}

func (r *Router) Use(middlewares ...types.Middleware) *Router {
	for _, mw := range middlewares {
		if mw == nil {
			panic(types.ErrMiddlewareIsNil)
		}
		r.middlewares = append(r.middlewares, mw)
	}
	return r
}

func (r *Router) UseFunc(fn func(ctx *types.RequestCtx, next types.Next) error) *Router {
	return r.Use(types.MiddlewareFunc(fn))
}

func (r *Router) Map(method, pattern string, middlewares ...types.Middleware) *Router {
	for _, mw := range middlewares {
		if mw == nil {
			panic(types.Errorf(types.ErrMiddlewareIsNil, "route %s %s", method, pattern))
		}
	}

	r.routes = append(r.routes, &Route{
		Method:      strings.ToUpper(method),
		Pattern:     pattern,
		Middlewares: middlewares,
	})
	return r
}

func (r *Router) Get(pattern string, middlewares ...types.Middleware) *Router {
	return r.Map(http.MethodGet, pattern, middlewares...)
}

func (r *Router) Post(pattern string, middlewares ...types.Middleware) *Router {
	return r.Map(http.MethodPost, pattern, middlewares...)
}

func (r *Router) Put(pattern string, middlewares ...types.Middleware) *Router {
	return r.Map(http.MethodPut, pattern, middlewares...)
}

func (r *Router) Patch(pattern string, middlewares ...types.Middleware) *Router {
	return r.Map(http.MethodPatch, pattern, middlewares...)
}

func (r *Router) Delete(pattern string, middlewares ...types.Middleware) *Router {
	return r.Map(http.MethodDelete, pattern, middlewares...)
}

// Mount places child under path. The child's base path is fixed here, so
// routers nested deeper must be mounted after their parent.
func (r *Router) Mount(path string, child *Router) *Router {
	if child == nil {
		panic(types.Errorf(types.ErrRouterIsNil, "mount %s", path))
	}

	child.basePath = r.basePath + path
	return r.Use(child)
}

func (r *Router) EnableSimpleMatching() *Router {
	return r.Use(types.MiddlewareFunc(r.matchSimple))
}

func (r *Router) EnableParametrizedMatching() *Router {
	return r.Use(types.MiddlewareFunc(r.matchParametrized))
}

func (r *Router) Routes() []types.RouteInfo {
	routes := make([]types.RouteInfo, 0, len(r.routes))
	for _, route := range r.routes {
		routes = append(routes, types.RouteInfo{
			Method:      route.Method,
			Path:        r.basePath + route.Pattern,
			Middlewares: len(route.Middlewares),
		})
	}
	return routes
}

// Handle runs the global middleware, then always continues the outer chain.
func (r *Router) Handle(ctx *types.RequestCtx, next types.Next) error {
	if err := Run(ctx, r.middlewares); err != nil {
		return err
	}
	return next()
}

// HandleRequest is the top-level entry for one request. The response is
// finalized on every exit path, including a panic, which is re-raised
// afterwards.
func (r *Router) HandleRequest(fctx *fasthttp.RequestCtx, ids *Sequence) error {
	ctx := types.NewRequestCtx(fctx)
	ctx.MarkUnsent()
	ctx.Props.SetRequestID(ids.Next())

	defer ctx.Finalize()

	return r.Handle(ctx, done)
}

func (r *Router) matchSimple(ctx *types.RequestCtx, next types.Next) error {
	method := ctx.MethodString()
	path := ctx.RawPath()

	for _, route := range r.routes {
		if !MatchExact(method, path, route.Method, r.basePath+route.Pattern) {
			continue
		}

		if err := Run(ctx, route.Middlewares); err != nil {
			return err
		}
		break
	}

	return next()
}

func (r *Router) matchParametrized(ctx *types.RequestCtx, next types.Next) error {
	method := strings.ToUpper(ctx.MethodString())
	path := ctx.RawPath()

	for _, route := range r.routes {
		if route.Method != method {
			continue
		}

		params, ok := MatchPattern(r.basePath+route.Pattern, path)
		if !ok {
			continue
		}

		ctx.Props.SetParams(params)

		if err := Run(ctx, route.Middlewares); err != nil {
			return err
		}
		break
	}

	return next()
}

func done() error {
	return nil
}
