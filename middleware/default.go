package middleware

import (
	"github.com/valyala/fasthttp"

	"github.com/saiset-co/sai-router/types"
)

// DefaultResponse answers 404 for anything the rest of the chain left
// unsent. Install it last on the root router.
func DefaultResponse() types.Middleware {
	return types.MiddlewareFunc(func(ctx *types.RequestCtx, next types.Next) error {
		if err := next(); err != nil {
			return err
		}

		if !ctx.IsSent() {
			ctx.SetStatusCode(fasthttp.StatusNotFound)
			ctx.SetContentType("text/plain; charset=utf-8")
			ctx.SetBodyString("Not Found")
		}

		return nil
	})
}
