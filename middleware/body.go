package middleware

import (
	"github.com/valyala/fasthttp"

	"github.com/saiset-co/sai-router/types"
	"github.com/saiset-co/sai-router/utils"
)

// The body readers below publish the request body under types.PropBody, each
// in its own shape. fasthttp has already read the whole body at this point.

func ReadForm() types.Middleware {
	return types.MiddlewareFunc(func(ctx *types.RequestCtx, next types.Next) error {
		ctx.Props.Set(types.PropForm, ParseFormData(string(ctx.PostBody())))
		return next()
	})
}

func ReadText() types.Middleware {
	return types.MiddlewareFunc(func(ctx *types.RequestCtx, next types.Next) error {
		ctx.Props.Set(types.PropBody, string(ctx.PostBody()))
		return next()
	})
}

func ReadBlob() types.Middleware {
	return types.MiddlewareFunc(func(ctx *types.RequestCtx, next types.Next) error {
		ctx.Props.Set(types.PropBody, append([]byte(nil), ctx.PostBody()...))
		return next()
	})
}

// ReadJSON decodes the body into maps, slices and scalars. A body that is
// not valid JSON is answered with 400 and the chain stops there.
func ReadJSON() types.Middleware {
	return types.MiddlewareFunc(func(ctx *types.RequestCtx, next types.Next) error {
		body := ctx.PostBody()
		if len(body) == 0 {
			utils.CreateErrorResponse(ctx, fasthttp.StatusBadRequest, types.ErrBodyParseFailed.Error(), "request body is empty")
			return nil
		}

		value, err := utils.UnmarshalAny(body)
		if err != nil {
			utils.CreateErrorResponse(ctx, fasthttp.StatusBadRequest, types.ErrBodyParseFailed.Error(), "request body is not valid JSON")
			return nil
		}

		ctx.Props.Set(types.PropBody, value)
		return next()
	})
}
