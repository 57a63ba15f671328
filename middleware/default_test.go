package middleware

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/saiset-co/sai-router/router"
	"github.com/saiset-co/sai-router/types"
)

func TestDefaultResponse(t *testing.T) {
	t.Parallel()

	t.Run("unsent becomes 404", func(t *testing.T) {
		ctx := newCtx(request{uri: "/missing"})
		calls := 0

		require.NoError(t, DefaultResponse().Handle(ctx, nextCounter(&calls)))
		assert.Equal(t, 1, calls)
		assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())
		assert.Equal(t, "Not Found", string(ctx.Response.Body()))
	})

	t.Run("sent response is kept", func(t *testing.T) {
		ctx := newCtx(request{uri: "/orders"})

		require.NoError(t, DefaultResponse().Handle(ctx, sendOK(ctx)))
		assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
		assert.Equal(t, "ok", string(ctx.Response.Body()))
	})

	t.Run("errors are left to the caller", func(t *testing.T) {
		ctx := newCtx(request{uri: "/orders"})
		failure := errors.New("failed")

		err := DefaultResponse().Handle(ctx, func() error { return failure })
		assert.ErrorIs(t, err, failure)
		assert.False(t, ctx.IsSent())
	})
}

func TestDefaultResponse_AfterRoutes(t *testing.T) {
	t.Parallel()

	r := router.NewRouter()
	r.Use(DefaultResponse())
	r.Get("/hello", types.HandlerFunc(func(ctx *types.RequestCtx) error {
		ctx.SetStatusCode(fasthttp.StatusOK)
		return nil
	}))
	r.EnableSimpleMatching()

	for path, status := range map[string]int{"/hello": fasthttp.StatusOK, "/nope": fasthttp.StatusNotFound} {
		var req fasthttp.Request
		req.SetRequestURI(path)
		fctx := &fasthttp.RequestCtx{}
		fctx.Init(&req, nil, nil)

		require.NoError(t, r.HandleRequest(fctx, router.NewSequence()))
		assert.Equal(t, status, fctx.Response.StatusCode(), path)
	}
}
