package router

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/saiset-co/sai-router/types"
)

func respondText(body string) types.Middleware {
	return types.HandlerFunc(func(ctx *types.RequestCtx) error {
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString(body)
		return nil
	})
}

func TestRouter_NoRoutesStillFinalizes(t *testing.T) {
	t.Parallel()

	r := NewRouter()
	fctx := newFastCtx("GET", "/anything")

	require.NoError(t, r.HandleRequest(fctx, NewSequence()))
	assert.Equal(t, fasthttp.StatusNotImplemented, fctx.Response.StatusCode())
}

func TestRouter_SimpleMatching(t *testing.T) {
	t.Parallel()

	r := NewRouter().
		EnableSimpleMatching().
		Get("/health", respondText("ok")).
		Post("/health", respondText("posted"))

	tests := []struct {
		name   string
		method string
		uri    string
		status int
		body   string
	}{
		{name: "get", method: "GET", uri: "/health", status: fasthttp.StatusOK, body: "ok"},
		{name: "post", method: "POST", uri: "/health", status: fasthttp.StatusOK, body: "posted"},
		{name: "query ignored", method: "GET", uri: "/health?verbose=1", status: fasthttp.StatusOK, body: "ok"},
		{name: "trailing slash", method: "GET", uri: "/health/", status: fasthttp.StatusNotImplemented},
		{name: "unknown method", method: "PUT", uri: "/health", status: fasthttp.StatusNotImplemented},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fctx := newFastCtx(tt.method, tt.uri)
			require.NoError(t, r.HandleRequest(fctx, NewSequence()))

			assert.Equal(t, tt.status, fctx.Response.StatusCode())
			if tt.body != "" {
				assert.Equal(t, tt.body, string(fctx.Response.Body()))
			}
		})
	}
}

func TestRouter_ParametrizedMatchingPublishesParams(t *testing.T) {
	t.Parallel()

	var got *types.Params
	r := NewRouter().
		EnableParametrizedMatching().
		Get("/users/:id", types.HandlerFunc(func(ctx *types.RequestCtx) error {
			got = ctx.Props.Params()
			ctx.SetStatusCode(fasthttp.StatusOK)
			return nil
		}))

	fctx := newFastCtx("GET", "/users/abc%20def")
	require.NoError(t, r.HandleRequest(fctx, NewSequence()))

	require.NotNil(t, got)
	assert.Equal(t, "abc def", got.Get("id"))
	assert.Equal(t, fasthttp.StatusOK, fctx.Response.StatusCode())
}

func TestRouter_ParamsAbsentWithoutMatch(t *testing.T) {
	t.Parallel()

	var props *types.Props
	r := NewRouter().
		EnableParametrizedMatching().
		Get("/users/:id", respondText("user")).
		UseFunc(func(ctx *types.RequestCtx, next types.Next) error {
			props = ctx.Props
			return next()
		})

	fctx := newFastCtx("GET", "/users/42/extra")
	require.NoError(t, r.HandleRequest(fctx, NewSequence()))

	require.NotNil(t, props)
	assert.Nil(t, props.Params())
	assert.False(t, props.Has(types.PropParams))
	assert.Equal(t, fasthttp.StatusNotImplemented, fctx.Response.StatusCode())
}

func TestRouter_FirstMatchWinsAndFallbackRuns(t *testing.T) {
	t.Parallel()

	var events []string
	mark := func(name string) types.Middleware {
		return types.MiddlewareFunc(func(ctx *types.RequestCtx, next types.Next) error {
			events = append(events, name)
			ctx.Props.Set("route", name)
			return next()
		})
	}

	r := NewRouter().
		EnableParametrizedMatching().
		Get("/items/:id", mark("first")).
		Get("/items/:slug", mark("second")).
		UseFunc(func(ctx *types.RequestCtx, next types.Next) error {
			events = append(events, "fallback:"+ctx.Props.GetString("route"))
			ctx.SetStatusCode(fasthttp.StatusNoContent)
			return nil
		})

	fctx := newFastCtx("GET", "/items/9")
	require.NoError(t, r.HandleRequest(fctx, NewSequence()))

	assert.Equal(t, []string{"first", "fallback:first"}, events)
	assert.Equal(t, fasthttp.StatusNoContent, fctx.Response.StatusCode())
}

func TestRouter_RouteMiddlewareOrder(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	r := NewRouter().
		Use(rec.wrap("global")).
		EnableSimpleMatching().
		Get("/x", rec.wrap("route-a"), rec.respond("route-b", fasthttp.StatusOK), rec.wrap("route-c"))

	fctx := newFastCtx("GET", "/x")
	require.NoError(t, r.HandleRequest(fctx, NewSequence()))

	assert.Equal(t, []string{
		"enter global", "enter route-a", "respond route-b", "leave route-a", "leave global",
	}, rec.events)
}

func TestRouter_Mount(t *testing.T) {
	t.Parallel()

	api := NewRouter().
		EnableSimpleMatching().
		Get("/v1/ping", respondText("pong"))

	root := NewRouter().Mount("/api", api)

	assert.Equal(t, "/api", api.BasePath())

	tests := []struct {
		uri    string
		status int
	}{
		{uri: "/api/v1/ping", status: fasthttp.StatusOK},
		{uri: "/v1/ping", status: fasthttp.StatusNotImplemented},
		{uri: "/api/ping", status: fasthttp.StatusNotImplemented},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.uri, func(t *testing.T) {
			t.Parallel()

			fctx := newFastCtx("GET", tt.uri)
			require.NoError(t, root.HandleRequest(fctx, NewSequence()))
			assert.Equal(t, tt.status, fctx.Response.StatusCode())
		})
	}
}

func TestRouter_NestedMountWithParams(t *testing.T) {
	t.Parallel()

	root := NewRouter()
	api := NewRouter()
	users := NewRouter()

	root.Mount("/api", api)
	api.Mount("/users", users)

	users.EnableParametrizedMatching().
		Get("/:id", types.HandlerFunc(func(ctx *types.RequestCtx) error {
			ctx.SetStatusCode(fasthttp.StatusOK)
			ctx.SetBodyString(ctx.Props.Params().Get("id"))
			return nil
		}))

	fctx := newFastCtx("GET", "/api/users/17")
	require.NoError(t, root.HandleRequest(fctx, NewSequence()))

	assert.Equal(t, "/api/users", users.BasePath())
	assert.Equal(t, fasthttp.StatusOK, fctx.Response.StatusCode())
	assert.Equal(t, "17", string(fctx.Response.Body()))
}

func TestRouter_ChildFallsThroughToParent(t *testing.T) {
	t.Parallel()

	child := NewRouter().EnableSimpleMatching().Get("/known", respondText("child"))
	root := NewRouter().
		Mount("/c", child).
		UseFunc(func(ctx *types.RequestCtx, next types.Next) error {
			ctx.SetStatusCode(fasthttp.StatusNotFound)
			return nil
		})

	fctx := newFastCtx("GET", "/c/unknown")
	require.NoError(t, root.HandleRequest(fctx, NewSequence()))
	assert.Equal(t, fasthttp.StatusNotFound, fctx.Response.StatusCode())

	fctx = newFastCtx("GET", "/c/known")
	require.NoError(t, root.HandleRequest(fctx, NewSequence()))
	assert.Equal(t, fasthttp.StatusOK, fctx.Response.StatusCode())
}

func TestRouter_ErrorFinalizesAndReturns(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	r := NewRouter().UseFunc(func(ctx *types.RequestCtx, next types.Next) error {
		return boom
	})

	fctx := newFastCtx("GET", "/")
	err := r.HandleRequest(fctx, NewSequence())

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, fasthttp.StatusNotImplemented, fctx.Response.StatusCode())
}

func TestRouter_PanicFinalizesAndRethrows(t *testing.T) {
	t.Parallel()

	r := NewRouter().UseFunc(func(ctx *types.RequestCtx, next types.Next) error {
		panic("kaboom")
	})

	fctx := newFastCtx("GET", "/")
	assert.PanicsWithValue(t, "kaboom", func() {
		_ = r.HandleRequest(fctx, NewSequence())
	})
	assert.Equal(t, fasthttp.StatusNotImplemented, fctx.Response.StatusCode())
}

func TestRouter_PartialResponseKeepsStatus(t *testing.T) {
	t.Parallel()

	r := NewRouter().UseFunc(func(ctx *types.RequestCtx, next types.Next) error {
		ctx.SetStatusCode(fasthttp.StatusAccepted)
		ctx.SetBodyString("partial")
		panic("after write")
	})

	fctx := newFastCtx("GET", "/")
	assert.Panics(t, func() {
		_ = r.HandleRequest(fctx, NewSequence())
	})
	assert.Equal(t, fasthttp.StatusAccepted, fctx.Response.StatusCode())
}

func TestRouter_RequestIDs(t *testing.T) {
	t.Parallel()

	var ids []uint64
	r := NewRouter().UseFunc(func(ctx *types.RequestCtx, next types.Next) error {
		ids = append(ids, ctx.Props.RequestID())
		return next()
	})

	seq := NewSequence()
	for i := 0; i < 3; i++ {
		require.NoError(t, r.HandleRequest(newFastCtx("GET", "/"), seq))
	}

	assert.Equal(t, []uint64{1, 2, 3}, ids)
	assert.Equal(t, uint64(3), seq.Current())
}

func TestRouter_ConcurrentRequestIDsAreDistinct(t *testing.T) {
	t.Parallel()

	const n = 200

	var (
		mu  sync.Mutex
		ids = make(map[uint64]struct{}, n)
	)

	r := NewRouter().
		UseFunc(func(ctx *types.RequestCtx, next types.Next) error {
			mu.Lock()
			ids[ctx.Props.RequestID()] = struct{}{}
			mu.Unlock()
			return next()
		}).
		EnableParametrizedMatching().
		Get("/work/:n", respondText("done"))

	seq := NewSequence()

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			fctx := newFastCtx("GET", "/work/1")
			_ = r.HandleRequest(fctx, seq)
		}()
	}
	wg.Wait()

	assert.Len(t, ids, n)
	assert.Equal(t, uint64(n), seq.Current())
}

func TestRouter_Routes(t *testing.T) {
	t.Parallel()

	api := NewRouter()
	NewRouter().Mount("/api", api)

	api.Map("patch", "/items/:id", respondText("x")).Delete("/items/:id", respondText("y"), respondText("z"))

	assert.Equal(t, []types.RouteInfo{
		{Method: "PATCH", Path: "/api/items/:id", Middlewares: 1},
		{Method: "DELETE", Path: "/api/items/:id", Middlewares: 2},
	}, api.Routes())
}

func TestRouter_NilMiddlewarePanics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { NewRouter().Use(nil) })
	assert.Panics(t, func() { NewRouter().Get("/x", nil) })
	assert.Panics(t, func() { NewRouter().Mount("/x", nil) })
}
