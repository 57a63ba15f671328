package router

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/saiset-co/sai-router/types"
)

func newFastCtx(method, uri string) *fasthttp.RequestCtx {
	var req fasthttp.Request
	req.Header.SetMethod(method)
	req.SetRequestURI(uri)

	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&req, nil, nil)
	return ctx
}

func newUnsentCtx(method, uri string) *types.RequestCtx {
	ctx := types.NewRequestCtx(newFastCtx(method, uri))
	ctx.MarkUnsent()
	return ctx
}

type recorder struct {
	events []string
}

func (r *recorder) wrap(name string) types.Middleware {
	return types.MiddlewareFunc(func(ctx *types.RequestCtx, next types.Next) error {
		r.events = append(r.events, "enter "+name)
		err := next()
		r.events = append(r.events, "leave "+name)
		return err
	})
}

func (r *recorder) respond(name string, status int) types.Middleware {
	return types.MiddlewareFunc(func(ctx *types.RequestCtx, next types.Next) error {
		r.events = append(r.events, "respond "+name)
		ctx.SetStatusCode(status)
		return nil
	})
}

func TestPipeline_OnionOrder(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	ctx := newUnsentCtx("GET", "/")

	err := Run(ctx, []types.Middleware{rec.wrap("a"), rec.wrap("b"), rec.wrap("c")})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"enter a", "enter b", "enter c",
		"leave c", "leave b", "leave a",
	}, rec.events)
	assert.False(t, ctx.IsSent())
}

func TestPipeline_ShortCircuit(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	ctx := newUnsentCtx("GET", "/")

	err := Run(ctx, []types.Middleware{
		rec.wrap("a"),
		rec.respond("b", fasthttp.StatusOK),
		rec.wrap("c"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"enter a", "respond b", "leave a"}, rec.events)
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
}

func TestPipeline_SentResponseStopsContinuation(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	ctx := newUnsentCtx("GET", "/")

	sendThenContinue := types.MiddlewareFunc(func(ctx *types.RequestCtx, next types.Next) error {
		ctx.SetStatusCode(fasthttp.StatusAccepted)
		return next()
	})

	err := Run(ctx, []types.Middleware{sendThenContinue, rec.wrap("after")})
	require.NoError(t, err)

	assert.Empty(t, rec.events)
	assert.Equal(t, fasthttp.StatusAccepted, ctx.Response.StatusCode())
}

func TestPipeline_NextPastEndIsNoop(t *testing.T) {
	t.Parallel()

	calls := 0
	ctx := newUnsentCtx("GET", "/")
	counter := types.MiddlewareFunc(func(ctx *types.RequestCtx, next types.Next) error {
		calls++
		return next()
	})

	p := NewPipeline(ctx, []types.Middleware{counter})
	require.NoError(t, p.Next())

	assert.NotPanics(t, func() {
		for i := 0; i < 5; i++ {
			assert.NoError(t, p.Next())
		}
	})
	assert.Equal(t, 1, calls)
}

func TestPipeline_NextAfterSentIsNoop(t *testing.T) {
	t.Parallel()

	calls := 0
	ctx := newUnsentCtx("GET", "/")
	counter := types.MiddlewareFunc(func(ctx *types.RequestCtx, next types.Next) error {
		calls++
		return next()
	})

	p := NewPipeline(ctx, []types.Middleware{counter, counter})
	ctx.SetStatusCode(fasthttp.StatusOK)

	require.NoError(t, p.Next())
	require.NoError(t, p.Next())
	assert.Equal(t, 0, calls)
}

func TestPipeline_EachContinuationRunsNextElementOnce(t *testing.T) {
	t.Parallel()

	counts := make([]int, 4)
	middlewares := make([]types.Middleware, len(counts))
	for i := range middlewares {
		idx := i
		middlewares[i] = types.MiddlewareFunc(func(ctx *types.RequestCtx, next types.Next) error {
			counts[idx]++
			return next()
		})
	}

	require.NoError(t, Run(newUnsentCtx("GET", "/"), middlewares))
	assert.Equal(t, []int{1, 1, 1, 1}, counts)
}

func TestPipeline_Empty(t *testing.T) {
	t.Parallel()

	ctx := newUnsentCtx("GET", "/")
	assert.NoError(t, Run(ctx, nil))
	assert.NoError(t, Run(ctx, []types.Middleware{}))
	assert.False(t, ctx.IsSent())
}

func TestPipeline_ErrorPropagates(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	rec := &recorder{}
	ctx := newUnsentCtx("GET", "/")

	failing := types.MiddlewareFunc(func(ctx *types.RequestCtx, next types.Next) error {
		return boom
	})

	err := Run(ctx, []types.Middleware{rec.wrap("a"), failing, rec.wrap("c")})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"enter a", "leave a"}, rec.events)
}
