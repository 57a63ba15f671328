package server

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/saiset-co/sai-router/config"
	"github.com/saiset-co/sai-router/logger"
	"github.com/saiset-co/sai-router/router"
	"github.com/saiset-co/sai-router/types"
)

func newTestServer(t *testing.T, r *router.Router) (*FastHTTPServer, *fasthttp.Client, *observer.ObservedLogs) {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	ln := fasthttputil.NewInmemoryListener()

	srv, err := NewHTTPServer(
		context.Background(),
		config.NewStatic(config.NewLoader().Defaults(), nil),
		logger.NewZapWrapper(zap.New(core)),
		r,
		WithListener(ln),
	)
	require.NoError(t, err)
	require.NoError(t, srv.Start())
	t.Cleanup(func() {
		if srv.IsRunning() {
			_ = srv.Stop()
		}
	})

	client := &fasthttp.Client{
		Dial: func(string) (net.Conn, error) {
			return ln.Dial()
		},
	}

	return srv, client, logs
}

func get(t *testing.T, client *fasthttp.Client, path string) *fasthttp.Response {
	t.Helper()

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI("http://test" + path)

	resp := &fasthttp.Response{}
	require.NoError(t, client.Do(req, resp))
	return resp
}

func TestFastHTTPServer_Requests(t *testing.T) {
	t.Parallel()

	ids := make(chan uint64, 4)

	r := router.NewRouter().
		UseFunc(func(ctx *types.RequestCtx, next types.Next) error {
			ids <- ctx.Props.RequestID()
			return next()
		}).
		Get("/hello", types.HandlerFunc(func(ctx *types.RequestCtx) error {
			ctx.SetStatusCode(fasthttp.StatusOK)
			ctx.SetBodyString("world")
			return nil
		})).
		Get("/boom", types.HandlerFunc(func(ctx *types.RequestCtx) error {
			panic("boom")
		})).
		Get("/fail", types.HandlerFunc(func(ctx *types.RequestCtx) error {
			return errors.New("handler failed")
		}))

	_, client, logs := newTestServer(t, r)

	resp := get(t, client, "/hello")
	assert.Equal(t, fasthttp.StatusOK, resp.StatusCode())
	assert.Equal(t, "world", string(resp.Body()))

	resp = get(t, client, "/missing")
	assert.Equal(t, fasthttp.StatusNotImplemented, resp.StatusCode())

	resp = get(t, client, "/fail")
	assert.Equal(t, fasthttp.StatusNotImplemented, resp.StatusCode())
	assert.Equal(t, 1, logs.FilterMessage("Request chain returned an error").Len())

	resp = get(t, client, "/boom")
	assert.Equal(t, fasthttp.StatusNotImplemented, resp.StatusCode())
	assert.True(t, resp.ConnectionClose())
	assert.Equal(t, 1, logs.FilterMessage("Unhandled panic in request chain").Len())

	assert.Equal(t, []uint64{1, 2, 3, 4}, []uint64{<-ids, <-ids, <-ids, <-ids})
}

func TestFastHTTPServer_Lifecycle(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t, router.NewRouter())

	assert.True(t, srv.IsRunning())
	assert.ErrorIs(t, srv.Start(), types.ErrServerAlreadyRunning)
	assert.NotEmpty(t, srv.Addr())

	require.NoError(t, srv.Stop())
	assert.False(t, srv.IsRunning())
	assert.ErrorIs(t, srv.Stop(), types.ErrServerNotRunning)
}

func TestNewHTTPServer_NilRouter(t *testing.T) {
	t.Parallel()

	_, err := NewHTTPServer(context.Background(), config.NewStatic(config.NewLoader().Defaults(), nil), logger.NewNop(), nil)
	assert.ErrorIs(t, err, types.ErrHandlerIsNil)
}
