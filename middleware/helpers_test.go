package middleware

import (
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/saiset-co/sai-router/config"
	"github.com/saiset-co/sai-router/logger"
	"github.com/saiset-co/sai-router/types"
)

type request struct {
	method  string
	uri     string
	body    string
	headers map[string]string
}

func newCtx(r request) *types.RequestCtx {
	var req fasthttp.Request

	method := r.method
	if method == "" {
		method = fasthttp.MethodGet
	}
	req.Header.SetMethod(method)
	req.SetRequestURI(r.uri)
	for key, value := range r.headers {
		req.Header.Set(key, value)
	}
	if r.body != "" {
		req.SetBodyString(r.body)
	}

	fctx := &fasthttp.RequestCtx{}
	fctx.Init(&req, nil, nil)

	ctx := types.NewRequestCtx(fctx)
	ctx.MarkUnsent()
	ctx.Props.SetRequestID(7)
	return ctx
}

func testConfig(mutate func(cfg *types.ServiceConfig)) types.ConfigManager {
	cfg := config.NewLoader().Defaults()
	if mutate != nil {
		mutate(cfg)
	}
	return config.NewStatic(cfg, nil)
}

func production(cfg *types.ServiceConfig) {
	cfg.DeploymentMode = types.DeploymentProduction
}

func observedLogger() (types.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return logger.NewZapWrapper(zap.New(core)), logs
}

func sendOK(ctx *types.RequestCtx) types.Next {
	return func() error {
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
		return nil
	}
}

func nextCounter(called *int) types.Next {
	return func() error {
		*called++
		return nil
	}
}
