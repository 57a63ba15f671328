package server

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/saiset-co/sai-router/router"
	"github.com/saiset-co/sai-router/types"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

const defaultShutdownTimeout = 5 * time.Second

type Option func(*FastHTTPServer)

// WithListener makes the server accept on ln instead of dialing the
// configured host and port.
func WithListener(ln net.Listener) Option {
	return func(s *FastHTTPServer) {
		s.listener = ln
		s.injected = true
	}
}

// FastHTTPServer binds a router to a fasthttp listener. Every request gets a
// fresh id from the server's sequence.
type FastHTTPServer struct {
	ctx             context.Context
	cancel          context.CancelFunc
	logger          types.Logger
	router          *router.Router
	ids             *router.Sequence
	server          *fasthttp.Server
	listener        net.Listener
	injected        bool
	httpConfig      *types.HTTPConfig
	tlsConfig       *types.TLSConfig
	group           *errgroup.Group
	state           atomic.Value
	shutdownTimeout time.Duration
}

func NewHTTPServer(
	ctx context.Context,
	config types.ConfigManager,
	logger types.Logger,
	r *router.Router,
	opts ...Option) (*FastHTTPServer, error) {
	if r == nil {
		return nil, types.ErrHandlerIsNil
	}

	serverCtx, cancel := context.WithCancel(ctx)

	server := &FastHTTPServer{
		ctx:             serverCtx,
		cancel:          cancel,
		logger:          logger,
		router:          r,
		ids:             router.NewSequence(),
		httpConfig:      config.GetConfig().Server.HTTP,
		tlsConfig:       config.GetConfig().Server.TLS,
		shutdownTimeout: defaultShutdownTimeout,
	}

	if server.tlsConfig == nil {
		server.tlsConfig = &types.TLSConfig{}
	}

	if server.httpConfig.ShutdownTimeout > 0 {
		server.shutdownTimeout = time.Duration(server.httpConfig.ShutdownTimeout) * time.Second
	}

	for _, opt := range opts {
		opt(server)
	}

	server.state.Store(StateStopped)

	return server, nil
}

func (h *FastHTTPServer) Start() error {
	if !h.transitionState(StateStopped, StateStarting) {
		return types.ErrServerAlreadyRunning
	}

	h.server = &fasthttp.Server{
		Handler:                      h.mainHandler,
		Name:                         "sai-router",
		ReadTimeout:                  time.Duration(h.httpConfig.ReadTimeout) * time.Second,
		WriteTimeout:                 time.Duration(h.httpConfig.WriteTimeout) * time.Second,
		IdleTimeout:                  time.Duration(h.httpConfig.IdleTimeout) * time.Second,
		MaxRequestBodySize:           h.httpConfig.MaxRequestBodySize,
		TCPKeepalive:                 true,
		DisablePreParseMultipartForm: true,
		CloseOnShutdown:              true,
	}

	if h.listener == nil {
		ln, err := net.Listen("tcp", h.address())
		if err != nil {
			h.setState(StateStopped)
			return types.Errorf(types.ErrServerStartFailed, "%v", err)
		}
		h.listener = ln
	}

	ln := h.listener
	h.group = &errgroup.Group{}
	h.group.Go(func() error {
		var err error
		if h.tlsConfig.Enabled {
			err = h.server.ServeTLS(ln, h.tlsConfig.CertFile, h.tlsConfig.KeyFile)
		} else {
			err = h.server.Serve(ln)
		}

		if err != nil {
			h.logger.Error("HTTP server failed", zap.Error(err))
			h.transitionState(StateRunning, StateStopped)
			return err
		}
		return nil
	})

	h.setState(StateRunning)

	h.logger.Info("HTTP server started successfully",
		zap.String("address", h.Addr()),
		zap.Bool("tls", h.tlsConfig.Enabled))

	return nil
}

func (h *FastHTTPServer) Stop() error {
	if !h.transitionState(StateRunning, StateStopping) {
		return types.ErrServerNotRunning
	}

	defer func() {
		h.setState(StateStopped)
		h.cancel()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
	defer cancel()

	if err := h.server.ShutdownWithContext(ctx); err != nil {
		select {
		case <-ctx.Done():
			h.logger.Warn("Server stop timeout, some connections may not have closed gracefully")
		default:
			h.logger.Error("Error during server shutdown", zap.Error(err))
		}
		return types.Errorf(types.ErrServerStopFailed, "%v", err)
	}

	if err := h.group.Wait(); err != nil {
		return types.Errorf(types.ErrServerStopFailed, "%v", err)
	}

	if !h.injected {
		h.listener = nil
	}

	h.logger.Info("HTTP server stopped gracefully")

	return nil
}

func (h *FastHTTPServer) IsRunning() bool {
	return h.getState() == StateRunning
}

// Addr reports the bound address once started, the configured one before.
func (h *FastHTTPServer) Addr() string {
	if h.listener != nil {
		return h.listener.Addr().String()
	}
	return h.address()
}

func (h *FastHTTPServer) address() string {
	return fmt.Sprintf("%s:%d", h.httpConfig.Host, h.httpConfig.Port)
}

func (h *FastHTTPServer) getState() State {
	return h.state.Load().(State)
}

func (h *FastHTTPServer) setState(newState State) bool {
	currentState := h.getState()
	return h.state.CompareAndSwap(currentState, newState)
}

func (h *FastHTTPServer) transitionState(from, to State) bool {
	return h.state.CompareAndSwap(from, to)
}

// mainHandler is the last line of defence: a panic that escaped the chain
// is logged and the connection is closed after the finalized response.
func (h *FastHTTPServer) mainHandler(ctx *fasthttp.RequestCtx) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("Unhandled panic in request chain",
				zap.Any("panic", rec),
				zap.ByteString("method", ctx.Method()),
				zap.ByteString("path", ctx.Path()),
				zap.Stack("stack"))
			ctx.SetConnectionClose()
		}
	}()

	if err := h.router.HandleRequest(ctx, h.ids); err != nil {
		h.logger.Error("Request chain returned an error",
			zap.Error(err),
			zap.ByteString("method", ctx.Method()),
			zap.ByteString("path", ctx.Path()))
	}
}
