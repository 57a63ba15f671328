package service

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/saiset-co/sai-router/config"
	"github.com/saiset-co/sai-router/health"
	"github.com/saiset-co/sai-router/logger"
	"github.com/saiset-co/sai-router/metrics"
	"github.com/saiset-co/sai-router/middleware"
	"github.com/saiset-co/sai-router/router"
	"github.com/saiset-co/sai-router/sai"
	"github.com/saiset-co/sai-router/server"
	"github.com/saiset-co/sai-router/types"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

type Service struct {
	ctx             context.Context
	cancel          context.CancelFunc
	configPath      string
	done            chan struct{}
	wg              sync.WaitGroup
	state           atomic.Value
	shutdownTimeout time.Duration
	startTimeout    time.Duration
	container       *sai.Container
	app             *router.Router
	serverOpts      []server.Option
}

type Option func(*Service)

// WithServerOptions forwards options to the HTTP server, e.g. an injected
// listener.
func WithServerOptions(opts ...server.Option) Option {
	return func(s *Service) {
		s.serverOpts = append(s.serverOpts, opts...)
	}
}

func NewService(ctx context.Context, configPath string, opts ...Option) (*Service, error) {
	if configPath == "" {
		return nil, types.ErrConfigInvalidPath
	}

	_, err := os.Stat(configPath)
	if err != nil {
		return nil, types.WrapError(err, "file does not exist")
	}

	configManager, err := config.NewManager(ctx, configPath)
	if err != nil {
		return nil, types.WrapError(err, "failed to register config manager")
	}

	return newService(ctx, configManager, opts...)
}

// NewServiceWithConfig builds a service from an already loaded config.
func NewServiceWithConfig(ctx context.Context, configManager types.ConfigManager, opts ...Option) (*Service, error) {
	if configManager == nil {
		return nil, types.ErrConfigNotFound
	}
	return newService(ctx, configManager, opts...)
}

func newService(ctx context.Context, configManager types.ConfigManager, opts ...Option) (*Service, error) {
	serviceCtx, cancel := context.WithCancel(ctx)
	container := sai.InitContainer()

	service := &Service{
		ctx:             serviceCtx,
		cancel:          cancel,
		container:       container,
		app:             router.NewRouter(),
		done:            make(chan struct{}),
		shutdownTimeout: 30 * time.Second,
		startTimeout:    60 * time.Second,
	}

	for _, opt := range opts {
		opt(service)
	}

	service.state.Store(StateStopped)

	if err := service.registerProviders(configManager); err != nil {
		cancel()
		return nil, types.WrapError(err, "failed to register providers")
	}

	sai.SetContainer(container)
	return service, nil
}

// Router is the application router. It sits behind the configured
// middleware and in front of the default 404 response.
func (s *Service) Router() *router.Router {
	return s.app
}

// Init lets the application register routes and child routers before Start.
func (s *Service) Init(setup func(r *router.Router)) *Service {
	if setup != nil {
		setup(s.app)
	}
	return s
}

func (s *Service) Logger() types.Logger {
	return s.logger()
}

// Start runs the service and blocks until a shutdown signal arrives or the
// context is cancelled.
func (s *Service) Start() error {
	if !s.transitionState(StateStopped, StateStarting) {
		s.logger().Warn("Service is already running")
		return types.ErrServerAlreadyRunning
	}

	var runErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				buf := make([]byte, 4096)
				n := runtime.Stack(buf, false)
				runErr = fmt.Errorf("service panic: %v", r)
				s.logger().Error("Service run panic", zap.String("stack", string(buf[:n])))
				s.setState(StateStopped)
			}
		}()

		runErr = s.run()
	}()

	return runErr
}

func (s *Service) run() error {
	s.logger().Info("Starting service")

	ctx, cancel := context.WithTimeout(s.ctx, s.startTimeout)
	defer cancel()

	if err := s.startComponents(ctx); err != nil {
		s.setState(StateStopped)
		return types.WrapError(err, "failed to start components")
	}

	s.setState(StateRunning)
	s.setupSignalHandling()

	s.wg.Add(1)
	go s.contextMonitor()

	s.logger().Info("Service started successfully",
		zap.String("address", s.Addr()),
		zap.Int("routes", len(s.app.Routes())))

	<-s.done

	if err := s.stopComponents(); err != nil {
		s.logger().Error("Error during service shutdown", zap.Error(err))
	}

	s.wg.Wait()
	s.setState(StateStopped)

	s.logger().Info("Service stopped gracefully")
	return nil
}

func (s *Service) Stop() error {
	if !s.transitionState(StateRunning, StateStopping) {
		s.logger().Warn("Service is not running")
		return types.ErrServiceIsNotRunning
	}

	s.logger().Info("Stopping service...")
	s.cancel()

	return nil
}

func (s *Service) Done() <-chan struct{} {
	return s.done
}

func (s *Service) Context() context.Context {
	return s.ctx
}

func (s *Service) IsRunning() bool {
	return s.getState() == StateRunning
}

// Addr is the address the HTTP server listens on.
func (s *Service) Addr() string {
	if ptr := s.container.HTTPServer.Load(); ptr != nil {
		return (*ptr).Addr()
	}
	return ""
}

func (s *Service) getState() State {
	return s.state.Load().(State)
}

func (s *Service) setState(newState State) bool {
	currentState := s.getState()
	return s.state.CompareAndSwap(currentState, newState)
}

func (s *Service) transitionState(from, to State) bool {
	return s.state.CompareAndSwap(from, to)
}

func (s *Service) logger() types.LoggerManager {
	return *s.container.Logger.Load()
}

// components lists everything with a lifecycle in start order.
func (s *Service) components() []types.Component {
	components := make([]types.Component, 0, 5)

	if ptr := s.container.Config.Load(); ptr != nil {
		components = append(components, types.Component{Name: "config", Manager: *ptr})
	}
	if ptr := s.container.Logger.Load(); ptr != nil {
		components = append(components, types.Component{Name: "logger", Manager: *ptr})
	}
	if ptr := s.container.Metrics.Load(); ptr != nil {
		components = append(components, types.Component{Name: "metrics", Manager: *ptr})
	}
	if ptr := s.container.Health.Load(); ptr != nil {
		components = append(components, types.Component{Name: "health", Manager: *ptr})
	}
	if ptr := s.container.HTTPServer.Load(); ptr != nil {
		components = append(components, types.Component{Name: "http_server", Manager: *ptr})
	}

	return components
}

func (s *Service) startComponents(ctx context.Context) error {
	for _, component := range s.components() {
		select {
		case <-ctx.Done():
			return types.NewErrorf("component startup timeout: %v", ctx.Err())
		default:
		}

		if component.Manager.IsRunning() {
			continue
		}

		if err := component.Manager.Start(); err != nil {
			return types.WrapError(err, "failed to start "+component.Name)
		}
	}

	s.logger().Info("All components started successfully")
	return nil
}

// stopComponents stops the server first so in-flight requests drain while
// metrics and logging are still available.
func (s *Service) stopComponents() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	var errs []error

	s.logger().Info("Stopping service components...")

	components := s.components()
	for i := len(components) - 1; i >= 0; i-- {
		component := components[i]
		if !component.Manager.IsRunning() {
			continue
		}

		g, gCtx := errgroup.WithContext(ctx)
		g.Go(func() error {
			select {
			case <-gCtx.Done():
				return gCtx.Err()
			default:
				return component.Manager.Stop()
			}
		})

		if err := g.Wait(); err != nil {
			select {
			case <-ctx.Done():
				s.logger().Warn("Component shutdown timeout, some components may not have stopped gracefully",
					zap.String("component", component.Name))
			default:
				if component.Name != "logger" {
					s.logger().Error("Failed to stop component", zap.String("component", component.Name), zap.Error(err))
				}
				errs = append(errs, err)
			}
		}
	}

	if len(errs) > 0 {
		return types.NewErrorf("errors during shutdown: %v", errs)
	}

	return nil
}

func (s *Service) setupSignalHandling() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		select {
		case sig := <-sigChan:
			s.logger().Info("Received shutdown signal", zap.String("signal", sig.String()))
			if s.transitionState(StateRunning, StateStopping) {
				s.cancel()
			}

		case <-s.ctx.Done():
			s.logger().Info("Service context cancelled")
		}

		signal.Stop(sigChan)
	}()
}

func (s *Service) contextMonitor() {
	defer s.wg.Done()
	defer close(s.done)

	<-s.ctx.Done()

	switch err := s.ctx.Err(); {
	case types.IsError(err, context.Canceled):
		s.logger().Info("Service shutdown: context cancelled")
	case types.IsError(err, context.DeadlineExceeded):
		s.logger().Warn("Service shutdown: context deadline exceeded")
	default:
		s.logger().Info("Service shutdown: context done")
	}
}

// registerProviders builds the component graph. The root router runs the
// metrics and health endpoints, the configured middleware, the default 404
// response and finally the application router.
func (s *Service) registerProviders(configManager types.ConfigManager) error {
	var metricsManager types.MetricsManager

	s.container.SetConfig(configManager)
	_config := configManager.GetConfig()

	loggerManager, err := logger.NewManager(s.ctx, configManager)
	if err != nil {
		return types.WrapError(err, "failed to register logger")
	}
	s.container.SetLogger(loggerManager)

	if _config.Metrics != nil && _config.Metrics.Enabled {
		metricsManager = metrics.NewRegistry(_config.Metrics, loggerManager.Named("metrics"))
		s.container.SetMetrics(metricsManager)
	}

	var healthManager *health.Manager
	if _config.Health != nil && _config.Health.Enabled {
		healthManager, err = health.NewManager(s.ctx, configManager, loggerManager.Named("health"))
		if err != nil {
			return types.WrapError(err, "failed to register health manager")
		}
		s.container.SetHealth(healthManager)
	}

	middlewareManager, err := middleware.NewManager(s.ctx, configManager, loggerManager.Named("http"), metricsManager)
	if err != nil {
		return types.WrapError(err, "failed to register middleware manager")
	}
	s.container.SetMiddlewares(middlewareManager)

	root := router.NewRouter()
	if metricsManager != nil {
		root.Use(metricsManager.Handler())
	}
	if healthManager != nil {
		root.Use(healthManager.Handler())
	}
	root.Use(middlewareManager.Middlewares()...).
		Use(middleware.DefaultResponse()).
		Use(s.app)
	s.container.SetRouter(root)

	httpServer, err := server.NewHTTPServer(s.ctx, configManager, loggerManager.Named("http_server"), root, s.serverOpts...)
	if err != nil {
		return types.WrapError(err, "failed to register HTTP server")
	}
	s.container.SetHTTPServer(httpServer)

	if healthManager != nil {
		for _, component := range s.components() {
			if component.Name != "health" {
				healthManager.RegisterComponent(component)
			}
		}
	}

	return nil
}
