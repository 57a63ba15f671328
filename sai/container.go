package sai

import (
	"sync/atomic"

	"github.com/saiset-co/sai-router/logger"
	"github.com/saiset-co/sai-router/middleware"
	"github.com/saiset-co/sai-router/router"
	"github.com/saiset-co/sai-router/types"
)

// Container holds the components of a running service. Optional ones stay
// empty when disabled in configuration.
type Container struct {
	Config      atomic.Pointer[types.ConfigManager]
	Logger      atomic.Pointer[types.LoggerManager]
	Metrics     atomic.Pointer[types.MetricsManager]
	Health      atomic.Pointer[types.HealthManager]
	Middlewares atomic.Pointer[middleware.Manager]
	Router      atomic.Pointer[router.Router]
	HTTPServer  atomic.Pointer[types.HTTPServer]
}

var globalContainer atomic.Pointer[Container]

func InitContainer() *Container {
	return &Container{}
}

func SetContainer(container *Container) {
	globalContainer.Store(container)
}

func current() *Container {
	if container := globalContainer.Load(); container != nil {
		return container
	}
	panic("Container not initialized")
}

func Config() types.ConfigManager {
	if ptr := current().Config.Load(); ptr != nil {
		return *ptr
	}
	panic("ConfigManager not initialized")
}

func Logger() types.LoggerManager {
	if ptr := current().Logger.Load(); ptr != nil {
		return *ptr
	}
	panic("Logger not initialized")
}

// Metrics returns nil when metrics are disabled.
func Metrics() types.MetricsManager {
	if ptr := current().Metrics.Load(); ptr != nil {
		return *ptr
	}
	return nil
}

// Health returns nil when health endpoints are disabled.
func Health() types.HealthManager {
	if ptr := current().Health.Load(); ptr != nil {
		return *ptr
	}
	return nil
}

func Router() *router.Router {
	if r := current().Router.Load(); r != nil {
		return r
	}
	panic("Router not initialized")
}

func RegisterLogger(loggerName string, creator types.LoggerCreator) {
	logger.RegisterLogger(loggerName, creator)
}

func (fc *Container) SetConfig(config types.ConfigManager) {
	fc.Config.Store(&config)
}

func (fc *Container) SetLogger(logger types.LoggerManager) {
	fc.Logger.Store(&logger)
}

func (fc *Container) SetMetrics(metrics types.MetricsManager) {
	fc.Metrics.Store(&metrics)
}

func (fc *Container) SetHealth(health types.HealthManager) {
	fc.Health.Store(&health)
}

func (fc *Container) SetMiddlewares(middlewares *middleware.Manager) {
	fc.Middlewares.Store(middlewares)
}

func (fc *Container) SetRouter(r *router.Router) {
	fc.Router.Store(r)
}

func (fc *Container) SetHTTPServer(server types.HTTPServer) {
	fc.HTTPServer.Store(&server)
}
