package middleware

import (
	"context"

	"go.uber.org/zap"

	"github.com/saiset-co/sai-router/types"
	"github.com/saiset-co/sai-router/utils"
)

// Entry is one configured collaborator in chain order.
type Entry struct {
	Name       string
	Middleware types.Middleware
}

// Manager turns the middlewares section of the config into an ordered list
// of collaborators ready for Router.Use.
type Manager struct {
	ctx     context.Context
	config  types.ConfigManager
	logger  types.Logger
	metrics types.MetricsManager
	entries []Entry
}

// NewManager builds every enabled collaborator. metrics may be nil, in which
// case the metrics collaborator is skipped even when enabled.
func NewManager(ctx context.Context, config types.ConfigManager, logger types.Logger, metrics types.MetricsManager) (*Manager, error) {
	m := &Manager{
		ctx:     ctx,
		config:  config,
		logger:  logger,
		metrics: metrics,
	}

	if err := m.registerMiddlewares(); err != nil {
		return nil, err
	}

	return m, nil
}

// Order: logging and metrics observe the final status, so they sit outside
// recovery; static files are tried last, right before the routes.
func (m *Manager) registerMiddlewares() error {
	middlewares := m.config.GetConfig().Middlewares
	if middlewares == nil {
		return nil
	}

	if middlewares.Logging.IsEnabled() {
		m.register("logging", NewLoggingMiddleware(m.config, m.logger))
	}

	if middlewares.Metrics.IsEnabled() && m.metrics != nil {
		m.register("metrics", NewMetricsMiddleware(m.metrics))
	}

	if middlewares.Recovery.IsEnabled() {
		m.register("recovery", NewRecoveryMiddleware(m.config, m.logger, m.metrics))
	}

	if middlewares.CORS.IsEnabled() {
		m.register("cors", NewCORSMiddleware(m.config, m.logger))
	}

	if middlewares.RateLimit.IsEnabled() {
		m.register("rate_limit", NewRateLimitMiddleware(m.ctx, m.config, m.logger, m.metrics))
	}

	if middlewares.BodyLimit.IsEnabled() {
		m.register("body_limit", NewBodyLimitMiddleware(m.config, m.logger))
	}

	if middlewares.Compression.IsEnabled() {
		m.register("compression", NewCompressionMiddleware(m.config, m.logger))
	}

	if middlewares.Static.IsEnabled() {
		static, err := NewStaticMiddleware(m.config, m.logger)
		if err != nil {
			return types.WrapError(err, "failed to create static middleware")
		}
		m.register("static", static)
	}

	return nil
}

func (m *Manager) register(name string, mw types.Middleware) {
	m.entries = append(m.entries, Entry{Name: name, Middleware: mw})
	m.logger.Info("Middleware registered", zap.String("name", name))
}

func (m *Manager) Entries() []Entry {
	return append([]Entry(nil), m.entries...)
}

func (m *Manager) Names() []string {
	names := make([]string, len(m.entries))
	for i, entry := range m.entries {
		names[i] = entry.Name
	}
	return names
}

func (m *Manager) Middlewares() []types.Middleware {
	middlewares := make([]types.Middleware, len(m.entries))
	for i, entry := range m.entries {
		middlewares[i] = entry.Middleware
	}
	return middlewares
}

func decodeParams[T any](item *types.MiddlewareItemConfig, target *T, logger types.Logger, name string) {
	if item == nil || item.Params == nil {
		return
	}

	if err := utils.UnmarshalConfig(item.Params, target); err != nil {
		logger.Error("Failed to unmarshal "+name+" middleware config", zap.Error(err))
	}
}
