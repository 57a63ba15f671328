package logger

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/saiset-co/sai-router/types"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

const FieldComponent = "component"

// Manager owns the process logger. Components get their own child logger
// through Named.
type Manager struct {
	ctx             context.Context
	cancel          context.CancelFunc
	logger          types.Logger
	config          types.ConfigManager
	state           atomic.Value
	shutdownTimeout time.Duration
}

var (
	customLoggerCreators   = make(map[string]types.LoggerCreator)
	customLoggerCreatorsMu sync.RWMutex
)

// RegisterLogger makes a custom backend selectable with logger.type.
func RegisterLogger(loggerName string, creator types.LoggerCreator) {
	customLoggerCreatorsMu.Lock()
	defer customLoggerCreatorsMu.Unlock()
	customLoggerCreators[loggerName] = creator
}

func NewManager(ctx context.Context, config types.ConfigManager) (types.LoggerManager, error) {
	loggerConfig := config.GetConfig().Logger
	if loggerConfig == nil {
		return nil, types.ErrLoggerConfigInvalid
	}

	logger, err := createLogger(loggerConfig)
	if err != nil {
		return nil, types.WrapError(err, "failed to create logger")
	}

	return newManager(ctx, config, logger), nil
}

func newManager(ctx context.Context, config types.ConfigManager, logger types.Logger) *Manager {
	managerCtx, cancel := context.WithCancel(ctx)

	manager := &Manager{
		ctx:             managerCtx,
		cancel:          cancel,
		logger:          logger,
		config:          config,
		shutdownTimeout: 10 * time.Second,
	}

	manager.state.Store(StateStopped)

	return manager
}

func (m *Manager) Start() error {
	if !m.transitionState(StateStopped, StateRunning) {
		return types.ErrServiceIsRunning
	}

	m.logger.Debug("Logger started",
		zap.String("deployment_mode", m.config.GetConfig().DeploymentMode))
	return nil
}

// Stop flushes buffered entries. The logger stays usable afterwards so
// shutdown messages of later components are not lost.
func (m *Manager) Stop() error {
	if !m.transitionState(StateRunning, StateStopping) {
		return types.ErrServiceIsNotRunning
	}

	defer func() {
		m.setState(StateStopped)
		m.cancel()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), m.shutdownTimeout)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		select {
		case <-gCtx.Done():
			return gCtx.Err()
		default:
			if syncer, hasSyncer := m.logger.(interface{ Sync() error }); hasSyncer {
				// stdout and stderr report EINVAL on sync under some platforms
				_ = syncer.Sync()
			}
			return nil
		}
	})

	return g.Wait()
}

func (m *Manager) IsRunning() bool {
	return m.getState() == StateRunning
}

// Named returns a logger tagged with the component name.
func (m *Manager) Named(component string) types.Logger {
	return &componentLogger{logger: m.logger.With(zap.String(FieldComponent, component))}
}

// SetLevel changes the level of the default backend at runtime. Custom
// backends report false.
func (m *Manager) SetLevel(level string) bool {
	if leveler, ok := m.logger.(interface{ SetLevel(string) bool }); ok {
		if leveler.SetLevel(level) {
			m.logger.Info("Log level changed", zap.String("level", ParseLevel(level).String()))
			return true
		}
	}
	return false
}

func (m *Manager) Error(msg string, fields ...zap.Field) {
	m.logger.Error(msg, fields...)
}

func (m *Manager) ErrorWithErrStack(msg string, err error, fields ...zap.Field) {
	m.logger.ErrorWithErrStack(msg, err, fields...)
}

func (m *Manager) Warn(msg string, fields ...zap.Field) {
	m.logger.Warn(msg, fields...)
}

func (m *Manager) Info(msg string, fields ...zap.Field) {
	m.logger.Info(msg, fields...)
}

func (m *Manager) Debug(msg string, fields ...zap.Field) {
	m.logger.Debug(msg, fields...)
}

func (m *Manager) Log(lvl zapcore.Level, msg string, fields ...zap.Field) {
	m.logger.Log(lvl, msg, fields...)
}

func (m *Manager) With(fields ...zap.Field) types.Logger {
	return &componentLogger{logger: m.logger.With(fields...)}
}

func (m *Manager) getState() State {
	return m.state.Load().(State)
}

func (m *Manager) setState(newState State) bool {
	currentState := m.getState()
	return m.state.CompareAndSwap(currentState, newState)
}

func (m *Manager) transitionState(from, to State) bool {
	return m.state.CompareAndSwap(from, to)
}

// componentLogger keeps the call depth equal to the Manager's, so caller
// annotations point at the call site.
type componentLogger struct {
	logger types.Logger
}

func (c *componentLogger) Error(msg string, fields ...zap.Field) {
	c.logger.Error(msg, fields...)
}

func (c *componentLogger) ErrorWithErrStack(msg string, err error, fields ...zap.Field) {
	c.logger.ErrorWithErrStack(msg, err, fields...)
}

func (c *componentLogger) Warn(msg string, fields ...zap.Field) {
	c.logger.Warn(msg, fields...)
}

func (c *componentLogger) Info(msg string, fields ...zap.Field) {
	c.logger.Info(msg, fields...)
}

func (c *componentLogger) Debug(msg string, fields ...zap.Field) {
	c.logger.Debug(msg, fields...)
}

func (c *componentLogger) Log(lvl zapcore.Level, msg string, fields ...zap.Field) {
	c.logger.Log(lvl, msg, fields...)
}

func (c *componentLogger) With(fields ...zap.Field) types.Logger {
	return &componentLogger{logger: c.logger.With(fields...)}
}

func createLogger(loggerConfig *types.LoggerConfig) (types.Logger, error) {
	loggerName := "default"
	if loggerConfig.Type != "" {
		loggerName = loggerConfig.Type
	}

	switch loggerName {
	case "default":
		return NewDefaultLogger(loggerConfig)
	default:
		customLoggerCreatorsMu.RLock()
		creator, exists := customLoggerCreators[loggerName]
		customLoggerCreatorsMu.RUnlock()

		if !exists {
			return nil, types.Errorf(types.ErrLoggerTypeUnknown, "logger type: %s", loggerName)
		}
		return creator(loggerConfig.Config)
	}
}
