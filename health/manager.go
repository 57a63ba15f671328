package health

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/saiset-co/sai-router/types"
	"github.com/saiset-co/sai-router/utils"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

type Manager struct {
	ctx          context.Context
	cancel       context.CancelFunc
	config       types.ConfigManager
	healthConfig *types.HealthConfig
	logger       types.Logger
	checkers     map[string]types.HealthChecker
	results      map[string]types.HealthCheck
	startTime    time.Time
	mu           sync.RWMutex
	state        atomic.Value
	checkTimeout time.Duration
}

func NewManager(ctx context.Context, config types.ConfigManager, logger types.Logger) (*Manager, error) {
	healthConfig := config.GetConfig().Health
	if healthConfig == nil {
		healthConfig = &types.HealthConfig{}
	}
	if healthConfig.Path == "" {
		healthConfig.Path = "/health"
	}
	if healthConfig.VersionPath == "" {
		healthConfig.VersionPath = "/version"
	}

	checkTimeout := 5 * time.Second
	if healthConfig.CheckTimeout > 0 {
		checkTimeout = time.Duration(healthConfig.CheckTimeout) * time.Second
	}

	managerCtx, cancel := context.WithCancel(ctx)

	manager := &Manager{
		ctx:          managerCtx,
		cancel:       cancel,
		config:       config,
		healthConfig: healthConfig,
		logger:       logger,
		checkers:     make(map[string]types.HealthChecker),
		results:      make(map[string]types.HealthCheck),
		checkTimeout: checkTimeout,
	}

	manager.state.Store(StateStopped)

	return manager, nil
}

func (hm *Manager) RegisterChecker(name string, checker types.HealthChecker) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	hm.checkers[name] = checker
}

// RegisterComponent reports a lifecycle component healthy while it runs.
func (hm *Manager) RegisterComponent(component types.Component) {
	manager := component.Manager
	hm.RegisterChecker(component.Name, func(context.Context) types.HealthCheck {
		if manager.IsRunning() {
			return types.HealthCheck{Status: types.StatusHealthy}
		}
		return types.HealthCheck{Status: types.StatusUnhealthy, Message: "component is not running"}
	})
}

// Check runs every checker concurrently and stores the results as the
// latest report.
func (hm *Manager) Check(ctx context.Context) types.HealthReport {
	hm.mu.RLock()
	checkers := make(map[string]types.HealthChecker, len(hm.checkers))
	for name, checker := range hm.checkers {
		checkers[name] = checker
	}
	hm.mu.RUnlock()

	checkCtx, cancel := context.WithTimeout(ctx, hm.checkTimeout)
	defer cancel()

	g, gCtx := errgroup.WithContext(checkCtx)
	results := make(map[string]types.HealthCheck, len(checkers))
	var resultMu sync.Mutex

	for name, checker := range checkers {
		name, checker := name, checker
		g.Go(func() error {
			result := hm.executeCheck(gCtx, name, checker)

			resultMu.Lock()
			results[name] = result
			resultMu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		hm.logger.Error("Error during health checks", zap.Error(err))
	}

	hm.mu.Lock()
	hm.results = results
	hm.mu.Unlock()

	return hm.buildReport(results)
}

// LastResults returns the checks of the latest report.
func (hm *Manager) LastResults() map[string]types.HealthCheck {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	results := make(map[string]types.HealthCheck, len(hm.results))
	for name, result := range hm.results {
		results[name] = result
	}
	return results
}

func (hm *Manager) Start() error {
	if !hm.transitionState(StateStopped, StateStarting) {
		hm.logger.Warn("Health manager is already running")
		return types.ErrServiceIsRunning
	}

	hm.startTime = time.Now()
	hm.setState(StateRunning)

	hm.logger.Info("Health manager started",
		zap.String("path", hm.healthConfig.Path),
		zap.String("version_path", hm.healthConfig.VersionPath))
	return nil
}

func (hm *Manager) Stop() error {
	if !hm.transitionState(StateRunning, StateStopping) {
		hm.logger.Warn("Health manager is not running")
		return types.ErrServiceIsNotRunning
	}

	hm.setState(StateStopped)
	hm.cancel()

	hm.logger.Info("Health manager stopped gracefully")
	return nil
}

func (hm *Manager) IsRunning() bool {
	return hm.getState() == StateRunning
}

func (hm *Manager) getState() State {
	return hm.state.Load().(State)
}

func (hm *Manager) setState(newState State) bool {
	currentState := hm.getState()
	return hm.state.CompareAndSwap(currentState, newState)
}

func (hm *Manager) transitionState(from, to State) bool {
	return hm.state.CompareAndSwap(from, to)
}

// Handler answers GET on the health and version paths and passes every
// other request on.
func (hm *Manager) Handler() types.Middleware {
	return types.MiddlewareFunc(func(ctx *types.RequestCtx, next types.Next) error {
		if !ctx.IsGet() {
			return next()
		}

		switch ctx.RawPath() {
		case hm.healthConfig.Path:
			return hm.handleHealth(ctx)
		case hm.healthConfig.VersionPath:
			return hm.handleVersion(ctx)
		default:
			return next()
		}
	})
}

func (hm *Manager) handleVersion(ctx *types.RequestCtx) error {
	if !hm.IsRunning() {
		utils.CreateErrorResponse(ctx, fasthttp.StatusServiceUnavailable, "Service Unavailable", types.ErrHealthIsNotRunning.Error())
		return nil
	}

	config := hm.config.GetConfig()

	return hm.writeJSON(ctx, fasthttp.StatusOK, types.VersionInfo{
		Name:      config.Name,
		Version:   config.Version,
		BuildInfo: getBuildInfo(),
	})
}

func (hm *Manager) handleHealth(ctx *types.RequestCtx) error {
	if !hm.IsRunning() {
		utils.CreateErrorResponse(ctx, fasthttp.StatusServiceUnavailable, "Service Unavailable", types.ErrHealthIsNotRunning.Error())
		return nil
	}

	report := hm.Check(hm.ctx)

	status := fasthttp.StatusOK
	if report.Status == types.StatusUnhealthy {
		status = fasthttp.StatusServiceUnavailable
	}

	return hm.writeJSON(ctx, status, report)
}

func (hm *Manager) writeJSON(ctx *types.RequestCtx, status int, value interface{}) error {
	data, err := utils.Marshal(value)
	if err != nil {
		hm.logger.Error("Failed to encode health response", zap.Error(err))
		return types.WrapError(err, "failed to encode health response")
	}

	ctx.Response.Header.Set("Cache-Control", "no-store")
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	ctx.SetBody(data)
	return nil
}

func (hm *Manager) executeCheck(ctx context.Context, name string, checker types.HealthChecker) types.HealthCheck {
	start := time.Now()

	resultChan := make(chan types.HealthCheck, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultChan <- types.HealthCheck{
					Name:      name,
					Status:    types.StatusUnhealthy,
					Message:   fmt.Sprintf("Health check panicked: %v", r),
					LastCheck: time.Now(),
					Duration:  time.Since(start),
				}
			}
		}()

		result := checker(ctx)
		result.Name = name
		result.LastCheck = time.Now()
		result.Duration = time.Since(start)
		resultChan <- result
	}()

	select {
	case result := <-resultChan:
		return result
	case <-hm.ctx.Done():
		return types.HealthCheck{
			Name:      name,
			Status:    types.StatusUnhealthy,
			Message:   "Health manager shutting down",
			LastCheck: time.Now(),
			Duration:  time.Since(start),
		}
	case <-ctx.Done():
		return types.HealthCheck{
			Name:      name,
			Status:    types.StatusUnhealthy,
			Message:   "Health check timeout",
			LastCheck: time.Now(),
			Duration:  time.Since(start),
		}
	}
}

func (hm *Manager) buildReport(results map[string]types.HealthCheck) types.HealthReport {
	config := hm.config.GetConfig()

	summary := types.HealthSummary{
		Total: len(results),
	}

	overallStatus := types.StatusHealthy
	for _, result := range results {
		switch result.Status {
		case types.StatusHealthy:
			summary.Healthy++
		case types.StatusUnhealthy:
			summary.Unhealthy++
			overallStatus = types.StatusUnhealthy
		default:
			summary.Unknown++
			if overallStatus == types.StatusHealthy {
				overallStatus = types.StatusUnknown
			}
		}
	}

	info := types.ServiceInfo{
		Name:    config.Name,
		Version: config.Version,
	}
	if config.Server != nil && config.Server.HTTP != nil {
		info.Host = config.Server.HTTP.Host
		info.Port = config.Server.HTTP.Port
	}

	return types.HealthReport{
		Status:    overallStatus,
		Timestamp: time.Now(),
		Uptime:    time.Since(hm.startTime),
		Service:   info,
		Checks:    results,
		Summary:   summary,
	}
}
