package config

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

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

type Manager struct {
	ctx             context.Context
	cancel          context.CancelFunc
	config          atomic.Pointer[types.ServiceConfig]
	parser          atomic.Pointer[Parser]
	configPath      string
	loader          *Loader
	state           atomic.Value
	mu              sync.RWMutex
	shutdownTimeout time.Duration
	loadTimeout     time.Duration
}

func NewManager(ctx context.Context, configPath string) (*Manager, error) {
	return newManager(ctx, configPath, NewLoader())
}

func newManager(ctx context.Context, configPath string, loader *Loader) (*Manager, error) {
	managerCtx, cancel := context.WithCancel(ctx)

	cm := &Manager{
		ctx:             managerCtx,
		cancel:          cancel,
		configPath:      configPath,
		loader:          loader,
		shutdownTimeout: 10 * time.Second,
		loadTimeout:     30 * time.Second,
	}

	cm.state.Store(StateStopped)

	if err := cm.Load(); err != nil {
		cancel()
		return nil, types.WrapError(err, "failed to load initial configuration")
	}

	return cm, nil
}

// NewStatic wraps an already built config, mostly for tests and embedding.
func NewStatic(config *types.ServiceConfig, raw map[string]interface{}) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	cm := &Manager{
		ctx:             ctx,
		cancel:          cancel,
		loader:          NewLoader(),
		shutdownTimeout: 10 * time.Second,
		loadTimeout:     30 * time.Second,
	}

	if config == nil {
		config = cm.loader.Defaults()
	}

	typed := make(map[string]interface{})
	if err := remarshal(config, &typed); err == nil {
		if raw != nil {
			mergeMaps(typed, raw)
		}
	}

	cm.config.Store(config)
	cm.parser.Store(NewParser(typed))
	cm.state.Store(StateStopped)

	return cm
}

func (cm *Manager) Start() error {
	if !cm.transitionState(StateStopped, StateStarting) {
		return types.ErrServiceIsRunning
	}

	defer func() {
		if cm.getState() == StateStarting {
			cm.setState(StateRunning)
		}
	}()

	return nil
}

func (cm *Manager) Stop() error {
	if !cm.transitionState(StateRunning, StateStopping) {
		return types.ErrServiceIsNotRunning
	}

	defer func() {
		cm.setState(StateStopped)
		cm.cancel()
	}()

	return nil
}

func (cm *Manager) IsRunning() bool {
	return cm.getState() == StateRunning
}

func (cm *Manager) Load() error {
	loadCtx, cancel := context.WithTimeout(cm.ctx, cm.loadTimeout)
	defer cancel()

	g, gCtx := errgroup.WithContext(loadCtx)

	var (
		config *types.ServiceConfig
		raw    map[string]interface{}
	)

	g.Go(func() error {
		select {
		case <-gCtx.Done():
			return gCtx.Err()
		default:
			var err error
			config, raw, err = cm.loader.LoadFromFile(gCtx, cm.configPath)
			if err != nil {
				return types.WrapError(err, "failed to load configuration from file")
			}
			return nil
		}
	})

	if err := g.Wait(); err != nil {
		select {
		case <-loadCtx.Done():
			return types.WrapError(loadCtx.Err(), "configuration load timeout")
		default:
			return err
		}
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.config.Store(config)
	cm.parser.Store(NewParser(raw))

	return nil
}

func (cm *Manager) GetConfig() *types.ServiceConfig {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config.Load()
}

func (cm *Manager) GetValue(path string, defaultValue interface{}) interface{} {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	parser := cm.parser.Load()
	if parser == nil {
		return defaultValue
	}
	return parser.GetValue(path, defaultValue)
}

func (cm *Manager) GetAs(path string, target interface{}) error {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	parser := cm.parser.Load()
	if parser == nil {
		return types.ErrConfigIsNil
	}
	return parser.GetAs(path, target)
}

func (cm *Manager) GetAllPaths() ([]string, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	parser := cm.parser.Load()
	if parser == nil {
		return nil, types.ErrConfigIsNil
	}

	return parser.GetAllPaths()
}

func (cm *Manager) IsProduction() bool {
	config := cm.GetConfig()
	return config != nil && config.DeploymentMode == types.DeploymentProduction
}

func (cm *Manager) getState() State {
	return cm.state.Load().(State)
}

func (cm *Manager) setState(newState State) bool {
	currentState := cm.getState()
	return cm.state.CompareAndSwap(currentState, newState)
}

func (cm *Manager) transitionState(from, to State) bool {
	return cm.state.CompareAndSwap(from, to)
}

// Get reads a typed value at a dot path, falling back to defaultValue when
// the path is missing or holds another type.
func Get[T any](cm types.ConfigManager, path string, defaultValue T) T {
	var target T
	if err := cm.GetAs(path, &target); err != nil {
		return defaultValue
	}
	return target
}
