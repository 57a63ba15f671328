package config

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/saiset-co/sai-router/types"
)

const (
	EnvDeploymentMode = "DEPLOYMENT_MODE"
	EnvHost           = "HOST"
	EnvPort           = "PORT"
)

type Loader struct {
	validator   *validator.Validate
	lookupEnv   func(string) (string, bool)
	readTimeout time.Duration
}

func NewLoader() *Loader {
	return &Loader{
		validator:   validator.New(validator.WithRequiredStructEnabled()),
		lookupEnv:   os.LookupEnv,
		readTimeout: 30 * time.Second,
	}
}

// LoadFromFile reads the base file, overlays the file for the active
// deployment mode (appsettings.yaml -> appsettings.production.yaml) when it
// exists, then applies environment overrides. It returns the typed config
// and the merged raw tree for dot-path lookups.
func (l *Loader) LoadFromFile(ctx context.Context, configPath string) (*types.ServiceConfig, map[string]interface{}, error) {
	if configPath == "" {
		return nil, nil, types.ErrConfigNotFound
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, nil, types.Errorf(types.ErrConfigNotFound, "file not found: %s", configPath)
	}

	raw, err := l.readYAML(ctx, configPath)
	if err != nil {
		return nil, nil, err
	}

	mode := l.deploymentMode(raw)

	overlayPath := ModeFilePath(configPath, mode)
	if _, err = os.Stat(overlayPath); err == nil {
		overlay, err := l.readYAML(ctx, overlayPath)
		if err != nil {
			return nil, nil, err
		}
		mergeMaps(raw, overlay)
	}

	raw["deployment_mode"] = mode

	if err = l.applyEnv(raw); err != nil {
		return nil, nil, err
	}

	config := l.Defaults()
	if err = remarshal(raw, config); err != nil {
		return nil, nil, types.WrapError(err, "failed to parse YAML config")
	}

	if err = l.validator.Struct(config); err != nil {
		return nil, nil, types.Errorf(types.ErrConfigValidateFailed, "%v", err)
	}

	typed := make(map[string]interface{})
	if err = remarshal(config, &typed); err != nil {
		return nil, nil, types.WrapError(err, "failed to flatten config")
	}
	mergeMaps(raw, typed)

	return config, raw, nil
}

func (l *Loader) ReadFileWithTimeout(ctx context.Context, filepath string) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}

	resultChan := make(chan result, 1)

	go func() {
		data, err := os.ReadFile(filepath)
		resultChan <- result{data: data, err: err}
	}()

	select {
	case res := <-resultChan:
		return res.data, res.err
	case <-ctx.Done():
		return nil, types.WrapError(ctx.Err(), "file read timeout")
	}
}

func (l *Loader) readYAML(ctx context.Context, path string) (map[string]interface{}, error) {
	readCtx, cancel := context.WithTimeout(ctx, l.readTimeout)
	defer cancel()

	data, err := l.ReadFileWithTimeout(readCtx, path)
	if err != nil {
		return nil, types.WrapError(err, "failed to read config file "+path)
	}

	raw := make(map[string]interface{})
	if err = yaml.Unmarshal(data, &raw); err != nil {
		return nil, types.Errorf(types.ErrConfigParseFailed, "%s: %v", path, err)
	}

	return raw, nil
}

func (l *Loader) deploymentMode(raw map[string]interface{}) string {
	if mode, ok := l.lookupEnv(EnvDeploymentMode); ok && mode != "" {
		return mode
	}

	if mode, ok := raw["deployment_mode"].(string); ok && mode != "" {
		return mode
	}

	return types.DeploymentDevelopment
}

func (l *Loader) applyEnv(raw map[string]interface{}) error {
	host, hasHost := l.lookupEnv(EnvHost)
	port, hasPort := l.lookupEnv(EnvPort)

	if !hasHost && !hasPort {
		return nil
	}

	httpSection := ensureMap(ensureMap(raw, "server"), "http")

	if hasHost && host != "" {
		httpSection["host"] = stripScheme(host)
	}

	if hasPort && port != "" {
		value, err := strconv.Atoi(port)
		if err != nil {
			return types.Errorf(types.ErrConfigParseFailed, "%s=%q is not a number", EnvPort, port)
		}
		httpSection["port"] = value
	}

	return nil
}

func (l *Loader) Defaults() *types.ServiceConfig {
	return &types.ServiceConfig{
		Name:           "sai-router",
		Version:        "1.0.0",
		DeploymentMode: types.DeploymentDevelopment,
		Server: &types.ServerConfig{
			HTTP: &types.HTTPConfig{
				Host:               "127.0.0.1",
				Port:               5000,
				ReadTimeout:        30,
				WriteTimeout:       30,
				IdleTimeout:        120,
				ShutdownTimeout:    10,
				MaxRequestBodySize: 4 * 1024 * 1024,
			},
			TLS: &types.TLSConfig{
				Enabled: false,
			},
		},
		Logger: &types.LoggerConfig{
			Level: "info",
		},
		Metrics: &types.MetricsConfig{
			Enabled:         false,
			Namespace:       "sai_router",
			Path:            "/metrics",
			EnableGoMetrics: true,
		},
		Health: &types.HealthConfig{
			Enabled:      true,
			Path:         "/health",
			VersionPath:  "/version",
			CheckTimeout: 5,
		},
		Middlewares: &types.MiddlewaresConfig{
			Recovery: &types.MiddlewareItemConfig{
				Enabled: true,
				Params: map[string]interface{}{
					"stack_trace": true,
				},
			},
			Logging: &types.MiddlewareItemConfig{
				Enabled: true,
				Params: map[string]interface{}{
					"log_level":   "info",
					"log_headers": false,
				},
			},
			CORS: &types.MiddlewareItemConfig{
				Enabled: true,
				Params: map[string]interface{}{
					"allowed_origins": "",
					"allowed_methods": []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
					"allowed_headers": []string{"Content-Type", "Authorization", "X-Request-Id"},
					"max_age":         86400,
				},
			},
			BodyLimit: &types.MiddlewareItemConfig{
				Enabled: false,
				Params: map[string]interface{}{
					"max_body_size": 10485760,
				},
			},
			Compression: &types.MiddlewareItemConfig{
				Enabled: false,
				Params: map[string]interface{}{
					"level":     6,
					"threshold": 1024,
				},
			},
			RateLimit: &types.MiddlewareItemConfig{
				Enabled: false,
				Params: map[string]interface{}{
					"requests_per_second": 50,
					"burst":               100,
				},
			},
			Static: &types.MiddlewareItemConfig{
				Enabled: false,
				Params: map[string]interface{}{
					"dir": "public",
				},
			},
			Metrics: &types.MiddlewareItemConfig{
				Enabled: false,
			},
		},
	}
}

// ModeFilePath inserts the deployment mode before the extension.
func ModeFilePath(configPath, mode string) string {
	ext := filepath.Ext(configPath)
	return strings.TrimSuffix(configPath, ext) + "." + mode + ext
}

func stripScheme(host string) string {
	for _, prefix := range []string{"http://", "https://"} {
		host = strings.TrimPrefix(host, prefix)
	}
	return strings.TrimSuffix(host, "/")
}

func remarshal(in interface{}, out interface{}) error {
	data, err := yaml.Marshal(in)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, out)
}

func ensureMap(parent map[string]interface{}, key string) map[string]interface{} {
	if child, ok := parent[key].(map[string]interface{}); ok {
		return child
	}
	child := make(map[string]interface{})
	parent[key] = child
	return child
}

// mergeMaps copies src into dst, descending into nested maps.
func mergeMaps(dst, src map[string]interface{}) {
	for key, value := range src {
		srcMap, srcIsMap := value.(map[string]interface{})
		dstMap, dstIsMap := dst[key].(map[string]interface{})

		if srcIsMap && dstIsMap {
			mergeMaps(dstMap, srcMap)
			continue
		}

		dst[key] = value
	}
}
