package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saiset-co/sai-router/types"
)

const baseConfig = `
name: orders
version: 2.1.0
server:
  http:
    host: 0.0.0.0
    port: 8080
logger:
  level: debug
static:
  dir: ./www
cors:
  allowed_origins: "https://a.example;https://b.example"
`

const productionConfig = `
server:
  http:
    port: 9090
logger:
  level: warn
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func testLoader(env map[string]string) *Loader {
	loader := NewLoader()
	loader.lookupEnv = func(key string) (string, bool) {
		value, ok := env[key]
		return value, ok
	}
	return loader
}

func TestLoader_BaseFileWithDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "appsettings.yaml", baseConfig)

	config, raw, err := testLoader(nil).LoadFromFile(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "orders", config.Name)
	assert.Equal(t, types.DeploymentDevelopment, config.DeploymentMode)
	assert.Equal(t, "0.0.0.0", config.Server.HTTP.Host)
	assert.Equal(t, 8080, config.Server.HTTP.Port)
	assert.Equal(t, 30, config.Server.HTTP.ReadTimeout)
	assert.Equal(t, "debug", config.Logger.Level)
	assert.True(t, config.Middlewares.Recovery.IsEnabled())

	assert.Equal(t, "./www", NewParser(raw).GetValue("static.dir", ""))
}

func TestLoader_ModeOverlayAndEnv(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "appsettings.yaml", baseConfig)
	writeFile(t, dir, "appsettings.production.yaml", productionConfig)

	tests := []struct {
		name   string
		env    map[string]string
		host   string
		port   int
		level  string
		isProd bool
	}{
		{
			name:  "development ignores overlay",
			env:   nil,
			host:  "0.0.0.0",
			port:  8080,
			level: "debug",
		},
		{
			name:   "production overlay",
			env:    map[string]string{EnvDeploymentMode: "production"},
			host:   "0.0.0.0",
			port:   9090,
			level:  "warn",
			isProd: true,
		},
		{
			name:   "env wins over files",
			env:    map[string]string{EnvDeploymentMode: "production", EnvHost: "http://127.0.0.2", EnvPort: "7000"},
			host:   "127.0.0.2",
			port:   7000,
			level:  "warn",
			isProd: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cm, err := newManager(context.Background(), path, testLoader(tt.env))
			require.NoError(t, err)

			config := cm.GetConfig()
			assert.Equal(t, tt.host, config.Server.HTTP.Host)
			assert.Equal(t, tt.port, config.Server.HTTP.Port)
			assert.Equal(t, tt.level, config.Logger.Level)
			assert.Equal(t, tt.isProd, cm.IsProduction())
		})
	}
}

func TestLoader_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "appsettings.yaml", baseConfig)
	broken := writeFile(t, dir, "broken.yaml", "server: [unclosed")
	invalid := writeFile(t, dir, "invalid.yaml", "server:\n  http:\n    port: 70000\n")

	_, _, err := testLoader(nil).LoadFromFile(context.Background(), "")
	assert.ErrorIs(t, err, types.ErrConfigNotFound)

	_, _, err = testLoader(nil).LoadFromFile(context.Background(), filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, types.ErrConfigNotFound)

	_, _, err = testLoader(nil).LoadFromFile(context.Background(), broken)
	assert.ErrorIs(t, err, types.ErrConfigParseFailed)

	_, _, err = testLoader(nil).LoadFromFile(context.Background(), invalid)
	assert.ErrorIs(t, err, types.ErrConfigValidateFailed)

	_, _, err = testLoader(map[string]string{EnvPort: "http"}).LoadFromFile(context.Background(), path)
	assert.ErrorIs(t, err, types.ErrConfigParseFailed)
}

func TestManager_TypedGet(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "appsettings.yaml", baseConfig)

	cm, err := newManager(context.Background(), path, testLoader(nil))
	require.NoError(t, err)

	assert.Equal(t, 8080, Get(cm, "server.http.port", 0))
	assert.Equal(t, "https://a.example;https://b.example", Get(cm, "cors.allowed_origins", ""))
	assert.Equal(t, "fallback", Get(cm, "missing.key", "fallback"))
	assert.Equal(t, 5, Get(cm, "static.dir", 5))

	paths, err := cm.GetAllPaths()
	require.NoError(t, err)
	assert.Contains(t, paths, "static.dir")
	assert.Contains(t, paths, "server.http.port")
}

func TestManager_Lifecycle(t *testing.T) {
	t.Parallel()

	cm := NewStatic(nil, nil)

	assert.False(t, cm.IsRunning())
	require.NoError(t, cm.Start())
	assert.True(t, cm.IsRunning())
	assert.ErrorIs(t, cm.Start(), types.ErrServiceIsRunning)
	require.NoError(t, cm.Stop())
	assert.ErrorIs(t, cm.Stop(), types.ErrServiceIsNotRunning)
}

func TestModeFilePath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "conf/appsettings.production.yaml", ModeFilePath("conf/appsettings.yaml", "production"))
	assert.Equal(t, "settings.test", ModeFilePath("settings", "test"))
}
