package sai

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/saiset-co/sai-router/config"
	"github.com/saiset-co/sai-router/router"
)

func TestContainer(t *testing.T) {
	container := InitContainer()
	SetContainer(container)

	assert.PanicsWithValue(t, "ConfigManager not initialized", func() { Config() })
	assert.PanicsWithValue(t, "Router not initialized", func() { Router() })
	assert.Nil(t, Metrics())
	assert.Nil(t, Health())

	cfg := config.NewStatic(nil, nil)
	r := router.NewRouter()
	container.SetConfig(cfg)
	container.SetRouter(r)

	assert.Same(t, cfg, Config())
	assert.Same(t, r, Router())
}
