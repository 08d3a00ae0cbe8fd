// Package handlers provides the HTTP surface for the suggestion service.
package handlers

import (
	"github.com/mlrf/mlrf-suggest/internal/cache"
	"github.com/mlrf/mlrf-suggest/internal/config"
	"github.com/mlrf/mlrf-suggest/internal/registry"
	"github.com/mlrf/mlrf-suggest/internal/rules"
	"github.com/mlrf/mlrf-suggest/internal/serving"
	"github.com/mlrf/mlrf-suggest/internal/store"
	"github.com/mlrf/mlrf-suggest/internal/trainer"
)

// Handlers holds the dependencies shared by every HTTP handler.
type Handlers struct {
	store    *store.Store
	reg      *registry.Registry
	handle   *registry.Handle
	pipeline *serving.Pipeline
	trainer  *trainer.Trainer
	engine   rules.Engine
	cfgStore *config.Store
	cache    *cache.RedisCache // nil means caching is disabled
}

// NewHandlers creates a new Handlers instance. cache may be nil; every
// cache-touching path degrades to "always miss" when it is.
func NewHandlers(
	st *store.Store,
	reg *registry.Registry,
	handle *registry.Handle,
	pipeline *serving.Pipeline,
	tr *trainer.Trainer,
	engine rules.Engine,
	cfgStore *config.Store,
	c *cache.RedisCache,
) *Handlers {
	return &Handlers{
		store:    st,
		reg:      reg,
		handle:   handle,
		pipeline: pipeline,
		trainer:  tr,
		engine:   engine,
		cfgStore: cfgStore,
		cache:    c,
	}
}
