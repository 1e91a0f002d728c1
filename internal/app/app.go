// Package app assembles the configured pipeline from its adapters.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"PmcReader/internal/cache"
	"PmcReader/internal/config"
	"PmcReader/internal/infrastructure/bundle"
	"PmcReader/internal/infrastructure/eutils"
	"PmcReader/internal/infrastructure/parser"
	"PmcReader/internal/logging"
	"PmcReader/internal/ports"
	"PmcReader/internal/usecase"
)

// App owns the wired pipeline and the resources behind it.
type App struct {
	Pipeline *usecase.Pipeline
	Config   config.Config
	Logger   *slog.Logger

	store *cache.SQLiteStore
}

// New builds the application from configuration. One host limiter
// covers both article fetches and bundle downloads, so the upstream
// rate cap holds across the whole process.
func New(cfg config.Config) (*App, error) {
	logger := logging.New(cfg.Logging.Level)

	if _, err := url.Parse(cfg.Upstream.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid upstream base url: %w", err)
	}

	limiter := eutils.NewHostLimiter(cfg.Upstream.EffectiveRPS())
	client := eutils.NewClient(cfg.Upstream, limiter, logging.Component(logger, "eutils"))
	docParser := parser.NewJatsParser(logging.Component(logger, "parser"))

	var store *cache.SQLiteStore
	var docStore ports.DocumentStore
	if cfg.Cache.SQLitePath != "" {
		s, err := cache.NewSQLiteStore(cfg.Cache.SQLitePath, cfg.Cache.TTL.Std())
		if err != nil {
			return nil, fmt.Errorf("open persistent cache: %w", err)
		}
		store = s
		docStore = s
	}

	docCache := cache.New(cache.Config{
		TTL:         cfg.Cache.TTL.Std(),
		Capacity:    cfg.Cache.Capacity,
		NegativeTTL: cfg.Cache.NegativeTTL.Std(),
	}, docStore, logging.Component(logger, "cache"))

	extractor := bundle.NewExtractor(client, cfg.Upstream.OAURL, cfg.Bundle,
		logging.Component(logger, "bundle"))

	pipeline := usecase.New(client, docParser, docCache, extractor,
		logging.Component(logger, "pipeline"))

	return &App{
		Pipeline: pipeline,
		Config:   cfg,
		Logger:   logger,
		store:    store,
	}, nil
}

// PurgeCache clears the persistent cache store, when one is configured.
func (a *App) PurgeCache(ctx context.Context) error {
	if a.store == nil {
		return nil
	}
	return a.store.Purge(ctx)
}

// Close releases held resources.
func (a *App) Close() error {
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}
