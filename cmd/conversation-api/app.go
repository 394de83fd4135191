// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/shiraai/config"
	"github.com/shiraai/pkg/commons"
	"github.com/shiraai/pkg/connectors"
	"github.com/shiraai/pkg/metrics"
	"github.com/shiraai/pkg/storages"
	storage_files "github.com/shiraai/pkg/storages/file-storage"

	internal_cache "github.com/shiraai/api/conversation-api/cache"
)

// AppRunner owns the process wide dependencies shared by every route.
type AppRunner struct {
	Cfg      *config.AppConfig
	Logger   commons.Logger
	Postgres connectors.PostgresConnector
	Redis    connectors.RedisConnector
	Storage  storages.Storage
	Metrics  *metrics.Metrics
}

func (app *AppRunner) ResolveConfig() error {
	v, err := config.InitConfig()
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := config.GetApplicationConfig(v)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	app.Cfg = cfg
	return nil
}

func (app *AppRunner) Logging() error {
	opts := []commons.LoggerOption{
		commons.Name(app.Cfg.Name),
		commons.Level(app.Cfg.LogLevel),
	}
	if app.Cfg.LogPath != "" {
		opts = append(opts, commons.Path(app.Cfg.LogPath))
	}
	logger, err := commons.NewApplicationLogger(opts...)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	app.Logger = logger
	return nil
}

// Init connects the database. The redis query cache is optional, a
// deployment without redis reads straight from the database.
func (app *AppRunner) Init(ctx context.Context) error {
	app.Postgres = connectors.NewPostgresConnector(&app.Cfg.PostgresConfig, app.Logger)
	if err := app.Postgres.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect %s: %w", app.Postgres.Name(), err)
	}

	app.Redis = connectors.NewRedisConnector(&app.Cfg.RedisConfig, app.Logger)
	if err := app.Redis.Connect(ctx); err != nil {
		app.Logger.Warnf("query cache disabled, redis unavailable: %v", err)
		app.Redis = nil
	} else {
		ttl := time.Duration(app.Cfg.RedisConfig.CacheTTLSeconds) * time.Second
		cacher := internal_cache.NewRedisCacher(app.Redis.GetConnection(), ttl, app.Logger)
		if err := app.Postgres.UseCache(cacher); err != nil {
			return err
		}
	}

	app.Storage = storage_files.NewStorage(app.Cfg.AssetStoreConfig, app.Logger)
	app.Metrics = metrics.NewMetrics()
	return nil
}

func (app *AppRunner) Connectors() []connectors.Connector {
	conns := []connectors.Connector{app.Postgres}
	if app.Redis != nil {
		conns = append(conns, app.Redis)
	}
	return conns
}

func (app *AppRunner) Close(ctx context.Context) {
	for _, c := range app.Connectors() {
		if err := c.Disconnect(ctx); err != nil {
			app.Logger.Errorf("failed to disconnect %s: %v", c.Name(), err)
		}
	}
	app.Logger.Sync()
}
