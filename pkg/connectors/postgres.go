// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package connectors

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-gorm/caches/v4"
	"github.com/shiraai/pkg/commons"
	"github.com/shiraai/pkg/configs"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"
)

type PostgresConnector interface {
	Connector
	// DB returns a session bound to ctx.
	DB(ctx context.Context) *gorm.DB
	// CachedDB returns a session whose reads go through the query cache when
	// one was installed with UseCache, otherwise it behaves like DB.
	CachedDB(ctx context.Context) *gorm.DB
	UseCache(cacher caches.Cacher) error
}

type postgresConnector struct {
	cfg    *configs.PostgresConfig
	logger commons.Logger
	db     *gorm.DB
	cached *gorm.DB
}

func NewPostgresConnector(cfg *configs.PostgresConfig, logger commons.Logger) PostgresConnector {
	return &postgresConnector{cfg: cfg, logger: logger}
}

// NewPostgresConnectorWithDB wraps an already opened gorm handle, for callers
// that manage the pool themselves.
func NewPostgresConnectorWithDB(cfg *configs.PostgresConfig, db *gorm.DB, logger commons.Logger) PostgresConnector {
	return &postgresConnector{cfg: cfg, logger: logger, db: db, cached: db}
}

func (c *postgresConnector) dialector(conn gorm.ConnPool) gorm.Dialector {
	switch c.cfg.Driver {
	case "sqlite":
		if conn != nil {
			return sqlite.New(sqlite.Config{Conn: conn})
		}
		return sqlite.Open(c.cfg.DBName)
	default:
		if conn != nil {
			return postgres.New(postgres.Config{Conn: conn})
		}
		return postgres.Open(c.cfg.DSN())
	}
}

func (c *postgresConnector) gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: gorm_logger.Default.LogMode(gorm_logger.Silent),
	}
}

func (c *postgresConnector) Connect(ctx context.Context) error {
	db, err := gorm.Open(c.dialector(nil), c.gormConfig())
	if err != nil {
		return fmt.Errorf("failed to open %s database: %w", c.cfg.Driver, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql handle: %w", err)
	}
	if c.cfg.Driver == "sqlite" {
		// sqlite serialises writers; one connection avoids SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(c.cfg.MaxOpenConnection)
		sqlDB.SetMaxIdleConns(c.cfg.MaxIdealConnection)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping %s database: %w", c.cfg.Driver, err)
	}
	c.db = db
	c.cached = db
	c.logger.Infof("connected to %s", c.Name())
	return nil
}

// UseCache opens a second gorm handle over the same pool with the caches
// plugin installed, so only reads routed through CachedDB are cached.
func (c *postgresConnector) UseCache(cacher caches.Cacher) error {
	if c.db == nil {
		return errors.New("postgres connector is not connected")
	}
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	cached, err := gorm.Open(c.dialector(sqlDB), c.gormConfig())
	if err != nil {
		return fmt.Errorf("failed to open cached session: %w", err)
	}
	if err := cached.Use(&caches.Caches{Conf: &caches.Config{
		Easer:  true,
		Cacher: cacher,
	}}); err != nil {
		return fmt.Errorf("failed to install query cache: %w", err)
	}
	c.cached = cached
	return nil
}

func (c *postgresConnector) DB(ctx context.Context) *gorm.DB {
	return c.db.WithContext(ctx)
}

func (c *postgresConnector) CachedDB(ctx context.Context) *gorm.DB {
	return c.cached.WithContext(ctx)
}

func (c *postgresConnector) Name() string {
	if c.cfg.Driver == "sqlite" {
		return fmt.Sprintf("sqlite://%s", c.cfg.DBName)
	}
	return fmt.Sprintf("postgres://%s:%d/%s", c.cfg.Host, c.cfg.Port, c.cfg.DBName)
}

func (c *postgresConnector) IsConnected(ctx context.Context) bool {
	if c.db == nil {
		return false
	}
	sqlDB, err := c.db.DB()
	if err != nil {
		return false
	}
	return sqlDB.PingContext(ctx) == nil
}

func (c *postgresConnector) Disconnect(ctx context.Context) error {
	if c.db == nil {
		return nil
	}
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	c.logger.Infof("disconnecting %s", c.Name())
	return sqlDB.Close()
}
