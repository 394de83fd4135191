// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/shiraai/pkg/commons"
)

//go:embed sql/*.sql
var schema embed.FS

type Migrator struct {
	m      *migrate.Migrate
	logger commons.Logger
}

// NewMigrator binds the embedded schema to an open database. driver is the
// configured database driver, postgres or sqlite.
func NewMigrator(driver string, db *sql.DB, logger commons.Logger) (*Migrator, error) {
	src, err := iofs.New(schema, "sql")
	if err != nil {
		return nil, fmt.Errorf("load embedded migrations: %w", err)
	}

	var (
		target database.Driver
		name   string
	)
	switch driver {
	case "sqlite":
		name = "sqlite3"
		target, err = sqlite3.WithInstance(db, &sqlite3.Config{})
	default:
		name = "postgres"
		target, err = postgres.WithInstance(db, &postgres.Config{})
	}
	if err != nil {
		return nil, fmt.Errorf("init %s migration driver: %w", name, err)
	}

	m, err := migrate.NewWithInstance("iofs", src, name, target)
	if err != nil {
		return nil, fmt.Errorf("init migrator: %w", err)
	}
	return &Migrator{m: m, logger: logger}, nil
}

func (mg *Migrator) Up() error {
	if err := mg.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	mg.logVersion()
	return nil
}

func (mg *Migrator) Down() error {
	if err := mg.m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate down: %w", err)
	}
	mg.logVersion()
	return nil
}

// Version returns the applied schema version, zero when nothing is applied.
func (mg *Migrator) Version() (uint, bool, error) {
	v, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

func (mg *Migrator) logVersion() {
	v, dirty, err := mg.Version()
	if err != nil {
		mg.logger.Warnf("unable to read schema version: %v", err)
		return
	}
	mg.logger.Infof("schema at version %d (dirty=%t)", v, dirty)
}
