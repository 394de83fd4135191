package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shiraai/pkg/connectors"
	"github.com/shiraai/pkg/migrations"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|version]",
		Short:     "Apply or roll back the conversation schema",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			app := &AppRunner{}
			if err := app.ResolveConfig(); err != nil {
				return err
			}
			if err := app.Logging(); err != nil {
				return err
			}
			defer app.Logger.Sync()
			return runMigration(cmd.Context(), app, args[0])
		},
	}
}

// runMigration opens its own database handle when the app is not
// initialised yet.
func runMigration(ctx context.Context, app *AppRunner, direction string) error {
	postgres := app.Postgres
	if postgres == nil {
		postgres = connectors.NewPostgresConnector(&app.Cfg.PostgresConfig, app.Logger)
		if err := postgres.Connect(ctx); err != nil {
			return err
		}
		defer postgres.Disconnect(ctx)
	}
	sqlDB, err := postgres.DB(ctx).DB()
	if err != nil {
		return fmt.Errorf("failed to get sql handle: %w", err)
	}
	migrator, err := migrations.NewMigrator(app.Cfg.PostgresConfig.Driver, sqlDB, app.Logger)
	if err != nil {
		return err
	}

	switch direction {
	case "up":
		return migrator.Up()
	case "down":
		return migrator.Down()
	default:
		v, dirty, err := migrator.Version()
		if err != nil {
			return err
		}
		fmt.Printf("version %d dirty=%t\n", v, dirty)
		return nil
	}
}
