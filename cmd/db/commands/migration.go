package commands

import (
	"context"

	"github.com/robalyx/chopper/internal/database/migrations"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// MigrationCommands returns all migration-related commands.
// Each command runs against every guild partition, or the shared database.
func MigrationCommands(deps *CLIDependencies) []*cli.Command {
	return []*cli.Command{
		{
			Name:   "migrate",
			Usage:  "Run pending migrations",
			Action: handleMigrate(deps),
		},
		{
			Name:   "rollback",
			Usage:  "Rollback the last migration group",
			Action: handleRollback(deps),
		},
		{
			Name:   "status",
			Usage:  "Show migration status",
			Action: handleStatus(deps),
		},
	}
}

// handleMigrate handles the 'migrate' command.
func handleMigrate(deps *CLIDependencies) cli.ActionFunc {
	return forEachMigrator(deps, func(ctx context.Context, name string, migrator *migrate.Migrator) error {
		if err := migrator.Init(ctx); err != nil {
			return err
		}

		if err := migrator.Lock(ctx); err != nil {
			return err
		}
		defer migrator.Unlock(ctx) //nolint:errcheck // -

		group, err := migrator.Migrate(ctx)
		if err != nil {
			return err
		}

		if group.IsZero() {
			deps.Logger.Info("No new migrations to run (database is up to date)",
				zap.String("database", name))

			return nil
		}

		deps.Logger.Info("Successfully migrated",
			zap.String("database", name),
			zap.String("group", group.String()))

		return nil
	})
}

// handleRollback handles the 'rollback' command.
func handleRollback(deps *CLIDependencies) cli.ActionFunc {
	return forEachMigrator(deps, func(ctx context.Context, name string, migrator *migrate.Migrator) error {
		if err := migrator.Lock(ctx); err != nil {
			return err
		}
		defer migrator.Unlock(ctx) //nolint:errcheck // -

		group, err := migrator.Rollback(ctx)
		if err != nil {
			return err
		}

		if group.IsZero() {
			deps.Logger.Info("No groups to roll back", zap.String("database", name))
			return nil
		}

		deps.Logger.Info("Successfully rolled back",
			zap.String("database", name),
			zap.String("group", group.String()))

		return nil
	})
}

// handleStatus handles the 'status' command.
func handleStatus(deps *CLIDependencies) cli.ActionFunc {
	return forEachMigrator(deps, func(ctx context.Context, name string, migrator *migrate.Migrator) error {
		ms, err := migrator.MigrationsWithStatus(ctx)
		if err != nil {
			return err
		}

		deps.Logger.Info("Migration status",
			zap.String("database", name),
			zap.String("migrations", ms.String()),
			zap.String("unapplied", ms.Unapplied().String()),
			zap.String("last_group", ms.LastGroup().String()))

		return nil
	})
}

// forEachMigrator runs fn with a migrator for every database.
func forEachMigrator(
	deps *CLIDependencies, fn func(ctx context.Context, name string, migrator *migrate.Migrator) error,
) cli.ActionFunc {
	return func(ctx context.Context, _ *cli.Command) error {
		return deps.DB.ForEachDatabase(ctx, func(name string, db *bun.DB) error {
			return fn(ctx, name, migrate.NewMigrator(db, migrations.Migrations))
		})
	}
}
