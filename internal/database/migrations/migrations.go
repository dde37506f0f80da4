package migrations

import "github.com/uptrace/bun/migrate"

// Migrations holds every schema migration, applied to each guild partition
// or once to the shared database.
var Migrations = migrate.NewMigrations()
