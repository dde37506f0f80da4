package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/robalyx/chopper/internal/database/migrations"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/extra/bunotel"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// MemoryDir makes the SQLite opener keep every guild in its own in-memory database.
const MemoryDir = ":memory:"

// partitionFileSuffix is appended to the guild id to name a partition file.
const partitionFileSuffix = "_birthday_data.db"

// SQLiteOpener stores every guild in its own SQLite file.
type SQLiteOpener struct {
	dir         string
	busyTimeout int
	autoMigrate bool
	logger      *zap.Logger
}

// NewSQLiteOpener creates an opener for guild files inside dir.
func NewSQLiteOpener(dir string, busyTimeout int, autoMigrate bool, logger *zap.Logger) *SQLiteOpener {
	return &SQLiteOpener{
		dir:         dir,
		busyTimeout: busyTimeout,
		autoMigrate: autoMigrate,
		logger:      logger,
	}
}

// Open opens and migrates the database file of a guild.
func (o *SQLiteOpener) Open(ctx context.Context, guildID uint64) (*bun.DB, error) {
	dsn := MemoryDir
	if o.dir != MemoryDir {
		if err := os.MkdirAll(o.dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}

		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)",
			PartitionPath(o.dir, guildID), o.busyTimeout)
	}

	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// One connection keeps in-memory databases alive and writers serialized
	sqldb.SetMaxOpenConns(1)
	sqldb.SetConnMaxLifetime(0)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	db.AddQueryHook(NewHook(o.logger))
	db.AddQueryHook(bunotel.NewQueryHook(bunotel.WithDBName("guild_" + strconv.FormatUint(guildID, 10))))

	if o.autoMigrate {
		if err := runMigrations(ctx, db, o.logger.With(zap.Uint64("guildID", guildID))); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return db, nil
}

// Shared reports false; every guild has its own file.
func (o *SQLiteOpener) Shared() bool {
	return false
}

// Guilds lists the guilds that already have a database file.
func (o *SQLiteOpener) Guilds() ([]uint64, error) {
	if o.dir == MemoryDir {
		return nil, nil
	}

	matches, err := filepath.Glob(filepath.Join(o.dir, "*"+partitionFileSuffix))
	if err != nil {
		return nil, fmt.Errorf("failed to list partitions: %w", err)
	}

	guilds := make([]uint64, 0, len(matches))
	for _, match := range matches {
		name := strings.TrimSuffix(filepath.Base(match), partitionFileSuffix)

		guildID, err := strconv.ParseUint(name, 10, 64)
		if err != nil {
			o.logger.Warn("Skipping unrecognized partition file", zap.String("path", match))
			continue
		}

		guilds = append(guilds, guildID)
	}

	return guilds, nil
}

// PartitionPath returns the database file of a guild inside dir.
func PartitionPath(dir string, guildID uint64) string {
	return filepath.Join(dir, strconv.FormatUint(guildID, 10)+partitionFileSuffix)
}

// sharedOpener hands every guild the same PostgreSQL database.
type sharedOpener struct {
	db *bun.DB
}

func (o *sharedOpener) Open(context.Context, uint64) (*bun.DB, error) {
	return o.db, nil
}

func (o *sharedOpener) Shared() bool {
	return true
}

// runMigrations applies every pending migration to db.
func runMigrations(ctx context.Context, db *bun.DB, logger *zap.Logger) error {
	migrator := migrate.NewMigrator(db, migrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if !group.IsZero() {
		logger.Info("Automatically ran migrations", zap.String("group", group.String()))
	}

	return nil
}
