package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/bytedance/sonic"
	"github.com/robalyx/chopper/internal/database/partition"
	"github.com/robalyx/chopper/internal/setup/config"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bunjson"
	"github.com/uptrace/bun/extra/bunotel"
	"go.uber.org/zap"
)

// sonicProvider is a JSON provider that uses Sonic for encoding and decoding.
type sonicProvider struct{}

func (sonicProvider) Marshal(v any) ([]byte, error) {
	return sonic.Marshal(v)
}

func (sonicProvider) Unmarshal(data []byte, v any) error {
	return sonic.Unmarshal(data, v)
}

func (sonicProvider) NewEncoder(w io.Writer) bunjson.Encoder {
	return sonic.ConfigDefault.NewEncoder(w)
}

func (sonicProvider) NewDecoder(r io.Reader) bunjson.Decoder {
	return sonic.ConfigDefault.NewDecoder(r)
}

// Client defines the methods that a database client must implement.
type Client interface {
	// Model returns the repository containing all model operations.
	Model() *Repository
	// ForEachDatabase calls fn with every physical database: each existing guild
	// file for SQLite, or the shared database for PostgreSQL.
	ForEachDatabase(ctx context.Context, fn func(name string, db *bun.DB) error) error
	// Close gracefully shuts down every database connection.
	Close() error
}

// clientImpl represents the concrete implementation of the database client.
type clientImpl struct {
	partitions *partition.Manager
	sqlite     *SQLiteOpener
	shared     *bun.DB
	logger     *zap.Logger
	repo       *Repository
}

// NewConnection opens the record store described by the storage config.
// With autoMigrate set, every database is migrated before first use.
func NewConnection(
	ctx context.Context, cfg *config.Storage, logger *zap.Logger, autoMigrate bool,
) (Client, error) {
	bunjson.SetProvider(sonicProvider{})

	switch cfg.Backend {
	case config.StorageSQLite:
		opener := NewSQLiteOpener(cfg.SQLite.Dir, cfg.SQLite.BusyTimeout, autoMigrate, logger)
		logger.Info("Using per-guild SQLite storage", zap.String("dir", cfg.SQLite.Dir))

		return newClient(opener, opener, nil, logger), nil
	case config.StoragePostgres:
		db, err := openPostgres(ctx, &cfg.PostgreSQL, logger, autoMigrate)
		if err != nil {
			return nil, err
		}

		logger.Info("Database connection established")

		return newClient(&sharedOpener{db: db}, nil, db, logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidStorageBackend, cfg.Backend)
	}
}

// NewMemoryClient creates a client keeping every guild in its own in-memory SQLite database.
func NewMemoryClient(logger *zap.Logger) Client {
	opener := NewSQLiteOpener(MemoryDir, 0, true, logger)
	return newClient(opener, opener, nil, logger)
}

func newClient(opener partition.Opener, sqlite *SQLiteOpener, shared *bun.DB, logger *zap.Logger) *clientImpl {
	partitions := partition.NewManager(opener, logger)

	return &clientImpl{
		partitions: partitions,
		sqlite:     sqlite,
		shared:     shared,
		logger:     logger,
		repo:       NewRepository(partitions, logger),
	}
}

// openPostgres connects to the shared PostgreSQL database.
func openPostgres(ctx context.Context, cfg *config.PostgreSQL, logger *zap.Logger, autoMigrate bool) (*bun.DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithAddr(fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)),
		pgdriver.WithUser(cfg.User),
		pgdriver.WithPassword(cfg.Password),
		pgdriver.WithDatabase(cfg.DBName),
		pgdriver.WithInsecure(true),
		pgdriver.WithApplicationName("chopper"),
	))

	// Set connection pool settings
	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Minute)
	sqldb.SetConnMaxIdleTime(time.Duration(cfg.MaxIdleTime) * time.Minute)

	db := bun.NewDB(sqldb, pgdialect.New())
	db.AddQueryHook(NewHook(logger))
	db.AddQueryHook(bunotel.NewQueryHook(bunotel.WithDBName(cfg.DBName)))

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if autoMigrate {
		if err := runMigrations(ctx, db, logger); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return db, nil
}

// Model returns the repository containing all model operations.
func (c *clientImpl) Model() *Repository {
	return c.repo
}

// ForEachDatabase calls fn with every physical database.
func (c *clientImpl) ForEachDatabase(ctx context.Context, fn func(name string, db *bun.DB) error) error {
	if c.shared != nil {
		return fn("shared", c.shared)
	}

	guilds, err := c.sqlite.Guilds()
	if err != nil {
		return err
	}

	for _, guildID := range guilds {
		p, err := c.partitions.Get(ctx, guildID)
		if err != nil {
			return err
		}

		if err := fn(fmt.Sprintf("guild %d", guildID), p.DB()); err != nil {
			return err
		}
	}

	return nil
}

// Close gracefully shuts down every database connection.
func (c *clientImpl) Close() error {
	err := c.partitions.Close()
	if c.shared != nil {
		err = errors.Join(err, c.shared.Close())
	}

	if err != nil {
		c.logger.Error("Failed to close database connection", zap.Error(err))
		return err
	}

	c.logger.Info("Database connection closed")

	return nil
}
