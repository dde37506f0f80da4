package setup

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robalyx/chopper/internal/database"
	"github.com/robalyx/chopper/internal/redis"
	"github.com/robalyx/chopper/internal/setup/config"
	"github.com/robalyx/chopper/internal/setup/telemetry"
	"github.com/robalyx/chopper/internal/verification"
	"go.uber.org/zap"
)

// leaseMargin keeps a Redis session lease alive past the session's own deadline.
const leaseMargin = time.Minute

// App bundles all core dependencies and services needed by the application.
// Each field represents a major subsystem that needs initialization and cleanup.
type App struct {
	Config       *config.Config        // Application configuration
	Logger       *zap.Logger           // Main application logger
	DBLogger     *zap.Logger           // Database-specific logger
	DB           database.Client       // Record store
	RedisManager *redis.Manager        // Redis connection manager
	Registry     verification.Registry // Active verification sessions
	LogManager   *telemetry.Manager    // Log management system
	redisLeases  *verification.RedisRegistry
	shutdownOtel func(context.Context)
}

// InitializeApp bootstraps all application dependencies in the correct order,
// ensuring each component has its required dependencies available.
func InitializeApp(ctx context.Context, serviceType telemetry.ServiceType, logDir string) (*App, error) {
	// Load app configuration
	cfg, _, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	// Logging system is initialized next to capture setup issues
	logManager := telemetry.NewManager(serviceType, logDir, &cfg.Common.Debug)

	logger, dbLogger, err := logManager.GetLoggers()
	if err != nil {
		return nil, err
	}

	shutdownOtel := telemetry.SetupTracing(&cfg.Common.Telemetry, serviceType, logger)

	// Redis manager provides connection pools for various subsystems
	redisManager := redis.NewManager(&cfg.Common.Redis, logger)

	db, err := database.NewConnection(ctx, &cfg.Common.Storage, dbLogger, true)
	if err != nil {
		redisManager.Close()
		shutdownOtel(ctx)
		logManager.Close()

		return nil, err
	}

	app := &App{
		Config:       cfg,
		Logger:       logger,
		DBLogger:     dbLogger.Named("database"),
		DB:           db,
		RedisManager: redisManager,
		LogManager:   logManager,
		shutdownOtel: shutdownOtel,
	}

	if err := app.initRegistry(); err != nil {
		app.Cleanup(ctx)
		return nil, err
	}

	return app, nil
}

// initRegistry creates the session registry selected in the configuration.
func (s *App) initRegistry() error {
	verificationCfg := s.Config.Bot.Verification

	if verificationCfg.Registry != config.RegistryRedis {
		s.Registry = verification.NewMemoryRegistry()
		return nil
	}

	client, err := s.RedisManager.GetClient(redis.SessionDBIndex)
	if err != nil {
		return fmt.Errorf("failed to get session registry client: %w", err)
	}

	ttl := verificationCfg.Timeout() + verificationCfg.Grace() + leaseMargin
	s.redisLeases = verification.NewRedisRegistry(client, s.LogManager.GetInstanceID(), ttl, s.Logger)
	s.Registry = s.redisLeases

	s.Logger.Info("Using shared session registry", zap.Duration("leaseTTL", ttl))

	return nil
}

// Cleanup ensures graceful shutdown of all components in reverse initialization order.
// Logs but does not fail on cleanup errors to ensure all components get cleanup attempts.
func (s *App) Cleanup(ctx context.Context) {
	// Release session leases so other processes can take over members immediately
	if s.redisLeases != nil {
		if err := s.redisLeases.Close(ctx); err != nil {
			s.Logger.Error("Failed to release session leases", zap.Error(err))
		}
	}

	// Close database connections
	if err := s.DB.Close(); err != nil {
		log.Printf("Failed to close database connection: %v", err)
	}

	// Close Redis connections after the registry no longer needs them
	s.RedisManager.Close()

	// Flush pending spans
	s.shutdownOtel(ctx)

	// Sync buffered logs before shutdown
	if err := s.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	if err := s.DBLogger.Sync(); err != nil {
		log.Printf("Failed to sync DB logger: %v", err)
	}

	s.LogManager.Close()
}
