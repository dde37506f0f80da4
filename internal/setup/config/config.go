package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var (
	ErrConfigFileNotFound    = errors.New("could not find config file in any config path")
	ErrConfigVersionMissing  = errors.New("config file is missing version field")
	ErrConfigVersionMismatch = errors.New("config file version mismatch")
	ErrInvalidStorageBackend = errors.New("invalid storage backend")
	ErrInvalidRegistry       = errors.New("invalid session registry backend")
)

// RepositoryVersion is the repository version tag for config file references.
const RepositoryVersion = "v1.0.0"

// Current version of the config file.
const (
	CurrentCommonVersion = 1
	CurrentBotVersion    = 1
)

// Storage backends.
const (
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Session registry backends.
const (
	RegistryMemory = "memory"
	RegistryRedis  = "redis"
)

// Config represents the entire application configuration.
type Config struct {
	Common CommonConfig `koanf:"common"`
	Bot    BotConfig    `koanf:"bot"`
}

// CommonConfig contains configuration shared between the bot and the db tool.
type CommonConfig struct {
	// Version of the common config.
	Version   int       `koanf:"version"`
	Debug     Debug     `koanf:"debug"`
	Storage   Storage   `koanf:"storage"`
	Redis     Redis     `koanf:"redis"`
	Telemetry Telemetry `koanf:"telemetry"`
}

// BotConfig contains Discord bot specific configuration.
type BotConfig struct {
	// Version of the bot config.
	Version int `koanf:"version"`
	// Discord configuration.
	Discord Discord `koanf:"discord"`
	// Verification workflow configuration.
	Verification Verification `koanf:"verification"`
}

// Debug contains debug-related configuration.
type Debug struct {
	// Log level (debug, info, warn, error).
	LogLevel string `koanf:"log_level"`
	// Maximum log sessions to keep.
	MaxLogsToKeep int `koanf:"max_logs_to_keep"`
	// Maximum lines per log file.
	MaxLogLines int `koanf:"max_log_lines"`
	// Also write logs to stdout.
	Console bool `koanf:"console"`
}

// Storage contains record store configuration.
type Storage struct {
	// Backend is either "sqlite" (one file per guild) or "postgres" (shared database).
	Backend string `koanf:"backend"`
	// SQLite partition configuration.
	SQLite SQLite `koanf:"sqlite"`
	// PostgreSQL connection configuration.
	PostgreSQL PostgreSQL `koanf:"postgresql"`
}

// SQLite contains per-guild SQLite partition configuration.
type SQLite struct {
	// Directory holding the guild database files (":memory:" for ephemeral storage).
	Dir string `koanf:"dir"`
	// Busy timeout in milliseconds.
	BusyTimeout int `koanf:"busy_timeout"`
}

// PostgreSQL contains database connection configuration.
type PostgreSQL struct {
	// Database hostname.
	Host string `koanf:"host"`
	// Database port.
	Port int `koanf:"port"`
	// Database username.
	User string `koanf:"user"`
	// Database password.
	Password string `koanf:"password"`
	// Database name.
	DBName string `koanf:"db_name"`
	// Maximum open connections.
	MaxOpenConns int `koanf:"max_open_conns"`
	// Maximum idle connections.
	MaxIdleConns int `koanf:"max_idle_conns"`
	// Connection lifetime in minutes.
	MaxLifetime int `koanf:"max_lifetime"`
	// Idle timeout in minutes.
	MaxIdleTime int `koanf:"max_idle_time"`
}

// Redis contains Redis connection configuration.
type Redis struct {
	// Redis hostname.
	Host string `koanf:"host"`
	// Redis port.
	Port int `koanf:"port"`
	// Redis username.
	Username string `koanf:"username"`
	// Redis password.
	Password string `koanf:"password"`
}

// Telemetry contains tracing configuration.
type Telemetry struct {
	// Uptrace DSN; tracing is disabled when empty.
	UptraceDSN string `koanf:"uptrace_dsn"`
	// Deployment environment reported with traces.
	Environment string `koanf:"environment"`
}

// Discord contains Discord bot configuration.
type Discord struct {
	// Discord bot token for authentication.
	Token string `koanf:"token"`
}

// Verification contains the age verification workflow settings.
type Verification struct {
	// Seconds a new member has to submit a birth date.
	TimeoutSeconds int `koanf:"timeout_seconds"`
	// Seconds to wait before deleting the verification channel after a decision.
	GraceSeconds int `koanf:"grace_seconds"`
	// Months short of 18 that are still accepted.
	ToleranceMonths int `koanf:"tolerance_months"`
	// Name of the role that can see verification channels.
	ModeratorRole string `koanf:"moderator_role"`
	// Name of the private verification channel.
	ChannelName string `koanf:"channel_name"`
	// Session registry backend ("memory" or "redis").
	Registry string `koanf:"registry"`
}

// Timeout returns the verification window.
func (v Verification) Timeout() time.Duration {
	return time.Duration(v.TimeoutSeconds) * time.Second
}

// Grace returns the delay before a finished session's channel is deleted.
func (v Verification) Grace() time.Duration {
	return time.Duration(v.GraceSeconds) * time.Second
}

// defaults holds the values used for keys missing from the config files.
var defaults = map[string]any{
	"common.debug.log_level":             "info",
	"common.debug.max_logs_to_keep":      10,
	"common.debug.max_log_lines":         10000,
	"common.debug.console":               true,
	"common.storage.backend":             StorageSQLite,
	"common.storage.sqlite.dir":          "databases",
	"common.storage.sqlite.busy_timeout": 5000,
	"common.redis.host":                  "localhost",
	"common.redis.port":                  6379,
	"bot.verification.timeout_seconds":   300,
	"bot.verification.grace_seconds":     3,
	"bot.verification.tolerance_months":  2,
	"bot.verification.moderator_role":    "Moderador",
	"bot.verification.channel_name":      "🛡️-verificação-de-entrada",
	"bot.verification.registry":          RegistryMemory,
}

// LoadConfig loads the configuration from the first config directory containing each file.
// Returns the config along with the used config directory.
func LoadConfig() (*Config, string, error) {
	// Get user's home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get home directory: %w", err)
	}

	// List search paths
	configPaths := []string{
		".chopper",
		homeDir + "/.chopper/config",
		"/etc/chopper/config",
		"/app/config",
		"config",
		".",
	}

	return LoadConfigFrom(configPaths...)
}

// LoadConfigFrom loads the configuration searching only the given directories.
func LoadConfigFrom(configPaths ...string) (*Config, string, error) {
	k := koanf.New(".")

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return nil, "", fmt.Errorf("failed to set default %s: %w", key, err)
		}
	}

	// Load all config files
	var usedConfigPath string

	configFiles := []string{"common", "bot"}
	for _, configName := range configFiles {
		configLoaded := false

		for _, path := range configPaths {
			configPath := fmt.Sprintf("%s/%s.toml", path, configName)
			if _, err := os.Stat(configPath); err != nil {
				continue
			}

			// Each file is nested under its own name so keys never collide
			fileConfig := koanf.New(".")
			if err := fileConfig.Load(file.Provider(configPath), toml.Parser()); err != nil {
				return nil, "", fmt.Errorf("failed to parse %s: %w", configPath, err)
			}

			if err := k.MergeAt(fileConfig, configName); err != nil {
				return nil, "", fmt.Errorf("failed to merge %s: %w", configPath, err)
			}

			configLoaded = true

			if usedConfigPath == "" {
				usedConfigPath = path
			}

			break
		}

		if !configLoaded {
			return nil, "", fmt.Errorf("%w: %s.toml", ErrConfigFileNotFound, configName)
		}
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, "", fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Check versions for each config file
	if err := checkConfigVersion("common", config.Common.Version, CurrentCommonVersion); err != nil {
		return nil, "", err
	}

	if err := checkConfigVersion("bot", config.Bot.Version, CurrentBotVersion); err != nil {
		return nil, "", err
	}

	if err := config.validate(); err != nil {
		return nil, "", err
	}

	return &config, usedConfigPath, nil
}

// validate checks enumerated settings.
func (c *Config) validate() error {
	switch c.Common.Storage.Backend {
	case StorageSQLite, StoragePostgres:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStorageBackend, c.Common.Storage.Backend)
	}

	switch c.Bot.Verification.Registry {
	case RegistryMemory, RegistryRedis:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidRegistry, c.Bot.Verification.Registry)
	}

	return nil
}

// checkConfigVersion checks if the config file version is correct.
func checkConfigVersion(name string, current, expected int) error {
	if current == 0 {
		return fmt.Errorf("%w: %s.toml", ErrConfigVersionMissing, name)
	}

	if current != expected {
		return fmt.Errorf(
			"%w: %s.toml (got: %d, expected: %d)\n"+
				"Please update your config file from: https://github.com/robalyx/chopper/tree/%s/config/%s.toml",
			ErrConfigVersionMismatch,
			name,
			current,
			expected,
			RepositoryVersion,
			name,
		)
	}

	return nil
}
