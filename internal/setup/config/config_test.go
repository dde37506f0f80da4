package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/robalyx/chopper/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "common.toml", "version = 1\n")
	writeFile(t, dir, "bot.toml", "version = 1\n[discord]\ntoken = \"abc\"\n")

	cfg, used, err := config.LoadConfigFrom(filepath.Join(dir, "missing"), dir)
	require.NoError(t, err)

	assert.Equal(t, dir, used)
	assert.Equal(t, "abc", cfg.Bot.Discord.Token)
	assert.Equal(t, config.StorageSQLite, cfg.Common.Storage.Backend)
	assert.Equal(t, "databases", cfg.Common.Storage.SQLite.Dir)
	assert.Equal(t, 300*time.Second, cfg.Bot.Verification.Timeout())
	assert.Equal(t, 3*time.Second, cfg.Bot.Verification.Grace())
	assert.Equal(t, 2, cfg.Bot.Verification.ToleranceMonths)
	assert.Equal(t, "Moderador", cfg.Bot.Verification.ModeratorRole)
	assert.Equal(t, config.RegistryMemory, cfg.Bot.Verification.Registry)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "common.toml", "version = 1\n[storage]\nbackend = \"postgres\"\n")
	writeFile(t, dir, "bot.toml", "version = 1\n[verification]\ntimeout_seconds = 60\nregistry = \"redis\"\n")

	cfg, _, err := config.LoadConfigFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, config.StoragePostgres, cfg.Common.Storage.Backend)
	assert.Equal(t, time.Minute, cfg.Bot.Verification.Timeout())
	assert.Equal(t, config.RegistryRedis, cfg.Bot.Verification.Registry)
}

func TestLoadConfigErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		common  string
		bot     string
		wantErr error
	}{
		{
			name:    "missing bot file",
			common:  "version = 1\n",
			wantErr: config.ErrConfigFileNotFound,
		},
		{
			name:    "missing version",
			common:  "[debug]\nlog_level = \"debug\"\n",
			bot:     "version = 1\n",
			wantErr: config.ErrConfigVersionMissing,
		},
		{
			name:    "version mismatch",
			common:  "version = 1\n",
			bot:     "version = 7\n",
			wantErr: config.ErrConfigVersionMismatch,
		},
		{
			name:    "unknown storage backend",
			common:  "version = 1\n[storage]\nbackend = \"mysql\"\n",
			bot:     "version = 1\n",
			wantErr: config.ErrInvalidStorageBackend,
		},
		{
			name:    "unknown registry",
			common:  "version = 1\n",
			bot:     "version = 1\n[verification]\nregistry = \"etcd\"\n",
			wantErr: config.ErrInvalidRegistry,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			writeFile(t, dir, "common.toml", tt.common)
			if tt.bot != "" {
				writeFile(t, dir, "bot.toml", tt.bot)
			}

			_, _, err := config.LoadConfigFrom(dir)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}
