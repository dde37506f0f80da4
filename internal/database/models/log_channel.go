package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/robalyx/chopper/internal/database/dbretry"
	"github.com/robalyx/chopper/internal/database/partition"
	"github.com/robalyx/chopper/internal/database/types"
	"go.uber.org/zap"
)

// LogChannelModel handles the per-guild log channel setting.
type LogChannelModel struct {
	partitions *partition.Manager
	logger     *zap.Logger
}

// NewLogChannel creates a new log channel model instance.
func NewLogChannel(partitions *partition.Manager, logger *zap.Logger) *LogChannelModel {
	return &LogChannelModel{
		partitions: partitions,
		logger:     logger.Named("db_log_channel"),
	}
}

// SetLogChannel stores the log channel of a guild, replacing any previous one.
func (m *LogChannelModel) SetLogChannel(ctx context.Context, guildID, channelID uint64) error {
	p, release, err := m.partitions.Lock(ctx, guildID)
	if err != nil {
		return err
	}
	defer release()

	err = dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := p.DB().NewInsert().
			Model(&types.LogChannel{
				GuildID:   guildID,
				ChannelID: channelID,
				UpdatedAt: time.Now(),
			}).
			On("CONFLICT (guild_id) DO UPDATE").
			Set("channel_id = EXCLUDED.channel_id").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to set log channel: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	m.logger.Debug("Set log channel",
		zap.Uint64("guildID", guildID),
		zap.Uint64("channelID", channelID))

	return nil
}

// GetLogChannel retrieves the log channel of a guild.
// Returns types.ErrLogChannelNotSet if none was configured.
func (m *LogChannelModel) GetLogChannel(ctx context.Context, guildID uint64) (uint64, error) {
	p, release, err := m.partitions.Lock(ctx, guildID)
	if err != nil {
		return 0, err
	}
	defer release()

	return dbretry.Operation(ctx, func(ctx context.Context) (uint64, error) {
		var setting types.LogChannel

		err := p.DB().NewSelect().
			Model(&setting).
			Where("guild_id = ?", guildID).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return 0, types.ErrLogChannelNotSet
			}

			return 0, fmt.Errorf("failed to get log channel: %w", err)
		}

		return setting.ChannelID, nil
	})
}
