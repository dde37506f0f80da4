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
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// BirthdayModel handles database operations for guild birthday records.
// Every call runs with the guild's partition lock held.
type BirthdayModel struct {
	partitions *partition.Manager
	logger     *zap.Logger
}

// NewBirthday creates a new birthday model instance.
func NewBirthday(partitions *partition.Manager, logger *zap.Logger) *BirthdayModel {
	return &BirthdayModel{
		partitions: partitions,
		logger:     logger.Named("db_birthday"),
	}
}

// GetRecord retrieves the birthday record of a user in a guild.
// Returns types.ErrRecordNotFound if the user has no record.
func (m *BirthdayModel) GetRecord(ctx context.Context, guildID, userID uint64) (*types.BirthdayRecord, error) {
	p, release, err := m.partitions.Lock(ctx, guildID)
	if err != nil {
		return nil, err
	}
	defer release()

	return dbretry.Operation(ctx, func(ctx context.Context) (*types.BirthdayRecord, error) {
		return getRecord(ctx, p.DB(), guildID, userID)
	})
}

// HasRecord checks whether a user already has a birthday record in a guild.
func (m *BirthdayModel) HasRecord(ctx context.Context, guildID, userID uint64) (bool, error) {
	p, release, err := m.partitions.Lock(ctx, guildID)
	if err != nil {
		return false, err
	}
	defer release()

	return dbretry.Operation(ctx, func(ctx context.Context) (bool, error) {
		exists, err := p.DB().NewSelect().
			Model((*types.BirthdayRecord)(nil)).
			Where("guild_id = ?", guildID).
			Where("user_id = ?", userID).
			Exists(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to check birthday record: %w", err)
		}

		return exists, nil
	})
}

// InsertRecord stores a new birthday record.
// The existence check and the insert are a single step on the partition: of two
// concurrent inserts for the same user one succeeds and the other gets types.ErrDuplicateKey.
func (m *BirthdayModel) InsertRecord(ctx context.Context, record *types.BirthdayRecord) error {
	p, release, err := m.partitions.Lock(ctx, record.GuildID)
	if err != nil {
		return err
	}
	defer release()

	now := time.Now()

	err = dbretry.Transaction(ctx, p.DB(), func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().
			Model((*types.BirthdayRecord)(nil)).
			Where("guild_id = ?", record.GuildID).
			Where("user_id = ?", record.UserID).
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("failed to check birthday record: %w", err)
		}

		if exists {
			return types.ErrDuplicateKey
		}

		var sequence int64
		err = tx.NewSelect().
			Model((*types.BirthdayRecord)(nil)).
			ColumnExpr("COALESCE(MAX(sequence), 0)").
			Where("guild_id = ?", record.GuildID).
			Scan(ctx, &sequence)
		if err != nil {
			return fmt.Errorf("failed to get birthday sequence: %w", err)
		}

		record.Sequence = sequence + 1
		record.CreatedAt = now
		record.UpdatedAt = now

		if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
			if dbretry.IsUniqueViolation(err) {
				return types.ErrDuplicateKey
			}

			return fmt.Errorf("failed to insert birthday record: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	m.logger.Debug("Inserted birthday record",
		zap.Uint64("guildID", record.GuildID),
		zap.Uint64("userID", record.UserID),
		zap.Int64("sequence", record.Sequence))

	return nil
}

// UpdateRecord loads a record, applies mutate and writes it back in one step.
// Returns types.ErrRecordNotFound if the user has no record. Errors from mutate
// abort the update and are returned unchanged.
func (m *BirthdayModel) UpdateRecord(
	ctx context.Context, guildID, userID uint64, mutate func(*types.BirthdayRecord) error,
) (*types.BirthdayRecord, error) {
	p, release, err := m.partitions.Lock(ctx, guildID)
	if err != nil {
		return nil, err
	}
	defer release()

	var record *types.BirthdayRecord

	err = dbretry.Transaction(ctx, p.DB(), func(ctx context.Context, tx bun.Tx) error {
		var err error

		record, err = getRecord(ctx, tx, guildID, userID)
		if err != nil {
			return err
		}

		if err := mutate(record); err != nil {
			return err
		}

		record.UpdatedAt = time.Now()

		_, err = tx.NewUpdate().
			Model(record).
			Column("user_tag", "birthday_date", "verified", "updated_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to update birthday record: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Debug("Updated birthday record",
		zap.Uint64("guildID", guildID),
		zap.Uint64("userID", userID))

	return record, nil
}

// DeleteRecord removes the birthday record of a user.
// Deleting a missing record is not an error; the returned flag tells whether a row was removed.
func (m *BirthdayModel) DeleteRecord(ctx context.Context, guildID, userID uint64) (bool, error) {
	p, release, err := m.partitions.Lock(ctx, guildID)
	if err != nil {
		return false, err
	}
	defer release()

	deleted, err := dbretry.Operation(ctx, func(ctx context.Context) (bool, error) {
		result, err := p.DB().NewDelete().
			Model((*types.BirthdayRecord)(nil)).
			Where("guild_id = ?", guildID).
			Where("user_id = ?", userID).
			Exec(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to delete birthday record: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return false, fmt.Errorf("failed to get affected rows: %w", err)
		}

		return affected > 0, nil
	})
	if err != nil {
		return false, err
	}

	m.logger.Debug("Deleted birthday record",
		zap.Uint64("guildID", guildID),
		zap.Uint64("userID", userID),
		zap.Bool("deleted", deleted))

	return deleted, nil
}

// ListRecords retrieves every birthday record of a guild in insertion order.
func (m *BirthdayModel) ListRecords(ctx context.Context, guildID uint64) ([]*types.BirthdayRecord, error) {
	p, release, err := m.partitions.Lock(ctx, guildID)
	if err != nil {
		return nil, err
	}
	defer release()

	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.BirthdayRecord, error) {
		var records []*types.BirthdayRecord

		err := p.DB().NewSelect().
			Model(&records).
			Where("guild_id = ?", guildID).
			Order("sequence ASC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list birthday records: %w", err)
		}

		return records, nil
	})
}

// getRecord loads a single record using the given connection or transaction.
func getRecord(ctx context.Context, db bun.IDB, guildID, userID uint64) (*types.BirthdayRecord, error) {
	var record types.BirthdayRecord

	err := db.NewSelect().
		Model(&record).
		Where("guild_id = ?", guildID).
		Where("user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrRecordNotFound
		}

		return nil, fmt.Errorf("failed to get birthday record: %w", err)
	}

	return &record, nil
}
