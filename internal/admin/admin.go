// Package admin implements the record management commands of guild administrators.
package admin

import (
	"context"
	"fmt"

	"github.com/robalyx/chopper/internal/age"
	"github.com/robalyx/chopper/internal/database/types"
	"go.uber.org/zap"
)

// UnknownTag is stored when the platform cannot resolve a user's name.
const UnknownTag = "Unknown"

// RecordStore is the record store used by administrators.
type RecordStore interface {
	GetRecord(ctx context.Context, guildID, userID uint64) (*types.BirthdayRecord, error)
	InsertRecord(ctx context.Context, record *types.BirthdayRecord) error
	UpdateRecord(
		ctx context.Context, guildID, userID uint64, mutate func(*types.BirthdayRecord) error,
	) (*types.BirthdayRecord, error)
	DeleteRecord(ctx context.Context, guildID, userID uint64) (bool, error)
	ListRecords(ctx context.Context, guildID uint64) ([]*types.BirthdayRecord, error)
}

// LogChannelStore stores the guild log channel.
type LogChannelStore interface {
	SetLogChannel(ctx context.Context, guildID, channelID uint64) error
}

// Service performs administrator operations on birthday records.
type Service struct {
	records     RecordStore
	logChannels LogChannelStore
	logger      *zap.Logger
}

// NewService creates an admin service.
func NewService(records RecordStore, logChannels LogChannelStore, logger *zap.Logger) *Service {
	return &Service{
		records:     records,
		logChannels: logChannels,
		logger:      logger.Named("admin"),
	}
}

// Lookup returns the record of a user, or types.ErrRecordNotFound.
func (s *Service) Lookup(ctx context.Context, guildID, userID uint64) (*types.BirthdayRecord, error) {
	return s.records.GetRecord(ctx, guildID, userID)
}

// List returns every record of a guild in insertion order.
func (s *Service) List(ctx context.Context, guildID uint64) ([]*types.BirthdayRecord, error) {
	return s.records.ListRecords(ctx, guildID)
}

// Add registers a birth date for a user who has none.
// It fails with age.ErrInvalidFormat or types.ErrDuplicateKey.
func (s *Service) Add(
	ctx context.Context, guildID, userID uint64, userTag, dateText string,
) (*types.BirthdayRecord, error) {
	birthday, err := age.ParseDate(dateText)
	if err != nil {
		return nil, err
	}

	if userTag == "" {
		userTag = UnknownTag
	}

	record := &types.BirthdayRecord{
		GuildID:      guildID,
		UserID:       userID,
		UserTag:      userTag,
		BirthdayDate: age.FormatDate(birthday),
	}
	if err := s.records.InsertRecord(ctx, record); err != nil {
		return nil, err
	}

	s.logger.Info("Added birthday record",
		zap.Uint64("guildID", guildID),
		zap.Uint64("userID", userID))

	return record, nil
}

// Edit replaces the birth date of an existing record.
// The date is validated before storage is touched.
func (s *Service) Edit(ctx context.Context, guildID, userID uint64, dateText string) (*types.BirthdayRecord, error) {
	birthday, err := age.ParseDate(dateText)
	if err != nil {
		return nil, err
	}

	record, err := s.records.UpdateRecord(ctx, guildID, userID, func(record *types.BirthdayRecord) error {
		record.BirthdayDate = age.FormatDate(birthday)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Edited birthday record",
		zap.Uint64("guildID", guildID),
		zap.Uint64("userID", userID))

	return record, nil
}

// MarkVerified flags a record as confirmed by an administrator.
func (s *Service) MarkVerified(ctx context.Context, guildID, userID uint64) (*types.BirthdayRecord, error) {
	record, err := s.records.UpdateRecord(ctx, guildID, userID, func(record *types.BirthdayRecord) error {
		record.Verified = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Marked birthday record as verified",
		zap.Uint64("guildID", guildID),
		zap.Uint64("userID", userID))

	return record, nil
}

// Delete removes the record of a user. Deleting a missing record succeeds.
func (s *Service) Delete(ctx context.Context, guildID, userID uint64) error {
	deleted, err := s.records.DeleteRecord(ctx, guildID, userID)
	if err != nil {
		return err
	}

	s.logger.Info("Deleted birthday record",
		zap.Uint64("guildID", guildID),
		zap.Uint64("userID", userID),
		zap.Bool("existed", deleted))

	return nil
}

// SetLogChannel stores the channel that receives verification decisions.
func (s *Service) SetLogChannel(ctx context.Context, guildID, channelID uint64) error {
	if err := s.logChannels.SetLogChannel(ctx, guildID, channelID); err != nil {
		return fmt.Errorf("failed to set log channel: %w", err)
	}

	return nil
}

// VerifiedStatus renders the verified flag of a record.
func VerifiedStatus(record *types.BirthdayRecord) string {
	if record.Verified {
		return "✅ Verified"
	}

	return "❌ Not verified"
}

// FormatRecord renders one record as a list line.
func FormatRecord(record *types.BirthdayRecord) string {
	return fmt.Sprintf("`%d` - **%s**: %s - %s",
		record.UserID, record.UserTag, record.BirthdayDate, VerifiedStatus(record))
}
