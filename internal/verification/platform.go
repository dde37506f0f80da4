package verification

import (
	"context"

	"github.com/robalyx/chopper/internal/database/types"
)

// ChannelProvisioner creates and removes private verification channels.
type ChannelProvisioner interface {
	// CreatePrivateChannel creates a channel visible to the member and, when it
	// exists in the guild, the named moderator role.
	CreatePrivateChannel(ctx context.Context, guildID uint64, member Member, moderatorRole string) (uint64, error)
	DeleteChannel(ctx context.Context, channelID uint64) error
}

// Messenger delivers prompts and log entries.
type Messenger interface {
	// SendPrompt posts the interactive birth date prompt in a verification channel.
	SendPrompt(ctx context.Context, channelID uint64, member Member) error
	// SendDirectPrompt posts the prompt in the member's direct messages.
	SendDirectPrompt(ctx context.Context, member Member) error
	SendLog(ctx context.Context, channelID uint64, entry LogEntry) error
}

// MembershipController removes members from a guild.
type MembershipController interface {
	Ban(ctx context.Context, guildID, userID uint64, reason string) error
	Kick(ctx context.Context, guildID, userID uint64, reason string) error
}

// RecordStore is the part of the record store sessions depend on.
type RecordStore interface {
	HasRecord(ctx context.Context, guildID, userID uint64) (bool, error)
	// InsertRecord fails with types.ErrDuplicateKey if the member already has a record.
	InsertRecord(ctx context.Context, record *types.BirthdayRecord) error
}

// LogChannelStore resolves a guild's log channel.
type LogChannelStore interface {
	// GetLogChannel fails with types.ErrLogChannelNotSet when none is configured.
	GetLogChannel(ctx context.Context, guildID uint64) (uint64, error)
}
