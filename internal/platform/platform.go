// Package platform carries out verification side effects on Discord through the disgo REST client.
package platform

import (
	"context"
	"errors"
	"fmt"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/chopper/internal/verification"
	"go.uber.org/zap"
)

// memberPermissions is what the member and moderators get in a verification channel.
const memberPermissions = discord.PermissionViewChannel |
	discord.PermissionSendMessages |
	discord.PermissionReadMessageHistory

// Discord JSON error codes for channels the bot cannot resolve.
const (
	unknownChannelCode rest.JSONErrorCode = 10003
	missingAccessCode  rest.JSONErrorCode = 50001
)

// Platform implements the verification collaborators on top of the Discord REST API.
type Platform struct {
	rest        rest.Rest
	selfID      snowflake.ID
	channelName string
	logger      *zap.Logger
}

// New creates a Platform. selfID is the bot user, which keeps access to the channels it creates.
func New(client rest.Rest, selfID snowflake.ID, channelName string, logger *zap.Logger) *Platform {
	return &Platform{
		rest:        client,
		selfID:      selfID,
		channelName: channelName,
		logger:      logger.Named("platform"),
	}
}

// CreatePrivateChannel creates a text channel hidden from everyone but the member,
// the bot and, when the guild has it, the moderator role.
func (p *Platform) CreatePrivateChannel(
	ctx context.Context, guildID uint64, member verification.Member, moderatorRole string,
) (uint64, error) {
	guild := snowflake.ID(guildID)

	overwrites := []discord.PermissionOverwrite{
		// The @everyone role shares the guild's id
		discord.RolePermissionOverwrite{RoleID: guild, Deny: discord.PermissionViewChannel},
		discord.MemberPermissionOverwrite{UserID: snowflake.ID(member.UserID), Allow: memberPermissions},
		discord.MemberPermissionOverwrite{UserID: p.selfID, Allow: memberPermissions | discord.PermissionManageChannels},
	}

	if roleID, ok := p.findRole(ctx, guild, moderatorRole); ok {
		overwrites = append(overwrites, discord.RolePermissionOverwrite{RoleID: roleID, Allow: memberPermissions})
	}

	channel, err := p.rest.CreateGuildChannel(guild, discord.GuildTextChannelCreate{
		Name:                 p.channelName,
		Topic:                fmt.Sprintf("Age verification for %s", member.Tag),
		PermissionOverwrites: overwrites,
	}, rest.WithCtx(ctx))
	if err != nil {
		return 0, fmt.Errorf("failed to create verification channel: %w", err)
	}

	return uint64(channel.ID()), nil
}

// DeleteChannel deletes a channel.
func (p *Platform) DeleteChannel(ctx context.Context, channelID uint64) error {
	if err := p.rest.DeleteChannel(snowflake.ID(channelID), rest.WithCtx(ctx)); err != nil {
		return fmt.Errorf("failed to delete channel: %w", err)
	}

	return nil
}

// SendPrompt posts the birth date prompt in a verification channel.
func (p *Platform) SendPrompt(ctx context.Context, channelID uint64, member verification.Member) error {
	if _, err := p.rest.CreateMessage(snowflake.ID(channelID), PromptMessage(member), rest.WithCtx(ctx)); err != nil {
		return fmt.Errorf("failed to send prompt: %w", err)
	}

	return nil
}

// SendDirectPrompt posts the birth date prompt in the member's direct messages.
func (p *Platform) SendDirectPrompt(ctx context.Context, member verification.Member) error {
	dm, err := p.rest.CreateDMChannel(snowflake.ID(member.UserID), rest.WithCtx(ctx))
	if err != nil {
		return fmt.Errorf("failed to open direct message channel: %w", err)
	}

	if _, err := p.rest.CreateMessage(dm.ID(), DirectPromptMessage(member), rest.WithCtx(ctx)); err != nil {
		return fmt.Errorf("failed to send direct prompt: %w", err)
	}

	return nil
}

// SendLog posts a verification decision in the guild's log channel.
func (p *Platform) SendLog(ctx context.Context, channelID uint64, entry verification.LogEntry) error {
	if _, err := p.rest.CreateMessage(snowflake.ID(channelID), LogMessage(entry), rest.WithCtx(ctx)); err != nil {
		return fmt.Errorf("failed to send log message: %w", err)
	}

	return nil
}

// Ban bans a user from a guild without deleting their messages.
func (p *Platform) Ban(ctx context.Context, guildID, userID uint64, reason string) error {
	err := p.rest.AddBan(snowflake.ID(guildID), snowflake.ID(userID), 0, rest.WithCtx(ctx), rest.WithReason(reason))
	if err != nil {
		return fmt.Errorf("failed to ban member: %w", err)
	}

	return nil
}

// Kick removes a member from a guild.
func (p *Platform) Kick(ctx context.Context, guildID, userID uint64, reason string) error {
	err := p.rest.RemoveMember(snowflake.ID(guildID), snowflake.ID(userID), rest.WithCtx(ctx), rest.WithReason(reason))
	if err != nil {
		return fmt.Errorf("failed to kick member: %w", err)
	}

	return nil
}

// UserTag returns the username of a user.
func (p *Platform) UserTag(ctx context.Context, userID uint64) (string, error) {
	user, err := p.rest.GetUser(snowflake.ID(userID), rest.WithCtx(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to get user: %w", err)
	}

	return user.Username, nil
}

// ChannelInGuild reports whether a channel exists and belongs to the guild.
func (p *Platform) ChannelInGuild(ctx context.Context, guildID, channelID uint64) (bool, error) {
	channel, err := p.rest.GetChannel(snowflake.ID(channelID), rest.WithCtx(ctx))
	if err != nil {
		var restErr rest.Error
		if errors.As(err, &restErr) && (restErr.Code == unknownChannelCode || restErr.Code == missingAccessCode) {
			return false, nil
		}

		return false, fmt.Errorf("failed to get channel: %w", err)
	}

	guildChannel, ok := channel.(discord.GuildChannel)
	if !ok {
		return false, nil
	}

	return guildChannel.GuildID() == snowflake.ID(guildID), nil
}

// findRole looks up a guild role by name. A missing role or a failed lookup is not an error.
func (p *Platform) findRole(ctx context.Context, guildID snowflake.ID, name string) (snowflake.ID, bool) {
	if name == "" {
		return 0, false
	}

	roles, err := p.rest.GetRoles(guildID, rest.WithCtx(ctx))
	if err != nil {
		p.logger.Warn("Failed to get guild roles",
			zap.Uint64("guildID", uint64(guildID)),
			zap.Error(err))
		return 0, false
	}

	for _, role := range roles {
		if role.Name == name {
			return role.ID, true
		}
	}

	p.logger.Debug("Moderator role not found",
		zap.Uint64("guildID", uint64(guildID)),
		zap.String("role", name))

	return 0, false
}
