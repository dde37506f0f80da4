package events

import (
	"fmt"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
)

// GuildEventHandler manages guild-related events for the bot.
type GuildEventHandler struct {
	commands []discord.ApplicationCommandCreate
	logger   *zap.Logger
}

// NewGuildEventHandler creates a new instance of the guild event handler.
func NewGuildEventHandler(commands []discord.ApplicationCommandCreate, logger *zap.Logger) *GuildEventHandler {
	return &GuildEventHandler{
		commands: commands,
		logger:   logger.Named("guild_events"),
	}
}

// OnGuildReady registers commands in guilds the bot is already a member of.
func (h *GuildEventHandler) OnGuildReady(event *events.GuildReady) {
	h.registerGuildCommands(event.Client(), event.Guild.ID)
}

// OnGuildJoin handles the event when the bot joins a new guild.
func (h *GuildEventHandler) OnGuildJoin(event *events.GuildJoin) {
	h.logger.Info("Bot joined a new guild",
		zap.String("guildID", event.Guild.ID.String()),
		zap.String("guild_name", event.Guild.Name))

	h.registerGuildCommands(event.Client(), event.Guild.ID)
}

// registerGuildCommands registers the bot's commands for a specific guild.
func (h *GuildEventHandler) registerGuildCommands(client bot.Client, guildID snowflake.ID) {
	if err := h.setGuildCommands(client, guildID); err != nil {
		h.logger.Error("Failed to register guild commands",
			zap.String("guildID", guildID.String()),
			zap.Error(err))

		return
	}

	h.logger.Debug("Successfully registered guild commands",
		zap.String("guildID", guildID.String()))
}

func (h *GuildEventHandler) setGuildCommands(client bot.Client, guildID snowflake.ID) error {
	_, err := client.Rest().SetGuildCommands(client.ApplicationID(), guildID, h.commands)
	if err != nil {
		return fmt.Errorf("failed to register guild commands: %w", err)
	}

	return nil
}
