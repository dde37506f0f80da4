package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/chopper/internal/admin"
	"github.com/robalyx/chopper/internal/bot/constants"
	botEvents "github.com/robalyx/chopper/internal/bot/events"
	"github.com/robalyx/chopper/internal/bot/handlers"
	"github.com/robalyx/chopper/internal/database"
	"github.com/robalyx/chopper/internal/platform"
	"github.com/robalyx/chopper/internal/setup/config"
	"github.com/robalyx/chopper/internal/verification"
	"go.uber.org/zap"
)

// Bot connects the verification workflow and the admin commands to Discord.
type Bot struct {
	client       bot.Client
	manager      *verification.Manager
	memberEvents *botEvents.MemberEventHandler
	commands     *handlers.CommandHandler
	prompts      *handlers.PromptHandler
	logger       *zap.Logger
}

// New creates the Discord client and wires the verification manager to it.
func New(
	cfg *config.BotConfig, db database.Client, registry verification.Registry, logger *zap.Logger,
) (*Bot, error) {
	b := &Bot{
		logger: logger.Named("bot"),
	}

	guildEvents := botEvents.NewGuildEventHandler(handlers.Commands(), logger)

	// Configure Discord client with required gateway intents and event handlers
	client, err := disgo.New(cfg.Discord.Token,
		bot.WithGatewayConfigOpts(
			gateway.WithIntents(
				gateway.IntentGuilds,
				gateway.IntentGuildMembers,
				gateway.IntentDirectMessages,
			),
		),
		bot.WithEventListeners(&events.ListenerAdapter{
			OnGuildMemberJoin:               b.handleGuildMemberJoin,
			OnGuildReady:                    guildEvents.OnGuildReady,
			OnGuildJoin:                     guildEvents.OnGuildJoin,
			OnApplicationCommandInteraction: b.handleApplicationCommandInteraction,
			OnComponentInteraction:          b.handleComponentInteraction,
			OnModalSubmit:                   b.handleModalSubmit,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord client: %w", err)
	}

	discordPlatform := platform.New(client.Rest(), client.ID(), cfg.Verification.ChannelName, logger)
	repository := db.Model()

	b.client = client
	b.manager = verification.NewManager(verification.Settings{
		Timeout:         cfg.Verification.Timeout(),
		Grace:           cfg.Verification.Grace(),
		ToleranceMonths: cfg.Verification.ToleranceMonths,
		ModeratorRole:   cfg.Verification.ModeratorRole,
	}, verification.Dependencies{
		Records:     repository.Birthday(),
		LogChannels: repository.LogChannel(),
		Registry:    registry,
		Channels:    discordPlatform,
		Messenger:   discordPlatform,
		Members:     discordPlatform,
	}, logger)
	b.commands = handlers.NewCommandHandler(
		admin.NewService(repository.Birthday(), repository.LogChannel(), logger),
		b.manager,
		discordPlatform,
		logger,
	)
	b.prompts = handlers.NewPromptHandler(b.manager, logger)
	b.memberEvents = botEvents.NewMemberEventHandler(b.manager, logger)

	return b, nil
}

// Start opens the gateway connection.
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("Starting bot")

	if err := b.client.OpenGateway(ctx); err != nil {
		return fmt.Errorf("failed to open gateway: %w", err)
	}

	return nil
}

// Close shuts down the gateway connection and waits for pending verification follow-ups.
func (b *Bot) Close(ctx context.Context) {
	b.logger.Info("Closing bot")
	b.client.Close(ctx)
	b.manager.Close()
}

// handleGuildMemberJoin starts verification for the new member.
func (b *Bot) handleGuildMemberJoin(event *events.GuildMemberJoin) {
	b.memberEvents.OnGuildMemberJoin(event)
}

// handleApplicationCommandInteraction defers the response and executes the command in a goroutine.
func (b *Bot) handleApplicationCommandInteraction(event *events.ApplicationCommandInteractionCreate) {
	go func() {
		// Defer response to prevent Discord timeout while processing
		if err := event.DeferCreateMessage(true); err != nil {
			b.logger.Error("Failed to defer create message", zap.Error(err))
			return
		}

		data := event.SlashCommandInteractionData()

		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("Panic in application command interaction handler", zap.Any("panic", r))
				b.respond(event.ApplicationID(), event.Token(), handlers.Text(handlers.InternalErrorReply))
			}

			b.logger.Debug("Application command interaction handled",
				zap.String("command", data.CommandName()),
				zap.Duration("duration", time.Since(start)))
		}()

		reply := b.commands.Execute(context.Background(), invocationFromEvent(event, data))
		b.respond(event.ApplicationID(), event.Token(), reply)
	}()
}

// handleComponentInteraction opens the birth date modal for the prompt button.
func (b *Bot) handleComponentInteraction(event *events.ComponentInteractionCreate) {
	go func() {
		customID := event.Data.CustomID()

		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("Panic in component interaction handler", zap.Any("panic", r))
			}

			b.logger.Debug("Component interaction handled",
				zap.String("custom_id", customID),
				zap.Duration("duration", time.Since(start)))
		}()

		key, ok := platform.ParseSessionID(customID, platform.PromptButtonPrefix)
		if !ok {
			b.createReply(event.CreateMessage, handlers.Text(handlers.UnknownReply))
			return
		}

		if reply, ok := b.prompts.Open(key, uint64(event.User().ID)); !ok {
			b.createReply(event.CreateMessage, reply)
			return
		}

		if err := event.Modal(platform.BirthdayModal(key)); err != nil {
			b.logger.Error("Failed to open birthday modal", zap.Error(err))
		}
	}()
}

// handleModalSubmit hands the submitted birth date to the verification session.
func (b *Bot) handleModalSubmit(event *events.ModalSubmitInteractionCreate) {
	go func() {
		if err := event.DeferCreateMessage(true); err != nil {
			b.logger.Error("Failed to defer create message", zap.Error(err))
			return
		}

		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("Panic in modal submit interaction handler", zap.Any("panic", r))
				b.respond(event.ApplicationID(), event.Token(), handlers.Text(handlers.InternalErrorReply))
			}

			b.logger.Debug("Modal submit interaction handled",
				zap.String("custom_id", event.Data.CustomID),
				zap.Duration("duration", time.Since(start)))
		}()

		key, ok := platform.ParseSessionID(event.Data.CustomID, platform.BirthdayModalPrefix)
		if !ok {
			b.respond(event.ApplicationID(), event.Token(), handlers.Text(handlers.UnknownReply))
			return
		}

		reply := b.prompts.Submit(
			context.Background(), key, uint64(event.User().ID), event.Data.Text(platform.BirthdayInputCustomID),
		)
		b.respond(event.ApplicationID(), event.Token(), reply)
	}()
}

// respond replaces a deferred interaction response.
func (b *Bot) respond(applicationID snowflake.ID, token string, reply handlers.Reply) {
	_, err := b.client.Rest().UpdateInteractionResponse(applicationID, token, reply.MessageUpdate())
	if err != nil {
		b.logger.Error("Failed to update interaction response", zap.Error(err))
	}
}

// createReply answers an interaction that was not deferred.
func (b *Bot) createReply(
	create func(discord.MessageCreate, ...rest.RequestOpt) error, reply handlers.Reply,
) {
	if err := create(reply.MessageCreate()); err != nil {
		b.logger.Error("Failed to create interaction response", zap.Error(err))
	}
}

// invocationFromEvent extracts the command name, caller and options of a slash command.
func invocationFromEvent(
	event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData,
) handlers.Invocation {
	inv := handlers.Invocation{
		Name:    data.CommandName(),
		UserID:  uint64(event.User().ID),
		UserTag: event.User().Username,
		Options: make(map[string]string),
	}

	if guildID := event.GuildID(); guildID != nil {
		inv.GuildID = uint64(*guildID)
	}

	if member := event.Member(); member != nil {
		inv.Admin = member.Permissions.Has(discord.PermissionAdministrator)
	}

	for _, name := range []string{
		constants.UserIDOptionName,
		constants.ChannelIDOptionName,
		constants.BirthdayOptionName,
	} {
		if value, ok := data.OptString(name); ok {
			inv.Options[name] = value
		}
	}

	return inv
}
