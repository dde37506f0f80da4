// Package handlers turns slash commands and prompt interactions into verification
// and admin operations and renders their results.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/disgoorg/disgo/discord"
	"github.com/robalyx/chopper/internal/admin"
	"github.com/robalyx/chopper/internal/age"
	"github.com/robalyx/chopper/internal/bot/constants"
	"github.com/robalyx/chopper/internal/database/types"
	"github.com/robalyx/chopper/internal/verification"
	"go.uber.org/zap"
)

// maxEmbedsPerMessage is the number of embeds Discord accepts in one message.
const maxEmbedsPerMessage = 10

// Replies shared by several commands.
const (
	NotAdminReply      = "❌ You need administrator permissions to use this command."
	GuildOnlyReply     = "❌ This command can only be used in a server."
	InvalidUserReply   = "❌ Invalid user ID."
	InvalidFormatReply = "❌ Invalid format! Use DD-MM-YYYY."
	UserNotFoundReply  = "❌ User not found in the database."
	InternalErrorReply = "❌ Internal error. Please try again later."
	UnknownReply       = "❌ This command is not available."
)

// Verifier starts self-service verification sessions.
type Verifier interface {
	RequestVerification(ctx context.Context, member verification.Member) error
}

// Directory resolves users and channels on the platform.
type Directory interface {
	UserTag(ctx context.Context, userID uint64) (string, error)
	ChannelInGuild(ctx context.Context, guildID, channelID uint64) (bool, error)
}

// Invocation is a parsed slash command.
type Invocation struct {
	Name    string
	GuildID uint64
	UserID  uint64
	UserTag string
	Admin   bool
	Options map[string]string
}

// CommandHandler executes slash commands.
type CommandHandler struct {
	admin     *admin.Service
	verifier  Verifier
	directory Directory
	logger    *zap.Logger
}

// NewCommandHandler creates a command handler.
func NewCommandHandler(
	adminService *admin.Service, verifier Verifier, directory Directory, logger *zap.Logger,
) *CommandHandler {
	return &CommandHandler{
		admin:     adminService,
		verifier:  verifier,
		directory: directory,
		logger:    logger.Named("commands"),
	}
}

// Commands returns the slash commands registered in every guild.
func Commands() []discord.ApplicationCommandCreate {
	userOption := discord.ApplicationCommandOptionString{
		Name:        constants.UserIDOptionName,
		Description: constants.UserIDOptionDesc,
		Required:    true,
	}
	birthdayOption := discord.ApplicationCommandOptionString{
		Name:        constants.BirthdayOptionName,
		Description: constants.BirthdayOptionDesc,
		Required:    true,
	}

	return []discord.ApplicationCommandCreate{
		discord.SlashCommandCreate{
			Name:        constants.LogChannelCommandName,
			Description: "Set the channel that receives verification logs",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        constants.ChannelIDOptionName,
					Description: constants.ChannelIDOptionDesc,
					Required:    true,
				},
			},
		},
		discord.SlashCommandCreate{
			Name:        constants.AgeCommandName,
			Description: "Show the registered birthday of a user",
			Options:     []discord.ApplicationCommandOption{userOption},
		},
		discord.SlashCommandCreate{
			Name:        constants.AgeDeleteCommandName,
			Description: "Delete the registered birthday of a user",
			Options:     []discord.ApplicationCommandOption{userOption},
		},
		discord.SlashCommandCreate{
			Name:        constants.AgeEditCommandName,
			Description: "Change the registered birthday of a user",
			Options:     []discord.ApplicationCommandOption{userOption, birthdayOption},
		},
		discord.SlashCommandCreate{
			Name:        constants.AgeListCommandName,
			Description: "List every registered birthday",
		},
		discord.SlashCommandCreate{
			Name:        constants.AgeAddCommandName,
			Description: "Register a birthday for a user",
			Options:     []discord.ApplicationCommandOption{userOption, birthdayOption},
		},
		discord.SlashCommandCreate{
			Name:        constants.AgeVerifiedCommandName,
			Description: "Mark the birthday of a user as verified",
			Options:     []discord.ApplicationCommandOption{userOption},
		},
		discord.SlashCommandCreate{
			Name:        constants.VerifyCommandName,
			Description: "Verify your age through direct messages",
		},
	}
}

// Execute runs a command and returns the reply for the invoking user.
func (h *CommandHandler) Execute(ctx context.Context, inv Invocation) Reply {
	if inv.GuildID == 0 {
		return Text(GuildOnlyReply)
	}

	if inv.Name == constants.VerifyCommandName {
		return h.handleVerify(ctx, inv)
	}

	if !inv.Admin {
		return Text(NotAdminReply)
	}

	switch inv.Name {
	case constants.LogChannelCommandName:
		return h.handleLogChannel(ctx, inv)
	case constants.AgeCommandName:
		return h.handleLookup(ctx, inv)
	case constants.AgeDeleteCommandName:
		return h.handleDelete(ctx, inv)
	case constants.AgeEditCommandName:
		return h.handleEdit(ctx, inv)
	case constants.AgeListCommandName:
		return h.handleList(ctx, inv)
	case constants.AgeAddCommandName:
		return h.handleAdd(ctx, inv)
	case constants.AgeVerifiedCommandName:
		return h.handleMarkVerified(ctx, inv)
	default:
		return Text(UnknownReply)
	}
}

func (h *CommandHandler) handleLogChannel(ctx context.Context, inv Invocation) Reply {
	channelID, err := strconv.ParseUint(inv.Options[constants.ChannelIDOptionName], 10, 64)
	if err != nil {
		return Text("❌ Invalid channel ID.")
	}

	exists, err := h.directory.ChannelInGuild(ctx, inv.GuildID, channelID)
	if err != nil {
		return h.internalError("Failed to look up channel", inv, err)
	}

	if !exists {
		return Text("❌ Channel not found in this server.")
	}

	if err := h.admin.SetLogChannel(ctx, inv.GuildID, channelID); err != nil {
		return h.internalError("Failed to set log channel", inv, err)
	}

	return Text(fmt.Sprintf("✅ Verification logs will be sent to <#%d>.", channelID))
}

func (h *CommandHandler) handleLookup(ctx context.Context, inv Invocation) Reply {
	userID, ok := parseUserID(inv)
	if !ok {
		return Text(InvalidUserReply)
	}

	record, err := h.admin.Lookup(ctx, inv.GuildID, userID)
	if errors.Is(err, types.ErrRecordNotFound) {
		return Embed("❌ User Not Found", "There is no birthday registered for this user.", constants.ErrorEmbedColor)
	}

	if err != nil {
		return h.internalError("Failed to look up record", inv, err)
	}

	return Embed(
		"🎂 Birthday Found",
		fmt.Sprintf("The user with ID %d has their birthday on: %s.\nStatus: %s",
			record.UserID, record.BirthdayDate, admin.VerifiedStatus(record)),
		constants.SuccessEmbedColor,
	)
}

func (h *CommandHandler) handleDelete(ctx context.Context, inv Invocation) Reply {
	userID, ok := parseUserID(inv)
	if !ok {
		return Text(InvalidUserReply)
	}

	if err := h.admin.Delete(ctx, inv.GuildID, userID); err != nil {
		return h.internalError("Failed to delete record", inv, err)
	}

	return Text(fmt.Sprintf("🗑️ The birthday of the user with ID `%d` was removed.", userID))
}

func (h *CommandHandler) handleEdit(ctx context.Context, inv Invocation) Reply {
	userID, ok := parseUserID(inv)
	if !ok {
		return Text(InvalidUserReply)
	}

	record, err := h.admin.Edit(ctx, inv.GuildID, userID, inv.Options[constants.BirthdayOptionName])

	switch {
	case errors.Is(err, age.ErrInvalidFormat):
		return Text(InvalidFormatReply)
	case errors.Is(err, types.ErrRecordNotFound):
		return Text(UserNotFoundReply)
	case err != nil:
		return h.internalError("Failed to edit record", inv, err)
	}

	return Text(fmt.Sprintf("✅ The birthday of the user with ID `%d` was changed to `%s`.",
		userID, record.BirthdayDate))
}

func (h *CommandHandler) handleList(ctx context.Context, inv Invocation) Reply {
	records, err := h.admin.List(ctx, inv.GuildID)
	if err != nil {
		return h.internalError("Failed to list records", inv, err)
	}

	if len(records) == 0 {
		return Text("❌ No birthdays registered.")
	}

	lines := make([]string, 0, len(records))
	for _, record := range records {
		lines = append(lines, admin.FormatRecord(record))
	}

	chunks := ChunkLines(lines, constants.MaxEmbedDescriptionRunes)

	var reply Reply
	if len(chunks) > maxEmbedsPerMessage {
		chunks = chunks[:maxEmbedsPerMessage]
		reply.Content = fmt.Sprintf("Showing the first %d pages of %d records.", maxEmbedsPerMessage, len(records))
	}

	for i, chunk := range chunks {
		title := "🎂 Birthday List"
		if i > 0 {
			title = fmt.Sprintf("🎂 Birthday List (%d)", i+1)
		}

		reply.Embeds = append(reply.Embeds, discord.NewEmbedBuilder().
			SetTitle(title).
			SetDescription(chunk).
			SetColor(constants.ListEmbedColor).
			Build())
	}

	return reply
}

func (h *CommandHandler) handleAdd(ctx context.Context, inv Invocation) Reply {
	userID, ok := parseUserID(inv)
	if !ok {
		return Text(InvalidUserReply)
	}

	dateText := inv.Options[constants.BirthdayOptionName]
	if err := age.ValidateDate(dateText); err != nil {
		return Text(InvalidFormatReply)
	}

	tag, err := h.directory.UserTag(ctx, userID)
	if err != nil {
		h.logger.Debug("Failed to resolve user tag",
			zap.Uint64("userID", userID),
			zap.Error(err))

		tag = admin.UnknownTag
	}

	record, err := h.admin.Add(ctx, inv.GuildID, userID, tag, dateText)

	switch {
	case errors.Is(err, age.ErrInvalidFormat):
		return Text(InvalidFormatReply)
	case errors.Is(err, types.ErrDuplicateKey):
		return Text("❌ This user already has a registered birthday. Use `/age_edit` to change it.")
	case err != nil:
		return h.internalError("Failed to add record", inv, err)
	}

	return Text(fmt.Sprintf("✅ Birthday `%s` added for the user with ID `%d`.", record.BirthdayDate, userID))
}

func (h *CommandHandler) handleMarkVerified(ctx context.Context, inv Invocation) Reply {
	userID, ok := parseUserID(inv)
	if !ok {
		return Text(InvalidUserReply)
	}

	_, err := h.admin.MarkVerified(ctx, inv.GuildID, userID)
	if errors.Is(err, types.ErrRecordNotFound) {
		return Text(UserNotFoundReply)
	}

	if err != nil {
		return h.internalError("Failed to mark record as verified", inv, err)
	}

	return Text(fmt.Sprintf("✅ The user with ID `%d` was verified!", userID))
}

func (h *CommandHandler) handleVerify(ctx context.Context, inv Invocation) Reply {
	err := h.verifier.RequestVerification(ctx, verification.Member{
		GuildID: inv.GuildID,
		UserID:  inv.UserID,
		Tag:     inv.UserTag,
	})

	switch {
	case errors.Is(err, verification.ErrAlreadyVerified):
		return Text("You are already verified!")
	case errors.Is(err, verification.ErrAlreadyActive):
		return Text("You already have a verification in progress.")
	case errors.Is(err, verification.ErrExternalOperation):
		return Text("Could not send you a DM. Check your privacy settings.")
	case err != nil:
		return h.internalError("Failed to start verification", inv, err)
	}

	return Text("We sent you a DM with the verification process!")
}

func (h *CommandHandler) internalError(msg string, inv Invocation, err error) Reply {
	h.logger.Error(msg,
		zap.String("command", inv.Name),
		zap.Uint64("guildID", inv.GuildID),
		zap.Uint64("userID", inv.UserID),
		zap.Error(err))

	return Text(InternalErrorReply)
}

func parseUserID(inv Invocation) (uint64, bool) {
	userID, err := strconv.ParseUint(inv.Options[constants.UserIDOptionName], 10, 64)
	if err != nil || userID == 0 {
		return 0, false
	}

	return userID, true
}
