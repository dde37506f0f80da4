package platform

import (
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/robalyx/chopper/internal/verification"
)

// Embed colors.
const (
	PromptColor  = 0x9B59B6
	SuccessColor = 0x2ECC71
	ErrorColor   = 0xE74C3C
	InfoColor    = 0x3498DB
)

// LogTimeLayout is the timestamp format of log channel messages.
const LogTimeLayout = "02-01-2006 15:04"

// PromptMessage is the message posted in a member's verification channel.
func PromptMessage(member verification.Member) discord.MessageCreate {
	return discord.NewMessageCreateBuilder().
		SetContent(member.Mention()).
		AddEmbeds(discord.NewEmbedBuilder().
			SetTitle("✨ Welcome!").
			SetDescription("Click the button below to verify your age.").
			SetColor(PromptColor).
			Build()).
		AddActionRow(discord.NewPrimaryButton("👀 Enter your birth date", PromptButtonID(member.Key()))).
		Build()
}

// DirectPromptMessage is the prompt sent in direct messages by the verify command.
func DirectPromptMessage(member verification.Member) discord.MessageCreate {
	return discord.NewMessageCreateBuilder().
		SetContent("Click the button to verify your age.").
		AddActionRow(discord.NewPrimaryButton("Verify age", PromptButtonID(member.Key()))).
		Build()
}

// BirthdayModal asks the member for their birth date.
func BirthdayModal(key verification.Key) discord.ModalCreate {
	return discord.NewModalCreateBuilder().
		SetCustomID(ModalID(key)).
		SetTitle("🔞 Age Verification").
		AddActionRow(
			discord.NewTextInput(BirthdayInputCustomID, discord.TextInputStyleShort, "Birth date (DD-MM-YYYY)").
				WithPlaceholder("Example: 19-10-2004").
				WithMinLength(10).
				WithMaxLength(10).
				WithRequired(true),
		).
		Build()
}

// LogMessage renders a decision for the guild's log channel.
func LogMessage(entry verification.LogEntry) discord.MessageCreate {
	return discord.NewMessageCreateBuilder().
		SetContent(LogContent(entry)).
		SetAllowedMentions(&discord.AllowedMentions{}).
		Build()
}

// LogContent is the text of a log channel message.
func LogContent(entry verification.LogEntry) string {
	title := "User Registered"
	if entry.Outcome == verification.Banned {
		title = "User Banned"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📢 **%s**\n", title)
	fmt.Fprintf(&b, "User: %s\n", entry.Member.Mention())
	fmt.Fprintf(&b, "Age: %d\n", entry.Age)
	fmt.Fprintf(&b, "Birthday: %s\n", entry.Birthday)
	fmt.Fprintf(&b, "Date/Time: %s", entry.At.Format(LogTimeLayout))

	return b.String()
}
