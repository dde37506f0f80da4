package handlers

import (
	"strings"
	"unicode/utf8"

	"github.com/disgoorg/disgo/discord"
)

// Reply is the response to an interaction. It is always sent ephemerally.
type Reply struct {
	Content string
	Embeds  []discord.Embed
}

// Text creates a plain text reply.
func Text(content string) Reply {
	return Reply{Content: content}
}

// Embed creates a reply carrying a single embed.
func Embed(title, description string, color int) Reply {
	return Reply{Embeds: []discord.Embed{
		discord.NewEmbedBuilder().
			SetTitle(title).
			SetDescription(description).
			SetColor(color).
			Build(),
	}}
}

// MessageUpdate converts the reply into an update of a deferred response.
func (r Reply) MessageUpdate() discord.MessageUpdate {
	return discord.NewMessageUpdateBuilder().
		SetContent(r.Content).
		SetEmbeds(r.Embeds...).
		Build()
}

// MessageCreate converts the reply into an ephemeral message.
func (r Reply) MessageCreate() discord.MessageCreate {
	return discord.NewMessageCreateBuilder().
		SetContent(r.Content).
		SetEmbeds(r.Embeds...).
		SetEphemeral(true).
		Build()
}

// ChunkLines joins lines into blocks no longer than limit runes.
// A single line longer than limit gets a block of its own.
func ChunkLines(lines []string, limit int) []string {
	var (
		chunks []string
		b      strings.Builder
		size   int
	)

	for _, line := range lines {
		length := utf8.RuneCountInString(line)
		if size > 0 && size+1+length > limit {
			chunks = append(chunks, b.String())
			b.Reset()
			size = 0
		}

		if size > 0 {
			b.WriteByte('\n')
			size++
		}

		b.WriteString(line)
		size += length
	}

	if size > 0 {
		chunks = append(chunks, b.String())
	}

	return chunks
}
