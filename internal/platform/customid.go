package platform

import (
	"strconv"
	"strings"

	"github.com/robalyx/chopper/internal/verification"
)

// Custom IDs of the verification prompt. Session ids carry the guild so that
// prompts sent over direct messages still resolve to their guild.
const (
	PromptButtonPrefix    = "chopper_prompt"
	BirthdayModalPrefix   = "chopper_birthday"
	BirthdayInputCustomID = "birthday_date"
)

// PromptButtonID returns the custom id of the prompt button of a session.
func PromptButtonID(key verification.Key) string {
	return sessionID(PromptButtonPrefix, key)
}

// ModalID returns the custom id of the birth date modal of a session.
func ModalID(key verification.Key) string {
	return sessionID(BirthdayModalPrefix, key)
}

// ParseSessionID extracts the session key from a custom id with the given prefix.
func ParseSessionID(customID, prefix string) (verification.Key, bool) {
	rest, ok := strings.CutPrefix(customID, prefix+":")
	if !ok {
		return verification.Key{}, false
	}

	guildText, userText, ok := strings.Cut(rest, ":")
	if !ok {
		return verification.Key{}, false
	}

	guildID, err := strconv.ParseUint(guildText, 10, 64)
	if err != nil {
		return verification.Key{}, false
	}

	userID, err := strconv.ParseUint(userText, 10, 64)
	if err != nil {
		return verification.Key{}, false
	}

	return verification.Key{GuildID: guildID, UserID: userID}, true
}

func sessionID(prefix string, key verification.Key) string {
	return prefix + ":" + key.String()
}
