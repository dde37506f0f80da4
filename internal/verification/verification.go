// Package verification runs the age verification workflow of newly joined members.
//
// Every member gets at most one Session per guild. A session starts Pending and ends
// exactly once in Verified, Banned or Kicked, whichever of submission or timeout wins.
package verification

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

var (
	// ErrAlreadyActive indicates that the member already has a pending session.
	ErrAlreadyActive = errors.New("verification session already active")
	// ErrAlreadyVerified indicates that the member already has a birthday record.
	ErrAlreadyVerified = errors.New("member already verified")
	// ErrNoActiveSession indicates that the member has no pending session to submit to.
	ErrNoActiveSession = errors.New("no active verification session")
	// ErrExternalOperation marks a failed ban, kick, channel or message operation.
	ErrExternalOperation = errors.New("external operation failed")
)

// Ban and kick reasons shown in the guild audit log.
const (
	BanReason  = "Under 18 years old"
	KickReason = "Did not complete age verification in time"
)

// Key identifies a session.
type Key struct {
	GuildID uint64
	UserID  uint64
}

// String returns the key in guild:user form.
func (k Key) String() string {
	return strconv.FormatUint(k.GuildID, 10) + ":" + strconv.FormatUint(k.UserID, 10)
}

// Member is the guild member being verified.
type Member struct {
	GuildID uint64
	UserID  uint64
	Tag     string
	Bot     bool
}

// Key returns the session key of the member.
func (m Member) Key() Key {
	return Key{GuildID: m.GuildID, UserID: m.UserID}
}

// Mention returns the platform mention of the member.
func (m Member) Mention() string {
	return fmt.Sprintf("<@%d>", m.UserID)
}

// Outcome is the state of a session.
type Outcome int

const (
	Pending Outcome = iota
	Verified
	Banned
	Kicked
)

// String returns the lowercase name of the outcome.
func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Verified:
		return "verified"
	case Banned:
		return "banned"
	case Kicked:
		return "kicked"
	default:
		return "unknown"
	}
}

// Terminal reports whether the outcome ends a session.
func (o Outcome) Terminal() bool {
	return o != Pending
}

// Settings are the process-wide workflow settings.
type Settings struct {
	// Timeout is how long a member has to submit a birth date.
	Timeout time.Duration
	// Grace is the delay before a decided session's channel is deleted.
	Grace time.Duration
	// ToleranceMonths is how many months short of 18 are still accepted.
	ToleranceMonths int
	// ModeratorRole is the name of the role that may see verification channels.
	ModeratorRole string
}

// SubmitResult is the decision reported back to the member after a submission.
type SubmitResult struct {
	Outcome Outcome
	Age     int
}

// LogEntry is a decision posted to the guild's log channel.
type LogEntry struct {
	Outcome  Outcome
	Member   Member
	Age      int
	Birthday string
	At       time.Time
}
