package types

import (
	"errors"
	"time"

	"github.com/uptrace/bun"
)

var (
	// ErrRecordNotFound indicates that a guild has no birthday record for the user.
	ErrRecordNotFound = errors.New("birthday record not found")
	// ErrDuplicateKey indicates that a guild already has a birthday record for the user.
	ErrDuplicateKey = errors.New("birthday record already exists")
	// ErrLogChannelNotSet indicates that a guild has not configured a log channel.
	ErrLogChannelNotSet = errors.New("log channel not configured")
)

// BirthdayRecord is the stored birth date of a guild member.
type BirthdayRecord struct {
	bun.BaseModel `bun:"table:birthdays,alias:b"`

	GuildID      uint64    `bun:",pk"`                    // Guild owning the record
	UserID       uint64    `bun:",pk"`                    // Discord user ID
	UserTag      string    `bun:",notnull"`               // Username snapshot at record time
	BirthdayDate string    `bun:",notnull"`               // DD-MM-YYYY
	Verified     bool      `bun:",notnull,default:false"` // Confirmed by an administrator
	Sequence     int64     `bun:",notnull"`               // Insertion order within the guild
	CreatedAt    time.Time `bun:",notnull"`               // When the record was created
	UpdatedAt    time.Time `bun:",notnull"`               // When the record was last changed
}

// LogChannel is the channel where a guild receives verification logs.
type LogChannel struct {
	bun.BaseModel `bun:"table:log_channel,alias:lc"`

	GuildID   uint64    `bun:",pk"`      // Guild owning the setting
	ChannelID uint64    `bun:",notnull"` // Discord channel ID
	UpdatedAt time.Time `bun:",notnull"` // When the setting was last changed
}
