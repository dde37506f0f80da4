package events

import (
	"context"
	"time"

	"github.com/disgoorg/disgo/events"
	"github.com/robalyx/chopper/internal/verification"
	"go.uber.org/zap"
)

// JoinHandler starts verification for new members.
type JoinHandler interface {
	HandleJoin(ctx context.Context, member verification.Member) error
}

// MemberEventHandler manages member-related events for the bot.
type MemberEventHandler struct {
	joins  JoinHandler
	logger *zap.Logger
}

// NewMemberEventHandler creates a new instance of the member event handler.
func NewMemberEventHandler(joins JoinHandler, logger *zap.Logger) *MemberEventHandler {
	return &MemberEventHandler{
		joins:  joins,
		logger: logger.Named("member_events"),
	}
}

// OnGuildMemberJoin starts a verification session for the new member.
func (h *MemberEventHandler) OnGuildMemberJoin(event *events.GuildMemberJoin) {
	member := verification.Member{
		GuildID: uint64(event.GuildID),
		UserID:  uint64(event.Member.User.ID),
		Tag:     event.Member.User.Username,
		Bot:     event.Member.User.Bot,
	}

	go h.handleJoin(member)
}

func (h *MemberEventHandler) handleJoin(member verification.Member) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("Panic in member join handler", zap.Any("panic", r))
		}

		h.logger.Debug("Member join handled",
			zap.Uint64("guildID", member.GuildID),
			zap.Uint64("userID", member.UserID),
			zap.Duration("duration", time.Since(start)))
	}()

	if err := h.joins.HandleJoin(context.Background(), member); err != nil {
		h.logger.Error("Failed to start verification",
			zap.Uint64("guildID", member.GuildID),
			zap.Uint64("userID", member.UserID),
			zap.Error(err))
	}
}
