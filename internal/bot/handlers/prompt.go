package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/robalyx/chopper/internal/age"
	"github.com/robalyx/chopper/internal/database/types"
	"github.com/robalyx/chopper/internal/verification"
	"go.uber.org/zap"
)

// Prompt replies.
const (
	NotYourPromptReply  = "This button is only for you."
	InactivePromptReply = "❌ This verification is no longer active."
	AlreadyGivenReply   = "❌ You have already provided your birth date."
	UnderageReply       = "🚫 You must be at least 18 years old to continue."
)

// SessionManager is the part of the verification manager used by prompts.
type SessionManager interface {
	Session(key verification.Key) (*verification.Session, bool)
	Submit(ctx context.Context, key verification.Key, dateText string) (verification.SubmitResult, error)
}

// PromptHandler handles the verification button and the birth date modal.
type PromptHandler struct {
	sessions SessionManager
	logger   *zap.Logger
}

// NewPromptHandler creates a prompt handler.
func NewPromptHandler(sessions SessionManager, logger *zap.Logger) *PromptHandler {
	return &PromptHandler{
		sessions: sessions,
		logger:   logger.Named("prompt"),
	}
}

// Open checks whether a user may open the birth date modal of a session.
// When they may not, the returned reply explains why.
func (h *PromptHandler) Open(key verification.Key, userID uint64) (Reply, bool) {
	if userID != key.UserID {
		return Text(NotYourPromptReply), false
	}

	if _, ok := h.sessions.Session(key); !ok {
		return Text(InactivePromptReply), false
	}

	return Reply{}, true
}

// Submit hands a birth date to the session and renders the result.
func (h *PromptHandler) Submit(ctx context.Context, key verification.Key, userID uint64, dateText string) Reply {
	if userID != key.UserID {
		return Text(NotYourPromptReply)
	}

	result, err := h.sessions.Submit(ctx, key, dateText)

	switch {
	case errors.Is(err, age.ErrInvalidFormat):
		return Text(InvalidFormatReply)
	case errors.Is(err, types.ErrDuplicateKey):
		return Text(AlreadyGivenReply)
	case errors.Is(err, verification.ErrNoActiveSession):
		return Text(InactivePromptReply)
	case err != nil:
		h.logger.Error("Failed to submit birth date",
			zap.String("session", key.String()),
			zap.Error(err))

		return Text(InternalErrorReply)
	}

	if result.Outcome == verification.Banned {
		return Text(UnderageReply)
	}

	return Text(fmt.Sprintf("🎉 Your age was confirmed as **%d years**!", result.Age))
}
