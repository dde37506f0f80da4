package handlers_test

import (
	"context"
	"errors"
	"testing"

	"github.com/robalyx/chopper/internal/age"
	"github.com/robalyx/chopper/internal/bot/handlers"
	"github.com/robalyx/chopper/internal/database/types"
	"github.com/robalyx/chopper/internal/verification"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeSessions struct {
	active bool
	result verification.SubmitResult
	err    error
	dates  []string
}

func (f *fakeSessions) Session(verification.Key) (*verification.Session, bool) {
	return nil, f.active
}

func (f *fakeSessions) Submit(_ context.Context, _ verification.Key, dateText string) (verification.SubmitResult, error) {
	f.dates = append(f.dates, dateText)
	return f.result, f.err
}

var promptKey = verification.Key{GuildID: testGuild, UserID: testMember}

func TestPrompt_Open(t *testing.T) {
	t.Parallel()

	sessions := &fakeSessions{active: true}
	handler := handlers.NewPromptHandler(sessions, zap.NewNop())

	reply, ok := handler.Open(promptKey, 999)
	assert.False(t, ok)
	assert.Equal(t, handlers.NotYourPromptReply, reply.Content)

	_, ok = handler.Open(promptKey, testMember)
	assert.True(t, ok)

	sessions.active = false
	reply, ok = handler.Open(promptKey, testMember)
	assert.False(t, ok)
	assert.Equal(t, handlers.InactivePromptReply, reply.Content)
}

func TestPrompt_Submit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		result verification.SubmitResult
		err    error
		want   string
	}{
		{
			name:   "verified",
			result: verification.SubmitResult{Outcome: verification.Verified, Age: 20},
			want:   "🎉 Your age was confirmed as **20 years**!",
		},
		{
			name:   "banned",
			result: verification.SubmitResult{Outcome: verification.Banned, Age: 13},
			want:   handlers.UnderageReply,
		},
		{name: "invalid format", err: age.ErrInvalidFormat, want: handlers.InvalidFormatReply},
		{name: "already registered", err: types.ErrDuplicateKey, want: handlers.AlreadyGivenReply},
		{name: "session gone", err: verification.ErrNoActiveSession, want: handlers.InactivePromptReply},
		{name: "storage failure", err: errors.New("disk full"), want: handlers.InternalErrorReply},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sessions := &fakeSessions{active: true, result: tt.result, err: tt.err}
			handler := handlers.NewPromptHandler(sessions, zap.NewNop())

			reply := handler.Submit(t.Context(), promptKey, testMember, "19-10-2004")
			assert.Equal(t, tt.want, reply.Content)
			assert.Equal(t, []string{"19-10-2004"}, sessions.dates)
		})
	}
}

func TestPrompt_SubmitByOtherUser(t *testing.T) {
	t.Parallel()

	sessions := &fakeSessions{active: true}
	handler := handlers.NewPromptHandler(sessions, zap.NewNop())

	reply := handler.Submit(t.Context(), promptKey, 999, "19-10-2004")
	assert.Equal(t, handlers.NotYourPromptReply, reply.Content)
	assert.Empty(t, sessions.dates)
}
