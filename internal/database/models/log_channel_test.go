package models_test

import (
	"testing"

	"github.com/robalyx/chopper/internal/database/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogChannel_NotSet(t *testing.T) {
	_, err := newRepository(t).LogChannel().GetLogChannel(t.Context(), guildA)
	assert.ErrorIs(t, err, types.ErrLogChannelNotSet)
}

func TestLogChannel_SetReplaces(t *testing.T) {
	ctx := t.Context()
	model := newRepository(t).LogChannel()

	require.NoError(t, model.SetLogChannel(ctx, guildA, 555))
	require.NoError(t, model.SetLogChannel(ctx, guildA, 777))

	channelID, err := model.GetLogChannel(ctx, guildA)
	require.NoError(t, err)
	assert.Equal(t, uint64(777), channelID)

	_, err = model.GetLogChannel(ctx, guildB)
	assert.ErrorIs(t, err, types.ErrLogChannelNotSet)
}
