package platform_test

import (
	"errors"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/chopper/internal/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// channelRest serves GetChannel from a fixed channel or error.
type channelRest struct {
	rest.Rest

	channel discord.Channel
	err     error
}

func (r *channelRest) GetChannel(snowflake.ID, ...rest.RequestOpt) (discord.Channel, error) {
	return r.channel, r.err
}

func guildTextChannel(t *testing.T, raw string) discord.Channel {
	t.Helper()

	var channel discord.GuildTextChannel
	require.NoError(t, sonic.Unmarshal([]byte(raw), &channel))

	return channel
}

func TestChannelInGuild(t *testing.T) {
	t.Parallel()

	textChannel := guildTextChannel(t, `{"id":"777","type":0,"guild_id":"100","name":"logs"}`)

	tests := []struct {
		name    string
		channel discord.Channel
		err     error
		want    bool
		wantErr bool
	}{
		{name: "channel in guild", channel: textChannel, want: true},
		{
			name:    "channel in other guild",
			channel: guildTextChannel(t, `{"id":"888","type":0,"guild_id":"999","name":"logs"}`),
			want:    false,
		},
		{name: "unknown channel", err: rest.Error{Code: 10003, Message: "Unknown Channel"}, want: false},
		{name: "missing access", err: rest.Error{Code: 50001, Message: "Missing Access"}, want: false},
		{name: "other api error", err: rest.Error{Code: 50035, Message: "Invalid Form Body"}, wantErr: true},
		{name: "transport error", err: errors.New("connection reset"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := platform.New(&channelRest{channel: tt.channel, err: tt.err}, 1, "verify", zap.NewNop())

			got, err := p.ChannelInGuild(t.Context(), 100, 777)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
