package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/emberlink/gatewire/internal/codec"
)

func minimalOptions() Options {
	return Options{URL: "wss://gateway.example/", Token: "test-token"}
}

func TestValidateFillsInDefaults(t *testing.T) {
	o := minimalOptions()
	require.NoError(t, o.Validate())

	require.Equal(t, 30*time.Second, o.VoiceConnectTimeout)
	require.NotNil(t, o.JitterFunc)
	require.NotNil(t, o.Logger)
	require.NotNil(t, o.Clock)
	require.NotNil(t, o.MediaFactory)
	require.Equal(t, codec.ModeJSON, o.Encoding)
}

func TestValidateDefaultJitterIsUniformOverOneToSixSeconds(t *testing.T) {
	o := minimalOptions()
	require.NoError(t, o.Validate())

	for i := 0; i < 100; i++ {
		d := o.JitterFunc()
		require.GreaterOrEqual(t, d, time.Second)
		require.LessOrEqual(t, d, 6*time.Second)
	}
}

func TestValidateRejectsUnknownEncoding(t *testing.T) {
	o := minimalOptions()
	o.Encoding = codec.Mode(99)
	require.Error(t, o.Validate())
}

func TestValidateRejectsShardIDOutOfRange(t *testing.T) {
	o := minimalOptions()
	o.Shard = []int{4, 4}
	require.Error(t, o.Validate())
}

func TestValidateRejectsMalformedShard(t *testing.T) {
	o := minimalOptions()
	o.Shard = []int{0}
	require.Error(t, o.Validate())
}

func TestValidateAcceptsInRangeShard(t *testing.T) {
	o := minimalOptions()
	o.Shard = []int{2, 4}
	require.NoError(t, o.Validate())
}

func TestValidateRequiresURLAndToken(t *testing.T) {
	require.ErrorIs(t, (&Options{Token: "x"}).Validate(), ErrNoURL)
	require.ErrorIs(t, (&Options{URL: "wss://x"}).Validate(), ErrNoToken)
}

func TestValidateFillsInReconnectDefaults(t *testing.T) {
	o := minimalOptions()
	require.NoError(t, o.Validate())

	require.Equal(t, 5000*time.Millisecond, o.ReconnectDelay)
	require.Equal(t, 5, o.ReconnectMax)
	require.False(t, o.DisableAutoReconnect, "auto_reconnect defaults to true")
	require.False(t, o.DisableGuildSubscriptions, "guild_subscriptions defaults to true")
}

func TestValidatePreservesExplicitReconnectSettings(t *testing.T) {
	o := minimalOptions()
	o.ReconnectDelay = 250 * time.Millisecond
	o.ReconnectMax = 1
	o.DisableAutoReconnect = true
	require.NoError(t, o.Validate())

	require.Equal(t, 250*time.Millisecond, o.ReconnectDelay)
	require.Equal(t, 1, o.ReconnectMax)
	require.True(t, o.DisableAutoReconnect)
}
