package gateway

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeartbeatBeatDoesNotZombieOnFirstTick(t *testing.T) {
	var h heartbeatState
	h.start(1000, 1)

	require.False(t, h.beat(1000))
}

func TestHeartbeatBeatZombiesAfterMissedAck(t *testing.T) {
	var h heartbeatState
	h.start(1000, 1)

	require.False(t, h.beat(1000)) // first beat: nothing to have acked yet
	require.True(t, h.beat(2000), "no ack arrived between beats, so the second beat must trip zombie detection")
}

func TestHeartbeatAckResetsMissCounter(t *testing.T) {
	var h heartbeatState
	h.start(1000, 2)

	h.beat(1000)
	h.ack(1050)
	require.False(t, h.beat(2000))
}

func TestHeartbeatLatencySamplesRoundTrip(t *testing.T) {
	var h heartbeatState
	h.start(1000, 1)

	_, ok := h.latency()
	require.False(t, ok)

	h.beat(1000)
	h.ack(1075)

	ms, ok := h.latency()
	require.True(t, ok)
	require.Equal(t, int64(75), ms)
}
