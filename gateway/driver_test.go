package gateway

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emberlink/gatewire/internal/gwactor"
	"github.com/emberlink/gatewire/internal/wire"
)

func testOptions(t *testing.T) *Options {
	t.Helper()
	opts := &Options{
		URL:     "wss://gateway.example/",
		Token:   "test-token",
		Headers: http.Header{},
	}
	require.NoError(t, opts.Validate())
	return opts
}

func freshState(opts *Options) engineState {
	return engineState{
		phase:        phaseIdle,
		media:        newMediaRegistry(opts.MediaFactory),
		basePresence: opts.Presence,
		disabled:     opts.DisabledEvents,
	}
}

func i64(v int64) *int64 { return &v }

func effectsOf[T gwactor.Effect](effects []gwactor.Effect) []T {
	var out []T
	for _, e := range effects {
		if v, ok := e.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

func helloFrame(intervalMS int64) *wire.Frame {
	return &wire.Frame{Op: wire.OpHello, D: mustMarshal(wire.HelloPayload{HeartbeatInterval: intervalMS})}
}

func readyFrame(seq int64, sessionID, userID string) *wire.Frame {
	var ready wire.ReadyPayload
	ready.SessionID = sessionID
	ready.User.ID = userID
	return &wire.Frame{Op: wire.OpDispatch, T: wire.EventReady, S: i64(seq), D: mustMarshal(ready)}
}

func TestHappyPathIdentifiesThenBecomesReady(t *testing.T) {
	opts := testOptions(t)
	step := reduce(opts)
	s := freshState(opts)

	s, effects := step(s, inputConnect{})
	require.Equal(t, phaseConnecting, s.phase)
	require.Len(t, effectsOf[effectDial](effects), 1)

	s, _ = step(s, inputTransportOpen{})
	require.Equal(t, phaseAwaitingHello, s.phase)

	s, effects = step(s, inputFrameDecoded{Frame: helloFrame(1000), NowMS: 0})
	require.Equal(t, phaseIdentifying, s.phase, "no prior session, so HELLO must trigger IDENTIFY, not RESUME")
	sends := effectsOf[effectSendFrame](effects)
	require.Len(t, sends, 2, "HELLO must fire an immediate heartbeat in addition to IDENTIFY")
	require.Equal(t, wire.OpHeartbeat, sends[0].Frame.Op)
	require.Equal(t, wire.OpIdentify, sends[1].Frame.Op)
	require.True(t, sends[1].Direct, "IDENTIFY must bypass the rate bucket")
	require.Len(t, effectsOf[effectStartHeartbeat](effects), 1)

	s, effects = step(s, inputFrameDecoded{Frame: readyFrame(1, "sess-1", "user-1"), NowMS: 0})
	require.Equal(t, phaseConnected, s.phase)
	require.Equal(t, "sess-1", s.session.sessionID)
	require.Equal(t, "user-1", s.session.userID)
	require.Equal(t, int64(1), s.session.seq)
	require.Len(t, effectsOf[effectUnlockBucket](effects), 1, "READY must unlock the rate bucket")

	notifies := effectsOf[effectNotify](effects)
	require.Len(t, notifies, 1)
	ready, ok := notifies[0].Notification.(NotifyReady)
	require.True(t, ok)
	require.Equal(t, "sess-1", ready.SessionID)
	require.False(t, ready.Resumed)
}

func TestResumeSendsResumePayloadWhenSessionSurvives(t *testing.T) {
	opts := testOptions(t)
	step := reduce(opts)
	s := freshState(opts)
	s.session.setReady("sess-1", "user-1", nil)
	s.session.observeSeq(3)

	s, effects := step(s, inputFrameDecoded{Frame: helloFrame(1000), NowMS: 0})
	require.Equal(t, phaseResuming, s.phase)

	sends := effectsOf[effectSendFrame](effects)
	require.Len(t, sends, 2, "HELLO must fire an immediate heartbeat in addition to RESUME")
	require.Equal(t, wire.OpHeartbeat, sends[0].Frame.Op)
	require.Equal(t, wire.OpResume, sends[1].Frame.Op)
	require.True(t, sends[1].Direct, "RESUME must bypass the rate bucket")

	var resume wire.ResumePayload
	require.NoError(t, unmarshal(sends[1].Frame.D, &resume))
	require.Equal(t, "sess-1", resume.SessionID)
	require.Equal(t, int64(3), resume.Seq)
}

func TestSequenceGapClosesWithoutAdvancingSeq(t *testing.T) {
	opts := testOptions(t)
	step := reduce(opts)
	s := freshState(opts)
	s.session.setReady("sess-1", "user-1", nil)
	s.session.observeSeq(1)

	dispatch := &wire.Frame{Op: wire.OpDispatch, T: "SOME_EVENT", S: i64(5), D: mustMarshal(map[string]any{})}
	s, effects := step(s, inputFrameDecoded{Frame: dispatch, NowMS: 0})

	require.Equal(t, phaseClosing, s.phase)
	require.Equal(t, int64(1), s.session.seq, "sequence must stay at the last contiguous value so RESUME replays the gap")

	closes := effectsOf[effectCloseTransport](effects)
	require.Len(t, closes, 1)
	require.Equal(t, closeCodeSeqGap, closes[0].Code)
}

func TestMissedHeartbeatTripsZombieDetection(t *testing.T) {
	opts := testOptions(t)
	step := reduce(opts)
	s := freshState(opts)
	s.heartbeat.start(1000, 1)

	s, effects := step(s, inputHeartbeatTick{NowMS: 1000})
	require.Empty(t, effectsOf[effectCloseTransport](effects), "first beat has nothing to have missed yet")

	s, effects = step(s, inputHeartbeatTick{NowMS: 2000})
	require.Equal(t, phaseClosing, s.phase)
	closes := effectsOf[effectCloseTransport](effects)
	require.Len(t, closes, 1)
	require.Equal(t, 4009, closes[0].Code)
}

func TestInvalidSessionResumablePreservesSessionAndSchedulesJitter(t *testing.T) {
	opts := testOptions(t)
	step := reduce(opts)
	s := freshState(opts)
	s.session.setReady("sess-1", "user-1", nil)
	s.session.observeSeq(3)

	frame := &wire.Frame{Op: wire.OpInvalidSession, D: mustMarshal(true)}
	s, effects := step(s, inputFrameDecoded{Frame: frame, NowMS: 0})

	require.Equal(t, phaseClosing, s.phase)
	require.True(t, s.jitterReconnect)
	require.Equal(t, "sess-1", s.session.sessionID, "resumable invalid session must not wipe session state")
	closes := effectsOf[effectCloseTransport](effects)
	require.Len(t, closes, 1)
	require.Equal(t, closeCodeInvalidSession, closes[0].Code)

	// Simulate the close landing: the scheduled reconnect must use jitter,
	// not the linear backoff ladder, and the flag resets afterward.
	s, effects = step(s, inputTransportClose{Code: closeCodeInvalidSession, Reason: "invalid session"})
	require.False(t, s.jitterReconnect)
	require.Equal(t, "sess-1", s.session.sessionID)
	require.Len(t, effectsOf[effectScheduleReconnectJitter](effects), 1)
	require.Empty(t, effectsOf[effectScheduleReconnect](effects))
}

func TestInvalidSessionNonResumableWipesSession(t *testing.T) {
	opts := testOptions(t)
	step := reduce(opts)
	s := freshState(opts)
	s.session.setReady("sess-1", "user-1", nil)
	s.session.observeSeq(3)

	frame := &wire.Frame{Op: wire.OpInvalidSession, D: mustMarshal(false)}
	s, _ = step(s, inputFrameDecoded{Frame: frame, NowMS: 0})

	require.Equal(t, sessionState{}, s.session)
}

func TestTransportCloseWipesSessionOnNormalAndGoingAway(t *testing.T) {
	for _, code := range []int{closeCodeNormal, closeCodeGoingAway} {
		opts := testOptions(t)
		step := reduce(opts)
		s := freshState(opts)
		s.session.setReady("sess-1", "user-1", nil)
		s.session.observeSeq(1)

		s, _ = step(s, inputTransportClose{Code: code, Reason: "server closed"})
		require.Equal(t, sessionState{}, s.session, "code %d must force a fresh IDENTIFY", code)
	}
}

func TestTransportClosePreservesSessionOnAbnormalCodes(t *testing.T) {
	opts := testOptions(t)
	step := reduce(opts)
	s := freshState(opts)
	s.session.setReady("sess-1", "user-1", nil)
	s.session.observeSeq(1)

	s, _ = step(s, inputTransportClose{Code: 1006, Reason: "connection dropped"})
	require.Equal(t, "sess-1", s.session.sessionID, "an abnormal drop must preserve the session for RESUME")
}

func TestVoiceConnectTimeoutFiresOnlyWhileStillPending(t *testing.T) {
	opts := testOptions(t)
	step := reduce(opts)
	s := freshState(opts)

	guildID := "guild-1"
	req := wire.VoiceStateUpdateRequest{GuildID: &guildID, ChannelID: &guildID}
	s, effects := step(s, inputSendVoiceStateUpdate{Req: req})
	require.Len(t, effectsOf[effectStartVoiceTimeout](effects), 1)

	s, effects = step(s, inputVoiceConnectTimeout{ServerID: guildID})
	notifies := effectsOf[effectNotify](effects)
	require.Len(t, notifies, 1)
	_, ok := notifies[0].Notification.(NotifyVoiceConnectFailed)
	require.True(t, ok)

	// A second timeout for the same server, now that it's no longer
	// pending, must be a no-op.
	_, effects = step(s, inputVoiceConnectTimeout{ServerID: guildID})
	require.Empty(t, effects)
}
