package gateway

import (
	"time"

	"github.com/emberlink/gatewire/internal/gwactor"
	"github.com/emberlink/gatewire/internal/wire"
)

// phase is the protocol driver's coarse connection state (§4.G).
type phase int

const (
	phaseIdle phase = iota
	phaseConnecting
	phaseAwaitingHello
	phaseIdentifying
	phaseResuming
	phaseConnected
	phaseClosing
)

// engineState is the pure state the actor loop owns. Every field here must
// be derivable from Inputs alone — no clocks, no I/O results that aren't
// already captured by an Input.
type engineState struct {
	phase phase

	session   sessionState
	heartbeat heartbeatState
	media     *MediaRegistry

	basePresence *PresenceConfig
	disabled     map[string]bool

	closing bool // user requested Close; do not reconnect after transport closes
	killed  bool // kill() has run; terminal, never reconnects again

	// reconnectAttempt counts consecutive failed connections since the
	// last READY/RESUMED (§4.E resets it on both). Compared against
	// Options.ReconnectMax to enforce the reconnect budget (§5, §4.F).
	reconnectAttempt int

	// jitterReconnect makes the next scheduled reconnect use the random
	// [1000ms,6000ms] delay instead of the linear backoff ladder (§4.G),
	// set when an INVALID_SESSION frame forced this disconnect.
	jitterReconnect bool
}

// --- Inputs -----------------------------------------------------------

type inputConnect struct{ gwactor.InputBase }
type inputTransportOpen struct{ gwactor.InputBase }
type inputFrameDecoded struct {
	gwactor.InputBase
	Frame *wire.Frame
	NowMS int64
}
type inputDecodeWarning struct {
	gwactor.InputBase
	Err error
}
type inputTransportClose struct {
	gwactor.InputBase
	Code   int
	Reason string
}
type inputTransportError struct {
	gwactor.InputBase
	Err error
}
type inputHeartbeatTick struct {
	gwactor.InputBase
	NowMS int64
}
type inputSendPresence struct {
	gwactor.InputBase
	Override *PresenceConfig
}
type inputSendVoiceStateUpdate struct {
	gwactor.InputBase
	Req wire.VoiceStateUpdateRequest
}
type inputVoiceConnectTimeout struct {
	gwactor.InputBase
	ServerID string
}
type inputClose struct {
	gwactor.InputBase
	Code   int
	Reason string
}
type inputDrainTick struct{ gwactor.InputBase }
type inputKill struct{ gwactor.InputBase }
type inputVoiceConnect struct {
	gwactor.InputBase
	ServerID string
	Req      wire.VoiceStateUpdateRequest
	Timeout  time.Duration
	Reply    chan VoiceConnectResult
}

// --- Effects ------------------------------------------------------------

type effectDial struct {
	gwactor.EffectBase
	// Attempt is the reconnect counter this dial corresponds to, carried
	// from state into the log line handleDial writes (§4.E "trace").
	Attempt int
}
type effectSendFrame struct {
	gwactor.EffectBase
	Frame *wire.Frame
	// Direct sends bypass the rate bucket entirely (§4.D, §4.F): heartbeats,
	// IDENTIFY, and RESUME must go out even while the bucket is locked or
	// backlogged, since they're what liveness and session recovery depend on.
	Direct bool
}
type effectCloseTransport struct {
	gwactor.EffectBase
	Code   int
	Reason string
}
type effectStartHeartbeat struct {
	gwactor.EffectBase
	IntervalMS int64
}
type effectStopHeartbeat struct{ gwactor.EffectBase }
type effectNotify struct {
	gwactor.EffectBase
	Notification Notification
}
type effectStartVoiceTimeout struct {
	gwactor.EffectBase
	ServerID string
	// Timeout overrides Options.VoiceConnectTimeout for this handshake.
	// Zero means "use the default".
	Timeout time.Duration
}
type effectCancelVoiceTimeout struct {
	gwactor.EffectBase
	ServerID string
}
type effectMediaConnect struct {
	gwactor.EffectBase
	Session   MediaSession
	Endpoint  string
	Token     string
	SessionID string
	UserID    string
}
type effectMediaDisconnect struct {
	gwactor.EffectBase
	Session MediaSession
}
type effectScheduleReconnect struct {
	gwactor.EffectBase
	// Attempt is the post-increment reconnect counter (§4.F "incrementing
	// the reconnect counter post-schedule"), used to compute the linear
	// backoff delay: attempt * Options.ReconnectDelay.
	Attempt int
}

// effectResolveVoiceConnect delivers a VoiceConnect call's result to the
// channel the caller is blocked reading from. Reply is nil for calls that
// didn't ask to wait (there is currently only one waiter per server_id).
type effectResolveVoiceConnect struct {
	gwactor.EffectBase
	Reply  chan VoiceConnectResult
	Result VoiceConnectResult
}

// effectScheduleReconnectJitter schedules a reconnect after a uniformly
// random delay instead of the linear backoff (§4.G, §9): INVALID_SESSION
// requires the retry to land somewhere in [1000ms,6000ms], not on the
// backoff ladder used for ordinary drops.
type effectScheduleReconnectJitter struct{ gwactor.EffectBase }

// effectUnlockBucket unlocks the rate bucket. Emitted only once READY or
// RESUMED lands (§4.C: "locked from disconnect until READY/RESUMED").
type effectUnlockBucket struct{ gwactor.EffectBase }

// effectDrainBucket releases whatever queued sends the rate bucket now has
// capacity for. Emitted on every drain-interval tick so a backlog flushes
// during a live connection instead of only at the next Unlock.
type effectDrainBucket struct{ gwactor.EffectBase }

// reduce is the engine's ReducerFunc[engineState] (§4.G).
func reduce(opts *Options) func(engineState, gwactor.Input) (engineState, []gwactor.Effect) {
	return func(s engineState, in gwactor.Input) (engineState, []gwactor.Effect) {
		switch ev := in.(type) {
		case inputConnect:
			if s.killed {
				return s, nil
			}
			s.closing = false
			s.phase = phaseConnecting
			return s, []gwactor.Effect{effectDial{Attempt: s.reconnectAttempt}}

		case inputTransportOpen:
			s.phase = phaseAwaitingHello
			return s, nil

		case inputFrameDecoded:
			return handleFrame(s, opts, ev.Frame, ev.NowMS)

		case inputDecodeWarning:
			return s, []gwactor.Effect{notify(NotifyWarn{Message: "decode error", Err: ev.Err})}

		case inputHeartbeatTick:
			return handleHeartbeatTick(s, ev.NowMS)

		case inputTransportClose:
			return handleTransportClose(s, opts, ev.Code, ev.Reason)

		case inputTransportError:
			return s, []gwactor.Effect{notify(NotifyWarn{Message: "transport error", Err: ev.Err})}

		case inputSendPresence:
			payload := buildPresence(s.basePresence, ev.Override)
			frame := &wire.Frame{Op: wire.OpPresenceUpdate, D: mustMarshal(payload)}
			return s, []gwactor.Effect{effectSendFrame{Frame: frame}}

		case inputSendVoiceStateUpdate:
			frame := &wire.Frame{Op: wire.OpVoiceStateUpdate, D: mustMarshal(ev.Req)}
			effects := []gwactor.Effect{effectSendFrame{Frame: frame}}
			if ev.Req.GuildID != nil {
				// Mark a handshake in flight (no reply channel: this is the
				// fire-and-forget UpdateVoiceState, not a VoiceConnect call) so
				// the timeout below can tell a real handshake from a stale timer.
				s.media.awaitPending(*ev.Req.GuildID, nil)
				effects = append(effects, effectStartVoiceTimeout{ServerID: *ev.Req.GuildID})
			}
			return s, effects

		case inputVoiceConnectTimeout:
			if !s.media.isPending(ev.ServerID) {
				return s, nil
			}
			reply := s.media.cancelPending(ev.ServerID)
			effects := []gwactor.Effect{notify(NotifyVoiceConnectFailed{ServerID: ev.ServerID, Err: ErrVoiceConnectTimeout})}
			if reply != nil {
				effects = append(effects, effectResolveVoiceConnect{Reply: reply, Result: VoiceConnectResult{Err: ErrVoiceConnectTimeout}})
			}
			return s, effects

		case inputVoiceConnect:
			return handleVoiceConnect(s, ev)

		case inputDrainTick:
			return s, []gwactor.Effect{effectDrainBucket{}}

		case inputKill:
			effects := kill(&s)
			if effects == nil {
				return s, nil
			}
			s.phase = phaseClosing
			return s, append([]gwactor.Effect{
				effectStopHeartbeat{},
				effectCloseTransport{Code: closeCodeNormal, Reason: "killed"},
			}, effects...)

		case inputClose:
			s.closing = true
			s.phase = phaseClosing
			return s, []gwactor.Effect{
				effectStopHeartbeat{},
				effectCloseTransport{Code: ev.Code, Reason: ev.Reason},
			}

		default:
			return s, nil
		}
	}
}

// kill marks the engine terminally dead and tears down every registered
// media session, returning nil if it was already killed so callers can
// skip re-emitting the close/notify effects that go with it (§4.F, §8
// invariant 6: "kill is idempotent... exactly one killed notification").
func kill(s *engineState) []gwactor.Effect {
	if s.killed {
		return nil
	}
	s.killed = true
	s.closing = true
	sessions := s.media.killAll()
	effects := make([]gwactor.Effect, 0, len(sessions)+1)
	for _, session := range sessions {
		effects = append(effects, effectMediaDisconnect{Session: session})
	}
	effects = append(effects, notify(NotifyKilled{}))
	return effects
}

func handleHeartbeatTick(s engineState, nowMS int64) (engineState, []gwactor.Effect) {
	zombied := s.heartbeat.beat(nowMS)
	frame := &wire.Frame{Op: wire.OpHeartbeat}
	if s.session.hasSeq {
		seq := s.session.seq
		frame.D = mustMarshal(&seq)
	}
	if zombied {
		s.phase = phaseClosing
		return s, []gwactor.Effect{
			effectStopHeartbeat{},
			effectCloseTransport{Code: 4009, Reason: "session timed out (zombied)"},
		}
	}
	return s, []gwactor.Effect{effectSendFrame{Frame: frame, Direct: true}}
}

// closeCodeNormal and closeCodeGoingAway are the transport close codes that
// mean "this session is over cleanly" rather than "this connection dropped
// but the session may still be resumable" (§4.E/§4.F cleanup step 3).
const (
	closeCodeNormal    = 1000
	closeCodeGoingAway = 1001
)

// Client-initiated close codes for disconnects that must resume, not
// re-identify — kept off 1000/1001 so handleTransportClose's cleanup step 3
// doesn't wipe the session out from under them. Mirrors the zombie-timeout
// close (4009) already using a private range for the same reason.
const (
	closeCodeSeqGap             = 4000
	closeCodeInvalidSession     = 4001
	closeCodeReconnectRequested = 4002
)

func handleTransportClose(s engineState, opts *Options, code int, reason string) (engineState, []gwactor.Effect) {
	s.phase = phaseIdle
	if code == closeCodeNormal || code == closeCodeGoingAway {
		s.session.invalidate()
	}

	// canReconnect gates on auto_reconnect and on not already being
	// terminal; willKill additionally requires the reconnect budget to be
	// exhausted (§4.F onClose, §5 "reconnect budget").
	canReconnect := !s.closing && !s.killed && !opts.DisableAutoReconnect
	willKill := canReconnect && s.reconnectAttempt >= opts.ReconnectMax

	effects := []gwactor.Effect{
		effectStopHeartbeat{},
		notify(NotifyClose{Code: code, Reason: reason, WillReconnect: canReconnect && !willKill}),
	}

	if willKill {
		return s, append(effects, kill(&s)...)
	}

	for _, session := range s.media.all() {
		effects = append(effects, effectMediaDisconnect{Session: session})
	}

	if canReconnect {
		s.reconnectAttempt++
		if s.jitterReconnect {
			s.jitterReconnect = false
			effects = append(effects, effectScheduleReconnectJitter{})
		} else {
			effects = append(effects, effectScheduleReconnect{Attempt: s.reconnectAttempt})
		}
	}
	return s, effects
}

func handleFrame(s engineState, opts *Options, f *wire.Frame, nowMS int64) (engineState, []gwactor.Effect) {
	switch f.Op {
	case wire.OpHello:
		var hello wire.HelloPayload
		_ = unmarshal(f.D, &hello)
		s.heartbeat.start(hello.HeartbeatInterval, opts.HeartbeatMissedAcks)
		// §4.D step 1: fire one heartbeat immediately rather than waiting a
		// full interval for the ticker's first tick.
		s.heartbeat.beat(nowMS)
		firstBeat := &wire.Frame{Op: wire.OpHeartbeat}
		if s.session.hasSeq {
			seq := s.session.seq
			firstBeat.D = mustMarshal(&seq)
		}
		effects := []gwactor.Effect{
			effectStartHeartbeat{IntervalMS: hello.HeartbeatInterval},
			effectSendFrame{Frame: firstBeat, Direct: true},
		}
		if s.session.canResume() {
			s.phase = phaseResuming
			resume := &wire.Frame{Op: wire.OpResume, D: mustMarshal(wire.ResumePayload{
				Token:     opts.Token,
				SessionID: s.session.sessionID,
				Seq:       s.session.seq,
			})}
			effects = append(effects, effectSendFrame{Frame: resume, Direct: true})
		} else {
			s.phase = phaseIdentifying
			identify := &wire.Frame{Op: wire.OpIdentify, D: mustMarshal(wire.IdentifyPayload{
				Token:              opts.Token,
				Properties:         *opts.Properties,
				Compress:           opts.Compress,
				LargeThreshold:     opts.LargeThreshold,
				Shard:              opts.Shard,
				Presence:           optionalPresence(s.basePresence),
				GuildSubscriptions: boolPtr(!opts.DisableGuildSubscriptions),
			})}
			effects = append(effects, effectSendFrame{Frame: identify, Direct: true})
		}
		return s, effects

	case wire.OpHeartbeat:
		// The server may request an out-of-band heartbeat; reply immediately.
		return handleHeartbeatTick(s, nowMS)

	case wire.OpHeartbeatAck:
		s.heartbeat.ack(nowMS)
		if ms, ok := s.heartbeat.latency(); ok {
			return s, []gwactor.Effect{notify(NotifyLatency{Milliseconds: ms})}
		}
		return s, nil

	case wire.OpReconnect:
		// 4002, not the standard 1000/1001: the session survives this close
		// (RECONNECT asks the client to reconnect and resume), so the close
		// code must not fall into handleTransportClose's NORMAL/GOING_AWAY
		// session-wipe branch.
		s.phase = phaseClosing
		return s, []gwactor.Effect{
			effectStopHeartbeat{},
			effectCloseTransport{Code: closeCodeReconnectRequested, Reason: "reconnect requested"},
		}

	case wire.OpInvalidSession:
		resumable := isTruthy(f.D)
		if !resumable {
			s.session.invalidate()
		}
		// Same reasoning as OpReconnect: a resumable INVALID_SESSION must not
		// trip the close-code session wipe. §4.G/§9 additionally require the
		// resume/re-identify that follows to land after a random 1-6s delay.
		s.phase = phaseClosing
		s.jitterReconnect = true
		return s, []gwactor.Effect{
			effectStopHeartbeat{},
			effectCloseTransport{Code: closeCodeInvalidSession, Reason: "invalid session"},
		}

	case wire.OpDispatch:
		return handleDispatch(s, f)

	default:
		return s, nil
	}
}

func handleDispatch(s engineState, f *wire.Frame) (engineState, []gwactor.Effect) {
	if f.S != nil {
		if gap := s.session.observeSeq(*f.S); gap {
			// Not closeCodeNormal: this close must resume, not re-identify.
			s.phase = phaseClosing
			return s, []gwactor.Effect{
				effectStopHeartbeat{},
				effectCloseTransport{Code: closeCodeSeqGap, Reason: "sequence gap, resuming"},
			}
		}
	}

	var effects []gwactor.Effect

	switch f.T {
	case wire.EventReady:
		var ready wire.ReadyPayload
		_ = unmarshal(f.D, &ready)
		s.session.setReady(ready.SessionID, ready.User.ID, ready.Trace)
		s.phase = phaseConnected
		s.reconnectAttempt = 0
		effects = append(effects,
			effectUnlockBucket{},
			notify(NotifyReady{SessionID: ready.SessionID, UserID: ready.User.ID, Resumed: false}),
		)

	case wire.EventResumed:
		s.phase = phaseConnected
		s.reconnectAttempt = 0
		effects = append(effects,
			effectUnlockBucket{},
			notify(NotifyReady{SessionID: s.session.sessionID, UserID: s.session.userID, Resumed: true}),
		)

	case wire.EventGuildDelete:
		var gd wire.GuildDeletePayload
		_ = unmarshal(f.D, &gd)
		if session, ok := s.media.remove(gd.ID); ok {
			effects = append(effects, effectMediaDisconnect{Session: session})
		}

	case wire.EventVoiceServerUpdate:
		var vs wire.VoiceServerUpdatePayload
		_ = unmarshal(f.D, &vs)
		handoff, ready, reply := s.media.onVoiceServerUpdate(vs.GuildID, vs.Token, vs.Endpoint)
		if ready {
			effects = append(effects,
				effectCancelVoiceTimeout{ServerID: vs.GuildID},
				effectMediaConnect{
					Session:   handoff.Session,
					Endpoint:  handoff.Endpoint,
					Token:     handoff.Token,
					SessionID: handoff.SessionID,
					UserID:    handoff.UserID,
				},
			)
			if reply != nil {
				effects = append(effects, effectResolveVoiceConnect{Reply: reply, Result: VoiceConnectResult{Session: handoff.Session}})
			}
		}

	case wire.EventVoiceStateUpdate:
		var vst wire.VoiceStateUpdatePayload
		_ = unmarshal(f.D, &vst)
		handoff, ready, toDisconnect, reply := s.media.onVoiceStateUpdate(vst.GuildID, vst.SessionID, vst.UserID, vst.ChannelID, s.session.userID)
		if toDisconnect != nil {
			effects = append(effects, effectMediaDisconnect{Session: toDisconnect})
		}
		if reply != nil && !ready {
			effects = append(effects, effectResolveVoiceConnect{Reply: reply, Result: VoiceConnectResult{Err: ErrVoiceConnectAborted}})
		}
		if ready {
			effects = append(effects,
				effectCancelVoiceTimeout{ServerID: vst.GuildID},
				effectMediaConnect{
					Session:   handoff.Session,
					Endpoint:  handoff.Endpoint,
					Token:     handoff.Token,
					SessionID: handoff.SessionID,
					UserID:    handoff.UserID,
				},
			)
			if reply != nil {
				effects = append(effects, effectResolveVoiceConnect{Reply: reply, Result: VoiceConnectResult{Session: handoff.Session}})
			}
		}
	}

	switch f.T {
	case wire.EventReady, wire.EventResumed, wire.EventGuildDelete,
		wire.EventVoiceServerUpdate, wire.EventVoiceStateUpdate:
		// Handled inline above; not forwarded to subscribers.
		return s, effects
	}
	if s.disabled[f.T] {
		return s, effects
	}
	effects = append(effects, notify(NotifyDispatch{Type: f.T, Data: []byte(f.D)}))
	return s, effects
}

func notify(n Notification) gwactor.Effect { return effectNotify{Notification: n} }

func optionalPresence(p *PresenceConfig) *wire.PresencePayload {
	if p == nil {
		return nil
	}
	return buildPresence(p, nil)
}

func isTruthy(raw []byte) bool {
	var b bool
	_ = unmarshal(raw, &b)
	return b
}

func boolPtr(b bool) *bool { return &b }

// VoiceConnectResult is delivered to a VoiceConnect caller once its
// request resolves (§4.H).
type VoiceConnectResult struct {
	Session MediaSession
	Err     error
}

// handleVoiceConnect implements the voice_connect(guild_id, channel_id,
// options) decision table (§4.H). ev.ServerID has already been resolved by
// Engine.VoiceConnect from guild_id ?? channel_id.
func handleVoiceConnect(s engineState, ev inputVoiceConnect) (engineState, []gwactor.Effect) {
	existing, currentChannel, hasExisting := s.media.sessionFor(ev.ServerID)

	if ev.Req.ChannelID == nil {
		var effects []gwactor.Effect
		if hasExisting {
			s.media.remove(ev.ServerID)
			effects = append(effects, effectMediaDisconnect{Session: existing})
		}
		effects = append(effects,
			effectSendFrame{Frame: &wire.Frame{Op: wire.OpVoiceStateUpdate, D: mustMarshal(ev.Req)}},
			effectResolveVoiceConnect{Reply: ev.Reply},
		)
		return s, effects
	}

	if hasExisting && currentChannel == *ev.Req.ChannelID {
		return s, []gwactor.Effect{effectResolveVoiceConnect{Reply: ev.Reply, Result: VoiceConnectResult{Session: existing}}}
	}

	s.media.awaitPending(ev.ServerID, ev.Reply)
	return s, []gwactor.Effect{
		effectSendFrame{Frame: &wire.Frame{Op: wire.OpVoiceStateUpdate, D: mustMarshal(ev.Req)}},
		effectStartVoiceTimeout{ServerID: ev.ServerID, Timeout: ev.Timeout},
	}
}
