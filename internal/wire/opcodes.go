// Package wire defines the gateway's on-the-wire frame shape, opcodes, and
// typed payloads.
//
// Frames are always the four-field envelope {op, d, s, t}; only the meaning
// of d depends on op. This package has no knowledge of transports, codecs,
// or reconnection — it is pure data shape, the way discord-style gateway
// clients keep their opcode tables free of behavior.
package wire

// Op is a gateway opcode. Inbound and outbound opcodes share one numbering
// space, matching the wire protocol this engine targets.
type Op int

const (
	// OpDispatch carries an application-level event (inbound only). T and S
	// are always set on dispatch frames.
	OpDispatch Op = 0
	// OpHeartbeat is a liveness probe, sent by either side.
	OpHeartbeat Op = 1
	// OpIdentify opens a fresh session (outbound only).
	OpIdentify Op = 2
	// OpPresenceUpdate pushes a presence/activity change (outbound only).
	OpPresenceUpdate Op = 3
	// OpVoiceStateUpdate requests or reports a voice/media channel move
	// (outbound and inbound via dispatch).
	OpVoiceStateUpdate Op = 4
	// OpResume resumes a prior session (outbound only).
	OpResume Op = 6
	// OpReconnect asks the client to reconnect (inbound only).
	OpReconnect Op = 7
	// OpRequestGuildMembers requests a member list chunk (outbound only).
	OpRequestGuildMembers Op = 8
	// OpInvalidSession tells the client its resume/identify was rejected
	// (inbound only).
	OpInvalidSession Op = 9
	// OpHello is the server's initial greeting, carrying the heartbeat
	// interval (inbound only).
	OpHello Op = 10
	// OpHeartbeatAck acknowledges a heartbeat (inbound only).
	OpHeartbeatAck Op = 11
	// OpGuildSubscriptions toggles per-guild event subscriptions (outbound
	// only).
	OpGuildSubscriptions Op = 12
	// OpCallConnect requests joining a direct-message call (outbound only).
	OpCallConnect Op = 13
	// OpVoiceServerPing pings the assigned voice server (outbound only).
	OpVoiceServerPing Op = 5
	// OpLobbyConnect joins a lobby voice channel (outbound only).
	OpLobbyConnect Op = 14
	// OpLobbyDisconnect leaves a lobby voice channel (outbound only).
	OpLobbyDisconnect Op = 15
	// OpLobbyVoiceStatesUpdate pushes lobby voice-state changes (outbound
	// only).
	OpLobbyVoiceStatesUpdate Op = 16
	// OpStreamCreate starts a Go Live stream (outbound only).
	OpStreamCreate Op = 18
	// OpStreamDelete ends a Go Live stream (outbound only).
	OpStreamDelete Op = 19
	// OpStreamWatch begins watching a stream (outbound only).
	OpStreamWatch Op = 20
	// OpStreamPing keeps a watched stream alive (outbound only).
	OpStreamPing Op = 21
	// OpStreamSetPaused pauses or resumes a stream (outbound only).
	OpStreamSetPaused Op = 22
)

// Dispatch event names the driver handles inline; everything else is
// forwarded verbatim to application subscribers.
const (
	EventReady             = "READY"
	EventResumed           = "RESUMED"
	EventGuildDelete       = "GUILD_DELETE"
	EventVoiceServerUpdate = "VOICE_SERVER_UPDATE"
	EventVoiceStateUpdate  = "VOICE_STATE_UPDATE"
)
