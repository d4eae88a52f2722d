package wire

import "encoding/json"

// Frame is the gateway's on-the-wire envelope.
//
// D is kept as a raw JSON payload so the codec can decode the envelope
// without needing to know the opcode's payload shape up front; callers
// re-decode D into a typed payload once Op is known. D always holds JSON
// bytes: in msgpack mode the codec carries D as a msgpack byte string
// holding those JSON bytes, and does not convert a msgpack-native d value
// into JSON.
type Frame struct {
	Op Op              `json:"op" msgpack:"op"`
	D  json.RawMessage `json:"d,omitempty" msgpack:"d,omitempty"`
	S  *int64          `json:"s,omitempty" msgpack:"s,omitempty"`
	T  string          `json:"t,omitempty" msgpack:"t,omitempty"`
}

// HelloPayload is OpHello's D field.
type HelloPayload struct {
	HeartbeatInterval int64 `json:"heartbeat_interval"`
}

// IdentifyProperties are process-wide constants describing this client,
// assembled once and reused on every IDENTIFY.
type IdentifyProperties struct {
	OS      string `json:"os"`
	Browser string `json:"browser"`
	Device  string `json:"device"`
}

// IdentifyPayload is OpIdentify's D field.
type IdentifyPayload struct {
	Token              string              `json:"token"`
	Properties         IdentifyProperties  `json:"properties"`
	Compress           bool                `json:"compress"`
	LargeThreshold     int                 `json:"large_threshold,omitempty"`
	Shard              []int               `json:"shard,omitempty"`
	Presence           *PresencePayload    `json:"presence,omitempty"`
	GuildSubscriptions *bool               `json:"guild_subscriptions,omitempty"`
}

// ResumePayload is OpResume's D field.
type ResumePayload struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Seq       int64  `json:"seq"`
}

// ReadyPayload is the DISPATCH/READY event's D field, trimmed to the fields
// the engine's session state needs.
type ReadyPayload struct {
	SessionID       string   `json:"session_id"`
	ResumeGatewayURL string  `json:"resume_gateway_url"`
	User            struct {
		ID string `json:"id"`
	} `json:"user"`
	Trace []string `json:"_trace,omitempty"`
}

// VoiceStateUpdateRequest is OpVoiceStateUpdate's D field when the client
// sends it (requesting a voice/media move).
type VoiceStateUpdateRequest struct {
	GuildID   *string `json:"guild_id"`
	ChannelID *string `json:"channel_id"`
	SelfMute  bool    `json:"self_mute"`
	SelfDeaf  bool    `json:"self_deaf"`
}

// VoiceServerUpdatePayload is the DISPATCH/VOICE_SERVER_UPDATE event's D
// field.
type VoiceServerUpdatePayload struct {
	Token    string `json:"token"`
	GuildID  string `json:"guild_id"`
	Endpoint string `json:"endpoint"`
}

// VoiceStateUpdatePayload is the DISPATCH/VOICE_STATE_UPDATE event's D
// field.
type VoiceStateUpdatePayload struct {
	GuildID   string  `json:"guild_id"`
	ChannelID *string `json:"channel_id"`
	UserID    string  `json:"user_id"`
	SessionID string  `json:"session_id"`
}

// GuildDeletePayload is the DISPATCH/GUILD_DELETE event's D field.
type GuildDeletePayload struct {
	ID          string `json:"id"`
	Unavailable bool   `json:"unavailable"`
}

// PresencePayload is the wire form of a presence update (Component I's
// output shape).
type PresencePayload struct {
	Since      *int64             `json:"since"`
	Activities []ActivityPayload  `json:"activities"`
	Status     string             `json:"status"`
	AFK        bool               `json:"afk"`
}

// ActivityPayload is one entry of PresencePayload.Activities.
type ActivityPayload struct {
	Name       string              `json:"name"`
	Type       int                 `json:"type"`
	URL        string              `json:"url,omitempty"`
	Assets     *ActivityAssets     `json:"assets,omitempty"`
	Party      *ActivityParty      `json:"party,omitempty"`
	Secrets    *ActivitySecrets    `json:"secrets,omitempty"`
	Timestamps *ActivityTimestamps `json:"timestamps,omitempty"`
}

// ActivityAssets mirrors the declared wire shape field-by-field.
type ActivityAssets struct {
	LargeImage string `json:"large_image,omitempty"`
	LargeText  string `json:"large_text,omitempty"`
	SmallImage string `json:"small_image,omitempty"`
	SmallText  string `json:"small_text,omitempty"`
}

// ActivityParty mirrors the declared wire shape field-by-field.
type ActivityParty struct {
	ID   string `json:"id,omitempty"`
	Size []int  `json:"size,omitempty"`
}

// ActivitySecrets mirrors the declared wire shape {join, match, spectate}.
//
// The original source this protocol was distilled from reads
// secrets.id/secrets.size, which do not appear anywhere in the declared
// shape — almost certainly a bug. This type intentionally does not carry
// those fields; see SPEC_FULL.md Open Questions.
type ActivitySecrets struct {
	Join     string `json:"join,omitempty"`
	Match    string `json:"match,omitempty"`
	Spectate string `json:"spectate,omitempty"`
}

// ActivityTimestamps mirrors the declared wire shape field-by-field.
type ActivityTimestamps struct {
	Start int64 `json:"start,omitempty"`
	End   int64 `json:"end,omitempty"`
}
