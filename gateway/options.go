package gateway

import (
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/emberlink/gatewire/internal/codec"
	"github.com/emberlink/gatewire/internal/gwactor"
	"github.com/emberlink/gatewire/internal/gwlog"
	"github.com/emberlink/gatewire/internal/ratebucket"
)

// Options configures an Engine. Zero-value fields are filled in with
// defaults by Validate, which New calls before doing anything else.
type Options struct {
	// URL is the gateway websocket endpoint to dial.
	URL string
	// Token authenticates the IDENTIFY payload.
	Token string
	// Headers are sent with the websocket upgrade request (e.g. an
	// application-specific User-Agent).
	Headers http.Header

	// Encoding selects text-JSON or binary-term framing (§4.A). Defaults
	// to ModeJSON.
	Encoding codec.Mode
	// Compress requests transport-level zlib-stream compression (§4.B).
	Compress bool

	// LargeThreshold is forwarded on IDENTIFY. Zero uses the gateway's own
	// default.
	LargeThreshold int
	// Shard, if non-nil, is forwarded on IDENTIFY as [shard_id, num_shards].
	Shard []int

	// Presence seeds the default presence sent on IDENTIFY and merged into
	// subsequent presence updates (§4.I).
	Presence *PresenceConfig
	// Properties overrides the process-wide IDENTIFY properties. Nil uses
	// DefaultProperties().
	Properties *IdentifyProperties

	// RateCapacity and RateWindow bound outbound sends (§4.C). Zero values
	// default to ratebucket.DefaultCapacity / DefaultWindow.
	RateCapacity int
	RateWindow   time.Duration

	// HeartbeatMissedAcks is how many consecutive un-acked heartbeats
	// trigger a reconnect (§4.D). Defaults to 1: the gateway convention of
	// treating any missed ack as zombied.
	HeartbeatMissedAcks int

	// VoiceConnectTimeout bounds how long a requested voice/media move may
	// take before it's failed with ErrVoiceConnectTimeout (§4.H). Defaults
	// to 30s.
	VoiceConnectTimeout time.Duration

	// DisableAutoReconnect stops the engine from scheduling a reconnect on
	// its own after a close (§4.F, §6's auto_reconnect, default true —
	// hence the inverted, default-false field). A caller that disables it
	// must call Connect itself after a NotifyClose.
	DisableAutoReconnect bool
	// ReconnectDelay is the base delay between a close and the next
	// reconnect attempt (§6). Attempt N waits N*ReconnectDelay, capped at
	// 30s. Zero defaults to 5000ms.
	ReconnectDelay time.Duration
	// ReconnectMax caps how many reconnect attempts the engine makes
	// before calling kill() (§4.F, §5 "reconnect budget"). Zero defaults
	// to 5.
	ReconnectMax int

	// DisableGuildSubscriptions sends guild_subscriptions: false on IDENTIFY
	// instead of true (§6, default true — hence the inverted, default-false
	// field).
	DisableGuildSubscriptions bool

	// JitterFunc returns the random delay to wait before the resume/
	// re-identify that follows an INVALID_SESSION frame (§4.G, §9),
	// uniformly distributed over [1000ms,6000ms] by default. Tests inject a
	// deterministic function.
	JitterFunc func() time.Duration

	// DisabledEvents filters dispatch events by name at the boundary
	// before they reach subscribers (§9 supplemented feature). Nil means
	// nothing is filtered.
	DisabledEvents map[string]bool

	// Logger receives structured progress/warning/error lines. Defaults to
	// gwlog.Default().
	Logger *gwlog.Logger
	// Clock is the time source for heartbeat send/ack timestamps and the
	// rate bucket's refill. The heartbeat, drain, reconnect and voice-timeout
	// timers run on real time, not on Clock. Defaults to gwactor.RealClock{};
	// tests inject a gwactortest.FakeClock.
	Clock gwactor.Clock

	// OnNotify receives every Notification the engine produces. Called
	// from the actor's runtime goroutine, never concurrently with itself;
	// it must not block for long or heartbeats/sends will back up behind
	// it.
	OnNotify func(Notification)

	// MediaFactory constructs a MediaSession once a voice/media handshake
	// completes (§4.H). Nil defaults to a factory whose sessions do nothing,
	// which suits callers that never touch voice.
	MediaFactory MediaFactory
}

// Validate fills in defaults and rejects a configuration that cannot
// produce a working engine.
func (o *Options) Validate() error {
	if o.URL == "" {
		return ErrNoURL
	}
	if o.Token == "" {
		return ErrNoToken
	}
	if o.RateCapacity <= 0 {
		o.RateCapacity = ratebucket.DefaultCapacity
	}
	if o.RateWindow <= 0 {
		o.RateWindow = ratebucket.DefaultWindow
	}
	if o.HeartbeatMissedAcks <= 0 {
		o.HeartbeatMissedAcks = 1
	}
	if o.VoiceConnectTimeout <= 0 {
		o.VoiceConnectTimeout = 30 * time.Second
	}
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = 5000 * time.Millisecond
	}
	if o.ReconnectMax <= 0 {
		o.ReconnectMax = 5
	}
	if o.Logger == nil {
		o.Logger = gwlog.Default()
	}
	if o.Clock == nil {
		o.Clock = gwactor.RealClock{}
	}
	if o.Properties == nil {
		props := DefaultProperties()
		o.Properties = &props
	}
	if o.OnNotify == nil {
		o.OnNotify = func(Notification) {}
	}
	if o.MediaFactory == nil {
		o.MediaFactory = func(string) MediaSession { return noopMediaSession{} }
	}
	if o.JitterFunc == nil {
		o.JitterFunc = defaultInvalidSessionJitter
	}
	if o.LargeThreshold < 0 {
		return fmt.Errorf("gateway: negative large_threshold %d", o.LargeThreshold)
	}
	switch o.Encoding {
	case codec.ModeJSON, codec.ModeBinary:
	default:
		return fmt.Errorf("gateway: unknown encoding %v", o.Encoding)
	}
	if len(o.Shard) > 0 {
		if len(o.Shard) != 2 {
			return fmt.Errorf("gateway: shard must be [shard_id, shard_count], got %v", o.Shard)
		}
		shardID, shardCount := o.Shard[0], o.Shard[1]
		if shardCount <= 0 || shardID < 0 || shardID >= shardCount {
			return fmt.Errorf("gateway: shard_id %d out of range for shard_count %d", shardID, shardCount)
		}
	}
	return nil
}

// defaultInvalidSessionJitter uniformly samples [1000ms,6000ms] inclusive,
// per §9's resume/re-identify jitter requirement.
func defaultInvalidSessionJitter() time.Duration {
	const minMS, maxMS = 1000, 6000
	return time.Duration(minMS+rand.Intn(maxMS-minMS+1)) * time.Millisecond
}
