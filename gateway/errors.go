package gateway

import "errors"

// Sentinel errors the engine can return from its public entry points.
// Wrapped errors from lower layers (codec, transport) are always joined in
// with fmt.Errorf("...: %w", err) so callers can still errors.Is/As through
// to the cause.
var (
	// ErrNoURL is returned by Options.Validate when no gateway URL was
	// configured.
	ErrNoURL = errors.New("gateway: no url configured")
	// ErrNoToken is returned by Options.Validate when no auth token was
	// configured.
	ErrNoToken = errors.New("gateway: no token configured")
	// ErrAlreadyConnected reports a connection attempt made while one is
	// already in flight or established. No Engine method returns it:
	// Connect starts a new attempt regardless.
	ErrAlreadyConnected = errors.New("gateway: already connected")
	// ErrNotConnected reports an operation that needs a live transport
	// when none exists. No Engine method returns it: sends made without a
	// transport are dropped.
	ErrNotConnected = errors.New("gateway: not connected")
	// ErrClosed is returned by any call made after Engine.Close.
	ErrClosed = errors.New("gateway: engine closed")
	// ErrVoiceConnectTimeout is delivered when a requested voice/media
	// move doesn't resolve within the configured timeout (§4.H).
	ErrVoiceConnectTimeout = errors.New("gateway: voice connect timeout")
	// ErrVoiceConnectNoTarget is returned synchronously by VoiceConnect
	// when both guildID and channelID are nil — there is no server_id to
	// key the request on (§4.H, §7 "user API errors").
	ErrVoiceConnectNoTarget = errors.New("gateway: voice connect requires a guild or channel id")
	// ErrVoiceConnectAborted is delivered to a pending VoiceConnect call
	// when the in-flight handshake it was waiting on is torn down by a
	// VOICE_STATE_UPDATE that leaves the channel or swaps the session out
	// from under it, before the handshake ever completed.
	ErrVoiceConnectAborted = errors.New("gateway: voice connect aborted")
)
