// Package gateway implements the client-side gateway protocol engine: a
// single-threaded driver over a websocket transport that manages
// IDENTIFY/RESUME, heartbeats, rate-limited sends, presence, and voice/media
// handoff.
package gateway

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/emberlink/gatewire/internal/codec"
	"github.com/emberlink/gatewire/internal/gwactor"
	"github.com/emberlink/gatewire/internal/inflate"
	"github.com/emberlink/gatewire/internal/ratebucket"
	"github.com/emberlink/gatewire/internal/transport"
	"github.com/emberlink/gatewire/internal/wire"
)

// apiVersion is the gateway API version reported on every dial (§4.F connect
// step 3, §6).
const apiVersion = 10

// Engine is the public entry point: one Engine drives one logical gateway
// session across however many reconnects it takes to keep it alive.
type Engine struct {
	opts    Options
	actor   *gwactor.Actor[engineState]
	runtime *engineRuntime
}

// New validates opts and constructs an Engine. The engine does not dial
// until Connect is called.
func New(opts Options) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	rt := &engineRuntime{
		opts:        &opts,
		codec:       codec.New(opts.Encoding),
		inflater:    inflate.New(),
		bucket:      ratebucket.New(opts.RateCapacity, opts.RateWindow, opts.Clock),
		voiceTimers: make(map[string]*time.Timer),
	}

	initial := engineState{
		phase:        phaseIdle,
		media:        newMediaRegistry(opts.MediaFactory),
		basePresence: opts.Presence,
		disabled:     opts.DisabledEvents,
	}

	a := gwactor.New(initial, reduce(&opts), rt, gwactor.WithHooks(gwactor.Hooks[engineState]{
		OnPanic: func(r any) {
			opts.Logger.Errorf("actor loop panic: %v", r)
		},
	}))
	rt.emit = func(in gwactor.Input) { a.Enqueue(in) }

	a.Start()

	return &Engine{opts: opts, actor: a, runtime: rt}, nil
}

// Connect starts (or restarts) a connection attempt.
func (e *Engine) Connect() error {
	if !e.actor.Enqueue(inputConnect{}) {
		return ErrClosed
	}
	return nil
}

// Close closes the current connection, if any, and stops the engine. The
// engine will not reconnect after Close.
func (e *Engine) Close(code int, reason string) error {
	e.actor.Enqueue(inputClose{Code: code, Reason: reason})
	e.actor.Stop()
	<-e.actor.Done()
	return nil
}

// UpdatePresence sends a presence update, merging override onto the
// engine's base presence (§4.I). A nil override resends the base presence
// unchanged.
func (e *Engine) UpdatePresence(override *PresenceConfig) error {
	if !e.actor.Enqueue(inputSendPresence{Override: override}) {
		return ErrClosed
	}
	return nil
}

// UpdateVoiceState requests a voice/media channel move (§4.H). A nil
// ChannelID leaves the channel. Unlike VoiceConnect, it fires and forgets:
// it does not wait for the handshake and does not return a MediaSession.
func (e *Engine) UpdateVoiceState(req wire.VoiceStateUpdateRequest) error {
	if !e.actor.Enqueue(inputSendVoiceStateUpdate{Req: req}) {
		return ErrClosed
	}
	return nil
}

// VoiceConnectOptions configures a VoiceConnect call.
type VoiceConnectOptions struct {
	// SelfMute and SelfDeaf are forwarded on the VOICE_STATE_UPDATE frame.
	SelfMute bool
	SelfDeaf bool
	// Timeout overrides Options.VoiceConnectTimeout for this call. Zero uses
	// the engine-wide default.
	Timeout time.Duration
}

// VoiceConnect implements the voice_connect(guild_id, channel_id, options)
// operation (§4.H): it moves the engine's voice state for a server and
// blocks until the handshake resolves, returning the MediaSession that was
// handed off. guildID and channelID cannot both be nil. A nil channelID
// leaves the current channel and resolves immediately with a nil session.
func (e *Engine) VoiceConnect(guildID, channelID *string, opts VoiceConnectOptions) (MediaSession, error) {
	if guildID == nil && channelID == nil {
		return nil, ErrVoiceConnectNoTarget
	}
	serverID := channelID
	if guildID != nil {
		serverID = guildID
	}

	reply := make(chan VoiceConnectResult, 1)
	ok := e.actor.Enqueue(inputVoiceConnect{
		ServerID: *serverID,
		Req: wire.VoiceStateUpdateRequest{
			GuildID:   guildID,
			ChannelID: channelID,
			SelfMute:  opts.SelfMute,
			SelfDeaf:  opts.SelfDeaf,
		},
		Timeout: opts.Timeout,
		Reply:   reply,
	})
	if !ok {
		return nil, ErrClosed
	}

	res := <-reply
	return res.Session, res.Err
}

// Kill terminally shuts the engine down: it disconnects, tears down every
// media session, and will never reconnect again (§4.F). Calling Kill more
// than once is a no-op after the first call.
func (e *Engine) Kill() error {
	if !e.actor.Enqueue(inputKill{}) {
		return ErrClosed
	}
	return nil
}

// State returns a snapshot of the engine's session identifiers, mainly
// useful for tests and diagnostics.
func (e *Engine) State() (sessionID, userID string, seq int64) {
	s := e.actor.State()
	return s.session.sessionID, s.session.userID, s.session.seq
}

// engineRuntime interprets the driver's declarative effects (§4.G),
// performing every bit of I/O the pure reducer isn't allowed to: dialing,
// encoding, sending, timers, and delivering notifications.
//
// Every method here runs on the actor loop's own goroutine, called
// synchronously from Actor.loop's HandleEffects step, except for the
// callbacks handed to Dial and to time.AfterFunc — those run on their own
// goroutines and only ever call rt.emit, never touch runtime fields
// directly.
type engineRuntime struct {
	opts *Options

	codec    *codec.Codec
	inflater *inflate.Decompressor
	bucket   *ratebucket.Bucket

	transport *transport.WSTransport

	heartbeatTicker *time.Ticker
	heartbeatStop   chan struct{}

	drainTicker *time.Ticker
	drainStop   chan struct{}

	voiceTimers map[string]*time.Timer

	// connID is a fresh per-connection trace id (§4.E), regenerated on
	// every dial attempt and included in this connection's log lines so
	// a reconnect's logs can't be mistaken for the connection it replaced.
	connID string

	emit func(gwactor.Input)
}

func (rt *engineRuntime) nowMS() int64 {
	return rt.opts.Clock.Now().UnixMilli()
}

// HandleEffects implements gwactor.Runtime.
func (rt *engineRuntime) HandleEffects(ctx context.Context, effects []gwactor.Effect, emit func(gwactor.Input)) {
	for _, eff := range effects {
		switch e := eff.(type) {
		case effectDial:
			rt.handleDial(ctx, e.Attempt)
		case effectSendFrame:
			rt.handleSend(e.Frame, e.Direct)
		case effectUnlockBucket:
			rt.bucket.Unlock()
		case effectDrainBucket:
			rt.bucket.Drain()
		case effectCloseTransport:
			rt.handleCloseTransport(e.Code, e.Reason)
		case effectStartHeartbeat:
			rt.handleStartHeartbeat(e.IntervalMS)
		case effectStopHeartbeat:
			rt.handleStopHeartbeat()
		case effectNotify:
			rt.opts.OnNotify(e.Notification)
		case effectStartVoiceTimeout:
			rt.handleStartVoiceTimeout(e.ServerID, e.Timeout)
		case effectCancelVoiceTimeout:
			rt.handleCancelVoiceTimeout(e.ServerID)
		case effectMediaConnect:
			go func(e effectMediaConnect) {
				if err := e.Session.Connect(e.Endpoint, e.Token, e.SessionID, e.UserID); err != nil {
					rt.emit(inputDecodeWarning{Err: err})
				}
			}(e)
		case effectMediaDisconnect:
			go func(e effectMediaDisconnect) { _ = e.Session.Disconnect() }(e)
		case effectScheduleReconnect:
			rt.handleScheduleReconnect(e.Attempt)
		case effectScheduleReconnectJitter:
			rt.handleScheduleReconnectJitter()
		case effectResolveVoiceConnect:
			if e.Reply != nil {
				select {
				case e.Reply <- e.Result:
				default:
				}
			}
		}
	}
}

// Stop implements gwactor.Runtime.
func (rt *engineRuntime) Stop() {
	rt.handleStopHeartbeat()
	rt.handleStopDrain()
	for id, t := range rt.voiceTimers {
		t.Stop()
		delete(rt.voiceTimers, id)
	}
	if rt.transport != nil {
		_ = rt.transport.Close(1000, "engine stopped")
	}
}

func (rt *engineRuntime) handleDial(ctx context.Context, attempt int) {
	rt.connID = uuid.NewString()
	rt.opts.Logger.Infof("dialing %s conn=%s attempt=%d", rt.opts.URL, rt.connID, attempt)

	dialURL, err := buildDialURL(rt.opts.URL, rt.opts)
	if err != nil {
		rt.opts.Logger.Warnf("bad gateway url conn=%s: %v", rt.connID, err)
		rt.emit(inputTransportClose{Code: 1006, Reason: err.Error()})
		return
	}

	rt.inflater.Reset()
	rt.bucket.Clear()
	// Left locked: §4.C keeps the bucket locked from disconnect until
	// READY/RESUMED, which is where handleDispatch unlocks it.
	rt.bucket.Lock()
	rt.handleStartDrain()

	cb := transport.Callbacks{
		OnOpen: func() {
			rt.emit(inputTransportOpen{})
		},
		OnMessage: func(data []byte, binary bool) {
			rt.handleInboundMessage(data, binary)
		},
		OnClose: func(code int, reason string) {
			rt.emit(inputTransportClose{Code: code, Reason: reason})
		},
		OnError: func(err error) {
			rt.emit(inputTransportError{Err: err})
		},
	}

	go func() {
		t, err := transport.Dial(ctx, dialURL, rt.opts.Headers, cb, rt.opts.Logger)
		if err != nil {
			rt.opts.Logger.Warnf("dial failed conn=%s: %v", rt.connID, err)
			rt.emit(inputTransportClose{Code: 1006, Reason: err.Error()})
			return
		}
		rt.transport = t
	}()
}

// buildDialURL sets the query parameters and default path §4.F connect step
// 3 requires: encoding, v, and (when enabled) compress=zlib-stream. A blank
// path defaults to "/" so the request line is never empty.
func buildDialURL(raw string, opts *Options) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("gateway: parse url: %w", err)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	q := u.Query()
	switch opts.Encoding {
	case codec.ModeBinary:
		q.Set("encoding", "etf")
	default:
		q.Set("encoding", "json")
	}
	q.Set("v", strconv.Itoa(apiVersion))
	if opts.Compress {
		q.Set("compress", "zlib-stream")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (rt *engineRuntime) handleInboundMessage(data []byte, binary bool) {
	var frame *wire.Frame
	var err error
	if rt.opts.Compress {
		frame, err = rt.codec.DecodeInbound(data, !binary, rt.inflater)
	} else {
		frame, err = rt.codec.Decode(data)
	}
	if err != nil {
		rt.emit(inputDecodeWarning{Err: err})
		return
	}
	if frame == nil {
		return
	}
	rt.emit(inputFrameDecoded{Frame: frame, NowMS: rt.nowMS()})
}

// handleSend encodes and sends f. direct sends bypass the rate bucket
// entirely (§4.D, §4.F) — used for heartbeats, IDENTIFY, and RESUME, none
// of which can be allowed to queue behind a locked or backlogged bucket.
func (rt *engineRuntime) handleSend(f *wire.Frame, direct bool) {
	raw, err := rt.codec.Encode(f)
	if err != nil {
		rt.opts.Logger.Errorf("encode frame op=%d: %v", f.Op, err)
		return
	}
	tr := rt.transport
	if tr == nil {
		return
	}
	binary := rt.opts.Encoding == codec.ModeBinary
	send := func() {
		if err := tr.Send(raw, binary); err != nil {
			rt.opts.Logger.Warnf("send op=%d: %v", f.Op, err)
		}
	}
	if direct {
		send()
		return
	}
	rt.bucket.Add(send)
}

func (rt *engineRuntime) handleCloseTransport(code int, reason string) {
	rt.bucket.Lock()
	rt.bucket.Clear()
	rt.handleStopDrain()
	if rt.transport != nil {
		_ = rt.transport.Close(code, reason)
	}
}

func (rt *engineRuntime) handleStartHeartbeat(intervalMS int64) {
	rt.handleStopHeartbeat()
	if intervalMS <= 0 {
		return
	}
	interval := time.Duration(intervalMS) * time.Millisecond
	ticker := time.NewTicker(interval)
	stop := make(chan struct{})
	rt.heartbeatTicker = ticker
	rt.heartbeatStop = stop
	go func() {
		for {
			select {
			case <-ticker.C:
				rt.emit(inputHeartbeatTick{NowMS: rt.nowMS()})
			case <-stop:
				return
			}
		}
	}()
}

func (rt *engineRuntime) handleStopHeartbeat() {
	if rt.heartbeatTicker != nil {
		rt.heartbeatTicker.Stop()
		close(rt.heartbeatStop)
		rt.heartbeatTicker = nil
		rt.heartbeatStop = nil
	}
}

// handleStartDrain ticks the rate bucket's queue once per refill interval
// so backlogged sends flush during a live connection instead of only at the
// next Unlock (§4.C, §5 ordering invariant).
func (rt *engineRuntime) handleStartDrain() {
	rt.handleStopDrain()
	interval := rt.bucket.RefillInterval()
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	stop := make(chan struct{})
	rt.drainTicker = ticker
	rt.drainStop = stop
	go func() {
		for {
			select {
			case <-ticker.C:
				rt.emit(inputDrainTick{})
			case <-stop:
				return
			}
		}
	}()
}

func (rt *engineRuntime) handleStopDrain() {
	if rt.drainTicker != nil {
		rt.drainTicker.Stop()
		close(rt.drainStop)
		rt.drainTicker = nil
		rt.drainStop = nil
	}
}

func (rt *engineRuntime) handleStartVoiceTimeout(serverID string, timeout time.Duration) {
	rt.handleCancelVoiceTimeout(serverID)
	if timeout <= 0 {
		timeout = rt.opts.VoiceConnectTimeout
	}
	rt.voiceTimers[serverID] = time.AfterFunc(timeout, func() {
		rt.emit(inputVoiceConnectTimeout{ServerID: serverID})
	})
}

func (rt *engineRuntime) handleCancelVoiceTimeout(serverID string) {
	if t, ok := rt.voiceTimers[serverID]; ok {
		t.Stop()
		delete(rt.voiceTimers, serverID)
	}
}

func (rt *engineRuntime) handleScheduleReconnect(attempt int) {
	backoff := reconnectBackoff(attempt, rt.opts.ReconnectDelay)
	time.AfterFunc(backoff, func() {
		rt.emit(inputConnect{})
	})
}

// handleScheduleReconnectJitter reconnects after a random delay instead of
// the linear backoff ladder, per the INVALID_SESSION jitter requirement
// (§4.G, §9).
func (rt *engineRuntime) handleScheduleReconnectJitter() {
	time.AfterFunc(rt.opts.JitterFunc(), func() {
		rt.emit(inputConnect{})
	})
}

// reconnectBackoff grows linearly in units of delay (§6 reconnect_delay) up
// to a 30s ceiling. A fixed ceiling keeps reconnect latency predictable
// without needing jitter for a single-client engine.
func reconnectBackoff(attempt int, delay time.Duration) time.Duration {
	d := time.Duration(attempt) * delay
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return d
}
