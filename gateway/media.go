package gateway

// MediaSession is the contract a caller-supplied voice/media backend must
// satisfy. The engine never talks to a media server directly — it only
// tracks which guild/server owns which session and when enough state has
// arrived to hand a session off (§4.H).
type MediaSession interface {
	// Connect is called once both the endpoint/token (VOICE_SERVER_UPDATE)
	// and the channel/session (VOICE_STATE_UPDATE) halves have arrived.
	Connect(endpoint, token, sessionID, userID string) error
	// Disconnect tears the session down. Called on GUILD_DELETE, on a
	// voice state update with channel_id: nil or a different voice session
	// id, on every transport close, and on kill.
	Disconnect() error
}

// MediaFactory constructs a MediaSession for a newly-connecting server.
type MediaFactory func(serverID string) MediaSession

// noopMediaSession is the default MediaFactory's product for callers that
// never touch voice: the handshake still completes, but nothing runs.
type noopMediaSession struct{}

func (noopMediaSession) Connect(string, string, string, string) error { return nil }
func (noopMediaSession) Disconnect() error                            { return nil }

// pendingVoice accumulates the two independent dispatch events a voice
// connect needs before it can call Connect: VOICE_SERVER_UPDATE supplies
// endpoint/token, VOICE_STATE_UPDATE supplies session_id/channel_id/user_id.
// Either can arrive first.
type pendingVoice struct {
	endpoint        string
	token           string
	sessionID       string
	userID          string
	haveVoiceServer bool
	haveVoiceState  bool

	// reply is the VoiceConnect caller waiting on this handshake, if any
	// (§4.H "wait for promise resolution"). Resolved exactly once, either
	// by tryComplete or by the voice-connect timeout.
	reply chan VoiceConnectResult
}

func (p *pendingVoice) ready() bool {
	return p.haveVoiceServer && p.haveVoiceState
}

// MediaRegistry maps server_id (guild or DM call id) to its MediaSession,
// and tracks in-flight voice connects awaiting both halves of the
// handshake.
//
// Not safe for concurrent use; owned by the engine's single actor loop.
type MediaRegistry struct {
	factory  MediaFactory
	sessions map[string]MediaSession
	pending  map[string]*pendingVoice

	// voiceSessionID and channelID track the per-server voice session id and
	// current channel id last confirmed by VOICE_STATE_UPDATE (§4.G), so a
	// later update can detect a channel move or a swapped-out session.
	voiceSessionID map[string]string
	channelID      map[string]string
}

// newMediaRegistry constructs an empty registry.
func newMediaRegistry(factory MediaFactory) *MediaRegistry {
	return &MediaRegistry{
		factory:        factory,
		sessions:       make(map[string]MediaSession),
		pending:        make(map[string]*pendingVoice),
		voiceSessionID: make(map[string]string),
		channelID:      make(map[string]string),
	}
}

// voiceHandoff carries everything a completed voice handshake needs to hand
// off to a freshly-created MediaSession.
type voiceHandoff struct {
	Session   MediaSession
	Endpoint  string
	Token     string
	SessionID string
	UserID    string
}

// onVoiceServerUpdate records the endpoint/token half of a pending connect
// and reports the session to hand off, and any VoiceConnect caller waiting
// on it, if both halves are now present.
func (r *MediaRegistry) onVoiceServerUpdate(serverID, token, endpoint string) (voiceHandoff, bool, chan VoiceConnectResult) {
	p := r.pendingFor(serverID)
	p.endpoint = endpoint
	p.token = token
	p.haveVoiceServer = true
	return r.tryComplete(serverID, p)
}

// onVoiceStateUpdate records the session/channel half. ownUserID is the
// engine's own user id (from READY/RESUMED); a payload naming a different
// user is some other member's voice state and is ignored (§4.G). A payload
// naming a voice session id that differs from the one already tracked for
// serverID means the tracked session was replaced out from under us — that
// session is killed rather than mixed with the new one's state. channelID
// == nil (the user left voice) tears down any existing session for
// serverID instead of starting a new connect.
func (r *MediaRegistry) onVoiceStateUpdate(serverID, sessionID, userID string, channelID *string, ownUserID string) (handoff voiceHandoff, ready bool, disconnect MediaSession, reply chan VoiceConnectResult) {
	if ownUserID != "" && userID != "" && userID != ownUserID {
		return voiceHandoff{}, false, nil, nil
	}

	if cur, tracked := r.voiceSessionID[serverID]; tracked && sessionID != "" && cur != sessionID {
		existing := r.sessions[serverID]
		reply = r.cancelPending(serverID)
		r.forget(serverID)
		return voiceHandoff{}, false, existing, reply
	}

	if channelID == nil {
		existing, ok := r.sessions[serverID]
		reply = r.cancelPending(serverID)
		r.forget(serverID)
		if ok {
			return voiceHandoff{}, false, existing, reply
		}
		return voiceHandoff{}, false, nil, reply
	}

	r.channelID[serverID] = *channelID
	if sessionID != "" {
		r.voiceSessionID[serverID] = sessionID
	}

	p := r.pendingFor(serverID)
	p.sessionID = sessionID
	p.userID = userID
	p.haveVoiceState = true
	handoff, ready, reply = r.tryComplete(serverID, p)
	return handoff, ready, nil, reply
}

// forget drops every piece of state the registry tracks for serverID.
func (r *MediaRegistry) forget(serverID string) {
	delete(r.sessions, serverID)
	delete(r.pending, serverID)
	delete(r.voiceSessionID, serverID)
	delete(r.channelID, serverID)
}

func (r *MediaRegistry) pendingFor(serverID string) *pendingVoice {
	p, ok := r.pending[serverID]
	if !ok {
		p = &pendingVoice{}
		r.pending[serverID] = p
	}
	return p
}

func (r *MediaRegistry) tryComplete(serverID string, p *pendingVoice) (voiceHandoff, bool, chan VoiceConnectResult) {
	if !p.ready() {
		return voiceHandoff{}, false, nil
	}
	reply := p.reply
	delete(r.pending, serverID)
	session := r.factory(serverID)
	r.sessions[serverID] = session
	return voiceHandoff{
		Session:   session,
		Endpoint:  p.endpoint,
		Token:     p.token,
		SessionID: p.sessionID,
		UserID:    p.userID,
	}, true, reply
}

// cancelPending drops a pending handshake, e.g. on voice-connect timeout,
// returning the VoiceConnect caller waiting on it, if any, so it can be
// resolved exactly once.
func (r *MediaRegistry) cancelPending(serverID string) chan VoiceConnectResult {
	p, ok := r.pending[serverID]
	delete(r.pending, serverID)
	if !ok {
		return nil
	}
	return p.reply
}

// awaitPending arranges for reply to be resolved once serverID's
// in-flight handshake completes or times out (§4.H "wait for promise
// resolution").
func (r *MediaRegistry) awaitPending(serverID string, reply chan VoiceConnectResult) {
	r.pendingFor(serverID).reply = reply
}

// sessionFor reports the currently connected session for serverID and its
// last-confirmed channel id, if any.
func (r *MediaRegistry) sessionFor(serverID string) (session MediaSession, channelID string, ok bool) {
	session, ok = r.sessions[serverID]
	if !ok {
		return nil, "", false
	}
	return session, r.channelID[serverID], true
}

// killAll returns every currently-connected session and forgets all
// registry state, used by kill() to tear everything down at once.
func (r *MediaRegistry) killAll() []MediaSession {
	out := r.all()
	for serverID := range r.sessions {
		r.forget(serverID)
	}
	return out
}

// isPending reports whether serverID still has a voice handshake in
// flight, used to distinguish a real timeout from one that resolved just
// before the timer fired.
func (r *MediaRegistry) isPending(serverID string) bool {
	_, ok := r.pending[serverID]
	return ok
}

// remove forgets a session and returns it so the caller can tear it down,
// e.g. on GUILD_DELETE or a VoiceConnect that leaves the channel.
func (r *MediaRegistry) remove(serverID string) (MediaSession, bool) {
	s, ok := r.sessions[serverID]
	r.forget(serverID)
	return s, ok
}

// all returns every currently-connected session, for teardown on a
// transport close and on kill.
func (r *MediaRegistry) all() []MediaSession {
	out := make([]MediaSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}
