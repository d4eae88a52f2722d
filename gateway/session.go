package gateway

// sessionState tracks the session_id/sequence/user_id triple the resume
// protocol is built on (§4.E).
//
// A zero-value sessionState has no session_id, which canResume already
// treats as "must IDENTIFY" — no separate "fresh" flag is needed.
type sessionState struct {
	sessionID string
	userID    string
	seq       int64
	hasSeq    bool
	// trace is the server-assigned request-trace list delivered on READY
	// (§4.E "store trace"), kept for diagnostics only — nothing in the
	// driver branches on it.
	trace []string
}

// canResume reports whether enough state survives to attempt RESUME instead
// of a fresh IDENTIFY.
func (s *sessionState) canResume() bool {
	return s.sessionID != "" && s.hasSeq
}

// observeSeq records a dispatch frame's sequence number. It reports whether
// the new sequence represents a gap (skipped one or more numbers), which
// the driver treats as a signal to reconnect and resume rather than trust a
// dispatch stream that silently dropped frames.
//
// On a gap the sequence is left unchanged (§4.E: "otherwise set sequence ←
// s_new" — a gap is the "otherwise" this doesn't fall into). The next
// RESUME must still carry the last sequence actually observed so the
// server replays the events that were lost, not the one that revealed the
// gap.
func (s *sessionState) observeSeq(seq int64) (gap bool) {
	if s.hasSeq && seq > s.seq+1 {
		return true
	}
	s.seq = seq
	s.hasSeq = true
	return false
}

// setReady records the session_id/user_id pair delivered on READY, along
// with READY's trace list. A nil trace leaves any trace already stored
// untouched, and an empty userID leaves the stored user id untouched.
func (s *sessionState) setReady(sessionID, userID string, trace []string) {
	s.sessionID = sessionID
	if userID != "" {
		s.userID = userID
	}
	if trace != nil {
		s.trace = trace
	}
}

// invalidate clears everything, as an INVALID_SESSION{resumable: false} or
// a NORMAL/GOING_AWAY close requires: the next open is a completely fresh
// IDENTIFY, with no sequence to gap against.
func (s *sessionState) invalidate() {
	*s = sessionState{}
}
