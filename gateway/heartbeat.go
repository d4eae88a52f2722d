package gateway

// heartbeatState tracks liveness for the current connection (§4.D): once
// HELLO sets the interval, the driver emits a heartbeat on every tick and
// this struct tracks whether the previous one was acked in time.
type heartbeatState struct {
	intervalMS  int64
	acked       bool
	missed      int
	missedLimit int
	lastSentMS  int64
	sampleMS    int64
	haveSample  bool
}

// start begins tracking a new interval, as delivered on HELLO. The first
// beat is always considered "acked" so the first tick doesn't immediately
// look like a miss.
func (h *heartbeatState) start(intervalMS int64, missedLimit int) {
	*h = heartbeatState{
		intervalMS:  intervalMS,
		acked:       true,
		missedLimit: missedLimit,
	}
}

// beat records that a heartbeat was just sent at nowMS. If the previous
// heartbeat was never acked it increments the miss counter; it returns true
// once the counter reaches missedLimit, meaning the connection should be
// treated as zombied and reconnected (§4.D).
func (h *heartbeatState) beat(nowMS int64) (zombied bool) {
	if !h.acked {
		h.missed++
	} else {
		h.missed = 0
	}
	h.acked = false
	h.lastSentMS = nowMS
	return h.missed >= h.missedLimit
}

// ack records a HEARTBEAT_ACK received at nowMS, sampling round-trip
// latency against the timestamp beat() recorded. This heartbeat round-trip
// is the engine's only latency sample; transport pings are not used.
func (h *heartbeatState) ack(nowMS int64) {
	h.acked = true
	h.missed = 0
	if h.lastSentMS > 0 && nowMS >= h.lastSentMS {
		h.sampleMS = nowMS - h.lastSentMS
		h.haveSample = true
	}
}

// latency reports the most recently sampled heartbeat round-trip, if any.
func (h *heartbeatState) latency() (ms int64, ok bool) {
	return h.sampleMS, h.haveSample
}
