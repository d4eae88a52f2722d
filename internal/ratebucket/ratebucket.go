// Package ratebucket implements Component C: a token bucket gating outbound
// gateway sends, with lock/unlock/clear controls layered on top for the
// engine to use during backoff and teardown.
//
// Refill timing is delegated to golang.org/x/time/rate, which — unlike a
// hand-rolled ticker — accepts an explicit "now" on every call, so the
// bucket advances under a gwactortest.FakeClock in tests exactly as it would
// under wall-clock time in production.
package ratebucket

import (
	"time"

	"golang.org/x/time/rate"
)

// DefaultCapacity and DefaultWindow match the gateway's documented default
// send budget: 120 sends per 60 seconds.
const (
	DefaultCapacity = 120
	DefaultWindow   = 60 * time.Second
)

// Clock is the minimal time source Bucket needs. gwactor.Clock and
// gwactor.RealClock satisfy it.
type Clock interface {
	Now() time.Time
}

// Bucket gates work items behind a token bucket. When a token isn't
// immediately available, or the bucket is locked, the work is queued and
// released by a later Drain call once capacity frees up.
//
// Bucket is not safe for concurrent use; it is owned by the engine's single
// actor loop, matching the rest of the engine's single-threaded model.
type Bucket struct {
	limiter  *rate.Limiter
	capacity int
	window   time.Duration
	clock    Clock
	locked   bool
	queue    []func()
}

// New creates a Bucket allowing capacity sends per window, refilling
// continuously (window/capacity per token) rather than in a single burst at
// the window boundary.
func New(capacity int, window time.Duration, clock Clock) *Bucket {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if window <= 0 {
		window = DefaultWindow
	}
	limit := rate.Every(window / time.Duration(capacity))
	return &Bucket{
		limiter:  rate.NewLimiter(limit, capacity),
		capacity: capacity,
		window:   window,
		clock:    clock,
	}
}

// RefillInterval reports how often a single token becomes available
// (window/capacity). Callers use this to size a periodic Drain tick so
// queued sends flush during a live connection, not just at Unlock.
func (b *Bucket) RefillInterval() time.Duration {
	return b.window / time.Duration(b.capacity)
}

// Add attempts to run work immediately if a token is available and the
// bucket isn't locked; otherwise work is queued until Drain can release it.
func (b *Bucket) Add(work func()) {
	if work == nil {
		return
	}
	if b.locked || !b.limiter.AllowN(b.clock.Now(), 1) {
		b.queue = append(b.queue, work)
		return
	}
	work()
}

// Lock forces every subsequent Add to queue, regardless of token
// availability, until Unlock is called.
func (b *Bucket) Lock() {
	b.locked = true
}

// Unlock resumes normal token-gated processing and immediately drains as
// much of the queue as current capacity allows.
func (b *Bucket) Unlock() {
	b.locked = false
	b.Drain()
}

// Locked reports whether the bucket is currently forced closed.
func (b *Bucket) Locked() bool { return b.locked }

// Clear discards all queued work without running it. Used on connection
// teardown, where queued sends would target a transport that no longer
// exists.
func (b *Bucket) Clear() {
	b.queue = nil
}

// Pending reports how many work items are currently queued.
func (b *Bucket) Pending() int { return len(b.queue) }

// Drain releases as much of the queue as the bucket currently has capacity
// for. It is a no-op while locked. Callers invoke this on a timer tick
// (e.g. once per refill interval) so queued sends eventually flush without
// needing one goroutine per queued item.
func (b *Bucket) Drain() {
	if b.locked {
		return
	}
	now := b.clock.Now()
	for len(b.queue) > 0 {
		if !b.limiter.AllowN(now, 1) {
			return
		}
		work := b.queue[0]
		b.queue = b.queue[1:]
		work()
	}
}
