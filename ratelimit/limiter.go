// Package ratelimit implements client-side admission control for outgoing chat messages.
package ratelimit

import (
	"sync"
	"time"
)

// Tier selects which window a message is counted against.
type Tier int

const (
	// Normal applies to regular chatters.
	Normal Tier = iota
	// Elevated applies to moderators and VIPs.
	Elevated
)

func (t Tier) String() string {
	if t == Elevated {
		return "elevated"
	}
	return "normal"
}

// Kind identifies which limit rejected a message.
type Kind int

const (
	// None means the message was admitted.
	None Kind = iota
	// Speed means the minimum spacing since the last admitted message was violated.
	Speed
	// Volume means the maximum count within the rolling window was reached.
	Volume
)

func (k Kind) String() string {
	switch k {
	case Speed:
		return "speed"
	case Volume:
		return "volume"
	default:
		return "none"
	}
}

// Policy bounds one tier.
type Policy struct {
	Spacing time.Duration
	Max     int
	Window  time.Duration
}

var (
	// NormalPolicy allows 19 messages per 30s spaced at least 1.1s apart.
	NormalPolicy = Policy{Spacing: 1100 * time.Millisecond, Max: 19, Window: 30 * time.Second}
	// ElevatedPolicy allows 99 messages per 30s spaced at least 100ms apart.
	ElevatedPolicy = Policy{Spacing: 100 * time.Millisecond, Max: 99, Window: 30 * time.Second}
)

// Grace is added to the window boundary to absorb clock and network jitter.
const Grace = time.Second

// Limiter tracks two independent sliding windows, one per tier.
// It is safe for concurrent use.
type Limiter struct {
	mu       sync.Mutex
	now      func() time.Time
	policies [2]Policy
	sent     [2][]time.Time

	lastHitSpeed  time.Time
	lastHitVolume time.Time
}

// New returns a Limiter using the default policies. A nil clock means time.Now.
func New(now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	l := &Limiter{now: now, policies: [2]Policy{NormalPolicy, ElevatedPolicy}}
	l.resetHits()
	return l
}

func (l *Limiter) resetHits() {
	ago := l.now().Add(-2 * NormalPolicy.Window)
	l.lastHitSpeed = ago
	l.lastHitVolume = ago
}

// CheckAndRecord reports whether a message at the given tier must be rejected.
// Admitted messages are recorded.
func (l *Limiter) CheckAndRecord(tier Tier) bool {
	return l.Check(tier) != None
}

// Check is CheckAndRecord returning which limit, if any, rejected the message.
func (l *Limiter) Check(tier Tier) Kind {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	p := l.policies[tier]
	queue := l.sent[tier]

	if n := len(queue); n > 0 && queue[n-1].Add(p.Spacing).After(now) {
		l.hit(&l.lastHitSpeed, now, p.Window)
		return Speed
	}

	expired := 0
	for expired < len(queue) && queue[expired].Add(p.Window+Grace).Before(now) {
		expired++
	}
	queue = queue[expired:]

	if len(queue) >= p.Max {
		l.sent[tier] = queue
		l.hit(&l.lastHitVolume, now, p.Window)
		return Volume
	}

	l.sent[tier] = append(queue, now)
	return None
}

// hit moves a last-hit marker only once per window so callers can show a
// stable cooldown instead of one that restarts on every rejected attempt.
func (l *Limiter) hit(last *time.Time, now time.Time, window time.Duration) {
	if last.Add(window).Before(now) {
		*last = now
	}
}

// LastHit returns when the given limit last started rejecting messages.
func (l *Limiter) LastHit(kind Kind) time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	if kind == Volume {
		return l.lastHitVolume
	}
	return l.lastHitSpeed
}

// Count returns how many admitted messages are currently held for a tier.
func (l *Limiter) Count(tier Tier) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sent[tier])
}

// Reset forgets all admitted messages.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sent = [2][]time.Time{}
	l.resetHits()
}
