package chat

import (
	"sync"
	"time"
)

// Mode is a snapshot of a channel's chat settings.
type Mode struct {
	EmoteOnly bool
	SubOnly   bool
	Unique    bool
	Shield    bool
	// FollowerOnly with a zero FollowerAge admits any follower.
	FollowerOnly bool
	FollowerAge  time.Duration
	// Slow is the required interval between messages; zero means off.
	Slow time.Duration
}

// ModePatch is a sparse update: nil fields keep their current value.
type ModePatch struct {
	EmoteOnly    *bool
	SubOnly      *bool
	Unique       *bool
	Shield       *bool
	FollowerOnly *bool
	FollowerAge  *time.Duration
	Slow         *time.Duration
}

// Empty reports whether the patch changes nothing.
func (p ModePatch) Empty() bool {
	return p.EmoteOnly == nil && p.SubOnly == nil && p.Unique == nil && p.Shield == nil &&
		p.FollowerOnly == nil && p.FollowerAge == nil && p.Slow == nil
}

// ModerationState holds a channel's settings. It changes only when inbound
// events confirm a change.
type ModerationState struct {
	mu   sync.RWMutex
	mode Mode
}

func (s *ModerationState) Current() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// Apply merges p and returns the resulting settings.
func (s *ModerationState) Apply(p ModePatch) Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	set(&s.mode.EmoteOnly, p.EmoteOnly)
	set(&s.mode.SubOnly, p.SubOnly)
	set(&s.mode.Unique, p.Unique)
	set(&s.mode.Shield, p.Shield)
	set(&s.mode.FollowerOnly, p.FollowerOnly)
	if p.FollowerAge != nil {
		s.mode.FollowerAge = *p.FollowerAge
	}
	if p.Slow != nil {
		s.mode.Slow = *p.Slow
	}
	return s.mode
}

func (s *ModerationState) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = Mode{}
}

// Bool and Duration build patch fields inline.
func Bool(v bool) *bool                       { return &v }
func Duration(v time.Duration) *time.Duration { return &v }
