package chat

import (
	"sync/atomic"
	"time"
)

// Session is the root of all chat state: the user arena, the channel registry
// and the process-wide catalogs. Handlers and commands receive it explicitly.
type Session struct {
	Users     *Users
	Channels  *Registry
	Cosmetics *Cosmetics
	Whispers  *Whispers
	// Badges and Emotes are the global catalogs consulted after channel ones.
	Badges *BadgeSet
	Emotes *EmoteSet

	Observer Observer
	Clock    func() time.Time

	self atomic.Pointer[User]
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithObserver registers an observer on every channel timeline.
func WithObserver(o Observer) SessionOption {
	return func(s *Session) { s.Observer = o }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.Clock = now }
}

// NewSession returns an empty session resolving identities through lookup.
func NewSession(lookup UserLookup, opts ...SessionOption) *Session {
	s := &Session{
		Users:     NewUsers(lookup),
		Channels:  NewRegistry(),
		Cosmetics: NewCosmetics(),
		Whispers:  NewWhispers(),
		Badges:    NewBadgeSet(),
		Emotes:    NewEmoteSet("global", "Global Emotes", ""),
		Clock:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the session clock's time.
func (s *Session) Now() time.Time { return s.Clock() }

// Self returns the authenticated user, or nil when anonymous.
func (s *Session) Self() *User { return s.self.Load() }

func (s *Session) SetSelf(u *User) { s.self.Store(u) }

// EnsureChannel returns the registered channel owned by u, creating it.
func (s *Session) EnsureChannel(u *User) *Channel {
	return s.Channels.ensure(u, func() *Channel { return newChannel(u, s) })
}

// SelfViewer returns the authenticated user's roster entry in ch.
func (s *Session) SelfViewer(ch *Channel) (*Viewer, bool) {
	self := s.Self()
	if self == nil {
		return nil, false
	}
	return ch.Viewers.Ensure(self), true
}

// Moderating reports whether the authenticated user moderates ch.
func (s *Session) Moderating(ch *Channel) bool {
	v, ok := s.SelfViewer(ch)
	return ok && v.IsModerator()
}

// IsSelf reports whether id is the authenticated user.
func (s *Session) IsSelf(id string) bool {
	self := s.Self()
	return self != nil && self.ID == id
}
