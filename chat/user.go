package chat

import (
	"strings"
	"sync"
)

// Profile is a snapshot of a user's identity as returned by a lookup or
// assembled from event payloads.
type Profile struct {
	ID          string
	Login       string
	DisplayName string
	Color       string
	AvatarURL   string
	// Partial marks stubs built from event payloads rather than a full lookup.
	Partial bool
}

// User is the identity shared by every Viewer and message author with the same id.
// Only the arena creates Users, so there is one per id per process.
type User struct {
	ID string

	mu      sync.RWMutex
	profile Profile
}

func newUser(p Profile) *User {
	u := &User{ID: p.ID}
	u.profile = Profile{ID: p.ID, Partial: true}
	u.merge(p)
	return u
}

// merge copies non-empty fields of p. A full profile clears the partial flag; a
// partial one never sets it back.
func (u *User) merge(p Profile) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if p.Login != "" {
		u.profile.Login = strings.ToLower(p.Login)
	}
	if p.DisplayName != "" {
		u.profile.DisplayName = p.DisplayName
	}
	if p.Color != "" {
		u.profile.Color = p.Color
	}
	if p.AvatarURL != "" {
		u.profile.AvatarURL = p.AvatarURL
	}
	if !p.Partial {
		u.profile.Partial = false
	}
}

// Profile returns a copy of the current identity.
func (u *User) Profile() Profile {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.profile
}

func (u *User) Login() string { return u.Profile().Login }

// DisplayName falls back to the login when no display name is known.
func (u *User) DisplayName() string {
	p := u.Profile()
	if p.DisplayName == "" {
		return p.Login
	}
	return p.DisplayName
}

func (u *User) Color() string     { return u.Profile().Color }
func (u *User) AvatarURL() string { return u.Profile().AvatarURL }
func (u *User) Partial() bool     { return u.Profile().Partial }
