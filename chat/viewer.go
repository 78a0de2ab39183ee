package chat

import "sync"

// BanEvasion is the platform's estimate that a chatter is evading a ban.
type BanEvasion int

const (
	BanEvasionUnknown BanEvasion = iota
	BanEvasionPossible
	BanEvasionLikely
)

// ParseBanEvasion maps the platform's evaluation string.
func ParseBanEvasion(s string) BanEvasion {
	switch s {
	case "possible", "possible_evader":
		return BanEvasionPossible
	case "likely", "likely_evader":
		return BanEvasionLikely
	default:
		return BanEvasionUnknown
	}
}

func (b BanEvasion) String() string {
	switch b {
	case BanEvasionPossible:
		return "possible"
	case BanEvasionLikely:
		return "likely"
	default:
		return "unknown"
	}
}

// TrustStatus is the suspicious-user treatment applied to a viewer.
type TrustStatus string

const (
	TrustNone       TrustStatus = "no_treatment"
	TrustMonitored  TrustStatus = "active_monitoring"
	TrustRestricted TrustStatus = "restricted"
)

// Roles are the per-channel role flags of a viewer.
type Roles struct {
	Broadcaster bool
	Moderator   bool
	Subscriber  bool
	VIP         bool
	Returning   bool
	FirstTime   bool
}

// Viewer is a User's role and trust state within one channel.
type Viewer struct {
	User      *User
	ChannelID string

	mu         sync.RWMutex
	roles      Roles
	monitored  bool
	restricted bool
	banEvasion BanEvasion
}

// NewViewer returns a viewer with no roles.
func NewViewer(channelID string, u *User) *Viewer {
	return &Viewer{User: u, ChannelID: channelID}
}

func (v *Viewer) ID() string { return v.User.ID }

func (v *Viewer) Roles() Roles {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.roles
}

// UpdateRoles applies fn to the viewer's roles under lock.
func (v *Viewer) UpdateRoles(fn func(*Roles)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fn(&v.roles)
}

// IsModerator reports moderator privilege; the broadcaster always has it.
func (v *Viewer) IsModerator() bool {
	r := v.Roles()
	return r.Moderator || r.Broadcaster
}

func (v *Viewer) IsBroadcaster() bool { return v.Roles().Broadcaster }

// Elevated reports whether the viewer sends under the moderator-or-VIP rate tier.
func (v *Viewer) Elevated() bool {
	r := v.Roles()
	return r.Moderator || r.Broadcaster || r.VIP
}

// Trust returns the current suspicious-user treatment.
func (v *Viewer) Trust() TrustStatus {
	v.mu.RLock()
	defer v.mu.RUnlock()
	switch {
	case v.restricted:
		return TrustRestricted
	case v.monitored:
		return TrustMonitored
	default:
		return TrustNone
	}
}

// SetTrust replaces the treatment. Monitored and restricted are never both set.
func (v *Viewer) SetTrust(s TrustStatus) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.monitored = s == TrustMonitored
	v.restricted = s == TrustRestricted
}

func (v *Viewer) Monitored() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.monitored
}

func (v *Viewer) Restricted() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.restricted
}

func (v *Viewer) BanEvasion() BanEvasion {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.banEvasion
}

func (v *Viewer) SetBanEvasion(b BanEvasion) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.banEvasion = b
}
