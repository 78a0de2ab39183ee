package chat

import (
	"strconv"
	"sync"
	"time"

	"github.com/onnwee/chatline/ratelimit"
)

// Stream is the live broadcast of a channel.
type Stream struct {
	ID          string
	Title       string
	Category    string
	ViewerCount int
	StartedAt   time.Time
}

// Channel is a chat room and everything the client tracks about it.
type Channel struct {
	ID   string
	User *User

	Viewers  *Directory
	Mode     *ModerationState
	Timeline *Timeline
	Limiter  *ratelimit.Limiter
	Badges   *BadgeSet
	Emotes   *EmoteSet

	globalBadges *BadgeSet
	globalEmotes *EmoteSet

	mu         sync.RWMutex
	stream     *Stream
	sevenTVID  string
	emoteSetID string
	joined     bool
}

// newChannel builds a channel owned by s.
func newChannel(u *User, s *Session) *Channel {
	ch := &Channel{
		ID:           u.ID,
		User:         u,
		Viewers:      NewDirectory(u.ID, s.Users),
		Mode:         &ModerationState{},
		Limiter:      ratelimit.New(s.Clock),
		Badges:       NewBadgeSet(),
		Emotes:       NewEmoteSet("", "", u.ID),
		globalBadges: s.Badges,
		globalEmotes: s.Emotes,
	}
	ch.Timeline = NewTimeline(ch, s.Observer)
	return ch
}

func (c *Channel) Login() string { return c.User.Login() }

// Emote resolves a third-party emote name, channel emotes first.
func (c *Channel) Emote(name string) (Emote, bool) {
	if e, ok := c.Emotes.Emote(name); ok {
		return e, true
	}
	if c.globalEmotes != nil {
		return c.globalEmotes.Emote(name)
	}
	return Emote{}, false
}

// Badge resolves a badge, channel badges first.
func (c *Channel) Badge(set, version string) (Badge, bool) {
	if b, ok := c.Badges.Get(set, version); ok {
		return b, true
	}
	if c.globalBadges != nil {
		return c.globalBadges.Get(set, version)
	}
	return Badge{}, false
}

// ResolveBadges maps transport badge tags to badges, skipping unknown ones.
func (c *Channel) ResolveBadges(tags map[string]int) []Badge {
	out := make([]Badge, 0, len(tags))
	for set, version := range tags {
		if b, ok := c.Badge(set, strconv.Itoa(version)); ok {
			out = append(out, b)
		}
	}
	return out
}

// Stream returns the live stream or nil when offline.
func (c *Channel) Stream() *Stream {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stream
}

func (c *Channel) SetStream(s *Stream) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stream = s
}

// UpdateStream applies fn to the live stream, if any.
func (c *Channel) UpdateStream(fn func(*Stream)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream != nil {
		s := *c.stream
		fn(&s)
		c.stream = &s
	}
}

// SevenTV returns the cosmetics-provider user and emote set ids.
func (c *Channel) SevenTV() (userID, emoteSetID string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sevenTVID, c.emoteSetID
}

func (c *Channel) SetSevenTV(userID, emoteSetID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sevenTVID = userID
	c.emoteSetID = emoteSetID
}

func (c *Channel) Joined() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.joined
}

func (c *Channel) SetJoined(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.joined = v
}

// Reset clears per-session state on leave. The channel stays registered.
func (c *Channel) Reset() {
	c.Timeline.Reset()
	c.Viewers.Clear()
	c.Limiter.Reset()
	c.Mode.Reset()
	c.SetJoined(false)
}
