package chat

import (
	"fmt"
	"strings"
	"sync"
)

// CosmeticKind distinguishes entitlement targets.
type CosmeticKind string

const (
	CosmeticBadge CosmeticKind = "BADGE"
	CosmeticPaint CosmeticKind = "PAINT"
)

// SevenTVBadge is a cosmetic badge definition.
type SevenTVBadge struct {
	ID      string
	Name    string
	Tooltip string
	URL     string
}

// PaintStop is a gradient color stop; At is in [0,1].
type PaintStop struct {
	At    float64
	Color int32
}

// PaintShadow is a drop shadow applied to painted text.
type PaintShadow struct {
	X, Y, Radius float64
	Color        int32
}

// Paint is a name-color cosmetic.
type Paint struct {
	ID       string
	Name     string
	Function string
	Color    *int32
	Angle    int
	Shape    string
	ImageURL string
	Repeat   bool
	Stops    []PaintStop
	Shadows  []PaintShadow
}

// RGBA renders a packed 0xRRGGBBAA color.
func RGBA(c int32) string {
	u := uint32(c)
	r, g, b, a := (u>>24)&0xff, (u>>16)&0xff, (u>>8)&0xff, u&0xff
	return fmt.Sprintf("rgba(%d, %d, %d, %.3g)", r, g, b, float64(a)/255)
}

// Background renders the paint as a CSS background-image value.
func (p Paint) Background() string {
	stops := make([]string, len(p.Stops))
	for i, s := range p.Stops {
		stops[i] = fmt.Sprintf("%s %g%%", RGBA(s.Color), s.At*100)
	}
	prefix := ""
	if p.Repeat {
		prefix = "repeating-"
	}
	switch p.Function {
	case "LINEAR_GRADIENT":
		return fmt.Sprintf("%slinear-gradient(%ddeg, %s)", prefix, p.Angle, strings.Join(stops, ", "))
	case "RADIAL_GRADIENT":
		shape := strings.ToLower(p.Shape)
		if shape == "" {
			shape = "circle"
		}
		return fmt.Sprintf("%sradial-gradient(%s, %s)", prefix, shape, strings.Join(stops, ", "))
	case "URL":
		return fmt.Sprintf("url(%q)", p.ImageURL)
	}
	if p.Color != nil {
		return RGBA(*p.Color)
	}
	return ""
}

// Filter renders the paint shadows as a CSS filter value.
func (p Paint) Filter() string {
	parts := make([]string, len(p.Shadows))
	for i, s := range p.Shadows {
		parts[i] = fmt.Sprintf("drop-shadow(%gpx %gpx %gpx %s)", s.X, s.Y, s.Radius, RGBA(s.Color))
	}
	return strings.Join(parts, " ")
}

// Cosmetics holds the badge and paint catalogs, per-user entitlements and
// personal emote sets.
type Cosmetics struct {
	mu        sync.RWMutex
	badges    map[string]SevenTVBadge
	paints    map[string]Paint
	userBadge map[string]string
	userPaint map[string]string
	emoteSets map[string]*EmoteSet
}

func NewCosmetics() *Cosmetics {
	return &Cosmetics{
		badges:    make(map[string]SevenTVBadge),
		paints:    make(map[string]Paint),
		userBadge: make(map[string]string),
		userPaint: make(map[string]string),
		emoteSets: make(map[string]*EmoteSet),
	}
}

func (c *Cosmetics) AddBadge(b SevenTVBadge) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.badges[b.ID] = b
}

func (c *Cosmetics) AddPaint(p Paint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paints[p.ID] = p
}

func (c *Cosmetics) Badge(id string) (SevenTVBadge, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.badges[id]
	return b, ok
}

func (c *Cosmetics) Paint(id string) (Paint, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.paints[id]
	return p, ok
}

func (c *Cosmetics) entitlements(kind CosmeticKind) map[string]string {
	if kind == CosmeticPaint {
		return c.userPaint
	}
	return c.userBadge
}

// Entitle assigns cosmetic refID of kind to a platform user.
func (c *Cosmetics) Entitle(userID string, kind CosmeticKind, refID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entitlements(kind)[userID] = refID
}

// Revoke removes the entitlement only if it still points at refID.
func (c *Cosmetics) Revoke(userID string, kind CosmeticKind, refID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := c.entitlements(kind)
	if m[userID] == refID {
		delete(m, userID)
	}
}

// BadgeFor returns the badge entitled to a user, if defined.
func (c *Cosmetics) BadgeFor(userID string) (SevenTVBadge, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.badges[c.userBadge[userID]]
	return b, ok
}

// PaintFor returns the paint entitled to a user, if defined.
func (c *Cosmetics) PaintFor(userID string) (Paint, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.paints[c.userPaint[userID]]
	return p, ok
}

// AddEmoteSet registers a personal emote set.
func (c *Cosmetics) AddEmoteSet(s *EmoteSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emoteSets[s.ID] = s
}

func (c *Cosmetics) EmoteSet(id string) (*EmoteSet, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.emoteSets[id]
	return s, ok
}
