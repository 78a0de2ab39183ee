package chat

import "sync"

// Badge is a chat badge image for one set version.
type Badge struct {
	Set      string
	Version  string
	Title    string
	ImageURL string
}

// BadgeKey builds the composite key used by BadgeSet.
func BadgeKey(set, version string) string { return set + "/" + version }

// BadgeSet maps composite keys to badges.
type BadgeSet struct {
	mu     sync.RWMutex
	badges map[string]Badge
}

// NewBadgeSet returns an empty set.
func NewBadgeSet() *BadgeSet {
	return &BadgeSet{badges: make(map[string]Badge)}
}

func (b *BadgeSet) Get(set, version string) (Badge, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	badge, ok := b.badges[BadgeKey(set, version)]
	return badge, ok
}

// Replace swaps the whole set.
func (b *BadgeSet) Replace(list []Badge) {
	m := make(map[string]Badge, len(list))
	for _, badge := range list {
		m[BadgeKey(badge.Set, badge.Version)] = badge
	}
	b.mu.Lock()
	b.badges = m
	b.mu.Unlock()
}

func (b *BadgeSet) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.badges)
}
