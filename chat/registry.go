package chat

import (
	"sort"
	"strings"
	"sync"
)

// Registry owns every known channel, keyed by id with a login index.
type Registry struct {
	mu      sync.RWMutex
	byID    map[string]*Channel
	byLogin map[string]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*Channel), byLogin: make(map[string]string)}
}

// ensure returns the channel for u.ID, creating it with create when absent.
func (r *Registry) ensure(u *User, create func() *Channel) *Channel {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ch, ok := r.byID[u.ID]; ok {
		return ch
	}
	ch := create()
	r.byID[ch.ID] = ch
	if login := ch.Login(); login != "" {
		r.byLogin[login] = ch.ID
	}
	return ch
}

func (r *Registry) Get(id string) (*Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.byID[id]
	return ch, ok
}

func (r *Registry) ByLogin(login string) (*Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byLogin[strings.ToLower(strings.TrimPrefix(login, "#"))]
	if !ok {
		return nil, false
	}
	ch, ok := r.byID[id]
	return ch, ok
}

// Resolve finds a channel by id, falling back to login.
func (r *Registry) Resolve(id, login string) (*Channel, bool) {
	if id != "" {
		if ch, ok := r.Get(id); ok {
			return ch, true
		}
	}
	if login != "" {
		return r.ByLogin(login)
	}
	return nil, false
}

// ByEmoteSet finds the channel whose active 7TV emote set is setID.
func (r *Registry) ByEmoteSet(setID string) (*Channel, bool) {
	return r.find(func(ch *Channel) bool {
		_, id := ch.SevenTV()
		return id != "" && id == setID
	})
}

// BySevenTV finds the channel owned by a 7TV user id.
func (r *Registry) BySevenTV(userID string) (*Channel, bool) {
	return r.find(func(ch *Channel) bool {
		id, _ := ch.SevenTV()
		return id != "" && id == userID
	})
}

func (r *Registry) find(match func(*Channel) bool) (*Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ch := range r.byID {
		if match(ch) {
			return ch, true
		}
	}
	return nil, false
}

// Remove drops a channel from the registry.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ch, ok := r.byID[id]; ok {
		delete(r.byLogin, ch.Login())
		delete(r.byID, id)
	}
}

// All returns the registered channels ordered by login.
func (r *Registry) All() []*Channel {
	r.mu.RLock()
	out := make([]*Channel, 0, len(r.byID))
	for _, ch := range r.byID {
		out = append(out, ch)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Login() < out[j].Login() })
	return out
}
