package chat

import (
	"sort"
	"sync"
)

// Emote providers.
const (
	ProviderTwitch = "twitch"
	Provider7TV    = "7tv"
	ProviderBTTV   = "bttv"
	ProviderFFZ    = "ffz"
)

// Emote is a named image from one provider.
type Emote struct {
	ID       string
	Name     string
	Provider string
	URL      string
	Width    int
	Height   int
	// ZeroWidth emotes overlay the preceding emote.
	ZeroWidth bool
}

// EmoteSet is a name-keyed emote map safe for concurrent use.
type EmoteSet struct {
	ID      string
	Name    string
	OwnerID string

	mu     sync.RWMutex
	emotes map[string]Emote
}

// NewEmoteSet returns an empty set.
func NewEmoteSet(id, name, ownerID string) *EmoteSet {
	return &EmoteSet{ID: id, Name: name, OwnerID: ownerID, emotes: make(map[string]Emote)}
}

// Emote implements EmoteLookup.
func (s *EmoteSet) Emote(name string) (Emote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.emotes[name]
	return e, ok
}

// Put adds or replaces e under its name.
func (s *EmoteSet) Put(e Emote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emotes[e.Name] = e
}

// RemoveID removes the emote with the given provider id and returns it.
func (s *EmoteSet) RemoveID(provider, id string) (Emote, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, e := range s.emotes {
		if e.Provider == provider && e.ID == id {
			delete(s.emotes, name)
			return e, true
		}
	}
	return Emote{}, false
}

// FindID returns the emote with the given provider id.
func (s *EmoteSet) FindID(provider, id string) (Emote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.emotes {
		if e.Provider == provider && e.ID == id {
			return e, true
		}
	}
	return Emote{}, false
}

// ReplaceProvider swaps every emote from provider for list.
func (s *EmoteSet) ReplaceProvider(provider string, list []Emote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, e := range s.emotes {
		if e.Provider == provider {
			delete(s.emotes, name)
		}
	}
	for _, e := range list {
		s.emotes[e.Name] = e
	}
}

// All returns the emotes ordered by name.
func (s *EmoteSet) All() []Emote {
	s.mu.RLock()
	out := make([]Emote, 0, len(s.emotes))
	for _, e := range s.emotes {
		out = append(out, e)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *EmoteSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.emotes)
}
