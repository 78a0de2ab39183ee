package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// stubLookup serves profiles from a map and counts calls. When gate is set,
// lookups block until it is closed.
type stubLookup struct {
	mu       sync.Mutex
	profiles map[string]Profile
	calls    atomic.Int32
	gate     chan struct{}
	entered  chan struct{}
	once     sync.Once
}

func newStubLookup(profiles ...Profile) *stubLookup {
	s := &stubLookup{profiles: make(map[string]Profile)}
	for _, p := range profiles {
		s.profiles[p.ID] = p
	}
	return s
}

func (s *stubLookup) wait() {
	if s.entered != nil {
		s.once.Do(func() { close(s.entered) })
	}
	if s.gate != nil {
		<-s.gate
	}
}

func (s *stubLookup) UserByID(_ context.Context, id string) (Profile, error) {
	s.calls.Add(1)
	s.wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return Profile{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return p, nil
}

func (s *stubLookup) UserByLogin(_ context.Context, login string) (Profile, error) {
	s.calls.Add(1)
	s.wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.profiles {
		if strings.EqualFold(p.Login, login) {
			return p, nil
		}
	}
	return Profile{}, fmt.Errorf("user %s: %w", login, ErrNotFound)
}
