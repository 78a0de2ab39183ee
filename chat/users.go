package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/onnwee/chatline/telemetry"
)

// ErrNotFound is returned when an identity lookup has no match.
var ErrNotFound = errors.New("not found")

// UserLookup resolves identities from the platform. Implementations return an
// error matching ErrNotFound when the user does not exist.
type UserLookup interface {
	UserByID(ctx context.Context, id string) (Profile, error)
	UserByLogin(ctx context.Context, login string) (Profile, error)
}

// Users is the process-wide arena of identities keyed by id.
type Users struct {
	lookup UserLookup

	mu      sync.RWMutex
	byID    map[string]*User
	byLogin map[string]string

	flight singleflight.Group
}

// NewUsers returns an empty arena backed by lookup.
func NewUsers(lookup UserLookup) *Users {
	return &Users{
		lookup:  lookup,
		byID:    make(map[string]*User),
		byLogin: make(map[string]string),
	}
}

// Get returns the cached user with the given id.
func (a *Users) Get(id string) (*User, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	u, ok := a.byID[id]
	return u, ok
}

// ByLogin returns the cached user with the given login.
func (a *Users) ByLogin(login string) (*User, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	id, ok := a.byLogin[strings.ToLower(login)]
	if !ok {
		return nil, false
	}
	u, ok := a.byID[id]
	return u, ok
}

// Upsert merges p into the canonical User for p.ID, creating it if needed.
func (a *Users) Upsert(p Profile) *User {
	a.mu.Lock()
	defer a.mu.Unlock()
	u, ok := a.byID[p.ID]
	if ok {
		if old := u.Login(); old != "" && p.Login != "" && !strings.EqualFold(old, p.Login) {
			delete(a.byLogin, old)
		}
		u.merge(p)
	} else {
		u = newUser(p)
		a.byID[p.ID] = u
	}
	if login := u.Login(); login != "" {
		a.byLogin[login] = u.ID
	}
	return u
}

// Fetch returns the cached user for id, or looks it up. Concurrent fetches for
// the same id share one lookup. force bypasses the cache.
func (a *Users) Fetch(ctx context.Context, id string, force bool) (*User, error) {
	if id == "" {
		return nil, fmt.Errorf("fetch user: empty id: %w", ErrNotFound)
	}
	if !force {
		if u, ok := a.Get(id); ok {
			return u, nil
		}
	}
	return a.do(ctx, "id:"+id, func(ctx context.Context) (Profile, error) {
		return a.lookup.UserByID(ctx, id)
	})
}

// FetchByLogin is Fetch keyed by login.
func (a *Users) FetchByLogin(ctx context.Context, login string) (*User, error) {
	login = strings.ToLower(strings.TrimPrefix(login, "@"))
	if login == "" {
		return nil, fmt.Errorf("fetch user: empty login: %w", ErrNotFound)
	}
	if u, ok := a.ByLogin(login); ok && !u.Partial() {
		return u, nil
	}
	return a.do(ctx, "login:"+login, func(ctx context.Context) (Profile, error) {
		return a.lookup.UserByLogin(ctx, login)
	})
}

func (a *Users) do(ctx context.Context, key string, lookup func(context.Context) (Profile, error)) (*User, error) {
	if a.lookup == nil {
		return nil, fmt.Errorf("fetch user %s: no lookup configured: %w", key, ErrNotFound)
	}
	// The shared lookup outlives any single caller's cancellation.
	flightCtx := context.WithoutCancel(ctx)
	ch := a.flight.DoChan(key, func() (any, error) {
		var p Profile
		err := telemetry.TimeLookup("user", func() error {
			var err error
			p, err = lookup(flightCtx)
			return err
		})
		if err != nil {
			telemetry.Inc(telemetry.ViewerLookups, "error")
			return nil, err
		}
		telemetry.Inc(telemetry.ViewerLookups, "ok")
		p.Partial = false
		return a.Upsert(p), nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("fetch user %s: %w", key, res.Err)
		}
		return res.Val.(*User), nil
	}
}
