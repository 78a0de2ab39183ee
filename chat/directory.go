package chat

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Directory is a channel's cache of viewers keyed by user id. Entries resolve
// their identity through the shared Users arena.
type Directory struct {
	channelID string
	users     *Users

	mu      sync.RWMutex
	viewers map[string]*Viewer
	// gen counts Clear calls; lookups started before a Clear do not cache.
	gen uint64

	flight singleflight.Group
}

// NewDirectory returns an empty directory for channelID.
func NewDirectory(channelID string, users *Users) *Directory {
	return &Directory{
		channelID: channelID,
		users:     users,
		viewers:   make(map[string]*Viewer),
	}
}

// Get returns the viewer for id from the roster without any lookup.
func (d *Directory) Get(id string) (*Viewer, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.viewers[id]
	return v, ok
}

// Ensure returns the roster entry for u, creating it if absent.
func (d *Directory) Ensure(u *User) *Viewer {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ensureLocked(u)
}

func (d *Directory) ensureAt(gen uint64, u *User) *Viewer {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gen != gen {
		return NewViewer(d.channelID, u)
	}
	return d.ensureLocked(u)
}

func (d *Directory) ensureLocked(u *User) *Viewer {
	if v, ok := d.viewers[u.ID]; ok {
		return v
	}
	v := NewViewer(d.channelID, u)
	d.viewers[u.ID] = v
	return v
}

// Set stores v, replacing any entry with the same id.
func (d *Directory) Set(v *Viewer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.viewers[v.ID()] = v
}

// FindByLogin scans the roster for a login, case-insensitively.
func (d *Directory) FindByLogin(login string) (*Viewer, bool) {
	login = strings.ToLower(login)
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, v := range d.viewers {
		if v.User.Login() == login {
			return v, true
		}
	}
	return nil, false
}

// Fetch returns the cached viewer for id unless force is set, otherwise it
// looks the identity up and caches a new viewer. Concurrent calls for one id
// share a single lookup; on failure nothing is cached. A lookup that
// straddles Clear returns an uncached viewer.
func (d *Directory) Fetch(ctx context.Context, id string, force bool) (*Viewer, error) {
	d.mu.RLock()
	v, ok := d.viewers[id]
	gen := d.gen
	d.mu.RUnlock()
	if ok && !force {
		return v, nil
	}
	key := id + "@" + strconv.FormatUint(gen, 10)
	ch := d.flight.DoChan(key, func() (any, error) {
		u, err := d.users.Fetch(context.WithoutCancel(ctx), id, force)
		if err != nil {
			return nil, err
		}
		return d.ensureAt(gen, u), nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Viewer), nil
	}
}

// Len returns the roster size.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.viewers)
}

// All returns the roster ordered by login.
func (d *Directory) All() []*Viewer {
	d.mu.RLock()
	out := make([]*Viewer, 0, len(d.viewers))
	for _, v := range d.viewers {
		out = append(out, v)
	}
	d.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].User.Login() < out[j].User.Login() })
	return out
}

// Clear drops every entry. Users stay in the arena.
func (d *Directory) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.viewers = make(map[string]*Viewer)
	d.gen++
}
