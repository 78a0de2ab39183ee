// Package seventv adapts the 7TV EventAPI and REST API to router events and
// chat catalogs.
package seventv

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/onnwee/chatline/chat"
)

// HostFile is one rendition of a hosted image.
type HostFile struct {
	Name   string `json:"name"`
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Host is a CDN location with its renditions. URL is protocol-relative.
type Host struct {
	URL   string     `json:"url"`
	Files []HostFile `json:"files"`
}

// Largest returns the URL of the widest file with the preferred format.
func (h Host) Largest(format string) (HostFile, string, bool) {
	var files []HostFile
	for _, f := range h.Files {
		if strings.EqualFold(f.Format, format) {
			files = append(files, f)
		}
	}
	if len(files) == 0 {
		files = h.Files
	}
	if len(files) == 0 {
		return HostFile{}, "", false
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Width < files[j].Width })
	f := files[len(files)-1]
	return f, "https:" + h.URL + "/" + f.Name, true
}

// Connection links a 7TV user to a platform account.
type Connection struct {
	ID          string `json:"id"`
	Platform    string `json:"platform"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	EmoteSetID  string `json:"emote_set_id"`
}

// User is a 7TV user.
type User struct {
	ID          string       `json:"id"`
	Username    string       `json:"username"`
	DisplayName string       `json:"display_name"`
	Connections []Connection `json:"connections"`
}

// Twitch returns the user's Twitch connection.
func (u User) Twitch() (Connection, bool) {
	for _, c := range u.Connections {
		if c.Platform == "TWITCH" {
			return c, true
		}
	}
	return Connection{}, false
}

// Profile converts the Twitch connection into a partial chat profile.
func (u User) Profile() (chat.Profile, bool) {
	c, ok := u.Twitch()
	if !ok || c.ID == "" {
		return chat.Profile{}, false
	}
	return chat.Profile{ID: c.ID, Login: c.Username, DisplayName: c.DisplayName, Partial: true}, true
}

const zeroWidthFlag = 1 << 8

// EmoteData is the emote definition behind an active emote.
type EmoteData struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Flags int    `json:"flags"`
	Host  Host   `json:"host"`
}

// ActiveEmote is an emote as it appears in a set, possibly aliased.
type ActiveEmote struct {
	ID   string    `json:"id"`
	Name string    `json:"name"`
	Data EmoteData `json:"data"`
}

// Emote converts to a provider-tagged chat emote.
func (e ActiveEmote) Emote() chat.Emote {
	out := chat.Emote{
		ID:        e.ID,
		Name:      e.Name,
		Provider:  chat.Provider7TV,
		Width:     28,
		Height:    28,
		ZeroWidth: e.Data.Flags&zeroWidthFlag != 0,
	}
	if f, url, ok := e.Data.Host.Largest("webp"); ok {
		out.URL = url
		// the widest rendition is 4x
		if f.Width > 0 {
			out.Width, out.Height = f.Width/4, f.Height/4
		}
	}
	return out
}

// CosmeticCreate is cosmetic.create; Data depends on Kind.
type CosmeticCreate struct {
	ID   string          `json:"id"`
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// BadgeData is the data of a BADGE cosmetic.
type BadgeData struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Tooltip string `json:"tooltip"`
	Host    Host   `json:"host"`
}

// PaintData is the data of a PAINT cosmetic.
type PaintData struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Function string `json:"function"`
	Color    *int32 `json:"color"`
	Angle    int    `json:"angle"`
	Shape    string `json:"shape"`
	ImageURL string `json:"image_url"`
	Repeat   bool   `json:"repeat"`
	Stops    []struct {
		At    float64 `json:"at"`
		Color int32   `json:"color"`
	} `json:"stops"`
	Shadows []struct {
		XOffset float64 `json:"x_offset"`
		YOffset float64 `json:"y_offset"`
		Radius  float64 `json:"radius"`
		Color   int32   `json:"color"`
	} `json:"shadows"`
}

// Badge decodes a BADGE cosmetic.
func (c CosmeticCreate) Badge() (chat.SevenTVBadge, error) {
	var d BadgeData
	if err := json.Unmarshal(c.Data, &d); err != nil {
		return chat.SevenTVBadge{}, err
	}
	b := chat.SevenTVBadge{ID: c.ID, Name: d.Name, Tooltip: d.Tooltip}
	for _, f := range d.Host.Files {
		if strings.HasPrefix(f.Name, "4x") {
			b.URL = "https:" + d.Host.URL + "/" + f.Name
			break
		}
	}
	if b.URL == "" {
		_, b.URL, _ = d.Host.Largest("webp")
	}
	return b, nil
}

// Paint decodes a PAINT cosmetic.
func (c CosmeticCreate) Paint() (chat.Paint, error) {
	var d PaintData
	if err := json.Unmarshal(c.Data, &d); err != nil {
		return chat.Paint{}, err
	}
	p := chat.Paint{
		ID:       c.ID,
		Name:     d.Name,
		Function: d.Function,
		Color:    d.Color,
		Angle:    d.Angle,
		Shape:    d.Shape,
		ImageURL: d.ImageURL,
		Repeat:   d.Repeat,
	}
	for _, s := range d.Stops {
		p.Stops = append(p.Stops, chat.PaintStop{At: s.At, Color: s.Color})
	}
	for _, s := range d.Shadows {
		p.Shadows = append(p.Shadows, chat.PaintShadow{X: s.XOffset, Y: s.YOffset, Radius: s.Radius, Color: s.Color})
	}
	return p, nil
}

// Entitlement is entitlement.create and entitlement.delete.
type Entitlement struct {
	ID    string `json:"id"`
	Kind  string `json:"kind"`
	RefID string `json:"ref_id"`
	User  User   `json:"user"`
}

// EntitlementCreate grants a cosmetic.
type EntitlementCreate struct{ Entitlement }

// EntitlementDelete revokes a cosmetic.
type EntitlementDelete struct{ Entitlement }

// EmoteSetCreate is emote_set.create.
type EmoteSetCreate struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
	Owner    User   `json:"owner"`
}

// ChangeField is one entry of a change map. Values stay raw because their
// shape depends on the object kind.
type ChangeField struct {
	Key      string          `json:"key"`
	Index    *int            `json:"index"`
	Nested   bool            `json:"nested"`
	OldValue json.RawMessage `json:"old_value"`
	Value    json.RawMessage `json:"value"`
}

// ChangeMap describes an object mutation.
type ChangeMap struct {
	ID      string        `json:"id"`
	Kind    int           `json:"kind"`
	Actor   User          `json:"actor"`
	Pushed  []ChangeField `json:"pushed"`
	Pulled  []ChangeField `json:"pulled"`
	Updated []ChangeField `json:"updated"`
}

// EmoteSetUpdate is emote_set.update.
type EmoteSetUpdate struct{ ChangeMap }

// EmoteChange is a decoded emote delta.
type EmoteChange struct {
	Old *ActiveEmote
	New *ActiveEmote
}

func decodeEmote(raw json.RawMessage) *ActiveEmote {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var e ActiveEmote
	if err := json.Unmarshal(raw, &e); err != nil || e.ID == "" {
		return nil
	}
	return &e
}

func emoteChanges(fields []ChangeField) []EmoteChange {
	out := make([]EmoteChange, 0, len(fields))
	for _, f := range fields {
		if f.Key != "emotes" {
			continue
		}
		out = append(out, EmoteChange{Old: decodeEmote(f.OldValue), New: decodeEmote(f.Value)})
	}
	return out
}

// PushedEmotes returns the added emotes in delta order.
func (u EmoteSetUpdate) PushedEmotes() []EmoteChange { return emoteChanges(u.Pushed) }

// PulledEmotes returns the removed emotes in delta order.
func (u EmoteSetUpdate) PulledEmotes() []EmoteChange { return emoteChanges(u.Pulled) }

// UpdatedEmotes returns the renamed emotes in delta order.
func (u EmoteSetUpdate) UpdatedEmotes() []EmoteChange { return emoteChanges(u.Updated) }

// UserUpdate is user.update.
type UserUpdate struct{ ChangeMap }

// EmoteSetRef is the emote set named by a connection change.
type EmoteSetRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// EmoteSetSwitch reports the connection's new emote set. changed is false
// when the update does not touch the emote set; ref is nil when the set was
// cleared.
func (u UserUpdate) EmoteSetSwitch() (ref *EmoteSetRef, changed bool) {
	for _, root := range u.Updated {
		if root.Key != "connections" {
			continue
		}
		var children []ChangeField
		if err := json.Unmarshal(root.Value, &children); err != nil {
			continue
		}
		for _, child := range children {
			if child.Key != "emote_set" {
				continue
			}
			if len(child.Value) == 0 || string(child.Value) == "null" {
				return nil, true
			}
			var r EmoteSetRef
			if err := json.Unmarshal(child.Value, &r); err != nil {
				continue
			}
			return &r, true
		}
	}
	return nil, false
}
