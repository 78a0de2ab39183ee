package seventv

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/onnwee/chatline/chat"
	"github.com/onnwee/chatline/events"
	"github.com/onnwee/chatline/testutil"
)

const emoteSetUpdateBody = `{
	"id": "set-1",
	"kind": 5,
	"actor": {"id": "7tv-actor", "connections": [{"id": "99", "platform": "TWITCH", "username": "mod"}]},
	"pushed": [
		{"key": "emotes", "index": 3, "value": {"id": "e-new", "name": "Wave", "data": {"id": "e-new", "name": "Wave", "flags": 256,
			"host": {"url": "//cdn.7tv.app/emote/e-new", "files": [
				{"name": "1x.webp", "format": "WEBP", "width": 28, "height": 28},
				{"name": "4x.webp", "format": "WEBP", "width": 112, "height": 112}]}}}}
	],
	"pulled": [
		{"key": "emotes", "index": 1, "old_value": {"id": "e-old", "name": "Gone"}}
	],
	"updated": [
		{"key": "emotes", "index": 0, "old_value": {"id": "e-ren", "name": "Before"}, "value": {"id": "e-ren", "name": "After"}},
		{"key": "name", "old_value": "x", "value": "y"}
	]
}`

func TestDecodeEmoteSetUpdate(t *testing.T) {
	payload, err := Decode(TypeEmoteSetUpdate, json.RawMessage(emoteSetUpdateBody))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	u, ok := payload.(EmoteSetUpdate)
	if !ok {
		t.Fatalf("payload type %T", payload)
	}
	if u.ID != "set-1" {
		t.Errorf("id = %q", u.ID)
	}
	if p, ok := u.Actor.Profile(); !ok || p.ID != "99" || !p.Partial {
		t.Errorf("actor profile = %+v, %v", p, ok)
	}

	pushed := u.PushedEmotes()
	if len(pushed) != 1 || pushed[0].New == nil {
		t.Fatalf("pushed = %+v", pushed)
	}
	e := pushed[0].New.Emote()
	if e.Name != "Wave" || e.Provider != chat.Provider7TV || !e.ZeroWidth {
		t.Errorf("emote = %+v", e)
	}
	if e.URL != "https://cdn.7tv.app/emote/e-new/4x.webp" || e.Width != 28 {
		t.Errorf("emote image = %q %dx%d", e.URL, e.Width, e.Height)
	}

	pulled := u.PulledEmotes()
	if len(pulled) != 1 || pulled[0].Old == nil || pulled[0].Old.Name != "Gone" || pulled[0].New != nil {
		t.Errorf("pulled = %+v", pulled)
	}

	updated := u.UpdatedEmotes()
	if len(updated) != 1 {
		t.Fatalf("updated = %d entries, want 1 (non-emote keys skipped)", len(updated))
	}
	if updated[0].Old.Name != "Before" || updated[0].New.Name != "After" {
		t.Errorf("updated = %+v -> %+v", updated[0].Old, updated[0].New)
	}
}

func TestUserUpdateEmoteSetSwitch(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantID  string
		changed bool
	}{
		{
			name: "switch",
			body: `{"id":"u1","actor":{},"updated":[{"key":"connections","index":0,"nested":true,
				"value":[{"key":"emote_set","old_value":{"id":"a"},"value":{"id":"b","name":"Second"}}]}]}`,
			wantID:  "b",
			changed: true,
		},
		{
			name: "cleared",
			body: `{"id":"u1","actor":{},"updated":[{"key":"connections","index":0,"nested":true,
				"value":[{"key":"emote_set","old_value":{"id":"a"},"value":null}]}]}`,
			changed: true,
		},
		{
			name:    "unrelated",
			body:    `{"id":"u1","actor":{},"updated":[{"key":"display_name","old_value":"a","value":"b"}]}`,
			changed: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := Decode(TypeUserUpdate, json.RawMessage(tt.body))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			ref, changed := payload.(UserUpdate).EmoteSetSwitch()
			if changed != tt.changed {
				t.Fatalf("changed = %v, want %v", changed, tt.changed)
			}
			gotID := ""
			if ref != nil {
				gotID = ref.ID
			}
			if gotID != tt.wantID {
				t.Errorf("set id = %q, want %q", gotID, tt.wantID)
			}
		})
	}
}

func TestCosmeticCreate(t *testing.T) {
	badgeBody := `{"object":{"id":"b1","kind":"BADGE","data":{"name":"Subscriber","tooltip":"7TV Sub",
		"host":{"url":"//cdn.7tv.app/badge/b1","files":[{"name":"1x"},{"name":"4x"}]}}}}`
	payload, err := Decode(TypeCosmeticCreate, json.RawMessage(badgeBody))
	if err != nil {
		t.Fatalf("Decode badge: %v", err)
	}
	badge, err := payload.(CosmeticCreate).Badge()
	if err != nil {
		t.Fatalf("Badge: %v", err)
	}
	if badge.ID != "b1" || badge.Tooltip != "7TV Sub" || badge.URL != "https://cdn.7tv.app/badge/b1/4x" {
		t.Errorf("badge = %+v", badge)
	}

	paintBody := `{"object":{"id":"p1","kind":"PAINT","data":{"name":"Sunset","function":"LINEAR_GRADIENT","angle":90,
		"stops":[{"at":0,"color":-16776961},{"at":1,"color":255}],"shadows":[{"x_offset":1,"y_offset":2,"radius":3,"color":255}]}}}`
	payload, err = Decode(TypeCosmeticCreate, json.RawMessage(paintBody))
	if err != nil {
		t.Fatalf("Decode paint: %v", err)
	}
	paint, err := payload.(CosmeticCreate).Paint()
	if err != nil {
		t.Fatalf("Paint: %v", err)
	}
	if paint.ID != "p1" || paint.Angle != 90 || len(paint.Stops) != 2 || len(paint.Shadows) != 1 {
		t.Errorf("paint = %+v", paint)
	}
}

func TestToEvent(t *testing.T) {
	c := NewClient("", nil)
	d := `{"type":"entitlement.create","body":{"object":{"id":"x","kind":"PAINT","ref_id":"p1",
		"user":{"id":"7tv-1","connections":[{"id":"123","platform":"TWITCH","username":"viewer"}]}}}}`
	ev, ok := c.toEvent(json.RawMessage(d))
	if !ok {
		t.Fatal("entitlement dispatch dropped")
	}
	if ev.Source != events.SourceSevenTV || ev.Key != TypeEntitlementCreate {
		t.Errorf("event = %+v", ev)
	}
	ent, ok := ev.Payload.(EntitlementCreate)
	if !ok || ent.RefID != "p1" || ent.Kind != "PAINT" {
		t.Errorf("payload = %#v", ev.Payload)
	}

	if _, ok := c.toEvent(json.RawMessage(`{"type":"system.announcement","body":{}}`)); ok {
		t.Error("unknown dispatch type published")
	}
}

func TestAPIAccount(t *testing.T) {
	srv := testutil.NewMockTwitchServer(t)
	srv.JSON("/users/twitch/42", http.StatusOK, map[string]any{
		"id":           "42",
		"emote_set_id": "set-1",
		"emote_set":    map[string]any{"id": "set-1", "name": "Main"},
		"user":         map[string]any{"id": "7tv-42"},
	})
	api := NewAPI(srv.URL)

	acc, err := api.Account(context.Background(), "42")
	if err != nil {
		t.Fatalf("Account: %v", err)
	}
	if acc.UserID != "7tv-42" || acc.EmoteSetID != "set-1" || acc.EmoteSetName != "Main" {
		t.Errorf("account = %+v", acc)
	}

	_, err = api.Account(context.Background(), "404")
	if !errors.Is(err, chat.ErrNotFound) {
		t.Errorf("missing account err = %v, want ErrNotFound", err)
	}
}

func TestAPIEmoteSet(t *testing.T) {
	srv := testutil.NewMockTwitchServer(t)
	srv.JSON("/emote-sets/set-1", http.StatusOK, map[string]any{
		"id":   "set-1",
		"name": "Main",
		"emotes": []map[string]any{
			{"id": "e1", "name": "Alias", "data": map[string]any{"id": "e1", "name": "Original"}},
		},
		"owner": map[string]any{"id": "7tv-42"},
	})
	set, err := NewAPI(srv.URL).SevenTVEmoteSet(context.Background(), "set-1")
	if err != nil {
		t.Fatalf("SevenTVEmoteSet: %v", err)
	}
	if set.OwnerID != "7tv-42" || set.Len() != 1 {
		t.Fatalf("set = %s owner %s len %d", set.ID, set.OwnerID, set.Len())
	}
	if _, ok := set.Emote("Alias"); !ok {
		t.Error("emote not stored under its alias")
	}
}
