package irc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	twitch "github.com/gempir/go-twitch-irc/v4"
)

const (
	privmsgLine   = "@badge-info=;badges=moderator/1;color=#FF0000;display-name=Bob;emotes=25:0-4;id=abc-1;room-id=100;tmi-sent-ts=1700000000000;user-id=123 :bob!bob@bob.tmi.twitch.tv PRIVMSG #streamer :Kappa hello"
	clearchatLine = "@room-id=100;tmi-sent-ts=1700000000000 :tmi.twitch.tv CLEARCHAT #streamer"
	pingLine      = "PING :tmi.twitch.tv"
)

func TestToEvent(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		recent    bool
		wantOK    bool
		wantKey   string
		wantID    bool
		wantLogin string
	}{
		{"privmsg", privmsgLine, false, true, KeyPrivmsg, true, "streamer"},
		{"live clearchat has no id", clearchatLine, false, true, KeyClearChat, false, "streamer"},
		{"backfilled clearchat gets a stable id", clearchatLine, true, true, KeyClearChat, true, "streamer"},
		{"ping is not routed", pingLine, false, false, "", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := ToEvent(twitch.ParseMessage(tt.line), tt.recent)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if ev.Key != tt.wantKey || ev.ChannelLogin != tt.wantLogin || ev.Recent != tt.recent {
				t.Errorf("event = %+v", ev)
			}
			if (ev.ID != "") != tt.wantID {
				t.Errorf("ID = %q, wantID %v", ev.ID, tt.wantID)
			}
		})
	}

	a, _ := ToEvent(twitch.ParseMessage(clearchatLine), true)
	b, _ := ToEvent(twitch.ParseMessage(clearchatLine), true)
	if a.ID != b.ID {
		t.Error("the same backfilled line must map to the same id")
	}
}

func TestToEvent_PrivmsgPayload(t *testing.T) {
	ev, _ := ToEvent(twitch.ParseMessage(privmsgLine), false)
	msg, ok := ev.Payload.(twitch.PrivateMessage)
	if !ok {
		t.Fatalf("payload type %T", ev.Payload)
	}
	if msg.User.ID != "123" || msg.ID != "abc-1" || ev.ChannelID != "100" {
		t.Errorf("payload = %+v", msg)
	}
}

func TestHistory_Fetch(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    historyResponse
		want    int
		wantErr bool
	}{
		{"ok", http.StatusOK, historyResponse{Messages: []string{privmsgLine, clearchatLine}}, 2, false},
		{"channel not found", http.StatusNotFound, historyResponse{Error: "channel not found"}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/streamer" || r.URL.Query().Get("limit") != "50" {
					t.Errorf("unexpected request %s", r.URL)
				}
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(tt.body)
			}))
			defer server.Close()

			lines, err := NewHistory(server.URL, 50).Fetch(context.Background(), "streamer")
			if (err != nil) != tt.wantErr {
				t.Fatalf("Fetch() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(lines) != tt.want {
				t.Errorf("lines = %d, want %d", len(lines), tt.want)
			}
		})
	}
}
