package twitchapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/onnwee/chatline/chat"
	"github.com/onnwee/chatline/testutil"
)

func newTestClient(t *testing.T) (*Client, *testutil.MockTwitchServer) {
	t.Helper()
	srv := testutil.NewMockTwitchServer(t)
	c, err := New(Options{
		ClientID: "test-client-id",
		BaseURL:  srv.URL + "/helix",
		Tokens:   UserTokenSource("oauth:test-token"),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c, srv
}

func TestNew_RequiresCredentials(t *testing.T) {
	if _, err := New(Options{Tokens: UserTokenSource("x")}); err == nil {
		t.Error("New() without client id should fail")
	}
	if _, err := New(Options{ClientID: "id"}); err == nil {
		t.Error("New() without token source should fail")
	}
}

func TestClient_UserByLogin(t *testing.T) {
	c, srv := newTestClient(t)
	srv.MockUserResponse("12345", "testuser", "TestUser")

	p, err := c.UserByLogin(context.Background(), "TestUser")
	if err != nil {
		t.Fatalf("UserByLogin() error = %v", err)
	}
	if p.ID != "12345" || p.Login != "testuser" || p.DisplayName != "TestUser" || p.Partial {
		t.Errorf("profile = %+v", p)
	}

	reqs := srv.Requests()
	last := reqs[len(reqs)-1]
	if got := last.URL.Query().Get("login"); got != "testuser" {
		t.Errorf("login query = %q, want lowercased testuser", got)
	}
	if got := last.Header.Get("Client-Id"); got != "test-client-id" {
		t.Errorf("Client-Id = %q", got)
	}
	if got := last.Header.Get("Authorization"); got != "Bearer test-token" {
		t.Errorf("Authorization = %q", got)
	}
}

func TestClient_UserNotFound(t *testing.T) {
	tests := []struct {
		name  string
		setup func(srv *testutil.MockTwitchServer)
	}{
		{
			name: "empty data",
			setup: func(srv *testutil.MockTwitchServer) {
				srv.JSON("/helix/users", http.StatusOK, map[string]any{"data": []any{}})
			},
		},
		{
			name: "404 response",
			setup: func(srv *testutil.MockTwitchServer) {
				srv.MockError("/helix/users", http.StatusNotFound, "no such user")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, srv := newTestClient(t)
			tt.setup(srv)
			_, err := c.UserByID(context.Background(), "999")
			if !errors.Is(err, chat.ErrNotFound) {
				t.Errorf("err = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestClient_Stream(t *testing.T) {
	c, srv := newTestClient(t)
	srv.MockStreamsResponse(nil)

	s, err := c.Stream(context.Background(), "100")
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if s != nil {
		t.Errorf("offline Stream() = %+v, want nil", s)
	}

	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	srv.MockStreamsResponse([]map[string]any{{
		"id":           "s1",
		"user_id":      "100",
		"title":        "Speedruns",
		"game_name":    "Celeste",
		"viewer_count": 42,
		"started_at":   started.Format(time.RFC3339),
	}})
	s, err = c.Stream(context.Background(), "100")
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if s == nil || s.Title != "Speedruns" || s.Category != "Celeste" || s.ViewerCount != 42 || !s.StartedAt.Equal(started) {
		t.Errorf("Stream() = %+v", s)
	}
}

func TestClient_BanBody(t *testing.T) {
	c, srv := newTestClient(t)
	var got struct {
		Data struct {
			UserID   string `json:"user_id"`
			Duration int    `json:"duration"`
			Reason   string `json:"reason"`
		} `json:"data"`
	}
	srv.Handlers["/helix/moderation/bans"] = func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if q := r.URL.Query(); q.Get("broadcaster_id") != "100" || q.Get("moderator_id") != "1" {
			t.Errorf("query = %v", q)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"data":[]}`))
	}

	if err := c.Ban(context.Background(), "100", "1", "42", 10*time.Minute, "spam"); err != nil {
		t.Fatalf("Ban() error = %v", err)
	}
	if got.Data.UserID != "42" || got.Data.Duration != 600 || got.Data.Reason != "spam" {
		t.Errorf("body = %+v", got.Data)
	}
}

func TestClient_ActionError(t *testing.T) {
	c, srv := newTestClient(t)
	srv.MockError("/helix/moderation/bans", http.StatusBadRequest, "The user specified in the user_id field is already banned.")

	err := c.Ban(context.Background(), "100", "1", "42", 0, "")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %T %v, want *APIError", err, err)
	}
	if apiErr.Status != http.StatusBadRequest || !strings.Contains(apiErr.Message, "already banned") {
		t.Errorf("APIError = %+v", apiErr)
	}
	if errors.Is(err, chat.ErrNotFound) {
		t.Error("400 matched ErrNotFound")
	}
}

func TestClient_SendMessageDropped(t *testing.T) {
	c, srv := newTestClient(t)
	srv.JSON("/helix/chat/messages", http.StatusOK, map[string]any{
		"data": []map[string]any{{
			"message_id":  "",
			"is_sent":     false,
			"drop_reason": map[string]string{"code": "msg_duplicate", "message": "Your message is identical to the one you sent."},
		}},
	})

	res, err := c.SendMessage(context.Background(), "100", "1", "hello", "")
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if res.Sent || res.DropReason == "" {
		t.Errorf("result = %+v, want dropped with reason", res)
	}
}

func TestClient_Badges(t *testing.T) {
	c, srv := newTestClient(t)
	srv.JSON("/helix/chat/badges/global", http.StatusOK, map[string]any{
		"data": []map[string]any{{
			"set_id": "subscriber",
			"versions": []map[string]string{
				{"id": "0", "title": "Subscriber", "image_url_4x": "https://cdn.test/sub0.png"},
				{"id": "12", "title": "1-Year Subscriber", "image_url_4x": "https://cdn.test/sub12.png"},
			},
		}},
	})

	badges, err := c.GlobalBadges(context.Background())
	if err != nil {
		t.Fatalf("GlobalBadges() error = %v", err)
	}
	if len(badges) != 2 || badges[1].Set != "subscriber" || badges[1].Version != "12" || badges[1].ImageURL != "https://cdn.test/sub12.png" {
		t.Errorf("badges = %+v", badges)
	}
}
