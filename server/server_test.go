package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/onnwee/chatline/chat"
)

func newTestSession(t *testing.T) *chat.Session {
	t.Helper()
	sess := chat.NewSession(nil)
	ch := sess.EnsureChannel(sess.Users.Upsert(chat.Profile{ID: "100", Login: "streamer"}))
	ch.SetJoined(true)
	ch.SetStream(&chat.Stream{ID: "s1", Title: "speedruns"})
	ch.Mode.Apply(chat.ModePatch{EmoteOnly: chat.Bool(true), Slow: chat.Duration(30 * time.Second)})
	ch.Timeline.Add(chat.NewSystemMessage(chat.Header{ID: "a", Timestamp: time.Now()}, chat.Text{Body: "hi"}))
	sess.EnsureChannel(sess.Users.Upsert(chat.Profile{ID: "200", Login: "another"}))
	return sess
}

func TestHealthzOK(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()

	NewMux(NewHandlers(chat.NewSession(nil))).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%s", rr.Code, rr.Body.String())
	}
	if got := rr.Body.String(); got != "ok" {
		t.Fatalf("expected ok body, got %q", got)
	}
	if rr.Header().Get("X-Correlation-ID") == "" {
		t.Error("missing correlation id header")
	}
}

func TestReadyz(t *testing.T) {
	tests := []struct {
		name       string
		checks     []Check
		wantStatus int
		wantFailed string
	}{
		{name: "no checks", wantStatus: http.StatusOK},
		{
			name:       "all pass",
			checks:     []Check{{Name: "startup", Fn: func(context.Context) error { return nil }}},
			wantStatus: http.StatusOK,
		},
		{
			name: "first failure reported",
			checks: []Check{
				{Name: "startup", Fn: func(context.Context) error { return nil }},
				{Name: "chatlog", Fn: func(context.Context) error { return errors.New("db down") }},
				{Name: "never", Fn: func(context.Context) error { return errors.New("unreached") }},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantFailed: "chatlog",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			NewMux(NewHandlers(chat.NewSession(nil), tt.checks...)).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			var resp map[string]string
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if resp["failed_check"] != tt.wantFailed {
				t.Errorf("failed_check = %q, want %q", resp["failed_check"], tt.wantFailed)
			}
		})
	}
}

func TestChannels(t *testing.T) {
	rr := httptest.NewRecorder()
	NewMux(NewHandlers(newTestSession(t))).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/channels", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp struct {
		Channels []channelStatus `json:"channels"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Channels) != 2 || resp.Channels[0].Login != "another" {
		t.Fatalf("channels = %+v", resp.Channels)
	}
	got := resp.Channels[1]
	if !got.Joined || !got.Live || got.Title != "speedruns" || got.Messages != 1 {
		t.Errorf("streamer = %+v", got)
	}
	if !got.Mode.EmoteOnly || got.Mode.Slow != "30s" || got.Mode.FollowerOnly != nil {
		t.Errorf("mode = %+v", got.Mode)
	}
}

func TestChannelsRejectsPost(t *testing.T) {
	rr := httptest.NewRecorder()
	NewMux(NewHandlers(chat.NewSession(nil))).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/channels", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d", rr.Code)
	}
}

func TestServeAndShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- Serve(ctx, ln, NewHandlers(chat.NewSession(nil))) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("server returned error: %v", err)
	}
}
