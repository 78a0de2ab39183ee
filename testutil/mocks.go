package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// MockTwitchServer is an httptest server routing by path to Handlers. It
// stands in for Helix, the OAuth token endpoint, 7TV and recent-messages.
// Unknown paths answer 404.
type MockTwitchServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc

	mu       sync.Mutex
	requests []*http.Request
}

// NewMockTwitchServer creates a new mock server closed at test cleanup.
func NewMockTwitchServer(t *testing.T) *MockTwitchServer {
	t.Helper()
	m := &MockTwitchServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.requests = append(m.requests, r.Clone(r.Context()))
		m.mu.Unlock()
		key := r.URL.Path
		if handler, ok := m.Handlers[key]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// Requests returns the requests received so far.
func (m *MockTwitchServer) Requests() []*http.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*http.Request(nil), m.requests...)
}

// RequestCount counts received requests for a path.
func (m *MockTwitchServer) RequestCount(path string) int {
	n := 0
	for _, r := range m.Requests() {
		if r.URL.Path == path {
			n++
		}
	}
	return n
}

// JSON answers path with status and body encoded as JSON.
func (m *MockTwitchServer) JSON(path string, status int, body any) {
	m.Handlers[path] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body) //nolint:errcheck // test mock response
	}
}

// MockUserResponse adds a handler for /helix/users returning one user.
func (m *MockTwitchServer) MockUserResponse(userID, login, displayName string) {
	m.JSON("/helix/users", http.StatusOK, map[string]any{
		"data": []map[string]string{
			{"id": userID, "login": login, "display_name": displayName, "profile_image_url": "https://cdn.test/" + login + ".png"},
		},
	})
}

// MockStreamsResponse adds a handler for /helix/streams.
func (m *MockTwitchServer) MockStreamsResponse(streams []map[string]any) {
	m.JSON("/helix/streams", http.StatusOK, map[string]any{"data": streams})
}

// MockError answers path with a Helix-style error body.
func (m *MockTwitchServer) MockError(path string, status int, message string) {
	m.JSON(path, status, map[string]any{
		"error":   http.StatusText(status),
		"status":  status,
		"message": message,
	})
}

// MockOAuthTokenResponse adds a handler for the OAuth token endpoint.
func (m *MockTwitchServer) MockOAuthTokenResponse(accessToken string, expiresIn int) {
	m.JSON("/oauth2/token", http.StatusOK, map[string]any{
		"access_token": accessToken,
		"expires_in":   expiresIn,
		"token_type":   "bearer",
	})
}
