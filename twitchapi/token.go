package twitchapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// DefaultTokenURL is the Twitch OAuth token endpoint.
const DefaultTokenURL = "https://id.twitch.tv/oauth2/token"

// AppTokenSource fetches and caches a Twitch app access (client credentials)
// token. It is enough for identity and stream lookups in anonymous sessions;
// chat and moderation actions need a user token.
type AppTokenSource struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	HTTPClient   *http.Client

	now func() time.Time

	mu        sync.RWMutex
	token     string
	expiresAt time.Time
}

// tokenExpiryBuffer is how long before its expiry an app token is replaced.
const tokenExpiryBuffer = time.Minute

var _ oauth2.TokenSource = (*AppTokenSource)(nil)

// Get returns a valid (fresh or cached) app access token.
func (ts *AppTokenSource) Get(ctx context.Context) (string, error) {
	ts.mu.RLock()
	tok, ok := ts.cached()
	ts.mu.RUnlock()
	if ok {
		return tok, nil
	}
	return ts.refresh(ctx)
}

// cached returns the held token if it outlives the expiry buffer. Callers
// hold mu.
func (ts *AppTokenSource) cached() (string, bool) {
	if ts.token == "" {
		return "", false
	}
	return ts.token, ts.expiresAt.Sub(ts.clock()) > tokenExpiryBuffer
}

func (ts *AppTokenSource) clock() time.Time {
	if ts.now != nil {
		return ts.now()
	}
	return time.Now()
}

// Token implements oauth2.TokenSource.
func (ts *AppTokenSource) Token() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	tok, err := ts.Get(ctx)
	if err != nil {
		return nil, err
	}
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return &oauth2.Token{AccessToken: tok, TokenType: "Bearer", Expiry: ts.expiresAt}, nil
}

func (ts *AppTokenSource) refresh(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if tok, ok := ts.cached(); ok {
		return tok, nil
	}
	if ts.ClientID == "" || ts.ClientSecret == "" {
		return "", errors.New("missing client id/secret for twitch app token")
	}
	endpoint := ts.TokenURL
	if endpoint == "" {
		endpoint = DefaultTokenURL
	}
	form := url.Values{}
	form.Set("client_id", ts.ClientID)
	form.Set("client_secret", ts.ClientSecret)
	form.Set("grant_type", "client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	hc := ts.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("twitch token request failed: %s: %s", resp.Status, string(b))
	}
	var at struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
		TokenType   string `json:"token_type"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&at); err != nil {
		return "", err
	}
	if at.AccessToken == "" {
		return "", errors.New("empty access_token in twitch response")
	}
	ts.token = at.AccessToken
	ts.expiresAt = ts.clock().Add(time.Duration(at.ExpiresIn) * time.Second)
	return ts.token, nil
}

// UserTokenSource wraps a user access token. The token is not refreshed;
// Twitch rejects it once revoked or expired and the session must restart.
func UserTokenSource(token string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: strings.TrimPrefix(token, "oauth:"), TokenType: "Bearer"})
}
