package twitchapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"
)

// DefaultValidateURL is the Twitch token validation endpoint.
const DefaultValidateURL = "https://id.twitch.tv/oauth2/validate"

// TokenInfo describes a validated user access token.
type TokenInfo struct {
	ClientID  string   `json:"client_id"`
	Login     string   `json:"login"`
	UserID    string   `json:"user_id"`
	Scopes    []string `json:"scopes"`
	ExpiresIn int      `json:"expires_in"`
}

// Expiry returns the absolute expiry time, defaulting to +60m when unknown.
func (ti *TokenInfo) Expiry() time.Time {
	if ti.ExpiresIn <= 0 {
		return time.Now().Add(60 * time.Minute)
	}
	return time.Now().Add(time.Duration(ti.ExpiresIn) * time.Second)
}

// MissingScopes returns the required scopes the token lacks.
func (ti *TokenInfo) MissingScopes(required ...string) []string {
	var out []string
	for _, s := range required {
		if !slices.Contains(ti.Scopes, s) {
			out = append(out, s)
		}
	}
	return out
}

// ChatScopes are needed to read and send chat.
var ChatScopes = []string{"chat:read", "chat:edit", "user:write:chat"}

// ValidateToken resolves the user behind token. An empty endpoint uses
// DefaultValidateURL.
func ValidateToken(ctx context.Context, hc *http.Client, endpoint, token string) (*TokenInfo, error) {
	if token == "" {
		return nil, errors.New("missing token")
	}
	if endpoint == "" {
		endpoint = DefaultValidateURL
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "OAuth "+strings.TrimPrefix(token, "oauth:"))
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("twitch token validation failed: %s: %s", resp.Status, string(b))
	}
	var info TokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, err
	}
	if info.UserID == "" {
		return nil, errors.New("token is not a user access token")
	}
	return &info, nil
}
