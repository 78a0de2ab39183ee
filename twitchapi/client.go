// Package twitchapi wraps the Twitch Helix API: identity, stream and badge
// lookups, and the outbound chat and moderation actions.
package twitchapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nicklaw5/helix/v2"
	"golang.org/x/oauth2"

	"github.com/onnwee/chatline/chat"
	"github.com/onnwee/chatline/telemetry"
)

// DefaultBaseURL is the Helix API root.
const DefaultBaseURL = "https://api.twitch.tv/helix"

// APIError is a non-2xx Helix response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("helix: %d %s: %s", e.Status, http.StatusText(e.Status), e.Message)
}

// Is matches chat.ErrNotFound for 404 responses.
func (e *APIError) Is(target error) bool {
	return target == chat.ErrNotFound && e.Status == http.StatusNotFound
}

// Options configures a Client.
type Options struct {
	ClientID string
	BaseURL  string
	// Tokens supplies the bearer token: a user token for actions, or an app
	// token for read-only sessions.
	Tokens oauth2.TokenSource
	// Timeout bounds every request; zero means 15s.
	Timeout time.Duration
}

// Client calls Helix through nicklaw5/helix for typed endpoints and plain
// JSON requests for the rest. Both share one oauth2 HTTP client.
type Client struct {
	helix    *helix.Client
	http     *http.Client
	baseURL  string
	clientID string
}

// New builds a Client.
func New(opts Options) (*Client, error) {
	if opts.ClientID == "" {
		return nil, errors.New("twitchapi: missing client id")
	}
	if opts.Tokens == nil {
		return nil, errors.New("twitchapi: missing token source")
	}
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	hc := oauth2.NewClient(context.Background(), opts.Tokens)
	hc.Timeout = timeout

	hx, err := helix.NewClient(&helix.Options{
		ClientID:   opts.ClientID,
		APIBaseURL: base,
		HTTPClient: hc,
	})
	if err != nil {
		return nil, fmt.Errorf("twitchapi: helix client: %w", err)
	}
	return &Client{helix: hx, http: hc, baseURL: base, clientID: opts.ClientID}, nil
}

// Helix exposes the typed client, e.g. for EventSub subscription calls.
func (c *Client) Helix() *helix.Client { return c.helix }

// responseErr converts a helix response status into an *APIError.
func responseErr(rc helix.ResponseCommon) error {
	if rc.StatusCode >= 200 && rc.StatusCode < 300 {
		return nil
	}
	msg := rc.ErrorMessage
	if msg == "" {
		msg = rc.Error
	}
	return &APIError{Status: rc.StatusCode, Message: msg}
}

// do sends a JSON request to path under the base URL and decodes the response
// into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	return telemetry.TimeLookup(strings.TrimPrefix(path, "/"), func() error {
		return c.send(ctx, method, path, query, body, out)
	})
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Client-Id", c.clientID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode >= 300 {
		var e struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		b, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(b, &e) != nil || e.Message == "" {
			e.Message = strings.TrimSpace(string(b))
		}
		return &APIError{Status: resp.StatusCode, Message: e.Message}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode: %w", method, path, err)
	}
	return nil
}

func toProfile(u helix.User) chat.Profile {
	return chat.Profile{
		ID:          u.ID,
		Login:       u.Login,
		DisplayName: u.DisplayName,
		AvatarURL:   u.ProfileImageURL,
	}
}

func (c *Client) users(params *helix.UsersParams, key string) (chat.Profile, error) {
	var resp *helix.UsersResponse
	err := telemetry.TimeLookup("users", func() (err error) {
		resp, err = c.helix.GetUsers(params)
		return err
	})
	if err != nil {
		return chat.Profile{}, fmt.Errorf("get user %s: %w", key, err)
	}
	if err := responseErr(resp.ResponseCommon); err != nil {
		return chat.Profile{}, fmt.Errorf("get user %s: %w", key, err)
	}
	if len(resp.Data.Users) == 0 {
		return chat.Profile{}, fmt.Errorf("user %s: %w", key, chat.ErrNotFound)
	}
	return toProfile(resp.Data.Users[0]), nil
}

// UserByID implements chat.UserLookup.
func (c *Client) UserByID(ctx context.Context, id string) (chat.Profile, error) {
	return c.users(&helix.UsersParams{IDs: []string{id}}, id)
}

// UserByLogin implements chat.UserLookup.
func (c *Client) UserByLogin(ctx context.Context, login string) (chat.Profile, error) {
	return c.users(&helix.UsersParams{Logins: []string{strings.ToLower(login)}}, login)
}

// Stream returns the channel's live stream, or nil when offline.
func (c *Client) Stream(ctx context.Context, channelID string) (*chat.Stream, error) {
	resp, err := c.helix.GetStreams(&helix.StreamsParams{UserIDs: []string{channelID}})
	if err != nil {
		return nil, fmt.Errorf("get stream %s: %w", channelID, err)
	}
	if err := responseErr(resp.ResponseCommon); err != nil {
		return nil, fmt.Errorf("get stream %s: %w", channelID, err)
	}
	if len(resp.Data.Streams) == 0 {
		return nil, nil
	}
	s := resp.Data.Streams[0]
	return &chat.Stream{
		ID:          s.ID,
		Title:       s.Title,
		Category:    s.GameName,
		ViewerCount: s.ViewerCount,
		StartedAt:   s.StartedAt,
	}, nil
}

// Moderators lists the channel's moderators.
func (c *Client) Moderators(ctx context.Context, broadcasterID string) ([]chat.Profile, error) {
	var out []chat.Profile
	cursor := ""
	for {
		resp, err := c.helix.GetModerators(&helix.GetModeratorsParams{BroadcasterID: broadcasterID, After: cursor, First: 100})
		if err != nil {
			return nil, fmt.Errorf("get moderators: %w", err)
		}
		if err := responseErr(resp.ResponseCommon); err != nil {
			return nil, fmt.Errorf("get moderators: %w", err)
		}
		for _, m := range resp.Data.Moderators {
			out = append(out, chat.Profile{ID: m.UserID, Login: m.UserLogin, DisplayName: m.UserName, Partial: true})
		}
		cursor = resp.Data.Pagination.Cursor
		if cursor == "" {
			return out, nil
		}
	}
}

// VIPs lists the channel's VIPs.
func (c *Client) VIPs(ctx context.Context, broadcasterID string) ([]chat.Profile, error) {
	var out []chat.Profile
	cursor := ""
	for {
		resp, err := c.helix.GetChannelVips(&helix.GetChannelVipsParams{BroadcasterID: broadcasterID, After: cursor, First: 100})
		if err != nil {
			return nil, fmt.Errorf("get vips: %w", err)
		}
		if err := responseErr(resp.ResponseCommon); err != nil {
			return nil, fmt.Errorf("get vips: %w", err)
		}
		for _, v := range resp.Data.ChannelsVips {
			out = append(out, chat.Profile{ID: v.UserID, Login: v.UserLogin, DisplayName: v.UserName, Partial: true})
		}
		cursor = resp.Data.Pagination.Cursor
		if cursor == "" {
			return out, nil
		}
	}
}

type badgeSetsResponse struct {
	Data []struct {
		SetID    string `json:"set_id"`
		Versions []struct {
			ID         string `json:"id"`
			Title      string `json:"title"`
			ImageURL4x string `json:"image_url_4x"`
		} `json:"versions"`
	} `json:"data"`
}

func (r badgeSetsResponse) badges() []chat.Badge {
	var out []chat.Badge
	for _, set := range r.Data {
		for _, v := range set.Versions {
			out = append(out, chat.Badge{Set: set.SetID, Version: v.ID, Title: v.Title, ImageURL: v.ImageURL4x})
		}
	}
	return out
}

// ChannelBadges returns the channel's custom badges.
func (c *Client) ChannelBadges(ctx context.Context, broadcasterID string) ([]chat.Badge, error) {
	var body badgeSetsResponse
	if err := c.do(ctx, http.MethodGet, "/chat/badges", url.Values{"broadcaster_id": {broadcasterID}}, nil, &body); err != nil {
		return nil, fmt.Errorf("channel badges: %w", err)
	}
	return body.badges(), nil
}

// GlobalBadges returns the platform-wide badges.
func (c *Client) GlobalBadges(ctx context.Context) ([]chat.Badge, error) {
	var body badgeSetsResponse
	if err := c.do(ctx, http.MethodGet, "/chat/badges/global", nil, nil, &body); err != nil {
		return nil, fmt.Errorf("global badges: %w", err)
	}
	return body.badges(), nil
}
