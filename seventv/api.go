package seventv

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/onnwee/chatline/chat"
)

// DefaultAPIURL is the 7TV REST API root.
const DefaultAPIURL = "https://7tv.io/v3"

// API is a minimal 7TV REST client.
type API struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewAPI returns an API rooted at baseURL with a 10s timeout.
func NewAPI(baseURL string) *API {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	return &API{BaseURL: baseURL, HTTPClient: &http.Client{Timeout: 10 * time.Second}}
}

// StatusError is a non-2xx response.
type StatusError struct {
	Status int
	Path   string
}

func (e *StatusError) Error() string { return fmt.Sprintf("7tv %s: status %d", e.Path, e.Status) }

// Is matches chat.ErrNotFound for 404 responses.
func (e *StatusError) Is(target error) bool {
	return target == chat.ErrNotFound && e.Status == http.StatusNotFound
}

func (a *API) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.BaseURL+path, nil)
	if err != nil {
		return err
	}
	hc := a.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("7tv %s: %w", path, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Status: resp.StatusCode, Path: path}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("7tv %s: decode: %w", path, err)
	}
	return nil
}

// Account is a Twitch user's 7TV identity and active emote set.
type Account struct {
	UserID       string
	EmoteSetID   string
	EmoteSetName string
}

// Account looks up the 7TV account connected to a Twitch user id.
// Users without a 7TV account yield chat.ErrNotFound.
func (a *API) Account(ctx context.Context, twitchID string) (Account, error) {
	var body struct {
		EmoteSetID string `json:"emote_set_id"`
		EmoteSet   *struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"emote_set"`
		User struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	if err := a.get(ctx, "/users/twitch/"+url.PathEscape(twitchID), &body); err != nil {
		return Account{}, err
	}
	acc := Account{UserID: body.User.ID, EmoteSetID: body.EmoteSetID}
	if body.EmoteSet != nil {
		acc.EmoteSetID = body.EmoteSet.ID
		acc.EmoteSetName = body.EmoteSet.Name
	}
	return acc, nil
}

// SevenTVEmoteSet fetches an emote set by id.
func (a *API) SevenTVEmoteSet(ctx context.Context, setID string) (*chat.EmoteSet, error) {
	var body struct {
		ID     string        `json:"id"`
		Name   string        `json:"name"`
		Emotes []ActiveEmote `json:"emotes"`
		Owner  *struct {
			ID string `json:"id"`
		} `json:"owner"`
	}
	if err := a.get(ctx, "/emote-sets/"+url.PathEscape(setID), &body); err != nil {
		return nil, err
	}
	owner := ""
	if body.Owner != nil {
		owner = body.Owner.ID
	}
	set := chat.NewEmoteSet(body.ID, body.Name, owner)
	for _, e := range body.Emotes {
		set.Put(e.Emote())
	}
	return set, nil
}
