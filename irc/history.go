package irc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// History fetches recent raw IRC lines for a channel from a recent-messages
// service.
type History struct {
	BaseURL string
	Limit   int
	HTTP    *http.Client
}

// NewHistory returns a History with a 10s timeout.
func NewHistory(baseURL string, limit int) *History {
	return &History{BaseURL: baseURL, Limit: limit, HTTP: &http.Client{Timeout: 10 * time.Second}}
}

type historyResponse struct {
	Messages []string `json:"messages"`
	Error    string   `json:"error"`
}

// Fetch returns the channel's recent raw lines, oldest first.
func (h *History) Fetch(ctx context.Context, login string) ([]string, error) {
	u := fmt.Sprintf("%s/%s", h.BaseURL, url.PathEscape(login))
	if h.Limit > 0 {
		u += "?limit=" + strconv.Itoa(h.Limit)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("recent messages %s: %w", login, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var body historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("recent messages %s: decode: %w", login, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("recent messages %s: status %d: %s", login, resp.StatusCode, body.Error)
	}
	return body.Messages, nil
}
