package server

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/onnwee/chatline/chat"
)

// HandleHealthz answers liveness checks. The process answering is enough.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz runs the readiness checks and reports the first failure.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	for _, check := range h.checks {
		if err := check.Fn(r.Context()); err != nil {
			// Set headers before writing status code
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"status":       "not_ready",
				"failed_check": check.Name,
				"error":        err.Error(),
			})
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

type channelStatus struct {
	ID       string     `json:"id"`
	Login    string     `json:"login"`
	Joined   bool       `json:"joined"`
	Live     bool       `json:"live"`
	Title    string     `json:"title,omitempty"`
	Messages int        `json:"messages"`
	Viewers  int        `json:"viewers"`
	Emotes   int        `json:"emotes"`
	Badges   int        `json:"badges"`
	Mode     modeStatus `json:"mode"`
}

type modeStatus struct {
	EmoteOnly    bool    `json:"emote_only"`
	SubOnly      bool    `json:"subscriber_only"`
	Unique       bool    `json:"unique"`
	Shield       bool    `json:"shield"`
	FollowerOnly *string `json:"follower_only,omitempty"`
	Slow         string  `json:"slow,omitempty"`
}

func statusOf(ch *chat.Channel) channelStatus {
	m := ch.Mode.Current()
	st := channelStatus{
		ID:       ch.ID,
		Login:    ch.Login(),
		Joined:   ch.Joined(),
		Messages: ch.Timeline.Len(),
		Viewers:  ch.Viewers.Len(),
		Emotes:   ch.Emotes.Len(),
		Badges:   ch.Badges.Len(),
		Mode: modeStatus{
			EmoteOnly: m.EmoteOnly,
			SubOnly:   m.SubOnly,
			Unique:    m.Unique,
			Shield:    m.Shield,
		},
	}
	if m.FollowerOnly {
		age := m.FollowerAge.String()
		st.Mode.FollowerOnly = &age
	}
	if m.Slow > 0 {
		st.Mode.Slow = m.Slow.Round(time.Second).String()
	}
	if s := ch.Stream(); s != nil {
		st.Live = true
		st.Title = s.Title
	}
	return st
}

// HandleChannels lists every registered channel sorted by login.
func (h *Handlers) HandleChannels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	channels := h.session.Channels.All()
	out := make([]channelStatus, 0, len(channels))
	for _, ch := range channels {
		out = append(out, statusOf(ch))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Login < out[j].Login })
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"channels": out})
}
