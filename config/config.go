// Package config loads environment variables into a typed Config.
// Defaults let the client start anonymously with nothing set except the Helix client id.
// Use ValidateChatReady before starting an authenticated session.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// DefaultChatlogStream is the Redis stream key used when CHATLOG_REDIS_STREAM is unset.
const DefaultChatlogStream = "chatline:messages"

type Config struct {
	// Twitch
	TwitchClientID     string
	TwitchClientSecret string
	TwitchUserToken    string
	TwitchLogin        string
	Channels           []string

	// Upstream endpoints
	HelixBaseURL      string
	OAuthTokenURL     string
	EventSubURL       string
	SevenTVSocketURL  string
	SevenTVAPIURL     string
	RecentMessagesURL string

	// Chat behaviour
	HistoryEnabled  bool
	HistoryLimit    int
	DuplicateBypass bool

	// Archive
	ChatlogDSN         string
	ChatlogRedisAddr   string
	ChatlogRedisStream string
	ChatlogBuffer      int

	// Diagnostics
	HTTPAddr     string
	OTLPEndpoint string
	// TraceSampleRatio is the share of root spans kept when tracing is on.
	TraceSampleRatio float64
}

// Anonymous reports whether the session runs without a user token.
func (c *Config) Anonymous() bool { return c.TwitchUserToken == "" }

// ChatlogEnabled reports whether any archive store is configured.
func (c *Config) ChatlogEnabled() bool { return c.ChatlogDSN != "" || c.ChatlogRedisAddr != "" }

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// Load reads environment variables and applies defaults. Every malformed value is
// reported in one joined error.
func Load() (*Config, error) {
	var errs []error

	boolEnv := func(key string, def bool) bool {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return def
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s %q: want true or false", key, v))
			return def
		}
		return b
	}
	intEnv := func(key string, def, min int) int {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return def
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < min {
			errs = append(errs, fmt.Errorf("invalid %s %q: want an integer >= %d", key, v, min))
			return def
		}
		return n
	}
	ratioEnv := func(key string, def float64) float64 {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return def
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			errs = append(errs, fmt.Errorf("invalid %s %q: want a ratio between 0 and 1", key, v))
			return def
		}
		return f
	}
	urlEnv := func(key, def string, schemes ...string) string {
		v := getenv(key, def)
		u, err := url.Parse(v)
		if err != nil || u.Host == "" {
			errs = append(errs, fmt.Errorf("invalid %s %q: want an absolute URL", key, v))
			return v
		}
		for _, s := range schemes {
			if u.Scheme == s {
				return v
			}
		}
		errs = append(errs, fmt.Errorf("invalid %s %q: scheme must be one of %s", key, v, strings.Join(schemes, ", ")))
		return v
	}

	cfg := &Config{
		TwitchClientID:     getenv("TWITCH_CLIENT_ID", ""),
		TwitchClientSecret: getenv("TWITCH_CLIENT_SECRET", ""),
		TwitchUserToken:    strings.TrimPrefix(getenv("TWITCH_USER_TOKEN", ""), "oauth:"),
		TwitchLogin:        strings.ToLower(getenv("TWITCH_LOGIN", "")),
		Channels:           splitChannels(os.Getenv("TWITCH_CHANNELS")),

		HelixBaseURL:      urlEnv("HELIX_BASE_URL", "https://api.twitch.tv/helix", "https", "http"),
		OAuthTokenURL:     urlEnv("TWITCH_OAUTH_TOKEN_URL", "https://id.twitch.tv/oauth2/token", "https", "http"),
		EventSubURL:       urlEnv("EVENTSUB_WS_URL", "wss://eventsub.wss.twitch.tv/ws", "wss", "ws"),
		SevenTVSocketURL:  urlEnv("SEVENTV_WS_URL", "wss://events.7tv.io/v3", "wss", "ws"),
		SevenTVAPIURL:     urlEnv("SEVENTV_API_URL", "https://7tv.io/v3", "https", "http"),
		RecentMessagesURL: urlEnv("RECENT_MESSAGES_URL", "https://recent-messages.robotty.de/api/v2/recent-messages", "https", "http"),

		HistoryEnabled:  boolEnv("HISTORY_ENABLED", true),
		HistoryLimit:    intEnv("HISTORY_LIMIT", 100, 1),
		DuplicateBypass: boolEnv("DUPLICATE_BYPASS", true),

		ChatlogDSN:         getenv("CHATLOG_DSN", ""),
		ChatlogRedisAddr:   getenv("CHATLOG_REDIS_ADDR", ""),
		ChatlogRedisStream: getenv("CHATLOG_REDIS_STREAM", DefaultChatlogStream),
		ChatlogBuffer:      intEnv("CHATLOG_BUFFER", 512, 1),

		HTTPAddr:         getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint:     getenv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		TraceSampleRatio: ratioEnv("TRACE_SAMPLE_RATIO", 1),
	}

	if cfg.TwitchClientID == "" {
		errs = append(errs, errors.New("missing TWITCH_CLIENT_ID"))
	}
	if dsn := cfg.ChatlogDSN; dsn != "" &&
		!strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") && !strings.HasPrefix(dsn, "sqlite://") {
		errs = append(errs, errors.New("invalid CHATLOG_DSN: want postgres://, postgresql:// or sqlite://"))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// splitChannels parses a comma separated channel list, dropping blanks, '#'
// prefixes and duplicates.
func splitChannels(v string) []string {
	var out []string
	seen := map[string]bool{}
	for _, part := range strings.Split(v, ",") {
		login := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(part), "#"))
		if login == "" || seen[login] {
			continue
		}
		seen[login] = true
		out = append(out, login)
	}
	return out
}

// ValidateChatReady checks the fields an authenticated session needs.
func (c *Config) ValidateChatReady() error {
	if c.TwitchLogin == "" || c.TwitchUserToken == "" {
		return fmt.Errorf("missing twitch env: require TWITCH_LOGIN and TWITCH_USER_TOKEN")
	}
	return nil
}
