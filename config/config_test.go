package config

import (
	"reflect"
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TWITCH_CLIENT_ID", "cid")
	for _, k := range []string{"TWITCH_USER_TOKEN", "TWITCH_LOGIN", "TWITCH_CHANNELS", "HISTORY_LIMIT", "HISTORY_ENABLED",
		"DUPLICATE_BYPASS", "CHATLOG_DSN", "CHATLOG_REDIS_ADDR", "CHATLOG_REDIS_STREAM", "CHATLOG_BUFFER",
		"HTTP_ADDR", "EVENTSUB_WS_URL", "HELIX_BASE_URL", "TRACE_SAMPLE_RATIO"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.Anonymous() {
		t.Error("expected anonymous session without a user token")
	}
	if cfg.HistoryLimit != 100 || !cfg.HistoryEnabled || !cfg.DuplicateBypass {
		t.Errorf("unexpected history/bypass defaults: %+v", cfg)
	}
	if cfg.HelixBaseURL != "https://api.twitch.tv/helix" || cfg.EventSubURL != "wss://eventsub.wss.twitch.tv/ws" {
		t.Errorf("unexpected endpoint defaults: %q %q", cfg.HelixBaseURL, cfg.EventSubURL)
	}
	if cfg.ChatlogEnabled() || cfg.ChatlogBuffer != 512 || cfg.ChatlogRedisStream != DefaultChatlogStream {
		t.Errorf("unexpected chatlog defaults: %+v", cfg)
	}
	if cfg.HTTPAddr != ":8080" || cfg.TraceSampleRatio != 1 {
		t.Errorf("HTTPAddr = %q TraceSampleRatio = %v", cfg.HTTPAddr, cfg.TraceSampleRatio)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TWITCH_CLIENT_ID", "cid")
	t.Setenv("TWITCH_USER_TOKEN", "oauth:abc")
	t.Setenv("TWITCH_LOGIN", "Bot")
	t.Setenv("TWITCH_CHANNELS", " #Forsen, xqc,,forsen ")
	t.Setenv("HISTORY_ENABLED", "false")
	t.Setenv("HISTORY_LIMIT", "250")
	t.Setenv("DUPLICATE_BYPASS", "0")
	t.Setenv("CHATLOG_DSN", "sqlite://chat.db")
	t.Setenv("TRACE_SAMPLE_RATIO", "0.25")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.TwitchUserToken != "abc" || cfg.TwitchLogin != "bot" {
		t.Errorf("token/login = %q %q", cfg.TwitchUserToken, cfg.TwitchLogin)
	}
	if want := []string{"forsen", "xqc"}; !reflect.DeepEqual(cfg.Channels, want) {
		t.Errorf("Channels = %v, want %v", cfg.Channels, want)
	}
	if cfg.HistoryEnabled || cfg.HistoryLimit != 250 || cfg.DuplicateBypass {
		t.Errorf("unexpected overrides: %+v", cfg)
	}
	if !cfg.ChatlogEnabled() {
		t.Error("chatlog should be enabled by CHATLOG_DSN")
	}
	if cfg.TraceSampleRatio != 0.25 {
		t.Errorf("TraceSampleRatio = %v", cfg.TraceSampleRatio)
	}
	if err := cfg.ValidateChatReady(); err != nil {
		t.Errorf("ValidateChatReady() = %v", err)
	}
}

func TestLoadAggregatesErrors(t *testing.T) {
	t.Setenv("TWITCH_CLIENT_ID", "")
	t.Setenv("HISTORY_LIMIT", "lots")
	t.Setenv("DUPLICATE_BYPASS", "maybe")
	t.Setenv("EVENTSUB_WS_URL", "https://example.com/ws")
	t.Setenv("CHATLOG_DSN", "mysql://db")
	t.Setenv("TRACE_SAMPLE_RATIO", "2")
	_, err := Load()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"TWITCH_CLIENT_ID", "HISTORY_LIMIT", "DUPLICATE_BYPASS", "EVENTSUB_WS_URL", "CHATLOG_DSN", "TRACE_SAMPLE_RATIO"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestValidateChatReady(t *testing.T) {
	t.Setenv("TWITCH_CLIENT_ID", "cid")
	t.Setenv("TWITCH_LOGIN", "bot")
	t.Setenv("TWITCH_USER_TOKEN", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if err := cfg.ValidateChatReady(); err == nil {
		t.Error("expected error without a user token")
	}
}
