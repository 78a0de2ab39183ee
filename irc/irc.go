// Package irc adapts the Twitch IRC chat transport to router events.
package irc

import (
	"strings"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/onnwee/chatline/events"
)

// Event keys. Payloads are the go-twitch-irc message values.
const (
	KeyPrivmsg    = "privmsg"
	KeyUserNotice = "usernotice"
	KeyUserState  = "userstate"
	KeyClearChat  = "clearchat"
	KeyClearMsg   = "clearmsg"
	KeyNotice     = "notice"
	KeyRoomState  = "roomstate"
	KeyJoin       = "join"
	KeyPart       = "part"
	KeyWhisper    = "whisper"
)

// ToEvent converts a parsed IRC message into a router event. Messages the
// router has no key for report false.
func ToEvent(msg twitch.Message, recent bool) (events.Event, bool) {
	ev := events.Event{Source: events.SourceIRC, Recent: recent}
	switch m := msg.(type) {
	case *twitch.PrivateMessage:
		ev.Key, ev.ID, ev.ChannelID, ev.ChannelLogin, ev.Payload = KeyPrivmsg, m.ID, m.RoomID, m.Channel, *m
	case *twitch.UserNoticeMessage:
		ev.Key, ev.ID, ev.ChannelID, ev.ChannelLogin, ev.Payload = KeyUserNotice, m.ID, m.RoomID, m.Channel, *m
	case *twitch.UserStateMessage:
		ev.Key, ev.ChannelLogin, ev.Payload = KeyUserState, m.Channel, *m
	case *twitch.ClearChatMessage:
		ev.Key, ev.ID, ev.ChannelID, ev.ChannelLogin, ev.Payload = KeyClearChat, rawID(recent, m.Raw), m.RoomID, m.Channel, *m
	case *twitch.ClearMessage:
		ev.Key, ev.ID, ev.ChannelLogin, ev.Payload = KeyClearMsg, m.Tags["target-msg-id"], m.Channel, *m
	case *twitch.NoticeMessage:
		ev.Key, ev.ID, ev.ChannelLogin, ev.Payload = KeyNotice, rawID(recent, m.Raw), m.Channel, *m
	case *twitch.RoomStateMessage:
		ev.Key, ev.ChannelID, ev.ChannelLogin, ev.Payload = KeyRoomState, m.RoomID, m.Channel, *m
	case *twitch.UserJoinMessage:
		ev.Key, ev.ChannelLogin, ev.Payload = KeyJoin, m.Channel, *m
	case *twitch.UserPartMessage:
		ev.Key, ev.ChannelLogin, ev.Payload = KeyPart, m.Channel, *m
	case *twitch.WhisperMessage:
		ev.Key, ev.ID, ev.Payload = KeyWhisper, m.MessageID, *m
	default:
		return events.Event{}, false
	}
	ev.ChannelLogin = normalizeChannel(ev.ChannelLogin)
	return ev, true
}

// rawID gives backfilled lines without an id tag a stable dedupe key, so a
// repeated backfill does not repeat its system messages.
func rawID(recent bool, raw string) string {
	if !recent || raw == "" {
		return ""
	}
	return events.DerivedID("irc-raw", raw)
}

func normalizeChannel(ch string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ch), "#"))
}
