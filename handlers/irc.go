package handlers

import (
	"context"
	"log/slog"
	"strings"

	twitch "github.com/gempir/go-twitch-irc/v4"
	"github.com/samber/lo"

	"github.com/onnwee/chatline/chat"
	"github.com/onnwee/chatline/events"
	"github.com/onnwee/chatline/irc"
)

// IRC returns the chat-transport handlers.
func IRC() []events.Handler {
	return []events.Handler{
		events.ChannelHandler[twitch.PrivateMessage]{Name: irc.KeyPrivmsg, Handle: handlePrivmsg},
		events.ChannelHandler[twitch.UserNoticeMessage]{Name: irc.KeyUserNotice, Handle: handleUserNotice},
		events.ChannelHandler[twitch.UserStateMessage]{Name: irc.KeyUserState, Handle: handleUserState},
		events.ChannelHandler[twitch.ClearChatMessage]{Name: irc.KeyClearChat, Handle: handleClearChat},
		events.ChannelHandler[twitch.ClearMessage]{Name: irc.KeyClearMsg, Handle: handleClearMsg},
		events.ChannelHandler[twitch.NoticeMessage]{Name: irc.KeyNotice, Handle: handleNotice},
		events.ChannelHandler[twitch.RoomStateMessage]{Name: irc.KeyRoomState, Handle: handleRoomState},
		events.ChannelHandler[twitch.UserJoinMessage]{Name: irc.KeyJoin, Handle: handleJoin},
		events.ChannelHandler[twitch.UserPartMessage]{Name: irc.KeyPart, Handle: handlePart},
		events.GlobalHandler[twitch.WhisperMessage]{Name: irc.KeyWhisper, Handle: handleWhisper},
	}
}

func ircAuthor(sess *chat.Session, u twitch.User) *chat.User {
	return sess.Users.Upsert(chat.Profile{
		ID:          u.ID,
		Login:       u.Name,
		DisplayName: u.DisplayName,
		Color:       u.Color,
		Partial:     true,
	})
}

// applyBadgeRoles derives role flags from IRC badges and tags.
func applyBadgeRoles(v *chat.Viewer, badges map[string]int, tags map[string]string) {
	has := func(name string) bool { _, ok := badges[name]; return ok }
	v.UpdateRoles(func(r *chat.Roles) {
		r.Broadcaster = has("broadcaster")
		r.Moderator = r.Broadcaster || has("moderator") || tags["mod"] == "1"
		r.VIP = has("vip") || tags["vip"] == "1"
		r.Subscriber = has("subscriber") || has("founder") || tags["subscriber"] == "1"
		if val, ok := tags["returning-chatter"]; ok {
			r.Returning = val == "1"
		}
		if val, ok := tags["first-msg"]; ok {
			r.FirstTime = val == "1"
		}
	})
}

func ircEmotes(list []*twitch.Emote) []chat.EmoteRange {
	var out []chat.EmoteRange
	for _, e := range list {
		for _, p := range e.Positions {
			// IRC positions are inclusive
			out = append(out, chat.EmoteRange{ID: e.ID, Name: e.Name, Span: chat.Span{Start: p.Start, End: p.End + 1}})
		}
	}
	return out
}

func handlePrivmsg(ctx context.Context, d *events.Delivery, ch *chat.Channel, m twitch.PrivateMessage) error {
	author := ircAuthor(d.Session(), m.User)
	viewer := ch.Viewers.Ensure(author)
	applyBadgeRoles(viewer, m.User.Badges, m.Tags)

	h := d.Header(m.ID)
	if !m.Time.IsZero() {
		h.Timestamp = m.Time
	}
	msg := chat.NewUserMessage(h, m.Message, author)
	msg.Viewer = viewer
	msg.Badges = ch.ResolveBadges(m.User.Badges)
	msg.Bits = m.Bits
	msg.Action = m.Action
	msg.Highlighted = m.Tags["msg-id"] == "highlighted-message"
	msg.FirstMessage = m.Tags["first-msg"] == "1"
	msg.Emotes = ircEmotes(m.Emotes)
	msg.Lookup = ch
	if src := m.Tags["source-room-id"]; src != "" && src != m.RoomID {
		msg.SourceChannelID = src
	}
	if parent := m.Tags["reply-parent-msg-id"]; parent != "" {
		msg.Reply = &chat.Reply{
			ParentID:          parent,
			ParentUserID:      m.Tags["reply-parent-user-id"],
			ParentLogin:       m.Tags["reply-parent-user-login"],
			ParentDisplayName: m.Tags["reply-parent-display-name"],
			ParentText:        m.Tags["reply-parent-msg-body"],
		}
	}
	ch.Timeline.Add(msg)
	return nil
}

func handleUserNotice(ctx context.Context, d *events.Delivery, ch *chat.Channel, m twitch.UserNoticeMessage) error {
	author := ircAuthor(d.Session(), m.User)
	viewer := ch.Viewers.Ensure(author)
	applyBadgeRoles(viewer, m.User.Badges, m.Tags)

	h := d.Header(m.ID)
	if !m.Time.IsZero() {
		h.Timestamp = m.Time
	}
	msg := chat.NewUserMessage(h, m.Message, author)
	msg.Viewer = viewer
	msg.Badges = ch.ResolveBadges(m.User.Badges)
	msg.Highlighted = true
	msg.Notice = m.SystemMsg
	msg.Kind = m.MsgID
	msg.Emotes = ircEmotes(m.Emotes)
	msg.Lookup = ch
	ch.Timeline.Add(msg)
	return nil
}

func handleUserState(ctx context.Context, d *events.Delivery, ch *chat.Channel, m twitch.UserStateMessage) error {
	self, ok := d.Session().SelfViewer(ch)
	if !ok {
		return nil
	}
	applyBadgeRoles(self, m.User.Badges, m.Tags)
	return nil
}

func handleClearChat(ctx context.Context, d *events.Delivery, ch *chat.Channel, m twitch.ClearChatMessage) error {
	sess := d.Session()
	// moderators get the richer channel.moderate notification for live actions
	if !d.Event.Recent && sess.Moderating(ch) {
		return nil
	}

	if m.TargetUserID == "" {
		ch.Timeline.DeleteMessages("")
		d.AddSystem(ch, chat.Clear{})
		return nil
	}

	target, err := fetchViewer(ctx, ch, m.TargetUserID)
	if err != nil {
		return err
	}
	ch.Timeline.DeleteMessages(target.ID())

	switch {
	case m.BanDuration > 0:
		d.AddSystem(ch, chat.Timeout{Seconds: m.BanDuration, Viewer: target})
	case sess.IsSelf(target.ID()):
		d.AddSystem(ch, chat.Banned{Channel: ch.User.DisplayName()})
	default:
		d.AddSystem(ch, chat.BanStatus{Banned: true, Viewer: target})
	}
	return nil
}

func handleClearMsg(ctx context.Context, d *events.Delivery, ch *chat.Channel, m twitch.ClearMessage) error {
	id := m.Tags["target-msg-id"]
	msg, ok := ch.Timeline.UserMessage(id)
	if !ok {
		return nil
	}
	ch.Timeline.DeleteMessage(id)
	// Live deletions are otherwise silent; moderators get the notice too.
	if d.Event.Recent || d.Session().Moderating(ch) {
		d.AddSystem(ch, chat.Delete{Text: m.Message, Viewer: msg.Viewer})
	}
	return nil
}

// noticeIDs are the server notices surfaced in the timeline.
var noticeIDs = []string{
	"emote_only_on", "emote_only_off",
	"followers_on", "followers_on_zero", "followers_off",
	"r9k_on", "r9k_off",
	"slow_on", "slow_off",
	"subs_on", "subs_off",
}

func handleNotice(ctx context.Context, d *events.Delivery, ch *chat.Channel, m twitch.NoticeMessage) error {
	if !d.Event.Recent && d.Session().Moderating(ch) {
		return nil
	}
	if !lo.Contains(noticeIDs, m.MsgID) {
		return nil
	}
	text := strings.Replace(m.Message, "This room", "The chat", 1)
	text = strings.Replace(text, "s-only", "-only", 1)
	d.AddSystem(ch, chat.Text{Body: text})
	return nil
}

func handleRoomState(ctx context.Context, d *events.Delivery, ch *chat.Channel, m twitch.RoomStateMessage) error {
	if d.Event.Recent {
		return nil
	}
	ch.Mode.Apply(roomStatePatch(m.State))
	return nil
}

// roomStatePatch converts a ROOMSTATE tag set; absent tags stay nil.
func roomStatePatch(state map[string]int) chat.ModePatch {
	var p chat.ModePatch
	flag := func(key string) *bool {
		v, ok := state[key]
		if !ok {
			return nil
		}
		return chat.Bool(v > 0)
	}
	p.EmoteOnly = flag("emote-only")
	p.SubOnly = flag("subs-only")
	p.Unique = flag("r9k")
	if v, ok := state["followers-only"]; ok {
		if v < 0 {
			p.FollowerOnly = chat.Bool(false)
			p.FollowerAge = chat.Duration(0)
		} else {
			p.FollowerOnly = chat.Bool(true)
			p.FollowerAge = chat.Duration(minutes(v))
		}
	}
	if v, ok := state["slow"]; ok {
		p.Slow = chat.Duration(seconds(v))
	}
	return p
}

func handleJoin(ctx context.Context, d *events.Delivery, ch *chat.Channel, m twitch.UserJoinMessage) error {
	sess := d.Session()
	if isSelfLogin(sess, m.User) {
		ch.SetJoined(true)
		d.AddSystem(ch, chat.Join{Channel: ch.User.DisplayName()})
		return nil
	}
	if u, ok := sess.Users.ByLogin(m.User); ok {
		ch.Viewers.Ensure(u)
	}
	return nil
}

func handlePart(ctx context.Context, d *events.Delivery, ch *chat.Channel, m twitch.UserPartMessage) error {
	if isSelfLogin(d.Session(), m.User) {
		ch.SetJoined(false)
		slog.Info("left channel", slog.String("component", "handlers"), slog.String("channel", ch.Login()))
	}
	return nil
}

// isSelfLogin matches the authenticated login, or the anonymous justinfan
// login when no user is authenticated.
func isSelfLogin(sess *chat.Session, login string) bool {
	if self := sess.Self(); self != nil {
		return strings.EqualFold(self.Login(), login)
	}
	return strings.HasPrefix(login, "justinfan")
}

func handleWhisper(ctx context.Context, d *events.Delivery, self *chat.User, m twitch.WhisperMessage) error {
	sess := d.Session()
	from := ircAuthor(sess, m.User)
	sess.Whispers.Add(from.ID, chat.Whisper{
		ID:        m.MessageID,
		From:      from,
		Text:      m.Message,
		Timestamp: sess.Now(),
	})
	return nil
}
