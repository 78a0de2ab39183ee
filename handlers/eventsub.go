package handlers

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/samber/lo"

	"github.com/onnwee/chatline/chat"
	"github.com/onnwee/chatline/events"
	"github.com/onnwee/chatline/eventsub"
)

// EventSub returns the platform-notification handlers.
func EventSub() []events.Handler {
	return []events.Handler{
		events.ChannelHandler[eventsub.ChannelModerate]{Name: eventsub.TypeChannelModerate, Handle: handleModerate},
		events.ChannelHandler[eventsub.SuspiciousUserUpdate]{Name: eventsub.TypeSuspiciousUserUpdate, Handle: handleSuspiciousUpdate},
		events.ChannelHandler[eventsub.SuspiciousUserMessage]{Name: eventsub.TypeSuspiciousUserMessage, Handle: handleSuspiciousMessage},
		events.ChannelHandler[eventsub.UnbanRequestCreate]{Name: eventsub.TypeUnbanRequestCreate, Handle: handleUnbanRequestCreate},
		events.ChannelHandler[eventsub.UnbanRequestResolve]{Name: eventsub.TypeUnbanRequestResolve, Handle: handleUnbanRequestResolve},
		events.ChannelHandler[eventsub.WarningAcknowledge]{Name: eventsub.TypeWarningAcknowledge, Handle: handleWarningAck},
		events.ChannelHandler[eventsub.ChatUserMessageHold]{Name: eventsub.TypeChatUserMessageHold, Handle: handleUserMessageHold},
		events.ChannelHandler[eventsub.ChatUserMessageUpdate]{Name: eventsub.TypeChatUserMessageUpdate, Handle: handleUserMessageUpdate},
		events.ChannelHandler[eventsub.AutomodMessageHold]{Name: eventsub.TypeAutomodMessageHold, Handle: handleAutomodHold},
		events.ChannelHandler[eventsub.AutomodMessageUpdate]{Name: eventsub.TypeAutomodMessageUpdate, Handle: handleAutomodUpdate},
		events.ChannelHandler[eventsub.StreamOnline]{Name: eventsub.TypeStreamOnline, Handle: handleStreamOnline},
		events.ChannelHandler[eventsub.StreamOffline]{Name: eventsub.TypeStreamOffline, Handle: handleStreamOffline},
		events.ChannelHandler[eventsub.ShieldModeBegin]{Name: eventsub.TypeShieldModeBegin, Handle: handleShieldBegin},
		events.ChannelHandler[eventsub.ShieldModeEnd]{Name: eventsub.TypeShieldModeEnd, Handle: handleShieldEnd},
		events.GlobalHandler[eventsub.ChannelUpdate]{Name: eventsub.TypeChannelUpdate, Handle: handleChannelUpdate},
		events.GlobalHandler[eventsub.SubscriptionEnd]{Name: eventsub.TypeSubscriptionEnd, Handle: handleSubscriptionEnd},
	}
}

// moderateMode maps on/off action pairs to the setting they toggle.
var moderateMode = map[string]chat.ModeSetting{
	"emoteonly":      chat.ModeEmoteOnly,
	"emoteonlyoff":   chat.ModeEmoteOnly,
	"subscribers":    chat.ModeSubscriberOnly,
	"subscribersoff": chat.ModeSubscriberOnly,
	"uniquechat":     chat.ModeUnique,
	"uniquechatoff":  chat.ModeUnique,
}

func handleModerate(ctx context.Context, d *events.Delivery, ch *chat.Channel, m eventsub.ChannelModerate) error {
	// shared-chat actions taken in a partner room
	if m.SourceBroadcasterUserID != "" && m.SourceBroadcasterUserID != m.BroadcasterUserID {
		return nil
	}

	moderator, err := fetchViewer(ctx, ch, m.ModeratorUserID)
	if err != nil {
		return err
	}
	c, err := moderateContext(ctx, d, ch, m, moderator)
	if err != nil || c == nil {
		return err
	}
	d.AddSystem(ch, c)
	return nil
}

// moderateContext applies the action's state effect and returns the context
// for its system message, or nil for actions that are not shown.
func moderateContext(ctx context.Context, d *events.Delivery, ch *chat.Channel, m eventsub.ChannelModerate, moderator *chat.Viewer) (chat.Context, error) {
	target := func(ref *eventsub.UserRef) (*chat.Viewer, error) {
		if ref == nil {
			return nil, fmt.Errorf("%s: missing target", m.Action)
		}
		return requireViewer(ctx, ch, ref.UserID, m.Action)
	}

	switch m.Action {
	case "emoteonly", "emoteonlyoff", "subscribers", "subscribersoff", "uniquechat", "uniquechatoff":
		mode := moderateMode[m.Action]
		on := !strings.HasSuffix(m.Action, "off")
		var p chat.ModePatch
		switch mode {
		case chat.ModeEmoteOnly:
			p.EmoteOnly = chat.Bool(on)
		case chat.ModeSubscriberOnly:
			p.SubOnly = chat.Bool(on)
		case chat.ModeUnique:
			p.Unique = chat.Bool(on)
		}
		ch.Mode.Apply(p)
		return chat.ModeChange{Mode: mode, Enabled: on, Moderator: moderator}, nil

	case "followers":
		mins := 0
		if m.Followers != nil {
			mins = m.Followers.FollowDurationMinutes
		}
		ch.Mode.Apply(chat.ModePatch{FollowerOnly: chat.Bool(true), FollowerAge: chat.Duration(minutes(mins))})
		return chat.ModeChange{Mode: chat.ModeFollowerOnly, Enabled: true, Seconds: mins * 60, Moderator: moderator}, nil

	case "followersoff":
		ch.Mode.Apply(chat.ModePatch{FollowerOnly: chat.Bool(false), FollowerAge: chat.Duration(0)})
		return chat.ModeChange{Mode: chat.ModeFollowerOnly, Moderator: moderator}, nil

	case "slow":
		secs := 0
		if m.Slow != nil {
			secs = m.Slow.WaitTimeSeconds
		}
		ch.Mode.Apply(chat.ModePatch{Slow: chat.Duration(seconds(secs))})
		return chat.ModeChange{Mode: chat.ModeSlow, Enabled: true, Seconds: secs, Moderator: moderator}, nil

	case "slowoff":
		ch.Mode.Apply(chat.ModePatch{Slow: chat.Duration(0)})
		return chat.ModeChange{Mode: chat.ModeSlow, Moderator: moderator}, nil

	case "clear":
		ch.Timeline.DeleteMessages("")
		return chat.Clear{Moderator: moderator}, nil

	case "delete":
		if m.Delete == nil {
			return nil, fmt.Errorf("delete: missing target")
		}
		v, err := target(&m.Delete.UserRef)
		if err != nil {
			return nil, err
		}
		ch.Timeline.DeleteMessage(m.Delete.MessageID)
		return chat.Delete{Text: m.Delete.MessageBody, Viewer: v, Moderator: moderator}, nil

	case string(chat.TermAddBlocked), string(chat.TermAddPermitted), string(chat.TermRemoveBlocked), string(chat.TermRemovePermitted):
		var terms []string
		if m.AutomodTerms != nil {
			terms = m.AutomodTerms.Terms
		}
		return chat.Term{Action: chat.TermAction(m.Action), Terms: terms, Moderator: moderator}, nil

	case "warn":
		if m.Warn == nil {
			return nil, fmt.Errorf("warn: missing target")
		}
		v, err := target(&m.Warn.UserRef)
		if err != nil {
			return nil, err
		}
		return chat.Warn{Reason: m.Warn.Reason, Viewer: v, Moderator: moderator}, nil

	case "timeout":
		if m.Timeout == nil {
			return nil, fmt.Errorf("timeout: missing target")
		}
		v, err := target(&m.Timeout.UserRef)
		if err != nil {
			return nil, err
		}
		ch.Timeline.DeleteMessages(v.ID())
		secs := int(math.Ceil(m.Timeout.ExpiresAt.Sub(d.Session().Now()).Seconds()))
		return chat.Timeout{Seconds: secs, Reason: m.Timeout.Reason, Viewer: v, Moderator: moderator}, nil

	case "untimeout":
		v, err := target(m.Untimeout)
		if err != nil {
			return nil, err
		}
		return chat.Untimeout{Viewer: v, Moderator: moderator}, nil

	case "ban":
		if m.Ban == nil {
			return nil, fmt.Errorf("ban: missing target")
		}
		v, err := target(&m.Ban.UserRef)
		if err != nil {
			return nil, err
		}
		ch.Timeline.DeleteMessages(v.ID())
		return chat.BanStatus{Banned: true, Reason: m.Ban.Reason, Viewer: v, Moderator: moderator}, nil

	case "unban":
		v, err := target(m.Unban)
		if err != nil {
			return nil, err
		}
		return chat.BanStatus{Banned: false, Viewer: v, Moderator: moderator}, nil

	case "mod", "unmod", "vip", "unvip":
		added := !strings.HasPrefix(m.Action, "un")
		role := chat.RoleModerator
		ref := lo.Ternary(added, m.Mod, m.Unmod)
		if strings.HasSuffix(m.Action, "vip") {
			role = chat.RoleVIP
			ref = lo.Ternary(added, m.Vip, m.Unvip)
		}
		v, err := target(ref)
		if err != nil {
			return nil, err
		}
		v.UpdateRoles(func(r *chat.Roles) {
			if role == chat.RoleVIP {
				r.VIP = added
			} else {
				r.Moderator = added
			}
		})
		return chat.RoleStatus{Role: role, Added: added, Viewer: v, Broadcaster: moderator}, nil

	case "raid":
		if m.Raid == nil {
			return nil, fmt.Errorf("raid: missing target")
		}
		v, err := target(&m.Raid.UserRef)
		if err != nil {
			return nil, err
		}
		return chat.Raid{Target: v.User, ViewerCount: m.Raid.ViewerCount, Moderator: moderator}, nil

	case "unraid":
		v, err := target(m.Unraid)
		if err != nil {
			return nil, err
		}
		return chat.Unraid{Target: v.User, Moderator: moderator}, nil

	case "approve_unban_request", "deny_unban_request":
		if m.UnbanRequest == nil {
			return nil, fmt.Errorf("%s: missing target", m.Action)
		}
		v, err := target(&m.UnbanRequest.UserRef)
		if err != nil {
			return nil, err
		}
		status := lo.Ternary(m.UnbanRequest.IsApproved, "approved", "denied")
		return chat.UnbanRequest{Status: status, Text: m.UnbanRequest.ModeratorMessage, Viewer: v, Moderator: moderator}, nil
	}
	return nil, nil
}

func handleSuspiciousUpdate(ctx context.Context, d *events.Delivery, ch *chat.Channel, m eventsub.SuspiciousUserUpdate) error {
	viewer, err := requireViewer(ctx, ch, m.UserID, eventsub.TypeSuspiciousUserUpdate)
	if err != nil {
		return err
	}
	moderator, err := fetchViewer(ctx, ch, m.ModeratorUserID)
	if err != nil {
		return err
	}

	status := chat.TrustStatus(m.LowTrustStatus)
	previous := viewer.Trust()
	// without a previous treatment there is nothing to report
	if previous == chat.TrustNone && status == chat.TrustNone {
		return nil
	}
	d.AddSystem(ch, chat.SuspicionStatus{Status: status, Previous: previous, Viewer: viewer, Moderator: moderator})
	viewer.SetTrust(status)
	return nil
}

func handleSuspiciousMessage(ctx context.Context, d *events.Delivery, ch *chat.Channel, m eventsub.SuspiciousUserMessage) error {
	msg := notificationMessage(d, ch, m.Message.MessageID, m.UserRef, m.Message)
	msg.Viewer.SetTrust(chat.TrustStatus(m.LowTrustStatus))
	msg.Viewer.SetBanEvasion(chat.ParseBanEvasion(m.BanEvasionEvaluation))
	ch.Timeline.Add(msg)
	return nil
}

func handleUnbanRequestCreate(ctx context.Context, d *events.Delivery, ch *chat.Channel, m eventsub.UnbanRequestCreate) error {
	viewer, err := requireViewer(ctx, ch, m.UserID, "unban request")
	if err != nil {
		return err
	}
	d.AddSystem(ch, chat.UnbanRequest{Status: "created", Text: m.Text, Viewer: viewer})
	return nil
}

func handleUnbanRequestResolve(ctx context.Context, d *events.Delivery, ch *chat.Channel, m eventsub.UnbanRequestResolve) error {
	viewer, err := requireViewer(ctx, ch, m.UserID, "unban request")
	if err != nil {
		return err
	}
	moderator, err := fetchViewer(ctx, ch, m.ModeratorUserID)
	if err != nil {
		return err
	}
	d.AddSystem(ch, chat.UnbanRequest{Status: m.Status, Text: m.ResolutionText, Viewer: viewer, Moderator: moderator})
	return nil
}

func handleWarningAck(ctx context.Context, d *events.Delivery, ch *chat.Channel, m eventsub.WarningAcknowledge) error {
	viewer, err := requireViewer(ctx, ch, m.UserID, "warning acknowledge")
	if err != nil {
		return err
	}
	d.AddSystem(ch, chat.WarnAck{Viewer: viewer})
	return nil
}

func handleUserMessageHold(ctx context.Context, d *events.Delivery, ch *chat.Channel, m eventsub.ChatUserMessageHold) error {
	msg := notificationMessage(d, ch, m.MessageID, m.UserRef, m.Message)
	msg.SetAutoMod(&chat.AutoMod{Category: "msg_hold"})
	ch.Timeline.Add(msg)
	return nil
}

func handleUserMessageUpdate(ctx context.Context, d *events.Delivery, ch *chat.Channel, m eventsub.ChatUserMessageUpdate) error {
	if m.Status == "invalid" {
		return nil
	}
	ch.Timeline.DeleteMessage(m.MessageID)
	d.AddSystem(ch, chat.Text{Body: fmt.Sprintf("A moderator %s your message.", m.Status)})
	return nil
}

func automodVerdict(m eventsub.AutomodMessageHold) *chat.AutoMod {
	if m.Automod != nil {
		a := &chat.AutoMod{Category: m.Automod.Category, Level: m.Automod.Level}
		for _, b := range m.Automod.Boundaries {
			a.Boundaries = append(a.Boundaries, chat.Span{Start: b.StartPos, End: b.EndPos + 1})
		}
		return a
	}
	a := &chat.AutoMod{Category: "blocked_term"}
	if m.BlockedTerm != nil {
		for _, t := range m.BlockedTerm.TermsFound {
			a.Boundaries = append(a.Boundaries, chat.Span{Start: t.Boundary.StartPos, End: t.Boundary.EndPos + 1})
		}
	}
	return a
}

// handleAutomodHold annotates the held message, adding it when the chat
// transport has not delivered it.
func handleAutomodHold(ctx context.Context, d *events.Delivery, ch *chat.Channel, m eventsub.AutomodMessageHold) error {
	verdict := automodVerdict(m)
	if existing, ok := ch.Timeline.UserMessage(m.MessageID); ok {
		existing.SetAutoMod(verdict)
		return nil
	}
	msg := notificationMessage(d, ch, m.MessageID, m.UserRef, m.Message)
	msg.SetAutoMod(verdict)
	ch.Timeline.Add(msg)
	return nil
}

func handleAutomodUpdate(ctx context.Context, d *events.Delivery, ch *chat.Channel, m eventsub.AutomodMessageUpdate) error {
	viewer, err := requireViewer(ctx, ch, m.UserID, "automod update")
	if err != nil {
		return err
	}
	moderator, err := fetchViewer(ctx, ch, m.ModeratorUserID)
	if err != nil {
		return err
	}
	ch.Timeline.DeleteMessage(m.MessageID)
	d.AddSystem(ch, chat.AutoModContext{Status: strings.ToLower(m.Status), Viewer: viewer, Moderator: moderator})
	return nil
}

func handleStreamOnline(ctx context.Context, d *events.Delivery, ch *chat.Channel, m eventsub.StreamOnline) error {
	stream := &chat.Stream{ID: m.ID, StartedAt: m.StartedAt}
	if d.Env.Streams != nil {
		s, err := d.Env.Streams.Stream(ctx, ch.ID)
		if err != nil {
			return fmt.Errorf("fetch stream %s: %w", ch.Login(), err)
		}
		if s != nil {
			stream = s
		}
	}
	ch.SetStream(stream)
	d.AddSystem(ch, chat.StreamStatus{Online: true, Channel: ch.User.DisplayName()})
	return nil
}

func handleStreamOffline(ctx context.Context, d *events.Delivery, ch *chat.Channel, m eventsub.StreamOffline) error {
	ch.SetStream(nil)
	d.AddSystem(ch, chat.StreamStatus{Online: false, Channel: ch.User.DisplayName()})
	return nil
}

func handleShieldBegin(ctx context.Context, d *events.Delivery, ch *chat.Channel, m eventsub.ShieldModeBegin) error {
	return shieldMode(ctx, d, ch, m.ModeratorUserID, true)
}

func handleShieldEnd(ctx context.Context, d *events.Delivery, ch *chat.Channel, m eventsub.ShieldModeEnd) error {
	return shieldMode(ctx, d, ch, m.ModeratorUserID, false)
}

func shieldMode(ctx context.Context, d *events.Delivery, ch *chat.Channel, moderatorID string, on bool) error {
	moderator, err := fetchViewer(ctx, ch, moderatorID)
	if err != nil {
		return err
	}
	ch.Mode.Apply(chat.ModePatch{Shield: chat.Bool(on)})
	d.AddSystem(ch, chat.ModeChange{Mode: chat.ModeShield, Enabled: on, Moderator: moderator})
	return nil
}

func handleChannelUpdate(ctx context.Context, d *events.Delivery, self *chat.User, m eventsub.ChannelUpdate) error {
	ch, ok := d.Session().Channels.Get(m.BroadcasterUserID)
	if !ok {
		return nil
	}
	ch.UpdateStream(func(s *chat.Stream) {
		s.Title = m.Title
		s.Category = m.CategoryName
	})
	return nil
}

func handleSubscriptionEnd(ctx context.Context, d *events.Delivery, self *chat.User, m eventsub.SubscriptionEnd) error {
	ch, ok := d.Session().Channels.Get(m.BroadcasterUserID)
	if !ok || m.UserID != self.ID {
		return nil
	}
	tier := "Prime"
	if m.Tier != "Prime" && m.Tier != "" {
		tier = "Tier " + m.Tier[:1]
	}
	text := fmt.Sprintf("Your %s subscription has ended.", tier)
	if m.IsGift {
		text = fmt.Sprintf("Your gifted %s subscription has ended.", tier)
	}
	d.AddSystem(ch, chat.Text{Body: text})
	return nil
}
