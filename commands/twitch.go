package commands

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/samber/lo"

	"github.com/onnwee/chatline/chat"
	"github.com/onnwee/chatline/twitchapi"
)

const (
	defaultTimeout    = 10 * time.Minute
	maxTimeout        = 14 * 24 * time.Hour
	maxFollowerAge    = 90 * 24 * time.Hour
	defaultSlow       = 30 * time.Second
	minSlow           = 3 * time.Second
	maxSlow           = 120 * time.Second
	maxMarkerDescRune = 140
)

// Twitch returns the platform moderation and chat commands.
func Twitch() []Command {
	return []Command{
		{
			Name:        "announce",
			Description: "Call attention to your message with a highlight",
			Args:        []string{"message"},
			ModOnly:     true,
			Run: func(ctx context.Context, c *Call) error {
				msg := c.Arg(0)
				if msg == "" {
					return missingArg("message")
				}
				return c.d.actions.Announce(ctx, c.Channel.ID, c.Caller.ID, msg)
			},
		},
		{
			Name:        "ban",
			Description: "Permanently ban a user from chat",
			Args:        []string{"username", "reason"},
			ModOnly:     true,
			Run: func(ctx context.Context, c *Call) error {
				return withTarget(ctx, c, banRules, func(t *chat.Viewer) error {
					return c.d.actions.Ban(ctx, c.Channel.ID, c.Caller.ID, t.ID(), 0, c.Arg(1))
				})
			},
		},
		{
			Name:        "unban",
			Description: "Remove a permanent ban on a user",
			Args:        []string{"username"},
			ModOnly:     true,
			Run: func(ctx context.Context, c *Call) error {
				return withTarget(ctx, c, unbanRules, func(t *chat.Viewer) error {
					return c.d.actions.Unban(ctx, c.Channel.ID, c.Caller.ID, t.ID())
				})
			},
		},
		{
			Name:        "timeout",
			Description: "Temporarily restrict a user from sending messages",
			Args:        []string{"username", "duration", "reason"},
			ModOnly:     true,
			Run:         runTimeout,
		},
		{
			Name:        "untimeout",
			Description: "Remove a timeout on a user",
			Args:        []string{"username"},
			ModOnly:     true,
			Run: func(ctx context.Context, c *Call) error {
				return withTarget(ctx, c, unbanRules, func(t *chat.Viewer) error {
					return c.d.actions.Unban(ctx, c.Channel.ID, c.Caller.ID, t.ID())
				})
			},
		},
		{
			Name:        "warn",
			Description: "Issue a warning to a user that they must acknowledge before sending more messages",
			Args:        []string{"username", "reason"},
			ModOnly:     true,
			Run: func(ctx context.Context, c *Call) error {
				if c.Arg(0) != "" && c.Arg(1) == "" {
					return missingArg("reason")
				}
				return withTarget(ctx, c, warnRules, func(t *chat.Viewer) error {
					return c.d.actions.Warn(ctx, c.Channel.ID, c.Caller.ID, t.ID(), c.Arg(1))
				})
			},
		},
		{
			Name:        "block",
			Description: "Block a user from interacting with you on Twitch",
			Args:        []string{"username"},
			Run:         blockCommand(true),
		},
		{
			Name:        "unblock",
			Description: "Remove a user from your block list",
			Args:        []string{"username"},
			Run:         blockCommand(false),
		},
		{
			Name:        "clear",
			Description: "Clear the chat history for all users",
			ModOnly:     true,
			Run: func(ctx context.Context, c *Call) error {
				return c.d.actions.DeleteMessage(ctx, c.Channel.ID, c.Caller.ID, "")
			},
		},
		{
			Name:        "emote-only",
			Description: "Restrict chat to emote only messages",
			Args:        []string{"enabled"},
			ModOnly:     true,
			Run: toggleSetting("Emote-only mode", func(m chat.Mode) bool { return m.EmoteOnly },
				func(s *twitchapi.ChatSettings, on bool) { s.EmoteMode = &on }),
		},
		{
			Name:        "subscriber-only",
			Description: "Restrict chat to subscribers only",
			Args:        []string{"enabled"},
			ModOnly:     true,
			Run: toggleSetting("Subscriber-only mode", func(m chat.Mode) bool { return m.SubOnly },
				func(s *twitchapi.ChatSettings, on bool) { s.SubscriberMode = &on }),
		},
		{
			Name:        "unique",
			Description: "Prevent users from sending duplicate messages",
			Args:        []string{"enabled"},
			ModOnly:     true,
			Run: toggleSetting("Unique chat mode", func(m chat.Mode) bool { return m.Unique },
				func(s *twitchapi.ChatSettings, on bool) { s.UniqueChatMode = &on }),
		},
		{
			Name:        "follower-only",
			Description: "Restrict chat to followers based on their follow duration",
			Args:        []string{"enabled", "duration"},
			ModOnly:     true,
			Run:         runFollowerOnly,
		},
		{
			Name:        "slow",
			Description: "Limit how frequently users can send messages",
			Args:        []string{"duration"},
			ModOnly:     true,
			Run:         runSlow,
		},
		{
			Name:        "shield",
			Description: "Restrict chat and ban harassing chatters",
			Args:        []string{"enabled"},
			ModOnly:     true,
			Run: func(ctx context.Context, c *Call) error {
				on, ok := ParseBool(c.Arg(0))
				if !ok {
					return invalidArg("INVALID_BOOL_ARG", "Expected on, off, true or false.")
				}
				if c.Channel.Mode.Current().Shield == on {
					return noChange(fmt.Sprintf("Shield mode is already %s.", onOff(on)))
				}
				return c.d.actions.SetShieldMode(ctx, c.Channel.ID, c.Caller.ID, on)
			},
		},
		{
			Name:        "marker",
			Description: "Add a stream marker at the current timestamp",
			Args:        []string{"description"},
			ModOnly:     true,
			Run:         runMarker,
		},
		{
			Name:            "mod",
			Description:     "Grant moderator status to a user",
			Args:            []string{"username"},
			BroadcasterOnly: true,
			Run: func(ctx context.Context, c *Call) error {
				return withTarget(ctx, c, modRules, func(t *chat.Viewer) error {
					return c.d.actions.AddModerator(ctx, c.Channel.ID, t.ID())
				})
			},
		},
		{
			Name:            "unmod",
			Description:     "Revoke moderator status from a user",
			Args:            []string{"username"},
			BroadcasterOnly: true,
			Run: func(ctx context.Context, c *Call) error {
				return withTarget(ctx, c, unmodRules, func(t *chat.Viewer) error {
					return c.d.actions.RemoveModerator(ctx, c.Channel.ID, t.ID())
				})
			},
		},
		{
			Name:        "mods",
			Description: "Display a list of moderators for this channel",
			Run: listCommand("moderators", func(ctx context.Context, c *Call) ([]chat.Profile, error) {
				return c.d.actions.Moderators(ctx, c.Channel.ID)
			}),
		},
		{
			Name:            "vip",
			Description:     "Grant VIP status to a user",
			Args:            []string{"username"},
			BroadcasterOnly: true,
			Run: func(ctx context.Context, c *Call) error {
				return withTarget(ctx, c, vipRules, func(t *chat.Viewer) error {
					return c.d.actions.AddVIP(ctx, c.Channel.ID, t.ID())
				})
			},
		},
		{
			Name:            "unvip",
			Description:     "Revoke VIP status from a user",
			Args:            []string{"username"},
			BroadcasterOnly: true,
			Run: func(ctx context.Context, c *Call) error {
				return withTarget(ctx, c, unvipRules, func(t *chat.Viewer) error {
					return c.d.actions.RemoveVIP(ctx, c.Channel.ID, t.ID())
				})
			},
		},
		{
			Name:        "vips",
			Description: "Display a list of VIPs for this channel",
			Run: listCommand("VIPs", func(ctx context.Context, c *Call) ([]chat.Profile, error) {
				return c.d.actions.VIPs(ctx, c.Channel.ID)
			}),
		},
		{
			Name:        "raid",
			Description: "Send viewers to another channel when the stream ends",
			Args:        []string{"channel"},
			ModOnly:     true,
			Run: func(ctx context.Context, c *Call) error {
				t, err := c.Target(ctx, c.Arg(0))
				if err != nil {
					return err
				}
				if t.ID() == c.Channel.ID {
					return &Error{Kind: KindRejected, Code: "CANNOT_TARGET_SELF", Message: "You cannot target yourself."}
				}
				err = c.d.actions.StartRaid(ctx, c.Channel.ID, t.ID())
				return classify(err, t.User.DisplayName(), raidRules...)
			},
		},
		{
			Name:        "unraid",
			Description: "Stop an ongoing raid",
			ModOnly:     true,
			Run: func(ctx context.Context, c *Call) error {
				err := c.d.actions.CancelRaid(ctx, c.Channel.ID)
				return classify(err, "", unraidRules...)
			},
		},
		{
			Name:        "shoutout",
			Description: "Highlight a channel for viewers to follow",
			Args:        []string{"channel"},
			ModOnly:     true,
			Run: func(ctx context.Context, c *Call) error {
				return withTarget(ctx, c, nil, func(t *chat.Viewer) error {
					return c.d.actions.Shoutout(ctx, c.Channel.ID, t.ID(), c.Caller.ID)
				})
			},
		},
	}
}

// withTarget resolves the first argument and runs fn against it, mapping
// known rejections to structured errors.
func withTarget(ctx context.Context, c *Call, rules []rejection, fn func(*chat.Viewer) error) error {
	t, err := c.Target(ctx, c.Arg(0))
	if err != nil {
		return err
	}
	if err := fn(t); err != nil {
		return classify(err, t.User.DisplayName(), rules...)
	}
	return nil
}

func runTimeout(ctx context.Context, c *Call) error {
	d := defaultTimeout
	if arg := c.Arg(1); arg != "" {
		var ok bool
		if d, ok = ParseDuration(arg); !ok {
			return invalidArg("INVALID_DURATION", fmt.Sprintf("%q is not a valid duration.", arg))
		}
	}
	if d < time.Second || d > maxTimeout {
		return invalidArg("INVALID_TIMEOUT_DURATION", "Timeout duration must be between 1 second and 2 weeks.")
	}
	return withTarget(ctx, c, timeoutRules, func(t *chat.Viewer) error {
		return c.d.actions.Ban(ctx, c.Channel.ID, c.Caller.ID, t.ID(), d, c.Arg(2))
	})
}

func blockCommand(block bool) func(context.Context, *Call) error {
	return func(ctx context.Context, c *Call) error {
		t, err := c.Target(ctx, c.Arg(0))
		if err != nil {
			return err
		}
		if block {
			err = c.d.actions.Block(ctx, t.ID())
		} else {
			err = c.d.actions.Unblock(ctx, t.ID())
		}
		if err != nil {
			return err
		}
		c.System(chat.BlockStatus{Blocked: block, User: t.User})
		return nil
	}
}

// toggleSetting builds an on/off settings command. It refuses to send a
// change the channel's confirmed state already reflects.
func toggleSetting(label string, current func(chat.Mode) bool, apply func(*twitchapi.ChatSettings, bool)) func(context.Context, *Call) error {
	return func(ctx context.Context, c *Call) error {
		on, ok := ParseBool(c.Arg(0))
		if !ok {
			return invalidArg("INVALID_BOOL_ARG", "Expected on, off, true or false.")
		}
		if current(c.Channel.Mode.Current()) == on {
			return noChange(fmt.Sprintf("%s is already %s.", label, onOff(on)))
		}
		var s twitchapi.ChatSettings
		apply(&s, on)
		return c.d.actions.UpdateChatSettings(ctx, c.Channel.ID, c.Caller.ID, s)
	}
}

func runFollowerOnly(ctx context.Context, c *Call) error {
	on, age := true, time.Duration(0)
	switch len(c.Args) {
	case 1:
		v, ok := ParseBool(c.Arg(0))
		if ok {
			on = v
			break
		}
		if age, ok = ParseDuration(c.Arg(0)); !ok {
			return invalidArg("INVALID_BOOL_ARG", "Expected on, off, true, false or a duration.")
		}
	case 2:
		v, ok := ParseBool(c.Arg(0))
		if !ok {
			return invalidArg("INVALID_BOOL_ARG", "Expected on, off, true or false.")
		}
		on = v
		if age, ok = ParseDuration(c.Arg(1)); !ok {
			return invalidArg("INVALID_DURATION", fmt.Sprintf("%q is not a valid duration.", c.Arg(1)))
		}
	}
	if age < 0 || age > maxFollowerAge {
		return invalidArg("INVALID_FOLLOWER_DURATION", "Follower-only duration must be between 0 and 90 days.")
	}

	cur := c.Channel.Mode.Current()
	if cur.FollowerOnly == on && (!on || cur.FollowerAge == age) {
		return noChange(fmt.Sprintf("Follower-only mode is already %s.", onOff(on)))
	}
	s := twitchapi.ChatSettings{FollowerMode: &on}
	if on {
		s.FollowerModeDuration = lo.ToPtr(int(age / time.Minute))
	}
	return c.d.actions.UpdateChatSettings(ctx, c.Channel.ID, c.Caller.ID, s)
}

func runSlow(ctx context.Context, c *Call) error {
	wait := defaultSlow
	if arg := c.Arg(0); arg != "" {
		on, ok := ParseBool(arg)
		switch {
		case ok && !on:
			wait = 0
		case ok:
		default:
			if wait, ok = ParseDuration(arg); !ok {
				return invalidArg("INVALID_DURATION", fmt.Sprintf("%q is not a valid duration.", arg))
			}
		}
	}
	if wait != 0 && (wait < minSlow || wait > maxSlow) {
		return invalidArg("INVALID_SLOW_DURATION", "Slow mode duration must be between 3 and 120 seconds.")
	}
	if c.Channel.Mode.Current().Slow == wait {
		if wait == 0 {
			return noChange("Slow mode is already off.")
		}
		return noChange(fmt.Sprintf("Slow mode is already set to %d seconds.", int(wait/time.Second)))
	}
	s := twitchapi.ChatSettings{SlowMode: lo.ToPtr(wait > 0)}
	if wait > 0 {
		s.SlowModeWaitTime = lo.ToPtr(int(wait / time.Second))
	}
	return c.d.actions.UpdateChatSettings(ctx, c.Channel.ID, c.Caller.ID, s)
}

func runMarker(ctx context.Context, c *Call) error {
	desc := c.Arg(0)
	if c.Channel.Stream() == nil {
		return &Error{Kind: KindRejected, Code: "NOT_LIVE", Message: "The channel must be live to create a stream marker."}
	}
	if utf8.RuneCountInString(desc) > maxMarkerDescRune {
		return invalidArg("MARKER_DESC_TOO_LONG", "Marker descriptions can be at most 140 characters.")
	}
	if err := c.d.actions.CreateMarker(ctx, c.Channel.ID, desc); err != nil {
		return classify(err, "", markerRules...)
	}
	text := "Stream marker created."
	if desc != "" {
		text = "Stream marker created: " + desc
	}
	c.System(chat.Text{Body: text})
	return nil
}

func listCommand(what string, fetch func(context.Context, *Call) ([]chat.Profile, error)) func(context.Context, *Call) error {
	return func(ctx context.Context, c *Call) error {
		list, err := fetch(ctx, c)
		if err != nil {
			return err
		}
		names := lo.Map(list, func(p chat.Profile, _ int) string { return lo.CoalesceOrEmpty(p.DisplayName, p.Login) })
		if len(names) == 0 {
			c.System(chat.Text{Body: fmt.Sprintf("This channel has no %s.", what)})
			return nil
		}
		sortFold(names)
		c.System(chat.Text{Body: fmt.Sprintf("Channel %s (%d): %s", what, len(names), strings.Join(names, ", "))})
		return nil
	}
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
