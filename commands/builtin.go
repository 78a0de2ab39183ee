package commands

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/onnwee/chatline/chat"
)

// BuiltIn returns the client-side commands. They need WithChannels.
func BuiltIn() []Command {
	return []Command{
		{
			Name:        "join",
			Description: "Join a channel",
			Args:        []string{"channel"},
			Run: func(ctx context.Context, c *Call) error {
				login := normalizeLogin(c.Arg(0))
				if login == "" {
					return missingArg("channel")
				}
				_, err := c.d.channels.Join(ctx, login)
				if errors.Is(err, chat.ErrNotFound) {
					return notFound(login, err)
				}
				return err
			},
		},
		{
			Name:        "leave",
			Description: "Leave the current channel",
			Run: func(ctx context.Context, c *Call) error {
				return c.d.channels.Leave(ctx, c.Channel)
			},
		},
		{
			Name:        "refresh-emotes",
			Description: "Refresh all emotes for the channel and optionally global emotes",
			Args:        []string{"include-global"},
			Run: func(ctx context.Context, c *Call) error {
				global, ok := ParseBool(c.Arg(0))
				if !ok {
					return invalidArg("INVALID_BOOL_ARG", "Expected on, off, true or false.")
				}
				if err := c.d.channels.RefreshEmotes(ctx, c.Channel, global); err != nil {
					return err
				}
				c.System(chat.Text{Body: "Emotes refreshed."})
				return nil
			},
		},
		{
			Name:        "refresh-badges",
			Description: "Refresh channel and global badges",
			Run: func(ctx context.Context, c *Call) error {
				if err := c.d.channels.RefreshBadges(ctx, c.Channel); err != nil {
					return err
				}
				c.System(chat.Text{Body: "Badges refreshed."})
				return nil
			},
		},
		{
			Name:        "help",
			Description: "List the available commands or describe one",
			Args:        []string{"command"},
			Run:         runHelp,
		},
	}
}

func runHelp(_ context.Context, c *Call) error {
	if name := strings.TrimPrefix(c.Arg(0), "/"); name != "" {
		cmd, ok := c.d.Lookup(name)
		if !ok {
			return &Error{Kind: KindNotFound, Code: "COMMAND_NOT_FOUND", Message: fmt.Sprintf("/%s is not a command.", name)}
		}
		c.System(chat.Text{Body: fmt.Sprintf("%s: %s", cmd.Usage(), cmd.Description)})
		return nil
	}
	names := lo.Map(c.d.Commands(), func(cmd Command, _ int) string { return "/" + cmd.Name })
	c.System(chat.Text{Body: "Commands: " + strings.Join(names, ", ")})
	return nil
}

func sortFold(names []string) {
	slices.SortFunc(names, func(a, b string) int {
		return strings.Compare(strings.ToLower(a), strings.ToLower(b))
	})
}
