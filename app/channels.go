package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/onnwee/chatline/chat"
	"github.com/onnwee/chatline/emotes"
	"github.com/onnwee/chatline/seventv"
	"github.com/onnwee/chatline/telemetry"
)

// ChatTransport joins and departs IRC channels; *irc.Client satisfies it.
type ChatTransport interface {
	Join(ctx context.Context, login string) error
	Depart(login string)
}

// Notifications manages per-channel EventSub topics; *eventsub.Client satisfies it.
type Notifications interface {
	Subscribe(broadcasterID string, moderating bool) error
	Unsubscribe(broadcasterID string)
}

// CosmeticsFeed manages 7TV EventAPI subscriptions; *seventv.Client satisfies it.
type CosmeticsFeed interface {
	SubscribeChannel(channelID, sevenTVUserID string) error
	UnsubscribeChannel(channelID, sevenTVUserID string) error
	SubscribeEmoteSet(setID string) error
	UnsubscribeEmoteSet(setID string) error
}

// Metadata is the Helix subset used when opening a channel.
type Metadata interface {
	Stream(ctx context.Context, channelID string) (*chat.Stream, error)
	ChannelBadges(ctx context.Context, broadcasterID string) ([]chat.Badge, error)
	GlobalBadges(ctx context.Context) ([]chat.Badge, error)
}

// SevenTVAccounts resolves 7TV identities and emote sets; *seventv.API satisfies it.
type SevenTVAccounts interface {
	Account(ctx context.Context, twitchID string) (seventv.Account, error)
	SevenTVEmoteSet(ctx context.Context, setID string) (*chat.EmoteSet, error)
}

// EmoteSource loads third-party channel emotes; *emotes.Loader satisfies it.
type EmoteSource interface {
	Channel(ctx context.Context, channelID string) (emotes.Result, error)
}

// globalSevenTVSet is the 7TV id of the global emote set.
const globalSevenTVSet = "global"

// Channels opens and closes channels across every source. It backs the
// built-in /join, /leave and refresh commands.
type Channels struct {
	Session   *chat.Session
	Chat      ChatTransport
	Notify    Notifications
	Cosmetics CosmeticsFeed
	Meta      Metadata
	SevenTV   SevenTVAccounts
	Emotes    EmoteSource

	logger  *slog.Logger
	current atomic.Pointer[chat.Channel]
}

func (c *Channels) log() *slog.Logger {
	if c.logger == nil {
		return slog.Default().With(slog.String("component", "channels"))
	}
	return c.logger
}

// Current returns the channel input is sent to, or nil.
func (c *Channels) Current() *chat.Channel { return c.current.Load() }

// Select makes ch the current channel.
func (c *Channels) Select(ch *chat.Channel) { c.current.Store(ch) }

// Join opens the channel named login and makes it current. Joining an open
// channel only refreshes its notification topics.
func (c *Channels) Join(ctx context.Context, login string) (*chat.Channel, error) {
	u, err := c.Session.Users.FetchByLogin(ctx, login)
	if err != nil {
		return nil, fmt.Errorf("join %s: %w", login, err)
	}
	ch := c.Session.EnsureChannel(u)
	logger := c.log().With(slog.String("channel", ch.Login()))

	if ch.Joined() {
		c.subscribeNotifications(ch, logger)
		c.Select(ch)
		return ch, nil
	}

	broadcaster := ch.Viewers.Ensure(u)
	broadcaster.UpdateRoles(func(r *chat.Roles) { r.Broadcaster = true })

	c.loadMetadata(ctx, ch, logger)
	c.subscribeCosmetics(ctx, ch, logger)
	c.subscribeNotifications(ch, logger)

	ch.SetJoined(true)
	c.Select(ch)
	c.updateGauge()
	if c.Chat != nil {
		// The transport joins before the history request, so an error here
		// only means the backfill is missing.
		if err := c.Chat.Join(ctx, ch.Login()); err != nil {
			logger.Warn("recent message backfill failed", slog.Any("err", err))
		}
	}
	logger.Info("joined channel", slog.String("channel_id", ch.ID))
	return ch, nil
}

// loadMetadata fetches the stream, channel badges and third-party emotes
// concurrently. Failures leave the channel usable without that data.
func (c *Channels) loadMetadata(ctx context.Context, ch *chat.Channel, logger *slog.Logger) {
	var g errgroup.Group
	if c.Meta != nil {
		g.Go(func() error {
			stream, err := c.Meta.Stream(ctx, ch.ID)
			if err != nil {
				logger.Warn("stream lookup failed", slog.Any("err", err))
				return nil
			}
			ch.SetStream(stream)
			return nil
		})
		g.Go(func() error {
			if err := c.refreshChannelBadges(ctx, ch); err != nil {
				logger.Warn("channel badges failed", slog.Any("err", err))
			}
			return nil
		})
	}
	if c.Emotes != nil {
		g.Go(func() error {
			// partial results are applied; the loader logs each provider failure
			res, _ := c.Emotes.Channel(ctx, ch.ID)
			res.Apply(ch.Emotes)
			return nil
		})
	}
	_ = g.Wait()
}

// subscribeCosmetics resolves the channel's 7TV account and follows its
// cosmetics and active emote set.
func (c *Channels) subscribeCosmetics(ctx context.Context, ch *chat.Channel, logger *slog.Logger) {
	if c.Cosmetics == nil {
		return
	}
	var acc seventv.Account
	if c.SevenTV != nil {
		var err error
		acc, err = c.SevenTV.Account(ctx, ch.ID)
		switch {
		case errors.Is(err, chat.ErrNotFound):
			logger.Debug("channel has no 7tv account")
		case err != nil:
			logger.Warn("7tv account lookup failed", slog.Any("err", err))
		default:
			ch.SetSevenTV(acc.UserID, acc.EmoteSetID)
		}
	}
	if err := c.Cosmetics.SubscribeChannel(ch.ID, acc.UserID); err != nil {
		logger.Warn("7tv channel subscription failed", slog.Any("err", err))
	}
	if err := c.Cosmetics.SubscribeEmoteSet(acc.EmoteSetID); err != nil {
		logger.Warn("7tv emote set subscription failed", slog.String("emote_set", acc.EmoteSetID), slog.Any("err", err))
	}
}

func (c *Channels) subscribeNotifications(ch *chat.Channel, logger *slog.Logger) {
	if c.Notify == nil {
		return
	}
	self := c.Session.Self()
	moderating := self != nil && (self.ID == ch.ID || c.Session.Moderating(ch))
	if err := c.Notify.Subscribe(ch.ID, moderating); err != nil {
		logger.Warn("eventsub subscription failed", slog.Bool("moderating", moderating), slog.Any("err", err))
	}
}

// Leave closes ch on every source and resets its session state. The next
// joined channel, if any, becomes current.
func (c *Channels) Leave(_ context.Context, ch *chat.Channel) error {
	if ch == nil {
		return errors.New("no channel to leave")
	}
	if c.Chat != nil {
		c.Chat.Depart(ch.Login())
	}
	if c.Notify != nil {
		c.Notify.Unsubscribe(ch.ID)
	}
	if c.Cosmetics != nil {
		userID, setID := ch.SevenTV()
		if err := errors.Join(
			c.Cosmetics.UnsubscribeChannel(ch.ID, userID),
			c.Cosmetics.UnsubscribeEmoteSet(setID),
		); err != nil {
			c.log().Warn("7tv unsubscribe failed", slog.String("channel", ch.Login()), slog.Any("err", err))
		}
	}
	ch.Reset()

	if c.Current() == ch {
		next, _ := lo.Find(c.Session.Channels.All(), func(o *chat.Channel) bool { return o.Joined() })
		c.Select(next)
	}
	c.updateGauge()
	c.log().Info("left channel", slog.String("channel", ch.Login()))
	return nil
}

// RefreshEmotes reloads third-party emotes for ch, and the global 7TV set
// when includeGlobal is set.
func (c *Channels) RefreshEmotes(ctx context.Context, ch *chat.Channel, includeGlobal bool) error {
	var errs []error
	if c.Emotes != nil {
		res, err := c.Emotes.Channel(ctx, ch.ID)
		res.Apply(ch.Emotes)
		errs = append(errs, err)
	}
	if includeGlobal {
		errs = append(errs, c.RefreshGlobalEmotes(ctx))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("refresh emotes: %w", err)
	}
	return nil
}

// RefreshGlobalEmotes replaces the session's global 7TV emotes.
func (c *Channels) RefreshGlobalEmotes(ctx context.Context) error {
	if c.SevenTV == nil {
		return nil
	}
	set, err := c.SevenTV.SevenTVEmoteSet(ctx, globalSevenTVSet)
	if err != nil {
		return fmt.Errorf("global 7tv emotes: %w", err)
	}
	c.Session.Emotes.ReplaceProvider(chat.Provider7TV, set.All())
	return nil
}

// RefreshBadges reloads channel and global badges.
func (c *Channels) RefreshBadges(ctx context.Context, ch *chat.Channel) error {
	if c.Meta == nil {
		return nil
	}
	if err := errors.Join(c.refreshChannelBadges(ctx, ch), c.RefreshGlobalBadges(ctx)); err != nil {
		return fmt.Errorf("refresh badges: %w", err)
	}
	return nil
}

func (c *Channels) refreshChannelBadges(ctx context.Context, ch *chat.Channel) error {
	badges, err := c.Meta.ChannelBadges(ctx, ch.ID)
	if err != nil {
		return err
	}
	ch.Badges.Replace(badges)
	return nil
}

// RefreshGlobalBadges replaces the session's global badges.
func (c *Channels) RefreshGlobalBadges(ctx context.Context) error {
	if c.Meta == nil {
		return nil
	}
	badges, err := c.Meta.GlobalBadges(ctx)
	if err != nil {
		return fmt.Errorf("global badges: %w", err)
	}
	c.Session.Badges.Replace(badges)
	return nil
}

func (c *Channels) updateGauge() {
	n := lo.CountBy(c.Session.Channels.All(), func(ch *chat.Channel) bool { return ch.Joined() })
	telemetry.SetJoinedChannels(n)
}
