package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/onnwee/chatline/chat"
	"github.com/onnwee/chatline/events"
	"github.com/onnwee/chatline/seventv"
)

// SevenTV returns the cosmetics-feed handlers.
func SevenTV() []events.Handler {
	return []events.Handler{
		events.GlobalHandler[seventv.CosmeticCreate]{Name: seventv.TypeCosmeticCreate, Handle: handleCosmeticCreate},
		events.GlobalHandler[seventv.EntitlementCreate]{Name: seventv.TypeEntitlementCreate, Handle: handleEntitlementCreate},
		events.GlobalHandler[seventv.EntitlementDelete]{Name: seventv.TypeEntitlementDelete, Handle: handleEntitlementDelete},
		events.GlobalHandler[seventv.EmoteSetCreate]{Name: seventv.TypeEmoteSetCreate, Handle: handleEmoteSetCreate},
		events.ChannelHandler[seventv.EmoteSetUpdate]{
			Name: seventv.TypeEmoteSetUpdate,
			Locate: func(reg *chat.Registry, u seventv.EmoteSetUpdate) (*chat.Channel, bool) {
				return reg.ByEmoteSet(u.ID)
			},
			Handle: handleEmoteSetUpdate,
		},
		events.ChannelHandler[seventv.UserUpdate]{
			Name: seventv.TypeUserUpdate,
			Locate: func(reg *chat.Registry, u seventv.UserUpdate) (*chat.Channel, bool) {
				return reg.BySevenTV(u.ID)
			},
			Handle: handleUserUpdate,
		},
	}
}

func handleCosmeticCreate(ctx context.Context, d *events.Delivery, self *chat.User, c seventv.CosmeticCreate) error {
	cos := d.Session().Cosmetics
	switch chat.CosmeticKind(c.Kind) {
	case chat.CosmeticBadge:
		b, err := c.Badge()
		if err != nil {
			return fmt.Errorf("cosmetic %s: %w", c.ID, err)
		}
		cos.AddBadge(b)
	case chat.CosmeticPaint:
		p, err := c.Paint()
		if err != nil {
			return fmt.Errorf("cosmetic %s: %w", c.ID, err)
		}
		cos.AddPaint(p)
	}
	return nil
}

func handleEntitlementCreate(ctx context.Context, d *events.Delivery, self *chat.User, e seventv.EntitlementCreate) error {
	if conn, ok := e.User.Twitch(); ok {
		d.Session().Cosmetics.Entitle(conn.ID, chat.CosmeticKind(e.Kind), e.RefID)
	}
	return nil
}

func handleEntitlementDelete(ctx context.Context, d *events.Delivery, self *chat.User, e seventv.EntitlementDelete) error {
	if conn, ok := e.User.Twitch(); ok {
		d.Session().Cosmetics.Revoke(conn.ID, chat.CosmeticKind(e.Kind), e.RefID)
	}
	return nil
}

func handleEmoteSetCreate(ctx context.Context, d *events.Delivery, self *chat.User, s seventv.EmoteSetCreate) error {
	conn, ok := s.Owner.Twitch()
	if !ok {
		return nil
	}
	d.Session().Cosmetics.AddEmoteSet(chat.NewEmoteSet(s.ID, s.Name, conn.ID))
	return nil
}

// sevenTVActor resolves the Twitch account behind a 7TV actor; nil when the
// actor has no Twitch connection.
func sevenTVActor(ctx context.Context, ch *chat.Channel, u seventv.User) (*chat.Viewer, error) {
	conn, ok := u.Twitch()
	if !ok {
		return nil, nil
	}
	return fetchViewer(ctx, ch, conn.ID)
}

// handleEmoteSetUpdate applies a delta to the channel's active set: additions,
// then removals, then renames, one system message per change.
func handleEmoteSetUpdate(ctx context.Context, d *events.Delivery, ch *chat.Channel, u seventv.EmoteSetUpdate) error {
	viewer, err := sevenTVActor(ctx, ch, u.Actor)
	if err != nil {
		return err
	}
	var actor *chat.User
	if viewer != nil {
		actor = viewer.User
	}

	for _, c := range u.PushedEmotes() {
		if c.New == nil {
			continue
		}
		e := c.New.Emote()
		ch.Emotes.Put(e)
		d.AddSystem(ch, chat.EmoteSetUpdate{Action: chat.EmoteAdded, Emote: e, Actor: actor})
	}

	for _, c := range u.PulledEmotes() {
		if c.Old == nil {
			continue
		}
		e, ok := ch.Emotes.RemoveID(chat.Provider7TV, c.Old.ID)
		if !ok {
			e = c.Old.Emote()
		}
		d.AddSystem(ch, chat.EmoteSetUpdate{Action: chat.EmoteRemoved, Emote: e, Actor: actor})
	}

	for _, c := range u.UpdatedEmotes() {
		if c.Old == nil || c.New == nil {
			continue
		}
		e, ok := ch.Emotes.FindID(chat.Provider7TV, c.Old.ID)
		if !ok {
			continue
		}
		old := e.Name
		ch.Emotes.RemoveID(chat.Provider7TV, e.ID)
		e.Name = c.New.Name
		ch.Emotes.Put(e)
		d.AddSystem(ch, chat.EmoteSetUpdate{Action: chat.EmoteRenamed, Emote: e, OldName: old, Actor: actor})
	}
	return nil
}

// handleUserUpdate follows a channel owner switching their active 7TV set.
func handleUserUpdate(ctx context.Context, d *events.Delivery, ch *chat.Channel, u seventv.UserUpdate) error {
	ref, changed := u.EmoteSetSwitch()
	if !changed {
		return nil
	}
	userID, oldSet := ch.SevenTV()
	newSet := ""
	if ref != nil {
		newSet = ref.ID
	}
	if newSet == oldSet {
		return nil
	}

	actor, err := sevenTVActor(ctx, ch, u.Actor)
	if err != nil {
		return err
	}
	var emotes []chat.Emote
	if newSet != "" && d.Env.Emotes != nil {
		set, err := d.Env.Emotes.SevenTVEmoteSet(ctx, newSet)
		if err != nil {
			return fmt.Errorf("load emote set %s: %w", newSet, err)
		}
		emotes = set.All()
	}

	ch.SetSevenTV(userID, newSet)
	ch.Emotes.ReplaceProvider(chat.Provider7TV, emotes)

	if feed := d.Env.Cosmetics; feed != nil {
		if oldSet != "" {
			if err := feed.UnsubscribeEmoteSet(oldSet); err != nil {
				slog.Warn("unsubscribe emote set failed", slog.String("component", "handlers"), slog.String("set", oldSet), slog.Any("err", err))
			}
		}
		if newSet != "" {
			if err := feed.SubscribeEmoteSet(newSet); err != nil {
				slog.Warn("subscribe emote set failed", slog.String("component", "handlers"), slog.String("set", newSet), slog.Any("err", err))
			}
		}
	}

	change := chat.EmoteSetChange{Viewer: actor}
	if ref != nil {
		change.Name = ref.Name
	}
	d.AddSystem(ch, change)
	return nil
}
