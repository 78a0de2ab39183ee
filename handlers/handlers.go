// Package handlers translates upstream events into chat state changes: one
// handler per event key, grouped by source.
package handlers

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/samber/lo"

	"github.com/onnwee/chatline/chat"
	"github.com/onnwee/chatline/events"
	"github.com/onnwee/chatline/eventsub"
)

// Register binds every handler to r.
func Register(r *events.Router) {
	r.Register(IRC()...)
	r.Register(EventSub()...)
	r.Register(SevenTV()...)
}

// fetchViewer resolves id through the channel directory. An empty id yields nil.
func fetchViewer(ctx context.Context, ch *chat.Channel, id string) (*chat.Viewer, error) {
	if id == "" {
		return nil, nil
	}
	v, err := ch.Viewers.Fetch(ctx, id, false)
	if err != nil {
		return nil, fmt.Errorf("resolve viewer %s in %s: %w", id, ch.Login(), err)
	}
	return v, nil
}

// requireViewer is fetchViewer for ids the event cannot do without.
func requireViewer(ctx context.Context, ch *chat.Channel, id, what string) (*chat.Viewer, error) {
	if id == "" {
		return nil, fmt.Errorf("%s: missing user id", what)
	}
	return fetchViewer(ctx, ch, id)
}

// fragmentEmotes maps emote fragments to rune spans of the full text.
func fragmentEmotes(frags []eventsub.Fragment) []chat.EmoteRange {
	var out []chat.EmoteRange
	pos := 0
	for _, f := range frags {
		n := utf8.RuneCountInString(f.Text)
		if f.Type == "emote" && f.Emote != nil {
			out = append(out, chat.EmoteRange{ID: f.Emote.ID, Name: f.Text, Span: chat.Span{Start: pos, End: pos + n}})
		}
		pos += n
	}
	return out
}

// notificationMessage builds a user message from a notification payload,
// seeding the author from the payload's user fields.
func notificationMessage(d *events.Delivery, ch *chat.Channel, id string, user eventsub.UserRef, msg eventsub.Message) *chat.UserMessage {
	author := d.Session().Users.Upsert(chat.Profile{
		ID:          user.UserID,
		Login:       user.UserLogin,
		DisplayName: user.UserName,
		Partial:     true,
	})
	m := chat.NewUserMessage(d.Header(lo.CoalesceOrEmpty(id, msg.MessageID)), msg.Text, author)
	m.Viewer = ch.Viewers.Ensure(author)
	m.Emotes = fragmentEmotes(msg.Fragments)
	m.Lookup = ch
	return m
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }
func minutes(n int) time.Duration { return time.Duration(n) * time.Minute }
