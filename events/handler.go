package events

import (
	"context"
	"strconv"

	"github.com/onnwee/chatline/chat"
)

// Handler is a registered event handler: a ChannelHandler or a GlobalHandler.
type Handler interface {
	Key() string
	// handle reports false when the event did not apply (wrong payload type,
	// no target channel, no authenticated user).
	handle(ctx context.Context, d *Delivery) (bool, error)
}

// ChannelHandler handles events scoped to one open channel. The channel is
// found by the event's ChannelID or ChannelLogin unless Locate is set.
type ChannelHandler[T any] struct {
	Name   string
	Locate func(reg *chat.Registry, data T) (*chat.Channel, bool)
	Handle func(ctx context.Context, d *Delivery, ch *chat.Channel, data T) error
}

func (h ChannelHandler[T]) Key() string { return h.Name }

func (h ChannelHandler[T]) handle(ctx context.Context, d *Delivery) (bool, error) {
	data, ok := d.Event.Payload.(T)
	if !ok {
		return false, nil
	}
	var ch *chat.Channel
	if h.Locate != nil {
		ch, ok = h.Locate(d.Env.Session.Channels, data)
	} else {
		ch, ok = d.Env.Session.Channels.Resolve(d.Event.ChannelID, d.Event.ChannelLogin)
	}
	if !ok {
		return false, nil
	}
	return true, h.Handle(ctx, d, ch, data)
}

// GlobalHandler handles events addressed to the authenticated user.
type GlobalHandler[T any] struct {
	Name   string
	Handle func(ctx context.Context, d *Delivery, self *chat.User, data T) error
}

func (h GlobalHandler[T]) Key() string { return h.Name }

func (h GlobalHandler[T]) handle(ctx context.Context, d *Delivery) (bool, error) {
	data, ok := d.Event.Payload.(T)
	if !ok {
		return false, nil
	}
	self := d.Env.Session.Self()
	if self == nil {
		return false, nil
	}
	return true, h.Handle(ctx, d, self, data)
}

// Delivery is the context of one dispatch.
type Delivery struct {
	Env   *Env
	Event Event

	ordinal int
}

// Session is shorthand for d.Env.Session.
func (d *Delivery) Session() *chat.Session { return d.Env.Session }

// Header builds a message header stamped with the session clock and the
// delivery's recent flag.
func (d *Delivery) Header(id string) chat.Header {
	return chat.Header{ID: id, Timestamp: d.Env.Session.Now(), Recent: d.Event.Recent}
}

// SystemMessage builds a system message for this delivery. When the event
// carries a dedupe key the id is derived from it, so a redelivered event
// yields the same ids and the timeline drops the copies.
func (d *Delivery) SystemMessage(c chat.Context) *chat.SystemMessage {
	d.ordinal++
	id := ""
	if d.Event.ID != "" {
		id = DerivedID(string(d.Event.Source), d.Event.ID, strconv.Itoa(d.ordinal))
	}
	return chat.NewSystemMessage(d.Header(id), c)
}

// AddSystem appends a system message for c to ch's timeline.
func (d *Delivery) AddSystem(ch *chat.Channel, c chat.Context) bool {
	return ch.Timeline.Add(d.SystemMessage(c))
}
