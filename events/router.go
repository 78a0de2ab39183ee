// Package events routes typed upstream events to their handlers.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/chatline/telemetry"
)

// Source names an upstream event feed.
type Source string

const (
	SourceIRC      Source = "irc"
	SourceEventSub Source = "eventsub"
	SourceSevenTV  Source = "seventv"
)

// Event is one delivery from an upstream source.
type Event struct {
	Source Source
	// Key selects the handler, e.g. "privmsg" or "channel.moderate".
	Key string
	// ID is the upstream dedupe key, if the source provides one.
	ID string
	// ChannelID and ChannelLogin identify the target channel for
	// channel-scoped handlers; either may be empty.
	ChannelID    string
	ChannelLogin string
	// Recent marks history-backfill deliveries.
	Recent  bool
	Payload any
}

// Router maps event keys to handlers. Register everything before Run.
type Router struct {
	env      *Env
	handlers map[string]Handler
	logger   *slog.Logger
}

// NewRouter returns a router that hands env to every handler.
func NewRouter(env *Env, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		env:      env,
		handlers: make(map[string]Handler),
		logger:   logger.With(slog.String("component", "router")),
	}
}

// Register binds h to its key; a later registration for the same key wins.
func (r *Router) Register(hs ...Handler) {
	for _, h := range hs {
		r.handlers[h.Key()] = h
	}
}

// Has reports whether a handler is registered for key.
func (r *Router) Has(key string) bool {
	_, ok := r.handlers[key]
	return ok
}

// Dispatch runs the handler for ev and waits for it. Unknown keys, events for
// channels that are not open and global events without an authenticated user
// are ignored. A panicking handler is reported as an error.
func (r *Router) Dispatch(ctx context.Context, ev Event) (err error) {
	h, ok := r.handlers[ev.Key]
	if !ok {
		telemetry.Inc(telemetry.EventsIgnored, string(ev.Source))
		return nil
	}

	ctx = telemetry.WithCorrelation(ctx, uuid.NewString())
	ctx, span := telemetry.StartSpan(ctx, "router", ev.Key,
		telemetry.SourceAttr(string(ev.Source)),
		telemetry.EventAttr(ev.Key),
	)
	defer span.End()

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler %s panicked: %v", ev.Key, p)
			telemetry.RecordError(span, err)
		}
	}()

	d := &Delivery{Env: r.env, Event: ev}
	handled, err := h.handle(ctx, d)
	if !handled {
		telemetry.Inc(telemetry.EventsIgnored, string(ev.Source))
		return nil
	}
	telemetry.Inc(telemetry.EventsDispatched, string(ev.Source), ev.Key)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	telemetry.SetSpanSuccess(span)
	return nil
}

// Run dispatches events from one source strictly in order until the channel
// closes or ctx is done. Handler errors are logged and counted; they never
// stop the loop.
func (r *Router) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			start := time.Now()
			if err := r.Dispatch(ctx, ev); err != nil {
				telemetry.Inc(telemetry.HandlerFailures, ev.Key)
				r.logger.Error("event handler failed",
					slog.String("source", string(ev.Source)),
					slog.String("event", ev.Key),
					slog.String("channel", ev.ChannelLogin),
					slog.Duration("elapsed", time.Since(start)),
					slog.Any("err", err))
			}
		}
	}
}
