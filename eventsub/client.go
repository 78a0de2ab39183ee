package eventsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/lxzan/gws"
	"github.com/nicklaw5/helix/v2"

	"github.com/onnwee/chatline/events"
)

// DefaultURL is the Twitch EventSub websocket endpoint.
const DefaultURL = "wss://eventsub.wss.twitch.tv/ws"

// Subscriber creates and removes EventSub subscriptions; *helix.Client satisfies it.
type Subscriber interface {
	CreateEventSubSubscription(payload *helix.EventSubSubscription) (*helix.EventSubSubscriptionsResponse, error)
	RemoveEventSubSubscription(id string) (*helix.RemoveEventSubSubscriptionParamsResponse, error)
}

type envelope struct {
	Metadata struct {
		MessageID        string    `json:"message_id"`
		MessageType      string    `json:"message_type"`
		MessageTimestamp time.Time `json:"message_timestamp"`
		SubscriptionType string    `json:"subscription_type"`
	} `json:"metadata"`
	Payload struct {
		Session *struct {
			ID                      string `json:"id"`
			Status                  string `json:"status"`
			KeepaliveTimeoutSeconds int    `json:"keepalive_timeout_seconds"`
			ReconnectURL            string `json:"reconnect_url"`
		} `json:"session"`
		Subscription *struct {
			ID     string `json:"id"`
			Type   string `json:"type"`
			Status string `json:"status"`
		} `json:"subscription"`
		Event json.RawMessage `json:"event"`
	} `json:"payload"`
}

type channelSub struct {
	moderating bool
	ids        []string
}

// Client keeps one EventSub websocket session alive and publishes
// notifications as router events.
type Client struct {
	url    string
	api    Subscriber
	out    chan events.Event
	logger *slog.Logger

	mu        sync.Mutex
	selfID    string
	sessionID string
	channels  map[string]*channelSub
	selfIDs   []string
}

// NewClient returns a client for url. api creates subscriptions on behalf of
// the authenticated user selfID.
func NewClient(url string, api Subscriber, selfID string, logger *slog.Logger) *Client {
	if url == "" {
		url = DefaultURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		url:      url,
		api:      api,
		selfID:   selfID,
		out:      make(chan events.Event, 256),
		logger:   logger.With(slog.String("component", "eventsub")),
		channels: make(map[string]*channelSub),
	}
}

// Events returns the ordered notification channel.
func (c *Client) Events() <-chan events.Event { return c.out }

// Subscribe records broadcasterID as joined and, when a session is up,
// creates its subscriptions. Privileged topics are used only when moderating.
func (c *Client) Subscribe(broadcasterID string, moderating bool) error {
	c.mu.Lock()
	if old, ok := c.channels[broadcasterID]; ok {
		c.mu.Unlock()
		c.remove(old.ids)
		c.mu.Lock()
	}
	sub := &channelSub{moderating: moderating}
	c.channels[broadcasterID] = sub
	sessionID := c.sessionID
	c.mu.Unlock()

	if sessionID == "" {
		return nil
	}
	ids, err := c.create(sessionID, broadcasterID, TopicsFor(moderating))
	c.mu.Lock()
	sub.ids = ids
	c.mu.Unlock()
	return err
}

// Unsubscribe removes every subscription for broadcasterID.
func (c *Client) Unsubscribe(broadcasterID string) {
	c.mu.Lock()
	sub, ok := c.channels[broadcasterID]
	delete(c.channels, broadcasterID)
	c.mu.Unlock()
	if ok {
		c.remove(sub.ids)
	}
}

// Run keeps a session open until ctx is done, reconnecting with backoff.
func (c *Client) Run(ctx context.Context) error {
	addr := c.url
	attempt := 0
	for {
		next, err := c.runSession(ctx, addr)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if next != "" {
			// server-initiated migration keeps the subscriptions
			addr = next
			attempt = 0
			continue
		}
		addr = c.url
		c.resetSession()
		attempt++
		wait := backoff(attempt)
		c.logger.Warn("eventsub session ended, reconnecting",
			slog.Int("attempt", attempt),
			slog.Duration("backoff", wait),
			slog.Any("err", err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func backoff(attempt int) time.Duration {
	const base = 2 * time.Second
	if attempt > 4 {
		attempt = 4
	}
	return base*time.Duration(1<<attempt) + time.Duration(rand.Int63n(int64(base)))
}

type session struct {
	client *Client
	frames chan []byte
	closed chan error
	done   chan struct{}
}

func (s *session) OnOpen(conn *gws.Conn) {}

func (s *session) OnClose(conn *gws.Conn, err error) {
	s.closed <- err
}

func (s *session) OnPing(conn *gws.Conn, payload []byte) {
	conn.WritePong(payload)
}

func (s *session) OnPong(conn *gws.Conn, payload []byte) {}

func (s *session) OnMessage(conn *gws.Conn, message *gws.Message) {
	defer message.Close()
	data := append([]byte(nil), message.Data.Bytes()...)
	select {
	case s.frames <- data:
	case <-s.done:
	}
}

// runSession returns a reconnect url when the server asked to migrate.
func (c *Client) runSession(ctx context.Context, addr string) (string, error) {
	s := &session{
		client: c,
		frames: make(chan []byte, 64),
		closed: make(chan error, 1),
		done:   make(chan struct{}),
	}
	defer close(s.done)
	conn, _, err := gws.NewClient(s, &gws.ClientOption{Addr: addr})
	if err != nil {
		return "", fmt.Errorf("dial eventsub: %w", err)
	}
	go conn.ReadLoop()
	defer conn.WriteClose(1000, []byte("bye"))

	keepalive := 30 * time.Second
	timer := time.NewTimer(keepalive + 10*time.Second)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case err := <-s.closed:
			return "", fmt.Errorf("eventsub connection closed: %w", err)
		case <-timer.C:
			return "", errors.New("eventsub keepalive timeout")
		case data := <-s.frames:
			res, err := c.handleFrame(ctx, data)
			if err != nil {
				c.logger.Warn("bad eventsub frame", slog.Any("err", err))
				continue
			}
			if res.keepalive > 0 {
				keepalive = res.keepalive
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(keepalive + 10*time.Second)
			if res.reconnect != "" {
				return res.reconnect, nil
			}
		}
	}
}

type frameResult struct {
	keepalive time.Duration
	reconnect string
}

func (c *Client) handleFrame(ctx context.Context, data []byte) (frameResult, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return frameResult{}, fmt.Errorf("decode envelope: %w", err)
	}
	var res frameResult

	switch env.Metadata.MessageType {
	case "session_welcome":
		if env.Payload.Session == nil {
			return res, errors.New("welcome without session")
		}
		res.keepalive = time.Duration(env.Payload.Session.KeepaliveTimeoutSeconds) * time.Second
		c.welcome(env.Payload.Session.ID)
	case "session_keepalive":
	case "session_reconnect":
		if env.Payload.Session != nil {
			res.reconnect = env.Payload.Session.ReconnectURL
		}
	case "revocation":
		if sub := env.Payload.Subscription; sub != nil {
			c.logger.Warn("eventsub subscription revoked",
				slog.String("type", sub.Type),
				slog.String("status", sub.Status))
			c.forget(sub.ID)
		}
	case "notification":
		ev, ok := c.toEvent(env)
		if !ok {
			return res, nil
		}
		select {
		case c.out <- ev:
		case <-ctx.Done():
		}
	default:
		c.logger.Debug("unknown eventsub message type", slog.String("type", env.Metadata.MessageType))
	}
	return res, nil
}

// toEvent converts a notification; unknown or malformed ones are dropped.
func (c *Client) toEvent(env envelope) (events.Event, bool) {
	subType := env.Metadata.SubscriptionType
	id, login, payload, err := Decode(subType, env.Payload.Event)
	if err != nil {
		if !errors.Is(err, ErrUnknownType) {
			c.logger.Debug("dropping eventsub notification", slog.String("type", subType), slog.Any("err", err))
		}
		return events.Event{}, false
	}
	return events.Event{
		Source:       events.SourceEventSub,
		Key:          subType,
		ID:           env.Metadata.MessageID,
		ChannelID:    id,
		ChannelLogin: login,
		Payload:      payload,
	}, true
}

// welcome creates subscriptions for every known channel on a fresh session.
// A welcome for the session already in use follows a migration and needs nothing.
func (c *Client) welcome(sessionID string) {
	c.mu.Lock()
	if c.sessionID != "" {
		c.sessionID = sessionID
		c.mu.Unlock()
		return
	}
	c.sessionID = sessionID
	selfID := c.selfID
	pending := make(map[string]*channelSub, len(c.channels))
	for id, sub := range c.channels {
		pending[id] = sub
	}
	c.mu.Unlock()

	if selfID != "" {
		ids, err := c.create(sessionID, selfID, SelfTopics)
		if err != nil {
			c.logger.Warn("self subscriptions failed", slog.Any("err", err))
		}
		c.mu.Lock()
		c.selfIDs = ids
		c.mu.Unlock()
	}
	for id, sub := range pending {
		ids, err := c.create(sessionID, id, TopicsFor(sub.moderating))
		if err != nil {
			c.logger.Warn("channel subscriptions failed", slog.String("broadcaster_id", id), slog.Any("err", err))
		}
		c.mu.Lock()
		sub.ids = ids
		c.mu.Unlock()
	}
}

func (c *Client) resetSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = ""
	c.selfIDs = nil
	for _, sub := range c.channels {
		sub.ids = nil
	}
}

func (c *Client) forget(subID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, sub := range c.channels {
		for i, id := range sub.ids {
			if id == subID {
				sub.ids = append(sub.ids[:i], sub.ids[i+1:]...)
				return
			}
		}
	}
}

// create subscribes to each topic and returns the ids that succeeded along
// with the joined errors of those that did not.
func (c *Client) create(sessionID, broadcasterID string, topics []Topic) ([]string, error) {
	var ids []string
	var errs []error
	for _, t := range topics {
		cond := helix.EventSubCondition{BroadcasterUserID: broadcasterID}
		switch t.Condition {
		case ConditionModerator:
			cond.ModeratorUserID = c.selfID
		case ConditionUser:
			cond.UserID = c.selfID
		}
		resp, err := c.api.CreateEventSubSubscription(&helix.EventSubSubscription{
			Type:      t.Type,
			Version:   t.Version,
			Condition: cond,
			Transport: helix.EventSubTransport{Method: "websocket", SessionID: sessionID},
		})
		if err == nil && resp.StatusCode >= 400 {
			err = fmt.Errorf("status %d: %s", resp.StatusCode, resp.ErrorMessage)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("subscribe %s: %w", t.Type, err))
			continue
		}
		for _, s := range resp.Data.EventSubSubscriptions {
			ids = append(ids, s.ID)
		}
	}
	return ids, errors.Join(errs...)
}

func (c *Client) remove(ids []string) {
	for _, id := range ids {
		resp, err := c.api.RemoveEventSubSubscription(id)
		if err == nil && resp.StatusCode >= 400 {
			err = fmt.Errorf("status %d: %s", resp.StatusCode, resp.ErrorMessage)
		}
		if err != nil {
			c.logger.Warn("remove subscription failed", slog.String("id", id), slog.Any("err", err))
		}
	}
}
