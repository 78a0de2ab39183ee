package seventv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/onnwee/chatline/events"
)

// DefaultURL is the 7TV EventAPI endpoint.
const DefaultURL = "wss://events.7tv.io/v3"

// EventAPI opcodes.
const (
	opDispatch    = 0
	opHello       = 1
	opHeartbeat   = 2
	opReconnect   = 4
	opAck         = 5
	opError       = 6
	opEndOfStream = 7
	opResume      = 34
	opSubscribe   = 35
	opUnsubscribe = 36
)

type frame struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
}

type subscription struct {
	Type      string            `json:"type"`
	Condition map[string]string `json:"condition"`
}

func (s subscription) key() string {
	return s.Type + "|" + s.Condition["object_id"] + "|" + s.Condition["id"]
}

// Client keeps an EventAPI connection open, replays subscriptions after a
// reconnect and publishes dispatches as router events.
type Client struct {
	url    string
	dialer websocket.Dialer
	out    chan events.Event
	logger *slog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	sessionID string
	subs      map[string]subscription
	writeMu   sync.Mutex
}

// NewClient returns a client for url.
func NewClient(url string, logger *slog.Logger) *Client {
	if url == "" {
		url = DefaultURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		url: url,
		dialer: websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 15 * time.Second,
		},
		out:    make(chan events.Event, 256),
		logger: logger.With(slog.String("component", "seventv")),
		subs:   make(map[string]subscription),
	}
}

// Events returns the ordered dispatch channel.
func (c *Client) Events() <-chan events.Event { return c.out }

// SubscribeChannel subscribes to cosmetics and entitlements in a Twitch
// channel and to changes of its 7TV user.
func (c *Client) SubscribeChannel(channelID, sevenTVUserID string) error {
	cond := map[string]string{"ctx": "channel", "platform": "TWITCH", "id": channelID}
	subs := []subscription{
		{Type: "cosmetic.*", Condition: cond},
		{Type: "entitlement.*", Condition: cond},
	}
	if sevenTVUserID != "" {
		subs = append(subs, subscription{Type: TypeUserUpdate, Condition: map[string]string{"object_id": sevenTVUserID}})
	}
	var errs []error
	for _, s := range subs {
		errs = append(errs, c.subscribe(s))
	}
	return errors.Join(errs...)
}

// UnsubscribeChannel drops the channel subscriptions.
func (c *Client) UnsubscribeChannel(channelID, sevenTVUserID string) error {
	cond := map[string]string{"ctx": "channel", "platform": "TWITCH", "id": channelID}
	subs := []subscription{
		{Type: "cosmetic.*", Condition: cond},
		{Type: "entitlement.*", Condition: cond},
	}
	if sevenTVUserID != "" {
		subs = append(subs, subscription{Type: TypeUserUpdate, Condition: map[string]string{"object_id": sevenTVUserID}})
	}
	var errs []error
	for _, s := range subs {
		errs = append(errs, c.unsubscribe(s))
	}
	return errors.Join(errs...)
}

// SubscribeEmoteSet follows changes to an emote set.
func (c *Client) SubscribeEmoteSet(setID string) error {
	if setID == "" {
		return nil
	}
	return c.subscribe(subscription{Type: TypeEmoteSetUpdate, Condition: map[string]string{"object_id": setID}})
}

// UnsubscribeEmoteSet stops following an emote set.
func (c *Client) UnsubscribeEmoteSet(setID string) error {
	if setID == "" {
		return nil
	}
	return c.unsubscribe(subscription{Type: TypeEmoteSetUpdate, Condition: map[string]string{"object_id": setID}})
}

func (c *Client) subscribe(s subscription) error {
	c.mu.Lock()
	c.subs[s.key()] = s
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return c.send(conn, opSubscribe, s)
}

func (c *Client) unsubscribe(s subscription) error {
	c.mu.Lock()
	_, ok := c.subs[s.key()]
	delete(c.subs, s.key())
	conn := c.conn
	c.mu.Unlock()
	if !ok || conn == nil {
		return nil
	}
	return c.send(conn, opUnsubscribe, s)
}

func (c *Client) send(conn *websocket.Conn, op int, d any) error {
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteJSON(frame{Op: op, D: data}); err != nil {
		return fmt.Errorf("seventv send op %d: %w", op, err)
	}
	return nil
}

// Run keeps the connection open until ctx is done, reconnecting with backoff.
func (c *Client) Run(ctx context.Context) error {
	attempt := 0
	for {
		resumable, err := c.runConn(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !resumable {
			c.mu.Lock()
			c.sessionID = ""
			c.mu.Unlock()
		}
		attempt++
		wait := backoff(attempt)
		c.logger.Warn("seventv connection ended, reconnecting",
			slog.Int("attempt", attempt),
			slog.Bool("resume", resumable),
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
	const base = time.Second
	if attempt > 5 {
		attempt = 5
	}
	return base*time.Duration(1<<attempt) + time.Duration(rand.Int63n(int64(base)))
}

// runConn reports whether the session may be resumed on the next connection.
func (c *Client) runConn(ctx context.Context) (bool, error) {
	conn, resp, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		if resp != nil {
			return false, fmt.Errorf("dial seventv: %w (status: %s)", err, resp.Status)
		}
		return false, fmt.Errorf("dial seventv: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		c.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		_ = conn.Close()
	})
	defer stop()
	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
	}()

	heartbeat := 45 * time.Second
	for {
		_ = conn.SetReadDeadline(time.Now().Add(heartbeat + 15*time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.logger.Debug("bad seventv frame", slog.Any("err", err))
			continue
		}
		switch f.Op {
		case opHello:
			var hello struct {
				SessionID         string `json:"session_id"`
				HeartbeatInterval int    `json:"heartbeat_interval"`
			}
			if err := json.Unmarshal(f.D, &hello); err != nil {
				return false, fmt.Errorf("decode hello: %w", err)
			}
			if hello.HeartbeatInterval > 0 {
				heartbeat = time.Duration(hello.HeartbeatInterval) * time.Millisecond
			}
			c.hello(conn, hello.SessionID)
		case opDispatch:
			c.dispatch(ctx, f.D)
		case opHeartbeat, opAck:
		case opReconnect:
			return true, errors.New("seventv requested reconnect")
		case opError:
			c.logger.Warn("seventv error", slog.String("payload", string(f.D)))
		case opEndOfStream:
			var end struct {
				Code    int    `json:"code"`
				Message string `json:"message"`
			}
			_ = json.Unmarshal(f.D, &end)
			// 4000 server error, 4006 restart, 4008 timeout
			resumable := end.Code == 4000 || end.Code == 4006 || end.Code == 4008
			return resumable, fmt.Errorf("seventv end of stream %d: %s", end.Code, end.Message)
		}
	}
}

// hello resumes the previous session when there is one and otherwise
// replays every subscription on the new connection.
func (c *Client) hello(conn *websocket.Conn, sessionID string) {
	c.mu.Lock()
	previous := c.sessionID
	c.sessionID = sessionID
	c.conn = conn
	subs := make([]subscription, 0, len(c.subs))
	for _, s := range c.subs {
		subs = append(subs, s)
	}
	c.mu.Unlock()

	if previous != "" {
		if err := c.send(conn, opResume, map[string]string{"session_id": previous}); err == nil {
			return
		}
	}
	for _, s := range subs {
		if err := c.send(conn, opSubscribe, s); err != nil {
			c.logger.Warn("seventv subscribe failed", slog.String("type", s.Type), slog.Any("err", err))
		}
	}
}

func (c *Client) dispatch(ctx context.Context, d json.RawMessage) {
	ev, ok := c.toEvent(d)
	if !ok {
		return
	}
	select {
	case c.out <- ev:
	case <-ctx.Done():
	}
}

func (c *Client) toEvent(d json.RawMessage) (events.Event, bool) {
	var body struct {
		Type string          `json:"type"`
		Body json.RawMessage `json:"body"`
	}
	if err := json.Unmarshal(d, &body); err != nil {
		return events.Event{}, false
	}
	payload, err := Decode(body.Type, body.Body)
	if err != nil {
		if !errors.Is(err, ErrUnknownType) {
			c.logger.Debug("dropping seventv dispatch", slog.String("type", body.Type), slog.Any("err", err))
		}
		return events.Event{}, false
	}
	return events.Event{Source: events.SourceSevenTV, Key: body.Type, Payload: payload}, true
}
