package irc

import (
	"context"
	"log/slog"
	"sync"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/onnwee/chatline/events"
)

// Client wraps go-twitch-irc and publishes every supported message as an
// event on a single ordered channel.
type Client struct {
	client  *twitch.Client
	history *History
	out     chan events.Event
	logger  *slog.Logger

	mu      sync.Mutex
	baseCtx context.Context
	joined  map[string]bool
}

// NewClient connects as login with token, or anonymously when token is empty.
// history may be nil to skip backfill.
func NewClient(login, token string, history *History, logger *slog.Logger) *Client {
	var client *twitch.Client
	if token == "" {
		client = twitch.NewAnonymousClient()
	} else {
		client = twitch.NewClient(login, "oauth:"+trimOAuth(token))
	}
	client.Capabilities = []string{twitch.TagsCapability, twitch.CommandsCapability, twitch.MembershipCapability}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		client:  client,
		history: history,
		out:     make(chan events.Event, 256),
		logger:  logger.With(slog.String("component", "irc")),
		joined:  make(map[string]bool),
	}

	client.OnPrivateMessage(func(m twitch.PrivateMessage) { c.publish(&m) })
	client.OnUserNoticeMessage(func(m twitch.UserNoticeMessage) { c.publish(&m) })
	client.OnUserStateMessage(func(m twitch.UserStateMessage) { c.publish(&m) })
	client.OnClearChatMessage(func(m twitch.ClearChatMessage) { c.publish(&m) })
	client.OnClearMessage(func(m twitch.ClearMessage) { c.publish(&m) })
	client.OnNoticeMessage(func(m twitch.NoticeMessage) { c.publish(&m) })
	client.OnRoomStateMessage(func(m twitch.RoomStateMessage) { c.publish(&m) })
	client.OnUserJoinMessage(func(m twitch.UserJoinMessage) { c.publish(&m) })
	client.OnUserPartMessage(func(m twitch.UserPartMessage) { c.publish(&m) })
	client.OnWhisperMessage(func(m twitch.WhisperMessage) { c.publish(&m) })

	client.OnConnect(func() {
		c.logger.Info("connected to twitch chat")
	})
	client.OnReconnectMessage(func(twitch.ReconnectMessage) {
		c.logger.Info("twitch chat requested reconnect")
	})
	return c
}

// Events returns the ordered event channel.
func (c *Client) Events() <-chan events.Event { return c.out }

// Run connects and blocks until ctx is done or the connection fails.
func (c *Client) Run(ctx context.Context) error {
	c.mu.Lock()
	c.baseCtx = ctx
	c.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.client.Connect()
	}()

	select {
	case <-ctx.Done():
		_ = c.client.Disconnect()
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Join joins a channel and, when history is configured, publishes the
// channel's recent messages flagged as backfill.
func (c *Client) Join(ctx context.Context, login string) error {
	login = normalizeChannel(login)
	c.mu.Lock()
	c.joined[login] = true
	c.mu.Unlock()
	c.client.Join(login)

	if c.history == nil {
		return nil
	}
	lines, err := c.history.Fetch(ctx, login)
	if err != nil {
		return err
	}
	for _, line := range lines {
		c.emit(ctx, twitch.ParseMessage(line), true)
	}
	return nil
}

// Depart leaves a channel.
func (c *Client) Depart(login string) {
	login = normalizeChannel(login)
	c.mu.Lock()
	delete(c.joined, login)
	c.mu.Unlock()
	c.client.Depart(login)
}

func (c *Client) publish(msg twitch.Message) {
	c.mu.Lock()
	ctx := c.baseCtx
	c.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	c.emit(ctx, msg, false)
}

func (c *Client) emit(ctx context.Context, msg twitch.Message, recent bool) {
	ev, ok := ToEvent(msg, recent)
	if !ok {
		return
	}
	select {
	case c.out <- ev:
	case <-ctx.Done():
	}
}

func trimOAuth(token string) string {
	const prefix = "oauth:"
	if len(token) > len(prefix) && token[:len(prefix)] == prefix {
		return token[len(prefix):]
	}
	return token
}
