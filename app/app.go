// Package app wires the chat sources, the router, the command dispatcher and
// the optional archive into one running client.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/onnwee/chatline/chat"
	"github.com/onnwee/chatline/chatlog"
	"github.com/onnwee/chatline/commands"
	"github.com/onnwee/chatline/config"
	"github.com/onnwee/chatline/emotes"
	"github.com/onnwee/chatline/events"
	"github.com/onnwee/chatline/eventsub"
	"github.com/onnwee/chatline/handlers"
	"github.com/onnwee/chatline/irc"
	"github.com/onnwee/chatline/seventv"
	"github.com/onnwee/chatline/twitchapi"
)

// App is a running chat client.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	Session    *chat.Session
	Router     *events.Router
	API        *twitchapi.Client
	IRC        *irc.Client
	EventSub   *eventsub.Client // nil for anonymous sessions
	SevenTV    *seventv.Client
	Channels   *Channels
	Dispatcher *commands.Dispatcher

	// Recorder and SQL are nil when the archive is disabled.
	Recorder *chatlog.Recorder
	SQL      *chatlog.SQLStore

	out   io.Writer
	ready atomic.Bool
}

// Option configures New.
type Option func(*App)

// WithOutput renders every timeline message to w.
func WithOutput(w io.Writer) Option {
	return func(a *App) { a.out = w }
}

// New builds the client. For authenticated sessions it validates the user
// token to learn the self identity. It does not connect anything; call Run.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(a)
	}

	var tokens oauth2.TokenSource
	if cfg.Anonymous() {
		tokens = &twitchapi.AppTokenSource{
			ClientID:     cfg.TwitchClientID,
			ClientSecret: cfg.TwitchClientSecret,
			TokenURL:     cfg.OAuthTokenURL,
		}
	} else {
		if err := cfg.ValidateChatReady(); err != nil {
			return nil, err
		}
		tokens = twitchapi.UserTokenSource(cfg.TwitchUserToken)
	}
	api, err := twitchapi.New(twitchapi.Options{
		ClientID: cfg.TwitchClientID,
		BaseURL:  cfg.HelixBaseURL,
		Tokens:   tokens,
	})
	if err != nil {
		return nil, err
	}
	a.API = api

	var observers Observers
	if cfg.ChatlogEnabled() {
		store, err := a.openArchive(ctx)
		if err != nil {
			return nil, err
		}
		a.Recorder = chatlog.NewRecorder(store,
			chatlog.WithBuffer(cfg.ChatlogBuffer),
			chatlog.WithRecorderLogger(logger))
		observers = append(observers, a.Recorder)
	}
	if a.out != nil {
		observers = append(observers, NewPrinter(a.out))
	}
	var sessionOpts []chat.SessionOption
	if len(observers) > 0 {
		sessionOpts = append(sessionOpts, chat.WithObserver(observers))
	}
	a.Session = chat.NewSession(api, sessionOpts...)

	if !cfg.Anonymous() {
		if err := a.authenticate(ctx); err != nil {
			return nil, err
		}
	}

	var history *irc.History
	if cfg.HistoryEnabled {
		history = irc.NewHistory(cfg.RecentMessagesURL, cfg.HistoryLimit)
	}
	a.IRC = irc.NewClient(cfg.TwitchLogin, cfg.TwitchUserToken, history, logger)
	stvAPI := seventv.NewAPI(cfg.SevenTVAPIURL)
	a.SevenTV = seventv.NewClient(cfg.SevenTVSocketURL, logger)

	a.Channels = &Channels{
		Session:   a.Session,
		Chat:      a.IRC,
		Cosmetics: a.SevenTV,
		Meta:      api,
		SevenTV:   stvAPI,
		Emotes:    emotes.NewLoader(logger),
		logger:    logger.With(slog.String("component", "channels")),
	}
	if self := a.Session.Self(); self != nil {
		a.EventSub = eventsub.NewClient(cfg.EventSubURL, api.Helix(), self.ID, logger)
		a.Channels.Notify = a.EventSub
	}

	a.Router = events.NewRouter(&events.Env{
		Session:   a.Session,
		Streams:   api,
		Emotes:    stvAPI,
		Cosmetics: a.SevenTV,
	}, logger)
	handlers.Register(a.Router)

	a.Dispatcher = commands.New(a.Session, api,
		commands.WithChannels(a.Channels),
		commands.WithDuplicateBypass(cfg.DuplicateBypass),
		commands.WithLogger(logger))
	return a, nil
}

// authenticate resolves the user behind the token and installs it as self.
func (a *App) authenticate(ctx context.Context) error {
	info, err := twitchapi.ValidateToken(ctx, nil, "", a.cfg.TwitchUserToken)
	if err != nil {
		return fmt.Errorf("validate user token: %w", err)
	}
	if !strings.EqualFold(info.Login, a.cfg.TwitchLogin) {
		return fmt.Errorf("user token belongs to %q, not TWITCH_LOGIN %q", info.Login, a.cfg.TwitchLogin)
	}
	if missing := info.MissingScopes(twitchapi.ChatScopes...); len(missing) > 0 {
		a.logger.Warn("user token is missing chat scopes", slog.Any("scopes", missing))
	}
	self := a.Session.Users.Upsert(chat.Profile{ID: info.UserID, Login: info.Login, Partial: true})
	if full, err := a.Session.Users.Fetch(ctx, info.UserID, true); err == nil {
		self = full
	} else {
		a.logger.Warn("self profile lookup failed", slog.Any("err", err))
	}
	a.Session.SetSelf(self)
	a.logger.Info("authenticated", slog.String("login", self.Login()), slog.String("user_id", self.ID))
	return nil
}

func (a *App) openArchive(ctx context.Context) (chatlog.Store, error) {
	var stores []chatlog.Store
	if a.cfg.ChatlogDSN != "" {
		s, err := chatlog.OpenSQL(ctx, a.cfg.ChatlogDSN)
		if err != nil {
			return nil, err
		}
		a.SQL = s
		stores = append(stores, s)
	}
	if a.cfg.ChatlogRedisAddr != "" {
		rs := chatlog.NewRedisStore(chatlog.RedisConfig{
			Client: redis.NewClient(&redis.Options{Addr: a.cfg.ChatlogRedisAddr}),
			Stream: a.cfg.ChatlogRedisStream,
		})
		if err := rs.Ping(ctx); err != nil {
			// the stream is best effort; a later write may succeed
			a.logger.Warn("chatlog redis unavailable", slog.Any("err", err))
		}
		stores = append(stores, rs)
	}
	return chatlog.Tee(stores...), nil
}

// Ready reports whether startup has finished: global metadata loaded and
// configured channels joined.
func (a *App) Ready() error {
	if !a.ready.Load() {
		return errors.New("starting")
	}
	return nil
}

// Run connects every source, joins the configured channels and reads input
// lines from in (nil disables input). It returns when ctx is done or a
// transport fails.
func (a *App) Run(ctx context.Context, in io.Reader) error {
	if a.Recorder != nil {
		go a.Recorder.Run(ctx)
		defer a.Recorder.Wait()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.IRC.Run(gctx) })
	g.Go(func() error { a.Router.Run(gctx, a.IRC.Events()); return nil })
	g.Go(func() error { return a.SevenTV.Run(gctx) })
	g.Go(func() error { a.Router.Run(gctx, a.SevenTV.Events()); return nil })
	if a.EventSub != nil {
		g.Go(func() error { return a.EventSub.Run(gctx) })
		g.Go(func() error { a.Router.Run(gctx, a.EventSub.Events()); return nil })
	}
	g.Go(func() error {
		a.start(gctx)
		return nil
	})
	if in != nil {
		g.Go(func() error { return a.readInput(gctx, in) })
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (a *App) start(ctx context.Context) {
	lctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	if err := a.Channels.RefreshGlobalBadges(lctx); err != nil {
		a.logger.Warn("global badges failed", slog.Any("err", err))
	}
	if err := a.Channels.RefreshGlobalEmotes(lctx); err != nil {
		a.logger.Warn("global emotes failed", slog.Any("err", err))
	}
	cancel()

	for _, login := range a.cfg.Channels {
		if ctx.Err() != nil {
			return
		}
		if _, err := a.Channels.Join(ctx, login); err != nil {
			a.logger.Error("join failed", slog.String("channel", login), slog.Any("err", err))
		}
	}
	if first := a.cfg.Channels; len(first) > 0 {
		if ch, ok := a.Session.Channels.ByLogin(first[0]); ok && ch.Joined() {
			a.Channels.Select(ch)
		}
	}
	a.ready.Store(true)
	a.logger.Info("startup complete", slog.Int("channels", len(a.cfg.Channels)))
}
