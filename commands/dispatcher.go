// Package commands parses slash input, checks the caller's privilege and runs
// chat commands against the Helix action API. It also owns the plain send path.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/onnwee/chatline/chat"
	"github.com/onnwee/chatline/ratelimit"
	"github.com/onnwee/chatline/telemetry"
	"github.com/onnwee/chatline/twitchapi"
)

// Actions are the outbound platform calls commands issue. *twitchapi.Client
// implements it.
type Actions interface {
	SendMessage(ctx context.Context, broadcasterID, senderID, text, replyTo string) (twitchapi.SendResult, error)
	Announce(ctx context.Context, broadcasterID, moderatorID, text string) error
	Ban(ctx context.Context, broadcasterID, moderatorID, userID string, duration time.Duration, reason string) error
	Unban(ctx context.Context, broadcasterID, moderatorID, userID string) error
	Warn(ctx context.Context, broadcasterID, moderatorID, userID, reason string) error
	DeleteMessage(ctx context.Context, broadcasterID, moderatorID, messageID string) error
	Block(ctx context.Context, userID string) error
	Unblock(ctx context.Context, userID string) error
	UpdateChatSettings(ctx context.Context, broadcasterID, moderatorID string, s twitchapi.ChatSettings) error
	SetShieldMode(ctx context.Context, broadcasterID, moderatorID string, active bool) error
	CreateMarker(ctx context.Context, userID, description string) error
	AddModerator(ctx context.Context, broadcasterID, userID string) error
	RemoveModerator(ctx context.Context, broadcasterID, userID string) error
	AddVIP(ctx context.Context, broadcasterID, userID string) error
	RemoveVIP(ctx context.Context, broadcasterID, userID string) error
	Moderators(ctx context.Context, broadcasterID string) ([]chat.Profile, error)
	VIPs(ctx context.Context, broadcasterID string) ([]chat.Profile, error)
	StartRaid(ctx context.Context, fromID, toID string) error
	CancelRaid(ctx context.Context, broadcasterID string) error
	Shoutout(ctx context.Context, fromID, toID, moderatorID string) error
}

// Channels runs the channel lifecycle for the built-in commands.
type Channels interface {
	Join(ctx context.Context, login string) (*chat.Channel, error)
	Leave(ctx context.Context, ch *chat.Channel) error
	RefreshEmotes(ctx context.Context, ch *chat.Channel, includeGlobal bool) error
	RefreshBadges(ctx context.Context, ch *chat.Channel) error
}

// Command is one slash command.
type Command struct {
	Name        string
	Description string
	// Args names the positional arguments; the last one receives the rest of
	// the input.
	Args            []string
	ModOnly         bool
	BroadcasterOnly bool
	Run             func(ctx context.Context, c *Call) error
}

// Usage renders "/name <arg> <arg>".
func (c Command) Usage() string {
	var b strings.Builder
	b.WriteString("/" + c.Name)
	for _, a := range c.Args {
		b.WriteString(" <" + a + ">")
	}
	return b.String()
}

// Call is one invocation of a command.
type Call struct {
	Name    string
	Args    []string
	Channel *chat.Channel
	Caller  *chat.User
	Viewer  *chat.Viewer

	d *Dispatcher
}

// Arg returns the i-th argument or "".
func (c *Call) Arg(i int) string {
	if i < len(c.Args) {
		return c.Args[i]
	}
	return ""
}

// System appends a system message to the call's channel.
func (c *Call) System(ctx chat.Context) {
	c.d.system(c.Channel, ctx)
}

// Target resolves a username argument to a viewer of the call's channel.
func (c *Call) Target(ctx context.Context, username string) (*chat.Viewer, error) {
	return c.d.resolveTarget(ctx, username, c.Channel)
}

// Dispatcher owns the command registry and the send path.
type Dispatcher struct {
	session  *chat.Session
	actions  Actions
	channels Channels
	logger   *slog.Logger

	commands map[string]Command

	duplicateBypass bool
	mu              sync.Mutex
	bypassNext      map[string]bool
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithChannels enables the built-in channel commands.
func WithChannels(c Channels) Option {
	return func(d *Dispatcher) { d.channels = c }
}

// WithDuplicateBypass makes repeated plain messages alternate an invisible
// suffix so the platform does not drop them as duplicates.
func WithDuplicateBypass(on bool) Option {
	return func(d *Dispatcher) { d.duplicateBypass = on }
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// New returns a dispatcher with the Twitch commands registered, plus the
// built-in ones when WithChannels is given.
func New(session *chat.Session, actions Actions, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		session:    session,
		actions:    actions,
		logger:     slog.Default(),
		commands:   make(map[string]Command),
		bypassNext: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With(slog.String("component", "commands"))
	d.Register(Twitch()...)
	if d.channels != nil {
		d.Register(BuiltIn()...)
	}
	return d
}

// Register adds commands; a later command with the same name replaces the
// earlier one.
func (d *Dispatcher) Register(cmds ...Command) {
	for _, c := range cmds {
		d.commands[c.Name] = c
	}
}

// Lookup returns the command registered under name.
func (d *Dispatcher) Lookup(name string) (Command, bool) {
	c, ok := d.commands[name]
	return c, ok
}

// Commands returns every command sorted by name.
func (d *Dispatcher) Commands() []Command {
	out := make([]Command, 0, len(d.commands))
	for _, c := range d.commands {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Execute runs slash input in ch on behalf of caller. Unknown commands are
// ignored. Commands the caller may not run return a KindPrivilege error
// without issuing any action.
func (d *Dispatcher) Execute(ctx context.Context, input string, ch *chat.Channel, caller *chat.User) error {
	body, ok := strings.CutPrefix(strings.TrimSpace(input), "/")
	if !ok {
		return invalidArg("NOT_A_COMMAND", "Commands must start with /.")
	}
	name, rest := body, ""
	if i := strings.IndexFunc(body, unicode.IsSpace); i >= 0 {
		name, rest = body[:i], body[i:]
	}
	cmd, ok := d.commands[name]
	if !ok {
		telemetry.Inc(telemetry.CommandsExecuted, "unknown", "ignored")
		return nil
	}

	ctx, span := telemetry.StartSpan(ctx, "commands", name,
		telemetry.CommandAttr(name),
		telemetry.ChannelAttr(ch.Login()),
	)
	defer span.End()

	if err := d.authorize(cmd, ch, caller); err != nil {
		telemetry.Inc(telemetry.CommandsExecuted, name, "denied")
		telemetry.RecordError(span, err)
		return err
	}

	call := &Call{
		Name:    name,
		Args:    splitArgs(rest, len(cmd.Args)),
		Channel: ch,
		Caller:  caller,
		Viewer:  ch.Viewers.Ensure(caller),
		d:       d,
	}
	if err := cmd.Run(ctx, call); err != nil {
		telemetry.Inc(telemetry.CommandsExecuted, name, "error")
		telemetry.RecordError(span, err)
		if _, ok := AsError(err); ok {
			d.logger.Info("command rejected", slog.String("command", name), slog.String("channel", ch.Login()), slog.Any("err", err))
		} else {
			d.logger.Error("command failed", slog.String("command", name), slog.String("channel", ch.Login()), slog.Any("err", err))
		}
		return err
	}
	telemetry.Inc(telemetry.CommandsExecuted, name, "ok")
	telemetry.SetSpanSuccess(span)
	return nil
}

func (d *Dispatcher) authorize(cmd Command, ch *chat.Channel, caller *chat.User) error {
	if caller == nil {
		return &Error{Kind: KindPrivilege, Code: "NOT_AUTHENTICATED", Message: "You must be logged in to use commands."}
	}
	v := ch.Viewers.Ensure(caller)
	broadcaster := caller.ID == ch.ID || v.IsBroadcaster()
	if cmd.BroadcasterOnly && !broadcaster {
		return &Error{Kind: KindPrivilege, Code: "BROADCASTER_ONLY", Message: fmt.Sprintf("Only the broadcaster can use /%s.", cmd.Name)}
	}
	if cmd.ModOnly && !broadcaster && !v.IsModerator() {
		return &Error{Kind: KindPrivilege, Code: "MOD_ONLY", Message: fmt.Sprintf("You must be a moderator to use /%s.", cmd.Name)}
	}
	return nil
}

// invisibleSuffix makes a repeated message differ from the previous one.
const invisibleSuffix = " \U000E0000"

// Send sends input to ch as the authenticated user. Slash input goes to
// Execute; anything else passes the rate limiter and is posted.
func (d *Dispatcher) Send(ctx context.Context, input string, ch *chat.Channel) error {
	self := d.session.Self()
	if self == nil {
		return &Error{Kind: KindPrivilege, Code: "NOT_AUTHENTICATED", Message: "You must be logged in to send messages."}
	}
	text := strings.TrimSpace(input)
	if text == "" {
		return nil
	}
	if strings.HasPrefix(text, "/") {
		return d.Execute(ctx, text, ch, self)
	}

	viewer := ch.Viewers.Ensure(self)
	tier := ratelimit.Normal
	if viewer.Elevated() || self.ID == ch.ID {
		tier = ratelimit.Elevated
	}
	if kind := ch.Limiter.Check(tier); kind != ratelimit.None {
		telemetry.Inc(telemetry.RateLimitHits, kind.String())
		return rateLimited(kind)
	}

	out := text
	if d.applyBypass(ch, tier, text) {
		out += invisibleSuffix
	}
	ch.Timeline.RecordSent(text)

	replyTo := ch.Timeline.ReplyTarget()
	res, err := d.actions.SendMessage(ctx, ch.ID, self.ID, out, replyTo)
	if err != nil {
		return fmt.Errorf("send message in %s: %w", ch.Login(), err)
	}
	if replyTo != "" {
		ch.Timeline.SetReplyTarget("")
	}
	if !res.Sent && res.DropReason != "" {
		d.logger.Warn("message dropped", slog.String("channel", ch.Login()), slog.String("reason", res.DropReason))
		d.system(ch, chat.Text{Body: res.DropReason})
	}
	return nil
}

// applyBypass reports whether this send needs the invisible suffix. Repeats
// alternate so every other copy differs from its predecessor.
func (d *Dispatcher) applyBypass(ch *chat.Channel, tier ratelimit.Tier, text string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	last, ok := ch.Timeline.LastSent()
	if !d.duplicateBypass || tier == ratelimit.Elevated || !ok || last != text {
		delete(d.bypassNext, ch.ID)
		return false
	}
	next := !d.bypassNext[ch.ID]
	d.bypassNext[ch.ID] = next
	return next
}

func rateLimited(kind ratelimit.Kind) *Error {
	if kind == ratelimit.Speed {
		return &Error{Kind: KindRateLimited, Code: "SPEED", Message: "You are sending messages too quickly."}
	}
	return &Error{Kind: KindRateLimited, Code: "VOLUME", Message: "You have sent too many messages recently."}
}

func (d *Dispatcher) system(ch *chat.Channel, c chat.Context) {
	ch.Timeline.Add(chat.NewSystemMessage(chat.Header{Timestamp: d.session.Now()}, c))
}

// resolveTarget finds username in the channel roster, falling back to an
// identity lookup shared with every other fetch of the same login.
func (d *Dispatcher) resolveTarget(ctx context.Context, username string, ch *chat.Channel) (*chat.Viewer, error) {
	login := normalizeLogin(username)
	if login == "" {
		return nil, missingArg("username")
	}
	if v, ok := ch.Viewers.FindByLogin(login); ok {
		return v, nil
	}
	u, err := d.session.Users.FetchByLogin(ctx, login)
	if errors.Is(err, chat.ErrNotFound) {
		return nil, notFound(login, err)
	}
	if err != nil {
		return nil, err
	}
	return ch.Viewers.Ensure(u), nil
}
