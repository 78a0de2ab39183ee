package app

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/onnwee/chatline/chat"
	"github.com/onnwee/chatline/commands"
	"github.com/onnwee/chatline/emotes"
	"github.com/onnwee/chatline/seventv"
)

type fakeLookup map[string]chat.Profile

func (f fakeLookup) UserByID(_ context.Context, id string) (chat.Profile, error) {
	for _, p := range f {
		if p.ID == id {
			return p, nil
		}
	}
	return chat.Profile{}, chat.ErrNotFound
}

func (f fakeLookup) UserByLogin(_ context.Context, login string) (chat.Profile, error) {
	if p, ok := f[login]; ok {
		return p, nil
	}
	return chat.Profile{}, chat.ErrNotFound
}

// recorder collects calls made to the fakes below.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
}

func (r *recorder) has(s string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.calls {
		if c == s {
			return true
		}
	}
	return false
}

func (r *recorder) count(s string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c == s {
			n++
		}
	}
	return n
}

type fakeChat struct{ *recorder }

func (f fakeChat) Join(_ context.Context, login string) error { f.add("join " + login); return nil }
func (f fakeChat) Depart(login string)                        { f.add("depart " + login) }

type fakeNotify struct{ *recorder }

func (f fakeNotify) Subscribe(id string, moderating bool) error {
	if moderating {
		f.add("subscribe-mod " + id)
	} else {
		f.add("subscribe " + id)
	}
	return nil
}
func (f fakeNotify) Unsubscribe(id string) { f.add("unsubscribe " + id) }

type fakeCosmetics struct{ *recorder }

func (f fakeCosmetics) SubscribeChannel(id, stv string) error {
	f.add("cosmetics " + id + " " + stv)
	return nil
}
func (f fakeCosmetics) UnsubscribeChannel(id, stv string) error {
	f.add("uncosmetics " + id + " " + stv)
	return nil
}
func (f fakeCosmetics) SubscribeEmoteSet(set string) error {
	if set != "" {
		f.add("set " + set)
	}
	return nil
}
func (f fakeCosmetics) UnsubscribeEmoteSet(set string) error {
	if set != "" {
		f.add("unset " + set)
	}
	return nil
}

type fakeMeta struct{ stream *chat.Stream }

func (f fakeMeta) Stream(context.Context, string) (*chat.Stream, error) { return f.stream, nil }
func (f fakeMeta) ChannelBadges(context.Context, string) ([]chat.Badge, error) {
	return []chat.Badge{{Set: "subscriber", Version: "0", Title: "Subscriber"}}, nil
}
func (f fakeMeta) GlobalBadges(context.Context) ([]chat.Badge, error) {
	return []chat.Badge{{Set: "moderator", Version: "1", Title: "Moderator"}}, nil
}

type fakeSevenTV struct{}

func (fakeSevenTV) Account(_ context.Context, id string) (seventv.Account, error) {
	if id == "100" {
		return seventv.Account{UserID: "stv100", EmoteSetID: "set100"}, nil
	}
	return seventv.Account{}, chat.ErrNotFound
}

func (fakeSevenTV) SevenTVEmoteSet(_ context.Context, id string) (*chat.EmoteSet, error) {
	set := chat.NewEmoteSet(id, id, "")
	set.Put(chat.Emote{ID: "g1", Name: "EZ", Provider: chat.Provider7TV})
	return set, nil
}

type fakeEmotes struct{ err error }

func (f fakeEmotes) Channel(context.Context, string) (emotes.Result, error) {
	return emotes.Result{chat.ProviderBTTV: {{ID: "b1", Name: "catJAM", Provider: chat.ProviderBTTV}}}, f.err
}

func newChannels(t *testing.T) (*Channels, *recorder) {
	t.Helper()
	sess := chat.NewSession(fakeLookup{
		"streamer": {ID: "100", Login: "streamer", DisplayName: "Streamer"},
		"other":    {ID: "200", Login: "other"},
		"me":       {ID: "1", Login: "me"},
	})
	sess.SetSelf(sess.Users.Upsert(chat.Profile{ID: "1", Login: "me"}))
	rec := &recorder{}
	return &Channels{
		Session:   sess,
		Chat:      fakeChat{rec},
		Notify:    fakeNotify{rec},
		Cosmetics: fakeCosmetics{rec},
		Meta:      fakeMeta{stream: &chat.Stream{ID: "s1", Title: "hello"}},
		SevenTV:   fakeSevenTV{},
		Emotes:    fakeEmotes{},
		logger:    slog.Default(),
	}, rec
}

func TestJoinFlow(t *testing.T) {
	c, rec := newChannels(t)
	ch, err := c.Join(context.Background(), "streamer")
	if err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if !ch.Joined() || c.Current() != ch {
		t.Error("channel should be joined and current")
	}
	v, ok := ch.Viewers.Get("100")
	if !ok || !v.IsBroadcaster() {
		t.Error("broadcaster viewer not seeded")
	}
	if s := ch.Stream(); s == nil || s.Title != "hello" {
		t.Errorf("Stream() = %+v", s)
	}
	if _, ok := ch.Badge("subscriber", "0"); !ok {
		t.Error("channel badges not loaded")
	}
	if _, ok := ch.Emote("catJAM"); !ok {
		t.Error("third-party emotes not loaded")
	}
	if user, set := ch.SevenTV(); user != "stv100" || set != "set100" {
		t.Errorf("SevenTV() = %q %q", user, set)
	}
	for _, want := range []string{"cosmetics 100 stv100", "set set100", "subscribe 100", "join streamer"} {
		if !rec.has(want) {
			t.Errorf("missing call %q in %v", want, rec.calls)
		}
	}
}

func TestJoinUnknownChannel(t *testing.T) {
	c, rec := newChannels(t)
	_, err := c.Join(context.Background(), "nobody")
	if !errors.Is(err, chat.ErrNotFound) {
		t.Fatalf("Join() error = %v, want ErrNotFound", err)
	}
	if len(rec.calls) != 0 {
		t.Errorf("unexpected calls %v", rec.calls)
	}
}

func TestJoinOwnChannelUsesModeratorTopics(t *testing.T) {
	c, rec := newChannels(t)
	if _, err := c.Join(context.Background(), "me"); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if !rec.has("subscribe-mod 1") {
		t.Errorf("expected moderator topics, calls = %v", rec.calls)
	}
	if !rec.has("cosmetics 1 ") {
		t.Errorf("expected cosmetics subscription without 7tv account, calls = %v", rec.calls)
	}
}

func TestJoinTwiceRefreshesTopicsOnly(t *testing.T) {
	c, rec := newChannels(t)
	ctx := context.Background()
	ch, _ := c.Join(ctx, "streamer")
	ch.Viewers.Ensure(c.Session.Self()).UpdateRoles(func(r *chat.Roles) { r.Moderator = true })
	if _, err := c.Join(ctx, "streamer"); err != nil {
		t.Fatalf("second Join() error = %v", err)
	}
	if got := rec.count("join streamer"); got != 1 {
		t.Errorf("transport joins = %d, want 1", got)
	}
	if !rec.has("subscribe-mod 100") {
		t.Errorf("moderator topics not picked up on rejoin: %v", rec.calls)
	}
}

func TestLeave(t *testing.T) {
	c, rec := newChannels(t)
	ctx := context.Background()
	other, _ := c.Join(ctx, "other")
	ch, _ := c.Join(ctx, "streamer")
	ch.Timeline.Add(chat.NewSystemMessage(chat.Header{ID: "x", Timestamp: time.Now()}, chat.Text{Body: "hi"}))

	if err := c.Leave(ctx, ch); err != nil {
		t.Fatalf("Leave() error = %v", err)
	}
	if ch.Joined() || ch.Timeline.Len() != 0 || ch.Viewers.Len() != 0 {
		t.Error("channel state not reset")
	}
	for _, want := range []string{"depart streamer", "unsubscribe 100", "uncosmetics 100 stv100", "unset set100"} {
		if !rec.has(want) {
			t.Errorf("missing call %q", want)
		}
	}
	if c.Current() != other {
		t.Error("current channel should fall back to the remaining joined channel")
	}
	if err := c.Leave(ctx, other); err != nil {
		t.Fatal(err)
	}
	if c.Current() != nil {
		t.Error("no channel should be current")
	}
}

func TestRefreshEmotes(t *testing.T) {
	c, _ := newChannels(t)
	ctx := context.Background()
	ch, _ := c.Join(ctx, "streamer")

	if err := c.RefreshEmotes(ctx, ch, true); err != nil {
		t.Fatalf("RefreshEmotes() error = %v", err)
	}
	if _, ok := c.Session.Emotes.Emote("EZ"); !ok {
		t.Error("global 7tv emotes not loaded")
	}

	c.Emotes = fakeEmotes{err: errors.New("ffz down")}
	if err := c.RefreshEmotes(ctx, ch, false); err == nil {
		t.Error("expected provider error to be reported")
	}
	if _, ok := ch.Emote("catJAM"); !ok {
		t.Error("loaded providers should still apply")
	}
}

func TestRefreshBadges(t *testing.T) {
	c, _ := newChannels(t)
	ctx := context.Background()
	ch, _ := c.Join(ctx, "streamer")
	if err := c.RefreshBadges(ctx, ch); err != nil {
		t.Fatalf("RefreshBadges() error = %v", err)
	}
	if _, ok := c.Session.Badges.Get("moderator", "1"); !ok {
		t.Error("global badges not loaded")
	}
}

func TestInputWithoutChannel(t *testing.T) {
	c, rec := newChannels(t)
	var out bytes.Buffer
	a := &App{Session: c.Session, Channels: c, logger: slog.Default(), out: &out}
	ctx := context.Background()

	err := a.Input(ctx, "hello")
	if cerr, ok := commands.AsError(err); !ok || cerr.Code != "NO_CHANNEL" {
		t.Fatalf("Input() error = %v, want NO_CHANNEL", err)
	}
	a.notify(err)
	if !strings.Contains(out.String(), "Join a channel first") {
		t.Errorf("output = %q", out.String())
	}

	if err := a.Input(ctx, "/join #Streamer"); err != nil {
		t.Fatalf("/join error = %v", err)
	}
	if !rec.has("join streamer") {
		t.Error("/join did not open the channel")
	}
}

func TestInputAnonymous(t *testing.T) {
	c, _ := newChannels(t)
	c.Session.SetSelf(nil)
	a := &App{Session: c.Session, Channels: c, logger: slog.Default()}
	ctx := context.Background()
	if err := a.Input(ctx, "/join streamer"); err != nil {
		t.Fatal(err)
	}
	err := a.Input(ctx, "hi chat")
	if cerr, ok := commands.AsError(err); !ok || cerr.Code != "NOT_AUTHENTICATED" {
		t.Errorf("Input() error = %v, want NOT_AUTHENTICATED", err)
	}
	if err := a.Input(ctx, "/leave"); err != nil {
		t.Fatal(err)
	}
	if c.Current() != nil {
		t.Error("/leave did not close the channel")
	}
}

func TestPrinter(t *testing.T) {
	sess := chat.NewSession(nil)
	ch := sess.EnsureChannel(sess.Users.Upsert(chat.Profile{ID: "100", Login: "streamer"}))
	author := sess.Users.Upsert(chat.Profile{ID: "42", Login: "chatter", DisplayName: "Chatter"})

	var out bytes.Buffer
	p := NewPrinter(&out)
	obs := Observers{p}
	obs.MessageAdded(ch, chat.NewUserMessage(chat.Header{ID: "m1", Timestamp: time.Now()}, "hello", author))
	obs.MessageAdded(ch, chat.NewSystemMessage(chat.Header{ID: "s1", Timestamp: time.Now(), Recent: true}, chat.Text{Body: "note"}))

	want := "[#streamer] Chatter: hello\n[#streamer] (history) * note\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}
