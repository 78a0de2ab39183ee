package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/onnwee/chatline/chat"
	"github.com/onnwee/chatline/commands"
)

// Observers fans timeline changes out to several observers in order.
type Observers []chat.Observer

func (o Observers) MessageAdded(ch *chat.Channel, m chat.Message) {
	for _, obs := range o {
		obs.MessageAdded(ch, m)
	}
}

func (o Observers) MessagesDeleted(ch *chat.Channel, ids []string) {
	for _, obs := range o {
		obs.MessagesDeleted(ch, ids)
	}
}

// Printer writes timeline additions as plain text lines.
type Printer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewPrinter(w io.Writer) *Printer { return &Printer{w: w} }

// Format renders m for display in ch.
func Format(ch *chat.Channel, m chat.Message) string {
	prefix := "[#" + ch.Login() + "] "
	if m.Recent() {
		prefix += "(history) "
	}
	switch msg := m.(type) {
	case *chat.UserMessage:
		name := "?"
		if msg.Author != nil {
			name = msg.Author.DisplayName()
		}
		return prefix + name + ": " + msg.Text()
	default:
		return prefix + "* " + m.Text()
	}
}

func (p *Printer) MessageAdded(ch *chat.Channel, m chat.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintln(p.w, Format(ch, m))
}

func (p *Printer) MessagesDeleted(ch *chat.Channel, ids []string) {}

// readInput feeds lines from in to Input until ctx is done or in is
// exhausted.
func (a *App) readInput(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := sc.Err(); err != nil {
			a.logger.Warn("input read failed", slog.Any("err", err))
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			a.notify(a.Input(ctx, line))
		}
	}
}

// Input handles one line typed by the user. Without a current channel, or
// in an anonymous session, only /join and /leave are available.
func (a *App) Input(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	ch := a.Channels.Current()
	if ch == nil || a.Session.Self() == nil {
		return a.localCommand(ctx, line, ch)
	}
	return a.Dispatcher.Send(ctx, line, ch)
}

func (a *App) localCommand(ctx context.Context, line string, ch *chat.Channel) error {
	name, arg, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	switch {
	case strings.HasPrefix(line, "/") && name == "join":
		login := strings.ToLower(strings.TrimLeft(strings.TrimSpace(arg), "#@"))
		if login == "" {
			return &commands.Error{Kind: commands.KindInvalidArgs, Code: "MISSING_ARG", Message: "Missing argument: channel."}
		}
		_, err := a.Channels.Join(ctx, login)
		return err
	case strings.HasPrefix(line, "/") && name == "leave" && ch != nil:
		return a.Channels.Leave(ctx, ch)
	case ch == nil:
		return &commands.Error{Kind: commands.KindRejected, Code: "NO_CHANNEL", Message: "Join a channel first with /join <channel>."}
	default:
		return &commands.Error{Kind: commands.KindPrivilege, Code: "NOT_AUTHENTICATED", Message: "You must be logged in to send messages."}
	}
}

// notify shows command errors to the user and logs the rest.
func (a *App) notify(err error) {
	if err == nil {
		return
	}
	if cerr, ok := commands.AsError(err); ok && a.out != nil {
		_, _ = fmt.Fprintln(a.out, "! "+cerr.Message)
		return
	}
	a.logger.Error("input failed", slog.Any("err", err))
}
