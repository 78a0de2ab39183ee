// Package chatlog archives timeline activity to SQL or Redis. The archive is
// write-only from the client's point of view: timelines never load from it.
package chatlog

import (
	"context"
	"errors"
	"time"

	"github.com/onnwee/chatline/chat"
)

// Op is the kind of change a record describes.
type Op string

const (
	OpAdd    Op = "add"
	OpDelete Op = "delete"
)

// Record is one archived timeline change.
type Record struct {
	Op           Op        `csv:"-"`
	ID           string    `csv:"id"`
	ChannelID    string    `csv:"channel_id"`
	ChannelLogin string    `csv:"channel"`
	Kind         string    `csv:"kind"`
	AuthorID     string    `csv:"author_id"`
	AuthorLogin  string    `csv:"author"`
	Context      string    `csv:"context"`
	Text         string    `csv:"text"`
	Recent       bool      `csv:"recent"`
	Deleted      bool      `csv:"deleted"`
	Timestamp    time.Time `csv:"sent_at"`
}

// Store persists batches of records.
type Store interface {
	Write(ctx context.Context, batch []Record) error
	Close() error
}

// FromMessage converts a timeline message into an add record.
func FromMessage(ch *chat.Channel, m chat.Message) Record {
	r := Record{
		Op:        OpAdd,
		ID:        m.ID(),
		ChannelID: ch.ID,
		Text:      m.Text(),
		Recent:    m.Recent(),
		Deleted:   m.Deleted(),
		Timestamp: m.Timestamp().UTC(),
	}
	if ch.User != nil {
		r.ChannelLogin = ch.Login()
	}
	switch msg := m.(type) {
	case *chat.UserMessage:
		r.Kind = "user"
		if msg.Author != nil {
			r.AuthorID = msg.Author.ID
			r.AuthorLogin = msg.Author.Login()
		}
		if msg.Kind != "" {
			r.Context = msg.Kind
		}
	case *chat.SystemMessage:
		r.Kind = "system"
		if msg.Context != nil {
			r.Context = string(msg.Context.Kind())
		}
	}
	return r
}

// tee writes every batch to each store.
type tee []Store

// Tee returns a Store that writes to all of stores. Nil entries are skipped.
func Tee(stores ...Store) Store {
	var t tee
	for _, s := range stores {
		if s != nil {
			t = append(t, s)
		}
	}
	if len(t) == 1 {
		return t[0]
	}
	return t
}

func (t tee) Write(ctx context.Context, batch []Record) error {
	var errs []error
	for _, s := range t {
		errs = append(errs, s.Write(ctx, batch))
	}
	return errors.Join(errs...)
}

func (t tee) Close() error {
	var errs []error
	for _, s := range t {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
