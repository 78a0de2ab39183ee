package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/onnwee/chatline/chatlog"
)

type fakeQuerier struct {
	records []chatlog.Record
	err     error
	got     chatlog.QueryOpts
}

func (f *fakeQuerier) Query(_ context.Context, q chatlog.QueryOpts) ([]chatlog.Record, error) {
	f.got = q
	return f.records, f.err
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name    string
		since   string
		until   string
		wantErr bool
	}{
		{name: "no bounds"},
		{name: "both bounds", since: "2026-03-01T00:00:00Z", until: "2026-03-02T00:00:00Z"},
		{name: "bad since", since: "yesterday", wantErr: true},
		{name: "inverted", since: "2026-03-02T00:00:00Z", until: "2026-03-01T00:00:00Z", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := buildQuery("forsen", tt.since, tt.until, 50)
			if (err != nil) != tt.wantErr {
				t.Fatalf("buildQuery() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && (q.Channel != "forsen" || q.Limit != 50) {
				t.Errorf("buildQuery() = %+v", q)
			}
		})
	}
}

func TestExport(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeQuerier{records: []chatlog.Record{
		{ID: "m1", ChannelID: "100", ChannelLogin: "forsen", Kind: "user", AuthorLogin: "chatter", Text: "hello, world", Timestamp: ts},
		{ID: "s1", ChannelID: "100", ChannelLogin: "forsen", Kind: "system", Context: "clear", Text: "Chat was cleared.", Timestamp: ts},
	}}
	var buf bytes.Buffer
	n, err := export(context.Background(), store, chatlog.QueryOpts{Channel: "forsen"}, &buf)
	if err != nil {
		t.Fatalf("export() error = %v", err)
	}
	if n != 2 {
		t.Errorf("rows = %d, want 2", n)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("csv lines = %d, want 3:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "id,channel_id,channel,kind") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], `"hello, world"`) {
		t.Errorf("row = %q", lines[1])
	}
	if store.got.Channel != "forsen" {
		t.Errorf("query = %+v", store.got)
	}
}

func TestExportQueryError(t *testing.T) {
	store := &fakeQuerier{err: errors.New("db down")}
	if _, err := export(context.Background(), store, chatlog.QueryOpts{}, &bytes.Buffer{}); err == nil {
		t.Error("expected error")
	}
}

func TestExportFromSQLite(t *testing.T) {
	ctx := context.Background()
	store, err := chatlog.OpenSQL(ctx, "sqlite://:memory:")
	if err != nil {
		t.Fatalf("OpenSQL() error = %v", err)
	}
	defer store.Close()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := store.Write(ctx, []chatlog.Record{
		{Op: chatlog.OpAdd, ID: "m1", ChannelID: "100", ChannelLogin: "forsen", Kind: "user", Text: "a", Timestamp: ts},
		{Op: chatlog.OpAdd, ID: "m2", ChannelID: "200", ChannelLogin: "xqc", Kind: "user", Text: "b", Timestamp: ts},
	}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	var buf bytes.Buffer
	n, err := export(ctx, store, chatlog.QueryOpts{Channel: "xqc"}, &buf)
	if err != nil {
		t.Fatalf("export() error = %v", err)
	}
	if n != 1 || !strings.Contains(buf.String(), "m2") || strings.Contains(buf.String(), "m1,") {
		t.Errorf("export = %d rows:\n%s", n, buf.String())
	}
}
