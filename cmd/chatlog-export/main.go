// Package main exports the chat archive as CSV.
//
// Usage:
//
//	chatlog-export [--dsn DSN] [--channel LOGIN] [--since RFC3339] [--until RFC3339] [--limit N] [--out FILE]
//
// Flags:
//
//	--dsn:     archive DSN, postgres://... or sqlite://path (default: CHATLOG_DSN)
//	--channel: export one channel only
//	--since:   first timestamp to include
//	--until:   exclusive upper bound
//	--limit:   maximum rows (default 10000)
//	--out:     output file (default: stdout)
//
// Example:
//
//	export CHATLOG_DSN="sqlite://chatline.db"
//	./chatlog-export --channel forsen --since 2026-03-01T00:00:00Z > forsen.csv
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/joho/godotenv"

	"github.com/onnwee/chatline/chatlog"
)

// querier is the read side of the SQL archive.
type querier interface {
	Query(ctx context.Context, q chatlog.QueryOpts) ([]chatlog.Record, error)
}

func main() {
	_ = godotenv.Load()

	dsn := flag.String("dsn", os.Getenv("CHATLOG_DSN"), "archive DSN (postgres://... or sqlite://path)")
	channel := flag.String("channel", "", "export one channel only")
	since := flag.String("since", "", "first timestamp to include (RFC3339)")
	until := flag.String("until", "", "exclusive upper bound (RFC3339)")
	limit := flag.Int("limit", 10000, "maximum rows")
	outPath := flag.String("out", "", "output file (default stdout)")
	flag.Parse()

	// stdout carries the CSV
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if *dsn == "" {
		slog.Error("--dsn or CHATLOG_DSN is required")
		os.Exit(1)
	}
	opts, err := buildQuery(*channel, *since, *until, *limit)
	if err != nil {
		slog.Error("invalid flags", slog.Any("err", err))
		os.Exit(1)
	}

	ctx := context.Background()
	store, err := chatlog.OpenSQL(ctx, *dsn)
	if err != nil {
		slog.Error("failed to open archive", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("failed to close archive", slog.Any("err", err))
		}
	}()

	var out io.Writer = os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			slog.Error("failed to create output", slog.Any("err", err))
			os.Exit(1)
		}
		defer func() {
			if err := f.Close(); err != nil {
				slog.Warn("failed to close output", slog.Any("err", err))
			}
		}()
		out = f
	}

	n, err := export(ctx, store, opts, out)
	if err != nil {
		slog.Error("export failed", slog.Any("err", err))
		os.Exit(1)
	}
	slog.Info("export completed", slog.Int("rows", n), slog.String("channel", opts.Channel))
}

func buildQuery(channel, since, until string, limit int) (chatlog.QueryOpts, error) {
	q := chatlog.QueryOpts{Channel: channel, Limit: limit}
	if since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return q, fmt.Errorf("invalid --since (RFC3339): %w", err)
		}
		q.Since = t
	}
	if until != "" {
		t, err := time.Parse(time.RFC3339, until)
		if err != nil {
			return q, fmt.Errorf("invalid --until (RFC3339): %w", err)
		}
		q.Until = t
	}
	if !q.Since.IsZero() && !q.Until.IsZero() && !q.Until.After(q.Since) {
		return q, fmt.Errorf("--until must be after --since")
	}
	return q, nil
}

// export writes the matching records as CSV with a header row and returns
// the number of rows written.
func export(ctx context.Context, store querier, q chatlog.QueryOpts, w io.Writer) (int, error) {
	records, err := store.Query(ctx, q)
	if err != nil {
		return 0, err
	}
	if err := gocsv.Marshal(&records, w); err != nil {
		return 0, fmt.Errorf("write csv: %w", err)
	}
	return len(records), nil
}
