// Command chatline is a terminal Twitch chat client.
// It:
//   - Loads configuration and initializes structured logging.
//   - Connects to Twitch chat, EventSub and the 7TV EventAPI and routes their
//     events into per-channel timelines printed to stdout.
//   - Reads lines from stdin: slash commands or messages for the current channel.
//   - Optionally archives every timeline message to Postgres, SQLite or Redis.
//   - Exposes a diagnostics HTTP server with /healthz, /readyz, /channels and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	slogmulti "github.com/samber/slog-multi"

	"github.com/onnwee/chatline/app"
	"github.com/onnwee/chatline/config"
	"github.com/onnwee/chatline/server"
	"github.com/onnwee/chatline/telemetry"
)

var version = "dev"

func main() {
	noInput := flag.Bool("no-input", false, "do not read messages from stdin")
	flag.Parse()

	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	// Errors are also written to stderr as JSON so they survive a busy chat on stdout.
	diagnostics := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})
	logger := slog.New(slogmulti.Fanout(handler, diagnostics))
	slog.SetDefault(logger)
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetry.Init()
	shutdownTracing, err := telemetry.InitTracing(ctx, telemetry.TracingOptions{
		Service:     "chatline",
		Version:     version,
		Endpoint:    cfg.OTLPEndpoint,
		SampleRatio: cfg.TraceSampleRatio,
	})
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Error("tracing shutdown failed", slog.Any("err", err))
		}
	}()
	slog.Info("starting", slog.String("version", version), slog.Bool("tracing", telemetry.TracingEnabled()))

	client, err := app.New(ctx, cfg, logger, app.WithOutput(os.Stdout))
	if err != nil {
		slog.Error("client setup failed", slog.Any("err", err))
		os.Exit(1)
	}

	checks := []server.Check{{Name: "startup", Fn: func(context.Context) error { return client.Ready() }}}
	if client.SQL != nil {
		checks = append(checks, server.Check{Name: "chatlog", Fn: client.SQL.DB().PingContext})
	}
	go func() {
		if err := server.Start(ctx, cfg.HTTPAddr, server.NewHandlers(client.Session, checks...)); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	var in io.Reader = os.Stdin
	if *noInput {
		in = nil
	}
	if err := client.Run(ctx, in); err != nil {
		slog.Error("client stopped", slog.Any("err", err))
		os.Exit(1)
	}
	slog.Info("shutting down")
}
