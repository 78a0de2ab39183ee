// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	EventsDispatched *prometheus.CounterVec
	EventsIgnored    *prometheus.CounterVec
	HandlerFailures  *prometheus.CounterVec
	TimelineMessages *prometheus.CounterVec
	RateLimitHits    *prometheus.CounterVec
	ViewerLookups    *prometheus.CounterVec
	CommandsExecuted *prometheus.CounterVec
	ChatlogDropped   prometheus.Counter

	// Histograms (seconds)
	LookupDuration *prometheus.HistogramVec

	// Gauges
	JoinedChannels prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		EventsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{Name: "chatline_events_dispatched_total", Help: "Events routed to a handler"}, []string{"source", "event"})
		EventsIgnored = promauto.NewCounterVec(prometheus.CounterOpts{Name: "chatline_events_ignored_total", Help: "Events with no registered handler or no target"}, []string{"source"})
		HandlerFailures = promauto.NewCounterVec(prometheus.CounterOpts{Name: "chatline_handler_failures_total", Help: "Handler invocations that returned an error"}, []string{"event"})
		TimelineMessages = promauto.NewCounterVec(prometheus.CounterOpts{Name: "chatline_timeline_messages_total", Help: "Messages added to channel timelines"}, []string{"kind"})
		RateLimitHits = promauto.NewCounterVec(prometheus.CounterOpts{Name: "chatline_ratelimit_hits_total", Help: "Outgoing messages rejected by the local rate limiter"}, []string{"kind"})
		ViewerLookups = promauto.NewCounterVec(prometheus.CounterOpts{Name: "chatline_viewer_lookups_total", Help: "Identity lookups issued for viewers"}, []string{"result"})
		CommandsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{Name: "chatline_commands_total", Help: "Slash commands executed"}, []string{"command", "outcome"})
		ChatlogDropped = promauto.NewCounter(prometheus.CounterOpts{Name: "chatline_chatlog_dropped_total", Help: "Archive records dropped because the buffer was full"})
		LookupDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{Name: "chatline_lookup_duration_seconds", Help: "Metadata lookup duration seconds", Buckets: prometheus.DefBuckets}, []string{"op"})
		JoinedChannels = promauto.NewGauge(prometheus.GaugeOpts{Name: "chatline_joined_channels", Help: "Current number of joined channels"})
	})
}

// Inc increments a labelled counter if metrics are initialised.
func Inc(vec *prometheus.CounterVec, labels ...string) {
	if vec != nil {
		vec.WithLabelValues(labels...).Inc()
	}
}

// SetJoinedChannels records the current joined channel count.
func SetJoinedChannels(n int) {
	if JoinedChannels != nil {
		JoinedChannels.Set(float64(n))
	}
}

// TimeLookup measures fn and records it under op if metrics are initialised.
func TimeLookup(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	if LookupDuration != nil {
		LookupDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
	return err
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
