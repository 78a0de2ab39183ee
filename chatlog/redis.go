package chatlog

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures a RedisStore.
type RedisConfig struct {
	Client *redis.Client
	Stream string
	// MaxLen caps the stream approximately; zero means 100000.
	MaxLen int64
}

// RedisStore appends records to a Redis stream.
type RedisStore struct {
	client *redis.Client
	stream string
	maxLen int64
}

// DefaultStream is the stream key used when none is configured.
const DefaultStream = "chatline:messages"

// NewRedisStore returns a store on cfg.Client.
func NewRedisStore(cfg RedisConfig) *RedisStore {
	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = 100000
	}
	stream := cfg.Stream
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisStore{client: cfg.Client, stream: stream, maxLen: maxLen}
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	if s.client == nil {
		return errors.New("chatlog: redis client is nil")
	}
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("chatlog: redis ping: %w", err)
	}
	return nil
}

func recordValues(r Record) map[string]any {
	return map[string]any{
		"op":         string(r.Op),
		"id":         r.ID,
		"channel_id": r.ChannelID,
		"channel":    r.ChannelLogin,
		"kind":       r.Kind,
		"author_id":  r.AuthorID,
		"author":     r.AuthorLogin,
		"context":    r.Context,
		"text":       r.Text,
		"recent":     strconv.FormatBool(r.Recent),
		"ts":         strconv.FormatInt(r.Timestamp.UTC().UnixMilli(), 10),
	}
}

// Write pipelines one XADD per record.
func (s *RedisStore) Write(ctx context.Context, batch []Record) error {
	if s.client == nil {
		return errors.New("chatlog: redis client is nil")
	}
	if len(batch) == 0 {
		return nil
	}
	pipe := s.client.Pipeline()
	for _, r := range batch {
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: s.stream,
			MaxLen: s.maxLen,
			Approx: true,
			Values: recordValues(r),
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("chatlog: redis xadd: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
