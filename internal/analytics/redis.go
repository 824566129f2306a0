package analytics

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/shubh-37/multipost-agent/internal/models"
)

const DefaultStream = "multipost:analytics"

// RedisSink appends events to a Redis stream, capped at roughly maxLen entries
type RedisSink struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisSink parses a redis:// URL and verifies the connection
func NewRedisSink(ctx context.Context, redisURL string) (*RedisSink, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("unable to ping redis: %w", err)
	}

	return &RedisSink{
		client: client,
		stream: DefaultStream,
		maxLen: 10000,
	}, nil
}

func (s *RedisSink) Record(ctx context.Context, event *models.AnalyticsEvent) error {
	outcomes, err := json.Marshal(event.Outcomes)
	if err != nil {
		return fmt.Errorf("failed to marshal outcomes: %w", err)
	}
	platforms, err := json.Marshal(event.Platforms)
	if err != nil {
		return fmt.Errorf("failed to marshal platforms: %w", err)
	}

	err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"id":            event.ID,
			"type":          event.Type,
			"platforms":     string(platforms),
			"success_count": event.SuccessCount,
			"error_count":   event.ErrorCount,
			"text_length":   event.TextLength,
			"has_media":     event.HasMedia,
			"timed_out":     event.TimedOut,
			"outcomes":      string(outcomes),
			"timestamp":     event.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to append analytics event: %w", err)
	}

	return nil
}

// Health checks the redis connection
func (s *RedisSink) Health(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}
