package progress

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/go-redis/redis/v8"
)

// DefaultStream is the Redis stream progress events are published to.
const DefaultStream = "climate_progress"

// RedisSink publishes events to a Redis stream. Publish failures are logged and
// never interrupt the run.
type RedisSink struct {
	client *redis.Client
	stream string
	logger *slog.Logger
}

func NewRedisSink(client *redis.Client, stream string, logger *slog.Logger) *RedisSink {
	if stream == "" {
		stream = DefaultStream
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisSink{client: client, stream: stream, logger: logger}
}

func (s *RedisSink) Emit(ctx context.Context, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("failed to serialize progress event", "error", err)
		return
	}

	err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{"kind": string(ev.Kind), "data": string(data)},
	}).Err()
	if err != nil {
		s.logger.Warn("failed to publish progress event", "stream", s.stream, "error", err)
	}
}
