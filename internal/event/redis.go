package event

import (
	"context"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"
)

// DefaultStreamKey is the Redis Stream key used when none is configured.
const DefaultStreamKey = "pulsenote:events"

// DefaultStreamMaxLen caps the stream length (approximate trimming) so an
// unconsumed stream cannot grow without bound.
const DefaultStreamMaxLen = 1_000_000

// RedisStreamSink appends records to a Redis Stream via XADD.
// Consumers read the stream with consumer groups; the sink itself only
// appends.
type RedisStreamSink struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisStreamSink creates a sink appending to the given stream key.
// An empty stream key uses DefaultStreamKey.
func NewRedisStreamSink(client *redis.Client, stream string) *RedisStreamSink {
	if stream == "" {
		stream = DefaultStreamKey
	}
	return &RedisStreamSink{
		client: client,
		stream: stream,
		maxLen: DefaultStreamMaxLen,
	}
}

// Persist appends a record to the stream. The record is CBOR-encoded into
// a single payload field alongside routing metadata.
func (s *RedisStreamSink) Persist(ctx context.Context, rec Record) error {
	payload, err := cbor.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", rec.EventID(), err)
	}

	postID, userID := rec.Subject()
	err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"id":      rec.EventID(),
			"kind":    string(rec.Kind()),
			"post_id": postID,
			"user_id": userID,
			"payload": payload,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to append record %s to stream %s: %w", rec.EventID(), s.stream, err)
	}
	return nil
}

// Name implements Sink.
func (s *RedisStreamSink) Name() string { return "redis-stream" }
