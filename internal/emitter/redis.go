package emitter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vietddude/zkagent/internal/core/domain"
)

// Publisher is the subset of the Redis client used by RedisEmitter.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) (int64, error)
	Close() error
}

// RedisEmitter publishes events as JSON on a Redis pub/sub channel.
type RedisEmitter struct {
	pub     Publisher
	channel string
}

// NewRedisEmitter creates an emitter publishing to channel.
func NewRedisEmitter(pub Publisher, channel string) *RedisEmitter {
	return &RedisEmitter{pub: pub, channel: channel}
}

func (r *RedisEmitter) Emit(ctx context.Context, event *domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := r.pub.Publish(ctx, r.channel, payload); err != nil {
		return fmt.Errorf("redis emit %s: %w", event.Kind, err)
	}
	return nil
}

func (r *RedisEmitter) EmitBatch(ctx context.Context, events []*domain.Event) error {
	return emitEach(ctx, r, events)
}

func (r *RedisEmitter) Close() error {
	return r.pub.Close()
}
