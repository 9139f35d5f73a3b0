package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultQueue is the redis list holding pending messages.
const DefaultQueue = "job-matcher:notifications"

// Outbox accepts messages for later delivery.
type Outbox interface {
	Enqueue(ctx context.Context, msg Message) error
}

// Queue is an Outbox that can also be drained.
type Queue interface {
	Outbox
	// Dequeue waits up to timeout for a message. ok is false when none arrived.
	Dequeue(ctx context.Context, timeout time.Duration) (msg Message, ok bool, err error)
}

type listClient interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
}

// RedisOutbox keeps messages in a redis list: LPUSH on enqueue, BRPOP on dequeue, so the
// oldest message is delivered first.
type RedisOutbox struct {
	client listClient
	key    string
}

func NewRedisOutbox(client *redis.Client, key string) *RedisOutbox {
	return newRedisOutbox(client, key)
}

func newRedisOutbox(client listClient, key string) *RedisOutbox {
	if key == "" {
		key = DefaultQueue
	}
	return &RedisOutbox{client: client, key: key}
}

// Connect parses redisURL and verifies connectivity.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

func (o *RedisOutbox) Enqueue(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := o.client.LPush(ctx, o.key, payload).Err(); err != nil {
		return fmt.Errorf("enqueue message %s: %w", msg.ID, err)
	}
	return nil
}

func (o *RedisOutbox) Dequeue(ctx context.Context, timeout time.Duration) (Message, bool, error) {
	res, err := o.client.BRPop(ctx, timeout, o.key).Result()
	if errors.Is(err, redis.Nil) {
		return Message{}, false, nil
	}
	if err != nil {
		return Message{}, false, fmt.Errorf("dequeue message: %w", err)
	}
	// BRPOP answers [key, value].
	if len(res) != 2 {
		return Message{}, false, fmt.Errorf("dequeue message: unexpected reply of %d elements", len(res))
	}

	var msg Message
	if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
		return Message{}, false, fmt.Errorf("decode message: %w", err)
	}
	return msg, true, nil
}
