package presence

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisTracker keeps heartbeats in Redis with a TTL equal to the window, so
// stale keys disappear on their own.
type RedisTracker struct {
	client *redis.Client
	prefix string
	window time.Duration
	now    func() time.Time
}

// NewRedisTracker creates a RedisTracker on an existing client.
func NewRedisTracker(client *redis.Client, window time.Duration, now func() time.Time) *RedisTracker {
	if window <= 0 {
		window = DefaultWindow
	}
	if now == nil {
		now = time.Now
	}
	return &RedisTracker{client: client, prefix: "hippo:typing", window: window, now: now}
}

func (t *RedisTracker) key(conversationID uint, role string) string {
	return fmt.Sprintf("%s:%d:%s", t.prefix, conversationID, role)
}

// Touch stamps the heartbeat.
func (t *RedisTracker) Touch(ctx context.Context, conversationID uint, role string) error {
	if err := checkRole(role); err != nil {
		return err
	}
	stamp := strconv.FormatInt(t.now().UnixMilli(), 10)
	if err := t.client.Set(ctx, t.key(conversationID, role), stamp, t.window).Err(); err != nil {
		return fmt.Errorf("presence: redis set: %w", err)
	}
	return nil
}

// Clear removes the heartbeat.
func (t *RedisTracker) Clear(ctx context.Context, conversationID uint, role string) error {
	if err := checkRole(role); err != nil {
		return err
	}
	if err := t.client.Del(ctx, t.key(conversationID, role)).Err(); err != nil {
		return fmt.Errorf("presence: redis del: %w", err)
	}
	return nil
}

// IsTyping reports whether a heartbeat inside the window exists.
func (t *RedisTracker) IsTyping(ctx context.Context, conversationID uint, role string) (bool, error) {
	if err := checkRole(role); err != nil {
		return false, err
	}
	val, err := t.client.Get(ctx, t.key(conversationID, role)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("presence: redis get: %w", err)
	}
	ms, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return false, fmt.Errorf("presence: bad stamp %q: %w", val, err)
	}
	return Within(t.now(), time.UnixMilli(ms), t.window), nil
}
