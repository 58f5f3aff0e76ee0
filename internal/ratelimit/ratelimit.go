// Package ratelimit implements the fixed-window per-user limiter backed by
// redis. The check/increment split is deliberate: consumers decide whether a
// request is meaningful enough to charge against the quota, so non-command
// chat traffic never burns budget.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type FixedWindow struct {
	client *redis.Client
	window time.Duration
	max    int
}

func NewFixedWindow(client *redis.Client, window time.Duration, max int) *FixedWindow {
	return &FixedWindow{client: client, window: window, max: max}
}

func (fw *FixedWindow) key(userID int64) string {
	windowSecs := int64(fw.window / time.Second)
	windowStart := time.Now().Unix() / windowSecs * windowSecs
	return fmt.Sprintf("rate_limit:%d:%d", userID, windowStart)
}

// IsAllowed reports whether the user is under quota in the current window.
// It never mutates the counter.
func (fw *FixedWindow) IsAllowed(ctx context.Context, userID int64) (bool, error) {
	raw, err := fw.client.Get(ctx, fw.key(userID)).Result()
	if err == redis.Nil {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("rate limit get: %w", err)
	}
	current, err := strconv.Atoi(raw)
	if err != nil {
		return false, fmt.Errorf("rate limit counter %q: %w", raw, err)
	}
	return current < fw.max, nil
}

// Increment charges one request against the current window and returns the
// new count. The window TTL is attached on the first increment.
func (fw *FixedWindow) Increment(ctx context.Context, userID int64) (int64, error) {
	key := fw.key(userID)
	count, err := fw.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("rate limit incr: %w", err)
	}
	if count == 1 {
		if err := fw.client.Expire(ctx, key, fw.window).Err(); err != nil {
			return count, fmt.Errorf("rate limit expire: %w", err)
		}
	}
	return count, nil
}
