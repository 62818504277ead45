// Package cache implements the cache port on Redis. It keeps short-lived
// registration state and the per-user unread counters.
package cache

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/goldstream/goldstream/internal/domain"
)

// Redis implements domain.Cache.
type Redis struct {
	client *redis.Client
}

// New constructs the cache over an existing client.
func New(client *redis.Client) *Redis { return &Redis{client: client} }

func attemptKey(email, token string) string { return "reg:attempt:" + email + ":" + token }
func pendingKey(token string) string        { return "reg:pending:" + token }
func counterKey(userID int64, name string) string {
	return "counter:" + strconv.FormatInt(userID, 10) + ":" + name
}

// CountAttempts counts the live registration attempts for an email.
func (r *Redis) CountAttempts(ctx domain.Context, email string) (int, error) {
	keys, err := r.client.Keys(ctx, attemptKey(email, "*")).Result()
	if err != nil {
		return 0, fmt.Errorf("op=cache.count_attempts: %w", err)
	}
	return len(keys), nil
}

// AddAttempt records one registration attempt. The key expires with ttl so
// the throttle window slides on its own.
func (r *Redis) AddAttempt(ctx domain.Context, email, token string, ttl time.Duration) error {
	if err := r.client.Set(ctx, attemptKey(email, token), 1, ttl).Err(); err != nil {
		return fmt.Errorf("op=cache.add_attempt: %w", err)
	}
	return nil
}

// StorePending keeps a serialized registration under its confirm token.
func (r *Redis) StorePending(ctx domain.Context, token string, payload []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, pendingKey(token), payload, ttl).Err(); err != nil {
		return fmt.Errorf("op=cache.store_pending: %w", err)
	}
	return nil
}

// LoadPending returns the pending registration for a confirm token, or
// domain.ErrNotFound when the token expired or never existed.
func (r *Redis) LoadPending(ctx domain.Context, token string) ([]byte, error) {
	b, err := r.client.Get(ctx, pendingKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("op=cache.load_pending: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("op=cache.load_pending: %w", err)
	}
	return b, nil
}

// DeletePending drops a consumed confirm token.
func (r *Redis) DeletePending(ctx domain.Context, token string) error {
	if err := r.client.Del(ctx, pendingKey(token)).Err(); err != nil {
		return fmt.Errorf("op=cache.delete_pending: %w", err)
	}
	return nil
}

// IncrCounter bumps an unread counter for the user.
func (r *Redis) IncrCounter(ctx domain.Context, userID int64, name string) error {
	if err := r.client.Incr(ctx, counterKey(userID, name)).Err(); err != nil {
		return fmt.Errorf("op=cache.incr_counter: %w", err)
	}
	return nil
}

// Counters reads several counters at once; missing counters read as zero.
func (r *Redis) Counters(ctx domain.Context, userID int64, names ...string) (map[string]int64, error) {
	keys := make([]string, len(names))
	for i, n := range names {
		keys[i] = counterKey(userID, n)
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("op=cache.counters: %w", err)
	}
	out := make(map[string]int64, len(names))
	for i, n := range names {
		out[n] = 0
		if s, ok := vals[i].(string); ok {
			v, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("op=cache.counters: %w", err)
			}
			out[n] = v
		}
	}
	return out, nil
}

// ResetCounter zeroes an unread counter.
func (r *Redis) ResetCounter(ctx domain.Context, userID int64, name string) error {
	if err := r.client.Del(ctx, counterKey(userID, name)).Err(); err != nil {
		return fmt.Errorf("op=cache.reset_counter: %w", err)
	}
	return nil
}
