// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/solanagram/solanagram/models"
)

// Redis key layouts, kept compatible with the rest of the platform:
// cached_code:{phone}, sms_counter:{phone}, sms_reset:{phone}.
const (
	codeKeyPrefix       = "cached_code:"
	smsCounterKeyPrefix = "sms_counter:"
	smsResetKeyPrefix   = "sms_reset:"
)

// redisCodeCache is the Redis-backed pending-code cache, used when
// REDIS_HOST is configured so pending codes survive orchestrator restarts
// and are shared across replicas.
type redisCodeCache struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisCodeCache constructs a CodeCache over the given Redis client.
func NewRedisCodeCache(client *redis.Client) CodeCache {
	return &redisCodeCache{client: client, now: time.Now}
}

func (c *redisCodeCache) Get(ctx context.Context, phone string) (*PendingCode, bool, error) {
	raw, err := c.client.Get(ctx, codeKeyPrefix+phone).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get pending code: %w", err)
	}

	var entry PendingCode
	if err := json.Unmarshal(raw, &entry); err != nil {
		// Corrupted entry: drop it rather than poison every lookup.
		_ = c.client.Del(ctx, codeKeyPrefix+phone).Err()
		return nil, false, nil
	}
	if entry.Expired(c.now()) {
		_ = c.client.Del(ctx, codeKeyPrefix+phone).Err()
		return nil, false, nil
	}

	return &entry, true, nil
}

func (c *redisCodeCache) Put(ctx context.Context, code *PendingCode) error {
	raw, err := json.Marshal(code)
	if err != nil {
		return fmt.Errorf("marshal pending code: %w", err)
	}

	ttl := time.Until(code.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	if err := c.client.Set(ctx, codeKeyPrefix+code.Phone, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis put pending code: %w", err)
	}
	return nil
}

func (c *redisCodeCache) Delete(ctx context.Context, phone string) error {
	if err := c.client.Del(ctx, codeKeyPrefix+phone).Err(); err != nil {
		return fmt.Errorf("redis delete pending code: %w", err)
	}
	return nil
}

// redisSMSCounter is the Redis-backed SMS counter.
type redisSMSCounter struct {
	client *redis.Client
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRedisSMSCounter constructs an SMSCounter over the given Redis client.
func NewRedisSMSCounter(client *redis.Client, limit int, window time.Duration) SMSCounter {
	return &redisSMSCounter{client: client, limit: limit, window: window, now: time.Now}
}

func (c *redisSMSCounter) load(ctx context.Context, phone string) (count int, resetAt int64, err error) {
	raw, err := c.client.Get(ctx, smsCounterKeyPrefix+phone).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, 0, fmt.Errorf("redis get sms counter: %w", err)
	}
	if raw != "" {
		count, _ = strconv.Atoi(raw)
	}

	rawReset, err := c.client.Get(ctx, smsResetKeyPrefix+phone).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, 0, fmt.Errorf("redis get sms reset: %w", err)
	}
	if rawReset != "" {
		resetAt, _ = strconv.ParseInt(rawReset, 10, 64)
	}

	// Window elapsed: reset both keys.
	if resetAt != 0 && c.now().Unix() > resetAt {
		_ = c.client.Del(ctx, smsCounterKeyPrefix+phone, smsResetKeyPrefix+phone).Err()
		return 0, 0, nil
	}

	return count, resetAt, nil
}

func (c *redisSMSCounter) status(count int, resetAt int64) models.SMSCounterStatus {
	remaining := c.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return models.SMSCounterStatus{
		Count:     count,
		Limit:     c.limit,
		Remaining: remaining,
		ResetTime: resetAt,
	}
}

func (c *redisSMSCounter) Status(ctx context.Context, phone string) (models.SMSCounterStatus, error) {
	count, resetAt, err := c.load(ctx, phone)
	if err != nil {
		return models.SMSCounterStatus{}, err
	}
	return c.status(count, resetAt), nil
}

func (c *redisSMSCounter) Increment(ctx context.Context, phone string) (models.SMSCounterStatus, error) {
	count, resetAt, err := c.load(ctx, phone)
	if err != nil {
		return models.SMSCounterStatus{}, err
	}

	count++
	if err := c.client.Set(ctx, smsCounterKeyPrefix+phone, count, 0).Err(); err != nil {
		return models.SMSCounterStatus{}, fmt.Errorf("redis set sms counter: %w", err)
	}
	if resetAt == 0 {
		resetAt = c.now().Add(c.window).Unix()
		if err := c.client.Set(ctx, smsResetKeyPrefix+phone, resetAt, 0).Err(); err != nil {
			return models.SMSCounterStatus{}, fmt.Errorf("redis set sms reset: %w", err)
		}
	}

	return c.status(count, resetAt), nil
}

func (c *redisSMSCounter) SyncFloodWait(ctx context.Context, phone string, retryAfter time.Duration) error {
	resetAt := c.now().Add(retryAfter).Unix()
	if err := c.client.Set(ctx, smsCounterKeyPrefix+phone, c.limit, 0).Err(); err != nil {
		return fmt.Errorf("redis sync flood wait: %w", err)
	}
	if err := c.client.Set(ctx, smsResetKeyPrefix+phone, resetAt, 0).Err(); err != nil {
		return fmt.Errorf("redis sync flood wait: %w", err)
	}
	return nil
}

func (c *redisSMSCounter) Reset(ctx context.Context, phone string) error {
	if err := c.client.Del(ctx, smsCounterKeyPrefix+phone, smsResetKeyPrefix+phone).Err(); err != nil {
		return fmt.Errorf("redis reset sms counter: %w", err)
	}
	return nil
}
