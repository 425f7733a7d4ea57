package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/marginalia-app/marginalia-api/internal/storage"
	"github.com/redis/go-redis/v9"
)

// RedisStore counts with a sorted set per key: one member per consumed slot,
// scored by its epoch-ms timestamp. Members older than the window are trimmed
// on every call, which gives a continuously sliding window. Each primitive is
// a single Lua script so concurrent instances can't double-spend a slot.
type RedisStore struct {
	redis *storage.RedisClient
	now   func() time.Time
}

func NewRedisStore(redis *storage.RedisClient) *RedisStore {
	return &RedisStore{
		redis: redis,
		now:   time.Now,
	}
}

// Trims the window, then admits and records the request only if the count is
// still under the limit. Returns {allowed, remaining, resetAtEpochMs}.
var consumeScript = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local member = ARGV[4]

	redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
	local count = redis.call('ZCARD', key)

	if count < limit then
		redis.call('ZADD', key, now, member)
		redis.call('PEXPIRE', key, window)
		local reset = now + window
		local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
		if oldest[2] then
			reset = tonumber(oldest[2]) + window
		end
		return {1, limit - count - 1, reset}
	end

	local reset = now + window
	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	if oldest[2] then
		reset = tonumber(oldest[2]) + window
	end
	return {0, 0, reset}
`)

// Same trim and count as consume, but never records anything.
var peekScript = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])

	redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
	local count = redis.call('ZCARD', key)

	local remaining = limit - count
	if remaining < 0 then
		remaining = 0
	end

	local allowed = 0
	if count < limit then
		allowed = 1
	end

	local reset = now + window
	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	if oldest[2] then
		reset = tonumber(oldest[2]) + window
	end
	return {allowed, remaining, reset}
`)

func (s *RedisStore) Consume(ctx context.Context, key string, limit int, window time.Duration) (Consumption, error) {
	result, err := s.redis.RunScript(ctx, consumeScript, []string{key},
		s.now().UnixMilli(),
		window.Milliseconds(),
		limit,
		uuid.NewString(),
	)
	if err != nil {
		return Consumption{}, fmt.Errorf("consume script failed: %w", err)
	}

	return parseConsumption(result, limit)
}

func (s *RedisStore) Peek(ctx context.Context, key string, limit int, window time.Duration) (Consumption, error) {
	result, err := s.redis.RunScript(ctx, peekScript, []string{key},
		s.now().UnixMilli(),
		window.Milliseconds(),
		limit,
	)
	if err != nil {
		return Consumption{}, fmt.Errorf("peek script failed: %w", err)
	}

	return parseConsumption(result, limit)
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.redis.Del(ctx, key)
}

// Parses the [allowed, remaining, resetAtEpochMs] reply shared by both scripts.
func parseConsumption(result interface{}, limit int) (Consumption, error) {
	values, ok := result.([]interface{})
	if !ok || len(values) != 3 {
		return Consumption{}, fmt.Errorf("unexpected script reply: %v", result)
	}

	allowed, ok := values[0].(int64)
	if !ok {
		return Consumption{}, fmt.Errorf("unexpected allowed value: %v", values[0])
	}

	remaining, ok := values[1].(int64)
	if !ok {
		return Consumption{}, fmt.Errorf("unexpected remaining value: %v", values[1])
	}

	resetAt, ok := values[2].(int64)
	if !ok {
		return Consumption{}, fmt.Errorf("unexpected reset value: %v", values[2])
	}

	return Consumption{
		Allowed:   allowed == 1,
		Remaining: int(remaining),
		Limit:     limit,
		ResetAt:   resetAt,
	}, nil
}
