package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "landtrust:ratelimit:"

// RedisStore shares windows across instances using one sorted set per key,
// scored by request time in microseconds.
type RedisStore struct {
	client redis.Cmdable
	now    func() time.Time
}

func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func (s *RedisStore) Allow(ctx context.Context, key string, policy Policy) (*Result, error) {
	now := s.now()
	k := keyPrefix + key
	cutoff := strconv.FormatInt(now.Add(-policy.Window).UnixMicro(), 10)

	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, k, "-inf", cutoff)
	count := pipe.ZCard(ctx, k)
	oldest := pipe.ZRangeWithScores(ctx, k, 0, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("read rate limit window: %w", err)
	}

	if int(count.Val()) >= policy.Limit {
		resetAt := now.Add(policy.Window)
		if first := oldest.Val(); len(first) > 0 {
			resetAt = time.UnixMicro(int64(first[0].Score)).Add(policy.Window)
		}
		return &Result{
			Allowed:    false,
			Limit:      policy.Limit,
			ResetAt:    resetAt,
			RetryAfter: resetAt.Sub(now),
		}, nil
	}

	// Two racing requests may both pass the count; the window tolerates that
	// small overshoot rather than paying for a Lua script.
	pipe = s.client.TxPipeline()
	pipe.ZAdd(ctx, k, redis.Z{Score: float64(now.UnixMicro()), Member: uuid.NewString()})
	pipe.PExpire(ctx, k, policy.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("record rate limit hit: %w", err)
	}

	resetAt := now.Add(policy.Window)
	if first := oldest.Val(); len(first) > 0 {
		resetAt = time.UnixMicro(int64(first[0].Score)).Add(policy.Window)
	}
	return &Result{
		Allowed:   true,
		Limit:     policy.Limit,
		Remaining: policy.Limit - int(count.Val()) - 1,
		ResetAt:   resetAt,
	}, nil
}
