//go:build integration

package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"landtrust/internal/ratelimit"
	"landtrust/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *ratelimit.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = ratelimit.NewRedisStore(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestWindowIsSharedAndBounded() {
	ctx := context.Background()
	policy := ratelimit.Policy{Limit: 3, Window: time.Minute}

	for i := range 3 {
		r, err := s.store.Allow(ctx, "writes:user:1", policy)
		s.Require().NoError(err)
		s.True(r.Allowed)
		s.Equal(2-i, r.Remaining)
	}

	r, err := s.store.Allow(ctx, "writes:user:1", policy)
	s.Require().NoError(err)
	s.False(r.Allowed)
	s.Positive(r.RetryAfter)

	ttl, err := s.redis.Client.PTTL(ctx, "landtrust:ratelimit:writes:user:1").Result()
	s.Require().NoError(err)
	s.LessOrEqual(ttl, time.Minute)

	r, err = s.store.Allow(ctx, "writes:user:2", policy)
	s.Require().NoError(err)
	s.True(r.Allowed)
}
