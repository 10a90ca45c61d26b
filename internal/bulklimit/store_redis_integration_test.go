//go:build integration

package bulklimit_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"adminconsole/internal/bulklimit"
	"adminconsole/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *bulklimit.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = bulklimit.NewRedisStore(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestAllowUpToLimit() {
	ctx := context.Background()
	for i := range 3 {
		result, err := s.store.Allow(ctx, "admin:a1", 3, time.Minute)
		s.Require().NoError(err)
		s.True(result.Allowed)
		s.Equal(3-(i+1), result.Remaining)
	}

	result, err := s.store.Allow(ctx, "admin:a1", 3, time.Minute)
	s.Require().NoError(err)
	s.False(result.Allowed)
	s.True(result.ResetAt.After(time.Now()))

	card, err := s.redis.Client.ZCard(ctx, "bulklimit:admin:a1").Result()
	s.Require().NoError(err)
	s.Equal(int64(3), card, "rejected operations are not recorded")

	ttl, err := s.redis.Client.PTTL(ctx, "bulklimit:admin:a1").Result()
	s.Require().NoError(err)
	s.Positive(ttl)
}

func (s *RedisStoreSuite) TestWindowExpires() {
	ctx := context.Background()
	window := 300 * time.Millisecond

	result, err := s.store.Allow(ctx, "admin:short", 1, window)
	s.Require().NoError(err)
	s.True(result.Allowed)

	result, err = s.store.Allow(ctx, "admin:short", 1, window)
	s.Require().NoError(err)
	s.False(result.Allowed)

	time.Sleep(window + 100*time.Millisecond)
	result, err = s.store.Allow(ctx, "admin:short", 1, window)
	s.Require().NoError(err)
	s.True(result.Allowed)
}

func (s *RedisStoreSuite) TestConcurrentCallersShareTheLimit() {
	ctx := context.Background()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for range 20 {
		wg.Go(func() {
			result, err := s.store.Allow(ctx, "admin:race", 5, time.Minute)
			s.NoError(err)
			if result.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		})
	}
	wg.Wait()
	s.Equal(5, allowed)
}
