package bulklimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindowScript trims the sorted set to the window, then admits the
// operation if the remaining count is under the limit.
// Returns {allowed, count, oldestScoreMs}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
	redis.call('ZADD', key, now, member)
	count = count + 1
	allowed = 1
end
redis.call('PEXPIRE', key, window)

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local oldestScore = now
if oldest[2] then
	oldestScore = tonumber(oldest[2])
end
return {allowed, count, oldestScore}
`)

// RedisStore shares the sliding window across console instances using one
// sorted set per key.
type RedisStore struct {
	client redis.Scripter
	prefix string
	now    func() time.Time
}

func NewRedisStore(client redis.Scripter) *RedisStore {
	return &RedisStore{client: client, prefix: "bulklimit:", now: time.Now}
}

func (s *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	now := s.now()
	nowMs := now.UnixMilli()
	member := strconv.FormatInt(now.UnixNano(), 10) + "-" + uuid.NewString()

	raw, err := slidingWindowScript.Run(ctx, s.client,
		[]string{s.prefix + key},
		nowMs, window.Milliseconds(), limit, member,
	).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("bulk limit script: %w", err)
	}
	if len(raw) != 3 {
		return Result{}, fmt.Errorf("bulk limit script: unexpected reply length %d", len(raw))
	}

	resetAt := time.UnixMilli(raw[2]).Add(window)
	if raw[0] == 0 {
		return Result{Allowed: false, ResetAt: resetAt}, nil
	}
	return Result{Allowed: true, Remaining: limit - int(raw[1]), ResetAt: resetAt}, nil
}
