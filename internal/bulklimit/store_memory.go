package bulklimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps a sliding window of timestamps per key. It is process local;
// use RedisStore when several console instances share the limit.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string][]time.Time), now: time.Now}
}

func (s *MemoryStore) Allow(_ context.Context, key string, limit int, window time.Duration) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	timestamps := prune(s.windows[key], now.Add(-window))

	if len(timestamps) >= limit {
		s.windows[key] = timestamps
		resetAt := now.Add(window)
		if len(timestamps) > 0 {
			resetAt = timestamps[0].Add(window)
		}
		return Result{Allowed: false, ResetAt: resetAt}, nil
	}

	timestamps = append(timestamps, now)
	s.windows[key] = timestamps
	return Result{
		Allowed:   true,
		Remaining: limit - len(timestamps),
		ResetAt:   timestamps[0].Add(window),
	}, nil
}

// Sweep drops keys whose windows have fully expired.
func (s *MemoryStore) Sweep(window time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-window)
	removed := 0
	for key, timestamps := range s.windows {
		if len(prune(timestamps, cutoff)) == 0 {
			delete(s.windows, key)
			removed++
		}
	}
	return removed
}

// prune drops timestamps at or before cutoff. Timestamps are appended in order.
func prune(timestamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for ; i < len(timestamps); i++ {
		if timestamps[i].After(cutoff) {
			break
		}
	}
	return timestamps[i:]
}
