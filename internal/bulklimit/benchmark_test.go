package bulklimit

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

func BenchmarkAllow(b *testing.B) {
	store := NewMemoryStore()
	ctx := context.Background()

	for b.Loop() {
		_, _ = store.Allow(ctx, "admin:bench", 1000, time.Minute)
	}
}

func BenchmarkAllow_Parallel(b *testing.B) {
	store := NewMemoryStore()
	ctx := context.Background()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = store.Allow(ctx, "admin:bench", 1000, time.Minute)
		}
	})
}

func BenchmarkAllow_HighCardinality_Parallel(b *testing.B) {
	store := NewMemoryStore()
	ctx := context.Background()
	var counter atomic.Int64

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := counter.Add(1)
			_, _ = store.Allow(ctx, fmt.Sprintf("ip:10.0.%d.%d", (i/256)%256, i%256), 5, time.Minute)
		}
	})
}
