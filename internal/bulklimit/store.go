// Package bulklimit caps how many bulk operations one actor may start within a
// sliding window.
package bulklimit

import (
	"context"
	"time"
)

// Result is the outcome of one Allow call.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Store counts operations per key over a sliding window. Allow records the
// operation only when it is admitted.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}
