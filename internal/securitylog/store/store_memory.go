// Package store holds the security event store backends.
package store

import (
	"context"
	"maps"
	"math"
	"slices"
	"sync"
	"time"

	"adminconsole/internal/securitylog"
	id "adminconsole/pkg/domain"
	dErrors "adminconsole/pkg/domain-errors"
)

const day = 24 * time.Hour

const maxPurgeDays = math.MaxInt64 / int64(day)

// InMemoryStore keeps events in insertion order. It backs single-process deployments
// and tests.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []securitylog.Event
	now    func() time.Time
}

type MemoryOption func(*InMemoryStore)

// WithClock overrides the time source used for timestamps and purge cutoffs.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *InMemoryStore) {
		s.now = now
	}
}

func NewInMemoryStore(opts ...MemoryOption) *InMemoryStore {
	s := &InMemoryStore{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) Insert(_ context.Context, event *securitylog.Event) error {
	if event == nil {
		return dErrors.New(dErrors.CodeBadRequest, "event is required")
	}
	if event.ID.IsNil() {
		event.ID = id.NewEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, cloneEvent(*event))
	return nil
}

func (s *InMemoryStore) Count(_ context.Context, filter securitylog.CountFilter, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for i := range s.events {
		ev := &s.events[i]
		if !ev.Timestamp.After(since) {
			continue
		}
		if filter.IPAddress != "" && ev.IPAddress != filter.IPAddress {
			continue
		}
		if filter.EventType != "" && ev.EventType != filter.EventType {
			continue
		}
		count++
	}
	return count, nil
}

func (s *InMemoryStore) Purge(_ context.Context, olderThanDays *int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if olderThanDays == nil {
		deleted := int64(len(s.events))
		s.events = nil
		return deleted, nil
	}
	if *olderThanDays < 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "olderThanDays must not be negative")
	}

	cutoff := PurgeCutoff(s.now(), *olderThanDays)
	kept := s.events[:0]
	var deleted int64
	for _, ev := range s.events {
		if ev.Timestamp.After(cutoff) {
			kept = append(kept, ev)
			continue
		}
		deleted++
	}
	s.events = kept
	return deleted, nil
}

func (s *InMemoryStore) List(_ context.Context, q securitylog.Query) (securitylog.Page, error) {
	q = q.Normalize()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []securitylog.Event
	for i := len(s.events) - 1; i >= 0; i-- {
		ev := s.events[i]
		if len(q.EventTypes) > 0 && !slices.Contains(q.EventTypes, ev.EventType) {
			continue
		}
		if q.ActorKind != "" && ev.ActorKind != q.ActorKind {
			continue
		}
		matched = append(matched, cloneEvent(ev))
	}
	// insertion order is only approximately time order across workers
	slices.SortStableFunc(matched, func(a, b securitylog.Event) int {
		return b.Timestamp.Compare(a.Timestamp)
	})

	page := securitylog.Page{Events: []securitylog.Event{}, Total: len(matched), Page: q.Page, Limit: q.Limit}
	start := q.Offset()
	if start >= len(matched) {
		return page, nil
	}
	end := min(start+q.Limit, len(matched))
	page.Events = matched[start:end]
	return page, nil
}

// Len reports the number of stored events.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// All returns a snapshot of stored events in insertion order.
func (s *InMemoryStore) All() []securitylog.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]securitylog.Event, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, cloneEvent(ev))
	}
	return out
}

// PurgeCutoff returns the instant at or before which events are purged. A day count
// too large for a time.Duration yields the zero time, so nothing is purged.
func PurgeCutoff(now time.Time, olderThanDays int) time.Time {
	if int64(olderThanDays) > maxPurgeDays {
		return time.Time{}
	}
	return now.Add(-time.Duration(olderThanDays) * day)
}

func cloneEvent(ev securitylog.Event) securitylog.Event {
	ev.RequestData = maps.Clone(ev.RequestData)
	ev.Metadata = maps.Clone(ev.Metadata)
	return ev
}
