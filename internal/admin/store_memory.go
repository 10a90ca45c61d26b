package admin

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	id "adminconsole/pkg/domain"
	"adminconsole/pkg/platform/sentinel"
)

// InMemoryStore keeps principals in a map guarded by a RWMutex.
type InMemoryStore struct {
	mu         sync.RWMutex
	principals map[id.AdminID]*Principal
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{principals: make(map[id.AdminID]*Principal)}
}

func (s *InMemoryStore) FindByID(_ context.Context, adminID id.AdminID) (*Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.principals[adminID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (s *InMemoryStore) FindByEmail(_ context.Context, email string) (*Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.principals {
		if strings.EqualFold(p.Email, email) {
			copied := *p
			return &copied, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// List returns principals ordered by email.
func (s *InMemoryStore) List(_ context.Context) ([]*Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Principal, 0, len(s.principals))
	for _, p := range s.principals {
		copied := *p
		out = append(out, &copied)
	}
	slices.SortFunc(out, func(a, b *Principal) int { return strings.Compare(a.Email, b.Email) })
	return out, nil
}

func (s *InMemoryStore) Create(_ context.Context, p *Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.principals[p.ID]; exists {
		return sentinel.ErrConflict
	}
	for _, existing := range s.principals {
		if strings.EqualFold(existing.Email, p.Email) {
			return sentinel.ErrConflict
		}
	}
	copied := *p
	s.principals[p.ID] = &copied
	return nil
}

func (s *InMemoryStore) UpdateStatus(_ context.Context, adminID id.AdminID, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.principals[adminID]
	if !ok {
		return sentinel.ErrNotFound
	}
	p.Status = status
	p.UpdatedAt = time.Now()
	return nil
}

func (s *InMemoryStore) UpdateStatusMany(_ context.Context, adminIDs []id.AdminID, status Status) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	updated := 0
	for _, adminID := range adminIDs {
		p, ok := s.principals[adminID]
		if !ok {
			continue
		}
		p.Status = status
		p.UpdatedAt = now
		updated++
	}
	return updated, nil
}

func (s *InMemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.principals), nil
}
