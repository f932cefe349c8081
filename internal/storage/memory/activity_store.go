package memory

import (
	"context"
	"sort"
	"sync"

	"fracpool/internal/domain"
	"fracpool/internal/storage"
)

// ActivityStore is an in-memory implementation of storage.ActivityStore.
type ActivityStore struct {
	mu     sync.RWMutex
	events []*domain.ActivityEvent
}

// NewActivityStore creates a new in-memory activity store.
func NewActivityStore() *ActivityStore {
	return &ActivityStore{}
}

// Verify interface compliance at compile time.
var _ storage.ActivityStore = (*ActivityStore)(nil)

// Append stores one audit event.
func (s *ActivityStore) Append(_ context.Context, e *domain.ActivityEvent) error {
	if e == nil || e.EventID == "" || e.PoolID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *e
	s.events = append(s.events, &cp)
	return nil
}

// GetByPool retrieves all events for a pool, ordered by occurrence ASC.
func (s *ActivityStore) GetByPool(_ context.Context, poolID string) ([]*domain.ActivityEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ActivityEvent
	for _, e := range s.events {
		if e.PoolID == poolID {
			cp := *e
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].OccurredAt.Before(result[j].OccurredAt)
	})

	return result, nil
}
