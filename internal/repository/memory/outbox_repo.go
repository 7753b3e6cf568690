package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"ridecore/internal/domain/entities"
	"ridecore/internal/repository"
)

var ErrOutboxNotFound = errors.New("outbox entry not found")

// OutboxRepository is an in-memory OutboxRepository; ListPendingFIFO mirrors
// the "ORDER BY created_at ASC" the real relay's polling query relies on.
type OutboxRepository struct {
	mu      sync.RWMutex
	entries map[string]*entities.OutboxEntry
}

func NewOutboxRepository() *OutboxRepository {
	return &OutboxRepository{entries: make(map[string]*entities.OutboxEntry)}
}

var _ repository.OutboxRepository = (*OutboxRepository)(nil)

func (r *OutboxRepository) Create(_ context.Context, entry *entities.OutboxEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *entry
	r.entries[entry.ID] = &clone
	return nil
}

func (r *OutboxRepository) ListPendingFIFO(_ context.Context, limit int) ([]*entities.OutboxEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var pending []*entities.OutboxEntry
	for _, e := range r.entries {
		if e.Status == entities.OutboxPending {
			clone := *e
			pending = append(pending, &clone)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (r *OutboxRepository) Update(_ context.Context, entry *entities.OutboxEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[entry.ID]; !ok {
		return ErrOutboxNotFound
	}
	clone := *entry
	r.entries[entry.ID] = &clone
	return nil
}
