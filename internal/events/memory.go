package events

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"salesdesk/backend/internal/domain"
)

// MemoryRecorder keeps the log in an append-ordered slice. Used in dev mode
// and tests.
type MemoryRecorder struct {
	mu     sync.RWMutex
	events []domain.SaleEvent
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{events: make([]domain.SaleEvent, 0, 64)}
}

func (r *MemoryRecorder) Append(_ context.Context, event domain.SaleEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *MemoryRecorder) ListAll(_ context.Context, skip int, limit int) ([]domain.SaleEvent, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := len(r.events)
	out := make([]domain.SaleEvent, 0, limit)
	for i := total - 1 - skip; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.events[i])
	}
	return out, total, nil
}

func (r *MemoryRecorder) ListBySale(_ context.Context, saleID uuid.UUID) ([]domain.SaleEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.SaleEvent, 0, 8)
	for _, event := range r.events {
		if event.SaleID == saleID {
			out = append(out, event)
		}
	}
	return out, nil
}
