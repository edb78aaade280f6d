package cache

import (
	"context"
	"time"

	"salesdesk/backend/internal/domain"
)

// TimelineCache holds per-sale event timelines keyed by aggregate id.
type TimelineCache interface {
	Get(ctx context.Context, key string) ([]domain.SaleEvent, bool, error)
	Set(ctx context.Context, key string, events []domain.SaleEvent, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type NoopTimelineCache struct{}

func (NoopTimelineCache) Get(_ context.Context, _ string) ([]domain.SaleEvent, bool, error) {
	return nil, false, nil
}

func (NoopTimelineCache) Set(_ context.Context, _ string, _ []domain.SaleEvent, _ time.Duration) error {
	return nil
}

func (NoopTimelineCache) Delete(_ context.Context, _ string) error {
	return nil
}
