package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"salesdesk/backend/internal/cache"
	"salesdesk/backend/internal/domain"
)

func timelineKey(saleID uuid.UUID) string {
	return "sale-events:" + saleID.String()
}

// CachedRecorder wraps a Recorder with a read-through timeline cache for
// per-sale lookups. Cache failures degrade to a plain store read.
type CachedRecorder struct {
	inner  Recorder
	cache  cache.TimelineCache
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedRecorder(inner Recorder, timelines cache.TimelineCache, ttl time.Duration, logger *zap.Logger) *CachedRecorder {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachedRecorder{inner: inner, cache: timelines, ttl: ttl, logger: logger}
}

func (r *CachedRecorder) Append(ctx context.Context, event domain.SaleEvent) error {
	if err := r.inner.Append(ctx, event); err != nil {
		return err
	}
	// The timeline changed, drop the stale copy rather than waiting out the
	// TTL.
	if err := r.cache.Delete(ctx, timelineKey(event.SaleID)); err != nil {
		r.logger.Warn("timeline cache invalidation failed",
			zap.String("sale_id", event.SaleID.String()),
			zap.Error(err))
	}
	return nil
}

func (r *CachedRecorder) ListAll(ctx context.Context, skip int, limit int) ([]domain.SaleEvent, int, error) {
	return r.inner.ListAll(ctx, skip, limit)
}

func (r *CachedRecorder) ListBySale(ctx context.Context, saleID uuid.UUID) ([]domain.SaleEvent, error) {
	key := timelineKey(saleID)

	cached, hit, err := r.cache.Get(ctx, key)
	if err != nil {
		r.logger.Warn("timeline cache read failed",
			zap.String("sale_id", saleID.String()),
			zap.Error(err))
	} else if hit {
		return cached, nil
	}

	events, err := r.inner.ListBySale(ctx, saleID)
	if err != nil {
		return nil, err
	}

	if err := r.cache.Set(ctx, key, events, r.ttl); err != nil {
		r.logger.Warn("timeline cache write failed",
			zap.String("sale_id", saleID.String()),
			zap.Error(err))
	}
	return events, nil
}
