package events

import (
	"context"

	"salesdesk/backend/internal/domain"
)

// StoreSink appends each published event to the durable log.
type StoreSink struct {
	recorder Recorder
}

func NewStoreSink(recorder Recorder) *StoreSink {
	return &StoreSink{recorder: recorder}
}

func (s *StoreSink) Name() string { return "store" }

func (s *StoreSink) Record(ctx context.Context, event domain.SaleEvent) error {
	return s.recorder.Append(ctx, event)
}
