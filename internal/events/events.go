package events

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"salesdesk/backend/internal/domain"
)

// Recorder is the append-only log of sale events. Appended events are never
// mutated or deleted.
type Recorder interface {
	Append(ctx context.Context, event domain.SaleEvent) error
	// ListAll returns a newest-first window of the log plus its total size.
	ListAll(ctx context.Context, skip int, limit int) ([]domain.SaleEvent, int, error)
	// ListBySale returns a sale's timeline in chronological order.
	ListBySale(ctx context.Context, saleID uuid.UUID) ([]domain.SaleEvent, error)
}

// Sink receives published events. Sinks are independent: one sink failing
// must not stop the others.
type Sink interface {
	Name() string
	Record(ctx context.Context, event domain.SaleEvent) error
}

// Publisher fans an event out to an ordered list of sinks. Recording is
// best-effort; sink failures are logged and swallowed so they never reach
// the command that produced the event.
type Publisher struct {
	sinks  []Sink
	logger *zap.Logger
}

func NewPublisher(logger *zap.Logger, sinks ...Sink) *Publisher {
	return &Publisher{sinks: sinks, logger: logger}
}

func (p *Publisher) Publish(ctx context.Context, event domain.SaleEvent) {
	for _, sink := range p.sinks {
		if err := sink.Record(ctx, event); err != nil {
			p.logger.Warn("event sink failed",
				zap.String("sink", sink.Name()),
				zap.String("kind", string(event.Kind)),
				zap.String("sale_id", event.SaleID.String()),
				zap.Error(err))
		}
	}
}

// LogSink writes every event to the structured log.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Record(_ context.Context, event domain.SaleEvent) error {
	s.logger.Info("sale event",
		zap.String("kind", string(event.Kind)),
		zap.String("sale_id", event.SaleID.String()),
		zap.String("sale_number", event.SaleNumber),
		zap.Float64("total_amount", event.Sale.TotalAmount),
		zap.Time("occurred_at", event.OccurredAt))
	return nil
}
