package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"salesdesk/backend/internal/domain"
)

// PostgresRecorder stores events as JSONB documents in a dedicated table,
// sharing the connection pool of the primary store.
type PostgresRecorder struct {
	db *sql.DB
}

func NewPostgresRecorder(ctx context.Context, db *sql.DB) (*PostgresRecorder, error) {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sale_events (
			id UUID PRIMARY KEY,
			kind TEXT NOT NULL,
			sale_id UUID NOT NULL,
			sale_number TEXT NOT NULL,
			payload JSONB NOT NULL,
			occurred_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sale_events_sale ON sale_events (sale_id, occurred_at)`,
		`CREATE INDEX IF NOT EXISTS idx_sale_events_occurred ON sale_events (occurred_at DESC)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("ensure event schema: %w", err)
		}
	}
	return &PostgresRecorder{db: db}, nil
}

func (r *PostgresRecorder) Append(ctx context.Context, event domain.SaleEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO sale_events (id, kind, sale_id, sale_number, payload, occurred_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, event.ID, string(event.Kind), event.SaleID, event.SaleNumber, payload, event.OccurredAt)
	return err
}

func (r *PostgresRecorder) ListAll(ctx context.Context, skip int, limit int) ([]domain.SaleEvent, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sale_events`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT payload
		FROM sale_events
		ORDER BY occurred_at DESC, id
		OFFSET $1 LIMIT $2
	`, skip, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	events, err := scanEvents(rows, limit)
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

func (r *PostgresRecorder) ListBySale(ctx context.Context, saleID uuid.UUID) ([]domain.SaleEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT payload
		FROM sale_events
		WHERE sale_id = $1
		ORDER BY occurred_at ASC, id
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEvents(rows, 16)
}

func scanEvents(rows *sql.Rows, hint int) ([]domain.SaleEvent, error) {
	events := make([]domain.SaleEvent, 0, hint)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var event domain.SaleEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
