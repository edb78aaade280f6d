package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventKind names the lifecycle transitions the event log records.
type EventKind string

const (
	EventSaleCreated       EventKind = "SaleCreated"
	EventSaleModified      EventKind = "SaleModified"
	EventSaleCancelled     EventKind = "SaleCancelled"
	EventSaleItemCancelled EventKind = "SaleItemCancelled"
)

// SaleEvent is an immutable record of one sale transition. It carries a
// full snapshot of the aggregate at the moment of the transition so reading
// the log never needs the live sale.
type SaleEvent struct {
	ID         uuid.UUID    `json:"id"`
	Kind       EventKind    `json:"kind"`
	SaleID     uuid.UUID    `json:"sale_id"`
	SaleNumber string       `json:"sale_number"`
	ItemID     *uuid.UUID   `json:"item_id,omitempty"`
	Sale       SaleSnapshot `json:"sale"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// SaleSnapshot is the by-value image of a sale stored inside an event.
type SaleSnapshot struct {
	ID          uuid.UUID  `json:"id"`
	SaleNumber  string     `json:"sale_number"`
	SaleDate    time.Time  `json:"sale_date"`
	Customer    Customer   `json:"customer"`
	Branch      Branch     `json:"branch"`
	Status      SaleStatus `json:"status"`
	TotalAmount float64    `json:"total_amount"`
	Items       []SaleItem `json:"items"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewSaleEvent snapshots the sale and wraps it in an event of the given kind.
func NewSaleEvent(kind EventKind, s *Sale) SaleEvent {
	return SaleEvent{
		ID:         uuid.New(),
		Kind:       kind,
		SaleID:     s.ID,
		SaleNumber: s.SaleNumber,
		Sale:       s.Snapshot(),
		OccurredAt: time.Now().UTC(),
	}
}

// NewSaleItemEvent is NewSaleEvent plus the id of the item the transition
// applied to.
func NewSaleItemEvent(kind EventKind, s *Sale, itemID uuid.UUID) SaleEvent {
	ev := NewSaleEvent(kind, s)
	ev.ItemID = &itemID
	return ev
}
