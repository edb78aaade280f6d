package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type SaleStatus string

const (
	SaleStatusActive    SaleStatus = "Active"
	SaleStatusCancelled SaleStatus = "Cancelled"
)

// ParseSaleStatus converts a raw status string (case-insensitive) into a
// SaleStatus, failing with a validation error on anything outside the enum.
func ParseSaleStatus(raw string) (SaleStatus, error) {
	switch {
	case strings.EqualFold(raw, string(SaleStatusActive)):
		return SaleStatusActive, nil
	case strings.EqualFold(raw, string(SaleStatusCancelled)):
		return SaleStatusCancelled, nil
	default:
		return "", NewValidationError("status", "invalid status %q, allowed values: Active, Cancelled", raw)
	}
}

// Customer is the denormalized customer snapshot carried by a sale.
type Customer struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Phone string    `json:"phone,omitempty"`
}

// Branch is the denormalized branch snapshot carried by a sale.
type Branch struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Sale is the aggregate root for a retail sale transaction. Items are held in
// a private slice; Items returns a snapshot and every mutation goes through a
// named method so the lifecycle invariants cannot be bypassed.
type Sale struct {
	ID         uuid.UUID
	SaleNumber string
	SaleDate   time.Time
	Customer   Customer
	Branch     Branch
	Status     SaleStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time

	items []SaleItem
}

// NewSale creates an active sale with no items yet. At least one item must be
// added before the sale is persisted.
func NewSale(saleNumber string, saleDate time.Time, customer Customer, branch Branch) *Sale {
	now := time.Now().UTC()
	return &Sale{
		ID:         uuid.New(),
		SaleNumber: saleNumber,
		SaleDate:   saleDate,
		Customer:   customer,
		Branch:     branch,
		Status:     SaleStatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (s *Sale) IsCancelled() bool {
	return s.Status == SaleStatusCancelled
}

// Items returns a copy of the item collection in insertion order. Mutating
// the returned slice has no effect on the sale.
func (s *Sale) Items() []SaleItem {
	out := make([]SaleItem, len(s.items))
	copy(out, s.items)
	return out
}

// TotalAmount is always recomputed as the sum of item totals, never cached.
func (s *Sale) TotalAmount() float64 {
	var total float64
	for _, item := range s.items {
		total += item.TotalAmount()
	}
	return total
}

// Snapshot captures the sale as a flat value, items included.
func (s *Sale) Snapshot() SaleSnapshot {
	return SaleSnapshot{
		ID:          s.ID,
		SaleNumber:  s.SaleNumber,
		SaleDate:    s.SaleDate,
		Customer:    s.Customer,
		Branch:      s.Branch,
		Status:      s.Status,
		TotalAmount: s.TotalAmount(),
		Items:       s.Items(),
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

// AddItem appends an item to the sale, reapplying the discount tier for its
// quantity. Fails once the sale is cancelled.
func (s *Sale) AddItem(item SaleItem) error {
	if s.IsCancelled() {
		return ruleViolation("cannot add items to a cancelled sale")
	}
	discount, err := DiscountForQuantity(item.Quantity)
	if err != nil {
		return err
	}
	item.Discount = discount
	s.items = append(s.items, item)
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// UpdateItem sets a new quantity and unit price on an existing item and
// reapplies the discount tier.
func (s *Sale) UpdateItem(itemID uuid.UUID, quantity int, unitPrice float64) error {
	if s.IsCancelled() {
		return ruleViolation("cannot update items in a cancelled sale")
	}
	idx := s.indexOf(itemID)
	if idx < 0 {
		return ruleViolation("item %s not found in this sale", itemID)
	}
	if err := s.items[idx].reprice(quantity, unitPrice); err != nil {
		return err
	}
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// RemoveItem removes an item from the sale. A sale must keep at least one
// item: the check runs after the removal, and a violation puts the item back.
func (s *Sale) RemoveItem(itemID uuid.UUID) error {
	if s.IsCancelled() {
		return ruleViolation("cannot remove items from a cancelled sale")
	}
	idx := s.indexOf(itemID)
	if idx < 0 {
		return ruleViolation("item %s not found in this sale", itemID)
	}

	removed := s.items[idx]
	s.items = append(s.items[:idx], s.items[idx+1:]...)

	if len(s.items) == 0 {
		s.items = append(s.items, removed)
		return ruleViolation("sale must have at least one item, cannot remove the last item")
	}

	s.UpdatedAt = time.Now().UTC()
	return nil
}

// CancelItem marks a single item as cancelled. Cancelling an item twice
// fails, as does cancelling any item once the sale itself is cancelled.
func (s *Sale) CancelItem(itemID uuid.UUID) error {
	if s.IsCancelled() {
		return ruleViolation("cannot cancel items in an already cancelled sale")
	}
	idx := s.indexOf(itemID)
	if idx < 0 {
		return ruleViolation("item %s not found in this sale", itemID)
	}
	if s.items[idx].IsCancelled {
		return ruleViolation("item %s is already cancelled", itemID)
	}
	s.items[idx].cancel()
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// Cancel transitions the sale to its terminal Cancelled state and cascades
// the cancellation to every item still active. Calling Cancel twice fails.
func (s *Sale) Cancel() error {
	if s.IsCancelled() {
		return ruleViolation("sale is already cancelled")
	}
	s.Status = SaleStatusCancelled
	s.UpdatedAt = time.Now().UTC()
	for i := range s.items {
		if !s.items[i].IsCancelled {
			s.items[i].cancel()
		}
	}
	return nil
}

// InitializeItems replaces the item collection wholesale. Only used when
// reconstructing a sale from storage; the resulting collection must not be
// empty.
func (s *Sale) InitializeItems(items []SaleItem) error {
	if len(items) == 0 {
		return ruleViolation("sale must have at least one item")
	}
	s.items = make([]SaleItem, len(items))
	copy(s.items, items)
	return nil
}

func (s *Sale) indexOf(itemID uuid.UUID) int {
	for i := range s.items {
		if s.items[i].ID == itemID {
			return i
		}
	}
	return -1
}
