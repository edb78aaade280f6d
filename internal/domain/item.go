package domain

import (
	"time"

	"github.com/google/uuid"
)

// Product is the denormalized product snapshot carried by a sale item.
type Product struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Category    string    `json:"category"`
	Description string    `json:"description,omitempty"`
}

// SaleItem is a line in a sale. It is owned by the Sale aggregate and only
// mutated through the Sale's methods.
type SaleItem struct {
	ID          uuid.UUID `json:"id"`
	Product     Product   `json:"product"`
	Quantity    int       `json:"quantity"`
	UnitPrice   float64   `json:"unit_price"`
	Discount    float64   `json:"discount"`
	IsCancelled bool      `json:"is_cancelled"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewSaleItem builds a sale item with the discount tier applied for the given
// quantity. Quantity and price bounds are enforced here so an item can never
// exist in an invalid state.
func NewSaleItem(product Product, quantity int, unitPrice float64) (SaleItem, error) {
	if unitPrice <= 0 {
		return SaleItem{}, ruleViolation("unit price must be greater than zero")
	}
	discount, err := DiscountForQuantity(quantity)
	if err != nil {
		return SaleItem{}, err
	}

	now := time.Now().UTC()
	return SaleItem{
		ID:        uuid.New(),
		Product:   product,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		Discount:  discount,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// RestoreSaleItem rebuilds an item from storage, checking that the persisted
// discount is still consistent with the persisted quantity.
func RestoreSaleItem(id uuid.UUID, product Product, quantity int, unitPrice float64, discount float64, cancelled bool, createdAt time.Time, updatedAt time.Time) (SaleItem, error) {
	if err := validateDiscount(quantity, discount); err != nil {
		return SaleItem{}, err
	}
	return SaleItem{
		ID:          id,
		Product:     product,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		Discount:    discount,
		IsCancelled: cancelled,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}, nil
}

// reprice sets quantity and unit price together and reapplies the discount
// tier for the new quantity.
func (i *SaleItem) reprice(quantity int, unitPrice float64) error {
	if unitPrice <= 0 {
		return ruleViolation("unit price must be greater than zero")
	}
	discount, err := DiscountForQuantity(quantity)
	if err != nil {
		return err
	}
	i.Quantity = quantity
	i.UnitPrice = unitPrice
	i.Discount = discount
	i.UpdatedAt = time.Now().UTC()
	return nil
}

func (i *SaleItem) cancel() {
	i.IsCancelled = true
	i.UpdatedAt = time.Now().UTC()
}

// TotalAmount is the derived line total: zero for a cancelled item, otherwise
// unitPrice * quantity * (1 - discount/100). Never persisted.
func (i SaleItem) TotalAmount() float64 {
	if i.IsCancelled {
		return 0
	}
	subtotal := i.UnitPrice * float64(i.Quantity)
	return subtotal - subtotal*(i.Discount/100)
}
