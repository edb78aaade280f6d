package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type SaleItemInput struct {
	ProductID          uuid.UUID `json:"product_id"`
	ProductTitle       string    `json:"product_title"`
	ProductCategory    string    `json:"product_category,omitempty"`
	ProductDescription string    `json:"product_description,omitempty"`
	Quantity           int       `json:"quantity"`
	UnitPrice          float64   `json:"unit_price"`
}

func (in SaleItemInput) validate() error {
	if in.ProductID == uuid.Nil {
		return NewValidationError("product_id", "product id is required")
	}
	if strings.TrimSpace(in.ProductTitle) == "" {
		return NewValidationError("product_title", "product title is required")
	}
	if in.Quantity < 1 {
		return NewValidationError("quantity", "quantity must be at least 1")
	}
	if in.Quantity > MaxItemQuantity {
		return NewValidationError("quantity", "quantity must not exceed %d", MaxItemQuantity)
	}
	if in.UnitPrice <= 0 {
		return NewValidationError("unit_price", "unit price must be greater than zero")
	}
	return nil
}

type CreateSaleRequest struct {
	SaleDate      time.Time       `json:"sale_date"`
	CustomerID    uuid.UUID       `json:"customer_id"`
	CustomerName  string          `json:"customer_name"`
	CustomerEmail string          `json:"customer_email"`
	CustomerPhone string          `json:"customer_phone,omitempty"`
	BranchID      uuid.UUID       `json:"branch_id"`
	BranchName    string          `json:"branch_name"`
	Items         []SaleItemInput `json:"items"`
}

func (r CreateSaleRequest) Validate() error {
	if r.SaleDate.IsZero() {
		return NewValidationError("sale_date", "sale date is required")
	}
	if r.CustomerID == uuid.Nil {
		return NewValidationError("customer_id", "customer id is required")
	}
	if strings.TrimSpace(r.CustomerName) == "" {
		return NewValidationError("customer_name", "customer name is required")
	}
	if email := strings.TrimSpace(r.CustomerEmail); email != "" {
		if !strings.Contains(email, "@") || strings.HasPrefix(email, "@") || strings.HasSuffix(email, "@") {
			return NewValidationError("customer_email", "customer email %q is not a valid address", email)
		}
	}
	if r.BranchID == uuid.Nil {
		return NewValidationError("branch_id", "branch id is required")
	}
	if strings.TrimSpace(r.BranchName) == "" {
		return NewValidationError("branch_name", "branch name is required")
	}
	if len(r.Items) == 0 {
		return NewValidationError("items", "a sale requires at least one item")
	}
	for _, item := range r.Items {
		if err := item.validate(); err != nil {
			return err
		}
	}
	return nil
}

// UpdateSaleItemInput carries the item id so the update can match existing
// items. Items present get repriced; items absent from the request get
// removed.
type UpdateSaleItemInput struct {
	ID        uuid.UUID `json:"id"`
	Quantity  int       `json:"quantity"`
	UnitPrice float64   `json:"unit_price"`
}

type UpdateSaleRequest struct {
	SaleDate time.Time             `json:"sale_date"`
	Items    []UpdateSaleItemInput `json:"items"`
}

func (r UpdateSaleRequest) Validate() error {
	if r.SaleDate.IsZero() {
		return NewValidationError("sale_date", "sale date is required")
	}
	if len(r.Items) == 0 {
		return NewValidationError("items", "a sale requires at least one item")
	}
	for _, item := range r.Items {
		if item.ID == uuid.Nil {
			return NewValidationError("items.id", "item id is required")
		}
		if item.Quantity < 1 {
			return NewValidationError("items.quantity", "quantity must be at least 1")
		}
		if item.Quantity > MaxItemQuantity {
			return NewValidationError("items.quantity", "quantity must not exceed %d", MaxItemQuantity)
		}
		if item.UnitPrice <= 0 {
			return NewValidationError("items.unit_price", "unit price must be greater than zero")
		}
	}
	return nil
}

type SaleItemResponse struct {
	ID                 uuid.UUID `json:"id"`
	ProductID          uuid.UUID `json:"product_id"`
	ProductTitle       string    `json:"product_title"`
	ProductCategory    string    `json:"product_category,omitempty"`
	ProductDescription string    `json:"product_description,omitempty"`
	Quantity           int       `json:"quantity"`
	UnitPrice          float64   `json:"unit_price"`
	Discount           float64   `json:"discount"`
	TotalAmount        float64   `json:"total_amount"`
	IsCancelled        bool      `json:"is_cancelled"`
}

type SaleResponse struct {
	ID            uuid.UUID          `json:"id"`
	SaleNumber    string             `json:"sale_number"`
	SaleDate      time.Time          `json:"sale_date"`
	CustomerID    uuid.UUID          `json:"customer_id"`
	CustomerName  string             `json:"customer_name"`
	CustomerEmail string             `json:"customer_email,omitempty"`
	CustomerPhone string             `json:"customer_phone,omitempty"`
	BranchID      uuid.UUID          `json:"branch_id"`
	BranchName    string             `json:"branch_name"`
	Status        SaleStatus         `json:"status"`
	TotalAmount   float64            `json:"total_amount"`
	Items         []SaleItemResponse `json:"items"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

func NewSaleResponse(s *Sale) SaleResponse {
	items := s.Items()
	out := SaleResponse{
		ID:            s.ID,
		SaleNumber:    s.SaleNumber,
		SaleDate:      s.SaleDate,
		CustomerID:    s.Customer.ID,
		CustomerName:  s.Customer.Name,
		CustomerEmail: s.Customer.Email,
		CustomerPhone: s.Customer.Phone,
		BranchID:      s.Branch.ID,
		BranchName:    s.Branch.Name,
		Status:        s.Status,
		TotalAmount:   s.TotalAmount(),
		Items:         make([]SaleItemResponse, 0, len(items)),
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
	for _, item := range items {
		out.Items = append(out.Items, SaleItemResponse{
			ID:                 item.ID,
			ProductID:          item.Product.ID,
			ProductTitle:       item.Product.Title,
			ProductCategory:    item.Product.Category,
			ProductDescription: item.Product.Description,
			Quantity:           item.Quantity,
			UnitPrice:          item.UnitPrice,
			Discount:           item.Discount,
			TotalAmount:        item.TotalAmount(),
			IsCancelled:        item.IsCancelled,
		})
	}
	return out
}

type PaginatedSales struct {
	Data        []SaleResponse `json:"data"`
	CurrentPage int            `json:"current_page"`
	PageSize    int            `json:"page_size"`
	TotalCount  int            `json:"total_count"`
	TotalPages  int            `json:"total_pages"`
}

type PaginatedEvents struct {
	Data        []SaleEvent `json:"data"`
	CurrentPage int         `json:"current_page"`
	PageSize    int         `json:"page_size"`
	TotalCount  int         `json:"total_count"`
	TotalPages  int         `json:"total_pages"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}
