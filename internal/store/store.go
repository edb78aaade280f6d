package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"salesdesk/backend/internal/domain"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// ListQuery is the store-level portion of a sale listing: the scoping axis
// plus every filter and ordering the store can evaluate itself. Derived
// values (total amount) are filtered and sorted by the caller after
// materialization.
type ListQuery struct {
	Scope domain.SaleScope

	Status       *domain.SaleStatus
	SaleNumber   *domain.StringMatch
	CustomerName *domain.StringMatch
	BranchName   *domain.StringMatch
	MinSaleDate  *time.Time
	MaxSaleDate  *time.Time

	Order []domain.OrderClause
}

type SaleRepository interface {
	CreateSale(ctx context.Context, sale *domain.Sale) error
	GetSaleByID(ctx context.Context, id uuid.UUID) (*domain.Sale, error)
	GetSaleByNumber(ctx context.Context, saleNumber string) (*domain.Sale, error)
	// LastSaleNumber returns the highest sale number starting with the given
	// prefix, or ErrNotFound when none exists yet.
	LastSaleNumber(ctx context.Context, prefix string) (string, error)
	UpdateSale(ctx context.Context, sale *domain.Sale) error
	DeleteSale(ctx context.Context, id uuid.UUID) error
	// ListSales materializes every sale matching the query, ordered by the
	// query's column-backed clauses.
	ListSales(ctx context.Context, q ListQuery) ([]*domain.Sale, error)
}

type UserRepository interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

// Repository is the full persistence surface the server wires at boot.
type Repository interface {
	SaleRepository
	UserRepository
}
