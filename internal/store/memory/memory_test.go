package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"salesdesk/backend/internal/domain"
	"salesdesk/backend/internal/store"
)

func buildSale(t *testing.T, number string, customerName string, branchName string, day int, qty int) *domain.Sale {
	t.Helper()
	saleDate := time.Date(2026, 3, day, 0, 0, 0, 0, time.UTC)
	sale := domain.NewSale(number, saleDate,
		domain.Customer{ID: uuid.New(), Name: customerName},
		domain.Branch{ID: uuid.New(), Name: branchName})
	item, err := domain.NewSaleItem(domain.Product{ID: uuid.New(), Title: "Widget"}, qty, 10)
	require.NoError(t, err)
	require.NoError(t, sale.AddItem(item))
	return sale
}

func TestCreateSaleRejectsDuplicateNumber(t *testing.T) {
	s := New()
	ctx := context.Background()

	first := buildSale(t, "SALE-20260301-00001", "Acme Corp", "Downtown", 1, 2)
	require.NoError(t, s.CreateSale(ctx, first))

	dup := buildSale(t, "SALE-20260301-00001", "Other Corp", "Uptown", 1, 3)
	require.ErrorIs(t, s.CreateSale(ctx, dup), store.ErrConflict)
}

func TestStoredSaleIsIsolatedFromCaller(t *testing.T) {
	s := New()
	ctx := context.Background()

	sale := buildSale(t, "SALE-20260301-00001", "Acme Corp", "Downtown", 1, 2)
	require.NoError(t, s.CreateSale(ctx, sale))

	// Mutating the caller's aggregate must not leak into the store.
	require.NoError(t, sale.Cancel())

	loaded, err := s.GetSaleByID(ctx, sale.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SaleStatusActive, loaded.Status)
}

func TestLastSaleNumber(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.LastSaleNumber(ctx, "SALE-20260301-")
	require.ErrorIs(t, err, store.ErrNotFound)

	for i := 1; i <= 3; i++ {
		sale := buildSale(t, fmt.Sprintf("SALE-20260301-%05d", i), "Acme Corp", "Downtown", 1, 2)
		require.NoError(t, s.CreateSale(ctx, sale))
	}
	other := buildSale(t, "SALE-20260302-00009", "Acme Corp", "Downtown", 2, 2)
	require.NoError(t, s.CreateSale(ctx, other))

	last, err := s.LastSaleNumber(ctx, "SALE-20260301-")
	require.NoError(t, err)
	require.Equal(t, "SALE-20260301-00003", last)
}

func TestDeleteSale(t *testing.T) {
	s := New()
	ctx := context.Background()

	sale := buildSale(t, "SALE-20260301-00001", "Acme Corp", "Downtown", 1, 2)
	require.NoError(t, s.CreateSale(ctx, sale))
	require.NoError(t, s.DeleteSale(ctx, sale.ID))
	require.ErrorIs(t, s.DeleteSale(ctx, sale.ID), store.ErrNotFound)

	_, err := s.GetSaleByID(ctx, sale.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestListSalesScopePrecedence(t *testing.T) {
	s := New()
	ctx := context.Background()

	byCustomer := buildSale(t, "SALE-20260301-00001", "Acme Corp", "Downtown", 1, 2)
	other := buildSale(t, "SALE-20260301-00002", "Other Corp", "Uptown", 5, 2)
	require.NoError(t, s.CreateSale(ctx, byCustomer))
	require.NoError(t, s.CreateSale(ctx, other))

	// Customer scope wins even with a date range that excludes the sale.
	from := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	sales, err := s.ListSales(ctx, store.ListQuery{Scope: domain.SaleScope{
		CustomerID: &byCustomer.Customer.ID,
		From:       from,
	}})
	require.NoError(t, err)
	require.Len(t, sales, 1)
	require.Equal(t, byCustomer.ID, sales[0].ID)

	// Date range is the fallback scope when no id is given.
	sales, err = s.ListSales(ctx, store.ListQuery{Scope: domain.SaleScope{From: from}})
	require.NoError(t, err)
	require.Len(t, sales, 1)
	require.Equal(t, other.ID, sales[0].ID)
}

func TestListSalesWildcardFilters(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.CreateSale(ctx, buildSale(t, "SALE-20260301-00001", "Acme Corp", "Downtown", 1, 2)))
	require.NoError(t, s.CreateSale(ctx, buildSale(t, "SALE-20260301-00002", "Acme Ltd", "Uptown", 1, 2)))
	require.NoError(t, s.CreateSale(ctx, buildSale(t, "SALE-20260301-00003", "Globex", "Uptown", 1, 2)))

	customer := domain.ParseStringMatch("Acme*")
	sales, err := s.ListSales(ctx, store.ListQuery{CustomerName: &customer})
	require.NoError(t, err)
	require.Len(t, sales, 2)

	branch := domain.ParseStringMatch("*town")
	number := domain.ParseStringMatch("*00003")
	sales, err = s.ListSales(ctx, store.ListQuery{BranchName: &branch, SaleNumber: &number})
	require.NoError(t, err)
	require.Len(t, sales, 1)
	require.Equal(t, "Globex", sales[0].Customer.Name)
}

func TestListSalesColumnBackedOrdering(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.CreateSale(ctx, buildSale(t, "SALE-20260303-00001", "Acme Corp", "Downtown", 3, 2)))
	require.NoError(t, s.CreateSale(ctx, buildSale(t, "SALE-20260301-00001", "Acme Corp", "Downtown", 1, 2)))
	require.NoError(t, s.CreateSale(ctx, buildSale(t, "SALE-20260302-00001", "Acme Corp", "Downtown", 2, 2)))

	order, err := domain.ParseOrderBy("SaleDate asc")
	require.NoError(t, err)
	sales, err := s.ListSales(ctx, store.ListQuery{Order: order})
	require.NoError(t, err)
	require.Len(t, sales, 3)
	require.Equal(t, "SALE-20260301-00001", sales[0].SaleNumber)
	require.Equal(t, "SALE-20260303-00001", sales[2].SaleNumber)
}

func TestUserAccounts(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, domain.UserAccount{Username: "Riley", Password: "pw", Role: "clerk", Active: true}))
	require.ErrorIs(t, s.CreateUser(ctx, domain.UserAccount{Username: "riley"}), store.ErrConflict)

	require.NoError(t, s.UpdateUserPassword(ctx, "RILEY", "hashed"))
	require.ErrorIs(t, s.UpdateUserPassword(ctx, "nobody", "hashed"), store.ErrNotFound)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, "riley", users[0].Username)
	require.Equal(t, "hashed", users[0].Password)
}

func TestSeededStoreHasBcryptCredentials(t *testing.T) {
	s := NewSeeded()

	users, err := s.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	for _, user := range users {
		require.True(t, user.Active)
		require.Contains(t, []string{"admin", "clerk"}, user.Role)
		require.Contains(t, user.Password, "$2")
	}
}
