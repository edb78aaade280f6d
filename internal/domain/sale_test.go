package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestDiscountForQuantity(t *testing.T) {
	cases := []struct {
		quantity int
		want     float64
		wantErr  bool
	}{
		{quantity: 1, want: 0},
		{quantity: 3, want: 0},
		{quantity: 4, want: 10},
		{quantity: 9, want: 10},
		{quantity: 10, want: 20},
		{quantity: 20, want: 20},
		{quantity: 0, wantErr: true},
		{quantity: -2, wantErr: true},
		{quantity: 21, wantErr: true},
	}

	for _, tc := range cases {
		got, err := DiscountForQuantity(tc.quantity)
		if tc.wantErr {
			require.Error(t, err, "quantity %d", tc.quantity)
			require.ErrorIs(t, err, ErrRuleViolation)
			continue
		}
		require.NoError(t, err, "quantity %d", tc.quantity)
		require.Equal(t, tc.want, got, "quantity %d", tc.quantity)
	}
}

func TestNewSaleItemRejectsNonPositivePrice(t *testing.T) {
	_, err := NewSaleItem(Product{ID: uuid.New(), Title: "Monitor"}, 2, 0)
	require.ErrorIs(t, err, ErrRuleViolation)

	_, err = NewSaleItem(Product{ID: uuid.New(), Title: "Monitor"}, 2, -5)
	require.ErrorIs(t, err, ErrRuleViolation)
}

func TestSaleItemTotalAmountAppliesDiscount(t *testing.T) {
	item, err := NewSaleItem(Product{ID: uuid.New(), Title: "Keyboard"}, 5, 100)
	require.NoError(t, err)
	require.Equal(t, float64(10), item.Discount)
	require.Equal(t, float64(450), item.TotalAmount())

	item.IsCancelled = true
	require.Zero(t, item.TotalAmount())
}

func newTestSale(t *testing.T, quantities ...int) *Sale {
	t.Helper()
	sale := NewSale("SALE-20260301-00001", time.Now().UTC(),
		Customer{ID: uuid.New(), Name: "Acme Corp", Email: "purchasing@acme.test"},
		Branch{ID: uuid.New(), Name: "Downtown"})
	for _, qty := range quantities {
		item, err := NewSaleItem(Product{ID: uuid.New(), Title: "Widget"}, qty, 10)
		require.NoError(t, err)
		require.NoError(t, sale.AddItem(item))
	}
	return sale
}

func TestSaleTotalSumsItemTotals(t *testing.T) {
	sale := newTestSale(t, 2, 5, 10)
	// 2*10 + 5*10*0.9 + 10*10*0.8
	require.Equal(t, float64(20+45+80), sale.TotalAmount())
}

func TestCancelCascadesToItems(t *testing.T) {
	sale := newTestSale(t, 2, 4)
	require.NoError(t, sale.Cancel())
	require.True(t, sale.IsCancelled())
	for _, item := range sale.Items() {
		require.True(t, item.IsCancelled)
	}
	require.Zero(t, sale.TotalAmount())

	err := sale.Cancel()
	require.ErrorIs(t, err, ErrRuleViolation)
}

func TestCancelledSaleRejectsMutations(t *testing.T) {
	sale := newTestSale(t, 2)
	itemID := sale.Items()[0].ID
	require.NoError(t, sale.Cancel())

	extra, err := NewSaleItem(Product{ID: uuid.New(), Title: "Widget"}, 1, 10)
	require.NoError(t, err)

	require.ErrorIs(t, sale.AddItem(extra), ErrRuleViolation)
	require.ErrorIs(t, sale.UpdateItem(itemID, 3, 12), ErrRuleViolation)
	require.ErrorIs(t, sale.RemoveItem(itemID), ErrRuleViolation)
	require.ErrorIs(t, sale.CancelItem(itemID), ErrRuleViolation)
}

func TestCancelItemExcludesFromTotal(t *testing.T) {
	sale := newTestSale(t, 2, 3)
	items := sale.Items()

	require.NoError(t, sale.CancelItem(items[0].ID))
	require.Equal(t, float64(30), sale.TotalAmount())

	err := sale.CancelItem(items[0].ID)
	require.ErrorIs(t, err, ErrRuleViolation)
}

func TestRemoveLastItemRollsBack(t *testing.T) {
	sale := newTestSale(t, 2)
	itemID := sale.Items()[0].ID

	err := sale.RemoveItem(itemID)
	require.ErrorIs(t, err, ErrRuleViolation)
	require.Len(t, sale.Items(), 1)
	require.Equal(t, itemID, sale.Items()[0].ID)
}

func TestRemoveItemKeepsOthers(t *testing.T) {
	sale := newTestSale(t, 2, 3)
	items := sale.Items()

	require.NoError(t, sale.RemoveItem(items[0].ID))
	remaining := sale.Items()
	require.Len(t, remaining, 1)
	require.Equal(t, items[1].ID, remaining[0].ID)
}

func TestUpdateItemRepricesDiscountTier(t *testing.T) {
	sale := newTestSale(t, 2)
	itemID := sale.Items()[0].ID

	require.NoError(t, sale.UpdateItem(itemID, 10, 15))
	item := sale.Items()[0]
	require.Equal(t, 10, item.Quantity)
	require.Equal(t, float64(15), item.UnitPrice)
	require.Equal(t, float64(20), item.Discount)

	err := sale.UpdateItem(uuid.New(), 2, 10)
	require.ErrorIs(t, err, ErrRuleViolation)
}

func TestInitializeItemsRejectsEmpty(t *testing.T) {
	sale := NewSale("SALE-20260301-00002", time.Now().UTC(), Customer{ID: uuid.New()}, Branch{ID: uuid.New()})
	err := sale.InitializeItems(nil)
	require.ErrorIs(t, err, ErrRuleViolation)
}

func TestRestoreSaleItemChecksDiscountConsistency(t *testing.T) {
	now := time.Now().UTC()
	_, err := RestoreSaleItem(uuid.New(), Product{ID: uuid.New(), Title: "Widget"}, 2, 10, 20, false, now, now)
	require.ErrorIs(t, err, ErrRuleViolation)

	item, err := RestoreSaleItem(uuid.New(), Product{ID: uuid.New(), Title: "Widget"}, 10, 10, 20, false, now, now)
	require.NoError(t, err)
	require.Equal(t, float64(80), item.TotalAmount())
}

func TestParseSaleStatus(t *testing.T) {
	status, err := ParseSaleStatus("active")
	require.NoError(t, err)
	require.Equal(t, SaleStatusActive, status)

	status, err = ParseSaleStatus("CANCELLED")
	require.NoError(t, err)
	require.Equal(t, SaleStatusCancelled, status)

	_, err = ParseSaleStatus("pending")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
}
