package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"salesdesk/backend/internal/domain"
	"salesdesk/backend/internal/events"
	"salesdesk/backend/internal/store"
	"salesdesk/backend/internal/store/memory"
)

func newTestService() (*Service, *events.MemoryRecorder) {
	repo := memory.New()
	recorder := events.NewMemoryRecorder()
	logger := zap.NewNop()
	publisher := events.NewPublisher(logger, events.NewStoreSink(recorder))
	return New(repo, recorder, publisher, logger), recorder
}

func createRequest(itemQuantities ...int) domain.CreateSaleRequest {
	items := make([]domain.SaleItemInput, 0, len(itemQuantities))
	for i, qty := range itemQuantities {
		items = append(items, domain.SaleItemInput{
			ProductID:    uuid.New(),
			ProductTitle: fmt.Sprintf("Widget %d", i+1),
			Quantity:     qty,
			UnitPrice:    10,
		})
	}
	return domain.CreateSaleRequest{
		SaleDate:      time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		CustomerID:    uuid.New(),
		CustomerName:  "Acme Corp",
		CustomerEmail: "purchasing@acme.test",
		BranchID:      uuid.New(),
		BranchName:    "Downtown",
		Items:         items,
	}
}

func TestCreateSaleAssignsSequencedNumbers(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	first, err := svc.CreateSale(ctx, createRequest(2))
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}
	if first.SaleNumber != "SALE-20260314-00001" {
		t.Fatalf("unexpected first sale number: %s", first.SaleNumber)
	}

	second, err := svc.CreateSale(ctx, createRequest(5))
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}
	if second.SaleNumber != "SALE-20260314-00002" {
		t.Fatalf("unexpected second sale number: %s", second.SaleNumber)
	}
	if second.Items[0].Discount != 10 {
		t.Fatalf("expected 10%% discount for quantity 5, got %.0f", second.Items[0].Discount)
	}
	if second.TotalAmount != 45 {
		t.Fatalf("expected total 45, got %.2f", second.TotalAmount)
	}
}

func TestCreateSaleRejectsInvalidInput(t *testing.T) {
	svc, _ := newTestService()

	req := createRequest(2)
	req.Items = nil
	if _, err := svc.CreateSale(context.Background(), req); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	req = createRequest(25)
	if _, err := svc.CreateSale(context.Background(), req); !domain.IsValidation(err) {
		t.Fatalf("expected validation error for oversized quantity, got %v", err)
	}
}

func TestUpdateSaleReplacesItems(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.CreateSale(ctx, createRequest(2, 3))
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}

	kept := created.Items[0]
	updated, err := svc.UpdateSale(ctx, created.ID, domain.UpdateSaleRequest{
		SaleDate: created.SaleDate,
		Items: []domain.UpdateSaleItemInput{
			{ID: kept.ID, Quantity: 10, UnitPrice: 20},
		},
	})
	if err != nil {
		t.Fatalf("update sale failed: %v", err)
	}

	if len(updated.Items) != 1 {
		t.Fatalf("expected 1 item after update, got %d", len(updated.Items))
	}
	item := updated.Items[0]
	if item.Quantity != 10 || item.UnitPrice != 20 {
		t.Fatalf("unexpected item after update: %+v", item)
	}
	if item.Discount != 20 {
		t.Fatalf("expected repriced discount 20%%, got %.0f", item.Discount)
	}
	if updated.TotalAmount != 160 {
		t.Fatalf("expected total 160, got %.2f", updated.TotalAmount)
	}
}

func TestUpdateSaleUnknownItemFails(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.CreateSale(ctx, createRequest(2))
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}

	_, err = svc.UpdateSale(ctx, created.ID, domain.UpdateSaleRequest{
		SaleDate: created.SaleDate,
		Items: []domain.UpdateSaleItemInput{
			{ID: uuid.New(), Quantity: 2, UnitPrice: 10},
		},
	})
	if !errors.Is(err, domain.ErrRuleViolation) {
		t.Fatalf("expected rule violation, got %v", err)
	}
}

func TestCancelSaleLifecycle(t *testing.T) {
	svc, recorder := newTestService()
	ctx := context.Background()

	created, err := svc.CreateSale(ctx, createRequest(2, 4))
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}

	cancelled, err := svc.CancelSale(ctx, created.ID)
	if err != nil {
		t.Fatalf("cancel sale failed: %v", err)
	}
	if cancelled.Status != domain.SaleStatusCancelled {
		t.Fatalf("expected cancelled status, got %s", cancelled.Status)
	}
	if cancelled.TotalAmount != 0 {
		t.Fatalf("expected zero total after cancel, got %.2f", cancelled.TotalAmount)
	}
	for _, item := range cancelled.Items {
		if !item.IsCancelled {
			t.Fatalf("expected item %s to be cancelled", item.ID)
		}
	}

	if _, err := svc.CancelSale(ctx, created.ID); !errors.Is(err, domain.ErrRuleViolation) {
		t.Fatalf("expected rule violation on double cancel, got %v", err)
	}

	timeline, err := recorder.ListBySale(ctx, created.ID)
	if err != nil {
		t.Fatalf("list timeline failed: %v", err)
	}
	if len(timeline) != 2 {
		t.Fatalf("expected 2 events, got %d", len(timeline))
	}
	if timeline[0].Kind != domain.EventSaleCreated || timeline[1].Kind != domain.EventSaleCancelled {
		t.Fatalf("unexpected timeline order: %s, %s", timeline[0].Kind, timeline[1].Kind)
	}
}

func TestCancelSaleItemRecordsItemEvent(t *testing.T) {
	svc, recorder := newTestService()
	ctx := context.Background()

	created, err := svc.CreateSale(ctx, createRequest(2, 3))
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}

	target := created.Items[0]
	after, err := svc.CancelSaleItem(ctx, created.ID, target.ID)
	if err != nil {
		t.Fatalf("cancel item failed: %v", err)
	}
	if after.TotalAmount != 30 {
		t.Fatalf("expected total 30 after item cancel, got %.2f", after.TotalAmount)
	}

	timeline, err := recorder.ListBySale(ctx, created.ID)
	if err != nil {
		t.Fatalf("list timeline failed: %v", err)
	}
	last := timeline[len(timeline)-1]
	if last.Kind != domain.EventSaleItemCancelled {
		t.Fatalf("expected item-cancelled event, got %s", last.Kind)
	}
	if last.ItemID == nil || *last.ItemID != target.ID {
		t.Fatalf("expected event item id %s, got %v", target.ID, last.ItemID)
	}
}

func TestListSalesPaginatesAndFilters(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	var cancelledID uuid.UUID
	for i := 0; i < 5; i++ {
		created, err := svc.CreateSale(ctx, createRequest(i+1))
		if err != nil {
			t.Fatalf("create sale failed: %v", err)
		}
		if i == 0 {
			cancelledID = created.ID
		}
	}
	if _, err := svc.CancelSale(ctx, cancelledID); err != nil {
		t.Fatalf("cancel sale failed: %v", err)
	}

	active := domain.SaleStatusActive
	page, err := svc.ListSales(ctx, domain.SaleScope{}, &domain.SaleQuery{
		Page:     1,
		PageSize: 3,
		Status:   &active,
	})
	if err != nil {
		t.Fatalf("list sales failed: %v", err)
	}
	if page.TotalCount != 4 {
		t.Fatalf("expected 4 active sales, got %d", page.TotalCount)
	}
	if page.TotalPages != 2 {
		t.Fatalf("expected 2 pages, got %d", page.TotalPages)
	}
	if len(page.Data) != 3 {
		t.Fatalf("expected 3 sales on page 1, got %d", len(page.Data))
	}
}

func TestListSalesOrdersByDerivedTotal(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	// Totals: 10, 45, 80.
	for _, qty := range []int{1, 5, 10} {
		if _, err := svc.CreateSale(ctx, createRequest(qty)); err != nil {
			t.Fatalf("create sale failed: %v", err)
		}
	}

	order, err := domain.ParseOrderBy("TotalAmount desc")
	if err != nil {
		t.Fatalf("parse order failed: %v", err)
	}
	page, err := svc.ListSales(ctx, domain.SaleScope{}, &domain.SaleQuery{
		Page:     1,
		PageSize: 10,
		Order:    order,
	})
	if err != nil {
		t.Fatalf("list sales failed: %v", err)
	}

	totals := make([]float64, 0, len(page.Data))
	for _, sale := range page.Data {
		totals = append(totals, sale.TotalAmount)
	}
	if len(totals) != 3 || totals[0] != 80 || totals[1] != 45 || totals[2] != 10 {
		t.Fatalf("unexpected total ordering: %v", totals)
	}
}

func TestListAllEventsNewestFirst(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.CreateSale(ctx, createRequest(1)); err != nil {
			t.Fatalf("create sale failed: %v", err)
		}
	}

	page, err := svc.ListAllEvents(ctx, 1, 2)
	if err != nil {
		t.Fatalf("list events failed: %v", err)
	}
	if page.TotalCount != 3 || page.TotalPages != 2 || len(page.Data) != 2 {
		t.Fatalf("unexpected pagination: total=%d pages=%d page_len=%d", page.TotalCount, page.TotalPages, len(page.Data))
	}
	if page.Data[0].SaleNumber != "SALE-20260314-00003" {
		t.Fatalf("expected newest event first, got %s", page.Data[0].SaleNumber)
	}

	if _, err := svc.ListAllEvents(ctx, 0, 10); !domain.IsValidation(err) {
		t.Fatalf("expected validation error for page 0, got %v", err)
	}
}

func TestGetSaleEventsUnknownSale(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.GetSaleEvents(context.Background(), uuid.New())
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
