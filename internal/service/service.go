package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"salesdesk/backend/internal/domain"
	"salesdesk/backend/internal/events"
	"salesdesk/backend/internal/query"
	"salesdesk/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo      store.SaleRepository
	recorder  events.Recorder
	publisher *events.Publisher
	logger    *zap.Logger
}

func New(repo store.SaleRepository, recorder events.Recorder, publisher *events.Publisher, logger *zap.Logger) *Service {
	return &Service{
		repo:      repo,
		recorder:  recorder,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *Service) CreateSale(ctx context.Context, req domain.CreateSaleRequest) (domain.SaleResponse, error) {
	if err := req.Validate(); err != nil {
		return domain.SaleResponse{}, err
	}

	saleNumber, err := s.nextSaleNumber(ctx, req.SaleDate)
	if err != nil {
		return domain.SaleResponse{}, err
	}
	if _, err := s.repo.GetSaleByNumber(ctx, saleNumber); err == nil {
		return domain.SaleResponse{}, fmt.Errorf("sale number %s already exists: %w", saleNumber, store.ErrConflict)
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.SaleResponse{}, err
	}

	sale := domain.NewSale(saleNumber, req.SaleDate.UTC(),
		domain.Customer{
			ID:    req.CustomerID,
			Name:  strings.TrimSpace(req.CustomerName),
			Email: strings.TrimSpace(req.CustomerEmail),
			Phone: strings.TrimSpace(req.CustomerPhone),
		},
		domain.Branch{
			ID:   req.BranchID,
			Name: strings.TrimSpace(req.BranchName),
		})

	for _, input := range req.Items {
		item, err := domain.NewSaleItem(domain.Product{
			ID:          input.ProductID,
			Title:       strings.TrimSpace(input.ProductTitle),
			Category:    strings.TrimSpace(input.ProductCategory),
			Description: strings.TrimSpace(input.ProductDescription),
		}, input.Quantity, input.UnitPrice)
		if err != nil {
			return domain.SaleResponse{}, err
		}
		if err := sale.AddItem(item); err != nil {
			return domain.SaleResponse{}, err
		}
	}

	if err := s.repo.CreateSale(ctx, sale); err != nil {
		return domain.SaleResponse{}, err
	}

	s.publisher.Publish(ctx, domain.NewSaleEvent(domain.EventSaleCreated, sale))
	s.logger.Info("sale created",
		zap.String("sale_id", sale.ID.String()),
		zap.String("sale_number", sale.SaleNumber),
		zap.Float64("total_amount", sale.TotalAmount()))
	return domain.NewSaleResponse(sale), nil
}

// nextSaleNumber produces SALE-YYYYMMDD-NNNNN from the last persisted
// number under the day's prefix. The read and the insert are not atomic;
// two writers racing the same sequence surface as a unique-constraint
// conflict on create.
func (s *Service) nextSaleNumber(ctx context.Context, saleDate time.Time) (string, error) {
	prefix := fmt.Sprintf("SALE-%s-", saleDate.UTC().Format("20060102"))

	sequence := 1
	last, err := s.repo.LastSaleNumber(ctx, prefix)
	switch {
	case err == nil:
		raw := strings.TrimPrefix(last, prefix)
		parsed, parseErr := strconv.Atoi(raw)
		if parseErr != nil {
			return "", fmt.Errorf("malformed sale number %q: %w", last, parseErr)
		}
		sequence = parsed + 1
	case errors.Is(err, store.ErrNotFound):
	default:
		return "", err
	}

	return fmt.Sprintf("%s%05d", prefix, sequence), nil
}

func (s *Service) GetSale(ctx context.Context, id uuid.UUID) (domain.SaleResponse, error) {
	sale, err := s.repo.GetSaleByID(ctx, id)
	if err != nil {
		return domain.SaleResponse{}, err
	}
	return domain.NewSaleResponse(sale), nil
}

func (s *Service) ListSales(ctx context.Context, scope domain.SaleScope, q *domain.SaleQuery) (domain.PaginatedSales, error) {
	if err := q.Validate(); err != nil {
		return domain.PaginatedSales{}, err
	}

	sales, err := s.repo.ListSales(ctx, store.ListQuery{
		Scope:        scope,
		Status:       q.Status,
		SaleNumber:   q.SaleNumber,
		CustomerName: q.CustomerName,
		BranchName:   q.BranchName,
		MinSaleDate:  q.MinSaleDate,
		MaxSaleDate:  q.MaxSaleDate,
		Order:        q.Order,
	})
	if err != nil {
		return domain.PaginatedSales{}, err
	}

	return query.Paginate(sales, q), nil
}

// UpdateSale applies replace-style semantics: the date is updated, items
// present in the request are repriced, and items absent from it are
// removed. Adding items through update is not supported.
func (s *Service) UpdateSale(ctx context.Context, id uuid.UUID, req domain.UpdateSaleRequest) (domain.SaleResponse, error) {
	if err := req.Validate(); err != nil {
		return domain.SaleResponse{}, err
	}

	sale, err := s.repo.GetSaleByID(ctx, id)
	if err != nil {
		return domain.SaleResponse{}, err
	}

	requested := make(map[uuid.UUID]domain.UpdateSaleItemInput, len(req.Items))
	for _, input := range req.Items {
		requested[input.ID] = input
	}

	for _, input := range req.Items {
		if err := sale.UpdateItem(input.ID, input.Quantity, input.UnitPrice); err != nil {
			return domain.SaleResponse{}, err
		}
	}
	for _, item := range sale.Items() {
		if _, keep := requested[item.ID]; keep {
			continue
		}
		if err := sale.RemoveItem(item.ID); err != nil {
			return domain.SaleResponse{}, err
		}
	}

	sale.SaleDate = req.SaleDate.UTC()
	if err := s.repo.UpdateSale(ctx, sale); err != nil {
		return domain.SaleResponse{}, err
	}

	s.publisher.Publish(ctx, domain.NewSaleEvent(domain.EventSaleModified, sale))
	return domain.NewSaleResponse(sale), nil
}

func (s *Service) CancelSale(ctx context.Context, id uuid.UUID) (domain.SaleResponse, error) {
	sale, err := s.repo.GetSaleByID(ctx, id)
	if err != nil {
		return domain.SaleResponse{}, err
	}

	if err := sale.Cancel(); err != nil {
		return domain.SaleResponse{}, err
	}
	if err := s.repo.UpdateSale(ctx, sale); err != nil {
		return domain.SaleResponse{}, err
	}

	s.publisher.Publish(ctx, domain.NewSaleEvent(domain.EventSaleCancelled, sale))
	s.logger.Info("sale cancelled",
		zap.String("sale_id", sale.ID.String()),
		zap.String("sale_number", sale.SaleNumber))
	return domain.NewSaleResponse(sale), nil
}

func (s *Service) CancelSaleItem(ctx context.Context, id uuid.UUID, itemID uuid.UUID) (domain.SaleResponse, error) {
	sale, err := s.repo.GetSaleByID(ctx, id)
	if err != nil {
		return domain.SaleResponse{}, err
	}

	if err := sale.CancelItem(itemID); err != nil {
		return domain.SaleResponse{}, err
	}
	if err := s.repo.UpdateSale(ctx, sale); err != nil {
		return domain.SaleResponse{}, err
	}

	s.publisher.Publish(ctx, domain.NewSaleItemEvent(domain.EventSaleItemCancelled, sale, itemID))
	return domain.NewSaleResponse(sale), nil
}

func (s *Service) DeleteSale(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteSale(ctx, id)
}

func (s *Service) ListAllEvents(ctx context.Context, page int, size int) (domain.PaginatedEvents, error) {
	if page < 1 {
		return domain.PaginatedEvents{}, domain.NewValidationError("_page", "page number must be 1 or greater")
	}
	if size < 1 {
		return domain.PaginatedEvents{}, domain.NewValidationError("_size", "page size must be greater than 0")
	}
	if size > domain.MaxPageSize {
		return domain.PaginatedEvents{}, domain.NewValidationError("_size", "page size must not exceed %d", domain.MaxPageSize)
	}

	eventsPage, total, err := s.recorder.ListAll(ctx, (page-1)*size, size)
	if err != nil {
		return domain.PaginatedEvents{}, err
	}

	totalPages := total / size
	if total%size != 0 {
		totalPages++
	}
	return domain.PaginatedEvents{
		Data:        eventsPage,
		CurrentPage: page,
		PageSize:    size,
		TotalCount:  total,
		TotalPages:  totalPages,
	}, nil
}

func (s *Service) GetSaleEvents(ctx context.Context, id uuid.UUID) ([]domain.SaleEvent, error) {
	if _, err := s.repo.GetSaleByID(ctx, id); err != nil {
		return nil, err
	}
	return s.recorder.ListBySale(ctx, id)
}
