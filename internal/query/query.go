// Package query assembles paginated sale listings from materialized result
// sets. The store handles everything it can evaluate on columns; this
// package applies the remaining derived-value filtering, re-sorting, and
// the final page slice.
package query

import (
	"salesdesk/backend/internal/domain"
)

// Paginate filters the materialized set by total amount, re-sorts it when
// the order references a derived field, and cuts the requested page.
// Counts always describe the post-filter set, not the page.
func Paginate(sales []*domain.Sale, q *domain.SaleQuery) domain.PaginatedSales {
	filtered := filterByTotalAmount(sales, q.MinTotalAmount, q.MaxTotalAmount)

	// A clause on a derived field invalidates the store's ordering for
	// every position, so the full clause list is re-applied over the whole
	// set before slicing.
	if domain.HasDerivedField(q.Order) {
		domain.SortSales(filtered, q.Order)
	}

	totalCount := len(filtered)
	totalPages := totalCount / q.PageSize
	if totalCount%q.PageSize != 0 {
		totalPages++
	}

	start := (q.Page - 1) * q.PageSize
	if start > totalCount {
		start = totalCount
	}
	end := start + q.PageSize
	if end > totalCount {
		end = totalCount
	}

	page := filtered[start:end]
	data := make([]domain.SaleResponse, 0, len(page))
	for _, sale := range page {
		data = append(data, domain.NewSaleResponse(sale))
	}

	return domain.PaginatedSales{
		Data:        data,
		CurrentPage: q.Page,
		PageSize:    q.PageSize,
		TotalCount:  totalCount,
		TotalPages:  totalPages,
	}
}

func filterByTotalAmount(sales []*domain.Sale, min *float64, max *float64) []*domain.Sale {
	if min == nil && max == nil {
		return sales
	}
	filtered := make([]*domain.Sale, 0, len(sales))
	for _, sale := range sales {
		total := sale.TotalAmount()
		if min != nil && total < *min {
			continue
		}
		if max != nil && total > *max {
			continue
		}
		filtered = append(filtered, sale)
	}
	return filtered
}
