package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxPageSize bounds every paginated query.
const MaxPageSize = 500

// SortField is the closed set of fields a sale query may be ordered by.
// Anything outside this enumeration is rejected at the boundary.
type SortField string

const (
	SortBySaleNumber  SortField = "salenumber"
	SortBySaleDate    SortField = "saledate"
	SortByTotalAmount SortField = "totalamount"
	SortByStatus      SortField = "status"
	SortByCreatedAt   SortField = "createdat"
	SortByUpdatedAt   SortField = "updatedat"
)

// sortFields maps the accepted (lower-cased) spellings to their field, and
// each field to the store column backing it. TotalAmount is derived and has
// no column: ordering by it always happens in memory after materialization.
var sortFields = map[SortField]string{
	SortBySaleNumber:  "sale_number",
	SortBySaleDate:    "sale_date",
	SortByTotalAmount: "",
	SortByStatus:      "status",
	SortByCreatedAt:   "created_at",
	SortByUpdatedAt:   "updated_at",
}

// Column returns the store column for the field, or "" when the field is a
// derived value that cannot be pushed down.
func (f SortField) Column() string {
	return sortFields[f]
}

// compare orders two sales by this field, ascending.
func (f SortField) compare(a *Sale, b *Sale) int {
	switch f {
	case SortBySaleNumber:
		return strings.Compare(a.SaleNumber, b.SaleNumber)
	case SortBySaleDate:
		return a.SaleDate.Compare(b.SaleDate)
	case SortByTotalAmount:
		switch at, bt := a.TotalAmount(), b.TotalAmount(); {
		case at < bt:
			return -1
		case at > bt:
			return 1
		default:
			return 0
		}
	case SortByStatus:
		return strings.Compare(string(a.Status), string(b.Status))
	case SortByCreatedAt:
		return a.CreatedAt.Compare(b.CreatedAt)
	case SortByUpdatedAt:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	default:
		return 0
	}
}

func allowedSortFields() string {
	names := []string{"SaleNumber", "SaleDate", "TotalAmount", "Status", "CreatedAt", "UpdatedAt"}
	return strings.Join(names, ", ")
}

// OrderClause is one `field [asc|desc]` element of an order specification.
type OrderClause struct {
	Field SortField
	Desc  bool
}

// ParseOrderBy parses a comma-separated order specification such as
// "SaleDate desc, TotalAmount". Field matching is case-insensitive; the
// whole specification fails on the first unknown field, naming it and the
// allowed set.
func ParseOrderBy(spec string) ([]OrderClause, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}

	var clauses []OrderClause
	for _, raw := range strings.Split(spec, ",") {
		raw = strings.TrimSpace(strings.Trim(strings.TrimSpace(raw), `"`))
		if raw == "" {
			continue
		}
		parts := strings.Fields(raw)
		field := SortField(strings.ToLower(parts[0]))
		if _, ok := sortFields[field]; !ok {
			return nil, NewValidationError("_order", "invalid sort field %q, allowed fields: %s", parts[0], allowedSortFields())
		}
		clause := OrderClause{Field: field}
		if len(parts) > 1 {
			switch strings.ToLower(parts[1]) {
			case "asc":
			case "desc":
				clause.Desc = true
			default:
				return nil, NewValidationError("_order", "invalid sort direction %q, expected asc or desc", parts[1])
			}
		}
		clauses = append(clauses, clause)
	}
	return clauses, nil
}

// HasDerivedField reports whether any clause orders by a field without a
// backing column, which forces the sort to run in memory.
func HasDerivedField(clauses []OrderClause) bool {
	for _, c := range clauses {
		if c.Field.Column() == "" {
			return true
		}
	}
	return false
}

// SortSales applies the full clause list to a materialized slice, stable so
// ties keep their store order.
func SortSales(sales []*Sale, clauses []OrderClause) {
	if len(clauses) == 0 {
		return
	}
	sort.SliceStable(sales, func(i, j int) bool {
		for _, c := range clauses {
			cmp := c.Field.compare(sales[i], sales[j])
			if cmp == 0 {
				continue
			}
			if c.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

// MatchKind selects the string-matching semantics requested by a wildcard
// filter value.
type MatchKind int

const (
	MatchExact MatchKind = iota
	MatchContains
	MatchPrefix
	MatchSuffix
)

// StringMatch is a parsed wildcard filter: `*v*` contains, `v*` prefix,
// `*v` suffix, bare value exact.
type StringMatch struct {
	Value string
	Kind  MatchKind
}

func ParseStringMatch(raw string) StringMatch {
	switch {
	case strings.HasPrefix(raw, "*") && strings.HasSuffix(raw, "*") && len(raw) > 1:
		return StringMatch{Value: strings.Trim(raw, "*"), Kind: MatchContains}
	case strings.HasPrefix(raw, "*"):
		return StringMatch{Value: strings.TrimPrefix(raw, "*"), Kind: MatchSuffix}
	case strings.HasSuffix(raw, "*"):
		return StringMatch{Value: strings.TrimSuffix(raw, "*"), Kind: MatchPrefix}
	default:
		return StringMatch{Value: raw, Kind: MatchExact}
	}
}

// Matches evaluates the filter against a candidate string.
func (m StringMatch) Matches(s string) bool {
	switch m.Kind {
	case MatchContains:
		return strings.Contains(s, m.Value)
	case MatchPrefix:
		return strings.HasPrefix(s, m.Value)
	case MatchSuffix:
		return strings.HasSuffix(s, m.Value)
	default:
		return s == m.Value
	}
}

// SaleQuery is the validated query specification for sale listings. It is
// constructed per request and never persisted.
type SaleQuery struct {
	Page     int
	PageSize int
	Order    []OrderClause

	SaleNumber   *StringMatch
	CustomerName *StringMatch
	BranchName   *StringMatch

	MinSaleDate *time.Time
	MaxSaleDate *time.Time

	MinTotalAmount *float64
	MaxTotalAmount *float64

	Status *SaleStatus
}

// Validate enforces the pagination bounds before any store access happens.
func (q *SaleQuery) Validate() error {
	if q.Page < 1 {
		return NewValidationError("_page", "page number must be 1 or greater")
	}
	if q.PageSize < 1 {
		return NewValidationError("_size", "page size must be greater than 0")
	}
	if q.PageSize > MaxPageSize {
		return NewValidationError("_size", "page size must not exceed %d", MaxPageSize)
	}
	return nil
}

// SaleScope selects the single scoping axis of a listing call: by customer,
// by branch, or by date range (the fallback when neither id is given).
type SaleScope struct {
	CustomerID *uuid.UUID
	BranchID   *uuid.UUID
	From       time.Time
	To         time.Time
}
