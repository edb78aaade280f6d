package memory

import (
	"context"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"salesdesk/backend/internal/domain"
	"salesdesk/backend/internal/store"
)

type Store struct {
	mu              sync.RWMutex
	salesByID       map[uuid.UUID]*domain.Sale
	usersByUsername map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		salesByID:       make(map[uuid.UUID]*domain.Sale),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

// NewSeeded builds a store with dev/demo user accounts. Credentials come
// from SEED_ADMIN_PASSWORD and SEED_CLERK_PASSWORD; hardcoded dev defaults
// are used with a warning when unset. The backend uses PostgreSQL when
// DATABASE_URL is set, so these never reach production.
func NewSeeded() *Store {
	s := New()
	s.usersByUsername = seedUsers()
	return s
}

func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	clerkPwd := envOr("SEED_CLERK_PASSWORD", "clerk123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CLERK_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CLERK_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"clerk", clerkPwd, "clerk"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func cloneSale(s *domain.Sale) (*domain.Sale, error) {
	clone := &domain.Sale{
		ID:         s.ID,
		SaleNumber: s.SaleNumber,
		SaleDate:   s.SaleDate,
		Customer:   s.Customer,
		Branch:     s.Branch,
		Status:     s.Status,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
	if err := clone.InitializeItems(s.Items()); err != nil {
		return nil, err
	}
	return clone, nil
}

func (s *Store) CreateSale(_ context.Context, sale *domain.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.salesByID[sale.ID]; exists {
		return store.ErrConflict
	}
	for _, existing := range s.salesByID {
		if existing.SaleNumber == sale.SaleNumber {
			return store.ErrConflict
		}
	}

	clone, err := cloneSale(sale)
	if err != nil {
		return err
	}
	s.salesByID[sale.ID] = clone
	return nil
}

func (s *Store) GetSaleByID(_ context.Context, id uuid.UUID) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.salesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneSale(sale)
}

func (s *Store) GetSaleByNumber(_ context.Context, saleNumber string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sale := range s.salesByID {
		if sale.SaleNumber == saleNumber {
			return cloneSale(sale)
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) LastSaleNumber(_ context.Context, prefix string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	last := ""
	for _, sale := range s.salesByID {
		if !strings.HasPrefix(sale.SaleNumber, prefix) {
			continue
		}
		if sale.SaleNumber > last {
			last = sale.SaleNumber
		}
	}
	if last == "" {
		return "", store.ErrNotFound
	}
	return last, nil
}

func (s *Store) UpdateSale(_ context.Context, sale *domain.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.salesByID[sale.ID]; !ok {
		return store.ErrNotFound
	}
	for _, existing := range s.salesByID {
		if existing.ID != sale.ID && existing.SaleNumber == sale.SaleNumber {
			return store.ErrConflict
		}
	}

	clone, err := cloneSale(sale)
	if err != nil {
		return err
	}
	s.salesByID[sale.ID] = clone
	return nil
}

func (s *Store) DeleteSale(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.salesByID[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.salesByID, id)
	return nil
}

func (s *Store) ListSales(_ context.Context, q store.ListQuery) ([]*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*domain.Sale, 0, len(s.salesByID))
	for _, sale := range s.salesByID {
		if !matchesScope(sale, q.Scope) {
			continue
		}
		if q.Status != nil && sale.Status != *q.Status {
			continue
		}
		if q.MinSaleDate != nil && sale.SaleDate.Before(*q.MinSaleDate) {
			continue
		}
		if q.MaxSaleDate != nil && sale.SaleDate.After(*q.MaxSaleDate) {
			continue
		}
		if q.SaleNumber != nil && !q.SaleNumber.Matches(sale.SaleNumber) {
			continue
		}
		if q.CustomerName != nil && !q.CustomerName.Matches(sale.Customer.Name) {
			continue
		}
		if q.BranchName != nil && !q.BranchName.Matches(sale.Branch.Name) {
			continue
		}
		clone, err := cloneSale(sale)
		if err != nil {
			return nil, err
		}
		matched = append(matched, clone)
	}

	// Same contract as the SQL store: column-backed ordering only, newest
	// first by default. Derived clauses are re-applied by the caller.
	columnBacked := make([]domain.OrderClause, 0, len(q.Order))
	for _, c := range q.Order {
		if c.Field.Column() != "" {
			columnBacked = append(columnBacked, c)
		}
	}
	if len(columnBacked) == 0 {
		sort.SliceStable(matched, func(i, j int) bool {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		})
	} else {
		domain.SortSales(matched, columnBacked)
	}
	return matched, nil
}

func matchesScope(sale *domain.Sale, scope domain.SaleScope) bool {
	switch {
	case scope.CustomerID != nil:
		return sale.Customer.ID == *scope.CustomerID
	case scope.BranchID != nil:
		return sale.Branch.ID == *scope.BranchID
	default:
		if !scope.From.IsZero() && sale.SaleDate.Before(scope.From) {
			return false
		}
		if !scope.To.IsZero() && sale.SaleDate.After(scope.To) {
			return false
		}
		return true
	}
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrConflict
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Username = username
	s.usersByUsername[username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	user, ok := s.usersByUsername[username]
	if !ok {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}
