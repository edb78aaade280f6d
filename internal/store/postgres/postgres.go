package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"salesdesk/backend/internal/domain"
	"salesdesk/backend/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle so sibling stores can share the pool.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sales (
			id UUID PRIMARY KEY,
			sale_number TEXT NOT NULL UNIQUE,
			sale_date TIMESTAMPTZ NOT NULL,
			customer_id UUID NOT NULL,
			customer_name TEXT NOT NULL,
			customer_email TEXT NOT NULL DEFAULT '',
			customer_phone TEXT NOT NULL DEFAULT '',
			branch_id UUID NOT NULL,
			branch_name TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sales_customer ON sales (customer_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sales_branch ON sales (branch_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sales_sale_date ON sales (sale_date)`,
		`CREATE TABLE IF NOT EXISTS sale_items (
			id UUID PRIMARY KEY,
			sale_id UUID NOT NULL REFERENCES sales(id) ON DELETE CASCADE,
			position INT NOT NULL,
			product_id UUID NOT NULL,
			product_title TEXT NOT NULL,
			product_category TEXT NOT NULL DEFAULT '',
			product_description TEXT NOT NULL DEFAULT '',
			quantity INT NOT NULL,
			unit_price DOUBLE PRECISION NOT NULL,
			discount DOUBLE PRECISION NOT NULL,
			is_cancelled BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sale_items_sale ON sale_items (sale_id, position)`,
		`CREATE TABLE IF NOT EXISTS app_users (
			username TEXT PRIMARY KEY,
			password TEXT NOT NULL,
			role TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *Store) CreateSale(ctx context.Context, sale *domain.Sale) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (
			id, sale_number, sale_date, customer_id, customer_name, customer_email,
			customer_phone, branch_id, branch_name, status, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, sale.ID, sale.SaleNumber, sale.SaleDate, sale.Customer.ID, sale.Customer.Name,
		sale.Customer.Email, sale.Customer.Phone, sale.Branch.ID, sale.Branch.Name,
		string(sale.Status), sale.CreatedAt, sale.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}

	if err := insertItems(ctx, tx, sale); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) UpdateSale(ctx context.Context, sale *domain.Sale) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE sales
		SET sale_number = $2, sale_date = $3, customer_id = $4, customer_name = $5,
			customer_email = $6, customer_phone = $7, branch_id = $8, branch_name = $9,
			status = $10, updated_at = $11
		WHERE id = $1
	`, sale.ID, sale.SaleNumber, sale.SaleDate, sale.Customer.ID, sale.Customer.Name,
		sale.Customer.Email, sale.Customer.Phone, sale.Branch.ID, sale.Branch.Name,
		string(sale.Status), sale.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}

	// Items are replaced wholesale, the aggregate is the source of truth.
	if _, err := tx.ExecContext(ctx, `DELETE FROM sale_items WHERE sale_id = $1`, sale.ID); err != nil {
		return err
	}
	if err := insertItems(ctx, tx, sale); err != nil {
		return err
	}

	return tx.Commit()
}

func insertItems(ctx context.Context, tx *sql.Tx, sale *domain.Sale) error {
	for pos, item := range sale.Items() {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sale_items (
				id, sale_id, position, product_id, product_title, product_category,
				product_description, quantity, unit_price, discount, is_cancelled,
				created_at, updated_at
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		`, item.ID, sale.ID, pos, item.Product.ID, item.Product.Title,
			item.Product.Category, item.Product.Description, item.Quantity,
			item.UnitPrice, item.Discount, item.IsCancelled, item.CreatedAt, item.UpdatedAt)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetSaleByID(ctx context.Context, id uuid.UUID) (*domain.Sale, error) {
	return s.getSale(ctx, `WHERE id = $1`, id)
}

func (s *Store) GetSaleByNumber(ctx context.Context, saleNumber string) (*domain.Sale, error) {
	return s.getSale(ctx, `WHERE sale_number = $1`, saleNumber)
}

func (s *Store) getSale(ctx context.Context, where string, arg any) (*domain.Sale, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, sale_number, sale_date, customer_id, customer_name, customer_email,
			customer_phone, branch_id, branch_name, status, created_at, updated_at
		FROM sales
	`+where, arg)

	sale, err := scanSale(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	items, err := s.loadItems(ctx, []uuid.UUID{sale.ID})
	if err != nil {
		return nil, err
	}
	if err := sale.InitializeItems(items[sale.ID]); err != nil {
		return nil, err
	}
	return sale, nil
}

func (s *Store) LastSaleNumber(ctx context.Context, prefix string) (string, error) {
	var saleNumber string
	err := s.db.QueryRowContext(ctx, `
		SELECT sale_number
		FROM sales
		WHERE sale_number LIKE $1
		ORDER BY sale_number DESC
		LIMIT 1
	`, likeEscape(prefix)+"%").Scan(&saleNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", store.ErrNotFound
		}
		return "", err
	}
	return saleNumber, nil
}

func (s *Store) DeleteSale(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListSales(ctx context.Context, q store.ListQuery) ([]*domain.Sale, error) {
	var (
		conditions []string
		args       []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	switch {
	case q.Scope.CustomerID != nil:
		conditions = append(conditions, "customer_id = "+arg(*q.Scope.CustomerID))
	case q.Scope.BranchID != nil:
		conditions = append(conditions, "branch_id = "+arg(*q.Scope.BranchID))
	default:
		if !q.Scope.From.IsZero() {
			conditions = append(conditions, "sale_date >= "+arg(q.Scope.From))
		}
		if !q.Scope.To.IsZero() {
			conditions = append(conditions, "sale_date <= "+arg(q.Scope.To))
		}
	}

	if q.Status != nil {
		conditions = append(conditions, "status = "+arg(string(*q.Status)))
	}
	if q.MinSaleDate != nil {
		conditions = append(conditions, "sale_date >= "+arg(*q.MinSaleDate))
	}
	if q.MaxSaleDate != nil {
		conditions = append(conditions, "sale_date <= "+arg(*q.MaxSaleDate))
	}
	if q.SaleNumber != nil {
		conditions = append(conditions, matchCondition("sale_number", *q.SaleNumber, arg))
	}
	if q.CustomerName != nil {
		conditions = append(conditions, matchCondition("customer_name", *q.CustomerName, arg))
	}
	if q.BranchName != nil {
		conditions = append(conditions, matchCondition("branch_name", *q.BranchName, arg))
	}

	query := `
		SELECT id, sale_number, sale_date, customer_id, customer_name, customer_email,
			customer_phone, branch_id, branch_name, status, created_at, updated_at
		FROM sales
	`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += orderBy(q.Order)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]*domain.Sale, 0, 64)
	ids := make([]uuid.UUID, 0, 64)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
		ids = append(ids, sale.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	itemsBySale, err := s.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, sale := range sales {
		if err := sale.InitializeItems(itemsBySale[sale.ID]); err != nil {
			return nil, err
		}
	}
	return sales, nil
}

// matchCondition translates a wildcard filter into an equality or escaped
// LIKE predicate.
func matchCondition(column string, m domain.StringMatch, arg func(any) string) string {
	switch m.Kind {
	case domain.MatchContains:
		return column + " LIKE " + arg("%"+likeEscape(m.Value)+"%")
	case domain.MatchPrefix:
		return column + " LIKE " + arg(likeEscape(m.Value)+"%")
	case domain.MatchSuffix:
		return column + " LIKE " + arg("%"+likeEscape(m.Value))
	default:
		return column + " = " + arg(m.Value)
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likeEscape(value string) string {
	return likeEscaper.Replace(value)
}

// orderBy renders the column-backed clauses. Derived fields are skipped
// here; the caller re-sorts the materialized set when any clause lacks a
// column.
func orderBy(clauses []domain.OrderClause) string {
	parts := make([]string, 0, len(clauses))
	for _, c := range clauses {
		column := c.Field.Column()
		if column == "" {
			continue
		}
		direction := "ASC"
		if c.Desc {
			direction = "DESC"
		}
		parts = append(parts, column+" "+direction)
	}
	if len(parts) == 0 {
		return " ORDER BY created_at DESC"
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSale(row rowScanner) (*domain.Sale, error) {
	var sale domain.Sale
	var status string
	err := row.Scan(
		&sale.ID,
		&sale.SaleNumber,
		&sale.SaleDate,
		&sale.Customer.ID,
		&sale.Customer.Name,
		&sale.Customer.Email,
		&sale.Customer.Phone,
		&sale.Branch.ID,
		&sale.Branch.Name,
		&status,
		&sale.CreatedAt,
		&sale.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	sale.Status = domain.SaleStatus(status)
	sale.SaleDate = sale.SaleDate.UTC()
	sale.CreatedAt = sale.CreatedAt.UTC()
	sale.UpdatedAt = sale.UpdatedAt.UTC()
	return &sale, nil
}

func (s *Store) loadItems(ctx context.Context, saleIDs []uuid.UUID) (map[uuid.UUID][]domain.SaleItem, error) {
	result := make(map[uuid.UUID][]domain.SaleItem, len(saleIDs))
	if len(saleIDs) == 0 {
		return result, nil
	}

	ids := make([]string, 0, len(saleIDs))
	for _, id := range saleIDs {
		ids = append(ids, id.String())
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sale_id, id, product_id, product_title, product_category,
			product_description, quantity, unit_price, discount, is_cancelled,
			created_at, updated_at
		FROM sale_items
		WHERE sale_id = ANY($1::uuid[])
		ORDER BY sale_id, position
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			saleID    uuid.UUID
			itemID    uuid.UUID
			product   domain.Product
			quantity  int
			unitPrice float64
			discount  float64
			cancelled bool
			createdAt time.Time
			updatedAt time.Time
		)
		err := rows.Scan(&saleID, &itemID, &product.ID, &product.Title, &product.Category,
			&product.Description, &quantity, &unitPrice, &discount, &cancelled,
			&createdAt, &updatedAt)
		if err != nil {
			return nil, err
		}
		item, err := domain.RestoreSaleItem(itemID, product, quantity, unitPrice, discount,
			cancelled, createdAt.UTC(), updatedAt.UTC())
		if err != nil {
			return nil, err
		}
		result[saleID] = append(result[saleID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil && isUniqueViolation(err) {
		return store.ErrConflict
	}
	return err
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
