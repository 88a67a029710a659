package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"panaderia/backend/internal/domain"
	"panaderia/backend/internal/store"
	"panaderia/backend/internal/xid"
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
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			category TEXT,
			price DOUBLE PRECISION NOT NULL,
			active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sales (
			id TEXT PRIMARY KEY,
			sale_date DATE NOT NULL,
			payment_method TEXT NOT NULL,
			total DOUBLE PRECISION NOT NULL,
			notes TEXT,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sales_date ON sales (sale_date DESC, id DESC)`,
		`CREATE TABLE IF NOT EXISTS sale_items (
			id TEXT PRIMARY KEY,
			sale_id TEXT NOT NULL REFERENCES sales(id) ON DELETE CASCADE,
			product_id TEXT NOT NULL,
			quantity DOUBLE PRECISION NOT NULL,
			unit_price DOUBLE PRECISION NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sale_items_sale ON sale_items (sale_id)`,
		`CREATE TABLE IF NOT EXISTS cash_closings (
			id TEXT PRIMARY KEY,
			closing_date DATE NOT NULL UNIQUE,
			initial_cash DOUBLE PRECISION NOT NULL DEFAULT 0,
			counted_cash DOUBLE PRECISION NOT NULL DEFAULT 0,
			total_sales DOUBLE PRECISION NOT NULL DEFAULT 0,
			total_cash_sales DOUBLE PRECISION NOT NULL DEFAULT 0,
			expenses DOUBLE PRECISION NOT NULL DEFAULT 0,
			expense_notes TEXT,
			withdrawals DOUBLE PRECISION NOT NULL DEFAULT 0,
			difference DOUBLE PRECISION NOT NULL DEFAULT 0,
			notes TEXT,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	conds := make([]string, 0, 3)
	args := make([]any, 0, 3)
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+search+"%")
		conds = append(conds, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		conds = append(conds, fmt.Sprintf("active = $%d", len(args)))
	}

	query := `SELECT id, name, category, price, active, created_at, updated_at FROM products`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY name, id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Skip > 0 {
		args = append(args, filter.Skip)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, category, price, active, created_at, updated_at
		FROM products
		WHERE id = $1
	`, productID)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.Price <= 0 {
		return nil, store.ErrInvalidInput
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, category, price, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, product.ID, product.Name, nullIfEmpty(product.Category), product.Price, product.Active, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		return nil, err
	}
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.Price <= 0 {
		return nil, store.ErrInvalidInput
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, category = $3, price = $4, active = $5, updated_at = $6
		WHERE id = $1
	`, product.ID, product.Name, nullIfEmpty(product.Category), product.Price, product.Active, product.UpdatedAt)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	updated := product
	return &updated, nil
}

func (s *Store) DeleteProduct(ctx context.Context, productID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
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

func (s *Store) ProductNames(ctx context.Context, productIDs []string) (map[string]string, error) {
	names := make(map[string]string, len(productIDs))
	if len(productIDs) == 0 {
		return names, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name
		FROM products
		WHERE id = ANY($1)
	`, productIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		names[id] = name
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return names, nil
}

func (s *Store) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	conds := make([]string, 0, 3)
	args := make([]any, 0, 3)
	if filter.DateFrom != nil {
		args = append(args, filter.DateFrom.Time())
		conds = append(conds, fmt.Sprintf("sale_date >= $%d", len(args)))
	}
	if filter.DateTo != nil {
		args = append(args, filter.DateTo.Time())
		conds = append(conds, fmt.Sprintf("sale_date <= $%d", len(args)))
	}
	if filter.PaymentMethod != "" {
		args = append(args, filter.PaymentMethod)
		conds = append(conds, fmt.Sprintf("payment_method = $%d", len(args)))
	}

	query := `SELECT id, sale_date, payment_method, total, notes, created_at, updated_at FROM sales`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY sale_date DESC, id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Skip > 0 {
		args = append(args, filter.Skip)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 64)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.attachItems(ctx, sales); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) GetSale(ctx context.Context, saleID string) (*domain.Sale, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, sale_date, payment_method, total, notes, created_at, updated_at
		FROM sales
		WHERE id = $1
	`, saleID)
	sale, err := scanSale(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	sales := []domain.Sale{sale}
	if err := s.attachItems(ctx, sales); err != nil {
		return nil, err
	}
	return &sales[0], nil
}

// attachItems loads the item rows for the given sales in one query.
func (s *Store) attachItems(ctx context.Context, sales []domain.Sale) error {
	if len(sales) == 0 {
		return nil
	}
	index := make(map[string]int, len(sales))
	ids := make([]string, 0, len(sales))
	for i := range sales {
		sales[i].Items = []domain.SaleItem{}
		index[sales[i].ID] = i
		ids = append(ids, sales[i].ID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sale_id, product_id, quantity, unit_price
		FROM sale_items
		WHERE sale_id = ANY($1)
		ORDER BY id
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.SaleItem
		if err := rows.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.Quantity, &item.UnitPrice); err != nil {
			return err
		}
		if i, ok := index[item.SaleID]; ok {
			sales[i].Items = append(sales[i].Items, item)
		}
	}
	return rows.Err()
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.Date.IsZero() || sale.PaymentMethod == "" {
		return nil, store.ErrInvalidInput
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (id, sale_date, payment_method, total, notes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, sale.ID, sale.Date.Time(), sale.PaymentMethod, sale.Total, nullIfEmpty(sale.Notes), sale.CreatedAt, sale.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := insertItems(ctx, tx, sale.ID, sale.Items); err != nil {
		return nil, err
	}
	for i := range sale.Items {
		sale.Items[i].SaleID = sale.ID
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := sale
	return &created, nil
}

func (s *Store) UpdateSale(ctx context.Context, sale domain.Sale, replaceItems bool) (*domain.Sale, error) {
	if sale.Date.IsZero() || sale.PaymentMethod == "" {
		return nil, store.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE sales
		SET sale_date = $2, payment_method = $3, total = $4, notes = $5, updated_at = $6
		WHERE id = $1
	`, sale.ID, sale.Date.Time(), sale.PaymentMethod, sale.Total, nullIfEmpty(sale.Notes), sale.UpdatedAt)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	if replaceItems {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sale_items WHERE sale_id = $1`, sale.ID); err != nil {
			return nil, err
		}
		if err := insertItems(ctx, tx, sale.ID, sale.Items); err != nil {
			return nil, err
		}
		for i := range sale.Items {
			sale.Items[i].SaleID = sale.ID
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if !replaceItems {
		return s.GetSale(ctx, sale.ID)
	}
	updated := sale
	return &updated, nil
}

func insertItems(ctx context.Context, tx *sql.Tx, saleID string, items []domain.SaleItem) error {
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = xid.New("item")
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sale_items (id, sale_id, product_id, quantity, unit_price)
			VALUES ($1,$2,$3,$4,$5)
		`, items[i].ID, saleID, items[i].ProductID, items[i].Quantity, items[i].UnitPrice)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) DeleteSale(ctx context.Context, saleID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, saleID)
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

func (s *Store) ListCashClosings(ctx context.Context, filter domain.CashClosingFilter) ([]domain.CashClosing, error) {
	conds := make([]string, 0, 2)
	args := make([]any, 0, 4)
	if filter.DateFrom != nil {
		args = append(args, filter.DateFrom.Time())
		conds = append(conds, fmt.Sprintf("closing_date >= $%d", len(args)))
	}
	if filter.DateTo != nil {
		args = append(args, filter.DateTo.Time())
		conds = append(conds, fmt.Sprintf("closing_date <= $%d", len(args)))
	}

	query := `
		SELECT id, closing_date, initial_cash, counted_cash, total_sales, total_cash_sales,
			expenses, expense_notes, withdrawals, difference, notes, created_at, updated_at
		FROM cash_closings`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY closing_date DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Skip > 0 {
		args = append(args, filter.Skip)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	closings := make([]domain.CashClosing, 0, 32)
	for rows.Next() {
		c, err := scanClosing(rows)
		if err != nil {
			return nil, err
		}
		closings = append(closings, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return closings, nil
}

func (s *Store) GetCashClosing(ctx context.Context, closingID string) (*domain.CashClosing, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, closing_date, initial_cash, counted_cash, total_sales, total_cash_sales,
			expenses, expense_notes, withdrawals, difference, notes, created_at, updated_at
		FROM cash_closings
		WHERE id = $1
	`, closingID)
	c, err := scanClosing(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) GetCashClosingByDate(ctx context.Context, date domain.Date) (*domain.CashClosing, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, closing_date, initial_cash, counted_cash, total_sales, total_cash_sales,
			expenses, expense_notes, withdrawals, difference, notes, created_at, updated_at
		FROM cash_closings
		WHERE closing_date = $1
	`, date.Time())
	c, err := scanClosing(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) CreateCashClosing(ctx context.Context, closing domain.CashClosing) (*domain.CashClosing, error) {
	if closing.Date.IsZero() {
		return nil, store.ErrInvalidInput
	}
	if closing.ID == "" {
		closing.ID = xid.New("close")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cash_closings (
			id, closing_date, initial_cash, counted_cash, total_sales, total_cash_sales,
			expenses, expense_notes, withdrawals, difference, notes, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, closing.ID, closing.Date.Time(), closing.InitialCash, closing.CountedCash,
		closing.TotalSales, closing.TotalCashSales, closing.Expenses,
		nullIfEmpty(closing.ExpenseNotes), closing.Withdrawals, closing.Difference,
		nullIfEmpty(closing.Notes), closing.CreatedAt, closing.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrClosingExists
		}
		return nil, err
	}
	created := closing
	return &created, nil
}

func (s *Store) UpdateCashClosing(ctx context.Context, closing domain.CashClosing) (*domain.CashClosing, error) {
	if closing.Date.IsZero() {
		return nil, store.ErrInvalidInput
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE cash_closings
		SET closing_date = $2, initial_cash = $3, counted_cash = $4, total_sales = $5,
			total_cash_sales = $6, expenses = $7, expense_notes = $8, withdrawals = $9,
			difference = $10, notes = $11, updated_at = $12
		WHERE id = $1
	`, closing.ID, closing.Date.Time(), closing.InitialCash, closing.CountedCash,
		closing.TotalSales, closing.TotalCashSales, closing.Expenses,
		nullIfEmpty(closing.ExpenseNotes), closing.Withdrawals, closing.Difference,
		nullIfEmpty(closing.Notes), closing.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrClosingExists
		}
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetCashClosing(ctx, closing.ID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	var category sql.NullString
	err := row.Scan(&p.ID, &p.Name, &category, &p.Price, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return domain.Product{}, err
	}
	p.Category = category.String
	return p, nil
}

func scanSale(row rowScanner) (domain.Sale, error) {
	var sale domain.Sale
	var date time.Time
	var notes sql.NullString
	err := row.Scan(&sale.ID, &date, &sale.PaymentMethod, &sale.Total, &notes, &sale.CreatedAt, &sale.UpdatedAt)
	if err != nil {
		return domain.Sale{}, err
	}
	sale.Date = domain.DateOf(date)
	sale.Notes = notes.String
	return sale, nil
}

func scanClosing(row rowScanner) (domain.CashClosing, error) {
	var c domain.CashClosing
	var date time.Time
	var expenseNotes, notes sql.NullString
	err := row.Scan(&c.ID, &date, &c.InitialCash, &c.CountedCash, &c.TotalSales,
		&c.TotalCashSales, &c.Expenses, &expenseNotes, &c.Withdrawals, &c.Difference,
		&notes, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return domain.CashClosing{}, err
	}
	c.Date = domain.DateOf(date)
	c.ExpenseNotes = expenseNotes.String
	c.Notes = notes.String
	return c, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
