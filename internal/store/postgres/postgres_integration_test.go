package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"panaderia/backend/internal/domain"
	"panaderia/backend/internal/store"
)

func newIntegrationStore(t *testing.T) *Store {
	t.Helper()

	databaseURL := os.Getenv("PANADERIA_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set PANADERIA_TEST_DATABASE_URL to run postgres integration tests")
	}

	s, err := New(context.Background(), databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func TestSaleItemsCascadeOnDelete(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	stamp := time.Now().UnixNano()
	productID := fmt.Sprintf("prod-it-%d", stamp)
	saleID := fmt.Sprintf("sale-it-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sale_items WHERE sale_id = $1`, saleID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, saleID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
	})

	now := time.Now().UTC()
	if _, err := s.CreateProduct(ctx, domain.Product{
		ID:        productID,
		Name:      "Pan Integración",
		Category:  "Panadería",
		Price:     12,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		t.Fatalf("create product: %v", err)
	}

	date, _ := domain.ParseDate("2026-03-10")
	created, err := s.CreateSale(ctx, domain.Sale{
		ID:            saleID,
		Date:          date,
		PaymentMethod: domain.PaymentCash,
		Total:         24,
		Items: []domain.SaleItem{
			{ProductID: productID, Quantity: 2, UnitPrice: 12},
		},
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	fetched, err := s.GetSale(ctx, created.ID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	if len(fetched.Items) != 1 || fetched.Items[0].ProductID != productID {
		t.Fatalf("expected persisted sale with 1 item, got %+v", fetched.Items)
	}

	if err := s.DeleteSale(ctx, saleID); err != nil {
		t.Fatalf("delete sale: %v", err)
	}

	var remaining int
	if err := s.db.QueryRowContext(ctx, `
		SELECT count(*)
		FROM sale_items
		WHERE sale_id = $1
	`, saleID).Scan(&remaining); err != nil {
		t.Fatalf("count sale items: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected items removed with the sale, got %d rows", remaining)
	}
}

func TestCashClosingDateUniqueViolation(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	stamp := time.Now().UnixNano()
	closingID := fmt.Sprintf("close-it-%d", stamp)

	// A date far from real traffic keeps reruns from colliding with
	// operator data.
	date := domain.DateOf(time.Unix(0, stamp).AddDate(50, 0, 0))

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM cash_closings WHERE closing_date = $1`, date.Time())
	})

	now := time.Now().UTC()
	closing := domain.CashClosing{
		ID:          closingID,
		Date:        date,
		InitialCash: 100,
		CountedCash: 100,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.CreateCashClosing(ctx, closing); err != nil {
		t.Fatalf("create closing: %v", err)
	}

	closing.ID = closingID + "-dup"
	if _, err := s.CreateCashClosing(ctx, closing); !errors.Is(err, store.ErrClosingExists) {
		t.Fatalf("expected closing-exists on duplicate date, got %v", err)
	}

	fetched, err := s.GetCashClosingByDate(ctx, date)
	if err != nil {
		t.Fatalf("get closing by date: %v", err)
	}
	if fetched.ID != closingID {
		t.Fatalf("expected original closing to win, got %s", fetched.ID)
	}
}
