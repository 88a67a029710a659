package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"panaderia/backend/internal/domain"
	"panaderia/backend/internal/store"
	"panaderia/backend/internal/xid"
)

type Store struct {
	mu       sync.RWMutex
	products map[string]domain.Product
	sales    map[string]domain.Sale
	closings map[string]domain.CashClosing
}

func New() *Store {
	return &Store{
		products: make(map[string]domain.Product),
		sales:    make(map[string]domain.Sale),
		closings: make(map[string]domain.CashClosing),
	}
}

// NewSeeded returns a store preloaded with a small bakery catalog for
// dev/demo mode.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()
	seed := []domain.Product{
		{Name: "Pan Francés", Category: "Panadería", Price: 2.50},
		{Name: "Baguette", Category: "Panadería", Price: 15.00},
		{Name: "Bolillo", Category: "Panadería", Price: 3.00},
		{Name: "Croissant", Category: "Hojaldre", Price: 18.00},
		{Name: "Oreja", Category: "Hojaldre", Price: 12.00},
		{Name: "Concha de Vainilla", Category: "Pan Dulce", Price: 9.00},
		{Name: "Concha de Chocolate", Category: "Pan Dulce", Price: 9.00},
		{Name: "Dona Glaseada", Category: "Pan Dulce", Price: 14.00},
		{Name: "Cuernito", Category: "Pan Dulce", Price: 10.00},
		{Name: "Pastel de Chocolate", Category: "Pasteles", Price: 320.00},
		{Name: "Galletas Surtidas (kg)", Category: "Galletas", Price: 180.00},
		{Name: "Café Americano", Category: "Bebidas", Price: 25.00},
	}
	for _, p := range seed {
		p.ID = xid.New("prod")
		p.Active = true
		p.CreatedAt = now
		p.UpdatedAt = now
		s.products[p.ID] = p
	}
	return s
}

func (s *Store) ListProducts(_ context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) {
			continue
		}
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if filter.Active != nil && p.Active != *filter.Active {
			continue
		}
		products = append(products, p)
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Name == b.Name {
			return cmpString(a.ID, b.ID)
		}
		return cmpString(a.Name, b.Name)
	})

	return window(products, filter.Skip, filter.Limit), nil
}

func (s *Store) GetProduct(_ context.Context, productID string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[productID]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.Name == "" || product.Price <= 0 {
		return nil, store.ErrInvalidInput
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
		product.UpdatedAt = product.CreatedAt
	}

	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.Name == "" || product.Price <= 0 {
		return nil, store.ErrInvalidInput
	}
	if _, exists := s.products[product.ID]; !exists {
		return nil, store.ErrNotFound
	}

	s.products[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) DeleteProduct(_ context.Context, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[productID]; !exists {
		return store.ErrNotFound
	}
	delete(s.products, productID)
	return nil
}

func (s *Store) ProductNames(_ context.Context, productIDs []string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make(map[string]string, len(productIDs))
	for _, id := range productIDs {
		if p, exists := s.products[id]; exists {
			names[id] = p.Name
		}
	}
	return names, nil
}

func (s *Store) ListSales(_ context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		if filter.DateFrom != nil && sale.Date.Before(*filter.DateFrom) {
			continue
		}
		if filter.DateTo != nil && sale.Date.After(*filter.DateTo) {
			continue
		}
		if filter.PaymentMethod != "" && sale.PaymentMethod != filter.PaymentMethod {
			continue
		}
		sales = append(sales, cloneSale(sale))
	}

	slices.SortFunc(sales, func(a, b domain.Sale) int {
		if a.Date.Equal(b.Date) {
			return cmpString(b.ID, a.ID)
		}
		if a.Date.After(b.Date) {
			return -1
		}
		return 1
	})

	return window(sales, filter.Skip, filter.Limit), nil
}

func (s *Store) GetSale(_ context.Context, saleID string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.sales[saleID]
	if !exists {
		return nil, store.ErrNotFound
	}
	copySale := cloneSale(sale)
	return &copySale, nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sale.Date.IsZero() || sale.PaymentMethod == "" {
		return nil, store.ErrInvalidInput
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	for i := range sale.Items {
		if sale.Items[i].ID == "" {
			sale.Items[i].ID = xid.New("item")
		}
		sale.Items[i].SaleID = sale.ID
	}

	s.sales[sale.ID] = cloneSale(sale)
	created := cloneSale(sale)
	return &created, nil
}

func (s *Store) UpdateSale(_ context.Context, sale domain.Sale, replaceItems bool) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.sales[sale.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if sale.Date.IsZero() || sale.PaymentMethod == "" {
		return nil, store.ErrInvalidInput
	}

	if replaceItems {
		for i := range sale.Items {
			if sale.Items[i].ID == "" {
				sale.Items[i].ID = xid.New("item")
			}
			sale.Items[i].SaleID = sale.ID
		}
	} else {
		sale.Items = current.Items
	}
	sale.CreatedAt = current.CreatedAt

	s.sales[sale.ID] = cloneSale(sale)
	updated := cloneSale(sale)
	return &updated, nil
}

func (s *Store) DeleteSale(_ context.Context, saleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sales[saleID]; !exists {
		return store.ErrNotFound
	}
	delete(s.sales, saleID)
	return nil
}

func (s *Store) ListCashClosings(_ context.Context, filter domain.CashClosingFilter) ([]domain.CashClosing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	closings := make([]domain.CashClosing, 0, len(s.closings))
	for _, c := range s.closings {
		if filter.DateFrom != nil && c.Date.Before(*filter.DateFrom) {
			continue
		}
		if filter.DateTo != nil && c.Date.After(*filter.DateTo) {
			continue
		}
		closings = append(closings, c)
	}

	slices.SortFunc(closings, func(a, b domain.CashClosing) int {
		if a.Date.Equal(b.Date) {
			return cmpString(b.ID, a.ID)
		}
		if a.Date.After(b.Date) {
			return -1
		}
		return 1
	})

	return window(closings, filter.Skip, filter.Limit), nil
}

func (s *Store) GetCashClosing(_ context.Context, closingID string) (*domain.CashClosing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	closing, exists := s.closings[closingID]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyClosing := closing
	return &copyClosing, nil
}

func (s *Store) GetCashClosingByDate(_ context.Context, date domain.Date) (*domain.CashClosing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.closings {
		if c.Date.Equal(date) {
			copyClosing := c
			return &copyClosing, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateCashClosing(_ context.Context, closing domain.CashClosing) (*domain.CashClosing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if closing.Date.IsZero() {
		return nil, store.ErrInvalidInput
	}
	for _, existing := range s.closings {
		if existing.Date.Equal(closing.Date) {
			return nil, store.ErrClosingExists
		}
	}
	if closing.ID == "" {
		closing.ID = xid.New("close")
	}
	if closing.CreatedAt.IsZero() {
		closing.CreatedAt = time.Now().UTC()
	}

	s.closings[closing.ID] = closing
	created := closing
	return &created, nil
}

func (s *Store) UpdateCashClosing(_ context.Context, closing domain.CashClosing) (*domain.CashClosing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.closings[closing.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if closing.Date.IsZero() {
		return nil, store.ErrInvalidInput
	}
	for id, existing := range s.closings {
		if id != closing.ID && existing.Date.Equal(closing.Date) {
			return nil, store.ErrClosingExists
		}
	}
	closing.CreatedAt = current.CreatedAt

	s.closings[closing.ID] = closing
	updated := closing
	return &updated, nil
}

func cloneSale(sale domain.Sale) domain.Sale {
	copySale := sale
	copySale.Items = make([]domain.SaleItem, len(sale.Items))
	copy(copySale.Items, sale.Items)
	return copySale
}

func window[T any](items []T, skip, limit int) []T {
	if skip > 0 {
		if skip >= len(items) {
			return []T{}
		}
		items = items[skip:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
