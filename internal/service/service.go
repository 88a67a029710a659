package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"panaderia/backend/internal/cache"
	"panaderia/backend/internal/domain"
	"panaderia/backend/internal/store"
	"panaderia/backend/internal/xid"
)

const summaryTTL = 30 * time.Second

type Service struct {
	repo      store.Repository
	summaries cache.SummaryCache
}

func New(repo store.Repository, summaries cache.SummaryCache) *Service {
	if summaries == nil {
		summaries = cache.NoopSummaryCache{}
	}

	return &Service{
		repo:      repo,
		summaries: summaries,
	}
}

func (s *Service) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx, filter)
}

func (s *Service) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	if productID == "" {
		return nil, store.ErrInvalidInput
	}
	return s.repo.GetProduct(ctx, productID)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (*domain.Product, error) {
	name, err := validProductName(req.Name)
	if err != nil {
		return nil, err
	}
	category, err := validProductCategory(req.Category)
	if err != nil {
		return nil, err
	}
	if req.Price <= 0 {
		return nil, fmt.Errorf("%w: price must be positive", store.ErrInvalidInput)
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	now := time.Now().UTC()
	product := domain.Product{
		ID:        xid.New("prod"),
		Name:      name,
		Category:  category,
		Price:     req.Price,
		Active:    active,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return s.repo.CreateProduct(ctx, product)
}

func (s *Service) UpdateProduct(ctx context.Context, productID string, req domain.ProductUpdateRequest) (*domain.Product, error) {
	existing, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	updated := *existing
	if req.Name != nil {
		name, err := validProductName(*req.Name)
		if err != nil {
			return nil, err
		}
		updated.Name = name
	}
	if req.Category != nil {
		category, err := validProductCategory(*req.Category)
		if err != nil {
			return nil, err
		}
		updated.Category = category
	}
	if req.Price != nil {
		if *req.Price <= 0 {
			return nil, fmt.Errorf("%w: price must be positive", store.ErrInvalidInput)
		}
		updated.Price = *req.Price
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}
	updated.UpdatedAt = time.Now().UTC()

	return s.repo.UpdateProduct(ctx, updated)
}

func (s *Service) DeleteProduct(ctx context.Context, productID string) error {
	if productID == "" {
		return store.ErrInvalidInput
	}
	return s.repo.DeleteProduct(ctx, productID)
}

func validProductName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name is required", store.ErrInvalidInput)
	}
	if len(name) > 200 {
		return "", fmt.Errorf("%w: name exceeds 200 characters", store.ErrInvalidInput)
	}
	return name, nil
}

func validProductCategory(category string) (string, error) {
	category = strings.TrimSpace(category)
	if len(category) > 100 {
		return "", fmt.Errorf("%w: category exceeds 100 characters", store.ErrInvalidInput)
	}
	return category, nil
}

func (s *Service) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	if filter.PaymentMethod != "" && !domain.ValidPaymentMethod(filter.PaymentMethod) {
		return nil, fmt.Errorf("%w: unknown payment method %q", store.ErrInvalidInput, filter.PaymentMethod)
	}
	sales, err := s.repo.ListSales(ctx, filter)
	if err != nil {
		return nil, err
	}
	if err := s.enrichSales(ctx, sales); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Service) GetSale(ctx context.Context, saleID string) (*domain.Sale, error) {
	if saleID == "" {
		return nil, store.ErrInvalidInput
	}
	sale, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if err := s.enrichSale(ctx, sale); err != nil {
		return nil, err
	}
	return sale, nil
}

func (s *Service) CreateSale(ctx context.Context, req domain.SaleCreateRequest) (*domain.Sale, error) {
	if !domain.ValidPaymentMethod(req.PaymentMethod) {
		return nil, fmt.Errorf("%w: unknown payment method %q", store.ErrInvalidInput, req.PaymentMethod)
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: sale requires at least one item", store.ErrInvalidInput)
	}

	items, total, err := buildItems(req.Items)
	if err != nil {
		return nil, err
	}

	date := domain.Today()
	if req.Date != nil && !req.Date.IsZero() {
		date = *req.Date
	}

	now := time.Now().UTC()
	sale := domain.Sale{
		ID:            xid.New("sale"),
		Date:          date,
		PaymentMethod: req.PaymentMethod,
		Total:         total,
		Notes:         strings.TrimSpace(req.Notes),
		Items:         items,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	created, err := s.repo.CreateSale(ctx, sale)
	if err != nil {
		return nil, err
	}
	s.invalidateSummaries(ctx)
	if err := s.enrichSale(ctx, created); err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Service) UpdateSale(ctx context.Context, saleID string, req domain.SaleUpdateRequest) (*domain.Sale, error) {
	existing, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return nil, err
	}

	updated := *existing
	if req.Date != nil && !req.Date.IsZero() {
		updated.Date = *req.Date
	}
	if req.PaymentMethod != nil {
		if !domain.ValidPaymentMethod(*req.PaymentMethod) {
			return nil, fmt.Errorf("%w: unknown payment method %q", store.ErrInvalidInput, *req.PaymentMethod)
		}
		updated.PaymentMethod = *req.PaymentMethod
	}
	if req.Notes != nil {
		updated.Notes = strings.TrimSpace(*req.Notes)
	}

	replaceItems := req.Items != nil
	if replaceItems {
		items, total, err := buildItems(*req.Items)
		if err != nil {
			return nil, err
		}
		updated.Items = items
		updated.Total = total
	}
	updated.UpdatedAt = time.Now().UTC()

	saved, err := s.repo.UpdateSale(ctx, updated, replaceItems)
	if err != nil {
		return nil, err
	}
	s.invalidateSummaries(ctx)
	if err := s.enrichSale(ctx, saved); err != nil {
		return nil, err
	}
	return saved, nil
}

func (s *Service) DeleteSale(ctx context.Context, saleID string) error {
	if saleID == "" {
		return store.ErrInvalidInput
	}
	if err := s.repo.DeleteSale(ctx, saleID); err != nil {
		return err
	}
	s.invalidateSummaries(ctx)
	return nil
}

// buildItems validates the requested line items and computes the sale
// total. Item ids are assigned here so the store writes them verbatim.
func buildItems(inputs []domain.SaleItemInput) ([]domain.SaleItem, float64, error) {
	items := make([]domain.SaleItem, 0, len(inputs))
	var total float64
	for _, in := range inputs {
		if strings.TrimSpace(in.ProductID) == "" {
			return nil, 0, fmt.Errorf("%w: item product_id is required", store.ErrInvalidInput)
		}
		if in.Quantity <= 0 {
			return nil, 0, fmt.Errorf("%w: item quantity must be positive", store.ErrInvalidInput)
		}
		if in.UnitPrice <= 0 {
			return nil, 0, fmt.Errorf("%w: item unit_price must be positive", store.ErrInvalidInput)
		}
		items = append(items, domain.SaleItem{
			ID:        xid.New("item"),
			ProductID: strings.TrimSpace(in.ProductID),
			Quantity:  in.Quantity,
			UnitPrice: in.UnitPrice,
		})
		total += in.Quantity * in.UnitPrice
	}
	return items, total, nil
}

func (s *Service) enrichSale(ctx context.Context, sale *domain.Sale) error {
	if sale == nil {
		return nil
	}
	return s.enrichSales(ctx, nil, sale)
}

// enrichSales attaches the current product name and line subtotal to
// every item. Names are a point-in-time display join; a deleted product
// yields a null name.
func (s *Service) enrichSales(ctx context.Context, sales []domain.Sale, extra ...*domain.Sale) error {
	all := make([]*domain.Sale, 0, len(sales)+len(extra))
	for i := range sales {
		all = append(all, &sales[i])
	}
	all = append(all, extra...)

	seen := make(map[string]struct{})
	ids := make([]string, 0, 8)
	for _, sale := range all {
		for _, item := range sale.Items {
			if _, ok := seen[item.ProductID]; ok {
				continue
			}
			seen[item.ProductID] = struct{}{}
			ids = append(ids, item.ProductID)
		}
	}

	names := map[string]string{}
	if len(ids) > 0 {
		var err error
		names, err = s.repo.ProductNames(ctx, ids)
		if err != nil {
			return err
		}
	}

	for _, sale := range all {
		for i := range sale.Items {
			item := &sale.Items[i]
			item.Subtotal = item.Quantity * item.UnitPrice
			if name, ok := names[item.ProductID]; ok {
				nameCopy := name
				item.ProductName = &nameCopy
			} else {
				item.ProductName = nil
			}
		}
	}
	return nil
}

func (s *Service) SalesSummary(ctx context.Context, dateFrom, dateTo *domain.Date) (*domain.SalesSummary, error) {
	key := summaryKey(dateFrom, dateTo)
	if cached, ok, err := s.summaries.Get(ctx, key); err != nil {
		log.Printf("[service] WARN: summary cache read failed: %v", err)
	} else if ok {
		return cached, nil
	}

	sales, err := s.repo.ListSales(ctx, domain.SaleFilter{DateFrom: dateFrom, DateTo: dateTo})
	if err != nil {
		return nil, err
	}

	summary := &domain.SalesSummary{PaymentTotals: map[string]float64{}}
	for _, sale := range sales {
		summary.TotalAmount += sale.Total
		summary.TotalCount++
		summary.PaymentTotals[sale.PaymentMethod] += sale.Total
	}
	if summary.TotalCount > 0 {
		summary.AverageTicket = round2(summary.TotalAmount / float64(summary.TotalCount))
	}

	if err := s.summaries.Set(ctx, key, summary, summaryTTL); err != nil {
		log.Printf("[service] WARN: summary cache write failed: %v", err)
	}
	return summary, nil
}

func summaryKey(dateFrom, dateTo *domain.Date) string {
	from, to := "*", "*"
	if dateFrom != nil {
		from = dateFrom.String()
	}
	if dateTo != nil {
		to = dateTo.String()
	}
	return from + ".." + to
}

func (s *Service) invalidateSummaries(ctx context.Context) {
	if err := s.summaries.Invalidate(ctx); err != nil {
		log.Printf("[service] WARN: summary cache invalidation failed: %v", err)
	}
}

// dayTotals computes the ledger aggregates for a single date: the sum
// of all sale totals and the sum over cash-moving payment methods.
func (s *Service) dayTotals(ctx context.Context, date domain.Date) (totalSales, totalCashSales float64, err error) {
	sales, err := s.repo.ListSales(ctx, domain.SaleFilter{DateFrom: &date, DateTo: &date})
	if err != nil {
		return 0, 0, err
	}
	for _, sale := range sales {
		totalSales += sale.Total
		if domain.IsCashPayment(sale.PaymentMethod) {
			totalCashSales += sale.Total
		}
	}
	return totalSales, totalCashSales, nil
}

// CashClosingStatus returns the recorded closing for the date when one
// exists. Otherwise it returns a live projection of the day's totals so
// the caller can pre-fill a closing form; the projection is never
// persisted.
func (s *Service) CashClosingStatus(ctx context.Context, date *domain.Date) (*domain.CashClosing, *domain.DayTotals, error) {
	day := domain.Today()
	if date != nil && !date.IsZero() {
		day = *date
	}

	closing, err := s.repo.GetCashClosingByDate(ctx, day)
	if err == nil {
		return closing, nil, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, nil, err
	}

	totalSales, totalCashSales, err := s.dayTotals(ctx, day)
	if err != nil {
		return nil, nil, err
	}
	return nil, &domain.DayTotals{
		Date:           day,
		TotalSales:     totalSales,
		TotalCashSales: totalCashSales,
	}, nil
}

func (s *Service) CreateCashClosing(ctx context.Context, req domain.CashClosingCreateRequest) (*domain.CashClosing, error) {
	if err := validCashAmounts(req.InitialCash, req.CountedCash, req.Expenses, req.Withdrawals); err != nil {
		return nil, err
	}

	date := domain.Today()
	if req.Date != nil && !req.Date.IsZero() {
		date = *req.Date
	}

	totalSales, totalCashSales, err := s.dayTotals(ctx, date)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	closing := domain.CashClosing{
		ID:             xid.New("close"),
		Date:           date,
		InitialCash:    req.InitialCash,
		CountedCash:    req.CountedCash,
		TotalSales:     totalSales,
		TotalCashSales: totalCashSales,
		Expenses:       req.Expenses,
		ExpenseNotes:   strings.TrimSpace(req.ExpenseNotes),
		Withdrawals:    req.Withdrawals,
		Difference:     difference(req.CountedCash, req.InitialCash, totalCashSales, req.Expenses, req.Withdrawals),
		Notes:          strings.TrimSpace(req.Notes),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return s.repo.CreateCashClosing(ctx, closing)
}

func (s *Service) UpdateCashClosing(ctx context.Context, closingID string, req domain.CashClosingUpdateRequest) (*domain.CashClosing, error) {
	existing, err := s.repo.GetCashClosing(ctx, closingID)
	if err != nil {
		return nil, err
	}

	updated := *existing
	if req.Date != nil && !req.Date.IsZero() {
		updated.Date = *req.Date
	}
	if req.InitialCash != nil {
		updated.InitialCash = *req.InitialCash
	}
	if req.CountedCash != nil {
		updated.CountedCash = *req.CountedCash
	}
	if req.Expenses != nil {
		updated.Expenses = *req.Expenses
	}
	if req.ExpenseNotes != nil {
		updated.ExpenseNotes = strings.TrimSpace(*req.ExpenseNotes)
	}
	if req.Withdrawals != nil {
		updated.Withdrawals = *req.Withdrawals
	}
	if req.Notes != nil {
		updated.Notes = strings.TrimSpace(*req.Notes)
	}
	if err := validCashAmounts(updated.InitialCash, updated.CountedCash, updated.Expenses, updated.Withdrawals); err != nil {
		return nil, err
	}

	// Re-snapshot: totals and difference always reflect the ledger at
	// the moment of this call, against the possibly changed date.
	totalSales, totalCashSales, err := s.dayTotals(ctx, updated.Date)
	if err != nil {
		return nil, err
	}
	updated.TotalSales = totalSales
	updated.TotalCashSales = totalCashSales
	updated.Difference = difference(updated.CountedCash, updated.InitialCash, totalCashSales, updated.Expenses, updated.Withdrawals)
	updated.UpdatedAt = time.Now().UTC()

	return s.repo.UpdateCashClosing(ctx, updated)
}

func (s *Service) ListCashClosings(ctx context.Context, filter domain.CashClosingFilter) ([]domain.CashClosing, error) {
	return s.repo.ListCashClosings(ctx, filter)
}

func validCashAmounts(initialCash, countedCash, expenses, withdrawals float64) error {
	if initialCash < 0 || countedCash < 0 || expenses < 0 || withdrawals < 0 {
		return fmt.Errorf("%w: cash amounts must not be negative", store.ErrInvalidInput)
	}
	return nil
}

func difference(countedCash, initialCash, totalCashSales, expenses, withdrawals float64) float64 {
	expected := initialCash + totalCashSales - expenses - withdrawals
	return countedCash - expected
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
