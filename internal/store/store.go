package store

import (
	"context"
	"errors"

	"panaderia/backend/internal/domain"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrClosingExists = errors.New("cash closing already exists for date")
)

type Repository interface {
	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, productID string) error
	ProductNames(ctx context.Context, productIDs []string) (map[string]string, error)

	ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error)
	GetSale(ctx context.Context, saleID string) (*domain.Sale, error)
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	UpdateSale(ctx context.Context, sale domain.Sale, replaceItems bool) (*domain.Sale, error)
	DeleteSale(ctx context.Context, saleID string) error

	ListCashClosings(ctx context.Context, filter domain.CashClosingFilter) ([]domain.CashClosing, error)
	GetCashClosing(ctx context.Context, closingID string) (*domain.CashClosing, error)
	GetCashClosingByDate(ctx context.Context, date domain.Date) (*domain.CashClosing, error)
	CreateCashClosing(ctx context.Context, closing domain.CashClosing) (*domain.CashClosing, error)
	UpdateCashClosing(ctx context.Context, closing domain.CashClosing) (*domain.CashClosing, error)
}
