package domain

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// Date is a civil calendar date held at midnight UTC. It marshals as
// "2006-01-02".
type Date struct {
	t time.Time
}

func DateOf(t time.Time) Date {
	u := t.UTC()
	return Date{t: time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)}
}

func Today() Date {
	return DateOf(time.Now())
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{t: t}, nil
}

func (d Date) String() string {
	return d.t.Format(DateLayout)
}

func (d Date) Time() time.Time {
	return d.t
}

func (d Date) IsZero() bool {
	return d.t.IsZero()
}

func (d Date) Equal(o Date) bool {
	return d.t.Equal(o.t)
}

func (d Date) Before(o Date) bool {
	return d.t.Before(o.t)
}

func (d Date) After(o Date) bool {
	return d.t.After(o.t)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		*d = Date{}
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("date must be a %q string", DateLayout)
	}
	parsed, err := ParseDate(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

const (
	PaymentCash     = "cash"
	PaymentCard     = "card"
	PaymentTransfer = "transfer"
	PaymentMixed    = "mixed"
)

func ValidPaymentMethod(m string) bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentTransfer, PaymentMixed:
		return true
	}
	return false
}

// IsCashPayment reports whether a payment method moves physical cash
// through the register drawer.
func IsCashPayment(m string) bool {
	return m == PaymentCash || m == PaymentMixed
}

type Product struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Price     float64   `json:"price"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ProductCreateRequest struct {
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
	Active   *bool   `json:"active,omitempty"`
}

type ProductUpdateRequest struct {
	Name     *string  `json:"name,omitempty"`
	Category *string  `json:"category,omitempty"`
	Price    *float64 `json:"price,omitempty"`
	Active   *bool    `json:"active,omitempty"`
}

type ProductFilter struct {
	Search   string
	Category string
	Active   *bool
	Skip     int
	Limit    int
}

type SaleItem struct {
	ID        string  `json:"id"`
	SaleID    string  `json:"sale_id"`
	ProductID string  `json:"product_id"`
	// ProductName is joined at read time and is null when the product
	// has since been deleted.
	ProductName *string `json:"product_name"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Subtotal    float64 `json:"subtotal"`
}

type Sale struct {
	ID            string     `json:"id"`
	Date          Date       `json:"date"`
	PaymentMethod string     `json:"payment_method"`
	Total         float64    `json:"total"`
	Notes         string     `json:"notes"`
	Items         []SaleItem `json:"items"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type SaleItemInput struct {
	ProductID string  `json:"product_id"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

type SaleCreateRequest struct {
	Date          *Date           `json:"date,omitempty"`
	PaymentMethod string          `json:"payment_method"`
	Notes         string          `json:"notes"`
	Items         []SaleItemInput `json:"items"`
}

type SaleUpdateRequest struct {
	Date          *Date            `json:"date,omitempty"`
	PaymentMethod *string          `json:"payment_method,omitempty"`
	Notes         *string          `json:"notes,omitempty"`
	Items         *[]SaleItemInput `json:"items,omitempty"`
}

type SaleFilter struct {
	DateFrom      *Date
	DateTo        *Date
	PaymentMethod string
	Skip          int
	Limit         int
}

type SalesSummary struct {
	TotalAmount   float64            `json:"total_amount"`
	TotalCount    int                `json:"total_count"`
	AverageTicket float64            `json:"average_ticket"`
	PaymentTotals map[string]float64 `json:"payment_totals"`
}

type CashClosing struct {
	ID             string    `json:"id"`
	Date           Date      `json:"date"`
	InitialCash    float64   `json:"initial_cash"`
	CountedCash    float64   `json:"counted_cash"`
	TotalSales     float64   `json:"total_sales"`
	TotalCashSales float64   `json:"total_cash_sales"`
	Expenses       float64   `json:"expenses"`
	ExpenseNotes   string    `json:"expense_notes"`
	Withdrawals    float64   `json:"withdrawals"`
	Difference     float64   `json:"difference"`
	Notes          string    `json:"notes"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type CashClosingCreateRequest struct {
	Date         *Date   `json:"date,omitempty"`
	InitialCash  float64 `json:"initial_cash"`
	CountedCash  float64 `json:"counted_cash"`
	Expenses     float64 `json:"expenses"`
	ExpenseNotes string  `json:"expense_notes"`
	Withdrawals  float64 `json:"withdrawals"`
	Notes        string  `json:"notes"`
}

type CashClosingUpdateRequest struct {
	Date         *Date    `json:"date,omitempty"`
	InitialCash  *float64 `json:"initial_cash,omitempty"`
	CountedCash  *float64 `json:"counted_cash,omitempty"`
	Expenses     *float64 `json:"expenses,omitempty"`
	ExpenseNotes *string  `json:"expense_notes,omitempty"`
	Withdrawals  *float64 `json:"withdrawals,omitempty"`
	Notes        *string  `json:"notes,omitempty"`
}

type CashClosingFilter struct {
	DateFrom *Date
	DateTo   *Date
	Skip     int
	Limit    int
}

// DayTotals is the live ledger view returned for a date that has no
// recorded closing yet. It is never persisted.
type DayTotals struct {
	Date           Date    `json:"date"`
	TotalSales     float64 `json:"total_sales"`
	TotalCashSales float64 `json:"total_cash_sales"`
}
