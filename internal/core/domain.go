package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "Income"
	Expense TransactionType = "Expense"
)

const (
	BudgetOK      BudgetStatus = "ok"
	BudgetWarning BudgetStatus = "warning"
	BudgetOver    BudgetStatus = "over"
)

// Bill types accepted by the invoice backend.
const (
	BillTaxInvoice         = "Tax Invoice"
	BillPerformanceInvoice = "Performance Invoice"
	BillPurchaseOrder      = "Purchase Order"
)

type (
	TransactionType string
	BudgetStatus    string

	// Date is a calendar day exchanged as YYYY-MM-DD.
	Date struct {
		time.Time
	}

	Budget struct {
		ID        int64           `json:"id,omitempty"`
		Category  string          `json:"category"`
		Allocated decimal.Decimal `json:"allocated"`
		Spent     decimal.Decimal `json:"spent"`
		CreatedAt string          `json:"created_at,omitempty"`
	}

	Transaction struct {
		ID       int64           `json:"id"`
		Date     Date            `json:"date"`
		Type     TransactionType `json:"type"`
		Category string          `json:"category"`
		Amount   decimal.Decimal `json:"amount"`
	}

	// NewTransaction is the form input for recording income or an expense.
	NewTransaction struct {
		Date     Date
		Type     TransactionType
		Category string
		Amount   decimal.Decimal
		BudgetID int64 // expenses only, zero means none
	}

	Invoice struct {
		ID            int64           `json:"id"`
		InvoiceNumber string          `json:"invoice_number"`
		ClientName    string          `json:"client_name"`
		Date          string          `json:"date"`
		Heading       string          `json:"heading"`
		Subtitle      string          `json:"subtitle"`
		TotalAmount   decimal.Decimal `json:"total_amount"`
		CreatedAt     string          `json:"created_at,omitempty"`
	}

	ClientDetails struct {
		Name     string `json:"client_name"`
		Location string `json:"client_location"`
		Address  string `json:"client_address"`
		TIN      string `json:"client_tin"`
		Email    string `json:"client_email"`
	}

	Document struct {
		ID         int64  `json:"id"`
		Title      string `json:"title"`
		File       string `json:"file"`
		FileType   string `json:"file_type"`
		UploadedAt string `json:"uploaded_at,omitempty"`
	}

	Profile struct {
		Name           string `json:"name"`
		Email          string `json:"email"`
		Phone          string `json:"phone"`
		Address        string `json:"address"`
		DateOfBirth    string `json:"date_of_birth"`
		Language       string `json:"language"`
		Theme          string `json:"theme"`
		ProfilePicture string `json:"profile_picture,omitempty"`
	}

	// LedgerEntry is one row of the invoice ledger kept outside the backend.
	LedgerEntry struct {
		InvoiceID     int64
		InvoiceNumber string
		ClientName    string
		Date          string
		BillType      string
		Total         decimal.Decimal
		CreatedAt     time.Time
	}
)

var (
	ErrInvalidDate    = errors.New("invalid date")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrInvalidCount   = errors.New("invalid count")
	ErrEmptyCategory  = errors.New("empty category")
	ErrInvalidType    = errors.New("transaction type must be Income or Expense")
	ErrNegativeAmount = errors.New("amount must not be negative")
	ErrEmptyTitle     = errors.New("empty title")
	ErrMissingClient  = errors.New("missing client name")
	ErrMissingInvoice = errors.New("missing invoice id")
)

// Signatures lists the signature choices in display order.
var Signatures = []struct{ Value, Label string }{
	{"elisha", "Elisha Signature"},
	{"ginye", "Ginye Signature"},
	{"siza", "Siza Signature"},
}

// BillTypes lists the bill types in display order.
var BillTypes = []string{BillTaxInvoice, BillPerformanceInvoice, BillPurchaseOrder}

const dateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON accepts plain dates and full timestamps.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return ErrInvalidDate
	}
	d.Time = t
	return nil
}

// Remaining is allocated minus spent; negative means over budget.
func (b Budget) Remaining() decimal.Decimal {
	return b.Allocated.Sub(b.Spent)
}

// Status flags budgets over 80% spent as warning and overspent ones as over.
func (b Budget) Status() BudgetStatus {
	if b.Spent.GreaterThan(b.Allocated) {
		return BudgetOver
	}
	if b.Spent.GreaterThan(b.Allocated.Mul(decimal.NewFromFloat(0.8))) {
		return BudgetWarning
	}
	return BudgetOK
}

// UsedPercent is spent over allocated, capped at 100 for display.
func (b Budget) UsedPercent() int {
	if !b.Allocated.IsPositive() {
		return 0
	}
	p := b.Spent.Div(b.Allocated).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	if p > 100 {
		return 100
	}
	if p < 0 {
		return 0
	}
	return int(p)
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	if b.Allocated.IsNegative() || b.Spent.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}

func (t NewTransaction) Validate() error {
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	if t.Type != Income && t.Type != Expense {
		return ErrInvalidType
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

func (d Document) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return ErrEmptyTitle
	}
	return nil
}

func (e LedgerEntry) Validate() error {
	if e.InvoiceID == 0 {
		return ErrMissingInvoice
	}
	if strings.TrimSpace(e.ClientName) == "" {
		return ErrMissingClient
	}
	return nil
}
