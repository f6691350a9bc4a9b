// Package core holds the domain model: categories, budgets, expenses and
// the validation rules that apply to them regardless of storage backend.
package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	PeriodDaily     PeriodType = "daily"
	PeriodWeekly    PeriodType = "weekly"
	PeriodMonthly   PeriodType = "monthly"
	PeriodQuarterly PeriodType = "quarterly"
	PeriodYearly    PeriodType = "yearly"
	PeriodCustom    PeriodType = "custom"
)

const (
	PaymentCash    PaymentMethod = "cash"
	PaymentCard    PaymentMethod = "card"
	PaymentBank    PaymentMethod = "bank"
	PaymentDigital PaymentMethod = "digital"
)

type (
	PeriodType    string
	PaymentMethod string

	// Category classifies expenses. Categories form a tree through
	// ParentID; a zero ParentID marks a root category.
	Category struct {
		ID                  int64
		Name                string
		Code                string
		Description         string
		ParentID            int64
		Color               int
		HasBudget           bool
		DefaultBudgetAmount decimal.Decimal
	}

	// Budget is a spending ceiling for one category over a date range.
	Budget struct {
		ID                int64
		Name              string
		CategoryID        int64
		Amount            decimal.Decimal
		PeriodType        PeriodType
		DateFrom          time.Time
		DateTo            time.Time
		WarningThreshold  float64
		CriticalThreshold float64
		State             BudgetState
	}

	// BudgetTotals are the derived figures for one budget, recomputed
	// from its linked expenses on every read.
	BudgetTotals struct {
		Spent       decimal.Decimal
		Remaining   decimal.Decimal
		Utilization float64
	}

	// Expense is a single expense transaction.
	Expense struct {
		ID              int64
		Reference       string
		Title           string
		Amount          decimal.Decimal
		CategoryID      int64
		Date            time.Time
		Currency        string
		Description     string
		ReceiptFilename string
		State           ExpenseState
		UserID          int64
		CompanyID       int64
		VendorID        int64
		PaymentMethod   PaymentMethod
		BudgetID        int64
		BillRef         string
	}

	// Actor identifies the user a request runs on behalf of. It replaces
	// the ambient current-user context of the host framework.
	Actor struct {
		UserID    int64
		Name      string
		Email     string
		CompanyID int64
		Currency  string
	}

	// Recipient is a notification target.
	Recipient struct {
		ID    int64
		Name  string
		Email string
	}
)

var (
	ErrInvalidAmount    = errors.New("expense amount must be positive")
	ErrFutureDate       = errors.New("expense date cannot be in the future")
	ErrEmptyTitle       = errors.New("expense title is required")
	ErrMissingCategory  = errors.New("category is required")
	ErrInvalidDateRange = errors.New("end date cannot be before start date")
	ErrEmptyName        = errors.New("name is required")
	ErrCategoryCycle    = errors.New("category parent chain contains a cycle")
)

// DefaultWarningThreshold and DefaultCriticalThreshold are the alert
// percentages applied to budgets that do not configure their own.
const (
	DefaultWarningThreshold  = 80.0
	DefaultCriticalThreshold = 95.0
)

// Validate checks the invariants that hold for every stored expense.
// now is the caller's clock; expenses dated after it are rejected.
func (e Expense) Validate(now time.Time) error {
	if strings.TrimSpace(e.Title) == "" {
		return ErrEmptyTitle
	}
	if !e.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if e.CategoryID == 0 {
		return ErrMissingCategory
	}
	if e.Date.IsZero() {
		return errors.New("expense date is required")
	}
	if DateOnly(e.Date).After(DateOnly(now)) {
		return ErrFutureDate
	}
	return nil
}

// Validate checks budget invariants: a name, a category, and an ordered
// date range. A non-positive amount is allowed; it yields zero utilization.
func (b Budget) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return ErrEmptyName
	}
	if b.CategoryID == 0 {
		return ErrMissingCategory
	}
	if b.DateFrom.IsZero() || b.DateTo.IsZero() {
		return errors.New("budget date range is required")
	}
	if DateOnly(b.DateFrom).After(DateOnly(b.DateTo)) {
		return ErrInvalidDateRange
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

// CategoryCode derives a category code from its name: the first ten
// characters, upper-cased. Used when the import pipeline auto-creates
// categories.
func CategoryCode(name string) string {
	runes := []rune(strings.TrimSpace(name))
	if len(runes) > 10 {
		runes = runes[:10]
	}
	return strings.ToUpper(string(runes))
}

// DateOnly truncates a timestamp to its calendar date in UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CurrentQuarter returns the first and last day of the quarter containing
// today. Budgets default to this range.
func CurrentQuarter(today time.Time) (from, to time.Time) {
	quarter := (int(today.Month()) - 1) / 3
	from = time.Date(today.Year(), time.Month(3*quarter+1), 1, 0, 0, 0, 0, time.UTC)
	to = from.AddDate(0, 3, -1)
	return from, to
}

func (p PeriodType) Valid() bool {
	switch p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodQuarterly, PeriodYearly, PeriodCustom:
		return true
	}
	return false
}

func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentCash, PaymentCard, PaymentBank, PaymentDigital, "":
		return true
	}
	return false
}

// String renders a reference like EXP/2024/00042 from a sequence value.
func FormatReference(year int, seq int64) string {
	return fmt.Sprintf("EXP/%d/%05d", year, seq)
}
