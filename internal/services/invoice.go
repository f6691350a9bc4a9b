package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"budgetwise/internal/core"
	"budgetwise/internal/store"
)

// ErrNoExpenseAccount rejects bridging through a product that has no
// expense account configured.
var ErrNoExpenseAccount = errors.New("the selected product doesn't have an expense account configured. Please set an expense account for the product")

type (
	// Product is the accounting product a vendor bill line is booked on.
	Product struct {
		ID             int64
		Name           string
		ExpenseAccount string
	}

	// BillLine is one line of a vendor bill.
	BillLine struct {
		ProductID int64
		Label     string
		Quantity  int
		UnitPrice decimal.Decimal
		Account   string
	}

	// VendorBill is the document handed to the accounting gateway.
	VendorBill struct {
		VendorID  int64
		JournalID int64
		Date      time.Time
		DueDate   time.Time
		Reference string
		Currency  string
		Lines     []BillLine
	}

	// PostedBill identifies a bill the gateway accepted.
	PostedBill struct {
		ID     int64
		Number string
		Total  decimal.Decimal
	}

	// Payment settles a posted bill.
	Payment struct {
		BillID    int64
		VendorID  int64
		JournalID int64
		Amount    decimal.Decimal
		Date      time.Time
		Reference string
	}
)

// AccountingGateway is the port to the external accounting system.
type AccountingGateway interface {
	CreateVendorBill(ctx context.Context, bill VendorBill) (PostedBill, error)
	CreatePayment(ctx context.Context, p Payment) (int64, error)
	Reconcile(ctx context.Context, billID, paymentID int64) error
}

// InvoiceRequest drives one expense-to-bill conversion.
type InvoiceRequest struct {
	ExpenseID        int64
	VendorID         int64
	Product          Product
	JournalID        int64
	InvoiceDate      time.Time
	Reference        string
	CreatePayment    bool
	PaymentJournalID int64
	PaymentDate      time.Time
}

// InvoiceResult reports what was created.
type InvoiceResult struct {
	Bill      PostedBill
	PaymentID int64
	Expense   core.Expense
}

// InvoiceBridge turns an approved expense into a vendor bill and,
// optionally, its payment. A payment failure after the bill is posted is
// recorded on the expense but never unwinds the bill.
type InvoiceBridge struct {
	store   store.Store
	gateway AccountingGateway
	now     func() time.Time
}

func NewInvoiceBridge(s store.Store, gateway AccountingGateway) *InvoiceBridge {
	return &InvoiceBridge{store: s, gateway: gateway, now: time.Now}
}

func (b *InvoiceBridge) WithClock(now func() time.Time) *InvoiceBridge {
	b.now = now
	return b
}

// DueDate is the bill's payment deadline: thirty days after the invoice
// date.
func DueDate(invoiceDate time.Time) time.Time {
	return invoiceDate.AddDate(0, 0, 30)
}

// CreateBill posts a vendor bill for the expense. The bill carries one
// line at quantity one priced at the expense amount, booked on the
// product's expense account.
func (b *InvoiceBridge) CreateBill(ctx context.Context, req InvoiceRequest) (InvoiceResult, error) {
	if req.Product.ExpenseAccount == "" {
		return InvoiceResult{}, ErrNoExpenseAccount
	}

	expense, err := b.store.GetExpense(ctx, req.ExpenseID)
	if err != nil {
		return InvoiceResult{}, fmt.Errorf("get expense %d: %w", req.ExpenseID, err)
	}

	invoiceDate := req.InvoiceDate
	if invoiceDate.IsZero() {
		invoiceDate = core.DateOnly(b.now())
	}
	reference := req.Reference
	if reference == "" {
		reference = expense.Reference
	}

	bill, err := b.gateway.CreateVendorBill(ctx, VendorBill{
		VendorID:  req.VendorID,
		JournalID: req.JournalID,
		Date:      invoiceDate,
		DueDate:   DueDate(invoiceDate),
		Reference: reference,
		Currency:  expense.Currency,
		Lines: []BillLine{{
			ProductID: req.Product.ID,
			Label:     expense.Title,
			Quantity:  1,
			UnitPrice: expense.Amount,
			Account:   req.Product.ExpenseAccount,
		}},
	})
	if err != nil {
		return InvoiceResult{}, fmt.Errorf("create vendor bill: %w", err)
	}

	expense.BillRef = bill.Number
	expense.VendorID = req.VendorID
	expense.State = core.StatePaid
	if err := b.store.UpdateExpense(ctx, expense); err != nil {
		return InvoiceResult{}, fmt.Errorf("link bill to expense: %w", err)
	}
	if err := b.store.AppendExpenseNote(ctx, expense.ID,
		fmt.Sprintf("Vendor bill created: %s", bill.Number)); err != nil {
		return InvoiceResult{}, fmt.Errorf("record bill on expense: %w", err)
	}

	result := InvoiceResult{Bill: bill, Expense: expense}

	if req.CreatePayment && req.PaymentJournalID != 0 {
		paymentID, err := b.pay(ctx, req, bill)
		if err != nil {
			// The bill stands; only the payment step is reported.
			slog.ErrorContext(ctx, "Payment for vendor bill failed",
				"expense_id", expense.ID,
				"bill", bill.Number,
				"error", err)
			if noteErr := b.store.AppendExpenseNote(ctx, expense.ID,
				fmt.Sprintf("Payment for %s failed: %v", bill.Number, err)); noteErr != nil {
				return result, fmt.Errorf("record payment failure: %w", noteErr)
			}
			return result, nil
		}
		result.PaymentID = paymentID
		if err := b.store.AppendExpenseNote(ctx, expense.ID,
			fmt.Sprintf("Payment registered for %s", bill.Number)); err != nil {
			return result, fmt.Errorf("record payment on expense: %w", err)
		}
	}

	slog.InfoContext(ctx, "Expense converted to vendor bill",
		"expense_id", expense.ID,
		"bill", bill.Number,
		"payment_id", result.PaymentID)
	return result, nil
}

func (b *InvoiceBridge) pay(ctx context.Context, req InvoiceRequest, bill PostedBill) (int64, error) {
	paymentDate := req.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = core.DateOnly(b.now())
	}
	paymentID, err := b.gateway.CreatePayment(ctx, Payment{
		BillID:    bill.ID,
		VendorID:  req.VendorID,
		JournalID: req.PaymentJournalID,
		Amount:    bill.Total.Abs(),
		Date:      paymentDate,
		Reference: fmt.Sprintf("Payment for %s", bill.Number),
	})
	if err != nil {
		return 0, fmt.Errorf("create payment: %w", err)
	}
	if err := b.gateway.Reconcile(ctx, bill.ID, paymentID); err != nil {
		return 0, fmt.Errorf("reconcile payment %d: %w", paymentID, err)
	}
	return paymentID, nil
}
