package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"budgetwise/internal/core"
	"budgetwise/internal/store/memory"

	"github.com/shopspring/decimal"
)

type reconciliation struct {
	BillID    int64
	PaymentID int64
}

type fakeGateway struct {
	bills       []VendorBill
	payments    []Payment
	reconciled  []reconciliation
	billErr     error
	paymentErr  error
	nextBillID  int64
	nextPayment int64
}

func (g *fakeGateway) CreateVendorBill(_ context.Context, bill VendorBill) (PostedBill, error) {
	if g.billErr != nil {
		return PostedBill{}, g.billErr
	}
	g.bills = append(g.bills, bill)
	g.nextBillID++
	total := decimal.Zero
	for _, line := range bill.Lines {
		total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return PostedBill{
		ID:     g.nextBillID,
		Number: core.FormatReference(2024, g.nextBillID),
		Total:  total,
	}, nil
}

func (g *fakeGateway) CreatePayment(_ context.Context, p Payment) (int64, error) {
	if g.paymentErr != nil {
		return 0, g.paymentErr
	}
	g.payments = append(g.payments, p)
	g.nextPayment++
	return g.nextPayment, nil
}

func (g *fakeGateway) Reconcile(_ context.Context, billID, paymentID int64) error {
	g.reconciled = append(g.reconciled, reconciliation{BillID: billID, PaymentID: paymentID})
	return nil
}

var invoiceNow = time.Date(2024, 6, 15, 9, 30, 0, 0, time.UTC)

func newInvoiceFixture(t *testing.T) (*InvoiceBridge, *memory.Store, *fakeGateway, core.Expense) {
	t.Helper()
	st := memory.New()
	gw := &fakeGateway{}
	bridge := NewInvoiceBridge(st, gw).WithClock(func() time.Time { return invoiceNow })

	e, err := st.CreateExpense(context.Background(), core.Expense{
		Title:      "Server Hosting",
		Amount:     decimal.RequireFromString("420.00"),
		CategoryID: 1,
		Date:       time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Currency:   "EUR",
		State:      core.StateApproved,
	})
	if err != nil {
		t.Fatal(err)
	}
	return bridge, st, gw, e
}

func TestInvoiceBridge_CreateBill(t *testing.T) {
	bridge, st, gw, expense := newInvoiceFixture(t)
	ctx := context.Background()

	result, err := bridge.CreateBill(ctx, InvoiceRequest{
		ExpenseID: expense.ID,
		VendorID:  7,
		JournalID: 2,
		Product:   Product{ID: 5, Name: "Hosting", ExpenseAccount: "600100"},
	})
	if err != nil {
		t.Fatalf("CreateBill() error = %v", err)
	}

	if len(gw.bills) != 1 {
		t.Fatalf("bills posted = %d, want 1", len(gw.bills))
	}
	bill := gw.bills[0]
	if bill.VendorID != 7 || bill.Currency != "EUR" {
		t.Errorf("bill header = %+v", bill)
	}
	if !bill.Date.Equal(time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("bill date = %v, want clock date", bill.Date)
	}
	if !bill.DueDate.Equal(bill.Date.AddDate(0, 0, 30)) {
		t.Errorf("due date = %v, want invoice date plus 30 days", bill.DueDate)
	}
	if bill.Reference != expense.Reference {
		t.Errorf("reference = %q, want expense reference %q", bill.Reference, expense.Reference)
	}

	if len(bill.Lines) != 1 {
		t.Fatalf("bill lines = %d, want 1", len(bill.Lines))
	}
	line := bill.Lines[0]
	if line.Quantity != 1 {
		t.Errorf("quantity = %d, want 1", line.Quantity)
	}
	if !line.UnitPrice.Equal(expense.Amount) {
		t.Errorf("unit price = %s, want expense amount %s", line.UnitPrice, expense.Amount)
	}
	if line.Label != "Server Hosting" || line.Account != "600100" {
		t.Errorf("line = %+v", line)
	}

	updated, err := st.GetExpense(ctx, expense.ID)
	if err != nil {
		t.Fatal(err)
	}
	if updated.State != core.StatePaid {
		t.Errorf("expense state = %s, want paid", updated.State)
	}
	if updated.BillRef != result.Bill.Number || updated.VendorID != 7 {
		t.Errorf("expense link = %+v", updated)
	}

	notes, err := st.ListExpenseNotes(ctx, expense.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 1 || notes[0].Body != "Vendor bill created: "+result.Bill.Number {
		t.Errorf("notes = %+v", notes)
	}

	if result.PaymentID != 0 || len(gw.payments) != 0 {
		t.Errorf("payment created without being requested")
	}
}

func TestInvoiceBridge_CreateBill_NoExpenseAccount(t *testing.T) {
	bridge, _, gw, expense := newInvoiceFixture(t)

	_, err := bridge.CreateBill(context.Background(), InvoiceRequest{
		ExpenseID: expense.ID,
		Product:   Product{ID: 5, Name: "Hosting"},
	})
	if !errors.Is(err, ErrNoExpenseAccount) {
		t.Errorf("CreateBill() error = %v, want %v", err, ErrNoExpenseAccount)
	}
	if len(gw.bills) != 0 {
		t.Errorf("bill posted despite missing expense account")
	}
}

func TestInvoiceBridge_CreateBill_WithPayment(t *testing.T) {
	bridge, st, gw, expense := newInvoiceFixture(t)
	ctx := context.Background()

	result, err := bridge.CreateBill(ctx, InvoiceRequest{
		ExpenseID:        expense.ID,
		VendorID:         7,
		Product:          Product{ID: 5, ExpenseAccount: "600100"},
		CreatePayment:    true,
		PaymentJournalID: 3,
	})
	if err != nil {
		t.Fatalf("CreateBill() error = %v", err)
	}
	if result.PaymentID == 0 {
		t.Fatal("PaymentID = 0, want a registered payment")
	}

	if len(gw.payments) != 1 {
		t.Fatalf("payments = %d, want 1", len(gw.payments))
	}
	p := gw.payments[0]
	if !p.Amount.Equal(decimal.RequireFromString("420.00")) {
		t.Errorf("payment amount = %s, want 420.00", p.Amount)
	}
	if p.Reference != "Payment for "+result.Bill.Number {
		t.Errorf("payment reference = %q", p.Reference)
	}
	if len(gw.reconciled) != 1 || gw.reconciled[0].PaymentID != result.PaymentID {
		t.Errorf("reconciliations = %+v", gw.reconciled)
	}

	notes, err := st.ListExpenseNotes(ctx, expense.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 2 || notes[1].Body != "Payment registered for "+result.Bill.Number {
		t.Errorf("notes = %+v", notes)
	}
}

func TestInvoiceBridge_CreateBill_PaymentFailureKeepsBill(t *testing.T) {
	bridge, st, gw, expense := newInvoiceFixture(t)
	gw.paymentErr = errors.New("journal closed")
	ctx := context.Background()

	result, err := bridge.CreateBill(ctx, InvoiceRequest{
		ExpenseID:        expense.ID,
		VendorID:         7,
		Product:          Product{ID: 5, ExpenseAccount: "600100"},
		CreatePayment:    true,
		PaymentJournalID: 3,
	})
	if err != nil {
		t.Fatalf("CreateBill() error = %v, payment failure must not fail the call", err)
	}
	if result.PaymentID != 0 {
		t.Errorf("PaymentID = %d, want 0", result.PaymentID)
	}
	if result.Bill.Number == "" {
		t.Error("bill missing from result")
	}

	// The expense stays linked to the bill; the failure is an audit note.
	updated, err := st.GetExpense(ctx, expense.ID)
	if err != nil {
		t.Fatal(err)
	}
	if updated.State != core.StatePaid || updated.BillRef != result.Bill.Number {
		t.Errorf("expense = %+v", updated)
	}

	notes, err := st.ListExpenseNotes(ctx, expense.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 2 {
		t.Fatalf("notes = %+v, want bill note plus failure note", notes)
	}
	want := "Payment for " + result.Bill.Number + " failed: create payment: journal closed"
	if notes[1].Body != want {
		t.Errorf("failure note = %q, want %q", notes[1].Body, want)
	}
}

func TestInvoiceBridge_CreateBill_CustomReferenceAndDate(t *testing.T) {
	bridge, _, gw, expense := newInvoiceFixture(t)

	invoiceDate := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	_, err := bridge.CreateBill(context.Background(), InvoiceRequest{
		ExpenseID:   expense.ID,
		Product:     Product{ID: 5, ExpenseAccount: "600100"},
		InvoiceDate: invoiceDate,
		Reference:   "PO-2024-17",
	})
	if err != nil {
		t.Fatalf("CreateBill() error = %v", err)
	}
	bill := gw.bills[0]
	if bill.Reference != "PO-2024-17" {
		t.Errorf("reference = %q", bill.Reference)
	}
	if !bill.Date.Equal(invoiceDate) {
		t.Errorf("date = %v, want %v", bill.Date, invoiceDate)
	}
	if !bill.DueDate.Equal(time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("due date = %v", bill.DueDate)
	}
}

func TestDueDate(t *testing.T) {
	d := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	if got := DueDate(d); !got.Equal(time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("DueDate() = %v", got)
	}
}
