package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"budgetwise/internal/core"
	"budgetwise/internal/services"
	"budgetwise/internal/store"
)

type expenseRequest struct {
	Title         string `json:"title"`
	Amount        string `json:"amount"`
	CategoryID    int64  `json:"category_id"`
	Date          string `json:"date"`
	Currency      string `json:"currency"`
	Description   string `json:"description"`
	PaymentMethod string `json:"payment_method"`
	VendorID      int64  `json:"vendor_id"`
	BudgetID      int64  `json:"budget_id"`
}

type expenseResponse struct {
	ID            int64           `json:"id"`
	Reference     string          `json:"reference"`
	Title         string          `json:"title"`
	Amount        decimal.Decimal `json:"amount"`
	CategoryID    int64           `json:"category_id"`
	Date          string          `json:"date"`
	Currency      string          `json:"currency,omitempty"`
	Description   string          `json:"description,omitempty"`
	State         string          `json:"state"`
	UserID        int64           `json:"user_id"`
	VendorID      int64           `json:"vendor_id,omitempty"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	BudgetID      int64           `json:"budget_id,omitempty"`
	BillRef       string          `json:"bill_ref,omitempty"`
}

type noteResponse struct {
	ID        int64  `json:"id"`
	Body      string `json:"body"`
	CreatedAt string `json:"created_at"`
}

func toExpenseResponse(e core.Expense) expenseResponse {
	return expenseResponse{
		ID:            e.ID,
		Reference:     e.Reference,
		Title:         e.Title,
		Amount:        e.Amount,
		CategoryID:    e.CategoryID,
		Date:          e.Date.Format(dateLayout),
		Currency:      e.Currency,
		Description:   e.Description,
		State:         string(e.State),
		UserID:        e.UserID,
		VendorID:      e.VendorID,
		PaymentMethod: string(e.PaymentMethod),
		BudgetID:      e.BudgetID,
		BillRef:       e.BillRef,
	}
}

func toNoteResponses(notes []store.Note) []noteResponse {
	out := make([]noteResponse, len(notes))
	for i, n := range notes {
		out[i] = noteResponse{
			ID:        n.ID,
			Body:      n.Body,
			CreatedAt: n.CreatedAt.Format(time.RFC3339),
		}
	}
	return out
}

// invalidateBudgetReads drops cached figures affected by an expense
// mutation.
func (s *Server) invalidateBudgetReads(budgetID int64) {
	if budgetID != 0 {
		s.totalsCache.Delete(fmt.Sprintf("totals:%d", budgetID))
	}
	s.snapshotCache.Delete(snapshotCacheKey)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}

	e := core.Expense{
		Title:         req.Title,
		CategoryID:    req.CategoryID,
		Currency:      req.Currency,
		Description:   req.Description,
		PaymentMethod: core.PaymentMethod(req.PaymentMethod),
		VendorID:      req.VendorID,
		BudgetID:      req.BudgetID,
		State:         core.StateDraft,
	}
	if !e.PaymentMethod.Valid() {
		badRequest(w, "invalid payment_method")
		return
	}
	if req.Amount != "" {
		amount, err := decimal.NewFromString(req.Amount)
		if err != nil {
			badRequest(w, "invalid amount")
			return
		}
		e.Amount = amount
	}
	if req.Date != "" {
		date, err := time.Parse(dateLayout, req.Date)
		if err != nil {
			badRequest(w, "invalid date, expected "+dateLayout)
			return
		}
		e.Date = date
	}

	created, err := s.svc.Expenses.Create(r.Context(), actorFromRequest(r), e)
	if err != nil {
		respondError(w, err)
		return
	}
	s.invalidateBudgetReads(created.BudgetID)
	respondJSON(w, http.StatusCreated, toExpenseResponse(created))
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.svc.Expenses.List(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	out := make([]expenseResponse, len(expenses))
	for i, e := range expenses {
		out[i] = toExpenseResponse(e)
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	e, err := s.svc.Expenses.Get(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toExpenseResponse(e))
}

type transitionRequest struct {
	Action string `json:"action"`
}

func (s *Server) handleExpenseTransition(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var req transitionRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}

	e, err := s.svc.Expenses.Transition(r.Context(), actorFromRequest(r), id, req.Action)
	if err != nil {
		respondError(w, err)
		return
	}
	s.invalidateBudgetReads(e.BudgetID)
	respondJSON(w, http.StatusOK, toExpenseResponse(e))
}

func (s *Server) handleExpenseNotes(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	notes, err := s.svc.Expenses.Notes(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toNoteResponses(notes))
}

type invoiceRequest struct {
	VendorID         int64  `json:"vendor_id"`
	ProductID        int64  `json:"product_id"`
	ProductName      string `json:"product_name"`
	ExpenseAccount   string `json:"expense_account"`
	JournalID        int64  `json:"journal_id"`
	InvoiceDate      string `json:"invoice_date"`
	Reference        string `json:"reference"`
	CreatePayment    bool   `json:"create_payment"`
	PaymentJournalID int64  `json:"payment_journal_id"`
	PaymentDate      string `json:"payment_date"`
}

type invoiceResponse struct {
	BillID    int64           `json:"bill_id"`
	BillRef   string          `json:"bill_ref"`
	Total     decimal.Decimal `json:"total"`
	PaymentID int64           `json:"payment_id,omitempty"`
	Expense   expenseResponse `json:"expense"`
}

func (s *Server) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var req invoiceRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}

	bridgeReq := services.InvoiceRequest{
		ExpenseID: id,
		VendorID:  req.VendorID,
		Product: services.Product{
			ID:             req.ProductID,
			Name:           req.ProductName,
			ExpenseAccount: req.ExpenseAccount,
		},
		JournalID:        req.JournalID,
		Reference:        req.Reference,
		CreatePayment:    req.CreatePayment,
		PaymentJournalID: req.PaymentJournalID,
	}
	if req.InvoiceDate != "" {
		d, err := time.Parse(dateLayout, req.InvoiceDate)
		if err != nil {
			badRequest(w, "invalid invoice_date")
			return
		}
		bridgeReq.InvoiceDate = d
	}
	if req.PaymentDate != "" {
		d, err := time.Parse(dateLayout, req.PaymentDate)
		if err != nil {
			badRequest(w, "invalid payment_date")
			return
		}
		bridgeReq.PaymentDate = d
	}

	result, err := s.svc.Invoices.CreateBill(r.Context(), bridgeReq)
	if err != nil {
		respondError(w, err)
		return
	}
	s.invalidateBudgetReads(result.Expense.BudgetID)
	respondJSON(w, http.StatusCreated, invoiceResponse{
		BillID:    result.Bill.ID,
		BillRef:   result.Bill.Number,
		Total:     result.Bill.Total,
		PaymentID: result.PaymentID,
		Expense:   toExpenseResponse(result.Expense),
	})
}
