package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"budgetwise/internal/core"
)

const dateLayout = "2006-01-02"

type budgetRequest struct {
	Name              string  `json:"name"`
	CategoryID        int64   `json:"category_id"`
	Amount            string  `json:"amount"`
	PeriodType        string  `json:"period_type"`
	DateFrom          string  `json:"date_from"`
	DateTo            string  `json:"date_to"`
	WarningThreshold  float64 `json:"warning_threshold"`
	CriticalThreshold float64 `json:"critical_threshold"`
}

type budgetResponse struct {
	ID                int64           `json:"id"`
	Name              string          `json:"name"`
	CategoryID        int64           `json:"category_id"`
	Amount            decimal.Decimal `json:"amount"`
	PeriodType        string          `json:"period_type"`
	DateFrom          string          `json:"date_from"`
	DateTo            string          `json:"date_to"`
	WarningThreshold  float64         `json:"warning_threshold"`
	CriticalThreshold float64         `json:"critical_threshold"`
	State             string          `json:"state"`
}

type totalsResponse struct {
	BudgetID    int64           `json:"budget_id"`
	Spent       decimal.Decimal `json:"spent_amount"`
	Remaining   decimal.Decimal `json:"remaining_amount"`
	Utilization float64         `json:"utilization_percentage"`
}

func toBudgetResponse(b core.Budget) budgetResponse {
	return budgetResponse{
		ID:                b.ID,
		Name:              b.Name,
		CategoryID:        b.CategoryID,
		Amount:            b.Amount,
		PeriodType:        string(b.PeriodType),
		DateFrom:          b.DateFrom.Format(dateLayout),
		DateTo:            b.DateTo.Format(dateLayout),
		WarningThreshold:  b.WarningThreshold,
		CriticalThreshold: b.CriticalThreshold,
		State:             string(b.State),
	}
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}

	b := core.Budget{
		Name:              req.Name,
		CategoryID:        req.CategoryID,
		PeriodType:        core.PeriodType(req.PeriodType),
		WarningThreshold:  req.WarningThreshold,
		CriticalThreshold: req.CriticalThreshold,
	}
	if req.PeriodType == "" {
		b.PeriodType = core.PeriodMonthly
	}
	if !b.PeriodType.Valid() {
		badRequest(w, "invalid period_type")
		return
	}
	if req.Amount != "" {
		amount, err := decimal.NewFromString(req.Amount)
		if err != nil {
			badRequest(w, "invalid amount")
			return
		}
		b.Amount = amount
	}
	if req.DateFrom != "" {
		from, err := time.Parse(dateLayout, req.DateFrom)
		if err != nil {
			badRequest(w, "invalid date_from")
			return
		}
		b.DateFrom = from
	}
	if req.DateTo != "" {
		to, err := time.Parse(dateLayout, req.DateTo)
		if err != nil {
			badRequest(w, "invalid date_to")
			return
		}
		b.DateTo = to
	}

	created, err := s.svc.Expenses.CreateBudget(r.Context(), b)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toBudgetResponse(created))
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := s.svc.Expenses.ListBudgets(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	out := make([]budgetResponse, len(budgets))
	for i, b := range budgets {
		out[i] = toBudgetResponse(b)
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	b, err := s.svc.Expenses.GetBudget(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toBudgetResponse(b))
}

func (s *Server) handleBudgetTotals(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	key := fmt.Sprintf("totals:%d", id)
	if cached, ok := s.totalsCache.Get(key); ok {
		respondJSON(w, http.StatusOK, cached)
		return
	}

	totals, err := s.svc.Aggregator.Totals(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	resp := totalsResponse{
		BudgetID:    id,
		Spent:       totals.Spent,
		Remaining:   totals.Remaining,
		Utilization: totals.Utilization,
	}
	s.totalsCache.Set(key, resp)
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleActivateBudget(w http.ResponseWriter, r *http.Request) {
	s.handleBudgetStateChange(w, r, s.svc.Aggregator.ActivateBudget)
}

func (s *Server) handleCloseBudget(w http.ResponseWriter, r *http.Request) {
	s.handleBudgetStateChange(w, r, s.svc.Aggregator.CloseBudget)
}

func (s *Server) handleBudgetStateChange(w http.ResponseWriter, r *http.Request, change func(ctx context.Context, id int64) error) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := change(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	b, err := s.svc.Expenses.GetBudget(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toBudgetResponse(b))
}

func (s *Server) handlePortfolioReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.Aggregator.Portfolio(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleCategoryBreakdown(w http.ResponseWriter, r *http.Request) {
	rows, err := s.svc.Aggregator.CategoryBreakdown(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

func (s *Server) handleOverBudget(w http.ResponseWriter, r *http.Request) {
	items, err := s.svc.Aggregator.OverBudget(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}
