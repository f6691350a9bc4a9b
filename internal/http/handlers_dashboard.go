package http

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"budgetwise/internal/services"
)

const snapshotCacheKey = "dashboard"

type dashboardResponse struct {
	TotalExpenses     decimal.Decimal   `json:"total_expenses"`
	MonthlyExpenses   decimal.Decimal   `json:"monthly_expenses"`
	PendingApproval   int               `json:"pending_approval"`
	BudgetUtilization float64           `json:"budget_utilization"`
	RemainingBudget   decimal.Decimal   `json:"remaining_budget"`
	RecentExpenses    []expenseResponse `json:"recent_expenses"`
	GeneratedAt       string            `json:"generated_at"`
}

func toDashboardResponse(snap services.Snapshot) dashboardResponse {
	recent := make([]expenseResponse, len(snap.RecentExpenses))
	for i, e := range snap.RecentExpenses {
		recent[i] = toExpenseResponse(e)
	}
	return dashboardResponse{
		TotalExpenses:     snap.TotalExpenses,
		MonthlyExpenses:   snap.MonthlyExpenses,
		PendingApproval:   snap.PendingApproval,
		BudgetUtilization: snap.BudgetUtilization,
		RemainingBudget:   snap.RemainingBudget,
		RecentExpenses:    recent,
		GeneratedAt:       snap.GeneratedAt.Format(time.RFC3339),
	}
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if cached, ok := s.snapshotCache.Get(snapshotCacheKey); ok {
		respondJSON(w, http.StatusOK, toDashboardResponse(cached))
		return
	}

	snap, err := s.svc.Dashboard.Snapshot(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	s.snapshotCache.Set(snapshotCacheKey, snap)
	respondJSON(w, http.StatusOK, toDashboardResponse(snap))
}
