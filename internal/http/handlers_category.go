package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"budgetwise/internal/core"
)

type categoryRequest struct {
	Name                string `json:"name"`
	Code                string `json:"code"`
	Description         string `json:"description"`
	ParentID            int64  `json:"parent_id"`
	Color               int    `json:"color"`
	HasBudget           bool   `json:"has_budget"`
	DefaultBudgetAmount string `json:"default_budget_amount"`
}

type categoryResponse struct {
	ID                  int64           `json:"id"`
	Name                string          `json:"name"`
	Code                string          `json:"code"`
	Description         string          `json:"description,omitempty"`
	ParentID            int64           `json:"parent_id,omitempty"`
	Color               int             `json:"color,omitempty"`
	HasBudget           bool            `json:"has_budget"`
	DefaultBudgetAmount decimal.Decimal `json:"default_budget_amount"`
}

func toCategoryResponse(c core.Category) categoryResponse {
	return categoryResponse{
		ID:                  c.ID,
		Name:                c.Name,
		Code:                c.Code,
		Description:         c.Description,
		ParentID:            c.ParentID,
		Color:               c.Color,
		HasBudget:           c.HasBudget,
		DefaultBudgetAmount: c.DefaultBudgetAmount,
	}
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}

	cat := core.Category{
		Name:        req.Name,
		Code:        req.Code,
		Description: req.Description,
		ParentID:    req.ParentID,
		Color:       req.Color,
		HasBudget:   req.HasBudget,
	}
	if cat.Code == "" {
		cat.Code = core.CategoryCode(req.Name)
	}
	if req.DefaultBudgetAmount != "" {
		amount, err := decimal.NewFromString(req.DefaultBudgetAmount)
		if err != nil {
			badRequest(w, "invalid default_budget_amount")
			return
		}
		cat.DefaultBudgetAmount = amount
	}
	if err := cat.Validate(); err != nil {
		respondError(w, err)
		return
	}

	created, err := s.svc.Expenses.CreateCategory(r.Context(), cat)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toCategoryResponse(created))
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.svc.Expenses.ListCategories(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	out := make([]categoryResponse, len(cats))
	for i, c := range cats {
		out[i] = toCategoryResponse(c)
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	cat, err := s.svc.Expenses.GetCategory(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toCategoryResponse(cat))
}
