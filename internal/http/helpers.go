package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"budgetwise/internal/accounting"
	"budgetwise/internal/core"
	"budgetwise/internal/services"
	"budgetwise/internal/store"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// respondError maps domain errors onto HTTP status codes.
func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrDuplicateName):
		status = http.StatusConflict
	case errors.Is(err, accounting.ErrNotConfigured):
		status = http.StatusServiceUnavailable
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrFutureDate),
		errors.Is(err, core.ErrEmptyTitle),
		errors.Is(err, core.ErrMissingCategory),
		errors.Is(err, core.ErrInvalidDateRange),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrCategoryCycle),
		errors.Is(err, core.ErrUnknownAction),
		errors.Is(err, services.ErrNoRecipients),
		errors.Is(err, services.ErrInvalidThreshold),
		errors.Is(err, services.ErrPastSchedule),
		errors.Is(err, services.ErrEmptyFile),
		errors.Is(err, services.ErrNoExpenseAccount):
		status = http.StatusBadRequest
	}
	respondJSON(w, status, errorResponse{Error: err.Error()})
}

func badRequest(w http.ResponseWriter, msg string) {
	respondJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

func pathID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// actorFromRequest resolves the acting user from request headers. There
// is no authentication layer; callers identify themselves.
func actorFromRequest(r *http.Request) core.Actor {
	actor := core.Actor{
		UserID:    1,
		Name:      "System",
		CompanyID: 1,
		Currency:  "EUR",
	}
	if v := r.Header.Get("X-User-ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
			actor.UserID = id
		}
	}
	if v := r.Header.Get("X-User-Name"); v != "" {
		actor.Name = v
	}
	if v := r.Header.Get("X-User-Email"); v != "" {
		actor.Email = v
	}
	if v := r.Header.Get("X-Company-ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
			actor.CompanyID = id
		}
	}
	if v := r.Header.Get("X-Currency"); v != "" {
		actor.Currency = v
	}
	return actor
}
