package http

import (
	"net/http"
	"time"

	"budgetwise/internal/core"
	"budgetwise/internal/services"
)

type alertRequest struct {
	Type          string           `json:"type"`
	Threshold     float64          `json:"threshold"`
	CustomMessage string           `json:"custom_message"`
	Recipients    []core.Recipient `json:"recipients"`
	ViaEmail      *bool            `json:"via_email"`
	ViaChat       *bool            `json:"via_chat"`
	ScheduledAt   string           `json:"scheduled_at"`
	Recurring     bool             `json:"recurring"`
	Interval      int              `json:"interval"`
	Unit          string           `json:"unit"`
}

type alertResponse struct {
	Sent       bool   `json:"sent"`
	SentAt     string `json:"sent_at"`
	Message    string `json:"message"`
	ScheduleID int64  `json:"schedule_id,omitempty"`
}

func (s *Server) buildAlertRequest(budgetID int64, req alertRequest) (services.AlertRequest, error) {
	out := services.AlertRequest{
		BudgetID:      budgetID,
		Type:          core.AlertType(req.Type),
		Threshold:     req.Threshold,
		CustomMessage: req.CustomMessage,
		Recipients:    req.Recipients,
		ViaEmail:      true,
		ViaChat:       true,
		Schedule:      core.ScheduleImmediate,
		Recurring:     req.Recurring,
		Interval:      req.Interval,
		Unit:          core.RecurrenceUnit(req.Unit),
	}
	if req.Type == "" {
		out.Type = core.AlertWarning
	}
	if req.ViaEmail != nil {
		out.ViaEmail = *req.ViaEmail
	}
	if req.ViaChat != nil {
		out.ViaChat = *req.ViaChat
	}
	if req.ScheduledAt != "" {
		at, err := time.Parse(time.RFC3339, req.ScheduledAt)
		if err != nil {
			return services.AlertRequest{}, err
		}
		out.Schedule = core.ScheduleScheduled
		out.ScheduledAt = at
	}
	if out.Recurring && out.Unit == "" {
		out.Unit = core.RecurWeeks
	}
	return out, nil
}

func (s *Server) handleSendAlert(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var req alertRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}
	if !core.AlertType(req.Type).Valid() && req.Type != "" {
		badRequest(w, "invalid alert type")
		return
	}

	alertReq, err := s.buildAlertRequest(id, req)
	if err != nil {
		badRequest(w, "invalid scheduled_at, expected RFC 3339")
		return
	}
	result, err := s.svc.Alerts.Send(r.Context(), actorFromRequest(r), alertReq)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, alertResponse{
		Sent:       result.Sent,
		SentAt:     result.SentAt.Format(time.RFC3339),
		Message:    result.Message,
		ScheduleID: result.ScheduleID,
	})
}

func (s *Server) handleSendTestAlert(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var req alertRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}

	alertReq, err := s.buildAlertRequest(id, req)
	if err != nil {
		badRequest(w, "invalid scheduled_at, expected RFC 3339")
		return
	}
	if err := s.svc.Alerts.SendTest(r.Context(), actorFromRequest(r), alertReq); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"sent": true})
}

func (s *Server) handleDefaultAlertSweep(w http.ResponseWriter, r *http.Request) {
	sent, err := s.svc.Alerts.CreateDefaultAlerts(r.Context(), actorFromRequest(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"alerts_sent": sent})
}
