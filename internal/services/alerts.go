package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"budgetwise/internal/core"
	"budgetwise/internal/store"
)

var (
	// ErrNoRecipients is returned when Send is invoked without anyone to
	// notify. SendTest is exempt: it always targets the acting user.
	ErrNoRecipients = errors.New("select at least one recipient to notify")

	ErrInvalidThreshold = errors.New("threshold percentage must be between 0 and 100")
	ErrPastSchedule     = errors.New("scheduled date cannot be in the past")
)

// Notification channel ports. Implementations live in internal/notify.
type (
	EmailSender interface {
		Send(ctx context.Context, to core.Recipient, subject, body string) error
	}

	ChatNotifier interface {
		// PostToFeed addresses all recipients on the budget's activity feed.
		PostToFeed(ctx context.Context, budgetID int64, recipients []core.Recipient, subject, body string) error
		// DirectMessage delivers a one-to-one message.
		DirectMessage(ctx context.Context, to core.Recipient, subject, body string) error
	}
)

// AlertRequest is the disposable command object for one alert: built,
// validated, sent, possibly spawning a recurring schedule, then discarded.
type AlertRequest struct {
	BudgetID      int64
	Type          core.AlertType
	Threshold     float64
	CustomMessage string
	Recipients    []core.Recipient
	ViaEmail      bool
	ViaChat       bool
	Schedule      core.ScheduleType
	ScheduledAt   time.Time
	Recurring     bool
	Interval      int
	Unit          core.RecurrenceUnit
}

// AlertResult reports what a send did.
type AlertResult struct {
	Sent       bool
	SentAt     time.Time
	Message    string
	ScheduleID int64
}

// AlertEngine composes threshold alerts from live budget figures and
// dispatches them over the configured channels.
type AlertEngine struct {
	store store.Store
	agg   *Aggregator
	email EmailSender
	chat  ChatNotifier
	now   func() time.Time
}

func NewAlertEngine(s store.Store, agg *Aggregator, email EmailSender, chat ChatNotifier) *AlertEngine {
	return &AlertEngine{store: s, agg: agg, email: email, chat: chat, now: time.Now}
}

func (e *AlertEngine) WithClock(now func() time.Time) *AlertEngine {
	e.now = now
	return e
}

// Validate checks the request's configurable fields. Thresholds are only
// range-checked for warning/critical alerts; custom alerts may carry any
// value.
func (e *AlertEngine) Validate(req AlertRequest) error {
	if req.Type == core.AlertWarning || req.Type == core.AlertCritical {
		if req.Threshold < 0 || req.Threshold > 100 {
			return ErrInvalidThreshold
		}
	}
	if req.Schedule == core.ScheduleScheduled && req.ScheduledAt.Before(e.now()) {
		return ErrPastSchedule
	}
	return nil
}

// ComposeMessage renders the alert body from the budget's live totals.
// Three fixed templates exist, keyed by alert type; custom alerts fall
// back to a stock line when no custom text is given.
func (e *AlertEngine) ComposeMessage(ctx context.Context, req AlertRequest) (string, error) {
	if req.Type == core.AlertCustom {
		if strings.TrimSpace(req.CustomMessage) != "" {
			return req.CustomMessage, nil
		}
		return "Custom budget alert", nil
	}

	budget, err := e.store.GetBudget(ctx, req.BudgetID)
	if err != nil {
		return "", fmt.Errorf("get budget %d: %w", req.BudgetID, err)
	}
	totals, err := e.agg.Totals(ctx, req.BudgetID)
	if err != nil {
		return "", err
	}

	switch req.Type {
	case core.AlertCritical:
		return fmt.Sprintf(
			"CRITICAL BUDGET ALERT\n\n"+
				"Budget: %s\n"+
				"Current Utilization: %.1f%%\n"+
				"Threshold: %.1f%%\n"+
				"Spent Amount: %s\n"+
				"Remaining Amount: %s\n\n"+
				"This budget has exceeded its critical threshold! Immediate action required.",
			budget.Name, totals.Utilization, req.Threshold,
			totals.Spent.StringFixed(2), totals.Remaining.StringFixed(2)), nil
	default:
		return fmt.Sprintf(
			"Budget Warning Alert\n\n"+
				"Budget: %s\n"+
				"Current Utilization: %.1f%%\n"+
				"Threshold: %.1f%%\n"+
				"Spent Amount: %s\n"+
				"Remaining Amount: %s\n\n"+
				"This budget is approaching its limit. Please review your expenses.",
			budget.Name, totals.Utilization, req.Threshold,
			totals.Spent.StringFixed(2), totals.Remaining.StringFixed(2)), nil
	}
}

// Send validates, composes and dispatches an alert, records it on the
// budget's feed, and registers a recurring schedule when requested.
func (e *AlertEngine) Send(ctx context.Context, actor core.Actor, req AlertRequest) (AlertResult, error) {
	if err := e.Validate(req); err != nil {
		return AlertResult{}, err
	}
	if len(req.Recipients) == 0 {
		return AlertResult{}, ErrNoRecipients
	}

	budget, err := e.store.GetBudget(ctx, req.BudgetID)
	if err != nil {
		return AlertResult{}, fmt.Errorf("get budget %d: %w", req.BudgetID, err)
	}
	message, err := e.ComposeMessage(ctx, req)
	if err != nil {
		return AlertResult{}, err
	}
	subject := fmt.Sprintf("Budget Alert - %s", budget.Name)

	if err := e.dispatch(ctx, actor, req, subject, message); err != nil {
		return AlertResult{}, err
	}

	names := make([]string, len(req.Recipients))
	for i, rec := range req.Recipients {
		names[i] = rec.Name
	}
	if err := e.store.AppendBudgetNote(ctx, req.BudgetID,
		fmt.Sprintf("Budget alert sent to: %s", strings.Join(names, ", "))); err != nil {
		return AlertResult{}, fmt.Errorf("record alert on budget: %w", err)
	}

	result := AlertResult{Sent: true, SentAt: e.now(), Message: message}

	if req.Recurring {
		sched, err := e.store.CreateAlertSchedule(ctx, core.AlertSchedule{
			BudgetID:   req.BudgetID,
			Type:       req.Type,
			Threshold:  req.Threshold,
			CustomText: req.CustomMessage,
			Recipients: req.Recipients,
			ViaEmail:   req.ViaEmail,
			ViaChat:    req.ViaChat,
			Interval:   req.Interval,
			Unit:       req.Unit,
			CreatedBy:  actor.UserID,
		})
		if err != nil {
			return AlertResult{}, fmt.Errorf("create recurring schedule: %w", err)
		}
		result.ScheduleID = sched.ID
	}

	slog.InfoContext(ctx, "Budget alert sent",
		"budget_id", req.BudgetID,
		"alert_type", string(req.Type),
		"recipients", len(req.Recipients),
		"recurring", req.Recurring)
	return result, nil
}

// SendTest delivers the alert to the acting user only. No recipient
// check applies.
func (e *AlertEngine) SendTest(ctx context.Context, actor core.Actor, req AlertRequest) error {
	budget, err := e.store.GetBudget(ctx, req.BudgetID)
	if err != nil {
		return fmt.Errorf("get budget %d: %w", req.BudgetID, err)
	}
	message, err := e.ComposeMessage(ctx, req)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("TEST: Budget Alert - %s", budget.Name)
	body := "This is a test alert for budget monitoring.\n\n" + message

	self := core.Recipient{ID: actor.UserID, Name: actor.Name, Email: actor.Email}
	test := req
	test.Recipients = []core.Recipient{self}
	return e.dispatch(ctx, actor, test, subject, body)
}

// dispatch fans the message out over the enabled channels: one email per
// recipient, one feed post for everyone plus a direct message for each
// recipient other than the actor. An empty recipient set makes each
// channel a no-op.
func (e *AlertEngine) dispatch(ctx context.Context, actor core.Actor, req AlertRequest, subject, body string) error {
	if req.ViaEmail && e.email != nil {
		for _, rec := range req.Recipients {
			if err := e.email.Send(ctx, rec, subject, body); err != nil {
				return fmt.Errorf("email %s: %w", rec.Email, err)
			}
		}
	}
	if req.ViaChat && e.chat != nil {
		if len(req.Recipients) > 0 {
			if err := e.chat.PostToFeed(ctx, req.BudgetID, req.Recipients, subject, body); err != nil {
				return fmt.Errorf("post to budget feed: %w", err)
			}
		}
		for _, rec := range req.Recipients {
			if rec.ID == actor.UserID {
				continue
			}
			if err := e.chat.DirectMessage(ctx, rec, subject, body); err != nil {
				return fmt.Errorf("direct message %s: %w", rec.Name, err)
			}
		}
	}
	return nil
}

// RunSchedule re-evaluates one recurring schedule. The alert is re-sent
// only while the budget still sits at or above the schedule's threshold,
// so repeated invocations with the same identity are safe.
func (e *AlertEngine) RunSchedule(ctx context.Context, scheduleID int64) (bool, error) {
	sched, err := e.store.GetAlertSchedule(ctx, scheduleID)
	if err != nil {
		return false, fmt.Errorf("get alert schedule %d: %w", scheduleID, err)
	}
	return e.runSchedule(ctx, sched)
}

func (e *AlertEngine) runSchedule(ctx context.Context, sched core.AlertSchedule) (bool, error) {
	totals, err := e.agg.Totals(ctx, sched.BudgetID)
	if err != nil {
		return false, err
	}
	if totals.Utilization < sched.Threshold {
		slog.DebugContext(ctx, "Recurring alert below threshold, skipping",
			"schedule_id", sched.ID,
			"utilization", totals.Utilization,
			"threshold", sched.Threshold)
		return false, nil
	}

	actor := core.Actor{UserID: sched.CreatedBy}
	_, err = e.Send(ctx, actor, AlertRequest{
		BudgetID:      sched.BudgetID,
		Type:          sched.Type,
		Threshold:     sched.Threshold,
		CustomMessage: sched.CustomText,
		Recipients:    sched.Recipients,
		ViaEmail:      sched.ViaEmail,
		ViaChat:       sched.ViaChat,
	})
	if err != nil {
		return false, fmt.Errorf("re-send recurring alert %d: %w", sched.ID, err)
	}
	return true, nil
}

// RunDueSchedules is the external scheduler's entry point: it walks all
// active schedules whose cadence has elapsed, re-evaluates each, and
// stamps the run. Returns how many alerts were actually re-sent.
func (e *AlertEngine) RunDueSchedules(ctx context.Context, now time.Time) (int, error) {
	schedules, err := e.store.ListAlertSchedules(ctx)
	if err != nil {
		return 0, fmt.Errorf("list alert schedules: %w", err)
	}

	sent := 0
	for _, sched := range schedules {
		if !sched.Due(now) {
			continue
		}
		fired, err := e.runSchedule(ctx, sched)
		if err != nil {
			slog.ErrorContext(ctx, "Recurring alert failed",
				"schedule_id", sched.ID,
				"budget_id", sched.BudgetID,
				"error", err)
			continue
		}
		if err := e.store.MarkAlertScheduleRun(ctx, sched.ID, now); err != nil {
			slog.ErrorContext(ctx, "Failed to stamp schedule run",
				"schedule_id", sched.ID, "error", err)
		}
		if fired {
			sent++
		}
	}
	return sent, nil
}

// CreateDefaultAlerts sweeps all active budgets at or above the warning
// cut, classifies each as warning or critical, and sends one alert per
// qualifying budget to the manager group. Budgets below the cut, budgets
// not active, and runs with no managers configured are silently skipped.
func (e *AlertEngine) CreateDefaultAlerts(ctx context.Context, actor core.Actor) (int, error) {
	budgets, err := e.store.ListBudgets(ctx)
	if err != nil {
		return 0, fmt.Errorf("list budgets: %w", err)
	}
	managers, err := e.store.ManagerRecipients(ctx)
	if err != nil {
		return 0, fmt.Errorf("resolve manager recipients: %w", err)
	}
	if len(managers) == 0 {
		slog.WarnContext(ctx, "No manager recipients configured, skipping default alerts")
		return 0, nil
	}

	sent := 0
	for _, b := range budgets {
		if b.State != core.BudgetActive {
			continue
		}
		totals, err := e.agg.Totals(ctx, b.ID)
		if err != nil {
			return sent, err
		}
		if totals.Utilization < core.DefaultWarningThreshold {
			continue
		}
		alertType := core.AlertWarning
		threshold := core.DefaultWarningThreshold
		if totals.Utilization >= core.DefaultCriticalThreshold {
			alertType = core.AlertCritical
			threshold = core.DefaultCriticalThreshold
		}
		_, err = e.Send(ctx, actor, AlertRequest{
			BudgetID:   b.ID,
			Type:       alertType,
			Threshold:  threshold,
			Recipients: managers,
			ViaEmail:   true,
			ViaChat:    true,
		})
		if err != nil {
			slog.ErrorContext(ctx, "Default alert failed",
				"budget_id", b.ID, "error", err)
			continue
		}
		sent++
	}

	slog.InfoContext(ctx, "Default alert sweep complete",
		"budgets", len(budgets),
		"alerts_sent", sent)
	return sent, nil
}
