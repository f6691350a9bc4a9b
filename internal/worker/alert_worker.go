// Package worker runs the scheduled side of alerting: the periodic
// sweep of recurring alert schedules, the default threshold sweep over
// active budgets, and delivery of queued chat notifications.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"budgetwise/internal/amqp"
	"budgetwise/internal/core"
	"budgetwise/internal/services"
)

// AlertWorker wraps the alert engine with a cron schedule.
type AlertWorker struct {
	engine          *services.AlertEngine
	cronSpec        string
	defaultSweep    bool
	shutdownTimeout time.Duration

	// Schedules re-run under their stored creator; the default sweep
	// needs an identity of its own.
	sweepActor core.Actor
}

func NewAlertWorker(engine *services.AlertEngine, cronSpec string, defaultSweep bool, shutdownTimeout time.Duration) *AlertWorker {
	return &AlertWorker{
		engine:          engine,
		cronSpec:        cronSpec,
		defaultSweep:    defaultSweep,
		shutdownTimeout: shutdownTimeout,
		sweepActor:      core.Actor{UserID: 1, Name: "Alert Worker"},
	}
}

// Sweep runs one pass: due recurring schedules first, then the default
// threshold sweep when enabled. Failures are logged, not fatal, so one
// broken half never starves the other.
func (w *AlertWorker) Sweep(ctx context.Context) (recurring, defaults int) {
	sent, err := w.engine.RunDueSchedules(ctx, time.Now())
	if err != nil {
		slog.ErrorContext(ctx, "Recurring alert sweep failed", "error", err)
	} else {
		recurring = sent
		slog.InfoContext(ctx, "Recurring alert sweep complete", "alerts_sent", sent)
	}

	if w.defaultSweep {
		sent, err := w.engine.CreateDefaultAlerts(ctx, w.sweepActor)
		if err != nil {
			slog.ErrorContext(ctx, "Default alert sweep failed", "error", err)
		} else {
			defaults = sent
			slog.InfoContext(ctx, "Default alert sweep complete", "alerts_sent", sent)
		}
	}

	return recurring, defaults
}

// Run registers the sweep on the cron schedule and blocks until the
// context is cancelled.
func (w *AlertWorker) Run(ctx context.Context) error {
	scheduler := cron.New()

	_, err := scheduler.AddFunc(w.cronSpec, func() {
		runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()
		w.Sweep(runCtx)
	})
	if err != nil {
		return err
	}

	scheduler.Start()
	slog.InfoContext(ctx, "Alert scheduler started", "spec", w.cronSpec)

	<-ctx.Done()

	stopCtx := scheduler.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(w.shutdownTimeout):
		slog.Warn("Timed out waiting for running jobs")
	}
	return nil
}

// HandleChatMessage processes a queued chat notification. Delivery is
// a log line for now; a chat bridge can hang off this handler later.
func (w *AlertWorker) HandleChatMessage(ctx context.Context, msg *amqp.ChatMessage) error {
	slog.InfoContext(ctx, "Chat notification",
		"kind", msg.Kind,
		"budget_id", msg.BudgetID,
		"recipients", len(msg.RecipientIDs),
		"subject", msg.Subject)
	return nil
}
