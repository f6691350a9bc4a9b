package worker

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"budgetwise/internal/amqp"
	"budgetwise/internal/core"
	"budgetwise/internal/services"
	"budgetwise/internal/store/memory"
)

type countingEmail struct {
	sent int
}

func (c *countingEmail) Send(_ context.Context, _ core.Recipient, _, _ string) error {
	c.sent++
	return nil
}

type nopChat struct{}

func (nopChat) PostToFeed(_ context.Context, _ int64, _ []core.Recipient, _, _ string) error {
	return nil
}

func (nopChat) DirectMessage(_ context.Context, _ core.Recipient, _, _ string) error {
	return nil
}

func newSweepFixture(t *testing.T, spent int64) (*services.AlertEngine, *countingEmail) {
	t.Helper()
	st := memory.New()
	ctx := context.Background()

	cat, err := st.CreateCategory(ctx, core.Category{Name: "Operations"})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	b, err := st.CreateBudget(ctx, core.Budget{
		Name:       "Ops",
		CategoryID: cat.ID,
		Amount:     decimal.NewFromInt(1000),
		PeriodType: core.PeriodMonthly,
		DateFrom:   time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		DateTo:     time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("create budget: %v", err)
	}
	if err := st.SetBudgetState(ctx, b.ID, core.BudgetActive); err != nil {
		t.Fatalf("activate budget: %v", err)
	}
	if _, err := st.CreateExpense(ctx, core.Expense{
		Title:      "hosting",
		Amount:     decimal.NewFromInt(spent),
		CategoryID: cat.ID,
		Date:       time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
		State:      core.StateApproved,
		BudgetID:   b.ID,
	}); err != nil {
		t.Fatalf("create expense: %v", err)
	}
	st.SeedManagers(core.Recipient{ID: 9, Name: "Alice", Email: "alice@example.com"})

	email := &countingEmail{}
	engine := services.NewAlertEngine(st, services.NewAggregator(st), email, nopChat{})
	return engine, email
}

func TestAlertWorker_Sweep(t *testing.T) {
	engine, email := newSweepFixture(t, 850)
	w := NewAlertWorker(engine, "0 * * * *", true, time.Second)

	recurring, defaults := w.Sweep(context.Background())
	if recurring != 0 {
		t.Errorf("recurring = %d, want 0 with no schedules", recurring)
	}
	if defaults != 1 {
		t.Errorf("defaults = %d, want 1", defaults)
	}
	if email.sent != 1 {
		t.Errorf("emails sent = %d, want 1", email.sent)
	}
}

func TestAlertWorker_Sweep_DefaultSweepDisabled(t *testing.T) {
	engine, email := newSweepFixture(t, 850)
	w := NewAlertWorker(engine, "0 * * * *", false, time.Second)

	_, defaults := w.Sweep(context.Background())
	if defaults != 0 {
		t.Errorf("defaults = %d, want 0 when sweep disabled", defaults)
	}
	if email.sent != 0 {
		t.Errorf("emails sent = %d, want 0", email.sent)
	}
}

func TestAlertWorker_HandleChatMessage(t *testing.T) {
	engine, _ := newSweepFixture(t, 100)
	w := NewAlertWorker(engine, "0 * * * *", false, time.Second)

	msg := amqp.NewFeedMessage(1, []int64{9}, "subject", "body")
	if err := w.HandleChatMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleChatMessage: %v", err)
	}
}
