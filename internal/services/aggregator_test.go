package services

import (
	"context"
	"math"
	"testing"
	"time"

	"budgetwise/internal/core"
	"budgetwise/internal/store/memory"

	"github.com/shopspring/decimal"
)

func seedBudget(t *testing.T, st *memory.Store, name string, amount int64) core.Budget {
	t.Helper()
	cat, err := st.CreateCategory(context.Background(), core.Category{Name: name + " category"})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	b, err := st.CreateBudget(context.Background(), core.Budget{
		Name:       name,
		CategoryID: cat.ID,
		Amount:     decimal.NewFromInt(amount),
		PeriodType: core.PeriodMonthly,
		DateFrom:   time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		DateTo:     time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("create budget: %v", err)
	}
	return b
}

func seedExpense(t *testing.T, st *memory.Store, budgetID int64, amount float64, state core.ExpenseState) core.Expense {
	t.Helper()
	e, err := st.CreateExpense(context.Background(), core.Expense{
		Title:      "seeded",
		Amount:     decimal.NewFromFloat(amount),
		CategoryID: 1,
		Date:       time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
		State:      state,
		BudgetID:   budgetID,
	})
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}
	return e
}

func TestAggregator_Totals(t *testing.T) {
	st := memory.New()
	agg := NewAggregator(st)
	b := seedBudget(t, st, "Marketing", 1000)

	seedExpense(t, st, b.ID, 200, core.StateApproved)
	seedExpense(t, st, b.ID, 300, core.StatePaid)
	seedExpense(t, st, b.ID, 999, core.StateDraft)
	seedExpense(t, st, b.ID, 999, core.StateSubmitted)
	seedExpense(t, st, b.ID, 999, core.StateRejected)

	totals, err := agg.Totals(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("Totals() error = %v", err)
	}
	if !totals.Spent.Equal(decimal.NewFromInt(500)) {
		t.Errorf("Spent = %s, want 500", totals.Spent)
	}
	if !totals.Remaining.Equal(decimal.NewFromInt(500)) {
		t.Errorf("Remaining = %s, want 500", totals.Remaining)
	}
	if math.Abs(totals.Utilization-50) > 0.001 {
		t.Errorf("Utilization = %f, want 50", totals.Utilization)
	}
}

func TestAggregator_Totals_Overspent(t *testing.T) {
	st := memory.New()
	agg := NewAggregator(st)
	b := seedBudget(t, st, "Travel", 100)
	seedExpense(t, st, b.ID, 250, core.StatePaid)

	totals, err := agg.Totals(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("Totals() error = %v", err)
	}
	if !totals.Remaining.Equal(decimal.NewFromInt(-150)) {
		t.Errorf("Remaining = %s, want -150", totals.Remaining)
	}
	if math.Abs(totals.Utilization-250) > 0.001 {
		t.Errorf("Utilization = %f, want 250", totals.Utilization)
	}
}

func TestAggregator_Totals_ZeroAmountBudget(t *testing.T) {
	st := memory.New()
	agg := NewAggregator(st)
	b := seedBudget(t, st, "Empty", 0)
	seedExpense(t, st, b.ID, 42, core.StateApproved)

	totals, err := agg.Totals(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("Totals() error = %v", err)
	}
	if totals.Utilization != 0 {
		t.Errorf("Utilization = %f, want 0 for zero-amount budget", totals.Utilization)
	}
}

func TestAggregator_Portfolio(t *testing.T) {
	st := memory.New()
	agg := NewAggregator(st)

	within := seedBudget(t, st, "Within", 1000)
	seedExpense(t, st, within.ID, 100, core.StateApproved)

	near := seedBudget(t, st, "Near", 1000)
	seedExpense(t, st, near.ID, 900, core.StatePaid)

	over := seedBudget(t, st, "Over", 1000)
	seedExpense(t, st, over.ID, 1200, core.StateApproved)

	report, err := agg.Portfolio(context.Background())
	if err != nil {
		t.Fatalf("Portfolio() error = %v", err)
	}
	if report.TotalBudgets != 3 {
		t.Errorf("TotalBudgets = %d, want 3", report.TotalBudgets)
	}
	if !report.TotalBudgetAmount.Equal(decimal.NewFromInt(3000)) {
		t.Errorf("TotalBudgetAmount = %s, want 3000", report.TotalBudgetAmount)
	}
	if !report.TotalSpent.Equal(decimal.NewFromInt(2200)) {
		t.Errorf("TotalSpent = %s, want 2200", report.TotalSpent)
	}
	if report.WithinBudgetCount != 1 || report.NearLimitCount != 1 || report.OverBudgetCount != 1 {
		t.Errorf("split = %d/%d/%d, want 1/1/1",
			report.WithinBudgetCount, report.NearLimitCount, report.OverBudgetCount)
	}
	wantAvg := (10.0 + 90.0 + 120.0) / 3.0
	if math.Abs(report.AverageUtilization-wantAvg) > 0.001 {
		t.Errorf("AverageUtilization = %f, want %f", report.AverageUtilization, wantAvg)
	}
}

func TestAggregator_Portfolio_Empty(t *testing.T) {
	agg := NewAggregator(memory.New())
	report, err := agg.Portfolio(context.Background())
	if err != nil {
		t.Fatalf("Portfolio() error = %v", err)
	}
	if report.TotalBudgets != 0 || report.AverageUtilization != 0 {
		t.Errorf("got %+v, want empty report", report)
	}
}

func TestAggregator_CategoryBreakdown(t *testing.T) {
	st := memory.New()
	agg := NewAggregator(st)
	ctx := context.Background()

	budgeted, err := st.CreateCategory(ctx, core.Category{Name: "Budgeted"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := st.CreateCategory(ctx, core.Category{Name: "Unbudgeted"}); err != nil {
		t.Fatal(err)
	}

	b, err := st.CreateBudget(ctx, core.Budget{
		Name:       "June",
		CategoryID: budgeted.ID,
		Amount:     decimal.NewFromInt(500),
		DateFrom:   time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		DateTo:     time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}
	seedExpense(t, st, b.ID, 125, core.StatePaid)

	rows, err := agg.CategoryBreakdown(ctx)
	if err != nil {
		t.Fatalf("CategoryBreakdown() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1 (categories without budgets are skipped)", len(rows))
	}
	row := rows[0]
	if row.CategoryName != "Budgeted" {
		t.Errorf("CategoryName = %q, want Budgeted", row.CategoryName)
	}
	if !row.SpentAmount.Equal(decimal.NewFromInt(125)) {
		t.Errorf("SpentAmount = %s, want 125", row.SpentAmount)
	}
	if !row.Variance.Equal(decimal.NewFromInt(375)) {
		t.Errorf("Variance = %s, want 375", row.Variance)
	}
	if math.Abs(row.Utilization-25) > 0.001 {
		t.Errorf("Utilization = %f, want 25", row.Utilization)
	}
}

func TestAggregator_OverBudget(t *testing.T) {
	st := memory.New()
	agg := NewAggregator(st)

	fine := seedBudget(t, st, "Fine", 1000)
	seedExpense(t, st, fine.ID, 1000, core.StatePaid)

	blown := seedBudget(t, st, "Blown", 100)
	seedExpense(t, st, blown.ID, 160, core.StateApproved)

	out, err := agg.OverBudget(context.Background())
	if err != nil {
		t.Fatalf("OverBudget() error = %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d items, want 1 (exactly 100%% is not over)", len(out))
	}
	if out[0].BudgetName != "Blown" {
		t.Errorf("BudgetName = %q, want Blown", out[0].BudgetName)
	}
	if !out[0].Overspent.Equal(decimal.NewFromInt(60)) {
		t.Errorf("Overspent = %s, want 60", out[0].Overspent)
	}
}

func TestAggregator_BudgetLifecycle(t *testing.T) {
	st := memory.New()
	agg := NewAggregator(st)
	ctx := context.Background()
	b := seedBudget(t, st, "Lifecycle", 100)

	if b.State != core.BudgetDraft {
		t.Fatalf("new budget state = %s, want draft", b.State)
	}
	if err := agg.ActivateBudget(ctx, b.ID); err != nil {
		t.Fatalf("ActivateBudget() error = %v", err)
	}
	got, _ := st.GetBudget(ctx, b.ID)
	if got.State != core.BudgetActive {
		t.Errorf("state after activate = %s, want active", got.State)
	}
	if err := agg.CloseBudget(ctx, b.ID); err != nil {
		t.Fatalf("CloseBudget() error = %v", err)
	}
	got, _ = st.GetBudget(ctx, b.ID)
	if got.State != core.BudgetClosed {
		t.Errorf("state after close = %s, want closed", got.State)
	}
}
