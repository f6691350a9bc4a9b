package services

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"budgetwise/internal/core"
	"budgetwise/internal/store"
	"budgetwise/internal/store/memory"

	"github.com/shopspring/decimal"
)

var svcNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func newExpenseFixture(t *testing.T) (*ExpenseService, *memory.Store) {
	t.Helper()
	st := memory.New()
	svc := NewExpenseService(st).WithClock(func() time.Time { return svcNow })
	return svc, st
}

var svcActor = core.Actor{UserID: 4, Name: "Dana", CompanyID: 2, Currency: "EUR"}

func TestExpenseService_Create(t *testing.T) {
	svc, _ := newExpenseFixture(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, svcActor, core.Expense{
		Title:      "Keyboard",
		Amount:     decimal.NewFromInt(60),
		CategoryID: 1,
		Date:       time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ID == 0 {
		t.Error("ID not assigned")
	}
	if created.Reference != "EXP/2024/00001" {
		t.Errorf("Reference = %q, want EXP/2024/00001", created.Reference)
	}
	if created.State != core.StateDraft {
		t.Errorf("State = %s, want draft", created.State)
	}
	if created.UserID != 4 || created.CompanyID != 2 || created.Currency != "EUR" {
		t.Errorf("actor defaults not applied: %+v", created)
	}

	t.Run("future date rejected", func(t *testing.T) {
		_, err := svc.Create(ctx, svcActor, core.Expense{
			Title:      "Time Machine",
			Amount:     decimal.NewFromInt(10),
			CategoryID: 1,
			Date:       svcNow.AddDate(0, 0, 1),
		})
		if !errors.Is(err, core.ErrFutureDate) {
			t.Errorf("Create() error = %v, want %v", err, core.ErrFutureDate)
		}
	})

	t.Run("explicit fields win over actor", func(t *testing.T) {
		got, err := svc.Create(ctx, svcActor, core.Expense{
			Title:      "Booked elsewhere",
			Amount:     decimal.NewFromInt(10),
			CategoryID: 1,
			Date:       time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC),
			UserID:     99,
			Currency:   "USD",
		})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if got.UserID != 99 || got.Currency != "USD" {
			t.Errorf("explicit fields overwritten: %+v", got)
		}
	})
}

func TestExpenseService_ReferenceSequencePerYear(t *testing.T) {
	svc, _ := newExpenseFixture(t)
	ctx := context.Background()

	mk := func(date time.Time) core.Expense {
		t.Helper()
		e, err := svc.Create(ctx, svcActor, core.Expense{
			Title:      "seq",
			Amount:     decimal.NewFromInt(1),
			CategoryID: 1,
			Date:       date,
		})
		if err != nil {
			t.Fatal(err)
		}
		return e
	}

	a := mk(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	b := mk(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC))
	c := mk(time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC))

	if a.Reference != "EXP/2024/00001" || b.Reference != "EXP/2024/00002" {
		t.Errorf("2024 references = %q, %q", a.Reference, b.Reference)
	}
	if c.Reference != "EXP/2023/00001" {
		t.Errorf("2023 reference = %q, sequences are per year", c.Reference)
	}
}

func TestExpenseService_Transition(t *testing.T) {
	svc, _ := newExpenseFixture(t)
	ctx := context.Background()

	e, err := svc.Create(ctx, svcActor, core.Expense{
		Title:      "Laptop",
		Amount:     decimal.NewFromInt(900),
		CategoryID: 1,
		Date:       time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}

	steps := []struct {
		action string
		want   core.ExpenseState
		note   string
	}{
		{core.ActionSubmit, core.StateSubmitted, "Expense submitted for approval"},
		{core.ActionApprove, core.StateApproved, "Expense approved"},
		{core.ActionMarkPaid, core.StatePaid, "Expense marked as paid"},
		{core.ActionResetToDraft, core.StateDraft, "Expense reset to draft"},
	}
	for _, step := range steps {
		got, err := svc.Transition(ctx, svcActor, e.ID, step.action)
		if err != nil {
			t.Fatalf("Transition(%s) error = %v", step.action, err)
		}
		if got.State != step.want {
			t.Errorf("state after %s = %s, want %s", step.action, got.State, step.want)
		}
	}

	notes, err := svc.Notes(ctx, e.ID)
	if err != nil {
		t.Fatalf("Notes() error = %v", err)
	}
	if len(notes) != len(steps) {
		t.Fatalf("notes = %d, want %d", len(notes), len(steps))
	}
	for i, step := range steps {
		if notes[i].Body != step.note {
			t.Errorf("notes[%d] = %q, want %q", i, notes[i].Body, step.note)
		}
	}

	t.Run("unknown action", func(t *testing.T) {
		_, err := svc.Transition(ctx, svcActor, e.ID, "escalate")
		if !errors.Is(err, core.ErrUnknownAction) {
			t.Errorf("Transition() error = %v, want %v", err, core.ErrUnknownAction)
		}
	})

	t.Run("missing expense", func(t *testing.T) {
		_, err := svc.Transition(ctx, svcActor, 9999, core.ActionSubmit)
		if !errors.Is(err, store.ErrNotFound) {
			t.Errorf("Transition() error = %v, want %v", err, store.ErrNotFound)
		}
	})
}

func TestExpenseService_CreateBudget_DefaultsToQuarter(t *testing.T) {
	svc, _ := newExpenseFixture(t)

	b, err := svc.CreateBudget(context.Background(), core.Budget{
		Name:       "Q2",
		CategoryID: 1,
		Amount:     decimal.NewFromInt(500),
	})
	if err != nil {
		t.Fatalf("CreateBudget() error = %v", err)
	}
	if !b.DateFrom.Equal(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)) ||
		!b.DateTo.Equal(time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("range = %v .. %v, want current quarter", b.DateFrom, b.DateTo)
	}
	if b.WarningThreshold != core.DefaultWarningThreshold || b.CriticalThreshold != core.DefaultCriticalThreshold {
		t.Errorf("thresholds = %f/%f, want defaults", b.WarningThreshold, b.CriticalThreshold)
	}
	if b.State != core.BudgetDraft {
		t.Errorf("state = %s, want draft", b.State)
	}
}

func TestExpenseService_BudgetPercentage(t *testing.T) {
	svc, st := newExpenseFixture(t)
	ctx := context.Background()

	b := seedBudget(t, st, "Hardware", 400)
	e, err := svc.Create(ctx, svcActor, core.Expense{
		Title:      "Monitor",
		Amount:     decimal.NewFromInt(100),
		CategoryID: 1,
		Date:       time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC),
		BudgetID:   b.ID,
	})
	if err != nil {
		t.Fatal(err)
	}

	pct, err := svc.BudgetPercentage(ctx, e.ID)
	if err != nil {
		t.Fatalf("BudgetPercentage() error = %v", err)
	}
	if math.Abs(pct-25) > 0.001 {
		t.Errorf("pct = %f, want 25", pct)
	}

	t.Run("no budget linked", func(t *testing.T) {
		loose, err := svc.Create(ctx, svcActor, core.Expense{
			Title:      "Loose",
			Amount:     decimal.NewFromInt(10),
			CategoryID: 1,
			Date:       time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC),
		})
		if err != nil {
			t.Fatal(err)
		}
		pct, err := svc.BudgetPercentage(ctx, loose.ID)
		if err != nil {
			t.Fatalf("BudgetPercentage() error = %v", err)
		}
		if pct != 0 {
			t.Errorf("pct = %f, want 0", pct)
		}
	})
}

func TestExpenseService_CategoryCycle(t *testing.T) {
	svc, _ := newExpenseFixture(t)
	ctx := context.Background()

	root, err := svc.CreateCategory(ctx, core.Category{Name: "Root"})
	if err != nil {
		t.Fatal(err)
	}
	child, err := svc.CreateCategory(ctx, core.Category{Name: "Child", ParentID: root.ID})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CreateCategory(ctx, core.Category{Name: "Grandchild", ParentID: child.ID}); err != nil {
		t.Fatal(err)
	}

	t.Run("missing parent", func(t *testing.T) {
		_, err := svc.CreateCategory(ctx, core.Category{Name: "Orphan", ParentID: 9999})
		if !errors.Is(err, store.ErrNotFound) {
			t.Errorf("error = %v, want %v", err, store.ErrNotFound)
		}
	})

	t.Run("empty name", func(t *testing.T) {
		_, err := svc.CreateCategory(ctx, core.Category{Name: "  "})
		if !errors.Is(err, core.ErrEmptyName) {
			t.Errorf("error = %v, want %v", err, core.ErrEmptyName)
		}
	})
}
