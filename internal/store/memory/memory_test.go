package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"budgetwise/internal/core"
	"budgetwise/internal/store"

	"github.com/shopspring/decimal"
)

func TestStore_ExpenseReferences(t *testing.T) {
	st := New()
	ctx := context.Background()

	mk := func(date time.Time) core.Expense {
		t.Helper()
		e, err := st.CreateExpense(ctx, core.Expense{
			Title:      "x",
			Amount:     decimal.NewFromInt(1),
			CategoryID: 1,
			Date:       date,
		})
		if err != nil {
			t.Fatal(err)
		}
		return e
	}

	first := mk(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	second := mk(time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC))
	lastYear := mk(time.Date(2023, 8, 1, 0, 0, 0, 0, time.UTC))

	if first.Reference != "EXP/2024/00001" {
		t.Errorf("first = %q", first.Reference)
	}
	if second.Reference != "EXP/2024/00002" {
		t.Errorf("second = %q", second.Reference)
	}
	if lastYear.Reference != "EXP/2023/00001" {
		t.Errorf("lastYear = %q, sequence restarts per year", lastYear.Reference)
	}

	t.Run("caller reference kept", func(t *testing.T) {
		e, err := st.CreateExpense(ctx, core.Expense{
			Title:     "preassigned",
			Amount:    decimal.NewFromInt(1),
			Reference: "EXP/2024/00099",
			Date:      time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		})
		if err != nil {
			t.Fatal(err)
		}
		if e.Reference != "EXP/2024/00099" {
			t.Errorf("reference = %q, want caller's value kept", e.Reference)
		}
	})
}

func TestStore_BudgetDefaults(t *testing.T) {
	st := New()
	b, err := st.CreateBudget(context.Background(), core.Budget{
		Name:       "Defaults",
		CategoryID: 1,
		Amount:     decimal.NewFromInt(100),
		DateFrom:   time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		DateTo:     time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("CreateBudget() error = %v", err)
	}
	if b.State != core.BudgetDraft {
		t.Errorf("State = %s, want draft", b.State)
	}
	if b.WarningThreshold != 80 || b.CriticalThreshold != 95 {
		t.Errorf("thresholds = %f/%f, want 80/95", b.WarningThreshold, b.CriticalThreshold)
	}
}

func TestStore_FindCategoryByName(t *testing.T) {
	st := New()
	ctx := context.Background()
	if _, err := st.CreateCategory(ctx, core.Category{Name: "Office"}); err != nil {
		t.Fatal(err)
	}

	got, ok, err := st.FindCategoryByName(ctx, "  ofFICE ")
	if err != nil {
		t.Fatalf("FindCategoryByName() error = %v", err)
	}
	if !ok || got.Name != "Office" {
		t.Errorf("lookup is case and whitespace insensitive; got %+v, ok=%v", got, ok)
	}

	_, ok, err = st.FindCategoryByName(ctx, "Travel")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("found a category that does not exist")
	}
}

func TestStore_CreateCategoryDuplicateName(t *testing.T) {
	st := New()
	ctx := context.Background()
	if _, err := st.CreateCategory(ctx, core.Category{Name: "Office"}); err != nil {
		t.Fatal(err)
	}

	// The SQLite schema enforces NOCASE uniqueness; the memory store matches.
	if _, err := st.CreateCategory(ctx, core.Category{Name: "office"}); !errors.Is(err, store.ErrDuplicateName) {
		t.Errorf("CreateCategory(office) error = %v, want %v", err, store.ErrDuplicateName)
	}

	cats, err := st.ListCategories(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) != 1 {
		t.Errorf("categories = %d, want 1", len(cats))
	}
}

func TestStore_FindExpenseByTitleAndDate(t *testing.T) {
	st := New()
	ctx := context.Background()
	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	mk := func(title string) core.Expense {
		t.Helper()
		e, err := st.CreateExpense(ctx, core.Expense{
			Title:  title,
			Amount: decimal.NewFromInt(1),
			Date:   date,
		})
		if err != nil {
			t.Fatal(err)
		}
		return e
	}

	first := mk("Duplicate")
	mk("Duplicate")
	mk("Other")

	got, ok, err := st.FindExpenseByTitleAndDate(ctx, "Duplicate", date)
	if err != nil {
		t.Fatalf("FindExpenseByTitleAndDate() error = %v", err)
	}
	if !ok || got.ID != first.ID {
		t.Errorf("got ID %d, want lowest ID %d", got.ID, first.ID)
	}

	t.Run("time of day ignored", func(t *testing.T) {
		afternoon := date.Add(15 * time.Hour)
		_, ok, err := st.FindExpenseByTitleAndDate(ctx, "Duplicate", afternoon)
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Error("matching compares calendar dates, not timestamps")
		}
	})

	t.Run("no match", func(t *testing.T) {
		_, ok, err := st.FindExpenseByTitleAndDate(ctx, "Missing", date)
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			t.Error("found an expense that does not exist")
		}
	})
}

func TestStore_NotFound(t *testing.T) {
	st := New()
	ctx := context.Background()

	checks := map[string]func() error{
		"GetCategory":      func() error { _, err := st.GetCategory(ctx, 1); return err },
		"GetBudget":        func() error { _, err := st.GetBudget(ctx, 1); return err },
		"GetExpense":       func() error { _, err := st.GetExpense(ctx, 1); return err },
		"GetAlertSchedule": func() error { _, err := st.GetAlertSchedule(ctx, 1); return err },
		"UpdateExpense":    func() error { return st.UpdateExpense(ctx, core.Expense{ID: 1}) },
		"SetBudgetState":   func() error { return st.SetBudgetState(ctx, 1, core.BudgetActive) },
		"SetExpenseState":  func() error { return st.SetExpenseState(ctx, 1, core.StatePaid) },
		"AppendBudgetNote": func() error { return st.AppendBudgetNote(ctx, 1, "x") },
	}
	for name, fn := range checks {
		t.Run(name, func(t *testing.T) {
			if err := fn(); !errors.Is(err, store.ErrNotFound) {
				t.Errorf("error = %v, want %v", err, store.ErrNotFound)
			}
		})
	}
}

func TestStore_Notes(t *testing.T) {
	st := New()
	ctx := context.Background()

	e, err := st.CreateExpense(ctx, core.Expense{
		Title: "Noted", Amount: decimal.NewFromInt(1),
		Date: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}

	for _, body := range []string{"first", "second", "third"} {
		if err := st.AppendExpenseNote(ctx, e.ID, body); err != nil {
			t.Fatal(err)
		}
	}

	notes, err := st.ListExpenseNotes(ctx, e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 3 {
		t.Fatalf("notes = %d, want 3", len(notes))
	}
	for i, want := range []string{"first", "second", "third"} {
		if notes[i].Body != want {
			t.Errorf("notes[%d] = %q, want oldest first", i, notes[i].Body)
		}
	}
}

func TestStore_AlertSchedules(t *testing.T) {
	st := New()
	ctx := context.Background()

	created, err := st.CreateAlertSchedule(ctx, core.AlertSchedule{
		BudgetID:  1,
		Type:      core.AlertWarning,
		Threshold: 80,
		Interval:  1,
		Unit:      core.RecurWeeks,
	})
	if err != nil {
		t.Fatalf("CreateAlertSchedule() error = %v", err)
	}
	if !created.Active {
		t.Error("new schedules start active")
	}

	at := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	if err := st.MarkAlertScheduleRun(ctx, created.ID, at); err != nil {
		t.Fatalf("MarkAlertScheduleRun() error = %v", err)
	}
	got, err := st.GetAlertSchedule(ctx, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.LastRunAt.Equal(at) {
		t.Errorf("LastRunAt = %v, want %v", got.LastRunAt, at)
	}
}

func TestStore_SeedManagers(t *testing.T) {
	st := New()
	ctx := context.Background()

	managers, err := st.ManagerRecipients(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(managers) != 0 {
		t.Fatalf("managers = %d, want none before seeding", len(managers))
	}

	st.SeedManagers(
		core.Recipient{ID: 1, Name: "A", Email: "a@example.com"},
		core.Recipient{ID: 2, Name: "B", Email: "b@example.com"},
	)
	managers, err = st.ManagerRecipients(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(managers) != 2 {
		t.Errorf("managers = %d, want 2", len(managers))
	}
}
