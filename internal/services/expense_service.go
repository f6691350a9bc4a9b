package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"budgetwise/internal/core"
	"budgetwise/internal/store"
)

// ExpenseService owns the expense lifecycle: creation with reference
// assignment and the approval state machine.
type ExpenseService struct {
	store store.Store
	now   func() time.Time
}

func NewExpenseService(s store.Store) *ExpenseService {
	return &ExpenseService{store: s, now: time.Now}
}

// WithClock overrides the service clock. Tests use this to pin "today".
func (s *ExpenseService) WithClock(now func() time.Time) *ExpenseService {
	s.now = now
	return s
}

// Create validates and persists a new expense owned by the actor. The
// expense starts in draft unless the caller set a state explicitly.
func (s *ExpenseService) Create(ctx context.Context, actor core.Actor, e core.Expense) (core.Expense, error) {
	if err := e.Validate(s.now()); err != nil {
		return core.Expense{}, err
	}
	if e.UserID == 0 {
		e.UserID = actor.UserID
	}
	if e.CompanyID == 0 {
		e.CompanyID = actor.CompanyID
	}
	if e.Currency == "" {
		e.Currency = actor.Currency
	}
	created, err := s.store.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	return created, nil
}

// Transition applies a state-machine action to an expense and records
// the action's audit note. Any action is allowed from any state; see the
// transition table in core.
func (s *ExpenseService) Transition(ctx context.Context, actor core.Actor, expenseID int64, action string) (core.Expense, error) {
	t, err := core.LookupTransition(action)
	if err != nil {
		return core.Expense{}, err
	}
	e, err := s.store.GetExpense(ctx, expenseID)
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", expenseID, err)
	}
	from := e.State
	if err := s.store.SetExpenseState(ctx, expenseID, t.To); err != nil {
		return core.Expense{}, fmt.Errorf("set expense state: %w", err)
	}
	if err := s.store.AppendExpenseNote(ctx, expenseID, t.Note); err != nil {
		return core.Expense{}, fmt.Errorf("append audit note: %w", err)
	}
	e.State = t.To

	slog.InfoContext(ctx, "Expense state changed",
		"id", expenseID,
		"reference", e.Reference,
		"action", action,
		"from", string(from),
		"to", string(t.To),
		"user_id", actor.UserID)
	return e, nil
}

// CreateCategory validates and persists a category. Parent cycles are
// rejected by the store.
func (s *ExpenseService) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	created, err := s.store.CreateCategory(ctx, c)
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return created, nil
}

func (s *ExpenseService) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	return s.store.GetCategory(ctx, id)
}

func (s *ExpenseService) ListCategories(ctx context.Context) ([]core.Category, error) {
	return s.store.ListCategories(ctx)
}

// Get, List and Notes are the read side of the expense API.
func (s *ExpenseService) Get(ctx context.Context, id int64) (core.Expense, error) {
	return s.store.GetExpense(ctx, id)
}

func (s *ExpenseService) List(ctx context.Context) ([]core.Expense, error) {
	return s.store.ListExpenses(ctx)
}

func (s *ExpenseService) Notes(ctx context.Context, expenseID int64) ([]store.Note, error) {
	if _, err := s.store.GetExpense(ctx, expenseID); err != nil {
		return nil, fmt.Errorf("get expense %d: %w", expenseID, err)
	}
	return s.store.ListExpenseNotes(ctx, expenseID)
}

// CreateBudget validates and persists a budget. Defaults for thresholds
// and state are applied by the store.
func (s *ExpenseService) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	if b.DateFrom.IsZero() && b.DateTo.IsZero() {
		b.DateFrom, b.DateTo = core.CurrentQuarter(s.now())
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	created, err := s.store.CreateBudget(ctx, b)
	if err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}
	return created, nil
}

func (s *ExpenseService) GetBudget(ctx context.Context, id int64) (core.Budget, error) {
	return s.store.GetBudget(ctx, id)
}

func (s *ExpenseService) ListBudgets(ctx context.Context) ([]core.Budget, error) {
	return s.store.ListBudgets(ctx)
}

// BudgetPercentage returns the share of the expense's budget this single
// expense consumes, or zero when the budget amount is non-positive.
func (s *ExpenseService) BudgetPercentage(ctx context.Context, expenseID int64) (float64, error) {
	e, err := s.store.GetExpense(ctx, expenseID)
	if err != nil {
		return 0, fmt.Errorf("get expense %d: %w", expenseID, err)
	}
	if e.BudgetID == 0 {
		return 0, nil
	}
	budget, err := s.store.GetBudget(ctx, e.BudgetID)
	if err != nil {
		return 0, fmt.Errorf("get budget %d: %w", e.BudgetID, err)
	}
	return utilization(e.Amount, budget.Amount), nil
}
