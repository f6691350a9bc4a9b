// Package store declares the persistence ports the services depend on.
// Two implementations exist: the SQLite repository in internal/storage and
// the in-memory store in internal/store/memory.
package store

import (
	"context"
	"errors"
	"time"

	"budgetwise/internal/core"
)

// ErrNotFound is returned by lookups for records that do not exist.
var ErrNotFound = errors.New("record not found")

// ErrDuplicateName is returned when a category name collides with an
// existing one. Names are compared case-insensitively.
var ErrDuplicateName = errors.New("name already in use")

// Ports for the persistence layer.
type (
	CategoryStore interface {
		CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
		GetCategory(ctx context.Context, id int64) (core.Category, error)
		// FindCategoryByName matches the name exactly but case-insensitively.
		FindCategoryByName(ctx context.Context, name string) (core.Category, bool, error)
		ListCategories(ctx context.Context) ([]core.Category, error)
	}

	BudgetStore interface {
		CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
		GetBudget(ctx context.Context, id int64) (core.Budget, error)
		ListBudgets(ctx context.Context) ([]core.Budget, error)
		SetBudgetState(ctx context.Context, id int64, state core.BudgetState) error
		// AppendBudgetNote records an entry on the budget's activity feed.
		AppendBudgetNote(ctx context.Context, budgetID int64, body string) error
	}

	ExpenseStore interface {
		// CreateExpense persists a new expense, assigning its ID and, when
		// Reference is empty, the next reference from the sequence.
		CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
		UpdateExpense(ctx context.Context, e core.Expense) error
		GetExpense(ctx context.Context, id int64) (core.Expense, error)
		ListExpenses(ctx context.Context) ([]core.Expense, error)
		ListExpensesByBudget(ctx context.Context, budgetID int64) ([]core.Expense, error)
		// FindExpenseByTitleAndDate is the import pipeline's update-mode key.
		FindExpenseByTitleAndDate(ctx context.Context, title string, date time.Time) (core.Expense, bool, error)
		SetExpenseState(ctx context.Context, id int64, state core.ExpenseState) error
		// AppendExpenseNote records an audit entry on the expense.
		AppendExpenseNote(ctx context.Context, expenseID int64, body string) error
		ListExpenseNotes(ctx context.Context, expenseID int64) ([]Note, error)
	}

	AlertStore interface {
		CreateAlertSchedule(ctx context.Context, s core.AlertSchedule) (core.AlertSchedule, error)
		GetAlertSchedule(ctx context.Context, id int64) (core.AlertSchedule, error)
		ListAlertSchedules(ctx context.Context) ([]core.AlertSchedule, error)
		MarkAlertScheduleRun(ctx context.Context, id int64, at time.Time) error
	}

	// Directory exposes the slice of the user directory the alert engine
	// needs: the manager group that receives default alerts.
	Directory interface {
		ManagerRecipients(ctx context.Context) ([]core.Recipient, error)
	}

	// Store is the full persistence surface.
	Store interface {
		CategoryStore
		BudgetStore
		ExpenseStore
		AlertStore
		Directory
	}
)

// Note is one audit entry on an expense or budget.
type Note struct {
	ID        int64
	Body      string
	CreatedAt time.Time
}
