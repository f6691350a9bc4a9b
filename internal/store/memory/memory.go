// Package memory is an in-memory implementation of the store ports. It
// backs the DATA_BACKEND=memory mode and the service tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"budgetwise/internal/core"
	"budgetwise/internal/store"
)

type Store struct {
	mu         sync.Mutex
	categories map[int64]core.Category
	budgets    map[int64]core.Budget
	expenses   map[int64]core.Expense
	schedules  map[int64]core.AlertSchedule

	expenseNotes map[int64][]store.Note
	budgetNotes  map[int64][]store.Note

	managers []core.Recipient

	nextID  int64
	nextRef map[int]int64
}

func New() *Store {
	return &Store{
		categories:   make(map[int64]core.Category),
		budgets:      make(map[int64]core.Budget),
		expenses:     make(map[int64]core.Expense),
		schedules:    make(map[int64]core.AlertSchedule),
		expenseNotes: make(map[int64][]store.Note),
		budgetNotes:  make(map[int64][]store.Note),
		nextRef:      make(map[int]int64),
	}
}

var _ store.Store = (*Store)(nil)

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// SeedManagers sets the manager recipient group returned by
// ManagerRecipients. The SQLite backend resolves this from the users
// table; here it is seeded directly.
func (s *Store) SeedManagers(recipients ...core.Recipient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.managers = append([]core.Recipient(nil), recipients...)
}

func (s *Store) CreateCategory(_ context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkParentChain(c); err != nil {
		return core.Category{}, err
	}
	want := strings.ToLower(strings.TrimSpace(c.Name))
	for _, existing := range s.categories {
		if strings.ToLower(existing.Name) == want {
			return core.Category{}, store.ErrDuplicateName
		}
	}
	c.ID = s.id()
	s.categories[c.ID] = c
	return c, nil
}

// checkParentChain walks the parent links and rejects cycles. Must be
// called with the lock held.
func (s *Store) checkParentChain(c core.Category) error {
	seen := map[int64]bool{c.ID: true}
	for pid := c.ParentID; pid != 0; {
		if seen[pid] {
			return core.ErrCategoryCycle
		}
		seen[pid] = true
		parent, ok := s.categories[pid]
		if !ok {
			return store.ErrNotFound
		}
		pid = parent.ParentID
	}
	return nil
}

func (s *Store) GetCategory(_ context.Context, id int64) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok {
		return core.Category{}, store.ErrNotFound
	}
	return c, nil
}

func (s *Store) FindCategoryByName(_ context.Context, name string) (core.Category, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := strings.ToLower(strings.TrimSpace(name))
	for _, c := range s.categories {
		if strings.ToLower(c.Name) == want {
			return c, true, nil
		}
	}
	return core.Category{}, false, nil
}

func (s *Store) ListCategories(_ context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CreateBudget(_ context.Context, b core.Budget) (core.Budget, error) {
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.State == "" {
		b.State = core.BudgetDraft
	}
	if b.WarningThreshold == 0 {
		b.WarningThreshold = core.DefaultWarningThreshold
	}
	if b.CriticalThreshold == 0 {
		b.CriticalThreshold = core.DefaultCriticalThreshold
	}
	b.ID = s.id()
	s.budgets[b.ID] = b
	return b, nil
}

func (s *Store) GetBudget(_ context.Context, id int64) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[id]
	if !ok {
		return core.Budget{}, store.ErrNotFound
	}
	return b, nil
}

func (s *Store) ListBudgets(_ context.Context) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Budget, 0, len(s.budgets))
	for _, b := range s.budgets {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SetBudgetState(_ context.Context, id int64, state core.BudgetState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[id]
	if !ok {
		return store.ErrNotFound
	}
	b.State = state
	s.budgets[id] = b
	return nil
}

func (s *Store) AppendBudgetNote(_ context.Context, budgetID int64, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.budgets[budgetID]; !ok {
		return store.ErrNotFound
	}
	s.budgetNotes[budgetID] = append(s.budgetNotes[budgetID], store.Note{
		ID:        s.id(),
		Body:      body,
		CreatedAt: time.Now(),
	})
	return nil
}

// BudgetNotes returns the budget's activity feed, oldest first.
func (s *Store) BudgetNotes(budgetID int64) []store.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.Note(nil), s.budgetNotes[budgetID]...)
}

func (s *Store) CreateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.id()
	if e.State == "" {
		e.State = core.StateDraft
	}
	if e.Reference == "" {
		year := e.Date.Year()
		if year == 0 {
			year = time.Now().Year()
		}
		s.nextRef[year]++
		e.Reference = core.FormatReference(year, s.nextRef[year])
	}
	s.expenses[e.ID] = e
	return e, nil
}

func (s *Store) UpdateExpense(_ context.Context, e core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.expenses[e.ID]; !ok {
		return store.ErrNotFound
	}
	s.expenses[e.ID] = e
	return nil
}

func (s *Store) GetExpense(_ context.Context, id int64) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses[id]
	if !ok {
		return core.Expense{}, store.ErrNotFound
	}
	return e, nil
}

func (s *Store) ListExpenses(_ context.Context) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Expense, 0, len(s.expenses))
	for _, e := range s.expenses {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListExpensesByBudget(_ context.Context, budgetID int64) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Expense
	for _, e := range s.expenses {
		if e.BudgetID == budgetID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) FindExpenseByTitleAndDate(_ context.Context, title string, date time.Time) (core.Expense, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := core.DateOnly(date)
	var found core.Expense
	var ok bool
	for _, e := range s.expenses {
		if e.Title == title && core.DateOnly(e.Date).Equal(want) {
			// Lowest ID wins, matching the SQLite ORDER BY id LIMIT 1.
			if !ok || e.ID < found.ID {
				found, ok = e, true
			}
		}
	}
	return found, ok, nil
}

func (s *Store) SetExpenseState(_ context.Context, id int64, state core.ExpenseState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses[id]
	if !ok {
		return store.ErrNotFound
	}
	e.State = state
	s.expenses[id] = e
	return nil
}

func (s *Store) AppendExpenseNote(_ context.Context, expenseID int64, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.expenses[expenseID]; !ok {
		return store.ErrNotFound
	}
	s.expenseNotes[expenseID] = append(s.expenseNotes[expenseID], store.Note{
		ID:        s.id(),
		Body:      body,
		CreatedAt: time.Now(),
	})
	return nil
}

func (s *Store) ListExpenseNotes(_ context.Context, expenseID int64) ([]store.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.Note(nil), s.expenseNotes[expenseID]...), nil
}

func (s *Store) CreateAlertSchedule(_ context.Context, sched core.AlertSchedule) (core.AlertSchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sched.ID = s.id()
	sched.Active = true
	s.schedules[sched.ID] = sched
	return sched, nil
}

func (s *Store) GetAlertSchedule(_ context.Context, id int64) (core.AlertSchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sched, ok := s.schedules[id]
	if !ok {
		return core.AlertSchedule{}, store.ErrNotFound
	}
	return sched, nil
}

func (s *Store) ListAlertSchedules(_ context.Context) ([]core.AlertSchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.AlertSchedule, 0, len(s.schedules))
	for _, sched := range s.schedules {
		out = append(out, sched)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) MarkAlertScheduleRun(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sched, ok := s.schedules[id]
	if !ok {
		return store.ErrNotFound
	}
	sched.LastRunAt = at
	s.schedules[id] = sched
	return nil
}

func (s *Store) ManagerRecipients(_ context.Context) ([]core.Recipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Recipient(nil), s.managers...), nil
}
