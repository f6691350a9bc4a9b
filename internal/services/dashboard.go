package services

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"budgetwise/internal/core"
	"budgetwise/internal/store"
)

// Snapshot is the dashboard's read model. It is derived on demand and
// never stored.
type Snapshot struct {
	TotalExpenses     decimal.Decimal
	MonthlyExpenses   decimal.Decimal
	PendingApproval   int
	BudgetUtilization float64
	RemainingBudget   decimal.Decimal
	RecentExpenses    []core.Expense
	GeneratedAt       time.Time
}

// Projector builds dashboard snapshots from the full expense and budget
// populations.
type Projector struct {
	store  store.Store
	now    func() time.Time
	recent int
}

func NewProjector(s store.Store) *Projector {
	return &Projector{store: s, now: time.Now, recent: 10}
}

func (p *Projector) WithClock(now func() time.Time) *Projector {
	p.now = now
	return p
}

// Snapshot scans expenses and budgets concurrently and folds them into
// the summary figures.
func (p *Projector) Snapshot(ctx context.Context) (Snapshot, error) {
	var (
		expenses []core.Expense
		budgets  []core.Budget
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		expenses, err = p.store.ListExpenses(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		budgets, err = p.store.ListBudgets(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	now := p.now()
	snap := Snapshot{GeneratedAt: now}

	for _, e := range expenses {
		snap.TotalExpenses = snap.TotalExpenses.Add(e.Amount)
		if e.Date.Month() == now.Month() && e.Date.Year() == now.Year() {
			snap.MonthlyExpenses = snap.MonthlyExpenses.Add(e.Amount)
		}
		if e.State == core.StateSubmitted {
			snap.PendingApproval++
		}
	}

	var totalBudget decimal.Decimal
	for _, b := range budgets {
		totalBudget = totalBudget.Add(b.Amount)
	}
	snap.BudgetUtilization = utilization(snap.TotalExpenses, totalBudget)
	snap.RemainingBudget = totalBudget.Sub(snap.TotalExpenses)

	snap.RecentExpenses = recentExpenses(expenses, p.recent)
	return snap, nil
}

// recentExpenses returns the n newest expenses by date, then by ID so
// same-day entries order deterministically.
func recentExpenses(expenses []core.Expense, n int) []core.Expense {
	sorted := make([]core.Expense, len(expenses))
	copy(sorted, expenses)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.After(sorted[j].Date)
		}
		return sorted[i].ID > sorted[j].ID
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
