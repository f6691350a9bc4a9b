// Package services implements the business operations: budget
// aggregation, expense lifecycle, alerting, CSV import, invoice bridging
// and the dashboard projection.
package services

import (
	"context"
	"fmt"
	"time"

	"budgetwise/internal/core"
	"budgetwise/internal/store"

	"github.com/shopspring/decimal"
)

// Aggregator computes the derived figures of budgets from their linked
// expenses. All methods are pure reads: recomputation happens on every
// call, so the results are always consistent with the store and the
// methods are safe to call concurrently.
type Aggregator struct {
	store store.Store
}

func NewAggregator(s store.Store) *Aggregator {
	return &Aggregator{store: s}
}

// Totals computes spent, remaining and utilization for one budget.
// Only approved and paid expenses count toward spent. Remaining may be
// negative; utilization is zero for budgets with a non-positive amount.
func (a *Aggregator) Totals(ctx context.Context, budgetID int64) (core.BudgetTotals, error) {
	budget, err := a.store.GetBudget(ctx, budgetID)
	if err != nil {
		return core.BudgetTotals{}, fmt.Errorf("get budget %d: %w", budgetID, err)
	}
	expenses, err := a.store.ListExpensesByBudget(ctx, budgetID)
	if err != nil {
		return core.BudgetTotals{}, fmt.Errorf("list expenses for budget %d: %w", budgetID, err)
	}
	return computeTotals(budget, expenses), nil
}

func computeTotals(budget core.Budget, expenses []core.Expense) core.BudgetTotals {
	spent := decimal.Zero
	for _, e := range expenses {
		if e.State.CountsTowardSpent() {
			spent = spent.Add(e.Amount)
		}
	}
	return core.BudgetTotals{
		Spent:       spent,
		Remaining:   budget.Amount.Sub(spent),
		Utilization: utilization(spent, budget.Amount),
	}
}

func utilization(spent, amount decimal.Decimal) float64 {
	if !amount.IsPositive() {
		return 0
	}
	return spent.Div(amount).Mul(decimal.NewFromInt(100)).InexactFloat64()
}

// PortfolioReport is the cross-budget summary used for reporting. The
// within/near/over split uses the standard 80/95 cuts.
type PortfolioReport struct {
	TotalBudgets       int
	TotalBudgetAmount  decimal.Decimal
	TotalSpent         decimal.Decimal
	AverageUtilization float64
	WithinBudgetCount  int
	NearLimitCount     int
	OverBudgetCount    int
}

// Portfolio re-scans every budget and its expenses. The cost is
// O(budgets x expenses); acceptable for the reporting path.
func (a *Aggregator) Portfolio(ctx context.Context) (PortfolioReport, error) {
	budgets, err := a.store.ListBudgets(ctx)
	if err != nil {
		return PortfolioReport{}, fmt.Errorf("list budgets: %w", err)
	}

	report := PortfolioReport{
		TotalBudgets:      len(budgets),
		TotalBudgetAmount: decimal.Zero,
		TotalSpent:        decimal.Zero,
	}
	var utilizationSum float64
	for _, b := range budgets {
		totals, err := a.Totals(ctx, b.ID)
		if err != nil {
			return PortfolioReport{}, err
		}
		report.TotalBudgetAmount = report.TotalBudgetAmount.Add(b.Amount)
		report.TotalSpent = report.TotalSpent.Add(totals.Spent)
		utilizationSum += totals.Utilization
		switch {
		case totals.Utilization > core.DefaultCriticalThreshold:
			report.OverBudgetCount++
		case totals.Utilization > core.DefaultWarningThreshold:
			report.NearLimitCount++
		default:
			report.WithinBudgetCount++
		}
	}
	if len(budgets) > 0 {
		report.AverageUtilization = utilizationSum / float64(len(budgets))
	}
	return report, nil
}

// CategoryUtilization is one row of the per-category breakdown.
type CategoryUtilization struct {
	CategoryID   int64
	CategoryName string
	BudgetAmount decimal.Decimal
	SpentAmount  decimal.Decimal
	Utilization  float64
	Variance     decimal.Decimal
}

// CategoryBreakdown rolls budgets up per category. Categories without
// budgets are skipped.
func (a *Aggregator) CategoryBreakdown(ctx context.Context) ([]CategoryUtilization, error) {
	categories, err := a.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	budgets, err := a.store.ListBudgets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}

	var out []CategoryUtilization
	for _, cat := range categories {
		total := decimal.Zero
		spent := decimal.Zero
		matched := false
		for _, b := range budgets {
			if b.CategoryID != cat.ID {
				continue
			}
			matched = true
			totals, err := a.Totals(ctx, b.ID)
			if err != nil {
				return nil, err
			}
			total = total.Add(b.Amount)
			spent = spent.Add(totals.Spent)
		}
		if !matched {
			continue
		}
		out = append(out, CategoryUtilization{
			CategoryID:   cat.ID,
			CategoryName: cat.Name,
			BudgetAmount: total,
			SpentAmount:  spent,
			Utilization:  utilization(spent, total),
			Variance:     total.Sub(spent),
		})
	}
	return out, nil
}

// OverBudgetItem describes one budget past 100% utilization.
type OverBudgetItem struct {
	BudgetID    int64
	BudgetName  string
	Overspent   decimal.Decimal
	Utilization float64
}

func (a *Aggregator) OverBudget(ctx context.Context) ([]OverBudgetItem, error) {
	budgets, err := a.store.ListBudgets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	var out []OverBudgetItem
	for _, b := range budgets {
		totals, err := a.Totals(ctx, b.ID)
		if err != nil {
			return nil, err
		}
		if totals.Utilization > 100 {
			out = append(out, OverBudgetItem{
				BudgetID:    b.ID,
				BudgetName:  b.Name,
				Overspent:   totals.Spent.Sub(b.Amount),
				Utilization: totals.Utilization,
			})
		}
	}
	return out, nil
}

// ActivateBudget and CloseBudget drive the budget lifecycle
// (draft -> active -> closed).
func (a *Aggregator) ActivateBudget(ctx context.Context, id int64) error {
	return a.store.SetBudgetState(ctx, id, core.BudgetActive)
}

func (a *Aggregator) CloseBudget(ctx context.Context, id int64) error {
	return a.store.SetBudgetState(ctx, id, core.BudgetClosed)
}

// DefaultBudgetRange returns the default date range for new budgets:
// the current quarter.
func DefaultBudgetRange(now time.Time) (time.Time, time.Time) {
	return core.CurrentQuarter(now)
}
