// Package storage is the SQLite-backed implementation of the store ports.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"budgetwise/internal/core"
	"budgetwise/internal/store"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

type SQLiteRepository struct {
	db *sql.DB
}

var _ store.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	if err := r.checkParentChain(ctx, c); err != nil {
		return core.Category{}, err
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (name, code, description, parent_id, color, has_budget, default_budget_amount)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.Name, c.Code, c.Description, c.ParentID, c.Color, c.HasBudget, c.DefaultBudgetAmount.String())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return core.Category{}, store.ErrDuplicateName
		}
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	c.ID, err = res.LastInsertId()
	if err != nil {
		return core.Category{}, fmt.Errorf("category id: %w", err)
	}
	slog.InfoContext(ctx, "Category created", "id", c.ID, "name", c.Name)
	return c, nil
}

// checkParentChain walks parent links up to the root, rejecting cycles.
// The walk is bounded by the visited set, so a corrupted chain cannot
// loop forever.
func (r *SQLiteRepository) checkParentChain(ctx context.Context, c core.Category) error {
	seen := map[int64]bool{c.ID: true}
	for pid := c.ParentID; pid != 0; {
		if seen[pid] {
			return core.ErrCategoryCycle
		}
		seen[pid] = true
		parent, err := r.GetCategory(ctx, pid)
		if err != nil {
			return err
		}
		pid = parent.ParentID
	}
	return nil
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, code, description, parent_id, color, has_budget, default_budget_amount
		FROM categories WHERE id = ?`, id)
	return scanCategory(row)
}

func (r *SQLiteRepository) FindCategoryByName(ctx context.Context, name string) (core.Category, bool, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, code, description, parent_id, color, has_budget, default_budget_amount
		FROM categories WHERE name = ? COLLATE NOCASE LIMIT 1`, name)
	c, err := scanCategory(row)
	if errors.Is(err, store.ErrNotFound) {
		return core.Category{}, false, nil
	}
	if err != nil {
		return core.Category{}, false, err
	}
	return c, true, nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, code, description, parent_id, color, has_budget, default_budget_amount
		FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCategory(row rowScanner) (core.Category, error) {
	var c core.Category
	var amount string
	err := row.Scan(&c.ID, &c.Name, &c.Code, &c.Description, &c.ParentID, &c.Color, &c.HasBudget, &amount)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, store.ErrNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("scan category: %w", err)
	}
	c.DefaultBudgetAmount, err = decimal.NewFromString(amount)
	if err != nil {
		return core.Category{}, fmt.Errorf("parse category amount %q: %w", amount, err)
	}
	return c, nil
}

func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	if b.State == "" {
		b.State = core.BudgetDraft
	}
	if b.WarningThreshold == 0 {
		b.WarningThreshold = core.DefaultWarningThreshold
	}
	if b.CriticalThreshold == 0 {
		b.CriticalThreshold = core.DefaultCriticalThreshold
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO budgets (name, category_id, amount, period_type, date_from, date_to, warning_threshold, critical_threshold, state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.Name, b.CategoryID, b.Amount.String(), string(b.PeriodType),
		b.DateFrom.Format(dateLayout), b.DateTo.Format(dateLayout),
		b.WarningThreshold, b.CriticalThreshold, string(b.State))
	if err != nil {
		return core.Budget{}, fmt.Errorf("insert budget: %w", err)
	}
	b.ID, err = res.LastInsertId()
	if err != nil {
		return core.Budget{}, fmt.Errorf("budget id: %w", err)
	}
	slog.InfoContext(ctx, "Budget created", "id", b.ID, "name", b.Name, "amount", b.Amount.String())
	return b, nil
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, id int64) (core.Budget, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, category_id, amount, period_type, date_from, date_to, warning_threshold, critical_threshold, state
		FROM budgets WHERE id = ?`, id)
	return scanBudget(row)
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, category_id, amount, period_type, date_from, date_to, warning_threshold, critical_threshold, state
		FROM budgets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBudget(row rowScanner) (core.Budget, error) {
	var b core.Budget
	var amount, from, to, period, state string
	err := row.Scan(&b.ID, &b.Name, &b.CategoryID, &amount, &period, &from, &to,
		&b.WarningThreshold, &b.CriticalThreshold, &state)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, store.ErrNotFound
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("scan budget: %w", err)
	}
	b.PeriodType = core.PeriodType(period)
	b.State = core.BudgetState(state)
	if b.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.Budget{}, fmt.Errorf("parse budget amount %q: %w", amount, err)
	}
	if b.DateFrom, err = time.Parse(dateLayout, from); err != nil {
		return core.Budget{}, fmt.Errorf("parse budget date_from %q: %w", from, err)
	}
	if b.DateTo, err = time.Parse(dateLayout, to); err != nil {
		return core.Budget{}, fmt.Errorf("parse budget date_to %q: %w", to, err)
	}
	return b, nil
}

func (r *SQLiteRepository) SetBudgetState(ctx context.Context, id int64, state core.BudgetState) error {
	res, err := r.db.ExecContext(ctx, `UPDATE budgets SET state = ? WHERE id = ?`, string(state), id)
	if err != nil {
		return fmt.Errorf("set budget state: %w", err)
	}
	return requireRow(res)
}

func (r *SQLiteRepository) AppendBudgetNote(ctx context.Context, budgetID int64, body string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO budget_notes (budget_id, body) VALUES (?, ?)`, budgetID, body)
	if err != nil {
		return fmt.Errorf("insert budget note: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if e.State == "" {
		e.State = core.StateDraft
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Expense{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if e.Reference == "" {
		year := e.Date.Year()
		if year == 0 {
			year = time.Now().Year()
		}
		var seq int64
		err := tx.QueryRowContext(ctx, `
			INSERT INTO expense_sequences (year, next_value) VALUES (?, 1)
			ON CONFLICT(year) DO UPDATE SET next_value = next_value + 1
			RETURNING next_value`, year).Scan(&seq)
		if err != nil {
			return core.Expense{}, fmt.Errorf("next expense sequence: %w", err)
		}
		e.Reference = core.FormatReference(year, seq)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO expenses (reference, title, amount, category_id, date, currency, description,
			receipt_filename, state, user_id, company_id, vendor_id, payment_method, budget_id, bill_ref)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Reference, e.Title, e.Amount.String(), e.CategoryID, e.Date.Format(dateLayout),
		e.Currency, e.Description, e.ReceiptFilename, string(e.State),
		e.UserID, e.CompanyID, e.VendorID, string(e.PaymentMethod), e.BudgetID, e.BillRef)
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return core.Expense{}, fmt.Errorf("expense id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return core.Expense{}, fmt.Errorf("commit expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense created",
		"id", e.ID,
		"reference", e.Reference,
		"title", e.Title,
		"amount", e.Amount.String())
	return e, nil
}

func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e core.Expense) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE expenses SET title = ?, amount = ?, category_id = ?, date = ?, currency = ?,
			description = ?, receipt_filename = ?, state = ?, user_id = ?, company_id = ?,
			vendor_id = ?, payment_method = ?, budget_id = ?, bill_ref = ?
		WHERE id = ?`,
		e.Title, e.Amount.String(), e.CategoryID, e.Date.Format(dateLayout), e.Currency,
		e.Description, e.ReceiptFilename, string(e.State), e.UserID, e.CompanyID,
		e.VendorID, string(e.PaymentMethod), e.BudgetID, e.BillRef, e.ID)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	return requireRow(res)
}

const expenseColumns = `id, reference, title, amount, category_id, date, currency, description,
	receipt_filename, state, user_id, company_id, vendor_id, payment_method, budget_id, bill_ref`

func (r *SQLiteRepository) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id)
	return scanExpense(row)
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	return r.queryExpenses(ctx, `SELECT `+expenseColumns+` FROM expenses ORDER BY date DESC, id DESC`)
}

func (r *SQLiteRepository) ListExpensesByBudget(ctx context.Context, budgetID int64) ([]core.Expense, error) {
	return r.queryExpenses(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE budget_id = ? ORDER BY id`, budgetID)
}

func (r *SQLiteRepository) queryExpenses(ctx context.Context, query string, args ...any) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) FindExpenseByTitleAndDate(ctx context.Context, title string, date time.Time) (core.Expense, bool, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+expenseColumns+` FROM expenses
		WHERE title = ? AND date = ? ORDER BY id LIMIT 1`,
		title, core.DateOnly(date).Format(dateLayout))
	e, err := scanExpense(row)
	if errors.Is(err, store.ErrNotFound) {
		return core.Expense{}, false, nil
	}
	if err != nil {
		return core.Expense{}, false, err
	}
	return e, true, nil
}

func scanExpense(row rowScanner) (core.Expense, error) {
	var e core.Expense
	var amount, date, state, payment string
	err := row.Scan(&e.ID, &e.Reference, &e.Title, &amount, &e.CategoryID, &date,
		&e.Currency, &e.Description, &e.ReceiptFilename, &state, &e.UserID,
		&e.CompanyID, &e.VendorID, &payment, &e.BudgetID, &e.BillRef)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, store.ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("scan expense: %w", err)
	}
	e.State = core.ExpenseState(state)
	e.PaymentMethod = core.PaymentMethod(payment)
	if e.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.Expense{}, fmt.Errorf("parse expense amount %q: %w", amount, err)
	}
	if e.Date, err = time.Parse(dateLayout, date); err != nil {
		return core.Expense{}, fmt.Errorf("parse expense date %q: %w", date, err)
	}
	return e, nil
}

func (r *SQLiteRepository) SetExpenseState(ctx context.Context, id int64, state core.ExpenseState) error {
	res, err := r.db.ExecContext(ctx, `UPDATE expenses SET state = ? WHERE id = ?`, string(state), id)
	if err != nil {
		return fmt.Errorf("set expense state: %w", err)
	}
	return requireRow(res)
}

func (r *SQLiteRepository) AppendExpenseNote(ctx context.Context, expenseID int64, body string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO expense_notes (expense_id, body) VALUES (?, ?)`, expenseID, body)
	if err != nil {
		return fmt.Errorf("insert expense note: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListExpenseNotes(ctx context.Context, expenseID int64) ([]store.Note, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, body, created_at FROM expense_notes WHERE expense_id = ? ORDER BY id`, expenseID)
	if err != nil {
		return nil, fmt.Errorf("list expense notes: %w", err)
	}
	defer rows.Close()

	var out []store.Note
	for rows.Next() {
		var n store.Note
		if err := rows.Scan(&n.ID, &n.Body, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreateAlertSchedule(ctx context.Context, s core.AlertSchedule) (core.AlertSchedule, error) {
	recipients, err := json.Marshal(s.Recipients)
	if err != nil {
		return core.AlertSchedule{}, fmt.Errorf("marshal recipients: %w", err)
	}
	s.Active = true
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO alert_schedules (budget_id, alert_type, threshold, custom_text, recipients,
			via_email, via_chat, recurrence_interval, recurrence_unit, active, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)`,
		s.BudgetID, string(s.Type), s.Threshold, s.CustomText, string(recipients),
		s.ViaEmail, s.ViaChat, s.Interval, string(s.Unit), s.CreatedBy)
	if err != nil {
		return core.AlertSchedule{}, fmt.Errorf("insert alert schedule: %w", err)
	}
	if s.ID, err = res.LastInsertId(); err != nil {
		return core.AlertSchedule{}, fmt.Errorf("alert schedule id: %w", err)
	}
	slog.InfoContext(ctx, "Alert schedule created",
		"id", s.ID,
		"budget_id", s.BudgetID,
		"interval", s.Interval,
		"unit", string(s.Unit))
	return s, nil
}

func (r *SQLiteRepository) GetAlertSchedule(ctx context.Context, id int64) (core.AlertSchedule, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, budget_id, alert_type, threshold, custom_text, recipients, via_email, via_chat,
			recurrence_interval, recurrence_unit, last_run_at, active, created_by
		FROM alert_schedules WHERE id = ?`, id)
	return scanAlertSchedule(row)
}

func (r *SQLiteRepository) ListAlertSchedules(ctx context.Context) ([]core.AlertSchedule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, budget_id, alert_type, threshold, custom_text, recipients, via_email, via_chat,
			recurrence_interval, recurrence_unit, last_run_at, active, created_by
		FROM alert_schedules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list alert schedules: %w", err)
	}
	defer rows.Close()

	var out []core.AlertSchedule
	for rows.Next() {
		s, err := scanAlertSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanAlertSchedule(row rowScanner) (core.AlertSchedule, error) {
	var s core.AlertSchedule
	var alertType, unit, recipients string
	var lastRun sql.NullTime
	err := row.Scan(&s.ID, &s.BudgetID, &alertType, &s.Threshold, &s.CustomText, &recipients,
		&s.ViaEmail, &s.ViaChat, &s.Interval, &unit, &lastRun, &s.Active, &s.CreatedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return core.AlertSchedule{}, store.ErrNotFound
	}
	if err != nil {
		return core.AlertSchedule{}, fmt.Errorf("scan alert schedule: %w", err)
	}
	s.Type = core.AlertType(alertType)
	s.Unit = core.RecurrenceUnit(unit)
	if lastRun.Valid {
		s.LastRunAt = lastRun.Time
	}
	if err := json.Unmarshal([]byte(recipients), &s.Recipients); err != nil {
		return core.AlertSchedule{}, fmt.Errorf("unmarshal recipients: %w", err)
	}
	return s, nil
}

func (r *SQLiteRepository) MarkAlertScheduleRun(ctx context.Context, id int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE alert_schedules SET last_run_at = ? WHERE id = ?`, at, id)
	if err != nil {
		return fmt.Errorf("mark alert schedule run: %w", err)
	}
	return requireRow(res)
}

func (r *SQLiteRepository) ManagerRecipients(ctx context.Context) ([]core.Recipient, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, email FROM users WHERE is_manager = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list manager recipients: %w", err)
	}
	defer rows.Close()

	var out []core.Recipient
	for rows.Next() {
		var rec core.Recipient
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Email); err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CreateUser seeds the user directory. Managers receive default alerts.
func (r *SQLiteRepository) CreateUser(ctx context.Context, name, email string, manager bool) (int64, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO users (name, email, is_manager) VALUES (?, ?, ?)`,
		name, email, manager)
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return res.LastInsertId()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
