package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"budgetwise/internal/core"
	"budgetwise/internal/store"
)

var ErrEmptyFile = errors.New("the CSV file appears to be empty or has no valid data")

// Supported date layouts for imported files.
const (
	DateLayoutISO  = "2006-01-02"
	DateLayoutUS   = "01/02/2006"
	DateLayoutEU   = "02/01/2006"
	DateLayoutDash = "02-01-2006"
)

type ImportMode string

const (
	ImportCreate ImportMode = "create"
	ImportUpdate ImportMode = "update"
)

// ColumnMapping names the CSV columns each expense field is read from.
type ColumnMapping struct {
	Title       string
	Amount      string
	Category    string
	Date        string
	Description string
}

// DefaultColumnMapping matches the downloadable template.
func DefaultColumnMapping() ColumnMapping {
	return ColumnMapping{
		Title:       "title",
		Amount:      "amount",
		Category:    "category",
		Date:        "date",
		Description: "description",
	}
}

// ImportOptions configure one import run.
type ImportOptions struct {
	Mode       ImportMode
	Columns    ColumnMapping
	DateLayout string
	Delimiter  rune
}

type (
	// ImportRowResult describes one processed data row. Line numbers are
	// file line numbers: the header is line 1, the first data row line 2.
	ImportRowResult struct {
		Line    int
		Title   string
		Action  string
		Errors  []string
		Expense core.Expense
	}

	// ImportReport summarizes a completed run.
	ImportReport struct {
		Total      int
		Successful []ImportRowResult
		Failed     []ImportRowResult
	}

	// PreviewRow is one row of the pre-import validation preview.
	PreviewRow struct {
		Line     int
		Title    string
		Amount   string
		Category string
		Date     string
		Errors   []string
		Valid    bool
	}
)

// Importer is the CSV import pipeline. It reads header-keyed rows,
// validates each independently, and creates or updates expenses so that
// one bad row never aborts the run.
type Importer struct {
	store store.Store
	now   func() time.Time
}

func NewImporter(s store.Store) *Importer {
	return &Importer{store: s, now: time.Now}
}

func (im *Importer) WithClock(now func() time.Time) *Importer {
	im.now = now
	return im
}

type importRow struct {
	line   int
	fields map[string]string
}

func (r importRow) get(column string) string {
	return strings.TrimSpace(r.fields[column])
}

func (im *Importer) parse(reader io.Reader, opts ImportOptions) ([]importRow, error) {
	cr := csv.NewReader(reader)
	if opts.Delimiter != 0 {
		cr.Comma = opts.Delimiter
	}
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("error reading CSV file: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []importRow
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("error reading CSV file: %w", err)
		}
		fields := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				fields[col] = record[i]
			}
		}
		rows = append(rows, importRow{line: line, fields: fields})
	}
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}
	return rows, nil
}

// validateRow collects every problem with a row rather than stopping at
// the first, so the report names them all.
func (im *Importer) validateRow(row importRow, opts ImportOptions) []string {
	var errs []string

	if row.get(opts.Columns.Title) == "" {
		errs = append(errs, "Title is required")
	}
	if amount := row.get(opts.Columns.Amount); amount == "" {
		errs = append(errs, "Amount is required")
	} else if _, err := decimal.NewFromString(amount); err != nil {
		errs = append(errs, "Amount must be a valid number")
	}
	if row.get(opts.Columns.Category) == "" {
		errs = append(errs, "Category is required")
	}
	if date := row.get(opts.Columns.Date); date == "" {
		errs = append(errs, "Date is required")
	} else if _, err := time.Parse(opts.DateLayout, date); err != nil {
		errs = append(errs, fmt.Sprintf("Date format is invalid. Expected: %s", opts.DateLayout))
	}
	return errs
}

func (im *Importer) getOrCreateCategory(ctx context.Context, name string) (core.Category, error) {
	name = strings.TrimSpace(name)
	cat, ok, err := im.store.FindCategoryByName(ctx, name)
	if err != nil {
		return core.Category{}, err
	}
	if ok {
		return cat, nil
	}
	return im.store.CreateCategory(ctx, core.Category{
		Name: name,
		Code: core.CategoryCode(name),
	})
}

func (im *Importer) createFromRow(ctx context.Context, actor core.Actor, row importRow, opts ImportOptions) (core.Expense, error) {
	date, err := time.Parse(opts.DateLayout, row.get(opts.Columns.Date))
	if err != nil {
		return core.Expense{}, err
	}
	amount, err := decimal.NewFromString(row.get(opts.Columns.Amount))
	if err != nil {
		return core.Expense{}, err
	}
	category, err := im.getOrCreateCategory(ctx, row.get(opts.Columns.Category))
	if err != nil {
		return core.Expense{}, err
	}

	expense := core.Expense{
		Title:       row.get(opts.Columns.Title),
		Amount:      amount,
		CategoryID:  category.ID,
		Date:        date,
		State:       core.StateDraft,
		UserID:      actor.UserID,
		CompanyID:   actor.CompanyID,
		Currency:    actor.Currency,
		Description: row.get(opts.Columns.Description),
	}
	if err := expense.Validate(im.now()); err != nil {
		return core.Expense{}, err
	}
	return im.store.CreateExpense(ctx, expense)
}

func (im *Importer) updateFromRow(ctx context.Context, row importRow, opts ImportOptions) (core.Expense, bool, error) {
	date, err := time.Parse(opts.DateLayout, row.get(opts.Columns.Date))
	if err != nil {
		return core.Expense{}, false, err
	}
	expense, ok, err := im.store.FindExpenseByTitleAndDate(ctx, row.get(opts.Columns.Title), date)
	if err != nil || !ok {
		return core.Expense{}, false, err
	}

	amount, err := decimal.NewFromString(row.get(opts.Columns.Amount))
	if err != nil {
		return core.Expense{}, false, err
	}
	category, err := im.getOrCreateCategory(ctx, row.get(opts.Columns.Category))
	if err != nil {
		return core.Expense{}, false, err
	}

	expense.Amount = amount
	expense.CategoryID = category.ID
	if desc := row.get(opts.Columns.Description); desc != "" {
		expense.Description = desc
	}
	if err := im.store.UpdateExpense(ctx, expense); err != nil {
		return core.Expense{}, false, err
	}
	return expense, true, nil
}

// Run processes the whole file and returns the report. Row failures are
// collected per row; only a file-level problem returns an error.
func (im *Importer) Run(ctx context.Context, actor core.Actor, reader io.Reader, opts ImportOptions) (ImportReport, error) {
	if opts.DateLayout == "" {
		opts.DateLayout = DateLayoutISO
	}
	if opts.Columns == (ColumnMapping{}) {
		opts.Columns = DefaultColumnMapping()
	}

	rows, err := im.parse(reader, opts)
	if err != nil {
		return ImportReport{}, err
	}

	report := ImportReport{Total: len(rows)}
	for _, row := range rows {
		result := ImportRowResult{Line: row.line, Title: row.get(opts.Columns.Title)}

		if errs := im.validateRow(row, opts); len(errs) > 0 {
			result.Errors = errs
			report.Failed = append(report.Failed, result)
			continue
		}

		switch opts.Mode {
		case ImportUpdate:
			expense, found, err := im.updateFromRow(ctx, row, opts)
			switch {
			case err != nil:
				result.Errors = []string{err.Error()}
				report.Failed = append(report.Failed, result)
			case !found:
				result.Errors = []string{"No matching expense found to update"}
				report.Failed = append(report.Failed, result)
			default:
				result.Action = "updated"
				result.Expense = expense
				report.Successful = append(report.Successful, result)
			}
		default:
			expense, err := im.createFromRow(ctx, actor, row, opts)
			if err != nil {
				result.Errors = []string{err.Error()}
				report.Failed = append(report.Failed, result)
				continue
			}
			result.Action = "created"
			result.Expense = expense
			report.Successful = append(report.Successful, result)
		}
	}

	slog.InfoContext(ctx, "CSV import complete",
		"mode", string(opts.Mode),
		"total", report.Total,
		"successful", len(report.Successful),
		"failed", len(report.Failed))
	return report, nil
}

// Preview validates the first ten rows without writing anything.
func (im *Importer) Preview(reader io.Reader, opts ImportOptions) ([]PreviewRow, error) {
	if opts.DateLayout == "" {
		opts.DateLayout = DateLayoutISO
	}
	if opts.Columns == (ColumnMapping{}) {
		opts.Columns = DefaultColumnMapping()
	}

	rows, err := im.parse(reader, opts)
	if err != nil {
		return nil, err
	}
	if len(rows) > 10 {
		rows = rows[:10]
	}

	preview := make([]PreviewRow, 0, len(rows))
	for _, row := range rows {
		errs := im.validateRow(row, opts)
		preview = append(preview, PreviewRow{
			Line:     row.line,
			Title:    row.get(opts.Columns.Title),
			Amount:   row.get(opts.Columns.Amount),
			Category: row.get(opts.Columns.Category),
			Date:     row.get(opts.Columns.Date),
			Errors:   errs,
			Valid:    len(errs) == 0,
		})
	}
	return preview, nil
}

// Format renders the report as the plain-text summary shown to the user.
// Failed rows come first with every error listed; successful rows are
// capped at twenty.
func (r ImportReport) Format(columns ColumnMapping) string {
	var b strings.Builder

	fmt.Fprintln(&b, "IMPORT RESULTS")
	fmt.Fprintln(&b, strings.Repeat("=", 50))
	fmt.Fprintf(&b, "Total records processed: %d\n", r.Total)
	fmt.Fprintf(&b, "Successful: %d\n", len(r.Successful))
	fmt.Fprintf(&b, "Failed: %d\n", len(r.Failed))
	fmt.Fprintln(&b)

	if len(r.Failed) > 0 {
		fmt.Fprintln(&b, "FAILED RECORDS:")
		fmt.Fprintln(&b, strings.Repeat("-", 30))
		for _, failed := range r.Failed {
			fmt.Fprintf(&b, "Line %d:\n", failed.Line)
			fmt.Fprintf(&b, "  - %s: %s\n", columns.Title, failed.Title)
			for _, e := range failed.Errors {
				fmt.Fprintf(&b, "  - ERROR: %s\n", e)
			}
		}
	}

	if len(r.Successful) > 0 {
		fmt.Fprintln(&b, "SUCCESSFUL RECORDS:")
		fmt.Fprintln(&b, strings.Repeat("-", 30))
		shown := r.Successful
		if len(shown) > 20 {
			shown = shown[:20]
		}
		for _, success := range shown {
			fmt.Fprintf(&b, "Line %d: %s (%s)\n", success.Line, success.Expense.Title, success.Action)
		}
		if extra := len(r.Successful) - 20; extra > 0 {
			fmt.Fprintf(&b, "... and %d more\n", extra)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// Template returns the downloadable CSV template with example rows.
func Template() string {
	return strings.Join([]string{
		"title,amount,category,date,description",
		"Office Supplies,150.50,Office,2024-01-15,Purchase of stationery",
		"Client Lunch,85.00,Entertainment,2024-01-16,Business meeting",
		"Software Subscription,299.00,Software,2024-01-17,Annual subscription",
	}, "\n") + "\n"
}
