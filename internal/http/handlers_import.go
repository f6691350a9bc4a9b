package http

import (
	"io"
	"net/http"

	"budgetwise/internal/services"
)

const importMaxBytes = 10 << 20 // 10 MiB upload cap

// importOptions reads the pipeline settings from query parameters so the
// body stays the raw CSV. Multipart uploads use the "file" part.
func importOptions(r *http.Request) services.ImportOptions {
	q := r.URL.Query()

	opts := services.ImportOptions{
		Mode:       services.ImportCreate,
		Columns:    services.DefaultColumnMapping(),
		DateLayout: services.DateLayoutISO,
		Delimiter:  ',',
	}
	if q.Get("mode") == string(services.ImportUpdate) {
		opts.Mode = services.ImportUpdate
	}
	switch q.Get("date_format") {
	case "us":
		opts.DateLayout = services.DateLayoutUS
	case "eu":
		opts.DateLayout = services.DateLayoutEU
	case "eu-dash":
		opts.DateLayout = services.DateLayoutDash
	}
	switch q.Get("delimiter") {
	case "semicolon":
		opts.Delimiter = ';'
	case "tab":
		opts.Delimiter = '\t'
	}
	if v := q.Get("title_column"); v != "" {
		opts.Columns.Title = v
	}
	if v := q.Get("amount_column"); v != "" {
		opts.Columns.Amount = v
	}
	if v := q.Get("category_column"); v != "" {
		opts.Columns.Category = v
	}
	if v := q.Get("date_column"); v != "" {
		opts.Columns.Date = v
	}
	if v := q.Get("description_column"); v != "" {
		opts.Columns.Description = v
	}
	return opts
}

// importBody returns the CSV stream: the multipart "file" part when
// present, otherwise the raw request body.
func importBody(r *http.Request) (io.ReadCloser, error) {
	if err := r.ParseMultipartForm(importMaxBytes); err == nil {
		file, _, err := r.FormFile("file")
		if err == nil {
			return file, nil
		}
	}
	return http.MaxBytesReader(nil, r.Body, importMaxBytes), nil
}

type importReportResponse struct {
	Total      int      `json:"total_records"`
	Successful int      `json:"successful_imports"`
	Failed     int      `json:"failed_imports"`
	Report     string   `json:"report"`
	Errors     []string `json:"errors,omitempty"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	opts := importOptions(r)
	body, err := importBody(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	defer body.Close()

	report, err := s.svc.Importer.Run(r.Context(), actorFromRequest(r), body, opts)
	if err != nil {
		respondError(w, err)
		return
	}
	// Imported rows move budget totals just like single-expense writes do.
	for _, row := range report.Successful {
		s.invalidateBudgetReads(row.Expense.BudgetID)
	}
	s.snapshotCache.Delete(snapshotCacheKey)

	var rowErrors []string
	for _, failed := range report.Failed {
		rowErrors = append(rowErrors, failed.Errors...)
	}
	respondJSON(w, http.StatusOK, importReportResponse{
		Total:      report.Total,
		Successful: len(report.Successful),
		Failed:     len(report.Failed),
		Report:     report.Format(opts.Columns),
		Errors:     rowErrors,
	})
}

func (s *Server) handleImportPreview(w http.ResponseWriter, r *http.Request) {
	opts := importOptions(r)
	body, err := importBody(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	defer body.Close()

	preview, err := s.svc.Importer.Preview(body, opts)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, preview)
}

func (s *Server) handleImportTemplate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="expense_import_template.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(services.Template()))
}
