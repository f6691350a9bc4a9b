// Package http exposes the JSON API: categories, budgets, expenses,
// CSV import, alerts and the dashboard.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"budgetwise/internal/cache"
	"budgetwise/internal/middleware/ratelimit"
	"budgetwise/internal/middleware/security"
	"budgetwise/internal/middleware/trace"
	"budgetwise/internal/services"
)

// Services bundles the business operations the server dispatches to.
type Services struct {
	Expenses   *services.ExpenseService
	Aggregator *services.Aggregator
	Alerts     *services.AlertEngine
	Importer   *services.Importer
	Invoices   *services.InvoiceBridge
	Dashboard  *services.Projector
}

type Server struct {
	http.Server
	svc Services

	limiter    *ratelimit.Limiter
	ipResolver *security.IPResolver

	// Read-path caches. Dashboard snapshots and budget totals are
	// recomputed from full scans, so short TTLs keep the hot endpoints
	// cheap without staleness anyone would notice.
	snapshotCache *cache.LRUCache[services.Snapshot]
	totalsCache   *cache.LRUCache[totalsResponse]
	cacheManager  *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, svc Services) *Server {
	router := mux.NewRouter()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: router,
		},
		svc:           svc,
		limiter:       ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		ipResolver:    security.NewIPResolver(),
		snapshotCache: cache.NewLRUCache[services.Snapshot](10, 30*time.Second),
		totalsCache:   cache.NewLRUCache[totalsResponse](200, 30*time.Second),
		cacheManager:  cache.NewManager(),
	}

	s.cacheManager.Register(s.snapshotCache)
	s.cacheManager.Register(s.totalsCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	tracer := trace.NewMiddleware(s.ipResolver.ClientIP)
	headers := security.NewHeaders(security.DefaultHeadersConfig())

	router.Use(tracer.Handler)
	router.Use(headers.Middleware)
	router.Use(s.limitMutations)

	router.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/readyz", handleReady).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/categories", s.handleCreateCategory).Methods(http.MethodPost)
	api.HandleFunc("/categories", s.handleListCategories).Methods(http.MethodGet)
	api.HandleFunc("/categories/{id:[0-9]+}", s.handleGetCategory).Methods(http.MethodGet)

	api.HandleFunc("/budgets", s.handleCreateBudget).Methods(http.MethodPost)
	api.HandleFunc("/budgets", s.handleListBudgets).Methods(http.MethodGet)
	api.HandleFunc("/budgets/report", s.handlePortfolioReport).Methods(http.MethodGet)
	api.HandleFunc("/budgets/breakdown", s.handleCategoryBreakdown).Methods(http.MethodGet)
	api.HandleFunc("/budgets/over", s.handleOverBudget).Methods(http.MethodGet)
	api.HandleFunc("/budgets/{id:[0-9]+}", s.handleGetBudget).Methods(http.MethodGet)
	api.HandleFunc("/budgets/{id:[0-9]+}/totals", s.handleBudgetTotals).Methods(http.MethodGet)
	api.HandleFunc("/budgets/{id:[0-9]+}/activate", s.handleActivateBudget).Methods(http.MethodPost)
	api.HandleFunc("/budgets/{id:[0-9]+}/close", s.handleCloseBudget).Methods(http.MethodPost)
	api.HandleFunc("/budgets/{id:[0-9]+}/alerts", s.handleSendAlert).Methods(http.MethodPost)
	api.HandleFunc("/budgets/{id:[0-9]+}/alerts/test", s.handleSendTestAlert).Methods(http.MethodPost)
	api.HandleFunc("/alerts/sweep", s.handleDefaultAlertSweep).Methods(http.MethodPost)

	api.HandleFunc("/expenses", s.handleCreateExpense).Methods(http.MethodPost)
	api.HandleFunc("/expenses", s.handleListExpenses).Methods(http.MethodGet)
	api.HandleFunc("/expenses/{id:[0-9]+}", s.handleGetExpense).Methods(http.MethodGet)
	api.HandleFunc("/expenses/{id:[0-9]+}/transitions", s.handleExpenseTransition).Methods(http.MethodPost)
	api.HandleFunc("/expenses/{id:[0-9]+}/notes", s.handleExpenseNotes).Methods(http.MethodGet)
	api.HandleFunc("/expenses/{id:[0-9]+}/invoice", s.handleCreateInvoice).Methods(http.MethodPost)

	api.HandleFunc("/import", s.handleImport).Methods(http.MethodPost)
	api.HandleFunc("/import/preview", s.handleImportPreview).Methods(http.MethodPost)
	api.HandleFunc("/import/template", s.handleImportTemplate).Methods(http.MethodGet)

	api.HandleFunc("/dashboard", s.handleDashboard).Methods(http.MethodGet)

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// limitMutations rate limits POST requests per client IP. Reads stay
// unthrottled since the caches absorb them.
func (s *Server) limitMutations(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			clientIP := s.ipResolver.ClientIP(r)
			if !s.limiter.Allow(clientIP) {
				slog.WarnContext(r.Context(), "Rate limit exceeded",
					"client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
				w.Header().Set("Retry-After", "60")
				http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
