package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finance/internal/core"
	"finance/internal/log"
	"finance/internal/middleware/ratelimit"
	"finance/internal/middleware/security"
	"finance/internal/middleware/trace"
	"finance/internal/services"
)

// Ledger is the service the API exposes.
type Ledger interface {
	UserName() string
	Session() core.SessionToken
	AllRecords() []core.Record
	FilterByCategory(category string) []core.IndexedRecord
	MonthlyTotals(month string) ([]core.CategoryAmount, error)
	MonthlySum(month string) (decimal.Decimal, error)
	MonthlyHeights(month string) ([]core.CategoryHeight, error)
	ListMonths() []string
	AddRecord(ctx context.Context, in services.RecordInput) (core.Record, error)
	DeleteRecord(ctx context.Context, index int) (core.Record, error)
	DeleteRecordByID(ctx context.Context, id uuid.UUID) (core.Record, error)
	Refresh(ctx context.Context) ([]core.Record, error)
	NewSession(ctx context.Context) core.SessionToken
}

// Options configures the HTTP server.
type Options struct {
	Addr               string
	RateLimitPerMinute int
	CORSAllowOrigin    string
	TrustedProxies     []string
	Logger             *log.Logger

	// Ready reports backend health for /readyz; nil means always ready.
	Ready func(ctx context.Context) error
	// CacheEntries reports the number of cached aggregates for /metrics.
	CacheEntries func() int
}

type Server struct {
	http.Server
	ledger Ledger
	logger *log.Logger

	ready        func(ctx context.Context) error
	cacheEntries func() int

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware

	appMetrics   appMetrics
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(opts Options, ledger Ledger) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	detector, err := security.NewDetector(opts.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	s := &Server{
		ledger:           ledger,
		logger:           logger,
		ready:            opts.Ready,
		cacheEntries:     opts.CacheEntries,
		securityDetector: detector,
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
		}),
		traceMiddleware: trace.NewMiddleware(detector.ExtractClientIP, logger),
		appMetrics:      appMetrics{uptime: time.Now()},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/user_name", s.handleUserName)
	mux.HandleFunc("GET /api/get_all_expenses", s.handleAllExpenses)
	mux.HandleFunc("GET /api/expenses_by_category", s.handleExpensesByCategory)
	mux.HandleFunc("GET /api/get_monthly_totals", s.handleMonthlyTotals)
	mux.HandleFunc("GET /api/get_monthly_heights", s.handleMonthlyHeights)
	mux.HandleFunc("GET /api/get_monthly_sum", s.handleMonthlySum)
	mux.HandleFunc("GET /api/months_list", s.handleMonthsList)
	mux.HandleFunc("POST /api/add_expense", s.handleAddExpense)
	mux.HandleFunc("POST /api/delete_expense", s.handleDeleteExpense)
	mux.HandleFunc("POST /api/refresh_data", s.handleRefresh)
	mux.HandleFunc("POST /api/establish_session", s.handleEstablishSession)

	headers := security.DefaultHeadersConfig().WithCORS(opts.CORSAllowOrigin)
	limit := s.rateLimiter.Middleware(detector.ExtractClientIP, s.onRateLimit, http.MethodPost)

	var handler http.Handler = mux
	handler = limit(handler)
	handler = log.RequestIDMiddleware(func(r *http.Request) string { return trace.GetRequestID(r.Context()) })(handler)
	handler = security.NewHeadersMiddleware(headers).Middleware(handler)
	handler = detector.Middleware(logger.Logger)(handler)
	handler = s.traceMiddleware.Middleware(handler)
	handler = log.Middleware(logger)(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, please try again later").Write(w)
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
