package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"loans/internal/log"
	"loans/internal/middleware/ratelimit"
	"loans/internal/middleware/security"
	"loans/internal/middleware/trace"
)

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// Options configures optional parts of the server.
type Options struct {
	// RateLimitPerMinute bounds write requests per client IP (default 60)
	RateLimitPerMinute int
	// GraphQL is mounted at /graphql when set
	GraphQL http.Handler
	// Readiness checks run by /readyz, keyed by dependency name
	Readiness map[string]ReadinessCheck
	Logger    *log.Logger
}

type Server struct {
	http.Server
	loans     LoanService
	limiter   *ratelimit.Limiter
	tracer    *trace.Middleware
	detector  *security.Detector
	readiness map[string]ReadinessCheck

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, loans LoanService, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	httpLogger := logger.WithComponent(log.ComponentHTTP)

	limitCfg := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		limitCfg.RequestsPerMinute = opts.RateLimitPerMinute
	}

	detector := security.NewDetector()
	s := &Server{
		loans:     loans,
		limiter:   ratelimit.NewLimiter(limitCfg),
		tracer:    trace.NewMiddleware(detector.ExtractClientIP, logger),
		detector:  detector,
		readiness: opts.Readiness,
	}

	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("resource not found").Write(w)
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		MethodNotAllowedError().Write(w)
	})

	router.HandleFunc("/", handleWelcome).Methods(http.MethodGet)
	router.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	router.HandleFunc("/api/payments", s.handleAddPayment).Methods(http.MethodPost)
	router.HandleFunc("/api/payments", s.handleListPayments).Methods(http.MethodGet)
	router.HandleFunc("/api/loans", s.handleListLoans).Methods(http.MethodGet)
	router.HandleFunc("/api/loans", s.handleAddLoan).Methods(http.MethodPost)
	router.HandleFunc("/api/loans/summary", s.handleSummary).Methods(http.MethodGet)
	router.HandleFunc("/api/loans/{id:[0-9]+}", s.handleGetLoan).Methods(http.MethodGet)

	if opts.GraphQL != nil {
		router.Handle("/graphql", opts.GraphQL).Methods(http.MethodGet, http.MethodPost)
	}

	onLimit := func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, detector.ExtractClientIP(r),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, please try again later").Write(w)
	}

	var handler http.Handler = router
	handler = s.limiter.Middleware(detector.ExtractClientIP, onLimit)(handler)
	handler = detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = log.RequestIDMiddleware(func(r *http.Request) string { return trace.GetRequestID(r.Context()) })(handler)
	handler = s.tracer.Middleware(handler)
	handler = log.Middleware(httpLogger)(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Metrics returns request counters collected by the trace middleware.
func (s *Server) Metrics() trace.Metrics {
	return s.tracer.GetMetrics()
}

// RateLimitMetrics returns counters of the write rate limiter.
func (s *Server) RateLimitMetrics() ratelimit.Metrics {
	return s.limiter.GetMetrics()
}

// DetectionMetrics returns counters of the suspicious request detector.
func (s *Server) DetectionMetrics() security.DetectionMetrics {
	return s.detector.GetMetrics()
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
