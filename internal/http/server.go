// Package http exposes the daily ledger over a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"sitebook/internal/cache"
	"sitebook/internal/ledger"
	applog "sitebook/internal/log"
	"sitebook/internal/middleware/ratelimit"
	"sitebook/internal/middleware/security"
	"sitebook/internal/middleware/trace"
	"sitebook/internal/sanity"
	"sitebook/internal/storage"
)

// InvalidationPublisher announces that a project's checkpoints from a
// given day onward need refreshing. Satisfied by the AMQP client; may be
// nil, in which case the worker's periodic sweep still recovers.
type InvalidationPublisher interface {
	PublishInvalidation(ctx context.Context, projectID int64, date string) error
}

// Options collects the tunables NewServer accepts beyond its dependencies.
type Options struct {
	CacheSize         int
	CacheTTL          time.Duration
	RequestsPerMinute int
}

func defaultOptions() Options {
	return Options{
		CacheSize:         500,
		CacheTTL:          5 * time.Minute,
		RequestsPerMinute: 60,
	}
}

type Server struct {
	http.Server

	ledger    *ledger.Service
	repo      *storage.SQLiteRepository
	guard     *sanity.Guard
	publisher InvalidationPublisher

	reportCache *cache.ReportCache
	cacheMgr    *cache.Manager
	limiter     *ratelimit.Limiter
	detector    *security.Detector

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svc *ledger.Service, repo *storage.SQLiteRepository, guard *sanity.Guard, publisher InvalidationPublisher, opts Options) *Server {
	if opts.CacheSize <= 0 || opts.CacheTTL <= 0 {
		opts = defaultOptions()
	}

	s := &Server{
		ledger:    svc,
		repo:      repo,
		guard:     guard,
		publisher: publisher,

		reportCache: cache.NewReportCache(opts.CacheSize, opts.CacheTTL),
		cacheMgr:    cache.NewManager(),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RequestsPerMinute,
		}),
		detector: security.NewDetector(),
	}

	s.cacheMgr.Register(s.reportCache)
	s.cacheMgr.StartCleanup(10 * time.Minute)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /api/projects", s.handleCreateProject)
	mux.HandleFunc("GET /api/projects", s.handleListProjects)
	mux.HandleFunc("GET /api/projects/{id}", s.handleGetProject)

	mux.HandleFunc("GET /api/projects/{id}/ledger/{date}", s.handleLedgerReport)
	mux.HandleFunc("POST /api/projects/{id}/ledger/{date}/commit", s.handleLedgerCommit)
	mux.HandleFunc("GET /api/projects/{id}/journal/{date}", s.handleDayJournal)

	mux.HandleFunc("GET /api/projects/{id}/transactions/{category}", s.handleListTransactions)

	mux.HandleFunc("POST /api/transactions/{category}", s.handleCreateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{category}/{id}", s.handleDeleteTransaction)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	tracer := trace.NewMiddleware(s.detector.ExtractClientIP)
	limited := s.limiter.Middleware(s.detector.ExtractClientIP, nil)

	// Handlers pull a request-scoped logger from the context; the trace
	// middleware must run first so the request ID is already assigned.
	reqLogger := applog.New(applog.Config{Component: applog.ComponentHTTP})
	withLogger := applog.Middleware(reqLogger)
	withRequestID := applog.RequestIDMiddleware(func(r *http.Request) string {
		return trace.GetRequestID(r.Context())
	})

	// Detection logs and counts but never blocks.
	detected := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.detector.DetectSuspiciousRequest(r) {
				applog.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request detected",
					applog.FieldMethod, r.Method,
					applog.FieldPath, r.URL.Path,
					applog.FieldClientIP, s.detector.ExtractClientIP(r))
			}
			next.ServeHTTP(w, r)
		})
	}

	handler := headers.Middleware(tracer.Middleware(withLogger(withRequestID(detected(limited(mux))))))

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Shutdown stops background routines and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheMgr.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.repo.Ping(ctx); err != nil {
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
