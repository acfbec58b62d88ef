// Package http exposes the session and analytics API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"splitlens/internal/cache"
	applog "splitlens/internal/log"
	"splitlens/internal/services"
)

type Server struct {
	http.Server
	sessions  *services.SessionService
	analytics *services.AnalyticsService

	structured  *applog.StructuredLogger
	rateLimiter *rateLimiter
	metrics     *securityMetrics

	// Cached marshaled analytics responses, keyed by session + route +
	// canonical query. Invalidated per session on any mutation.
	respCache    *cache.LRUCache[[]byte]
	cacheManager *cache.Manager
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, logger *applog.Logger, sessions *services.SessionService, analytics *services.AnalyticsService, cacheMaxSize int, cacheTTL time.Duration) *Server {
	mux := http.NewServeMux()

	// Every request carries a component-tagged, request-scoped logger in
	// its context; handlers pull it back out with applog.FromContext.
	handler := applog.Middleware(logger)(
		applog.ComponentMiddleware(applog.ComponentHTTP)(
			applog.RequestIDMiddleware(func(*http.Request) string { return generateRequestID() })(mux)))

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		sessions:     sessions,
		analytics:    analytics,
		structured:   applog.NewStructuredLogger(logger.WithComponent(applog.ComponentHTTP)),
		rateLimiter:  newRateLimiter(),
		metrics:      &securityMetrics{},
		respCache:    cache.NewLRUCache[[]byte](cacheMaxSize, cacheTTL),
		cacheManager: cache.NewManager(),
	}

	s.cacheManager.Register(s.respCache)
	s.cacheManager.StartCleanup(cacheCleanupInterval)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("POST /api/sessions", s.withMiddleware(s.handleCreateSession))
	mux.HandleFunc("GET /api/sessions/{id}", s.withMiddleware(s.handleGetSession))
	mux.HandleFunc("DELETE /api/sessions/{id}", s.withMiddleware(s.handleDeleteSession))
	mux.HandleFunc("GET /api/imports/{jobID}", s.withMiddleware(s.handleImportStatus))

	mux.HandleFunc("GET /api/sessions/{id}/spending-over-time", s.withMiddleware(s.handleSpendingOverTime))
	mux.HandleFunc("GET /api/sessions/{id}/spending-by", s.withMiddleware(s.handleSpendingBy))
	mux.HandleFunc("GET /api/sessions/{id}/transactions", s.withMiddleware(s.handleTransactions))
	mux.HandleFunc("GET /api/sessions/{id}/balances", s.withMiddleware(s.handleBalances))
	mux.HandleFunc("GET /api/sessions/{id}/payment-patterns", s.withMiddleware(s.handlePaymentPatterns))
	mux.HandleFunc("GET /api/sessions/{id}/store-analytics", s.withMiddleware(s.handleStoreAnalytics))
	mux.HandleFunc("GET /api/sessions/{id}/category-trends", s.withMiddleware(s.handleCategoryTrends))
	mux.HandleFunc("GET /api/sessions/{id}/heatmap", s.withMiddleware(s.handleHeatmap))
	mux.HandleFunc("GET /api/sessions/{id}/budget", s.withMiddleware(s.handleBudget))
	mux.HandleFunc("GET /api/sessions/{id}/anomalies", s.withMiddleware(s.handleAnomalies))
	mux.HandleFunc("GET /api/sessions/{id}/summary", s.withMiddleware(s.handleSummary))

	mux.HandleFunc("GET /api/sessions/{id}/stores/similar", s.withMiddleware(s.handleSimilarStores))
	mux.HandleFunc("POST /api/sessions/{id}/stores/mappings", s.withMiddleware(s.handleApplyMappings))
	mux.HandleFunc("POST /api/sessions/{id}/stores/merge", s.withMiddleware(s.handleMergeStores))
	mux.HandleFunc("POST /api/sessions/{id}/stores/split", s.withMiddleware(s.handleSplitStores))

	return s
}

// cacheCleanupInterval is how often expired response-cache entries are
// swept out.
const cacheCleanupInterval = 10 * time.Minute

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withMiddleware adds security headers, rate limiting, and request logging.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()

		clientIP := extractClientIP(r)
		sl := applog.NewStructuredLogger(applog.FromContext(ctx))
		sl.LogHTTPStart(ctx, r, clientIP)

		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP) {
			s.metrics.rateLimitHit()
			applog.FromContext(ctx).WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		sl.LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
