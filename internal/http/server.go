package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"xitique/internal/cache"
	"xitique/internal/core"
	"xitique/internal/services"
	"xitique/internal/storage"
)

type Server struct {
	http.Server
	svc         *services.XitiqueService
	store       storage.Store
	rateLimiter *rateLimiter

	// Read-endpoint caches; every write handler purges both.
	circleCache  *cache.LRUCache[*core.Xitique]
	listCache    *cache.LRUCache[[]*core.Xitique]
	cacheManager *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svc *services.XitiqueService, store storage.Store) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		svc:          svc,
		store:        store,
		rateLimiter:  newRateLimiter(),
		circleCache:  cache.NewLRUCache[*core.Xitique](100, 5*time.Minute),
		listCache:    cache.NewLRUCache[[]*core.Xitique](10, time.Minute),
		cacheManager: cache.NewManager(),
	}

	s.cacheManager.Register(s.circleCache)
	s.cacheManager.Register(s.listCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /xitiques", s.withMiddleware(s.handleCreateXitique))
	mux.HandleFunc("GET /xitiques", s.withMiddleware(s.handleListXitiques))
	mux.HandleFunc("GET /xitiques/{id}", s.withMiddleware(s.handleGetXitique))
	mux.HandleFunc("DELETE /xitiques/{id}", s.withMiddleware(s.handleArchiveXitique))
	mux.HandleFunc("GET /xitiques/{id}/balance", s.withMiddleware(s.handleBalance))
	mux.HandleFunc("POST /xitiques/{id}/edit", s.withMiddleware(s.handleBulkEdit))
	mux.HandleFunc("POST /xitiques/{id}/participants", s.withMiddleware(s.handleAddParticipant))
	mux.HandleFunc("DELETE /xitiques/{id}/participants/{pid}", s.withMiddleware(s.handleRemoveParticipant))
	mux.HandleFunc("POST /xitiques/{id}/participants/{pid}/move", s.withMiddleware(s.handleMoveParticipant))
	mux.HandleFunc("POST /xitiques/{id}/participants/{pid}/payout-date", s.withMiddleware(s.handleSetPayoutDate))
	mux.HandleFunc("POST /xitiques/{id}/participants/{pid}/toggle-payout", s.withMiddleware(s.handleTogglePayout))
	mux.HandleFunc("POST /xitiques/{id}/transactions", s.withMiddleware(s.handleCreateTransaction))
	mux.HandleFunc("GET /xitiques/{id}/transactions", s.withMiddleware(s.handleListTransactions))
	mux.HandleFunc("GET /notifications", s.withMiddleware(s.handleListNotifications))
	mux.HandleFunc("POST /notifications/{id}/read", s.withMiddleware(s.handleMarkNotificationRead))

	return s
}

// Shutdown stops the server together with its cleanup goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

type contextKey string

const requestIDKey contextKey = "request_id"

// withMiddleware adds security headers, rate limiting on mutating requests,
// and request-id logging.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP,
			"user_agent", r.Header.Get("User-Agent"))

		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds(),
			"client_ip", clientIP)
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

// purgeCaches is called by every write handler so reads never serve stale
// circle state.
func (s *Server) purgeCaches() {
	s.circleCache.Purge()
	s.listCache.Purge()
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.ListXitiques(r.Context(), false); err != nil {
		writeError(w, http.StatusServiceUnavailable, "storage not ready")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
