// Package http exposes the dashboard as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"duit/internal/advisor"
	"duit/internal/core"
	"duit/internal/log"
	"duit/internal/session"
)

type Server struct {
	http.Server

	manager     *session.Manager
	reviewer    advisor.Reviewer
	models      advisor.ModelLister
	logger      *log.Logger
	rateLimiter *rateLimiter

	// History responses are cached briefly; writes invalidate.
	historyCache *lruCache[[]core.HistoryRecord]

	shutdownOnce sync.Once
}

type Options struct {
	Addr     string
	Manager  *session.Manager
	Reviewer advisor.Reviewer
	Models   advisor.ModelLister
	Logger   *log.Logger
}

// NewServer wires routes and middleware, returning a ready-to-run
// server.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(log.Config{Component: log.ComponentHTTP})
	}

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              opts.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		manager:      opts.Manager,
		reviewer:     opts.Reviewer,
		models:       opts.Models,
		logger:       opts.Logger,
		rateLimiter:  newRateLimiter(),
		historyCache: newLRUCache[[]core.HistoryRecord](8, 30*time.Second),
	}

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("/api/v1/dashboard", s.withMiddleware(s.handleDashboard))
	mux.HandleFunc("/api/v1/draft", s.withMiddleware(s.handleDraft))
	mux.HandleFunc("/api/v1/period", s.withMiddleware(s.handlePeriod))
	mux.HandleFunc("/api/v1/currency", s.withMiddleware(s.handleCurrency))
	mux.HandleFunc("/api/v1/projection", s.withMiddleware(s.handleProjection))
	mux.HandleFunc("/api/v1/records", s.withMiddleware(s.handleRecords))
	mux.HandleFunc("/api/v1/records/load", s.withMiddleware(s.handleLoadRecord))
	mux.HandleFunc("/api/v1/records/save", s.withMiddleware(s.handleSaveRecord))
	mux.HandleFunc("/api/v1/review", s.withMiddleware(s.handleReview))
	mux.HandleFunc("/api/v1/models", s.withMiddleware(s.handleModels))

	return s
}

// Shutdown stops the server and its background cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

type ctxKey string

const requestIDKey ctxKey = "request_id"

// withMiddleware stamps a request id, applies security headers and
// rate limiting, and logs request completion.
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

		requestID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			s.logger.WarnContext(ctx, "rate limit exceeded",
				log.FieldRequestID, requestID,
				log.FieldClientIP, clientIP)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cache-Control", "no-store")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		s.logger.InfoContext(ctx, "request completed",
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldStatus, rw.statusCode,
			log.FieldDuration, time.Since(start).Milliseconds(),
			log.FieldClientIP, clientIP)
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
