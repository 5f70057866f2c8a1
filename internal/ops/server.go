// Package ops exposes the operational HTTP surface: liveness and readiness
// probes, Prometheus metrics, and a read-only dead letter peek.
package ops

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/velprakashr08-max/Frutify/internal/broker"
	"github.com/velprakashr08-max/Frutify/internal/observability"
	"github.com/velprakashr08-max/Frutify/internal/ratelimit"
)

// BrokerStatus is the slice of broker.Connection the probes need.
type BrokerStatus interface {
	Alive() bool
	PeekDeadLetters(limit int) ([]broker.DeadLetter, error)
}

type Server struct {
	logger  *slog.Logger
	redis   redis.UniversalClient
	broker  BrokerStatus
	dbPing  func(ctx context.Context) error
	metrics *observability.Metrics
	limiter *ratelimit.Limiter
	limit   int
	window  time.Duration
}

type Option func(*Server)

// WithDBPing wires a database liveness check into /healthz.
func WithDBPing(ping func(ctx context.Context) error) Option {
	return func(s *Server) { s.dbPing = ping }
}

// WithRateLimit guards every ops route with a per-client fixed window.
func WithRateLimit(l *ratelimit.Limiter, limit int, window time.Duration) Option {
	return func(s *Server) {
		s.limiter = l
		s.limit = limit
		s.window = window
	}
}

func NewServer(logger *slog.Logger, rdb redis.UniversalClient, b BrokerStatus, m *observability.Metrics, opts ...Option) *Server {
	s := &Server{
		logger:  logger,
		redis:   rdb,
		broker:  b,
		metrics: m,
		limit:   120,
		window:  time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.logRequests)
	if s.limiter != nil {
		r.Use(s.rateLimit)
	}

	r.Get("/healthz", s.handleHealthz)
	r.Get("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}).ServeHTTP)
	r.Get("/deadletters", s.handleDeadLetters)
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("ops request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", chimiddleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d, err := s.limiter.Allow(r.Context(), "ops", clientIP(r), s.limit, s.window)
		if err != nil {
			w.Header().Set("Retry-After", retryAfterHeader(s.window))
			writeError(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
			return
		}
		if !d.Allowed {
			w.Header().Set("Retry-After", retryAfterHeader(d.RetryAfter))
			writeError(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if err := s.redis.Ping(ctx).Err(); err != nil {
		checks["redis"] = err.Error()
		healthy = false
	} else {
		checks["redis"] = "ok"
	}

	if s.broker.Alive() {
		checks["broker"] = "ok"
	} else {
		checks["broker"] = "connection down"
		healthy = false
	}

	if s.dbPing != nil {
		if err := s.dbPing(ctx); err != nil {
			checks["database"] = err.Error()
			healthy = false
		} else {
			checks["database"] = "ok"
		}
	}

	if !healthy {
		writeError(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "one or more dependencies are down")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"status": "healthy", "checks": checks})
}

func (s *Server) handleDeadLetters(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "limit must be between 1 and 100")
			return
		}
		limit = n
	}
	letters, err := s.broker.PeekDeadLetters(limit)
	if err != nil {
		s.logger.Error("dead letter peek failed", "error", err)
		writeError(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "broker unavailable")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"count": len(letters), "items": letters})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func retryAfterHeader(d time.Duration) string {
	seconds := int(d.Round(time.Second).Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}
