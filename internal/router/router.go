package router

import (
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sautihub/core-api/internal/auth"
	"github.com/sautihub/core-api/internal/content"
	"github.com/sautihub/core-api/internal/dashboard"
	"github.com/sautihub/core-api/internal/earnings"
	"github.com/sautihub/core-api/internal/metrics"
	"github.com/sautihub/core-api/internal/payment"
	"github.com/sautihub/core-api/internal/user"
)

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

// LoggingMiddleware returns a middleware that logs requests at debug level using the provided sugared logger.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			dur := time.Since(start)
			// ensure status is set
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			logger.Debugw("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(dur.Microseconds())/1000.0,
				"size", lrw.size,
			)
		})
	}
}

// SecurityHeadersMiddleware returns a middleware that sets common HTTP security headers.
// It is intentionally simple and conservative so it works with most setups.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Prevent MIME sniffing
			w.Header().Set("X-Content-Type-Options", "nosniff")

			// Clickjacking protection
			w.Header().Set("X-Frame-Options", "DENY")

			// Referrer policy
			w.Header().Set("Referrer-Policy", "no-referrer-when-downgrade")

			// Basic Content-Security-Policy; callers may override downstream.
			if w.Header().Get("Content-Security-Policy") == "" {
				w.Header().Set("Content-Security-Policy", "default-src 'self'; object-src 'none'; base-uri 'self';")
			}

			// HSTS only makes sense over TLS.
			if r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitConfig controls the per-IP token bucket on the public surface.
type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

// RateLimitFromEnv reads rate limit settings from env vars. Defaults: on,
// 10 rps with a burst of 20 per client IP.
func RateLimitFromEnv() RateLimitConfig {
	cfg := RateLimitConfig{Enabled: true, RPS: 10, Burst: 20}
	if v := os.Getenv("RATE_LIMIT_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Enabled = b
		}
	}
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.RPS = f
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Burst = n
		}
	}
	return cfg
}

// rateLimiterStore keeps one token bucket per client IP.
type rateLimiterStore struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func newRateLimiterStore(r rate.Limit, burst int) *rateLimiterStore {
	return &rateLimiterStore{limiters: make(map[string]*rate.Limiter), rate: r, burst: burst}
}

func (s *rateLimiterStore) getLimiter(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	limiter, ok := s.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(s.rate, s.burst)
		s.limiters[key] = limiter
	}
	return limiter
}

// clientIP extracts the IP part from the request's remote address.
func clientIP(r *http.Request) string {
	// Behind a proxy the first forwarded address is the real client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := xff
		if i := strings.IndexByte(xff, ','); i >= 0 {
			first = xff[:i]
		}
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimitMiddleware applies per-IP rate limiting. The provider callback is
// never mounted behind it: throttling redeliveries would fight the retry
// mechanism the confirmation flow depends on.
func RateLimitMiddleware(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler { return next }
	}
	store := newRateLimiterStore(rate.Limit(cfg.RPS), cfg.Burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !store.getLimiter(clientIP(r)).Allow() {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Deps carries everything the route table mounts.
type Deps struct {
	Logger     *zap.SugaredLogger
	Metrics    *metrics.Metrics
	Tokens     *auth.TokenService
	Users      *user.Handler
	Content    *content.Handler
	Payments   *payment.Handler
	Earnings   *earnings.Handler
	Dashboards *dashboard.Handler
	RateLimit  RateLimitConfig
}

// RegisterRoutes mounts the API on the standard library's http.ServeMux using
// method-prefixed patterns, wrapped in logging and security-header middleware.
func RegisterRoutes(d Deps) http.Handler {
	mux := http.NewServeMux()

	requireAuth := auth.Middleware(d.Tokens, d.Logger)
	limited := RateLimitMiddleware(d.RateLimit)

	handle := func(pattern string, h http.Handler) {
		// the duration histogram's path label is the route pattern without
		// its method prefix
		name := pattern
		if i := strings.IndexByte(pattern, ' '); i >= 0 {
			name = pattern[i+1:]
		}
		mux.Handle(pattern, d.Metrics.InstrumentHandler(name, h))
	}

	// health
	handle("GET /api/core/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	mux.Handle("GET /metrics", promhttp.Handler())

	// users & auth
	handle("POST /api/auth/register", limited(http.HandlerFunc(d.Users.Register)))
	handle("POST /api/auth/login", limited(http.HandlerFunc(d.Users.Login)))
	handle("GET /api/auth/me", requireAuth(http.HandlerFunc(d.Users.Me)))
	handle("DELETE /api/auth/me", requireAuth(http.HandlerFunc(d.Users.Deactivate)))

	// content catalogue
	handle("GET /api/content", limited(http.HandlerFunc(d.Content.List)))
	handle("GET /api/content/{id}", limited(http.HandlerFunc(d.Content.Get)))
	handle("POST /api/content", requireAuth(http.HandlerFunc(d.Content.Create)))
	handle("GET /api/content/{id}/play", requireAuth(http.HandlerFunc(d.Content.Play)))

	// payments: initiation is authenticated and throttled; the callback is
	// verified by signature instead and must never be rate limited.
	handle("POST /api/payments/initiate", requireAuth(limited(http.HandlerFunc(d.Payments.Initiate))))
	handle("POST /api/payments/callback", http.HandlerFunc(d.Payments.Callback))

	// dashboards
	handle("GET /api/dashboard/creator", requireAuth(http.HandlerFunc(d.Dashboards.Creator)))
	handle("GET /api/dashboard/user", requireAuth(http.HandlerFunc(d.Dashboards.User)))

	// weekly payout operations
	handle("GET /api/admin/earnings/weekly", requireAuth(http.HandlerFunc(d.Earnings.Weekly)))
	handle("GET /api/admin/earnings/export", requireAuth(http.HandlerFunc(d.Earnings.Export)))
	handle("POST /api/admin/earnings/settle", requireAuth(http.HandlerFunc(d.Earnings.Settle)))

	// wrap with security headers middleware then logging middleware
	return LoggingMiddleware(d.Logger)(SecurityHeadersMiddleware()(mux))
}
