package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/httprate"

	"github.com/userapi/userapi/internal/cache"
)

// IPLimiter is a shared token bucket keyed by client IP.
type IPLimiter interface {
	CheckIPRateLimit(ctx context.Context, ip string, ratePerSecond, burst int) (*cache.RateLimitResult, error)
}

// RateLimitConfig holds configuration for rate limiting middleware.
type RateLimitConfig struct {
	Logger  *slog.Logger
	Enabled bool
	RPS     int
	Burst   int
	// Limiter backs the limit with Redis so it holds across replicas. When
	// nil an in-process sliding window from httprate is used.
	Limiter IPLimiter
}

// RateLimitIP limits requests per client IP.
func RateLimitIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if !cfg.Enabled || cfg.RPS <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if cfg.Burst < cfg.RPS {
		cfg.Burst = cfg.RPS
	}
	if cfg.Limiter == nil {
		return localRateLimit(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := getClientIP(r)

			result, err := cfg.Limiter.CheckIPRateLimit(r.Context(), ip, cfg.RPS, cfg.Burst)
			if err != nil {
				cfg.Logger.Error("IP rate limit check failed",
					slog.String("error", err.Error()),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				// Fail open.
				next.ServeHTTP(w, r)
				return
			}

			setRateLimitHeaders(w, cfg.Burst, result.Remaining, result.ResetAt)

			if !result.Allowed {
				logRateLimited(cfg.Logger, r, ip, result.RetryAfter)
				writeRateLimitError(w, result.RetryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// localRateLimit allows Burst requests per Burst/RPS seconds, which keeps
// the long-run average at RPS.
func localRateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	window := time.Duration(cfg.Burst) * time.Second / time.Duration(cfg.RPS)

	return httprate.Limit(cfg.Burst, window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return getClientIP(r), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			logRateLimited(cfg.Logger, r, getClientIP(r), window)
			writeRateLimitError(w, window)
		}),
	)
}

func logRateLimited(logger *slog.Logger, r *http.Request, ip string, retryAfter time.Duration) {
	logger.Warn("rate limit exceeded",
		slog.String("ip", ip),
		slog.String("endpoint", r.Method+" "+r.URL.Path),
		slog.Int64("retry_after_seconds", retrySeconds(retryAfter)),
		slog.String("request_id", GetRequestID(r.Context())),
	)
}

func setRateLimitHeaders(w http.ResponseWriter, limit int, remaining int64, resetAt time.Time) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
}

// writeRateLimitError writes a 429 in the user API envelope.
func writeRateLimitError(w http.ResponseWriter, retryAfter time.Duration) {
	secs := retrySeconds(retryAfter)
	w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = fmt.Fprintf(w, `{"success":false,"message":"Rate limit exceeded. Retry after %d seconds."}`+"\n", secs)
}

// retrySeconds rounds up to whole seconds, with a floor of one.
func retrySeconds(d time.Duration) int64 {
	secs := int64(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// getClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then
// the host part of RemoteAddr.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
