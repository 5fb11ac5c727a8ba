package middleware

import (
	"context"
	"customer-service/internal/config"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

const (
	rateLimitWindow   = time.Second
	limiterCleanupDur = 10 * time.Minute
)

// RateLimiterMiddleware limits requests per client IP. With a Redis client it
// counts in a fixed one-second window shared by every replica; without one it
// falls back to an in-process token bucket per IP.
type RateLimiterMiddleware struct {
	cfg      config.RateLimitConfig
	redis    redis.Cmdable
	limiters sync.Map
	logger   *slog.Logger
	window   time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

func NewRateLimiterMiddleware(cfg config.RateLimitConfig, redisClient redis.Cmdable, logger *slog.Logger) *RateLimiterMiddleware {
	logger = logger.With("component", "RateLimiter")

	rl := &RateLimiterMiddleware{
		cfg:    cfg,
		redis:  redisClient,
		logger: logger,
		window: rateLimitWindow,
		stop:   make(chan struct{}),
	}

	switch {
	case !cfg.Enabled:
		logger.Info("Rate limiting is disabled via configuration.")
	case redisClient != nil:
		logger.Info("Rate limiter using Redis fixed window", "rps", cfg.RPS, "window", rl.window)
	default:
		logger.Info("Rate limiter using in-process token buckets", "rps", cfg.RPS, "burst", cfg.Burst)
		go rl.cleanupLimiters()
	}

	return rl
}

func (rl *RateLimiterMiddleware) IsEnabled() bool {
	return rl.cfg.Enabled
}

// Close stops the background limiter cleanup.
func (rl *RateLimiterMiddleware) Close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiterMiddleware) getLimiter(ip string) *rate.Limiter {
	limiter, _ := rl.limiters.LoadOrStore(ip, rate.NewLimiter(rate.Limit(rl.cfg.RPS), rl.cfg.Burst))
	return limiter.(*rate.Limiter)
}

func (rl *RateLimiterMiddleware) cleanupLimiters() {
	ticker := time.NewTicker(limiterCleanupDur)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.pruneIdle()
		}
	}
}

// pruneIdle drops limiters whose bucket has refilled completely.
func (rl *RateLimiterMiddleware) pruneIdle() {
	now := time.Now()
	rl.limiters.Range(func(key, value any) bool {
		limiter := value.(*rate.Limiter)
		if limiter.TokensAt(now) >= float64(limiter.Burst()) {
			rl.limiters.Delete(key)
		}
		return true
	})
}

// extractIP keys clients on the connection address only. Forwarding headers are
// client controlled; the router's RealIP middleware decides what lands in RemoteAddr.
func (rl *RateLimiterMiddleware) extractIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// allowRedis fails open: a Redis outage must not take the API down with it.
func (rl *RateLimiterMiddleware) allowRedis(ctx context.Context, ip string) bool {
	key := fmt.Sprintf("ratelimit:%s", ip)

	pipe := rl.redis.Pipeline()
	incrCmd := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, rl.window)
	if _, err := pipe.Exec(ctx); err != nil {
		rl.logger.ErrorContext(ctx, "Redis pipeline failed during rate limiting check", "error", err, "ip", ip, "key", key)
		return true
	}

	count, err := incrCmd.Result()
	if err != nil {
		rl.logger.ErrorContext(ctx, "Failed to read INCR result", "error", err, "ip", ip, "key", key)
		return true
	}
	return count <= int64(rl.cfg.RPS)
}

func (rl *RateLimiterMiddleware) allow(r *http.Request, ip string) bool {
	if rl.redis != nil {
		return rl.allowRedis(r.Context(), ip)
	}
	return rl.getLimiter(ip).Allow()
}

func (rl *RateLimiterMiddleware) Middleware(next http.Handler) http.Handler {
	if !rl.IsEnabled() {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := rl.extractIP(r)

		if !rl.allow(r, ip) {
			rl.logger.WarnContext(r.Context(), "Rate limit exceeded", "ip", ip, "limit", rl.cfg.RPS)
			w.Header().Set("Retry-After", fmt.Sprintf("%.0f", rl.window.Seconds()))
			writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}
