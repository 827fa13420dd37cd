package api

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/contentdeck/aigen/internal/telemetry"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// HeaderRateLimitRemaining reports the calls left in the shared hourly window
const HeaderRateLimitRemaining = "X-RateLimit-Remaining"

// SharedLimiter is a rate limit shared by every API replica
type SharedLimiter interface {
	Allow(ctx context.Context, tenantID string) (bool, error)
	Remaining(ctx context.Context, tenantID string) (int, error)
}

// TenantRateLimiter throttles generation calls per tenant: a token bucket in
// this process, then an optional shared hourly cap
type TenantRateLimiter struct {
	limiters map[string]*rateLimiterEntry
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	duration time.Duration
	shared   SharedLimiter
}

// rateLimiterEntry holds a rate limiter and its last access time for cleanup
type rateLimiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewTenantRateLimiter allows requestsPerDuration calls per tenant in each
// duration, with bursts up to the same number
func NewTenantRateLimiter(requestsPerDuration int, duration time.Duration) *TenantRateLimiter {
	return &TenantRateLimiter{
		limiters: make(map[string]*rateLimiterEntry),
		rate:     rate.Limit(float64(requestsPerDuration) / duration.Seconds()),
		burst:    requestsPerDuration,
		duration: duration,
	}
}

// WithShared adds a cross-replica limit checked after the local bucket
func (rl *TenantRateLimiter) WithShared(shared SharedLimiter) *TenantRateLimiter {
	rl.shared = shared
	return rl
}

// getLimiter retrieves or creates the bucket for a key
func (rl *TenantRateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, exists := rl.limiters[key]
	if !exists {
		limiter := rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[key] = &rateLimiterEntry{
			limiter:    limiter,
			lastAccess: time.Now(),
		}
		return limiter
	}

	entry.lastAccess = time.Now()
	return entry.limiter
}

// Run removes idle buckets every duration until ctx is done
func (rl *TenantRateLimiter) Run(ctx context.Context) error {
	ticker := time.NewTicker(rl.duration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			rl.cleanup(time.Now())
		}
	}
}

// cleanup removes buckets not used for two windows
func (rl *TenantRateLimiter) cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, entry := range rl.limiters {
		if now.Sub(entry.lastAccess) > rl.duration*2 {
			delete(rl.limiters, key)
		}
	}
}

// Middleware returns an Echo middleware function that enforces rate limiting.
// It keys on the tenant set by TenantContextMiddleware, or the client IP.
func (rl *TenantRateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key, _ := tenantFrom(c)
			if key == "" {
				key = c.RealIP()
			}

			limiter := rl.getLimiter(key)
			if !limiter.Allow() {
				reservation := limiter.Reserve()
				delay := reservation.Delay()
				reservation.Cancel()

				telemetry.AIRateLimitHitsTotal.WithLabelValues("local").Inc()
				return tooManyRequests(c, delay)
			}

			if rl.shared != nil {
				ctx := c.Request().Context()
				allowed, err := rl.shared.Allow(ctx, key)
				if err != nil {
					// Fail open: a limiter outage must not take generation down
					zerolog.Ctx(ctx).Warn().Err(err).Msg("Shared rate limiter unavailable")
				} else if !allowed {
					telemetry.AIRateLimitHitsTotal.WithLabelValues("redis").Inc()
					c.Response().Header().Set(HeaderRateLimitRemaining, "0")
					return tooManyRequests(c, untilNextHour(time.Now()))
				} else if remaining, err := rl.shared.Remaining(ctx, key); err == nil {
					c.Response().Header().Set(HeaderRateLimitRemaining, strconv.Itoa(remaining))
				}
			}

			return next(c)
		}
	}
}

func tooManyRequests(c echo.Context, retryAfter time.Duration) error {
	seconds := int(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	c.Response().Header().Set("Retry-After", strconv.Itoa(seconds))

	return c.JSON(http.StatusTooManyRequests, ErrorResponse{
		Error:   "Rate limit exceeded",
		Details: "Too many requests. Please try again later.",
	})
}

// untilNextHour is the wait for the shared limiter's hourly window to roll over
func untilNextHour(now time.Time) time.Duration {
	return now.Truncate(time.Hour).Add(time.Hour).Sub(now)
}
