// Package ratelimit caps generation calls per tenant across all API replicas.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultHourlyLimit is the number of generation calls a tenant may make per clock hour
const DefaultHourlyLimit = 100

// TenantLimiter is a fixed-window counter in Redis, one key per tenant per hour
type TenantLimiter struct {
	client redis.UniversalClient
	limit  int
	prefix string
	now    func() time.Time
}

// NewTenantLimiter connects to the Redis instance at redisURL
func NewTenantLimiter(redisURL string, limit int) (*TenantLimiter, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	return NewTenantLimiterWithClient(redis.NewClient(opt), limit), nil
}

// NewTenantLimiterWithClient uses an existing client
func NewTenantLimiterWithClient(client redis.UniversalClient, limit int) *TenantLimiter {
	if limit <= 0 {
		limit = DefaultHourlyLimit
	}
	return &TenantLimiter{
		client: client,
		limit:  limit,
		prefix: "aigen:ratelimit:tenant",
		now:    time.Now,
	}
}

// Allow counts one call for the tenant and reports whether it is within the
// hourly limit. Denied calls still count toward the window.
func (l *TenantLimiter) Allow(ctx context.Context, tenantID string) (bool, error) {
	key := l.key(tenantID)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit counter: %w", err)
	}

	return incr.Val() <= int64(l.limit), nil
}

// Remaining returns how many calls the tenant has left in the current window
func (l *TenantLimiter) Remaining(ctx context.Context, tenantID string) (int, error) {
	count, err := l.client.Get(ctx, l.key(tenantID)).Int()
	if errors.Is(err, redis.Nil) {
		return l.limit, nil
	}
	if err != nil {
		return 0, fmt.Errorf("rate limit counter: %w", err)
	}
	if count >= l.limit {
		return 0, nil
	}
	return l.limit - count, nil
}

// Ping checks Redis connectivity
func (l *TenantLimiter) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Close releases the Redis connection pool
func (l *TenantLimiter) Close() error {
	return l.client.Close()
}

func (l *TenantLimiter) key(tenantID string) string {
	return fmt.Sprintf("%s:%s:%s", l.prefix, tenantID, l.now().UTC().Format("2006-01-02-15"))
}
