package redis

import (
	"context"
	"fmt"
	"time"

	"langtest-practice/internal/domain/ports/repository"
)

var _ repository.RateLimiter = (*RateLimiter)(nil)

// RateLimiter is a fixed-window counter: INCR, and EXPIRE on the first hit.
type RateLimiter struct {
	client RedisClient
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client}
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, err
	}

	if count == 1 {
		if err := r.client.Expire(ctx, key, window); err != nil {
			return false, err
		}
	}

	return count <= int64(limit), nil
}

func AccountRouteKey(accountID, route string) string {
	return fmt.Sprintf("rate_limit:%s:%s", accountID, route)
}
