package repository

import (
	"context"
	"time"
)

// DemoClaimer hands out a short-lived, fail-fast claim per account so that two
// concurrent demo consumptions cannot both reach the AI model.
type DemoClaimer interface {
	TryClaim(ctx context.Context, accountID string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, accountID, token string) error
}

// RateLimiter counts requests per key in a fixed window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
