package domain

import (
	"context"
	"time"
)

// PriceCache stores the latest observed price per trading pair.
type PriceCache interface {
	SetPrice(ctx context.Context, pair string, price float64, ts time.Time) error
	// GetPrice returns ErrNotFound when no price has been stored for the pair.
	GetPrice(ctx context.Context, pair string) (float64, time.Time, error)
}

// SubmissionCache keeps the transaction hash of recently executed intents so
// a duplicate execution attempt can be detected before a wallet prompt is
// wasted on it.
type SubmissionCache interface {
	SetTxHash(ctx context.Context, intentID, txHash string, ttl time.Duration) error
	// GetTxHash returns ErrNotFound when the intent has no recorded hash.
	GetTxHash(ctx context.Context, intentID string) (string, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	// Allow reports whether a request for key is permitted under the
	// limit, counting it when it is.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed mutual exclusion. Acquire returns an
// unlock function on success and ErrLockHeld when another party holds the
// lock.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}
