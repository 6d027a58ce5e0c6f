package domain

import (
	"context"
	"time"
)

// ListOpts carries pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// IntentStore persists trade intents.
type IntentStore interface {
	Insert(ctx context.Context, intent TradeIntent) error
	Get(ctx context.Context, id string) (TradeIntent, error)
	ListByWallet(ctx context.Context, wallet string, opts ListOpts) ([]TradeIntent, error)
	// ListBefore returns intents created strictly before the cutoff (for archiving).
	ListBefore(ctx context.Context, before time.Time) ([]TradeIntent, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// SubmissionStore persists the outcome of every signing flow run.
type SubmissionStore interface {
	Insert(ctx context.Context, rec SubmissionRecord) error
	GetByIntent(ctx context.Context, intentID string) (SubmissionRecord, error)
	ListRecent(ctx context.Context, limit int) ([]SubmissionRecord, error)
	ListBefore(ctx context.Context, before time.Time) ([]SubmissionRecord, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}
