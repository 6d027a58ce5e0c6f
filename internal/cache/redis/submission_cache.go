package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/LavonTMCQ/misterbot/internal/domain"
)

// SubmissionCache implements domain.SubmissionCache using plain Redis keys
// with a TTL. A key "submitted:{intentID}" holding the tx hash marks an
// intent whose transaction already reached the network, so a re-delivered
// intent never produces a second wallet prompt.
type SubmissionCache struct {
	rdb *redis.Client
}

// NewSubmissionCache creates a SubmissionCache backed by the given Client.
func NewSubmissionCache(c *Client) *SubmissionCache {
	return &SubmissionCache{rdb: c.Underlying()}
}

func submissionKey(intentID string) string {
	return "submitted:" + intentID
}

// SetTxHash records the transaction hash produced by an intent for ttl.
func (sc *SubmissionCache) SetTxHash(ctx context.Context, intentID, txHash string, ttl time.Duration) error {
	if err := sc.rdb.Set(ctx, submissionKey(intentID), txHash, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set submission %s: %w", intentID, err)
	}
	return nil
}

// GetTxHash returns the recorded transaction hash for an intent, or
// domain.ErrNotFound when none is recorded.
func (sc *SubmissionCache) GetTxHash(ctx context.Context, intentID string) (string, error) {
	hash, err := sc.rdb.Get(ctx, submissionKey(intentID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("redis: get submission %s: %w", intentID, err)
	}
	return hash, nil
}

var _ domain.SubmissionCache = (*SubmissionCache)(nil)
