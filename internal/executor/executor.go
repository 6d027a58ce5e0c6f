// Package executor consumes trade intents from a channel and drives each one
// through the Strike platform and the wallet co-signing flow, recording the
// outcome of every attempt.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/LavonTMCQ/misterbot/internal/domain"
	"github.com/LavonTMCQ/misterbot/internal/platform/strike"
	"github.com/LavonTMCQ/misterbot/internal/signing"
)

// TradeBuilder obtains an unsigned transaction for an intent from the
// trading platform. Implemented by the Strike client.
type TradeBuilder interface {
	ExecuteTrade(ctx context.Context, intent domain.TradeIntent) (strike.TradeResponse, error)
	ClosePosition(ctx context.Context, intent domain.TradeIntent) (strike.TradeResponse, error)
}

// Notifier receives executor lifecycle events. Implemented by notify.Notifier.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Executor reads trade intents from a channel, applies deduplication, expiry
// and duplicate-submission checks, requests an unsigned transaction from the
// platform, and hands it to the signing coordinator. One intent is processed
// at a time; a per-wallet distributed lock keeps concurrent processes from
// prompting the same wallet twice.
type Executor struct {
	intentCh    <-chan domain.TradeIntent
	platform    TradeBuilder
	coordinator *signing.Coordinator
	dedup       *Dedup

	locks    domain.LockManager
	subStore domain.SubmissionStore
	subCache domain.SubmissionCache
	notifier Notifier

	lockTTL         time.Duration
	cacheTTL        time.Duration
	cleanupInterval time.Duration

	logger *slog.Logger
}

// NewExecutor creates an Executor that reads intents from intentCh, builds
// transactions via platform, and signs and submits them via coordinator.
// Stores, caches, locks and notifier are attached with the With* setters and
// are all optional.
func NewExecutor(
	intentCh <-chan domain.TradeIntent,
	platform TradeBuilder,
	coordinator *signing.Coordinator,
	logger *slog.Logger,
) *Executor {
	return &Executor{
		intentCh:        intentCh,
		platform:        platform,
		coordinator:     coordinator,
		dedup:           NewDedup(2 * time.Minute),
		lockTTL:         2 * time.Minute,
		cacheTTL:        10 * time.Minute,
		cleanupInterval: 30 * time.Second,
		logger:          logger.With(slog.String("component", "executor")),
	}
}

// WithLockManager enables per-wallet distributed locking around the signing
// flow.
func (e *Executor) WithLockManager(locks domain.LockManager) *Executor {
	e.locks = locks
	return e
}

// WithSubmissionStore enables persistence of per-attempt outcome records.
func (e *Executor) WithSubmissionStore(store domain.SubmissionStore) *Executor {
	e.subStore = store
	return e
}

// WithSubmissionCache enables short-term duplicate-submission detection.
func (e *Executor) WithSubmissionCache(cache domain.SubmissionCache) *Executor {
	e.subCache = cache
	return e
}

// WithNotifier enables trade lifecycle notifications.
func (e *Executor) WithNotifier(n Notifier) *Executor {
	e.notifier = n
	return e
}

// SetDedupTTL replaces the dedup instance with a new one using the given TTL.
func (e *Executor) SetDedupTTL(ttl time.Duration) {
	e.dedup = NewDedup(ttl)
}

// Run starts the executor's main loop. It processes intents until the
// context is cancelled and returns the context error.
func (e *Executor) Run(ctx context.Context) error {
	e.logger.Info("executor started")
	defer e.logger.Info("executor stopped")

	cleanupTicker := time.NewTicker(e.cleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case intent, ok := <-e.intentCh:
			if !ok {
				return nil
			}
			e.process(ctx, intent)

		case <-cleanupTicker.C:
			e.dedup.Cleanup()
		}
	}
}

// process handles a single intent through the full pipeline: dedup, expiry,
// duplicate-submission check, wallet lock, platform call, signing flow,
// record.
func (e *Executor) process(ctx context.Context, intent domain.TradeIntent) {
	log := e.logger.With(
		slog.String("intent_id", intent.ID),
		slog.String("source", intent.Source),
		slog.String("pair", intent.Pair),
		slog.String("side", string(intent.Side)),
		slog.String("action", string(intent.Action)),
	)

	// 1. Deduplication.
	if e.dedup.IsDuplicate(intent.ID) {
		log.Debug("intent deduplicated, skipping")
		return
	}

	// 2. Expiry check.
	if !intent.ExpiresAt.IsZero() && time.Now().UTC().After(intent.ExpiresAt) {
		log.Warn("intent expired, skipping",
			slog.Time("expires_at", intent.ExpiresAt),
		)
		return
	}

	// 3. Duplicate submission: if this intent already produced a tx hash in
	// a previous process, do not prompt the wallet again.
	if e.subCache != nil {
		if hash, err := e.subCache.GetTxHash(ctx, intent.ID); err == nil {
			log.Warn("intent already submitted, skipping",
				slog.String("tx_hash", hash),
			)
			return
		}
	}

	// 4. Per-wallet lock. The wallet can only answer one prompt at a time,
	// and the coordinator additionally refuses concurrent flows in-process.
	if e.locks != nil {
		unlock, err := e.locks.Acquire(ctx, "signing:"+intent.WalletAddress, e.lockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				log.Warn("wallet busy with another signing flow, skipping")
			} else {
				log.Error("lock acquire failed", slog.String("error", err.Error()))
			}
			return
		}
		defer unlock()
	}

	result, flowErr := e.execute(ctx, intent, log)

	rec := e.buildRecord(intent, result, flowErr)
	if e.subStore != nil {
		if err := e.subStore.Insert(ctx, rec); err != nil {
			log.Warn("submission record insert failed", slog.String("error", err.Error()))
		}
	}

	if flowErr != nil {
		log.Error("intent execution failed",
			slog.String("stage", string(rec.Stage)),
			slog.String("error", flowErr.Error()),
		)
		e.notify(ctx, "trade_failed", "Trade failed",
			fmt.Sprintf("%s %s %s failed at %s: %v", intent.Action, intent.Side, intent.Pair, rec.Stage, flowErr))
		return
	}

	if e.subCache != nil && result.TxHash != "" {
		if err := e.subCache.SetTxHash(ctx, intent.ID, result.TxHash, e.cacheTTL); err != nil {
			log.Warn("submission cache set failed", slog.String("error", err.Error()))
		}
	}

	log.Info("intent executed",
		slog.String("tx_hash", result.TxHash),
		slog.String("route", string(result.Route)),
	)
	e.notify(ctx, "trade_executed", "Trade executed",
		fmt.Sprintf("%s %s %s (%.1fx on %.0f ADA), tx %s via %s",
			intent.Action, intent.Side, intent.Pair, intent.Leverage, intent.CollateralADA, result.TxHash, result.Route))
}

// execute requests the unsigned transaction and runs the signing flow. A
// trade the platform finalized server-side needs no signing and
// short-circuits to success.
func (e *Executor) execute(ctx context.Context, intent domain.TradeIntent, log *slog.Logger) (domain.SubmissionResult, error) {
	var (
		resp strike.TradeResponse
		err  error
	)
	switch intent.Action {
	case domain.IntentActionClose:
		resp, err = e.platform.ClosePosition(ctx, intent)
	default:
		resp, err = e.platform.ExecuteTrade(ctx, intent)
	}
	if err != nil {
		return domain.SubmissionResult{Success: false, Error: err.Error()},
			&signing.FlowError{Stage: domain.StageBuild, Err: err}
	}

	if resp.Finalized {
		log.Info("trade finalized server-side, no signature required")
		return domain.SubmissionResult{Success: true}, nil
	}

	return e.coordinator.Execute(ctx, resp.CBOR)
}

// buildRecord maps the flow outcome onto a persisted SubmissionRecord.
func (e *Executor) buildRecord(intent domain.TradeIntent, result domain.SubmissionResult, flowErr error) domain.SubmissionRecord {
	stage := domain.StageDone
	if flowErr != nil {
		stage = signing.StageOf(flowErr)
	}
	return domain.SubmissionRecord{
		ID:            uuid.New().String(),
		IntentID:      intent.ID,
		WalletAddress: intent.WalletAddress,
		Pair:          intent.Pair,
		Side:          intent.Side,
		Action:        intent.Action,
		Stage:         stage,
		Success:       result.Success,
		TxHash:        result.TxHash,
		Route:         result.Route,
		Error:         result.Error,
		Fingerprint:   result.Fingerprint,
		CreatedAt:     time.Now().UTC(),
	}
}

func (e *Executor) notify(ctx context.Context, event, title, message string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, event, title, message); err != nil {
		e.logger.Warn("notification failed", slog.String("error", err.Error()))
	}
}
