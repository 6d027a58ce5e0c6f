// Package strategy hosts the signal-generating side of the bot: candle-fed
// strategies, their registry, and the engine that fans candles out to the
// active strategies and forwards emitted intents to the executor.
package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/LavonTMCQ/misterbot/internal/domain"
)

// Engine receives candles from the feed layer, delegates them to the active
// strategies, and forwards any resulting trade intents to the intent channel
// consumed by the executor.
type Engine struct {
	registry *Registry
	intentCh chan<- domain.TradeIntent
	candleCh chan domain.Candle
	prices   domain.PriceCache
	logger   *slog.Logger

	mu            sync.Mutex
	active        []Strategy
	recentIntents []domain.TradeIntent
	recentLimit   int
}

// NewEngine creates an Engine. intentCh is the output channel consumed by
// the executor; prices, when non-nil, receives the close of every candle so
// API handlers can serve a last price.
func NewEngine(registry *Registry, intentCh chan<- domain.TradeIntent, prices domain.PriceCache, logger *slog.Logger) *Engine {
	return &Engine{
		registry:    registry,
		intentCh:    intentCh,
		candleCh:    make(chan domain.Candle, 64),
		prices:      prices,
		logger:      logger.With(slog.String("component", "strategy_engine")),
		recentLimit: 200,
	}
}

// CandleCh returns the channel the feed layer pushes closed candles into.
func (e *Engine) CandleCh() chan<- domain.Candle { return e.candleCh }

// SetActive selects the strategies that will receive candles, by registered
// name.
func (e *Engine) SetActive(names []string) error {
	active := make([]Strategy, 0, len(names))
	for _, name := range names {
		s, err := e.registry.Get(name)
		if err != nil {
			return fmt.Errorf("engine: %w", err)
		}
		active = append(active, s)
	}

	e.mu.Lock()
	e.active = active
	e.mu.Unlock()

	e.logger.Info("active strategies set", slog.Any("strategies", names))
	return nil
}

// ActiveNames returns the names of the currently active strategies.
func (e *Engine) ActiveNames() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.active))
	for _, s := range e.active {
		names = append(names, s.Name())
	}
	return names
}

// RecentIntents returns up to limit most recently emitted intents, newest
// first.
func (e *Engine) RecentIntents(limit int) []domain.TradeIntent {
	if limit <= 0 {
		limit = 20
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	n := len(e.recentIntents)
	if limit > n {
		limit = n
	}
	out := make([]domain.TradeIntent, 0, limit)
	for i := n - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, e.recentIntents[i])
	}
	return out
}

// Run initializes the active strategies and processes candles until the
// context is cancelled. Strategies are closed on the way out.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	active := make([]Strategy, len(e.active))
	copy(active, e.active)
	e.mu.Unlock()

	for _, s := range active {
		if err := s.Init(ctx); err != nil {
			return fmt.Errorf("engine: init %s: %w", s.Name(), err)
		}
	}
	defer func() {
		for _, s := range active {
			if err := s.Close(); err != nil {
				e.logger.Warn("strategy close failed",
					slog.String("strategy", s.Name()),
					slog.String("error", err.Error()),
				)
			}
		}
	}()

	e.logger.Info("strategy engine started", slog.Int("strategies", len(active)))
	defer e.logger.Info("strategy engine stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case candle := <-e.candleCh:
			e.handleCandle(ctx, active, candle)
		}
	}
}

func (e *Engine) handleCandle(ctx context.Context, active []Strategy, candle domain.Candle) {
	if e.prices != nil && candle.Timeframe == domain.TimeframeLower {
		if err := e.prices.SetPrice(ctx, candle.Pair, candle.Close, candle.Timestamp); err != nil {
			e.logger.Warn("price cache update failed", slog.String("error", err.Error()))
		}
	}

	for _, s := range active {
		intents, err := s.OnCandle(ctx, candle)
		if err != nil {
			e.logger.Error("strategy error",
				slog.String("strategy", s.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}
		for _, intent := range intents {
			e.emit(ctx, intent)
		}
	}
}

// emit forwards one intent, dropping it rather than blocking the candle
// loop when the executor is backed up. A dropped intent is safe to lose:
// the setup will re-trigger on a later candle if it still holds.
func (e *Engine) emit(ctx context.Context, intent domain.TradeIntent) {
	select {
	case e.intentCh <- intent:
		e.record(intent)
		e.logger.Info("intent emitted",
			slog.String("intent_id", intent.ID),
			slog.String("source", intent.Source),
			slog.String("side", string(intent.Side)),
			slog.String("reason", intent.Reason),
		)
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		e.logger.Warn("intent channel full, dropping",
			slog.String("intent_id", intent.ID),
		)
	}
}

func (e *Engine) record(intent domain.TradeIntent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recentIntents = append(e.recentIntents, intent)
	if len(e.recentIntents) > e.recentLimit {
		e.recentIntents = e.recentIntents[len(e.recentIntents)-e.recentLimit:]
	}
}
