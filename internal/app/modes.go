package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/LavonTMCQ/misterbot/internal/domain"
	"github.com/LavonTMCQ/misterbot/internal/executor"
	"github.com/LavonTMCQ/misterbot/internal/feed"
	"github.com/LavonTMCQ/misterbot/internal/server"
	"github.com/LavonTMCQ/misterbot/internal/server/handler"
	"github.com/LavonTMCQ/misterbot/internal/signing"
	"github.com/LavonTMCQ/misterbot/internal/strategy"
	"github.com/LavonTMCQ/misterbot/internal/wallet"
)

// TradeMode runs the market data feed, the strategy engine, and the
// executor. The HTTP server is started when enabled; without it the browser
// wallet has no way to connect and every signing flow will fail with a
// wallet-unavailable error.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode")

	g, ctx := errgroup.WithContext(ctx)

	bridge := wallet.NewBridge(a.logger)
	execCh := make(chan domain.TradeIntent, 32)

	engine := a.startEngine(ctx, g, deps, bridge, execCh)
	if engine == nil {
		a.logger.WarnContext(ctx, "trade mode: no active strategies, executor will only see API intents")
	}

	exec := a.buildExecutor(deps, execCh, bridge)
	g.Go(func() error {
		return exec.Run(ctx)
	})

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, bridge, execCh, engine)
	} else {
		a.logger.WarnContext(ctx, "trade mode: HTTP server disabled, wallet bridge unreachable")
	}

	a.startArchiveLoop(ctx, g, deps)

	return g.Wait()
}

// MonitorMode runs the feed and the strategy engine without an executor.
// Intents are logged and recorded but never signed or submitted.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)

	bridge := wallet.NewBridge(a.logger)
	sinkCh := make(chan domain.TradeIntent, 32)

	engine := a.startEngine(ctx, g, deps, bridge, sinkCh)
	if engine == nil {
		return fmt.Errorf("monitor mode: no active strategies configured")
	}

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case intent, ok := <-sinkCh:
				if !ok {
					return nil
				}
				a.logger.InfoContext(ctx, "trade intent (monitor only)",
					slog.String("intent_id", intent.ID),
					slog.String("source", intent.Source),
					slog.String("pair", intent.Pair),
					slog.String("side", string(intent.Side)),
					slog.String("reason", intent.Reason),
				)
			}
		}
	})

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, bridge, nil, engine)
	}

	a.startConfirmationWatcher(ctx, g, deps)

	return g.Wait()
}

// ServerMode runs the HTTP API, the wallet bridge, and the executor without
// any automated strategies. Intents come only from the dashboard.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)

	bridge := wallet.NewBridge(a.logger)
	execCh := make(chan domain.TradeIntent, 32)

	exec := a.buildExecutor(deps, execCh, bridge)
	g.Go(func() error {
		return exec.Run(ctx)
	})

	a.startHTTPServer(ctx, g, deps, bridge, execCh, nil)
	a.startArchiveLoop(ctx, g, deps)

	return g.Wait()
}

// FullMode runs everything: feed, strategies, executor, HTTP server, and the
// archive loop.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	bridge := wallet.NewBridge(a.logger)
	execCh := make(chan domain.TradeIntent, 32)

	engine := a.startEngine(ctx, g, deps, bridge, execCh)

	exec := a.buildExecutor(deps, execCh, bridge)
	g.Go(func() error {
		return exec.Run(ctx)
	})

	a.startHTTPServer(ctx, g, deps, bridge, execCh, engine)
	a.startArchiveLoop(ctx, g, deps)
	a.startConfirmationWatcher(ctx, g, deps)

	return g.Wait()
}

// buildCoordinator assembles the signing flow over the wallet bridge, the
// platform witness combiner, and the node submission fallback.
func (a *App) buildCoordinator(deps *Dependencies, bridge *wallet.Bridge) *signing.Coordinator {
	submitter := signing.NewSubmitter(deps.Blockfrost, a.logger)
	return signing.NewCoordinator(bridge, deps.Strike, submitter, signing.Config{
		WalletTimeout:  a.cfg.Signing.WalletTimeout.Duration,
		CombineTimeout: a.cfg.Signing.CombineTimeout.Duration,
		SubmitTimeout:  a.cfg.Signing.SubmitTimeout.Duration,
	}, a.logger)
}

// buildExecutor creates the executor with whatever optional backends were
// wired.
func (a *App) buildExecutor(deps *Dependencies, execCh <-chan domain.TradeIntent, bridge *wallet.Bridge) *executor.Executor {
	exec := executor.NewExecutor(execCh, deps.Strike, a.buildCoordinator(deps, bridge), a.logger)
	if deps.LockManager != nil {
		exec = exec.WithLockManager(deps.LockManager)
	}
	if deps.SubmissionStore != nil {
		exec = exec.WithSubmissionStore(deps.SubmissionStore)
	}
	if deps.SubmissionCache != nil {
		exec = exec.WithSubmissionCache(deps.SubmissionCache)
	}
	if deps.Notifier != nil {
		exec = exec.WithNotifier(deps.Notifier)
	}
	return exec
}

// startEngine builds the strategy registry, the engine, and the Kraken feed
// and adds their goroutines to the errgroup. Strategy intents pass through a
// forwarder that stamps the connected wallet's address and persists them
// before they reach outCh. Returns nil when no strategies are active.
func (a *App) startEngine(
	ctx context.Context,
	g *errgroup.Group,
	deps *Dependencies,
	bridge *wallet.Bridge,
	outCh chan<- domain.TradeIntent,
) *strategy.Engine {
	if len(a.cfg.Strategy.Active) == 0 {
		return nil
	}

	reg := strategy.NewRegistry()
	rocket := strategy.NewRocket(strategy.Config{
		Name:          "massive_rocket",
		Pair:          a.cfg.Strategy.Pair,
		EquityADA:     a.cfg.Strategy.EquityADA,
		RiskPerTrade:  a.cfg.Strategy.RiskPerTrade,
		MaxLeverage:   a.cfg.Strategy.MaxLeverage,
		MinConfidence: a.cfg.Strategy.MinConfidence,
	}, a.logger)
	reg.Register(rocket.Name(), rocket)

	engineCh := make(chan domain.TradeIntent, 32)
	engine := strategy.NewEngine(reg, engineCh, deps.PriceCache, a.logger)
	if err := engine.SetActive(a.cfg.Strategy.Active); err != nil {
		a.logger.Warn("failed to set active strategies, engine will idle",
			slog.Any("active", a.cfg.Strategy.Active),
			slog.String("error", err.Error()),
		)
		return engine
	}

	g.Go(func() error {
		return engine.Run(ctx)
	})

	g.Go(func() error {
		return a.forwardIntents(ctx, deps, bridge, engineCh, outCh)
	})

	poller := feed.NewKrakenPoller(
		a.cfg.Feed.BaseURL,
		a.cfg.Strategy.Pair,
		a.cfg.Feed.KrakenPair,
		engine.CandleCh(),
		a.logger,
	)
	if a.cfg.Feed.PollEvery.Duration > 0 {
		poller.SetPollInterval(a.cfg.Feed.PollEvery.Duration)
	}
	g.Go(func() error {
		return poller.Run(ctx)
	})

	return engine
}

// forwardIntents moves strategy intents toward the executor. Intents emitted
// while no wallet is connected are dropped, because they cannot be signed
// and would expire inside the executor anyway.
func (a *App) forwardIntents(
	ctx context.Context,
	deps *Dependencies,
	bridge *wallet.Bridge,
	from <-chan domain.TradeIntent,
	to chan<- domain.TradeIntent,
) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case intent, ok := <-from:
			if !ok {
				return nil
			}
			if intent.WalletAddress == "" {
				if !bridge.Connected() {
					a.logger.Warn("dropping strategy intent, no wallet connected",
						slog.String("intent_id", intent.ID),
						slog.String("source", intent.Source),
					)
					continue
				}
				intent.WalletAddress = bridge.Address()
			}
			if deps.IntentStore != nil {
				if err := deps.IntentStore.Insert(ctx, intent); err != nil {
					a.logger.Warn("failed to persist strategy intent",
						slog.String("intent_id", intent.ID),
						slog.String("error", err.Error()),
					)
				}
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case to <- intent:
			}
		}
	}
}

// startHTTPServer adds the API server and its shutdown watcher to the
// errgroup. execCh may be nil (monitor mode); engine may be nil (server
// mode).
func (a *App) startHTTPServer(
	ctx context.Context,
	g *errgroup.Group,
	deps *Dependencies,
	bridge *wallet.Bridge,
	execCh chan<- domain.TradeIntent,
	engine *strategy.Engine,
) {
	handlers := server.Handlers{
		Health: handler.NewHealthHandler(bridge, a.cfg.Mode, a.logger),
	}
	if execCh != nil {
		handlers.Trade = handler.NewTradeHandler(execCh, deps.IntentStore, bridge, a.logger)
		handlers.Positions = handler.NewPositionHandler(deps.Strike, execCh, bridge, a.logger)
	}
	if deps.SubmissionStore != nil {
		handlers.Submissions = handler.NewSubmissionHandler(deps.SubmissionStore, a.logger)
	}

	var engineInfo handler.EngineInfo
	if engine != nil {
		engineInfo = engine
	}
	handlers.Status = handler.NewStatusHandler(bridge, engineInfo, deps.PriceCache, a.cfg.Strategy.Pair, a.logger)

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, bridge, deps.RateLimiter, a.logger)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.Int("port", a.cfg.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", a.cfg.Server.Port)),
		)
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.logger.InfoContext(ctx, "HTTP server shutting down")
		return srv.Shutdown(shutCtx)
	})
}

const confirmPollEvery = time.Minute

// startConfirmationWatcher polls Blockfrost for recent successful
// submissions until each one appears in a block. It needs the submission
// store to know which hashes to watch.
func (a *App) startConfirmationWatcher(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.SubmissionStore == nil {
		return
	}

	g.Go(func() error {
		confirmed := make(map[string]bool)
		ticker := time.NewTicker(confirmPollEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				a.checkConfirmations(ctx, deps, confirmed)
			}
		}
	})
}

func (a *App) checkConfirmations(ctx context.Context, deps *Dependencies, confirmed map[string]bool) {
	recs, err := deps.SubmissionStore.ListRecent(ctx, 20)
	if err != nil {
		a.logger.Warn("confirmation watcher: list submissions failed",
			slog.String("error", err.Error()))
		return
	}

	cutoff := time.Now().UTC().Add(-time.Hour)
	for _, rec := range recs {
		if !rec.Success || rec.TxHash == "" || confirmed[rec.TxHash] || rec.CreatedAt.Before(cutoff) {
			continue
		}
		tx, err := deps.Blockfrost.GetTransaction(ctx, rec.TxHash)
		if err != nil {
			// Not on chain yet, or a transient lookup failure. Either
			// way the next tick retries.
			a.logger.Debug("transaction not yet confirmed",
				slog.String("tx_hash", rec.TxHash),
				slog.String("error", err.Error()),
			)
			continue
		}
		confirmed[rec.TxHash] = true
		a.logger.Info("transaction confirmed",
			slog.String("tx_hash", tx.Hash),
			slog.String("intent_id", rec.IntentID),
			slog.Int64("block_height", tx.BlockHeight),
			slog.String("route", string(rec.Route)),
		)
	}
}

// startArchiveLoop periodically moves aged intent and submission rows to
// object storage and deletes them from Postgres. It is a no-op unless both
// the archiver and the stores are wired and archiving is enabled.
func (a *App) startArchiveLoop(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if !a.cfg.Archive.Enabled || deps.Archiver == nil {
		return
	}

	interval := a.cfg.Archive.Interval.Duration
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				a.runArchiveCycle(ctx, deps, retention)
			}
		}
	})
}

func (a *App) runArchiveCycle(ctx context.Context, deps *Dependencies, retention time.Duration) {
	cutoff := time.Now().UTC().Add(-retention)

	subs, err := deps.Archiver.ArchiveSubmissions(ctx, cutoff)
	if err != nil {
		a.logger.Warn("archive submissions failed", slog.String("error", err.Error()))
	} else if subs > 0 {
		if _, err := deps.SubmissionStore.DeleteBefore(ctx, cutoff); err != nil {
			a.logger.Warn("delete archived submissions failed", slog.String("error", err.Error()))
		}
	}

	intents, err := deps.Archiver.ArchiveIntents(ctx, cutoff)
	if err != nil {
		a.logger.Warn("archive intents failed", slog.String("error", err.Error()))
		return
	}
	if intents > 0 {
		if _, err := deps.IntentStore.DeleteBefore(ctx, cutoff); err != nil {
			a.logger.Warn("delete archived intents failed", slog.String("error", err.Error()))
		}
	}

	a.logger.Info("archive cycle complete",
		slog.Int64("submissions", subs),
		slog.Int64("intents", intents),
		slog.Time("cutoff", cutoff),
	)
}
