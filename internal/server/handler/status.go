package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/LavonTMCQ/misterbot/internal/domain"
)

// EngineInfo exposes strategy engine state to the status endpoint.
type EngineInfo interface {
	ActiveNames() []string
	RecentIntents(limit int) []domain.TradeIntent
}

// StatusHandler reports runtime state: wallet connection, active
// strategies, and the last observed price.
type StatusHandler struct {
	wallet WalletInfo
	engine EngineInfo        // nil when no strategies run
	prices domain.PriceCache // nil without Redis
	pair   string
	logger *slog.Logger
}

// NewStatusHandler creates a StatusHandler. engine and prices are optional.
func NewStatusHandler(wallet WalletInfo, engine EngineInfo, prices domain.PriceCache, pair string, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		wallet: wallet,
		engine: engine,
		prices: prices,
		pair:   pair,
		logger: logger.With(slog.String("handler", "status")),
	}
}

// GetStatus returns a snapshot of the bot's runtime state.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"walletConnected": h.wallet.Connected(),
		"walletAddress":   h.wallet.Address(),
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	}

	if h.engine != nil {
		status["strategies"] = h.engine.ActiveNames()
		status["recentIntents"] = h.engine.RecentIntents(10)
	}

	if h.prices != nil && h.pair != "" {
		price, ts, err := h.prices.GetPrice(r.Context(), h.pair)
		switch {
		case err == nil:
			status["lastPrice"] = price
			status["lastPriceAt"] = ts.Format(time.RFC3339)
		case !errors.Is(err, domain.ErrNotFound):
			h.logger.Warn("price lookup failed", slog.String("error", err.Error()))
		}
	}

	writeJSON(w, http.StatusOK, status)
}
