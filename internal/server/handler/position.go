package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/LavonTMCQ/misterbot/internal/domain"
)

// PositionLister fetches open positions from the trading platform.
type PositionLister interface {
	GetPositions(ctx context.Context, address string) ([]domain.Position, error)
}

// PositionHandler serves position queries and close requests.
type PositionHandler struct {
	platform PositionLister
	intentCh chan<- domain.TradeIntent
	wallet   WalletInfo
	logger   *slog.Logger
}

// NewPositionHandler creates a PositionHandler.
func NewPositionHandler(platform PositionLister, intentCh chan<- domain.TradeIntent, wallet WalletInfo, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{
		platform: platform,
		intentCh: intentCh,
		wallet:   wallet,
		logger:   logger.With(slog.String("handler", "position")),
	}
}

// ListPositions returns the wallet's open positions as reported by the
// platform. The address query parameter overrides the connected wallet.
// GET /api/positions
func (h *PositionHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	if address == "" {
		address = h.wallet.Address()
	}
	if address == "" {
		writeError(w, http.StatusBadRequest, "no wallet address available")
		return
	}

	positions, err := h.platform.GetPositions(r.Context(), address)
	if err != nil {
		h.logger.Error("position fetch failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "failed to fetch positions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"address":   address,
		"positions": positions,
	})
}

// ClosePosition enqueues a close intent for the given position. Like
// SubmitTrade, the actual close is asynchronous.
// POST /api/positions/{id}/close
func (h *PositionHandler) ClosePosition(w http.ResponseWriter, r *http.Request) {
	positionID := r.PathValue("id")
	if positionID == "" {
		writeError(w, http.StatusBadRequest, "position id is required")
		return
	}

	if !h.wallet.Connected() {
		writeError(w, http.StatusConflict, "no wallet connected")
		return
	}
	address := h.wallet.Address()

	// The platform needs the position's pair and side to build the close
	// transaction, so look the position up first.
	positions, err := h.platform.GetPositions(r.Context(), address)
	if err != nil {
		h.logger.Error("position fetch failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "failed to fetch positions")
		return
	}

	var target *domain.Position
	for i := range positions {
		if positions[i].ID == positionID {
			target = &positions[i]
			break
		}
	}
	if target == nil {
		writeError(w, http.StatusNotFound, "position not found")
		return
	}

	now := time.Now().UTC()
	intent := domain.TradeIntent{
		ID:            uuid.New().String(),
		Source:        "api",
		Action:        domain.IntentActionClose,
		Pair:          target.Pair,
		Side:          target.Side,
		PositionID:    target.ID,
		WalletAddress: address,
		Reason:        "manual close via API",
		CreatedAt:     now,
		ExpiresAt:     now.Add(2 * time.Minute),
	}

	select {
	case h.intentCh <- intent:
	default:
		writeError(w, http.StatusServiceUnavailable, "executor queue full")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"intentId": intent.ID,
		"status":   "accepted",
	})
}
