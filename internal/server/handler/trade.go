package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/LavonTMCQ/misterbot/internal/domain"
)

// WalletInfo exposes the connected wallet to handlers. Implemented by the
// wallet bridge.
type WalletInfo interface {
	Connected() bool
	Address() string
}

// TradeHandler accepts manual trade requests and turns them into intents on
// the executor's channel.
type TradeHandler struct {
	intentCh    chan<- domain.TradeIntent
	intentStore domain.IntentStore // optional
	wallet      WalletInfo
	logger      *slog.Logger
}

// NewTradeHandler creates a TradeHandler. intentStore may be nil when the
// bot runs without Postgres.
func NewTradeHandler(intentCh chan<- domain.TradeIntent, intentStore domain.IntentStore, wallet WalletInfo, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{
		intentCh:    intentCh,
		intentStore: intentStore,
		wallet:      wallet,
		logger:      logger.With(slog.String("handler", "trade")),
	}
}

type tradeRequest struct {
	Action        string  `json:"action"` // "open" (default) or "close"
	Pair          string  `json:"pair"`
	Side          string  `json:"side"` // "Long" or "Short"
	CollateralADA float64 `json:"collateralAda"`
	Leverage      float64 `json:"leverage"`
	StopLoss      float64 `json:"stopLoss,omitempty"`
	TakeProfit    float64 `json:"takeProfit,omitempty"`
	PositionID    string  `json:"positionId,omitempty"`
	WalletAddress string  `json:"walletAddress,omitempty"`
}

// SubmitTrade validates a trade request, persists the intent and enqueues
// it for execution. The response is 202: execution is asynchronous because
// it waits on a wallet signature.
// POST /api/trade
func (h *TradeHandler) SubmitTrade(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	intent, err := h.buildIntent(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !h.wallet.Connected() {
		writeError(w, http.StatusConflict, "no wallet connected")
		return
	}

	if h.intentStore != nil {
		if err := h.intentStore.Insert(r.Context(), intent); err != nil {
			h.logger.Error("intent insert failed", slog.String("error", err.Error()))
		}
	}

	select {
	case h.intentCh <- intent:
	default:
		writeError(w, http.StatusServiceUnavailable, "executor queue full")
		return
	}

	h.logger.Info("trade intent accepted",
		slog.String("intent_id", intent.ID),
		slog.String("action", string(intent.Action)),
		slog.String("side", string(intent.Side)),
	)
	writeJSON(w, http.StatusAccepted, map[string]string{
		"intentId": intent.ID,
		"status":   "accepted",
	})
}

// GetIntent returns a stored intent by ID.
// GET /api/intents/{id}
func (h *TradeHandler) GetIntent(w http.ResponseWriter, r *http.Request) {
	if h.intentStore == nil {
		writeError(w, http.StatusNotImplemented, "intent store not configured")
		return
	}

	intent, err := h.intentStore.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "intent not found")
			return
		}
		h.logger.Error("intent get failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to load intent")
		return
	}
	writeJSON(w, http.StatusOK, intent)
}

func (h *TradeHandler) buildIntent(req tradeRequest) (domain.TradeIntent, error) {
	action := domain.IntentAction(req.Action)
	if action == "" {
		action = domain.IntentActionOpen
	}
	if action != domain.IntentActionOpen && action != domain.IntentActionClose {
		return domain.TradeIntent{}, errors.New("action must be \"open\" or \"close\"")
	}

	side := domain.TradeSide(req.Side)
	if side != domain.TradeSideLong && side != domain.TradeSideShort {
		return domain.TradeIntent{}, errors.New("side must be \"Long\" or \"Short\"")
	}

	if req.Pair == "" {
		return domain.TradeIntent{}, errors.New("pair is required")
	}

	switch action {
	case domain.IntentActionOpen:
		if req.CollateralADA <= 0 {
			return domain.TradeIntent{}, errors.New("collateralAda must be positive")
		}
		if req.Leverage < 1 {
			return domain.TradeIntent{}, errors.New("leverage must be at least 1")
		}
	case domain.IntentActionClose:
		if req.PositionID == "" {
			return domain.TradeIntent{}, errors.New("positionId is required to close")
		}
	}

	address := req.WalletAddress
	if address == "" {
		address = h.wallet.Address()
	}
	if address == "" {
		return domain.TradeIntent{}, errors.New("no wallet address available")
	}

	now := time.Now().UTC()
	return domain.TradeIntent{
		ID:            uuid.New().String(),
		Source:        "api",
		Action:        action,
		Pair:          req.Pair,
		Side:          side,
		CollateralADA: req.CollateralADA,
		Leverage:      req.Leverage,
		StopLoss:      req.StopLoss,
		TakeProfit:    req.TakeProfit,
		PositionID:    req.PositionID,
		WalletAddress: address,
		Reason:        "manual trade via API",
		CreatedAt:     now,
		ExpiresAt:     now.Add(2 * time.Minute),
	}, nil
}
