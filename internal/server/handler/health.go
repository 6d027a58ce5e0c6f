package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// HealthHandler serves the health-check endpoint. Beyond liveness it reports
// the run mode and whether a wallet is attached to the bridge, because a bot
// with no wallet cannot sign anything even when every other component is up.
type HealthHandler struct {
	wallet  WalletInfo
	mode    string
	started time.Time
	logger  *slog.Logger
}

// NewHealthHandler creates a HealthHandler over the wallet bridge.
func NewHealthHandler(wallet WalletInfo, mode string, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		wallet:  wallet,
		mode:    mode,
		started: time.Now().UTC(),
		logger:  logger,
	}
}

// HealthCheck reports liveness, run mode, uptime and wallet attachment.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"mode":            h.mode,
		"walletConnected": h.wallet.Connected(),
		"uptimeSeconds":   int64(time.Since(h.started).Seconds()),
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	})
}
