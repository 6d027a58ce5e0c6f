package strike

import (
	"time"

	"github.com/LavonTMCQ/misterbot/internal/domain"
)

// TradeResponse is the outcome of a trade-building request. When CBOR is
// non-empty the platform built an unsigned transaction and a client signing
// round is required; when it is empty the trade was finalized entirely
// server-side and no client action is needed.
type TradeResponse struct {
	CBOR      string
	Finalized bool
	Message   string
}

// apiEnvelope is the generic response wrapper used by the Strike API.
type apiEnvelope struct {
	Success bool         `json:"success"`
	Error   string       `json:"error"`
	Data    tradePayload `json:"data"`
}

type tradePayload struct {
	CBOR    string `json:"cbor"`
	Message string `json:"message"`
}

// tradeRequest is the wire shape of an open/close request.
type tradeRequest struct {
	Address          string  `json:"address"`
	Asset            string  `json:"asset"`
	CollateralAmount float64 `json:"collateralAmount"`
	LeveragedAmount  float64 `json:"leveragedAmount"`
	Leverage         float64 `json:"leverage"`
	Position         string  `json:"position"` // "Long" or "Short"
	StopLossPrice    float64 `json:"stopLossPrice,omitempty"`
	TakeProfitPrice  float64 `json:"takeProfitPrice,omitempty"`
	PositionID       string  `json:"positionId,omitempty"`
}

// combineRequest is the witness-combination request body.
type combineRequest struct {
	TxCbor         string `json:"txCbor"`
	WitnessSetCbor string `json:"witnessSetCbor"`
}

// combineResponse is the witness-combination response body.
type combineResponse struct {
	Success      bool   `json:"success"`
	SignedTxCbor string `json:"signedTxCbor"`
	Error        string `json:"error"`
}

// apiPosition is the wire shape of an open position.
type apiPosition struct {
	ID               string  `json:"id"`
	Asset            string  `json:"asset"`
	Position         string  `json:"position"`
	CollateralAmount float64 `json:"collateralAmount"`
	LeveragedAmount  float64 `json:"leveragedAmount"`
	Leverage         float64 `json:"leverage"`
	EntryPrice       float64 `json:"entryPrice"`
	CurrentPrice     float64 `json:"currentPrice"`
	StopLossPrice    float64 `json:"stopLossPrice"`
	TakeProfitPrice  float64 `json:"takeProfitPrice"`
	PnL              float64 `json:"pnl"`
	OpenedAt         string  `json:"openedAt"`
}

func (p apiPosition) toDomain() domain.Position {
	pos := domain.Position{
		ID:            p.ID,
		Pair:          p.Asset,
		Side:          domain.TradeSide(p.Position),
		CollateralADA: p.CollateralAmount,
		LeveragedADA:  p.LeveragedAmount,
		Leverage:      p.Leverage,
		EntryPrice:    p.EntryPrice,
		CurrentPrice:  p.CurrentPrice,
		StopLoss:      p.StopLossPrice,
		TakeProfit:    p.TakeProfitPrice,
		PnLADA:        p.PnL,
	}
	if t, err := time.Parse(time.RFC3339, p.OpenedAt); err == nil {
		pos.OpenedAt = t
	}
	return pos
}
