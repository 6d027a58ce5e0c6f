package domain

import "time"

// TradeSide is the direction of a perpetual position.
type TradeSide string

const (
	TradeSideLong  TradeSide = "Long"
	TradeSideShort TradeSide = "Short"
)

// IntentAction distinguishes opening a new position from closing an
// existing one. Both actions produce an unsigned transaction server-side
// and go through the same signing flow.
type IntentAction string

const (
	IntentActionOpen  IntentAction = "open"
	IntentActionClose IntentAction = "close"
)

// TradeIntent is the logical trade request that originates a signing flow.
// It is created by a strategy or an API caller, consumed by exactly one
// execution attempt, and never reused: a retry is a fresh intent.
type TradeIntent struct {
	ID            string // UUID for dedup
	Source        string // strategy name or "api"
	Action        IntentAction
	Pair          string // e.g. "ADA/USD"
	Side          TradeSide
	CollateralADA float64
	Leverage      float64
	StopLoss      float64 // price, 0 = none
	TakeProfit    float64 // price, 0 = none
	PositionID    string  // required for close intents
	WalletAddress string
	Reason        string
	Metadata      map[string]string
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// Notional returns the leveraged position size in ADA.
func (i TradeIntent) Notional() float64 {
	if i.Leverage <= 0 {
		return i.CollateralADA
	}
	return i.CollateralADA * i.Leverage
}
