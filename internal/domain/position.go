package domain

import "time"

// Position is an open leveraged position as reported by the trading
// platform. Positions are platform state; the bot never mutates them
// locally, it only requests open/close transactions.
type Position struct {
	ID            string
	Pair          string
	Side          TradeSide
	CollateralADA float64
	LeveragedADA  float64
	Leverage      float64
	EntryPrice    float64
	CurrentPrice  float64
	StopLoss      float64
	TakeProfit    float64
	PnLADA        float64
	OpenedAt      time.Time
}
