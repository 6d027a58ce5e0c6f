package domain

import "time"

// Timeframe labels the candle intervals the strategy layer consumes.
type Timeframe string

const (
	TimeframeLower  Timeframe = "lower"  // intraday, e.g. 15m
	TimeframeMedium Timeframe = "medium" // e.g. 4h
	TimeframeDaily  Timeframe = "daily"
)

// Candle is a single OHLCV bar for a trading pair.
type Candle struct {
	Pair      string
	Timeframe Timeframe
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Timestamp time.Time // bar open time, UTC
}
