package strategy

import (
	"context"

	"github.com/LavonTMCQ/misterbot/internal/domain"
)

// Strategy defines the contract for trading strategies. Strategies consume
// closed candles and emit trade intents; they never talk to the platform or
// the wallet directly.
type Strategy interface {
	Name() string
	Init(ctx context.Context) error
	OnCandle(ctx context.Context, candle domain.Candle) ([]domain.TradeIntent, error)
	Close() error
}

// Config holds strategy configuration shared by all strategy implementations.
type Config struct {
	Name          string
	Pair          string
	EquityADA     float64 // account equity used for position sizing
	RiskPerTrade  float64 // fraction of equity risked per trade, e.g. 0.02
	MaxLeverage   float64
	MinConfidence float64 // minimum composite confidence to emit an intent
	WalletAddress string
	Params        map[string]any
}
