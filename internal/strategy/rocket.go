package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/LavonTMCQ/misterbot/internal/domain"
)

// Rocket trades strong multi-timeframe trends. It scores trend alignment on
// three timeframes (EMA stack, MACD, RSI), gates entries on ADX and a
// volatility percentile band, and picks an aggressive or conservative
// target multiple from a composite of confidence and realized volatility.
type Rocket struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	buffers map[domain.Timeframe][]domain.Candle
	lastSig time.Time
}

const (
	rocketBufferSize = 250 // enough history for EMA 200 plus smoothing warm-up
	volWindow        = 100
	adxThreshold     = 25.0
	stopATRMult      = 1.5
	aggressiveMult   = 3.5
	conservativeMult = 2.5
	signalCooldown   = 4 * time.Hour
	intentTTL        = 5 * time.Minute
)

// timeframe weights for the composite confidence. The daily trend dominates.
var timeframeWeights = map[domain.Timeframe]float64{
	domain.TimeframeDaily:  0.5,
	domain.TimeframeMedium: 0.3,
	domain.TimeframeLower:  0.2,
}

// NewRocket creates the Rocket strategy with the given configuration.
func NewRocket(cfg Config, logger *slog.Logger) *Rocket {
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = 0.6
	}
	if cfg.RiskPerTrade <= 0 {
		cfg.RiskPerTrade = 0.02
	}
	if cfg.MaxLeverage <= 0 {
		cfg.MaxLeverage = 10
	}
	return &Rocket{
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "strategy"), slog.String("strategy", "massive_rocket")),
		buffers: make(map[domain.Timeframe][]domain.Candle),
	}
}

// Name implements Strategy.
func (r *Rocket) Name() string { return "massive_rocket" }

// Init implements Strategy.
func (r *Rocket) Init(ctx context.Context) error { return nil }

// Close implements Strategy.
func (r *Rocket) Close() error { return nil }

// OnCandle buffers the candle and, on daily bars, evaluates the full
// multi-timeframe setup. At most one intent is emitted per cooldown window.
func (r *Rocket) OnCandle(ctx context.Context, candle domain.Candle) ([]domain.TradeIntent, error) {
	if candle.Pair != r.cfg.Pair {
		return nil, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	buf := append(r.buffers[candle.Timeframe], candle)
	if len(buf) > rocketBufferSize {
		buf = buf[len(buf)-rocketBufferSize:]
	}
	r.buffers[candle.Timeframe] = buf

	// Evaluate on the fastest timeframe so intraday bars can still catch a
	// fresh daily trend, but only once per cooldown.
	if candle.Timeframe != domain.TimeframeLower {
		return nil, nil
	}
	if time.Since(r.lastSig) < signalCooldown {
		return nil, nil
	}

	intent, ok := r.evaluate(candle)
	if !ok {
		return nil, nil
	}
	r.lastSig = time.Now()
	return []domain.TradeIntent{intent}, nil
}

// timeframeRead is one timeframe's scored view of the trend.
type timeframeRead struct {
	direction domain.TradeSide
	strength  float64 // 0..1
	adx       float64
}

// evaluate scores all three timeframes and builds an intent when they agree
// on direction with enough composite confidence.
func (r *Rocket) evaluate(latest domain.Candle) (domain.TradeIntent, bool) {
	reads := make(map[domain.Timeframe]timeframeRead, len(timeframeWeights))
	for tf := range timeframeWeights {
		read, ok := r.readTimeframe(r.buffers[tf])
		if !ok {
			return domain.TradeIntent{}, false
		}
		reads[tf] = read
	}

	daily := reads[domain.TimeframeDaily]
	if daily.adx < adxThreshold {
		return domain.TradeIntent{}, false
	}

	// All timeframes must agree with the daily direction.
	confidence := 0.0
	for tf, read := range reads {
		if read.direction != daily.direction {
			return domain.TradeIntent{}, false
		}
		confidence += timeframeWeights[tf] * read.strength
	}
	if confidence < r.cfg.MinConfidence {
		return domain.TradeIntent{}, false
	}

	dailyBuf := r.buffers[domain.TimeframeDaily]
	atr, ok := ATR(dailyBuf, 14)
	if !ok || atr <= 0 {
		return domain.TradeIntent{}, false
	}

	volPct, ok := r.volatilityPercentile(dailyBuf)
	if !ok {
		return domain.TradeIntent{}, false
	}
	// Dead markets produce chop, panicked ones produce slippage.
	if volPct < 15 || volPct > 90 {
		r.logger.Debug("volatility outside tradeable band",
			slog.Float64("vol_percentile", volPct),
		)
		return domain.TradeIntent{}, false
	}

	targetMult := conservativeMult
	mode := "conservative"
	if score := 0.5*confidence + 0.5*(1-volPct/100); score >= 0.5 {
		targetMult = aggressiveMult
		mode = "aggressive"
	}

	entry := latest.Close
	riskPerUnit := atr * stopATRMult
	var stop, target float64
	if daily.direction == domain.TradeSideLong {
		stop = entry - riskPerUnit
		target = entry + atr*targetMult
	} else {
		stop = entry + riskPerUnit
		target = entry - atr*targetMult
	}

	collateral, leverage := r.size(entry, riskPerUnit)
	if collateral <= 0 {
		return domain.TradeIntent{}, false
	}

	r.logger.Info("trend setup detected",
		slog.String("direction", string(daily.direction)),
		slog.Float64("confidence", confidence),
		slog.Float64("adx", daily.adx),
		slog.Float64("vol_percentile", volPct),
		slog.String("mode", mode),
	)

	now := time.Now().UTC()
	return domain.TradeIntent{
		ID:            uuid.New().String(),
		Source:        r.Name(),
		Action:        domain.IntentActionOpen,
		Pair:          r.cfg.Pair,
		Side:          daily.direction,
		CollateralADA: collateral,
		Leverage:      leverage,
		StopLoss:      round4(stop),
		TakeProfit:    round4(target),
		WalletAddress: r.cfg.WalletAddress,
		Reason: fmt.Sprintf("%s trend, confidence %.2f, ADX %.1f, vol p%.0f, %s target",
			daily.direction, confidence, daily.adx, volPct, mode),
		CreatedAt: now,
		ExpiresAt: now.Add(intentTTL),
	}, true
}

// readTimeframe scores one timeframe's buffer. Strength is a weighted sum
// of EMA stack alignment, position versus the slow EMAs, MACD and RSI.
func (r *Rocket) readTimeframe(candles []domain.Candle) (timeframeRead, bool) {
	cl := closes(candles)

	ema9, ok9 := EMA(cl, 9)
	ema21, ok21 := EMA(cl, 21)
	ema50, ok50 := EMA(cl, 50)
	ema200, ok200 := EMA(cl, 200)
	macd, okM := MACD(cl, 12, 26, 9)
	rsi, okR := RSI(cl, 14)
	adx, okA := ADX(candles, 14)
	if !(ok9 && ok21 && ok50 && ok200 && okM && okR && okA) {
		return timeframeRead{}, false
	}

	price := cl[len(cl)-1]

	long, short := 0.0, 0.0
	if ema9 > ema21 && ema21 > ema50 {
		long += 0.3
	} else if ema9 < ema21 && ema21 < ema50 {
		short += 0.3
	}
	if price > ema50 {
		long += 0.15
	} else {
		short += 0.15
	}
	if price > ema200 {
		long += 0.15
	} else {
		short += 0.15
	}
	if macd.Line > macd.Signal && macd.Histogram > 0 {
		long += 0.2
	} else if macd.Line < macd.Signal && macd.Histogram < 0 {
		short += 0.2
	}
	if rsi > 50 && rsi < 80 {
		long += 0.2
	} else if rsi < 50 && rsi > 20 {
		short += 0.2
	}

	read := timeframeRead{adx: adx}
	if long >= short {
		read.direction = domain.TradeSideLong
		read.strength = long
	} else {
		read.direction = domain.TradeSideShort
		read.strength = short
	}
	return read, true
}

// volatilityPercentile ranks the latest ATR-relative-to-price value against
// the trailing window.
func (r *Rocket) volatilityPercentile(candles []domain.Candle) (float64, bool) {
	if len(candles) < volWindow {
		return 0, false
	}
	vols := make([]float64, 0, volWindow)
	for i := len(candles) - volWindow; i < len(candles); i++ {
		if i == 0 {
			continue
		}
		tr := trueRange(candles[i], candles[i-1])
		if candles[i].Close > 0 {
			vols = append(vols, tr/candles[i].Close)
		}
	}
	return PercentileRank(vols)
}

// size computes collateral and leverage from the configured risk budget:
// the distance to the stop loses at most RiskPerTrade of equity.
func (r *Rocket) size(entry, riskPerUnit float64) (collateral, leverage float64) {
	if riskPerUnit <= 0 || entry <= 0 || r.cfg.EquityADA <= 0 {
		return 0, 0
	}
	units := (r.cfg.RiskPerTrade * r.cfg.EquityADA) / riskPerUnit
	notional := units * entry
	leverage = notional / r.cfg.EquityADA
	if leverage < 1 {
		leverage = 1
	}
	if leverage > r.cfg.MaxLeverage {
		leverage = r.cfg.MaxLeverage
	}
	collateral = notional / leverage
	if collateral > r.cfg.EquityADA {
		collateral = r.cfg.EquityADA
	}
	return round2(collateral), round2(leverage)
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
