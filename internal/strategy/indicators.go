package strategy

import (
	"math"

	"github.com/LavonTMCQ/misterbot/internal/domain"
)

// Technical indicators over candle series. All functions expect candles in
// chronological order and return the most recent value; they return false
// when the series is too short for the requested period.

// EMA computes an exponential moving average over values with the standard
// smoothing factor 2/(period+1), seeded with the first value.
func EMA(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period {
		return 0, false
	}
	k := 2.0 / float64(period+1)
	ema := values[0]
	for _, v := range values[1:] {
		ema = v*k + ema*(1-k)
	}
	return ema, true
}

// RSI computes the relative strength index using Wilder's smoothing.
func RSI(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period+1 {
		return 0, false
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		delta := values[i] - values[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(values); i++ {
		delta := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100, true
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}

// MACDResult holds the MACD line, its signal line, and their difference.
type MACDResult struct {
	Line      float64
	Signal    float64
	Histogram float64
}

// MACD computes MACD(fast, slow, signal) over values. The signal line is an
// EMA of the MACD line series.
func MACD(values []float64, fast, slow, signal int) (MACDResult, bool) {
	if len(values) < slow+signal {
		return MACDResult{}, false
	}

	// Build the MACD line series so the signal EMA has history to smooth.
	kFast := 2.0 / float64(fast+1)
	kSlow := 2.0 / float64(slow+1)
	emaFast, emaSlow := values[0], values[0]
	line := make([]float64, 0, len(values))
	for _, v := range values {
		emaFast = v*kFast + emaFast*(1-kFast)
		emaSlow = v*kSlow + emaSlow*(1-kSlow)
		line = append(line, emaFast-emaSlow)
	}

	sig, ok := EMA(line, signal)
	if !ok {
		return MACDResult{}, false
	}
	last := line[len(line)-1]
	return MACDResult{Line: last, Signal: sig, Histogram: last - sig}, true
}

// ATR computes the average true range using Wilder's smoothing.
func ATR(candles []domain.Candle, period int) (float64, bool) {
	if period <= 0 || len(candles) < period+1 {
		return 0, false
	}

	trs := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		trs = append(trs, trueRange(candles[i], candles[i-1]))
	}

	atr := 0.0
	for _, tr := range trs[:period] {
		atr += tr
	}
	atr /= float64(period)
	for _, tr := range trs[period:] {
		atr = (atr*float64(period-1) + tr) / float64(period)
	}
	return atr, true
}

func trueRange(c, prev domain.Candle) float64 {
	hl := c.High - c.Low
	hc := math.Abs(c.High - prev.Close)
	lc := math.Abs(c.Low - prev.Close)
	return math.Max(hl, math.Max(hc, lc))
}

// ADX computes the average directional index using Wilder's smoothing. It
// measures trend strength regardless of direction; values above 25 indicate
// a tradeable trend.
func ADX(candles []domain.Candle, period int) (float64, bool) {
	if period <= 0 || len(candles) < 2*period+1 {
		return 0, false
	}

	var trSum, plusSum, minusSum float64
	dxs := make([]float64, 0, len(candles))

	// Initial Wilder sums over the first period.
	for i := 1; i <= period; i++ {
		tr, plus, minus := directionalMovement(candles[i], candles[i-1])
		trSum += tr
		plusSum += plus
		minusSum += minus
	}

	for i := period + 1; i < len(candles); i++ {
		tr, plus, minus := directionalMovement(candles[i], candles[i-1])
		trSum = trSum - trSum/float64(period) + tr
		plusSum = plusSum - plusSum/float64(period) + plus
		minusSum = minusSum - minusSum/float64(period) + minus

		if trSum == 0 {
			dxs = append(dxs, 0)
			continue
		}
		plusDI := 100 * plusSum / trSum
		minusDI := 100 * minusSum / trSum
		if plusDI+minusDI == 0 {
			dxs = append(dxs, 0)
			continue
		}
		dxs = append(dxs, 100*math.Abs(plusDI-minusDI)/(plusDI+minusDI))
	}

	if len(dxs) < period {
		return 0, false
	}
	adx := 0.0
	for _, dx := range dxs[:period] {
		adx += dx
	}
	adx /= float64(period)
	for _, dx := range dxs[period:] {
		adx = (adx*float64(period-1) + dx) / float64(period)
	}
	return adx, true
}

func directionalMovement(c, prev domain.Candle) (tr, plusDM, minusDM float64) {
	tr = trueRange(c, prev)
	up := c.High - prev.High
	down := prev.Low - c.Low
	if up > down && up > 0 {
		plusDM = up
	}
	if down > up && down > 0 {
		minusDM = down
	}
	return tr, plusDM, minusDM
}

// PercentileRank returns where the final value of the series sits relative
// to the rest of the window, as a percentage in [0, 100].
func PercentileRank(values []float64) (float64, bool) {
	n := len(values)
	if n < 2 {
		return 0, false
	}
	last := values[n-1]
	below := 0
	for _, v := range values[:n-1] {
		if v < last {
			below++
		}
	}
	return 100 * float64(below) / float64(n-1), true
}

// closes extracts the close series from candles.
func closes(candles []domain.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
