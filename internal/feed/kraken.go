// Package feed pulls market data into the strategy engine. Kraken's public
// OHLC endpoint is the candle source: it needs no API key and covers the
// ADA/USD pair the strategies trade on.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/LavonTMCQ/misterbot/internal/domain"
)

// DefaultBaseURL is Kraken's public REST API.
const DefaultBaseURL = "https://api.kraken.com"

// timeframe -> Kraken interval in minutes.
var intervalMinutes = map[domain.Timeframe]int{
	domain.TimeframeLower:  15,
	domain.TimeframeMedium: 240,
	domain.TimeframeDaily:  1440,
}

// KrakenPoller polls Kraken OHLC for one pair on all three timeframes and
// pushes closed candles into the strategy engine's candle channel.
type KrakenPoller struct {
	baseURL    string
	pair       string // display pair, e.g. "ADA/USD"
	krakenPair string // Kraken pair code, e.g. "ADAUSD"
	candleCh   chan<- domain.Candle
	httpClient *http.Client
	logger     *slog.Logger

	pollEvery time.Duration

	lastEmitted map[domain.Timeframe]int64 // bar open time of last closed candle sent
}

// NewKrakenPoller creates a poller for pair (display form, "ADA/USD") whose
// Kraken code is krakenPair. Candles are emitted to candleCh.
func NewKrakenPoller(baseURL, pair, krakenPair string, candleCh chan<- domain.Candle, logger *slog.Logger) *KrakenPoller {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &KrakenPoller{
		baseURL:     baseURL,
		pair:        pair,
		krakenPair:  krakenPair,
		candleCh:    candleCh,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		logger:      logger.With(slog.String("component", "kraken_feed")),
		pollEvery:   time.Minute,
		lastEmitted: make(map[domain.Timeframe]int64),
	}
}

// SetPollInterval overrides the per-timeframe poll cadence. Mainly for tests.
func (p *KrakenPoller) SetPollInterval(d time.Duration) {
	if d > 0 {
		p.pollEvery = d
	}
}

// Run polls all timeframes until the context is cancelled. Each timeframe
// runs its own loop so a slow response on one interval does not delay the
// others.
func (p *KrakenPoller) Run(ctx context.Context) error {
	p.logger.Info("kraken feed started",
		slog.String("pair", p.pair),
		slog.String("kraken_pair", p.krakenPair),
	)
	defer p.logger.Info("kraken feed stopped")

	g, ctx := errgroup.WithContext(ctx)
	for tf := range intervalMinutes {
		tf := tf
		g.Go(func() error { return p.pollLoop(ctx, tf) })
	}
	return g.Wait()
}

func (p *KrakenPoller) pollLoop(ctx context.Context, tf domain.Timeframe) error {
	// Seed history immediately so strategies have indicator warm-up data.
	if err := p.poll(ctx, tf); err != nil {
		p.logger.Warn("initial poll failed",
			slog.String("timeframe", string(tf)),
			slog.String("error", err.Error()),
		)
	}

	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.poll(ctx, tf); err != nil {
				p.logger.Warn("poll failed",
					slog.String("timeframe", string(tf)),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// poll fetches OHLC for one timeframe and emits every closed candle newer
// than the last one sent. Kraken's final array entry is the still-forming
// bar and is always skipped.
func (p *KrakenPoller) poll(ctx context.Context, tf domain.Timeframe) error {
	candles, err := p.fetch(ctx, tf)
	if err != nil {
		return err
	}
	if len(candles) < 2 {
		return nil
	}
	closed := candles[:len(candles)-1]

	last := p.lastEmitted[tf]
	for _, c := range closed {
		ts := c.Timestamp.Unix()
		if ts <= last {
			continue
		}
		select {
		case p.candleCh <- c:
			p.lastEmitted[tf] = ts
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

type ohlcResponse struct {
	Error  []string                   `json:"error"`
	Result map[string]json.RawMessage `json:"result"`
}

// fetch retrieves and decodes one OHLC series.
// GET /0/public/OHLC?pair=ADAUSD&interval=15
func (p *KrakenPoller) fetch(ctx context.Context, tf domain.Timeframe) ([]domain.Candle, error) {
	url := fmt.Sprintf("%s/0/public/OHLC?pair=%s&interval=%d", p.baseURL, p.krakenPair, intervalMinutes[tf])

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("feed: build request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed: ohlc request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("feed: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed: ohlc status %d", resp.StatusCode)
	}

	var decoded ohlcResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("feed: decode response: %w", err)
	}
	if len(decoded.Error) > 0 {
		return nil, fmt.Errorf("feed: kraken error: %s", decoded.Error[0])
	}

	// The result map holds the series under Kraken's canonical pair name,
	// which does not always match the requested one, plus a "last" cursor.
	var rows [][]json.RawMessage
	for key, raw := range decoded.Result {
		if key == "last" {
			continue
		}
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, fmt.Errorf("feed: decode series %s: %w", key, err)
		}
		break
	}

	candles := make([]domain.Candle, 0, len(rows))
	for _, row := range rows {
		c, err := p.parseRow(row, tf)
		if err != nil {
			p.logger.Debug("skipping malformed ohlc row", slog.String("error", err.Error()))
			continue
		}
		candles = append(candles, c)
	}
	return candles, nil
}

// parseRow decodes one [time, open, high, low, close, vwap, volume, count]
// entry. Prices arrive as JSON strings.
func (p *KrakenPoller) parseRow(row []json.RawMessage, tf domain.Timeframe) (domain.Candle, error) {
	if len(row) < 7 {
		return domain.Candle{}, fmt.Errorf("feed: ohlc row has %d fields", len(row))
	}

	var ts int64
	if err := json.Unmarshal(row[0], &ts); err != nil {
		return domain.Candle{}, fmt.Errorf("feed: parse timestamp: %w", err)
	}

	vals := make([]float64, 0, 6)
	for _, raw := range row[1:7] {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return domain.Candle{}, fmt.Errorf("feed: parse field: %w", err)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return domain.Candle{}, fmt.Errorf("feed: parse value %q: %w", s, err)
		}
		vals = append(vals, v)
	}

	return domain.Candle{
		Pair:      p.pair,
		Timeframe: tf,
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Close:     vals[3],
		Volume:    vals[5],
		Timestamp: time.Unix(ts, 0).UTC(),
	}, nil
}
