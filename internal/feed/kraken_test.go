package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/LavonTMCQ/misterbot/internal/domain"
)

// ohlcBody mimics Kraken's envelope: string-valued prices, the series keyed
// under the canonical pair name, plus a "last" cursor.
func ohlcBody(rows string) string {
	return fmt.Sprintf(`{"error":[],"result":{"ADAUSD":[%s],"last":1700003600}}`, rows)
}

const threeRows = `[1700000000,"0.50","0.52","0.49","0.51","0.505","120000",42],
[1700000900,"0.51","0.53","0.50","0.52","0.515","110000",40],
[1700001800,"0.52","0.54","0.51","0.53","0.525","90000",38]`

func TestPollEmitsClosedCandles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/0/public/OHLC" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("pair"); got != "ADAUSD" {
			t.Errorf("unexpected pair: %s", got)
		}
		w.Write([]byte(ohlcBody(threeRows)))
	}))
	defer srv.Close()

	candleCh := make(chan domain.Candle, 8)
	p := NewKrakenPoller(srv.URL, "ADA/USD", "ADAUSD", candleCh, slog.New(slog.DiscardHandler))

	if err := p.poll(context.Background(), domain.TimeframeLower); err != nil {
		t.Fatalf("poll: %v", err)
	}
	close(candleCh)

	var got []domain.Candle
	for c := range candleCh {
		got = append(got, c)
	}
	// The final row is the still-forming bar and must be skipped.
	if len(got) != 2 {
		t.Fatalf("expected 2 closed candles, got %d", len(got))
	}
	first := got[0]
	if first.Pair != "ADA/USD" || first.Timeframe != domain.TimeframeLower {
		t.Fatalf("unexpected candle identity: %+v", first)
	}
	if first.Open != 0.50 || first.High != 0.52 || first.Low != 0.49 || first.Close != 0.51 {
		t.Fatalf("unexpected OHLC: %+v", first)
	}
	if first.Volume != 120000 {
		t.Fatalf("unexpected volume: %v", first.Volume)
	}
	if !first.Timestamp.Equal(time.Unix(1700000000, 0).UTC()) {
		t.Fatalf("unexpected timestamp: %v", first.Timestamp)
	}
}

func TestPollDoesNotReEmit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(ohlcBody(threeRows)))
	}))
	defer srv.Close()

	candleCh := make(chan domain.Candle, 8)
	p := NewKrakenPoller(srv.URL, "ADA/USD", "ADAUSD", candleCh, slog.New(slog.DiscardHandler))

	if err := p.poll(context.Background(), domain.TimeframeLower); err != nil {
		t.Fatalf("first poll: %v", err)
	}
	if err := p.poll(context.Background(), domain.TimeframeLower); err != nil {
		t.Fatalf("second poll: %v", err)
	}
	close(candleCh)

	count := 0
	for range candleCh {
		count++
	}
	if count != 2 {
		t.Fatalf("identical data polled twice must emit once, got %d candles", count)
	}
}

func TestPollKrakenError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":["EQuery:Unknown asset pair"],"result":{}}`))
	}))
	defer srv.Close()

	candleCh := make(chan domain.Candle, 1)
	p := NewKrakenPoller(srv.URL, "ADA/USD", "NOPE", candleCh, slog.New(slog.DiscardHandler))

	if err := p.poll(context.Background(), domain.TimeframeLower); err == nil {
		t.Fatal("expected error from the Kraken error array")
	}
}

func TestPollSkipsMalformedRows(t *testing.T) {
	rows := `[1700000000,"0.50","0.52","0.49","0.51","0.505","120000",42],
["bad"],
[1700000900,"0.51","0.53","0.50","0.52","0.515","110000",40]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(ohlcBody(rows)))
	}))
	defer srv.Close()

	candleCh := make(chan domain.Candle, 8)
	p := NewKrakenPoller(srv.URL, "ADA/USD", "ADAUSD", candleCh, slog.New(slog.DiscardHandler))

	if err := p.poll(context.Background(), domain.TimeframeLower); err != nil {
		t.Fatalf("poll: %v", err)
	}
	close(candleCh)

	count := 0
	for range candleCh {
		count++
	}
	// One malformed row dropped, one closed bar emitted, last bar skipped.
	if count != 1 {
		t.Fatalf("expected 1 candle, got %d", count)
	}
}
