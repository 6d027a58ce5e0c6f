package strategy

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/LavonTMCQ/misterbot/internal/domain"
)

// stubStrategy emits one canned intent per candle.
type stubStrategy struct {
	name    string
	intents []domain.TradeIntent
	candles int
}

func (s *stubStrategy) Name() string                  { return s.name }
func (s *stubStrategy) Init(ctx context.Context) error { return nil }
func (s *stubStrategy) Close() error                  { return nil }

func (s *stubStrategy) OnCandle(ctx context.Context, candle domain.Candle) ([]domain.TradeIntent, error) {
	s.candles++
	return s.intents, nil
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	stub := &stubStrategy{name: "stub"}
	reg.Register(stub.Name(), stub)

	got, err := reg.Get("stub")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != Strategy(stub) {
		t.Fatal("unexpected strategy returned")
	}
	if _, err := reg.Get("missing"); err == nil {
		t.Fatal("expected error for unregistered name")
	}
	if names := reg.List(); len(names) != 1 || names[0] != "stub" {
		t.Fatalf("unexpected list: %v", names)
	}
}

func TestEngineSetActiveUnknown(t *testing.T) {
	e := NewEngine(NewRegistry(), make(chan domain.TradeIntent, 1), nil, slog.New(slog.DiscardHandler))
	if err := e.SetActive([]string{"missing"}); err == nil {
		t.Fatal("expected error for unknown strategy name")
	}
}

func TestEngineFansOutAndForwards(t *testing.T) {
	intent := domain.TradeIntent{
		ID:     uuid.New().String(),
		Source: "stub",
		Pair:   "ADA/USD",
		Side:   domain.TradeSideLong,
	}
	stub := &stubStrategy{name: "stub", intents: []domain.TradeIntent{intent}}

	reg := NewRegistry()
	reg.Register(stub.Name(), stub)

	intentCh := make(chan domain.TradeIntent, 4)
	e := NewEngine(reg, intentCh, nil, slog.New(slog.DiscardHandler))
	if err := e.SetActive([]string{"stub"}); err != nil {
		t.Fatalf("set active: %v", err)
	}
	if names := e.ActiveNames(); len(names) != 1 || names[0] != "stub" {
		t.Fatalf("unexpected active names: %v", names)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	e.CandleCh() <- domain.Candle{Pair: "ADA/USD", Timeframe: domain.TimeframeLower, Close: 0.5}

	select {
	case got := <-intentCh:
		if got.ID != intent.ID {
			t.Fatalf("unexpected intent: %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("intent never forwarded")
	}

	recent := e.RecentIntents(10)
	if len(recent) != 1 || recent[0].ID != intent.ID {
		t.Fatalf("unexpected recent intents: %+v", recent)
	}

	cancel()
	if err := <-done; err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
