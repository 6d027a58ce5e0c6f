package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/LavonTMCQ/misterbot/internal/domain"
)

type stubWallet struct {
	connected bool
	address   string
}

func (s stubWallet) Connected() bool { return s.connected }
func (s stubWallet) Address() string { return s.address }

func newTradeHandler(ch chan domain.TradeIntent, wallet stubWallet) *TradeHandler {
	return NewTradeHandler(ch, nil, wallet, slog.New(slog.DiscardHandler))
}

func postTrade(t *testing.T, h *TradeHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/trade", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.SubmitTrade(rr, req)
	return rr
}

func TestSubmitTradeAccepted(t *testing.T) {
	ch := make(chan domain.TradeIntent, 1)
	h := newTradeHandler(ch, stubWallet{connected: true, address: "addr1qtest"})

	rr := postTrade(t, h, `{"pair":"ADA","side":"Long","collateralAda":100,"leverage":2}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != "accepted" || resp["intentId"] == "" {
		t.Fatalf("unexpected response: %v", resp)
	}

	select {
	case intent := <-ch:
		if intent.ID != resp["intentId"] {
			t.Fatal("enqueued intent id does not match the response")
		}
		if intent.Action != domain.IntentActionOpen || intent.Side != domain.TradeSideLong {
			t.Fatalf("unexpected intent: %+v", intent)
		}
		if intent.WalletAddress != "addr1qtest" {
			t.Fatalf("address should default to the connected wallet, got %s", intent.WalletAddress)
		}
		if intent.ExpiresAt.IsZero() {
			t.Fatal("intent must carry an expiry")
		}
	default:
		t.Fatal("intent was not enqueued")
	}
}

func TestSubmitTradeNoWallet(t *testing.T) {
	h := newTradeHandler(make(chan domain.TradeIntent, 1), stubWallet{connected: false, address: "addr1qstale"})
	rr := postTrade(t, h, `{"pair":"ADA","side":"Long","collateralAda":100,"leverage":2}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 without a wallet, got %d", rr.Code)
	}
}

func TestSubmitTradeValidation(t *testing.T) {
	h := newTradeHandler(make(chan domain.TradeIntent, 1), stubWallet{connected: true, address: "addr1qtest"})

	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{`},
		{"bad side", `{"pair":"ADA","side":"Upward","collateralAda":100,"leverage":2}`},
		{"missing pair", `{"side":"Long","collateralAda":100,"leverage":2}`},
		{"zero collateral", `{"pair":"ADA","side":"Long","leverage":2}`},
		{"leverage below one", `{"pair":"ADA","side":"Long","collateralAda":100,"leverage":0.5}`},
		{"close without position", `{"action":"close","pair":"ADA","side":"Long"}`},
		{"unknown action", `{"action":"hold","pair":"ADA","side":"Long","collateralAda":100,"leverage":2}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postTrade(t, h, tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestSubmitTradeQueueFull(t *testing.T) {
	ch := make(chan domain.TradeIntent)
	h := newTradeHandler(ch, stubWallet{connected: true, address: "addr1qtest"})

	rr := postTrade(t, h, `{"pair":"ADA","side":"Short","collateralAda":50,"leverage":1}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when the queue is full, got %d", rr.Code)
	}
}

func TestSubmitTradeExplicitAddressWins(t *testing.T) {
	ch := make(chan domain.TradeIntent, 1)
	h := newTradeHandler(ch, stubWallet{connected: true, address: "addr1qbridge"})

	rr := postTrade(t, h, `{"pair":"ADA","side":"Long","collateralAda":100,"leverage":2,"walletAddress":"addr1qother"}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rr.Code)
	}
	intent := <-ch
	if intent.WalletAddress != "addr1qother" {
		t.Fatalf("explicit address must win, got %s", intent.WalletAddress)
	}
}

func TestGetIntentWithoutStore(t *testing.T) {
	h := newTradeHandler(make(chan domain.TradeIntent, 1), stubWallet{})
	req := httptest.NewRequest(http.MethodGet, "/api/intents/abc", nil)
	req.SetPathValue("id", "abc")
	rr := httptest.NewRecorder()
	h.GetIntent(rr, req)
	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501 without a store, got %d", rr.Code)
	}
}
