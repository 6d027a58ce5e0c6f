package strike

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/LavonTMCQ/misterbot/internal/domain"
)

func testIntent() domain.TradeIntent {
	return domain.TradeIntent{
		ID:            "intent-1",
		Action:        domain.IntentActionOpen,
		Pair:          "ADA",
		Side:          domain.TradeSideLong,
		CollateralADA: 100,
		Leverage:      5,
		StopLoss:      0.80,
		TakeProfit:    1.20,
		WalletAddress: "addr1qtest",
	}
}

func TestExecuteTrade(t *testing.T) {
	var gotPath string
	var gotReq tradeRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type: %s", ct)
		}
		if key := r.Header.Get("X-API-Key"); key != "secret" {
			t.Errorf("unexpected api key header: %s", key)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]string{"cbor": "84" + strings.Repeat("ab", 60)},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret")
	resp, err := c.ExecuteTrade(context.Background(), testIntent())
	if err != nil {
		t.Fatalf("execute trade: %v", err)
	}
	if gotPath != "/api/perpetuals/openPosition" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotReq.Address != "addr1qtest" || gotReq.Position != "Long" {
		t.Fatalf("unexpected request: %+v", gotReq)
	}
	if gotReq.LeveragedAmount != 500 {
		t.Fatalf("expected leveraged amount 500, got %v", gotReq.LeveragedAmount)
	}
	if resp.Finalized {
		t.Fatal("response with CBOR must not be finalized")
	}
	if resp.CBOR == "" {
		t.Fatal("expected unsigned CBOR in the response")
	}
}

func TestExecuteTradeFinalizedServerSide(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]string{"message": "position opened"},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	resp, err := c.ExecuteTrade(context.Background(), testIntent())
	if err != nil {
		t.Fatalf("execute trade: %v", err)
	}
	if !resp.Finalized {
		t.Fatal("empty CBOR means the trade was finalized server-side")
	}
	if resp.Message != "position opened" {
		t.Fatalf("unexpected message: %s", resp.Message)
	}
}

func TestExecuteTradeRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error":   "insufficient collateral",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	_, err := c.ExecuteTrade(context.Background(), testIntent())
	if err == nil || !strings.Contains(err.Error(), "insufficient collateral") {
		t.Fatalf("expected rejection error, got %v", err)
	}
}

func TestClosePosition(t *testing.T) {
	var gotPath string
	var gotReq tradeRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]string{"cbor": "84ab"},
		})
	}))
	defer srv.Close()

	intent := testIntent()
	intent.Action = domain.IntentActionClose
	intent.PositionID = "pos-9"

	c := NewClient(srv.URL, "")
	if _, err := c.ClosePosition(context.Background(), intent); err != nil {
		t.Fatalf("close position: %v", err)
	}
	if gotPath != "/api/perpetuals/closePosition" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotReq.PositionID != "pos-9" {
		t.Fatalf("unexpected position id: %s", gotReq.PositionID)
	}
}

func TestCombineWitness(t *testing.T) {
	var gotReq combineRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/cardano/sign-transaction" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(combineResponse{
			Success:      true,
			SignedTxCbor: "84ff",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	signed, err := c.CombineWitness(context.Background(), "84aa", "a100")
	if err != nil {
		t.Fatalf("combine: %v", err)
	}
	if signed != "84ff" {
		t.Fatalf("unexpected signed tx: %s", signed)
	}
	if gotReq.TxCbor != "84aa" || gotReq.WitnessSetCbor != "a100" {
		t.Fatalf("unexpected combine request: %+v", gotReq)
	}
}

func TestCombineWitnessServerErrorVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(combineResponse{
			Success: false,
			Error:   "vkey witness does not match required signer",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	_, err := c.CombineWitness(context.Background(), "84aa", "a100")
	if err == nil || !strings.Contains(err.Error(), "vkey witness does not match required signer") {
		t.Fatalf("server message must be preserved, got %v", err)
	}
}

func TestCombineWitnessEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(combineResponse{Success: true})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	if _, err := c.CombineWitness(context.Background(), "84aa", "a100"); err == nil {
		t.Fatal("empty signed tx must be an error")
	}
}

func TestGetPositions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("address"); got != "addr1qtest" {
			t.Errorf("unexpected address: %s", got)
		}
		json.NewEncoder(w).Encode([]apiPosition{
			{
				ID:               "pos-1",
				Asset:            "ADA",
				Position:         "Short",
				CollateralAmount: 250,
				Leverage:         4,
				EntryPrice:       0.95,
				PnL:              -12.5,
				OpenedAt:         "2026-08-30T12:00:00Z",
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	positions, err := c.GetPositions(context.Background(), "addr1qtest")
	if err != nil {
		t.Fatalf("get positions: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("expected 1 position, got %d", len(positions))
	}
	p := positions[0]
	if p.ID != "pos-1" || p.Side != domain.TradeSideShort || p.CollateralADA != 250 {
		t.Fatalf("unexpected position: %+v", p)
	}
	if p.OpenedAt.IsZero() {
		t.Fatal("expected parsed opened-at timestamp")
	}
}
