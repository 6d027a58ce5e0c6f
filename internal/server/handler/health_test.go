package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthCheck(t *testing.T) {
	h := NewHealthHandler(stubWallet{connected: true, address: "addr1qtest"}, "full", slog.New(slog.DiscardHandler))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rr := httptest.NewRecorder()
	h.HealthCheck(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Fatalf("unexpected status: %v", resp["status"])
	}
	if resp["mode"] != "full" {
		t.Fatalf("unexpected mode: %v", resp["mode"])
	}
	if resp["walletConnected"] != true {
		t.Fatal("wallet connection state missing from health payload")
	}
	if _, ok := resp["uptimeSeconds"]; !ok {
		t.Fatal("uptime missing from health payload")
	}
}

func TestHealthCheckWalletDisconnected(t *testing.T) {
	h := NewHealthHandler(stubWallet{connected: false}, "monitor", slog.New(slog.DiscardHandler))

	rr := httptest.NewRecorder()
	h.HealthCheck(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["walletConnected"] != false {
		t.Fatal("health must report a disconnected wallet")
	}
}
