package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/LavonTMCQ/misterbot/internal/domain"
)

const testAddress = "addr1qx2fxv2umyhttkxyxp8x0dlpdt3k6cwng5pxj3jhsydzer3n0d3vllmyqwsx5wktcd8cc3sq835lu7drv2xwl2wywfgse35a3x"

// dialWallet connects to the bridge as a browser wallet would and sends the
// hello frame.
func dialWallet(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial wallet ws: %v", err)
	}
	hello := map[string]string{"type": "hello", "address": testAddress, "name": "eternl"}
	if err := conn.WriteJSON(hello); err != nil {
		t.Fatalf("send hello: %v", err)
	}
	return conn
}

// waitConnected polls until the bridge has attached a session.
func waitConnected(t *testing.T, b *Bridge) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if b.Connected() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("wallet never connected")
}

func httpHandlerFunc(b *Bridge) http.Handler {
	return http.HandlerFunc(b.HandleWS)
}

func TestBridgeNoSession(t *testing.T) {
	b := NewBridge(slog.New(slog.DiscardHandler))
	if b.Connected() {
		t.Fatal("fresh bridge must not report a connection")
	}
	if b.Address() != "" {
		t.Fatal("fresh bridge must have no address")
	}
	_, err := b.SignTx(context.Background(), "84a100", true)
	if !errors.Is(err, domain.ErrWalletUnavailable) {
		t.Fatalf("expected ErrWalletUnavailable, got %v", err)
	}
}

func TestBridgeSignTxRoundTrip(t *testing.T) {
	b := NewBridge(slog.New(slog.DiscardHandler))
	srv := httptest.NewServer(httpHandlerFunc(b))
	defer srv.Close()

	conn := dialWallet(t, srv)
	defer conn.Close()
	waitConnected(t, b)

	if b.Address() != testAddress {
		t.Fatalf("address mismatch: %s", b.Address())
	}

	// Answer the sign request like a CIP-30 wallet.
	go func() {
		var req request
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		var p signParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return
		}
		if req.Method != "sign_tx" || p.Tx != "84a100" || !p.PartialSign {
			conn.WriteJSON(response{ID: req.ID, Error: &rpcError{Code: -1, Info: "bad request frame"}})
			return
		}
		conn.WriteJSON(response{ID: req.ID, Result: "a100818258"})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	witness, err := b.SignTx(ctx, "84a100", true)
	if err != nil {
		t.Fatalf("SignTx: %v", err)
	}
	if witness != "a100818258" {
		t.Fatalf("unexpected witness: %s", witness)
	}
}

func TestBridgeWalletErrorSurfaced(t *testing.T) {
	b := NewBridge(slog.New(slog.DiscardHandler))
	srv := httptest.NewServer(httpHandlerFunc(b))
	defer srv.Close()

	conn := dialWallet(t, srv)
	defer conn.Close()
	waitConnected(t, b)

	go func() {
		var req request
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		conn.WriteJSON(response{ID: req.ID, Error: &rpcError{Code: 2, Info: "user declined signing"}})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := b.SignTx(ctx, "84a100", true)
	var werr *domain.WalletError
	if !errors.As(err, &werr) {
		t.Fatalf("expected WalletError, got %v", err)
	}
	if werr.Code != 2 || werr.Info != "user declined signing" {
		t.Fatalf("unexpected wallet error: %+v", werr)
	}
}

func TestBridgeDisconnectFailsPending(t *testing.T) {
	b := NewBridge(slog.New(slog.DiscardHandler))
	srv := httptest.NewServer(httpHandlerFunc(b))
	defer srv.Close()

	conn := dialWallet(t, srv)
	waitConnected(t, b)

	errCh := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, err := b.SubmitTx(ctx, "84a100")
		errCh <- err
	}()

	// Let the call register as pending, then drop the wallet.
	time.Sleep(50 * time.Millisecond)
	conn.Close()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("pending call must fail when the wallet disconnects")
		}
		var werr *domain.WalletError
		if !errors.As(err, &werr) || werr.Info != "wallet disconnected" {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("pending call never returned")
	}

	deadline := time.Now().Add(2 * time.Second)
	for b.Connected() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if b.Connected() {
		t.Fatal("bridge still reports a session after disconnect")
	}
}

func TestBridgeRejectsMissingHello(t *testing.T) {
	b := NewBridge(slog.New(slog.DiscardHandler))
	srv := httptest.NewServer(httpHandlerFunc(b))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// No hello, just a stray frame. The bridge must close the connection
	// without attaching a session.
	conn.WriteJSON(map[string]string{"type": "noise"})

	time.Sleep(100 * time.Millisecond)
	if b.Connected() {
		t.Fatal("bridge attached a session without a hello frame")
	}
}
