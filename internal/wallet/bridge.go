// Package wallet implements domain.WalletAPI over a websocket bridge. A
// browser extension wallet (CIP-30) connects to the backend, announces its
// payment address, and then answers sign_tx / submit_tx requests routed to
// it as JSON frames. The bridge is the backend's only wallet connection:
// one wallet session per process, matching the one-wallet-per-user-session
// model of the dashboard.
package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/LavonTMCQ/misterbot/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20 // signed transactions can be large
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Origin filtering happens in the server's CORS middleware.
		return true
	},
}

// request is a frame sent from the bridge to the wallet.
type request struct {
	ID     string          `json:"id"`
	Method string          `json:"method"` // "sign_tx" or "submit_tx"
	Params json.RawMessage `json:"params"`
}

type signParams struct {
	Tx          string `json:"tx"`
	PartialSign bool   `json:"partialSign"`
}

type submitParams struct {
	Tx string `json:"tx"`
}

// response is a frame sent from the wallet back to the bridge. Either
// Result is set or Error is.
type response struct {
	ID     string     `json:"id"`
	Type   string     `json:"type"` // "hello" on the first frame, empty otherwise
	Result string     `json:"result"`
	Error  *rpcError  `json:"error"`
	// hello fields
	Address string `json:"address"`
	Name    string `json:"name"`
}

type rpcError struct {
	Code int    `json:"code"`
	Info string `json:"info"`
}

// session is one connected wallet.
type session struct {
	conn    *websocket.Conn
	send    chan []byte
	address string
	name    string
}

// Bridge accepts a wallet websocket connection and exposes it as a
// domain.WalletAPI. At most one wallet session is active at a time; a new
// connection replaces the previous one.
type Bridge struct {
	logger *slog.Logger

	mu      sync.Mutex
	sess    *session
	pending map[string]chan response
}

// NewBridge creates an empty Bridge with no wallet connected.
func NewBridge(logger *slog.Logger) *Bridge {
	return &Bridge{
		logger:  logger.With(slog.String("component", "wallet_bridge")),
		pending: make(map[string]chan response),
	}
}

// Connected reports whether a wallet session is currently attached.
func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sess != nil
}

// Address returns the connected wallet's payment address, or empty when no
// wallet is attached.
func (b *Bridge) Address() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sess == nil {
		return ""
	}
	return b.sess.address
}

// SignTx routes a partial-signing request to the connected wallet and
// returns the witness set CBOR it produces.
func (b *Bridge) SignTx(ctx context.Context, txCborHex string, partialSign bool) (string, error) {
	params, err := json.Marshal(signParams{Tx: txCborHex, PartialSign: partialSign})
	if err != nil {
		return "", fmt.Errorf("wallet: marshal sign params: %w", err)
	}
	return b.call(ctx, "sign_tx", params)
}

// SubmitTx routes a submission request to the connected wallet and returns
// the transaction hash it reports.
func (b *Bridge) SubmitTx(ctx context.Context, signedCborHex string) (string, error) {
	params, err := json.Marshal(submitParams{Tx: signedCborHex})
	if err != nil {
		return "", fmt.Errorf("wallet: marshal submit params: %w", err)
	}
	return b.call(ctx, "submit_tx", params)
}

// call sends one request frame and waits for the matching response or
// context expiry.
func (b *Bridge) call(ctx context.Context, method string, params json.RawMessage) (string, error) {
	b.mu.Lock()
	sess := b.sess
	if sess == nil {
		b.mu.Unlock()
		return "", domain.ErrWalletUnavailable
	}

	id := uuid.New().String()
	ch := make(chan response, 1)
	b.pending[id] = ch
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.pending, id)
		b.mu.Unlock()
	}()

	frame, err := json.Marshal(request{ID: id, Method: method, Params: params})
	if err != nil {
		return "", fmt.Errorf("wallet: marshal request: %w", err)
	}

	select {
	case sess.send <- frame:
	case <-ctx.Done():
		return "", fmt.Errorf("wallet: %s: %w", method, ctx.Err())
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return "", &domain.WalletError{Code: resp.Error.Code, Info: resp.Error.Info}
		}
		return resp.Result, nil
	case <-ctx.Done():
		return "", fmt.Errorf("wallet: %s: %w", method, ctx.Err())
	}
}

// HandleWS upgrades an HTTP request to the wallet websocket. The wallet
// must send a hello frame carrying its address before any requests are
// routed to it.
// GET /ws/wallet
func (b *Bridge) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Error("wallet ws upgrade failed", slog.String("error", err.Error()))
		return
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// First frame must be the hello.
	var hello response
	if err := conn.ReadJSON(&hello); err != nil || hello.Type != "hello" || hello.Address == "" {
		b.logger.Warn("wallet ws rejected: missing hello frame")
		conn.Close()
		return
	}

	sess := &session{
		conn:    conn,
		send:    make(chan []byte, 16),
		address: hello.Address,
		name:    hello.Name,
	}
	b.attach(sess)

	b.logger.Info("wallet connected",
		slog.String("wallet", sess.name),
		slog.String("address", shortAddr(sess.address)),
	)

	go b.writePump(sess)
	b.readPump(sess)
}

// attach installs sess as the active session, closing any previous one.
func (b *Bridge) attach(sess *session) {
	b.mu.Lock()
	prev := b.sess
	b.sess = sess
	b.mu.Unlock()

	if prev != nil {
		prev.conn.Close()
	}
}

// detach removes sess if it is still the active session and fails all
// pending calls, since their responses can no longer arrive.
func (b *Bridge) detach(sess *session) {
	b.mu.Lock()
	if b.sess == sess {
		b.sess = nil
		for id, ch := range b.pending {
			ch <- response{ID: id, Error: &rpcError{Code: 0, Info: "wallet disconnected"}}
			delete(b.pending, id)
		}
	}
	b.mu.Unlock()

	sess.conn.Close()
	b.logger.Info("wallet disconnected", slog.String("address", shortAddr(sess.address)))
}

func (b *Bridge) readPump(sess *session) {
	defer b.detach(sess)

	for {
		var resp response
		if err := sess.conn.ReadJSON(&resp); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				b.logger.Warn("wallet ws read error", slog.String("error", err.Error()))
			}
			return
		}
		sess.conn.SetReadDeadline(time.Now().Add(pongWait))

		b.mu.Lock()
		ch, ok := b.pending[resp.ID]
		b.mu.Unlock()
		if !ok {
			b.logger.Debug("wallet response for unknown request",
				slog.String("id", resp.ID),
			)
			continue
		}
		ch <- resp
	}
}

func (b *Bridge) writePump(sess *session) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sess.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-sess.send:
			sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				sess.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sess.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sess.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// shortAddr truncates a bech32 address for logging.
func shortAddr(addr string) string {
	if len(addr) > 16 {
		return addr[:16] + "..."
	}
	return addr
}

// Compile-time interface check.
var _ domain.WalletAPI = (*Bridge)(nil)
