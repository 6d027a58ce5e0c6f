// Package strike is the REST client for the Strike Finance perpetuals API.
// It builds unsigned open/close transactions, merges witness sets
// server-side, and reads position state.
package strike

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/LavonTMCQ/misterbot/internal/domain"
)

// Client is the Strike Finance REST client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a Strike API client.
//
// baseURL is the API root, e.g. "https://app.strikefinance.org". apiKey may
// be empty when the deployment does not require one.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ExecuteTrade asks the platform to build an open-position transaction for
// the given intent. The returned TradeResponse either carries unsigned CBOR
// for a client signing round or reports the trade finalized server-side.
func (c *Client) ExecuteTrade(ctx context.Context, intent domain.TradeIntent) (TradeResponse, error) {
	req := tradeRequest{
		Address:          intent.WalletAddress,
		Asset:            intent.Pair,
		CollateralAmount: intent.CollateralADA,
		LeveragedAmount:  intent.Notional(),
		Leverage:         intent.Leverage,
		Position:         string(intent.Side),
		StopLossPrice:    intent.StopLoss,
		TakeProfitPrice:  intent.TakeProfit,
	}

	resp, err := c.postTrade(ctx, "/api/perpetuals/openPosition", req)
	if err != nil {
		return TradeResponse{}, fmt.Errorf("strike: execute trade: %w", err)
	}
	return resp, nil
}

// ClosePosition asks the platform to build a close transaction for an
// existing position.
func (c *Client) ClosePosition(ctx context.Context, intent domain.TradeIntent) (TradeResponse, error) {
	req := tradeRequest{
		Address:    intent.WalletAddress,
		Asset:      intent.Pair,
		Position:   string(intent.Side),
		PositionID: intent.PositionID,
	}

	resp, err := c.postTrade(ctx, "/api/perpetuals/closePosition", req)
	if err != nil {
		return TradeResponse{}, fmt.Errorf("strike: close position: %w", err)
	}
	return resp, nil
}

// CombineWitness merges the unsigned transaction and the wallet's witness
// set into a fully signed transaction. The server holds the serialization
// library and is the single source of truth for CBOR correctness; the
// client never merges witnesses itself. Combiner errors are returned
// verbatim so the caller can surface the platform's own message.
func (c *Client) CombineWitness(ctx context.Context, txCborHex, witnessSetCborHex string) (string, error) {
	body, err := json.Marshal(combineRequest{
		TxCbor:         txCborHex,
		WitnessSetCbor: witnessSetCborHex,
	})
	if err != nil {
		return "", fmt.Errorf("strike: marshal combine request: %w", err)
	}

	status, respBody, err := c.do(ctx, http.MethodPost, "/api/cardano/sign-transaction", body)
	if err != nil {
		return "", fmt.Errorf("strike: combine witness: %w", err)
	}

	var result combineResponse
	if jsonErr := json.Unmarshal(respBody, &result); jsonErr != nil {
		if status < 200 || status >= 300 {
			return "", fmt.Errorf("strike: combine witness failed (HTTP %d): %s", status, string(respBody))
		}
		return "", fmt.Errorf("strike: decode combine response: %w", jsonErr)
	}

	if !result.Success || status < 200 || status >= 300 {
		msg := result.Error
		if msg == "" {
			msg = string(respBody)
		}
		return "", fmt.Errorf("strike: combine witness failed (HTTP %d): %s", status, msg)
	}
	if result.SignedTxCbor == "" {
		return "", fmt.Errorf("strike: combine witness returned empty signed transaction")
	}

	return result.SignedTxCbor, nil
}

// GetPositions returns the open positions for a wallet address.
func (c *Client) GetPositions(ctx context.Context, address string) ([]domain.Position, error) {
	path := "/api/perpetuals/getPositions?address=" + address
	status, respBody, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("strike: get positions: %w", err)
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("strike: get positions failed (HTTP %d): %s", status, string(respBody))
	}

	var apiPositions []apiPosition
	if err := json.Unmarshal(respBody, &apiPositions); err != nil {
		return nil, fmt.Errorf("strike: decode positions: %w", err)
	}

	positions := make([]domain.Position, 0, len(apiPositions))
	for _, p := range apiPositions {
		positions = append(positions, p.toDomain())
	}
	return positions, nil
}

// postTrade sends a trade-building request and unwraps the API envelope.
func (c *Client) postTrade(ctx context.Context, path string, req tradeRequest) (TradeResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return TradeResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	status, respBody, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return TradeResponse{}, err
	}
	if status < 200 || status >= 300 {
		return TradeResponse{}, fmt.Errorf("HTTP %d: %s", status, string(respBody))
	}

	var env apiEnvelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return TradeResponse{}, fmt.Errorf("decode response: %w", err)
	}
	if !env.Success {
		return TradeResponse{}, fmt.Errorf("trade rejected: %s", env.Error)
	}

	return TradeResponse{
		CBOR:      env.Data.CBOR,
		Finalized: env.Data.CBOR == "",
		Message:   env.Data.Message,
	}, nil
}

// do performs an HTTP request against the Strike API and returns the status
// code and response body.
func (c *Client) do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}

	return resp.StatusCode, respBody, nil
}
