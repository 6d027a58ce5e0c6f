// Package blockfrost is a minimal client for the Blockfrost Cardano API,
// covering raw transaction submission (the wallet fallback path) and
// transaction confirmation lookups.
package blockfrost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// MainnetURL is the default Blockfrost mainnet API root.
const MainnetURL = "https://cardano-mainnet.blockfrost.io/api/v0"

// Client is a Blockfrost REST client authenticated by a project key.
type Client struct {
	baseURL    string
	projectID  string
	httpClient *http.Client
}

// Transaction is the subset of Blockfrost transaction metadata the bot
// reads when confirming a submission landed on-chain.
type Transaction struct {
	Hash        string `json:"hash"`
	Block       string `json:"block"`
	BlockHeight int64  `json:"block_height"`
	Slot        int64  `json:"slot"`
	Index       int    `json:"index"`
}

// NewClient creates a Blockfrost client. baseURL falls back to mainnet when
// empty.
func NewClient(baseURL, projectID string) *Client {
	if baseURL == "" {
		baseURL = MainnetURL
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		projectID: projectID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SubmitRawTx posts raw signed transaction bytes to the tx/submit endpoint
// and returns the transaction hash from the response body. The bytes are
// sent exactly as given with no re-encoding. Blockfrost treats duplicate
// submission of an already-seen transaction as a no-op that returns the
// same hash, which makes a fallback after a timed-out wallet call safe.
func (c *Client) SubmitRawTx(ctx context.Context, raw []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tx/submit", bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("blockfrost: create submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/cbor")
	req.Header.Set("project_id", c.projectID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("blockfrost: submit request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("blockfrost: read submit response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("blockfrost: submit failed (HTTP %d): %s", resp.StatusCode, string(body))
	}

	// The hash comes back as a JSON string; tolerate a bare string too.
	hash := strings.TrimSpace(string(body))
	hash = strings.Trim(hash, `"`)
	if hash == "" {
		return "", fmt.Errorf("blockfrost: submit returned empty transaction hash")
	}
	return hash, nil
}

// GetTransaction fetches metadata for a transaction by hash. A 404 means
// the transaction has not (yet) been included in a block.
func (c *Client) GetTransaction(ctx context.Context, hash string) (Transaction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/txs/"+hash, nil)
	if err != nil {
		return Transaction{}, fmt.Errorf("blockfrost: create tx request: %w", err)
	}
	req.Header.Set("project_id", c.projectID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Transaction{}, fmt.Errorf("blockfrost: tx request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Transaction{}, fmt.Errorf("blockfrost: read tx response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return Transaction{}, fmt.Errorf("blockfrost: tx %s not found", hash)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Transaction{}, fmt.Errorf("blockfrost: get tx failed (HTTP %d): %s", resp.StatusCode, string(body))
	}

	var tx Transaction
	if err := json.Unmarshal(body, &tx); err != nil {
		return Transaction{}, fmt.Errorf("blockfrost: decode tx: %w", err)
	}
	return tx, nil
}
