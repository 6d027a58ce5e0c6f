package cardano

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// DecodeTxHex converts a hex transaction payload into raw bytes for
// submission. Each pair of characters maps to exactly one byte; the bytes
// are never re-encoded or structurally modified on the way to the node.
func DecodeTxHex(s string) ([]byte, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("cardano: decode tx hex: %w", err)
	}
	return raw, nil
}

// EncodeTxHex is the inverse of DecodeTxHex. Round-tripping through the
// pair returns the original string up to letter case.
func EncodeTxHex(raw []byte) string {
	return hex.EncodeToString(raw)
}

// PayloadFingerprint returns the blake2b-256 digest of the decoded payload
// bytes as a hex string. The fingerprint is a stable identifier for one
// unsigned transaction across log lines and cache keys; it is not the
// on-chain transaction id, which is a hash of the transaction body only.
func PayloadFingerprint(txCborHex string) (string, error) {
	raw, err := DecodeTxHex(txCborHex)
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
