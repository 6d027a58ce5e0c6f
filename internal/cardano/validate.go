// Package cardano provides byte-level checks and helpers for hex-encoded
// Cardano transaction CBOR. It deliberately performs no structural CBOR
// decoding: the server-side witness combiner is the single source of truth
// for transaction structure, and this layer only rejects payloads that are
// obviously not a transaction before a wallet prompt is spent on them.
package cardano

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/LavonTMCQ/misterbot/internal/domain"
)

// MinTxHexLen is the minimum plausible length of a transaction payload in
// hex characters (50 bytes). Anything shorter cannot be a Cardano
// transaction and signals a broken upstream response.
const MinTxHexLen = 100

var hexPattern = regexp.MustCompile(`^[0-9a-fA-F]+$`)

// knownTxPrefixes are the leading bytes observed on era-current Cardano
// transaction arrays. The set is advisory: valid transactions outside it
// exist in principle, so a mismatch warns instead of rejecting.
var knownTxPrefixes = map[byte]bool{
	0x84: true,
	0x85: true,
	0x86: true,
}

// ValidateTxPayload checks that raw looks like hex-encoded transaction CBOR
// and returns it unchanged on success. Checks run in order: non-empty, pure
// hex, minimum length. An unrecognized leading byte is logged as a warning
// but never fails validation, since over-rejecting a valid transaction with
// an unusual header is worse than letting the wallet surface the real
// problem.
func ValidateTxPayload(raw string, logger *slog.Logger) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("%w: empty payload", domain.ErrMalformedTransaction)
	}
	if !hexPattern.MatchString(raw) {
		return "", fmt.Errorf("%w: payload contains non-hex characters", domain.ErrMalformedTransaction)
	}
	if len(raw) < MinTxHexLen {
		return "", fmt.Errorf("%w: payload too short (%d hex chars, want >= %d)",
			domain.ErrMalformedTransaction, len(raw), MinTxHexLen)
	}

	first, err := firstByte(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrMalformedTransaction, err)
	}
	if !knownTxPrefixes[first] && logger != nil {
		logger.Warn("unexpected transaction prefix",
			slog.String("first_byte", fmt.Sprintf("%02x", first)),
			slog.String("expected", "84, 85 or 86"),
		)
	}

	return raw, nil
}

// firstByte decodes the first two hex characters of s.
func firstByte(s string) (byte, error) {
	b, err := hex.DecodeString(strings.ToLower(s[:2]))
	if err != nil {
		return 0, fmt.Errorf("decode first byte: %v", err)
	}
	return b[0], nil
}
