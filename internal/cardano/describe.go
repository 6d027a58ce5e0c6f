package cardano

import (
	"fmt"
	"log/slog"
)

// PayloadInfo is a structural snapshot of a transaction payload used for
// operator diagnostics. CBOR prefix mismatches were a recurring failure
// mode between the trade API and wallets, so the shape is worth logging
// even though it never affects control flow.
type PayloadInfo struct {
	HexLen      int
	ByteLen     int
	FirstByte   byte
	MajorType   byte // top 3 bits of the first byte
	KnownPrefix bool
}

// DescribeTxPayload inspects a hex payload without validating it. Payloads
// too short to carry a leading byte yield a zero PayloadInfo.
func DescribeTxPayload(raw string) PayloadInfo {
	info := PayloadInfo{
		HexLen:  len(raw),
		ByteLen: len(raw) / 2,
	}
	if len(raw) < 2 {
		return info
	}
	first, err := firstByte(raw)
	if err != nil {
		return info
	}
	info.FirstByte = first
	info.MajorType = first >> 5
	info.KnownPrefix = knownTxPrefixes[first]
	return info
}

// LogTxPayload emits the structural diagnostics at debug level.
func LogTxPayload(logger *slog.Logger, label string, info PayloadInfo) {
	logger.Debug("tx payload structure",
		slog.String("payload", label),
		slog.Int("hex_len", info.HexLen),
		slog.Int("byte_len", info.ByteLen),
		slog.String("first_byte", fmt.Sprintf("%02x", info.FirstByte)),
		slog.Int("cbor_major_type", int(info.MajorType)),
		slog.Bool("known_prefix", info.KnownPrefix),
	)
}
