package domain

import (
	"context"
	"fmt"
)

// WalletAPI is the CIP-30 shaped capability through which the bot signs and
// submits Cardano transactions. It is always an injected dependency; the
// concrete implementation is a browser wallet reached over the bridge, or a
// test double.
type WalletAPI interface {
	// Address returns the bech32 payment address of the connected wallet.
	Address() string

	// SignTx asks the wallet to sign the hex-encoded transaction CBOR and
	// returns the hex-encoded witness set. When partialSign is true the
	// wallet signs only its own required witnesses, leaving room for the
	// platform's counterparty signatures to be merged in later.
	SignTx(ctx context.Context, txCborHex string, partialSign bool) (string, error)

	// SubmitTx asks the wallet to broadcast a fully signed transaction and
	// returns the transaction hash.
	SubmitTx(ctx context.Context, signedCborHex string) (string, error)
}

// WalletError is an error reported by the wallet itself, carrying whatever
// numeric code the wallet attached. CIP-30 does not mandate a single error
// taxonomy, so Code values vary across wallet implementations and any
// interpretation of them is best-effort.
type WalletError struct {
	Code int
	Info string
}

func (e *WalletError) Error() string {
	return fmt.Sprintf("wallet error (code %d): %s", e.Code, e.Info)
}
