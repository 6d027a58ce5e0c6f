package signing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/LavonTMCQ/misterbot/internal/cardano"
	"github.com/LavonTMCQ/misterbot/internal/domain"
)

// NodeSubmitter broadcasts raw transaction bytes through a node API. It is
// implemented by the Blockfrost client.
type NodeSubmitter interface {
	SubmitRawTx(ctx context.Context, raw []byte) (string, error)
}

// Submitter tries wallet-native submission first and falls back to raw-byte
// submission through a node API. Wallet submitTx calls are known to fail
// for some wallets even on well-formed transactions, which is the whole
// reason the fallback exists.
type Submitter struct {
	node   NodeSubmitter
	logger *slog.Logger
}

// NewSubmitter creates a Submitter with the given fallback node client. The
// node client may be nil, in which case only the wallet path is attempted.
func NewSubmitter(node NodeSubmitter, logger *slog.Logger) *Submitter {
	return &Submitter{
		node:   node,
		logger: logger.With(slog.String("component", "submitter")),
	}
}

// Submit broadcasts a fully signed transaction. On the wallet path failing
// for any reason it decodes the hex into raw bytes and posts them to the
// node API unmodified. The node is assumed to treat a resubmission of an
// already-accepted transaction as a no-op returning the same hash; that
// assumption matters when a wallet call times out client-side after the
// network already accepted the transaction.
func (s *Submitter) Submit(ctx context.Context, wallet domain.WalletAPI, signedCborHex string) (domain.SubmissionResult, error) {
	hash, walletErr := wallet.SubmitTx(ctx, signedCborHex)
	if walletErr == nil {
		s.logger.Info("transaction submitted via wallet",
			slog.String("tx_hash", hash),
		)
		return domain.SubmissionResult{Success: true, TxHash: hash, Route: domain.RouteWallet}, nil
	}

	s.logger.Warn("wallet submission failed, trying node fallback",
		slog.String("error", walletErr.Error()),
	)

	if s.node == nil {
		err := fmt.Errorf("%w: wallet: %v (no fallback node configured)", domain.ErrSubmissionFailed, walletErr)
		return domain.SubmissionResult{Error: err.Error()}, err
	}

	raw, decErr := cardano.DecodeTxHex(signedCborHex)
	if decErr != nil {
		err := fmt.Errorf("%w: wallet: %v; fallback: %v", domain.ErrSubmissionFailed, walletErr, decErr)
		return domain.SubmissionResult{Error: err.Error()}, err
	}

	hash, nodeErr := s.node.SubmitRawTx(ctx, raw)
	if nodeErr != nil {
		err := fmt.Errorf("%w: wallet: %v; blockfrost: %v", domain.ErrSubmissionFailed, walletErr, nodeErr)
		return domain.SubmissionResult{Error: err.Error()}, err
	}

	s.logger.Info("transaction submitted via node fallback",
		slog.String("tx_hash", hash),
	)
	return domain.SubmissionResult{Success: true, TxHash: hash, Route: domain.RouteBlockfrost}, nil
}
