package signing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/LavonTMCQ/misterbot/internal/domain"
)

// Wallet error codes seen in the field. CIP-30 leaves the error taxonomy to
// each wallet, so these are wallet-observed conventions, not a standard:
// several wallets report internal signing failures as -1 and internal
// submission failures as -2, while the CIP-30 reference shape uses 2 for a
// user declining the signature.
const (
	codeWalletSignInternal   = -1
	codeWalletSubmitInternal = -2
	codeUserDeclined         = 2
)

// ClassifyWalletError maps an error raised by a wallet call onto the domain
// error taxonomy. The mapping is best-effort: unmapped codes and shapes fall
// back to a generic signing failure rather than guessing further semantics.
// The original error text is always preserved in the returned error.
func ClassifyWalletError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: timed out waiting for wallet: %v", domain.ErrSigningFailed, err)
	}
	if errors.Is(err, domain.ErrWalletUnavailable) {
		return err
	}

	var werr *domain.WalletError
	if errors.As(err, &werr) {
		switch werr.Code {
		case codeUserDeclined:
			return fmt.Errorf("%w: %v", domain.ErrUserRejected, err)
		case codeWalletSignInternal:
			return fmt.Errorf("%w: %v", domain.ErrSigningFailed, err)
		case codeWalletSubmitInternal:
			return fmt.Errorf("%w: %v", domain.ErrSubmissionFailed, err)
		}
		if looksLikeRejection(werr.Info) {
			return fmt.Errorf("%w: %v", domain.ErrUserRejected, err)
		}
		return fmt.Errorf("%w: %v", domain.ErrSigningFailed, err)
	}

	if looksLikeRejection(err.Error()) {
		return fmt.Errorf("%w: %v", domain.ErrUserRejected, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrSigningFailed, err)
}

// looksLikeRejection matches the free-text phrasings wallets use when the
// user dismisses the signing prompt.
func looksLikeRejection(msg string) bool {
	m := strings.ToLower(msg)
	for _, kw := range []string{"declined", "rejected", "cancelled", "canceled", "denied"} {
		if strings.Contains(m, kw) {
			return true
		}
	}
	return false
}
