package signing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/LavonTMCQ/misterbot/internal/domain"
)

func TestClassifyWalletErrorCodes(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"declined code", &domain.WalletError{Code: 2, Info: "user declined sign tx"}, domain.ErrUserRejected},
		{"sign internal", &domain.WalletError{Code: -1, Info: "internal wallet error"}, domain.ErrSigningFailed},
		{"submit internal", &domain.WalletError{Code: -2, Info: "internal submit error"}, domain.ErrSubmissionFailed},
		{"unknown code with rejection text", &domain.WalletError{Code: 7, Info: "request was cancelled"}, domain.ErrUserRejected},
		{"unknown code", &domain.WalletError{Code: 7, Info: "something odd"}, domain.ErrSigningFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyWalletError(tt.in)
			if !errors.Is(got, tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyWalletErrorText(t *testing.T) {
	for _, msg := range []string{
		"user rejected the request",
		"Signing DECLINED",
		"request canceled by user",
		"access denied",
	} {
		got := ClassifyWalletError(errors.New(msg))
		if !errors.Is(got, domain.ErrUserRejected) {
			t.Fatalf("%q: expected ErrUserRejected, got %v", msg, got)
		}
	}
}

func TestClassifyWalletErrorTimeout(t *testing.T) {
	err := fmt.Errorf("sign: %w", context.DeadlineExceeded)
	got := ClassifyWalletError(err)
	if !errors.Is(got, domain.ErrSigningFailed) {
		t.Fatalf("expected ErrSigningFailed, got %v", got)
	}
}

func TestClassifyWalletErrorPassthrough(t *testing.T) {
	if got := ClassifyWalletError(nil); got != nil {
		t.Fatalf("nil should stay nil, got %v", got)
	}
	got := ClassifyWalletError(domain.ErrWalletUnavailable)
	if !errors.Is(got, domain.ErrWalletUnavailable) {
		t.Fatalf("expected ErrWalletUnavailable, got %v", got)
	}
}

func TestClassifyWalletErrorPreservesText(t *testing.T) {
	in := &domain.WalletError{Code: -1, Info: "ledger device disconnected"}
	got := ClassifyWalletError(in)
	if got == nil || !errors.Is(got, domain.ErrSigningFailed) {
		t.Fatalf("unexpected classification: %v", got)
	}
	if !strings.Contains(got.Error(), "ledger device disconnected") {
		t.Fatalf("original wallet error text must be preserved: %v", got)
	}
}
